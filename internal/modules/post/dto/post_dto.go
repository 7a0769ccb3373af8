package dto

import (
	"time"

	"github.com/google/uuid"
	commentDto "github.com/quypq/blogapi/internal/modules/comment/dto"
	"github.com/quypq/blogapi/pkg/dto"
)

type CreatePostRequest struct {
	Title   string `json:"title" binding:"required,max=255"`
	Content string `json:"content" binding:"required"`
}

// UpdatePostRequest covers PUT and PATCH: absent fields keep their
// current value.
type UpdatePostRequest struct {
	Title   *string `json:"title" binding:"omitempty,max=255"`
	Content *string `json:"content" binding:"omitempty"`
}

type PostResponse struct {
	ID        uuid.UUID                    `json:"id"`
	Title     string                       `json:"title"`
	Content   string                       `json:"content"`
	CreatedAt time.Time                    `json:"created_at"`
	UpdatedAt time.Time                    `json:"updated_at"`
	Author    dto.AuthorResponse           `json:"author"`
	Reactions []dto.ReactionResponse       `json:"reactions"`
	Comments  []commentDto.CommentResponse `json:"comments"`
}

type PostListItem struct {
	ID        uuid.UUID          `json:"id"`
	Title     string             `json:"title"`
	Content   string             `json:"content"`
	CreatedAt time.Time          `json:"created_at"`
	UpdatedAt time.Time          `json:"updated_at"`
	Author    dto.AuthorResponse `json:"author"`
}

type PaginatedPostResponse struct {
	Data []PostListItem     `json:"data"`
	Meta dto.PaginationMeta `json:"meta"`
}
