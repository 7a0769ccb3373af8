package dto

import (
	"time"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/pkg/dto"
)

type CreateCommentRequest struct {
	Content  string     `json:"content" binding:"required"`
	ParentID *uuid.UUID `json:"parent"`
}

type UpdateCommentRequest struct {
	Content string `json:"content" binding:"required"`
}

// CommentResponse is the recursive presentation: replies expand until
// the serializer's depth limit, then come back as an empty list.
type CommentResponse struct {
	ID        uuid.UUID              `json:"id"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Author    dto.AuthorResponse     `json:"author"`
	Reactions []dto.ReactionResponse `json:"reactions"`
	Replies   []CommentResponse      `json:"replies"`
	ParentID  *uuid.UUID             `json:"parent"`
	PostID    uuid.UUID              `json:"post"`
}

// CommentReplyResponse is the non-recursive, first-level-only
// presentation of the same comment shape.
type CommentReplyResponse struct {
	ID        uuid.UUID              `json:"id"`
	Content   string                 `json:"content"`
	CreatedAt time.Time              `json:"created_at"`
	Author    dto.AuthorResponse     `json:"author"`
	Reactions []dto.ReactionResponse `json:"reactions"`
	ParentID  *uuid.UUID             `json:"parent"`
	PostID    uuid.UUID              `json:"post"`
}
