package post

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	comment "github.com/quypq/blogapi/internal/modules/comment/service"
	postDto "github.com/quypq/blogapi/internal/modules/post/dto"
	postRepo "github.com/quypq/blogapi/internal/modules/post/repository"
	reaction "github.com/quypq/blogapi/internal/modules/reaction/service"
	search "github.com/quypq/blogapi/internal/modules/search/service"
	"github.com/quypq/blogapi/pkg/apperror"
	"github.com/quypq/blogapi/pkg/dto"
	"github.com/quypq/blogapi/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

const defaultPageSize = 10

type PostService interface {
	Create(ctx context.Context, authorID uuid.UUID, req postDto.CreatePostRequest) (*postDto.PostResponse, error)
	List(ctx context.Context, filter dto.PageFilter) (*postDto.PaginatedPostResponse, error)
	Get(ctx context.Context, postID uuid.UUID) (*postDto.PostResponse, error)
	Update(ctx context.Context, authorID, postID uuid.UUID, req postDto.UpdatePostRequest) (*postDto.PostResponse, error)
	Delete(ctx context.Context, authorID, postID uuid.UUID) error
	Search(ctx context.Context, query string) ([]search.PostDocument, error)
}

type postService struct {
	repo            postRepo.PostRepository
	commentService  comment.CommentService
	reactionService reaction.ReactionService
	searchService   search.SearchService
	redisClient     *redis.Client
}

func NewPostService(repo postRepo.PostRepository, commentService comment.CommentService, reactionService reaction.ReactionService, searchService search.SearchService, redisClient *redis.Client) PostService {
	return &postService{
		repo:            repo,
		commentService:  commentService,
		reactionService: reactionService,
		searchService:   searchService,
		redisClient:     redisClient,
	}
}

func (s *postService) Create(ctx context.Context, authorID uuid.UUID, req postDto.CreatePostRequest) (*postDto.PostResponse, error) {
	globalLimit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_GLOBAL", 5*time.Second)
	allowed, err := ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, "global", globalLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, "global")
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are doing that too often. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_POST", 15*time.Second)
	allowed, err = ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, "post", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, "post")
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you can only create one post every %.0f seconds. Please wait %.0f seconds", limit.Seconds(), ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	post := &entity.Post{
		AuthorID: authorID,
		Title:    req.Title,
		Content:  req.Content,
	}

	if err := s.repo.Create(ctx, post); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, "global")
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, "post")
		return nil, err
	}

	loaded, err := s.repo.FindByID(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	if s.searchService != nil {
		if err := s.searchService.IndexPost(loaded); err != nil {
			log.Printf("failed to index post %s: %v", loaded.ID, err)
		}
	}

	return s.mapToResponse(ctx, loaded)
}

func (s *postService) List(ctx context.Context, filter dto.PageFilter) (*postDto.PaginatedPostResponse, error) {
	if filter.Page == 0 {
		filter.Page = 1
	}
	if filter.Limit == 0 {
		filter.Limit = defaultPageSize
	}

	offset := (filter.Page - 1) * filter.Limit
	posts, total, err := s.repo.FindAll(ctx, offset, filter.Limit)
	if err != nil {
		return nil, err
	}

	items := make([]postDto.PostListItem, 0, len(posts))
	for _, p := range posts {
		items = append(items, postDto.PostListItem{
			ID:        p.ID,
			Title:     p.Title,
			Content:   p.Content,
			CreatedAt: p.CreatedAt,
			UpdatedAt: p.UpdatedAt,
			Author: dto.AuthorResponse{
				ID:       p.Author.ID,
				Username: p.Author.Username,
				Email:    p.Author.Email,
			},
		})
	}

	totalPages := int(total) / filter.Limit
	if int(total)%filter.Limit != 0 {
		totalPages++
	}

	return &postDto.PaginatedPostResponse{
		Data: items,
		Meta: dto.PaginationMeta{
			CurrentPage: filter.Page,
			TotalPages:  totalPages,
			TotalItems:  total,
			Limit:       filter.Limit,
		},
	}, nil
}

func (s *postService) Get(ctx context.Context, postID uuid.UUID) (*postDto.PostResponse, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}
	return s.mapToResponse(ctx, post)
}

func (s *postService) Update(ctx context.Context, authorID, postID uuid.UUID, req postDto.UpdatePostRequest) (*postDto.PostResponse, error) {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	if post.AuthorID != authorID {
		return nil, apperror.ErrForbidden
	}

	if req.Title != nil {
		post.Title = *req.Title
	}
	if req.Content != nil {
		post.Content = *req.Content
	}

	if err := s.repo.Save(ctx, post); err != nil {
		return nil, err
	}

	if s.searchService != nil {
		if err := s.searchService.IndexPost(post); err != nil {
			log.Printf("failed to index post %s: %v", post.ID, err)
		}
	}

	return s.mapToResponse(ctx, post)
}

func (s *postService) Delete(ctx context.Context, authorID, postID uuid.UUID) error {
	post, err := s.findPost(ctx, postID)
	if err != nil {
		return err
	}

	if post.AuthorID != authorID {
		return apperror.ErrForbidden
	}

	if err := s.repo.Delete(ctx, postID); err != nil {
		return err
	}

	if s.searchService != nil {
		if err := s.searchService.DeletePost(postID.String()); err != nil {
			log.Printf("failed to remove post %s from index: %v", postID, err)
		}
	}

	return nil
}

func (s *postService) Search(ctx context.Context, query string) ([]search.PostDocument, error) {
	if s.searchService == nil {
		return []search.PostDocument{}, nil
	}
	return s.searchService.SearchPosts(query, defaultPageSize)
}

func (s *postService) findPost(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return post, nil
}

func (s *postService) mapToResponse(ctx context.Context, post *entity.Post) (*postDto.PostResponse, error) {
	reactions, err := s.reactionService.ListByTarget(ctx, entity.TargetPost, post.ID)
	if err != nil {
		return nil, err
	}

	comments, err := s.commentService.ListByPost(ctx, post.ID)
	if err != nil {
		return nil, err
	}

	return &postDto.PostResponse{
		ID:        post.ID,
		Title:     post.Title,
		Content:   post.Content,
		CreatedAt: post.CreatedAt,
		UpdatedAt: post.UpdatedAt,
		Author: dto.AuthorResponse{
			ID:       post.Author.ID,
			Username: post.Author.Username,
			Email:    post.Author.Email,
		},
		Reactions: reactions,
		Comments:  comments,
	}, nil
}
