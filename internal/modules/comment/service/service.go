package comment

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/mailer"
	commentDto "github.com/quypq/blogapi/internal/modules/comment/dto"
	commentRepo "github.com/quypq/blogapi/internal/modules/comment/repository"
	notification "github.com/quypq/blogapi/internal/modules/notification/service"
	postRepo "github.com/quypq/blogapi/internal/modules/post/repository"
	reactionRepo "github.com/quypq/blogapi/internal/modules/reaction/repository"
	"github.com/quypq/blogapi/pkg/apperror"
	"github.com/quypq/blogapi/pkg/dto"
	"github.com/quypq/blogapi/pkg/ratelimiter"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"
)

// DefaultMaxReplyDepth bounds recursive reply expansion per request.
const DefaultMaxReplyDepth = 5

type CommentService interface {
	ListByPost(ctx context.Context, postID uuid.UUID) ([]commentDto.CommentResponse, error)
	ListReplies(ctx context.Context, commentID uuid.UUID) ([]commentDto.CommentReplyResponse, error)
	Create(ctx context.Context, authorID, postID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error)
	Update(ctx context.Context, authorID, commentID uuid.UUID, req commentDto.UpdateCommentRequest) (*commentDto.CommentResponse, error)
	Delete(ctx context.Context, authorID, commentID uuid.UUID) error
}

type commentService struct {
	repo                commentRepo.CommentRepository
	postRepo            postRepo.PostRepository
	reactionRepo        reactionRepo.ReactionRepository
	dispatcher          mailer.Dispatcher
	notificationService notification.NotificationService
	redisClient         *redis.Client
	maxDepth            int
}

func NewCommentService(repo commentRepo.CommentRepository, posts postRepo.PostRepository, reactions reactionRepo.ReactionRepository, dispatcher mailer.Dispatcher, notificationService notification.NotificationService, redisClient *redis.Client, maxDepth int) CommentService {
	if maxDepth <= 0 {
		maxDepth = DefaultMaxReplyDepth
	}
	return &commentService{
		repo:                repo,
		postRepo:            posts,
		reactionRepo:        reactions,
		dispatcher:          dispatcher,
		notificationService: notificationService,
		redisClient:         redisClient,
		maxDepth:            maxDepth,
	}
}

func (s *commentService) ListByPost(ctx context.Context, postID uuid.UUID) ([]commentDto.CommentResponse, error) {
	if _, err := s.postRepo.FindByID(ctx, postID); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	comments, err := s.repo.FindByPost(ctx, postID)
	if err != nil {
		return nil, err
	}

	reactions, err := s.loadReactions(ctx, comments)
	if err != nil {
		return nil, err
	}

	return BuildTree(comments, reactions, s.maxDepth), nil
}

func (s *commentService) ListReplies(ctx context.Context, commentID uuid.UUID) ([]commentDto.CommentReplyResponse, error) {
	if _, err := s.findComment(ctx, commentID); err != nil {
		return nil, err
	}

	replies, err := s.repo.FindReplies(ctx, commentID)
	if err != nil {
		return nil, err
	}

	reactions, err := s.loadReactions(ctx, replies)
	if err != nil {
		return nil, err
	}

	responses := make([]commentDto.CommentReplyResponse, 0, len(replies))
	for _, reply := range replies {
		responses = append(responses, flatten(reply, reactions[reply.ID]))
	}
	return responses, nil
}

func (s *commentService) Create(ctx context.Context, authorID, postID uuid.UUID, req commentDto.CreateCommentRequest) (*commentDto.CommentResponse, error) {
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

	limit := ratelimiter.GetDurationFromEnv("RATE_LIMIT_COMMENT", 5*time.Second)
	allowed, err = ratelimiter.CheckAndSetRateLimit(ctx, s.redisClient, authorID, "comment", limit)
	if err != nil {
		return nil, fmt.Errorf("failed to check rate limit: %w", err)
	}
	if !allowed {
		ttl, _ := ratelimiter.GetRateLimitTTL(ctx, s.redisClient, authorID, "comment")
		return nil, &ratelimiter.RateLimitError{
			Message:    fmt.Sprintf("you are commenting too fast. Please wait %.0f seconds", ttl.Seconds()),
			RetryAfter: ttl,
		}
	}

	post, err := s.postRepo.FindByID(ctx, postID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	var parent *entity.Comment
	if req.ParentID != nil {
		parent, err = s.repo.FindByID(ctx, *req.ParentID)
		if err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return nil, apperror.NewValidation("parent", "parent comment does not exist")
			}
			return nil, err
		}
		if parent.PostID != postID {
			return nil, apperror.NewValidation("parent", "parent comment must belong to the same post")
		}
	}

	comment := &entity.Comment{
		PostID:   postID,
		AuthorID: authorID,
		ParentID: req.ParentID,
		Content:  req.Content,
	}

	if err := s.repo.Create(ctx, comment); err != nil {
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, "global")
		_ = ratelimiter.ClearRateLimit(ctx, s.redisClient, authorID, "comment")
		return nil, err
	}

	var parentAuthorID *uuid.UUID
	if parent != nil {
		parentAuthorID = &parent.AuthorID
	}
	s.dispatcher.Dispatch(ctx, mailer.NewCommentTask(post.AuthorID, parentAuthorID, comment.ID))

	go s.createInAppNotifications(post, parent, comment)

	loaded, err := s.repo.FindByID(ctx, comment.ID)
	if err != nil {
		return nil, err
	}
	resp := buildNode(loaded, nil, nil, 0, s.maxDepth)
	return &resp, nil
}

func (s *commentService) Update(ctx context.Context, authorID, commentID uuid.UUID, req commentDto.UpdateCommentRequest) (*commentDto.CommentResponse, error) {
	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return nil, err
	}

	if comment.AuthorID != authorID {
		return nil, apperror.ErrForbidden
	}

	comment.Content = req.Content
	if err := s.repo.Save(ctx, comment); err != nil {
		return nil, err
	}

	replies, err := s.repo.FindReplies(ctx, comment.ID)
	if err != nil {
		return nil, err
	}

	ids := make([]uuid.UUID, 0, len(replies)+1)
	ids = append(ids, comment.ID)
	for _, reply := range replies {
		ids = append(ids, reply.ID)
	}
	reactions, err := s.reactionRepo.FindByTargets(ctx, entity.TargetComment, ids)
	if err != nil {
		return nil, err
	}

	children := map[uuid.UUID][]*entity.Comment{comment.ID: replies}

	resp := buildNode(comment, children, reactions, 0, 1)
	return &resp, nil
}

func (s *commentService) Delete(ctx context.Context, authorID, commentID uuid.UUID) error {
	comment, err := s.findComment(ctx, commentID)
	if err != nil {
		return err
	}

	if comment.AuthorID != authorID {
		return apperror.ErrForbidden
	}

	return s.repo.Delete(ctx, commentID)
}

func (s *commentService) findComment(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	comment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}
	return comment, nil
}

func (s *commentService) loadReactions(ctx context.Context, comments []*entity.Comment) (map[uuid.UUID][]entity.Reaction, error) {
	ids := make([]uuid.UUID, 0, len(comments))
	for _, c := range comments {
		ids = append(ids, c.ID)
	}
	return s.reactionRepo.FindByTargets(ctx, entity.TargetComment, ids)
}

func (s *commentService) createInAppNotifications(post *entity.Post, parent *entity.Comment, comment *entity.Comment) {
	ctx := context.Background()

	if post.AuthorID != comment.AuthorID {
		notif := &entity.Notification{
			UserID:     post.AuthorID,
			ActorID:    comment.AuthorID,
			EntityID:   comment.ID,
			EntityType: entity.TargetComment,
			Type:       "new_comment",
			Message:    fmt.Sprintf("Someone commented on your post '%s'", post.Title),
		}
		_ = s.notificationService.CreateNotification(ctx, notif)
	}

	if parent != nil && parent.AuthorID != comment.AuthorID {
		notif := &entity.Notification{
			UserID:     parent.AuthorID,
			ActorID:    comment.AuthorID,
			EntityID:   comment.ID,
			EntityType: entity.TargetComment,
			Type:       "new_reply",
			Message:    fmt.Sprintf("Someone replied to your comment on '%s'", post.Title),
		}
		_ = s.notificationService.CreateNotification(ctx, notif)
	}
}

// BuildTree turns the batch-loaded comments of one post into the
// recursive presentation. Input order (created_at ASC) is preserved at
// every level; recursion stops at maxDepth levels below the roots.
func BuildTree(comments []*entity.Comment, reactions map[uuid.UUID][]entity.Reaction, maxDepth int) []commentDto.CommentResponse {
	children := make(map[uuid.UUID][]*entity.Comment)
	var roots []*entity.Comment
	for _, c := range comments {
		if c.ParentID == nil {
			roots = append(roots, c)
		} else {
			children[*c.ParentID] = append(children[*c.ParentID], c)
		}
	}

	result := make([]commentDto.CommentResponse, 0, len(roots))
	for _, root := range roots {
		result = append(result, buildNode(root, children, reactions, 0, maxDepth))
	}
	return result
}

func buildNode(c *entity.Comment, children map[uuid.UUID][]*entity.Comment, reactions map[uuid.UUID][]entity.Reaction, depth, maxDepth int) commentDto.CommentResponse {
	replies := []commentDto.CommentResponse{}
	if depth < maxDepth {
		for _, child := range children[c.ID] {
			replies = append(replies, buildNode(child, children, reactions, depth+1, maxDepth))
		}
	}

	return commentDto.CommentResponse{
		ID:        c.ID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		Author: dto.AuthorResponse{
			ID:       c.Author.ID,
			Username: c.Author.Username,
			Email:    c.Author.Email,
		},
		Reactions: mapReactions(reactions[c.ID]),
		Replies:   replies,
		ParentID:  c.ParentID,
		PostID:    c.PostID,
	}
}

func flatten(c *entity.Comment, reactions []entity.Reaction) commentDto.CommentReplyResponse {
	return commentDto.CommentReplyResponse{
		ID:        c.ID,
		Content:   c.Content,
		CreatedAt: c.CreatedAt,
		Author: dto.AuthorResponse{
			ID:       c.Author.ID,
			Username: c.Author.Username,
			Email:    c.Author.Email,
		},
		Reactions: mapReactions(reactions),
		ParentID:  c.ParentID,
		PostID:    c.PostID,
	}
}

func mapReactions(reactions []entity.Reaction) []dto.ReactionResponse {
	responses := make([]dto.ReactionResponse, 0, len(reactions))
	for _, r := range reactions {
		responses = append(responses, dto.ReactionResponse{
			ID:        r.ID,
			Type:      r.Type,
			CreatedAt: r.CreatedAt,
			Author: dto.AuthorResponse{
				ID:       r.Author.ID,
				Username: r.Author.Username,
				Email:    r.Author.Email,
			},
		})
	}
	return responses
}
