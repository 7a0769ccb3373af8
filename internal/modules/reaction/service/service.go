package reaction

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/mailer"
	commentRepo "github.com/quypq/blogapi/internal/modules/comment/repository"
	notification "github.com/quypq/blogapi/internal/modules/notification/service"
	postRepo "github.com/quypq/blogapi/internal/modules/post/repository"
	reactionRepo "github.com/quypq/blogapi/internal/modules/reaction/repository"
	"github.com/quypq/blogapi/pkg/apperror"
	"github.com/quypq/blogapi/pkg/dto"
	"gorm.io/gorm"
)

type UpsertResult struct {
	Reaction dto.ReactionResponse
	Created  bool
	Notified bool
}

type ReactionService interface {
	Upsert(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID, kind string) (*UpsertResult, error)
	ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]dto.ReactionResponse, error)
	UpdateType(ctx context.Context, actorID, reactionID uuid.UUID, kind string) (*dto.ReactionResponse, error)
	Delete(ctx context.Context, actorID, reactionID uuid.UUID) error
}

// targetResolver answers "who authored (kind, id)?" — the registered
// mapping that stands in for a generic polymorphic relation.
type targetResolver func(ctx context.Context, id uuid.UUID) (uuid.UUID, error)

type reactionService struct {
	repo                reactionRepo.ReactionRepository
	dispatcher          mailer.Dispatcher
	notificationService notification.NotificationService
	resolvers           map[string]targetResolver
}

func NewReactionService(repo reactionRepo.ReactionRepository, dispatcher mailer.Dispatcher, notificationService notification.NotificationService, posts postRepo.PostRepository, comments commentRepo.CommentRepository) ReactionService {
	resolvers := map[string]targetResolver{
		entity.TargetPost: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
			post, err := posts.FindByID(ctx, id)
			if err != nil {
				return uuid.Nil, err
			}
			return post.AuthorID, nil
		},
		entity.TargetComment: func(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
			comment, err := comments.FindByID(ctx, id)
			if err != nil {
				return uuid.Nil, err
			}
			return comment.AuthorID, nil
		},
	}

	return &reactionService{
		repo:                repo,
		dispatcher:          dispatcher,
		notificationService: notificationService,
		resolvers:           resolvers,
	}
}

// ShouldNotify is the notification trigger policy: a brand-new reaction
// or a changed kind fires, re-submitting the same kind does not.
func ShouldNotify(created bool, oldKind, newKind string) bool {
	return created || oldKind != newKind
}

func (s *reactionService) Upsert(ctx context.Context, actorID uuid.UUID, targetType string, targetID uuid.UUID, kind string) (*UpsertResult, error) {
	if !entity.IsValidReactionKind(kind) {
		return nil, apperror.NewValidation("type",
			fmt.Sprintf("type must be one of: %s", strings.Join(entity.ReactionKinds, ", ")))
	}

	resolve, ok := s.resolvers[targetType]
	if !ok {
		return nil, apperror.ErrBadRequest
	}

	targetAuthorID, err := resolve(ctx, targetID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	reaction := &entity.Reaction{
		AuthorID:   actorID,
		TargetType: targetType,
		TargetID:   targetID,
		Type:       kind,
	}

	oldKind, created, err := s.repo.Upsert(ctx, reaction)
	if err != nil {
		return nil, err
	}

	notified := false
	if ShouldNotify(created, oldKind, kind) && targetAuthorID != actorID {
		notified = true
		s.dispatcher.Dispatch(ctx, mailer.NewReactionTask(targetAuthorID, kind, targetType, targetID))

		go func() {
			notif := &entity.Notification{
				UserID:     targetAuthorID,
				ActorID:    actorID,
				EntityID:   targetID,
				EntityType: targetType,
				Type:       "reaction",
				Message:    fmt.Sprintf("Someone reacted with %s to your %s", kind, targetType),
			}
			_ = s.notificationService.CreateNotification(context.Background(), notif)
		}()
	}

	loaded, err := s.repo.FindByID(ctx, reaction.ID)
	if err != nil {
		return nil, err
	}

	return &UpsertResult{
		Reaction: mapToResponse(loaded),
		Created:  created,
		Notified: notified,
	}, nil
}

func (s *reactionService) ListByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]dto.ReactionResponse, error) {
	if _, ok := s.resolvers[targetType]; !ok {
		return nil, apperror.ErrBadRequest
	}

	reactions, err := s.repo.FindByTarget(ctx, targetType, targetID)
	if err != nil {
		return nil, err
	}

	responses := make([]dto.ReactionResponse, 0, len(reactions))
	for i := range reactions {
		responses = append(responses, mapToResponse(&reactions[i]))
	}
	return responses, nil
}

func (s *reactionService) UpdateType(ctx context.Context, actorID, reactionID uuid.UUID, kind string) (*dto.ReactionResponse, error) {
	if !entity.IsValidReactionKind(kind) {
		return nil, apperror.NewValidation("type",
			fmt.Sprintf("type must be one of: %s", strings.Join(entity.ReactionKinds, ", ")))
	}

	reaction, err := s.repo.FindByID(ctx, reactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperror.ErrNotFound
		}
		return nil, err
	}

	if reaction.AuthorID != actorID {
		return nil, apperror.ErrForbidden
	}

	reaction.Type = kind
	if err := s.repo.Save(ctx, reaction); err != nil {
		return nil, err
	}

	resp := mapToResponse(reaction)
	return &resp, nil
}

func (s *reactionService) Delete(ctx context.Context, actorID, reactionID uuid.UUID) error {
	reaction, err := s.repo.FindByID(ctx, reactionID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return apperror.ErrNotFound
		}
		return err
	}

	if reaction.AuthorID != actorID {
		return apperror.ErrForbidden
	}

	return s.repo.Delete(ctx, reactionID)
}

func mapToResponse(r *entity.Reaction) dto.ReactionResponse {
	return dto.ReactionResponse{
		ID:        r.ID,
		Type:      r.Type,
		CreatedAt: r.CreatedAt,
		Author: dto.AuthorResponse{
			ID:       r.Author.ID,
			Username: r.Author.Username,
			Email:    r.Author.Email,
		},
	}
}
