package notification

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/pkg/apperror"
	"gorm.io/gorm"
)

type fakeNotificationRepo struct {
	notifications map[uuid.UUID]*entity.Notification
}

func newFakeNotificationRepo() *fakeNotificationRepo {
	return &fakeNotificationRepo{notifications: make(map[uuid.UUID]*entity.Notification)}
}

func (r *fakeNotificationRepo) Create(ctx context.Context, n *entity.Notification) error {
	if n.ID == uuid.Nil {
		n.ID = uuid.New()
	}
	r.notifications[n.ID] = n
	return nil
}

func (r *fakeNotificationRepo) GetByUserID(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	var result []entity.Notification
	for _, n := range r.notifications {
		if n.UserID == userID {
			result = append(result, *n)
		}
	}
	return result, nil
}

func (r *fakeNotificationRepo) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	n, ok := r.notifications[id]
	if !ok || n.UserID != userID {
		return gorm.ErrRecordNotFound
	}
	n.IsRead = true
	return nil
}

func (r *fakeNotificationRepo) MarkAllAsRead(ctx context.Context, userID uuid.UUID) error {
	for _, n := range r.notifications {
		if n.UserID == userID {
			n.IsRead = true
		}
	}
	return nil
}

func (r *fakeNotificationRepo) UnreadCount(ctx context.Context, userID uuid.UUID) (int64, error) {
	var count int64
	for _, n := range r.notifications {
		if n.UserID == userID && !n.IsRead {
			count++
		}
	}
	return count, nil
}

func TestMarkAsReadOwnerOnly(t *testing.T) {
	repo := newFakeNotificationRepo()
	svc := NewNotificationService(repo, nil)

	ownerID := uuid.New()
	notif := &entity.Notification{
		UserID:  ownerID,
		ActorID: uuid.New(),
		Type:    "new_comment",
	}
	if err := svc.CreateNotification(context.Background(), notif); err != nil {
		t.Fatalf("create failed: %v", err)
	}

	if err := svc.MarkAsRead(context.Background(), uuid.New(), notif.ID); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("another user must not mark the notification read, got %v", err)
	}
	if repo.notifications[notif.ID].IsRead {
		t.Fatalf("notification was marked read by a non-owner")
	}

	if err := svc.MarkAsRead(context.Background(), ownerID, notif.ID); err != nil {
		t.Fatalf("owner mark-as-read failed: %v", err)
	}
	if !repo.notifications[notif.ID].IsRead {
		t.Errorf("notification should be read")
	}
}

func TestMarkAsReadMissingNotification(t *testing.T) {
	svc := NewNotificationService(newFakeNotificationRepo(), nil)
	if err := svc.MarkAsRead(context.Background(), uuid.New(), uuid.New()); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing notification should map to not found, got %v", err)
	}
}
