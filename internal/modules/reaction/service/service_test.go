package reaction

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/mailer"
	"github.com/quypq/blogapi/pkg/apperror"
	"gorm.io/gorm"
)

type fakeReactionRepo struct {
	byKey map[string]*entity.Reaction
	byID  map[uuid.UUID]*entity.Reaction
}

func newFakeReactionRepo() *fakeReactionRepo {
	return &fakeReactionRepo{
		byKey: make(map[string]*entity.Reaction),
		byID:  make(map[uuid.UUID]*entity.Reaction),
	}
}

func key(authorID uuid.UUID, targetType string, targetID uuid.UUID) string {
	return authorID.String() + ":" + targetType + ":" + targetID.String()
}

func (r *fakeReactionRepo) Upsert(ctx context.Context, reaction *entity.Reaction) (string, bool, error) {
	k := key(reaction.AuthorID, reaction.TargetType, reaction.TargetID)
	if existing, ok := r.byKey[k]; ok {
		oldType := existing.Type
		existing.Type = reaction.Type
		reaction.ID = existing.ID
		reaction.CreatedAt = existing.CreatedAt
		return oldType, false, nil
	}

	reaction.ID = uuid.New()
	stored := *reaction
	r.byKey[k] = &stored
	r.byID[reaction.ID] = &stored
	return "", true, nil
}

func (r *fakeReactionRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Reaction, error) {
	if reaction, ok := r.byID[id]; ok {
		return reaction, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeReactionRepo) FindByTarget(ctx context.Context, targetType string, targetID uuid.UUID) ([]entity.Reaction, error) {
	var result []entity.Reaction
	for _, reaction := range r.byID {
		if reaction.TargetType == targetType && reaction.TargetID == targetID {
			result = append(result, *reaction)
		}
	}
	return result, nil
}

func (r *fakeReactionRepo) FindByTargets(ctx context.Context, targetType string, targetIDs []uuid.UUID) (map[uuid.UUID][]entity.Reaction, error) {
	result := make(map[uuid.UUID][]entity.Reaction)
	for _, id := range targetIDs {
		reactions, _ := r.FindByTarget(ctx, targetType, id)
		if len(reactions) > 0 {
			result[id] = reactions
		}
	}
	return result, nil
}

func (r *fakeReactionRepo) Save(ctx context.Context, reaction *entity.Reaction) error {
	if stored, ok := r.byID[reaction.ID]; ok {
		*stored = *reaction
		return nil
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeReactionRepo) Delete(ctx context.Context, id uuid.UUID) error {
	reaction, ok := r.byID[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.byKey, key(reaction.AuthorID, reaction.TargetType, reaction.TargetID))
	delete(r.byID, id)
	return nil
}

type fakeDispatcher struct {
	mu    sync.Mutex
	tasks []mailer.Task
}

func (d *fakeDispatcher) Dispatch(ctx context.Context, task mailer.Task) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.tasks = append(d.tasks, task)
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.tasks)
}

type fakeNotificationService struct{}

func (fakeNotificationService) CreateNotification(ctx context.Context, n *entity.Notification) error {
	return nil
}
func (fakeNotificationService) GetNotifications(ctx context.Context, userID uuid.UUID, limit, offset int) ([]entity.Notification, error) {
	return nil, nil
}
func (fakeNotificationService) MarkAsRead(ctx context.Context, userID, id uuid.UUID) error {
	return nil
}
func (fakeNotificationService) MarkAllAsRead(ctx context.Context, id uuid.UUID) error    { return nil }
func (fakeNotificationService) UnreadCount(ctx context.Context, id uuid.UUID) (int64, error) {
	return 0, nil
}

type fakePostRepo struct {
	posts map[uuid.UUID]*entity.Post
}

func (r *fakePostRepo) Create(ctx context.Context, post *entity.Post) error { return nil }
func (r *fakePostRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Post, error) {
	if post, ok := r.posts[id]; ok {
		return post, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (r *fakePostRepo) FindAll(ctx context.Context, offset, limit int) ([]*entity.Post, int64, error) {
	return nil, 0, nil
}
func (r *fakePostRepo) Save(ctx context.Context, post *entity.Post) error { return nil }
func (r *fakePostRepo) Delete(ctx context.Context, id uuid.UUID) error    { return nil }

type fakeCommentRepo struct {
	comments map[uuid.UUID]*entity.Comment
}

func (r *fakeCommentRepo) Create(ctx context.Context, c *entity.Comment) error { return nil }
func (r *fakeCommentRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.Comment, error) {
	if c, ok := r.comments[id]; ok {
		return c, nil
	}
	return nil, gorm.ErrRecordNotFound
}
func (r *fakeCommentRepo) FindByPost(ctx context.Context, postID uuid.UUID) ([]*entity.Comment, error) {
	return nil, nil
}
func (r *fakeCommentRepo) FindReplies(ctx context.Context, parentID uuid.UUID) ([]*entity.Comment, error) {
	return nil, nil
}
func (r *fakeCommentRepo) Save(ctx context.Context, c *entity.Comment) error { return nil }
func (r *fakeCommentRepo) Delete(ctx context.Context, id uuid.UUID) error    { return nil }

func TestShouldNotify(t *testing.T) {
	cases := []struct {
		name    string
		created bool
		oldKind string
		newKind string
		want    bool
	}{
		{"new reaction", true, "", "like", true},
		{"kind changed", false, "like", "love", true},
		{"same kind resubmitted", false, "like", "like", false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ShouldNotify(tc.created, tc.oldKind, tc.newKind); got != tc.want {
				t.Errorf("ShouldNotify(%v, %q, %q) = %v, want %v", tc.created, tc.oldKind, tc.newKind, got, tc.want)
			}
		})
	}
}

func newTestService(postAuthorID uuid.UUID, postID uuid.UUID) (ReactionService, *fakeReactionRepo, *fakeDispatcher) {
	repo := newFakeReactionRepo()
	dispatcher := &fakeDispatcher{}
	posts := &fakePostRepo{posts: map[uuid.UUID]*entity.Post{
		postID: {ID: postID, AuthorID: postAuthorID, Title: "a post"},
	}}
	comments := &fakeCommentRepo{comments: map[uuid.UUID]*entity.Comment{}}
	svc := NewReactionService(repo, dispatcher, fakeNotificationService{}, posts, comments)
	return svc, repo, dispatcher
}

func TestUpsertCreatesAndNotifies(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	actorID := uuid.New()
	svc, _, dispatcher := newTestService(postAuthorID, postID)

	result, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Created {
		t.Errorf("first reaction should be created")
	}
	if !result.Notified {
		t.Errorf("first reaction should notify")
	}
	if dispatcher.count() != 1 {
		t.Errorf("expected 1 mail task, got %d", dispatcher.count())
	}
}

func TestUpsertSameKindDoesNotNotifyAgain(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	actorID := uuid.New()
	svc, _, dispatcher := newTestService(postAuthorID, postID)

	if _, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	result, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Created {
		t.Errorf("second identical reaction must not create a new row")
	}
	if result.Notified {
		t.Errorf("re-submitting the same kind must not notify")
	}
	if dispatcher.count() != 1 {
		t.Errorf("expected 1 mail task total, got %d", dispatcher.count())
	}
}

func TestUpsertChangedKindNotifies(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	actorID := uuid.New()
	svc, repo, dispatcher := newTestService(postAuthorID, postID)

	first, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	second, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "love")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if second.Created {
		t.Errorf("changing the kind must reuse the existing row")
	}
	if !second.Notified {
		t.Errorf("a changed kind must notify")
	}
	if second.Reaction.ID != first.Reaction.ID {
		t.Errorf("row identity changed on upsert: %s vs %s", first.Reaction.ID, second.Reaction.ID)
	}
	if dispatcher.count() != 2 {
		t.Errorf("expected 2 mail tasks, got %d", dispatcher.count())
	}

	stored, err := repo.FindByID(context.Background(), first.Reaction.ID)
	if err != nil {
		t.Fatalf("reaction disappeared: %v", err)
	}
	if stored.Type != "love" {
		t.Errorf("stored type = %q, want love", stored.Type)
	}
}

func TestUpsertSelfReactionSkipsNotification(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	svc, _, dispatcher := newTestService(postAuthorID, postID)

	result, err := svc.Upsert(context.Background(), postAuthorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.Created {
		t.Errorf("self reaction is still stored")
	}
	if result.Notified {
		t.Errorf("reacting to your own post must not notify")
	}
	if dispatcher.count() != 0 {
		t.Errorf("expected no mail tasks, got %d", dispatcher.count())
	}
}

func TestUpsertRejectsUnknownKind(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	svc, _, _ := newTestService(postAuthorID, postID)

	_, err := svc.Upsert(context.Background(), uuid.New(), entity.TargetPost, postID, "meh")
	var validationErr *apperror.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields["type"]; !ok {
		t.Errorf("validation error should be keyed on type: %+v", validationErr.Fields)
	}
}

func TestUpsertUnknownTarget(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	svc, _, _ := newTestService(postAuthorID, postID)

	if _, err := svc.Upsert(context.Background(), uuid.New(), entity.TargetPost, uuid.New(), "like"); !errors.Is(err, apperror.ErrNotFound) {
		t.Errorf("missing post should map to not found, got %v", err)
	}
	if _, err := svc.Upsert(context.Background(), uuid.New(), "thread", postID, "like"); !errors.Is(err, apperror.ErrBadRequest) {
		t.Errorf("unregistered target type should be a bad request, got %v", err)
	}
}

func TestUpdateTypeAuthorOnly(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	actorID := uuid.New()
	svc, _, _ := newTestService(postAuthorID, postID)

	result, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, err := svc.UpdateType(context.Background(), uuid.New(), result.Reaction.ID, "love"); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("another user must not update the reaction, got %v", err)
	}

	updated, err := svc.UpdateType(context.Background(), actorID, result.Reaction.ID, "wow")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Type != "wow" {
		t.Errorf("type = %q, want wow", updated.Type)
	}
}

func TestDeleteAuthorOnly(t *testing.T) {
	postAuthorID := uuid.New()
	postID := uuid.New()
	actorID := uuid.New()
	svc, repo, _ := newTestService(postAuthorID, postID)

	result, err := svc.Upsert(context.Background(), actorID, entity.TargetPost, postID, "like")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if err := svc.Delete(context.Background(), uuid.New(), result.Reaction.ID); !errors.Is(err, apperror.ErrForbidden) {
		t.Errorf("another user must not delete the reaction, got %v", err)
	}
	if err := svc.Delete(context.Background(), actorID, result.Reaction.ID); err != nil {
		t.Fatalf("author delete failed: %v", err)
	}
	if _, err := repo.FindByID(context.Background(), result.Reaction.ID); !errors.Is(err, gorm.ErrRecordNotFound) {
		t.Errorf("reaction should be gone")
	}
}
