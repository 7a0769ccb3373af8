package user

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/quypq/blogapi/internal/entity"
	"github.com/quypq/blogapi/internal/mailer"
	"github.com/quypq/blogapi/internal/modules/user/dto"
	"github.com/quypq/blogapi/pkg/apperror"
	"gorm.io/gorm"
)

type fakeUserRepo struct {
	byID       map[uuid.UUID]*entity.User
	byUsername map[string]*entity.User
	byEmail    map[string]*entity.User
}

func newFakeUserRepo() *fakeUserRepo {
	return &fakeUserRepo{
		byID:       make(map[uuid.UUID]*entity.User),
		byUsername: make(map[string]*entity.User),
		byEmail:    make(map[string]*entity.User),
	}
}

func (r *fakeUserRepo) Create(ctx context.Context, user *entity.User) error {
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	r.byID[user.ID] = user
	r.byUsername[user.Username] = user
	r.byEmail[user.Email] = user
	return nil
}

func (r *fakeUserRepo) FindByID(ctx context.Context, id uuid.UUID) (*entity.User, error) {
	if u, ok := r.byID[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByUsername(ctx context.Context, username string) (*entity.User, error) {
	if u, ok := r.byUsername[username]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*entity.User, error) {
	if u, ok := r.byEmail[email]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type recordingDispatcher struct {
	tasks []mailer.Task
}

func (d *recordingDispatcher) Dispatch(ctx context.Context, task mailer.Task) {
	d.tasks = append(d.tasks, task)
}

func register(t *testing.T, svc AuthService) *dto.AuthResponse {
	t.Helper()
	resp, err := svc.Register(context.Background(), dto.RegisterRequest{
		Username: "alice",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	return resp
}

func TestRegisterIssuesTokensAndWelcomeMail(t *testing.T) {
	repo := newFakeUserRepo()
	dispatcher := &recordingDispatcher{}
	svc := NewAuthService(repo, dispatcher, "change-me", time.Hour, 7*24*time.Hour)

	resp := register(t, svc)

	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Errorf("both tokens must be issued")
	}
	if resp.TokenType != "Bearer" {
		t.Errorf("token type = %q", resp.TokenType)
	}
	if resp.User.PasswordHash == "s3cret-pass" {
		t.Errorf("password must be stored hashed")
	}
	if len(dispatcher.tasks) != 1 || dispatcher.tasks[0].Name != mailer.TaskWelcome {
		t.Errorf("expected one welcome task, got %+v", dispatcher.tasks)
	}
}

func TestRegisterRejectsDuplicates(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, &recordingDispatcher{}, "change-me", time.Hour, 7*24*time.Hour)
	register(t, svc)

	_, err := svc.Register(context.Background(), dto.RegisterRequest{
		Username: "alice",
		Email:    "other@example.com",
		Password: "s3cret-pass",
	})
	var validationErr *apperror.ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields["username"]; !ok {
		t.Errorf("duplicate username should be keyed on username: %+v", validationErr.Fields)
	}

	_, err = svc.Register(context.Background(), dto.RegisterRequest{
		Username: "alice2",
		Email:    "alice@example.com",
		Password: "s3cret-pass",
	})
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected validation error, got %v", err)
	}
	if _, ok := validationErr.Fields["email"]; !ok {
		t.Errorf("duplicate email should be keyed on email: %+v", validationErr.Fields)
	}
}

func TestLogin(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, &recordingDispatcher{}, "change-me", time.Hour, 7*24*time.Hour)
	register(t, svc)

	resp, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "s3cret-pass"})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if resp.AccessToken == "" {
		t.Errorf("access token missing")
	}

	if _, err := svc.Login(context.Background(), dto.LoginRequest{Username: "alice", Password: "wrong"}); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("wrong password should be unauthorized, got %v", err)
	}
	if _, err := svc.Login(context.Background(), dto.LoginRequest{Username: "nobody", Password: "s3cret-pass"}); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("unknown user should be unauthorized, got %v", err)
	}
}

func TestConfiguredTTLsAreUsed(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, &recordingDispatcher{}, "change-me", 30*time.Minute, 48*time.Hour)

	if svc.RefreshTokenTTL() != 48*time.Hour {
		t.Errorf("refresh TTL = %v, want 48h", svc.RefreshTokenTTL())
	}

	resp := register(t, svc)
	wantExpiry := time.Now().Add(30 * time.Minute).Unix()
	if diff := resp.ExpiresIn - wantExpiry; diff < -5 || diff > 5 {
		t.Errorf("access expiry %d not within 5s of %d", resp.ExpiresIn, wantExpiry)
	}
}

func TestRefreshRoundTrip(t *testing.T) {
	repo := newFakeUserRepo()
	svc := NewAuthService(repo, &recordingDispatcher{}, "change-me", time.Hour, 7*24*time.Hour)
	first := register(t, svc)

	resp, err := svc.Refresh(context.Background(), first.RefreshToken)
	if err != nil {
		t.Fatalf("refresh failed: %v", err)
	}
	if resp.AccessToken == "" || resp.RefreshToken == "" {
		t.Errorf("refresh must issue a new token pair")
	}
	if resp.User.ID != first.User.ID {
		t.Errorf("refresh resolved the wrong user")
	}

	if _, err := svc.Refresh(context.Background(), "not-a-jwt"); !errors.Is(err, apperror.ErrUnauthorized) {
		t.Errorf("garbage refresh token should be unauthorized, got %v", err)
	}
}
