package service

import (
	"context"
	"testing"
	"time"

	"github.com/aryan0dhankhar/estatebooks/internal/domain"
	"github.com/aryan0dhankhar/estatebooks/internal/security/auth"
)

type memUserRepo struct {
	byID       map[string]*domain.User
	byEmail    map[string]*domain.User
	byUsername map[string]*domain.User
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{byID: map[string]*domain.User{}, byEmail: map[string]*domain.User{}, byUsername: map[string]*domain.User{}}
}

func (m *memUserRepo) Create(_ context.Context, u *domain.User) error {
	if u.ID == "" {
		u.ID = "u-" + u.Email
	}
	u.CreatedAt = time.Now()
	u.UpdatedAt = u.CreatedAt
	m.byID[u.ID] = u
	m.byEmail[u.Email] = u
	m.byUsername[u.Username] = u
	return nil
}
func (m *memUserRepo) GetByID(_ context.Context, id string) (*domain.User, error) {
	if u, ok := m.byID[id]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memUserRepo) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	if u, ok := m.byEmail[email]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memUserRepo) GetByUsername(_ context.Context, username string) (*domain.User, error) {
	if u, ok := m.byUsername[username]; ok {
		return u, nil
	}
	return nil, domain.ErrNotFound
}
func (m *memUserRepo) UpdatePassword(_ context.Context, id, hash string) error {
	u, ok := m.byID[id]
	if !ok {
		return domain.ErrNotFound
	}
	u.PasswordHash = hash
	u.UpdatedAt = time.Now()
	return nil
}

func newTestAuthService(repo domain.UserRepository) *AuthService {
	return NewAuthService(repo, auth.NewTokenManager("secret", "estatebooks", 15*time.Minute), nil)
}

func TestRegisterAndLogin(t *testing.T) {
	ctx := context.Background()
	s := newTestAuthService(newMemUserRepo())

	r, err := s.Register(ctx, "alice@example.com", "alice", "Password123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}
	if r.UserID == "" || r.Token == "" {
		t.Fatalf("expected user id and token")
	}

	if _, err := s.Register(ctx, "alice@example.com", "alice2", "Password123"); err != ErrAlreadyRegistered {
		t.Fatalf("expected duplicate email error, got %v", err)
	}
	if _, err := s.Register(ctx, "bob@example.com", "bob", "short"); err != ErrWeakPassword {
		t.Fatalf("expected weak password error, got %v", err)
	}

	lr, err := s.Login(ctx, "alice@example.com", "Password123")
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}
	if lr.Token == "" || lr.ExpiresIn != 900 {
		t.Fatalf("unexpected login result: %+v", lr)
	}

	if _, err := s.Login(ctx, "alice@example.com", "Wrong"); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials error, got %v", err)
	}
	if _, err := s.Login(ctx, "nobody@example.com", "Password123"); err != ErrInvalidCredentials {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}
}

func TestChangePassword(t *testing.T) {
	ctx := context.Background()
	s := newTestAuthService(newMemUserRepo())
	reg, err := s.Register(ctx, "bob@example.com", "bob", "OldPass123")
	if err != nil {
		t.Fatalf("register failed: %v", err)
	}

	if err := s.ChangePassword(ctx, reg.UserID, "bad", "NewPass123"); err == nil {
		t.Fatalf("expected wrong old password error")
	}
	if err := s.ChangePassword(ctx, reg.UserID, "OldPass123", "NewPass123"); err != nil {
		t.Fatalf("change password failed: %v", err)
	}
	if _, err := s.Login(ctx, "bob@example.com", "OldPass123"); err == nil {
		t.Fatalf("expected old password to fail after change")
	}
	if _, err := s.Login(ctx, "bob@example.com", "NewPass123"); err != nil {
		t.Fatalf("login with new password failed: %v", err)
	}

	me, err := s.Me(ctx, reg.UserID)
	if err != nil || me.Email != "bob@example.com" {
		t.Fatalf("me returned %v, %v", me, err)
	}
}
