package auth

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
)

func newTestService(t *testing.T) Service {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return NewService(conn, NewPasswordHasher(bcrypt.MinCost), NewTokenManager("test-secret", time.Hour))
}

func TestRegisterValidation(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	if _, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "password123"}); err != nil {
		t.Fatalf("seed register: %v", err)
	}

	tests := []struct {
		name string
		in   RegisterInput
		want error
	}{
		{"missing name", RegisterInput{Email: "a@example.com", Password: "password123"}, ErrMissingFields},
		{"missing everything", RegisterInput{}, ErrMissingFields},
		{"blank email", RegisterInput{Name: "A", Email: "   ", Password: "password123"}, ErrMissingFields},
		{"bad email", RegisterInput{Name: "A", Email: "not-an-email", Password: "password123"}, ErrInvalidEmail},
		{"short password", RegisterInput{Name: "A", Email: "a@example.com", Password: "1234567"}, ErrWeakPassword},
		{"long password", RegisterInput{Name: "A", Email: "a@example.com", Password: strings.Repeat("x", 73)}, ErrPasswordTooLong},
		{"duplicate email", RegisterInput{Name: "Ann 2", Email: "ANN@example.com ", Password: "password123"}, repo.ErrEmailTaken},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Register(ctx, tt.in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("Register() error = %v, want %v", err, tt.want)
			}
		})
	}
}

func TestRegisterStoresHashNotPlaintext(t *testing.T) {
	svc := newTestService(t)
	u, err := svc.Register(context.Background(), RegisterInput{Name: "Ann", Email: "Ann@Example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if u.Email != "ann@example.com" {
		t.Fatalf("email not normalized: %q", u.Email)
	}
	if u.PasswordHash == "password123" || !svc.Hasher.Verify("password123", u.PasswordHash) {
		t.Fatalf("password not hashed correctly")
	}
	var stored string
	if err := svc.DB.QueryRow(`SELECT password_hash FROM users WHERE id=?`, u.ID).Scan(&stored); err != nil {
		t.Fatalf("read hash: %v", err)
	}
	if strings.Contains(stored, "password123") {
		t.Fatalf("plaintext persisted")
	}
}

func TestLoginAndAuthenticate(t *testing.T) {
	svc := newTestService(t)
	ctx := context.Background()
	u, err := svc.Register(ctx, RegisterInput{Name: "Ann", Email: "ann@example.com", Password: "password123"})
	if err != nil {
		t.Fatalf("register: %v", err)
	}

	if _, err := svc.Login(ctx, "ann@example.com", "wrong-password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "password123"); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected invalid credentials for unknown email, got %v", err)
	}

	sess, err := svc.Login(ctx, " ANN@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	got, err := svc.Authenticate(ctx, sess.Token)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != u.ID {
		t.Fatalf("expected user %s, got %s", u.ID, got.ID)
	}
	if _, err := svc.Authenticate(ctx, sess.Token+"x"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for tampered token, got %v", err)
	}
}

func TestTokenExpiryAndForeignSecret(t *testing.T) {
	tm := NewTokenManager("secret-a", time.Minute)
	start := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	tm.now = func() time.Time { return start }
	token, exp, err := tm.Issue("user-1", "a@example.com")
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	if !exp.Equal(start.Add(time.Minute)) {
		t.Fatalf("unexpected expiry %v", exp)
	}
	claims, err := tm.Verify(token)
	if err != nil || claims.Subject != "user-1" {
		t.Fatalf("verify: %+v %v", claims, err)
	}

	other := NewTokenManager("secret-b", time.Minute)
	other.now = tm.now
	if _, err := other.Verify(token); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken for foreign secret, got %v", err)
	}

	tm.now = func() time.Time { return start.Add(2 * time.Minute) }
	if _, err := tm.Verify(token); !errors.Is(err, ErrExpiredToken) {
		t.Fatalf("expected ErrExpiredToken, got %v", err)
	}
}

func TestContextResolver(t *testing.T) {
	var r Resolver = ContextResolver{}
	if _, ok := r.CurrentUser(context.Background()); ok {
		t.Fatalf("expected no user on empty context")
	}
	ctx := WithUser(context.Background(), domain.User{ID: "u1"})
	u, ok := r.CurrentUser(ctx)
	if !ok || u.ID != "u1" {
		t.Fatalf("expected u1, got %+v %v", u, ok)
	}
}
