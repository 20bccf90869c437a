package auth

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/events"
	"taskboard/internal/repo"
)

var (
	ErrMissingFields      = errors.New("missing required fields")
	ErrInvalidEmail       = errors.New("invalid email format")
	ErrWeakPassword       = errors.New("password must be at least 8 characters")
	ErrPasswordTooLong    = errors.New("password must be at most 72 characters")
	ErrInvalidCredentials = errors.New("invalid email or password")
)

// Service registers users, checks passwords and turns session tokens back
// into users.
type Service struct {
	DB     *sql.DB
	Repo   repo.Repo
	Events events.Writer
	Hasher *PasswordHasher
	Tokens *TokenManager
	Now    func() time.Time
}

func NewService(db *sql.DB, hasher *PasswordHasher, tokens *TokenManager) Service {
	return Service{
		DB:     db,
		Repo:   repo.Repo{DB: db},
		Events: events.Writer{},
		Hasher: hasher,
		Tokens: tokens,
		Now:    time.Now,
	}
}

func (s Service) now() time.Time {
	if s.Now != nil {
		return s.Now()
	}
	return time.Now()
}

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s Service) Register(ctx context.Context, in RegisterInput) (domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := NormalizeEmail(in.Email)
	var missing []string
	if name == "" {
		missing = append(missing, "name")
	}
	if email == "" {
		missing = append(missing, "email")
	}
	if in.Password == "" {
		missing = append(missing, "password")
	}
	if len(missing) > 0 {
		return domain.User{}, fmt.Errorf("%w: %s", ErrMissingFields, strings.Join(missing, ", "))
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return domain.User{}, ErrInvalidEmail
	}
	if len(in.Password) < 8 {
		return domain.User{}, ErrWeakPassword
	}
	if len(in.Password) > 72 {
		return domain.User{}, ErrPasswordTooLong
	}
	exists, err := s.Repo.EmailExists(ctx, email)
	if err != nil {
		return domain.User{}, fmt.Errorf("check email: %w", err)
	}
	if exists {
		return domain.User{}, repo.ErrEmailTaken
	}
	hash, err := s.Hasher.Hash(in.Password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hash password: %w", err)
	}
	now := s.now().UTC()
	u := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return domain.User{}, err
	}
	defer tx.Rollback()
	if err := s.Repo.InsertUser(ctx, tx, u); err != nil {
		return domain.User{}, err
	}
	if err := s.Events.Append(ctx, tx, events.UserRegistered, u.ID, "user", u.ID, events.EventPayload{"email": u.Email}); err != nil {
		return domain.User{}, err
	}
	if err := tx.Commit(); err != nil {
		return domain.User{}, err
	}
	return u, nil
}

type Session struct {
	Token     string
	ExpiresAt time.Time
	User      domain.User
}

func (s Service) Login(ctx context.Context, email, password string) (Session, error) {
	email = NormalizeEmail(email)
	if email == "" || password == "" {
		return Session{}, fmt.Errorf("%w: email, password", ErrMissingFields)
	}
	u, err := s.Repo.GetUserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, fmt.Errorf("load user: %w", err)
	}
	if !s.Hasher.Verify(password, u.PasswordHash) {
		return Session{}, ErrInvalidCredentials
	}
	return s.IssueSession(u)
}

// IssueSession signs a token for an already verified user.
func (s Service) IssueSession(u domain.User) (Session, error) {
	token, exp, err := s.Tokens.Issue(u.ID, u.Email)
	if err != nil {
		return Session{}, fmt.Errorf("sign token: %w", err)
	}
	return Session{Token: token, ExpiresAt: exp, User: u}, nil
}

// Authenticate verifies token and loads its user. A valid token for a user
// that no longer exists is reported as ErrInvalidToken.
func (s Service) Authenticate(ctx context.Context, token string) (domain.User, error) {
	claims, err := s.Tokens.Verify(token)
	if err != nil {
		return domain.User{}, err
	}
	u, err := s.Repo.GetUserByID(ctx, claims.Subject)
	if errors.Is(err, repo.ErrNotFound) {
		return domain.User{}, ErrInvalidToken
	}
	if err != nil {
		return domain.User{}, fmt.Errorf("load user: %w", err)
	}
	return u, nil
}

func (s Service) UserByEmail(ctx context.Context, email string) (domain.User, error) {
	return s.Repo.GetUserByEmail(ctx, NormalizeEmail(email))
}
