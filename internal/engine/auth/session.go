package auth

import (
	"context"

	"taskboard/internal/domain"
)

// Resolver yields the authenticated caller, or false when there is none.
type Resolver interface {
	CurrentUser(ctx context.Context) (domain.User, bool)
}

type userKey struct{}

// WithUser attaches an authenticated identity to ctx. Transports call it
// after verifying credentials.
func WithUser(ctx context.Context, u domain.User) context.Context {
	return context.WithValue(ctx, userKey{}, u)
}

func UserFromContext(ctx context.Context) (domain.User, bool) {
	u, ok := ctx.Value(userKey{}).(domain.User)
	if !ok || u.ID == "" {
		return domain.User{}, false
	}
	return u, true
}

// ContextResolver resolves the identity placed in the context by WithUser.
type ContextResolver struct{}

func (ContextResolver) CurrentUser(ctx context.Context) (domain.User, bool) {
	return UserFromContext(ctx)
}
