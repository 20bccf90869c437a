package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path"
	"strings"

	"github.com/danielgtaylor/huma/v2"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
)

type AuthConfig struct {
	Service    auth.Service
	CookieName string
	// SecureCookie marks the session cookie Secure; enable behind TLS.
	SecureCookie bool
	Logger       *slog.Logger
}

func (c AuthConfig) logger() *slog.Logger {
	if c.Logger != nil {
		return c.Logger
	}
	return slog.Default()
}

func (c AuthConfig) cookieName() string {
	if c.CookieName != "" {
		return c.CookieName
	}
	return "taskboard_session"
}

func bearerToken(authz string) (string, bool) {
	parts := strings.Fields(authz)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "bearer") {
		return "", false
	}
	return parts[1], true
}

// sessionToken picks the credential of a request: the Authorization header
// wins over the session cookie. ok is false when neither is present.
func sessionToken(req *http.Request, cookieName string) (token string, ok bool, malformed bool) {
	if authz := strings.TrimSpace(req.Header.Get("Authorization")); authz != "" {
		t, ok := bearerToken(authz)
		return t, true, !ok
	}
	if c, err := req.Cookie(cookieName); err == nil && c.Value != "" {
		return c.Value, true, false
	}
	return "", false, false
}

// resolveSession returns the user of a request that carries a valid session.
func resolveSession(ctx context.Context, req *http.Request, cfg AuthConfig) (domain.User, bool) {
	token, ok, malformed := sessionToken(req, cfg.cookieName())
	if !ok || malformed {
		return domain.User{}, false
	}
	u, err := cfg.Service.Authenticate(ctx, token)
	if err != nil {
		return domain.User{}, false
	}
	return u, true
}

// newAuthMiddleware attaches the caller to API requests. Requests without
// credentials go through anonymously and the engine refuses them; requests
// with bad credentials stop here.
func newAuthMiddleware(basePath string, cfg AuthConfig) func(http.Handler) http.Handler {
	public := map[string]bool{
		path.Join(basePath, "health"):        true,
		path.Join(basePath, "auth/register"): true,
		path.Join(basePath, "auth/login"):    true,
		path.Join(basePath, "openapi.json"):  true,
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			if !strings.HasPrefix(req.URL.Path, basePath+"/") || public[req.URL.Path] {
				next.ServeHTTP(w, req)
				return
			}
			token, ok, malformed := sessionToken(req, cfg.cookieName())
			if !ok {
				next.ServeHTTP(w, req)
				return
			}
			if malformed {
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			}
			u, err := cfg.Service.Authenticate(req.Context(), token)
			switch {
			case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrExpiredToken):
				cfg.logger().InfoContext(req.Context(), "rejected credentials", "path", req.URL.Path, "error", err)
				respondStatusError(w, newAPIError(http.StatusUnauthorized, "invalid_credentials", "invalid credentials", nil))
				return
			case err != nil:
				cfg.logger().ErrorContext(req.Context(), "resolve session", "path", req.URL.Path, "error", err)
				respondStatusError(w, newAPIError(http.StatusInternalServerError, "internal_error", genericFailure, nil))
				return
			}
			next.ServeHTTP(w, req.WithContext(auth.WithUser(req.Context(), u)))
		})
	}
}

func respondStatusError(w http.ResponseWriter, err huma.StatusError) {
	status := http.StatusInternalServerError
	if e, ok := err.(interface{ GetStatus() int }); ok {
		status = e.GetStatus()
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(err)
}
