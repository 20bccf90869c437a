package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"taskboard/internal/config"
	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
)

// App holds everything a command or the HTTP server needs for one workspace.
type App struct {
	DB     *sql.DB
	Config *config.Config
	Logger *slog.Logger
	Engine engine.Engine
	Auth   auth.Service
}

// Open opens the workspace database, applies pending migrations and wires
// the task engine and the auth service.
func Open(ctx context.Context, workspace string, cfg *config.Config, logOut io.Writer) (*App, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	logger := NewLogger(logOut, cfg.Log.Level, cfg.Log.Format)
	conn, err := db.Open(db.Config{Workspace: workspace})
	if err != nil {
		return nil, err
	}
	if err := migrate.MigrateContext(ctx, conn); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if cfg.Auth.JWTSecret == config.DevSecret {
		logger.Warn("using the built-in development jwt secret; set auth.jwt_secret or TASKBOARD_JWT_SECRET")
	}
	hasher := auth.NewPasswordHasher(cfg.Auth.BcryptCost)
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.TokenTTL)
	return &App{
		DB:     conn,
		Config: cfg,
		Logger: logger,
		Engine: engine.New(conn, auth.ContextResolver{}, logger),
		Auth:   auth.NewService(conn, hasher, tokens),
	}, nil
}

func (a *App) Close() error {
	return a.DB.Close()
}

// AsUser returns ctx carrying the local user registered under email.
func (a *App) AsUser(ctx context.Context, email string) (context.Context, error) {
	if strings.TrimSpace(email) == "" {
		return nil, fmt.Errorf("user not specified; use --user or TASKBOARD_USER")
	}
	u, err := a.Auth.UserByEmail(ctx, email)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, fmt.Errorf("no user registered with email %s", email)
	}
	if err != nil {
		return nil, err
	}
	return auth.WithUser(ctx, u), nil
}

// NewLogger builds a slog logger; unknown levels fall back to info.
func NewLogger(w io.Writer, level, format string) *slog.Logger {
	if w == nil {
		w = io.Discard
	}
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}
	opts := &slog.HandlerOptions{Level: lvl}
	if format == "json" {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
