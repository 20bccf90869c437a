package taskboardsdk

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"taskboard/internal/db"
	"taskboard/internal/engine"
	"taskboard/internal/engine/auth"
	"taskboard/internal/migrate"
	"taskboard/internal/server"
)

func newTestAPI(t *testing.T) *httptest.Server {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := auth.NewService(conn, auth.NewPasswordHasher(bcrypt.MinCost), auth.NewTokenManager("sdk-test-secret-value", time.Hour))
	handler, err := server.New(server.Config{
		Engine:   engine.New(conn, auth.ContextResolver{}, logger),
		BasePath: "/v1",
		Auth:     server.AuthConfig{Service: svc},
		Logger:   logger,
	})
	if err != nil {
		t.Fatalf("build handler: %v", err)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(func() {
		srv.Close()
		conn.Close()
	})
	return srv
}

func ptr[T any](v T) *T { return &v }

func TestClientRoundTrip(t *testing.T) {
	srv := newTestAPI(t)
	ctx := context.Background()
	c := New(srv.URL)

	if _, err := c.ListTasks(ctx, "all"); err == nil {
		t.Fatalf("expected error without login")
	} else {
		var apiErr *APIError
		if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusUnauthorized || apiErr.Message != "please log in" {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if _, err := c.Register(ctx, "Ann", "ann@example.com", "password123"); err != nil {
		t.Fatalf("register: %v", err)
	}
	u, err := c.Login(ctx, "ann@example.com", "password123")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if u.Email != "ann@example.com" || c.Token == "" {
		t.Fatalf("unexpected login result: %+v", u)
	}

	due := time.Now().UTC().Add(48 * time.Hour).Format("2006-01-02")
	task, err := c.CreateTask(ctx, TaskInput{Title: ptr("Ship"), Priority: ptr("high"), DueDate: ptr(due), EstimatedHours: ptr(1.5)})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if task.Status != "in-progress" || task.DueDate == nil {
		t.Fatalf("unexpected task: %+v", task)
	}

	upcoming, err := c.Upcoming(ctx, 3)
	if err != nil || len(upcoming) != 1 {
		t.Fatalf("upcoming: %v %+v", err, upcoming)
	}
	high, err := c.HighPriority(ctx, 0)
	if err != nil || len(high) != 1 {
		t.Fatalf("high priority: %v %+v", err, high)
	}

	task, err = c.UpdateTask(ctx, task.ID, TaskInput{ClearDueDate: true, ClearEstimatedHours: true})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if task.DueDate != nil || task.EstimatedHours != nil {
		t.Fatalf("expected cleared fields: %+v", task)
	}

	if task, err = c.ToggleTask(ctx, task.ID); err != nil || task.Status != "completed" {
		t.Fatalf("toggle: %v %+v", err, task)
	}
	stats, err := c.Statistics(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats.Total != 1 || stats.CompletionPercentage != 100 {
		t.Fatalf("unexpected stats: %+v", stats)
	}

	if err := c.DeleteTask(ctx, task.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	_, err = c.GetTask(ctx, task.ID)
	var apiErr *APIError
	if !errors.As(err, &apiErr) || apiErr.StatusCode != http.StatusNotFound {
		t.Fatalf("expected 404 after delete, got %v", err)
	}
	recent, err := c.Recent(ctx, 3)
	if err != nil || len(recent) != 0 {
		t.Fatalf("recent after delete: %v %+v", err, recent)
	}
}
