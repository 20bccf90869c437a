package repo_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"taskboard/internal/db"
	"taskboard/internal/domain"
	"taskboard/internal/migrate"
	"taskboard/internal/repo"
)

var base = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

func newTestRepo(t *testing.T) repo.Repo {
	t.Helper()
	conn, err := db.Open(db.Config{Workspace: t.TempDir()})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	if err := migrate.Migrate(conn); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	r := repo.Repo{DB: conn}
	for _, id := range []string{"alice", "bob"} {
		u := domain.User{ID: id, Name: id, Email: id + "@example.com", PasswordHash: "x", CreatedAt: base, UpdatedAt: base}
		if err := r.InsertUser(context.Background(), nil, u); err != nil {
			t.Fatalf("insert user %s: %v", id, err)
		}
	}
	return r
}

func seedTask(t *testing.T, r repo.Repo, owner, id string, status domain.Status, updated time.Time) domain.Task {
	t.Helper()
	task := domain.Task{
		ID: id, OwnerID: owner, Title: "task " + id, Status: status, Priority: domain.PriorityMedium,
		CreatedAt: base, UpdatedAt: updated,
	}
	if err := r.InsertTask(context.Background(), nil, task); err != nil {
		t.Fatalf("insert task %s: %v", id, err)
	}
	return task
}

func TestListTasksOrderAndOwnerScope(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, r, "alice", "a1", domain.StatusInProgress, base.Add(time.Nanosecond))
	seedTask(t, r, "alice", "a2", domain.StatusCompleted, base.Add(2*time.Nanosecond))
	seedTask(t, r, "alice", "a3", domain.StatusInProgress, base.Add(time.Hour))
	seedTask(t, r, "bob", "b1", domain.StatusInProgress, base.Add(2*time.Hour))

	tasks, err := r.ListTasks(ctx, repo.TaskFilters{OwnerID: "alice"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	var ids []string
	for _, task := range tasks {
		ids = append(ids, task.ID)
	}
	want := []string{"a3", "a2", "a1"}
	if len(ids) != len(want) {
		t.Fatalf("expected %v, got %v", want, ids)
	}
	for i := range want {
		if ids[i] != want[i] {
			t.Fatalf("expected %v, got %v", want, ids)
		}
	}

	done, err := r.ListTasks(ctx, repo.TaskFilters{OwnerID: "alice", Status: domain.StatusCompleted})
	if err != nil {
		t.Fatalf("list completed: %v", err)
	}
	if len(done) != 1 || done[0].ID != "a2" {
		t.Fatalf("unexpected completed set: %+v", done)
	}

	if _, err := r.ListTasks(ctx, repo.TaskFilters{}); !errors.Is(err, repo.ErrNoOwner) {
		t.Fatalf("expected ErrNoOwner, got %v", err)
	}
}

func TestFindTaskHidesForeignTasks(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, r, "alice", "a1", domain.StatusInProgress, base)

	lookup, err := r.FindTask(ctx, nil, "alice", "a1")
	if err != nil {
		t.Fatalf("find own: %v", err)
	}
	if task, ok := lookup.Task(); !ok || task.ID != "a1" {
		t.Fatalf("expected own task, got %+v %v", task, ok)
	}
	for _, tc := range []struct{ owner, id string }{{"bob", "a1"}, {"alice", "missing"}} {
		lookup, err := r.FindTask(ctx, nil, tc.owner, tc.id)
		if err != nil {
			t.Fatalf("find %s/%s: %v", tc.owner, tc.id, err)
		}
		if lookup != repo.NotFound {
			t.Fatalf("expected NotFound for %s/%s", tc.owner, tc.id)
		}
	}
}

func TestUpdateTaskPatchAndClear(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	due := base.Add(48 * time.Hour)
	hours := 2.5
	task := domain.Task{
		ID: "a1", OwnerID: "alice", Title: "draft", Status: domain.StatusInProgress, Priority: domain.PriorityLow,
		DueDate: &due, EstimatedHours: &hours, CreatedAt: base, UpdatedAt: base,
	}
	if err := r.InsertTask(ctx, nil, task); err != nil {
		t.Fatalf("insert: %v", err)
	}
	title := "final"
	later := base.Add(time.Minute)
	got, err := r.UpdateTask(ctx, nil, "alice", "a1", repo.TaskPatch{Title: &title, ClearDueDate: true}, later)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if got.Title != "final" || got.DueDate != nil {
		t.Fatalf("patch not applied: %+v", got)
	}
	if got.EstimatedHours == nil || *got.EstimatedHours != 2.5 {
		t.Fatalf("untouched field changed: %+v", got.EstimatedHours)
	}
	if !got.UpdatedAt.Equal(later) || !got.CreatedAt.Equal(base) {
		t.Fatalf("timestamps wrong: created %v updated %v", got.CreatedAt, got.UpdatedAt)
	}

	if _, err := r.UpdateTask(ctx, nil, "bob", "a1", repo.TaskPatch{Title: &title}, later); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for foreign update, got %v", err)
	}
}

func TestDeleteTaskIsOwnerScoped(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	seedTask(t, r, "alice", "a1", domain.StatusInProgress, base)

	ok, err := r.DeleteTask(ctx, nil, "bob", "a1")
	if err != nil || ok {
		t.Fatalf("foreign delete: ok=%v err=%v", ok, err)
	}
	ok, err = r.DeleteTask(ctx, nil, "alice", "a1")
	if err != nil || !ok {
		t.Fatalf("own delete: ok=%v err=%v", ok, err)
	}
	ok, err = r.DeleteTask(ctx, nil, "alice", "a1")
	if err != nil || ok {
		t.Fatalf("second delete: ok=%v err=%v", ok, err)
	}
}

func TestInsertUserDuplicateEmail(t *testing.T) {
	r := newTestRepo(t)
	ctx := context.Background()
	u := domain.User{ID: "alice-2", Name: "Alice", Email: "alice@example.com", PasswordHash: "x", CreatedAt: base, UpdatedAt: base}
	if err := r.InsertUser(ctx, nil, u); !errors.Is(err, repo.ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	exists, err := r.EmailExists(ctx, "alice@example.com")
	if err != nil || !exists {
		t.Fatalf("email exists: %v %v", exists, err)
	}
	got, err := r.GetUserByEmail(ctx, "alice@example.com")
	if err != nil || got.ID != "alice" {
		t.Fatalf("get by email: %+v %v", got, err)
	}
	if _, err := r.GetUserByID(ctx, "nobody"); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
