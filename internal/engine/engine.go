package engine

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"taskboard/internal/domain"
	"taskboard/internal/engine/auth"
	"taskboard/internal/events"
	"taskboard/internal/repo"
	"taskboard/internal/view"
)

const (
	defaultShortList = 3
	defaultActivity  = 20
	maxListLimit     = 100
	upcomingWindow   = 7 * 24 * time.Hour
)

type Engine struct {
	DB      *sql.DB
	Repo    repo.Repo
	Events  events.Writer
	Session auth.Resolver
	Logger  *slog.Logger
	Now     func() time.Time
}

func New(db *sql.DB, session auth.Resolver, logger *slog.Logger) Engine {
	return Engine{
		DB:      db,
		Repo:    repo.Repo{DB: db},
		Events:  events.Writer{},
		Session: session,
		Logger:  logger,
		Now:     time.Now,
	}
}

func (e Engine) now() time.Time {
	if e.Now != nil {
		return e.Now().UTC()
	}
	return time.Now().UTC()
}

func (e Engine) logger() *slog.Logger {
	if e.Logger != nil {
		return e.Logger
	}
	return slog.Default()
}

func (e Engine) caller(ctx context.Context) (domain.User, error) {
	if e.Session == nil {
		return domain.User{}, ErrUnauthorized
	}
	u, ok := e.Session.CurrentUser(ctx)
	if !ok {
		return domain.User{}, ErrUnauthorized
	}
	return u, nil
}

func (e Engine) appendEvent(ctx context.Context, tx *sql.Tx, evtType, ownerID, taskID string, payload events.EventPayload) error {
	w := e.Events
	if w.Now == nil {
		w.Now = e.now
	}
	return w.Append(ctx, tx, evtType, ownerID, "task", taskID, payload)
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

// ListTasks returns the caller's tasks, most recently updated first. filter
// is "all" (or empty), "in-progress" or "completed".
func (e Engine) ListTasks(ctx context.Context, filter string) ([]view.Task, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return nil, err
	}
	f := repo.TaskFilters{OwnerID: u.ID}
	switch filter {
	case "", "all":
	case string(domain.StatusInProgress), string(domain.StatusCompleted):
		f.Status = domain.Status(filter)
	default:
		verr := &ValidationError{}
		verr.add("status", "status filter must be one of all, in-progress, completed")
		return nil, verr
	}
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, e.storageError(ctx, "list tasks", err)
	}
	return view.FormatAll(tasks), nil
}

// CreateTask stores a new task owned by the caller. Status always starts as
// in-progress.
func (e Engine) CreateTask(ctx context.Context, in TaskInput) (view.Task, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return view.Task{}, err
	}
	p, err := validateTaskInput(in, false)
	if err != nil {
		return view.Task{}, err
	}
	now := e.now()
	t := domain.Task{
		ID:             uuid.NewString(),
		OwnerID:        u.ID,
		Title:          *p.Title,
		Status:         domain.StatusInProgress,
		Priority:       *p.Priority,
		DueDate:        p.DueDate,
		EstimatedHours: p.EstimatedHours,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if p.Description != nil {
		t.Description = *p.Description
	}

	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return view.Task{}, e.storageError(ctx, "create task", err)
	}
	defer tx.Rollback()
	if err := e.Repo.InsertTask(ctx, tx, t); err != nil {
		return view.Task{}, e.storageError(ctx, "create task", err)
	}
	if err := e.appendEvent(ctx, tx, events.TaskCreated, u.ID, t.ID, events.EventPayload{"title": t.Title, "priority": t.Priority}); err != nil {
		return view.Task{}, e.storageError(ctx, "create task", err)
	}
	if err := tx.Commit(); err != nil {
		return view.Task{}, e.storageError(ctx, "create task", err)
	}
	return view.Format(t), nil
}

// GetTask returns the caller's task. The bool is false when the task does not
// exist or belongs to someone else.
func (e Engine) GetTask(ctx context.Context, id string) (view.Task, bool, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return view.Task{}, false, err
	}
	lookup, err := e.Repo.FindTask(ctx, nil, u.ID, id)
	if err != nil {
		return view.Task{}, false, e.storageError(ctx, "get task", err)
	}
	t, ok := lookup.Task()
	if !ok {
		return view.Task{}, false, nil
	}
	return view.Format(t), true, nil
}

// UpdateTask applies the supplied fields to the caller's task. The bool is
// false when the task does not exist or belongs to someone else.
func (e Engine) UpdateTask(ctx context.Context, id string, in TaskInput) (view.Task, bool, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return view.Task{}, false, err
	}
	p, err := validateTaskInput(in, true)
	if err != nil {
		return view.Task{}, false, err
	}
	return e.mutate(ctx, "update task", u.ID, id, func(tx *sql.Tx, cur domain.Task, now time.Time) (domain.Task, error) {
		updated, err := e.Repo.UpdateTask(ctx, tx, u.ID, id, p, now)
		if err != nil {
			return domain.Task{}, err
		}
		return updated, e.appendEvent(ctx, tx, events.TaskUpdated, u.ID, id, events.EventPayload{"fields": patchFields(p)})
	})
}

// ToggleStatus flips the caller's task between in-progress and completed.
func (e Engine) ToggleStatus(ctx context.Context, id string) (view.Task, bool, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return view.Task{}, false, err
	}
	return e.mutate(ctx, "toggle task", u.ID, id, func(tx *sql.Tx, cur domain.Task, now time.Time) (domain.Task, error) {
		next := cur.Status.Toggled()
		updated, err := e.Repo.UpdateTask(ctx, tx, u.ID, id, repo.TaskPatch{Status: &next}, now)
		if err != nil {
			return domain.Task{}, err
		}
		return updated, e.appendEvent(ctx, tx, events.TaskToggled, u.ID, id, events.EventPayload{"from": cur.Status, "to": next})
	})
}

// mutate runs fn against the caller's task inside one transaction. Absence
// and foreign ownership both come back as false with no error.
func (e Engine) mutate(ctx context.Context, op, ownerID, id string, fn func(tx *sql.Tx, cur domain.Task, now time.Time) (domain.Task, error)) (view.Task, bool, error) {
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return view.Task{}, false, e.storageError(ctx, op, err)
	}
	defer tx.Rollback()
	lookup, err := e.Repo.FindTask(ctx, tx, ownerID, id)
	if err != nil {
		return view.Task{}, false, e.storageError(ctx, op, err)
	}
	cur, ok := lookup.Task()
	if !ok {
		return view.Task{}, false, nil
	}
	now := e.now()
	if now.Before(cur.CreatedAt) {
		now = cur.CreatedAt
	}
	updated, err := fn(tx, cur, now)
	if errors.Is(err, repo.ErrNotFound) {
		return view.Task{}, false, nil
	}
	if err != nil {
		return view.Task{}, false, e.storageError(ctx, op, err)
	}
	if err := tx.Commit(); err != nil {
		return view.Task{}, false, e.storageError(ctx, op, err)
	}
	return view.Format(updated), true, nil
}

// DeleteTask hard-deletes the caller's task. It reports false, not an error,
// when there is nothing of the caller's to delete.
func (e Engine) DeleteTask(ctx context.Context, id string) (bool, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return false, err
	}
	tx, err := e.DB.BeginTx(ctx, nil)
	if err != nil {
		return false, e.storageError(ctx, "delete task", err)
	}
	defer tx.Rollback()
	lookup, err := e.Repo.FindTask(ctx, tx, u.ID, id)
	if err != nil {
		return false, e.storageError(ctx, "delete task", err)
	}
	cur, ok := lookup.Task()
	if !ok {
		return false, nil
	}
	deleted, err := e.Repo.DeleteTask(ctx, tx, u.ID, id)
	if err != nil {
		return false, e.storageError(ctx, "delete task", err)
	}
	if !deleted {
		return false, nil
	}
	if err := e.appendEvent(ctx, tx, events.TaskDeleted, u.ID, id, events.EventPayload{"title": cur.Title}); err != nil {
		return false, e.storageError(ctx, "delete task", err)
	}
	if err := tx.Commit(); err != nil {
		return false, e.storageError(ctx, "delete task", err)
	}
	return true, nil
}

// Statistics reads the caller's tasks once and derives every count from that
// snapshot.
func (e Engine) Statistics(ctx context.Context) (domain.Statistics, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return domain.Statistics{}, err
	}
	tasks, err := e.Repo.ListTasks(ctx, repo.TaskFilters{OwnerID: u.ID})
	if err != nil {
		return domain.Statistics{}, e.storageError(ctx, "statistics", err)
	}
	return ComputeStatistics(tasks, e.now()), nil
}

// UpcomingTasks lists in-progress tasks due within the next seven days,
// soonest first.
func (e Engine) UpcomingTasks(ctx context.Context, limit int) ([]view.Task, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return nil, err
	}
	now := e.now()
	until := now.Add(upcomingWindow)
	return e.listShort(ctx, "upcoming tasks", repo.TaskFilters{
		OwnerID: u.ID,
		Status:  domain.StatusInProgress,
		DueFrom: &now,
		DueTo:   &until,
		OrderBy: repo.OrderByDueDate,
		Limit:   clampLimit(limit, defaultShortList),
	})
}

// RecentTasks lists the caller's most recently updated tasks of any status.
func (e Engine) RecentTasks(ctx context.Context, limit int) ([]view.Task, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return nil, err
	}
	return e.listShort(ctx, "recent tasks", repo.TaskFilters{
		OwnerID: u.ID,
		OrderBy: repo.OrderByUpdated,
		Limit:   clampLimit(limit, defaultShortList),
	})
}

// HighPriorityTasks lists unfinished high priority tasks, soonest due first
// with undated ones last.
func (e Engine) HighPriorityTasks(ctx context.Context, limit int) ([]view.Task, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return nil, err
	}
	return e.listShort(ctx, "high priority tasks", repo.TaskFilters{
		OwnerID:  u.ID,
		Status:   domain.StatusInProgress,
		Priority: domain.PriorityHigh,
		OrderBy:  repo.OrderByDueDate,
		Limit:    clampLimit(limit, defaultShortList),
	})
}

func (e Engine) listShort(ctx context.Context, op string, f repo.TaskFilters) ([]view.Task, error) {
	tasks, err := e.Repo.ListTasks(ctx, f)
	if err != nil {
		return nil, e.storageError(ctx, op, err)
	}
	return view.FormatAll(tasks), nil
}

// Activity returns the caller's latest audit events.
func (e Engine) Activity(ctx context.Context, limit int) ([]domain.Event, error) {
	u, err := e.caller(ctx)
	if err != nil {
		return nil, err
	}
	evts, err := e.Repo.LatestEvents(ctx, u.ID, clampLimit(limit, defaultActivity))
	if err != nil {
		return nil, e.storageError(ctx, "activity", err)
	}
	return evts, nil
}

func patchFields(p repo.TaskPatch) []string {
	var fields []string
	if p.Title != nil {
		fields = append(fields, "title")
	}
	if p.Description != nil {
		fields = append(fields, "description")
	}
	if p.Status != nil {
		fields = append(fields, "status")
	}
	if p.Priority != nil {
		fields = append(fields, "priority")
	}
	if p.DueDate != nil || p.ClearDueDate {
		fields = append(fields, "due_date")
	}
	if p.EstimatedHours != nil || p.ClearEstimatedHours {
		fields = append(fields, "estimated_hours")
	}
	return fields
}
