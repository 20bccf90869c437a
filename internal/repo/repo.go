package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"taskboard/internal/domain"
)

type Repo struct {
	DB *sql.DB
}

var (
	ErrNotFound   = errors.New("not found")
	ErrNoOwner    = errors.New("owner is required")
	ErrEmailTaken = errors.New("a user with this email already exists")
)

// TimeLayout is fixed width so that text ordering in SQLite matches
// chronological ordering.
const TimeLayout = "2006-01-02T15:04:05.000000000Z07:00"

const taskColumns = `id,owner_id,title,description,status,priority,due_date,estimated_hours,created_at,updated_at`

type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type scanner interface {
	Scan(dest ...any) error
}

func (r Repo) q(tx *sql.Tx) querier {
	if tx != nil {
		return tx
	}
	return r.DB
}

func formatTime(t time.Time) string {
	return t.UTC().Format(TimeLayout)
}

func parseTime(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse stored time %q: %w", s, err)
	}
	return t.UTC(), nil
}

func scanTask(s scanner) (domain.Task, error) {
	var (
		t                    domain.Task
		status, priority     string
		createdAt, updatedAt string
		due                  sql.NullString
		hours                sql.NullFloat64
	)
	if err := s.Scan(&t.ID, &t.OwnerID, &t.Title, &t.Description, &status, &priority, &due, &hours, &createdAt, &updatedAt); err != nil {
		return t, err
	}
	t.Status = domain.Status(status)
	t.Priority = domain.Priority(priority)
	var err error
	if t.CreatedAt, err = parseTime(createdAt); err != nil {
		return t, err
	}
	if t.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return t, err
	}
	if due.Valid {
		d, err := parseTime(due.String)
		if err != nil {
			return t, err
		}
		t.DueDate = &d
	}
	if hours.Valid {
		h := hours.Float64
		t.EstimatedHours = &h
	}
	return t, nil
}

func nullableTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableFloat(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}

func (r Repo) InsertTask(ctx context.Context, tx *sql.Tx, t domain.Task) error {
	if t.OwnerID == "" {
		return ErrNoOwner
	}
	_, err := r.q(tx).ExecContext(ctx, `INSERT INTO tasks(`+taskColumns+`) VALUES (?,?,?,?,?,?,?,?,?,?)`,
		t.ID, t.OwnerID, t.Title, t.Description, string(t.Status), string(t.Priority),
		nullableTime(t.DueDate), nullableFloat(t.EstimatedHours), formatTime(t.CreatedAt), formatTime(t.UpdatedAt))
	return err
}

// Lookup is the result of an owner-scoped task lookup. A task that does not
// exist and a task owned by someone else produce the same empty Lookup.
type Lookup struct {
	task  domain.Task
	found bool
}

func Found(t domain.Task) Lookup { return Lookup{task: t, found: true} }

// NotFound is the empty lookup.
var NotFound = Lookup{}

func (l Lookup) Task() (domain.Task, bool) { return l.task, l.found }

// FindTask loads a task only if it belongs to ownerID.
func (r Repo) FindTask(ctx context.Context, tx *sql.Tx, ownerID, id string) (Lookup, error) {
	if ownerID == "" {
		return NotFound, ErrNoOwner
	}
	t, err := scanTask(r.q(tx).QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id=? AND owner_id=?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return NotFound, nil
	}
	if err != nil {
		return NotFound, err
	}
	return Found(t), nil
}

type TaskOrder int

const (
	// OrderByUpdated lists most recently touched tasks first.
	OrderByUpdated TaskOrder = iota
	// OrderByDueDate lists the soonest due date first, undated tasks last.
	OrderByDueDate
)

type TaskFilters struct {
	OwnerID  string
	Status   domain.Status
	Priority domain.Priority
	DueFrom  *time.Time
	DueTo    *time.Time
	OrderBy  TaskOrder
	Limit    int
}

func (r Repo) ListTasks(ctx context.Context, f TaskFilters) ([]domain.Task, error) {
	if f.OwnerID == "" {
		return nil, ErrNoOwner
	}
	clauses := []string{"owner_id=?"}
	args := []any{f.OwnerID}
	if f.Status != "" {
		clauses = append(clauses, "status=?")
		args = append(args, string(f.Status))
	}
	if f.Priority != "" {
		clauses = append(clauses, "priority=?")
		args = append(args, string(f.Priority))
	}
	if f.DueFrom != nil {
		clauses = append(clauses, "due_date >= ?")
		args = append(args, formatTime(*f.DueFrom))
	}
	if f.DueTo != nil {
		clauses = append(clauses, "due_date <= ?")
		args = append(args, formatTime(*f.DueTo))
	}
	order := ` ORDER BY updated_at DESC, id DESC`
	if f.OrderBy == OrderByDueDate {
		order = ` ORDER BY due_date IS NULL, due_date ASC, id ASC`
	}
	query := `SELECT ` + taskColumns + ` FROM tasks WHERE ` + strings.Join(clauses, " AND ") + order
	if f.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, f.Limit)
	}
	rows, err := r.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Task{}
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		res = append(res, t)
	}
	return res, rows.Err()
}

// TaskPatch lists the fields an update touches. Nil pointers are left alone;
// the Clear flags write NULL.
type TaskPatch struct {
	Title               *string
	Description         *string
	Status              *domain.Status
	Priority            *domain.Priority
	DueDate             *time.Time
	ClearDueDate        bool
	EstimatedHours      *float64
	ClearEstimatedHours bool
}

// UpdateTask applies p to the owner's task, refreshes updated_at and returns
// the stored row.
func (r Repo) UpdateTask(ctx context.Context, tx *sql.Tx, ownerID, id string, p TaskPatch, now time.Time) (domain.Task, error) {
	if ownerID == "" {
		return domain.Task{}, ErrNoOwner
	}
	var (
		fields []string
		args   []any
	)
	if p.Title != nil {
		fields = append(fields, "title=?")
		args = append(args, *p.Title)
	}
	if p.Description != nil {
		fields = append(fields, "description=?")
		args = append(args, *p.Description)
	}
	if p.Status != nil {
		fields = append(fields, "status=?")
		args = append(args, string(*p.Status))
	}
	if p.Priority != nil {
		fields = append(fields, "priority=?")
		args = append(args, string(*p.Priority))
	}
	switch {
	case p.ClearDueDate:
		fields = append(fields, "due_date=NULL")
	case p.DueDate != nil:
		fields = append(fields, "due_date=?")
		args = append(args, formatTime(*p.DueDate))
	}
	switch {
	case p.ClearEstimatedHours:
		fields = append(fields, "estimated_hours=NULL")
	case p.EstimatedHours != nil:
		fields = append(fields, "estimated_hours=?")
		args = append(args, *p.EstimatedHours)
	}
	fields = append(fields, "updated_at=?")
	args = append(args, formatTime(now), id, ownerID)
	q := r.q(tx)
	res, err := q.ExecContext(ctx, fmt.Sprintf(`UPDATE tasks SET %s WHERE id=? AND owner_id=?`, strings.Join(fields, ",")), args...)
	if err != nil {
		return domain.Task{}, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.Task{}, ErrNotFound
	}
	lookup, err := r.FindTask(ctx, tx, ownerID, id)
	if err != nil {
		return domain.Task{}, err
	}
	t, ok := lookup.Task()
	if !ok {
		return domain.Task{}, ErrNotFound
	}
	return t, nil
}

// DeleteTask hard-deletes the owner's task and reports whether a row went away.
func (r Repo) DeleteTask(ctx context.Context, tx *sql.Tx, ownerID, id string) (bool, error) {
	if ownerID == "" {
		return false, ErrNoOwner
	}
	res, err := r.q(tx).ExecContext(ctx, `DELETE FROM tasks WHERE id=? AND owner_id=?`, id, ownerID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// LatestEvents returns the owner's most recent audit events, newest first.
func (r Repo) LatestEvents(ctx context.Context, ownerID string, limit int) ([]domain.Event, error) {
	if ownerID == "" {
		return nil, ErrNoOwner
	}
	if limit <= 0 {
		limit = 20
	}
	rows, err := r.DB.QueryContext(ctx, `SELECT id,ts,type,COALESCE(owner_id,''),entity_kind,COALESCE(entity_id,''),payload_json FROM events WHERE owner_id=? ORDER BY id DESC LIMIT ?`, ownerID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	res := []domain.Event{}
	for rows.Next() {
		var e domain.Event
		if err := rows.Scan(&e.ID, &e.TS, &e.Type, &e.OwnerID, &e.EntityKind, &e.EntityID, &e.Payload); err != nil {
			return nil, err
		}
		res = append(res, e)
	}
	return res, rows.Err()
}
