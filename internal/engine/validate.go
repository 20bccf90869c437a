package engine

import (
	"math"
	"strings"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/repo"
)

// Field is an optional input that can also be explicitly null.
type Field[T any] struct {
	Present bool
	Null    bool
	Value   T
}

func Some[T any](v T) Field[T] { return Field[T]{Present: true, Value: v} }

func Null[T any]() Field[T] { return Field[T]{Present: true, Null: true} }

// TaskInput is the field bundle for both create and update. Nil pointers and
// absent Fields are "not supplied".
type TaskInput struct {
	Title          *string
	Description    *string
	Priority       *string
	Status         *string
	DueDate        Field[string]
	EstimatedHours Field[float64]
}

const dateOnly = "2006-01-02"

// parseDueDate accepts an RFC 3339 date-time or a plain date. Instants whose
// UTC year leaves 0000-9999 are refused: they cannot be stored as RFC 3339.
func parseDueDate(s string) (time.Time, bool) {
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		t = t.UTC()
		if t.Year() < 0 || t.Year() > 9999 {
			return time.Time{}, false
		}
		return t, true
	}
	if t, err := time.ParseInLocation(dateOnly, s, time.UTC); err == nil {
		return t, true
	}
	return time.Time{}, false
}

// validateTaskInput checks in and converts it to a patch. With partial set,
// every field is optional but still constrained when present; otherwise title
// and priority are required and status is ignored.
func validateTaskInput(in TaskInput, partial bool) (repo.TaskPatch, error) {
	var (
		p    repo.TaskPatch
		verr ValidationError
	)
	switch {
	case in.Title != nil:
		title := strings.TrimSpace(*in.Title)
		if title == "" {
			verr.add("title", "title is required")
		} else {
			p.Title = &title
		}
	case !partial:
		verr.add("title", "title is required")
	}

	if in.Description != nil {
		desc := *in.Description
		p.Description = &desc
	}

	switch {
	case in.Priority != nil:
		pr := domain.Priority(strings.TrimSpace(*in.Priority))
		if !pr.Valid() {
			verr.add("priority", "priority must be one of low, medium, high")
		} else {
			p.Priority = &pr
		}
	case !partial:
		verr.add("priority", "priority is required")
	}

	if partial && in.Status != nil {
		st := domain.Status(strings.TrimSpace(*in.Status))
		if !st.Valid() {
			verr.add("status", "status must be one of in-progress, completed")
		} else {
			p.Status = &st
		}
	}

	if in.DueDate.Present {
		raw := strings.TrimSpace(in.DueDate.Value)
		switch {
		case in.DueDate.Null || raw == "":
			p.ClearDueDate = partial
		default:
			due, ok := parseDueDate(raw)
			if !ok {
				verr.add("due_date", "due_date must be an ISO 8601 date or date-time")
			} else {
				p.DueDate = &due
			}
		}
	}

	if in.EstimatedHours.Present {
		switch h := in.EstimatedHours.Value; {
		case in.EstimatedHours.Null:
			p.ClearEstimatedHours = partial
		case math.IsNaN(h) || math.IsInf(h, 0):
			verr.add("estimated_hours", "estimated_hours must be a finite number")
		case h < 0:
			verr.add("estimated_hours", "estimated_hours must not be negative")
		default:
			p.EstimatedHours = &h
		}
	}

	if err := verr.orNil(); err != nil {
		return repo.TaskPatch{}, err
	}
	return p, nil
}
