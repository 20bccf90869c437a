// Package view renders stored records into the shape callers receive.
package view

import (
	"time"

	"taskboard/internal/domain"
)

// Layout is the canonical text form of every timestamp handed to callers.
const Layout = time.RFC3339Nano

type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Status         string   `json:"status" enum:"in-progress,completed"`
	Priority       string   `json:"priority" enum:"low,medium,high"`
	DueDate        *string  `json:"due_date" format:"date-time"`
	EstimatedHours *float64 `json:"estimated_hours"`
	CreatedAt      string   `json:"created_at" format:"date-time"`
	UpdatedAt      string   `json:"updated_at" format:"date-time"`
}

func FormatTime(t time.Time) string {
	return t.UTC().Format(Layout)
}

func ParseTime(s string) (time.Time, error) {
	return time.Parse(Layout, s)
}

func Format(t domain.Task) Task {
	out := Task{
		ID:          t.ID,
		Title:       t.Title,
		Description: t.Description,
		Status:      string(t.Status),
		Priority:    string(t.Priority),
		CreatedAt:   FormatTime(t.CreatedAt),
		UpdatedAt:   FormatTime(t.UpdatedAt),
	}
	if t.DueDate != nil {
		s := FormatTime(*t.DueDate)
		out.DueDate = &s
	}
	if t.EstimatedHours != nil {
		h := *t.EstimatedHours
		out.EstimatedHours = &h
	}
	return out
}

// FormatAll never returns nil so that empty lists encode as [].
func FormatAll(tasks []domain.Task) []Task {
	out := make([]Task, 0, len(tasks))
	for _, t := range tasks {
		out = append(out, Format(t))
	}
	return out
}
