package domain

import "time"

type Status string

const (
	StatusInProgress Status = "in-progress"
	StatusCompleted  Status = "completed"
)

// Valid reports whether s is one of the two task states.
func (s Status) Valid() bool {
	return s == StatusInProgress || s == StatusCompleted
}

// Toggled returns the opposite state.
func (s Status) Toggled() Status {
	if s == StatusCompleted {
		return StatusInProgress
	}
	return StatusCompleted
}

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

type User struct {
	ID           string
	Name         string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Task is the stored record. Use view.Format before handing it to callers.
type Task struct {
	ID             string
	OwnerID        string
	Title          string
	Description    string
	Status         Status
	Priority       Priority
	DueDate        *time.Time
	EstimatedHours *float64
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// Overdue reports whether t is unfinished with a due date strictly before now.
func (t Task) Overdue(now time.Time) bool {
	if t.Status == StatusCompleted || t.DueDate == nil {
		return false
	}
	return t.DueDate.Before(now)
}

type Statistics struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	InProgress           int `json:"in_progress"`
	Overdue              int `json:"overdue"`
	HighPriority         int `json:"high_priority"`
	CompletionPercentage int `json:"completion_percentage"`
}

type Event struct {
	ID         int64  `json:"id"`
	TS         string `json:"ts" format:"date-time"`
	Type       string `json:"type"`
	OwnerID    string `json:"owner_id,omitempty"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id,omitempty"`
	Payload    string `json:"payload_json"`
}
