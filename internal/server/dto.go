package server

import (
	"encoding/json"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/engine"
	"taskboard/internal/view"
)

// Request payloads. Fields are optional at the schema level so that the
// engine reports missing and malformed values with its own messages.

type RegisterRequest struct {
	Name     string `json:"name,omitempty"`
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type LoginRequest struct {
	Email    string `json:"email,omitempty"`
	Password string `json:"password,omitempty"`
}

type CreateTaskRequest struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Priority       *string  `json:"priority,omitempty" example:"high"`
	DueDate        *string  `json:"due_date,omitempty" nullable:"true" example:"2024-05-01"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty" nullable:"true"`
	// Status is accepted for compatibility and ignored: new tasks start in-progress.
	Status *string `json:"status,omitempty"`
}

type UpdateTaskRequest struct {
	Title          *string  `json:"title,omitempty"`
	Description    *string  `json:"description,omitempty"`
	Priority       *string  `json:"priority,omitempty"`
	Status         *string  `json:"status,omitempty"`
	DueDate        *string  `json:"due_date,omitempty" nullable:"true"`
	EstimatedHours *float64 `json:"estimated_hours,omitempty" nullable:"true"`
}

// Responses

type UserResponse struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

type RegisterResponse struct {
	User UserResponse `json:"user"`
}

type LoginResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type TaskListResponse struct {
	Items []view.Task `json:"items"`
}

type DeleteTaskResponse struct {
	Deleted bool `json:"deleted"`
}

type EventListResponse struct {
	Items []domain.Event `json:"items"`
}

func userResponse(u domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email}
}

func taskInput(title, description, priority, status, dueDate *string, hours *float64, body map[string]json.RawMessage) engine.TaskInput {
	in := engine.TaskInput{
		Title:       title,
		Description: description,
		Priority:    priority,
		Status:      status,
	}
	switch {
	case isNullRaw(body["due_date"]):
		in.DueDate = engine.Null[string]()
	case dueDate != nil:
		in.DueDate = engine.Some(*dueDate)
	}
	switch {
	case isNullRaw(body["estimated_hours"]):
		in.EstimatedHours = engine.Null[float64]()
	case hours != nil:
		in.EstimatedHours = engine.Some(*hours)
	}
	return in
}

func nonNilEvents(items []domain.Event) []domain.Event {
	if items == nil {
		return []domain.Event{}
	}
	return items
}
