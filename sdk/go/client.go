package taskboardsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal Taskboard HTTP API client.
type Client struct {
	BaseURL    string
	BasePath   string
	Token      string
	HTTPClient *http.Client
	Timeout    time.Duration
}

// New creates a client with sane defaults.
func New(baseURL string) *Client {
	return &Client{
		BaseURL:  baseURL,
		BasePath: "/v1",
		Timeout:  10 * time.Second,
	}
}

// Task mirrors the API task view.
type Task struct {
	ID             string   `json:"id"`
	Title          string   `json:"title"`
	Description    string   `json:"description"`
	Status         string   `json:"status"`
	Priority       string   `json:"priority"`
	DueDate        *string  `json:"due_date"`
	EstimatedHours *float64 `json:"estimated_hours"`
	CreatedAt      string   `json:"created_at"`
	UpdatedAt      string   `json:"updated_at"`
}

// TaskInput carries task fields for create and update. Nil fields are not
// sent; ClearDueDate and ClearEstimatedHours send an explicit null.
type TaskInput struct {
	Title               *string
	Description         *string
	Priority            *string
	Status              *string
	DueDate             *string
	ClearDueDate        bool
	EstimatedHours      *float64
	ClearEstimatedHours bool
}

func (in TaskInput) body() map[string]any {
	body := map[string]any{}
	if in.Title != nil {
		body["title"] = *in.Title
	}
	if in.Description != nil {
		body["description"] = *in.Description
	}
	if in.Priority != nil {
		body["priority"] = *in.Priority
	}
	if in.Status != nil {
		body["status"] = *in.Status
	}
	switch {
	case in.ClearDueDate:
		body["due_date"] = nil
	case in.DueDate != nil:
		body["due_date"] = *in.DueDate
	}
	switch {
	case in.ClearEstimatedHours:
		body["estimated_hours"] = nil
	case in.EstimatedHours != nil:
		body["estimated_hours"] = *in.EstimatedHours
	}
	return body
}

// User is the public part of an account.
type User struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
}

// Statistics summarizes the caller's tasks.
type Statistics struct {
	Total                int `json:"total"`
	Completed            int `json:"completed"`
	InProgress           int `json:"in_progress"`
	Overdue              int `json:"overdue"`
	HighPriority         int `json:"high_priority"`
	CompletionPercentage int `json:"completion_percentage"`
}

// APIError wraps non-2xx responses.
type APIError struct {
	StatusCode int
	Code       string
	Message    string
	Body       string
}

func (e *APIError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("api error: status=%d code=%s message=%s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("api error: status=%d body=%s", e.StatusCode, e.Body)
}

// Register creates an account.
func (c *Client) Register(ctx context.Context, name, email, password string) (User, error) {
	var resp struct {
		User User `json:"user"`
	}
	err := c.do(ctx, http.MethodPost, "auth/register", map[string]any{
		"name": name, "email": email, "password": password,
	}, &resp)
	return resp.User, err
}

// Login exchanges credentials for a token and keeps it on the client.
func (c *Client) Login(ctx context.Context, email, password string) (User, error) {
	var resp struct {
		Token string `json:"token"`
		User  User   `json:"user"`
	}
	if err := c.do(ctx, http.MethodPost, "auth/login", map[string]any{"email": email, "password": password}, &resp); err != nil {
		return User{}, err
	}
	c.Token = resp.Token
	return resp.User, nil
}

// ListTasks returns tasks filtered by status: all, in-progress or completed.
func (c *Client) ListTasks(ctx context.Context, status string) ([]Task, error) {
	endpoint := "tasks"
	if status != "" {
		endpoint += "?status=" + url.QueryEscape(status)
	}
	return c.list(ctx, endpoint)
}

func (c *Client) GetTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodGet, "tasks/"+url.PathEscape(id), nil, &resp)
	return resp, err
}

func (c *Client) CreateTask(ctx context.Context, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks", in.body(), &resp)
	return resp, err
}

func (c *Client) UpdateTask(ctx context.Context, id string, in TaskInput) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPatch, "tasks/"+url.PathEscape(id), in.body(), &resp)
	return resp, err
}

// ToggleTask flips a task between in-progress and completed.
func (c *Client) ToggleTask(ctx context.Context, id string) (Task, error) {
	var resp Task
	err := c.do(ctx, http.MethodPost, "tasks/"+url.PathEscape(id)+"/toggle", nil, &resp)
	return resp, err
}

func (c *Client) DeleteTask(ctx context.Context, id string) error {
	return c.do(ctx, http.MethodDelete, "tasks/"+url.PathEscape(id), nil, nil)
}

func (c *Client) Statistics(ctx context.Context) (Statistics, error) {
	var resp Statistics
	err := c.do(ctx, http.MethodGet, "tasks/stats", nil, &resp)
	return resp, err
}

// Upcoming returns in-progress tasks due within the next week.
func (c *Client) Upcoming(ctx context.Context, limit int) ([]Task, error) {
	return c.list(ctx, withLimit("tasks/upcoming", limit))
}

func (c *Client) Recent(ctx context.Context, limit int) ([]Task, error) {
	return c.list(ctx, withLimit("tasks/recent", limit))
}

func (c *Client) HighPriority(ctx context.Context, limit int) ([]Task, error) {
	return c.list(ctx, withLimit("tasks/high-priority", limit))
}

func (c *Client) list(ctx context.Context, endpoint string) ([]Task, error) {
	var resp struct {
		Items []Task `json:"items"`
	}
	err := c.do(ctx, http.MethodGet, endpoint, nil, &resp)
	return resp.Items, err
}

func withLimit(endpoint string, limit int) string {
	if limit > 0 {
		return fmt.Sprintf("%s?limit=%d", endpoint, limit)
	}
	return endpoint
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	if c.HTTPClient == nil {
		c.HTTPClient = &http.Client{Timeout: c.Timeout}
	}
	url := c.base() + "/" + strings.TrimLeft(endpoint, "/")
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			return err
		}
	}
	req, err := http.NewRequestWithContext(ctx, method, url, &buf)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	if c.Token != "" {
		req.Header.Set("Authorization", "Bearer "+c.Token)
	}
	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		b, _ := io.ReadAll(resp.Body)
		apiErr := &APIError{StatusCode: resp.StatusCode, Body: string(b)}
		var env struct {
			Error struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		if json.Unmarshal(b, &env) == nil {
			apiErr.Code, apiErr.Message = env.Error.Code, env.Error.Message
		}
		return apiErr
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}

func (c *Client) base() string {
	base := strings.TrimRight(c.BaseURL, "/")
	if p := strings.Trim(c.BasePath, "/"); p != "" {
		base += "/" + p
	}
	return base
}
