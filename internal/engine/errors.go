package engine

import (
	"context"
	"errors"
	"strings"
)

// ErrUnauthorized means no caller identity could be resolved. It never says
// anything about the resource that was asked for.
var ErrUnauthorized = errors.New("please log in")

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError carries every field-level problem found in one input.
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) add(field, message string) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: message})
}

func (e *ValidationError) orNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	return e
}

// StorageError wraps a failure of the backing store. Callers show a generic
// message; Err is for logs only.
type StorageError struct {
	Op  string
	Err error
}

func (e *StorageError) Error() string {
	return "storage: " + e.Op + ": " + e.Err.Error()
}

func (e *StorageError) Unwrap() error { return e.Err }

func (e Engine) storageError(ctx context.Context, op string, err error) error {
	e.logger().ErrorContext(ctx, "storage failure", "op", op, "error", err)
	return &StorageError{Op: op, Err: err}
}
