package view_test

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"taskboard/internal/domain"
	"taskboard/internal/view"
)

func TestFormatRoundTripKeepsInstants(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	created := time.Date(2024, 2, 29, 23, 59, 59, 123456789, loc)
	updated := created.Add(1500 * time.Millisecond)
	due := time.Date(2024, 3, 10, 0, 0, 0, 1, time.UTC)
	task := domain.Task{ID: "t1", Title: "x", Status: domain.StatusInProgress, Priority: domain.PriorityHigh,
		DueDate: &due, CreatedAt: created, UpdatedAt: updated}

	out := view.Format(task)
	for name, pair := range map[string]struct {
		text string
		want time.Time
	}{
		"created_at": {out.CreatedAt, created},
		"updated_at": {out.UpdatedAt, updated},
		"due_date":   {*out.DueDate, due},
	} {
		got, err := view.ParseTime(pair.text)
		if err != nil {
			t.Fatalf("%s: parse %q: %v", name, pair.text, err)
		}
		if !got.Equal(pair.want) {
			t.Fatalf("%s: expected %v, got %v", name, pair.want, got)
		}
		if !strings.HasSuffix(pair.text, "Z") {
			t.Fatalf("%s: expected UTC text, got %q", name, pair.text)
		}
	}
}

func TestFormatPassesNullDueDate(t *testing.T) {
	out := view.Format(domain.Task{ID: "t1", Title: "x", Status: domain.StatusCompleted, Priority: domain.PriorityLow})
	data, err := json.Marshal(out)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if !strings.Contains(string(data), `"due_date":null`) {
		t.Fatalf("expected null due_date, got %s", data)
	}
	if strings.Contains(string(data), "owner") || strings.Contains(string(data), "password") {
		t.Fatalf("view leaks internal fields: %s", data)
	}
}

func TestFormatAllNeverNil(t *testing.T) {
	if out := view.FormatAll(nil); out == nil || len(out) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", out)
	}
}
