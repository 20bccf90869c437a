package engine

import (
	"math"
	"time"

	"taskboard/internal/domain"
)

// ComputeStatistics derives every count from the one task slice it is given.
func ComputeStatistics(tasks []domain.Task, now time.Time) domain.Statistics {
	var s domain.Statistics
	for _, t := range tasks {
		s.Total++
		switch t.Status {
		case domain.StatusCompleted:
			s.Completed++
		case domain.StatusInProgress:
			s.InProgress++
		}
		if t.Priority == domain.PriorityHigh {
			s.HighPriority++
		}
		if t.Overdue(now) {
			s.Overdue++
		}
	}
	if s.Total > 0 {
		s.CompletionPercentage = int(math.Round(100 * float64(s.Completed) / float64(s.Total)))
	}
	return s
}
