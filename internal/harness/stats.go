// internal/harness/stats.go
package harness

import (
	"time"

	"github.com/vexaline/browsebench/api/schemas"
)

// Summary aggregates a batch of task results for reporting.
type Summary struct {
	Total       int           `json:"total"`
	Successes   int           `json:"successes"`
	SuccessRate float64       `json:"success_rate"`
	MeanElapsed time.Duration `json:"mean_elapsed"`
	MinElapsed  time.Duration `json:"min_elapsed"`
	MaxElapsed  time.Duration `json:"max_elapsed"`
	// MeanElapsedSuccess averages elapsed time over successful episodes only.
	MeanElapsedSuccess time.Duration `json:"mean_elapsed_success"`
}

// Aggregate computes the batch summary. An empty batch yields zero values.
func Aggregate(results []schemas.TaskResult) Summary {
	s := Summary{Total: len(results)}
	if len(results) == 0 {
		return s
	}

	var total, totalSuccess time.Duration
	s.MinElapsed = results[0].Elapsed
	for _, r := range results {
		total += r.Elapsed
		if r.Elapsed < s.MinElapsed {
			s.MinElapsed = r.Elapsed
		}
		if r.Elapsed > s.MaxElapsed {
			s.MaxElapsed = r.Elapsed
		}
		if r.Success {
			s.Successes++
			totalSuccess += r.Elapsed
		}
	}

	s.SuccessRate = float64(s.Successes) / float64(s.Total)
	s.MeanElapsed = total / time.Duration(s.Total)
	if s.Successes > 0 {
		s.MeanElapsedSuccess = totalSuccess / time.Duration(s.Successes)
	}
	return s
}
