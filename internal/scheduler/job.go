package scheduler

import (
	"context"
	"time"
)

// maxHistory is how many results are kept per job
const maxHistory = 100

// Job is a unit of scheduled work
// SSOT: the scheduled job interface is defined here only
type Job interface {
	Name() string

	Run(ctx context.Context) error

	// Schedule is a cron expression with a seconds field,
	// e.g. "0 0 18 * * *" or "@daily"
	Schedule() string
}

// JobResult is the outcome of one job execution
type JobResult struct {
	JobName   string        `json:"job_name"`
	StartTime time.Time     `json:"start_time"`
	EndTime   time.Time     `json:"end_time"`
	Duration  time.Duration `json:"duration"`
	Attempts  int           `json:"attempts"`
	Success   bool          `json:"success"`
	Skipped   bool          `json:"skipped,omitempty"`
	Error     string        `json:"error,omitempty"`
}

// JobHistory keeps the most recent results of a job, oldest first
type JobHistory struct {
	Results []JobResult
}

// Add appends a result, dropping the oldest beyond maxHistory
func (h *JobHistory) Add(result JobResult) {
	h.Results = append(h.Results, result)
	if len(h.Results) > maxHistory {
		h.Results = h.Results[len(h.Results)-maxHistory:]
	}
}

// Latest returns up to n of the most recent results
func (h *JobHistory) Latest(n int) []JobResult {
	if n > len(h.Results) {
		n = len(h.Results)
	}
	if n <= 0 {
		return []JobResult{}
	}
	return h.Results[len(h.Results)-n:]
}

// Failures counts failed runs; skipped runs are not failures
func (h *JobHistory) Failures() int {
	n := 0
	for _, r := range h.Results {
		if !r.Success && !r.Skipped {
			n++
		}
	}
	return n
}

// SuccessRate is the share of successful runs among executed ones (0.0 - 1.0)
func (h *JobHistory) SuccessRate() float64 {
	executed, ok := 0, 0
	for _, r := range h.Results {
		if r.Skipped {
			continue
		}
		executed++
		if r.Success {
			ok++
		}
	}
	if executed == 0 {
		return 0
	}
	return float64(ok) / float64(executed)
}
