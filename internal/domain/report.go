package domain

import "time"

// RunReport is the immutable summary of one run.
type RunReport struct {
	Total        int                 `json:"total"`
	Counts       map[FetchStatus]int `json:"counts"`
	BytesWritten int64               `json:"bytes_written"`
	Failures     []FetchOutcome      `json:"failures,omitempty"`
	StartedAt    time.Time           `json:"started_at"`
	FinishedAt   time.Time           `json:"finished_at"`
}

// Count returns the number of outcomes with the given status.
func (r RunReport) Count(s FetchStatus) int {
	return r.Counts[s]
}

func (r RunReport) Duration() time.Duration {
	return r.FinishedAt.Sub(r.StartedAt)
}

// HasFailures reports whether any candidate failed, mismatched or was cancelled.
func (r RunReport) HasFailures() bool {
	for s, n := range r.Counts {
		if n > 0 && s.IsFailure() {
			return true
		}
	}
	return false
}

// ExitCode maps the report to a process exit status.
func (r RunReport) ExitCode() int {
	if r.HasFailures() {
		return 1
	}
	return 0
}
