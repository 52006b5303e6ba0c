package domain

import (
	"fmt"
	"time"
)

// FetchKey is the tuple that uniquely identifies one archive file.
type FetchKey struct {
	Market      Market      `json:"market"`
	Granularity Granularity `json:"granularity"`
	DataType    string      `json:"data_type"`
	Symbol      string      `json:"symbol"`
	Interval    string      `json:"interval,omitempty"`
	Period      Period      `json:"period"`
}

// FetchCandidate is one expected remote file together with its local destination.
// Candidates are immutable once the enumerator yields them.
type FetchCandidate struct {
	Seq         int      `json:"seq"`
	Key         FetchKey `json:"key"`
	RemoteURL   string   `json:"remote_url"`
	LocalPath   string   `json:"local_path"`
	ChecksumURL string   `json:"checksum_url,omitempty"`
}

// Label is a short human readable description used in logs and reports.
func (c FetchCandidate) Label() string {
	if c.Key.Interval != "" {
		return fmt.Sprintf("%s %s %s %s", c.Key.DataType, c.Key.Symbol, c.Key.Interval, c.Key.Period)
	}
	return fmt.Sprintf("%s %s %s", c.Key.DataType, c.Key.Symbol, c.Key.Period)
}

// FetchStatus is the terminal status of a single candidate.
type FetchStatus string

const (
	StatusDownloaded       FetchStatus = "downloaded"
	StatusSkippedExists    FetchStatus = "skipped_exists"
	StatusNotFound         FetchStatus = "not_found"
	StatusFailed           FetchStatus = "failed"
	StatusChecksumMismatch FetchStatus = "checksum_mismatch"
	StatusCancelled        FetchStatus = "cancelled"
)

// FetchStatuses lists all terminal statuses in report order.
var FetchStatuses = []FetchStatus{
	StatusDownloaded,
	StatusSkippedExists,
	StatusNotFound,
	StatusFailed,
	StatusChecksumMismatch,
	StatusCancelled,
}

// IsFailure reports whether the status makes a run unsuccessful.
func (s FetchStatus) IsFailure() bool {
	return s == StatusFailed || s == StatusChecksumMismatch || s == StatusCancelled
}

// FetchOutcome records what happened to one candidate.
type FetchOutcome struct {
	Candidate    FetchCandidate `json:"candidate"`
	Status       FetchStatus    `json:"status"`
	Attempts     int            `json:"attempts"`
	BytesWritten int64          `json:"bytes_written"`
	Error        string         `json:"error,omitempty"`
	Duration     time.Duration  `json:"duration"`

	Err error `json:"-"`
}

// NewOutcome builds an outcome, keeping the error both as a value and as text.
func NewOutcome(c FetchCandidate, status FetchStatus, attempts int, err error) FetchOutcome {
	out := FetchOutcome{
		Candidate: c,
		Status:    status,
		Attempts:  attempts,
		Err:       err,
	}
	if err != nil {
		out.Error = err.Error()
	}
	return out
}
