package report

import (
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/metrics"
)

// Aggregator collects outcomes from concurrent workers into a RunReport.
type Aggregator struct {
	mu            sync.Mutex
	logger        *slog.Logger
	progressEvery int
	now           func() time.Time

	startedAt time.Time
	total     int
	counts    map[domain.FetchStatus]int
	bytes     int64
	failures  []domain.FetchOutcome

	final *domain.RunReport
}

// NewAggregator starts a report. A progress line is logged every progressEvery
// outcomes; zero disables progress logging.
func NewAggregator(logger *slog.Logger, progressEvery int) *Aggregator {
	return newAggregator(logger, progressEvery, time.Now)
}

func newAggregator(logger *slog.Logger, progressEvery int, now func() time.Time) *Aggregator {
	return &Aggregator{
		logger:        logger,
		progressEvery: progressEvery,
		now:           now,
		startedAt:     now(),
		counts:        make(map[domain.FetchStatus]int),
	}
}

// Record adds one outcome. Outcomes recorded after Finalize are dropped.
func (a *Aggregator) Record(out domain.FetchOutcome) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		a.logger.Warn("outcome recorded after finalize, dropping",
			"candidate", out.Candidate.Label(),
			"status", out.Status,
		)
		return
	}

	a.total++
	a.counts[out.Status]++
	a.bytes += out.BytesWritten
	if out.Status.IsFailure() {
		a.failures = append(a.failures, out)
	}
	metrics.Outcomes.WithLabelValues(string(out.Status)).Inc()

	a.logOutcome(out)

	if a.progressEvery > 0 && a.total%a.progressEvery == 0 {
		a.logger.Info("progress",
			"processed", a.total,
			"downloaded", a.counts[domain.StatusDownloaded],
			"skipped", a.counts[domain.StatusSkippedExists],
			"not_found", a.counts[domain.StatusNotFound],
			"failed", a.counts[domain.StatusFailed]+a.counts[domain.StatusChecksumMismatch],
			"bytes", a.bytes,
		)
	}
}

func (a *Aggregator) logOutcome(out domain.FetchOutcome) {
	k := out.Candidate.Key
	attrs := []any{
		"symbol", k.Symbol,
		"data_type", k.DataType,
		"interval", k.Interval,
		"period", k.Period.String(),
		"status", out.Status,
		"attempts", out.Attempts,
		"bytes", out.BytesWritten,
	}

	switch out.Status {
	case domain.StatusDownloaded:
		a.logger.Info("file downloaded", attrs...)
	case domain.StatusNotFound:
		a.logger.Info("file not published", attrs...)
	case domain.StatusFailed, domain.StatusChecksumMismatch:
		a.logger.Error("file failed", append(attrs, "error", out.Error)...)
	default:
		a.logger.Debug("file skipped", attrs...)
	}
}

// Snapshot returns the report as it stands without finalizing it.
func (a *Aggregator) Snapshot() domain.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final != nil {
		return *a.final
	}
	return a.build(a.now())
}

// Finalize freezes the report. Later calls return the identical report.
func (a *Aggregator) Finalize() domain.RunReport {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.final == nil {
		r := a.build(a.now())
		a.final = &r
	}
	return *a.final
}

func (a *Aggregator) build(finishedAt time.Time) domain.RunReport {
	counts := make(map[domain.FetchStatus]int, len(domain.FetchStatuses))
	for _, s := range domain.FetchStatuses {
		counts[s] = 0
	}
	maps.Copy(counts, a.counts)

	failures := slices.Clone(a.failures)
	slices.SortFunc(failures, func(x, y domain.FetchOutcome) int {
		return x.Candidate.Seq - y.Candidate.Seq
	})

	return domain.RunReport{
		Total:        a.total,
		Counts:       counts,
		BytesWritten: a.bytes,
		Failures:     failures,
		StartedAt:    a.startedAt,
		FinishedAt:   finishedAt,
	}
}
