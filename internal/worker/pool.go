package worker

import (
	"context"
	"fmt"
	"iter"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

// CandidateFetcher turns a candidate into a terminal outcome.
type CandidateFetcher interface {
	Fetch(ctx context.Context, c domain.FetchCandidate, ro domain.RunOptions) domain.FetchOutcome
}

// ExistenceFilter decides whether a candidate needs fetching.
type ExistenceFilter interface {
	ShouldFetch(c domain.FetchCandidate, force bool) bool
}

// Recorder receives every outcome exactly once. It must be safe for concurrent use.
type Recorder interface {
	Record(out domain.FetchOutcome)
}

// Pool fans candidates out to at most maxWorkers concurrent fetches.
type Pool struct {
	fetcher    CandidateFetcher
	filter     ExistenceFilter
	maxWorkers int
	logger     *slog.Logger
}

func NewPool(fetcher CandidateFetcher, filter ExistenceFilter, maxWorkers int, logger *slog.Logger) *Pool {
	return &Pool{
		fetcher:    fetcher,
		filter:     filter,
		maxWorkers: maxWorkers,
		logger:     logger,
	}
}

// Run consumes candidates and records one outcome per candidate before returning.
// Existing files are skipped without taking a worker slot. Once ctx is done no
// new fetch starts and remaining candidates are recorded as cancelled; fetches
// already in flight finish their current attempt.
//
// Run only fails on configuration errors, before anything is scheduled.
func (p *Pool) Run(ctx context.Context, candidates iter.Seq[domain.FetchCandidate], ro domain.RunOptions, rec Recorder) error {
	if p.maxWorkers <= 0 {
		return fmt.Errorf("%w: %d", errpkg.ErrInvalidWorkers, p.maxWorkers)
	}

	var g errgroup.Group
	g.SetLimit(p.maxWorkers)

	scheduled := 0
	for c := range candidates {
		if err := ctx.Err(); err != nil {
			rec.Record(domain.NewOutcome(c, domain.StatusCancelled, 0, err))
			continue
		}
		if !p.filter.ShouldFetch(c, ro.Force) {
			rec.Record(domain.NewOutcome(c, domain.StatusSkippedExists, 0, nil))
			continue
		}

		scheduled++
		g.Go(func() error {
			rec.Record(p.fetcher.Fetch(ctx, c, ro))
			return nil
		})
	}

	_ = g.Wait()
	p.logger.Debug("worker pool drained", "scheduled", scheduled, "workers", p.maxWorkers)
	return nil
}
