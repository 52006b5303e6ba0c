package service

import (
	"context"
	"fmt"
	"iter"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/enumerator"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
	"github.com/veranemoloko/vision-downloader/internal/metrics"
	"github.com/veranemoloko/vision-downloader/internal/report"
	"github.com/veranemoloko/vision-downloader/internal/repository"
	"github.com/veranemoloko/vision-downloader/internal/worker"
)

// SymbolLister discovers symbols for selections that name none.
type SymbolLister interface {
	List(ctx context.Context, market domain.Market) ([]string, error)
}

// CandidateRunner drives candidates through fetching and records every outcome.
type CandidateRunner interface {
	Run(ctx context.Context, candidates iter.Seq[domain.FetchCandidate], ro domain.RunOptions, rec worker.Recorder) error
}

// RunService executes selections synchronously for the CLI and as tracked
// background runs for the HTTP API.
type RunService struct {
	repo          repository.RunRepo
	enumerator    *enumerator.Enumerator
	runner        CandidateRunner
	symbols       SymbolLister
	progressEvery int
	logger        *slog.Logger

	mu     sync.Mutex
	active map[uuid.UUID]*report.Aggregator
	closed bool

	wg      sync.WaitGroup
	baseCtx context.Context
	cancel  context.CancelFunc
}

// NewRunService wires a RunService. repo may be nil when only Execute is used,
// and symbols may be nil when selections always name their symbols.
func NewRunService(
	repo repository.RunRepo,
	enum *enumerator.Enumerator,
	runner CandidateRunner,
	symbols SymbolLister,
	progressEvery int,
	logger *slog.Logger,
) *RunService {
	ctx, cancel := context.WithCancel(context.Background())
	return &RunService{
		repo:          repo,
		enumerator:    enum,
		runner:        runner,
		symbols:       symbols,
		progressEvery: progressEvery,
		logger:        logger,
		active:        make(map[uuid.UUID]*report.Aggregator),
		baseCtx:       ctx,
		cancel:        cancel,
	}
}

// Execute runs sel to completion and returns its report. Cancelling ctx stops
// scheduling; candidates that never started are reported as cancelled.
// The error is non-nil only when the run could not start.
func (s *RunService) Execute(ctx context.Context, sel domain.Selection, ro domain.RunOptions) (domain.RunReport, error) {
	return s.execute(ctx, sel, ro, report.NewAggregator(s.logger, s.progressEvery))
}

func (s *RunService) execute(ctx context.Context, sel domain.Selection, ro domain.RunOptions, agg *report.Aggregator) (domain.RunReport, error) {
	metrics.RunsStarted.Inc()

	sel, err := s.resolveSymbols(ctx, sel)
	if err != nil {
		metrics.RunsFailed.Inc()
		return domain.RunReport{}, err
	}

	candidates, err := s.enumerator.Enumerate(sel, ro.WantsChecksum())
	if err != nil {
		metrics.RunsFailed.Inc()
		return domain.RunReport{}, err
	}

	s.logger.Info("run started",
		"market", sel.Market,
		"granularity", sel.Granularity,
		"data_types", sel.DataTypes,
		"symbols_count", len(sel.Symbols),
		"force", ro.Force,
		"verify_checksum", ro.VerifyChecksum,
	)

	if err := s.runner.Run(ctx, candidates, ro, agg); err != nil {
		metrics.RunsFailed.Inc()
		return domain.RunReport{}, err
	}

	r := agg.Finalize()
	if r.HasFailures() {
		metrics.RunsFailed.Inc()
	} else {
		metrics.RunsCompleted.Inc()
	}

	s.logger.Info("run finished",
		"total", r.Total,
		"downloaded", r.Count(domain.StatusDownloaded),
		"skipped_exists", r.Count(domain.StatusSkippedExists),
		"not_found", r.Count(domain.StatusNotFound),
		"failed", r.Count(domain.StatusFailed),
		"checksum_mismatch", r.Count(domain.StatusChecksumMismatch),
		"cancelled", r.Count(domain.StatusCancelled),
		"bytes", r.BytesWritten,
		"duration", r.Duration(),
	)
	return r, nil
}

func (s *RunService) resolveSymbols(ctx context.Context, sel domain.Selection) (domain.Selection, error) {
	if len(enumerator.NormalizeSymbols(sel.Symbols)) > 0 || s.symbols == nil {
		return sel, nil
	}

	listed, err := s.symbols.List(ctx, sel.Market)
	if err != nil {
		return sel, fmt.Errorf("failed to discover symbols for %s: %w", sel.Market, err)
	}
	s.logger.Info("symbols discovered", "market", sel.Market, "symbols_count", len(listed))

	sel.Symbols = listed
	return sel, nil
}

// Submit validates and persists a run, then processes it in the background.
func (s *RunService) Submit(ctx context.Context, req *domain.CreateRunRequest) (*domain.Run, error) {
	if s.isClosed() {
		return nil, errpkg.ErrServiceShutdown
	}
	if err := s.enumerator.Validate(req.Selection); err != nil {
		return nil, err
	}
	if s.symbols == nil && len(enumerator.NormalizeSymbols(req.Selection.Symbols)) == 0 {
		return nil, fmt.Errorf("%w: no symbols selected", errpkg.ErrInvalidSelection)
	}

	now := time.Now()
	run := &domain.Run{
		ID:        uuid.New(),
		Status:    domain.RunStatusPending,
		Selection: req.Selection,
		Options:   req.Options,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateRun(ctx, run); err != nil {
		return nil, fmt.Errorf("failed to save run: %w", err)
	}

	queued := *run
	if err := s.start(&queued); err != nil {
		return nil, err
	}

	s.logger.Info("run submitted",
		"run_id", run.ID,
		"market", run.Selection.Market,
		"data_types", run.Selection.DataTypes,
	)
	return run, nil
}

func (s *RunService) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *RunService) start(run *domain.Run) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return errpkg.ErrServiceShutdown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.process(run)
	}()
	return nil
}

func (s *RunService) process(run *domain.Run) {
	logger := s.logger.With("run_id", run.ID)
	agg := report.NewAggregator(logger, s.progressEvery)

	s.mu.Lock()
	s.active[run.ID] = agg
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.active, run.ID)
		s.mu.Unlock()
	}()

	run.Status = domain.RunStatusInProgress
	run.Error = ""
	if err := s.repo.UpdateRun(context.Background(), run); err != nil {
		logger.Error("failed to mark run in progress", "error", err)
	}

	r, err := s.execute(s.baseCtx, run.Selection, run.Options, agg)
	switch {
	case err != nil:
		run.Status = domain.RunStatusFailed
		run.Error = err.Error()
		logger.Error("run aborted", "error", err)
	case s.baseCtx.Err() != nil && r.Count(domain.StatusCancelled) > 0:
		// Interrupted by shutdown; picked up again on the next start.
		run.Status = domain.RunStatusPending
		run.Report = &r
		logger.Warn("run interrupted by shutdown", "cancelled", r.Count(domain.StatusCancelled))
	case r.HasFailures():
		run.Status = domain.RunStatusFailed
		run.Report = &r
		run.Error = fmt.Sprintf("%d of %d candidates failed", len(r.Failures), r.Total)
	default:
		run.Status = domain.RunStatusCompleted
		run.Report = &r
	}

	if err := s.repo.UpdateRun(context.Background(), run); err != nil {
		logger.Error("failed to save run result", "error", err, "status", run.Status)
	}
}

// Get returns a run. Runs still in progress carry a live report snapshot.
func (s *RunService) Get(ctx context.Context, id uuid.UUID) (*domain.Run, error) {
	run, err := s.repo.GetRun(ctx, id)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	agg, ok := s.active[id]
	s.mu.Unlock()
	if ok && run.Status == domain.RunStatusInProgress {
		snap := agg.Snapshot()
		run.Report = &snap
	}
	return run, nil
}

// RecoverPendingRuns restarts runs left pending or in progress by a previous process.
func (s *RunService) RecoverPendingRuns(ctx context.Context) error {
	var runs []*domain.Run
	for _, status := range []domain.RunStatus{domain.RunStatusPending, domain.RunStatusInProgress} {
		found, err := s.repo.GetRunsByStatus(ctx, status)
		if err != nil {
			return fmt.Errorf("failed to list %s runs: %w", status, err)
		}
		runs = append(runs, found...)
	}

	for _, run := range runs {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.start(run); err != nil {
			return err
		}
		s.logger.Info("run recovered", "run_id", run.ID, "previous_status", run.Status)
	}

	if len(runs) > 0 {
		s.logger.Info("pending runs recovered", "count", len(runs))
	}
	return nil
}

// Shutdown stops accepting runs, cancels scheduling of the active ones and
// waits for in-flight downloads to finish or ctx to expire.
func (s *RunService) Shutdown(ctx context.Context) error {
	s.logger.Info("shutting down run service")

	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("run service shutdown completed")
		return nil
	case <-ctx.Done():
		s.logger.Warn("run service shutdown timed out")
		return ctx.Err()
	}
}
