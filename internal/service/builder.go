package service

import (
	"fmt"
	"log/slog"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/config"
	"github.com/veranemoloko/vision-downloader/internal/enumerator"
	"github.com/veranemoloko/vision-downloader/internal/repository"
	"github.com/veranemoloko/vision-downloader/internal/storage"
	"github.com/veranemoloko/vision-downloader/internal/symbols"
	"github.com/veranemoloko/vision-downloader/internal/worker"
)

// Build assembles a RunService and its download pipeline from cfg.
func Build(cfg *config.Config, repo repository.RunRepo, logger *slog.Logger) (*RunService, error) {
	resolver, err := catalog.NewResolver(cfg.BaseURL, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	listings, err := catalog.LoadListings(cfg.ListingsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}

	fileStorage := storage.NewFileStorage(cfg.OutputDir)
	if removed, err := fileStorage.CleanTemp(cfg.TempHorizon()); err != nil {
		logger.Warn("failed to clean temporary files", "error", err, "dir", cfg.OutputDir)
	} else if removed > 0 {
		logger.Info("removed leftover temporary files", "count", removed)
	}

	fetcher, httpClient := newFetcher(cfg, fileStorage, logger)
	pool := worker.NewPool(fetcher, fileStorage, cfg.MaxWorkers, logger)

	enum := enumerator.New(resolver,
		enumerator.WithListings(listings),
		enumerator.WithDefaultStart(cfg.DefaultStartDate()),
	)

	logger.Debug("download pipeline ready",
		"base_url", cfg.BaseURL,
		"output_dir", cfg.OutputDir,
		"max_workers", cfg.MaxWorkers,
		"max_retries", cfg.MaxRetries,
		"rate_limit", cfg.RateLimit,
	)

	return NewRunService(repo, enum, pool, newProvider(cfg, httpClient), cfg.ProgressEvery, logger), nil
}

// BuildScanner assembles a ListingsScanner that checks availability through the
// same client, limiter and retry policy as downloads.
func BuildScanner(cfg *config.Config, logger *slog.Logger) (*ListingsScanner, error) {
	resolver, err := catalog.NewResolver(cfg.BaseURL, cfg.OutputDir)
	if err != nil {
		return nil, fmt.Errorf("failed to create resolver: %w", err)
	}

	fetcher, httpClient := newFetcher(cfg, storage.NewFileStorage(cfg.OutputDir), logger)
	return NewListingsScanner(resolver, fetcher, newProvider(cfg, httpClient),
		cfg.MaxWorkers, cfg.DefaultStartDate(), logger), nil
}

func newFetcher(cfg *config.Config, fileStorage *storage.FileStorage, logger *slog.Logger) (*worker.Fetcher, *http.Client) {
	var limiter *rate.Limiter
	if cfg.RateLimit > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), cfg.RateBurst)
	}

	httpClient := worker.NewHTTPClient(cfg.ConnectTimeout, cfg.MaxWorkers)
	fetcher := worker.NewFetcher(fileStorage, httpClient, worker.Options{
		Retry: worker.RetryPolicy{
			MaxRetries: cfg.MaxRetries,
			BaseDelay:  cfg.BackoffBase,
			MaxDelay:   cfg.MaxBackoff,
		},
		AttemptTimeout: cfg.AttemptTimeout,
		MaxFileSize:    cfg.MaxFileSize,
		Limiter:        limiter,
	}, logger)
	return fetcher, httpClient
}

func newProvider(cfg *config.Config, httpClient *http.Client) *symbols.Provider {
	return symbols.NewProvider(symbols.Endpoints{
		Spot:     cfg.SpotAPIURL,
		Futures:  cfg.FuturesAPIURL,
		Delivery: cfg.DeliveryAPIURL,
	}, httpClient)
}
