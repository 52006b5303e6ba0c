package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	h "github.com/veranemoloko/vision-downloader/internal/api/http"
	"github.com/veranemoloko/vision-downloader/internal/repository"
	"github.com/veranemoloko/vision-downloader/internal/service"
)

func newServeCmd(a *app) *cobra.Command {
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Serve the HTTP API. Runs submitted with POST /runs are processed in the
background and persisted to VD_STATE_FILE; runs left unfinished by a previous
process are resumed on start.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := a.load(); err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				a.cfg.HTTPPort = port
			}
			return a.serve(cmd.Context())
		},
	}

	cmd.Flags().IntVarP(&port, "port", "p", 0, "listen port (default VD_HTTP_PORT)")
	return cmd
}

func (a *app) serve(parent context.Context) error {
	cfg, logger := a.cfg, a.logger

	runRepo, err := repository.NewRunStorage(cfg.StateFile)
	if err != nil {
		return fmt.Errorf("failed to initialize run repository: %w", err)
	}

	runService, err := service.Build(cfg, runRepo, logger)
	if err != nil {
		return err
	}

	if err := runService.RecoverPendingRuns(parent); err != nil {
		logger.Error("failed to recover pending runs", "error", err)
	}

	router := h.NewRouter(runService, logger)
	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.HTTPPort),
		Handler:      router,
		ReadTimeout:  cfg.HTTPTimeout,
		WriteTimeout: cfg.HTTPTimeout,
		IdleTimeout:  cfg.HTTPTimeout,
	}

	ctx, stop := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer stop()

	serveErr := make(chan error, 1)
	go func() {
		logger.Info("server starting", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-serveErr:
		logger.Error("server failed", "error", err)
		_ = runService.Shutdown(context.Background())
		return err
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	} else {
		logger.Info("server stopped gracefully")
	}

	return runService.Shutdown(shutdownCtx)
}
