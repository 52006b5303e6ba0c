// Package cli implements the vision-downloader command line.
package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/vision-downloader/internal/config"
)

// ExitError carries a process exit code out of a command.
// Err is nil when the command already reported the problem itself.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("exit status %d", e.Code)
	}
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error { return e.Err }

// app holds state shared by subcommands once configuration is loaded.
type app struct {
	cfg     *config.Config
	logger  *slog.Logger
	verbose bool
}

// load reads configuration from the environment once and sets up logging.
func (a *app) load() error {
	if a.cfg != nil {
		return nil
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if a.verbose {
		cfg.LogLevel = "debug"
	}

	a.cfg = cfg
	a.logger = config.SetupLogger(cfg)
	a.logger.Debug("configuration loaded", "env", cfg.Environment, "output_dir", cfg.OutputDir)
	return nil
}

// NewRootCmd builds the command tree.
func NewRootCmd() *cobra.Command {
	a := &app{}

	root := &cobra.Command{
		Use:   "vision-downloader",
		Short: "Bulk downloader for the Binance public data archive",
		Long: `vision-downloader fetches historical market data archives from
data.binance.vision, skipping files already on disk and optionally
verifying each archive against its published SHA-256 checksum.

Configuration is read from VD_* environment variables and an optional .env file.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newDownloadCmd(a),
		newServeCmd(a),
		newSymbolsCmd(a),
		newListingsCmd(a),
		newDataTypesCmd(),
	)
	return root
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return run(NewRootCmd(), os.Stderr)
}

func run(root *cobra.Command, stderr io.Writer) int {
	err := root.Execute()
	if err == nil {
		return 0
	}

	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		if exitErr.Err != nil {
			fmt.Fprintln(stderr, "Error:", exitErr.Err)
		}
		return exitErr.Code
	}

	fmt.Fprintln(stderr, "Error:", err)
	return 2
}
