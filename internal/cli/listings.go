package cli

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/service"
	"github.com/veranemoloko/vision-downloader/internal/storage"
)

const defaultListingsFile = "symbol_dates.json"

func newListingsCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "listings",
		Short: "Manage the first-available-date cache",
	}
	cmd.AddCommand(newListingsScanCmd(a))
	return cmd
}

type scanFlags struct {
	market    string
	dataTypes []string
	symbols   []string
	intervals []string
	output    string
	resume    bool
}

func newListingsScanCmd(a *app) *cobra.Command {
	f := &scanFlags{}

	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Discover the first published period of each symbol",
		Long: `Check the archive with HEAD requests to find the first published period
of every data type, symbol and interval, and write the result to the
listings cache read by download (VD_LISTINGS_FILE).

Entries already in the cache for other keys are kept. With --resume keys
the cache already holds are not checked again.

Exit status is 1 when any key could not be checked.`,
		Example: `  vision-downloader listings scan --market um --data-types klines --intervals 1h,1d`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.scanListings(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.market, "market", "", "market: spot, um or cm")
	fl.StringSliceVar(&f.dataTypes, "data-types", nil, "data types; empty scans every type of the market")
	fl.StringSliceVar(&f.symbols, "symbols", nil, "symbols; empty scans all listed symbols")
	fl.StringSliceVar(&f.intervals, "intervals", nil, "kline intervals (default 1m,5m,15m,30m,1h,4h,1d,1w,1mo)")
	fl.StringVarP(&f.output, "output", "o", "", "cache file (default VD_LISTINGS_FILE or "+defaultListingsFile+")")
	fl.BoolVar(&f.resume, "resume", false, "skip keys already in the cache")
	_ = cmd.MarkFlagRequired("market")
	return cmd
}

func (a *app) scanListings(cmd *cobra.Command, f *scanFlags) error {
	if err := a.load(); err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	path := f.output
	if path == "" {
		path = a.cfg.ListingsFile
	}
	if path == "" {
		path = defaultListingsFile
	}

	listings, err := catalog.LoadListings(path)
	if errors.Is(err, fs.ErrNotExist) {
		listings, err = catalog.NewListings(), nil
	}
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	scanner, err := service.BuildScanner(a.cfg, a.logger)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	res, scanErr := scanner.Scan(ctx, service.ScanRequest{
		Market:    domain.Market(f.market),
		DataTypes: f.dataTypes,
		Symbols:   f.symbols,
		Intervals: f.intervals,
		Resume:    f.resume,
	}, listings)
	if scanErr != nil && ctx.Err() == nil {
		return &ExitError{Code: 2, Err: scanErr}
	}

	// An interrupted scan still saves what it found.
	data, err := listings.Marshal()
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err := storage.NewFileStorage(filepath.Dir(path)).WriteAtomic(path, data); err != nil {
		return &ExitError{Code: 2, Err: fmt.Errorf("failed to write listings: %w", err)}
	}

	fmt.Fprintf(cmd.OutOrStdout(), "keys %d  found %d  missing %d  skipped %d  failed %d\n",
		res.Keys, res.Found, res.Missing, res.Skipped, res.Failed)
	fmt.Fprintf(cmd.OutOrStdout(), "written %s\n", path)

	if scanErr != nil {
		return &ExitError{Code: 1, Err: scanErr}
	}
	if res.Failed > 0 {
		return &ExitError{Code: 1}
	}
	return nil
}
