package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/veranemoloko/vision-downloader/internal/config"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	"github.com/veranemoloko/vision-downloader/internal/report"
	"github.com/veranemoloko/vision-downloader/internal/service"
	"github.com/veranemoloko/vision-downloader/internal/validation"
)

type downloadFlags struct {
	selectionFile string

	market      string
	granularity string
	dataTypes   []string
	symbols     []string
	intervals   []string
	dates       []string
	years       []int
	months      []int
	startDate   string
	endDate     string

	force            bool
	downloadChecksum bool
	verifyChecksum   bool

	workers int
	retries int
	output  string
}

func newDownloadCmd(a *app) *cobra.Command {
	f := &downloadFlags{}

	cmd := &cobra.Command{
		Use:   "download",
		Short: "Download archive files for a selection",
		Long: `Download every archive file named by a selection.

A selection can come from flags, from a YAML profile (--selection), or both;
flags given explicitly override the profile. When no symbols are named the
current symbol list is fetched from the exchange.

Exit status is 0 when every file was downloaded, already present or not
published, 1 when any file failed, and 2 when the run could not start.`,
		Example: `  vision-downloader download --market um --data-types klines --symbols BTCUSDT \
    --intervals 1h --granularity monthly --years 2024 --months 1,2 --verify-checksum`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.download(cmd, f)
		},
	}

	fl := cmd.Flags()
	fl.StringVar(&f.selectionFile, "selection", "", "YAML selection profile")
	fl.StringVar(&f.market, "market", "", "market: spot, um or cm")
	fl.StringVar(&f.granularity, "granularity", string(domain.GranularityMonthly), "monthly or daily")
	fl.StringSliceVar(&f.dataTypes, "data-types", nil, "data types, e.g. klines,trades")
	fl.StringSliceVar(&f.symbols, "symbols", nil, "symbols; empty fetches all listed symbols")
	fl.StringSliceVar(&f.intervals, "intervals", nil, "kline intervals, e.g. 1m,1h")
	fl.StringSliceVar(&f.dates, "dates", nil, "explicit dates (YYYY-MM-DD)")
	fl.IntSliceVar(&f.years, "years", nil, "years")
	fl.IntSliceVar(&f.months, "months", nil, "months (1-12), used with --years")
	fl.StringVar(&f.startDate, "start-date", "", "range start (YYYY-MM-DD)")
	fl.StringVar(&f.endDate, "end-date", "", "range end (YYYY-MM-DD), default today")
	fl.BoolVar(&f.force, "force", false, "download even when the file exists")
	fl.BoolVar(&f.downloadChecksum, "download-checksum", false, "store the .CHECKSUM sidecar next to each file")
	fl.BoolVar(&f.verifyChecksum, "verify-checksum", false, "verify each file against its .CHECKSUM sidecar")
	fl.IntVar(&f.workers, "workers", 0, "concurrent downloads (default VD_MAX_WORKERS)")
	fl.IntVar(&f.retries, "retries", 0, "retries per file (default VD_MAX_RETRIES)")
	fl.StringVarP(&f.output, "output", "o", "", "output directory (default VD_OUTPUT_DIR)")

	return cmd
}

func (a *app) download(cmd *cobra.Command, f *downloadFlags) error {
	if err := a.load(); err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	sel, ro, err := f.resolve(cmd, a.cfg)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}
	if err := validation.ValidateSelection(sel); err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	cfg := *a.cfg
	fl := cmd.Flags()
	if fl.Changed("workers") {
		cfg.MaxWorkers = f.workers
	}
	if fl.Changed("retries") {
		cfg.MaxRetries = f.retries
	}
	if fl.Changed("output") {
		cfg.OutputDir = f.output
	}

	svc, err := service.Build(&cfg, nil, a.logger)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	r, err := svc.Execute(ctx, sel, ro)
	if err != nil {
		return &ExitError{Code: 2, Err: err}
	}

	if err := report.WriteSummary(cmd.OutOrStdout(), r); err != nil {
		a.logger.Warn("failed to write summary", "error", err)
	}
	if code := r.ExitCode(); code != 0 {
		return &ExitError{Code: code}
	}
	return nil
}

// resolve merges the optional profile with explicitly set flags and config defaults.
func (f *downloadFlags) resolve(cmd *cobra.Command, cfg *config.Config) (domain.Selection, domain.RunOptions, error) {
	var (
		sel domain.Selection
		ro  domain.RunOptions
	)
	if f.selectionFile != "" {
		profile, err := config.LoadSelection(f.selectionFile)
		if err != nil {
			return sel, ro, err
		}
		sel, ro = profile.Selection, profile.Options
	}

	fl := cmd.Flags()
	if fl.Changed("market") {
		sel.Market = domain.Market(f.market)
	}
	if fl.Changed("granularity") || sel.Granularity == "" {
		sel.Granularity = domain.Granularity(f.granularity)
	}
	if fl.Changed("data-types") {
		sel.DataTypes = f.dataTypes
	}
	if fl.Changed("symbols") {
		sel.Symbols = f.symbols
	}
	if fl.Changed("intervals") {
		sel.Intervals = f.intervals
	}

	// Any date flag replaces the profile's date mode entirely.
	if fl.Changed("dates") || fl.Changed("years") || fl.Changed("months") ||
		fl.Changed("start-date") || fl.Changed("end-date") {
		sel.Dates, sel.Years, sel.Months = f.dates, f.years, f.months
		sel.StartDate, sel.EndDate = f.startDate, f.endDate
	}

	ro.Force = ro.Force || f.force
	ro.DownloadChecksum = ro.DownloadChecksum || f.downloadChecksum || cfg.DownloadChecksum
	ro.VerifyChecksum = ro.VerifyChecksum || f.verifyChecksum || cfg.VerifyChecksum

	return sel, ro, nil
}
