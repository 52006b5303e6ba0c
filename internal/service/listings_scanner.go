package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

// scanIntervals are checked for interval data types when a scan names none.
var scanIntervals = []string{"1m", "5m", "15m", "30m", "1h", "4h", "1d", "1w", "1mo"}

// AvailabilityChecker reports whether an archive URL is published.
type AvailabilityChecker interface {
	Available(ctx context.Context, url string) (bool, error)
}

// ScanRequest names the listings keys to discover. Empty DataTypes means every
// type the market publishes; empty Symbols are discovered from the exchange.
type ScanRequest struct {
	Market    domain.Market
	DataTypes []string
	Symbols   []string
	Intervals []string
	// Resume skips keys the cache already holds.
	Resume bool
}

// ScanResult counts keys by what the scan learned about them.
type ScanResult struct {
	Keys    int
	Found   int
	Missing int
	Skipped int
	Failed  int
}

// ListingsScanner finds the first published period of each key and records it
// in a listings cache.
type ListingsScanner struct {
	resolver *catalog.Resolver
	checker  AvailabilityChecker
	symbols  SymbolLister
	workers  int
	earliest time.Time
	now      func() time.Time
	logger   *slog.Logger
}

func NewListingsScanner(
	resolver *catalog.Resolver,
	checker AvailabilityChecker,
	symbols SymbolLister,
	workers int,
	earliest time.Time,
	logger *slog.Logger,
) *ListingsScanner {
	return &ListingsScanner{
		resolver: resolver,
		checker:  checker,
		symbols:  symbols,
		workers:  max(workers, 1),
		earliest: earliest,
		now:      time.Now,
		logger:   logger,
	}
}

type scanKey struct {
	dataType catalog.DataType
	symbol   string
	interval string
}

// Scan checks every key of req and records the first published date of each
// found key in into. Keys whose checks fail are counted and left out; the
// error is non-nil only for bad requests and cancellation.
func (s *ListingsScanner) Scan(ctx context.Context, req ScanRequest, into *catalog.Listings) (ScanResult, error) {
	var result ScanResult

	keys, err := s.keys(ctx, req)
	if err != nil {
		return result, err
	}

	var mu sync.Mutex
	var g errgroup.Group
	g.SetLimit(s.workers)

	for _, k := range keys {
		if ctx.Err() != nil {
			break
		}
		if req.Resume && into.Has(req.Market, k.dataType.Name, k.symbol, k.interval) {
			result.Skipped++
			continue
		}

		g.Go(func() error {
			first, ok, err := s.firstPublished(ctx, req.Market, k)

			mu.Lock()
			defer mu.Unlock()
			switch {
			case err != nil:
				if ctx.Err() == nil {
					result.Failed++
					s.logger.Warn("listing scan failed",
						"data_type", k.dataType.Name,
						"symbol", k.symbol,
						"interval", k.interval,
						"error", err,
					)
				}
			case !ok:
				result.Missing++
			default:
				result.Found++
				into.Set(req.Market, k.dataType.Name, k.symbol, k.interval, first)
				s.logger.Debug("first period found",
					"data_type", k.dataType.Name,
					"symbol", k.symbol,
					"interval", k.interval,
					"date", first.Format(time.DateOnly),
				)
			}
			return nil
		})
	}
	_ = g.Wait()

	result.Keys = len(keys)
	if err := ctx.Err(); err != nil {
		return result, err
	}

	s.logger.Info("listings scan finished",
		"market", req.Market,
		"keys", result.Keys,
		"found", result.Found,
		"missing", result.Missing,
		"skipped", result.Skipped,
		"failed", result.Failed,
	)
	return result, nil
}

func (s *ListingsScanner) keys(ctx context.Context, req ScanRequest) ([]scanKey, error) {
	if !req.Market.Valid() {
		return nil, fmt.Errorf("%w: unknown market %q", errpkg.ErrInvalidSelection, req.Market)
	}

	var types []catalog.DataType
	if len(req.DataTypes) == 0 {
		for _, dt := range catalog.DataTypes() {
			if dt.SupportsMarket(req.Market) {
				types = append(types, dt)
			}
		}
	}
	for _, name := range req.DataTypes {
		dt, ok := catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %q", errpkg.ErrUnsupportedDataType, name)
		}
		if !dt.SupportsMarket(req.Market) {
			return nil, fmt.Errorf("%w: %s is not published for %s", errpkg.ErrUnsupportedDataType, name, req.Market)
		}
		types = append(types, dt)
	}

	intervals := scanIntervals
	if len(req.Intervals) > 0 {
		intervals = req.Intervals
		for _, iv := range intervals {
			if !catalog.IsInterval(iv) {
				return nil, fmt.Errorf("%w: unknown interval %q", errpkg.ErrInvalidSelection, iv)
			}
		}
	}

	symbols, err := s.resolveSymbols(ctx, req)
	if err != nil {
		return nil, err
	}

	var keys []scanKey
	for _, dt := range types {
		for _, sym := range symbols {
			if !dt.Intervals {
				keys = append(keys, scanKey{dataType: dt, symbol: sym})
				continue
			}
			for _, iv := range intervals {
				keys = append(keys, scanKey{dataType: dt, symbol: sym, interval: iv})
			}
		}
	}
	return keys, nil
}

func (s *ListingsScanner) resolveSymbols(ctx context.Context, req ScanRequest) ([]string, error) {
	var out []string
	if len(req.Symbols) > 0 {
		for _, sym := range req.Symbols {
			if sym = strings.ToUpper(strings.TrimSpace(sym)); sym != "" {
				out = append(out, sym)
			}
		}
	} else {
		if s.symbols == nil {
			return nil, fmt.Errorf("%w: no symbols given and no symbol source configured", errpkg.ErrInvalidSelection)
		}
		listed, err := s.symbols.List(ctx, req.Market)
		if err != nil {
			return nil, fmt.Errorf("failed to list symbols: %w", err)
		}
		out = listed
	}
	slices.Sort(out)
	return slices.Compact(out), nil
}

// firstPublished returns the start of the earliest published period for k.
// It steps back from the newest period in doubling strides until a published
// one turns up, then bisects towards the oldest. Listings are assumed
// contiguous from the first published period onwards.
func (s *ListingsScanner) firstPublished(ctx context.Context, m domain.Market, k scanKey) (time.Time, bool, error) {
	granularity := domain.GranularityDaily
	if k.dataType.Monthly {
		granularity = domain.GranularityMonthly
	}
	periods := s.periods(granularity == domain.GranularityDaily)
	if len(periods) == 0 {
		return time.Time{}, false, nil
	}

	published := func(i int) (bool, error) {
		loc := s.resolver.Resolve(domain.FetchKey{
			Market:      m,
			Granularity: granularity,
			DataType:    k.dataType.Name,
			Symbol:      k.symbol,
			Interval:    k.interval,
			Period:      periods[i],
		})
		return s.checker.Available(ctx, loc.RemoteURL)
	}

	found := -1
	for i, step := len(periods)-1, 1; ; step *= 2 {
		ok, err := published(i)
		if err != nil {
			return time.Time{}, false, err
		}
		if ok {
			found = i
			break
		}
		if i == 0 {
			return time.Time{}, false, nil
		}
		i = max(i-step, 0)
	}

	lo, hi := 0, found
	for lo < hi {
		mid := lo + (hi-lo)/2
		ok, err := published(mid)
		if err != nil {
			return time.Time{}, false, err
		}
		if ok {
			hi = mid
		} else {
			lo = mid + 1
		}
	}
	return periods[hi].Start(), true, nil
}

// periods lists every complete period from the earliest scan date up to the
// last finished month or yesterday.
func (s *ListingsScanner) periods(daily bool) []domain.Period {
	now := s.now().UTC()
	var out []domain.Period
	if daily {
		last := time.Date(now.Year(), now.Month(), now.Day()-1, 0, 0, 0, 0, time.UTC)
		for d := s.earliest; !d.After(last); d = d.AddDate(0, 0, 1) {
			out = append(out, domain.DayPeriod(d))
		}
		return out
	}

	last := time.Date(now.Year(), now.Month()-1, 1, 0, 0, 0, 0, time.UTC)
	for m := time.Date(s.earliest.Year(), s.earliest.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(last); m = m.AddDate(0, 1, 0) {
		out = append(out, domain.MonthPeriod(m))
	}
	return out
}
