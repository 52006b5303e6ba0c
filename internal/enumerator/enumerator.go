// Package enumerator expands a selection into the ordered set of archive files it names.
package enumerator

import (
	"fmt"
	"iter"
	"slices"
	"strings"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/catalog"
	"github.com/veranemoloko/vision-downloader/internal/domain"
	errpkg "github.com/veranemoloko/vision-downloader/internal/errors"
)

const dateLayout = "2006-01-02"

// Enumerator turns selections into fetch candidates. It performs no I/O.
type Enumerator struct {
	resolver     *catalog.Resolver
	listings     *catalog.Listings
	defaultStart time.Time
	now          func() time.Time
}

// Option configures an Enumerator.
type Option func(*Enumerator)

// WithListings drops periods that end before a symbol's first listed date.
func WithListings(l *catalog.Listings) Option {
	return func(e *Enumerator) { e.listings = l }
}

// WithDefaultStart sets the start of the range used when a selection has no date mode.
func WithDefaultStart(t time.Time) Option {
	return func(e *Enumerator) { e.defaultStart = t }
}

// WithClock overrides the source of "today".
func WithClock(now func() time.Time) Option {
	return func(e *Enumerator) { e.now = now }
}

func New(resolver *catalog.Resolver, opts ...Option) *Enumerator {
	e := &Enumerator{
		resolver:     resolver,
		defaultStart: time.Date(2020, time.January, 1, 0, 0, 0, 0, time.UTC),
		now:          time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Validate checks everything Enumerate checks except that symbols are present,
// so selections can be accepted before symbols are discovered.
func (e *Enumerator) Validate(sel domain.Selection) error {
	_, err := e.plan(sel)
	return err
}

// plan is a validated, normalized selection.
type plan struct {
	market      domain.Market
	granularity domain.Granularity
	dataTypes   []catalog.DataType
	symbols     []string
	intervals   []string
	periods     []domain.Period
}

// Enumerate validates sel and returns a lazy, restartable sequence of candidates
// ordered by data type, symbol, interval and period. ChecksumURL is populated
// only when withChecksum is set.
func (e *Enumerator) Enumerate(sel domain.Selection, withChecksum bool) (iter.Seq[domain.FetchCandidate], error) {
	p, err := e.plan(sel)
	if err != nil {
		return nil, err
	}
	if len(p.symbols) == 0 {
		return nil, invalid("no symbols selected")
	}

	return func(yield func(domain.FetchCandidate) bool) {
		seq := 0
		for _, dt := range p.dataTypes {
			intervals := []string{""}
			if dt.Intervals {
				intervals = p.intervals
			}
			for _, symbol := range p.symbols {
				for _, interval := range intervals {
					first, listed := e.listings.FirstDate(p.market, dt.Name, symbol, interval)
					for _, period := range p.periods {
						if listed && !period.End().After(first) {
							continue
						}
						key := domain.FetchKey{
							Market:      p.market,
							Granularity: p.granularity,
							DataType:    dt.Name,
							Symbol:      symbol,
							Interval:    interval,
							Period:      period,
						}
						loc := e.resolver.Resolve(key)
						c := domain.FetchCandidate{
							Seq:       seq,
							Key:       key,
							RemoteURL: loc.RemoteURL,
							LocalPath: loc.LocalPath,
						}
						if withChecksum {
							c.ChecksumURL = loc.ChecksumURL
						}
						seq++
						if !yield(c) {
							return
						}
					}
				}
			}
		}
	}, nil
}

func (e *Enumerator) plan(sel domain.Selection) (*plan, error) {
	if !sel.Market.Valid() {
		return nil, invalid("unknown market %q", sel.Market)
	}
	if !sel.Granularity.Valid() {
		return nil, invalid("unknown granularity %q", sel.Granularity)
	}

	p := &plan{market: sel.Market, granularity: sel.Granularity}

	needIntervals := false
	seen := make(map[string]bool)
	for _, name := range sel.DataTypes {
		name = strings.TrimSpace(name)
		if seen[name] {
			continue
		}
		seen[name] = true

		dt, ok := catalog.Lookup(name)
		if !ok {
			return nil, fmt.Errorf("%w: %w: %q", errpkg.ErrInvalidSelection, errpkg.ErrUnsupportedDataType, name)
		}
		if !dt.SupportsMarket(sel.Market) {
			return nil, invalid("data type %s is not published for market %s", name, sel.Market)
		}
		if !dt.SupportsGranularity(sel.Granularity) {
			return nil, invalid("data type %s has no %s files", name, sel.Granularity)
		}
		needIntervals = needIntervals || dt.Intervals
		p.dataTypes = append(p.dataTypes, dt)
	}
	if len(p.dataTypes) == 0 {
		return nil, invalid("no data types selected")
	}

	p.symbols = NormalizeSymbols(sel.Symbols)

	if needIntervals {
		intervals, err := normalizeIntervals(sel.Intervals)
		if err != nil {
			return nil, err
		}
		p.intervals = intervals
	}

	periods, err := e.periods(sel)
	if err != nil {
		return nil, err
	}
	p.periods = periods

	return p, nil
}

// NormalizeSymbols trims, uppercases, deduplicates and sorts symbols.
func NormalizeSymbols(symbols []string) []string {
	out := make([]string, 0, len(symbols))
	for _, s := range symbols {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	slices.Sort(out)
	return slices.Compact(out)
}

func normalizeIntervals(intervals []string) ([]string, error) {
	out := make([]string, 0, len(intervals))
	for _, iv := range intervals {
		iv = strings.TrimSpace(iv)
		if !catalog.IsInterval(iv) {
			return nil, invalid("unknown interval %q", iv)
		}
		out = append(out, iv)
	}
	if len(out) == 0 {
		return nil, invalid("interval data types require at least one interval")
	}
	slices.SortFunc(out, func(a, b string) int {
		return slices.Index(catalog.Intervals, a) - slices.Index(catalog.Intervals, b)
	})
	return slices.Compact(out), nil
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errpkg.ErrInvalidSelection, fmt.Sprintf(format, args...))
}
