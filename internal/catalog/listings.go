package catalog

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

const defaultListingKey = "_default"

// Listings is a cache of first available dates per symbol:
//
//	{"um": {"klines": {"BTCUSDT": {"1h": "2019-09-08", "_default": "2019-09-08"}}}}
//
// A nil *Listings knows nothing and never filters. Listings is not safe for
// concurrent writes.
type Listings struct {
	dates map[string]map[string]map[string]map[string]string
}

// NewListings returns an empty cache.
func NewListings() *Listings {
	return &Listings{dates: map[string]map[string]map[string]map[string]string{}}
}

// LoadListings reads the cache at path. An empty path yields a nil cache.
func LoadListings(path string) (*Listings, error) {
	if path == "" {
		return nil, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read listings file: %w", err)
	}

	return ParseListings(data)
}

// ParseListings decodes a listings document.
func ParseListings(data []byte) (*Listings, error) {
	l := NewListings()
	if len(data) == 0 {
		return l, nil
	}
	if err := json.Unmarshal(data, &l.dates); err != nil {
		return nil, fmt.Errorf("failed to unmarshal listings: %w", err)
	}
	if l.dates == nil {
		l.dates = map[string]map[string]map[string]map[string]string{}
	}
	return l, nil
}

// FirstDate returns the first date the archive has data for the given key.
func (l *Listings) FirstDate(m domain.Market, dataType, symbol, interval string) (time.Time, bool) {
	if l == nil {
		return time.Time{}, false
	}

	bySymbol := l.dates[string(m)][dataType][strings.ToUpper(symbol)]
	if bySymbol == nil {
		return time.Time{}, false
	}

	raw, ok := bySymbol[interval]
	if !ok || interval == "" {
		raw, ok = bySymbol[defaultListingKey]
	}
	if !ok {
		return time.Time{}, false
	}

	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// Has reports whether a date is recorded for exactly this key. An empty
// interval addresses the symbol's default entry.
func (l *Listings) Has(m domain.Market, dataType, symbol, interval string) bool {
	if l == nil {
		return false
	}
	if interval == "" {
		interval = defaultListingKey
	}
	_, ok := l.dates[string(m)][dataType][strings.ToUpper(symbol)][interval]
	return ok
}

// Set records first as the first available date for the key. The symbol's
// default entry tracks the earliest date across its intervals.
func (l *Listings) Set(m domain.Market, dataType, symbol, interval string, first time.Time) {
	byType := l.dates[string(m)]
	if byType == nil {
		byType = map[string]map[string]map[string]string{}
		l.dates[string(m)] = byType
	}
	bySymbolName := byType[dataType]
	if bySymbolName == nil {
		bySymbolName = map[string]map[string]string{}
		byType[dataType] = bySymbolName
	}
	symbol = strings.ToUpper(symbol)
	bySymbol := bySymbolName[symbol]
	if bySymbol == nil {
		bySymbol = map[string]string{}
		bySymbolName[symbol] = bySymbol
	}

	date := first.UTC().Format("2006-01-02")
	if interval != "" {
		bySymbol[interval] = date
	}
	// ISO dates order lexically.
	if cur, ok := bySymbol[defaultListingKey]; !ok || date < cur {
		bySymbol[defaultListingKey] = date
	}
}

// Marshal encodes the cache in the format ParseListings reads.
func (l *Listings) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(l.dates, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal listings: %w", err)
	}
	return append(data, '\n'), nil
}
