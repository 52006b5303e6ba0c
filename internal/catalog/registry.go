package catalog

import (
	"slices"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

// DataType describes one archive data type and where it is published.
type DataType struct {
	Name      string          `json:"name"`
	Segment   string          `json:"segment"`
	Markets   []domain.Market `json:"markets"`
	Intervals bool            `json:"intervals"`
	Monthly   bool            `json:"monthly"`
	Daily     bool            `json:"daily"`
}

var (
	allMarkets     = []domain.Market{domain.MarketSpot, domain.MarketUM, domain.MarketCM}
	futuresMarkets = []domain.Market{domain.MarketUM, domain.MarketCM}
)

var registry = []DataType{
	{Name: "klines", Segment: "klines", Markets: allMarkets, Intervals: true, Monthly: true, Daily: true},
	{Name: "trades", Segment: "trades", Markets: allMarkets, Monthly: true, Daily: true},
	{Name: "aggTrades", Segment: "aggTrades", Markets: allMarkets, Monthly: true, Daily: true},
	{Name: "indexPriceKlines", Segment: "indexPriceKlines", Markets: futuresMarkets, Intervals: true, Monthly: true, Daily: true},
	{Name: "markPriceKlines", Segment: "markPriceKlines", Markets: futuresMarkets, Intervals: true, Monthly: true, Daily: true},
	{Name: "premiumIndexKlines", Segment: "premiumIndexKlines", Markets: []domain.Market{domain.MarketUM}, Intervals: true, Monthly: true, Daily: true},
	{Name: "fundingRate", Segment: "fundingRate", Markets: futuresMarkets, Monthly: true},
	{Name: "liquidationSnapshot", Segment: "liquidationSnapshot", Markets: []domain.Market{domain.MarketCM}, Daily: true},
	{Name: "bookTicker", Segment: "bookTicker", Markets: futuresMarkets, Daily: true},
	{Name: "depth", Segment: "depth", Markets: []domain.Market{domain.MarketSpot, domain.MarketUM}, Daily: true},
}

// Intervals are the kline intervals published by the archive.
var Intervals = []string{
	"1s", "1m", "3m", "5m", "15m", "30m",
	"1h", "2h", "4h", "6h", "8h", "12h",
	"1d", "3d", "1w", "1mo",
}

// Lookup returns the descriptor registered under name.
func Lookup(name string) (DataType, bool) {
	for _, dt := range registry {
		if dt.Name == name {
			return dt, true
		}
	}
	return DataType{}, false
}

// DataTypes returns a copy of the registry.
func DataTypes() []DataType {
	return slices.Clone(registry)
}

func (d DataType) SupportsMarket(m domain.Market) bool {
	return slices.Contains(d.Markets, m)
}

func (d DataType) SupportsGranularity(g domain.Granularity) bool {
	switch g {
	case domain.GranularityMonthly:
		return d.Monthly
	case domain.GranularityDaily:
		return d.Daily
	}
	return false
}

// IsInterval reports whether s is a published kline interval.
func IsInterval(s string) bool {
	return slices.Contains(Intervals, s)
}
