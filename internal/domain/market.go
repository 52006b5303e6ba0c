package domain

import (
	"fmt"
	"time"
)

// Market identifies one of the archive's trading venues.
type Market string

const (
	MarketSpot Market = "spot"
	MarketUM   Market = "um"
	MarketCM   Market = "cm"
)

// Markets lists every supported market in archive order.
var Markets = []Market{MarketSpot, MarketUM, MarketCM}

func (m Market) Valid() bool {
	switch m {
	case MarketSpot, MarketUM, MarketCM:
		return true
	}
	return false
}

// IsFutures reports whether the market lives under data/futures in the archive.
func (m Market) IsFutures() bool {
	return m == MarketUM || m == MarketCM
}

// Granularity is the time bucket of an archive file.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityDaily   Granularity = "daily"
)

func (g Granularity) Valid() bool {
	return g == GranularityMonthly || g == GranularityDaily
}

// Period is a calendar month (Day == 0) or a single day.
type Period struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Day   int        `json:"day,omitempty"`
}

// MonthPeriod returns the monthly period containing t.
func MonthPeriod(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month()}
}

// DayPeriod returns the daily period containing t.
func DayPeriod(t time.Time) Period {
	return Period{Year: t.Year(), Month: t.Month(), Day: t.Day()}
}

func (p Period) IsDaily() bool { return p.Day > 0 }

// String formats the period the way archive filenames do: 2024-01 or 2024-01-15.
func (p Period) String() string {
	if p.IsDaily() {
		return fmt.Sprintf("%04d-%02d-%02d", p.Year, int(p.Month), p.Day)
	}
	return fmt.Sprintf("%04d-%02d", p.Year, int(p.Month))
}

// Start is the first instant of the period in UTC.
func (p Period) Start() time.Time {
	day := p.Day
	if day == 0 {
		day = 1
	}
	return time.Date(p.Year, p.Month, day, 0, 0, 0, 0, time.UTC)
}

// End is the first instant after the period.
func (p Period) End() time.Time {
	if p.IsDaily() {
		return p.Start().AddDate(0, 0, 1)
	}
	return p.Start().AddDate(0, 1, 0)
}

func (p Period) Before(o Period) bool {
	return p.Start().Before(o.Start())
}
