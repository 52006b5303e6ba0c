package enumerator

import (
	"slices"
	"time"

	"github.com/veranemoloko/vision-downloader/internal/domain"
)

// periods resolves the selection's date mode to an ordered, deduplicated list of
// periods at the selection's granularity. Periods starting after today are dropped.
func (e *Enumerator) periods(sel domain.Selection) ([]domain.Period, error) {
	hasDates := len(sel.Dates) > 0
	hasYearMonth := len(sel.Years) > 0 || len(sel.Months) > 0
	hasRange := sel.StartDate != "" || sel.EndDate != ""

	modes := 0
	for _, set := range []bool{hasDates, hasYearMonth, hasRange} {
		if set {
			modes++
		}
	}
	if modes > 1 {
		return nil, invalid("dates, years/months and start/end are mutually exclusive")
	}

	today := e.today()
	daily := sel.Granularity == domain.GranularityDaily

	var out []domain.Period
	switch {
	case hasDates:
		for _, raw := range sel.Dates {
			d, err := time.Parse(dateLayout, raw)
			if err != nil {
				return nil, invalid("invalid date %q", raw)
			}
			out = append(out, periodOf(d, daily))
		}

	case hasYearMonth:
		if len(sel.Years) == 0 {
			return nil, invalid("months require at least one year")
		}
		months := sel.Months
		if len(months) == 0 {
			months = []int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12}
		}
		for _, y := range sel.Years {
			for _, m := range months {
				if m < 1 || m > 12 {
					return nil, invalid("month %d out of range", m)
				}
				first := time.Date(y, time.Month(m), 1, 0, 0, 0, 0, time.UTC)
				if daily {
					out = appendDays(out, first, first.AddDate(0, 1, -1))
				} else {
					out = append(out, domain.MonthPeriod(first))
				}
			}
		}

	default:
		start, end := e.defaultStart, today
		if sel.StartDate != "" {
			t, err := time.Parse(dateLayout, sel.StartDate)
			if err != nil {
				return nil, invalid("invalid start date %q", sel.StartDate)
			}
			start = t
		}
		if sel.EndDate != "" {
			t, err := time.Parse(dateLayout, sel.EndDate)
			if err != nil {
				return nil, invalid("invalid end date %q", sel.EndDate)
			}
			end = t
		}
		if start.After(end) {
			return nil, invalid("start date %s is after end date %s", start.Format(dateLayout), end.Format(dateLayout))
		}
		if end.After(today) {
			end = today
		}
		if daily {
			out = appendDays(out, start, end)
		} else {
			for m := time.Date(start.Year(), start.Month(), 1, 0, 0, 0, 0, time.UTC); !m.After(end); m = m.AddDate(0, 1, 0) {
				out = append(out, domain.MonthPeriod(m))
			}
		}
	}

	out = slices.DeleteFunc(out, func(p domain.Period) bool {
		return p.Start().After(today)
	})
	slices.SortFunc(out, func(a, b domain.Period) int {
		return a.Start().Compare(b.Start())
	})
	return slices.Compact(out), nil
}

func (e *Enumerator) today() time.Time {
	now := e.now().UTC()
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
}

func periodOf(t time.Time, daily bool) domain.Period {
	if daily {
		return domain.DayPeriod(t)
	}
	return domain.MonthPeriod(t)
}

func appendDays(out []domain.Period, from, to time.Time) []domain.Period {
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		out = append(out, domain.DayPeriod(d))
	}
	return out
}
