package agent

import (
	"strconv"
	"strings"
	"time"
)

// ParsePeriod resolves a "MM-YYYY" period into the first instant of
// that month and the last instant before the next month, so entries
// timestamped anywhere on the final day stay inside inclusive range
// queries. Unrecognized input falls back to the current month.
func ParsePeriod(period string) (time.Time, time.Time) {
	if parts := strings.Split(period, "-"); len(parts) == 2 && len(period) == 7 {
		month, merr := strconv.Atoi(parts[0])
		year, yerr := strconv.Atoi(parts[1])
		if merr == nil && yerr == nil && month >= 1 && month <= 12 {
			return monthRange(year, time.Month(month))
		}
	}
	now := time.Now().UTC()
	return monthRange(now.Year(), now.Month())
}

func monthRange(year int, month time.Month) (time.Time, time.Time) {
	start := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return start, start.AddDate(0, 1, 0).Add(-time.Nanosecond)
}

// DefaultPeriod is the current month in "MM-YYYY" form.
func DefaultPeriod() string {
	return time.Now().UTC().Format("01-2006")
}
