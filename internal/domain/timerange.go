package domain

import (
	"strings"
	"time"
)

// TimeRange is one of the supported look-back windows.
type TimeRange string

const (
	OneWeek     TimeRange = "1 week"
	OneMonth    TimeRange = "1 month"
	ThreeMonths TimeRange = "3 months"
)

// TimeRanges lists the supported ranges in ascending order.
var TimeRanges = []TimeRange{OneWeek, OneMonth, ThreeMonths}

// ParseTimeRange accepts the long literals and their short aliases (1w, 1m, 3m).
func ParseTimeRange(s string) (TimeRange, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1 week", "1w":
		return OneWeek, nil
	case "1 month", "1m":
		return OneMonth, nil
	case "3 months", "3m":
		return ThreeMonths, nil
	}
	return "", Validationf("parse time range", "invalid time range %q: expected '1 week', '1 month' or '3 months'", s)
}

// Key is the short form used in cache keys.
func (t TimeRange) Key() string {
	switch t {
	case OneWeek:
		return "1w"
	case OneMonth:
		return "1m"
	case ThreeMonths:
		return "3m"
	}
	return ""
}

// Since returns the start of the window ending at now.
func (t TimeRange) Since(now time.Time) time.Time {
	switch t {
	case OneMonth:
		return now.AddDate(0, -1, 0)
	case ThreeMonths:
		return now.AddDate(0, -3, 0)
	default:
		return now.AddDate(0, 0, -7)
	}
}

// Window is a half-open interval [Since, Until).
type Window struct {
	Since time.Time
	Until time.Time
}

// WeeksInSeries is the fixed length of a weekly activity series.
const WeeksInSeries = 12

// Week is the length of one bucket of a weekly activity series.
const Week = 7 * 24 * time.Hour

// WeekWindows returns the 12 consecutive 7-day windows ending at now,
// oldest first. Bucket i covers [now-7*(12-i)d, now-7*(11-i)d). Windows are
// computed in UTC on elapsed time so a DST change never stretches a bucket.
func WeekWindows(now time.Time) [WeeksInSeries]Window {
	now = now.UTC()
	var windows [WeeksInSeries]Window
	for i := range windows {
		windows[i] = Window{
			Since: now.Add(-time.Duration(WeeksInSeries-i) * Week),
			Until: now.Add(-time.Duration(WeeksInSeries-1-i) * Week),
		}
	}
	return windows
}
