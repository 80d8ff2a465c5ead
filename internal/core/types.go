package core

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DateLayout is the canonical text form of a trading date.
const DateLayout = "2006-01-02"

// compactDateLayout is the trade_date form used by upstream market data dumps.
const compactDateLayout = "20060102"

// Day returns the trading date for the given calendar day in UTC.
func Day(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a trading date in either YYYY-MM-DD or YYYYMMDD form.
func ParseDate(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	layout := DateLayout
	if len(s) == len(compactDateLayout) && !strings.Contains(s, "-") {
		layout = compactDateLayout
	}
	t, err := time.ParseInLocation(layout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return t, nil
}

// FormatDate renders a trading date as YYYY-MM-DD.
func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}

// IsDay reports whether t is a whole trading date: non-zero, UTC, midnight.
func IsDay(t time.Time) bool {
	if t.IsZero() || t.Location() != time.UTC {
		return false
	}
	h, m, s := t.Clock()
	return h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0
}

// Exposure is the market-exposure (timing) signal for one date.
type Exposure int8

const (
	ExposureUndefined Exposure = -1
	ExposureFlat      Exposure = 0
	ExposureLong      Exposure = 1
)

// IsLong reports whether the portfolio should be invested.
func (e Exposure) IsLong() bool {
	return e == ExposureLong
}

func (e Exposure) String() string {
	switch e {
	case ExposureLong:
		return "long"
	case ExposureFlat:
		return "flat"
	default:
		return "undefined"
	}
}

// ParseExposure parses a signal cell. Empty cells and NaN are undefined;
// 1 and 0 (in any float spelling) are long and flat.
func ParseExposure(s string) (Exposure, error) {
	s = strings.TrimSpace(s)
	if s == "" || strings.EqualFold(s, "nan") || strings.EqualFold(s, "null") {
		return ExposureUndefined, nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return ExposureUndefined, fmt.Errorf("invalid signal %q: %w", s, err)
	}
	return ExposureFromFloat(v)
}

// ExposureFromFloat maps a numeric signal to an Exposure. NaN is undefined.
func ExposureFromFloat(v float64) (Exposure, error) {
	switch {
	case math.IsNaN(v):
		return ExposureUndefined, nil
	case v == 1:
		return ExposureLong, nil
	case v == 0:
		return ExposureFlat, nil
	default:
		return ExposureUndefined, fmt.Errorf("signal must be 0, 1 or undefined, got %v", v)
	}
}

// Float returns the numeric form used on the wire; undefined maps to NaN.
func (e Exposure) Float() float64 {
	switch e {
	case ExposureLong:
		return 1
	case ExposureFlat:
		return 0
	default:
		return math.NaN()
	}
}
