// Package dataset reads the input tables of a backtest and writes its
// output tables, as CSV or Parquet, through an archive.Storage.
package dataset

import (
	"fmt"
	"path"
	"strings"

	"github.com/newthinker/navsim/internal/core"
)

// Format is a table encoding.
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat validates a configured format name.
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatCSV, FormatParquet:
		return f, nil
	default:
		return "", core.WrapError(core.ErrUnsupportedFormat, fmt.Errorf("format %q", s))
	}
}

// FormatOf picks the format from a file extension.
func FormatOf(p string) (Format, error) {
	ext := strings.TrimPrefix(path.Ext(p), ".")
	if ext == "" {
		return "", core.WrapError(core.ErrUnsupportedFormat, fmt.Errorf("%s has no extension", p))
	}
	f, err := ParseFormat(ext)
	if err != nil {
		return "", core.WrapError(core.ErrUnsupportedFormat, fmt.Errorf("%s: unknown extension .%s", p, ext))
	}
	return f, nil
}

// Ext returns the file extension for the format, with the leading dot.
func (f Format) Ext() string {
	return "." + string(f)
}

// Column names, following the upstream data files.
const (
	colDate      = "trade_date"
	colCode      = "ts_code"
	colClose     = "close"
	colWeight    = "weight"
	colSignal    = "final_signal"
	colBenchmark = "benchmark_value"
	colValue     = "portfolio_value"
	colShares    = "shares"
	colPrice     = "price"
	colHolding   = "value"
	colStale     = "stale"
)
