package dataset

import (
	"context"
	"fmt"
	"math"
	"strconv"

	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/performance"
	"github.com/newthinker/navsim/internal/storage/archive"
)

// Tables reads and writes backtest tables on a storage backend. The format
// of each file is chosen from its extension.
type Tables struct {
	storage archive.Storage
	logger  *zap.Logger
}

// New creates a Tables bound to storage.
func New(storage archive.Storage, logger ...*zap.Logger) *Tables {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &Tables{storage: storage, logger: log}
}

func (t *Tables) read(ctx context.Context, path string) (Format, []byte, error) {
	format, err := FormatOf(path)
	if err != nil {
		return "", nil, err
	}
	data, err := t.storage.Read(ctx, path)
	if err != nil {
		return "", nil, core.WrapError(core.ErrStorageFailed, fmt.Errorf("reading %s: %w", path, err))
	}
	return format, data, nil
}

func (t *Tables) write(ctx context.Context, path string, data []byte, rows int) error {
	if err := t.storage.Write(ctx, path, data); err != nil {
		return core.WrapError(core.ErrStorageFailed, fmt.Errorf("writing %s: %w", path, err))
	}
	t.logger.Debug("table written", zap.String("path", path), zap.Int("rows", rows))
	return nil
}

func (t *Tables) loaded(path string, rows int) {
	t.logger.Debug("table loaded", zap.String("path", path), zap.Int("rows", rows))
}

// LoadPrices reads a (trade_date, ts_code, close) table.
func (t *Tables) LoadPrices(ctx context.Context, path string) ([]backtest.PriceRow, error) {
	format, data, err := t.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []backtest.PriceRow
	switch format {
	case FormatParquet:
		records, err := decodeParquet[priceRecord](path, data)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.PriceRow, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.PriceRow{Date: d, Instrument: r.TsCode, Close: r.Close})
		}
	default:
		tab, err := readTable(path, data, colDate, colCode, colClose)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.PriceRow, 0, len(tab.rows))
		for i := range tab.rows {
			d, err := tab.date(i)
			if err != nil {
				return nil, err
			}
			code, err := tab.text(i, colCode)
			if err != nil {
				return nil, err
			}
			closePx, err := tab.float(i, colClose)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.PriceRow{Date: d, Instrument: code, Close: closePx})
		}
	}
	t.loaded(path, len(out))
	return out, nil
}

// LoadSchedule reads a (trade_date, ts_code, weight) table.
func (t *Tables) LoadSchedule(ctx context.Context, path string) ([]backtest.WeightRow, error) {
	format, data, err := t.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []backtest.WeightRow
	switch format {
	case FormatParquet:
		records, err := decodeParquet[weightRecord](path, data)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.WeightRow, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.WeightRow{Date: d, Instrument: r.TsCode, Weight: r.Weight})
		}
	default:
		tab, err := readTable(path, data, colDate, colCode, colWeight)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.WeightRow, 0, len(tab.rows))
		for i := range tab.rows {
			d, err := tab.date(i)
			if err != nil {
				return nil, err
			}
			code, err := tab.text(i, colCode)
			if err != nil {
				return nil, err
			}
			w, err := tab.float(i, colWeight)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.WeightRow{Date: d, Instrument: code, Weight: w})
		}
	}
	t.loaded(path, len(out))
	return out, nil
}

// LoadSignals reads a (trade_date, final_signal) table. Empty or NaN cells
// are undefined signals.
func (t *Tables) LoadSignals(ctx context.Context, path string) ([]backtest.SignalRow, error) {
	format, data, err := t.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []backtest.SignalRow
	switch format {
	case FormatParquet:
		records, err := decodeParquet[signalRecord](path, data)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.SignalRow, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			sig := core.ExposureUndefined
			if r.FinalSignal != nil {
				if sig, err = core.ExposureFromFloat(*r.FinalSignal); err != nil {
					return nil, core.Invalidf("%s row %d: %v", path, i, err)
				}
			}
			out = append(out, backtest.SignalRow{Date: d, Signal: sig})
		}
	default:
		tab, err := readTable(path, data, colDate, colSignal)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.SignalRow, 0, len(tab.rows))
		for i := range tab.rows {
			d, err := tab.date(i)
			if err != nil {
				return nil, err
			}
			sig, err := core.ParseExposure(tab.field(i, colSignal))
			if err != nil {
				return nil, core.Invalidf("%s line %d: %v", path, tab.line(i), err)
			}
			out = append(out, backtest.SignalRow{Date: d, Signal: sig})
		}
	}
	t.loaded(path, len(out))
	return out, nil
}

// LoadBenchmark reads a (trade_date, benchmark_value) series.
func (t *Tables) LoadBenchmark(ctx context.Context, path string) ([]backtest.Point, error) {
	return t.loadSeries(ctx, path, colBenchmark, func(path string, data []byte) ([]backtest.Point, error) {
		records, err := decodeParquet[benchmarkRecord](path, data)
		if err != nil {
			return nil, err
		}
		out := make([]backtest.Point, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.Point{Date: d, Value: r.BenchmarkValue})
		}
		return out, nil
	})
}

// LoadValues reads a (trade_date, portfolio_value) series, as written by
// WriteValues.
func (t *Tables) LoadValues(ctx context.Context, path string) ([]backtest.Point, error) {
	return t.loadSeries(ctx, path, colValue, func(path string, data []byte) ([]backtest.Point, error) {
		records, err := decodeParquet[valueRecord](path, data)
		if err != nil {
			return nil, err
		}
		out := make([]backtest.Point, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.Point{Date: d, Value: r.PortfolioValue})
		}
		return out, nil
	})
}

func (t *Tables) loadSeries(ctx context.Context, path, col string,
	fromParquet func(string, []byte) ([]backtest.Point, error)) ([]backtest.Point, error) {
	format, data, err := t.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []backtest.Point
	if format == FormatParquet {
		if out, err = fromParquet(path, data); err != nil {
			return nil, err
		}
	} else {
		tab, err := readTable(path, data, colDate, col)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.Point, 0, len(tab.rows))
		for i := range tab.rows {
			d, err := tab.date(i)
			if err != nil {
				return nil, err
			}
			v, err := tab.float(i, col)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.Point{Date: d, Value: v})
		}
	}
	t.loaded(path, len(out))
	return out, nil
}

// LoadHoldings reads a holdings snapshot, as written by WriteHoldings.
func (t *Tables) LoadHoldings(ctx context.Context, path string) ([]backtest.Holding, error) {
	format, data, err := t.read(ctx, path)
	if err != nil {
		return nil, err
	}

	var out []backtest.Holding
	switch format {
	case FormatParquet:
		records, err := decodeParquet[holdingRecord](path, data)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.Holding, 0, len(records))
		for i, r := range records {
			d, err := parseRecordDate(path, i, r.TradeDate)
			if err != nil {
				return nil, err
			}
			out = append(out, backtest.Holding{
				Date: d, Instrument: r.TsCode, Units: r.Shares,
				Price: r.Price, Value: r.Value, Stale: r.Stale,
			})
		}
	default:
		tab, err := readTable(path, data, colDate, colCode, colShares)
		if err != nil {
			return nil, err
		}
		out = make([]backtest.Holding, 0, len(tab.rows))
		for i := range tab.rows {
			h := backtest.Holding{}
			if h.Date, err = tab.date(i); err != nil {
				return nil, err
			}
			if h.Instrument, err = tab.text(i, colCode); err != nil {
				return nil, err
			}
			if h.Units, err = tab.float(i, colShares); err != nil {
				return nil, err
			}
			// price, value and stale are informational and may be blank
			if h.Price, err = tab.optionalFloat(i, colPrice); err != nil {
				return nil, err
			}
			if h.Value, err = tab.optionalFloat(i, colHolding); err != nil {
				return nil, err
			}
			if h.Stale, err = tab.optionalBool(i, colStale); err != nil {
				return nil, err
			}
			out = append(out, h)
		}
	}
	t.loaded(path, len(out))
	return out, nil
}

// WriteValues writes the normalized value series.
func (t *Tables) WriteValues(ctx context.Context, path string, values []backtest.Point) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	if format == FormatParquet {
		records := make([]valueRecord, len(values))
		for i, p := range values {
			records[i] = valueRecord{TradeDate: core.FormatDate(p.Date), PortfolioValue: p.Value}
		}
		data, err = encodeParquet(records)
	} else {
		rows := make([][]string, len(values))
		for i, p := range values {
			rows[i] = []string{core.FormatDate(p.Date), formatFloat(p.Value)}
		}
		data, err = writeTable([]string{colDate, colValue}, rows)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return t.write(ctx, path, data, len(values))
}

// WriteHoldings writes the per-day holdings snapshot.
func (t *Tables) WriteHoldings(ctx context.Context, path string, holdings []backtest.Holding) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	if format == FormatParquet {
		records := make([]holdingRecord, len(holdings))
		for i, h := range holdings {
			records[i] = holdingRecord{
				TradeDate: core.FormatDate(h.Date), TsCode: h.Instrument, Shares: h.Units,
				Price: h.Price, Value: h.Value, Stale: h.Stale,
			}
		}
		data, err = encodeParquet(records)
	} else {
		rows := make([][]string, len(holdings))
		for i, h := range holdings {
			rows[i] = []string{
				core.FormatDate(h.Date), h.Instrument, formatFloat(h.Units),
				formatFloat(h.Price), formatFloat(h.Value), strconv.FormatBool(h.Stale),
			}
		}
		data, err = writeTable([]string{colDate, colCode, colShares, colPrice, colHolding, colStale}, rows)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return t.write(ctx, path, data, len(holdings))
}

// WriteMetrics writes the metrics table. Undefined values are left empty.
func (t *Tables) WriteMetrics(ctx context.Context, path string, metrics []performance.Metric) error {
	format, err := FormatOf(path)
	if err != nil {
		return err
	}

	var data []byte
	if format == FormatParquet {
		records := make([]metricRecord, len(metrics))
		for i, m := range metrics {
			records[i] = metricRecord{
				Metric: m.Name, Key: m.Key, Formatted: m.Format(),
				Unit: string(m.Unit), Reason: string(m.Reason),
			}
			if m.Defined() {
				v := m.Value
				records[i].Value = &v
			}
		}
		data, err = encodeParquet(records)
	} else {
		rows := make([][]string, len(metrics))
		for i, m := range metrics {
			value := ""
			if m.Defined() && !math.IsInf(m.Value, 0) {
				value = formatFloat(m.Value)
			}
			rows[i] = []string{m.Name, m.Key, value, m.Format(), string(m.Unit), string(m.Reason)}
		}
		data, err = writeTable([]string{"metric", "key", "value", "formatted", "unit", "reason"}, rows)
	}
	if err != nil {
		return fmt.Errorf("encoding %s: %w", path, err)
	}
	return t.write(ctx, path, data, len(metrics))
}
