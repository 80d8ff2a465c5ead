package report

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/dataset"
	"github.com/newthinker/navsim/internal/performance"
	"github.com/newthinker/navsim/internal/storage/archive"
)

var (
	d1 = core.Day(2024, 3, 1)
	d2 = core.Day(2024, 3, 4)
	d3 = core.Day(2024, 3, 5)
	d4 = core.Day(2024, 3, 6)
)

// fixture runs a four-day backtest where B is suspended on d2-d3 and the
// signal flattens the book on the d4 rebalance.
func fixture(t *testing.T) (*backtest.Result, *performance.Report) {
	t.Helper()
	in := backtest.Input{
		Prices: []backtest.PriceRow{
			{Date: d1, Instrument: "A", Close: 10}, {Date: d1, Instrument: "B", Close: 20},
			{Date: d2, Instrument: "A", Close: 11},
			{Date: d3, Instrument: "A", Close: 9},
			{Date: d4, Instrument: "A", Close: 10}, {Date: d4, Instrument: "B", Close: 20},
		},
		Schedule: []backtest.WeightRow{
			{Date: d1, Instrument: "A", Weight: 0.5}, {Date: d1, Instrument: "B", Weight: 0.5},
			{Date: d4, Instrument: "A", Weight: 1},
		},
		Signals: []backtest.SignalRow{{Date: d4, Signal: core.ExposureFlat}},
	}
	res, err := backtest.NewSimulator(backtest.DefaultConfig()).Run(context.Background(), in)
	require.NoError(t, err)

	perf, err := performance.NewAnalyzer(performance.DefaultConfig()).Analyze(res.Values, nil, res.Holdings)
	require.NoError(t, err)
	return res, perf
}

func TestBuild(t *testing.T) {
	res, perf := fixture(t)
	meta := Meta{RunID: "run-1", Name: "demo", GeneratedAt: time.Date(2024, 3, 7, 8, 0, 0, 0, time.UTC)}

	s := Build(meta, res, perf)

	assert.Equal(t, "run-1", s.RunID)
	assert.Equal(t, "2024-03-07T08:00:00Z", s.GeneratedAt)
	assert.Equal(t, "2024-03-01", s.Start)
	assert.Equal(t, "2024-03-06", s.End)
	assert.Equal(t, 4, s.Days)
	assert.Equal(t, 1, s.Actions["rebalance"])
	assert.Equal(t, 1, s.Actions["flatten"])
	assert.Equal(t, 2, s.Actions["carry_forward"])
	assert.Equal(t, []string{"2024-03-06"}, s.FlattenDates)
	assert.Empty(t, s.HoldCashDates)
	assert.Equal(t, 2, s.Stale)
	assert.Equal(t, []Streak{{Instrument: "B", Days: 2}}, s.Suspensions)
	assert.Equal(t, "2024-03-04", s.Drawdown.Peak)
	assert.Equal(t, "2024-03-05", s.Drawdown.Trough)
	require.Len(t, s.Metrics, 10)
	assert.Equal(t, "Annual Return", s.Metrics[0].Name)
}

func TestBuild_WithoutResult(t *testing.T) {
	_, perf := fixture(t)

	s := Build(Meta{GeneratedAt: time.Now()}, nil, perf)

	assert.Equal(t, 4, s.Days)
	assert.Nil(t, s.Actions)
	assert.Empty(t, s.Suspensions)
	assert.Len(t, s.Metrics, 10)
}

func TestEntries_UndefinedHasNilValue(t *testing.T) {
	entries := Entries([]performance.Metric{
		{Name: "Win Rate", Key: performance.KeyWinRate, Value: 0.5, Unit: performance.UnitPercent},
		{Name: "Sortino Ratio", Key: performance.KeySortino, Value: 0, Unit: performance.UnitRatio,
			Reason: performance.ReasonNoLosingDays},
	})

	require.NotNil(t, entries[0].Value)
	assert.Equal(t, 0.5, *entries[0].Value)
	assert.Equal(t, "50.00%", entries[0].Formatted)
	assert.Nil(t, entries[1].Value)
	assert.Equal(t, "n/a (no_losing_days)", entries[1].Formatted)
}

func TestSummary_YAMLRoundTrip(t *testing.T) {
	res, perf := fixture(t)
	s := Build(Meta{RunID: "run-1", GeneratedAt: time.Now()}, res, perf)

	data, err := s.YAML()
	require.NoError(t, err)
	assert.Contains(t, string(data), "run_id: run-1")
	assert.Contains(t, string(data), "value: null")

	back, err := ParseYAML(data)
	require.NoError(t, err)
	assert.Equal(t, s.Metrics, back.Metrics)
	assert.Equal(t, s.Suspensions, back.Suspensions)
	assert.Equal(t, s.FinalValue, back.FinalValue)
}

func TestSummary_Markdown(t *testing.T) {
	res, perf := fixture(t)
	s := Build(Meta{RunID: "run-1", Name: "demo", GeneratedAt: time.Now()}, res, perf)

	md := s.Markdown()

	assert.True(t, strings.HasPrefix(md, "# Backtest Report: demo\n"))
	assert.Contains(t, md, "**Period**: 2024-03-01 to 2024-03-06 (4 days)")
	assert.Contains(t, md, "| Max Drawdown |")
	assert.Contains(t, md, "## Maximum Drawdown")
	assert.Contains(t, md, "| B | 2 days |")
	assert.NotContains(t, md, "## Cash Days")
}

func TestPrintMetrics(t *testing.T) {
	var buf bytes.Buffer
	err := PrintMetrics(&buf, []Entry{
		{Name: "Annual Return", Formatted: "12.00%"},
		{Name: "Calmar Ratio", Formatted: "n/a (zero_drawdown)"},
	})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimRight(buf.String(), "\n"), "\n")
	require.Len(t, lines, 4)
	assert.True(t, strings.HasPrefix(lines[0], "METRIC"))
	assert.Contains(t, lines[2], "12.00%")
	assert.Contains(t, lines[3], "n/a (zero_drawdown)")
}

func TestWriter_Write(t *testing.T) {
	res, perf := fixture(t)
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()

	for _, format := range []dataset.Format{dataset.FormatCSV, dataset.FormatParquet} {
		t.Run(string(format), func(t *testing.T) {
			w := NewWriter(fs, format, true)
			s := Build(Meta{RunID: "run-1", GeneratedAt: time.Now()}, res, perf)
			prefix := "runs/" + string(format)

			a, err := w.Write(ctx, prefix, res, perf, s)
			require.NoError(t, err)

			assert.Equal(t, prefix+"/nav"+format.Ext(), a.Values)
			assert.Equal(t, prefix+"/report.md", a.Markdown)
			assert.Len(t, a.Paths(), 5)

			listed, err := fs.List(ctx, prefix)
			require.NoError(t, err)
			assert.Len(t, listed, 5)

			values, err := dataset.New(fs).LoadValues(ctx, a.Values)
			require.NoError(t, err)
			assert.Equal(t, res.Values, values)
		})
	}
}

func TestWriter_AnalyzeOnly(t *testing.T) {
	_, perf := fixture(t)
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)

	w := NewWriter(fs, dataset.FormatCSV, false)
	a, err := w.Write(context.Background(), "analysis", nil, perf, Build(Meta{}, nil, perf))
	require.NoError(t, err)

	assert.Empty(t, a.Values)
	assert.Empty(t, a.Markdown)
	assert.Equal(t, []string{"analysis/metrics.csv", "analysis/report.yaml"}, a.Paths())
}

func TestWriter_ReplacesStaleArtifacts(t *testing.T) {
	res, perf := fixture(t)
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	s := Build(Meta{RunID: "run-1", GeneratedAt: time.Now()}, res, perf)

	require.NoError(t, fs.Write(ctx, "out/notes.csv", []byte("keep")))
	require.NoError(t, fs.Write(ctx, "out/nested/nav.csv", []byte("keep")))

	_, err = NewWriter(fs, dataset.FormatCSV, true).Write(ctx, "out", res, perf, s)
	require.NoError(t, err)
	_, err = NewWriter(fs, dataset.FormatParquet, false).Write(ctx, "out", res, perf, s)
	require.NoError(t, err)

	listed, err := fs.List(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out/holdings.parquet",
		"out/metrics.parquet",
		"out/nav.parquet",
		"out/nested/nav.csv",
		"out/notes.csv",
		"out/report.yaml",
	}, listed)
}

func TestOwned(t *testing.T) {
	tests := []struct {
		name   string
		series bool
		want   bool
	}{
		{"nav.csv", true, true},
		{"nav.csv", false, false},
		{"holdings.parquet", true, true},
		{"holdings.parquet", false, false},
		{"metrics.csv", false, true},
		{"report.yaml", false, true},
		{"report.md", true, true},
		{"prices.csv", true, false},
		{"nav.json", true, false},
		{"nested/nav.csv", true, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, owned(tt.name, tt.series), "%s series=%v", tt.name, tt.series)
	}
}

func TestWriter_AnalyzeKeepsSeries(t *testing.T) {
	res, perf := fixture(t)
	fs, err := archive.NewLocalFS(t.TempDir())
	require.NoError(t, err)
	ctx := context.Background()
	s := Build(Meta{RunID: "run-1", GeneratedAt: time.Now()}, res, perf)

	_, err = NewWriter(fs, dataset.FormatCSV, true).Write(ctx, "out", res, perf, s)
	require.NoError(t, err)
	_, err = NewWriter(fs, dataset.FormatCSV, false).Write(ctx, "out", nil, perf, Build(Meta{}, nil, perf))
	require.NoError(t, err)

	listed, err := fs.List(ctx, "out")
	require.NoError(t, err)
	assert.Equal(t, []string{
		"out/holdings.csv",
		"out/metrics.csv",
		"out/nav.csv",
		"out/report.yaml",
	}, listed)
}
