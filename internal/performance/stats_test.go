package performance

import (
	"math"
	"testing"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
)

func TestDailyReturns(t *testing.T) {
	got := dailyReturns([]float64{100, 110, 99, 0, 50})
	want := []float64{0, 0.1, -0.1, -1, 0}

	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if math.Abs(got[i]-want[i]) > 1e-12 {
			t.Errorf("returns[%d] = %f, want %f", i, got[i], want[i])
		}
	}
}

func TestSampleStd(t *testing.T) {
	tests := []struct {
		name string
		xs   []float64
		want float64
	}{
		{"two points", []float64{1, 3}, math.Sqrt(2)},
		{"constant", []float64{5, 5, 5}, 0},
		{"textbook", []float64{2, 4, 4, 4, 5, 5, 7, 9}, math.Sqrt(32.0 / 7)},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := sampleStd(tt.xs); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("sampleStd = %f, want %f", got, tt.want)
			}
		})
	}

	if !math.IsNaN(sampleStd([]float64{1})) {
		t.Error("single sample should have undefined std")
	}
	if !math.IsNaN(mean(nil)) {
		t.Error("empty mean should be NaN")
	}
}

func TestMaxDrawdown(t *testing.T) {
	dd := maxDrawdown([]float64{1, 1.2, 0.9, 1.0, 1.3})

	if math.Abs(dd.depth-(-0.25)) > 1e-12 {
		t.Errorf("depth = %f, want -0.25", dd.depth)
	}
	if dd.peak != 1 || dd.trough != 2 {
		t.Errorf("peak/trough = %d/%d, want 1/2", dd.peak, dd.trough)
	}
	if dd.recovered != 4 {
		t.Errorf("recovered = %d, want 4", dd.recovered)
	}
}

func TestMaxDrawdown_NeverRecovered(t *testing.T) {
	dd := maxDrawdown([]float64{1, 2, 1.5, 1.9})
	if dd.recovered != -1 {
		t.Errorf("recovered = %d, want -1", dd.recovered)
	}
}

func TestMaxDrawdown_Monotone(t *testing.T) {
	dd := maxDrawdown([]float64{1, 1.1, 1.2})
	if dd.depth != 0 || dd.recovered != -1 {
		t.Errorf("unexpected drawdown %+v", dd)
	}
}

func TestMaxDrawdown_Bounded(t *testing.T) {
	series := [][]float64{
		{1, 0},
		{0, 0, 1, 0.5},
		{3, 2, 1, 0.5, 0.25},
		{1, 5, 0.1, 7, 0.0001},
	}
	for _, s := range series {
		dd := maxDrawdown(s)
		if dd.depth < -1 || dd.depth > 0 {
			t.Errorf("depth %f out of [-1, 0] for %v", dd.depth, s)
		}
	}
}

func TestRebalanceCount(t *testing.T) {
	day := func(n int) backtest.Holding { return backtest.Holding{Date: core.Day(2024, 1, n)} }
	h := func(n int, name string, units float64) backtest.Holding {
		row := day(n)
		row.Instrument = name
		row.Units = units
		return row
	}

	holdings := []backtest.Holding{
		h(1, "A", 10),
		h(2, "A", 10),
		h(3, "A", 5), h(3, "B", 5),
		h(4, "B", 5), h(4, "A", 5),
		// flat on day 5, re-entry on day 8
		h(8, "A", 4), h(8, "B", 6),
	}

	if got := rebalanceCount(holdings); got != 3 {
		t.Errorf("rebalanceCount = %d, want 3", got)
	}
	if got := rebalanceCount(nil); got != 0 {
		t.Errorf("rebalanceCount(nil) = %d, want 0", got)
	}
}
