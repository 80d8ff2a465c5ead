package performance

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/navsim/internal/backtest"
)

// dailyReturns computes simple returns with r[0] = 0. A zero previous value
// yields a zero return rather than an infinity.
func dailyReturns(values []float64) []float64 {
	returns := make([]float64, len(values))
	for i := 1; i < len(values); i++ {
		if values[i-1] == 0 {
			continue
		}
		returns[i] = values[i]/values[i-1] - 1
	}
	return returns
}

func mean(xs []float64) float64 {
	if len(xs) == 0 {
		return math.NaN()
	}
	var sum float64
	for _, x := range xs {
		sum += x
	}
	return sum / float64(len(xs))
}

// sampleStd is the n-1 standard deviation; NaN for fewer than two samples.
func sampleStd(xs []float64) float64 {
	if len(xs) < 2 {
		return math.NaN()
	}
	m := mean(xs)
	var variance float64
	for _, x := range xs {
		variance += (x - m) * (x - m)
	}
	return math.Sqrt(variance / float64(len(xs)-1))
}

// drawdown describes the deepest peak-to-trough decline of a series.
type drawdown struct {
	depth     float64 // min(V/runmax - 1), <= 0
	peak      int     // index where the peak preceding the trough was set
	trough    int
	recovered int // first index after trough back at or above the peak, -1 if none
}

// maxDrawdown scans the running maximum once and then looks for recovery.
func maxDrawdown(values []float64) drawdown {
	dd := drawdown{recovered: -1}
	if len(values) == 0 {
		return dd
	}

	runMax := values[0]
	runMaxAt := 0
	for i, v := range values {
		if v > runMax {
			runMax = v
			runMaxAt = i
		}
		if runMax <= 0 {
			continue
		}
		if d := v/runMax - 1; d < dd.depth {
			dd.depth = d
			dd.trough = i
			dd.peak = runMaxAt
		}
	}

	if dd.depth < 0 {
		peakValue := values[dd.peak]
		for i := dd.trough + 1; i < len(values); i++ {
			if values[i] >= peakValue {
				dd.recovered = i
				break
			}
		}
	}
	return dd
}

// rebalanceCount counts snapshot dates whose (instrument, units) set differs
// from the previous snapshot date.
func rebalanceCount(holdings []backtest.Holding) int {
	byDate := make(map[time.Time]map[string]float64)
	var dates []time.Time
	for _, h := range holdings {
		if _, ok := byDate[h.Date]; !ok {
			byDate[h.Date] = make(map[string]float64)
			dates = append(dates, h.Date)
		}
		byDate[h.Date][h.Instrument] = h.Units
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })

	count := 0
	var prev map[string]float64
	for _, d := range dates {
		cur := byDate[d]
		if !sameUnits(prev, cur) {
			count++
		}
		prev = cur
	}
	return count
}

func sameUnits(a, b map[string]float64) bool {
	if len(a) != len(b) {
		return false
	}
	for name, u := range a {
		if v, ok := b[name]; !ok || v != u {
			return false
		}
	}
	return true
}
