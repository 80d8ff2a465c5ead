package backtest

import (
	"math"
	"sort"
	"time"

	"github.com/newthinker/navsim/internal/core"
)

// weightTolerance absorbs rounding in schedules that are meant to sum to 1.
const weightTolerance = 1e-9

// plan is the validated, date-indexed form of an Input.
type plan struct {
	calendar []time.Time
	prices   map[time.Time]map[string]float64
	schedule map[time.Time]map[string]float64
	signals  map[time.Time]core.Exposure

	// schedule dates that never appear in the price calendar
	orphanRebalances []time.Time
}

// Validate checks a configuration and input without running the simulation.
func Validate(cfg Config, in Input) error {
	_, err := preparePlan(cfg, in)
	return err
}

// preparePlan rejects malformed input before any date is simulated.
func preparePlan(cfg Config, in Input) (*plan, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if len(in.Prices) == 0 {
		return nil, core.WrapError(core.ErrNoData, core.Invalidf("price table is empty"))
	}

	p := &plan{
		prices:   make(map[time.Time]map[string]float64),
		schedule: make(map[time.Time]map[string]float64),
		signals:  make(map[time.Time]core.Exposure, len(in.Signals)),
	}

	for i, row := range in.Prices {
		if !core.IsDay(row.Date) {
			return nil, core.Invalidf("price row %d: date %v is not a whole UTC trading date", i, row.Date)
		}
		if row.Instrument == "" {
			return nil, core.Invalidf("price row %d: empty instrument", i)
		}
		if math.IsNaN(row.Close) || math.IsInf(row.Close, 0) || row.Close <= 0 {
			return nil, core.Invalidf("price row %d: %s on %s has non-positive close %v",
				i, row.Instrument, core.FormatDate(row.Date), row.Close)
		}
		day, ok := p.prices[row.Date]
		if !ok {
			day = make(map[string]float64)
			p.prices[row.Date] = day
		}
		if _, dup := day[row.Instrument]; dup {
			return nil, core.Invalidf("price row %d: duplicate price for %s on %s",
				i, row.Instrument, core.FormatDate(row.Date))
		}
		day[row.Instrument] = row.Close
	}

	p.calendar = make([]time.Time, 0, len(p.prices))
	for d := range p.prices {
		p.calendar = append(p.calendar, d)
	}
	sort.Slice(p.calendar, func(i, j int) bool { return p.calendar[i].Before(p.calendar[j]) })

	sums := make(map[time.Time]float64)
	for i, row := range in.Schedule {
		if !core.IsDay(row.Date) {
			return nil, core.Invalidf("schedule row %d: date %v is not a whole UTC trading date", i, row.Date)
		}
		if row.Instrument == "" {
			return nil, core.Invalidf("schedule row %d: empty instrument", i)
		}
		if math.IsNaN(row.Weight) || math.IsInf(row.Weight, 0) || row.Weight < 0 {
			return nil, core.Invalidf("schedule row %d: %s on %s has invalid weight %v",
				i, row.Instrument, core.FormatDate(row.Date), row.Weight)
		}
		day, ok := p.schedule[row.Date]
		if !ok {
			day = make(map[string]float64)
			p.schedule[row.Date] = day
		}
		if _, dup := day[row.Instrument]; dup {
			return nil, core.Invalidf("schedule row %d: duplicate weight for %s on %s",
				i, row.Instrument, core.FormatDate(row.Date))
		}
		day[row.Instrument] = row.Weight
		sums[row.Date] += row.Weight
	}
	for d, sum := range sums {
		if sum > 1+weightTolerance {
			return nil, core.Invalidf("schedule on %s sums to %v, more than 100%%", core.FormatDate(d), sum)
		}
		if _, ok := p.prices[d]; !ok {
			p.orphanRebalances = append(p.orphanRebalances, d)
		}
	}
	sort.Slice(p.orphanRebalances, func(i, j int) bool {
		return p.orphanRebalances[i].Before(p.orphanRebalances[j])
	})

	for i, row := range in.Signals {
		if !core.IsDay(row.Date) {
			return nil, core.Invalidf("signal row %d: date %v is not a whole UTC trading date", i, row.Date)
		}
		switch row.Signal {
		case core.ExposureLong, core.ExposureFlat, core.ExposureUndefined:
		default:
			return nil, core.Invalidf("signal row %d: unknown signal %d", i, row.Signal)
		}
		if _, dup := p.signals[row.Date]; dup {
			return nil, core.Invalidf("signal row %d: duplicate signal on %s", i, core.FormatDate(row.Date))
		}
		p.signals[row.Date] = row.Signal
	}

	return p, nil
}
