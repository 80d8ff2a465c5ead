package backtest

import (
	"math"
	"time"

	"github.com/newthinker/navsim/internal/core"
)

// DefaultInitialCapital is the capital a run starts with unless configured.
const DefaultInitialCapital = 1e7

// PriceRow is one close price observation. A missing (date, instrument)
// pair means the instrument did not trade that day.
type PriceRow struct {
	Date       time.Time
	Instrument string
	Close      float64
}

// WeightRow is one target weight of the rebalancing schedule.
type WeightRow struct {
	Date       time.Time
	Instrument string
	Weight     float64
}

// SignalRow is the exposure signal for one date.
type SignalRow struct {
	Date   time.Time
	Signal core.Exposure
}

// Input holds the fully materialized tables a run consumes.
type Input struct {
	Prices   []PriceRow
	Schedule []WeightRow
	Signals  []SignalRow
}

// Config holds simulation parameters.
type Config struct {
	InitialCapital float64
}

// DefaultConfig returns the default simulation parameters.
func DefaultConfig() Config {
	return Config{InitialCapital: DefaultInitialCapital}
}

// Validate checks the simulation parameters.
func (c Config) Validate() error {
	if math.IsNaN(c.InitialCapital) || math.IsInf(c.InitialCapital, 0) || c.InitialCapital <= 0 {
		return core.Invalidf("initial capital must be positive, got %v", c.InitialCapital)
	}
	return nil
}

// Action is the ledger transition taken on a date.
type Action string

const (
	ActionRebalance    Action = "rebalance"
	ActionFlatten      Action = "flatten"
	ActionHoldCash     Action = "hold_cash"
	ActionCarryForward Action = "carry_forward"
)

// Point is one entry of a value series.
type Point struct {
	Date  time.Time
	Value float64
}

// Holding is one row of the per-day holdings snapshot.
type Holding struct {
	Date       time.Time
	Instrument string
	Units      float64
	Price      float64 // price used for valuation, possibly carried
	Value      float64
	Stale      bool // valued at a carried price because the instrument was suspended
}

// Step records what happened on one calendar date.
type Step struct {
	Date      time.Time
	Action    Action
	Signal    core.Exposure
	HasSignal bool
	Cash      float64
	Total     float64
	Held      int
	Stale     int // held instruments valued at a carried price
	Unpriced  int // held instruments with no price ever observed, excluded from Total
}

// Result holds the complete simulation output.
type Result struct {
	InitialCapital float64
	Values         []Point
	Holdings       []Holding
	Steps          []Step
}

// FinalValue returns the last normalized value, or 0 for an empty result.
func (r *Result) FinalValue() float64 {
	if len(r.Values) == 0 {
		return 0
	}
	return r.Values[len(r.Values)-1].Value
}

// Count returns how many dates took the given action.
func (r *Result) Count(action Action) int {
	n := 0
	for _, s := range r.Steps {
		if s.Action == action {
			n++
		}
	}
	return n
}

// DatesWith returns the dates on which the given action was taken.
func (r *Result) DatesWith(action Action) []time.Time {
	var dates []time.Time
	for _, s := range r.Steps {
		if s.Action == action {
			dates = append(dates, s.Date)
		}
	}
	return dates
}

// StaleValuations returns the total number of carried-price valuations.
func (r *Result) StaleValuations() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Stale
	}
	return n
}

// UnpricedValuations returns the total number of held-but-never-priced
// valuations that were excluded from the value series.
func (r *Result) UnpricedValuations() int {
	n := 0
	for _, s := range r.Steps {
		n += s.Unpriced
	}
	return n
}
