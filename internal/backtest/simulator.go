package backtest

import (
	"context"
	"sort"
	"time"

	"github.com/newthinker/navsim/internal/core"
	"go.uber.org/zap"
)

// Simulator replays a rebalancing schedule and an exposure signal over the
// price calendar and tracks the resulting portfolio value.
type Simulator struct {
	cfg    Config
	logger *zap.Logger
}

// NewSimulator creates a Simulator with the given parameters
func NewSimulator(cfg Config, logger ...*zap.Logger) *Simulator {
	var l *zap.Logger
	if len(logger) > 0 && logger[0] != nil {
		l = logger[0]
	} else {
		l = zap.NewNop()
	}
	return &Simulator{cfg: cfg, logger: l}
}

// Run validates the input and simulates every calendar date in order.
// Cancellation is checked between dates.
func (s *Simulator) Run(ctx context.Context, in Input) (*Result, error) {
	p, err := preparePlan(s.cfg, in)
	if err != nil {
		return nil, err
	}

	for _, d := range p.orphanRebalances {
		s.logger.Warn("rebalance date has no prices, schedule ignored",
			zap.String("date", core.FormatDate(d)),
		)
	}

	s.logger.Info("starting simulation",
		zap.Int("days", len(p.calendar)),
		zap.Int("rebalance_dates", len(p.schedule)),
		zap.Float64("initial_capital", s.cfg.InitialCapital),
	)

	st := newState(s.cfg.InitialCapital)
	result := &Result{
		InitialCapital: s.cfg.InitialCapital,
		Values:         make([]Point, 0, len(p.calendar)),
		Steps:          make([]Step, 0, len(p.calendar)),
	}

	for _, date := range p.calendar {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		signal, hasSignal := p.signals[date]
		step, holdings := st.step(day{
			date:      date,
			prices:    p.prices[date],
			weights:   p.schedule[date],
			signal:    signal,
			hasSignal: hasSignal,
		})
		s.observe(step)

		result.Steps = append(result.Steps, step)
		result.Holdings = append(result.Holdings, holdings...)
		result.Values = append(result.Values, Point{
			Date:  date,
			Value: step.Total / s.cfg.InitialCapital,
		})
	}

	s.logger.Info("simulation complete",
		zap.Int("days", len(result.Values)),
		zap.Int("rebalances", result.Count(ActionRebalance)),
		zap.Int("flattens", result.Count(ActionFlatten)),
		zap.Int("stale_valuations", result.StaleValuations()),
		zap.Float64("final_value", result.FinalValue()),
	)

	return result, nil
}

func (s *Simulator) observe(step Step) {
	date := zap.String("date", core.FormatDate(step.Date))
	switch step.Action {
	case ActionHoldCash:
		s.logger.Warn("no target instrument priced on rebalance date, holding cash",
			date, zap.Float64("cash", step.Cash))
	case ActionRebalance:
		s.logger.Debug("rebalanced", date, zap.Int("held", step.Held), zap.Float64("total", step.Total))
	case ActionFlatten:
		s.logger.Debug("flattened", date, zap.Stringer("signal", step.Signal), zap.Float64("cash", step.Cash))
	}
	if step.Unpriced > 0 {
		s.logger.Warn("held instruments have never been priced, excluded from value",
			date, zap.Int("unpriced", step.Unpriced))
	}
}

// day is the slice of the input tables that belongs to one calendar date.
type day struct {
	date      time.Time
	prices    map[string]float64
	weights   map[string]float64 // nil unless this is a rebalance date
	signal    core.Exposure
	hasSignal bool
}

// state is the carried simulation state. Each run owns exactly one.
type state struct {
	ledger    map[string]float64
	lastPrice map[string]float64
	cash      float64
	capital   float64 // total value at the end of the previous date
}

func newState(initialCapital float64) *state {
	return &state{
		ledger:    make(map[string]float64),
		lastPrice: make(map[string]float64),
		cash:      initialCapital,
		capital:   initialCapital,
	}
}

// resolve applies the signal fallback: no row means long.
func (d day) resolve() core.Exposure {
	if !d.hasSignal {
		return core.ExposureLong
	}
	return d.signal
}

// step advances the state by one date and returns what was recorded.
func (st *state) step(d day) (Step, []Holding) {
	action := ActionCarryForward
	if d.weights != nil {
		if d.resolve().IsLong() {
			alloc := Allocate(d.weights, d.prices, st.capital)
			if len(alloc) == 0 {
				action = ActionHoldCash
				st.ledger = make(map[string]float64)
				st.cash = st.capital
			} else {
				action = ActionRebalance
				st.ledger = alloc
				st.cash = 0
			}
		} else {
			action = ActionFlatten
			st.ledger = make(map[string]float64)
			st.cash = st.capital
		}
	}

	names := make([]string, 0, len(st.ledger))
	for name := range st.ledger {
		names = append(names, name)
	}
	sort.Strings(names)

	step := Step{
		Date:      d.date,
		Action:    action,
		Signal:    d.signal,
		HasSignal: d.hasSignal,
		Cash:      st.cash,
		Held:      len(names),
	}
	if !d.hasSignal {
		step.Signal = core.ExposureLong
	}

	total := st.cash
	var holdings []Holding
	for _, name := range names {
		units := st.ledger[name]
		price, fresh := d.prices[name]
		stale := false
		if fresh {
			st.lastPrice[name] = price
		} else {
			cached, ok := st.lastPrice[name]
			if !ok {
				step.Unpriced++
				continue
			}
			price = cached
			stale = true
			step.Stale++
		}

		value := units * price
		total += value
		if units != 0 {
			holdings = append(holdings, Holding{
				Date:       d.date,
				Instrument: name,
				Units:      units,
				Price:      price,
				Value:      value,
				Stale:      stale,
			})
		}
	}

	step.Total = total
	st.capital = total
	return step, holdings
}
