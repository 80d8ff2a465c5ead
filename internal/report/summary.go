// Package report turns a run's result and metrics into human and machine
// readable artifacts.
package report

import (
	"sort"
	"time"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/performance"
)

// Meta identifies the run a summary belongs to.
type Meta struct {
	RunID       string
	Name        string
	GeneratedAt time.Time
}

// Summary is the run report.
type Summary struct {
	RunID          string         `yaml:"run_id"`
	Name           string         `yaml:"name,omitempty"`
	GeneratedAt    string         `yaml:"generated_at"`
	Start          string         `yaml:"start"`
	End            string         `yaml:"end"`
	Days           int            `yaml:"days"`
	InitialCapital float64        `yaml:"initial_capital,omitempty"`
	FinalValue     float64        `yaml:"final_value"`
	Actions        map[string]int `yaml:"actions,omitempty"`
	FlattenDates   []string       `yaml:"flatten_dates,omitempty"`
	HoldCashDates  []string       `yaml:"hold_cash_dates,omitempty"`
	Stale          int            `yaml:"stale_valuations"`
	Unpriced       int            `yaml:"unpriced_valuations"`
	Suspensions    []Streak       `yaml:"suspension_streaks,omitempty"`
	Drawdown       Drawdown       `yaml:"drawdown"`
	Rebalances     int            `yaml:"rebalances"`
	Metrics        []Entry        `yaml:"metrics"`
}

// Streak is the longest suspension of one instrument, in snapshot days.
type Streak struct {
	Instrument string `yaml:"instrument"`
	Days       int    `yaml:"days"`
}

// Drawdown locates the maximum drawdown.
type Drawdown struct {
	Peak     string `yaml:"peak,omitempty"`
	Trough   string `yaml:"trough,omitempty"`
	Recovery string `yaml:"recovery,omitempty"`
}

// Entry is one metrics table row. Value is nil when the metric is undefined.
type Entry struct {
	Name      string   `yaml:"name"`
	Key       string   `yaml:"key"`
	Value     *float64 `yaml:"value"`
	Formatted string   `yaml:"formatted"`
	Reason    string   `yaml:"reason,omitempty"`
}

// Build assembles a summary. result may be nil when only a value series was
// analyzed.
func Build(meta Meta, result *backtest.Result, perf *performance.Report) *Summary {
	s := &Summary{
		RunID:       meta.RunID,
		Name:        meta.Name,
		GeneratedAt: meta.GeneratedAt.UTC().Format(time.RFC3339),
	}

	if perf != nil {
		s.Start = core.FormatDate(perf.Start)
		s.End = core.FormatDate(perf.End)
		s.Days = perf.Days
		s.Rebalances = perf.Rebalances
		s.Drawdown = Drawdown{
			Peak:     optionalDate(perf.PeakDate),
			Trough:   optionalDate(perf.TroughDate),
			Recovery: optionalDate(perf.RecoveryDate),
		}
		s.Metrics = Entries(perf.Metrics())
	}

	if result != nil {
		s.InitialCapital = result.InitialCapital
		s.FinalValue = result.FinalValue()
		s.Days = len(result.Values)
		s.Actions = make(map[string]int)
		for _, a := range []backtest.Action{
			backtest.ActionRebalance, backtest.ActionFlatten, backtest.ActionHoldCash, backtest.ActionCarryForward,
		} {
			if n := result.Count(a); n > 0 {
				s.Actions[string(a)] = n
			}
		}
		s.FlattenDates = formatDates(result.DatesWith(backtest.ActionFlatten))
		s.HoldCashDates = formatDates(result.DatesWith(backtest.ActionHoldCash))
		s.Stale = result.StaleValuations()
		s.Unpriced = result.UnpricedValuations()
		s.Suspensions = streaks(backtest.SuspensionStreaks(result.Holdings))
	}
	return s
}

// Entries converts metrics into report rows.
func Entries(metrics []performance.Metric) []Entry {
	entries := make([]Entry, len(metrics))
	for i, m := range metrics {
		entries[i] = Entry{
			Name:      m.Name,
			Key:       m.Key,
			Formatted: m.Format(),
			Reason:    string(m.Reason),
		}
		if m.Defined() {
			v := m.Value
			entries[i].Value = &v
		}
	}
	return entries
}

// streaks orders the longest suspensions first.
func streaks(m map[string]int) []Streak {
	out := make([]Streak, 0, len(m))
	for name, days := range m {
		out = append(out, Streak{Instrument: name, Days: days})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Days != out[j].Days {
			return out[i].Days > out[j].Days
		}
		return out[i].Instrument < out[j].Instrument
	})
	return out
}

func formatDates(dates []time.Time) []string {
	if len(dates) == 0 {
		return nil
	}
	out := make([]string, len(dates))
	for i, d := range dates {
		out[i] = core.FormatDate(d)
	}
	return out
}

func optionalDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return core.FormatDate(t)
}
