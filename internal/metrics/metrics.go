package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/newthinker/navsim/internal/backtest"
)

// Run statuses used as the status label.
const (
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Registry holds the run metrics. It is private to the process so a batch
// run can export exactly what it recorded.
type Registry struct {
	*prometheus.Registry

	backtestsTotal   *prometheus.CounterVec
	backtestDuration prometheus.Histogram
	simulatedDays    prometheus.Counter
	stepsTotal       *prometheus.CounterVec
	staleValuations  prometheus.Counter
	unpricedHoldings prometheus.Counter
	finalValueRatio  prometheus.Gauge
}

// NewRegistry creates a new metrics registry with all metrics registered.
func NewRegistry() *Registry {
	reg := prometheus.NewRegistry()

	r := &Registry{
		Registry: reg,

		backtestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navsim_backtests_total",
				Help: "Total number of backtest runs",
			},
			[]string{"status"},
		),
		backtestDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "navsim_backtest_duration_seconds",
				Help:    "Backtest run duration in seconds, including I/O",
				Buckets: []float64{0.1, 0.5, 1, 5, 10, 30, 60, 300},
			},
		),
		simulatedDays: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navsim_simulated_days_total",
				Help: "Total number of calendar dates simulated",
			},
		),
		stepsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "navsim_steps_total",
				Help: "Simulated dates by ledger action",
			},
			[]string{"action"},
		),
		staleValuations: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navsim_stale_valuations_total",
				Help: "Holdings valued at a carried price because the instrument was suspended",
			},
		),
		unpricedHoldings: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "navsim_unpriced_holdings_total",
				Help: "Holdings excluded from the value because no price was ever observed",
			},
		),
		finalValueRatio: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name: "navsim_final_value_ratio",
				Help: "Normalized value on the last date of the most recent run",
			},
		),
	}

	reg.MustRegister(
		r.backtestsTotal,
		r.backtestDuration,
		r.simulatedDays,
		r.stepsTotal,
		r.staleValuations,
		r.unpricedHoldings,
		r.finalValueRatio,
	)
	return r
}

// RecordBacktest records a run completion.
func (r *Registry) RecordBacktest(status string, duration float64) {
	r.backtestsTotal.WithLabelValues(status).Inc()
	r.backtestDuration.Observe(duration)
}

// RecordResult records what a successful simulation did.
func (r *Registry) RecordResult(res *backtest.Result) {
	r.simulatedDays.Add(float64(len(res.Steps)))
	for _, action := range []backtest.Action{
		backtest.ActionRebalance, backtest.ActionFlatten, backtest.ActionHoldCash, backtest.ActionCarryForward,
	} {
		r.stepsTotal.WithLabelValues(string(action)).Add(float64(res.Count(action)))
	}
	r.staleValuations.Add(float64(res.StaleValuations()))
	r.unpricedHoldings.Add(float64(res.UnpricedValuations()))
	r.finalValueRatio.Set(res.FinalValue())
}

// WriteTextfile exports the registry in the node-exporter textfile format.
func (r *Registry) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.Registry); err != nil {
		return fmt.Errorf("writing metrics textfile: %w", err)
	}
	return nil
}
