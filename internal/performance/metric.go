package performance

import (
	"fmt"
	"math"
)

// Unit tells Format how to render a metric value.
type Unit string

const (
	UnitPercent Unit = "percent"
	UnitRatio   Unit = "ratio"
	UnitDays    Unit = "days"
)

// Reason explains why a metric is undefined.
type Reason string

const (
	ReasonInsufficientData       Reason = "insufficient_data"
	ReasonNonPositiveStart       Reason = "non_positive_start"
	ReasonZeroVolatility         Reason = "zero_volatility"
	ReasonZeroDrawdown           Reason = "zero_drawdown"
	ReasonNoLosingDays           Reason = "no_losing_days"
	ReasonNoWinningDays          Reason = "no_winning_days"
	ReasonInsufficientDownside   Reason = "insufficient_downside"
	ReasonZeroDownsideVolatility Reason = "zero_downside_volatility"
	ReasonNoBenchmark            Reason = "no_benchmark"
	ReasonNoBenchmarkOverlap     Reason = "no_benchmark_overlap"
	ReasonZeroTrackingError      Reason = "zero_tracking_error"
	ReasonNoDrawdown             Reason = "no_drawdown"
	ReasonNotRecovered           Reason = "not_recovered"
	ReasonNoHoldings             Reason = "no_holdings"
)

// Metric keys, stable across output formats.
const (
	KeyAnnualReturn     = "annual_return"
	KeyMaxDrawdown      = "max_drawdown"
	KeySharpe           = "sharpe_ratio"
	KeyCalmar           = "calmar_ratio"
	KeySortino          = "sortino_ratio"
	KeyInformationRatio = "information_ratio"
	KeyTimeToRecovery   = "time_to_recovery"
	KeyWinRate          = "win_rate"
	KeyProfitLoss       = "profit_loss_ratio"
	KeyTurnover         = "turnover_rate"
)

// Metric is one row of the metrics table. Value is NaN when the metric is
// undefined, in which case Reason is set.
type Metric struct {
	Name   string
	Key    string
	Value  float64
	Unit   Unit
	Reason Reason
}

func defined(name, key string, unit Unit, value float64) Metric {
	return Metric{Name: name, Key: key, Value: value, Unit: unit}
}

func undefined(name, key string, unit Unit, reason Reason) Metric {
	return Metric{Name: name, Key: key, Value: math.NaN(), Unit: unit, Reason: reason}
}

// Defined reports whether the metric carries a value.
func (m Metric) Defined() bool {
	return m.Reason == "" && !math.IsNaN(m.Value)
}

// Format renders the metric for display.
func (m Metric) Format() string {
	if !m.Defined() {
		reason := m.Reason
		if reason == "" {
			reason = ReasonInsufficientData
		}
		return fmt.Sprintf("n/a (%s)", reason)
	}
	switch m.Unit {
	case UnitPercent:
		return fmt.Sprintf("%.2f%%", m.Value*100)
	case UnitDays:
		return fmt.Sprintf("%d days", int(math.Round(m.Value)))
	default:
		return fmt.Sprintf("%.2f", m.Value)
	}
}
