package performance

import (
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/core"
)

// volatilityFloor treats dispersion at rounding-noise level as zero.
const volatilityFloor = 1e-12

// Config holds the analysis parameters.
type Config struct {
	RiskFreeRate         float64 // annual
	AnnualizationFactor  float64 // trading days per year
	TurnoverPerRebalance float64 // fraction of the book assumed traded per rebalance
}

// DefaultConfig returns the default analysis parameters.
func DefaultConfig() Config {
	return Config{
		RiskFreeRate:         0.02,
		AnnualizationFactor:  250,
		TurnoverPerRebalance: 0.5,
	}
}

// Validate checks the analysis parameters.
func (c Config) Validate() error {
	if !finite(c.RiskFreeRate) {
		return core.Invalidf("risk-free rate must be finite, got %v", c.RiskFreeRate)
	}
	if !finite(c.AnnualizationFactor) || c.AnnualizationFactor <= 0 {
		return core.Invalidf("annualization factor must be positive, got %v", c.AnnualizationFactor)
	}
	if !finite(c.TurnoverPerRebalance) || c.TurnoverPerRebalance < 0 {
		return core.Invalidf("turnover per rebalance must be non-negative, got %v", c.TurnoverPerRebalance)
	}
	return nil
}

// Report holds the computed metrics and the dates that define them.
type Report struct {
	AnnualReturn     Metric
	MaxDrawdown      Metric
	Sharpe           Metric
	Calmar           Metric
	Sortino          Metric
	InformationRatio Metric
	TimeToRecovery   Metric
	WinRate          Metric
	ProfitLoss       Metric
	Turnover         Metric

	Days         int
	Start        time.Time
	End          time.Time
	PeakDate     time.Time // zero without a drawdown
	TroughDate   time.Time // zero without a drawdown
	RecoveryDate time.Time // zero if never recovered
	Rebalances   int
}

// Metrics returns the metrics table in display order.
func (r *Report) Metrics() []Metric {
	return []Metric{
		r.AnnualReturn,
		r.MaxDrawdown,
		r.Sharpe,
		r.Calmar,
		r.Sortino,
		r.InformationRatio,
		r.TimeToRecovery,
		r.WinRate,
		r.ProfitLoss,
		r.Turnover,
	}
}

// Get looks a metric up by key.
func (r *Report) Get(key string) (Metric, bool) {
	for _, m := range r.Metrics() {
		if m.Key == key {
			return m, true
		}
	}
	return Metric{}, false
}

// Analyzer derives risk/return statistics from a value series.
type Analyzer struct {
	cfg    Config
	logger *zap.Logger
}

// NewAnalyzer creates an analyzer with the given parameters.
func NewAnalyzer(cfg Config, logger ...*zap.Logger) *Analyzer {
	log := zap.NewNop()
	if len(logger) > 0 && logger[0] != nil {
		log = logger[0]
	}
	return &Analyzer{cfg: cfg, logger: log}
}

// Analyze computes the metrics table. The benchmark and holdings are
// optional; metrics that need them are reported undefined when absent.
func (a *Analyzer) Analyze(values, benchmark []backtest.Point, holdings []backtest.Holding) (*Report, error) {
	if err := a.cfg.Validate(); err != nil {
		return nil, err
	}
	if len(values) == 0 {
		return nil, core.WrapError(core.ErrNoData, core.Invalidf("value series is empty"))
	}
	if err := checkSeries("value", values); err != nil {
		return nil, err
	}
	if err := checkSeries("benchmark", benchmark); err != nil {
		return nil, err
	}

	series := make([]float64, len(values))
	for i, p := range values {
		series[i] = p.Value
	}
	returns := dailyReturns(series)
	n := float64(len(series))
	af := a.cfg.AnnualizationFactor
	rfDaily := a.cfg.RiskFreeRate / af

	excess := make([]float64, len(returns))
	for i, r := range returns {
		excess[i] = r - rfDaily
	}
	var wins, losses []float64
	for _, r := range returns {
		switch {
		case r > 0:
			wins = append(wins, r)
		case r < 0:
			losses = append(losses, r)
		}
	}

	rep := &Report{
		Days:  len(values),
		Start: values[0].Date,
		End:   values[len(values)-1].Date,
	}

	// Annual return
	if first := series[0]; first <= 0 {
		rep.AnnualReturn = undefined("Annual Return", KeyAnnualReturn, UnitPercent, ReasonNonPositiveStart)
	} else {
		ann := math.Pow(series[len(series)-1]/first, af/n) - 1
		rep.AnnualReturn = defined("Annual Return", KeyAnnualReturn, UnitPercent, ann)
	}

	// Max drawdown
	dd := maxDrawdown(series)
	rep.MaxDrawdown = defined("Max Drawdown", KeyMaxDrawdown, UnitPercent, dd.depth)
	if dd.depth < 0 {
		rep.PeakDate = values[dd.peak].Date
		rep.TroughDate = values[dd.trough].Date
	}

	// Sharpe
	sd := sampleStd(excess)
	switch {
	case math.IsNaN(sd):
		rep.Sharpe = undefined("Sharpe Ratio", KeySharpe, UnitRatio, ReasonInsufficientData)
	case sd < volatilityFloor:
		rep.Sharpe = undefined("Sharpe Ratio", KeySharpe, UnitRatio, ReasonZeroVolatility)
	default:
		rep.Sharpe = defined("Sharpe Ratio", KeySharpe, UnitRatio, mean(excess)/sd*math.Sqrt(af))
	}

	// Calmar
	switch {
	case !rep.AnnualReturn.Defined():
		rep.Calmar = undefined("Calmar Ratio", KeyCalmar, UnitRatio, rep.AnnualReturn.Reason)
	case dd.depth == 0:
		rep.Calmar = undefined("Calmar Ratio", KeyCalmar, UnitRatio, ReasonZeroDrawdown)
	default:
		rep.Calmar = defined("Calmar Ratio", KeyCalmar, UnitRatio, rep.AnnualReturn.Value/math.Abs(dd.depth))
	}

	// Sortino
	downside := sampleStd(losses)
	switch {
	case len(losses) == 0:
		rep.Sortino = undefined("Sortino Ratio", KeySortino, UnitRatio, ReasonNoLosingDays)
	case math.IsNaN(downside):
		rep.Sortino = undefined("Sortino Ratio", KeySortino, UnitRatio, ReasonInsufficientDownside)
	case downside < volatilityFloor:
		rep.Sortino = undefined("Sortino Ratio", KeySortino, UnitRatio, ReasonZeroDownsideVolatility)
	default:
		rep.Sortino = defined("Sortino Ratio", KeySortino, UnitRatio, mean(excess)/(downside*math.Sqrt(af)))
	}

	rep.InformationRatio = informationRatio(values, returns, benchmark, af)

	// Time to recovery
	switch {
	case dd.depth == 0:
		rep.TimeToRecovery = undefined("Time to Recovery", KeyTimeToRecovery, UnitDays, ReasonNoDrawdown)
	case dd.recovered < 0:
		rep.TimeToRecovery = undefined("Time to Recovery", KeyTimeToRecovery, UnitDays, ReasonNotRecovered)
	default:
		rep.RecoveryDate = values[dd.recovered].Date
		days := rep.RecoveryDate.Sub(rep.TroughDate).Hours() / 24
		rep.TimeToRecovery = defined("Time to Recovery", KeyTimeToRecovery, UnitDays, math.Round(days))
	}

	rep.WinRate = defined("Win Rate", KeyWinRate, UnitPercent, float64(len(wins))/n)

	// Profit/loss
	switch {
	case len(losses) == 0:
		rep.ProfitLoss = undefined("Profit-Loss Ratio", KeyProfitLoss, UnitRatio, ReasonNoLosingDays)
	case len(wins) == 0:
		rep.ProfitLoss = undefined("Profit-Loss Ratio", KeyProfitLoss, UnitRatio, ReasonNoWinningDays)
	default:
		rep.ProfitLoss = defined("Profit-Loss Ratio", KeyProfitLoss, UnitRatio, mean(wins)/math.Abs(mean(losses)))
	}

	// Turnover
	rep.Rebalances = rebalanceCount(holdings)
	if rep.Rebalances == 0 {
		rep.Turnover = undefined("Turnover Rate", KeyTurnover, UnitPercent, ReasonNoHoldings)
	} else {
		turnover := a.cfg.TurnoverPerRebalance * float64(rep.Rebalances) * af / n
		rep.Turnover = defined("Turnover Rate", KeyTurnover, UnitPercent, turnover)
	}

	a.logger.Debug("performance analyzed",
		zap.Int("days", rep.Days),
		zap.Int("rebalances", rep.Rebalances),
		zap.Float64("max_drawdown", dd.depth),
	)
	return rep, nil
}

// informationRatio joins the strategy and benchmark on date. Strategy
// returns come from the full series, benchmark returns from the joined one.
func informationRatio(values []backtest.Point, returns []float64, benchmark []backtest.Point, af float64) Metric {
	const name, key = "Information Ratio", KeyInformationRatio
	if len(benchmark) == 0 {
		return undefined(name, key, UnitRatio, ReasonNoBenchmark)
	}

	bench := make(map[time.Time]float64, len(benchmark))
	for _, p := range benchmark {
		bench[p.Date] = p.Value
	}
	var strat, joined []float64
	for i, p := range values {
		if b, ok := bench[p.Date]; ok {
			strat = append(strat, returns[i])
			joined = append(joined, b)
		}
	}
	if len(joined) < 2 {
		return undefined(name, key, UnitRatio, ReasonNoBenchmarkOverlap)
	}

	benchReturns := dailyReturns(joined)
	active := make([]float64, len(strat))
	for i := range strat {
		active[i] = strat[i] - benchReturns[i]
	}
	te := sampleStd(active)
	if te < volatilityFloor {
		return undefined(name, key, UnitRatio, ReasonZeroTrackingError)
	}
	return defined(name, key, UnitRatio, mean(active)/(te*math.Sqrt(af)))
}

func checkSeries(label string, series []backtest.Point) error {
	for i, p := range series {
		if !finite(p.Value) || p.Value < 0 {
			return core.Invalidf("%s series row %d: value %v on %s must be finite and non-negative",
				label, i, p.Value, core.FormatDate(p.Date))
		}
		if i > 0 && !p.Date.After(series[i-1].Date) {
			return core.Invalidf("%s series row %d: date %s does not follow %s",
				label, i, core.FormatDate(p.Date), core.FormatDate(series[i-1].Date))
		}
	}
	return nil
}

func finite(x float64) bool {
	return !math.IsNaN(x) && !math.IsInf(x, 0)
}
