package app

import (
	"context"
	"fmt"
	"path"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/newthinker/navsim/internal/backtest"
	"github.com/newthinker/navsim/internal/config"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/dataset"
	"github.com/newthinker/navsim/internal/metrics"
	"github.com/newthinker/navsim/internal/performance"
	"github.com/newthinker/navsim/internal/report"
	"github.com/newthinker/navsim/internal/storage/archive"
	"github.com/newthinker/navsim/internal/storage/runs"
)

// RunRequest names the inputs of one backtest. Empty fields fall back to
// the configured inputs.
type RunRequest struct {
	Name         string
	Prices       string
	Schedule     string
	Signals      string // optional
	Benchmark    string // optional
	OutputPrefix string // defaults to <output.prefix>/<run id>
}

// AnalyzeRequest names a stored value series to analyze without
// simulating.
type AnalyzeRequest struct {
	Values       string
	Benchmark    string // optional
	Holdings     string // optional, needed for the turnover estimate
	OutputPrefix string // nothing is written when empty
}

// Outcome is everything a run produced.
type Outcome struct {
	RunID     string
	Result    *backtest.Result // nil for Analyze
	Report    *performance.Report
	Summary   *report.Summary
	Artifacts report.Artifacts
	Duration  time.Duration
}

// App wires the loaders, the simulator, the analyzer and the writers.
type App struct {
	cfg     *config.Config
	storage archive.Storage
	tables  *dataset.Tables
	runs    runs.Store
	metrics *metrics.Registry
	logger  *zap.Logger
	now     func() time.Time
}

// New creates the application. store and reg may be nil, in which case
// runs are not registered or counted.
func New(cfg *config.Config, storage archive.Storage, store runs.Store, reg *metrics.Registry, logger *zap.Logger) *App {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg == nil {
		cfg = config.Defaults()
	}
	return &App{
		cfg:     cfg,
		storage: storage,
		tables:  dataset.New(storage, logger),
		runs:    store,
		metrics: reg,
		logger:  logger,
		now:     time.Now,
	}
}

// OpenStore opens the run registry described by cfg. It returns nil when
// the registry is disabled.
func OpenStore(cfg config.RegistryConfig) (runs.Store, error) {
	if !cfg.Enabled {
		return nil, nil
	}
	if cfg.DSN == "" {
		return runs.NewMemoryStore(cfg.MaxRuns), nil
	}
	return runs.NewSQLiteStore(cfg.DSN)
}

// Run executes one backtest end to end. Failed runs are registered and
// counted before the error is returned.
func (a *App) Run(ctx context.Context, req RunRequest) (*Outcome, error) {
	req = a.withDefaults(req)

	rec := &runs.Record{
		ID:        uuid.NewString(),
		Name:      req.Name,
		StartedAt: a.now(),
	}
	if req.OutputPrefix == "" {
		req.OutputPrefix = path.Join(a.cfg.Output.Prefix, rec.ID)
	}
	rec.Output = req.OutputPrefix

	a.logger.Info("backtest starting",
		zap.String("run_id", rec.ID),
		zap.String("name", req.Name),
		zap.String("prices", req.Prices),
		zap.String("schedule", req.Schedule),
	)

	out, err := a.run(ctx, rec.ID, req)
	a.finish(ctx, rec, out, err)
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (a *App) withDefaults(req RunRequest) RunRequest {
	if req.Name == "" {
		req.Name = a.cfg.Name
	}
	if req.Prices == "" {
		req.Prices = a.cfg.Inputs.Prices
	}
	if req.Schedule == "" {
		req.Schedule = a.cfg.Inputs.Schedule
	}
	if req.Signals == "" {
		req.Signals = a.cfg.Inputs.Signals
	}
	if req.Benchmark == "" {
		req.Benchmark = a.cfg.Inputs.Benchmark
	}
	return req
}

func (a *App) run(ctx context.Context, runID string, req RunRequest) (*Outcome, error) {
	start := a.now()

	if err := requireInputs(req); err != nil {
		return nil, err
	}

	in, bench, err := a.load(ctx, req)
	if err != nil {
		return nil, err
	}

	res, err := backtest.NewSimulator(a.cfg.Simulation(), a.logger).Run(ctx, in)
	if err != nil {
		return nil, fmt.Errorf("simulating: %w", err)
	}

	perf, err := performance.NewAnalyzer(a.cfg.Analysis(), a.logger).Analyze(res.Values, bench, res.Holdings)
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}

	summary := report.Build(report.Meta{RunID: runID, Name: req.Name, GeneratedAt: a.now()}, res, perf)

	w := report.NewWriter(a.storage, a.cfg.OutputFormat(), a.cfg.Output.Report, a.logger)
	artifacts, err := w.Write(ctx, req.OutputPrefix, res, perf, summary)
	if err != nil {
		return nil, err
	}

	return &Outcome{
		RunID:     runID,
		Result:    res,
		Report:    perf,
		Summary:   summary,
		Artifacts: artifacts,
		Duration:  a.now().Sub(start),
	}, nil
}

// Validate loads the inputs of req and checks them against the simulation
// settings without simulating or writing anything.
func (a *App) Validate(ctx context.Context, req RunRequest) error {
	req = a.withDefaults(req)
	if err := requireInputs(req); err != nil {
		return err
	}
	in, _, err := a.load(ctx, req)
	if err != nil {
		return err
	}
	if err := backtest.Validate(a.cfg.Simulation(), in); err != nil {
		return err
	}
	a.logger.Info("inputs valid",
		zap.String("prices", req.Prices),
		zap.String("schedule", req.Schedule),
		zap.Int("price_rows", len(in.Prices)),
		zap.Int("schedule_rows", len(in.Schedule)),
		zap.Int("signal_rows", len(in.Signals)),
	)
	return nil
}

func requireInputs(req RunRequest) error {
	if req.Prices == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("inputs.prices required"))
	}
	if req.Schedule == "" {
		return core.WrapError(core.ErrConfigMissing, fmt.Errorf("inputs.schedule required"))
	}
	return nil
}

// load reads the input tables concurrently.
func (a *App) load(ctx context.Context, req RunRequest) (backtest.Input, []backtest.Point, error) {
	var (
		in    backtest.Input
		bench []backtest.Point
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		rows, err := a.tables.LoadPrices(gctx, req.Prices)
		in.Prices = rows
		return err
	})
	g.Go(func() error {
		rows, err := a.tables.LoadSchedule(gctx, req.Schedule)
		in.Schedule = rows
		return err
	})
	if req.Signals != "" {
		g.Go(func() error {
			rows, err := a.tables.LoadSignals(gctx, req.Signals)
			in.Signals = rows
			return err
		})
	}
	if req.Benchmark != "" {
		g.Go(func() error {
			points, err := a.tables.LoadBenchmark(gctx, req.Benchmark)
			bench = points
			return err
		})
	}

	if err := g.Wait(); err != nil {
		return backtest.Input{}, nil, err
	}
	return in, bench, nil
}

// finish registers and counts the run.
func (a *App) finish(ctx context.Context, rec *runs.Record, out *Outcome, runErr error) {
	rec.FinishedAt = a.now()
	status := metrics.StatusCompleted
	if runErr != nil {
		rec.Status = runs.StatusFailed
		rec.Error = runErr.Error()
		status = metrics.StatusFailed
		a.logger.Error("backtest failed", zap.String("run_id", rec.ID), zap.Error(runErr))
	} else {
		rec.Status = runs.StatusCompleted
		rec.Days = len(out.Result.Values)
		rec.FinalValue = out.Result.FinalValue()
		rec.Metrics = out.Report.Metrics()
		a.logger.Info("backtest completed",
			zap.String("run_id", rec.ID),
			zap.Int("days", rec.Days),
			zap.Float64("final_value", rec.FinalValue),
			zap.String("output", rec.Output),
			zap.Duration("duration", rec.Duration()),
		)
	}

	if a.runs != nil {
		// A cancelled run is still registered.
		if err := a.runs.Save(context.WithoutCancel(ctx), rec); err != nil {
			a.logger.Warn("failed to register run", zap.String("run_id", rec.ID), zap.Error(err))
		}
	}

	if a.metrics == nil {
		return
	}
	a.metrics.RecordBacktest(status, rec.Duration().Seconds())
	if runErr == nil {
		a.metrics.RecordResult(out.Result)
	}
	if a.cfg.Metrics.Enabled && a.cfg.Metrics.Textfile != "" {
		if err := a.metrics.WriteTextfile(a.cfg.Metrics.Textfile); err != nil {
			a.logger.Warn("failed to export metrics", zap.Error(err))
		}
	}
}

// Analyze computes metrics for a stored value series.
func (a *App) Analyze(ctx context.Context, req AnalyzeRequest) (*Outcome, error) {
	start := a.now()
	if req.Values == "" {
		return nil, core.WrapError(core.ErrConfigMissing, fmt.Errorf("values table required"))
	}

	values, err := a.tables.LoadValues(ctx, req.Values)
	if err != nil {
		return nil, err
	}

	var bench []backtest.Point
	if req.Benchmark != "" {
		if bench, err = a.tables.LoadBenchmark(ctx, req.Benchmark); err != nil {
			return nil, err
		}
	}

	var holdings []backtest.Holding
	if req.Holdings != "" {
		if holdings, err = a.tables.LoadHoldings(ctx, req.Holdings); err != nil {
			return nil, err
		}
	}

	perf, err := performance.NewAnalyzer(a.cfg.Analysis(), a.logger).Analyze(values, bench, holdings)
	if err != nil {
		return nil, fmt.Errorf("analyzing: %w", err)
	}

	out := &Outcome{
		Report:  perf,
		Summary: report.Build(report.Meta{Name: a.cfg.Name, GeneratedAt: a.now()}, nil, perf),
	}
	out.Summary.FinalValue = values[len(values)-1].Value

	if req.OutputPrefix != "" {
		w := report.NewWriter(a.storage, a.cfg.OutputFormat(), a.cfg.Output.Report, a.logger)
		if out.Artifacts, err = w.Write(ctx, req.OutputPrefix, nil, perf, out.Summary); err != nil {
			return nil, err
		}
	}

	out.Duration = a.now().Sub(start)
	return out, nil
}
