package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/newthinker/navsim/internal/app"
	"github.com/newthinker/navsim/internal/metrics"
	"github.com/newthinker/navsim/internal/report"
)

var (
	backtestName      string
	backtestPrices    string
	backtestSchedule  string
	backtestSignals   string
	backtestBenchmark string
	backtestOutput    string
	backtestFormat    string
	backtestCapital   float64
	backtestRiskFree  float64
)

var backtestCmd = &cobra.Command{
	Use:   "backtest",
	Short: "Run a portfolio backtest",
	Long: `Replay the rebalancing schedule and signal against daily close prices and
write the value series, holdings, metrics and report. Flags override the
inputs named in the config file.`,
	Args: cobra.NoArgs,
	RunE: runBacktest,
}

func init() {
	backtestCmd.Flags().StringVar(&backtestName, "name", "", "run name")
	backtestCmd.Flags().StringVar(&backtestPrices, "prices", "", "price table (csv or parquet)")
	backtestCmd.Flags().StringVar(&backtestSchedule, "schedule", "", "rebalancing schedule table")
	backtestCmd.Flags().StringVar(&backtestSignals, "signals", "", "exposure signal table (optional)")
	backtestCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "benchmark value table (optional)")
	backtestCmd.Flags().StringVar(&backtestOutput, "output", "", "output prefix (default <output.prefix>/<run id>)")
	backtestCmd.Flags().StringVar(&backtestFormat, "format", "", "output table format (csv, parquet)")
	backtestCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "initial capital")
	backtestCmd.Flags().Float64Var(&backtestRiskFree, "risk-free-rate", 0, "annual risk-free rate")

	rootCmd.AddCommand(backtestCmd)
}

func runBacktest(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	if err := applyBacktestFlags(cmd, e); err != nil {
		return err
	}

	store, err := app.OpenStore(e.cfg.Registry)
	if err != nil {
		return fmt.Errorf("opening run registry: %w", err)
	}
	if store != nil {
		defer store.Close()
	}

	var reg *metrics.Registry
	if e.cfg.Metrics.Enabled {
		reg = metrics.NewRegistry()
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a := app.New(e.cfg, e.storage, store, reg, e.log)
	out, err := a.Run(ctx, app.RunRequest{
		Name:         backtestName,
		Prices:       backtestPrices,
		Schedule:     backtestSchedule,
		Signals:      backtestSignals,
		Benchmark:    backtestBenchmark,
		OutputPrefix: backtestOutput,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	s := out.Summary
	fmt.Fprintln(w, "=== NAVSIM Backtest ===")
	fmt.Fprintf(w, "Run:         %s\n", out.RunID)
	if s.Name != "" {
		fmt.Fprintf(w, "Name:        %s\n", s.Name)
	}
	fmt.Fprintf(w, "Period:      %s\n", period(s))
	fmt.Fprintf(w, "Final value: %.4f\n", s.FinalValue)
	if len(s.HoldCashDates) > 0 {
		fmt.Fprintf(w, "Cash days:   %d\n", len(s.HoldCashDates))
	}
	fmt.Fprintln(w)

	if err := report.PrintMetrics(w, s.Metrics); err != nil {
		return err
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, "Artifacts:")
	for _, p := range out.Artifacts.Paths() {
		fmt.Fprintf(w, "  %s\n", p)
	}

	e.log.Debug("backtest finished", zap.Duration("duration", out.Duration))
	return nil
}

// applyBacktestFlags overrides config values with explicitly set flags.
func applyBacktestFlags(cmd *cobra.Command, e *env) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		e.cfg.Output.Format = backtestFormat
	}
	if flags.Changed("capital") {
		e.cfg.Backtest.InitialCapital = backtestCapital
	}
	if flags.Changed("risk-free-rate") {
		e.cfg.Performance.RiskFreeRate = backtestRiskFree
	}
	if err := e.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid flags: %w", err)
	}
	return nil
}

func period(s *report.Summary) string {
	if s.Start == "" {
		return "n/a"
	}
	return fmt.Sprintf("%s to %s (%d days)", s.Start, s.End, s.Days)
}
