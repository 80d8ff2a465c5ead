package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/navsim/internal/app"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check backtest inputs without running",
	Long: `Load the price, schedule, signal and benchmark tables and check them the
way backtest would, without simulating or writing anything. Accepts the
same input flags as backtest.`,
	Args: cobra.NoArgs,
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().StringVar(&backtestPrices, "prices", "", "price table (csv or parquet)")
	validateCmd.Flags().StringVar(&backtestSchedule, "schedule", "", "rebalancing schedule table")
	validateCmd.Flags().StringVar(&backtestSignals, "signals", "", "exposure signal table (optional)")
	validateCmd.Flags().StringVar(&backtestBenchmark, "benchmark", "", "benchmark value table (optional)")
	validateCmd.Flags().Float64Var(&backtestCapital, "capital", 0, "initial capital")

	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	if err := applyBacktestFlags(cmd, e); err != nil {
		return err
	}

	a := app.New(e.cfg, e.storage, nil, nil, e.log)
	if err := a.Validate(cmd.Context(), app.RunRequest{
		Prices:    backtestPrices,
		Schedule:  backtestSchedule,
		Signals:   backtestSignals,
		Benchmark: backtestBenchmark,
	}); err != nil {
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), "inputs ok")
	return nil
}
