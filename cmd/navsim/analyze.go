package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/newthinker/navsim/internal/app"
	"github.com/newthinker/navsim/internal/report"
)

var (
	analyzeBenchmark string
	analyzeHoldings  string
	analyzeOutput    string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [values]",
	Short: "Compute performance metrics for a stored value series",
	Long: `Compute the metrics table for a value series written by a previous run, or
any (trade_date, portfolio_value) table. Turnover needs the holdings table.`,
	Args: cobra.ExactArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeBenchmark, "benchmark", "", "benchmark value table (optional)")
	analyzeCmd.Flags().StringVar(&analyzeHoldings, "holdings", "", "holdings table (optional)")
	analyzeCmd.Flags().StringVar(&analyzeOutput, "output", "", "write metrics and report under this prefix")

	rootCmd.AddCommand(analyzeCmd)
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	a := app.New(e.cfg, e.storage, nil, nil, e.log)
	out, err := a.Analyze(context.Background(), app.AnalyzeRequest{
		Values:       args[0],
		Benchmark:    analyzeBenchmark,
		Holdings:     analyzeHoldings,
		OutputPrefix: analyzeOutput,
	})
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintln(w, "=== NAVSIM Analysis ===")
	fmt.Fprintf(w, "Series: %s\n", args[0])
	fmt.Fprintf(w, "Period: %s\n", period(out.Summary))
	fmt.Fprintln(w)

	if err := report.PrintMetrics(w, out.Summary.Metrics); err != nil {
		return err
	}

	if paths := out.Artifacts.Paths(); len(paths) > 0 {
		fmt.Fprintln(w)
		fmt.Fprintln(w, "Artifacts:")
		for _, p := range paths {
			fmt.Fprintf(w, "  %s\n", p)
		}
	}
	return nil
}
