package main

import (
	"context"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/newthinker/navsim/internal/app"
	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/report"
	"github.com/newthinker/navsim/internal/storage/runs"
)

var runsCmd = &cobra.Command{
	Use:   "runs",
	Short: "Inspect the run registry",
	Long:  `Commands for listing and inspecting registered backtest runs. Requires registry.dsn.`,
}

var runsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List recent runs",
	Args:  cobra.NoArgs,
	RunE:  runRunsList,
}

var runsShowCmd = &cobra.Command{
	Use:   "show [run id]",
	Short: "Show one run and its metrics",
	Args:  cobra.ExactArgs(1),
	RunE:  runRunsShow,
}

var (
	listStatus string
	listName   string
	listLimit  int
)

func init() {
	rootCmd.AddCommand(runsCmd)
	runsCmd.AddCommand(runsListCmd)
	runsCmd.AddCommand(runsShowCmd)

	runsListCmd.Flags().StringVar(&listStatus, "status", "", "filter by status (completed, failed)")
	runsListCmd.Flags().StringVar(&listName, "name", "", "filter by run name")
	runsListCmd.Flags().IntVar(&listLimit, "limit", 20, "maximum number of runs")
}

// withRegistry opens the persistent run registry for the duration of fn.
func withRegistry(fn func(store runs.Store) error) error {
	e, err := setup()
	if err != nil {
		return err
	}
	defer e.log.Sync()

	if !e.cfg.Registry.Enabled || e.cfg.Registry.DSN == "" {
		return core.WrapError(core.ErrConfigMissing,
			fmt.Errorf("registry.dsn required to inspect runs"))
	}

	store, err := app.OpenStore(e.cfg.Registry)
	if err != nil {
		return fmt.Errorf("opening run registry: %w", err)
	}
	defer store.Close()

	return fn(store)
}

func runRunsList(cmd *cobra.Command, args []string) error {
	return withRegistry(func(store runs.Store) error {
		recs, err := store.List(context.Background(), runs.ListFilter{
			Status: runs.Status(listStatus),
			Name:   listName,
			Limit:  listLimit,
		})
		if err != nil {
			return fmt.Errorf("listing runs: %w", err)
		}

		out := cmd.OutOrStdout()
		if len(recs) == 0 {
			fmt.Fprintln(out, "No runs found.")
			return nil
		}

		w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tSTATUS\tSTARTED\tDAYS\tFINAL\tDURATION\t")
		fmt.Fprintln(w, "--\t----\t------\t-------\t----\t-----\t--------\t")
		for _, r := range recs {
			final := "-"
			if r.Status == runs.StatusCompleted {
				final = fmt.Sprintf("%.4f", r.FinalValue)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%s\t%s\t\n",
				r.ID, r.Name, r.Status, r.StartedAt.Local().Format(time.DateTime),
				r.Days, final, r.Duration().Round(time.Millisecond))
		}
		return w.Flush()
	})
}

func runRunsShow(cmd *cobra.Command, args []string) error {
	return withRegistry(func(store runs.Store) error {
		rec, err := store.Get(context.Background(), args[0])
		if err != nil {
			return err
		}

		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Run:      %s\n", rec.ID)
		if rec.Name != "" {
			fmt.Fprintf(out, "Name:     %s\n", rec.Name)
		}
		fmt.Fprintf(out, "Status:   %s\n", rec.Status)
		fmt.Fprintf(out, "Started:  %s\n", rec.StartedAt.Local().Format(time.DateTime))
		fmt.Fprintf(out, "Duration: %s\n", rec.Duration().Round(time.Millisecond))
		if rec.Output != "" {
			fmt.Fprintf(out, "Output:   %s\n", rec.Output)
		}
		if rec.Status == runs.StatusFailed {
			fmt.Fprintf(out, "Error:    %s\n", rec.Error)
			return nil
		}
		fmt.Fprintf(out, "Days:     %d\n", rec.Days)
		fmt.Fprintf(out, "Final:    %.4f\n", rec.FinalValue)
		fmt.Fprintln(out)

		return report.PrintMetrics(out, report.Entries(rec.Metrics))
	})
}
