package report

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"gopkg.in/yaml.v3"
)

// YAML encodes the summary.
func (s *Summary) YAML() ([]byte, error) {
	data, err := yaml.Marshal(s)
	if err != nil {
		return nil, fmt.Errorf("encoding report: %w", err)
	}
	return data, nil
}

// ParseYAML decodes a summary written by YAML.
func ParseYAML(data []byte) (*Summary, error) {
	var s Summary
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("decoding report: %w", err)
	}
	return &s, nil
}

// Markdown renders the summary as a markdown document.
func (s *Summary) Markdown() string {
	var b strings.Builder

	title := "Backtest Report"
	if s.Name != "" {
		title += ": " + s.Name
	}
	fmt.Fprintf(&b, "# %s\n\n", title)
	if s.RunID != "" {
		fmt.Fprintf(&b, "**Run**: %s\n", s.RunID)
	}
	fmt.Fprintf(&b, "**Generated**: %s\n", s.GeneratedAt)
	fmt.Fprintf(&b, "**Period**: %s to %s (%d days)\n\n", s.Start, s.End, s.Days)

	b.WriteString("## Summary\n\n")
	if s.InitialCapital > 0 {
		fmt.Fprintf(&b, "- **Initial Capital**: %.2f\n", s.InitialCapital)
	}
	fmt.Fprintf(&b, "- **Final Value**: %.4f\n", s.FinalValue)
	if len(s.Actions) > 0 {
		fmt.Fprintf(&b, "- **Rebalances**: %d\n", s.Actions["rebalance"])
		fmt.Fprintf(&b, "- **Flattened**: %d days\n", s.Actions["flatten"])
		fmt.Fprintf(&b, "- **Held Cash**: %d days\n", s.Actions["hold_cash"])
	}
	fmt.Fprintf(&b, "- **Stale Valuations**: %d\n", s.Stale)
	if s.Unpriced > 0 {
		fmt.Fprintf(&b, "- **Unpriced Valuations**: %d (excluded from value)\n", s.Unpriced)
	}
	b.WriteString("\n")

	b.WriteString("## Performance\n\n")
	b.WriteString("| Metric | Value |\n")
	b.WriteString("|--------|------:|\n")
	for _, e := range s.Metrics {
		fmt.Fprintf(&b, "| %s | %s |\n", e.Name, e.Formatted)
	}
	b.WriteString("\n")

	if s.Drawdown.Trough != "" {
		b.WriteString("## Maximum Drawdown\n\n")
		fmt.Fprintf(&b, "- **Peak**: %s\n", s.Drawdown.Peak)
		fmt.Fprintf(&b, "- **Trough**: %s\n", s.Drawdown.Trough)
		recovery := s.Drawdown.Recovery
		if recovery == "" {
			recovery = "not recovered"
		}
		fmt.Fprintf(&b, "- **Recovery**: %s\n\n", recovery)
	}

	if len(s.Suspensions) > 0 {
		b.WriteString("## Suspensions\n\n")
		b.WriteString("| Instrument | Longest Streak |\n")
		b.WriteString("|------------|---------------:|\n")
		for _, st := range s.Suspensions {
			fmt.Fprintf(&b, "| %s | %d days |\n", st.Instrument, st.Days)
		}
		b.WriteString("\n")
	}

	if len(s.HoldCashDates) > 0 {
		b.WriteString("## Cash Days\n\n")
		b.WriteString("No scheduled instrument was priced on these rebalancing dates:\n\n")
		for _, d := range s.HoldCashDates {
			fmt.Fprintf(&b, "- %s\n", d)
		}
		b.WriteString("\n")
	}
	return b.String()
}

// PrintMetrics writes the metrics table for a terminal.
func PrintMetrics(out io.Writer, entries []Entry) error {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "METRIC\tVALUE\t")
	fmt.Fprintln(w, "------\t-----\t")
	for _, e := range entries {
		fmt.Fprintf(w, "%s\t%s\t\n", e.Name, e.Formatted)
	}
	return w.Flush()
}
