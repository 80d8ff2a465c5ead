package backtest

import "sort"

// SuspensionStreaks returns, per instrument, the longest run of consecutive
// snapshot rows valued at a carried price. Instruments that were never
// suspended are omitted.
func SuspensionStreaks(holdings []Holding) map[string]int {
	rows := make([]Holding, len(holdings))
	copy(rows, holdings)
	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].Instrument != rows[j].Instrument {
			return rows[i].Instrument < rows[j].Instrument
		}
		return rows[i].Date.Before(rows[j].Date)
	})

	longest := make(map[string]int)
	var current string
	var run int
	for _, h := range rows {
		if h.Instrument != current {
			current = h.Instrument
			run = 0
		}
		if !h.Stale {
			run = 0
			continue
		}
		run++
		if run > longest[current] {
			longest[current] = run
		}
	}
	return longest
}
