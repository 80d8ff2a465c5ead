package backtest

import (
	"testing"
	"time"

	"github.com/newthinker/navsim/internal/core"
)

func TestSuspensionStreaks(t *testing.T) {
	day := func(n int) time.Time { return core.Day(2024, 1, n) }
	holdings := []Holding{
		// Unsorted on purpose.
		{Date: day(4), Instrument: "B", Stale: true},
		{Date: day(1), Instrument: "A", Stale: false},
		{Date: day(2), Instrument: "A", Stale: true},
		{Date: day(3), Instrument: "A", Stale: true},
		{Date: day(4), Instrument: "A", Stale: false},
		{Date: day(5), Instrument: "A", Stale: true},
		{Date: day(2), Instrument: "B", Stale: true},
		{Date: day(3), Instrument: "B", Stale: true},
		{Date: day(1), Instrument: "C", Stale: false},
	}

	got := SuspensionStreaks(holdings)

	want := map[string]int{"A": 2, "B": 3}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for name, n := range want {
		if got[name] != n {
			t.Errorf("streak[%s] = %d, want %d", name, got[name], n)
		}
	}
	if holdings[0].Instrument != "B" {
		t.Error("input slice should not be reordered")
	}
}

func TestSuspensionStreaks_Empty(t *testing.T) {
	if got := SuspensionStreaks(nil); len(got) != 0 {
		t.Errorf("expected no streaks, got %v", got)
	}
}
