package runs

import (
	"context"
	"errors"
	"math"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/performance"
)

// backends runs the same contract against every Store implementation.
func backends(t *testing.T) map[string]Store {
	t.Helper()
	sqlite, err := NewSQLiteStore(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sqlite.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(10),
		"sqlite": sqlite,
	}
}

func sampleRecord(name string, started time.Time) *Record {
	return &Record{
		Name:       name,
		StartedAt:  started,
		FinishedAt: started.Add(1500 * time.Millisecond),
		Status:     StatusCompleted,
		Days:       3,
		FinalValue: 1.1,
		Output:     "runs/" + name,
		Metrics: []performance.Metric{
			{Name: "Annual Return", Key: performance.KeyAnnualReturn, Value: 0.25, Unit: performance.UnitPercent},
			{Name: "Calmar Ratio", Key: performance.KeyCalmar, Value: math.NaN(), Unit: performance.UnitRatio,
				Reason: performance.ReasonZeroDrawdown},
		},
	}
}

func TestStore_SaveAndGet(t *testing.T) {
	started := time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("demo", started)

			require.NoError(t, store.Save(ctx, rec))
			require.NotEmpty(t, rec.ID, "Save assigns an ID")

			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)

			assert.Equal(t, "demo", got.Name)
			assert.Equal(t, StatusCompleted, got.Status)
			assert.True(t, got.StartedAt.Equal(started))
			assert.Equal(t, 1500*time.Millisecond, got.Duration())
			assert.Equal(t, 3, got.Days)
			assert.InDelta(t, 1.1, got.FinalValue, 1e-12)
			assert.Equal(t, "runs/demo", got.Output)

			require.Len(t, got.Metrics, 2)
			assert.Equal(t, performance.KeyAnnualReturn, got.Metrics[0].Key)
			assert.InDelta(t, 0.25, got.Metrics[0].Value, 1e-12)
			assert.True(t, math.IsNaN(got.Metrics[1].Value), "undefined metrics survive a round trip as NaN")
			assert.Equal(t, performance.ReasonZeroDrawdown, got.Metrics[1].Reason)
		})
	}
}

func TestStore_SaveReplacesExisting(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			rec := sampleRecord("demo", time.Now().UTC())
			require.NoError(t, store.Save(ctx, rec))

			rec.Status = StatusFailed
			rec.Error = "boom"
			rec.Metrics = nil
			require.NoError(t, store.Save(ctx, rec))

			got, err := store.Get(ctx, rec.ID)
			require.NoError(t, err)
			assert.Equal(t, StatusFailed, got.Status)
			assert.Equal(t, "boom", got.Error)
			assert.Empty(t, got.Metrics)

			all, err := store.List(ctx, ListFilter{})
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	}
}

func TestStore_GetUnknown(t *testing.T) {
	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := store.Get(context.Background(), "missing")
			assert.True(t, errors.Is(err, core.ErrRunNotFound), "got %v", err)
		})
	}
}

func TestStore_ListNewestFirstWithFilter(t *testing.T) {
	base := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	for name, store := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			for i, n := range []string{"a", "b", "c"} {
				require.NoError(t, store.Save(ctx, sampleRecord(n, base.Add(time.Duration(i)*time.Hour))))
			}
			failed := sampleRecord("d", base.Add(10*time.Hour))
			failed.Status = StatusFailed
			require.NoError(t, store.Save(ctx, failed))

			all, err := store.List(ctx, ListFilter{})
			require.NoError(t, err)
			require.Len(t, all, 4)
			assert.Equal(t, "d", all[0].Name)
			assert.Equal(t, "a", all[3].Name)

			completed, err := store.List(ctx, ListFilter{Status: StatusCompleted, Limit: 2})
			require.NoError(t, err)
			require.Len(t, completed, 2)
			assert.Equal(t, "c", completed[0].Name)
			assert.Equal(t, "b", completed[1].Name)
			assert.Len(t, completed[0].Metrics, 2)

			byName, err := store.List(ctx, ListFilter{Name: "b"})
			require.NoError(t, err)
			require.Len(t, byName, 1)
		})
	}
}

func TestMemoryStore_EvictsOldest(t *testing.T) {
	store := NewMemoryStore(2)
	ctx := context.Background()
	base := time.Now().UTC()

	first := sampleRecord("first", base)
	store.Save(ctx, first)
	store.Save(ctx, sampleRecord("second", base.Add(time.Second)))
	store.Save(ctx, sampleRecord("third", base.Add(2*time.Second)))

	_, err := store.Get(ctx, first.ID)
	assert.True(t, errors.Is(err, core.ErrRunNotFound))

	all, _ := store.List(ctx, ListFilter{})
	assert.Len(t, all, 2)
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	store := NewMemoryStore(10)
	ctx := context.Background()
	rec := sampleRecord("demo", time.Now().UTC())
	store.Save(ctx, rec)

	rec.Metrics[0].Value = 99
	got, _ := store.Get(ctx, rec.ID)
	got.Metrics[0].Value = 42

	again, _ := store.Get(ctx, rec.ID)
	assert.InDelta(t, 0.25, again.Metrics[0].Value, 1e-12)
}

func TestMemoryStore_ConcurrentSaves(t *testing.T) {
	store := NewMemoryStore(1000)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store.Save(ctx, sampleRecord("parallel", time.Now().UTC()))
			store.List(ctx, ListFilter{Name: "parallel"})
		}()
	}
	wg.Wait()

	all, err := store.List(ctx, ListFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 50)
}

func TestSQLiteStore_PersistsAcrossOpen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "runs.db")
	ctx := context.Background()

	store, err := NewSQLiteStore(path)
	require.NoError(t, err)
	rec := sampleRecord("durable", time.Now().UTC())
	require.NoError(t, store.Save(ctx, rec))
	require.NoError(t, store.Close())

	reopened, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(ctx, rec.ID)
	require.NoError(t, err)
	assert.Equal(t, "durable", got.Name)
}
