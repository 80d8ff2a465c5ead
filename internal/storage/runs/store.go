package runs

import (
	"context"
	"fmt"
	"time"

	"github.com/newthinker/navsim/internal/core"
	"github.com/newthinker/navsim/internal/performance"
)

// Status is the outcome of a backtest run.
type Status string

const (
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Record is one entry of the run registry.
type Record struct {
	ID         string
	Name       string
	StartedAt  time.Time
	FinishedAt time.Time
	Status     Status
	Days       int
	FinalValue float64
	Output     string // storage prefix the outputs were written under
	Metrics    []performance.Metric
	Error      string
}

// Duration returns how long the run took.
func (r *Record) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Store persists run records.
type Store interface {
	// Save inserts the record, assigning an ID if it has none, or replaces
	// the record with the same ID.
	Save(ctx context.Context, rec *Record) error

	// Get retrieves a record by ID. Unknown IDs yield core.ErrRunNotFound.
	Get(ctx context.Context, id string) (*Record, error)

	// List returns records matching the filter, newest first.
	List(ctx context.Context, filter ListFilter) ([]Record, error)

	Close() error
}

// ListFilter defines criteria for listing runs.
type ListFilter struct {
	Status Status
	Name   string
	Limit  int
}

func (f ListFilter) matches(rec *Record) bool {
	if f.Status != "" && rec.Status != f.Status {
		return false
	}
	if f.Name != "" && rec.Name != f.Name {
		return false
	}
	return true
}

func notFound(id string) error {
	return core.WrapError(core.ErrRunNotFound, fmt.Errorf("id %q", id))
}
