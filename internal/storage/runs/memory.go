package runs

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"

	"github.com/newthinker/navsim/internal/performance"
)

var _ Store = (*MemoryStore)(nil)

// MemoryStore keeps the most recent runs in memory.
type MemoryStore struct {
	records []Record
	maxSize int
	mu      sync.RWMutex
}

// NewMemoryStore creates a store that keeps at most maxSize runs.
func NewMemoryStore(maxSize int) *MemoryStore {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &MemoryStore{
		records: make([]Record, 0, maxSize),
		maxSize: maxSize,
	}
}

// Save adds or replaces a run.
func (m *MemoryStore) Save(ctx context.Context, rec *Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	stored := clone(rec)

	for i := range m.records {
		if m.records[i].ID == rec.ID {
			m.records[i] = stored
			return nil
		}
	}
	m.records = append(m.records, stored)

	// Trim if over capacity (remove oldest)
	if len(m.records) > m.maxSize {
		m.records = m.records[len(m.records)-m.maxSize:]
	}
	return nil
}

// Get retrieves a run by ID.
func (m *MemoryStore) Get(ctx context.Context, id string) (*Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for i := range m.records {
		if m.records[i].ID == id {
			rec := clone(&m.records[i])
			return &rec, nil
		}
	}
	return nil, notFound(id)
}

// List returns matching runs, newest first.
func (m *MemoryStore) List(ctx context.Context, filter ListFilter) ([]Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := []Record{}
	for i := range m.records {
		if filter.matches(&m.records[i]) {
			result = append(result, clone(&m.records[i]))
		}
	}
	sort.SliceStable(result, func(i, j int) bool {
		return result[i].StartedAt.After(result[j].StartedAt)
	})

	if filter.Limit > 0 && filter.Limit < len(result) {
		result = result[:filter.Limit]
	}
	return result, nil
}

// Close is a no-op.
func (m *MemoryStore) Close() error { return nil }

func clone(rec *Record) Record {
	out := *rec
	out.Metrics = append([]performance.Metric(nil), rec.Metrics...)
	return out
}
