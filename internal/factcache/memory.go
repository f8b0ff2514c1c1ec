package factcache

import (
	"context"
	"sort"
	"sync"

	"newsfacts/internal/core"
)

// MemoryRepository keeps cache rows in process memory. Used by the memory driver and tests.
type MemoryRepository struct {
	mu   sync.RWMutex
	rows map[string]core.FactsCacheRecord
}

// NewMemoryRepository creates an empty in-memory repository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{rows: make(map[string]core.FactsCacheRecord)}
}

func (r *MemoryRepository) Latest(ctx context.Context, periodKey string) (*core.FactsCacheRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, ok := r.rows[periodKey]
	if !ok {
		return nil, nil
	}
	rec.Payload = append([]byte(nil), rec.Payload...)
	return &rec, nil
}

func (r *MemoryRepository) Replace(ctx context.Context, rec core.FactsCacheRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec.Payload = append([]byte(nil), rec.Payload...)
	r.rows[rec.PeriodKey] = rec
	return nil
}

func (r *MemoryRepository) All(ctx context.Context) ([]core.FactsCacheRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	recs := make([]core.FactsCacheRecord, 0, len(r.rows))
	for _, rec := range r.rows {
		rec.Payload = append([]byte(nil), rec.Payload...)
		recs = append(recs, rec)
	}
	sort.Slice(recs, func(i, j int) bool {
		if recs[i].GeneratedAt.Equal(recs[j].GeneratedAt) {
			return recs[i].PeriodKey < recs[j].PeriodKey
		}
		return recs[i].GeneratedAt.After(recs[j].GeneratedAt)
	})
	return recs, nil
}

// Len returns the number of stored rows.
func (r *MemoryRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.rows)
}
