package reporting

import (
	"context"
	"sync"
)

// MemoryRepo is the in-memory reference backend, seeded directly from
// test fixtures rather than derived from the charge aggregate store —
// reporting is a denormalized read path, not a live join in either
// backend.
type MemoryRepo struct {
	mu   sync.Mutex
	rows []ChargeLineRow
}

func NewMemoryRepo(rows ...ChargeLineRow) *MemoryRepo {
	return &MemoryRepo{rows: append([]ChargeLineRow(nil), rows...)}
}

func (r *MemoryRepo) Seed(rows ...ChargeLineRow) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows = append(r.rows, rows...)
}

func (r *MemoryRepo) FetchChargeLines(_ context.Context, storeID uint32, window TimeRange) ([]ChargeLineRow, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []ChargeLineRow
	for _, row := range r.rows {
		if row.Pid.StoreID != storeID {
			continue
		}
		if !row.CreateTime.After(window.StartAfter) || !row.CreateTime.Before(window.EndBefore) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}
