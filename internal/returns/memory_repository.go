package returns

import (
	"context"
	"sync"

	"github.com/iaros/commerce-core/internal/catalog"
)

// MemoryRepo is the in-memory reference backend: a single mutex guarding a
// nested map of order_id -> pid -> OrderReturnModel.
type MemoryRepo struct {
	mu   sync.Mutex
	data map[string]map[catalog.Pid]OrderReturnModel
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{data: make(map[string]map[catalog.Pid]OrderReturnModel)}
}

func (r *MemoryRepo) FetchByOrder(_ context.Context, orderID string) (map[catalog.Pid]OrderReturnModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[catalog.Pid]OrderReturnModel)
	for pid, m := range r.data[orderID] {
		entries := make(map[int64]ReturnEntry, len(m.Entries))
		for k, v := range m.Entries {
			entries[k] = v
		}
		out[pid] = OrderReturnModel{OrderID: m.OrderID, Pid: m.Pid, Entries: entries}
	}
	return out, nil
}

func (r *MemoryRepo) FetchAllPending(_ context.Context) ([]OrderReturnModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []OrderReturnModel
	for orderID, byPid := range r.data {
		for pid, m := range byPid {
			entries := make(map[int64]ReturnEntry, len(m.Entries))
			for k, v := range m.Entries {
				entries[k] = v
			}
			out = append(out, OrderReturnModel{OrderID: orderID, Pid: pid, Entries: entries})
		}
	}
	return out, nil
}

func (r *MemoryRepo) Merge(_ context.Context, models []OrderReturnModel) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, m := range models {
		byOrder, ok := r.data[m.OrderID]
		if !ok {
			byOrder = make(map[catalog.Pid]OrderReturnModel)
			r.data[m.OrderID] = byOrder
		}
		existing, ok := byOrder[m.Pid]
		if !ok {
			existing = OrderReturnModel{OrderID: m.OrderID, Pid: m.Pid, Entries: make(map[int64]ReturnEntry)}
		}
		for k, v := range m.Entries {
			existing.Entries[k] = v
		}
		byOrder[m.Pid] = existing
	}
	return nil
}
