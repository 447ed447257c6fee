package catalog

import (
	"context"
	"sync"
)

// MemoryPriceRepo is the in-memory PriceRepo implementation used by tests
// throughout this repo, and treated as the reference contract wherever the
// SQL backend's behavior would otherwise be ambiguous.
type MemoryPriceRepo struct {
	mu   sync.Mutex
	data map[uint32]map[Pid]PriceModel
}

func NewMemoryPriceRepo() *MemoryPriceRepo {
	return &MemoryPriceRepo{data: make(map[uint32]map[Pid]PriceModel)}
}

func (r *MemoryPriceRepo) FetchByPids(_ context.Context, storeID uint32, pids []Pid) ([]PriceModel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store := r.data[storeID]
	out := make([]PriceModel, 0, len(pids))
	for _, pid := range pids {
		if m, ok := store[pid]; ok {
			out = append(out, m)
		}
	}
	return out, nil
}

func (r *MemoryPriceRepo) Save(_ context.Context, storeID uint32, set SaveSet) error {
	if err := set.CheckDisjoint(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.data[storeID]
	if !ok {
		store = make(map[Pid]PriceModel)
		r.data[storeID] = store
	}
	for _, m := range set.Updating {
		store[m.Pid] = m
	}
	for _, m := range set.Creating {
		store[m.Pid] = m
	}
	return nil
}

func (r *MemoryPriceRepo) DeleteSubset(_ context.Context, storeID uint32, pids []Pid) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	store := r.data[storeID]
	for _, pid := range pids {
		delete(store, pid)
	}
	return nil
}

func (r *MemoryPriceRepo) DeleteAll(_ context.Context, storeID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, storeID)
	return nil
}

// MemoryPolicyRepo mirrors MemoryPriceRepo for product policies.
type MemoryPolicyRepo struct {
	mu   sync.Mutex
	data map[uint32]map[uint64]Policy
}

func NewMemoryPolicyRepo() *MemoryPolicyRepo {
	return &MemoryPolicyRepo{data: make(map[uint32]map[uint64]Policy)}
}

func (r *MemoryPolicyRepo) FetchByProducts(_ context.Context, storeID uint32, productIDs []uint64) ([]Policy, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	store := r.data[storeID]
	out := make([]Policy, 0, len(productIDs))
	for _, pid := range productIDs {
		if p, ok := store[pid]; ok {
			out = append(out, p)
		}
	}
	return out, nil
}

func (r *MemoryPolicyRepo) Save(_ context.Context, storeID uint32, policies []Policy) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	store, ok := r.data[storeID]
	if !ok {
		store = make(map[uint64]Policy)
		r.data[storeID] = store
	}
	for _, p := range policies {
		store[p.ProductID] = p
	}
	return nil
}

func (r *MemoryPolicyRepo) DeleteSubset(_ context.Context, storeID uint32, productIDs []uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	store := r.data[storeID]
	for _, id := range productIDs {
		delete(store, id)
	}
	return nil
}

func (r *MemoryPolicyRepo) DeleteAll(_ context.Context, storeID uint32) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.data, storeID)
	return nil
}
