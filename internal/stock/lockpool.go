package stock

import (
	"sort"
	"sync"
)

// KeyLockPool is a striped mutex pool keyed by (store,product). It
// guarantees no two reservations touching an overlapping key set may
// interleave within one process. Engine uses it with either backend; the
// SQL backend's `SELECT ... FOR UPDATE` runs outside a transaction and does
// not hold its row locks past the fetch (see sql_repository.go).
type KeyLockPool struct {
	mu    sync.Mutex
	locks map[[2]uint64]*sync.Mutex
}

func NewKeyLockPool() *KeyLockPool {
	return &KeyLockPool{locks: make(map[[2]uint64]*sync.Mutex)}
}

func (p *KeyLockPool) lockFor(storeID uint32, productID uint64) *sync.Mutex {
	key := [2]uint64{uint64(storeID), productID}
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.locks[key]
	if !ok {
		l = &sync.Mutex{}
		p.locks[key] = l
	}
	return l
}

// AcquireAll locks every distinct (store,product) pair referenced by lines,
// always in a deterministic sorted order, to avoid deadlock between two
// reservations whose key sets overlap but aren't identical. It returns a
// release function the caller must call exactly once.
func (p *KeyLockPool) AcquireAll(pairs [][2]uint64) func() {
	uniq := map[[2]uint64]struct{}{}
	for _, pr := range pairs {
		uniq[pr] = struct{}{}
	}
	sorted := make([][2]uint64, 0, len(uniq))
	for pr := range uniq {
		sorted = append(sorted, pr)
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i][0] != sorted[j][0] {
			return sorted[i][0] < sorted[j][0]
		}
		return sorted[i][1] < sorted[j][1]
	})

	locks := make([]*sync.Mutex, 0, len(sorted))
	for _, pr := range sorted {
		l := p.lockFor(uint32(pr[0]), pr[1])
		l.Lock()
		locks = append(locks, l)
	}
	return func() {
		for i := len(locks) - 1; i >= 0; i-- {
			locks[i].Unlock()
		}
	}
}

// PairsFromLines extracts the distinct (store,product) pairs from a set of
// order lines, for use with AcquireAll.
func PairsFromLines(lines []OrderLine) [][2]uint64 {
	out := make([][2]uint64, 0, len(lines))
	for _, l := range lines {
		out = append(out, [2]uint64{uint64(l.StoreID), l.ProductID})
	}
	return out
}

// PairsFromTuples extracts the distinct (store,product) pairs from return
// tuples, for use with AcquireAll.
func PairsFromTuples(tuples []ReturnTuple) [][2]uint64 {
	out := make([][2]uint64, 0, len(tuples))
	for _, t := range tuples {
		out = append(out, [2]uint64{uint64(t.StoreID), t.ProductID})
	}
	return out
}
