package stock

import (
	"context"
	"sync"
	"time"
)

// MemoryRepo is the in-memory reference backend for Repo. Guarded by a
// single map-level mutex with explicit fetch/save pairing: a per-table map
// guarded by a single-writer lock.
type MemoryRepo struct {
	mu      sync.Mutex
	buckets map[BucketKey]*Bucket
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{buckets: make(map[BucketKey]*Bucket)}
}

// Seed installs a bucket directly, for test setup.
func (r *MemoryRepo) Seed(b Bucket) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := b
	r.buckets[b.Key] = &cp
}

func (r *MemoryRepo) FetchEligible(_ context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error) {
	now := time.Now().Unix()
	return r.fetch(pairs, func(k BucketKey) bool { return k.ExpirySec >= now }), nil
}

func (r *MemoryRepo) FetchAny(_ context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error) {
	return r.fetch(pairs, func(BucketKey) bool { return true }), nil
}

func (r *MemoryRepo) fetch(pairs [][2]uint64, keep func(BucketKey) bool) map[BucketKey]*Bucket {
	want := make(map[[2]uint64]struct{}, len(pairs))
	for _, p := range pairs {
		want[p] = struct{}{}
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[BucketKey]*Bucket)
	for k, v := range r.buckets {
		if _, ok := want[[2]uint64{uint64(k.StoreID), k.ProductID}]; !ok {
			continue
		}
		if !keep(k) {
			continue
		}
		cp := *v
		out[k] = &cp
	}
	return out
}

func (r *MemoryRepo) SaveAll(_ context.Context, buckets map[BucketKey]*Bucket) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for k, v := range buckets {
		cp := *v
		r.buckets[k] = &cp
	}
	return nil
}
