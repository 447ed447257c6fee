package refund

import (
	"context"
	"sync"
)

type memKey struct {
	orderID    string
	storeID    uint32
	productID  uint64
	attrSetSeq uint16
	timeIssued int64
}

func toMemKey(k RequestKey) memKey {
	return memKey{
		orderID: k.OrderID, storeID: k.Pid.StoreID, productID: k.Pid.ProductID,
		attrSetSeq: k.Pid.AttrSetSeq, timeIssued: k.TimeIssued.Unix(),
	}
}

// MemoryRepo is the in-memory reference backend.
type MemoryRepo struct {
	mu           sync.Mutex
	synced       map[memKey]SyncedRequest
	resolutions  map[memKey][]Resolution
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{synced: make(map[memKey]SyncedRequest), resolutions: make(map[memKey][]Resolution)}
}

func (r *MemoryRepo) MergeSyncedRequests(_ context.Context, reqs []SyncedRequest) (int, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	orders := make(map[string]struct{})
	for _, req := range reqs {
		r.synced[toMemKey(req.Key)] = req
		orders[req.Key.OrderID] = struct{}{}
	}
	return len(orders), len(reqs), nil
}

func (r *MemoryRepo) FetchSyncedRequest(_ context.Context, key RequestKey) (SyncedRequest, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.synced[toMemKey(key)]
	return req, ok, nil
}

func (r *MemoryRepo) FetchPriorApprovedQty(_ context.Context, key RequestKey) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var total int64
	for _, res := range r.resolutions[toMemKey(key)] {
		total += res.ApprovedQty
	}
	return total, nil
}

func (r *MemoryRepo) SaveResolution(_ context.Context, res Resolution) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	k := toMemKey(res.Key)
	r.resolutions[k] = append(r.resolutions[k], res)
	return nil
}
