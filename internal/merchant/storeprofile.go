package merchant

import (
	"context"
	"sync"

	"github.com/iaros/commerce-core/internal/apperror"
)

// StoreProfileRepo is the narrow contract for the store/staff data onboard
// authorizes against. Onboarding only reads it; Save is the write path
// used by portal-service's internal store-profile endpoint.
type StoreProfileRepo interface {
	FetchByID(ctx context.Context, storeID uint32) (StoreProfile, error)
	Save(ctx context.Context, p StoreProfile) error
}

// MemoryStoreProfileRepo is the in-memory StoreProfileRepo backend.
type MemoryStoreProfileRepo struct {
	mu    sync.RWMutex
	rows  map[uint32]StoreProfile
}

func NewMemoryStoreProfileRepo() *MemoryStoreProfileRepo {
	return &MemoryStoreProfileRepo{rows: make(map[uint32]StoreProfile)}
}

func (r *MemoryStoreProfileRepo) FetchByID(_ context.Context, storeID uint32) (StoreProfile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.rows[storeID]
	if !ok {
		return StoreProfile{}, apperror.ErrNotExist
	}
	return p, nil
}

func (r *MemoryStoreProfileRepo) Save(_ context.Context, p StoreProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rows[p.StoreID] = p
	return nil
}

// RepoStoreGateway adapts a StoreProfileRepo into the StoreGateway
// interface onboard_store depends on; payment-service and order-service
// never need to reach store/staff data, so this stays an in-process
// wrapper rather than an RPC client.
type RepoStoreGateway struct {
	Repo StoreProfileRepo
}

func (g RepoStoreGateway) FetchStoreProfile(ctx context.Context, storeID uint32) (StoreProfile, error) {
	return g.Repo.FetchByID(ctx, storeID)
}
