package merchant

import (
	"context"
	"sync"

	"github.com/iaros/commerce-core/internal/apperror"
)

// MemoryRepo is the in-memory reference backend.
type MemoryRepo struct {
	mu       sync.Mutex
	profiles map[uint64]*Profile
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{profiles: make(map[uint64]*Profile)}
}

func (r *MemoryRepo) Create(_ context.Context, p *Profile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *p
	r.profiles[p.MerchantID] = &cp
	return nil
}

func (r *MemoryRepo) UpdateThirdParty(_ context.Context, merchantID uint64, tp ThirdPartyProfile) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[merchantID]
	if !ok {
		return apperror.ErrNotExist
	}
	p.ThirdParty = tp
	return nil
}

func (r *MemoryRepo) FetchByID(_ context.Context, merchantID uint64) (*Profile, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.profiles[merchantID]
	if !ok {
		return nil, apperror.ErrNotExist
	}
	cp := *p
	return &cp, nil
}
