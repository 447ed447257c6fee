package payout

import (
	"context"
	"sync"

	"github.com/iaros/commerce-core/internal/charge"
)

// MemoryRepo is the in-memory reference backend.
type MemoryRepo struct {
	mu      sync.Mutex
	payouts []Payout
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{}
}

func (r *MemoryRepo) Create(_ context.Context, p *Payout) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.payouts = append(r.payouts, *p)
	return nil
}

func (r *MemoryRepo) FetchByChargeAndMerchant(_ context.Context, chargeID charge.ID, merchantID uint64) ([]Payout, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Payout
	for _, p := range r.payouts {
		if p.ChargeID == chargeID && p.MerchantID == merchantID {
			out = append(out, p)
		}
	}
	return out, nil
}
