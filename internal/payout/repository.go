package payout

import (
	"context"

	"github.com/iaros/commerce-core/internal/charge"
)

// Repo is the narrow whole-aggregate contract for payouts.
type Repo interface {
	Create(ctx context.Context, p *Payout) error
	FetchByChargeAndMerchant(ctx context.Context, chargeID charge.ID, merchantID uint64) ([]Payout, error)
}
