package merchant

import "context"

// Repo is the narrow whole-aggregate contract for merchant profiles.
type Repo interface {
	Create(ctx context.Context, p *Profile) error
	UpdateThirdParty(ctx context.Context, merchantID uint64, tp ThirdPartyProfile) error
	FetchByID(ctx context.Context, merchantID uint64) (*Profile, error)
}
