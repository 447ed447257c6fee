package merchant

import (
	"context"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
)

// StoreGateway fetches the authoritative store profile (staff list) via
// RPC.
type StoreGateway interface {
	FetchStoreProfile(ctx context.Context, storeID uint32) (StoreProfile, error)
}

// OnboardingProcessor is the PSP-side onboarding call: it returns the
// 3rd-party account id and initial capability flags.
type OnboardingProcessor interface {
	Onboard(ctx context.Context, storeID uint32) (ThirdPartyProfile, error)
	RefreshStatus(ctx context.Context, accountID string) (ThirdPartyProfile, error)
}

// Service implements the onboard-store / refresh-onboard-status
// pipelines.
type Service struct {
	Repo  Repo
	Store StoreGateway
	PSP   OnboardingProcessor
	Now   func() time.Time
}

func NewService(repo Repo, store StoreGateway, psp OnboardingProcessor) *Service {
	return &Service{Repo: repo, Store: store, PSP: psp, Now: time.Now}
}

// OnboardRequest is onboard_store's input.
type OnboardRequest struct {
	StoreID    uint32
	StaffID    uint64
	MerchantID uint64
}

// OnboardStore implements the onboard_store pipeline.
func (s *Service) OnboardStore(ctx context.Context, req OnboardRequest) (*Profile, error) {
	profile, err := s.Store.FetchStoreProfile(ctx, req.StoreID)
	if err != nil {
		return nil, err
	}
	now := s.Now()
	if !profile.HasActiveStaff(req.StaffID, now) {
		return nil, apperror.ErrMerchantPermissionDenied
	}

	tp, err := s.PSP.Onboard(ctx, req.StoreID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}

	p := &Profile{
		MerchantID: req.MerchantID, StoreID: req.StoreID, CreateTime: now, ThirdParty: tp,
		StaffIDs: profile.staffIDs(), CurrencyLabel: profile.CurrencyLabel, RateToBase: profile.RateToBase,
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// RefreshOnboardStatus implements refresh_onboard_status: it updates only
// the 3rd-party profile and capability flags, never the merchant/store
// association established at onboarding.
func (s *Service) RefreshOnboardStatus(ctx context.Context, merchantID uint64) (*Profile, error) {
	p, err := s.Repo.FetchByID(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	tp, err := s.PSP.RefreshStatus(ctx, p.ThirdParty.AccountID)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}
	if err := s.Repo.UpdateThirdParty(ctx, merchantID, tp); err != nil {
		return nil, err
	}
	p.ThirdParty = tp
	return p, nil
}
