package merchant

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/apperror"
)

type fakeStoreGateway struct{ profile StoreProfile }

func (f *fakeStoreGateway) FetchStoreProfile(_ context.Context, _ uint32) (StoreProfile, error) {
	return f.profile, nil
}

type fakeOnboardingProcessor struct {
	onboardResult ThirdPartyProfile
	refreshResult ThirdPartyProfile
}

func (f *fakeOnboardingProcessor) Onboard(_ context.Context, _ uint32) (ThirdPartyProfile, error) {
	return f.onboardResult, nil
}
func (f *fakeOnboardingProcessor) RefreshStatus(_ context.Context, _ string) (ThirdPartyProfile, error) {
	return f.refreshResult, nil
}

func TestOnboardStore_Success(t *testing.T) {
	now := time.Now()
	store := &fakeStoreGateway{profile: StoreProfile{StoreID: 51, Staff: []StaffWindow{
		{StaffID: 7, ValidFrom: now.Add(-time.Hour), ValidTo: now.Add(time.Hour)},
	}}}
	psp := &fakeOnboardingProcessor{onboardResult: ThirdPartyProfile{AccountID: "acct_1", ChargesEnabled: true}}
	svc := NewService(NewMemoryRepo(), store, psp)

	p, err := svc.OnboardStore(context.Background(), OnboardRequest{StoreID: 51, StaffID: 7, MerchantID: 51})
	require.NoError(t, err)
	assert.Equal(t, "acct_1", p.ThirdParty.AccountID)
	assert.True(t, p.ThirdParty.ChargesEnabled)
}

func TestOnboardStore_RejectsStaffOutsideWindow(t *testing.T) {
	now := time.Now()
	store := &fakeStoreGateway{profile: StoreProfile{StoreID: 51, Staff: []StaffWindow{
		{StaffID: 7, ValidFrom: now.Add(-2 * time.Hour), ValidTo: now.Add(-time.Hour)},
	}}}
	svc := NewService(NewMemoryRepo(), store, &fakeOnboardingProcessor{})

	_, err := svc.OnboardStore(context.Background(), OnboardRequest{StoreID: 51, StaffID: 7, MerchantID: 51})
	assert.ErrorIs(t, err, apperror.ErrMerchantPermissionDenied)
}

func TestOnboardStore_RejectsStaffNotListed(t *testing.T) {
	store := &fakeStoreGateway{profile: StoreProfile{StoreID: 51}}
	svc := NewService(NewMemoryRepo(), store, &fakeOnboardingProcessor{})

	_, err := svc.OnboardStore(context.Background(), OnboardRequest{StoreID: 51, StaffID: 7, MerchantID: 51})
	assert.ErrorIs(t, err, apperror.ErrMerchantPermissionDenied)
}

func TestRefreshOnboardStatus_UpdatesOnlyThirdParty(t *testing.T) {
	repo := NewMemoryRepo()
	createTime := time.Now().Add(-24 * time.Hour)
	require.NoError(t, repo.Create(context.Background(), &Profile{
		MerchantID: 51, StoreID: 51, CreateTime: createTime,
		ThirdParty: ThirdPartyProfile{AccountID: "acct_1"},
	}))
	psp := &fakeOnboardingProcessor{refreshResult: ThirdPartyProfile{AccountID: "acct_1", PayoutsEnabled: true, TransfersActive: true}}
	svc := NewService(repo, &fakeStoreGateway{}, psp)

	p, err := svc.RefreshOnboardStatus(context.Background(), 51)
	require.NoError(t, err)
	assert.True(t, p.ThirdParty.PayoutsEnabled)
	assert.Equal(t, createTime, p.CreateTime)
}
