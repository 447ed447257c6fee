package payout

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/money"
)

type fakeChargeGateway struct{ c *charge.Charge }

func (f *fakeChargeGateway) FetchByID(_ context.Context, _ charge.ID) (*charge.Charge, error) {
	if f.c == nil {
		return nil, apperror.ErrNotExist
	}
	cp := *f.c
	return &cp, nil
}

type fakeMerchantGateway struct{ profile MerchantProfile }

func (f *fakeMerchantGateway) FetchProfile(_ context.Context, _ uint64) (MerchantProfile, error) {
	return f.profile, nil
}

type fakeRateGateway struct{ rate decimal.Decimal }

func (f *fakeRateGateway) BuyerRate(_ context.Context, _ uint64) (decimal.Decimal, error) {
	return f.rate, nil
}

type fakePSP struct{ transferID string }

func (f *fakePSP) CreateSession(context.Context, charge.SessionRequest) (charge.SessionResult, error) {
	return charge.SessionResult{}, nil
}
func (f *fakePSP) RefreshSession(context.Context, charge.Stripe) (charge.RefreshResult, error) {
	return charge.RefreshResult{}, nil
}
func (f *fakePSP) Transfer(_ context.Context, req charge.TransferRequest) (charge.TransferResult, error) {
	return charge.TransferResult{TransferID: f.transferID}, nil
}
func (f *fakePSP) Refund(context.Context, charge.RefundRequestPSP) (charge.RefundResultPSP, error) {
	return charge.RefundResultPSP{}, nil
}

func d(v string) decimal.Decimal { x, _ := decimal.NewFromString(v); return x }

func baseCharge(merchantID uint64) *charge.Charge {
	return &charge.Charge{
		ChargeID: charge.NewID(), BuyerID: 1, State: charge.StateOrderAppSynced,
		Method: charge.Stripe{Session: "s", PaymentIntent: "p", TransferGroup: "tg1"},
		Lines: []charge.Line{
			{Pid: catalog.Pid{StoreID: 51, ProductID: 1}, Qty: 2, MerchantID: merchantID, AmountOrig: money.NewAmount("USD", d("20.00"))},
		},
	}
}

func TestCreatePayout_Success(t *testing.T) {
	c := baseCharge(51)
	svc := NewService(NewMemoryRepo(), &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{transferID: "tr_1"})

	p, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	require.NoError(t, err)
	assert.True(t, p.AmountValue.Equal(d("20")), "got %s", p.AmountValue.String())
	assert.Equal(t, "tr_1", p.TransferID)
	assert.Equal(t, "tg1", p.TransferGroup)
}

func TestCreatePayout_RoundsAmountToCurrencyScale(t *testing.T) {
	c := baseCharge(51)
	svc := NewService(NewMemoryRepo(), &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("3")}, &fakePSP{transferID: "tr_1"})

	p, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	require.NoError(t, err)
	// 20 * 1.0 / 3 = 6.6666666666666666...7, rounded to USD's 2 digit scale.
	assert.True(t, p.AmountValue.Equal(d("6.67")), "got %s", p.AmountValue.String())
}

func TestCreatePayout_RejectsWrongChargeState(t *testing.T) {
	c := baseCharge(51)
	c.State = charge.StateProcessorCompleted
	svc := NewService(NewMemoryRepo(), &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{})

	_, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	assert.ErrorIs(t, err, apperror.ErrChargeStatus)
}

func TestCreatePayout_RejectsStaffNotInSet(t *testing.T) {
	c := baseCharge(51)
	svc := NewService(NewMemoryRepo(), &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{99}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{})

	_, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	assert.ErrorIs(t, err, apperror.ErrMerchantPermissionDenied)
}

func TestCreatePayout_RejectsPayoutsDisabled(t *testing.T) {
	c := baseCharge(51)
	svc := NewService(NewMemoryRepo(), &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: false, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{})

	_, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	assert.ErrorIs(t, err, apperror.ErrMerchantPermissionDenied)
}

func TestCreatePayout_SubtractsPriorPayouts_RejectsWhenNotEnough(t *testing.T) {
	c := baseCharge(51)
	repo := NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), &Payout{
		ChargeID: c.ChargeID, MerchantID: 51, TransferGroup: "tg1", AmountLabel: "USD", AmountValue: d("20.00"), CreateTime: time.Now(),
	}))
	svc := NewService(repo, &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{})

	_, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	assert.ErrorIs(t, err, apperror.ErrAmountNotEnough)
}

func TestCreatePayout_RejectsTransferGroupMismatch(t *testing.T) {
	c := baseCharge(51)
	repo := NewMemoryRepo()
	require.NoError(t, repo.Create(context.Background(), &Payout{
		ChargeID: c.ChargeID, MerchantID: 51, TransferGroup: "tg-other", AmountLabel: "USD", AmountValue: d("1.00"), CreateTime: time.Now(),
	}))
	svc := NewService(repo, &fakeChargeGateway{c: c},
		&fakeMerchantGateway{profile: MerchantProfile{StaffIDs: []uint64{7}, PayoutsEnabled: true, TransfersActive: true, CurrencyLabel: "USD", RateToBase: d("1.0")}},
		&fakeRateGateway{rate: d("1.0")}, &fakePSP{})

	_, err := svc.CreatePayout(context.Background(), CreatePayoutRequest{ChargeID: c.ChargeID, MerchantID: 51, StaffID: 7})
	assert.ErrorIs(t, err, apperror.ErrInvalid3partyParams)
}
