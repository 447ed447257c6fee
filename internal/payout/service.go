package payout

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/money"
)

// maxMerchantFractionDigits is the precision ceiling on the merchant
// exchange rate itself: independent of any currency's display precision,
// the rate never carries more than 4 fractional digits.
const maxMerchantFractionDigits = 4

// ChargeGateway is the subset of charge.Service this package depends on.
type ChargeGateway interface {
	FetchByID(ctx context.Context, id charge.ID) (*charge.Charge, error)
}

// MerchantProfile is the capability/membership view create-payout needs.
type MerchantProfile struct {
	StaffIDs         []uint64
	PayoutsEnabled   bool
	TransfersActive  bool
	CurrencyLabel    string
	RateToBase       decimal.Decimal // merchant_rate
}

func (m MerchantProfile) hasStaff(staffID uint64) bool {
	for _, s := range m.StaffIDs {
		if s == staffID {
			return true
		}
	}
	return false
}

// MerchantGateway fetches the onboarding/capability view of a merchant.
type MerchantGateway interface {
	FetchProfile(ctx context.Context, merchantID uint64) (MerchantProfile, error)
}

// BuyerRateGateway supplies the buyer's locked exchange rate for the order
// a charge belongs to.
type BuyerRateGateway interface {
	BuyerRate(ctx context.Context, buyerID uint64) (decimal.Decimal, error)
}

// Service implements the create-payout pipeline.
type Service struct {
	Repo      Repo
	Charges   ChargeGateway
	Merchants MerchantGateway
	Rates     BuyerRateGateway
	PSP       charge.Processor
	Now       func() time.Time
}

func NewService(repo Repo, charges ChargeGateway, merchants MerchantGateway, rates BuyerRateGateway, psp charge.Processor) *Service {
	return &Service{Repo: repo, Charges: charges, Merchants: merchants, Rates: rates, PSP: psp, Now: time.Now}
}

// CreatePayoutRequest is create_payout's input.
type CreatePayoutRequest struct {
	ChargeID   charge.ID
	MerchantID uint64
	StaffID    uint64
}

// CreatePayout validates the merchant's capability and the charge's state,
// converts the merchant's share of the charge into its payout currency, and
// transfers whatever hasn't already been paid out against this charge.
func (s *Service) CreatePayout(ctx context.Context, req CreatePayoutRequest) (*Payout, error) {
	c, err := s.Charges.FetchByID(ctx, req.ChargeID)
	if err != nil {
		return nil, err
	}
	if c.State != charge.StateOrderAppSynced {
		return nil, apperror.ErrChargeStatus
	}

	profile, err := s.Merchants.FetchProfile(ctx, req.MerchantID)
	if err != nil {
		return nil, err
	}
	if !profile.hasStaff(req.StaffID) || !profile.PayoutsEnabled || !profile.TransfersActive {
		return nil, apperror.ErrMerchantPermissionDenied
	}
	if -profile.RateToBase.Exponent() > maxMerchantFractionDigits {
		return nil, apperror.New(apperror.KindDataCorruption, "CurrencyPrecision",
			"merchant exchange rate exceeds the 4-fractional-digit payout precision rule")
	}

	var sumOrig decimal.Decimal
	for _, l := range c.Lines {
		if l.MerchantID != req.MerchantID {
			continue
		}
		sumOrig = sumOrig.Add(l.AmountOrig.Value)
	}

	buyerRate, err := s.Rates.BuyerRate(ctx, c.BuyerID)
	if err != nil {
		return nil, err
	}
	if buyerRate.IsZero() {
		return nil, apperror.New(apperror.KindDataCorruption, "DataCorruption", "buyer rate is zero")
	}

	scale, ok := money.MaxFractionDigits[profile.CurrencyLabel]
	if !ok {
		return nil, apperror.New(apperror.KindDataCorruption, "CurrencyPrecision",
			"unknown currency label: "+profile.CurrencyLabel)
	}
	amountMerchant := sumOrig.Mul(profile.RateToBase).Div(buyerRate).Round(scale)

	prior, err := s.Repo.FetchByChargeAndMerchant(ctx, req.ChargeID, req.MerchantID)
	if err != nil {
		return nil, err
	}
	transferGroup := ""
	if stripeMethod, ok := c.Method.(charge.Stripe); ok {
		transferGroup = stripeMethod.TransferGroup
	}
	var priorSum decimal.Decimal
	for _, p := range prior {
		priorSum = priorSum.Add(p.AmountValue)
		if p.TransferGroup != transferGroup {
			return nil, apperror.ErrInvalid3partyParams
		}
	}

	remaining := amountMerchant.Sub(priorSum)
	if remaining.Sign() <= 0 {
		return nil, apperror.ErrAmountNotEnough
	}

	result, err := s.PSP.Transfer(ctx, charge.TransferRequest{
		TransferGroup: transferGroup, MerchantID: req.MerchantID,
		Amount: remaining.String(), Currency: profile.CurrencyLabel,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}

	p := &Payout{
		PayoutID: NewID(), ChargeID: req.ChargeID, MerchantID: req.MerchantID,
		TransferGroup: transferGroup, AmountLabel: profile.CurrencyLabel, AmountValue: remaining,
		TransferID: result.TransferID, CreateTime: s.Now(),
	}
	if err := s.Repo.Create(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}
