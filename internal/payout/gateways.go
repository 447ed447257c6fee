package payout

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iaros/commerce-core/internal/apperror"
)

func newBreaker(name string) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
}

// RestyMerchantGateway is the production MerchantGateway: an RPC call to
// portal-service's internal merchant-profile endpoint, the onboarding and
// payout pipelines living in separate binaries.
type RestyMerchantGateway struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyMerchantGateway(baseURL string, timeout time.Duration) *RestyMerchantGateway {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &RestyMerchantGateway{client: client, breaker: newBreaker("merchant-gateway"), baseURL: baseURL}
}

type merchantProfileReply struct {
	StaffIDs        []uint64 `json:"staff_ids"`
	PayoutsEnabled  bool     `json:"payouts_enabled"`
	TransfersActive bool     `json:"transfers_active"`
	CurrencyLabel   string   `json:"currency_label"`
	RateToBase      string   `json:"rate_to_base"`
}

func (g *RestyMerchantGateway) FetchProfile(ctx context.Context, merchantID uint64) (MerchantProfile, error) {
	var reply merchantProfileReply
	_, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetResult(&reply).
			Get(fmt.Sprintf("%s/internal/merchant/%d/profile", g.baseURL, merchantID))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == 404 {
			return nil, apperror.ErrNotExist
		}
		if resp.IsError() {
			return nil, fmt.Errorf("merchant gateway fetch failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		if appErr, ok := apperror.AsError(err); ok {
			return MerchantProfile{}, appErr
		}
		return MerchantProfile{}, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	rate, err := decimal.NewFromString(reply.RateToBase)
	if err != nil {
		return MerchantProfile{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	return MerchantProfile{
		StaffIDs: reply.StaffIDs, PayoutsEnabled: reply.PayoutsEnabled, TransfersActive: reply.TransfersActive,
		CurrencyLabel: reply.CurrencyLabel, RateToBase: rate,
	}, nil
}

// RestyBuyerRateGateway is the production BuyerRateGateway: an RPC call to
// order-service's internal buyer-rate endpoint, reading the rate off the
// buyer's most recent order's locked currency snapshot.
type RestyBuyerRateGateway struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyBuyerRateGateway(baseURL string, timeout time.Duration) *RestyBuyerRateGateway {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &RestyBuyerRateGateway{client: client, breaker: newBreaker("buyer-rate-gateway"), baseURL: baseURL}
}

type buyerRateReply struct {
	Label string `json:"label"`
	Rate  string `json:"rate"`
}

func (g *RestyBuyerRateGateway) BuyerRate(ctx context.Context, buyerID uint64) (decimal.Decimal, error) {
	var reply buyerRateReply
	_, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetResult(&reply).
			Get(fmt.Sprintf("%s/internal/buyer/%d/rate", g.baseURL, buyerID))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("buyer rate gateway fetch failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		if appErr, ok := apperror.AsError(err); ok {
			return decimal.Decimal{}, appErr
		}
		return decimal.Decimal{}, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	return decimal.NewFromString(reply.Rate)
}

// CachingMerchantGateway wraps a MerchantGateway with a short-lived
// in-memory cache: a merchant's onboarding/currency profile changes rarely
// (a Stripe webhook refresh, a rate update) compared to how often
// create_payout reads it, so this spares portal-service the RPC traffic
// of one lookup per payout attempt.
type CachingMerchantGateway struct {
	inner MerchantGateway
	cache *gocache.Cache
}

func NewCachingMerchantGateway(inner MerchantGateway, ttl time.Duration) *CachingMerchantGateway {
	return &CachingMerchantGateway{inner: inner, cache: gocache.New(ttl, 2*ttl)}
}

func (g *CachingMerchantGateway) FetchProfile(ctx context.Context, merchantID uint64) (MerchantProfile, error) {
	key := strconv.FormatUint(merchantID, 10)
	if cached, ok := g.cache.Get(key); ok {
		return cached.(MerchantProfile), nil
	}
	profile, err := g.inner.FetchProfile(ctx, merchantID)
	if err != nil {
		return MerchantProfile{}, err
	}
	g.cache.SetDefault(key, profile)
	return profile, nil
}
