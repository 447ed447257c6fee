package refund

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
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

// RestyOrderRequestPuller is the production OrderRequestPuller: pulls
// pending return records off order-service's internal endpoint for
// sync_refund_req.
type RestyOrderRequestPuller struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyOrderRequestPuller(baseURL string, timeout time.Duration) *RestyOrderRequestPuller {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &RestyOrderRequestPuller{client: client, breaker: newBreaker("refund-puller"), baseURL: baseURL}
}

type pendingRequestDTO struct {
	OrderID      string      `json:"order_id"`
	Pid          catalog.Pid `json:"pid"`
	TimeIssued   int64       `json:"time_issued"`
	RequestedQty int64       `json:"requested_qty"`
}

func (p *RestyOrderRequestPuller) FetchPendingRequests(ctx context.Context) ([]SyncedRequest, error) {
	var reply struct {
		Requests []pendingRequestDTO `json:"requests"`
	}
	_, err := p.breaker.Execute(func() (interface{}, error) {
		resp, err := p.client.R().SetContext(ctx).SetResult(&reply).
			Get(fmt.Sprintf("%s/internal/returns/pending", p.baseURL))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("refund puller fetch failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	out := make([]SyncedRequest, 0, len(reply.Requests))
	for _, r := range reply.Requests {
		out = append(out, SyncedRequest{
			Key: RequestKey{OrderID: r.OrderID, Pid: r.Pid, TimeIssued: time.Unix(r.TimeIssued, 0).UTC()},
			RequestedQty: r.RequestedQty,
		})
	}
	return out, nil
}

// RestyCurrencyConverter is the production CurrencyConverter: converts a
// buyer-currency amount into a seller's currency using the order's locked
// exchange-rate snapshot, fetched from order-service's internal endpoint.
type RestyCurrencyConverter struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyCurrencyConverter(baseURL string, timeout time.Duration) *RestyCurrencyConverter {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	return &RestyCurrencyConverter{client: client, breaker: newBreaker("refund-converter"), baseURL: baseURL}
}

type currencySnapshotReply struct {
	OwnerID  uint64 `json:"owner_id"`
	Snapshot map[uint64]struct {
		Label string `json:"label"`
		Rate  string `json:"rate"`
	} `json:"snapshot"`
}

// ToMerchantCurrency converts buyerAmount (in the order's buyer currency)
// into the seller's currency: merchant_amount = buyer_amount *
// seller_rate / buyer_rate, the inverse of money.Snapshot.Convert's
// seller-to-buyer direction.
func (c *RestyCurrencyConverter) ToMerchantCurrency(ctx context.Context, orderID string, pid catalog.Pid, buyerAmount money.Amount) (money.Amount, error) {
	var reply currencySnapshotReply
	_, err := c.breaker.Execute(func() (interface{}, error) {
		resp, err := c.client.R().SetContext(ctx).SetResult(&reply).
			Get(fmt.Sprintf("%s/internal/order/%s/currency", c.baseURL, orderID))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == 404 {
			return nil, apperror.ErrNotExist
		}
		if resp.IsError() {
			return nil, fmt.Errorf("currency converter fetch failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		if appErr, ok := apperror.AsError(err); ok {
			return money.Amount{}, appErr
		}
		return money.Amount{}, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}

	sellerID := uint64(pid.StoreID)
	buyer, ok := reply.Snapshot[reply.OwnerID]
	if !ok {
		return money.Amount{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "missing buyer in currency snapshot")
	}
	seller, ok := reply.Snapshot[sellerID]
	if !ok {
		return money.Amount{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "missing seller in currency snapshot")
	}
	buyerRate, err := decimal.NewFromString(buyer.Rate)
	if err != nil {
		return money.Amount{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	sellerRate, err := decimal.NewFromString(seller.Rate)
	if err != nil {
		return money.Amount{}, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
	}
	if buyerRate.IsZero() {
		return money.Amount{}, apperror.New(apperror.KindDataCorruption, "DataCorruption", "buyer rate is zero")
	}
	merchantValue := buyerAmount.Value.Mul(sellerRate).Div(buyerRate)
	return money.NewAmount(seller.Label, merchantValue), nil
}

// InProcessChargeLookup is the production ChargeLookup: payment-service
// hosts both charge.Service and refund.Service in one binary, so this
// reads straight off charge.Repo rather than over the network.
type InProcessChargeLookup struct {
	Charges charge.Repo
}

func (l InProcessChargeLookup) FetchPaymentIntent(ctx context.Context, orderID string, pid catalog.Pid) (string, error) {
	oid, err := order.DecodeID(orderID)
	if err != nil {
		return "", err
	}
	charges, err := l.Charges.FetchByOrderID(ctx, oid)
	if err != nil {
		return "", err
	}
	for _, c := range charges {
		if c.State != charge.StateOrderAppSynced {
			continue
		}
		for _, line := range c.Lines {
			if line.Pid != pid {
				continue
			}
			method, ok := c.Method.(charge.Stripe)
			if !ok || method.PaymentIntent == "" {
				continue
			}
			return method.PaymentIntent, nil
		}
	}
	return "", apperror.ErrRefundRequestNotFound
}
