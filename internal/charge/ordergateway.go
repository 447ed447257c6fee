package charge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
)

// RestyOrderGateway is the production OrderGateway: an RPC call over HTTP
// to the order service's internal surface. create-charge runs in
// payment-service, a separate binary from order-service, so it cannot hold
// an order.Repo directly; this mirrors RestyOrderSyncer's
// resty-plus-circuit-breaker shape for the read direction.
type RestyOrderGateway struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyOrderGateway(baseURL string, timeout time.Duration) *RestyOrderGateway {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "order-gateway",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
	return &RestyOrderGateway{client: client, breaker: breaker, baseURL: baseURL}
}

type orderLineDTO struct {
	Pid         catalog.Pid `json:"pid"`
	ReservedQty int64       `json:"reserved_qty"`
	PaidQty     int64       `json:"paid_qty"`
	PriceLabel  string      `json:"price_label"`
	PriceValue  string      `json:"price_value"`
}

type fetchOrderReply struct {
	NumCharges int32          `json:"num_charges"`
	Lines      []orderLineDTO `json:"lines"`
}

// FetchOrder implements OrderGateway by GETting order-service's internal
// owner-scoped order view and reconstituting just the fields the charge
// pipeline reads (reserved/paid quantities, unit price, charge count).
func (g *RestyOrderGateway) FetchOrder(ctx context.Context, ownerID uint64, orderID order.ID) (*order.Order, error) {
	var reply fetchOrderReply
	_, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.R().
			SetContext(ctx).
			SetResult(&reply).
			Get(fmt.Sprintf("%s/internal/order/%s/owner/%d", g.baseURL, orderID.String(), ownerID))
		if err != nil {
			return nil, err
		}
		if resp.StatusCode() == 404 {
			return nil, apperror.ErrNotExist
		}
		if resp.IsError() {
			return nil, fmt.Errorf("order gateway fetch failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		if appErr, ok := apperror.AsError(err); ok {
			return nil, appErr
		}
		return nil, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}

	ord := &order.Order{Header: order.Header{OrderID: orderID, OwnerID: ownerID, NumCharges: reply.NumCharges}}
	for _, l := range reply.Lines {
		v, err := decimal.NewFromString(l.PriceValue)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindDataCorruption, "DataCorruption", err)
		}
		ord.Lines = append(ord.Lines, order.Line{
			Pid: l.Pid, PriceUnit: money.NewAmount(l.PriceLabel, v),
			ReservedQty: l.ReservedQty, PaidQty: l.PaidQty,
		})
	}
	return ord, nil
}

// IncrementNumCharges implements OrderGateway by POSTing order-service's
// internal charge-counter bump endpoint.
func (g *RestyOrderGateway) IncrementNumCharges(ctx context.Context, orderID order.ID) error {
	_, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.R().SetContext(ctx).
			Post(fmt.Sprintf("%s/internal/order/%s/increment-charges", g.baseURL, orderID.String()))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("increment-charges failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	return nil
}
