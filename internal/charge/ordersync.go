package charge

import (
	"context"
	"fmt"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sony/gobreaker"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/order"
)

// RestyOrderSyncer is the production OrderSyncer: an RPC call over HTTP to
// the order service's PATCH /internal/order/{oid}/payment-sync endpoint, reporting the
// now-completed charge lines as newly paid quantities.
type RestyOrderSyncer struct {
	client  *resty.Client
	breaker *gobreaker.CircuitBreaker
	baseURL string
}

func NewRestyOrderSyncer(baseURL string, timeout time.Duration) *RestyOrderSyncer {
	client := resty.New().SetTimeout(timeout).SetRetryCount(2).SetRetryWaitTime(200 * time.Millisecond)
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "order-sync",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     15 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
	})
	return &RestyOrderSyncer{client: client, breaker: breaker, baseURL: baseURL}
}

type paidQuantityUpdate struct {
	StoreID      uint32 `json:"store_id"`
	ProductID    uint64 `json:"product_id"`
	AttrSetSeq   uint16 `json:"attr_set_seq"`
	PaidQtyDelta int64  `json:"paid_qty_delta"`
	PaidAt       string `json:"paid_at"`
}

type syncPaidQuantitiesBody struct {
	Updates []paidQuantityUpdate `json:"updates"`
}

// SyncPaidQuantities implements charge.OrderSyncer by PATCHing the order
// service. The order service's handler performs UpdateLinesPayment as an
// idempotent increment, so a retried sync after a prior partial failure is
// safe to resend in full.
func (s *RestyOrderSyncer) SyncPaidQuantities(ctx context.Context, orderID order.ID, lines []Line) error {
	now := time.Now().UTC().Format(time.RFC3339)
	updates := make([]paidQuantityUpdate, 0, len(lines))
	for _, l := range lines {
		updates = append(updates, paidQuantityUpdate{
			StoreID: l.Pid.StoreID, ProductID: l.Pid.ProductID, AttrSetSeq: l.Pid.AttrSetSeq,
			PaidQtyDelta: l.Qty, PaidAt: now,
		})
	}

	_, err := s.breaker.Execute(func() (interface{}, error) {
		resp, err := s.client.R().
			SetContext(ctx).
			SetBody(syncPaidQuantitiesBody{Updates: updates}).
			Patch(fmt.Sprintf("%s/internal/order/%s/payment-sync", s.baseURL, orderID.String()))
		if err != nil {
			return nil, err
		}
		if resp.IsError() {
			return nil, fmt.Errorf("order sync failed with status %d", resp.StatusCode())
		}
		return nil, nil
	})
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}
	return nil
}
