package refund

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

type fakePuller struct{ pending []SyncedRequest }

func (f *fakePuller) FetchPendingRequests(context.Context) ([]SyncedRequest, error) { return f.pending, nil }

type fakeChargeLookup struct{ paymentIntent string }

func (f *fakeChargeLookup) FetchPaymentIntent(context.Context, string, catalog.Pid) (string, error) {
	return f.paymentIntent, nil
}

type fakeConverter struct{ rate decimal.Decimal; label string }

func (f *fakeConverter) ToMerchantCurrency(_ context.Context, _ string, _ catalog.Pid, buyerAmount money.Amount) (money.Amount, error) {
	return money.NewAmount(f.label, buyerAmount.Value.Mul(f.rate)), nil
}

type fakeRefundPSP struct{ refundID string }

func (f *fakeRefundPSP) CreateSession(context.Context, charge.SessionRequest) (charge.SessionResult, error) {
	return charge.SessionResult{}, nil
}
func (f *fakeRefundPSP) RefreshSession(context.Context, charge.Stripe) (charge.RefreshResult, error) {
	return charge.RefreshResult{}, nil
}
func (f *fakeRefundPSP) Transfer(context.Context, charge.TransferRequest) (charge.TransferResult, error) {
	return charge.TransferResult{}, nil
}
func (f *fakeRefundPSP) Refund(context.Context, charge.RefundRequestPSP) (charge.RefundResultPSP, error) {
	return charge.RefundResultPSP{RefundID: f.refundID}, nil
}

func testKey() RequestKey {
	return RequestKey{OrderID: "order-1", Pid: catalog.Pid{StoreID: 51, ProductID: 168}, TimeIssued: time.Unix(1700000000, 0)}
}

func amount(v string) money.Amount {
	d, _ := decimal.NewFromString(v)
	return money.NewAmount("USD", d)
}

func newTestService(t *testing.T, repo Repo, requestedQty int64) *Service {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepo()
	}
	_, _, err := repo.MergeSyncedRequests(context.Background(), []SyncedRequest{{Key: testKey(), RequestedQty: requestedQty}})
	require.NoError(t, err)
	return NewService(repo, &fakePuller{}, &fakeChargeLookup{paymentIntent: "pi_1"},
		&fakeConverter{rate: decimal.NewFromInt(1), label: "TWD"}, &fakeRefundPSP{refundID: "re_1"})
}

func TestResolveRefund_Success(t *testing.T) {
	svc := newTestService(t, nil, 5)
	res, err := svc.ResolveRefund(context.Background(), ResolutionRequest{
		Key:      testKey(),
		Reject:   []RejectLine{{Reason: "damaged", Qty: 2}},
		Approval: Approval{Qty: 3, AmountTotalBuyer: amount("30.00")},
	})
	require.NoError(t, err)
	assert.Equal(t, int64(3), res.ApprovedQty)
	assert.Equal(t, "re_1", res.RefundID)
}

func TestResolveRefund_NotFound(t *testing.T) {
	svc := newTestService(t, nil, 5)
	_, err := svc.ResolveRefund(context.Background(), ResolutionRequest{
		Key:      RequestKey{OrderID: "missing", Pid: catalog.Pid{StoreID: 1, ProductID: 2}, TimeIssued: time.Unix(1, 0)},
		Approval: Approval{Qty: 1, AmountTotalBuyer: amount("1.00")},
	})
	assert.ErrorIs(t, err, apperror.ErrRefundRequestNotFound)
}

func TestResolveRefund_RejectsQtyMismatch(t *testing.T) {
	svc := newTestService(t, nil, 5)
	_, err := svc.ResolveRefund(context.Background(), ResolutionRequest{
		Key:      testKey(),
		Reject:   []RejectLine{{Reason: "damaged", Qty: 1}},
		Approval: Approval{Qty: 3, AmountTotalBuyer: amount("30.00")},
	})
	require.Error(t, err)
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "QtyMismatch", ae.Code)
}

func TestResolveRefund_EnforcesRemainingBudget(t *testing.T) {
	repo := NewMemoryRepo()
	svc := newTestService(t, repo, 5)
	_, err := svc.ResolveRefund(context.Background(), ResolutionRequest{
		Key:      testKey(),
		Reject:   []RejectLine{{Reason: "damaged", Qty: 1}},
		Approval: Approval{Qty: 4, AmountTotalBuyer: amount("40.00")},
	})
	require.NoError(t, err)

	_, err = svc.ResolveRefund(context.Background(), ResolutionRequest{
		Key:      testKey(),
		Reject:   []RejectLine{{Reason: "damaged", Qty: 3}},
		Approval: Approval{Qty: 2, AmountTotalBuyer: amount("20.00")},
	})
	require.Error(t, err)
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "RefundBudgetExceeded", ae.Code)
}

func TestSyncRefundRequests_ReturnsCounts(t *testing.T) {
	puller := &fakePuller{pending: []SyncedRequest{
		{Key: RequestKey{OrderID: "o1", Pid: catalog.Pid{StoreID: 1, ProductID: 1}, TimeIssued: time.Unix(1, 0)}, RequestedQty: 2},
		{Key: RequestKey{OrderID: "o1", Pid: catalog.Pid{StoreID: 1, ProductID: 2}, TimeIssued: time.Unix(2, 0)}, RequestedQty: 1},
		{Key: RequestKey{OrderID: "o2", Pid: catalog.Pid{StoreID: 1, ProductID: 1}, TimeIssued: time.Unix(3, 0)}, RequestedQty: 1},
	}}
	svc := NewService(NewMemoryRepo(), puller, &fakeChargeLookup{}, &fakeConverter{rate: decimal.NewFromInt(1)}, &fakeRefundPSP{})

	numOrders, numLines, err := svc.SyncRefundRequests(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, numOrders)
	assert.Equal(t, 3, numLines)
}
