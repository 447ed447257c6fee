package charge

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
)

type fakeOrderGateway struct {
	ord             *order.Order
	incrementCalls  int
	incrementErr    error
}

func (f *fakeOrderGateway) FetchOrder(_ context.Context, _ uint64, _ order.ID) (*order.Order, error) {
	if f.ord == nil {
		return nil, apperror.ErrNotExist
	}
	cp := *f.ord
	return &cp, nil
}

func (f *fakeOrderGateway) IncrementNumCharges(_ context.Context, _ order.ID) error {
	f.incrementCalls++
	if f.incrementErr != nil {
		return f.incrementErr
	}
	f.ord.Header.NumCharges++
	return nil
}

type fakeLocker struct{ released int }

func (f *fakeLocker) Acquire(_ context.Context, _ string) (func(context.Context) error, error) {
	return func(context.Context) error { f.released++; return nil }, nil
}

type fakeProcessor struct {
	sessionResult SessionResult
	refreshResult RefreshResult
	refreshErr    error
}

func (f *fakeProcessor) CreateSession(_ context.Context, _ SessionRequest) (SessionResult, error) {
	return f.sessionResult, nil
}
func (f *fakeProcessor) RefreshSession(_ context.Context, _ Stripe) (RefreshResult, error) {
	return f.refreshResult, f.refreshErr
}
func (f *fakeProcessor) Transfer(_ context.Context, _ TransferRequest) (TransferResult, error) {
	return TransferResult{}, nil
}
func (f *fakeProcessor) Refund(_ context.Context, _ RefundRequestPSP) (RefundResultPSP, error) {
	return RefundResultPSP{}, nil
}

type fakeSyncer struct {
	calls int
	err   error
}

func (f *fakeSyncer) SyncPaidQuantities(_ context.Context, _ order.ID, _ []Line) error {
	f.calls++
	return f.err
}

func amt(v string) money.Amount {
	d, _ := decimal.NewFromString(v)
	return money.NewAmount("USD", d)
}

func testPid() catalog.Pid { return catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1} }

func newTestOrder(oid order.ID, reservedQty int64) *order.Order {
	return &order.Order{
		Header: order.Header{OrderID: oid, OwnerID: 1, CreateTime: time.Now(), NumCharges: 0},
		Lines: []order.Line{
			{Pid: testPid(), PriceUnit: amt("10.00"), ReservedQty: reservedQty},
		},
	}
}

func newTestService(t *testing.T, gw *fakeOrderGateway, repo Repo, proc *fakeProcessor, syncer *fakeSyncer) *Service {
	t.Helper()
	if repo == nil {
		repo = NewMemoryRepo()
	}
	return NewService(repo, gw, &fakeLocker{}, proc, syncer, nil)
}

func TestService_CreateCharge_Success(t *testing.T) {
	oid := order.NewID()
	gw := &fakeOrderGateway{ord: newTestOrder(oid, 5)}
	proc := &fakeProcessor{sessionResult: SessionResult{Session: "sess_1", PaymentIntent: "pi_1", TransferGroup: "order_" + oid.String()}}
	svc := newTestService(t, gw, nil, proc, &fakeSyncer{})

	req := CreateRequest{OwnerID: 1, OrderID: oid, ChargeQuota: 5, Lines: []struct {
		Pid catalog.Pid
		Qty int64
	}{{Pid: testPid(), Qty: 3}}}

	c, err := svc.CreateCharge(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, StateProcessorAccepted, c.State)
	assert.Equal(t, Stripe{Session: "sess_1", PaymentIntent: "pi_1", TransferGroup: "order_" + oid.String()}, c.Method)
	assert.Equal(t, 1, gw.incrementCalls)
}

func TestService_CreateCharge_RejectsQtyAboveChargeable(t *testing.T) {
	oid := order.NewID()
	gw := &fakeOrderGateway{ord: newTestOrder(oid, 5)}
	proc := &fakeProcessor{}
	svc := newTestService(t, gw, nil, proc, &fakeSyncer{})

	req := CreateRequest{OwnerID: 1, OrderID: oid, ChargeQuota: 5, Lines: []struct {
		Pid catalog.Pid
		Qty int64
	}{{Pid: testPid(), Qty: 6}}}

	_, err := svc.CreateCharge(context.Background(), req)
	require.Error(t, err)
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "InvalidQuantity", ae.Code)
}

func TestService_CreateCharge_RejectsOverQuota(t *testing.T) {
	oid := order.NewID()
	ord := newTestOrder(oid, 5)
	ord.Header.NumCharges = 5
	gw := &fakeOrderGateway{ord: ord}
	svc := newTestService(t, gw, nil, &fakeProcessor{}, &fakeSyncer{})

	req := CreateRequest{OwnerID: 1, OrderID: oid, ChargeQuota: 5, Lines: []struct {
		Pid catalog.Pid
		Qty int64
	}{{Pid: testPid(), Qty: 1}}}

	_, err := svc.CreateCharge(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrQuotaExceeded)
}

func TestService_CreateCharge_PerCallerQuotaFromClaims(t *testing.T) {
	oid := order.NewID()
	ord := newTestOrder(oid, 5)
	ord.Header.NumCharges = 1
	gw := &fakeOrderGateway{ord: ord}
	svc := newTestService(t, gw, nil, &fakeProcessor{}, &fakeSyncer{})

	req := CreateRequest{OwnerID: 1, OrderID: oid, ChargeQuota: 1, Lines: []struct {
		Pid catalog.Pid
		Qty int64
	}{{Pid: testPid(), Qty: 1}}}

	_, err := svc.CreateCharge(context.Background(), req)
	assert.ErrorIs(t, err, apperror.ErrQuotaExceeded)
}

func TestService_CreateCharge_RejectsWithinMinInterval(t *testing.T) {
	oid := order.NewID()
	gw := &fakeOrderGateway{ord: newTestOrder(oid, 5)}
	repo := NewMemoryRepo()
	proc := &fakeProcessor{sessionResult: SessionResult{Session: "s", PaymentIntent: "p", TransferGroup: "t"}}
	svc := newTestService(t, gw, repo, proc, &fakeSyncer{})

	req := CreateRequest{OwnerID: 1, OrderID: oid, ChargeQuota: 5, Lines: []struct {
		Pid catalog.Pid
		Qty int64
	}{{Pid: testPid(), Qty: 1}}}

	_, err := svc.CreateCharge(context.Background(), req)
	require.NoError(t, err)

	_, err = svc.CreateCharge(context.Background(), req)
	require.Error(t, err)
	var ae *apperror.Error
	require.ErrorAs(t, err, &ae)
	assert.Equal(t, "ChargeTooSoon", ae.Code)
}

func TestService_RefreshCharge_CompletesAndSyncs(t *testing.T) {
	oid := order.NewID()
	repo := NewMemoryRepo()
	c := &Charge{
		ChargeID: NewID(), OrderID: oid, BuyerID: 1, State: StateProcessorAccepted,
		Method: Stripe{Session: "s", PaymentIntent: "p", TransferGroup: "t"},
		Lines:  []Line{{Pid: testPid(), Qty: 2, AmountOrig: amt("10.00")}},
		CreateTime: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), c))

	syncer := &fakeSyncer{}
	proc := &fakeProcessor{refreshResult: RefreshResult{Completed: true}}
	svc := newTestService(t, &fakeOrderGateway{ord: newTestOrder(oid, 5)}, repo, proc, syncer)

	got, err := svc.RefreshCharge(context.Background(), c.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, StateOrderAppSynced, got.State)
	assert.Equal(t, 1, syncer.calls)
	assert.NotNil(t, got.OrderAppSyncedAt)
}

func TestService_RefreshCharge_SyncFailureStaysRetryable(t *testing.T) {
	oid := order.NewID()
	repo := NewMemoryRepo()
	c := &Charge{
		ChargeID: NewID(), OrderID: oid, BuyerID: 1, State: StateProcessorAccepted,
		Method: Stripe{Session: "s", PaymentIntent: "p", TransferGroup: "t"},
		Lines:  []Line{{Pid: testPid(), Qty: 2, AmountOrig: amt("10.00")}},
		CreateTime: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), c))

	syncer := &fakeSyncer{err: apperror.ErrExternalProcessor}
	proc := &fakeProcessor{refreshResult: RefreshResult{Completed: true}}
	svc := newTestService(t, &fakeOrderGateway{ord: newTestOrder(oid, 5)}, repo, proc, syncer)

	got, err := svc.RefreshCharge(context.Background(), c.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, StateProcessorCompleted, got.State)
	assert.Equal(t, 1, syncer.calls)

	got2, err := svc.RefreshCharge(context.Background(), c.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, StateProcessorCompleted, got2.State)
	assert.Equal(t, 2, syncer.calls)
}

func TestService_RefreshCharge_SessionExpired(t *testing.T) {
	oid := order.NewID()
	repo := NewMemoryRepo()
	c := &Charge{
		ChargeID: NewID(), OrderID: oid, BuyerID: 1, State: StateProcessorAccepted,
		Method: Stripe{Session: "s", PaymentIntent: "p", TransferGroup: "t"},
		Lines:  []Line{{Pid: testPid(), Qty: 1, AmountOrig: amt("10.00")}},
		CreateTime: time.Now(),
	}
	require.NoError(t, repo.Create(context.Background(), c))

	proc := &fakeProcessor{refreshResult: RefreshResult{Expired: true}}
	svc := newTestService(t, &fakeOrderGateway{ord: newTestOrder(oid, 5)}, repo, proc, &fakeSyncer{})

	got, err := svc.RefreshCharge(context.Background(), c.ChargeID)
	require.NoError(t, err)
	assert.Equal(t, StateSessionExpired, got.State)
}
