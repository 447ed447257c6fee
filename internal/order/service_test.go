package order

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/stock"
)

func validContact() Contact {
	return Contact{FirstName: "Ada", LastName: "Lovelace", Emails: []string{"ada@example.com"}}
}

func newTestService(t *testing.T) (*Service, *stock.MemoryRepo) {
	t.Helper()
	priceRepo := catalog.NewMemoryPriceRepo()
	policyRepo := catalog.NewMemoryPolicyRepo()
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}
	require.NoError(t, priceRepo.Save(context.Background(), 51, catalog.SaveSet{
		Creating: []catalog.PriceModel{{
			Pid: pid, Currency: "USD", Price: decimal.NewFromInt(10), IsCreate: true,
		}},
	}))
	require.NoError(t, policyRepo.Save(context.Background(), 51, []catalog.Policy{
		{StoreID: 51, ProductID: 168, WarrantyHours: 24, AutoCancelSec: 3600, MinNumRsv: 1, MaxNumRsv: 10},
	}))

	stockRepo := stock.NewMemoryRepo()
	far := time.Now().Add(365 * 24 * time.Hour)
	stockRepo.Seed(stock.Bucket{
		Key: stock.BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}, Total: 20, ExpiresAt: far,
	})
	eng := stock.NewEngine(stockRepo, stock.NewKeyLockPool())

	return NewService(NewMemoryRepo(), priceRepo, policyRepo, eng), stockRepo
}

func TestService_CreateOrder_Success(t *testing.T) {
	svc, _ := newTestService(t)
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}

	res, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID: 7,
		Lines:   []LineRequest{{Pid: pid, Qty: 3}},
		Billing: Billing{Contact: validContact()},
		Shipping: Shipping{Contact: validContact()},
	})
	require.NoError(t, err)
	require.Empty(t, res.LineErrors)
	require.NotNil(t, res.Order)
	assert.Len(t, res.Order.Lines, 1)
	assert.EqualValues(t, 3, res.Order.Lines[0].ReservedQty)

	fetched, err := svc.FetchByID(context.Background(), 7, res.Order.Header.OrderID)
	require.NoError(t, err)
	assert.Equal(t, res.Order.Header.OrderID, fetched.Header.OrderID)
}

func TestService_CreateOrder_RejectsInvalidContact(t *testing.T) {
	svc, _ := newTestService(t)
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID:  7,
		Lines:    []LineRequest{{Pid: pid, Qty: 1}},
		Billing:  Billing{Contact: Contact{FirstName: "", LastName: "Lovelace"}},
		Shipping: Shipping{Contact: validContact()},
	})
	require.Error(t, err)
}

func TestService_CreateOrder_StockShortfallReturnsLineErrors(t *testing.T) {
	svc, _ := newTestService(t)
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}

	// The policy caps a line at 10, so book 18 of the 20 seeded units first
	// and then ask for 5: only 2 remain.
	for i := 0; i < 2; i++ {
		_, err := svc.CreateOrder(context.Background(), CreateRequest{
			OwnerID: 7,
			Lines:   []LineRequest{{Pid: pid, Qty: 9}},
			Billing: Billing{Contact: validContact()},
			Shipping: Shipping{Contact: validContact()},
		})
		require.NoError(t, err)
	}

	res, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID: 7,
		Lines:   []LineRequest{{Pid: pid, Qty: 5}},
		Billing: Billing{Contact: validContact()},
		Shipping: Shipping{Contact: validContact()},
	})
	require.NoError(t, err)
	require.Nil(t, res.Order)
	require.Len(t, res.LineErrors, 1)
	assert.Equal(t, "NotEnough", res.LineErrors[0].Code)
}

func TestService_CreateOrder_EnforcesMaxReservation(t *testing.T) {
	svc, _ := newTestService(t)
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID: 7,
		Lines:   []LineRequest{{Pid: pid, Qty: 50}},
		Billing: Billing{Contact: validContact()},
		Shipping: Shipping{Contact: validContact()},
	})
	require.Error(t, err)
}

// failingCreateRepo wraps a real Repo but fails every Create call, to
// exercise the stock compensation path on persist failure.
type failingCreateRepo struct {
	Repo
}

func (r *failingCreateRepo) Create(ctx context.Context, ord *Order) error {
	return assert.AnError
}

func TestService_CreateOrder_CompensatesStockOnPersistFailure(t *testing.T) {
	_, stockRepo := newTestService(t)
	priceRepo := catalog.NewMemoryPriceRepo()
	policyRepo := catalog.NewMemoryPolicyRepo()
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}
	require.NoError(t, priceRepo.Save(context.Background(), 51, catalog.SaveSet{
		Creating: []catalog.PriceModel{{
			Pid: pid, Currency: "USD", Price: decimal.NewFromInt(10), IsCreate: true,
		}},
	}))
	require.NoError(t, policyRepo.Save(context.Background(), 51, []catalog.Policy{
		{StoreID: 51, ProductID: 168, WarrantyHours: 24, AutoCancelSec: 3600, MinNumRsv: 1, MaxNumRsv: 10},
	}))
	far := time.Now().Add(365 * 24 * time.Hour)
	stockRepo.Seed(stock.Bucket{
		Key: stock.BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}, Total: 20, ExpiresAt: far,
	})
	eng := stock.NewEngine(stockRepo, stock.NewKeyLockPool())
	failingRepo := &failingCreateRepo{Repo: NewMemoryRepo()}
	svc := NewService(failingRepo, priceRepo, policyRepo, eng)

	_, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID: 7,
		Lines:   []LineRequest{{Pid: pid, Qty: 3}},
		Billing: Billing{Contact: validContact()},
		Shipping: Shipping{Contact: validContact()},
	})
	require.Error(t, err)

	buckets, err := stockRepo.FetchAny(context.Background(), [][2]uint64{{51, 168}})
	require.NoError(t, err)
	b, ok := buckets[stock.BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}]
	require.True(t, ok)
	assert.EqualValues(t, 0, b.Booked, "booked stock must be returned when the order row fails to persist")
}

func TestService_RecordPayment_UpdatesLine(t *testing.T) {
	svc, _ := newTestService(t)
	pid := catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1}

	res, err := svc.CreateOrder(context.Background(), CreateRequest{
		OwnerID: 7,
		Lines:   []LineRequest{{Pid: pid, Qty: 2}},
		Billing: Billing{Contact: validContact()},
		Shipping: Shipping{Contact: validContact()},
	})
	require.NoError(t, err)

	err = svc.RecordPayment(context.Background(), res.Order.Header.OrderID, []LinePaymentUpdate{
		{Pid: pid, PaidQtyDelta: 2, PaidAt: time.Now()},
	})
	require.NoError(t, err)

	fetched, err := svc.FetchByID(context.Background(), 7, res.Order.Header.OrderID)
	require.NoError(t, err)
	assert.EqualValues(t, 2, fetched.Lines[0].PaidQty)
	assert.EqualValues(t, 0, fetched.Lines[0].UnpaidQty())
}
