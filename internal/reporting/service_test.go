package reporting

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

func row(storeID uint32, createTime time.Time) ChargeLineRow {
	v, _ := decimal.NewFromString("10.00")
	return ChargeLineRow{
		OrderID: "order-1", ChargeID: "charge-1", Pid: catalog.Pid{StoreID: storeID, ProductID: 1},
		Qty: 1, AmountOrig: money.NewAmount("USD", v), State: "OrderAppSynced", CreateTime: createTime,
	}
}

func TestFetchChargeLines_FiltersByStoreAndWindow(t *testing.T) {
	inWindow := time.Date(2023, 8, 15, 12, 0, 0, 0, time.UTC)
	outOfWindow := time.Date(2023, 7, 1, 0, 0, 0, 0, time.UTC)
	otherStore := row(99, inWindow)

	repo := NewMemoryRepo(row(51, inWindow), otherStore, row(51, outOfWindow))
	svc := NewService(repo)

	rows, err := svc.FetchChargeLines(context.Background(), 51, "2023-08-01-00", "2023-09-01-00")
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, uint32(51), rows[0].Pid.StoreID)
}

func TestFetchChargeLines_RejectsInvertedWindow(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.FetchChargeLines(context.Background(), 51, "2023-09-01-00", "2023-08-01-00")
	assert.Error(t, err)
}

func TestFetchChargeLines_RejectsMalformedTimestamp(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	_, err := svc.FetchChargeLines(context.Background(), 51, "not-a-date", "2023-09-01-00")
	assert.Error(t, err)
}
