package returns

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

func pid() catalog.Pid { return catalog.Pid{StoreID: 51, ProductID: 168, AttrSetSeq: 1} }

func savedLine(paidQty int64, warrantyUntil time.Time) map[catalog.Pid]SavedLine {
	return map[catalog.Pid]SavedLine{pid(): {Pid: pid(), WarrantyUntil: warrantyUntil, PaidQty: paidQty}}
}

func refund(v int64) money.Amount { return money.NewAmount("USD", decimal.NewFromInt(v)) }

func TestFilterRequests_NotExist(t *testing.T) {
	now := time.Now()
	other := catalog.Pid{StoreID: 99, ProductID: 1, AttrSetSeq: 1}
	_, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: other, Qty: 1, RequestTime: now, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(time.Hour)), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "NotExist", errs[0].Code)
}

func TestFilterRequests_WarrantyExpired(t *testing.T) {
	now := time.Now()
	_, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: pid(), Qty: 1, RequestTime: now, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(-time.Minute)), nil)
	require.Len(t, errs, 1)
	assert.Equal(t, "WarrantyExpired", errs[0].Code)
}

func TestFilterRequests_QtyLimitExceed(t *testing.T) {
	now := time.Now()
	saved := map[catalog.Pid]OrderReturnModel{
		pid(): {OrderID: "order-1", Pid: pid(), Entries: map[int64]ReturnEntry{
			RoundTime(now.Add(-time.Hour), DefaultRoundWindow): {Qty: 8},
		}},
	}
	_, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: pid(), Qty: 3, RequestTime: now, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(time.Hour)), saved)
	require.Len(t, errs, 1)
	assert.Equal(t, "QtyLimitExceed", errs[0].Code)
}

func TestFilterRequests_DuplicateReturn_ExactBoundary(t *testing.T) {
	now := time.Now()
	rounded := RoundTime(now, DefaultRoundWindow)
	boundaryTime := time.Unix(rounded, 0)
	saved := map[catalog.Pid]OrderReturnModel{
		pid(): {OrderID: "order-1", Pid: pid(), Entries: map[int64]ReturnEntry{rounded: {Qty: 1}}},
	}
	_, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: pid(), Qty: 1, RequestTime: boundaryTime, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(time.Hour)), saved)
	require.Len(t, errs, 1)
	assert.Equal(t, "DuplicateReturn", errs[0].Code)
}

func TestFilterRequests_OffByOneSecond_NotDuplicate(t *testing.T) {
	now := time.Now()
	rounded := RoundTime(now, DefaultRoundWindow)
	nextWindow := time.Unix(rounded+int64(DefaultRoundWindow.Seconds()), 0)
	saved := map[catalog.Pid]OrderReturnModel{
		pid(): {OrderID: "order-1", Pid: pid(), Entries: map[int64]ReturnEntry{rounded: {Qty: 1}}},
	}
	out, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: pid(), Qty: 1, RequestTime: nextWindow, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(time.Hour)), saved)
	require.Empty(t, errs)
	require.Len(t, out, 1)
	assert.EqualValues(t, 1, out[0].TotalReturnedQty())
}

func TestFilterRequests_Success_ComputesRefundTotal(t *testing.T) {
	now := time.Now()
	out, errs := FilterRequests(now, DefaultRoundWindow, "order-1",
		[]Request{{Pid: pid(), Qty: 3, RequestTime: now, RefundPerUnit: refund(5)}},
		savedLine(10, now.Add(time.Hour)), nil)
	require.Empty(t, errs)
	require.Len(t, out, 1)
	entry := out[0].Entries[RoundTime(now, DefaultRoundWindow)]
	assert.True(t, entry.RefundTotal.Value.Equal(decimal.NewFromInt(15)))
}
