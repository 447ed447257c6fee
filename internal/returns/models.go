// Package returns implements the order-return engine. Return requests are
// filtered against saved order lines (warranty window, quantity budget)
// and against prior returns (duplicate-time guard), and accepted requests
// are stored in a rounded-time-keyed per-pid map, following the same
// validate-then-accumulate-per-line-errors pipeline shape order creation
// uses.
package returns

import (
	"time"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// DefaultRoundWindow is the duplicate-return dedup window: a rounded
// request time floors the real timestamp to the nearest N seconds so two
// requests in the same window collide.
const DefaultRoundWindow = 60 * time.Second

// RoundTime floors t to the nearest window boundary, in unix seconds.
func RoundTime(t time.Time, window time.Duration) int64 {
	sec := int64(window.Seconds())
	if sec <= 0 {
		sec = 1
	}
	return (t.Unix() / sec) * sec
}

// SavedLine is the subset of an order line this engine needs to validate a
// return request against: its warranty deadline and how much was actually
// paid (the ceiling that bounds total returned quantity).
type SavedLine struct {
	Pid           catalog.Pid
	WarrantyUntil time.Time
	PaidQty       int64
}

// ReturnEntry is one accepted return within an order-return record's
// rounded-time-keyed map.
type ReturnEntry struct {
	Qty           int64
	RefundPerUnit money.Amount
	RefundTotal   money.Amount
}

// OrderReturnModel is keyed by (order_id, pid); Entries maps a rounded
// request time to the accepted return recorded there.
type OrderReturnModel struct {
	OrderID string
	Pid     catalog.Pid
	Entries map[int64]ReturnEntry
}

// TotalReturnedQty sums quantity across every accepted return for this pid,
// the quantity budget check in FilterRequests uses this.
func (m OrderReturnModel) TotalReturnedQty() int64 {
	var sum int64
	for _, e := range m.Entries {
		sum += e.Qty
	}
	return sum
}

// Request is one inbound return request DTO.
type Request struct {
	OrderID       string
	Pid           catalog.Pid
	Qty           int64
	RequestTime   time.Time
	RefundPerUnit money.Amount
}

// LineError is a per-request rejection reason:
// NotExist | WarrantyExpired | QtyLimitExceed | DuplicateReturn.
type LineError struct {
	Pid  catalog.Pid
	Code string
}
