// Package reporting implements the read-only chargeline report:
// a narrow repository interface plus its two backends, serving
// GET /store/{store_id}/order/charges.
package reporting

import (
	"time"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// ChargeLineRow is one row of the chargeline report: a single charge
// line, alongside its parent charge's state and order id.
type ChargeLineRow struct {
	OrderID    string
	ChargeID   string
	Pid        catalog.Pid
	Qty        int64
	AmountOrig money.Amount
	State      string
	CreateTime time.Time
}

// TimeRange is the report's (start_after, end_before) query window, exclusive
// at both ends, parsed from a "%Y-%m-%d-%H" wire format with implicit minutes/seconds/tz
// zero in UTC.
type TimeRange struct {
	StartAfter time.Time
	EndBefore  time.Time
}

// ParseRangeHour parses one "%Y-%m-%d-%H" boundary into a UTC time.
func ParseRangeHour(s string) (time.Time, error) {
	return time.Parse("2006-01-02-15", s)
}
