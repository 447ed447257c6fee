// Package refund implements merchant-driven refund resolution against a
// synced refund request, and the batch puller that keeps synced refund
// requests current. It follows the same shape as internal/returns:
// validate a per-line request against a saved record, enforce a budget,
// persist a resolution.
package refund

import (
	"time"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// RequestKey identifies a synced refund request: (order, pid, time the
// request was issued).
type RequestKey struct {
	OrderID    string
	Pid        catalog.Pid
	TimeIssued time.Time
}

// SyncedRequest is a refund request pulled from the order service,
// carrying the quantity originally requested for this (order, pid,
// time_issued) triple.
type SyncedRequest struct {
	Key             RequestKey
	RequestedQty    int64
}

// RejectLine is one reject entry the merchant submits: a reason and the
// quantity rejected under that reason.
type RejectLine struct {
	Reason string
	Qty    int64
}

// Approval is the merchant's approved portion of a resolution.
type Approval struct {
	Qty              int64
	AmountTotalBuyer money.Amount
}

// ResolutionRequest is one line of the merchant-submitted resolution.
type ResolutionRequest struct {
	Key      RequestKey
	Reject   []RejectLine
	Approval Approval
}

func (r ResolutionRequest) totalQty() int64 {
	total := r.Approval.Qty
	for _, rej := range r.Reject {
		total += rej.Qty
	}
	return total
}

// Resolution is the persisted outcome of resolving a refund request: the
// approved amount in both the merchant's and buyer's currency, and the
// PSP refund id.
type Resolution struct {
	Key                RequestKey
	ApprovedQty        int64
	AmountMerchant     money.Amount
	AmountBuyer        money.Amount
	RefundID           string
	ResolvedAt         time.Time
}
