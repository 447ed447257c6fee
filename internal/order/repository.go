package order

import (
	"context"
	"time"

	"github.com/iaros/commerce-core/internal/catalog"
)

// LinePaymentUpdate is one line's payment progress, applied atomically by
// Repo.UpdateLinesPayment's update-lines-payment contract.
type LinePaymentUpdate struct {
	Pid          catalog.Pid
	PaidQtyDelta int64
	PaidAt       time.Time
}

// Repo is the narrow per-aggregate contract every order backend
// implements, in-memory or SQL.
type Repo interface {
	Create(ctx context.Context, ord *Order) error
	FetchByID(ctx context.Context, ownerID uint64, id ID) (*Order, error)
	// FetchByIDUnscoped looks up an order by id alone, with no owner check.
	// Reserved for trusted service-to-service callers (the refund
	// pipeline's currency-conversion lookup) that don't carry a buyer id.
	FetchByIDUnscoped(ctx context.Context, id ID) (*Order, error)
	UpdateLinesPayment(ctx context.Context, id ID, updates []LinePaymentUpdate) error
	// UpdateContacts edits the billing/shipping subrecords in place,
	// scoped to the order's owner.
	UpdateContacts(ctx context.Context, ownerID uint64, id ID, billing Billing, shipping Shipping) error
	// FetchReservedBefore returns orders with at least one line whose
	// ReservedUntil is before cutoff and still unpaid, for the reclamation
	// sweep.
	FetchReservedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error)
	// IncrementNumCharges bumps the order header's charge counter, used by
	// create-charge's quota check.
	IncrementNumCharges(ctx context.Context, id ID) error
	// FetchLatestByOwner returns the most recently created order for a
	// buyer, used to resolve the buyer's locked exchange rate for payout
	// math without re-deriving it outside the currency snapshot.
	FetchLatestByOwner(ctx context.Context, ownerID uint64) (*Order, error)
}
