package charge

import (
	"context"
	"time"

	"github.com/iaros/commerce-core/internal/order"
)

// Repo is the narrow repository contract for charges.
type Repo interface {
	// Create persists a newly accepted charge (State == ProcessorAccepted).
	Create(ctx context.Context, c *Charge) error
	// Update persists a state transition on an existing charge.
	Update(ctx context.Context, c *Charge) error
	FetchByID(ctx context.Context, id ID) (*Charge, error)
	// FetchCompletedLines returns every line belonging to a charge that has
	// reached OrderAppSynced for this order, used to compute chargeable_qty.
	FetchCompletedLines(ctx context.Context, orderID order.ID) ([]Line, error)
	// FetchLastChargeTime returns the create time of the most recent charge
	// for this order, for the minimum inter-charge interval check.
	FetchLastChargeTime(ctx context.Context, orderID order.ID) (t time.Time, found bool, err error)
	// FetchByOrderID returns every charge recorded against an order,
	// regardless of state, used by the refund pipeline's payment-intent
	// lookup.
	FetchByOrderID(ctx context.Context, orderID order.ID) ([]Charge, error)
}
