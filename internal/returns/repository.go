package returns

import (
	"context"

	"github.com/iaros/commerce-core/internal/catalog"
)

// Repo is the narrow repository contract for order-return records.
type Repo interface {
	// FetchByOrder returns every saved return record for an order, keyed by
	// pid, for use as FilterRequests' savedReturns argument.
	FetchByOrder(ctx context.Context, orderID string) (map[catalog.Pid]OrderReturnModel, error)
	// Merge persists newly accepted returns, merging each into its existing
	// per-pid entry map rather than overwriting it.
	Merge(ctx context.Context, models []OrderReturnModel) error
	// FetchAllPending returns every accepted return record across all
	// orders, feeding the refund pipeline's sync_refund_req puller.
	FetchAllPending(ctx context.Context) ([]OrderReturnModel, error)
}
