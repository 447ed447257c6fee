package refund

import "context"

// Repo is the narrow whole-aggregate contract for refund requests and
// their resolutions.
type Repo interface {
	// MergeSyncedRequests upserts pulled refund requests, keyed by
	// (order_id, pid, time_issued); returns the number of distinct orders
	// and the number of lines merged.
	MergeSyncedRequests(ctx context.Context, reqs []SyncedRequest) (numOrders, numLines int, err error)
	FetchSyncedRequest(ctx context.Context, key RequestKey) (SyncedRequest, bool, error)
	FetchPriorApprovedQty(ctx context.Context, key RequestKey) (int64, error)
	SaveResolution(ctx context.Context, res Resolution) error
}
