package stock

import "context"

// Repo is the narrow repository contract for stock buckets. It only
// exposes whole-bucket load/save, never a generic query surface.
type Repo interface {
	// FetchEligible loads every bucket for the given (store,product) pairs
	// whose expiry has not yet passed, keyed by BucketKey.
	FetchEligible(ctx context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error)
	// FetchAny loads buckets for the given (store,product) pairs regardless
	// of expiry -- used by the return-stock path, which must accept
	// already-expired buckets (the reclamation path).
	FetchAny(ctx context.Context, pairs [][2]uint64) (map[BucketKey]*Bucket, error)
	SaveAll(ctx context.Context, buckets map[BucketKey]*Bucket) error
}
