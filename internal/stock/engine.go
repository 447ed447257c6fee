package stock

import (
	"context"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
)

// Engine implements the Reserve/Return contract.
type Engine struct {
	repo  Repo
	locks *KeyLockPool
}

func NewEngine(repo Repo, locks *KeyLockPool) *Engine {
	return &Engine{repo: repo, locks: locks}
}

// ReserveResult distinguishes the three outcomes of a reservation attempt:
// ok, client-recoverable per-line errors, or a fatal system error.
type ReserveResult struct {
	LineErrors []LineError
}

// Reserve acquires the key-set lock, loads eligible buckets, runs the
// caller-supplied allocator, and persists on success. On allocator failure
// all mutations are discarded and the per-line errors are returned as a
// client-recoverable result (not a Go error): Ok(()) | Err(Ok(errs)) |
// Err(Err(sysErr)).
func (e *Engine) Reserve(ctx context.Context, set OrderLineModelSet, allocate AllocateFunc) (*ReserveResult, error) {
	if allocate == nil {
		allocate = DefaultAllocate
	}
	release := e.locks.AcquireAll(PairsFromLines(set.Lines))
	defer release()

	buckets, err := e.repo.FetchEligible(ctx, PairsFromLines(set.Lines))
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}

	// Work on a private copy so a failed allocation never mutates what's
	// visible to FetchAny callers concurrently (the lock already prevents
	// interleaving, but this also keeps the allocator pure-ish and testable
	// without a live repo).
	working := cloneBuckets(buckets)

	if lineErrs := allocate(working, set.Lines); len(lineErrs) > 0 {
		return &ReserveResult{LineErrors: lineErrs}, nil
	}

	if err := e.repo.SaveAll(ctx, working); err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return &ReserveResult{}, nil
}

// Return re-acquires the lock and applies policy to every matching bucket,
// including already-expired ones (the reclamation path depends on this).
func (e *Engine) Return(ctx context.Context, tuples []ReturnTuple, policy ReturnPolicyFunc) error {
	if policy == nil {
		policy = DefaultReturnPolicy
	}
	release := e.locks.AcquireAll(PairsFromTuples(tuples))
	defer release()

	buckets, err := e.repo.FetchAny(ctx, PairsFromTuples(tuples))
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}

	for _, t := range tuples {
		key := BucketKey{StoreID: t.StoreID, ProductID: t.ProductID, ExpirySec: t.ExpirySec}
		b, ok := buckets[key]
		if !ok {
			// Nothing to return against; tolerate for idempotence (a
			// zero-delta call is a no-op, not an error).
			continue
		}
		policy(b, t.Qty)
	}

	if err := e.repo.SaveAll(ctx, buckets); err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

// DefaultReturnPolicy decreases booked and increases cancelled by qty,
// clamped so the bucket invariant (0<=booked<=total, 0<=cancelled<=total)
// is never violated by a stale or duplicate call.
func DefaultReturnPolicy(b *Bucket, qty int64) {
	if qty <= 0 {
		return
	}
	if qty > b.Booked {
		qty = b.Booked
	}
	b.Booked -= qty
	b.Cancelled += qty
	if b.Cancelled > b.Total {
		b.Cancelled = b.Total
	}
}

// AggregateReturnTuple is a (store,product,qty) return that is not tied to
// any single bucket's expiry. Booked quantity is fungible within a
// (store,product) pair, so reclaiming it doesn't require knowing which
// bucket originally serviced the reservation -- callers only know
// reserved_qty-paid_qty, not which bucket FIFO allocation touched.
type AggregateReturnTuple struct {
	StoreID   uint32
	ProductID uint64
	Qty       int64
}

// ReturnAggregate spreads each qty across that product's buckets,
// largest-booked-first, decrementing booked and incrementing cancelled
// until qty is exhausted or booked stock runs out. Used by the
// reclamation sweep, which only knows aggregate unpaid quantity.
func (e *Engine) ReturnAggregate(ctx context.Context, tuples []AggregateReturnTuple) error {
	pairs := make([][2]uint64, 0, len(tuples))
	for _, t := range tuples {
		pairs = append(pairs, [2]uint64{uint64(t.StoreID), t.ProductID})
	}
	release := e.locks.AcquireAll(pairs)
	defer release()

	buckets, err := e.repo.FetchAny(ctx, pairs)
	if err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}

	byProduct := make(map[[2]uint64][]*Bucket)
	for k, b := range buckets {
		key := [2]uint64{uint64(k.StoreID), k.ProductID}
		byProduct[key] = append(byProduct[key], b)
	}

	for _, t := range tuples {
		key := [2]uint64{uint64(t.StoreID), t.ProductID}
		remaining := t.Qty
		list := byProduct[key]
		for i := 1; i < len(list); i++ {
			for j := i; j > 0 && list[j].Booked > list[j-1].Booked; j-- {
				list[j], list[j-1] = list[j-1], list[j]
			}
		}
		for _, b := range list {
			if remaining <= 0 {
				break
			}
			take := b.Booked
			if take > remaining {
				take = remaining
			}
			if take <= 0 {
				continue
			}
			b.Booked -= take
			b.Cancelled += take
			if b.Cancelled > b.Total {
				b.Cancelled = b.Total
			}
			remaining -= take
		}
	}

	if err := e.repo.SaveAll(ctx, buckets); err != nil {
		return apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return nil
}

// LevelAdjustment is one (store,product,expiry,qty_add) restock entry from
// the edit-stock-level route.
type LevelAdjustment struct {
	StoreID   uint32
	ProductID uint64
	ExpiresAt time.Time
	QtyAdd    int64
}

// LevelPresentation is the resulting (store,product,total,booked) view
// edit_stock_level replies with, one row per touched bucket.
type LevelPresentation struct {
	StoreID   uint32
	ProductID uint64
	Total     int64
	Booked    int64
}

// AdjustLevel increases (or, for a negative qty_add, decreases) a bucket's
// total, creating the bucket if this is the first stock seeded for that
// (store,product,expiry). Unlike Reserve/Return this never touches booked
// or cancelled directly -- it is the restock side, not the reservation or
// return side.
func (e *Engine) AdjustLevel(ctx context.Context, adjustments []LevelAdjustment) ([]LevelPresentation, error) {
	pairs := make([][2]uint64, 0, len(adjustments))
	for _, a := range adjustments {
		pairs = append(pairs, [2]uint64{uint64(a.StoreID), a.ProductID})
	}
	release := e.locks.AcquireAll(pairs)
	defer release()

	buckets, err := e.repo.FetchAny(ctx, pairs)
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}

	out := make([]LevelPresentation, 0, len(adjustments))
	for _, a := range adjustments {
		key := BucketKey{StoreID: a.StoreID, ProductID: a.ProductID, ExpirySec: RoundExpiry(a.ExpiresAt)}
		b, ok := buckets[key]
		if !ok {
			b = &Bucket{Key: key, ExpiresAt: a.ExpiresAt}
			buckets[key] = b
		}
		b.Total += a.QtyAdd
		if b.Total < 0 {
			b.Total = 0
		}
		out = append(out, LevelPresentation{StoreID: a.StoreID, ProductID: a.ProductID, Total: b.Total, Booked: b.Booked})
	}

	if err := e.repo.SaveAll(ctx, buckets); err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "DataStore", err)
	}
	return out, nil
}

func cloneBuckets(in map[BucketKey]*Bucket) map[BucketKey]*Bucket {
	out := make(map[BucketKey]*Bucket, len(in))
	for k, v := range in {
		cp := *v
		out[k] = &cp
	}
	return out
}
