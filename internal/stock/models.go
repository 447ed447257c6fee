// Package stock implements per-(seller,product,expiry) stock buckets
// with atomic multi-key reserve/return.
//
// Expiry rounding: buckets are keyed at second resolution everywhere except
// the stored RFC3339 payload, which keeps millisecond precision for audit
// purposes. Two expiries within the same second collide on save; reserve
// treats them as distinct only insofar as the second-rounded key differs.
package stock

import "time"

// BucketKey identifies one stock cell.
type BucketKey struct {
	StoreID   uint32
	ProductID uint64
	ExpirySec int64 // unix seconds, second precision
}

// RoundExpiry applies the documented second-precision rounding rule.
func RoundExpiry(t time.Time) int64 { return t.Unix() }

// Bucket is the stock cell value: total, booked and cancelled units.
// Invariants: 0 <= booked <= total, 0 <= cancelled <= total.
type Bucket struct {
	Key       BucketKey
	Total     int64
	Booked    int64
	Cancelled int64
	ExpiresAt time.Time // RFC3339 millisecond-precision payload
}

func (b Bucket) Remaining() int64 { return b.Total - b.Booked }

func (b Bucket) CheckInvariant() bool {
	return b.Booked >= 0 && b.Booked <= b.Total && b.Cancelled >= 0 && b.Cancelled <= b.Total
}

// OrderLine is one requested (pid,qty) pair in a reserve call.
type OrderLine struct {
	StoreID   uint32
	ProductID uint64
	AttrSeq   uint16
	Qty       int64
}

// OrderLineModelSet is the input contract to Reserve: buyer, order id, and
// the lines to reserve stock for.
type OrderLineModelSet struct {
	BuyerID uint64
	OrderID string
	Lines   []OrderLine
}

// LineError is a per-line client-recoverable reservation failure.
type LineError struct {
	StoreID   uint32
	ProductID uint64
	AttrSeq   uint16
	Code      string // "OutOfStock" | "NotEnough"
}

// ReturnTuple is one (store,product,expiry,qty) unit for Return.
type ReturnTuple struct {
	StoreID   uint32
	ProductID uint64
	ExpirySec int64
	Qty       int64
}

// AllocateFunc attempts to charge each requested quantity across one or
// more eligible buckets (FIFO earliest-expiry first), mutating `booked`
// upward per bucket in place. It returns per-line errors on failure; the
// caller discards all mutations in that case.
type AllocateFunc func(buckets map[BucketKey]*Bucket, lines []OrderLine) []LineError

// ReturnPolicyFunc decreases `booked` and increases `cancelled` for a
// caller-supplied return tuple. Must tolerate zero-delta calls as a no-op.
// (The reclamation sweep returns stock through Engine.ReturnAggregate, not
// through a ReturnPolicyFunc.)
type ReturnPolicyFunc func(bucket *Bucket, qty int64)

// DefaultAllocate is the FIFO-earliest-expiry allocator. It is exposed as
// the default so callers don't have to reimplement FIFO semantics, but
// Reserve accepts any AllocateFunc.
func DefaultAllocate(buckets map[BucketKey]*Bucket, lines []OrderLine) []LineError {
	var errs []LineError
	now := time.Now().Unix()

	byProduct := make(map[[2]uint64][]*Bucket)
	for k := range buckets {
		b := buckets[k]
		key := [2]uint64{uint64(b.Key.StoreID), b.Key.ProductID}
		byProduct[key] = append(byProduct[key], b)
	}
	for key, list := range byProduct {
		list = sortByExpiry(list)
		byProduct[key] = list
	}

	for _, line := range lines {
		key := [2]uint64{uint64(line.StoreID), line.ProductID}
		remaining := line.Qty
		for _, b := range byProduct[key] {
			if remaining == 0 {
				break
			}
			if b.Key.ExpirySec < now {
				continue // expired buckets are not eligible for new reservations
			}
			avail := b.Remaining()
			if avail <= 0 {
				continue
			}
			take := avail
			if take > remaining {
				take = remaining
			}
			b.Booked += take
			remaining -= take
		}
		if remaining > 0 {
			code := "NotEnough"
			if remaining == line.Qty {
				code = "OutOfStock"
			}
			errs = append(errs, LineError{
				StoreID: line.StoreID, ProductID: line.ProductID, AttrSeq: line.AttrSeq, Code: code,
			})
		}
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

func sortByExpiry(list []*Bucket) []*Bucket {
	// insertion sort: reservation line counts are small, no need for sort.Slice overhead
	for i := 1; i < len(list); i++ {
		for j := i; j > 0 && list[j].Key.ExpirySec < list[j-1].Key.ExpirySec; j-- {
			list[j], list[j-1] = list[j-1], list[j]
		}
	}
	return list
}
