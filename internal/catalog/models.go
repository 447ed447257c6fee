// Package catalog models product identity, the per-seller price-model-set,
// and the per-(store,product) policy-model-set. Catalog editing happens
// upstream; this package only models the snapshot the order pipeline reads.
package catalog

import (
	"time"

	"github.com/shopspring/decimal"
)

// Pid is the product identity triple: seller, product, and the attribute
// variant selected for that line.
type Pid struct {
	StoreID    uint32
	ProductID  uint64
	AttrSetSeq uint16
}

// AttrCharge is one extra line-item attribute charge.
type AttrCharge struct {
	Label      string
	Amount     decimal.Decimal
	LastUpdate time.Time
}

// PriceModel is one priced variant entry in a seller's model-set.
type PriceModel struct {
	Pid        Pid
	Currency   string
	Price      decimal.Decimal
	StartAfter time.Time
	EndBefore  time.Time
	Extra      []AttrCharge
	IsCreate   bool
}

// Policy is the per-(store,product) policy entry.
type Policy struct {
	StoreID       uint32
	ProductID     uint64
	WarrantyHours int64
	AutoCancelSec int64
	MinNumRsv     int32
	MaxNumRsv     int32
}

// SaveSet partitions incoming price models into updating/creating. A pid
// present in both is rejected.
type SaveSet struct {
	Updating []PriceModel
	Creating []PriceModel
}

// CheckDisjoint enforces the "no pid in both updating and creating" rule.
func (s SaveSet) CheckDisjoint() error {
	seen := make(map[Pid]struct{}, len(s.Updating))
	for _, m := range s.Updating {
		seen[m.Pid] = struct{}{}
	}
	for _, m := range s.Creating {
		if _, ok := seen[m.Pid]; ok {
			return errOverlap
		}
	}
	return nil
}
