// Package merchant implements merchant onboarding, the merchant profile
// and its 3rd-party (PSP) onboarding profile, and the
// onboard/refresh-status pipelines, using an aggregate-plus-narrow-
// repository shape and time-bounded staff-window authorization checks.
package merchant

import (
	"time"

	"github.com/shopspring/decimal"
)

// StaffWindow is one staff member's validity window on a store's staff
// list; onboarding requires the acting staff_id to be present and current.
type StaffWindow struct {
	StaffID   uint64
	ValidFrom time.Time
	ValidTo   time.Time
}

func (w StaffWindow) covers(staffID uint64, at time.Time) bool {
	if w.StaffID != staffID {
		return false
	}
	if at.Before(w.ValidFrom) {
		return false
	}
	return w.ValidTo.IsZero() || !at.After(w.ValidTo)
}

// StoreProfile is the RPC-fetched view of a store used to authorize
// onboarding and to seed the merchant's operating currency for payout
// math.
type StoreProfile struct {
	StoreID       uint32
	Staff         []StaffWindow
	CurrencyLabel string
	RateToBase    decimal.Decimal
}

func (p StoreProfile) staffIDs() []uint64 {
	ids := make([]uint64, len(p.Staff))
	for i, w := range p.Staff {
		ids[i] = w.StaffID
	}
	return ids
}

func (p StoreProfile) HasActiveStaff(staffID uint64, at time.Time) bool {
	for _, w := range p.Staff {
		if w.covers(staffID, at) {
			return true
		}
	}
	return false
}

// ThirdPartyProfile is the PSP-assigned onboarding profile and capability
// flags, refreshed independently of the merchant profile.
type ThirdPartyProfile struct {
	AccountID       string
	PayoutsEnabled  bool
	TransfersActive bool
	ChargesEnabled  bool
}

// Profile is the merchant aggregate root. StaffIDs/CurrencyLabel/RateToBase
// are a snapshot of the store's profile taken at onboarding time, mirroring
// the order-currency-snapshot pattern: a merchant's operating currency is
// treated as stable for the lifetime of its onboarding record.
type Profile struct {
	MerchantID    uint64
	StoreID       uint32
	CreateTime    time.Time
	ThirdParty    ThirdPartyProfile
	StaffIDs      []uint64
	CurrencyLabel string
	RateToBase    decimal.Decimal
}
