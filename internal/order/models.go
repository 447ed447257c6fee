// Package order implements the order aggregate (header, lines, billing
// and shipping) plus the create-order pipeline, the update-lines-payment
// contract, and the fetch-by-reserved-time sweep.
package order

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
)

// ID is the opaque order identifier, a short byte string with a hex wire
// form -- binary columns are rendered as lowercase hex on the wire.
type ID [12]byte

func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

func (id ID) String() string { return hex.EncodeToString(id[:]) }

// DecodeID parses the hex wire form; malformed input surfaces as a
// ChargeIdDecode-kind client error, the shared error class for order/charge
// id wire decoding.
func DecodeID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return ID{}, apperror.Wrap(apperror.KindClientInput, "ChargeIdDecode", errBadID)
	}
	copy(id[:], b)
	return id, nil
}

var errBadID = &idErr{"malformed order id"}

type idErr struct{ msg string }

func (e *idErr) Error() string { return e.msg }

// Line is one order line. Invariants:
//   0 <= paid_qty <= reserved_qty
//   paid_last_update present iff paid_qty > 0
//   create_time <= reserved_until <= warranty_until
type Line struct {
	Pid                   catalog.Pid
	PriceUnit             money.Amount
	ReservedQty           int64
	PaidQty               int64
	PaidLastUpdate        *time.Time
	ReservedUntil         time.Time
	WarrantyUntil         time.Time
	AttributePriceSnapshot []catalog.AttrCharge
}

func (l Line) CheckInvariant(createTime time.Time) error {
	if l.PaidQty < 0 || l.PaidQty > l.ReservedQty {
		return apperror.New(apperror.KindDataCorruption, "DataCorruption", "paid_qty out of range")
	}
	if (l.PaidQty > 0) != (l.PaidLastUpdate != nil) {
		return apperror.New(apperror.KindDataCorruption, "DataCorruption", "paid_last_update inconsistent with paid_qty")
	}
	if createTime.After(l.ReservedUntil) || l.ReservedUntil.After(l.WarrantyUntil) {
		return apperror.New(apperror.KindDataCorruption, "DataCorruption", "create_time <= reserved_until <= warranty_until violated")
	}
	return nil
}

// UnpaidQty is reserved-but-not-yet-paid quantity on this line.
func (l Line) UnpaidQty() int64 { return l.ReservedQty - l.PaidQty }

// Contact is the shared shape for billing/shipping contact info.
type Contact struct {
	FirstName string
	LastName  string
	Emails    []string
	Phones    []Phone
}

type Phone struct {
	Nation int32
	Number string
}

// PhyAddr is an optional physical address.
type PhyAddr struct {
	Country string
	Street  string
	City    string
	Region  string
	Postal  string
}

type Billing struct {
	Contact Contact
	Address *PhyAddr
}

type Shipping struct {
	Contact Contact
	Address *PhyAddr
}

// Header is the order top-level metadata.
type Header struct {
	OrderID          ID
	OwnerID          uint64
	CreateTime       time.Time
	Billing          Billing
	Shipping         Shipping
	CurrencySnapshot money.Snapshot
	NumCharges       int32
}

// Order is the full aggregate: header + lines. Never deleted.
type Order struct {
	Header Header
	Lines  []Line
}

// SellerOf returns the seller id embedded in a pid's StoreID, the unit used
// throughout this package to key currency-snapshot lookups.
func SellerOf(pid catalog.Pid) uint64 { return uint64(pid.StoreID) }
