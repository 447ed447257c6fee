// Package payout implements the create-payout pipeline that transfers
// a merchant's completed-charge-line proceeds through the payment
// processor, enforcing onboarding capability flags and per-charge
// transfer-group consistency across payouts.
//
// Grounded on order_service/src/models/order.go for the aggregate shape
// and on its repository-interface-plus-two-backends convention.
package payout

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/shopspring/decimal"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/charge"
)

// ID is the opaque payout identifier.
type ID [12]byte

func NewID() ID {
	var id ID
	_, _ = rand.Read(id[:])
	return id
}

func (id ID) String() string { return hex.EncodeToString(id[:]) }

func DecodeID(s string) (ID, error) {
	var id ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return ID{}, apperror.New(apperror.KindClientInput, "PayoutIdDecode", "malformed payout id")
	}
	copy(id[:], b)
	return id, nil
}

// Payout is one transfer of completed-charge-line proceeds to a merchant.
type Payout struct {
	PayoutID      ID
	ChargeID      charge.ID
	MerchantID    uint64
	TransferGroup string
	AmountLabel   string // merchant currency
	AmountValue   decimal.Decimal
	TransferID    string
	CreateTime    time.Time
}
