// Package charge implements the charge aggregate and its pay-in state
// machine, the create-charge and refresh-charge pipelines, and status
// mapping to the client DTO. The third-party payment method is modeled as
// a proper tagged union (Go interface + type switch) rather than a flat
// struct, since the method set is closed and each variant has its own
// validity rule.
package charge

import (
	"crypto/rand"
	"encoding/hex"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/order"
)

// ID is the opaque charge identifier: a hex-rendered binary id, same
// shape as order.ID.
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
		return ID{}, apperror.ErrChargeIdDecode
	}
	copy(id[:], b)
	return id, nil
}

// State is the closed pay-in state machine:
//
//	Initialized -> ProcessorAccepted -> {ProcessorCompleted | SessionExpired | PspRefused} -> OrderAppSynced
type State string

const (
	StateInitialized        State = "Initialized"
	StateProcessorAccepted  State = "ProcessorAccepted"
	StateProcessorCompleted State = "ProcessorCompleted"
	StateSessionExpired     State = "SessionExpired"
	StatePspRefused         State = "PspRefused"
	StateOrderAppSynced     State = "OrderAppSynced"
)

// Method3party is the closed tagged union of third-party payment methods.
// Unknown is the zero-value variant and always fails validation on save.
type Method3party interface {
	isMethod3party()
	checkValid() error
}

// Stripe is the Stripe-backed variant; all three fields are required for a
// charge to be persisted.
type Stripe struct {
	Session       string
	PaymentIntent string
	TransferGroup string
}

func (Stripe) isMethod3party() {}

func (s Stripe) checkValid() error {
	if s.Session == "" || s.PaymentIntent == "" || s.TransferGroup == "" {
		return apperror.New(apperror.KindClientInput, "InvalidInput",
			"stripe method requires non-empty session, payment_intent and transfer_group")
	}
	return nil
}

// Unknown is the placeholder variant before a processor session exists, or
// for any method this engine doesn't recognize. It must never be saved.
type Unknown struct{}

func (Unknown) isMethod3party() {}
func (Unknown) checkValid() error {
	return apperror.New(apperror.KindClientInput, "InvalidInput", "unrecognized 3rd-party payment method")
}

// Line is one charge line: a (pid, qty) slice of an order line, priced in
// the seller's original currency (AmountOrig).
type Line struct {
	Pid        catalog.Pid
	Qty        int64
	AmountOrig money.Amount
	MerchantID uint64
}

// Charge is the aggregate root.
type Charge struct {
	ChargeID             ID
	OrderID              order.ID
	BuyerID               uint64
	State                 State
	Method                Method3party
	Lines                 []Line
	CreateTime            time.Time
	ProcessorAcceptedAt   *time.Time
	ProcessorCompletedAt  *time.Time
	OrderAppSyncedAt      *time.Time
}

// CheckSaveable enforces the persistence rule: Initialized is transient
// and must never be saved, and Method must be a recognized,
// fully-populated variant.
func (c Charge) CheckSaveable() error {
	if c.State == StateInitialized {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "a charge in Initialized state must not be saved")
	}
	if c.Method == nil {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "charge method is required")
	}
	return c.Method.checkValid()
}

// ClientStatus is the status mapping to client DTO.
type ClientStatus string

const (
	ClientStatusPspProcessing  ClientStatus = "PspProcessing"
	ClientStatusInternalSyncing ClientStatus = "InternalSyncing"
	ClientStatusCompleted      ClientStatus = "Completed"
	ClientStatusSessionExpired ClientStatus = "SessionExpired"
	ClientStatusPspRefused     ClientStatus = "PspRefused"
)

func (c Charge) ClientStatus() ClientStatus {
	switch c.State {
	case StateProcessorAccepted:
		return ClientStatusPspProcessing
	case StateProcessorCompleted:
		return ClientStatusInternalSyncing
	case StateOrderAppSynced:
		return ClientStatusCompleted
	case StateSessionExpired:
		return ClientStatusSessionExpired
	case StatePspRefused:
		return ClientStatusPspRefused
	default:
		return ClientStatusPspProcessing
	}
}
