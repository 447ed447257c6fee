package charge

import (
	"context"

	"github.com/iaros/commerce-core/internal/order"
)

// SessionRequest is what create-charge submits to the processor.
type SessionRequest struct {
	OrderID order.ID
	BuyerID uint64
	Lines   []Line
}

// SessionResult is the processor's response to session creation; it
// becomes the charge's Stripe method on acceptance.
type SessionResult struct {
	Session       string
	PaymentIntent string
	TransferGroup string
}

// RefreshResult is what polling a processor session returns.
type RefreshResult struct {
	Completed bool
	Expired   bool
	Refused   bool
}

// TransferRequest is what create-payout submits for a merchant transfer.
type TransferRequest struct {
	TransferGroup string
	MerchantID    uint64
	Amount        string // decimal string, merchant currency
	Currency      string
}

type TransferResult struct {
	TransferID string
}

// RefundRequestPSP is what refund resolution submits to reverse funds.
type RefundRequestPSP struct {
	PaymentIntent string
	Amount        string
	Currency      string
}

type RefundResultPSP struct {
	RefundID string
}

// Processor is the abstract payment-service-provider boundary. Every
// method this engine needs from a PSP lives here so concrete adapters
// (stripeproc) are swappable and test doubles never touch real network
// calls.
type Processor interface {
	CreateSession(ctx context.Context, req SessionRequest) (SessionResult, error)
	RefreshSession(ctx context.Context, method Stripe) (RefreshResult, error)
	Transfer(ctx context.Context, req TransferRequest) (TransferResult, error)
	Refund(ctx context.Context, req RefundRequestPSP) (RefundResultPSP, error)
}
