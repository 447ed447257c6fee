// Package stripeproc is the concrete charge.Processor adapter backed by
// Stripe Checkout Sessions, Payment Intents, Transfers and Refunds.
//
// Grounded on CypheraCorp-cyphera-monorepo's
// libs/go/client/payment_sync/stripe/stripe.go for the stripe-go/v82
// client construction (stripe.NewClient(apiKey, nil)) and its
// s.client.V1<Resource>.<Method>(ctx, ...) call shape.
package stripeproc

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"github.com/stripe/stripe-go/v82"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/charge"
)

// Adapter implements charge.Processor. Every outbound Stripe call is run
// through a gobreaker circuit breaker so a Stripe outage degrades to fast
// failures (TransientInfra) instead of piling up blocked goroutines.
type Adapter struct {
	client  *stripe.Client
	breaker *gobreaker.CircuitBreaker
	logger  *zap.Logger
}

func New(apiKey string, logger *zap.Logger) *Adapter {
	breaker := gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        "stripe-psp",
		MaxRequests: 5,
		Interval:    time.Minute,
		Timeout:     30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.Requests >= 10 && float64(counts.TotalFailures)/float64(counts.Requests) >= 0.5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("circuit breaker state change", zap.String("breaker", name), zap.String("from", from.String()), zap.String("to", to.String()))
			}
		},
	})
	return &Adapter{client: stripe.NewClient(apiKey, nil), breaker: breaker, logger: logger}
}

func (a *Adapter) CreateSession(ctx context.Context, req charge.SessionRequest) (charge.SessionResult, error) {
	transferGroup := fmt.Sprintf("order_%s", req.OrderID.String())
	lineItems := make([]*stripe.CheckoutSessionLineItemParams, 0, len(req.Lines))
	for _, l := range req.Lines {
		unitAmount := l.AmountOrig.Value.Shift(2).IntPart() // minor units, per Stripe's integer-cents convention
		lineItems = append(lineItems, &stripe.CheckoutSessionLineItemParams{
			Quantity: stripe.Int64(l.Qty),
			PriceData: &stripe.CheckoutSessionLineItemPriceDataParams{
				Currency:   stripe.String(l.AmountOrig.Label),
				UnitAmount: stripe.Int64(unitAmount),
				ProductData: &stripe.CheckoutSessionLineItemPriceDataProductDataParams{
					Name: stripe.String(fmt.Sprintf("store-%d-product-%d", l.Pid.StoreID, l.Pid.ProductID)),
				},
			},
		})
	}
	params := &stripe.CheckoutSessionCreateParams{
		Mode:          stripe.String(string(stripe.CheckoutSessionModePayment)),
		LineItems:     lineItems,
		PaymentIntentData: &stripe.CheckoutSessionPaymentIntentDataParams{
			TransferGroup: stripe.String(transferGroup),
		},
	}

	res, err := run(a, func() (*stripe.CheckoutSession, error) {
		return a.client.V1CheckoutSessions.Create(ctx, params)
	})
	if err != nil {
		return charge.SessionResult{}, err
	}
	paymentIntentID := ""
	if res.PaymentIntent != nil {
		paymentIntentID = res.PaymentIntent.ID
	}
	return charge.SessionResult{Session: res.ID, PaymentIntent: paymentIntentID, TransferGroup: transferGroup}, nil
}

func (a *Adapter) RefreshSession(ctx context.Context, method charge.Stripe) (charge.RefreshResult, error) {
	res, err := run(a, func() (*stripe.CheckoutSession, error) {
		return a.client.V1CheckoutSessions.Retrieve(ctx, method.Session, nil)
	})
	if err != nil {
		return charge.RefreshResult{}, err
	}
	switch res.Status {
	case stripe.CheckoutSessionStatusComplete:
		return charge.RefreshResult{Completed: true}, nil
	case stripe.CheckoutSessionStatusExpired:
		return charge.RefreshResult{Expired: true}, nil
	default:
		if res.PaymentStatus == stripe.CheckoutSessionPaymentStatusUnpaid && res.PaymentIntent != nil &&
			res.PaymentIntent.Status == stripe.PaymentIntentStatusCanceled {
			return charge.RefreshResult{Refused: true}, nil
		}
		return charge.RefreshResult{}, nil
	}
}

func (a *Adapter) Transfer(ctx context.Context, req charge.TransferRequest) (charge.TransferResult, error) {
	amount, err := decimalToMinorUnits(req.Amount)
	if err != nil {
		return charge.TransferResult{}, apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	params := &stripe.TransferCreateParams{
		Amount:        stripe.Int64(amount),
		Currency:      stripe.String(req.Currency),
		TransferGroup: stripe.String(req.TransferGroup),
	}
	res, err := run(a, func() (*stripe.Transfer, error) {
		return a.client.V1Transfers.Create(ctx, params)
	})
	if err != nil {
		return charge.TransferResult{}, err
	}
	return charge.TransferResult{TransferID: res.ID}, nil
}

func (a *Adapter) Refund(ctx context.Context, req charge.RefundRequestPSP) (charge.RefundResultPSP, error) {
	amount, err := decimalToMinorUnits(req.Amount)
	if err != nil {
		return charge.RefundResultPSP{}, apperror.Wrap(apperror.KindClientInput, "InvalidInput", err)
	}
	params := &stripe.RefundCreateParams{
		PaymentIntent: stripe.String(req.PaymentIntent),
		Amount:        stripe.Int64(amount),
	}
	res, err := run(a, func() (*stripe.Refund, error) {
		return a.client.V1Refunds.Create(ctx, params)
	})
	if err != nil {
		return charge.RefundResultPSP{}, err
	}
	return charge.RefundResultPSP{RefundID: res.ID}, nil
}

// run executes a Stripe call through the circuit breaker, mapping any
// failure (including an open breaker) onto the TransientInfra error kind.
func run[T any](a *Adapter, fn func() (T, error)) (T, error) {
	res, err := a.breaker.Execute(func() (interface{}, error) {
		return fn()
	})
	if err != nil {
		var zero T
		return zero, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}
	return res.(T), nil
}

// decimalToMinorUnits converts a decimal amount string ("12.34") to an
// integer count of minor currency units (1234), Stripe's wire convention.
func decimalToMinorUnits(amount string) (int64, error) {
	v, err := decimal.NewFromString(amount)
	if err != nil {
		return 0, err
	}
	return v.Shift(2).IntPart(), nil
}
