package refund

import (
	"context"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/charge"
	"github.com/iaros/commerce-core/internal/money"
)

// OrderRequestPuller fetches pending refund requests from the order
// service via RPC, for the sync_refund_req batch use-case.
type OrderRequestPuller interface {
	FetchPendingRequests(ctx context.Context) ([]SyncedRequest, error)
}

// ChargeLookup resolves the payment intent a refund must be issued
// against, for the (order, pid) a refund request targets.
type ChargeLookup interface {
	FetchPaymentIntent(ctx context.Context, orderID string, pid catalog.Pid) (string, error)
}

// CurrencyConverter converts a buyer-currency amount into the merchant's
// currency using the order's locked exchange-rate snapshot.
type CurrencyConverter interface {
	ToMerchantCurrency(ctx context.Context, orderID string, pid catalog.Pid, buyerAmount money.Amount) (money.Amount, error)
}

// Service implements the refund-resolution and sync pipelines.
type Service struct {
	Repo      Repo
	Puller    OrderRequestPuller
	Charges   ChargeLookup
	Converter CurrencyConverter
	PSP       charge.Processor
	Now       func() time.Time
}

func NewService(repo Repo, puller OrderRequestPuller, charges ChargeLookup, converter CurrencyConverter, psp charge.Processor) *Service {
	return &Service{Repo: repo, Puller: puller, Charges: charges, Converter: converter, PSP: psp, Now: time.Now}
}

// SyncRefundRequests implements sync_refund_req: pulls pending refund
// requests and merges them, returning (num_orders, num_lines).
func (s *Service) SyncRefundRequests(ctx context.Context) (int, int, error) {
	pulled, err := s.Puller.FetchPendingRequests(ctx)
	if err != nil {
		return 0, 0, apperror.Wrap(apperror.KindTransientInfra, "RpcRemoteUnavail", err)
	}
	return s.Repo.MergeSyncedRequests(ctx, pulled)
}

// ResolveRefund implements the merchant-driven resolution pipeline.
func (s *Service) ResolveRefund(ctx context.Context, req ResolutionRequest) (*Resolution, error) {
	synced, found, err := s.Repo.FetchSyncedRequest(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if !found {
		return nil, apperror.ErrRefundRequestNotFound
	}
	if req.totalQty() != synced.RequestedQty {
		return nil, apperror.New(apperror.KindDomainState, "QtyMismatch",
			"reject+approval quantity does not equal the original requested quantity")
	}

	priorApproved, err := s.Repo.FetchPriorApprovedQty(ctx, req.Key)
	if err != nil {
		return nil, err
	}
	if priorApproved+req.Approval.Qty > synced.RequestedQty {
		return nil, apperror.New(apperror.KindDomainState, "RefundBudgetExceeded",
			"approved refund quantity would exceed the requested quantity")
	}

	amountMerchant, err := s.Converter.ToMerchantCurrency(ctx, req.Key.OrderID, req.Key.Pid, req.Approval.AmountTotalBuyer)
	if err != nil {
		return nil, err
	}

	paymentIntent, err := s.Charges.FetchPaymentIntent(ctx, req.Key.OrderID, req.Key.Pid)
	if err != nil {
		return nil, err
	}

	pspResult, err := s.PSP.Refund(ctx, charge.RefundRequestPSP{
		PaymentIntent: paymentIntent,
		Amount:        req.Approval.AmountTotalBuyer.Value.String(),
		Currency:      req.Approval.AmountTotalBuyer.Label,
	})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}

	res := Resolution{
		Key: req.Key, ApprovedQty: req.Approval.Qty, AmountMerchant: amountMerchant,
		AmountBuyer: req.Approval.AmountTotalBuyer, RefundID: pspResult.RefundID, ResolvedAt: s.Now(),
	}
	if err := s.Repo.SaveResolution(ctx, res); err != nil {
		return nil, err
	}
	return &res, nil
}
