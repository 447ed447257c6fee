package order

import (
	"context"
	"fmt"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/money"
	"github.com/iaros/commerce-core/internal/stock"
)

// LineRequest is one requested (pid, qty) pair on order creation.
type LineRequest struct {
	Pid catalog.Pid
	Qty int64
}

// CreateRequest is the full create-order input: lines plus billing/shipping
// contacts and the currency snapshot locked in by the caller for the
// lifetime of the order.
type CreateRequest struct {
	OwnerID          uint64
	Lines            []LineRequest
	Billing          Billing
	Shipping         Shipping
	CurrencySnapshot money.Snapshot
}

// Service implements the create-order pipeline (consulting catalog pricing
// and stock), the update-lines-payment contract, and the reclamation sweep
// query, wiring the repository and downstream-service calls into one
// service type.
type Service struct {
	Repo        Repo
	Prices      catalog.PriceRepo
	Policies    catalog.PolicyRepo
	StockEngine *stock.Engine
	Now         func() time.Time
}

func NewService(repo Repo, prices catalog.PriceRepo, policies catalog.PolicyRepo, eng *stock.Engine) *Service {
	return &Service{Repo: repo, Prices: prices, Policies: policies, StockEngine: eng, Now: time.Now}
}

// CreateOrder validates billing/shipping, prices every requested line
// against the catalog snapshot, enforces per-product reservation-count
// limits, reserves stock, and persists the order. A client-recoverable
// per-line stock failure is reported via LineErrors rather than a bare Go
// error, mirroring stock.Engine.Reserve's own contract.
type CreateResult struct {
	Order      *Order
	LineErrors []stock.LineError
}

func (s *Service) CreateOrder(ctx context.Context, req CreateRequest) (*CreateResult, error) {
	if len(req.Lines) == 0 {
		return nil, apperror.New(apperror.KindClientInput, "InvalidInput", "order must have at least one line")
	}
	if err := ValidateBilling(req.Billing); err != nil {
		return nil, err
	}
	if err := ValidateShipping(req.Shipping); err != nil {
		return nil, err
	}

	byStore := make(map[uint32][]LineRequest)
	for _, l := range req.Lines {
		if l.Qty <= 0 {
			return nil, apperror.New(apperror.KindClientInput, "InvalidQuantity", "qty must be positive")
		}
		byStore[l.Pid.StoreID] = append(byStore[l.Pid.StoreID], l)
	}

	now := s.Now()
	id := NewID()
	var lines []Line
	var stockLines []stock.OrderLine

	for storeID, reqs := range byStore {
		pids := make([]catalog.Pid, len(reqs))
		productIDs := make([]uint64, 0, len(reqs))
		seenProducts := make(map[uint64]struct{})
		for i, r := range reqs {
			pids[i] = r.Pid
			if _, ok := seenProducts[r.Pid.ProductID]; !ok {
				seenProducts[r.Pid.ProductID] = struct{}{}
				productIDs = append(productIDs, r.Pid.ProductID)
			}
		}
		prices, err := s.Prices.FetchByPids(ctx, storeID, pids)
		if err != nil {
			return nil, err
		}
		priceByPid := make(map[catalog.Pid]catalog.PriceModel, len(prices))
		for _, p := range prices {
			priceByPid[p.Pid] = p
		}
		policies, err := s.Policies.FetchByProducts(ctx, storeID, productIDs)
		if err != nil {
			return nil, err
		}
		policyByProduct := make(map[uint64]catalog.Policy, len(policies))
		for _, p := range policies {
			policyByProduct[p.ProductID] = p
		}

		for _, r := range reqs {
			price, ok := priceByPid[r.Pid]
			if !ok {
				return nil, apperror.ErrNotExist
			}
			policy, ok := policyByProduct[r.Pid.ProductID]
			if ok {
				if policy.MinNumRsv > 0 && r.Qty < int64(policy.MinNumRsv) {
					return nil, apperror.New(apperror.KindClientInput, "InvalidQuantity",
						fmt.Sprintf("qty below minimum reservation of %d", policy.MinNumRsv))
				}
				if policy.MaxNumRsv > 0 && r.Qty > int64(policy.MaxNumRsv) {
					return nil, apperror.New(apperror.KindClientInput, "InvalidQuantity",
						fmt.Sprintf("qty exceeds maximum reservation of %d", policy.MaxNumRsv))
				}
			}

			reservedUntil := now.Add(time.Duration(policy.AutoCancelSec) * time.Second)
			warrantyUntil := now.Add(time.Duration(policy.WarrantyHours) * time.Hour)
			if policy.AutoCancelSec == 0 {
				reservedUntil = now
			}
			if policy.WarrantyHours == 0 {
				warrantyUntil = reservedUntil
			}

			line := Line{
				Pid: r.Pid, PriceUnit: money.NewAmount(price.Currency, price.Price),
				ReservedQty: r.Qty, ReservedUntil: reservedUntil, WarrantyUntil: warrantyUntil,
				AttributePriceSnapshot: price.Extra,
			}
			if err := line.CheckInvariant(now); err != nil {
				return nil, err
			}
			lines = append(lines, line)
			stockLines = append(stockLines, stock.OrderLine{
				StoreID: r.Pid.StoreID, ProductID: r.Pid.ProductID, AttrSeq: r.Pid.AttrSetSeq, Qty: r.Qty,
			})
		}
	}

	res, err := s.StockEngine.Reserve(ctx, stock.OrderLineModelSet{
		BuyerID: req.OwnerID, OrderID: id.String(), Lines: stockLines,
	}, nil)
	if err != nil {
		return nil, err
	}
	if len(res.LineErrors) > 0 {
		return &CreateResult{LineErrors: res.LineErrors}, nil
	}

	ord := &Order{
		Header: Header{
			OrderID: id, OwnerID: req.OwnerID, CreateTime: now,
			Billing: req.Billing, Shipping: req.Shipping, CurrencySnapshot: req.CurrencySnapshot,
		},
		Lines: lines,
	}
	if err := s.Repo.Create(ctx, ord); err != nil {
		s.compensateReservation(ctx, stockLines)
		return nil, err
	}
	return &CreateResult{Order: ord}, nil
}

// compensateReservation returns booked stock reserved by this attempt when
// the order row never made it to the repository -- no order line was
// persisted for the reclamation sweep to find, so without this the booked
// units would be stranded permanently. Best-effort: a failure here does not
// change the original Create failure being reported.
func (s *Service) compensateReservation(ctx context.Context, stockLines []stock.OrderLine) {
	if len(stockLines) == 0 {
		return
	}
	tuples := make([]stock.AggregateReturnTuple, 0, len(stockLines))
	for _, l := range stockLines {
		tuples = append(tuples, stock.AggregateReturnTuple{StoreID: l.StoreID, ProductID: l.ProductID, Qty: l.Qty})
	}
	_ = s.StockEngine.ReturnAggregate(ctx, tuples)
}

// RecordPayment applies the update-lines-payment contract: each update must
// keep 0 <= paid_qty <= reserved_qty on its line.
func (s *Service) RecordPayment(ctx context.Context, id ID, updates []LinePaymentUpdate) error {
	if len(updates) == 0 {
		return apperror.New(apperror.KindClientInput, "InvalidInput", "at least one line update is required")
	}
	return s.Repo.UpdateLinesPayment(ctx, id, updates)
}

// UpdateContacts edits an order's billing/shipping subrecords, re-validating
// both against the same rules create-order applies.
func (s *Service) UpdateContacts(ctx context.Context, ownerID uint64, id ID, billing Billing, shipping Shipping) error {
	if err := ValidateBilling(billing); err != nil {
		return err
	}
	if err := ValidateShipping(shipping); err != nil {
		return err
	}
	return s.Repo.UpdateContacts(ctx, ownerID, id, billing, shipping)
}

// IncrementNumCharges bumps the order's charge counter, exposed for
// cross-service callers (the charge pipeline's OrderGateway) that don't
// hold a Repo reference directly.
func (s *Service) IncrementNumCharges(ctx context.Context, id ID) error {
	return s.Repo.IncrementNumCharges(ctx, id)
}

// FetchByID returns a single order, scoped to its owner.
func (s *Service) FetchByID(ctx context.Context, ownerID uint64, id ID) (*Order, error) {
	return s.Repo.FetchByID(ctx, ownerID, id)
}

// FetchByIDUnscoped returns an order with no owner check, for trusted
// internal callers only (see Repo.FetchByIDUnscoped).
func (s *Service) FetchByIDUnscoped(ctx context.Context, id ID) (*Order, error) {
	return s.Repo.FetchByIDUnscoped(ctx, id)
}

// FetchLatestByOwner returns a buyer's most recent order, exposed for
// cross-pipeline callers that need the buyer's locked exchange rate
// without owning an order id (the payout pipeline's rate lookup).
func (s *Service) FetchLatestByOwner(ctx context.Context, ownerID uint64) (*Order, error) {
	return s.Repo.FetchLatestByOwner(ctx, ownerID)
}

// SweepReservedBefore is the query half of the reclamation job: orders
// whose reservation window lapsed without full payment.
func (s *Service) SweepReservedBefore(ctx context.Context, cutoff time.Time, limit int) ([]Order, error) {
	return s.Repo.FetchReservedBefore(ctx, cutoff, limit)
}
