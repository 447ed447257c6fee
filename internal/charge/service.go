package charge

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/order"
)

// OrderGateway is the subset of order.Service this package depends on: it
// never imports the order HTTP layer, only the order aggregate.
type OrderGateway interface {
	FetchOrder(ctx context.Context, ownerID uint64, orderID order.ID) (*order.Order, error)
	IncrementNumCharges(ctx context.Context, orderID order.ID) error
}

// Locker is the per-order async lock (platform.OrderLockCache satisfies
// this structurally).
type Locker interface {
	Acquire(ctx context.Context, orderID string) (release func(context.Context) error, err error)
}

// OrderSyncer RPC-updates the order service with paid quantities once a
// charge completes at the processor.
type OrderSyncer interface {
	SyncPaidQuantities(ctx context.Context, orderID order.ID, lines []Line) error
}

// Service implements the create-charge/refresh-charge pipelines.
type Service struct {
	Repo              Repo
	Orders            OrderGateway
	Locks             Locker
	PSP               Processor
	Sync              OrderSyncer
	Now               func() time.Time
	MinChargeInterval time.Duration
	Logger            *zap.Logger
}

func NewService(repo Repo, orders OrderGateway, locks Locker, psp Processor, sync OrderSyncer, logger *zap.Logger) *Service {
	return &Service{
		Repo: repo, Orders: orders, Locks: locks, PSP: psp, Sync: sync, Now: time.Now,
		MinChargeInterval: 60 * time.Second, Logger: logger,
	}
}

// CreateRequest is one requested (pid, qty) line on charge creation, plus
// the caller's per-order charge quota read off its authenticated claims.
type CreateRequest struct {
	OwnerID     uint64
	OrderID     order.ID
	ChargeQuota int32
	Lines       []struct {
		Pid catalog.Pid
		Qty int64
	}
}

// CreateCharge validates requested quantities against what's still
// chargeable, enforces the caller's charge quota and the minimum
// inter-charge interval, then submits a session to the processor under a
// per-order lock.
func (s *Service) CreateCharge(ctx context.Context, req CreateRequest) (*Charge, error) {
	ord, err := s.Orders.FetchOrder(ctx, req.OwnerID, req.OrderID)
	if err != nil {
		return nil, err
	}
	if ord.Header.NumCharges >= req.ChargeQuota {
		return nil, apperror.ErrQuotaExceeded
	}

	now := s.Now()
	if lastTime, found, err := s.Repo.FetchLastChargeTime(ctx, req.OrderID); err != nil {
		return nil, err
	} else if found && now.Sub(lastTime) < s.MinChargeInterval {
		return nil, apperror.New(apperror.KindDomainState, "ChargeTooSoon",
			"must wait the minimum inter-charge interval before creating another charge")
	}

	priorLines, err := s.Repo.FetchCompletedLines(ctx, req.OrderID)
	if err != nil {
		return nil, err
	}
	priorPaid := make(map[catalog.Pid]int64, len(priorLines))
	for _, l := range priorLines {
		priorPaid[l.Pid] += l.Qty
	}
	reservedByPid := make(map[catalog.Pid]order.Line, len(ord.Lines))
	for _, l := range ord.Lines {
		reservedByPid[l.Pid] = l
	}

	lines := make([]Line, 0, len(req.Lines))
	for _, r := range req.Lines {
		orderLine, ok := reservedByPid[r.Pid]
		if !ok {
			return nil, apperror.ErrNotExist
		}
		chargeable := orderLine.ReservedQty - priorPaid[r.Pid]
		if r.Qty <= 0 || r.Qty > chargeable {
			return nil, apperror.New(apperror.KindClientInput, "InvalidQuantity",
				"requested qty exceeds still-chargeable quantity")
		}
		lines = append(lines, Line{
			Pid: r.Pid, Qty: r.Qty, MerchantID: uint64(r.Pid.StoreID),
			AmountOrig: orderLine.PriceUnit,
		})
	}

	release, err := s.Locks.Acquire(ctx, req.OrderID.String())
	if err != nil {
		return nil, err
	}
	defer func() { _ = release(ctx) }()

	if err := s.Orders.IncrementNumCharges(ctx, req.OrderID); err != nil {
		return nil, err
	}

	session, err := s.PSP.CreateSession(ctx, SessionRequest{OrderID: req.OrderID, BuyerID: req.OwnerID, Lines: lines})
	if err != nil {
		return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
	}

	accepted := now
	c := &Charge{
		ChargeID: NewID(), OrderID: req.OrderID, BuyerID: req.OwnerID,
		State: StateProcessorAccepted, Method: Stripe(session), Lines: lines,
		CreateTime: now, ProcessorAcceptedAt: &accepted,
	}
	if err := s.Repo.Create(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// FetchByID returns a single charge, exposed for cross-pipeline callers
// (the payout gateway) that hold a *Service rather than a bare Repo.
func (s *Service) FetchByID(ctx context.Context, id ID) (*Charge, error) {
	return s.Repo.FetchByID(ctx, id)
}

// RefreshCharge polls the processor, advances the state machine on first
// observed completion, and attempts the order-sync RPC when the charge is
// (or becomes) ProcessorCompleted. A sync failure is tolerated: the charge
// stays ProcessorCompleted and the next RefreshCharge call retries it --
// between ProcessorCompleted and OrderAppSynced the charge is retryable.
func (s *Service) RefreshCharge(ctx context.Context, id ID) (*Charge, error) {
	c, err := s.Repo.FetchByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if c.State == StateProcessorAccepted {
		method, ok := c.Method.(Stripe)
		if !ok {
			return nil, apperror.New(apperror.KindDataCorruption, "DataCorruption", "charge in ProcessorAccepted without a Stripe method")
		}
		res, err := s.PSP.RefreshSession(ctx, method)
		if err != nil {
			return nil, apperror.Wrap(apperror.KindTransientInfra, "ExternalProcessor", err)
		}
		now := s.Now()
		switch {
		case res.Refused:
			c.State = StatePspRefused
		case res.Expired:
			c.State = StateSessionExpired
		case res.Completed:
			c.State = StateProcessorCompleted
			c.ProcessorCompletedAt = &now
		}
		if c.State != StateProcessorAccepted {
			if err := s.Repo.Update(ctx, c); err != nil {
				return nil, err
			}
		}
	}

	if c.State == StateProcessorCompleted {
		if err := s.Sync.SyncPaidQuantities(ctx, c.OrderID, c.Lines); err != nil {
			if s.Logger != nil {
				s.Logger.Warn("order sync retry pending", zap.String("charge_id", c.ChargeID.String()), zap.Error(err))
			}
			return c, nil
		}
		now := s.Now()
		c.State = StateOrderAppSynced
		c.OrderAppSyncedAt = &now
		if err := s.Repo.Update(ctx, c); err != nil {
			return nil, err
		}
	}

	return c, nil
}
