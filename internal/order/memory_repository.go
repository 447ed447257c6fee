package order

import (
	"context"
	"sync"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/catalog"
)

// MemoryRepo is the in-memory reference backend, single mutex guarding a
// map keyed by the order id's string form.
type MemoryRepo struct {
	mu     sync.Mutex
	orders map[string]*Order
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{orders: make(map[string]*Order)}
}

func (r *MemoryRepo) Create(_ context.Context, ord *Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := cloneOrder(ord)
	r.orders[ord.Header.OrderID.String()] = cp
	return nil
}

func (r *MemoryRepo) FetchByID(_ context.Context, ownerID uint64, id ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id.String()]
	if !ok || ord.Header.OwnerID != ownerID {
		return nil, apperror.ErrNotExist
	}
	return cloneOrder(ord), nil
}

func (r *MemoryRepo) FetchByIDUnscoped(_ context.Context, id ID) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id.String()]
	if !ok {
		return nil, apperror.ErrNotExist
	}
	return cloneOrder(ord), nil
}

func (r *MemoryRepo) UpdateLinesPayment(_ context.Context, id ID, updates []LinePaymentUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id.String()]
	if !ok {
		return apperror.ErrNotExist
	}
	byPid := make(map[catalog.Pid]LinePaymentUpdate, len(updates))
	for _, u := range updates {
		byPid[u.Pid] = u
	}
	for i := range ord.Lines {
		u, ok := byPid[ord.Lines[i].Pid]
		if !ok {
			continue
		}
		ord.Lines[i].PaidQty += u.PaidQtyDelta
		at := u.PaidAt
		ord.Lines[i].PaidLastUpdate = &at
		if err := ord.Lines[i].CheckInvariant(ord.Header.CreateTime); err != nil {
			return err
		}
	}
	return nil
}

func (r *MemoryRepo) UpdateContacts(_ context.Context, ownerID uint64, id ID, billing Billing, shipping Shipping) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id.String()]
	if !ok || ord.Header.OwnerID != ownerID {
		return apperror.ErrNotExist
	}
	ord.Header.Billing = billing
	ord.Header.Shipping = shipping
	return nil
}

func (r *MemoryRepo) FetchReservedBefore(_ context.Context, cutoff time.Time, limit int) ([]Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Order
	for _, ord := range r.orders {
		for _, l := range ord.Lines {
			if l.ReservedUntil.Before(cutoff) && l.UnpaidQty() > 0 {
				out = append(out, *cloneOrder(ord))
				break
			}
		}
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

func (r *MemoryRepo) IncrementNumCharges(_ context.Context, id ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	ord, ok := r.orders[id.String()]
	if !ok {
		return apperror.ErrNotExist
	}
	ord.Header.NumCharges++
	return nil
}

func (r *MemoryRepo) FetchLatestByOwner(_ context.Context, ownerID uint64) (*Order, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest *Order
	for _, ord := range r.orders {
		if ord.Header.OwnerID != ownerID {
			continue
		}
		if latest == nil || ord.Header.CreateTime.After(latest.Header.CreateTime) {
			latest = ord
		}
	}
	if latest == nil {
		return nil, apperror.ErrNotExist
	}
	return cloneOrder(latest), nil
}

func cloneOrder(o *Order) *Order {
	cp := *o
	cp.Lines = append([]Line(nil), o.Lines...)
	return &cp
}
