package charge

import (
	"context"
	"sync"
	"time"

	"github.com/iaros/commerce-core/internal/apperror"
	"github.com/iaros/commerce-core/internal/order"
)

// MemoryRepo is the in-memory reference backend.
type MemoryRepo struct {
	mu      sync.Mutex
	charges map[string]*Charge
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{charges: make(map[string]*Charge)}
}

func (r *MemoryRepo) Create(_ context.Context, c *Charge) error {
	if err := c.CheckSaveable(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	r.charges[c.ChargeID.String()] = &cp
	return nil
}

func (r *MemoryRepo) Update(_ context.Context, c *Charge) error {
	if err := c.CheckSaveable(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.charges[c.ChargeID.String()]; !ok {
		return apperror.ErrNotExist
	}
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	r.charges[c.ChargeID.String()] = &cp
	return nil
}

func (r *MemoryRepo) FetchByID(_ context.Context, id ID) (*Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.charges[id.String()]
	if !ok {
		return nil, apperror.ErrNotExist
	}
	cp := *c
	cp.Lines = append([]Line(nil), c.Lines...)
	return &cp, nil
}

func (r *MemoryRepo) FetchCompletedLines(_ context.Context, orderID order.ID) ([]Line, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Line
	for _, c := range r.charges {
		if c.OrderID != orderID || c.State != StateOrderAppSynced {
			continue
		}
		out = append(out, c.Lines...)
	}
	return out, nil
}

func (r *MemoryRepo) FetchByOrderID(_ context.Context, orderID order.ID) ([]Charge, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Charge
	for _, c := range r.charges {
		if c.OrderID != orderID {
			continue
		}
		cp := *c
		cp.Lines = append([]Line(nil), c.Lines...)
		out = append(out, cp)
	}
	return out, nil
}

func (r *MemoryRepo) FetchLastChargeTime(_ context.Context, orderID order.ID) (time.Time, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var latest time.Time
	found := false
	for _, c := range r.charges {
		if c.OrderID != orderID {
			continue
		}
		if !found || c.CreateTime.After(latest) {
			latest = c.CreateTime
			found = true
		}
	}
	return latest, found, nil
}
