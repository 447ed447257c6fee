// Package reclamation implements the periodic reservation-reclamation
// sweep that returns stock for order lines whose reservation window lapsed
// without full payment, on a robfig/cron schedule.
package reclamation

import (
	"context"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/iaros/commerce-core/internal/order"
	"github.com/iaros/commerce-core/internal/stock"
)

// OrderLineSource is the read side of the sweep: order lines reserved
// before a cutoff, with payment still incomplete.
type OrderLineSource interface {
	SweepReservedBefore(ctx context.Context, cutoff time.Time, limit int) ([]order.Order, error)
}

// StockReturner is the write side: aggregate stock return per product.
type StockReturner interface {
	ReturnAggregate(ctx context.Context, tuples []stock.AggregateReturnTuple) error
}

// Job runs the reclamation tick on a schedule. It records last_run_time and
// only advances it after a tick fully succeeds, so a failed batch retries
// the same window on the next tick.
type Job struct {
	mu          sync.Mutex
	lastRunTime time.Time

	orders     OrderLineSource
	stockReady StockReturner
	now        func() time.Time
	batchLimit int
	logger     *zap.Logger
	cronSched  *cron.Cron
}

func NewJob(orders OrderLineSource, stockEng StockReturner, logger *zap.Logger) *Job {
	return &Job{
		orders: orders, stockReady: stockEng, now: time.Now, batchLimit: 500,
		logger: logger, lastRunTime: time.Unix(0, 0),
	}
}

// Tick performs one sweep of the half-open window (last_run_time, now].
// A failure aborts the tick and preserves last_run_time so the window is
// retried on the next call.
func (j *Job) Tick(ctx context.Context) error {
	j.mu.Lock()
	windowStart := j.lastRunTime
	j.mu.Unlock()
	now := j.now()

	orders, err := j.orders.SweepReservedBefore(ctx, now, j.batchLimit)
	if err != nil {
		return err
	}

	unpaidByProduct := make(map[[2]uint64]int64)
	var touched int
	for _, ord := range orders {
		for _, line := range ord.Lines {
			if !line.ReservedUntil.After(windowStart) || line.ReservedUntil.After(now) {
				continue
			}
			unpaid := line.UnpaidQty()
			if unpaid <= 0 {
				continue
			}
			key := [2]uint64{uint64(line.Pid.StoreID), line.Pid.ProductID}
			unpaidByProduct[key] += unpaid
			touched++
		}
	}

	if len(unpaidByProduct) > 0 {
		tuples := make([]stock.AggregateReturnTuple, 0, len(unpaidByProduct))
		for key, qty := range unpaidByProduct {
			tuples = append(tuples, stock.AggregateReturnTuple{StoreID: uint32(key[0]), ProductID: key[1], Qty: qty})
		}
		if err := j.stockReady.ReturnAggregate(ctx, tuples); err != nil {
			return err
		}
	}

	j.mu.Lock()
	j.lastRunTime = now
	j.mu.Unlock()

	if j.logger != nil {
		j.logger.Info("reclamation tick complete",
			zap.Int("orders_scanned", len(orders)),
			zap.Int("lines_reclaimed", touched),
			zap.Time("window_start", windowStart),
			zap.Time("window_end", now),
		)
	}
	return nil
}

// LastRunTime reports the last successfully completed tick's timestamp.
func (j *Job) LastRunTime() time.Time {
	j.mu.Lock()
	defer j.mu.Unlock()
	return j.lastRunTime
}

// Start schedules Tick on the given cron expression, logging (not
// panicking on) tick failures so one bad window doesn't kill the process.
func (j *Job) Start(schedule string) error {
	j.cronSched = cron.New()
	_, err := j.cronSched.AddFunc(schedule, func() {
		if err := j.Tick(context.Background()); err != nil && j.logger != nil {
			j.logger.Error("reclamation tick failed", zap.Error(err))
		}
	})
	if err != nil {
		return err
	}
	j.cronSched.Start()
	return nil
}

func (j *Job) Stop() {
	if j.cronSched != nil {
		j.cronSched.Stop()
	}
}
