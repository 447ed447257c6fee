package reclamation

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/catalog"
	"github.com/iaros/commerce-core/internal/order"
	"github.com/iaros/commerce-core/internal/stock"
)

type fakeSource struct {
	orders []order.Order
	err    error
	calls  int
}

func (f *fakeSource) SweepReservedBefore(_ context.Context, _ time.Time, _ int) ([]order.Order, error) {
	f.calls++
	return f.orders, f.err
}

type fakeReturner struct {
	err    error
	tuples []stock.AggregateReturnTuple
	calls  int
}

func (f *fakeReturner) ReturnAggregate(_ context.Context, tuples []stock.AggregateReturnTuple) error {
	f.calls++
	f.tuples = tuples
	return f.err
}

func unpaidOrder(reservedUntil time.Time, reservedQty, paidQty int64) order.Order {
	return order.Order{
		Header: order.Header{OrderID: order.NewID()},
		Lines: []order.Line{{
			Pid:           catalog.Pid{StoreID: 51, ProductID: 168},
			ReservedQty:   reservedQty,
			PaidQty:       paidQty,
			ReservedUntil: reservedUntil,
		}},
	}
}

func TestJob_Tick_ReclaimsUnpaidLines(t *testing.T) {
	src := &fakeSource{orders: []order.Order{unpaidOrder(time.Now().Add(-time.Hour), 5, 2)}}
	dst := &fakeReturner{}
	job := NewJob(src, dst, nil)

	require.NoError(t, job.Tick(context.Background()))
	require.Equal(t, 1, dst.calls)
	require.Len(t, dst.tuples, 1)
	assert.EqualValues(t, 3, dst.tuples[0].Qty)
}

func TestJob_Tick_SkipsFullyPaidLines(t *testing.T) {
	src := &fakeSource{orders: []order.Order{unpaidOrder(time.Now().Add(-time.Hour), 5, 5)}}
	dst := &fakeReturner{}
	job := NewJob(src, dst, nil)

	require.NoError(t, job.Tick(context.Background()))
	assert.Equal(t, 0, dst.calls)
}

func TestJob_Tick_FailurePreservesLastRunTime(t *testing.T) {
	src := &fakeSource{orders: []order.Order{unpaidOrder(time.Now().Add(-time.Hour), 5, 0)}}
	dst := &fakeReturner{err: assertErr{}}
	job := NewJob(src, dst, nil)
	before := job.LastRunTime()

	err := job.Tick(context.Background())
	require.Error(t, err)
	assert.Equal(t, before, job.LastRunTime())
}

func TestJob_Tick_SecondTickIsNoopWithoutNewOrders(t *testing.T) {
	src := &fakeSource{orders: []order.Order{unpaidOrder(time.Now().Add(-time.Hour), 5, 2)}}
	dst := &fakeReturner{}
	job := NewJob(src, dst, nil)

	require.NoError(t, job.Tick(context.Background()))
	require.Equal(t, 1, dst.calls)

	src.orders = nil // simulates the line no longer being returned by the sweep query
	require.NoError(t, job.Tick(context.Background()))
	assert.Equal(t, 1, dst.calls) // unchanged: idempotent, no double-return
}

type assertErr struct{}

func (assertErr) Error() string { return "boom" }
