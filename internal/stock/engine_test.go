package stock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEngine_Reserve_Success(t *testing.T) {
	repo := NewMemoryRepo()
	far := time.Date(2099, 12, 24, 0, 0, 0, 0, time.UTC)
	repo.Seed(Bucket{
		Key:       BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()},
		Total:     22,
		ExpiresAt: far,
	})
	eng := NewEngine(repo, NewKeyLockPool())

	res, err := eng.Reserve(context.Background(), OrderLineModelSet{
		BuyerID: 1, OrderID: "order-1",
		Lines: []OrderLine{{StoreID: 51, ProductID: 168, Qty: 5}},
	}, nil)
	require.NoError(t, err)
	assert.Empty(t, res.LineErrors)

	buckets, err := repo.FetchEligible(context.Background(), [][2]uint64{{51, 168}})
	require.NoError(t, err)
	b := buckets[BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}]
	assert.EqualValues(t, 5, b.Booked)
	assert.True(t, b.CheckInvariant())
}

func TestEngine_Reserve_NotEnoughStock(t *testing.T) {
	repo := NewMemoryRepo()
	far := time.Date(2099, 12, 24, 0, 0, 0, 0, time.UTC)
	repo.Seed(Bucket{Key: BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}, Total: 2})
	eng := NewEngine(repo, NewKeyLockPool())

	res, err := eng.Reserve(context.Background(), OrderLineModelSet{
		Lines: []OrderLine{{StoreID: 51, ProductID: 168, Qty: 5}},
	}, nil)
	require.NoError(t, err)
	require.Len(t, res.LineErrors, 1)
	assert.Equal(t, "NotEnough", res.LineErrors[0].Code)

	// Mutations must be discarded on failure.
	buckets, _ := repo.FetchEligible(context.Background(), [][2]uint64{{51, 168}})
	b := buckets[BucketKey{StoreID: 51, ProductID: 168, ExpirySec: far.Unix()}]
	assert.EqualValues(t, 0, b.Booked)
}

func TestEngine_Return_ExpiredBucketEligible(t *testing.T) {
	repo := NewMemoryRepo()
	past := time.Now().Add(-time.Hour)
	repo.Seed(Bucket{Key: BucketKey{StoreID: 1, ProductID: 2, ExpirySec: past.Unix()}, Total: 10, Booked: 4})
	eng := NewEngine(repo, NewKeyLockPool())

	err := eng.Return(context.Background(), []ReturnTuple{
		{StoreID: 1, ProductID: 2, ExpirySec: past.Unix(), Qty: 4},
	}, nil)
	require.NoError(t, err)

	buckets, _ := repo.FetchAny(context.Background(), [][2]uint64{{1, 2}})
	b := buckets[BucketKey{StoreID: 1, ProductID: 2, ExpirySec: past.Unix()}]
	assert.EqualValues(t, 0, b.Booked)
	assert.EqualValues(t, 4, b.Cancelled)
}

func TestEngine_Return_ZeroDeltaIdempotent(t *testing.T) {
	repo := NewMemoryRepo()
	repo.Seed(Bucket{Key: BucketKey{StoreID: 1, ProductID: 2, ExpirySec: 100}, Total: 10, Booked: 4})
	eng := NewEngine(repo, NewKeyLockPool())

	err := eng.Return(context.Background(), []ReturnTuple{{StoreID: 1, ProductID: 2, ExpirySec: 100, Qty: 0}}, nil)
	require.NoError(t, err)

	buckets, _ := repo.FetchAny(context.Background(), [][2]uint64{{1, 2}})
	b := buckets[BucketKey{StoreID: 1, ProductID: 2, ExpirySec: 100}]
	assert.EqualValues(t, 4, b.Booked)
}

func TestEngine_AdjustLevel_CreatesBucketOnFirstRestock(t *testing.T) {
	repo := NewMemoryRepo()
	eng := NewEngine(repo, NewKeyLockPool())
	expiry := time.Date(2099, 12, 24, 0, 0, 0, 0, time.UTC)

	out, err := eng.AdjustLevel(context.Background(), []LevelAdjustment{
		{StoreID: 51, ProductID: 168, ExpiresAt: expiry, QtyAdd: 22},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 22, out[0].Total)
	assert.EqualValues(t, 0, out[0].Booked)

	buckets, _ := repo.FetchAny(context.Background(), [][2]uint64{{51, 168}})
	b := buckets[BucketKey{StoreID: 51, ProductID: 168, ExpirySec: expiry.Unix()}]
	require.NotNil(t, b)
	assert.EqualValues(t, 22, b.Total)
}

func TestEngine_AdjustLevel_AddsToExistingBucketAndClampsNegative(t *testing.T) {
	repo := NewMemoryRepo()
	expiry := time.Date(2099, 12, 24, 0, 0, 0, 0, time.UTC)
	repo.Seed(Bucket{Key: BucketKey{StoreID: 51, ProductID: 168, ExpirySec: expiry.Unix()}, Total: 10, Booked: 3, ExpiresAt: expiry})
	eng := NewEngine(repo, NewKeyLockPool())

	out, err := eng.AdjustLevel(context.Background(), []LevelAdjustment{
		{StoreID: 51, ProductID: 168, ExpiresAt: expiry, QtyAdd: -50},
	})
	require.NoError(t, err)
	require.Len(t, out, 1)
	assert.EqualValues(t, 0, out[0].Total)
	assert.EqualValues(t, 3, out[0].Booked)
}
