package money

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iaros/commerce-core/internal/apperror"
)

func TestTryFromRawAmount_OK(t *testing.T) {
	unit, total, err := TryFromRawAmount("TWD", "510", "2550", 5, decimal.Zero)
	require.NoError(t, err)
	assert.True(t, unit.Value.Equal(decimal.NewFromInt(510)))
	assert.True(t, total.Value.Equal(decimal.NewFromInt(2550)))
}

func TestTryFromRawAmount_Mismatch(t *testing.T) {
	_, _, err := TryFromRawAmount("TWD", "510", "9999", 5, decimal.Zero)
	require.Error(t, err)
	appErr, ok := apperror.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "Mismatch", appErr.Code)
}

func TestTryFromRawAmount_PrecisionViolation(t *testing.T) {
	_, _, err := TryFromRawAmount("TWD", "5.105", "25.525", 5, decimal.Zero)
	require.Error(t, err)
	appErr, ok := apperror.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "PrecisionUnit", appErr.Code)
}

func TestSnapshot_ToBuyerRate_ZeroSellerRate(t *testing.T) {
	snap := Snapshot{
		1: {Label: "USD", Rate: decimal.NewFromInt(1)},
		2: {Label: "TWD", Rate: decimal.Zero},
	}
	_, err := snap.ToBuyerRate(1, 2)
	require.Error(t, err)
	appErr, ok := apperror.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "DataCorruption", appErr.Code)
}

func TestTryBuildCurrencySnapshot_MissingSeller(t *testing.T) {
	dto := RawSnapshotDTO{
		Rates: map[uint64]RawRate{
			1: {Label: "USD", Rate: "1"},
		},
		SellerIDs: []uint64{2},
	}
	_, err := TryBuildCurrencySnapshot(1, dto)
	require.Error(t, err)
	appErr, ok := apperror.AsError(err)
	require.True(t, ok)
	assert.Equal(t, "MissingActorsCurrency", appErr.Code)
}

func TestTryBuildCurrencySnapshot_Coverage(t *testing.T) {
	dto := RawSnapshotDTO{
		Rates: map[uint64]RawRate{
			1: {Label: "USD", Rate: "1"},
			2: {Label: "TWD", Rate: "31.5"},
			3: {Label: "INR", Rate: "83.2"},
		},
		SellerIDs: []uint64{2, 3},
	}
	snap, err := TryBuildCurrencySnapshot(1, dto)
	require.NoError(t, err)
	assert.Len(t, snap, 3)
}
