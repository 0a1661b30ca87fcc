package order

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddFill_DecrementsRemainingAndAppends(t *testing.T) {
	rec := NewLimit(UserID(1), 100, Bid, 10, 500)

	require.NoError(t, rec.AddFill(Trade{Timestamp: 150, Volume: 4, Price: 500}))
	assert.Equal(t, uint64(6), rec.RemainingVolume)
	assert.Len(t, rec.Fills, 1)
	assert.False(t, rec.Closed())

	require.NoError(t, rec.AddFill(Trade{Timestamp: 160, Volume: 6, Price: 500}))
	assert.True(t, rec.Closed())
}

func TestAddFill_RejectsOverfill(t *testing.T) {
	rec := NewLimit(UserID(1), 100, Bid, 10, 500)
	err := rec.AddFill(Trade{Timestamp: 150, Volume: 11, Price: 500})
	assert.ErrorIs(t, err, ErrOverfill)
	assert.Equal(t, uint64(10), rec.RemainingVolume)
}

func TestAddFill_RejectsFillBeforeSubmit(t *testing.T) {
	rec := NewLimit(UserID(1), 100, Bid, 10, 500)
	err := rec.AddFill(Trade{Timestamp: 99, Volume: 1, Price: 500})
	assert.ErrorIs(t, err, ErrFillBeforeSubmit)
}

func TestResetVolume_ClearsFills(t *testing.T) {
	rec := NewLimit(SyntheticID, 100, Ask, 10, 500)
	require.NoError(t, rec.AddFill(Trade{Timestamp: 110, Volume: 3, Price: 500}))

	rec.ResetVolume(7)
	assert.Equal(t, uint64(7), rec.InitialVolume)
	assert.Equal(t, uint64(7), rec.RemainingVolume)
	assert.Empty(t, rec.Fills)
}

func TestAveragePrice(t *testing.T) {
	rec := NewLimit(UserID(1), 0, Bid, 10, 500)
	assert.Equal(t, float64(0), rec.AveragePrice())

	require.NoError(t, rec.AddFill(Trade{Timestamp: 1, Volume: 2, Price: 100}))
	require.NoError(t, rec.AddFill(Trade{Timestamp: 2, Volume: 2, Price: 200}))
	assert.Equal(t, float64(150), rec.AveragePrice())
}

func TestCancel_RejectsMarketOrders(t *testing.T) {
	rec := NewMarket(UserID(1), 0, Ask, 10)
	assert.ErrorIs(t, rec.Cancel(), ErrCancelMarket)

	limit := NewLimit(UserID(2), 0, Ask, 10, 500)
	require.NoError(t, limit.Cancel())
	assert.True(t, limit.Canceled)
}

func TestID_SyntheticSentinel(t *testing.T) {
	assert.True(t, SyntheticID.IsSynthetic())
	assert.False(t, UserID(5).IsSynthetic())
	assert.Panics(t, func() { SyntheticID.Value() })
}
