package book

import (
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ledgerbook/internal/order"
)

func newTestBook() *OrderBook {
	return New(zerolog.Nop())
}

func TestUpdateBook_PopulatesSyntheticLevels(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0,
		[]Level{{Price: 105, Volume: 10}, {Price: 106, Volume: 5}},
		[]Level{{Price: 95, Volume: 20}},
	)

	price, err := b.BestPrice(order.Ask)
	require.NoError(t, err)
	assert.EqualValues(t, 105, price)

	price, err = b.BestPrice(order.Bid)
	require.NoError(t, err)
	assert.EqualValues(t, 95, price)

	asks := b.AskLevels()
	require.Len(t, asks, 2)
	assert.EqualValues(t, 105, asks[0].Price)
	assert.EqualValues(t, 106, asks[1].Price)
}

func TestUpdateBook_PreservesUserOrdersAndDropsVanishedSyntheticDepth(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 10}}, nil)

	b.ActivateUserLimit(1, 5, order.Ask, 3, 105)

	// Second snapshot: price 105 vanishes entirely.
	b.UpdateBook(10, []Level{{Price: 110, Volume: 7}}, nil)

	levels := b.AskLevels()
	require.Len(t, levels, 2)

	var sawUserOrder, sawVanishedSynthetic bool
	for _, lvl := range levels {
		for _, rec := range lvl.Orders {
			if !rec.ID.IsSynthetic() {
				sawUserOrder = true
				assert.EqualValues(t, 105, lvl.Price)
			}
			if lvl.Price == 105 && rec.ID.IsSynthetic() {
				sawVanishedSynthetic = true
			}
		}
	}
	assert.True(t, sawUserOrder, "user order at a vanished price must be preserved")
	assert.False(t, sawVanishedSynthetic, "synthetic depth at a vanished price must be dropped")
}

func TestUpdateBook_ReconciliationPreservesSubmitTimestampForTimePriority(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 10}}, nil)

	var original *order.Record
	b.asks.Scan(func(lvl *PriceLevel) bool {
		if lvl.Price == 105 {
			original = lvl.Orders[0]
		}
		return true
	})
	require.NotNil(t, original)
	originalTS := original.SubmitTimestamp

	b.UpdateBook(20, []Level{{Price: 105, Volume: 8}}, nil)

	var reconciled *order.Record
	b.asks.Scan(func(lvl *PriceLevel) bool {
		if lvl.Price == 105 {
			reconciled = lvl.Orders[0]
		}
		return true
	})
	require.NotNil(t, reconciled)
	assert.Equal(t, originalTS, reconciled.SubmitTimestamp, "reconciled synthetic order keeps original time priority")
	assert.EqualValues(t, 8, reconciled.RemainingVolume)
}

func TestActivateUserMarket_CrossesOnlySyntheticDepthNeverUserLimits(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 5}}, nil)
	b.ActivateUserLimit(1, 1, order.Ask, 100, 105)

	err := b.ActivateUserMarket(2, 10, order.Bid, 5)
	require.NoError(t, err)

	userRec, err := b.OrderInfo(1)
	require.NoError(t, err)
	assert.EqualValues(t, 100, userRec.RemainingVolume, "user limit order must never be crossed by a market order")

	marketRec, err := b.OrderInfo(2)
	require.NoError(t, err)
	assert.True(t, marketRec.Closed())
}

func TestActivateUserMarket_InsufficientSyntheticDepthFailsAtomically(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 3}}, nil)
	b.ActivateUserLimit(1, 1, order.Ask, 100, 105)

	err := b.ActivateUserMarket(2, 10, order.Bid, 50)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	userRec, err := b.OrderInfo(1)
	require.NoError(t, err)
	assert.EqualValues(t, 100, userRec.RemainingVolume, "failed market order must not have touched user liquidity")
}

func TestApplyHistoricalTrade_DrainsSyntheticAndUserLimitsAtRestingPrice(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, nil, []Level{{Price: 95, Volume: 5}})
	b.ActivateUserLimit(1, 1, order.Bid, 5, 95)

	trade := order.Trade{Timestamp: 50, Volume: 10, Price: 999, IsBuyerMaker: true}
	err := b.ApplyHistoricalTrade(trade)
	require.NoError(t, err)

	userRec, err := b.OrderInfo(1)
	require.NoError(t, err)
	assert.True(t, userRec.Closed(), "tape trades fill resting user limits too")
	assert.EqualValues(t, 95, userRec.Fills[0].Price, "fill price is the resting order's own limit, not the tape price")
}

func TestApplyHistoricalTrade_InsufficientDepthFailsAtomically(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, nil, []Level{{Price: 95, Volume: 3}})

	trade := order.Trade{Timestamp: 50, Volume: 100, Price: 999, IsBuyerMaker: true}
	err := b.ApplyHistoricalTrade(trade)
	assert.ErrorIs(t, err, ErrInsufficientLiquidity)

	price, err := b.BestPrice(order.Bid)
	require.NoError(t, err)
	assert.EqualValues(t, 95, price, "failed trade must not have drained the ladder")
}

func TestCancel_EvictsFromLadderAndIsNoOpWhenRepeated(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 10}}, nil)
	b.ActivateUserLimit(1, 1, order.Ask, 5, 105)

	require.NoError(t, b.Cancel(1))
	rec, err := b.OrderInfo(1)
	require.NoError(t, err)
	assert.True(t, rec.Canceled)

	var stillPresent bool
	for _, lvl := range b.AskLevels() {
		for _, o := range lvl.Orders {
			if !o.ID.IsSynthetic() {
				stillPresent = true
			}
		}
	}
	assert.False(t, stillPresent, "canceled order must be evicted from the ladder")

	require.NoError(t, b.Cancel(1), "canceling an already-canceled order is a no-op")
}

func TestCancel_BeforeActivationPreventsRestingOnLateActivation(t *testing.T) {
	b := newTestBook()
	id := b.RegisterOrder()

	require.NoError(t, b.Cancel(id), "withdrawing an order registered but not yet activated must succeed")

	b.ActivateUserLimit(id, 10, order.Ask, 5, 100)

	rec, err := b.OrderInfo(id)
	require.NoError(t, err)
	assert.True(t, rec.Canceled)

	_, err = b.BestPrice(order.Ask)
	assert.ErrorIs(t, err, ErrEmptySide, "an order canceled before its own activation must never rest in the ladder")
}

func TestCancel_RejectsMarketOrder(t *testing.T) {
	b := newTestBook()
	b.UpdateBook(0, []Level{{Price: 105, Volume: 50}}, nil)
	require.NoError(t, b.ActivateUserMarket(1, 1, order.Bid, 10))

	err := b.Cancel(1)
	assert.ErrorIs(t, err, ErrNotLimitOrder)
}

func TestBestPrice_ReturnsErrEmptySideForUnpopulatedLadder(t *testing.T) {
	b := newTestBook()
	_, err := b.BestPrice(order.Ask)
	assert.ErrorIs(t, err, ErrEmptySide)
}

func TestOrderInfo_ReturnsErrUnknownOrderForUnregisteredID(t *testing.T) {
	b := newTestBook()
	_, err := b.OrderInfo(42)
	assert.ErrorIs(t, err, ErrUnknownOrder)
}
