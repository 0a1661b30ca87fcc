// Package book implements the two price-time priority ladders that make
// up a single instrument's order book: snapshot reconciliation, user limit
// insertion, user market crossing, tape-replay crossing and cancellation.
// Grounded in the teacher's internal/engine.OrderBook (github.com/tidwall/btree
// price-level trees) and in original_source/BackTest/orderbook.{h,cpp}
// for the exact reconciliation/crossing semantics.
package book

import (
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/tidwall/btree"

	"ledgerbook/internal/order"
)

var (
	// ErrUnknownOrder is returned by operations addressing an order id
	// that was never registered.
	ErrUnknownOrder = errors.New("book: unknown order id")
	// ErrEmptySide is returned by BestPrice when the requested side has
	// no resting orders.
	ErrEmptySide = errors.New("book: side is empty")
	// ErrInsufficientLiquidity is returned when a user market order or a
	// historical trade asks for more volume than the targeted ladder
	// can supply. Both are data/strategy errors per the spec: fatal,
	// and — unlike the original C++ — never partially applied.
	ErrInsufficientLiquidity = errors.New("book: insufficient resting liquidity")
	// ErrNotLimitOrder is returned when Cancel targets a market order.
	ErrNotLimitOrder = errors.New("book: order is not a limit order")
)

// Level is one (price, volume) pair of an incoming snapshot side.
type Level struct {
	Price  uint64
	Volume uint64
}

// OrderBook holds both price-time priority ladders for a single instrument
// plus the bookkeeping lists needed for PnL scanning and observability.
type OrderBook struct {
	asks *btree.BTreeG[*PriceLevel]
	bids *btree.BTreeG[*PriceLevel]

	userLimitAsks  []*order.Record
	userLimitBids  []*order.Record
	userMarketAsks []*order.Record
	userMarketBids []*order.Record

	tape []order.Trade

	byID   map[uint64]*order.Record
	nextID uint64

	// canceledBeforeActivation holds ids withdrawn while still registered
	// but not yet activated (order.Record not constructed yet) — see
	// Cancel and ActivateUserLimit.
	canceledBeforeActivation map[uint64]bool

	log zerolog.Logger
}

// New constructs an empty order book. log may be the zero value, in which
// case zerolog's global disabled logger is used.
func New(log zerolog.Logger) *OrderBook {
	return &OrderBook{
		asks:                     btree.NewBTreeG(askLess),
		bids:                     btree.NewBTreeG(bidLess),
		byID:                     make(map[uint64]*order.Record),
		canceledBeforeActivation: make(map[uint64]bool),
		log:                      log,
	}
}

func (b *OrderBook) ladder(side order.Side) *btree.BTreeG[*PriceLevel] {
	if side == order.Ask {
		return b.asks
	}
	return b.bids
}

func (b *OrderBook) oppositeLadder(side order.Side) *btree.BTreeG[*PriceLevel] {
	if side == order.Ask {
		return b.bids
	}
	return b.asks
}

// insertLadder places rec into its side's ladder, creating the price level
// if needed.
func insertLadder(ladder *btree.BTreeG[*PriceLevel], price uint64, rec *order.Record) {
	lvl, ok := ladder.Get(&PriceLevel{Price: price})
	if !ok {
		lvl = &PriceLevel{Price: price}
		ladder.Set(lvl)
	}
	lvl.insert(rec)
}

// removeFromLadder drops rec from its side's ladder, deleting the price
// level entirely if it is left empty.
func removeFromLadder(ladder *btree.BTreeG[*PriceLevel], price uint64, submitTimestamp uint64, id order.ID) {
	lvl, ok := ladder.Get(&PriceLevel{Price: price})
	if !ok {
		return
	}
	if empty := lvl.remove(submitTimestamp, id); empty {
		ladder.Delete(lvl)
	}
}

// ---------------------------------------------------------------------
// 4.2.1 Snapshot reconciliation
// ---------------------------------------------------------------------

// UpdateBook reconciles both ladders against a fresh snapshot taken at
// snapshotTimestamp. User orders are preserved verbatim; synthetic orders
// are replaced by fresh synthetic orders sized against the incoming
// levels, preserving time priority; residual incoming volume becomes new
// synthetic liquidity at snapshotTimestamp.
func (b *OrderBook) UpdateBook(snapshotTimestamp uint64, newAsks, newBids []Level) {
	b.asks = b.reconcileSide(b.asks, askLess, order.Ask, snapshotTimestamp, newAsks)
	b.bids = b.reconcileSide(b.bids, bidLess, order.Bid, snapshotTimestamp, newBids)
}

func (b *OrderBook) reconcileSide(
	old *btree.BTreeG[*PriceLevel],
	less func(a, b *PriceLevel) bool,
	side order.Side,
	snapshotTimestamp uint64,
	incoming []Level,
) *btree.BTreeG[*PriceLevel] {
	residual := make(map[uint64]uint64, len(incoming))
	for _, lvl := range incoming {
		if lvl.Volume > 0 {
			residual[lvl.Price] += lvl.Volume
		}
	}

	fresh := btree.NewBTreeG(less)

	old.Scan(func(lvl *PriceLevel) bool {
		for _, rec := range lvl.Orders {
			if rec.Closed() {
				continue
			}
			if !rec.ID.IsSynthetic() {
				insertLadder(fresh, rec.PriceLimit, rec)
				continue
			}
			avail, ok := residual[rec.PriceLimit]
			if !ok || avail == 0 {
				// Open question in spec.md §9: residual synthetic depth
				// whose price is absent from the new snapshot is dropped.
				continue
			}
			newVolume := min(avail, rec.RemainingVolume)
			syntheticRec := order.NewLimit(order.SyntheticID, rec.SubmitTimestamp, side, newVolume, rec.PriceLimit)
			insertLadder(fresh, rec.PriceLimit, syntheticRec)
			residual[rec.PriceLimit] = avail - newVolume
		}
		return true
	})

	for price, vol := range residual {
		if vol > 0 {
			insertLadder(fresh, price, order.NewLimit(order.SyntheticID, snapshotTimestamp, side, vol, price))
		}
	}

	return fresh
}

// ---------------------------------------------------------------------
// 4.2.2 Registering a user order id
// ---------------------------------------------------------------------

// RegisterOrder allocates the next sequential order id and reserves a slot
// so a submitter can receive it synchronously, even though the order
// itself activates only after post-latency.
func (b *OrderBook) RegisterOrder() uint64 {
	id := b.nextID
	b.nextID++
	b.byID[id] = nil
	return id
}

// ---------------------------------------------------------------------
// 4.2.3 Activating a user limit order
// ---------------------------------------------------------------------

// ActivateUserLimit constructs the user's limit order, stores it, and rests
// it in the ladder. No crossing is attempted; a marketable limit rests
// until the tape produces trades that reach it. If id was withdrawn by a
// Cancel call that arrived before this activation, the record is
// constructed already canceled and never rests in the ladder.
func (b *OrderBook) ActivateUserLimit(id, submitTimestamp uint64, side order.Side, volume, priceLimit uint64) {
	rec := order.NewLimit(order.UserID(id), submitTimestamp, side, volume, priceLimit)
	b.byID[id] = rec

	if side == order.Ask {
		b.userLimitAsks = append(b.userLimitAsks, rec)
	} else {
		b.userLimitBids = append(b.userLimitBids, rec)
	}

	if b.canceledBeforeActivation[id] {
		delete(b.canceledBeforeActivation, id)
		_ = rec.Cancel()
		b.log.Debug().Uint64("order_id", id).Msg("user limit order activated already canceled")
		return
	}

	insertLadder(b.ladder(side), priceLimit, rec)

	b.log.Debug().Uint64("order_id", id).Uint64("submit_ts", submitTimestamp).
		Str("side", side.String()).Uint64("volume", volume).Uint64("price", priceLimit).
		Msg("user limit order activated")
}

// ---------------------------------------------------------------------
// 4.2.4 Activating a user market order
// ---------------------------------------------------------------------

// ActivateUserMarket drains synthetic resting liquidity from the opposite
// ladder to fill a user market order. Only synthetic depth counts as
// executable liquidity; user limit orders are skipped over, never
// crossed against. Fails — without mutating any state — if the opposite
// ladder does not hold enough synthetic volume.
func (b *OrderBook) ActivateUserMarket(id, submitTimestamp uint64, side order.Side, volume uint64) error {
	ladder := b.oppositeLadder(side)
	isBuyerMaker := side == order.Ask

	if available := syntheticDepth(ladder); available < volume {
		return fmt.Errorf("%w: market order for %d needs %d synthetic volume, ladder has %d",
			ErrInsufficientLiquidity, id, volume, available)
	}

	rec := order.NewMarket(order.UserID(id), submitTimestamp, side, volume)
	b.byID[id] = rec
	if side == order.Ask {
		b.userMarketAsks = append(b.userMarketAsks, rec)
	} else {
		b.userMarketBids = append(b.userMarketBids, rec)
	}

	var drainedLevels []*PriceLevel
	ladder.Scan(func(lvl *PriceLevel) bool {
		for _, resting := range lvl.Orders {
			if rec.Closed() {
				break
			}
			if resting.ID.IsSynthetic() && !resting.Closed() {
				qty := min(rec.RemainingVolume, resting.RemainingVolume)
				trade := order.Trade{
					Timestamp:    submitTimestamp,
					Volume:       qty,
					Price:        resting.PriceLimit,
					IsBuyerMaker: isBuyerMaker,
				}
				mustAddFill(resting, trade)
				mustAddFill(rec, trade)
				b.tape = append(b.tape, trade)
			}
		}
		drainedLevels = append(drainedLevels, lvl)
		return !rec.Closed()
	})
	pruneClosed(ladder, drainedLevels)

	b.log.Debug().Uint64("order_id", id).Str("side", side.String()).Uint64("volume", volume).
		Msg("user market order filled against synthetic depth")
	return nil
}

func syntheticDepth(ladder *btree.BTreeG[*PriceLevel]) uint64 {
	var total uint64
	ladder.Scan(func(lvl *PriceLevel) bool {
		for _, rec := range lvl.Orders {
			if rec.ID.IsSynthetic() && !rec.Closed() {
				total += rec.RemainingVolume
			}
		}
		return true
	})
	return total
}

// pruneClosed removes now-closed orders from the scanned levels and drops
// any level left empty, preserving the invariant that ladders hold only
// open orders.
func pruneClosed(ladder *btree.BTreeG[*PriceLevel], levels []*PriceLevel) {
	for _, lvl := range levels {
		kept := lvl.Orders[:0]
		for _, rec := range lvl.Orders {
			if !rec.Closed() {
				kept = append(kept, rec)
			}
		}
		lvl.Orders = kept
		if len(lvl.Orders) == 0 {
			ladder.Delete(lvl)
		}
	}
}

func mustAddFill(rec *order.Record, trade order.Trade) {
	if err := rec.AddFill(trade); err != nil {
		// Both call sites precompute available volume before draining,
		// so a failure here means our own accounting is broken.
		panic(fmt.Sprintf("book: invariant violated adding fill: %v", err))
	}
}

// ---------------------------------------------------------------------
// 4.2.5 Tape-replay crossing
// ---------------------------------------------------------------------

// ApplyHistoricalTrade routes a tape trade to the ladder it aggressed
// against and drains it through open orders (synthetic and user limit
// alike) in priority order, filling any user limit that sits at or inside
// the aggressor's reach. Fails — without mutating state — if the ladder
// cannot absorb the full trade volume, signalling tape/book inconsistency.
func (b *OrderBook) ApplyHistoricalTrade(trade order.Trade) error {
	ladder := b.ladder(targetSide(trade))

	if available := openDepth(ladder); available < trade.Volume {
		return fmt.Errorf("%w: historical trade of %d exceeds ladder depth %d",
			ErrInsufficientLiquidity, trade.Volume, available)
	}

	remaining := trade.Volume
	var touched []*PriceLevel
	ladder.Scan(func(lvl *PriceLevel) bool {
		for _, resting := range lvl.Orders {
			if remaining == 0 {
				break
			}
			if resting.Closed() || (resting.Kind == order.Limit && resting.Canceled) {
				continue
			}
			qty := min(remaining, resting.RemainingVolume)
			fill := order.Trade{
				Timestamp:    trade.Timestamp,
				Volume:       qty,
				Price:        resting.PriceLimit,
				IsBuyerMaker: trade.IsBuyerMaker,
			}
			mustAddFill(resting, fill)
			b.tape = append(b.tape, fill)
			remaining -= qty
		}
		touched = append(touched, lvl)
		return remaining > 0
	})
	pruneClosed(ladder, touched)
	return nil
}

// targetSide returns which ladder a historical trade aggressed against:
// is_buyer_maker true means the aggressor sold into the bid ladder.
func targetSide(trade order.Trade) order.Side {
	if trade.IsBuyerMaker {
		return order.Bid
	}
	return order.Ask
}

func openDepth(ladder *btree.BTreeG[*PriceLevel]) uint64 {
	var total uint64
	ladder.Scan(func(lvl *PriceLevel) bool {
		for _, rec := range lvl.Orders {
			if rec.Closed() || (rec.Kind == order.Limit && rec.Canceled) {
				continue
			}
			total += rec.RemainingVolume
		}
		return true
	})
	return total
}

// ---------------------------------------------------------------------
// 4.2.6 Cancellation
// ---------------------------------------------------------------------

// Cancel marks the user's limit order canceled and evicts it from its
// ladder. A no-op if the order already closed naturally before the
// cancellation's deferred timestamp arrived. Callers (the kernel) only
// ever route limit-order ids here; if id was registered (via
// RegisterOrder) but its activation hasn't run yet, the withdrawal is
// recorded so ActivateUserLimit constructs it already canceled instead
// of resting it.
func (b *OrderBook) Cancel(id uint64) error {
	rec, ok := b.byID[id]
	if !ok {
		return fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	if rec == nil {
		b.canceledBeforeActivation[id] = true
		b.log.Debug().Uint64("order_id", id).Msg("user limit order canceled before activation")
		return nil
	}
	if rec.Kind != order.Limit {
		return fmt.Errorf("%w: %d", ErrNotLimitOrder, id)
	}
	if rec.Closed() {
		return nil
	}
	if err := rec.Cancel(); err != nil {
		return err
	}
	removeFromLadder(b.ladder(rec.Side), rec.PriceLimit, rec.SubmitTimestamp, rec.ID)
	b.log.Debug().Uint64("order_id", id).Msg("user limit order canceled")
	return nil
}

// ---------------------------------------------------------------------
// Views
// ---------------------------------------------------------------------

// OrderInfo returns the registered order for id.
func (b *OrderBook) OrderInfo(id uint64) (*order.Record, error) {
	rec, ok := b.byID[id]
	if !ok || rec == nil {
		return nil, fmt.Errorf("%w: %d", ErrUnknownOrder, id)
	}
	return rec, nil
}

// BestPrice returns the best (highest-priority) price on side.
func (b *OrderBook) BestPrice(side order.Side) (uint64, error) {
	lvl, ok := b.ladder(side).Min()
	if !ok {
		return 0, fmt.Errorf("%w: %s", ErrEmptySide, side)
	}
	return lvl.Price, nil
}

// AskLevels returns the ask ladder ordered best-price-first.
func (b *OrderBook) AskLevels() []*PriceLevel {
	return levels(b.asks)
}

// BidLevels returns the bid ladder ordered best-price-first.
func (b *OrderBook) BidLevels() []*PriceLevel {
	return levels(b.bids)
}

func levels(ladder *btree.BTreeG[*PriceLevel]) []*PriceLevel {
	out := make([]*PriceLevel, 0, ladder.Len())
	ladder.Scan(func(lvl *PriceLevel) bool {
		out = append(out, lvl)
		return true
	})
	return out
}

func (b *OrderBook) UserLimitAsks() []*order.Record  { return b.userLimitAsks }
func (b *OrderBook) UserLimitBids() []*order.Record  { return b.userLimitBids }
func (b *OrderBook) UserMarketAsks() []*order.Record { return b.userMarketAsks }
func (b *OrderBook) UserMarketBids() []*order.Record { return b.userMarketBids }
func (b *OrderBook) Tape() []order.Trade             { return b.tape }
