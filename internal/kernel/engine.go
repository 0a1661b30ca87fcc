// Package kernel is the simulation kernel: it advances simulated time,
// merges the five event sources (snapshots, tape trades, pending user
// limits, pending user markets, pending cancels), enforces latency and
// call-frequency constraints, and computes running PnL.
//
// Grounded in original_source/BackTest/backtest.{h,cpp} for exact
// semantics (ProcessQueue's tie-break order, the fee-direction PnL
// convention) and in the teacher's internal/net server for the ambient
// logging/lifecycle idiom, adapted here to a synchronous, single-threaded
// component instead of a goroutine-driven one.
package kernel

import (
	"container/heap"
	"fmt"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"ledgerbook/internal/book"
	"ledgerbook/internal/order"
)

// Snapshot is one timestamped top-of-book reading: parallel (price,
// volume) levels for both sides, as produced by the feed reader.
type Snapshot struct {
	Timestamp uint64
	Asks      []book.Level
	Bids      []book.Level
}

type pendingLimit struct {
	activateAt uint64
	id         uint64
	side       order.Side
	volume     uint64
	price      uint64
}

type pendingMarket struct {
	activateAt uint64
	id         uint64
	side       order.Side
	volume     uint64
}

type pendingCancel struct {
	activateAt uint64
	id         uint64
}

// Engine is the simulation kernel bound to one instrument's feeds.
type Engine struct {
	RunID uuid.UUID

	book *book.OrderBook
	cfg  Config
	log  zerolog.Logger

	snapshots []Snapshot
	trades    []order.Trade
	snapIdx   int
	tradeIdx  int

	pendingLimits  []pendingLimit
	limitHead      int
	pendingMarkets []pendingMarket
	marketHead     int
	pendingCancels []pendingCancel
	cancelHead     int

	now      uint64
	lastCall uint64
	// called is false until the first submit/cancel call is accepted, so
	// lastCall's zero value is not mistaken for a call at time 0.
	called bool
}

// New constructs a kernel over the given snapshot/trade feeds, starting at
// simulated time 0 with no prior accepted call.
func New(snapshots []Snapshot, trades []order.Trade, cfg Config, log zerolog.Logger) *Engine {
	runID := uuid.New()
	return &Engine{
		RunID:     runID,
		book:      book.New(log.With().Str("run_id", runID.String()).Logger()),
		cfg:       cfg,
		log:       log.With().Str("run_id", runID.String()).Logger(),
		snapshots: snapshots,
		trades:    trades,
	}
}

// Now returns the current simulated time.
func (e *Engine) Now() uint64 { return e.now }

// callAllowed reports whether a public submit/cancel call is accepted at
// the current simulated time, per the call-frequency gate in spec.md §4.3.2.
func (e *Engine) callAllowed() bool {
	return !e.called || e.now >= e.lastCall+e.cfg.CallFrequencyMS
}

// SendLimit submits a user limit order. Returns (id, true) on acceptance,
// or (0, false) if rejected by the call-frequency gate. The order itself
// activates (rests in the ladder) only after PostLatencyMS has elapsed.
func (e *Engine) SendLimit(side order.Side, volume, price uint64) (uint64, bool) {
	if !e.callAllowed() {
		return 0, false
	}
	e.lastCall = e.now
	e.called = true
	id := e.book.RegisterOrder()
	e.pendingLimits = append(e.pendingLimits, pendingLimit{
		activateAt: e.now + e.cfg.PostLatencyMS,
		id:         id,
		side:       side,
		volume:     volume,
		price:      price,
	})
	e.log.Debug().Uint64("order_id", id).Str("side", side.String()).
		Uint64("volume", volume).Uint64("price", price).Msg("limit order queued")
	return id, true
}

// SendMarket submits a user market order, queued identically to SendLimit.
// Activation later fails fatally if the opposite ladder lacks enough
// synthetic depth — see ActivateUserMarket.
func (e *Engine) SendMarket(side order.Side, volume uint64) (uint64, bool) {
	if !e.callAllowed() {
		return 0, false
	}
	e.lastCall = e.now
	e.called = true
	id := e.book.RegisterOrder()
	e.pendingMarkets = append(e.pendingMarkets, pendingMarket{
		activateAt: e.now + e.cfg.PostLatencyMS,
		id:         id,
		side:       side,
		volume:     volume,
	})
	e.log.Debug().Uint64("order_id", id).Str("side", side.String()).
		Uint64("volume", volume).Msg("market order queued")
	return id, true
}

// WithdrawLimit requests cancellation of a user limit order, whether it is
// already resting or still waiting on its own post-latency activation —
// per spec.md §4.2.2, an id is usable for a cancel request from the
// moment SendLimit returns it, even though the order itself activates
// later (spec.md §8 scenario S4). It is rejected (false) by the
// call-frequency gate, by an id that was never registered, by a market
// order (pending or activated), or — per spec.md §7 — by a limit order
// that is already closed or canceled; otherwise the cancellation takes
// effect after CancelLatencyMS, during which the order can still be
// filled.
func (e *Engine) WithdrawLimit(id uint64) bool {
	if !e.callAllowed() {
		return false
	}
	if !e.cancelEligible(id) {
		return false
	}
	e.lastCall = e.now
	e.called = true
	e.pendingCancels = append(e.pendingCancels, pendingCancel{
		activateAt: e.now + e.cfg.CancelLatencyMS,
		id:         id,
	})
	e.log.Debug().Uint64("order_id", id).Msg("cancel queued")
	return true
}

// cancelEligible reports whether id names a limit order that can still be
// withdrawn: either already activated and open, or still sitting in the
// pending-limit queue awaiting its own activation. Market orders, pending
// or activated, and unknown ids are never eligible.
func (e *Engine) cancelEligible(id uint64) bool {
	if rec, err := e.book.OrderInfo(id); err == nil {
		return rec.Kind == order.Limit && !rec.Closed() && !rec.Canceled
	}
	for i := e.limitHead; i < len(e.pendingLimits); i++ {
		if e.pendingLimits[i].id == id {
			return true
		}
	}
	return false
}

// Advance moves simulated time forward by delta, applying every event
// with timestamp <= the new now, in timestamp order with the fixed
// per-source tie-break of spec.md §4.3.1. Returns the new now, or an
// error if applying an event hit a data inconsistency or strategy error
// (spec.md §7 kinds 2-3) — in which case no event past the failing one
// has been applied.
func (e *Engine) Advance(delta uint64) (uint64, error) {
	e.now += delta
	for {
		applied, err := e.applyNext()
		if err != nil {
			return e.now, err
		}
		if !applied {
			break
		}
	}
	return e.now, nil
}

// ProcessBeforeUnlock advances just enough time for the next submit/cancel
// call to clear the call-frequency gate, so a strategy can synchronize
// without guessing the remaining cooldown.
func (e *Engine) ProcessBeforeUnlock() (uint64, error) {
	if e.callAllowed() {
		return e.now, nil
	}
	return e.Advance(e.lastCall + e.cfg.CallFrequencyMS - e.now)
}

// applyNext applies the single globally-earliest pending event across all
// five sources, if its timestamp is <= now. Reports whether an event was
// applied.
func (e *Engine) applyNext() (bool, error) {
	h := &candidateHeap{}
	heap.Init(h)

	if e.snapIdx < len(e.snapshots) {
		heap.Push(h, candidate{timestamp: e.snapshots[e.snapIdx].Timestamp, src: sourceSnapshot})
	}
	if e.tradeIdx < len(e.trades) {
		heap.Push(h, candidate{timestamp: e.trades[e.tradeIdx].Timestamp, src: sourceTrade})
	}
	if e.limitHead < len(e.pendingLimits) {
		heap.Push(h, candidate{timestamp: e.pendingLimits[e.limitHead].activateAt, src: sourcePendingLimit})
	}
	if e.marketHead < len(e.pendingMarkets) {
		heap.Push(h, candidate{timestamp: e.pendingMarkets[e.marketHead].activateAt, src: sourcePendingMarket})
	}
	if e.cancelHead < len(e.pendingCancels) {
		heap.Push(h, candidate{timestamp: e.pendingCancels[e.cancelHead].activateAt, src: sourcePendingCancel})
	}

	if h.Len() == 0 {
		return false, nil
	}
	next := (*h)[0]
	if next.timestamp > e.now {
		return false, nil
	}

	switch next.src {
	case sourceSnapshot:
		snap := e.snapshots[e.snapIdx]
		e.book.UpdateBook(snap.Timestamp, snap.Asks, snap.Bids)
		e.snapIdx++
	case sourceTrade:
		trade := e.trades[e.tradeIdx]
		e.tradeIdx++
		if err := e.book.ApplyHistoricalTrade(trade); err != nil {
			return false, fmt.Errorf("kernel: applying historical trade at ts=%d: %w", trade.Timestamp, err)
		}
	case sourcePendingLimit:
		p := e.pendingLimits[e.limitHead]
		e.limitHead++
		e.book.ActivateUserLimit(p.id, p.activateAt, p.side, p.volume, p.price)
	case sourcePendingMarket:
		p := e.pendingMarkets[e.marketHead]
		e.marketHead++
		if err := e.book.ActivateUserMarket(p.id, p.activateAt, p.side, p.volume); err != nil {
			return false, fmt.Errorf("kernel: activating market order %d: %w", p.id, err)
		}
	case sourcePendingCancel:
		p := e.pendingCancels[e.cancelHead]
		e.cancelHead++
		if err := e.book.Cancel(p.id); err != nil {
			return false, fmt.Errorf("kernel: canceling order %d: %w", p.id, err)
		}
	}
	return true, nil
}

// Exhausted reports whether every snapshot, tape trade, and already-queued
// pending submission/cancellation has been applied. It does not predict
// whether a strategy will submit more work later.
func (e *Engine) Exhausted() bool {
	return e.snapIdx >= len(e.snapshots) &&
		e.tradeIdx >= len(e.trades) &&
		e.limitHead >= len(e.pendingLimits) &&
		e.marketHead >= len(e.pendingMarkets) &&
		e.cancelHead >= len(e.pendingCancels)
}

// BestBid returns the best resting bid price.
func (e *Engine) BestBid() (uint64, error) { return e.book.BestPrice(order.Bid) }

// BestAsk returns the best resting ask price.
func (e *Engine) BestAsk() (uint64, error) { return e.book.BestPrice(order.Ask) }

// OrderInfo returns the registered order for id.
func (e *Engine) OrderInfo(id uint64) (*order.Record, error) { return e.book.OrderInfo(id) }

func (e *Engine) AskLevels() []*book.PriceLevel   { return e.book.AskLevels() }
func (e *Engine) BidLevels() []*book.PriceLevel   { return e.book.BidLevels() }
func (e *Engine) Tape() []order.Trade             { return e.book.Tape() }
func (e *Engine) UserLimitAsks() []*order.Record  { return e.book.UserLimitAsks() }
func (e *Engine) UserLimitBids() []*order.Record  { return e.book.UserLimitBids() }
func (e *Engine) UserMarketAsks() []*order.Record { return e.book.UserMarketAsks() }
func (e *Engine) UserMarketBids() []*order.Record { return e.book.UserMarketBids() }

// PnL is the running cash/asset position, computed on demand from fills.
// Fees are applied symmetrically on both legs: the limit-order fee to all
// ASK fills and the market-order fee to all BID fills, regardless of
// which order type produced the fill — preserved from the original
// engine's accounting convention (spec.md §9).
type PnL struct {
	Cash      int64
	Asset     int64
	Timestamp uint64
}

func (e *Engine) PnL() PnL {
	var cash, asset int64

	applyAsk := func(recs []*order.Record) {
		for _, rec := range recs {
			for _, f := range rec.Fills {
				cash += int64(f.Price) * int64(f.Volume) * (FeeBase - int64(e.cfg.LimitOrderFee)) / FeeBase
				asset -= int64(f.Volume)
			}
		}
	}
	applyBid := func(recs []*order.Record) {
		for _, rec := range recs {
			for _, f := range rec.Fills {
				cash -= int64(f.Price) * int64(f.Volume) * (FeeBase - int64(e.cfg.MarketOrderFee)) / FeeBase
				asset += int64(f.Volume)
			}
		}
	}

	applyAsk(e.book.UserLimitAsks())
	applyAsk(e.book.UserMarketAsks())
	applyBid(e.book.UserLimitBids())
	applyBid(e.book.UserMarketBids())

	return PnL{Cash: cash, Asset: asset, Timestamp: e.now}
}
