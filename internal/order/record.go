package order

import (
	"errors"
	"fmt"
)

var (
	// ErrOverfill is returned when a fill would drain more than the
	// order's remaining volume.
	ErrOverfill = errors.New("order: fill volume exceeds remaining volume")
	// ErrFillBeforeSubmit is returned when a fill's timestamp precedes
	// the order's submit timestamp.
	ErrFillBeforeSubmit = errors.New("order: fill timestamp precedes submit timestamp")
	// ErrCancelMarket is returned when Cancel is called on a market order.
	ErrCancelMarket = errors.New("order: market orders cannot be canceled")
)

// Record is the mutable header shared by both order variants. Rather than
// a base-class hierarchy with virtual dispatch, variant-specific behavior
// (price-limit access, the canceled flag) is localized to the Kind==Limit
// fields; nothing else needs to branch on Kind except printing and
// cancellation.
type Record struct {
	ID               ID
	SubmitTimestamp  uint64
	Side             Side
	Kind             Kind
	InitialVolume    uint64
	RemainingVolume  uint64
	Fills            []Trade
	PriceLimit       uint64 // meaningful only when Kind == Limit
	Canceled         bool   // meaningful only when Kind == Limit
}

// NewMarket constructs a market order record with the given id, side and
// volume; it must be fully filled by the caller immediately upon activation.
func NewMarket(id ID, submitTimestamp uint64, side Side, volume uint64) *Record {
	return &Record{
		ID:              id,
		SubmitTimestamp: submitTimestamp,
		Side:            side,
		Kind:            Market,
		InitialVolume:   volume,
		RemainingVolume: volume,
	}
}

// NewLimit constructs a limit order record resting at priceLimit.
func NewLimit(id ID, submitTimestamp uint64, side Side, volume, priceLimit uint64) *Record {
	return &Record{
		ID:              id,
		SubmitTimestamp: submitTimestamp,
		Side:            side,
		Kind:            Limit,
		InitialVolume:   volume,
		RemainingVolume: volume,
		PriceLimit:      priceLimit,
	}
}

// Closed reports whether the order has no remaining volume.
func (r *Record) Closed() bool {
	return r.RemainingVolume == 0
}

// AddFill appends trade to the order's fill history and decrements its
// remaining volume. It fails if the trade overfills the order or predates
// its submission.
func (r *Record) AddFill(trade Trade) error {
	if trade.Volume > r.RemainingVolume {
		return fmt.Errorf("%w: order %s has %d remaining, fill asks for %d",
			ErrOverfill, r.ID, r.RemainingVolume, trade.Volume)
	}
	if trade.Timestamp < r.SubmitTimestamp {
		return fmt.Errorf("%w: order %s submitted at %d, fill at %d",
			ErrFillBeforeSubmit, r.ID, r.SubmitTimestamp, trade.Timestamp)
	}
	r.Fills = append(r.Fills, trade)
	r.RemainingVolume -= trade.Volume
	return nil
}

// ResetVolume replaces InitialVolume and RemainingVolume with v and clears
// the fill history. The order book does not call it: snapshot
// reconciliation constructs fresh synthetic records instead. It must never
// be called on a user order, since it would silently erase the user's fill
// history.
func (r *Record) ResetVolume(v uint64) {
	r.InitialVolume = v
	r.RemainingVolume = v
	r.Fills = nil
}

// AveragePrice is the volume-weighted mean fill price, 0 if unfilled.
func (r *Record) AveragePrice() float64 {
	if len(r.Fills) == 0 {
		return 0
	}
	var sumPV, sumV uint64
	for _, f := range r.Fills {
		sumPV += f.Price * f.Volume
		sumV += f.Volume
	}
	return float64(sumPV) / float64(sumV)
}

// Cancel marks a limit order canceled. It is an error to cancel a market
// order — market orders execute immediately on activation and never rest.
func (r *Record) Cancel() error {
	if r.Kind != Limit {
		return ErrCancelMarket
	}
	r.Canceled = true
	return nil
}

func (r *Record) String() string {
	return fmt.Sprintf("%s{id=%s side=%s submit=%d remaining=%d/%d price=%d canceled=%v fills=%d}",
		r.Kind, r.ID, r.Side, r.SubmitTimestamp, r.RemainingVolume, r.InitialVolume,
		r.PriceLimit, r.Canceled, len(r.Fills))
}
