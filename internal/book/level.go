package book

import "ledgerbook/internal/order"

// PriceLevel is one price point of a ladder: every resting order (synthetic
// or user) quoting exactly Price, held in time-priority order (earliest
// SubmitTimestamp first, ties broken by order id — see order.ID.Less).
//
// Grounded in the teacher's engine.PriceLevel (internal/engine/orderbook.go),
// generalized from a single float64 price to the fixed-point uint64 unit
// this spec requires, and from "[]*Order" insertion order to an explicitly
// maintained time-priority order (the teacher never reconciles against
// snapshots, so it never needed to re-sort a level).
type PriceLevel struct {
	Price  uint64
	Orders []*order.Record
}

// insert places rec into the level preserving ascending
// (SubmitTimestamp, ID) order.
func (lvl *PriceLevel) insert(rec *order.Record) {
	i := 0
	for ; i < len(lvl.Orders); i++ {
		o := lvl.Orders[i]
		if o.SubmitTimestamp > rec.SubmitTimestamp ||
			(o.SubmitTimestamp == rec.SubmitTimestamp && rec.ID.Less(o.ID)) {
			break
		}
	}
	lvl.Orders = append(lvl.Orders, nil)
	copy(lvl.Orders[i+1:], lvl.Orders[i:])
	lvl.Orders[i] = rec
}

// remove drops the order matching (submitTimestamp, id) from the level, if
// present. Reports whether the level is now empty.
func (lvl *PriceLevel) remove(submitTimestamp uint64, id order.ID) bool {
	for i, o := range lvl.Orders {
		if o.SubmitTimestamp == submitTimestamp && o.ID == id {
			lvl.Orders = append(lvl.Orders[:i], lvl.Orders[i+1:]...)
			break
		}
	}
	return len(lvl.Orders) == 0
}

// askLess orders ask price levels ascending (best ask = lowest price first).
func askLess(a, b *PriceLevel) bool { return a.Price < b.Price }

// bidLess orders bid price levels descending (best bid = highest price first).
func bidLess(a, b *PriceLevel) bool { return a.Price > b.Price }
