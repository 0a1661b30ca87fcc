package order

import "fmt"

// Trade is an immutable record of an executed fill. Price and Volume are
// fixed-point integers in units of 1/100,000; Timestamp is milliseconds
// since epoch. IsBuyerMaker is the tape convention: true means the passive
// (resting) side was the buyer, i.e. the aggressor was a seller.
type Trade struct {
	Timestamp    uint64
	Volume       uint64
	Price        uint64
	IsBuyerMaker bool
}

func (t Trade) String() string {
	return fmt.Sprintf("Trade{ts=%d vol=%d price=%d buyerMaker=%v}",
		t.Timestamp, t.Volume, t.Price, t.IsBuyerMaker)
}
