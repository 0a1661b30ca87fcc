// Package order models the immutable trade record and the mutable order
// record (market/limit variant) that the order book and kernel operate on.
package order

import "fmt"

// Side is the intent of an order: ASK to sell, BID to buy.
type Side int

const (
	Ask Side = iota
	Bid
)

func (s Side) String() string {
	switch s {
	case Ask:
		return "ASK"
	case Bid:
		return "BID"
	default:
		return fmt.Sprintf("Side(%d)", int(s))
	}
}

// Kind distinguishes the two order variants the kernel supports.
// Spec.md's design notes ask for a sum type with a shared header rather
// than a base-class hierarchy; Kind is that discriminant.
type Kind int

const (
	Market Kind = iota
	Limit
)

func (k Kind) String() string {
	switch k {
	case Market:
		return "MARKET"
	case Limit:
		return "LIMIT"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// ID is a tagged order identifier: either a real id assigned to a user
// order at registration, or the Synthetic sentinel representing resting
// liquidity manufactured from a snapshot. Using a tagged struct instead
// of an in-band -1 keeps synthetic and user orders from ever colliding.
type ID struct {
	value     uint64
	synthetic bool
}

// SyntheticID is the shared identifier of every snapshot-derived order.
var SyntheticID = ID{synthetic: true}

// UserID wraps a real, non-negative user order id.
func UserID(v uint64) ID {
	return ID{value: v}
}

// IsSynthetic reports whether this id denotes manufactured resting liquidity.
func (id ID) IsSynthetic() bool {
	return id.synthetic
}

// Value returns the numeric id. Panics if called on the synthetic sentinel;
// callers must check IsSynthetic first.
func (id ID) Value() uint64 {
	if id.synthetic {
		panic("order: Value called on synthetic id")
	}
	return id.value
}

func (id ID) String() string {
	if id.synthetic {
		return "synthetic"
	}
	return fmt.Sprintf("%d", id.value)
}

// Less defines a total order over IDs used only to break (price, timestamp)
// ties in the ladder comparator. Synthetic sorts before any user id, which
// is inconsequential since two orders at the same (price, timestamp) are
// never both synthetic (reconciliation never produces duplicate synthetic
// price points).
func (id ID) Less(other ID) bool {
	if id.synthetic != other.synthetic {
		return id.synthetic
	}
	return id.value < other.value
}
