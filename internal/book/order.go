package book

import (
	"fmt"

	"marketsim/pkg/ticks"
)

// Side is the direction of an order.
type Side int8

const (
	Buy Side = iota
	Sell
)

func (s Side) String() string {
	if s == Buy {
		return "BUY"
	}
	return "SELL"
}

// Opposite returns the other side.
func (s Side) Opposite() Side {
	if s == Buy {
		return Sell
	}
	return Buy
}

// Order is a resting order inside one four-heap. Seq is the owning market's
// strictly increasing market time at submission; it is the time-priority
// tie-break, so two orders in one book never share a Seq. The quantity is
// split between a matched and an unmatched part as the book re-partitions.
type Order struct {
	Side  Side
	Price ticks.Price
	Seq   uint64

	unmatched, matched int64

	// Heap slots. An order lives in at most its side's unmatched and
	// matched heaps at once; -1 means not present.
	unmatchedIdx, matchedIdx int
}

// NewOrder builds an order ready for insertion. Quantity must be positive.
func NewOrder(side Side, price ticks.Price, quantity int64, seq uint64) *Order {
	if quantity <= 0 {
		panic(fmt.Sprintf("book: order quantity %d must be positive", quantity))
	}
	return &Order{
		Side:         side,
		Price:        price,
		Seq:          seq,
		unmatched:    quantity,
		unmatchedIdx: -1,
		matchedIdx:   -1,
	}
}

// Quantity returns the order's remaining quantity, matched or not. Zero
// means the order has been fully consumed and should be retired.
func (o *Order) Quantity() int64 { return o.unmatched + o.matched }

// MatchedQuantity returns the part of the order currently eligible to
// transact on the next clear.
func (o *Order) MatchedQuantity() int64 { return o.matched }

func (o *Order) String() string {
	return fmt.Sprintf("<%d| %v %d @ %v>", o.Seq, o.Side, o.Quantity(), o.Price)
}

// Match is one matched pair produced by a clear, before pricing.
type Match struct {
	Buy, Sell *Order
	Quantity  int64
}
