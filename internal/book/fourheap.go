// Package book implements the four-heap order matching structure. Resting
// orders are partitioned into matched buys, matched sells, unmatched buys
// and unmatched sells. Between clears every matched buy prices at or above
// every matched sell, no unmatched buy prices above the matched-sell
// frontier and no unmatched sell prices below the matched-buy frontier.
// That keeps bid/ask quotes O(1) and clearing O(m) in the matched volume.
package book

import (
	"marketsim/pkg/ticks"
)

// FourHeap holds the four partitions for one market's book. It is not safe
// for concurrent use.
type FourHeap struct {
	// Heap heads: unmatched sells lowest-price first, matched sells
	// highest first, unmatched buys highest first, matched buys lowest
	// first. The heads of the matched heaps are the marginal pair.
	sellUnmatched, sellMatched *orderHeap
	buyUnmatched, buyMatched   *orderHeap
	size                       int64
}

// New builds an empty four-heap.
func New() *FourHeap {
	return &FourHeap{
		sellUnmatched: newOrderHeap(priceAscSeqAsc, unmatchedSlot),
		sellMatched:   newOrderHeap(priceDescSeqAsc, matchedSlot),
		buyUnmatched:  newOrderHeap(priceDescSeqAsc, unmatchedSlot),
		buyMatched:    newOrderHeap(priceAscSeqAsc, matchedSlot),
	}
}

// crosses reports whether a counterparty at oppPrice is acceptable to an
// order of the given side at ownPrice.
func crosses(side Side, oppPrice, ownPrice ticks.Price) bool {
	if side == Buy {
		return oppPrice <= ownPrice
	}
	return oppPrice >= ownPrice
}

func (h *FourHeap) own(side Side) (unmatched, matched *orderHeap) {
	if side == Buy {
		return h.buyUnmatched, h.buyMatched
	}
	return h.sellUnmatched, h.sellMatched
}

// Insert places an order, matching it against crossing unmatched orders of
// the opposite side and displacing weaker matched orders of its own side,
// restoring the four-heap invariant. The order must not already be in the
// book.
func (h *FourHeap) Insert(o *Order) {
	if o.unmatched <= 0 {
		panic("book: inserted order must have positive quantity")
	}
	h.size += o.unmatched

	ownUnmatched, ownMatched := h.own(o.Side)
	oppUnmatched, oppMatched := h.own(o.Side.Opposite())

	for o.unmatched > 0 {
		// Match against a crossing unmatched counterparty, but not while
		// the counterparty is better spent displacing one of our own
		// matched orders.
		if !oppUnmatched.empty() &&
			crosses(o.Side, oppUnmatched.peek().Price, o.Price) &&
			(ownMatched.empty() || crosses(o.Side, oppUnmatched.peek().Price, ownMatched.peek().Price)) {

			m := oppUnmatched.peek()
			if m.matched == 0 {
				oppMatched.push(m)
			}
			q := min64(o.unmatched, m.unmatched)
			o.unmatched -= q
			o.matched += q
			m.unmatched -= q
			m.matched += q
			if m.unmatched == 0 {
				oppUnmatched.pop()
			}
			continue
		}

		// Displace the weakest own-side matched order this order outranks.
		// That moves the matched frontier toward o.Price, so counterparties
		// skipped above come back into range on the next pass.
		if !ownMatched.empty() && ownMatched.less(ownMatched.peek(), o) {
			m := ownMatched.peek()
			if m.unmatched == 0 {
				ownUnmatched.push(m)
			}
			q := min64(o.unmatched, m.matched)
			o.unmatched -= q
			o.matched += q
			m.unmatched += q
			m.matched -= q
			if m.matched == 0 {
				ownMatched.pop()
			}
			continue
		}
		break
	}

	if o.unmatched != 0 {
		ownUnmatched.push(o)
	}
	if o.matched != 0 {
		ownMatched.push(o)
	}
}

// WithdrawAll removes the order's full remaining quantity.
func (h *FourHeap) WithdrawAll(o *Order) {
	if o.Quantity() > 0 {
		h.Withdraw(o, o.Quantity())
	}
}

// Withdraw removes quantity from an order in the book. Withdrawing matched
// quantity re-partitions: own-side unmatched orders that still cross take
// over the match where possible, otherwise the counterparty quantity becomes
// unmatched.
func (h *FourHeap) Withdraw(o *Order, quantity int64) {
	if quantity <= 0 {
		panic("book: withdraw quantity must be positive")
	}
	if quantity > o.Quantity() {
		panic("book: cannot withdraw more than the order holds")
	}
	h.size -= quantity

	ownUnmatched, ownMatched := h.own(o.Side)
	oppUnmatched, oppMatched := h.own(o.Side.Opposite())

	// Unmatched quantity goes first, it affects nothing else.
	if o.unmatched != 0 {
		q := min64(quantity, o.unmatched)
		o.unmatched -= q
		quantity -= q
		if o.unmatched == 0 {
			ownUnmatched.remove(o)
		}
	}

	// Re-partition the withdrawn match. Own-side unmatched orders that
	// cross the opposing matched frontier take it over; otherwise the worst
	// counterparty unmatches, which can bring the frontier within reach of
	// the next own-side candidate.
	for quantity > 0 {
		if !ownUnmatched.empty() &&
			crosses(o.Side, oppMatched.peek().Price, ownUnmatched.peek().Price) {

			m := ownUnmatched.peek()
			if m.matched == 0 {
				ownMatched.push(m)
			}
			q := min64(quantity, m.unmatched)
			o.matched -= q
			m.matched += q
			m.unmatched -= q
			quantity -= q
			if m.unmatched == 0 {
				ownUnmatched.pop()
			}
			continue
		}

		m := oppMatched.peek()
		if m.unmatched == 0 {
			oppUnmatched.push(m)
		}
		q := min64(quantity, m.matched)
		o.matched -= q
		m.matched -= q
		m.unmatched += q
		quantity -= q
		if m.matched == 0 {
			oppMatched.pop()
		}
	}

	if o.matched == 0 && o.matchedIdx >= 0 {
		ownMatched.remove(o)
	}
}

// Clear consumes every matched pair, best-priced (then earliest) orders
// first, and returns them. Partial overlaps split the larger order; after
// Clear no matched quantity remains.
func (h *FourHeap) Clear() []Match {
	buys := h.buyMatched.snapshot()
	sells := h.sellMatched.snapshot()
	sortOrders(buys, priceDescSeqAsc)
	sortOrders(sells, priceAscSeqAsc)

	h.buyMatched.clear()
	h.sellMatched.clear()

	var matches []Match
	var buy, sell *Order
	bi, si := 0, 0
	for bi < len(buys) || si < len(sells) {
		if buy == nil || buy.matched == 0 {
			if bi >= len(buys) {
				panic("book: matched volume imbalance")
			}
			buy = buys[bi]
			bi++
		}
		if sell == nil || sell.matched == 0 {
			if si >= len(sells) {
				panic("book: matched volume imbalance")
			}
			sell = sells[si]
			si++
		}
		q := min64(buy.matched, sell.matched)
		buy.matched -= q
		sell.matched -= q
		matches = append(matches, Match{Buy: buy, Sell: sell, Quantity: q})
		h.size -= 2 * q
	}
	return matches
}

// BidQuote returns the price a sell order must beat to be sure of matching:
// the max of the matched-sell frontier and the best unmatched buy.
// PriceNegInf when there is no bid.
func (h *FourHeap) BidQuote() ticks.Price {
	bid := ticks.PriceNegInf
	if m := h.sellMatched.peek(); m != nil {
		bid = ticks.MaxPrice(bid, m.Price)
	}
	if u := h.buyUnmatched.peek(); u != nil {
		bid = ticks.MaxPrice(bid, u.Price)
	}
	return bid
}

// AskQuote returns the price a buy order must beat to be sure of matching:
// the min of the matched-buy frontier and the best unmatched sell. PriceInf
// when there is no ask.
func (h *FourHeap) AskQuote() ticks.Price {
	ask := ticks.PriceInf
	if m := h.buyMatched.peek(); m != nil {
		ask = ticks.MinPrice(ask, m.Price)
	}
	if u := h.sellUnmatched.peek(); u != nil {
		ask = ticks.MinPrice(ask, u.Price)
	}
	return ask
}

// Size returns the total quantity resting in the book.
func (h *FourHeap) Size() int64 { return h.size }

// Empty reports whether the book holds no quantity.
func (h *FourHeap) Empty() bool { return h.size == 0 }

// Contains reports whether the order currently rests in this book.
func (h *FourHeap) Contains(o *Order) bool {
	return o.unmatchedIdx >= 0 || o.matchedIdx >= 0
}

func min64(a, b int64) int64 {
	if a < b {
		return a
	}
	return b
}

func sortOrders(orders []*Order, less func(a, b *Order) bool) {
	// Insertion sort; matched sets are tiny between clears.
	for i := 1; i < len(orders); i++ {
		for j := i; j > 0 && less(orders[j], orders[j-1]); j-- {
			orders[j], orders[j-1] = orders[j-1], orders[j]
		}
	}
}
