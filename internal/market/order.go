package market

import (
	"fmt"

	"marketsim/internal/book"
	"marketsim/pkg/ticks"
)

// OrderRef is the handle an agent holds for an outstanding order. Order
// state lives only in the market's order table; the ref is just enough to
// ask that market to withdraw. The zero ref is invalid.
type OrderRef struct {
	Market *Market
	ID     uint64
}

// Valid reports whether the ref points at a market.
func (r OrderRef) Valid() bool { return r.Market != nil }

func (r OrderRef) String() string {
	if !r.Valid() {
		return "order<nil>"
	}
	return fmt.Sprintf("order %d@%s", r.ID, r.Market)
}

// orderRecord is the market's authoritative state for one live order. The
// ID doubles as the market time at submission, so it is strictly increasing
// and never reused within a market.
type orderRecord struct {
	id        uint64
	agent     int
	side      book.Side
	price     ticks.Price
	submitted ticks.Time
	entry     *book.Order
}

// Quote is one market's published best bid and offer. Absent sides carry
// the boundary sentinels (PriceNegInf bid, PriceInf ask) so aggregation
// needs no nil handling. Seq is the market time at publication, strictly
// increasing per market: it, and not Time, decides staleness downstream.
type Quote struct {
	MarketID int
	Bid, Ask ticks.Price
	BidQty   int64
	AskQty   int64
	Time     ticks.Time
	Seq      uint64
}

// EmptyQuote is the quote of a market nobody has traded in.
func EmptyQuote(marketID int) Quote {
	return Quote{MarketID: marketID, Bid: ticks.PriceNegInf, Ask: ticks.PriceInf}
}

// Defined reports whether both sides of the quote exist.
func (q Quote) Defined() bool { return q.Bid.Defined() && q.Ask.Defined() }

// Spread returns ask minus bid in ticks; undefined sides make it PriceInf
// wide.
func (q Quote) Spread() ticks.Price {
	if !q.Defined() {
		return ticks.PriceInf
	}
	return q.Ask - q.Bid
}

// Midquote returns the quote midpoint. Second return is false when a side
// is missing.
func (q Quote) Midquote() (float64, bool) {
	if !q.Defined() {
		return 0, false
	}
	return (float64(q.Ask) + float64(q.Bid)) / 2, true
}

func (q Quote) String() string {
	bid, ask := "-", "-"
	if q.Bid.Defined() {
		bid = fmt.Sprintf("%d @ %v", q.BidQty, q.Bid)
	}
	if q.Ask.Defined() {
		ask = fmt.Sprintf("%d @ %v", q.AskQty, q.Ask)
	}
	return fmt.Sprintf("(Bid: %s, Ask: %s)", bid, ask)
}

// Transaction is one immutable matching event.
type Transaction struct {
	MarketID  int
	BuyOrder  uint64
	SellOrder uint64
	BuyAgent  int
	SellAgent int
	Price     ticks.Price
	Quantity  int64
	ExecTime  ticks.Time
	Seq       uint64
}

func (t Transaction) String() string {
	return fmt.Sprintf("trade %d @ %v at %v (market %d, buy %d, sell %d)",
		t.Quantity, t.Price, t.ExecTime, t.MarketID, t.BuyAgent, t.SellAgent)
}

// BestBidAsk is a consolidated best bid and offer across markets, carrying
// the market that holds each side so orders can be routed there.
type BestBidAsk struct {
	BidMarket *Market
	AskMarket *Market
	Bid, Ask  ticks.Price
	BidQty    int64
	AskQty    int64
}

// EmptyBestBidAsk is the consolidated quote before any market has reported.
func EmptyBestBidAsk() BestBidAsk {
	return BestBidAsk{Bid: ticks.PriceNegInf, Ask: ticks.PriceInf}
}

// Crossed reports whether the consolidated bid is at or above the ask: a
// latency-arbitrage opportunity when the two sides sit in different markets.
func (b BestBidAsk) Crossed() bool {
	return b.Bid.Defined() && b.Ask.Defined() && b.Bid >= b.Ask
}

// Spread returns the consolidated spread, PriceInf when a side is missing.
func (b BestBidAsk) Spread() ticks.Price {
	if !b.Bid.Defined() || !b.Ask.Defined() {
		return ticks.PriceInf
	}
	return b.Ask - b.Bid
}
