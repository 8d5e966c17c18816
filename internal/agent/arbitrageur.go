package agent

import (
	"marketsim/internal/book"
	"marketsim/internal/feed"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/pkg/ticks"
)

// Arbitrageur watches every market over a zero-delay feed and trades
// whenever the markets cross each other: a bid in one venue above an ask
// in another by more than its threshold. It sells to the high bid and
// buys the low ask at their midpoint, flattening the cross. Its edge is
// purely the feed: the routing view everyone else uses lags.
type Arbitrageur struct {
	*Trader
	sched    *sched.Scheduler
	markets  []*market.Market
	view     *feed.View
	alpha    int64 // minimum cross depth worth taking, in ticks
	reacting bool
}

// NewArbitrageur builds an arbitrageur over the given markets and wires
// its synchronous feed. alpha must be nonnegative.
func NewArbitrageur(t *Trader, s *sched.Scheduler, markets []*market.Market, alpha int64) *Arbitrageur {
	if alpha < 0 {
		panic("agent: arbitrage threshold must be nonnegative")
	}
	a := &Arbitrageur{
		Trader:  t,
		sched:   s,
		markets: markets,
		view:    feed.NewView(s, ticks.Immediate),
		alpha:   alpha,
	}
	a.view.OnApply(func(market.Quote) { a.react() })
	for _, m := range markets {
		m.SubscribeQuotes(a.view)
	}
	return a
}

// react takes every profitable cross currently visible. Submissions
// publish quotes that re-enter the synchronous view, so reentrant calls
// bail out and the outer loop picks up the refreshed picture.
func (a *Arbitrageur) react() {
	if a.reacting {
		return
	}
	a.reacting = true
	defer func() { a.reacting = false }()

	for {
		bidMkt, askMkt, bid, ask, qty := a.bestCross()
		if bidMkt == nil || askMkt == nil || bidMkt == askMkt {
			return
		}
		if bid.Ticks()-ask.Ticks() <= a.alpha {
			return
		}
		mid := ticks.NewPrice((float64(bid) + float64(ask)) / 2)
		a.log.Debug("taking cross",
			"bid", bid.Ticks(), "ask", ask.Ticks(), "mid", mid.Ticks(), "qty", qty)
		askMkt.Submit(a.id, book.Buy, mid, qty)
		bidMkt.Submit(a.id, book.Sell, mid, qty)
	}
}

func (a *Arbitrageur) bestCross() (bidMkt, askMkt *market.Market, bid, ask ticks.Price, qty int64) {
	bid, ask = ticks.PriceNegInf, ticks.PriceInf
	var bidQty, askQty int64
	for _, m := range a.markets {
		q := a.view.Quote(m.ID())
		if q.Bid.Defined() && q.Bid > bid {
			bid, bidQty, bidMkt = q.Bid, q.BidQty, m
		}
		if q.Ask.Defined() && q.Ask < ask {
			ask, askQty, askMkt = q.Ask, q.AskQty, m
		}
	}
	qty = bidQty
	if askQty < qty {
		qty = askQty
	}
	return bidMkt, askMkt, bid, ask, qty
}
