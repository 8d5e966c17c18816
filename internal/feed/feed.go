// Package feed carries market data from markets to observers with
// latency. A View is one observer's delayed picture of the quotes; the
// SIP aggregates every market into a consolidated best bid and offer and
// a merged transaction tape. Both drop stale updates by per-market
// sequence number, never by wall clock: with symmetric latency updates
// arrive in order, but nothing downstream relies on that.
package feed

import (
	"fmt"
	"sort"

	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/internal/stats"
	"marketsim/pkg/ticks"
)

// deliver runs fn after the feed's latency. Immediate means synchronous,
// inside the current activity; zero means this tick but through the
// queue, racing everything else scheduled at the same tick.
func deliver(s *sched.Scheduler, latency ticks.Time, name string, run func(ticks.Time)) {
	act := sched.Activity{Name: name, Run: run}
	if latency.IsImmediate() {
		s.ExecuteNow(act)
		return
	}
	s.ScheduleAt(s.Now().Add(latency), act)
}

// View is one observer's latency-delayed picture of market quotes.
// Register it with each market to watch via SubscribeQuotes.
type View struct {
	sched   *sched.Scheduler
	latency ticks.Time
	quotes  map[int]market.Quote
	lastSeq map[int]uint64
	onApply func(q market.Quote)
}

// NewView builds a view with the given delivery latency.
func NewView(s *sched.Scheduler, latency ticks.Time) *View {
	return &View{
		sched:   s,
		latency: latency,
		quotes:  make(map[int]market.Quote),
		lastSeq: make(map[int]uint64),
	}
}

// OnApply registers a callback invoked for every quote that actually
// updates the view, after it is stored. Stale quotes never reach it.
func (v *View) OnApply(fn func(q market.Quote)) { v.onApply = fn }

// AcceptQuote implements market.QuoteSink. The quote becomes visible
// after the view's latency.
func (v *View) AcceptQuote(q market.Quote) {
	deliver(v.sched, v.latency, fmt.Sprintf("view-quote-%d", q.MarketID), func(ticks.Time) {
		v.apply(q)
	})
}

func (v *View) apply(q market.Quote) {
	if last, seen := v.lastSeq[q.MarketID]; seen && q.Seq <= last {
		return
	}
	v.lastSeq[q.MarketID] = q.Seq
	v.quotes[q.MarketID] = q
	if v.onApply != nil {
		v.onApply(q)
	}
}

// Quote returns the view's current picture of one market, EmptyQuote if
// no update has arrived yet.
func (v *View) Quote(marketID int) market.Quote {
	if q, ok := v.quotes[marketID]; ok {
		return q
	}
	return market.EmptyQuote(marketID)
}

// SIP is the consolidated feed: it watches every registered market,
// maintains the NBBO and a transaction tape merged by execution time, and
// serves as the routing view for SubmitNMS. Its latency is the delay
// between a market event and the consolidated picture reflecting it.
type SIP struct {
	sched   *sched.Scheduler
	latency ticks.Time
	markets map[int]*market.Market
	quotes  map[int]market.Quote
	lastSeq map[int]uint64
	nbbo    market.BestBidAsk
	tape    []market.Transaction
	bus     *stats.Bus
}

// NewSIP builds a consolidated feed with the given latency.
func NewSIP(s *sched.Scheduler, latency ticks.Time) *SIP {
	return &SIP{
		sched:   s,
		latency: latency,
		markets: make(map[int]*market.Market),
		quotes:  make(map[int]market.Quote),
		lastSeq: make(map[int]uint64),
		nbbo:    market.EmptyBestBidAsk(),
	}
}

// SetStats attaches the statistics bus for NBBO spread samples.
func (p *SIP) SetStats(bus *stats.Bus) { p.bus = bus }

// Register wires the SIP to a market: it subscribes to the market's
// quotes and transactions and installs itself as the market's routing
// view.
func (p *SIP) Register(m *market.Market) {
	p.markets[m.ID()] = m
	m.SubscribeQuotes(p)
	m.SubscribeTransactions(p)
	m.SetNBBO(p)
}

// NBBO implements market.NBBOView.
func (p *SIP) NBBO() market.BestBidAsk { return p.nbbo }

// Tape returns every transaction the SIP has seen, ordered by execution
// time.
func (p *SIP) Tape() []market.Transaction { return p.tape }

// AcceptQuote implements market.QuoteSink.
func (p *SIP) AcceptQuote(q market.Quote) {
	deliver(p.sched, p.latency, fmt.Sprintf("sip-quote-%d", q.MarketID), func(ticks.Time) {
		p.applyQuote(q)
	})
}

func (p *SIP) applyQuote(q market.Quote) {
	if last, seen := p.lastSeq[q.MarketID]; seen && q.Seq <= last {
		return
	}
	p.lastSeq[q.MarketID] = q.Seq
	p.quotes[q.MarketID] = q
	p.recompute()
}

// recompute walks markets in id order so price ties always resolve to the
// lowest id, independent of map iteration.
func (p *SIP) recompute() {
	ids := make([]int, 0, len(p.quotes))
	for id := range p.quotes {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	nbbo := market.EmptyBestBidAsk()
	for _, id := range ids {
		q := p.quotes[id]
		if q.Bid.Defined() && q.Bid > nbbo.Bid {
			nbbo.Bid = q.Bid
			nbbo.BidQty = q.BidQty
			nbbo.BidMarket = p.markets[id]
		}
		if q.Ask.Defined() && q.Ask < nbbo.Ask {
			nbbo.Ask = q.Ask
			nbbo.AskQty = q.AskQty
			nbbo.AskMarket = p.markets[id]
		}
	}
	p.nbbo = nbbo
	if p.bus != nil && nbbo.Bid.Defined() && nbbo.Ask.Defined() {
		p.bus.Emit(stats.NBBOSpreadSample{
			Time:  p.sched.Now(),
			Value: float64(nbbo.Spread()),
		})
	}
}

// AcceptTransactions implements market.TransactionSink.
func (p *SIP) AcceptTransactions(txs []market.Transaction) {
	batch := make([]market.Transaction, len(txs))
	copy(batch, txs)
	deliver(p.sched, p.latency, fmt.Sprintf("sip-txs-%d", txs[0].MarketID), func(ticks.Time) {
		p.applyTransactions(batch)
	})
}

func (p *SIP) applyTransactions(txs []market.Transaction) {
	for _, tx := range txs {
		i := len(p.tape)
		for i > 0 && p.tape[i-1].ExecTime.After(tx.ExecTime) {
			i--
		}
		p.tape = append(p.tape, market.Transaction{})
		copy(p.tape[i+1:], p.tape[i:])
		p.tape[i] = tx
	}
}
