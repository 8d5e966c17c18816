// Package stats carries the observation side of a run: a closed set of
// statistic events published by the core, an in-process bus, a collector
// that aggregates them, and a sqlite store for offline analysis. The core
// only ever calls Emit; everything downstream is a subscriber.
package stats

import (
	"marketsim/pkg/ticks"
)

// Kind discriminates the closed set of statistic events.
type Kind uint16

const (
	KindTransaction Kind = iota + 1
	KindSpread
	KindMidquote
	KindBid
	KindAsk
	KindNBBOSpread
	KindFundamental
	KindPayoff
)

func (k Kind) String() string {
	switch k {
	case KindTransaction:
		return "transaction"
	case KindSpread:
		return "spread"
	case KindMidquote:
		return "midquote"
	case KindBid:
		return "bid"
	case KindAsk:
		return "ask"
	case KindNBBOSpread:
		return "nbbo_spread"
	case KindFundamental:
		return "fundamental"
	case KindPayoff:
		return "payoff"
	default:
		return "unknown"
	}
}

// Event is one statistic observation. Dispatch on EventKind; no other
// variants exist.
type Event interface {
	EventKind() Kind
	EventTime() ticks.Time
}

// TransactionEvent records one completed trade.
type TransactionEvent struct {
	Time      ticks.Time `json:"t"`
	MarketID  int        `json:"market"`
	BuyAgent  int        `json:"buy_agent"`
	SellAgent int        `json:"sell_agent"`
	Price     int64      `json:"price"`
	Quantity  int64      `json:"qty"`
}

func (e TransactionEvent) EventKind() Kind       { return KindTransaction }
func (e TransactionEvent) EventTime() ticks.Time { return e.Time }

// QuoteSample records one quote-derived scalar (spread, midquote, bid or
// ask level) for a market. NaN marks an undefined side.
type QuoteSample struct {
	Kind     Kind       `json:"kind"`
	Time     ticks.Time `json:"t"`
	MarketID int        `json:"market"`
	Value    float64    `json:"value"`
}

func (e QuoteSample) EventKind() Kind       { return e.Kind }
func (e QuoteSample) EventTime() ticks.Time { return e.Time }

// NBBOSpreadSample records the consolidated spread after an NBBO update.
type NBBOSpreadSample struct {
	Time  ticks.Time `json:"t"`
	Value float64    `json:"value"`
}

func (e NBBOSpreadSample) EventKind() Kind       { return KindNBBOSpread }
func (e NBBOSpreadSample) EventTime() ticks.Time { return e.Time }

// FundamentalSample records the fundamental value at one tick.
type FundamentalSample struct {
	Time  ticks.Time `json:"t"`
	Value int64      `json:"value"`
}

func (e FundamentalSample) EventKind() Kind       { return KindFundamental }
func (e FundamentalSample) EventTime() ticks.Time { return e.Time }

// PayoffEvent records an agent's final payoff after liquidation.
type PayoffEvent struct {
	Time    ticks.Time `json:"t"`
	AgentID int        `json:"agent"`
	Role    string     `json:"role"`
	Payoff  int64      `json:"payoff"`
}

func (e PayoffEvent) EventKind() Kind       { return KindPayoff }
func (e PayoffEvent) EventTime() ticks.Time { return e.Time }

// Bus fans events out to subscribers in registration order, synchronously.
// Subscribers must not publish while handling an event.
type Bus struct {
	subs []func(Event)
}

// NewBus builds an empty bus.
func NewBus() *Bus { return &Bus{} }

// Subscribe registers a handler for every subsequent event.
func (b *Bus) Subscribe(fn func(Event)) {
	b.subs = append(b.subs, fn)
}

// Emit delivers the event to every subscriber. Safe on a nil bus so
// publishers need no guard.
func (b *Bus) Emit(ev Event) {
	if b == nil {
		return
	}
	for _, fn := range b.subs {
		fn(ev)
	}
}
