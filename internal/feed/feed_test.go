package feed

import (
	"io"
	"log/slog"
	"math/rand"
	"testing"

	"marketsim/internal/book"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/pkg/ticks"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestViewLatencyDelaysQuotes(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	m := market.NewCDA(1, s, 1, testLogger())
	v := NewView(s, 100)
	m.SubscribeQuotes(v)
	m.Open()

	// Quote published at t=0 on submission, a second at t=30.
	m.Submit(10, book.Buy, 100, 1)
	s.ScheduleAt(30, sched.Activity{Name: "submit", Run: func(ticks.Time) {
		m.Submit(10, book.Buy, 105, 1)
	}})

	s.AdvanceTo(99)
	if q := v.Quote(1); q.Bid.Defined() {
		t.Fatalf("view saw bid %v before latency elapsed", q.Bid)
	}
	s.AdvanceTo(100)
	if q := v.Quote(1); q.Bid != 100 {
		t.Fatalf("view bid at t=100 = %v, want 100", q.Bid)
	}
	s.AdvanceTo(130)
	if q := v.Quote(1); q.Bid != 105 {
		t.Fatalf("view bid at t=130 = %v, want 105", q.Bid)
	}
}

func TestViewDropsStaleBySeq(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	v := NewView(s, ticks.Immediate)

	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 105, Ask: ticks.PriceInf, Seq: 2})
	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 100, Ask: ticks.PriceInf, Seq: 1})

	if q := v.Quote(1); q.Bid != 105 {
		t.Errorf("stale quote overwrote the view: bid = %v, want 105", q.Bid)
	}

	// Equal sequence is stale too.
	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 99, Ask: ticks.PriceInf, Seq: 2})
	if q := v.Quote(1); q.Bid != 105 {
		t.Errorf("equal-seq quote applied: bid = %v, want 105", q.Bid)
	}
}

func TestViewStalenessIsPerMarket(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	v := NewView(s, ticks.Immediate)

	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 100, Ask: ticks.PriceInf, Seq: 9})
	v.AcceptQuote(market.Quote{MarketID: 2, Bid: 101, Ask: ticks.PriceInf, Seq: 1})

	if q := v.Quote(2); q.Bid != 101 {
		t.Errorf("low-seq quote from a different market dropped: bid = %v, want 101", q.Bid)
	}
}

func TestViewOnApplySkipsStale(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	v := NewView(s, ticks.Immediate)
	var applied int
	v.OnApply(func(market.Quote) { applied++ })

	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 100, Ask: ticks.PriceInf, Seq: 2})
	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 99, Ask: ticks.PriceInf, Seq: 1})
	v.AcceptQuote(market.Quote{MarketID: 1, Bid: 102, Ask: ticks.PriceInf, Seq: 3})

	if applied != 2 {
		t.Errorf("callback ran %d times, want 2", applied)
	}
}

func TestSIPNBBOAcrossMarkets(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	m1 := market.NewCDA(1, s, 1, testLogger())
	m2 := market.NewCDA(2, s, 1, testLogger())
	sip := NewSIP(s, ticks.Immediate)
	sip.Register(m1)
	sip.Register(m2)
	m1.Open()
	m2.Open()

	m1.Submit(10, book.Buy, 100, 1)
	m1.Submit(20, book.Sell, 110, 2)
	m2.Submit(30, book.Buy, 102, 3)
	m2.Submit(40, book.Sell, 112, 1)

	n := sip.NBBO()
	if n.Bid != 102 || n.BidMarket != m2 || n.BidQty != 3 {
		t.Errorf("NBBO bid = %d @ %v from %v, want 3 @ 102 from market-2", n.BidQty, n.Bid, n.BidMarket)
	}
	if n.Ask != 110 || n.AskMarket != m1 || n.AskQty != 2 {
		t.Errorf("NBBO ask = %d @ %v from %v, want 2 @ 110 from market-1", n.AskQty, n.Ask, n.AskMarket)
	}
	if n.Crossed() {
		t.Error("NBBO reported crossed for a normal book")
	}
}

func TestSIPLatencyLagsMarkets(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	m := market.NewCDA(1, s, 1, testLogger())
	sip := NewSIP(s, 50)
	sip.Register(m)
	m.Open()

	m.Submit(10, book.Buy, 100, 1)
	if n := sip.NBBO(); n.Bid.Defined() {
		t.Fatalf("NBBO bid %v visible before latency elapsed", n.Bid)
	}
	s.AdvanceTo(50)
	if n := sip.NBBO(); n.Bid != 100 {
		t.Fatalf("NBBO bid at t=50 = %v, want 100", n.Bid)
	}
}

func TestSIPCrossedNBBO(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	m1 := market.NewCDA(1, s, 1, testLogger())
	m2 := market.NewCDA(2, s, 1, testLogger())
	sip := NewSIP(s, ticks.Immediate)
	sip.Register(m1)
	sip.Register(m2)
	m1.Open()
	m2.Open()

	// Bid in one market above the ask in the other: crossed across venues,
	// invisible to either market alone.
	m1.Submit(10, book.Buy, 120, 1)
	m2.Submit(20, book.Sell, 110, 1)

	n := sip.NBBO()
	if !n.Crossed() {
		t.Fatalf("NBBO %v @ %v not reported crossed", n.Bid, n.Ask)
	}
}

func TestSIPTapeMergedByExecTime(t *testing.T) {
	s := sched.New(rand.New(rand.NewSource(1)))
	m1 := market.NewCDA(1, s, 1, testLogger())
	m2 := market.NewCDA(2, s, 1, testLogger())
	sip := NewSIP(s, ticks.Immediate)
	sip.Register(m1)
	sip.Register(m2)
	m1.Open()
	m2.Open()

	trade := func(m *market.Market, price ticks.Price) sched.Activity {
		return sched.Activity{Name: "trade", Run: func(ticks.Time) {
			m.Submit(10, book.Buy, price, 1)
			m.Submit(20, book.Sell, price, 1)
		}}
	}
	s.ScheduleAt(10, trade(m1, 100))
	s.ScheduleAt(20, trade(m2, 105))
	s.ScheduleAt(30, trade(m1, 102))
	s.AdvanceTo(40)

	tape := sip.Tape()
	if len(tape) != 3 {
		t.Fatalf("tape has %d trades, want 3", len(tape))
	}
	for i := 1; i < len(tape); i++ {
		if tape[i].ExecTime.Before(tape[i-1].ExecTime) {
			t.Fatalf("tape out of order at %d: %v after %v", i, tape[i].ExecTime, tape[i-1].ExecTime)
		}
	}
	if tape[1].MarketID != 2 {
		t.Errorf("middle trade from market %d, want 2", tape[1].MarketID)
	}
}
