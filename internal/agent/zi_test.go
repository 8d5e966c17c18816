package agent

import (
	"math/rand"
	"testing"

	"marketsim/internal/fundamental"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/pkg/ticks"
)

// flatFundamental holds exactly at mean: zero variance, zero jumps.
func flatFundamental(mean ticks.Price) *fundamental.Process {
	return fundamental.New(mean, 0, 0, 0, rand.New(rand.NewSource(1)))
}

func TestZIPairConserves(t *testing.T) {
	const horizon = ticks.Time(5000)
	s := sched.New(rand.New(rand.NewSource(3)))
	m := market.NewCDA(1, s, 1, testLogger())
	r := NewRouter()
	m.SubscribeTransactions(r)
	m.Open()

	fund := fundamental.New(1000, 0.05, 400, 0.5, rand.New(rand.NewSource(4)))
	cfg := ZIConfig{ArrivalRate: 0.05, SurplusMin: 0, SurplusMax: 50}

	zis := make([]*ZI, 4)
	for i := range zis {
		val := NewValuation(5, 1e4, rand.New(rand.NewSource(int64(10+i))))
		tr := NewTrader(i+1, "zi", 5, &val, testLogger())
		r.Add(tr)
		zis[i] = NewZI(tr, cfg, s, rand.New(rand.NewSource(int64(20+i))), m, fund, horizon)
		zis[i].Start()
	}
	s.AdvanceTo(horizon)

	var pos, cash int64
	for _, z := range zis {
		if p := z.Position(); p > 5 || p < -5 {
			t.Errorf("agent %d position %d outside limit", z.ID(), p)
		}
		pos += z.Position()
		cash += z.Cash()
	}
	if pos != 0 {
		t.Errorf("net position = %d, want 0", pos)
	}
	if cash != 0 {
		t.Errorf("net cash = %d, want 0", cash)
	}
	if len(m.Tape()) == 0 {
		t.Error("no trades over the whole run")
	}
}

func TestZIHoldsOneOrder(t *testing.T) {
	const horizon = ticks.Time(2000)
	s := sched.New(rand.New(rand.NewSource(3)))
	m := market.NewCDA(1, s, 1, testLogger())
	m.Open()

	val := NewValuation(5, 1e4, rand.New(rand.NewSource(1)))
	tr := NewTrader(1, "zi", 5, &val, testLogger())
	z := NewZI(tr, ZIConfig{ArrivalRate: 0.1, SurplusMin: 10, SurplusMax: 20}, s,
		rand.New(rand.NewSource(2)), m, flatFundamental(1000), horizon)
	z.Start()
	s.AdvanceTo(horizon)

	// Alone in the market nothing ever fills, and each arrival withdraws
	// the previous order, so exactly one side of the book is quoted.
	q := m.Quote()
	bids, asks := 0, 0
	if q.Bid.Defined() {
		bids = int(q.BidQty)
	}
	if q.Ask.Defined() {
		asks = int(q.AskQty)
	}
	if bids+asks != 1 {
		t.Errorf("book holds %d bid and %d ask units, want one order total", bids, asks)
	}
	if len(m.Tape()) != 0 {
		t.Error("a lone trader produced trades")
	}
}

func TestZIShadesAroundValue(t *testing.T) {
	const horizon = ticks.Time(2000)
	s := sched.New(rand.New(rand.NewSource(5)))
	m := market.NewCDA(1, s, 1, testLogger())
	m.Open()

	val := NewValuation(5, 0, rand.New(rand.NewSource(1))) // all private values zero
	tr := NewTrader(1, "zi", 5, &val, testLogger())
	z := NewZI(tr, ZIConfig{ArrivalRate: 0.05, SurplusMin: 10, SurplusMax: 30}, s,
		rand.New(rand.NewSource(6)), m, flatFundamental(1000), horizon)
	z.Start()
	s.AdvanceTo(horizon)

	// Value is exactly 1000, so every bid sits in [970, 990] and every ask
	// in [1010, 1030].
	q := m.Quote()
	if q.Bid.Defined() && (q.Bid < 970 || q.Bid > 990) {
		t.Errorf("bid %v outside the shaded band [970, 990]", q.Bid)
	}
	if q.Ask.Defined() && (q.Ask < 1010 || q.Ask > 1030) {
		t.Errorf("ask %v outside the shaded band [1010, 1030]", q.Ask)
	}
}

func TestMarketMakerLadder(t *testing.T) {
	const horizon = ticks.Time(500)
	s := sched.New(rand.New(rand.NewSource(3)))
	m := market.NewCDA(1, s, 1, testLogger())
	m.Open()

	tr := NewTrader(1, "mm", 1000, nil, testLogger())
	mm := NewMarketMaker(tr, MarketMakerConfig{
		ArrivalRate: 0.1, Rungs: 3, RungSize: 5, Spread: 10,
	}, s, rand.New(rand.NewSource(4)), m, flatFundamental(1000), horizon)
	mm.Start()
	s.AdvanceTo(horizon)

	q := m.Quote()
	if q.Bid != 995 || q.Ask != 1005 {
		t.Errorf("inner quote = %v / %v, want 995 / 1005", q.Bid, q.Ask)
	}
	if q.BidQty != 1 || q.AskQty != 1 {
		t.Errorf("inner quote depth = %d / %d, want 1 / 1", q.BidQty, q.AskQty)
	}
}

func TestMarketMakerRequotesNotAccumulates(t *testing.T) {
	const horizon = ticks.Time(5000)
	s := sched.New(rand.New(rand.NewSource(3)))
	m := market.NewCDA(1, s, 1, testLogger())
	m.Open()

	tr := NewTrader(1, "mm", 1000, nil, testLogger())
	mm := NewMarketMaker(tr, MarketMakerConfig{
		ArrivalRate: 0.05, Rungs: 2, RungSize: 5, Spread: 10,
	}, s, rand.New(rand.NewSource(4)), m, flatFundamental(1000), horizon)
	mm.Start()
	s.AdvanceTo(horizon)

	// Dozens of arrivals later the ladder is still exactly two rungs deep:
	// withdraw-all before requoting, no stacking at the same price.
	if q := m.Quote(); q.BidQty != 1 {
		t.Errorf("inner bid depth = %d after many requotes, want 1", q.BidQty)
	}
}
