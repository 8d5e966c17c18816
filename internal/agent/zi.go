package agent

import (
	"fmt"
	"math/rand"

	"marketsim/internal/book"
	"marketsim/internal/fundamental"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/pkg/ticks"
)

// ZIConfig parameterizes one zero-intelligence background trader.
type ZIConfig struct {
	ArrivalRate float64    // expected arrivals per tick
	SurplusMin  int64      // demanded surplus range, uniform
	SurplusMax  int64
	Duration    ticks.Time // order lifetime, zero rests until withdrawn
}

// ZI is a zero-intelligence background trader. On each arrival it cancels
// its previous order, picks a side at random (forced toward flat at the
// position limit), values the asset at its estimate of the final
// fundamental plus its private marginal value, shades by a random demanded
// surplus, and submits a single unit through NMS routing.
type ZI struct {
	*Trader
	cfg     ZIConfig
	sched   *sched.Scheduler
	rng     *rand.Rand
	mkt     *market.Market
	fund    *fundamental.Process
	horizon ticks.Time
	live    market.OrderRef
}

// NewZI builds a zero-intelligence trader arriving at mkt. The trader must
// carry a valuation.
func NewZI(t *Trader, cfg ZIConfig, s *sched.Scheduler, rng *rand.Rand, mkt *market.Market, fund *fundamental.Process, horizon ticks.Time) *ZI {
	if t.val == nil {
		panic(fmt.Sprintf("agent: background trader %d has no private valuation", t.id))
	}
	if cfg.SurplusMin < 0 || cfg.SurplusMax < cfg.SurplusMin {
		panic("agent: surplus range must satisfy 0 <= min <= max")
	}
	return &ZI{Trader: t, cfg: cfg, sched: s, rng: rng, mkt: mkt, fund: fund, horizon: horizon}
}

// Start schedules the trader's first arrival.
func (z *ZI) Start() { z.reschedule() }

func (z *ZI) reschedule() {
	scheduleArrival(z.sched, z.rng, z.cfg.ArrivalRate, z.horizon,
		fmt.Sprintf("zi-%d-arrival", z.id), z.arrive)
}

func (z *ZI) arrive(now ticks.Time) {
	defer z.reschedule()

	if z.live.Valid() {
		z.live.Market.Withdraw(z.live)
		z.live = market.OrderRef{}
	}

	side := z.pickSide()
	value, ok := z.valueFor(side, now)
	if !ok {
		return
	}
	surplus := z.cfg.SurplusMin
	if spread := z.cfg.SurplusMax - z.cfg.SurplusMin; spread > 0 {
		surplus += z.rng.Int63n(spread + 1)
	}
	var price ticks.Price
	if side == book.Buy {
		price = value.Sub(surplus).Nonnegative()
	} else {
		price = value.Add(surplus).Nonnegative()
	}

	z.log.Debug("zi arrival", "side", side.String(), "value", value.Ticks(), "price", price.Ticks())
	if z.cfg.Duration > 0 {
		z.live = z.mkt.SubmitNMSWithDuration(z.id, side, price, 1, z.cfg.Duration)
	} else {
		z.live = z.mkt.SubmitNMS(z.id, side, price, 1)
	}
}

func (z *ZI) pickSide() book.Side {
	switch {
	case z.pos >= z.maxPos:
		return book.Sell
	case z.pos <= -z.maxPos:
		return book.Buy
	case z.rng.Intn(2) == 0:
		return book.Buy
	default:
		return book.Sell
	}
}

// valueFor is the trader's reservation price for a one-unit trade on side:
// the estimated final fundamental plus the private marginal value at the
// current position.
func (z *ZI) valueFor(side book.Side, now ticks.Time) (ticks.Price, bool) {
	est := z.fund.EstimateFinal(now, z.horizon)
	var pv int64
	var ok bool
	if side == book.Buy {
		pv, ok = z.val.BuyValue(z.pos)
	} else {
		pv, ok = z.val.SellValue(z.pos)
	}
	if !ok {
		return 0, false
	}
	return est.Add(pv).Nonnegative(), true
}
