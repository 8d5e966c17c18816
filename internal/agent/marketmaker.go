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

// MarketMakerConfig parameterizes a ladder market maker.
type MarketMakerConfig struct {
	ArrivalRate float64
	Rungs       int   // quote levels per side
	RungSize    int64 // tick distance between adjacent rungs
	Spread      int64 // distance between the innermost bid and ask
}

// MarketMaker quotes a symmetric ladder around its estimate of the final
// fundamental. On each arrival it pulls the whole ladder and requotes, so
// its book never mixes prices from different estimates.
type MarketMaker struct {
	*Trader
	cfg     MarketMakerConfig
	sched   *sched.Scheduler
	rng     *rand.Rand
	mkt     *market.Market
	fund    *fundamental.Process
	horizon ticks.Time
}

// NewMarketMaker builds a ladder market maker quoting in mkt.
func NewMarketMaker(t *Trader, cfg MarketMakerConfig, s *sched.Scheduler, rng *rand.Rand, mkt *market.Market, fund *fundamental.Process, horizon ticks.Time) *MarketMaker {
	if cfg.Rungs <= 0 || cfg.RungSize <= 0 {
		panic("agent: market maker ladder must have positive rungs and rung size")
	}
	if cfg.Spread < 2 {
		panic("agent: market maker spread below two ticks would cross itself")
	}
	return &MarketMaker{Trader: t, cfg: cfg, sched: s, rng: rng, mkt: mkt, fund: fund, horizon: horizon}
}

// Start schedules the market maker's first arrival.
func (m *MarketMaker) Start() { m.reschedule() }

func (m *MarketMaker) reschedule() {
	scheduleArrival(m.sched, m.rng, m.cfg.ArrivalRate, m.horizon,
		fmt.Sprintf("mm-%d-arrival", m.id), m.arrive)
}

func (m *MarketMaker) arrive(now ticks.Time) {
	defer m.reschedule()

	m.mkt.WithdrawAgent(m.id)

	center := m.fund.EstimateFinal(now, m.horizon)
	half := m.cfg.Spread / 2
	m.log.Debug("mm requote", "center", center.Ticks())
	for i := 0; i < m.cfg.Rungs; i++ {
		offset := half + int64(i)*m.cfg.RungSize
		bid := center.Sub(offset)
		ask := center.Add(offset)
		if bid >= 0 {
			m.mkt.Submit(m.id, book.Buy, bid, 1)
		}
		m.mkt.Submit(m.id, book.Sell, ask, 1)
	}
}
