// Package sim assembles a run from its configuration: scheduler,
// fundamental, markets, feeds, agents and statistics, all seeded from one
// master generator so the same configuration reproduces the same run.
package sim

import (
	"fmt"
	"log/slog"
	"math/rand"

	"marketsim/internal/agent"
	"marketsim/internal/config"
	"marketsim/internal/feed"
	"marketsim/internal/fundamental"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/internal/stats"
	"marketsim/pkg/ticks"
)

// fundSampleEvery is the tick interval between fundamental observations
// on the statistics stream.
const fundSampleEvery = 100

// Result is what one completed run reports.
type Result struct {
	Summary          stats.Summary
	FinalFundamental ticks.Price
	Payoffs          []stats.PayoffEvent
}

// Sim is one fully wired run. Build with New, attach any extra bus
// subscribers, then Run once.
type Sim struct {
	cfg     *config.Config
	log     *slog.Logger
	horizon ticks.Time

	sched     *sched.Scheduler
	fund      *fundamental.Process
	markets   []*market.Market
	sip       *feed.SIP
	router    *agent.Router
	bus       *stats.Bus
	collector *stats.Collector
	traders   []*agent.Trader
	starters  []agent.Strategy
}

// New builds a run from cfg. The configuration must already validate.
func New(cfg *config.Config, log *slog.Logger) *Sim {
	if log == nil {
		log = slog.Default()
	}
	master := rand.New(rand.NewSource(cfg.Run.Seed))
	sub := func() *rand.Rand { return rand.New(rand.NewSource(master.Int63())) }

	s := &Sim{
		cfg:       cfg,
		log:       log,
		horizon:   ticks.NewTime(cfg.Run.Horizon),
		sched:     sched.New(sub()),
		bus:       stats.NewBus(),
		collector: stats.NewCollector(),
		router:    agent.NewRouter(),
	}
	s.bus.Subscribe(s.collector.Accept)

	s.fund = fundamental.New(
		ticks.Price(cfg.Fundamental.Mean),
		cfg.Fundamental.Kappa,
		cfg.Fundamental.ShockVar,
		cfg.Fundamental.ShockProb,
		sub(),
	)

	s.sip = feed.NewSIP(s.sched, ticks.NewTime(cfg.SIP.Latency))
	s.sip.SetStats(s.bus)

	for i, mc := range cfg.Markets {
		var m *market.Market
		switch mc.Type {
		case "cda":
			m = market.NewCDA(i+1, s.sched, cfg.Run.TickSize, log)
		case "call":
			m = market.NewCall(i+1, s.sched, ticks.NewTime(mc.ClearInterval), mc.ClearRatio, cfg.Run.TickSize, log)
		default:
			panic(fmt.Sprintf("sim: unknown market type %q", mc.Type))
		}
		m.SetStats(s.bus)
		m.SubscribeTransactions(s.router)
		s.sip.Register(m)
		s.markets = append(s.markets, m)
	}

	nextID := 1
	homeMarket := func(i int) *market.Market { return s.markets[i%len(s.markets)] }

	zi := cfg.Agents.ZI
	for i := 0; i < zi.Count; i++ {
		val := agent.NewValuation(zi.MaxPosition, zi.PVVar, sub())
		tr := agent.NewTrader(nextID, "zi", zi.MaxPosition, &val, log)
		z := agent.NewZI(tr, agent.ZIConfig{
			ArrivalRate: zi.ArrivalRate,
			SurplusMin:  zi.SurplusMin,
			SurplusMax:  zi.SurplusMax,
			Duration:    ticks.NewTime(zi.Duration),
		}, s.sched, sub(), homeMarket(i), s.fund, s.horizon)
		s.addTrader(tr, z)
		nextID++
	}

	mm := cfg.Agents.MarketMakers
	for i := 0; i < mm.Count; i++ {
		tr := agent.NewTrader(nextID, "mm", 1<<40, nil, log)
		maker := agent.NewMarketMaker(tr, agent.MarketMakerConfig{
			ArrivalRate: mm.ArrivalRate,
			Rungs:       mm.Rungs,
			RungSize:    mm.RungSize,
			Spread:      mm.Spread,
		}, s.sched, sub(), homeMarket(i), s.fund, s.horizon)
		s.addTrader(tr, maker)
		nextID++
	}

	for i := 0; i < cfg.Agents.Arbitrageurs.Count; i++ {
		tr := agent.NewTrader(nextID, "arb", 1<<40, nil, log)
		agent.NewArbitrageur(tr, s.sched, s.markets, cfg.Agents.Arbitrageurs.Alpha)
		s.addTrader(tr, nil)
		nextID++
	}

	return s
}

func (s *Sim) addTrader(tr *agent.Trader, st agent.Strategy) {
	s.router.Add(tr)
	s.traders = append(s.traders, tr)
	if st != nil {
		s.starters = append(s.starters, st)
	}
}

// Bus exposes the statistics bus so callers can attach persistence or
// streaming before Run.
func (s *Sim) Bus() *stats.Bus { return s.bus }

// Markets exposes the run's venues, in configuration order.
func (s *Sim) Markets() []*market.Market { return s.markets }

// SIP exposes the consolidated feed.
func (s *Sim) SIP() *feed.SIP { return s.sip }

// Run executes the simulation to its horizon, liquidates every position
// at the final fundamental value and returns the aggregated result.
func (s *Sim) Run() Result {
	s.log.Info("run starting",
		"seed", s.cfg.Run.Seed, "horizon", s.horizon.Ticks(),
		"markets", len(s.markets), "agents", len(s.traders))

	for _, m := range s.markets {
		m.Open()
	}
	for _, st := range s.starters {
		st.Start()
	}
	s.sampleFundamental(ticks.TimeZero)

	s.sched.AdvanceTo(s.horizon)

	final := s.fund.ValueAt(s.horizon)
	for _, m := range s.markets {
		for _, tr := range s.traders {
			m.WithdrawAgent(tr.ID())
		}
	}

	payoffs := make([]stats.PayoffEvent, 0, len(s.traders))
	for _, tr := range s.traders {
		ev := stats.PayoffEvent{
			Time:    s.horizon,
			AgentID: tr.ID(),
			Role:    tr.Role(),
			Payoff:  tr.LiquidateAt(final),
		}
		payoffs = append(payoffs, ev)
		s.bus.Emit(ev)
	}

	s.log.Info("run finished",
		"final_fundamental", final.Ticks(), "sip_trades", len(s.sip.Tape()))

	return Result{
		Summary:          s.collector.Summary(),
		FinalFundamental: final,
		Payoffs:          payoffs,
	}
}

// sampleFundamental emits the fundamental value at t and reschedules
// itself until the horizon.
func (s *Sim) sampleFundamental(t ticks.Time) {
	s.bus.Emit(stats.FundamentalSample{Time: t, Value: s.fund.ValueAt(t).Ticks()})
	next := t.Add(fundSampleEvery)
	if next.After(s.horizon) {
		return
	}
	s.sched.ScheduleAt(next, sched.Activity{
		Name: "fundamental-sample",
		Run:  s.sampleFundamental,
	})
}
