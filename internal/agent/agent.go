// Package agent holds the trading strategies and the state they share: a
// position and cash account, a private valuation for background traders,
// and a fill router that credits trades back to their owners. Strategies
// schedule their own market arrivals; the simulation only starts them.
package agent

import (
	"fmt"
	"log/slog"
	"math"
	"math/rand"
	"sort"

	"marketsim/internal/book"
	"marketsim/internal/market"
	"marketsim/internal/sched"
	"marketsim/pkg/safe"
	"marketsim/pkg/ticks"
)

// Strategy is a trading strategy that drives itself: Start books its first
// market arrival and every strategy reschedules its own subsequent ones.
// Purely reactive strategies (the arbitrageur) have no Start; they hang off
// a feed instead.
type Strategy interface {
	Start()
}

// Valuation is a background trader's private value for holding the asset:
// one marginal value per unit between -max and +max position, drawn
// independently and sorted descending so marginal utility diminishes.
type Valuation struct {
	values []int64
	maxPos int64
}

// NewValuation draws a valuation for positions in [-maxPos, maxPos] with
// per-unit values N(0, pvVar).
func NewValuation(maxPos int64, pvVar float64, rng *rand.Rand) Valuation {
	if maxPos <= 0 {
		panic(fmt.Sprintf("agent: max position %d must be positive", maxPos))
	}
	std := math.Sqrt(pvVar)
	values := make([]int64, 2*maxPos)
	for i := range values {
		values[i] = int64(math.RoundToEven(std * rng.NormFloat64()))
	}
	sort.Slice(values, func(i, j int) bool { return values[i] > values[j] })
	return Valuation{values: values, maxPos: maxPos}
}

// BuyValue returns the marginal value of buying one unit at the given
// position. Positions at or beyond the limit have no buy value.
func (v Valuation) BuyValue(position int64) (int64, bool) {
	idx := v.maxPos + position
	if idx < 0 || idx >= int64(len(v.values)) {
		return 0, false
	}
	return v.values[idx], true
}

// SellValue returns the marginal value given up by selling one unit at
// the given position.
func (v Valuation) SellValue(position int64) (int64, bool) {
	idx := v.maxPos + position - 1
	if idx < 0 || idx >= int64(len(v.values)) {
		return 0, false
	}
	return v.values[idx], true
}

// Trader is the state every strategy carries: identity, inventory, cash
// flow and accumulated private benefit. Strategies embed it.
type Trader struct {
	id      int
	role    string
	log     *slog.Logger
	maxPos  int64
	val     *Valuation // nil for strategies without private values
	pos     int64
	cash    int64
	private int64
}

// NewTrader builds the shared trader state. val may be nil.
func NewTrader(id int, role string, maxPos int64, val *Valuation, log *slog.Logger) *Trader {
	if log == nil {
		log = slog.Default()
	}
	return &Trader{
		id:     id,
		role:   role,
		log:    log.With("agent", id, "role", role),
		maxPos: maxPos,
		val:    val,
	}
}

// ID returns the trader's identifier.
func (t *Trader) ID() int { return t.id }

// Role returns the strategy name, for reporting.
func (t *Trader) Role() string { return t.role }

// Position returns the signed inventory.
func (t *Trader) Position() int64 { return t.pos }

// Cash returns the accumulated cash flow: sells credit, buys debit.
func (t *Trader) Cash() int64 { return t.cash }

// Fill credits one execution to the trader, unit by unit so the private
// valuation is read at the position each unit actually transitions from.
func (t *Trader) Fill(side book.Side, price ticks.Price, quantity int64) {
	notional := safe.MulChecked(price.Ticks(), quantity)
	for i := int64(0); i < quantity; i++ {
		if side == book.Buy {
			if t.val != nil {
				if v, ok := t.val.BuyValue(t.pos); ok {
					t.private = safe.AddSat(t.private, v)
				}
			}
			t.pos++
		} else {
			if t.val != nil {
				if v, ok := t.val.SellValue(t.pos); ok {
					t.private = safe.SubSat(t.private, v)
				}
			}
			t.pos--
		}
	}
	if side == book.Buy {
		t.cash = safe.SubSat(t.cash, notional)
	} else {
		t.cash = safe.AddSat(t.cash, notional)
	}
	t.log.Debug("fill", "side", side.String(), "price", price.Ticks(),
		"qty", quantity, "position", t.pos)
}

// LiquidateAt returns the trader's payoff if its whole position unwinds at
// the given price: cash plus marked inventory plus private benefit.
func (t *Trader) LiquidateAt(price ticks.Price) int64 {
	marked := safe.MulChecked(price.Ticks(), t.pos)
	return safe.AddSat(safe.AddSat(t.cash, marked), t.private)
}

// Router dispatches each market's transactions back to the traders on
// both sides, synchronously at execution time. The market itself knows
// who traded; fills are never delayed by feed latency.
type Router struct {
	traders map[int]*Trader
}

// NewRouter builds an empty router.
func NewRouter() *Router {
	return &Router{traders: make(map[int]*Trader)}
}

// Add registers a trader for fill dispatch.
func (r *Router) Add(t *Trader) { r.traders[t.id] = t }

// AcceptTransactions implements market.TransactionSink.
func (r *Router) AcceptTransactions(txs []market.Transaction) {
	for _, tx := range txs {
		if t, ok := r.traders[tx.BuyAgent]; ok {
			t.Fill(book.Buy, tx.Price, tx.Quantity)
		}
		if t, ok := r.traders[tx.SellAgent]; ok {
			t.Fill(book.Sell, tx.Price, tx.Quantity)
		}
	}
}

// scheduleArrival books the strategy's next market arrival, exponentially
// distributed with the given rate and at least one tick out.
func scheduleArrival(s *sched.Scheduler, rng *rand.Rand, rate float64, horizon ticks.Time, name string, arrive func(now ticks.Time)) {
	wait := int64(math.Ceil(rng.ExpFloat64() / rate))
	if wait < 1 {
		wait = 1
	}
	next := s.Now().Add(ticks.NewTime(wait))
	if next.After(horizon) {
		return
	}
	s.ScheduleAt(next, sched.Activity{Name: name, Run: arrive})
}
