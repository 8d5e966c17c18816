// Package market implements the trading venues: a continuous double
// auction clearing on every submission and a call market clearing on a
// fixed interval. A market owns its order book, its order table and its
// market time, and publishes quotes and transactions to whatever sinks
// are attached. Everything runs on the simulation scheduler's thread.
package market

import (
	"fmt"
	"log/slog"
	"math"
	"sort"

	"marketsim/internal/book"
	"marketsim/internal/sched"
	"marketsim/internal/stats"
	"marketsim/pkg/ticks"
)

// QuoteSink receives every quote the market publishes, in publication
// order, at publication time. Latency belongs to the sink.
type QuoteSink interface {
	AcceptQuote(q Quote)
}

// TransactionSink receives the transactions of each clear as one batch.
type TransactionSink interface {
	AcceptTransactions(txs []Transaction)
}

// NBBOView is the consolidated quote a market consults when routing. It
// is as stale as the feed behind it; routing on it is deliberate.
type NBBOView interface {
	NBBO() BestBidAsk
}

// Market is one trading venue. Not safe for concurrent use; all calls
// happen on the scheduler's thread.
type Market struct {
	id           int
	sched        *sched.Scheduler
	book         *book.FourHeap
	rule         ClearingRule
	tickSize     int64
	callInterval ticks.Time // zero for continuous clearing

	marketTime uint64
	quote      Quote
	orders     map[uint64]*orderRecord
	bidDepth   map[ticks.Price]int64
	askDepth   map[ticks.Price]int64
	tape       []Transaction

	nbbo   NBBOView
	qsinks []QuoteSink
	tsinks []TransactionSink
	bus    *stats.Bus
	log    *slog.Logger
}

// NewCDA builds a continuous double auction. Every submission clears the
// book immediately and trades print at the resting order's limit.
func NewCDA(id int, s *sched.Scheduler, tickSize int64, log *slog.Logger) *Market {
	return newMarket(id, s, EarliestPriceClear{TickSize: tickSize}, tickSize, 0, log)
}

// NewCall builds a call market clearing every interval at a uniform price,
// ratio of the way from the worst matched sell to the worst matched buy.
func NewCall(id int, s *sched.Scheduler, interval ticks.Time, ratio float64, tickSize int64, log *slog.Logger) *Market {
	if interval <= 0 {
		panic("market: call interval must be positive")
	}
	return newMarket(id, s, UniformPriceClear{Ratio: ratio, TickSize: tickSize}, tickSize, interval, log)
}

func newMarket(id int, s *sched.Scheduler, rule ClearingRule, tickSize int64, interval ticks.Time, log *slog.Logger) *Market {
	if log == nil {
		log = slog.Default()
	}
	return &Market{
		id:           id,
		sched:        s,
		book:         book.New(),
		rule:         rule,
		tickSize:     tickSize,
		callInterval: interval,
		quote:        EmptyQuote(id),
		orders:       make(map[uint64]*orderRecord),
		bidDepth:     make(map[ticks.Price]int64),
		askDepth:     make(map[ticks.Price]int64),
		log:          log.With("market", id),
	}
}

// ID returns the market's identifier.
func (m *Market) ID() int { return m.id }

// MarketTime returns the market's event counter. It increments on every
// submission, withdrawal and clear, so any two events order totally.
func (m *Market) MarketTime() uint64 { return m.marketTime }

// Quote returns the market's current published quote.
func (m *Market) Quote() Quote { return m.quote }

// Tape returns every transaction the market has printed, in order.
func (m *Market) Tape() []Transaction { return m.tape }

func (m *Market) String() string { return fmt.Sprintf("market-%d", m.id) }

// SetNBBO attaches the consolidated view used by SubmitNMS routing.
func (m *Market) SetNBBO(v NBBOView) { m.nbbo = v }

// SetStats attaches the statistics bus. Nil is fine; emission is skipped.
func (m *Market) SetStats(bus *stats.Bus) { m.bus = bus }

// SubscribeQuotes registers a sink for every published quote.
func (m *Market) SubscribeQuotes(s QuoteSink) { m.qsinks = append(m.qsinks, s) }

// SubscribeTransactions registers a sink for every clear's transactions.
func (m *Market) SubscribeTransactions(s TransactionSink) { m.tsinks = append(m.tsinks, s) }

// Open publishes the initial empty quote and, for a call market, starts
// the clearing cycle. Call once before the run starts.
func (m *Market) Open() {
	if m.callInterval > 0 {
		m.scheduleClear()
	}
	m.publishQuote()
}

func (m *Market) scheduleClear() {
	m.sched.ScheduleAt(m.sched.Now().Add(m.callInterval), sched.Activity{
		Name: fmt.Sprintf("market-%d-clear", m.id),
		Run: func(ticks.Time) {
			m.Clear()
			m.scheduleClear()
		},
	})
}

// Submit places a limit order and returns the handle to withdraw it. In a
// continuous market the book clears before Submit returns, so the order
// may already be filled. Orders rest until withdrawn.
func (m *Market) Submit(agent int, side book.Side, price ticks.Price, quantity int64) OrderRef {
	if quantity <= 0 {
		panic("market: order quantity must be positive")
	}
	m.marketTime++
	id := m.marketTime
	rec := &orderRecord{
		id:        id,
		agent:     agent,
		side:      side,
		price:     price,
		submitted: m.sched.Now(),
		entry:     book.NewOrder(side, price, quantity, id),
	}
	m.orders[id] = rec
	m.book.Insert(rec.entry)
	m.addDepth(side, price, quantity)

	m.log.Debug("order submitted",
		"order", id, "agent", agent, "side", side.String(),
		"price", price.Ticks(), "qty", quantity)

	if m.callInterval == 0 {
		m.Clear()
	}
	return OrderRef{Market: m, ID: id}
}

// SubmitWithDuration is Submit plus an automatic withdrawal after the
// order has rested for the given number of ticks.
func (m *Market) SubmitWithDuration(agent int, side book.Side, price ticks.Price, quantity int64, duration ticks.Time) OrderRef {
	ref := m.Submit(agent, side, price, quantity)
	m.sched.ScheduleAt(m.sched.Now().Add(duration), sched.Activity{
		Name: fmt.Sprintf("market-%d-expire-%d", m.id, ref.ID),
		Run:  func(ticks.Time) { m.Withdraw(ref) },
	})
	return ref
}

// SubmitNMS routes the order to whichever market the consolidated quote
// says offers the strictly better price, provided the order would transact
// there, and submits locally otherwise. The consolidated view lags reality
// by the feed's latency; routing can therefore chase a quote that is gone.
func (m *Market) SubmitNMS(agent int, side book.Side, price ticks.Price, quantity int64) OrderRef {
	target := m.routeTarget(side, price)
	if target != m {
		m.log.Debug("order routed",
			"agent", agent, "side", side.String(),
			"price", price.Ticks(), "to", target.id)
	}
	return target.Submit(agent, side, price, quantity)
}

// SubmitNMSWithDuration routes like SubmitNMS and expires the order after
// it has rested for duration ticks in whichever market received it.
func (m *Market) SubmitNMSWithDuration(agent int, side book.Side, price ticks.Price, quantity int64, duration ticks.Time) OrderRef {
	return m.routeTarget(side, price).SubmitWithDuration(agent, side, price, quantity, duration)
}

func (m *Market) routeTarget(side book.Side, price ticks.Price) *Market {
	if m.nbbo == nil {
		return m
	}
	n := m.nbbo.NBBO()
	if side == book.Buy {
		if n.AskMarket != nil && n.AskMarket != m && n.Ask < m.quote.Ask && price >= n.Ask {
			return n.AskMarket
		}
	} else {
		if n.BidMarket != nil && n.BidMarket != m && n.Bid > m.quote.Bid && price <= n.Bid {
			return n.BidMarket
		}
	}
	return m
}

// Withdraw removes whatever remains of the order. Withdrawing an order
// that has already filled or been withdrawn is a no-op; with latency an
// agent cannot know which race it lost.
func (m *Market) Withdraw(ref OrderRef) {
	rec, ok := m.orders[ref.ID]
	if !ok {
		return
	}
	m.marketTime++
	if q := rec.entry.Quantity(); q > 0 {
		m.book.WithdrawAll(rec.entry)
		m.subDepth(rec.side, rec.price, q)
	}
	delete(m.orders, ref.ID)

	m.log.Debug("order withdrawn", "order", ref.ID, "agent", rec.agent)

	if m.callInterval == 0 {
		m.publishQuote()
	}
}

// WithdrawAgent removes every live order the agent owns, oldest first.
func (m *Market) WithdrawAgent(agent int) {
	var ids []uint64
	for id, rec := range m.orders {
		if rec.agent == agent {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	for _, id := range ids {
		m.Withdraw(OrderRef{Market: m, ID: id})
	}
}

// Clear matches the book, prices the matches by the market's clearing
// rule, prints the transactions and publishes the post-clear quote. The
// continuous market calls this on every submission; the call market on
// its interval.
func (m *Market) Clear() {
	m.marketTime++
	matches := m.book.Clear()
	if len(matches) > 0 {
		prices := m.rule.Pricing(matches)
		now := m.sched.Now()
		txs := make([]Transaction, len(matches))
		for i, match := range matches {
			brec := m.orders[match.Buy.Seq]
			srec := m.orders[match.Sell.Seq]
			txs[i] = Transaction{
				MarketID:  m.id,
				BuyOrder:  brec.id,
				SellOrder: srec.id,
				BuyAgent:  brec.agent,
				SellAgent: srec.agent,
				Price:     prices[i],
				Quantity:  match.Quantity,
				ExecTime:  now,
				Seq:       m.marketTime,
			}
			m.subDepth(book.Buy, brec.price, match.Quantity)
			m.subDepth(book.Sell, srec.price, match.Quantity)
		}
		for _, match := range matches {
			if match.Buy.Quantity() == 0 {
				delete(m.orders, match.Buy.Seq)
			}
			if match.Sell.Quantity() == 0 {
				delete(m.orders, match.Sell.Seq)
			}
		}
		m.tape = append(m.tape, txs...)
		for _, tx := range txs {
			m.bus.Emit(stats.TransactionEvent{
				Time:      tx.ExecTime,
				MarketID:  m.id,
				BuyAgent:  tx.BuyAgent,
				SellAgent: tx.SellAgent,
				Price:     tx.Price.Ticks(),
				Quantity:  tx.Quantity,
			})
		}
		for _, s := range m.tsinks {
			s.AcceptTransactions(txs)
		}
		m.log.Debug("cleared", "trades", len(txs), "first_price", txs[0].Price.Ticks())
	}
	m.publishQuote()
}

func (m *Market) publishQuote() {
	q := Quote{
		MarketID: m.id,
		Bid:      m.book.BidQuote(),
		Ask:      m.book.AskQuote(),
		Time:     m.sched.Now(),
		Seq:      m.marketTime,
	}
	if q.Bid.Defined() {
		q.BidQty = m.bidDepth[q.Bid]
	}
	if q.Ask.Defined() {
		q.AskQty = m.askDepth[q.Ask]
	}
	m.quote = q
	m.emitQuoteStats(q)
	for _, s := range m.qsinks {
		s.AcceptQuote(q)
	}
}

func (m *Market) emitQuoteStats(q Quote) {
	if m.bus == nil {
		return
	}
	spread := math.Inf(1)
	mid := math.NaN()
	if q.Defined() {
		spread = float64(q.Spread())
		mid, _ = q.Midquote()
	}
	bid, ask := math.NaN(), math.NaN()
	if q.Bid.Defined() {
		bid = float64(q.Bid)
	}
	if q.Ask.Defined() {
		ask = float64(q.Ask)
	}
	m.bus.Emit(stats.QuoteSample{Kind: stats.KindSpread, Time: q.Time, MarketID: m.id, Value: spread})
	m.bus.Emit(stats.QuoteSample{Kind: stats.KindMidquote, Time: q.Time, MarketID: m.id, Value: mid})
	m.bus.Emit(stats.QuoteSample{Kind: stats.KindBid, Time: q.Time, MarketID: m.id, Value: bid})
	m.bus.Emit(stats.QuoteSample{Kind: stats.KindAsk, Time: q.Time, MarketID: m.id, Value: ask})
}

func (m *Market) addDepth(side book.Side, price ticks.Price, qty int64) {
	if side == book.Buy {
		m.bidDepth[price] += qty
	} else {
		m.askDepth[price] += qty
	}
}

func (m *Market) subDepth(side book.Side, price ticks.Price, qty int64) {
	depth := m.askDepth
	if side == book.Buy {
		depth = m.bidDepth
	}
	depth[price] -= qty
	if depth[price] <= 0 {
		delete(depth, price)
	}
}
