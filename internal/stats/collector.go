package stats

import (
	"math"

	"github.com/shopspring/decimal"
)

// MarketSummary aggregates one market's activity over a run.
type MarketSummary struct {
	Trades     int64
	Volume     int64
	VWAP       decimal.Decimal
	MeanSpread decimal.Decimal
	spreadSum  decimal.Decimal
	spreadN    int64
	notional   decimal.Decimal
}

// RoleSummary aggregates payoffs per strategy.
type RoleSummary struct {
	Agents      int
	TotalPayoff decimal.Decimal
	MeanPayoff  decimal.Decimal
}

// Summary is the run-level aggregate the collector produces.
type Summary struct {
	Markets        map[int]*MarketSummary
	Roles          map[string]*RoleSummary
	MeanNBBOSpread decimal.Decimal
	MeanFund       decimal.Decimal
	nbboSum        decimal.Decimal
	nbboN          int64
	fundSum        decimal.Decimal
	fundN          int64
}

// Collector folds the event stream into a Summary. Sums accumulate in
// decimal so long runs do not drift the way float accumulation does.
type Collector struct {
	summary Summary
}

// NewCollector builds a collector; attach it with bus.Subscribe(c.Accept).
func NewCollector() *Collector {
	return &Collector{summary: Summary{
		Markets: make(map[int]*MarketSummary),
		Roles:   make(map[string]*RoleSummary),
	}}
}

// Accept folds one event into the running aggregates.
func (c *Collector) Accept(ev Event) {
	switch e := ev.(type) {
	case TransactionEvent:
		m := c.market(e.MarketID)
		m.Trades++
		m.Volume += e.Quantity
		m.notional = m.notional.Add(decimal.NewFromInt(e.Price).Mul(decimal.NewFromInt(e.Quantity)))
	case QuoteSample:
		if e.Kind == KindSpread && !math.IsInf(e.Value, 0) && !math.IsNaN(e.Value) {
			m := c.market(e.MarketID)
			m.spreadSum = m.spreadSum.Add(decimal.NewFromFloat(e.Value))
			m.spreadN++
		}
	case NBBOSpreadSample:
		if !math.IsInf(e.Value, 0) && !math.IsNaN(e.Value) {
			c.summary.nbboSum = c.summary.nbboSum.Add(decimal.NewFromFloat(e.Value))
			c.summary.nbboN++
		}
	case FundamentalSample:
		c.summary.fundSum = c.summary.fundSum.Add(decimal.NewFromInt(e.Value))
		c.summary.fundN++
	case PayoffEvent:
		r, ok := c.summary.Roles[e.Role]
		if !ok {
			r = &RoleSummary{}
			c.summary.Roles[e.Role] = r
		}
		r.Agents++
		r.TotalPayoff = r.TotalPayoff.Add(decimal.NewFromInt(e.Payoff))
	}
}

func (c *Collector) market(id int) *MarketSummary {
	m, ok := c.summary.Markets[id]
	if !ok {
		m = &MarketSummary{}
		c.summary.Markets[id] = m
	}
	return m
}

// Summary finalizes and returns the aggregates.
func (c *Collector) Summary() Summary {
	s := c.summary
	for _, m := range s.Markets {
		if m.Volume > 0 {
			m.VWAP = m.notional.Div(decimal.NewFromInt(m.Volume))
		}
		if m.spreadN > 0 {
			m.MeanSpread = m.spreadSum.Div(decimal.NewFromInt(m.spreadN))
		}
	}
	for _, r := range s.Roles {
		if r.Agents > 0 {
			r.MeanPayoff = r.TotalPayoff.Div(decimal.NewFromInt(int64(r.Agents)))
		}
	}
	if s.nbboN > 0 {
		s.MeanNBBOSpread = s.nbboSum.Div(decimal.NewFromInt(s.nbboN))
	}
	if s.fundN > 0 {
		s.MeanFund = s.fundSum.Div(decimal.NewFromInt(s.fundN))
	}
	return s
}
