package market

import (
	"marketsim/internal/book"
	"marketsim/pkg/ticks"
)

// ClearingRule assigns a transaction price to every matched pair of one
// clear. The engine guarantees each pair crosses; the rule only picks where
// in the [sell limit, buy limit] band the trade prints.
type ClearingRule interface {
	Pricing(matches []book.Match) []ticks.Price
}

// EarliestPriceClear prices each trade at the earlier-submitted order's
// limit: the continuous double auction convention, where the resting order
// sets the price.
type EarliestPriceClear struct {
	TickSize int64
}

// Pricing implements ClearingRule.
func (r EarliestPriceClear) Pricing(matches []book.Match) []ticks.Price {
	prices := make([]ticks.Price, len(matches))
	for i, m := range matches {
		if m.Buy.Seq < m.Sell.Seq {
			prices[i] = m.Buy.Price.Quantize(r.TickSize)
		} else {
			prices[i] = m.Sell.Price.Quantize(r.TickSize)
		}
	}
	return prices
}

// UniformPriceClear prices every trade of one clear at the same point:
// Ratio of the way from the worst matched sell up to the worst matched buy.
// The call-market convention.
type UniformPriceClear struct {
	Ratio    float64
	TickSize int64
}

// Pricing implements ClearingRule.
func (r UniformPriceClear) Pricing(matches []book.Match) []ticks.Price {
	if len(matches) == 0 {
		return nil
	}
	minBuy := matches[0].Buy.Price
	maxSell := matches[0].Sell.Price
	for _, m := range matches[1:] {
		minBuy = ticks.MinPrice(minBuy, m.Buy.Price)
		maxSell = ticks.MaxPrice(maxSell, m.Sell.Price)
	}
	clearPrice := ticks.NewPrice(float64(minBuy)*r.Ratio + float64(maxSell)*(1-r.Ratio)).Quantize(r.TickSize)

	prices := make([]ticks.Price, len(matches))
	for i := range prices {
		prices[i] = clearPrice
	}
	return prices
}
