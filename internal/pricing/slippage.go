package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/market"
)

// SlippageEngine moves every fill a fixed number of ticks against the trader:
// buys fill higher, sells fill lower.
type SlippageEngine struct {
	Ticks         int
	TickSize      decimal.Decimal
	Participation decimal.Decimal
}

// Pricing implements Engine.
func (e SlippageEngine) Pricing(action market.PriceAction, _ time.Time) Pricing {
	return slippagePricing{
		action:    action,
		slippage:  e.TickSize.Mul(decimal.NewFromInt(int64(e.Ticks))),
		liquidity: liquidity(action, e.Participation),
	}
}

type slippagePricing struct {
	action    market.PriceAction
	slippage  decimal.Decimal
	liquidity decimal.Decimal
}

func (p slippagePricing) adjust(price, size decimal.Decimal) decimal.Decimal {
	switch size.Sign() {
	case 1:
		return price.Add(p.slippage)
	case -1:
		return price.Sub(p.slippage)
	default:
		return price
	}
}

func (p slippagePricing) MarketPrice(size decimal.Decimal) decimal.Decimal {
	return p.adjust(p.action.Price(market.PriceDefault), size)
}

func (p slippagePricing) LowPrice(size decimal.Decimal) decimal.Decimal {
	return p.adjust(p.action.Price(market.PriceLow), size)
}

func (p slippagePricing) HighPrice(size decimal.Decimal) decimal.Decimal {
	return p.adjust(p.action.Price(market.PriceHigh), size)
}

func (p slippagePricing) Liquidity() decimal.Decimal {
	return p.liquidity
}
