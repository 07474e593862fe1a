package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/market"
)

var (
	one           = decimal.NewFromInt(1)
	bipsPerSpread = decimal.NewFromInt(20_000) // half of 10_000 bips, applied per side
)

// SpreadEngine charges half of a fixed spread (in basis points) on each side.
// Quotes fill buys at the ask and sells at the bid instead.
type SpreadEngine struct {
	Bips          decimal.Decimal
	Participation decimal.Decimal // Fraction of observed volume that can fill; zero is unlimited
}

// NewSpreadEngine creates a spread engine.
func NewSpreadEngine(bips, participation float64) SpreadEngine {
	return SpreadEngine{
		Bips:          decimal.NewFromFloat(bips),
		Participation: decimal.NewFromFloat(participation),
	}
}

// Pricing implements Engine.
func (e SpreadEngine) Pricing(action market.PriceAction, _ time.Time) Pricing {
	return spreadPricing{
		action:    action,
		spread:    e.Bips.Div(bipsPerSpread),
		liquidity: liquidity(action, e.Participation),
	}
}

type spreadPricing struct {
	action    market.PriceAction
	spread    decimal.Decimal
	liquidity decimal.Decimal
}

func (p spreadPricing) correction(size decimal.Decimal) decimal.Decimal {
	switch size.Sign() {
	case 1:
		return one.Add(p.spread)
	case -1:
		return one.Sub(p.spread)
	default:
		return one
	}
}

func (p spreadPricing) MarketPrice(size decimal.Decimal) decimal.Decimal {
	if q, ok := p.action.(market.PriceQuote); ok {
		if size.IsNegative() {
			return q.Bid
		}
		return q.Ask
	}
	return p.action.Price(market.PriceDefault).Mul(p.correction(size))
}

func (p spreadPricing) LowPrice(size decimal.Decimal) decimal.Decimal {
	return p.action.Price(market.PriceLow).Mul(p.correction(size))
}

func (p spreadPricing) HighPrice(size decimal.Decimal) decimal.Decimal {
	return p.action.Price(market.PriceHigh).Mul(p.correction(size))
}

func (p spreadPricing) Liquidity() decimal.Decimal {
	return p.liquidity
}
