// Package pricing turns price actions into the prices used to simulate fills.
package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/market"
)

// Pricing yields fill prices for one asset at one instant. Sizes are signed:
// positive buys, negative sells. Implementations hold no state across calls.
type Pricing interface {
	// MarketPrice is the price a market order of the given size would get.
	MarketPrice(size decimal.Decimal) decimal.Decimal
	// LowPrice is the lowest price traded during the observation.
	LowPrice(size decimal.Decimal) decimal.Decimal
	// HighPrice is the highest price traded during the observation.
	HighPrice(size decimal.Decimal) decimal.Decimal
	// Liquidity is the maximum absolute size that can fill. Zero means unlimited.
	Liquidity() decimal.Decimal
}

// Engine creates a Pricing for a price action.
type Engine interface {
	Pricing(action market.PriceAction, t time.Time) Pricing
}

// NoCostEngine fills at the observed prices without spread or slippage.
type NoCostEngine struct{}

// Pricing implements Engine.
func (NoCostEngine) Pricing(action market.PriceAction, _ time.Time) Pricing {
	return basePricing{action: action}
}

type basePricing struct {
	action market.PriceAction
}

func (p basePricing) MarketPrice(decimal.Decimal) decimal.Decimal {
	return p.action.Price(market.PriceDefault)
}

func (p basePricing) LowPrice(decimal.Decimal) decimal.Decimal {
	return p.action.Price(market.PriceLow)
}

func (p basePricing) HighPrice(decimal.Decimal) decimal.Decimal {
	return p.action.Price(market.PriceHigh)
}

func (basePricing) Liquidity() decimal.Decimal {
	return decimal.Zero
}

// liquidity returns participation * volume, or zero (unlimited) when either is unknown.
func liquidity(action market.PriceAction, participation decimal.Decimal) decimal.Decimal {
	if !participation.IsPositive() {
		return decimal.Zero
	}
	vol := action.Volume()
	if !vol.IsPositive() {
		return decimal.Zero
	}
	return vol.Mul(participation)
}
