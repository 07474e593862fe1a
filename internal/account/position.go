package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// Position is a signed holding of one asset.
type Position struct {
	Asset      types.Asset
	Size       decimal.Decimal // Positive is long, negative is short
	AvgPrice   decimal.Decimal
	MktPrice   decimal.Decimal
	LastUpdate time.Time
}

// Side returns LONG, SHORT or FLAT.
func (p Position) Side() types.Side { return types.SideOf(p.Size) }

func (p Position) IsLong() bool  { return p.Size.IsPositive() }
func (p Position) IsShort() bool { return p.Size.IsNegative() }

// MarketValue is size * market price, negative for shorts.
func (p Position) MarketValue() types.Amount {
	return p.Asset.Value(p.Size, p.MktPrice)
}

// Exposure is the absolute market value.
func (p Position) Exposure() types.Amount {
	return p.MarketValue().Abs()
}

// TotalCost is size * average price.
func (p Position) TotalCost() types.Amount {
	return p.Asset.Value(p.Size, p.AvgPrice)
}

// UnrealizedPNL is the profit if the position closed at the market price.
func (p Position) UnrealizedPNL() types.Amount {
	return p.Asset.Value(p.Size, p.MktPrice.Sub(p.AvgPrice))
}

// apply adds a fill to the position. It returns the resulting position and
// the profit realized by the part of the fill that reduced it. Adding to a
// position averages the price; flipping sides restarts at the fill price.
func (p Position) apply(size, price decimal.Decimal, t time.Time) (Position, types.Amount) {
	realized := types.Amount{Currency: p.Asset.Currency, Value: decimal.Zero}
	next := p
	next.Size = p.Size.Add(size)
	next.MktPrice = price
	next.LastUpdate = t

	switch {
	case p.Size.IsZero():
		next.AvgPrice = price
	case p.Size.Sign() == size.Sign():
		cost := p.AvgPrice.Mul(p.Size).Add(price.Mul(size))
		next.AvgPrice = cost.Div(next.Size)
	default:
		closed := decimal.Min(p.Size.Abs(), size.Abs())
		if p.IsShort() {
			closed = closed.Neg()
		}
		realized = p.Asset.Value(closed, price.Sub(p.AvgPrice))

		if next.Size.Sign() != p.Size.Sign() && !next.Size.IsZero() {
			next.AvgPrice = price
		}
	}
	return next, realized
}
