package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
)

// Alternating places a market order on every n-th price of an asset,
// buying and selling in turn. It makes runs deterministic for testing.
type Alternating struct {
	every int
	size  decimal.Decimal

	seen  map[string]int
	sells map[string]bool
}

// NewAlternating trades size units every n observations; n below 1 is
// treated as 1.
func NewAlternating(every int, size decimal.Decimal) *Alternating {
	if every < 1 {
		every = 1
	}
	a := &Alternating{every: every, size: size.Abs()}
	a.Reset()
	return a
}

// Generate implements Strategy.
func (a *Alternating) Generate(event market.Event, _ account.Account) []order.Order {
	var orders []order.Order
	for _, action := range sortedPrices(event) {
		key := action.Asset().Key()
		a.seen[key]++
		if a.seen[key]%a.every != 0 {
			continue
		}

		size := a.size
		if a.sells[key] {
			size = size.Neg()
		}
		a.sells[key] = !a.sells[key]
		orders = append(orders, order.NewMarket(action.Asset(), size, order.WithTag(a.Name())))
	}
	return orders
}

func (a *Alternating) Name() string { return "alternating" }

// Reset implements Strategy.
func (a *Alternating) Reset() {
	a.seen = make(map[string]int)
	a.sells = make(map[string]bool)
}
