// Package strategy turns market events into orders.
package strategy

import (
	"maps"
	"slices"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
)

// Strategy decides which orders to place after each event. It sees the
// account as the broker left it after the previous step.
type Strategy interface {
	Generate(event market.Event, acc account.Account) []order.Order

	// Name identifies the strategy in logs and metrics.
	Name() string

	// Reset clears all state so the strategy can start a new run.
	Reset()
}

// Multi runs several strategies and concatenates their orders.
type Multi struct {
	name       string
	strategies []Strategy
}

// NewMulti combines strategies under one name.
func NewMulti(name string, strategies ...Strategy) *Multi {
	return &Multi{name: name, strategies: strategies}
}

// Generate implements Strategy.
func (m *Multi) Generate(event market.Event, acc account.Account) []order.Order {
	var orders []order.Order
	for _, s := range m.strategies {
		orders = append(orders, s.Generate(event, acc)...)
	}
	return orders
}

func (m *Multi) Name() string { return m.name }

// Reset implements Strategy.
func (m *Multi) Reset() {
	for _, s := range m.strategies {
		s.Reset()
	}
}

// sortedPrices returns the actions of event ordered by asset key, so that
// strategies emit orders deterministically.
func sortedPrices(event market.Event) []market.PriceAction {
	prices := event.Prices()
	out := make([]market.PriceAction, 0, len(prices))
	for _, key := range slices.Sorted(maps.Keys(prices)) {
		out = append(out, prices[key])
	}
	return out
}
