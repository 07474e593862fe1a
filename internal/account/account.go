package account

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/types"
)

// Account is a read-only snapshot of an InternalAccount.
type Account struct {
	BaseCurrency types.Currency
	LastUpdate   time.Time
	Cash         types.Wallet
	Positions    []Position
	OpenOrders   []order.State
	ClosedOrders []order.State
	Trades       []Trade
	BuyingPower  types.Amount
	Equity       types.Amount // Cash plus market value, in the base currency
}

// Position returns the position held in asset, if any.
func (a Account) Position(asset types.Asset) (Position, bool) {
	key := asset.Key()
	for _, p := range a.Positions {
		if p.Asset.Key() == key {
			return p, true
		}
	}
	return Position{}, false
}

// RealizedPNL sums realized profit net of fees per currency.
func (a Account) RealizedPNL() types.Wallet {
	var w types.Wallet
	for _, t := range a.Trades {
		w.Deposit(t.NetPNL())
	}
	return w
}

// UnrealizedPNL sums the open profit of all positions per currency.
func (a Account) UnrealizedPNL() types.Wallet {
	var w types.Wallet
	for _, p := range a.Positions {
		w.Deposit(p.UnrealizedPNL())
	}
	return w
}

// Fees sums all fees paid per currency.
func (a Account) Fees() types.Wallet {
	var w types.Wallet
	for _, t := range a.Trades {
		w.Deposit(t.Fee)
	}
	return w
}

// OrderStatus returns the latest known status of an order.
func (a Account) OrderStatus(id string) (types.OrderStatus, bool) {
	for _, s := range a.OpenOrders {
		if s.Order.ID() == id {
			return s.Status, true
		}
	}
	for i := len(a.ClosedOrders) - 1; i >= 0; i-- {
		if a.ClosedOrders[i].Order.ID() == id {
			return a.ClosedOrders[i].Status, true
		}
	}
	return 0, false
}

// EquityValue returns the equity as a decimal, convenient for reporting.
func (a Account) EquityValue() decimal.Decimal {
	return a.Equity.Value
}
