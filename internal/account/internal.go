// Package account holds the simulated account state and the models that
// derive buying power from it.
package account

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/execution"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/types"
)

// Trade is the account-side record of one execution.
type Trade struct {
	ExecutionID string
	OrderID     string
	Time        time.Time
	Asset       types.Asset
	Size        decimal.Decimal
	Price       decimal.Decimal
	Fee         types.Amount
	PNL         types.Amount // Realized, before fees
}

// NetPNL is the realized profit minus the fee, in the asset currency.
func (t Trade) NetPNL() types.Amount {
	return types.Amount{Currency: t.PNL.Currency, Value: t.PNL.Value.Sub(t.Fee.Value)}
}

// InternalAccount is the mutable account state of one simulation run.
// Only the broker driving the run calls its mutating methods; everything
// else sees the read-only Account returned by Snapshot.
type InternalAccount struct {
	baseCurrency types.Currency
	converter    types.Converter

	lastUpdate   time.Time
	cash         types.Wallet
	portfolio    map[string]*Position
	buyingPower  types.Amount
	openOrders   []order.State
	closedOrders []order.State
	trades       []Trade
}

// NewInternalAccount creates an empty account. A nil converter only
// accepts amounts already in the requested currency.
func NewInternalAccount(base types.Currency, conv types.Converter) *InternalAccount {
	if conv == nil {
		conv = types.NoConversion{}
	}
	return &InternalAccount{
		baseCurrency: base,
		converter:    conv,
		portfolio:    make(map[string]*Position),
		buyingPower:  types.Amount{Currency: base, Value: decimal.Zero},
	}
}

// AdvanceTo moves the account clock. Time never moves backwards.
func (a *InternalAccount) AdvanceTo(t time.Time) error {
	if t.Before(a.lastUpdate) {
		return fmt.Errorf("%w: %s before %s", types.ErrTimeReversal,
			t.Format(time.RFC3339Nano), a.lastUpdate.Format(time.RFC3339Nano))
	}
	a.lastUpdate = t
	return nil
}

// Deposit adds cash.
func (a *InternalAccount) Deposit(amount types.Amount) {
	a.cash.Deposit(amount)
}

// Withdraw removes cash; the balance may go negative.
func (a *InternalAccount) Withdraw(amount types.Amount) {
	a.cash.Withdraw(amount)
}

// ApplyExecution books a fill: the cash moves by its value and the fee, and
// the position for the asset is updated or removed when it becomes flat.
func (a *InternalAccount) ApplyExecution(exec execution.Execution, fee types.Amount) Trade {
	key := exec.Asset.Key()
	current, ok := a.portfolio[key]
	if !ok {
		current = &Position{Asset: exec.Asset}
	}

	next, realized := current.apply(exec.Size, exec.Price, exec.Time)
	if next.Size.IsZero() {
		delete(a.portfolio, key)
	} else {
		a.portfolio[key] = &next
	}

	if fee.Currency == "" {
		fee.Currency = exec.Asset.Currency
	}
	a.cash.Withdraw(exec.Value())
	a.cash.Withdraw(fee)

	trade := Trade{
		ExecutionID: exec.ID,
		OrderID:     exec.OrderID,
		Time:        exec.Time,
		Asset:       exec.Asset,
		Size:        exec.Size,
		Price:       exec.Price,
		Fee:         fee,
		PNL:         realized,
	}
	a.trades = append(a.trades, trade)
	return trade
}

// UpdateMarketPrices marks every held asset priced in the event to market.
func (a *InternalAccount) UpdateMarketPrices(event market.Event) {
	if len(a.portfolio) == 0 {
		return
	}
	for key, action := range event.Prices() {
		if p, ok := a.portfolio[key]; ok {
			p.MktPrice = action.Price(market.PriceDefault)
			p.LastUpdate = event.Time
		}
	}
}

// SetBuyingPower stores the value computed by the account model.
func (a *InternalAccount) SetBuyingPower(amount types.Amount) {
	a.buyingPower = amount
}

// SyncOrders replaces the open orders and appends newly closed ones.
func (a *InternalAccount) SyncOrders(open, closed []order.State) {
	a.openOrders = open
	a.closedOrders = append(a.closedOrders, closed...)
}

// Clear resets the account to its initial empty state, keeping the
// currency settings.
func (a *InternalAccount) Clear() {
	*a = *NewInternalAccount(a.baseCurrency, a.converter)
}

func (a *InternalAccount) BaseCurrency() types.Currency { return a.baseCurrency }
func (a *InternalAccount) LastUpdate() time.Time        { return a.lastUpdate }
func (a *InternalAccount) BuyingPower() types.Amount    { return a.buyingPower }

// Cash returns a copy of the cash balances.
func (a *InternalAccount) Cash() types.Wallet {
	return a.cash.Clone()
}

// Positions returns the open positions ordered by asset key.
func (a *InternalAccount) Positions() []Position {
	out := make([]Position, 0, len(a.portfolio))
	for _, p := range a.portfolio {
		out = append(out, *p)
	}
	slices.SortFunc(out, func(x, y Position) int {
		return strings.Compare(x.Asset.Key(), y.Asset.Key())
	})
	return out
}

// Position returns the position held in asset, if any.
func (a *InternalAccount) Position(asset types.Asset) (Position, bool) {
	p, ok := a.portfolio[asset.Key()]
	if !ok {
		return Position{}, false
	}
	return *p, true
}

// Equity returns cash plus the market value of all positions, per currency.
func (a *InternalAccount) Equity() types.Wallet {
	equity := a.cash.Clone()
	for _, p := range a.portfolio {
		equity.Deposit(p.MarketValue())
	}
	return equity
}

// Convert converts an amount into the base currency at the last update.
func (a *InternalAccount) Convert(amount types.Amount) (types.Amount, error) {
	return a.converter.Convert(amount, a.baseCurrency, a.lastUpdate)
}

// ConvertWallet converts a wallet into the base currency at the last update.
func (a *InternalAccount) ConvertWallet(w types.Wallet) (types.Amount, error) {
	return w.Convert(a.baseCurrency, a.lastUpdate, a.converter)
}

// Snapshot returns an immutable view of the account.
func (a *InternalAccount) Snapshot() (Account, error) {
	equity, err := a.ConvertWallet(a.Equity())
	if err != nil {
		return Account{}, fmt.Errorf("converting equity: %w", err)
	}
	return Account{
		BaseCurrency: a.baseCurrency,
		LastUpdate:   a.lastUpdate,
		Cash:         a.Cash(),
		Positions:    a.Positions(),
		OpenOrders:   slices.Clone(a.openOrders),
		ClosedOrders: slices.Clone(a.closedOrders),
		Trades:       slices.Clone(a.trades),
		BuyingPower:  a.buyingPower,
		Equity:       equity,
	}, nil
}
