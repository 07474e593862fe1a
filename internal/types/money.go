package types

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Currency is an ISO 4217 currency code.
type Currency string

const (
	USD Currency = "USD"
	EUR Currency = "EUR"
	GBP Currency = "GBP"
	JPY Currency = "JPY"
	CHF Currency = "CHF"
)

// ParseCurrency normalizes a currency code.
func ParseCurrency(code string) (Currency, error) {
	code = strings.ToUpper(strings.TrimSpace(code))
	if len(code) != 3 {
		return "", Errorf(KindValidation, "invalid currency code %q", code)
	}
	return Currency(code), nil
}

// Amount is a value denominated in a single currency.
type Amount struct {
	Currency Currency
	Value    decimal.Decimal
}

// NewAmount creates an amount from a float value.
func NewAmount(currency Currency, value float64) Amount {
	return Amount{Currency: currency, Value: decimal.NewFromFloat(value)}
}

// Mul scales the amount.
func (a Amount) Mul(f decimal.Decimal) Amount {
	return Amount{Currency: a.Currency, Value: a.Value.Mul(f)}
}

// Abs returns the absolute amount.
func (a Amount) Abs() Amount {
	return Amount{Currency: a.Currency, Value: a.Value.Abs()}
}

// IsZero reports whether the value is zero.
func (a Amount) IsZero() bool {
	return a.Value.IsZero()
}

func (a Amount) String() string {
	return fmt.Sprintf("%s %s", a.Currency, a.Value.StringFixed(2))
}

// Wallet holds amounts in multiple currencies. The zero value is ready to use.
type Wallet struct {
	balances map[Currency]decimal.Decimal
}

// NewWallet creates a wallet holding the given amounts.
func NewWallet(amounts ...Amount) Wallet {
	var w Wallet
	for _, a := range amounts {
		w.Deposit(a)
	}
	return w
}

// Deposit adds an amount. Currencies netting to zero are dropped.
func (w *Wallet) Deposit(a Amount) {
	if w.balances == nil {
		w.balances = make(map[Currency]decimal.Decimal)
	}
	v := w.balances[a.Currency].Add(a.Value)
	if v.IsZero() {
		delete(w.balances, a.Currency)
		return
	}
	w.balances[a.Currency] = v
}

// Withdraw subtracts an amount; balances may go negative.
func (w *Wallet) Withdraw(a Amount) {
	w.Deposit(Amount{Currency: a.Currency, Value: a.Value.Neg()})
}

// Get returns the balance for a currency.
func (w Wallet) Get(c Currency) Amount {
	return Amount{Currency: c, Value: w.balances[c]}
}

// Currencies returns the held currencies in sorted order.
func (w Wallet) Currencies() []Currency {
	out := make([]Currency, 0, len(w.balances))
	for c := range w.balances {
		out = append(out, c)
	}
	slices.Sort(out)
	return out
}

// Amounts returns the balances ordered by currency.
func (w Wallet) Amounts() []Amount {
	out := make([]Amount, 0, len(w.balances))
	for _, c := range w.Currencies() {
		out = append(out, Amount{Currency: c, Value: w.balances[c]})
	}
	return out
}

// IsEmpty reports whether the wallet holds no balances.
func (w Wallet) IsEmpty() bool {
	return len(w.balances) == 0
}

// Clone returns an independent copy.
func (w Wallet) Clone() Wallet {
	var c Wallet
	for cur, v := range w.balances {
		c.Deposit(Amount{Currency: cur, Value: v})
	}
	return c
}

// Convert sums all balances into a single currency at the given time.
func (w Wallet) Convert(to Currency, at time.Time, conv Converter) (Amount, error) {
	total := Amount{Currency: to, Value: decimal.Zero}
	for _, a := range w.Amounts() {
		converted, err := conv.Convert(a, to, at)
		if err != nil {
			return Amount{}, err
		}
		total.Value = total.Value.Add(converted.Value)
	}
	return total, nil
}

func (w Wallet) String() string {
	if w.IsEmpty() {
		return "{}"
	}
	parts := make([]string, 0, len(w.balances))
	for _, a := range w.Amounts() {
		parts = append(parts, a.String())
	}
	return "{" + strings.Join(parts, ", ") + "}"
}
