package types

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// Converter converts amounts between currencies at a point in time.
type Converter interface {
	Convert(amount Amount, to Currency, at time.Time) (Amount, error)
}

// NoConversion only accepts amounts already in the target currency.
type NoConversion struct{}

// Convert implements Converter.
func (NoConversion) Convert(amount Amount, to Currency, _ time.Time) (Amount, error) {
	if amount.Currency == to || amount.Value.IsZero() {
		return Amount{Currency: to, Value: amount.Value}, nil
	}
	return Amount{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, amount.Currency, to)
}

// FixedRates converts using constant rates quoted against one base currency.
// A rate r for currency C means 1 C = r base.
type FixedRates struct {
	base  Currency
	rates map[Currency]decimal.Decimal
}

// NewFixedRates creates a converter. Rates must be positive.
func NewFixedRates(base Currency, rates map[Currency]decimal.Decimal) (*FixedRates, error) {
	f := &FixedRates{
		base:  base,
		rates: map[Currency]decimal.Decimal{base: decimal.NewFromInt(1)},
	}
	for c, r := range rates {
		if !r.IsPositive() {
			return nil, Errorf(KindConfiguration, "rate for %s must be positive, got %s", c, r)
		}
		if c == base {
			continue
		}
		f.rates[c] = r
	}
	return f, nil
}

// Convert implements Converter. Time is ignored since rates are fixed.
func (f *FixedRates) Convert(amount Amount, to Currency, _ time.Time) (Amount, error) {
	if amount.Currency == to {
		return amount, nil
	}
	from, ok := f.rates[amount.Currency]
	if !ok {
		return Amount{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, amount.Currency, to)
	}
	target, ok := f.rates[to]
	if !ok {
		return Amount{}, fmt.Errorf("%w: %s -> %s", ErrNoRate, amount.Currency, to)
	}
	return Amount{Currency: to, Value: amount.Value.Mul(from).Div(target)}, nil
}
