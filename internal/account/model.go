package account

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// Model recomputes the buying power of an account from its own state.
// Calling it again on an unchanged account gives the same result.
type Model interface {
	UpdateAccount(a *InternalAccount) error
}

// CashAccount allows no leverage: buying power is the cash balance in the
// base currency minus a minimum that must stay in the account.
type CashAccount struct {
	Minimum decimal.Decimal
}

// UpdateAccount implements Model.
func (m CashAccount) UpdateAccount(a *InternalAccount) error {
	cash, err := a.ConvertWallet(a.cash)
	if err != nil {
		return fmt.Errorf("%w: cash account: %w", types.ErrComputation, err)
	}
	a.SetBuyingPower(types.Amount{Currency: a.baseCurrency, Value: cash.Value.Sub(m.Minimum)})
	return nil
}

// MarginConfig holds the margin requirements. Fractions are in [0, 1].
type MarginConfig struct {
	InitialMargin         float64
	MaintenanceMarginLong float64
	// MaintenanceMarginShort defaults to MaintenanceMarginLong when nil.
	MaintenanceMarginShort *float64
	// MinimumEquity is an amount in the base currency that must remain.
	MinimumEquity float64
}

// DefaultMarginConfig returns a 50% initial and 30% maintenance margin.
func DefaultMarginConfig() MarginConfig {
	return MarginConfig{
		InitialMargin:         0.5,
		MaintenanceMarginLong: 0.3,
	}
}

// Validate checks every field and reports all problems at once.
func (c MarginConfig) Validate() error {
	var errs []string

	if c.InitialMargin <= 0 || c.InitialMargin > 1 {
		errs = append(errs, fmt.Sprintf("initial margin %v must be in (0, 1]", c.InitialMargin))
	}
	if c.MaintenanceMarginLong < 0 || c.MaintenanceMarginLong > 1 {
		errs = append(errs, fmt.Sprintf("maintenance margin long %v must be in [0, 1]", c.MaintenanceMarginLong))
	}
	if c.MaintenanceMarginShort != nil && (*c.MaintenanceMarginShort < 0 || *c.MaintenanceMarginShort > 1) {
		errs = append(errs, fmt.Sprintf("maintenance margin short %v must be in [0, 1]", *c.MaintenanceMarginShort))
	}
	if c.MinimumEquity < 0 {
		errs = append(errs, fmt.Sprintf("minimum equity %v must not be negative", c.MinimumEquity))
	}

	if len(errs) > 0 {
		return types.Errorf(types.KindConfiguration, "margin account: %s", strings.Join(errs, "; "))
	}
	return nil
}

// MarginAccount derives buying power from equity minus maintenance
// requirements, leveraged by the initial margin:
//
//	excess = cash + market value - minimum equity
//	         - long exposure * maintenance long
//	         - short exposure * maintenance short
//	buying power = excess / initial margin
//
// Open orders are not taken into account.
type MarginAccount struct {
	initialMargin          decimal.Decimal
	maintenanceMarginLong  decimal.Decimal
	maintenanceMarginShort decimal.Decimal
	minimumEquity          decimal.Decimal
}

// NewMarginAccount validates cfg and resolves its defaults.
func NewMarginAccount(cfg MarginConfig) (*MarginAccount, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	short := cfg.MaintenanceMarginLong
	if cfg.MaintenanceMarginShort != nil {
		short = *cfg.MaintenanceMarginShort
	}

	return &MarginAccount{
		initialMargin:          decimal.NewFromFloat(cfg.InitialMargin),
		maintenanceMarginLong:  decimal.NewFromFloat(cfg.MaintenanceMarginLong),
		maintenanceMarginShort: decimal.NewFromFloat(short),
		minimumEquity:          decimal.NewFromFloat(cfg.MinimumEquity),
	}, nil
}

// NewLeveragedAccount sets every margin fraction to 1/leverage.
func NewLeveragedAccount(leverage, minimum float64) (*MarginAccount, error) {
	if leverage <= 0 {
		return nil, types.Errorf(types.KindConfiguration, "leverage %v must be positive", leverage)
	}
	margin := 1 / leverage
	return NewMarginAccount(MarginConfig{
		InitialMargin:          margin,
		MaintenanceMarginLong:  margin,
		MaintenanceMarginShort: &margin,
		MinimumEquity:          minimum,
	})
}

// UpdateAccount implements Model.
func (m *MarginAccount) UpdateAccount(a *InternalAccount) error {
	base := a.baseCurrency

	excess := a.Equity()
	excess.Withdraw(types.Amount{Currency: base, Value: m.minimumEquity})

	var long, short types.Wallet
	for _, p := range a.portfolio {
		if p.IsLong() {
			long.Deposit(p.Exposure())
		} else {
			short.Deposit(p.Exposure())
		}
	}

	longExposure, err := a.ConvertWallet(long)
	if err != nil {
		return fmt.Errorf("%w: long exposure: %w", types.ErrComputation, err)
	}
	excess.Withdraw(longExposure.Mul(m.maintenanceMarginLong))

	shortExposure, err := a.ConvertWallet(short)
	if err != nil {
		return fmt.Errorf("%w: short exposure: %w", types.ErrComputation, err)
	}
	excess.Withdraw(shortExposure.Mul(m.maintenanceMarginShort))

	total, err := a.ConvertWallet(excess)
	if err != nil {
		return fmt.Errorf("%w: excess margin: %w", types.ErrComputation, err)
	}

	a.SetBuyingPower(types.Amount{Currency: base, Value: total.Value.Div(m.initialMargin)})
	return nil
}
