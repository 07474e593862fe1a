package config

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/pricing"
	"github.com/tathienbao/backsim/internal/risk"
	"github.com/tathienbao/backsim/internal/strategy"
	"github.com/tathienbao/backsim/internal/timeframe"
	"github.com/tathienbao/backsim/internal/types"
)

// BaseCurrency returns the account currency.
func (c *Config) BaseCurrency() types.Currency {
	return types.Currency(c.Account.BaseCurrency)
}

// DataCurrency returns the currency the price data is quoted in.
func (c *Config) DataCurrency() types.Currency {
	return types.Currency(c.Data.Currency)
}

// Deposit returns the initial cash balances.
func (c *Config) Deposit() (types.Wallet, error) {
	var w types.Wallet
	for code, v := range c.Account.Deposit {
		cur, err := types.ParseCurrency(code)
		if err != nil {
			return types.Wallet{}, err
		}
		w.Deposit(types.NewAmount(cur, v))
	}
	return w, nil
}

func (c *Config) marginConfig() account.MarginConfig {
	return account.MarginConfig{
		InitialMargin:          c.Account.InitialMargin,
		MaintenanceMarginLong:  c.Account.MaintenanceMarginLong,
		MaintenanceMarginShort: c.Account.MaintenanceMarginShort,
		MinimumEquity:          c.Account.MinimumEquity,
	}
}

// AccountModel builds the buying power model.
func (c *Config) AccountModel() (account.Model, error) {
	switch c.Account.Model {
	case "cash":
		return account.CashAccount{Minimum: decimal.NewFromFloat(c.Account.MinimumEquity)}, nil
	case "margin":
		if c.Account.Leverage > 0 {
			return account.NewLeveragedAccount(c.Account.Leverage, c.Account.MinimumEquity)
		}
		return account.NewMarginAccount(c.marginConfig())
	}
	return nil, types.Errorf(types.KindConfiguration, "unknown account model %q", c.Account.Model)
}

// FeeModel builds the fee model.
func (c *Config) FeeModel() account.FeeModel {
	switch c.Fees.Model {
	case "percentage":
		return account.PercentageFee{Bips: decimal.NewFromFloat(c.Fees.Bips)}
	case "per_unit":
		return account.PerUnitFee{
			PerUnit: decimal.NewFromFloat(c.Fees.PerUnit),
			Minimum: decimal.NewFromFloat(c.Fees.Minimum),
		}
	default:
		return account.NoFee{}
	}
}

// PricingEngine builds the fill pricing engine.
func (c *Config) PricingEngine() pricing.Engine {
	participation := decimal.NewFromFloat(c.Pricing.Participation)
	switch c.Pricing.Model {
	case "spread":
		return pricing.NewSpreadEngine(c.Pricing.SpreadBips, c.Pricing.Participation)
	case "slippage":
		return pricing.SlippageEngine{
			Ticks:         c.Pricing.SlippageTicks,
			TickSize:      decimal.NewFromFloat(c.Pricing.TickSize),
			Participation: participation,
		}
	default:
		if participation.IsPositive() {
			return pricing.SpreadEngine{Participation: participation}
		}
		return pricing.NoCostEngine{}
	}
}

// Converter builds a fixed-rate converter, or returns nil when no rates are
// configured.
func (c *Config) Converter() (types.Converter, error) {
	if len(c.Rates) == 0 {
		return nil, nil
	}
	rates := make(map[types.Currency]decimal.Decimal, len(c.Rates))
	for code, r := range c.Rates {
		cur, err := types.ParseCurrency(code)
		if err != nil {
			return nil, err
		}
		rates[cur] = decimal.NewFromFloat(r)
	}
	return types.NewFixedRates(c.BaseCurrency(), rates)
}

// Timeframe returns the replay interval: a named reference episode, the
// configured start and end, or the whole data set when neither is set.
func (c *Config) Timeframe() (timeframe.Timeframe, error) {
	b := c.Backtest
	if b.Reference != "" {
		if b.Start != "" || b.End != "" {
			return timeframe.Timeframe{}, types.Errorf(types.KindConfiguration, "reference and start/end are exclusive")
		}
		tf, ok := timeframe.References[b.Reference]
		if !ok {
			return timeframe.Timeframe{}, types.Errorf(types.KindConfiguration, "unknown reference %q", b.Reference)
		}
		return tf, nil
	}

	if b.Start == "" && b.End == "" {
		return timeframe.Infinite, nil
	}
	if b.Start == "" || b.End == "" {
		return timeframe.Timeframe{}, types.Errorf(types.KindConfiguration, "start and end must be set together")
	}

	tf, err := timeframe.Parse(b.Start, b.End)
	if err != nil {
		return timeframe.Timeframe{}, err
	}
	if b.InclusiveEnd {
		tf = tf.Inclusive()
	}
	return tf, nil
}

// SplitPeriod returns the split length and whether splitting is enabled.
func (c *Config) SplitPeriod() (timeframe.Period, bool, error) {
	if c.Backtest.Split == "" {
		return timeframe.Period{}, false, nil
	}
	p, err := timeframe.ParsePeriod(c.Backtest.Split)
	if err != nil {
		return timeframe.Period{}, false, err
	}
	if !p.IsPositive() {
		return timeframe.Period{}, false, types.Errorf(types.KindConfiguration, "split period %s must be positive", p)
	}
	return p, true, nil
}

// NewStrategy builds a fresh strategy. Each run needs its own instance.
func (c *Config) NewStrategy() (strategy.Strategy, error) {
	s := c.Strategy
	size := decimal.NewFromFloat(s.Size)
	switch s.Name {
	case "alternating":
		return strategy.NewAlternating(s.Every, size), nil
	case "meanrev":
		cfg := strategy.DefaultMeanRevConfig()
		cfg.Period = s.Period
		cfg.EntryStdDev = s.EntryStdDev
		cfg.Size = size
		if s.ATRPeriod > 0 {
			cfg.ATRPeriod = s.ATRPeriod
		}
		cfg.StopATR = s.StopATR
		return strategy.NewMeanReversion(cfg), nil
	}
	return nil, fmt.Errorf("%w: unknown strategy %q", types.ErrConfiguration, s.Name)
}

// RiskLimits returns the order limits; see risk.Config.Enabled.
func (c *Config) RiskLimits() risk.Config {
	return risk.Config{
		MaxDrawdown: c.Risk.MaxDrawdown,
		MaxExposure: c.Risk.MaxExposure,
	}
}
