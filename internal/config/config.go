// Package config loads the YAML configuration of a backtest and builds the
// simulation components it describes.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/types"
)

// Config is the full application configuration.
type Config struct {
	Account  AccountConfig      `yaml:"account"`
	Fees     FeeConfig          `yaml:"fees"`
	Pricing  PricingConfig      `yaml:"pricing"`
	Rates    map[string]float64 `yaml:"rates"` // Value of one unit in the base currency
	Data     DataConfig         `yaml:"data"`
	Backtest BacktestConfig     `yaml:"backtest"`
	Strategy StrategyConfig     `yaml:"strategy"`
	Risk     RiskConfig         `yaml:"risk"`
	Journal  JournalConfig      `yaml:"journal"`
	Metrics  MetricsConfig      `yaml:"metrics"`
	Log      LogConfig          `yaml:"log"`
}

// AccountConfig describes the simulated account.
type AccountConfig struct {
	BaseCurrency           string             `yaml:"base_currency"`
	Deposit                map[string]float64 `yaml:"deposit"`
	Model                  string             `yaml:"model"` // cash | margin
	InitialMargin          float64            `yaml:"initial_margin"`
	MaintenanceMarginLong  float64            `yaml:"maintenance_margin_long"`
	MaintenanceMarginShort *float64           `yaml:"maintenance_margin_short"`
	Leverage               float64            `yaml:"leverage"` // Overrides the margin fractions when set
	MinimumEquity          float64            `yaml:"minimum_equity"`
}

// FeeConfig selects the fee model.
type FeeConfig struct {
	Model   string  `yaml:"model"` // none | percentage | per_unit
	Bips    float64 `yaml:"bips"`
	PerUnit float64 `yaml:"per_unit"`
	Minimum float64 `yaml:"minimum"`
}

// PricingConfig selects how fill prices are derived.
type PricingConfig struct {
	Model         string  `yaml:"model"` // none | spread | slippage
	SpreadBips    float64 `yaml:"spread_bips"`
	SlippageTicks int     `yaml:"slippage_ticks"`
	TickSize      float64 `yaml:"tick_size"`
	Participation float64 `yaml:"participation"`
}

// DataConfig points at the price history.
type DataConfig struct {
	Path     string `yaml:"path"`
	Symbol   string `yaml:"symbol"`   // Empty when the file has a symbol column
	Currency string `yaml:"currency"` // Defaults to the base currency
}

// BacktestConfig holds the replay settings.
type BacktestConfig struct {
	Start        string `yaml:"start"`
	End          string `yaml:"end"`
	InclusiveEnd bool   `yaml:"inclusive_end"`
	Reference    string `yaml:"reference"` // Named historical episode, instead of start/end
	Timezone     string `yaml:"timezone"`
	SkipWeekends bool   `yaml:"skip_weekends"`
	Split        string `yaml:"split"` // Run each period separately, e.g. "1y" or "6m"
}

// StrategyConfig selects and parameterises the strategy.
type StrategyConfig struct {
	Name        string  `yaml:"name"` // alternating | meanrev
	Every       int     `yaml:"every"`
	Size        float64 `yaml:"size"`
	Period      int     `yaml:"period"`
	EntryStdDev float64 `yaml:"entry_std_dev"`
	ATRPeriod   int     `yaml:"atr_period"`
	StopATR     float64 `yaml:"stop_atr"`
}

// RiskConfig holds the order limits applied on top of the strategy.
type RiskConfig struct {
	MaxDrawdown float64 `yaml:"max_drawdown"`
	MaxExposure float64 `yaml:"max_exposure"`
}

// JournalConfig holds the SQLite journal settings.
type JournalConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// MetricsConfig holds the Prometheus endpoint settings.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Port    int    `yaml:"port"`
	Path    string `yaml:"path"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `yaml:"level"`  // debug | info | warn | error
	Format string `yaml:"format"` // text | json
}

// Load loads configuration from a YAML file.
func Load(path string) (*Config, error) {
	if err := loadDotEnv(filepath.Dir(path)); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}
	return LoadFromBytes(data)
}

// loadDotEnv reads a .env file next to the config, if there is one. Variables
// already set in the environment win.
func loadDotEnv(dir string) error {
	path := filepath.Join(dir, ".env")
	if _, err := os.Stat(path); errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("%w: load %s: %w", types.ErrConfiguration, path, err)
	}
	return nil
}

// LoadFromBytes loads configuration from YAML bytes. Environment variables
// are expanded before parsing.
func LoadFromBytes(data []byte) (*Config, error) {
	expanded := os.ExpandEnv(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return nil, fmt.Errorf("%w: parse config: %w", types.ErrConfiguration, err)
	}

	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Account.BaseCurrency == "" {
		c.Account.BaseCurrency = string(types.USD)
	}
	if c.Account.Model == "" {
		c.Account.Model = "cash"
	}
	if c.Account.Model == "margin" && c.Account.InitialMargin == 0 && c.Account.Leverage == 0 {
		d := account.DefaultMarginConfig()
		c.Account.InitialMargin = d.InitialMargin
		c.Account.MaintenanceMarginLong = d.MaintenanceMarginLong
	}
	if c.Fees.Model == "" {
		c.Fees.Model = "none"
	}
	if c.Pricing.Model == "" {
		c.Pricing.Model = "none"
	}
	if c.Data.Currency == "" {
		c.Data.Currency = c.Account.BaseCurrency
	}
	if c.Strategy.Name == "" {
		c.Strategy.Name = "alternating"
	}
	if c.Strategy.Every == 0 {
		c.Strategy.Every = 1
	}
	if c.Strategy.Size == 0 {
		c.Strategy.Size = 1
	}
	if c.Journal.Path == "" {
		c.Journal.Path = "backsim.db"
	}
	if c.Metrics.Port == 0 {
		c.Metrics.Port = 9090
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = "/metrics"
	}
	if c.Log.Level == "" {
		c.Log.Level = "info"
	}
	if c.Log.Format == "" {
		c.Log.Format = "text"
	}
}

// Validate checks the whole configuration and reports every problem at once.
func (c *Config) Validate() error {
	var errs []string
	add := func(format string, args ...any) {
		errs = append(errs, fmt.Sprintf(format, args...))
	}

	if _, err := types.ParseCurrency(c.Account.BaseCurrency); err != nil {
		add("account.base_currency: %v", err)
	}
	if len(c.Account.Deposit) == 0 {
		add("account.deposit must hold at least one currency")
	}
	for cur, v := range c.Account.Deposit {
		if _, err := types.ParseCurrency(cur); err != nil {
			add("account.deposit: %v", err)
		}
		if v < 0 {
			add("account.deposit.%s must not be negative", cur)
		}
	}

	switch c.Account.Model {
	case "cash":
		if c.Account.MinimumEquity < 0 {
			add("account.minimum_equity must not be negative")
		}
	case "margin":
		if c.Account.Leverage < 0 {
			add("account.leverage must be positive")
		}
		if c.Account.Leverage == 0 {
			if err := c.marginConfig().Validate(); err != nil {
				add("account: %v", err)
			}
		}
	default:
		add("account.model must be 'cash' or 'margin'")
	}

	switch c.Fees.Model {
	case "none":
	case "percentage":
		if c.Fees.Bips < 0 {
			add("fees.bips must not be negative")
		}
	case "per_unit":
		if c.Fees.PerUnit < 0 || c.Fees.Minimum < 0 {
			add("fees.per_unit and fees.minimum must not be negative")
		}
	default:
		add("fees.model must be 'none', 'percentage' or 'per_unit'")
	}

	switch c.Pricing.Model {
	case "none":
	case "spread":
		if c.Pricing.SpreadBips < 0 {
			add("pricing.spread_bips must not be negative")
		}
	case "slippage":
		if c.Pricing.SlippageTicks < 0 || c.Pricing.TickSize <= 0 {
			add("pricing.slippage_ticks must not be negative and pricing.tick_size must be positive")
		}
	default:
		add("pricing.model must be 'none', 'spread' or 'slippage'")
	}
	if c.Pricing.Participation < 0 || c.Pricing.Participation > 1 {
		add("pricing.participation must be between 0 and 1")
	}

	for cur, r := range c.Rates {
		if _, err := types.ParseCurrency(cur); err != nil {
			add("rates: %v", err)
		}
		if r <= 0 {
			add("rates.%s must be positive", cur)
		}
	}

	if _, err := types.ParseCurrency(c.Data.Currency); err != nil {
		add("data.currency: %v", err)
	}

	if _, err := c.Location(); err != nil {
		add("backtest.timezone: %v", err)
	}
	if _, err := c.Timeframe(); err != nil {
		add("backtest: %v", err)
	}
	if _, _, err := c.SplitPeriod(); err != nil {
		add("backtest.split: %v", err)
	}

	switch c.Strategy.Name {
	case "alternating":
		if c.Strategy.Every < 1 {
			add("strategy.every must be at least 1")
		}
	case "meanrev":
		if c.Strategy.Period < 2 {
			add("strategy.period must be at least 2")
		}
		if c.Strategy.EntryStdDev <= 0 {
			add("strategy.entry_std_dev must be positive")
		}
	default:
		add("strategy.name must be 'alternating' or 'meanrev'")
	}
	if c.Strategy.Size <= 0 {
		add("strategy.size must be positive")
	}

	if err := c.RiskLimits().Validate(); err != nil {
		add("%v", err)
	}

	if c.Metrics.Enabled && (c.Metrics.Port <= 0 || c.Metrics.Port > 65535) {
		add("metrics.port must be between 1 and 65535")
	}
	if _, err := c.LogLevel(); err != nil {
		add("log.level: %v", err)
	}
	if c.Log.Format != "text" && c.Log.Format != "json" {
		add("log.format must be 'text' or 'json'")
	}

	if len(errs) > 0 {
		slices.Sort(errs)
		return fmt.Errorf("%w: %s", types.ErrConfiguration, strings.Join(errs, "; "))
	}
	return nil
}

// Location returns the exchange time zone, UTC when unset.
func (c *Config) Location() (*time.Location, error) {
	if c.Backtest.Timezone == "" {
		return time.UTC, nil
	}
	return time.LoadLocation(c.Backtest.Timezone)
}

// LogLevel parses log.level.
func (c *Config) LogLevel() (slog.Level, error) {
	var level slog.Level
	err := level.UnmarshalText([]byte(c.Log.Level))
	return level, err
}
