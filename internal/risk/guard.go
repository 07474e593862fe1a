package risk

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/internal/strategy"
	"github.com/tathienbao/backsim/internal/types"
)

// Config holds the limits. A zero limit is disabled.
type Config struct {
	// MaxDrawdown halts new exposure once equity falls this fraction below
	// its peak. Orders that reduce a position still pass.
	MaxDrawdown float64
	// MaxExposure caps the value of the position an order leads to, as a
	// fraction of equity.
	MaxExposure float64
}

// Enabled reports whether any limit is set.
func (c Config) Enabled() bool {
	return c.MaxDrawdown > 0 || c.MaxExposure > 0
}

// Validate checks every field and reports all problems at once.
func (c Config) Validate() error {
	var errs []string
	if c.MaxDrawdown < 0 || c.MaxDrawdown >= 1 {
		errs = append(errs, fmt.Sprintf("max drawdown %v must be in [0, 1)", c.MaxDrawdown))
	}
	if c.MaxExposure < 0 {
		errs = append(errs, fmt.Sprintf("max exposure %v must not be negative", c.MaxExposure))
	}
	if len(errs) > 0 {
		return types.Errorf(types.KindConfiguration, "risk: %s", strings.Join(errs, "; "))
	}
	return nil
}

var _ strategy.Strategy = (*Guard)(nil)

// Guard wraps a strategy and drops the create orders that would break a
// limit. Modify orders pass unless a create order for the same asset was
// dropped in the same batch. Open orders are not counted towards exposure.
type Guard struct {
	inner     strategy.Strategy
	cfg       Config
	converter types.Converter
	logger    *slog.Logger

	maxDrawdown decimal.Decimal
	maxExposure decimal.Decimal
	highWater   HighWater
	halted      bool
}

// NewGuard wraps inner. A nil converter only values positions quoted in the
// account currency; others are blocked when an exposure limit is set.
func NewGuard(inner strategy.Strategy, cfg Config, conv types.Converter, logger *slog.Logger) (*Guard, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if conv == nil {
		conv = types.NoConversion{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Guard{
		inner:       inner,
		cfg:         cfg,
		converter:   conv,
		logger:      logger,
		maxDrawdown: decimal.NewFromFloat(cfg.MaxDrawdown),
		maxExposure: decimal.NewFromFloat(cfg.MaxExposure),
	}, nil
}

// Generate implements strategy.Strategy.
func (g *Guard) Generate(event market.Event, acc account.Account) []order.Order {
	g.highWater.Update(acc.Equity.Value)
	if !g.halted && g.cfg.MaxDrawdown > 0 && g.highWater.Drawdown().GreaterThanOrEqual(g.maxDrawdown) {
		g.halted = true
		g.logger.Warn("drawdown limit reached, blocking new exposure",
			"drawdown", g.highWater.Drawdown().StringFixed(4),
			"peak", g.highWater.Peak().String(),
			"equity", acc.Equity.String(),
		)
	}

	orders := g.inner.Generate(event, acc)
	if len(orders) == 0 {
		return nil
	}

	prices := event.Prices()
	blocked := make(map[string]bool)
	passed := make([]bool, len(orders))
	for i, o := range orders {
		c, ok := o.(order.Create)
		if !ok {
			continue
		}
		if err := g.check(c, acc, prices); err != nil {
			blocked[o.Asset().Key()] = true
			g.logger.Warn("order blocked",
				"order_id", o.ID(),
				"asset", o.Asset().Key(),
				"size", c.Size().String(),
				"reason", err.Error(),
			)
			continue
		}
		passed[i] = true
	}

	// A blocked create leaves the current orders of its asset in place, so
	// the cancels and updates issued alongside it are dropped too.
	out := make([]order.Order, 0, len(orders))
	for i, o := range orders {
		if _, ok := o.(order.Modify); ok {
			if blocked[o.Asset().Key()] {
				g.logger.Warn("order blocked",
					"order_id", o.ID(),
					"asset", o.Asset().Key(),
					"reason", "create order for asset blocked",
				)
				continue
			}
			out = append(out, o)
			continue
		}
		if passed[i] {
			out = append(out, o)
		}
	}
	return out
}

func (g *Guard) check(c order.Create, acc account.Account, prices map[string]market.PriceAction) error {
	var current decimal.Decimal
	if p, ok := acc.Position(c.Asset()); ok {
		current = p.Size
	}
	target := current.Add(c.Size())
	if reduces(current, target) {
		return nil
	}

	if g.halted {
		return fmt.Errorf("drawdown limit %v reached", g.cfg.MaxDrawdown)
	}
	if g.cfg.MaxExposure <= 0 {
		return nil
	}

	action, ok := prices[c.Asset().Key()]
	if !ok {
		// Unpriced orders cannot fill this step.
		return nil
	}
	value := c.Asset().Value(target.Abs(), action.Price(market.PriceDefault))
	converted, err := g.converter.Convert(value, acc.BaseCurrency, acc.LastUpdate)
	if err != nil {
		return fmt.Errorf("valuing exposure: %w", err)
	}

	limit := acc.Equity.Value.Mul(g.maxExposure)
	if converted.Value.GreaterThan(limit) {
		return fmt.Errorf("exposure %s above limit %s", converted.Value.StringFixed(2), limit.StringFixed(2))
	}
	return nil
}

// reduces reports whether moving from current to target only shrinks the
// position without flipping its side.
func reduces(current, target decimal.Decimal) bool {
	if target.IsZero() {
		return true
	}
	return target.Sign() == current.Sign() && target.Abs().LessThan(current.Abs())
}

// Halted reports whether the drawdown limit has been hit in this run.
func (g *Guard) Halted() bool { return g.halted }

// Name implements strategy.Strategy.
func (g *Guard) Name() string { return g.inner.Name() }

// Reset implements strategy.Strategy.
func (g *Guard) Reset() {
	g.inner.Reset()
	g.highWater.Reset()
	g.halted = false
}
