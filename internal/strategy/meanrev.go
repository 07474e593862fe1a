package strategy

import (
	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/account"
	"github.com/tathienbao/backsim/internal/market"
	"github.com/tathienbao/backsim/internal/order"
	"github.com/tathienbao/backsim/pkg/indicator"
)

// MeanRevConfig holds the mean reversion parameters.
type MeanRevConfig struct {
	Period      int     // Bars in the mean and deviation window
	EntryStdDev float64 // Distance from the mean, in deviations, that opens a position
	Size        decimal.Decimal
	ATRPeriod   int
	StopATR     float64 // Protective stop distance in ATRs; 0 places no stop
}

// DefaultMeanRevConfig returns a 20-bar, 2-deviation setup with a 1.5 ATR stop.
func DefaultMeanRevConfig() MeanRevConfig {
	return MeanRevConfig{
		Period:      20,
		EntryStdDev: 2,
		Size:        decimal.NewFromInt(1),
		ATRPeriod:   14,
		StopATR:     1.5,
	}
}

// MeanReversion goes long when the close falls below the lower band and
// short when it rises above the upper band, using the bands of the previous
// bars. The position is closed when the close crosses back over the mean.
type MeanReversion struct {
	cfg    MeanRevConfig
	assets map[string]*meanRevState
}

type meanRevState struct {
	closes *indicator.Window
	atr    *indicator.ATR
	stops  []*order.StopOrder // Emitted and not yet seen closed
}

// NewMeanReversion creates the strategy.
func NewMeanReversion(cfg MeanRevConfig) *MeanReversion {
	return &MeanReversion{cfg: cfg, assets: make(map[string]*meanRevState)}
}

// Generate implements Strategy.
func (m *MeanReversion) Generate(event market.Event, acc account.Account) []order.Order {
	var orders []order.Order
	for _, action := range sortedPrices(event) {
		orders = append(orders, m.onPrice(action, acc)...)
	}
	return orders
}

func (m *MeanReversion) onPrice(action market.PriceAction, acc account.Account) []order.Order {
	asset := action.Asset()
	st, ok := m.assets[asset.Key()]
	if !ok {
		st = &meanRevState{
			closes: indicator.NewWindow(m.cfg.Period),
			atr:    indicator.NewATR(m.cfg.ATRPeriod),
		}
		m.assets[asset.Key()] = st
	}

	closePrice := action.Price(market.PriceClose).InexactFloat64()
	mean, std := st.closes.Bands()
	ready := st.closes.Ready()

	st.closes.Push(closePrice)
	atr := st.atr.Update(
		action.Price(market.PriceHigh).InexactFloat64(),
		action.Price(market.PriceLow).InexactFloat64(),
		closePrice,
	)

	if !ready || std == 0 {
		return nil
	}

	current := decimal.Zero
	if p, ok := acc.Position(asset); ok {
		current = p.Size
	}

	target := current
	deviation := std * m.cfg.EntryStdDev
	switch {
	case closePrice < mean-deviation:
		target = m.cfg.Size
	case closePrice > mean+deviation:
		target = m.cfg.Size.Neg()
	case current.IsPositive() && closePrice >= mean,
		current.IsNegative() && closePrice <= mean:
		target = decimal.Zero
	}
	if target.Equal(current) {
		return nil
	}

	// Stops stay tracked until the account reports them closed, so a cancel
	// that never reached the broker is sent again on the next signal.
	var orders []order.Order
	open := st.stops[:0]
	for _, stop := range st.stops {
		if status, ok := acc.OrderStatus(stop.ID()); ok && status.IsOpen() {
			orders = append(orders, order.NewCancel(stop, order.WithTag(m.Name())))
			open = append(open, stop)
		}
	}
	st.stops = open

	orders = append(orders, order.NewMarket(asset, target.Sub(current), order.WithTag(m.Name())))

	if !target.IsZero() && m.cfg.StopATR > 0 && st.atr.Ready() {
		distance := decimal.NewFromFloat(atr * m.cfg.StopATR)
		price := action.Price(market.PriceClose)
		if target.IsPositive() {
			price = price.Sub(distance)
		} else {
			price = price.Add(distance)
		}
		if price.IsPositive() {
			stop := order.NewStop(asset, target.Neg(), price, order.WithTag(m.Name()))
			st.stops = append(st.stops, stop)
			orders = append(orders, stop)
		}
	}
	return orders
}

func (m *MeanReversion) Name() string { return "meanrev" }

// Reset implements Strategy.
func (m *MeanReversion) Reset() {
	m.assets = make(map[string]*meanRevState)
}
