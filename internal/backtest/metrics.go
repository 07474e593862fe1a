package backtest

import (
	"math"

	"github.com/shopspring/decimal"
	"gonum.org/v1/gonum/stat"

	"github.com/tathienbao/backsim/internal/account"
)

// Metrics derives performance statistics from a finished run.
type Metrics struct {
	trades         []account.Trade
	curve          []EquityPoint
	riskFreeRate   float64 // Annual, e.g. 0.05 for 5%
	periodsPerYear float64
}

// NewMetrics creates a calculator over the trades and equity curve of
// result. Step returns are annualized assuming periodsPerYear steps a year;
// 252 suits daily bars.
func NewMetrics(result *Result, riskFreeRate, periodsPerYear float64) *Metrics {
	if periodsPerYear <= 0 {
		periodsPerYear = 252
	}
	return &Metrics{
		trades:         result.Trades,
		curve:          result.EquityCurve,
		riskFreeRate:   riskFreeRate,
		periodsPerYear: periodsPerYear,
	}
}

// Returns is the relative equity change from one step to the next. Steps
// that start from zero equity are skipped.
func (m *Metrics) Returns() []float64 {
	return stepReturns(m.curve)
}

// SharpeRatio is the annualized mean excess step return over its sample
// standard deviation.
func (m *Metrics) SharpeRatio() float64 {
	returns := m.Returns()
	if len(returns) < 2 {
		return 0
	}

	mean, std := stat.MeanStdDev(returns, nil)
	if std == 0 {
		return 0
	}
	excess := mean - m.riskFreeRate/m.periodsPerYear
	return excess / std * math.Sqrt(m.periodsPerYear)
}

// SortinoRatio is like SharpeRatio but only penalizes negative returns.
func (m *Metrics) SortinoRatio() float64 {
	returns := m.Returns()
	if len(returns) < 2 {
		return 0
	}

	var downside []float64
	for _, r := range returns {
		if r < 0 {
			downside = append(downside, r)
		}
	}
	if len(downside) < 2 {
		return 0
	}

	dev := stat.StdDev(downside, nil)
	if dev == 0 {
		return 0
	}
	excess := stat.Mean(returns, nil) - m.riskFreeRate/m.periodsPerYear
	return excess / dev * math.Sqrt(m.periodsPerYear)
}

// MaxDrawdown returns the largest peak-to-trough decline as a ratio.
func (m *Metrics) MaxDrawdown() decimal.Decimal {
	maxDD := decimal.Zero
	for _, p := range m.curve {
		if p.Drawdown.GreaterThan(maxDD) {
			maxDD = p.Drawdown
		}
	}
	return maxDD
}

// CalmarRatio is the annualized return over the maximum drawdown.
func (m *Metrics) CalmarRatio(annualized float64) float64 {
	dd := m.MaxDrawdown().InexactFloat64()
	if dd == 0 {
		return 0
	}
	return annualized / dd
}

// closing returns the trades that realized a profit or loss. Opening fills
// carry no realized PNL and are left out of the trade statistics.
func (m *Metrics) closing() []account.Trade {
	var out []account.Trade
	for _, t := range m.trades {
		if !t.PNL.Value.IsZero() {
			out = append(out, t)
		}
	}
	return out
}

// WinRate is the share of closing trades with a positive net PNL.
func (m *Metrics) WinRate() decimal.Decimal {
	closing := m.closing()
	if len(closing) == 0 {
		return decimal.Zero
	}

	wins := 0
	for _, t := range closing {
		if t.NetPNL().Value.IsPositive() {
			wins++
		}
	}
	return decimal.NewFromInt(int64(wins)).Div(decimal.NewFromInt(int64(len(closing))))
}

// ProfitFactor is gross profit over gross loss of the closing trades.
func (m *Metrics) ProfitFactor() decimal.Decimal {
	profit, loss := decimal.Zero, decimal.Zero
	for _, t := range m.closing() {
		pnl := t.NetPNL().Value
		if pnl.IsPositive() {
			profit = profit.Add(pnl)
		} else {
			loss = loss.Add(pnl.Abs())
		}
	}
	if loss.IsZero() {
		return decimal.Zero
	}
	return profit.Div(loss)
}

// AverageWin is the mean net PNL of winning closing trades.
func (m *Metrics) AverageWin() decimal.Decimal {
	return m.average(func(d decimal.Decimal) bool { return d.IsPositive() })
}

// AverageLoss is the mean net PNL of losing closing trades; it is negative.
func (m *Metrics) AverageLoss() decimal.Decimal {
	return m.average(func(d decimal.Decimal) bool { return d.IsNegative() })
}

func (m *Metrics) average(keep func(decimal.Decimal) bool) decimal.Decimal {
	total := decimal.Zero
	n := 0
	for _, t := range m.closing() {
		if pnl := t.NetPNL().Value; keep(pnl) {
			total = total.Add(pnl)
			n++
		}
	}
	if n == 0 {
		return decimal.Zero
	}
	return total.Div(decimal.NewFromInt(int64(n)))
}

// Expectancy is the expected net PNL of one closing trade.
func (m *Metrics) Expectancy() decimal.Decimal {
	winRate := m.WinRate()
	lossRate := decimal.NewFromInt(1).Sub(winRate)
	return winRate.Mul(m.AverageWin()).Add(lossRate.Mul(m.AverageLoss()))
}

func stepReturns(curve []EquityPoint) []float64 {
	if len(curve) < 2 {
		return nil
	}
	returns := make([]float64, 0, len(curve)-1)
	for i := 1; i < len(curve); i++ {
		prev := curve[i-1].Equity
		if prev.IsZero() {
			continue
		}
		returns = append(returns, curve[i].Equity.Sub(prev).Div(prev).InexactFloat64())
	}
	return returns
}
