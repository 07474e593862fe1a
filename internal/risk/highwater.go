// Package risk filters strategy orders against account level limits.
package risk

import (
	"github.com/shopspring/decimal"
)

// HighWater tracks the peak equity of a run and the drawdown from it.
type HighWater struct {
	peak    decimal.Decimal
	current decimal.Decimal
}

// Update records the latest equity and reports whether it set a new peak.
func (h *HighWater) Update(equity decimal.Decimal) bool {
	h.current = equity
	if equity.GreaterThan(h.peak) {
		h.peak = equity
		return true
	}
	return false
}

func (h *HighWater) Peak() decimal.Decimal    { return h.peak }
func (h *HighWater) Current() decimal.Decimal { return h.current }

// Drawdown is (peak - current) / peak, zero at or above the peak.
func (h *HighWater) Drawdown() decimal.Decimal {
	if !h.peak.IsPositive() || h.current.GreaterThanOrEqual(h.peak) {
		return decimal.Zero
	}
	return h.peak.Sub(h.current).Div(h.peak)
}

// Reset forgets the peak.
func (h *HighWater) Reset() {
	*h = HighWater{}
}
