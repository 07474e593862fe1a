package indicator

import "math"

// ATR is the average true range over a fixed number of bars, where
// true range = max(high - low, |high - prev close|, |low - prev close|).
type ATR struct {
	ranges    *Window
	prevClose float64
	started   bool
}

// NewATR creates an ATR over period bars.
func NewATR(period int) *ATR {
	return &ATR{ranges: NewWindow(period)}
}

// Update adds a bar and returns the ATR, or 0 until period bars were seen.
func (a *ATR) Update(high, low, close float64) float64 {
	tr := high - low
	if a.started {
		tr = math.Max(tr, math.Max(math.Abs(high-a.prevClose), math.Abs(low-a.prevClose)))
	}
	a.prevClose = close
	a.started = true

	a.ranges.Push(tr)
	return a.ranges.Mean()
}

// Current returns the ATR without adding a bar.
func (a *ATR) Current() float64 { return a.ranges.Mean() }
func (a *ATR) Ready() bool      { return a.ranges.Ready() }

// Reset clears all bars.
func (a *ATR) Reset() {
	a.ranges.Reset()
	a.prevClose = 0
	a.started = false
}
