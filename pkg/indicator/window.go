// Package indicator provides rolling technical indicators over price series.
package indicator

import (
	"gonum.org/v1/gonum/stat"
)

// Window keeps the last n values of a series.
type Window struct {
	size   int
	values []float64
}

// NewWindow creates a window of n values; n below 1 is treated as 1.
func NewWindow(n int) *Window {
	if n < 1 {
		n = 1
	}
	return &Window{size: n, values: make([]float64, 0, n)}
}

// Push appends v, dropping the oldest value once the window is full.
func (w *Window) Push(v float64) {
	if len(w.values) == w.size {
		copy(w.values, w.values[1:])
		w.values = w.values[:w.size-1]
	}
	w.values = append(w.values, v)
}

// Ready reports whether the window is full.
func (w *Window) Ready() bool { return len(w.values) == w.size }

func (w *Window) Len() int  { return len(w.values) }
func (w *Window) Size() int { return w.size }

// Mean returns the average of the held values, or 0 until ready.
func (w *Window) Mean() float64 {
	if !w.Ready() {
		return 0
	}
	return stat.Mean(w.values, nil)
}

// Bands returns the mean and the population standard deviation, or zeros
// until ready.
func (w *Window) Bands() (mean, std float64) {
	if !w.Ready() {
		return 0, 0
	}
	return stat.PopMeanStdDev(w.values, nil)
}

// Reset empties the window.
func (w *Window) Reset() {
	w.values = w.values[:0]
}
