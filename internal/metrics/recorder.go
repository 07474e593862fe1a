package metrics

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/tathienbao/backsim/internal/types"
)

// Recorder writes the metrics of one run. A nil Recorder records nothing.
type Recorder struct {
	run string
}

// NewRecorder creates a recorder labelling every series with run.
func NewRecorder(run string) *Recorder {
	return &Recorder{run: run}
}

// Run returns the run label.
func (r *Recorder) Run() string {
	if r == nil {
		return ""
	}
	return r.run
}

// RecordExecution counts one fill.
func (r *Recorder) RecordExecution(asset string, size decimal.Decimal) {
	if r == nil {
		return
	}
	ExecutionsTotal.WithLabelValues(r.run, asset, types.SideOf(size).String()).Inc()
}

// RecordOrderStatus counts an order reaching status.
func (r *Recorder) RecordOrderStatus(status types.OrderStatus) {
	if r == nil {
		return
	}
	OrderStatusTotal.WithLabelValues(r.run, status.String()).Inc()
}

// RecordAccount sets the account gauges after a step.
func (r *Recorder) RecordAccount(equity, buyingPower decimal.Decimal, open int) {
	if r == nil {
		return
	}
	Equity.WithLabelValues(r.run).Set(equity.InexactFloat64())
	BuyingPower.WithLabelValues(r.run).Set(buyingPower.InexactFloat64())
	OpenOrders.WithLabelValues(r.run).Set(float64(open))
}

// RecordStep observes the processing time of one event.
func (r *Recorder) RecordStep(d time.Duration) {
	if r == nil {
		return
	}
	StepLatency.WithLabelValues(r.run).Observe(d.Seconds())
}

// RecordRun counts a finished run. A nil err counts as success.
func (r *Recorder) RecordRun(err error) {
	if r == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
		r.RecordError(err)
	}
	RunsTotal.WithLabelValues(outcome).Inc()
}

// RecordError counts err under its kind, or "other" when it has none.
func (r *Recorder) RecordError(err error) {
	if r == nil || err == nil {
		return
	}
	kind := "other"
	if k := types.KindOf(err); k != 0 {
		kind = k.String()
	}
	ErrorsTotal.WithLabelValues(kind).Inc()
}

// Timer measures the time since it was started.
type Timer struct {
	start time.Time
}

// NewTimer starts a timer.
func NewTimer() Timer {
	return Timer{start: time.Now()}
}

// Elapsed returns the time since the timer started.
func (t Timer) Elapsed() time.Duration {
	return time.Since(t.start)
}
