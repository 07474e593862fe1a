// Package metrics exposes Prometheus collectors for simulation runs and a
// small HTTP server for scraping them.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "backsim"

var (
	ExecutionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "executions_total",
		Help:      "Executions booked by the simulated broker",
	}, []string{"run", "asset", "side"})

	OrderStatusTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "order_status_total",
		Help:      "Orders that reached a final status",
	}, []string{"run", "status"})

	OpenOrders = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "open_orders",
		Help:      "Orders still open after the last step",
	}, []string{"run"})

	BuyingPower = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "buying_power",
		Help:      "Buying power in the base currency",
	}, []string{"run"})

	Equity = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "equity",
		Help:      "Account equity in the base currency",
	}, []string{"run"})

	StepLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "step_duration_seconds",
		Help:      "Time spent processing one market event",
		Buckets:   prometheus.ExponentialBuckets(0.00001, 4, 10),
	}, []string{"run"})

	RunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "runs_total",
		Help:      "Completed simulation runs by outcome",
	}, []string{"outcome"})

	ErrorsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "errors_total",
		Help:      "Errors by kind",
	}, []string{"kind"})
)
