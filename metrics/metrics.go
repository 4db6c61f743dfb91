package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the ledger collectors. Register them on a private
// registry in tests and on the server registry in cmd/server.
type Metrics struct {
	OrdersSubmitted *prometheus.CounterVec
	OrdersResting   *prometheus.GaugeVec
	Renders         prometheus.Counter
	SubmitDuration  prometheus.Histogram
	OutboxPublished *prometheus.CounterVec
}

func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		OrdersSubmitted: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_orders_submitted_total",
				Help: "Total number of accepted order submissions",
			},
			[]string{"side"},
		),
		OrdersResting: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "ledger_orders_resting",
				Help: "Number of orders held per side",
			},
			[]string{"side"},
		),
		Renders: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "ledger_renders_total",
				Help: "Total number of rendered reports",
			},
		),
		SubmitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "ledger_submit_duration_seconds",
				Help:    "Time spent applying a submission, journal and outbox included",
				Buckets: prometheus.ExponentialBuckets(0.00001, 4, 10),
			},
		),
		OutboxPublished: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_outbox_published_total",
				Help: "Outbox relay attempts by result",
			},
			[]string{"result"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.OrdersSubmitted,
			m.OrdersResting,
			m.Renders,
			m.SubmitDuration,
			m.OutboxPublished,
		)
	}
	return m
}
