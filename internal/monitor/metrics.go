// Package monitor: метрики Prometheus, отдаются на /metrics.
//
//   - signal_trader_signals_total{action,status}
//   - signal_trader_orders_total{type,result}
//   - signal_trader_antispam_total{decision}
//   - signal_trader_notifications_total{result}
//   - signal_trader_unprotected_positions_total
//   - signal_trader_signal_duration_seconds{action}
package monitor

import "github.com/prometheus/client_golang/prometheus"

var (
	Signals = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_trader_signals_total",
			Help: "Inbound trade signals by action and final status",
		},
		[]string{"action", "status"},
	)

	Orders = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_trader_orders_total",
			Help: "Orders sent to the exchange by type and result (ok|error)",
		},
		[]string{"type", "result"},
	)

	AntiSpam = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_trader_antispam_total",
			Help: "Anti-spam gate decisions",
		},
		[]string{"decision"},
	)

	Notifications = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "signal_trader_notifications_total",
			Help: "Outbound chat notifications by result",
		},
		[]string{"result"},
	)

	// позиция открыта, но стоп или трейлинг не встали
	UnprotectedPositions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "signal_trader_unprotected_positions_total",
			Help: "Entries left without a protective stop or trailing order",
		},
	)

	SignalDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "signal_trader_signal_duration_seconds",
			Help:    "End-to-end signal handling latency",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		},
		[]string{"action"},
	)
)

func init() {
	prometheus.MustRegister(
		Signals,
		Orders,
		AntiSpam,
		Notifications,
		UnprotectedPositions,
		SignalDuration,
	)
}

// OrderResult: метка result для Orders.
func OrderResult(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
