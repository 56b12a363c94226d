package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

var (
	// HTTP metrics
	HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name: "http_request_duration_seconds",
			Help: "Duration of HTTP requests in seconds",
		},
		[]string{"method", "path"},
	)
	HTTPRequestsInFlight = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests in flight",
		},
	)

	// Entitlement metrics
	RedemptionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "redeem_code_redemptions_total",
			Help: "Total number of redeem code redemption attempts",
		},
		[]string{"result"},
	)
	PurchasesCompletedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "purchases_completed_total",
			Help: "Total number of completed purchases",
		},
	)
	PaymentIntentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "payment_intents_total",
			Help: "Total number of payment intents created",
		},
		[]string{"status"},
	)
	AccessChecksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "access_checks_total",
			Help: "Total number of entitlement access checks",
		},
		[]string{"result"},
	)
)

func InitMetrics() {
	prometheus.MustRegister(HTTPRequestsTotal)
	prometheus.MustRegister(HTTPRequestDuration)
	prometheus.MustRegister(HTTPRequestsInFlight)

	prometheus.MustRegister(RedemptionsTotal)
	prometheus.MustRegister(PurchasesCompletedTotal)
	prometheus.MustRegister(PaymentIntentsTotal)
	prometheus.MustRegister(AccessChecksTotal)

	// Standard Go runtime metrics
	prometheus.MustRegister(collectors.NewGoCollector())
	prometheus.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
}
