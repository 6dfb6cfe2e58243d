package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	PodsCreated = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sharepod_pods_created_total",
			Help: "Total pods created",
		},
	)
	PodJoins = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sharepod_pod_joins_total",
			Help: "Total successful pod joins",
		},
	)
	PaymentSessions = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "sharepod_payment_sessions_total",
			Help: "Total payment sessions created",
		},
	)
	PaymentsReconciled = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sharepod_payments_reconciled_total",
			Help: "Total terminal payment events reconciled",
		},
		[]string{"outcome"}, // succeeded|failed|canceled
	)
)

// Handler serves the /metrics endpoint.
var Handler = promhttp.Handler

func Init() {
	prometheus.MustRegister(PodsCreated)
	prometheus.MustRegister(PodJoins)
	prometheus.MustRegister(PaymentSessions)
	prometheus.MustRegister(PaymentsReconciled)
}
