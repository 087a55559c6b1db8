package service

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	paymentMetricsOnce     sync.Once
	reconciliationOutcomes *prometheus.CounterVec
	sessionOperations      *prometheus.CounterVec
)

func initPaymentMetrics() {
	paymentMetricsOnce.Do(func() {
		reconciliationOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_checkout",
			Subsystem: "reconciliation",
			Name:      "operations_total",
			Help:      "Order reconciliation operations by outcome",
		}, []string{"operation", "outcome"})

		sessionOperations = promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "storefront_checkout",
			Subsystem: "session",
			Name:      "operations_total",
			Help:      "Checkout session operations by outcome",
		}, []string{"operation", "outcome"})
	})
}

func observeReconciliation(operation string, outcome Outcome, err error) {
	label := string(outcome)
	if err != nil {
		label = "error"
	}
	reconciliationOutcomes.WithLabelValues(operation, label).Inc()
}

func observeSession(operation, outcome string) {
	sessionOperations.WithLabelValues(operation, outcome).Inc()
}
