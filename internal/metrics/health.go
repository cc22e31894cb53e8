package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	integrityChecksTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "health",
		Name:      "integrity_checks_total",
		Help:      "Chain integrity audits by outcome.",
	}, []string{"status"})

	chainHealthy = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Subsystem: "health",
		Name:      "chain_healthy",
		Help:      "1 if the last integrity audit passed, 0 otherwise.",
	})
)

// RecordIntegrityCheck records the outcome of a chain integrity audit.
func RecordIntegrityCheck(success bool) {
	if success {
		integrityChecksTotal.WithLabelValues("success").Inc()
		chainHealthy.Set(1)
		return
	}
	integrityChecksTotal.WithLabelValues("failure").Inc()
	chainHealthy.Set(0)
}
