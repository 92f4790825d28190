// internal/utils/metrics.go
package utils

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// MetricsCollector holds the domain metrics exported on /metrics
type MetricsCollector struct {
	recordsCreated *prometheus.CounterVec
	recordsDeleted *prometheus.CounterVec
	exports        *prometheus.CounterVec
	activeSessions prometheus.Gauge
}

var (
	globalMetrics *MetricsCollector
	metricsOnce   sync.Once
)

// GetMetricsCollector returns the global metrics collector, registered with the default registry
func GetMetricsCollector() *MetricsCollector {
	metricsOnce.Do(func() {
		globalMetrics = NewMetricsCollector(prometheus.DefaultRegisterer)
	})
	return globalMetrics
}

// NewMetricsCollector creates collectors and registers them with reg (nil skips registration)
func NewMetricsCollector(reg prometheus.Registerer) *MetricsCollector {
	m := &MetricsCollector{
		recordsCreated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vnscript",
			Name:      "records_created_total",
			Help:      "Story records created, by kind.",
		}, []string{"kind"}),
		recordsDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vnscript",
			Name:      "records_deleted_total",
			Help:      "Story records deleted, by kind.",
		}, []string{"kind"}),
		exports: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vnscript",
			Name:      "exports_total",
			Help:      "Script exports produced, by format.",
		}, []string{"format"}),
		activeSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "vnscript",
			Name:      "active_sessions",
			Help:      "Sessions currently holding a workspace.",
		}),
	}

	if reg != nil {
		reg.MustRegister(m.recordsCreated, m.recordsDeleted, m.exports, m.activeSessions)
	}
	return m
}

// RecordCreated counts a created record of the given kind
func (m *MetricsCollector) RecordCreated(kind string) {
	m.recordsCreated.WithLabelValues(kind).Inc()
}

// RecordDeleted counts a deleted record of the given kind
func (m *MetricsCollector) RecordDeleted(kind string) {
	m.recordsDeleted.WithLabelValues(kind).Inc()
}

// RecordExport counts an export in the given format
func (m *MetricsCollector) RecordExport(format string) {
	m.exports.WithLabelValues(format).Inc()
}

// SetActiveSessions sets the active session gauge
func (m *MetricsCollector) SetActiveSessions(n int) {
	m.activeSessions.Set(float64(n))
}
