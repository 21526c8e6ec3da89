package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "routewatch"

// Metrics holds the route mirror collectors
type Metrics struct {
	Queries       *prometheus.CounterVec
	QueryDuration *prometheus.HistogramVec
	Events        *prometheus.CounterVec
	KernelErrors  *prometheus.CounterVec
	TableSize     prometheus.Gauge
	LastUpdate    prometheus.Gauge
}

// NewMetrics creates the collectors and registers them with reg.
// A nil reg leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Queries: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "queries_total",
			Help:      "One-shot route queries by mode and result",
		}, []string{"mode", "result"}),
		QueryDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "query_duration_seconds",
			Help:      "Round trip time of one-shot route queries",
			Buckets:   prometheus.ExponentialBuckets(0.0005, 2, 12),
		}, []string{"mode"}),
		Events: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "Decoded route notifications by kind",
		}, []string{"kind"}),
		KernelErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "kernel_errors_total",
			Help:      "Errors answered by the kernel by errno",
		}, []string{"errno"}),
		TableSize: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_routes",
			Help:      "Routes currently mirrored from the main table",
		}),
		LastUpdate: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "table_last_update_timestamp_seconds",
			Help:      "Time of the last table change",
		}),
	}
}

// RecordQuery records one query round trip
func (m *Metrics) RecordQuery(mode string, duration time.Duration, success bool) {
	if m == nil {
		return
	}
	result := "success"
	if !success {
		result = "failure"
	}
	m.Queries.WithLabelValues(mode, result).Inc()
	m.QueryDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordEvent records one decoded notification
func (m *Metrics) RecordEvent(kind string) {
	if m == nil {
		return
	}
	m.Events.WithLabelValues(kind).Inc()
}

// RecordKernelError records an error answered by the kernel
func (m *Metrics) RecordKernelError(errno string) {
	if m == nil {
		return
	}
	m.KernelErrors.WithLabelValues(errno).Inc()
}

// RecordTableChange records the table size after a change
func (m *Metrics) RecordTableChange(size int) {
	if m == nil {
		return
	}
	m.TableSize.Set(float64(size))
	m.LastUpdate.SetToCurrentTime()
}
