package observability

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type moduleMetrics struct {
	storeOpTotal    *prometheus.CounterVec
	storeOpDuration *prometheus.HistogramVec
	memoriesTotal   prometheus.Gauge

	recallDuration prometheus.Histogram
	recallFanout   prometheus.Histogram

	capabilityDuration *prometheus.HistogramVec
	learnOutcomeTotal  *prometheus.CounterVec
	reconcileRepairs   *prometheus.CounterVec
}

var (
	metricsOnce sync.Once
	metricsInst *moduleMetrics
)

func getMetrics() *moduleMetrics {
	metricsOnce.Do(func() {
		m := &moduleMetrics{
			storeOpTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "memory_store_ops_total",
					Help: "Total memory store operations by op and status.",
				},
				[]string{"op", "status"},
			),
			storeOpDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "memory_store_op_duration_seconds",
					Help:    "Memory store operation duration in seconds by op.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"op"},
			),
			memoriesTotal: prometheus.NewGauge(
				prometheus.GaugeOpts{
					Name: "memories_total",
					Help: "Total live memories in the index.",
				},
			),
			recallDuration: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "recall_duration_seconds",
					Help:    "End-to-end recall duration in seconds.",
					Buckets: prometheus.DefBuckets,
				},
			),
			recallFanout: prometheus.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "recall_fanout_queries",
					Help:    "Number of queries fanned out per recall.",
					Buckets: []float64{1, 2, 3, 5, 8, 13, 21},
				},
			),
			capabilityDuration: prometheus.NewHistogramVec(
				prometheus.HistogramOpts{
					Name:    "capability_call_duration_seconds",
					Help:    "External capability call duration in seconds by kind.",
					Buckets: prometheus.DefBuckets,
				},
				[]string{"kind"},
			),
			learnOutcomeTotal: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "learn_outcomes_total",
					Help: "Total learn item outcomes by stage and status.",
				},
				[]string{"stage", "status"},
			),
			reconcileRepairs: prometheus.NewCounterVec(
				prometheus.CounterOpts{
					Name: "reconcile_repairs_total",
					Help: "Total reconcile repairs by kind.",
				},
				[]string{"kind"},
			),
		}

		prometheus.MustRegister(
			m.storeOpTotal,
			m.storeOpDuration,
			m.memoriesTotal,
			m.recallDuration,
			m.recallFanout,
			m.capabilityDuration,
			m.learnOutcomeTotal,
			m.reconcileRepairs,
		)

		metricsInst = m
	})

	return metricsInst
}

// EnsureRegistered initializes and registers metrics the first time it is called.
func EnsureRegistered() {
	_ = getMetrics()
}

// MetricsHandler exposes the prometheus scrape endpoint.
func MetricsHandler() http.Handler {
	EnsureRegistered()
	return promhttp.Handler()
}

// RecordStoreOp records one store operation with its duration and outcome.
func RecordStoreOp(op string, duration time.Duration, success bool) {
	m := getMetrics()
	status := "error"
	if success {
		status = "success"
	}
	m.storeOpTotal.WithLabelValues(op, status).Inc()
	m.storeOpDuration.WithLabelValues(op).Observe(duration.Seconds())
}

// SetMemoriesTotal sets the live-memory gauge.
func SetMemoriesTotal(n int) {
	getMetrics().memoriesTotal.Set(float64(n))
}

// RecordRecall records one recall with its fan-out size.
func RecordRecall(duration time.Duration, queries int) {
	m := getMetrics()
	m.recallDuration.Observe(duration.Seconds())
	m.recallFanout.Observe(float64(queries))
}

// RecordCapabilityCall records one external capability call.
func RecordCapabilityCall(kind string, duration time.Duration) {
	getMetrics().capabilityDuration.WithLabelValues(kind).Observe(duration.Seconds())
}

// RecordLearnOutcome records one learn item outcome.
func RecordLearnOutcome(stage, status string) {
	getMetrics().learnOutcomeTotal.WithLabelValues(stage, status).Inc()
}

// RecordReconcileRepair records one reconcile repair action.
func RecordReconcileRepair(kind string) {
	getMetrics().reconcileRepairs.WithLabelValues(kind).Inc()
}
