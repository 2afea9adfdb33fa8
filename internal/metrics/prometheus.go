package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps prometheus collectors for agent metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	dispatchTotal    *prometheus.CounterVec
	dispatchDuration *prometheus.HistogramVec

	registerFailuresTotal *prometheus.CounterVec

	queueFree    prometheus.Gauge
	queueWaiting prometheus.Gauge
	queueActive  prometheus.Gauge

	poolCount     *prometheus.GaugeVec
	poolStackUsed *prometheus.GaugeVec
	poolHeapUsed  *prometheus.GaugeVec

	uptime prometheus.GaugeFunc
}

// Default histogram buckets for dispatch duration (in milliseconds).
var defaultBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

var promMetrics *PrometheusMetrics

// InitPrometheus initializes the Prometheus metrics subsystem.
func InitPrometheus(namespace string, buckets []float64) {
	if len(buckets) == 0 {
		buckets = defaultBuckets
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	pm := &PrometheusMetrics{
		registry: registry,

		dispatchTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "dispatch_total",
				Help:      "Total number of dispatched requests",
			},
			[]string{"action", "status"},
		),

		dispatchDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "dispatch_duration_milliseconds",
				Help:      "Duration of a dispatched request in milliseconds",
				Buckets:   buckets,
			},
			[]string{"action"},
		),

		registerFailuresTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "register_failures_total",
				Help:      "Total Register/Deregister failures by item kind",
			},
			[]string{"kind"},
		),

		queueFree: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_free_slots", Help: "Free request-queue slots",
		}),
		queueWaiting: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_waiting_slots", Help: "Waiting request-queue slots",
		}),
		queueActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_active_slots", Help: "Active request-queue slots",
		}),

		poolCount: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "pool_item_count", Help: "Live items in a pool"},
			[]string{"pool"},
		),
		poolStackUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "pool_stack_used", Help: "Inline-tier items in use"},
			[]string{"pool"},
		),
		poolHeapUsed: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{Namespace: namespace, Name: "pool_heap_used", Help: "Heap-tier items in use"},
			[]string{"pool"},
		),
	}

	pm.uptime = prometheus.NewGaugeFunc(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "uptime_seconds",
			Help:      "Time since the agent started",
		},
		func() float64 {
			return time.Since(StartTime()).Seconds()
		},
	)

	registry.MustRegister(
		pm.dispatchTotal,
		pm.dispatchDuration,
		pm.registerFailuresTotal,
		pm.queueFree,
		pm.queueWaiting,
		pm.queueActive,
		pm.poolCount,
		pm.poolStackUsed,
		pm.poolHeapUsed,
		pm.uptime,
	)

	promMetrics = pm
}

// RecordDispatch records one dispatched request in Prometheus.
func RecordDispatch(action, status string, durationMs int64) {
	if promMetrics == nil {
		return
	}
	promMetrics.dispatchTotal.WithLabelValues(action, status).Inc()
	promMetrics.dispatchDuration.WithLabelValues(action).Observe(float64(durationMs))
}

// RecordRegisterFailure records a Register/Deregister failure for kind.
func RecordRegisterFailure(kind string) {
	if promMetrics == nil {
		return
	}
	promMetrics.registerFailuresTotal.WithLabelValues(kind).Inc()
}

// SetQueueStats sets the three queue occupancy gauges.
func SetQueueStats(free, waiting, active int) {
	if promMetrics == nil {
		return
	}
	promMetrics.queueFree.Set(float64(free))
	promMetrics.queueWaiting.Set(float64(waiting))
	promMetrics.queueActive.Set(float64(active))
}

// SetPoolStats sets the occupancy gauges for the named pool
// ("telemetry", "action", "alarm").
func SetPoolStats(pool string, count, stackUsed, heapUsed int) {
	if promMetrics == nil {
		return
	}
	promMetrics.poolCount.WithLabelValues(pool).Set(float64(count))
	promMetrics.poolStackUsed.WithLabelValues(pool).Set(float64(stackUsed))
	promMetrics.poolHeapUsed.WithLabelValues(pool).Set(float64(heapUsed))
}

// PrometheusHandler returns an HTTP handler for Prometheus metrics scraping.
func PrometheusHandler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte("prometheus metrics not initialized"))
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// PrometheusRegistry returns the prometheus registry (for custom collectors).
func PrometheusRegistry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
