// Package metrics collects and exposes agent observability data.
//
// # Design rationale
//
// Two metric stores coexist in this package:
//
//  1. The in-process Metrics struct (per-action counters + time series)
//     for the lightweight JSON endpoint (agentlib serves it at the
//     metrics path plus ".json").
//  2. A Prometheus registry (prometheus.go) for scraping by external
//     monitoring systems (Grafana, Alertmanager, etc.).
//
// Keeping both lets an embedding process work without a Prometheus
// sidecar while still supporting enterprise monitoring stacks.
//
// # Concurrency — hot path
//
// RecordDispatchWithDetails is called from the dispatcher on every
// completed request and must be as fast as possible. It uses atomic
// increments for global counters and dispatches a lightweight event
// onto a buffered channel (tsChan) for the time-series worker to
// process asynchronously. This avoids holding any lock on the hot
// path.
//
// The per-action ActionMetrics struct also uses atomic operations
// exclusively; the sync.Map that stores the per-action entries is
// read-heavy and write-once-per-new-action, which is the ideal use
// case for sync.Map.
//
// # Invariants
//
//   - TotalDispatches == SuccessDispatches + FailedDispatches (maintained
//     by RecordDispatch and RecordDispatchWithDetails).
//   - The time-series ring buffer holds at most timeSeriesBucketCount buckets
//     (24 * 60 = 1440 for the last 24 hours at 1-minute granularity).
//   - tsChan capacity is 8192 events; events dropped when full are counted
//     in tsDroppedEvents for observability.
package metrics

import (
	"encoding/json"
	"net/http"
	"sync"
	"sync/atomic"
	"time"
)

const (
	timeSeriesBucketDuration = time.Minute
	timeSeriesBucketCount    = 24 * 60
)

// TimeSeriesBucket stores metrics for a single time bucket.
type TimeSeriesBucket struct {
	Timestamp    time.Time
	Dispatches   int64
	Errors       int64
	TotalLatency int64
	Count        int64 // for calculating avg
}

// Metrics collects and exposes agent runtime metrics.
type Metrics struct {
	TotalDispatches   atomic.Int64
	SuccessDispatches atomic.Int64
	FailedDispatches  atomic.Int64

	TotalLatencyMs atomic.Int64
	MinLatencyMs   atomic.Int64
	MaxLatencyMs   atomic.Int64

	RegisterFailures atomic.Int64

	// Per-action metrics
	actionMetrics sync.Map // actionName -> *ActionMetrics

	// Time-series data (minute buckets for last 24 hours)
	timeSeriesMu    sync.RWMutex
	timeSeries      []*TimeSeriesBucket
	tsChan          chan timeSeriesEvent
	tsDroppedEvents atomic.Int64

	startTime time.Time
}

// timeSeriesEvent is sent over a channel to avoid write-lock contention on the hot path.
type timeSeriesEvent struct {
	durationMs int64
	isError    bool
}

// ActionMetrics tracks metrics for a single action.
type ActionMetrics struct {
	Dispatches atomic.Int64
	Successes  atomic.Int64
	Failures   atomic.Int64
	TotalMs    atomic.Int64
	MinMs      atomic.Int64
	MaxMs      atomic.Int64
}

// Global metrics instance.
var global = &Metrics{startTime: time.Now()}

func init() {
	global.MinLatencyMs.Store(int64(^uint64(0) >> 1)) // Max int64
	global.tsChan = make(chan timeSeriesEvent, 8192)
	global.initTimeSeries()
	go global.processTimeSeriesLoop()
}

// initTimeSeries initializes minute-level buckets for the last 24 hours.
func (m *Metrics) initTimeSeries() {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)
	m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
	for i := 0; i < timeSeriesBucketCount; i++ {
		m.timeSeries[i] = &TimeSeriesBucket{
			Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
		}
	}
}

// Global returns the global metrics instance.
func Global() *Metrics {
	return global
}

// StartTime returns the time when the metrics system was initialized.
func StartTime() time.Time {
	return global.startTime
}

// RecordDispatch records a dispatch result.
func (m *Metrics) RecordDispatch(actionName string, durationMs int64, success bool) {
	m.RecordDispatchWithDetails(actionName, "", durationMs, success)
}

// RecordDispatchWithDetails records a dispatch with a status label for Prometheus.
func (m *Metrics) RecordDispatchWithDetails(actionName, status string, durationMs int64, success bool) {
	m.TotalDispatches.Add(1)

	if success {
		m.SuccessDispatches.Add(1)
	} else {
		m.FailedDispatches.Add(1)
	}

	m.TotalLatencyMs.Add(durationMs)
	updateMin(&m.MinLatencyMs, durationMs)
	updateMax(&m.MaxLatencyMs, durationMs)

	am := m.getActionMetrics(actionName)
	am.Dispatches.Add(1)
	if success {
		am.Successes.Add(1)
	} else {
		am.Failures.Add(1)
	}
	am.TotalMs.Add(durationMs)
	updateMin(&am.MinMs, durationMs)
	updateMax(&am.MaxMs, durationMs)

	m.recordTimeSeries(durationMs, !success)

	if status == "" {
		status = "success"
		if !success {
			status = "failure"
		}
	}
	RecordDispatch(actionName, status, durationMs)
}

// recordTimeSeries enqueues a time-series event for async processing,
// avoiding a write-lock on the hot dispatch path.
func (m *Metrics) recordTimeSeries(durationMs int64, isError bool) {
	select {
	case m.tsChan <- timeSeriesEvent{durationMs: durationMs, isError: isError}:
	default:
		m.tsDroppedEvents.Add(1)
	}
}

// processTimeSeriesLoop drains tsChan and applies events under a write lock.
func (m *Metrics) processTimeSeriesLoop() {
	for evt := range m.tsChan {
		m.applyTimeSeriesEvent(evt.durationMs, evt.isError)
	}
}

// applyTimeSeriesEvent updates the time-series buckets (must be called from a single goroutine).
func (m *Metrics) applyTimeSeriesEvent(durationMs int64, isError bool) {
	m.timeSeriesMu.Lock()
	defer m.timeSeriesMu.Unlock()

	now := time.Now().Truncate(timeSeriesBucketDuration)

	if len(m.timeSeries) > 0 {
		lastBucket := m.timeSeries[len(m.timeSeries)-1]
		bucketsDiff := int(now.Sub(lastBucket.Timestamp) / timeSeriesBucketDuration)

		if bucketsDiff > 0 {
			if bucketsDiff >= timeSeriesBucketCount {
				m.timeSeries = make([]*TimeSeriesBucket, timeSeriesBucketCount)
				for i := 0; i < timeSeriesBucketCount; i++ {
					m.timeSeries[i] = &TimeSeriesBucket{
						Timestamp: now.Add(time.Duration(i-(timeSeriesBucketCount-1)) * timeSeriesBucketDuration),
					}
				}
			} else {
				m.timeSeries = m.timeSeries[bucketsDiff:]
				for i := 0; i < bucketsDiff; i++ {
					m.timeSeries = append(m.timeSeries, &TimeSeriesBucket{
						Timestamp: lastBucket.Timestamp.Add(time.Duration(i+1) * timeSeriesBucketDuration),
					})
				}
			}
		}
	}

	if len(m.timeSeries) > 0 {
		bucket := m.timeSeries[len(m.timeSeries)-1]
		bucket.Dispatches++
		bucket.TotalLatency += durationMs
		bucket.Count++
		if isError {
			bucket.Errors++
		}
	}
}

// RecordRegisterFailure records a failed Register/Deregister call.
func (m *Metrics) RecordRegisterFailure(kind string) {
	m.RegisterFailures.Add(1)
	RecordRegisterFailure(kind)
}

func (m *Metrics) getActionMetrics(actionName string) *ActionMetrics {
	if v, ok := m.actionMetrics.Load(actionName); ok {
		return v.(*ActionMetrics)
	}

	am := &ActionMetrics{}
	am.MinMs.Store(int64(^uint64(0) >> 1))
	actual, _ := m.actionMetrics.LoadOrStore(actionName, am)
	return actual.(*ActionMetrics)
}

// GetActionMetrics returns the metrics for a specific action (or nil if none recorded yet).
func (m *Metrics) GetActionMetrics(actionName string) *ActionMetrics {
	if v, ok := m.actionMetrics.Load(actionName); ok {
		return v.(*ActionMetrics)
	}
	return nil
}

// Snapshot returns a point-in-time snapshot of all metrics.
func (m *Metrics) Snapshot() map[string]interface{} {
	total := m.TotalDispatches.Load()
	avgLatency := float64(0)
	if total > 0 {
		avgLatency = float64(m.TotalLatencyMs.Load()) / float64(total)
	}

	minLatency := m.MinLatencyMs.Load()
	if minLatency == int64(^uint64(0)>>1) {
		minLatency = 0
	}

	return map[string]interface{}{
		"uptime_seconds": int64(time.Since(m.startTime).Seconds()),
		"dispatches": map[string]interface{}{
			"total":   total,
			"success": m.SuccessDispatches.Load(),
			"failed":  m.FailedDispatches.Load(),
		},
		"latency_ms": map[string]interface{}{
			"avg": avgLatency,
			"min": minLatency,
			"max": m.MaxLatencyMs.Load(),
		},
		"register_failures": m.RegisterFailures.Load(),
		"ts_dropped_events": m.tsDroppedEvents.Load(),
	}
}

// ActionStats returns per-action metrics.
func (m *Metrics) ActionStats() map[string]interface{} {
	result := make(map[string]interface{})

	m.actionMetrics.Range(func(key, value interface{}) bool {
		actionName := key.(string)
		am := value.(*ActionMetrics)

		total := am.Dispatches.Load()
		avgMs := float64(0)
		if total > 0 {
			avgMs = float64(am.TotalMs.Load()) / float64(total)
		}

		minMs := am.MinMs.Load()
		if minMs == int64(^uint64(0)>>1) {
			minMs = 0
		}

		result[actionName] = map[string]interface{}{
			"dispatches": total,
			"successes":  am.Successes.Load(),
			"failures":   am.Failures.Load(),
			"avg_ms":     avgMs,
			"min_ms":     minMs,
			"max_ms":     am.MaxMs.Load(),
		}
		return true
	})

	return result
}

// JSONHandler returns an HTTP handler that exposes metrics in JSON format.
func (m *Metrics) JSONHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		result := m.Snapshot()
		result["actions"] = m.ActionStats()
		json.NewEncoder(w).Encode(result)
	})
}

// TimeSeries returns minute-level time-series data for the last 24 hours.
func (m *Metrics) TimeSeries() []map[string]interface{} {
	m.timeSeriesMu.RLock()
	defer m.timeSeriesMu.RUnlock()

	result := make([]map[string]interface{}, len(m.timeSeries))
	for i, bucket := range m.timeSeries {
		avgDuration := float64(0)
		if bucket.Count > 0 {
			avgDuration = float64(bucket.TotalLatency) / float64(bucket.Count)
		}
		result[i] = map[string]interface{}{
			"timestamp":    bucket.Timestamp.Format(time.RFC3339),
			"dispatches":   bucket.Dispatches,
			"errors":       bucket.Errors,
			"avg_duration": avgDuration,
		}
	}
	return result
}

// TimeSeriesHandler returns an HTTP handler for time-series metrics.
func (m *Metrics) TimeSeriesHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(m.TimeSeries())
	})
}

// Helper functions

func updateMin(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value >= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}

func updateMax(target *atomic.Int64, value int64) {
	for {
		old := target.Load()
		if value <= old {
			return
		}
		if target.CompareAndSwap(old, value) {
			return
		}
	}
}
