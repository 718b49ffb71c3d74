// ABOUTME: Prometheus collectors for sync runs, jobs, upstream breakers and HTTP traffic
// ABOUTME: Registered on the default registry and served at /metrics
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	SyncRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolsync_sync_runs_total",
			Help: "Full SIS sync runs by trigger and outcome",
		},
		[]string{"trigger", "status"},
	)

	SyncDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schoolsync_sync_duration_seconds",
			Help:    "Duration of full SIS sync runs",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"trigger"},
	)

	RecordsSynced = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolsync_records_synced_total",
			Help: "Records upserted per collection",
		},
		[]string{"collection"},
	)

	RecordsRejected = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolsync_records_rejected_total",
			Help: "Source records rejected by validation per collection",
		},
		[]string{"collection"},
	)

	Jobs = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolsync_jobs_total",
			Help: "Sync jobs by runner and status",
		},
		[]string{"runner", "status"},
	)

	CalendarEventsSynced = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "schoolsync_calendar_events_synced_total",
			Help: "Productivity-suite calendar events upserted",
		},
	)

	CircuitBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "schoolsync_circuit_breaker_state",
			Help: "Upstream breaker state (0 closed, 1 half-open, 2 open)",
		},
		[]string{"name"},
	)

	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "schoolsync_http_requests_total",
			Help: "HTTP requests by route pattern, method and status",
		},
		[]string{"route", "method", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "schoolsync_http_request_duration_seconds",
			Help:    "HTTP request latency by route pattern",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"route", "method"},
	)
)

// ObserveSync records the outcome of one sync run.
func ObserveSync(trigger string, started time.Time, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	SyncRuns.WithLabelValues(trigger, status).Inc()
	SyncDuration.WithLabelValues(trigger).Observe(time.Since(started).Seconds())
}

// ObserveHTTP records one served request.
func ObserveHTTP(route, method string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(route, method, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route, method).Observe(elapsed.Seconds())
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
