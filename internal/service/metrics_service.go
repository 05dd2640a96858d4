package service

import (
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation.
type MetricsService struct {
	registry        *prometheus.Registry
	handler         http.Handler
	requestDuration *prometheus.HistogramVec
	requestTotal    *prometheus.CounterVec
	cacheLatency    prometheus.Observer
	cacheWrite      prometheus.Observer
	cacheLookups    *prometheus.CounterVec
	transitions     *prometheus.CounterVec
	draftSaves      *prometheus.CounterVec
	moderation      *prometheus.CounterVec
	eventsDropped   prometheus.Counter
}

// NewMetricsService registers core Prometheus collectors on a private registry.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	requestDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "Duration of HTTP requests in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	requestTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})

	cacheLatency := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_latency_seconds",
		Help:    "Latency for cache lookups",
		Buckets: prometheus.DefBuckets,
	})

	cacheWrite := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "cache_write_seconds",
		Help:    "Latency for cache set operations",
		Buckets: prometheus.DefBuckets,
	})

	cacheLookups := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_lookups_total",
		Help: "Cache lookups by result",
	}, []string{"result"})

	transitions := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "profile_lifecycle_transitions_total",
		Help: "Applied profile lifecycle transitions",
	}, []string{"event", "from", "to"})

	draftSaves := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "draft_saves_total",
		Help: "Draft save attempts by outcome",
	}, []string{"outcome"})

	moderation := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "moderation_actions_total",
		Help: "Admin moderation actions by target, action and result",
	}, []string{"target", "action", "result"})

	eventsDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "lifecycle_events_dropped_total",
		Help: "Lifecycle notifications dropped because the queue was full or stopped",
	})

	goroutines := prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Name: "goroutines_total",
		Help: "Total number of goroutines",
	}, func() float64 {
		return float64(runtime.NumGoroutine())
	})

	registry.MustRegister(requestDuration, requestTotal, cacheLatency, cacheWrite, cacheLookups,
		transitions, draftSaves, moderation, eventsDropped, goroutines)

	return &MetricsService{
		registry:        registry,
		handler:         promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestDuration: requestDuration,
		requestTotal:    requestTotal,
		cacheLatency:    cacheLatency,
		cacheWrite:      cacheWrite,
		cacheLookups:    cacheLookups,
		transitions:     transitions,
		draftSaves:      draftSaves,
		moderation:      moderation,
		eventsDropped:   eventsDropped,
	}
}

// Registry exposes the underlying registry for tests and extra collectors.
func (m *MetricsService) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler exposes the Prometheus HTTP handler.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveHTTPRequest records request metrics.
func (m *MetricsService) ObserveHTTPRequest(method, path string, status int, duration time.Duration) {
	if m == nil {
		return
	}
	labelStatus := fmt.Sprintf("%d", status)
	m.requestDuration.WithLabelValues(method, path, labelStatus).Observe(duration.Seconds())
	m.requestTotal.WithLabelValues(method, path, labelStatus).Inc()
}

// RecordCacheOperation records a cache hit or miss.
func (m *MetricsService) RecordCacheOperation(hit bool, duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheLatency.Observe(duration.Seconds())
	result := "miss"
	if hit {
		result = "hit"
	}
	m.cacheLookups.WithLabelValues(result).Inc()
}

// ObserveCacheWrite tracks the duration for cache write operations.
func (m *MetricsService) ObserveCacheWrite(duration time.Duration) {
	if m == nil {
		return
	}
	m.cacheWrite.Observe(duration.Seconds())
}

// RecordTransition counts an applied lifecycle transition. An empty from is reported as "none".
func (m *MetricsService) RecordTransition(event, from, to string) {
	if m == nil {
		return
	}
	if from == "" {
		from = "none"
	}
	if to == "" {
		to = "deleted"
	}
	m.transitions.WithLabelValues(event, from, to).Inc()
}

// RecordDraftSave counts a draft save by outcome: applied, stale, rejected or error.
func (m *MetricsService) RecordDraftSave(outcome string) {
	if m == nil {
		return
	}
	m.draftSaves.WithLabelValues(outcome).Inc()
}

// RecordModeration counts an admin action. result is one of changed, unchanged or failed.
func (m *MetricsService) RecordModeration(target, action, result string) {
	if m == nil {
		return
	}
	m.moderation.WithLabelValues(target, action, result).Inc()
}

// RecordDroppedEvent counts a lifecycle notification that could not be queued.
func (m *MetricsService) RecordDroppedEvent() {
	if m == nil {
		return
	}
	m.eventsDropped.Inc()
}
