// Package metrics exposes ingestion and API counters in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all application metrics.  Ingestion counters are plain
// atomics read by GaugeFuncs at scrape time, so the tick loop never touches
// a Prometheus collector.
type Metrics struct {
	// Ingestion
	Ticks             atomic.Uint64
	DetectionsPolled  atomic.Uint64
	DetectionsStored  atomic.Uint64
	DetectionsMatched atomic.Uint64
	PersistErrors     atomic.Uint64
	SourceErrors      atomic.Uint64
	PublishErrors     atomic.Uint64
	SourceDropped     atomic.Int64  // detections a push source discarded on a full backlog
	TickLatencyMs     atomic.Uint64 // duration of the last tick
	LastDetectionUnix atomic.Int64  // seconds, 0 until the first record

	httpRequests *prometheus.CounterVec
	httpLatency  *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New creates a Metrics instance with its own registry.
func New() *Metrics {
	m := &Metrics{registry: prometheus.NewRegistry()}
	m.registerPrometheusMetrics()
	return m
}

func (m *Metrics) gauge(name, help string, f func() float64) {
	m.registry.MustRegister(prometheus.NewGaugeFunc(prometheus.GaugeOpts{Name: name, Help: help}, f))
}

func (m *Metrics) registerPrometheusMetrics() {
	m.gauge("parking_ingest_ticks_total", "Ingestion ticks executed",
		func() float64 { return float64(m.Ticks.Load()) })
	m.gauge("parking_detections_polled_total", "Raw detections taken from the source",
		func() float64 { return float64(m.DetectionsPolled.Load()) })
	m.gauge("parking_detections_recorded_total", "Detections appended to the log",
		func() float64 { return float64(m.DetectionsStored.Load()) })
	m.gauge("parking_detections_matched_total", "Recorded detections assigned to a spot",
		func() float64 { return float64(m.DetectionsMatched.Load()) })
	m.gauge("parking_persist_errors_total", "Detections skipped because the append failed",
		func() float64 { return float64(m.PersistErrors.Load()) })
	m.gauge("parking_source_errors_total", "Failed source polls",
		func() float64 { return float64(m.SourceErrors.Load()) })
	m.gauge("parking_source_dropped_total", "Detections a push source discarded because its backlog was full",
		func() float64 { return float64(m.SourceDropped.Load()) })
	m.gauge("parking_publish_errors_total", "Failed recorded-event publishes",
		func() float64 { return float64(m.PublishErrors.Load()) })
	m.gauge("parking_ingest_tick_latency_ms", "Duration of the last ingestion tick in milliseconds",
		func() float64 { return float64(m.TickLatencyMs.Load()) })
	m.gauge("parking_last_detection_timestamp_seconds", "Unix time of the last recorded detection",
		func() float64 { return float64(m.LastDetectionUnix.Load()) })

	m.httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "parking_http_requests_total",
		Help: "HTTP requests by route and status",
	}, []string{"method", "route", "status"})
	m.httpLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "parking_http_request_duration_seconds",
		Help:    "HTTP request latency by route",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "route"})
	m.registry.MustRegister(m.httpRequests, m.httpLatency)
}

// ObserveTick records the duration of one ingestion tick.
func (m *Metrics) ObserveTick(d time.Duration) {
	m.Ticks.Add(1)
	m.TickLatencyMs.Store(uint64(d.Milliseconds()))
}

// Handler returns the Prometheus HTTP handler.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on addr.  It blocks like http.ListenAndServe.
func (m *Metrics) StartServer(addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())
	return http.ListenAndServe(addr, mux)
}

// Middleware counts requests per matched route.  Unmatched paths share
// the "unmatched" label to keep cardinality bounded.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			if err != nil {
				c.Error(err)
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			method := c.Request().Method
			status := strconv.Itoa(c.Response().Status)
			m.httpRequests.WithLabelValues(method, route, status).Inc()
			m.httpLatency.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			return nil
		}
	}
}
