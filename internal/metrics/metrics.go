// Package metrics exposes ingestion and HTTP measurements in Prometheus format.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JonMunkholm/salesingest/internal/core"
)

const namespace = "salesingest"

// Metrics holds the service collectors on a private registry.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry *prometheus.Registry

	ingestions  *prometheus.CounterVec
	ingestTime  *prometheus.HistogramVec
	rejections  *prometheus.CounterVec
	inserted    *prometheus.CounterVec
	superseded  *prometheus.CounterVec
	requests    *prometheus.CounterVec
	requestTime *prometheus.HistogramVec
}

var _ core.MetricsRecorder = (*Metrics)(nil)

// New creates the collectors and registers them, together with the Go
// runtime and process collectors, on a fresh registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ingestions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "uploads_total",
			Help:      "Ingestion requests segmented by mode and outcome.",
		}, []string{"mode", "outcome"}),
		ingestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "duration_seconds",
			Help:      "Duration of ingestion requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		rejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "rejections_total",
			Help:      "Rejected uploads segmented by the last stage reached.",
		}, []string{"stage"}),
		inserted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_inserted_total",
			Help:      "Records written, by record type.",
		}, []string{"record_type"}),
		superseded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "records_superseded_total",
			Help:      "Previously stored records removed by replacement, by record type.",
		}, []string{"record_type"}),
		requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests segmented by route, method and status code.",
		}, []string{"route", "method", "status"}),
		requestTime: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"route", "method"}),
	}

	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.ingestions, m.ingestTime, m.rejections, m.inserted, m.superseded,
		m.requests, m.requestTime,
	)
	return m
}

// ObserveIngestion records one finished ingestion request.
func (m *Metrics) ObserveIngestion(mode, outcome string, d time.Duration) {
	if m == nil {
		return
	}
	m.ingestions.WithLabelValues(mode, outcome).Inc()
	m.ingestTime.WithLabelValues(mode).Observe(d.Seconds())
}

// ObserveRejection counts a rejection at stage.
func (m *Metrics) ObserveRejection(stage core.IngestStage) {
	if m == nil {
		return
	}
	m.rejections.WithLabelValues(string(stage)).Inc()
}

// ObserveReplacement records the row counts of one committed replacement.
func (m *Metrics) ObserveReplacement(rt core.RecordType, inserted int, superseded int64) {
	if m == nil {
		return
	}
	m.inserted.WithLabelValues(string(rt)).Add(float64(inserted))
	m.superseded.WithLabelValues(string(rt)).Add(float64(superseded))
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Middleware counts and times requests. The route label is the matched chi
// pattern so path parameters do not explode cardinality.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, r)

		route := "unmatched"
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if p := rctx.RoutePattern(); p != "" {
				route = p
			}
		}
		m.requests.WithLabelValues(route, r.Method, strconv.Itoa(rec.status)).Inc()
		m.requestTime.WithLabelValues(route, r.Method).Observe(time.Since(start).Seconds())
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status      int
	wroteHeader bool
}

func (s *statusRecorder) WriteHeader(code int) {
	if !s.wroteHeader {
		s.status = code
		s.wroteHeader = true
	}
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Unwrap() http.ResponseWriter {
	return s.ResponseWriter
}
