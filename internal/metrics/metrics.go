package metrics

import (
	"bufio"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles prometheus collectors used by the server.
type Metrics struct {
	RequestsTotal        *prometheus.CounterVec
	RequestDurationSec   *prometheus.HistogramVec
	BytesServedTotal     prometheus.Counter
	PromotedRedirects    prometheus.Counter
	RateLimitDropped     prometheus.Counter
	AccessRecordsDropped prometheus.Counter
	CacheHits            prometheus.Counter
	CacheMisses          prometheus.Counter
}

func New(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		RequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "staticserve_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"route", "method", "status"}),
		RequestDurationSec: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "staticserve_request_duration_seconds",
			Help:    "Request duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"route", "method", "status"}),
		BytesServedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_bytes_served_total",
			Help: "Total number of response body bytes written.",
		}),
		PromotedRedirects: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_https_promotions_total",
			Help: "Total number of requests redirected to HTTPS.",
		}),
		RateLimitDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_ratelimit_dropped_total",
			Help: "Total number of requests dropped by rate limiter.",
		}),
		AccessRecordsDropped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_access_records_dropped_total",
			Help: "Total number of access records dropped on full buffer.",
		}),
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_cache_hits_total",
			Help: "Total number of object cache hits.",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "staticserve_cache_misses_total",
			Help: "Total number of object cache misses.",
		}),
	}

	registry.MustRegister(
		m.RequestsTotal,
		m.RequestDurationSec,
		m.BytesServedTotal,
		m.PromotedRedirects,
		m.RateLimitDropped,
		m.AccessRecordsDropped,
		m.CacheHits,
		m.CacheMisses,
	)

	return m
}

func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		startedAt := time.Now()
		wrapped := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		status := strconv.Itoa(wrapped.statusCode)
		route := normalizeRoute(r.URL.Path)
		m.RequestsTotal.WithLabelValues(route, r.Method, status).Inc()
		m.RequestDurationSec.WithLabelValues(route, r.Method, status).Observe(time.Since(startedAt).Seconds())
		m.BytesServedTotal.Add(float64(wrapped.bytesWritten))
	})
}

// normalizeRoute collapses asset paths into one label value to keep
// metric cardinality bounded.
func normalizeRoute(path string) string {
	switch path {
	case "/healthz", "/readyz", "/statusz", "/metrics", "/__livereload":
		return path
	default:
		return "asset"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int64
}

func (rw *statusRecorder) WriteHeader(statusCode int) {
	rw.statusCode = statusCode
	rw.ResponseWriter.WriteHeader(statusCode)
}

func (rw *statusRecorder) Write(p []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(p)
	rw.bytesWritten += int64(n)
	return n, err
}

// Hijack passes websocket upgrades through wrapped ResponseWriter.
func (rw *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	hijacker, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, fmt.Errorf("response writer does not support hijacking")
	}
	return hijacker.Hijack()
}

// Flush keeps streaming behavior for handlers that require it.
func (rw *statusRecorder) Flush() {
	if flusher, ok := rw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}
