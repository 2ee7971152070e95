package obs

import (
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"mamacare.app/internal/ids"
)

var (
	httpInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight_requests",
		Help: "In-flight HTTP requests.",
	})

	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests.",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latencies in seconds.",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	permissionTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "permission_transitions_total",
			Help: "Permission request status transitions by target status.",
		},
		[]string{"status"},
	)

	loginFailures = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_failures_total",
			Help: "Rejected login attempts by reason.",
		},
		[]string{"reason"},
	)

	relayPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_published_total",
			Help: "Notification relay publishes by result.",
		},
		[]string{"result"},
	)

	ready = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "mamacare_ready",
		Help: "1 when the readiness check last succeeded.",
	})

	initOnce sync.Once
)

// Init registers all collectors in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			httpInFlight, httpRequestsTotal, httpRequestDuration,
			permissionTransitions, loginFailures, relayPublished, ready,
		)
	})
}

// Handler exposes the default Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// PermissionTransition counts a permission request moving to status.
func PermissionTransition(status string, n int) {
	if n <= 0 {
		return
	}
	permissionTransitions.WithLabelValues(status).Add(float64(n))
}

// LoginFailure counts a rejected login.
func LoginFailure(reason string) {
	loginFailures.WithLabelValues(reason).Inc()
}

// RelayPublished counts a relay publish outcome ("ok" or "error").
func RelayPublished(result string) {
	relayPublished.WithLabelValues(result).Inc()
}

// SetReady records the last readiness check result.
func SetReady(ok bool) {
	if ok {
		ready.Set(1)
		return
	}
	ready.Set(0)
}

// Instrument records in-flight, count and latency per canonical path.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := CanonicalPath(r.URL.Path)
		method := r.Method

		httpInFlight.Inc()
		defer httpInFlight.Dec()
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		status := strconv.Itoa(sw.code)
		httpRequestDuration.WithLabelValues(method, path, status).Observe(time.Since(start).Seconds())
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses identifiers so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexByte(raw, '?'); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" || raw == "/" {
		return "/"
	}
	segments := strings.Split(strings.Trim(raw, "/"), "/")
	for i, seg := range segments {
		if ids.Valid(seg) {
			segments[i] = ":id"
		}
	}
	return "/" + strings.Join(segments, "/")
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent event streams working behind the instrumentation wrapper.
func (w *statusWriter) Flush() {
	if f, ok := w.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}
