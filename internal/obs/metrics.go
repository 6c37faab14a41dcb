package obs

import (
	"net/http"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTP metrics
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
)

// Auth metrics
var (
	authLoginTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_login_total",
			Help: "Login attempts by outcome.",
		},
		[]string{"outcome"},
	)

	authLockoutsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_lockouts_total",
		Help: "Accounts locked after repeated failed logins.",
	})

	authTokenRefreshTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "auth_token_refresh_total",
			Help: "Access token refreshes by outcome.",
		},
		[]string{"outcome"},
	)

	authSessionsPurgedTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "auth_sessions_purged_total",
		Help: "Expired sessions removed by the sweep.",
	})
)

var readyGauge = prometheus.NewGauge(prometheus.GaugeOpts{
	Name: "service_ready",
	Help: "1 when the last readiness check passed.",
})

// SetReady records the outcome of the latest readiness check.
func SetReady(ok bool) {
	if ok {
		readyGauge.Set(1)
		return
	}
	readyGauge.Set(0)
}

var (
	buildInfoOnce sync.Once
	buildInfo     = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "atelier_build_info",
			Help: "Constant 1, labelled with the running build.",
		},
		[]string{"version", "commit", "go_version"},
	)
)

// InitBuildInfo publishes the running build. Later calls replace the labels.
func InitBuildInfo(version, commit string) {
	buildInfoOnce.Do(func() { prometheus.MustRegister(buildInfo) })
	buildInfo.Reset()
	buildInfo.WithLabelValues(version, commit, runtime.Version()).Set(1)
}

var initOnce sync.Once

// Init registers metrics in the default registry. Safe to call more than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(httpInFlight, httpRequestsTotal, httpRequestDuration,
			authLoginTotal, authLockoutsTotal, authTokenRefreshTotal, authSessionsPurgedTotal, readyGauge)
	})
}

// Handler exposes the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
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

		duration := time.Since(start).Seconds()
		status := strconv.Itoa(sw.code)

		httpRequestDuration.WithLabelValues(method, path, status).Observe(duration)
		httpRequestsTotal.WithLabelValues(method, path, status).Inc()
	})
}

// CanonicalPath collapses unknown paths so label cardinality stays bounded.
func CanonicalPath(raw string) string {
	if i := strings.IndexAny(raw, "?#"); i >= 0 {
		raw = raw[:i]
	}
	if raw == "" {
		return "/"
	}
	if len(raw) > 1 {
		raw = strings.TrimRight(raw, "/")
	}
	if _, ok := knownPaths[raw]; ok {
		return raw
	}
	return "other"
}

var knownPaths = map[string]struct{}{
	"/":                        {},
	"/healthz":                 {},
	"/readyz":                  {},
	"/metrics":                 {},
	"/v1/info":                 {},
	"/v1/auth/login":           {},
	"/v1/auth/refresh":         {},
	"/v1/auth/logout":          {},
	"/v1/auth/logout-all":      {},
	"/v1/auth/sessions":        {},
	"/v1/admin/sessions/purge": {},
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}

// AuthMetrics reports auth counters to Prometheus.
type AuthMetrics struct{}

func (AuthMetrics) LoginAttempt(outcome string) { authLoginTotal.WithLabelValues(outcome).Inc() }
func (AuthMetrics) AccountLocked()              { authLockoutsTotal.Inc() }
func (AuthMetrics) TokenRefresh(outcome string) { authTokenRefreshTotal.WithLabelValues(outcome).Inc() }
func (AuthMetrics) SessionsPurged(n int64)      { authSessionsPurgedTotal.Add(float64(n)) }
