// Package metrics provides Prometheus metrics for the desktop server.
package metrics

import (
	"bufio"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdesk_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	httpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "webdesk_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path"},
	)

	activeDesktops = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webdesk_active_desktops",
			Help: "Number of desktop sessions held in memory",
		},
	)

	websocketConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webdesk_websocket_connections_active",
			Help: "Number of connected browser clients",
		},
	)

	websocketMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdesk_websocket_messages_total",
			Help: "Client requests received, by type",
		},
		[]string{"type"},
	)

	windowsOpenedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdesk_windows_opened_total",
			Help: "Windows opened, by app kind",
		},
		[]string{"app"},
	)

	windowsOpen = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "webdesk_windows_open",
			Help: "Windows currently open across all desktops",
		},
	)

	commandsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "webdesk_shell_commands_total",
			Help: "Terminal lines submitted, by category",
		},
		[]string{"category"},
	)

	sessionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "webdesk_sessions_rejected_total",
			Help: "Session creations refused by the per-IP limit",
		},
	)
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// RecordHTTPRequest records an HTTP request metric.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	httpRequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}

// SetActiveDesktops sets the number of live desktop sessions.
func SetActiveDesktops(count int) {
	activeDesktops.Set(float64(count))
}

func WebSocketConnected()    { websocketConnections.Inc() }
func WebSocketDisconnected() { websocketConnections.Dec() }

// RecordMessage counts one client request.
func RecordMessage(msgType string) {
	websocketMessagesTotal.WithLabelValues(msgType).Inc()
}

// WindowOpened records a new window of the given app kind.
func WindowOpened(app string) {
	windowsOpenedTotal.WithLabelValues(app).Inc()
	windowsOpen.Inc()
}

func WindowClosed() { windowsOpen.Dec() }

// RecordCommand counts one submitted terminal line.
func RecordCommand(category string) {
	commandsTotal.WithLabelValues(category).Inc()
}

func RecordSessionRejected() { sessionsRejectedTotal.Inc() }

// responseWriter wraps http.ResponseWriter to capture status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Flush() {
	if f, ok := rw.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// Hijack keeps websocket upgrades working behind the middleware.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	rw.statusCode = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (rw *responseWriter) Unwrap() http.ResponseWriter {
	return rw.ResponseWriter
}

// Middleware returns HTTP middleware that records request metrics. Paths are
// recorded as registered, not as requested, to keep label cardinality bounded.
func Middleware(path string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)
		RecordHTTPRequest(r.Method, path, rw.statusCode, time.Since(start))
	})
}
