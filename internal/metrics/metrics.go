// Package metrics provides Prometheus instrumentation for the desk engine.
package metrics

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// RefreshCycles counts refresh cycles by cycle ("market", "resting")
	// and outcome ("ok", "error").
	RefreshCycles = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desk_refresh_cycles_total",
		Help: "Refresh cycles run, by cycle and outcome",
	}, []string{"cycle", "outcome"})

	// RefreshDuration tracks how long each refresh cycle takes.
	RefreshDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "desk_refresh_duration_seconds",
		Help:    "Refresh cycle duration in seconds",
		Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0},
	}, []string{"cycle"})

	// LastRefresh is the time of the last successful swap per cycle.
	LastRefresh = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "desk_last_refresh_timestamp_seconds",
		Help: "Unix time of the last successful refresh, by cycle",
	}, []string{"cycle"})

	// QuotedMarkets tracks the number of markets in the current snapshot.
	QuotedMarkets = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "desk_quoted_markets",
		Help: "Number of markets with an effective quote",
	})

	// OpenPositions tracks non-flat positions in the current snapshot.
	OpenPositions = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "desk_open_positions",
		Help: "Number of markets with a non-zero YES-equivalent position",
	})

	// RestingOrders tracks the cached resting-order count.
	RestingOrders = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "desk_resting_orders",
		Help: "Number of resting orders in the cache",
	})

	// OrdersTotal counts order submissions by action, side and outcome.
	OrdersTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desk_orders_total",
		Help: "Orders submitted, by action, side and classified outcome",
	}, []string{"action", "side", "outcome"})

	// OrderLatency tracks order round-trip latency to the exchange.
	OrderLatency = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "desk_order_latency_seconds",
		Help:    "Order submission latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})

	// OrderRefusals counts orders refused before reaching the exchange.
	OrderRefusals = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desk_order_refusals_total",
		Help: "Orders refused locally, by reason",
	}, []string{"reason"})

	// WebSocketClients tracks connected WebSocket clients.
	WebSocketClients = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "desk_websocket_clients",
		Help: "Number of connected WebSocket clients",
	})

	// HTTPRequestsTotal counts HTTP requests by method, route, and status.
	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "desk_http_requests_total",
		Help: "Total HTTP requests",
	}, []string{"method", "path", "status"})

	// HTTPRequestDuration tracks request duration by method and route.
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "desk_http_request_duration_seconds",
		Help:    "HTTP request duration in seconds",
		Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
	}, []string{"method", "path"})
)

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// Middleware returns an HTTP middleware that records request metrics.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &statusWriter{ResponseWriter: w, status: 200}
		next.ServeHTTP(wrapped, r)
		duration := time.Since(start).Seconds()

		// Use the route pattern for path label to avoid high cardinality.
		path := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil {
			if pattern := rctx.RoutePattern(); pattern != "" {
				path = pattern
			}
		}
		HTTPRequestsTotal.WithLabelValues(r.Method, path, strconv.Itoa(wrapped.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration)
	})
}

// statusWriter wraps http.ResponseWriter to capture the status code.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// Hijack lets WebSocket upgrades pass through the middleware.
func (w *statusWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := w.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("metrics: response writer does not support hijacking")
	}
	w.status = http.StatusSwitchingProtocols
	return h.Hijack()
}
