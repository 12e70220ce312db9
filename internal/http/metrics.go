// Package http provides HTTP API with metrics instrumentation.
package http

import (
	"errors"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
)

// Metrics holds all HTTP-related metrics.
type Metrics struct {
	logger         *zap.Logger
	requestsTotal  *prometheus.CounterVec
	requestDur     *prometheus.HistogramVec
	activeRequests prometheus.Gauge
}

// NewMetrics creates a new Metrics instance and registers its collectors.
// Re-registration (as happens across tests) is tolerated by reusing the
// already registered collector.
func NewMetrics(logger *zap.Logger) *Metrics {
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Metrics{
		logger: logger,
		requestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "forged_http_requests_total",
			Help: "Total HTTP requests labeled by method, route, and status code.",
		}, []string{"method", "route", "status"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "forged_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds, labeled by method and route.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
		}, []string{"method", "route"}),
		activeRequests: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "forged_http_active_requests",
			Help: "Number of currently active HTTP requests.",
		}),
	}

	m.requestsTotal = registerOrReuse(logger, m.requestsTotal).(*prometheus.CounterVec)
	m.requestDur = registerOrReuse(logger, m.requestDur).(*prometheus.HistogramVec)
	m.activeRequests = registerOrReuse(logger, m.activeRequests).(prometheus.Gauge)

	return m
}

func registerOrReuse(logger *zap.Logger, c prometheus.Collector) prometheus.Collector {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			return are.ExistingCollector
		}
		logger.Warn("failed to register collector", zap.Error(err))
	}
	return c
}

// Middleware returns an echo middleware that records per-request metrics.
func (m *Metrics) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			m.activeRequests.Inc()
			start := time.Now()

			err := next(c)

			m.activeRequests.Dec()
			route := c.Path()
			method := c.Request().Method
			m.requestDur.WithLabelValues(method, route).Observe(time.Since(start).Seconds())
			m.requestsTotal.WithLabelValues(method, route, strconv.Itoa(c.Response().Status)).Inc()

			return err
		}
	}
}
