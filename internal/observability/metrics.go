package observability

import (
	"strconv"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ReportsSubmitted = promauto.NewCounter(prometheus.CounterOpts{Namespace: "barrierfree", Name: "reports_submitted_total", Help: "Total barrier reports submitted"})
	ReportsReviewed  = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "barrierfree", Name: "reports_reviewed_total", Help: "Moderation decisions by outcome"},
		[]string{"status"},
	)
	ScoreLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "barrierfree",
		Name:      "route_score_seconds",
		Help:      "Time spent scoring a route against nearby barriers",
		Buckets:   []float64{.0001, .0005, .001, .005, .01, .05, .1},
	})
	RoutesPlanned = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "barrierfree", Name: "routes_planned_total", Help: "Route plans by outcome"},
		[]string{"outcome"},
	)
	NavigationSessions = promauto.NewGauge(prometheus.GaugeOpts{Namespace: "barrierfree", Name: "navigation_sessions", Help: "Active car navigation sessions"})

	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{Namespace: "barrierfree", Name: "http_requests_total", Help: "Total HTTP requests handled"},
		[]string{"method", "path", "status"},
	)
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "barrierfree",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency distribution",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Middleware records request counts and latency labelled by the matched route
// template so path parameters do not explode label cardinality.
func Middleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		start := time.Now()
		err := c.Next()

		status := c.Response().StatusCode()
		if err != nil {
			if fe, ok := err.(*fiber.Error); ok {
				status = fe.Code
			} else {
				status = fiber.StatusInternalServerError
			}
		}
		path := c.Route().Path
		labels := []string{c.Method(), path, strconv.Itoa(status)}
		HTTPRequestsTotal.WithLabelValues(labels...).Inc()
		HTTPRequestDuration.WithLabelValues(labels...).Observe(time.Since(start).Seconds())
		return err
	}
}
