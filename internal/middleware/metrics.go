package middleware

import (
	"time"

	"kiro-console/internal/monitoring"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics tracks per-route counters and a latency histogram. Unmatched
// routes share one label so scanners cannot blow up cardinality.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		monitoring.HTTPInFlight.Inc()
		c.Next()
		monitoring.HTTPInFlight.Dec()

		path := c.FullPath()
		if path == "" {
			path = "unmatched"
		}
		sc := monitoring.StatusClass(c.Writer.Status())
		monitoring.HTTPRequestsTotal.WithLabelValues(c.Request.Method, path, sc).Inc()
		monitoring.HTTPRequestDuration.WithLabelValues(c.Request.Method, path, sc).Observe(time.Since(start).Seconds())
	}
}

// MetricsHandler exposes Prometheus metrics using the standard promhttp handler.
func MetricsHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
