package middleware

import (
	"time"

	"kiro-console/internal/logging"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// RequestLogger logs one line per request. 5xx log at warn, the websocket
// stream and /metrics at debug.
func RequestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		entry := logging.WithReq(c, log.Fields{
			"status":     status,
			"latency_ms": logging.DurationMS(time.Since(start)),
			"bytes":      c.Writer.Size(),
			"user_agent": c.Request.UserAgent(),
		})
		if len(c.Errors) > 0 {
			entry = entry.WithField("errors", c.Errors.String())
		}
		switch {
		case status >= 500:
			entry.Warn("http_request")
		case c.FullPath() == "/metrics" || c.FullPath() == "/api/notifications/ws":
			entry.Debug("http_request")
		default:
			entry.Info("http_request")
		}
	}
}
