package logging

import (
	"time"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// WithReq builds a log entry carrying request_id, method, path and ip, plus
// credential_id when the route has an :id. Extras win on key conflicts.
func WithReq(c *gin.Context, extras log.Fields) *log.Entry {
	if c == nil || c.Request == nil {
		return log.WithFields(extras)
	}
	path := c.FullPath()
	if path == "" && c.Request.URL != nil {
		path = c.Request.URL.Path
	}
	rid, _ := c.Get("request_id")
	fields := log.Fields{
		"request_id": rid,
		"method":     c.Request.Method,
		"path":       path,
		"ip":         c.ClientIP(),
	}
	if id := c.Param("id"); id != "" {
		fields["credential_id"] = id
	}
	for k, v := range extras {
		fields[k] = v
	}
	return log.WithFields(fields)
}

// WithAction is the entry used for console actions on one credential.
func WithAction(action, credentialID string) *log.Entry {
	fields := log.Fields{"action": action}
	if credentialID != "" {
		fields["credential_id"] = credentialID
	}
	return log.WithFields(fields)
}

// DurationMS converts a duration to integer milliseconds for logging.
func DurationMS(d time.Duration) int64 { return d.Milliseconds() }
