package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// maxRequestIDLength bounds caller-provided ids echoed into logs.
const maxRequestIDLength = 128

// RequestID reuses a sane X-Request-ID from the caller or mints a uuid, and
// exposes it as the "request_id" context key and response header.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		rid := strings.TrimSpace(c.GetHeader("X-Request-ID"))
		if rid == "" || len(rid) > maxRequestIDLength {
			rid = uuid.NewString()
		}
		c.Set("request_id", rid)
		c.Writer.Header().Set("X-Request-ID", rid)
		c.Next()
	}
}
