package middleware

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const accessKeyContextKey = "access_key"

// AuthConfig holds access key configuration.
type AuthConfig struct {
	// Enabled is consulted per request so a config reload can turn auth on or off.
	Enabled func() bool
	// Validate checks a presented key.
	Validate func(key string) bool
	// AllowQuery accepts ?key= for clients that cannot set headers, such as
	// browser websockets.
	AllowQuery bool
}

// AccessKey guards a route group. Keys are read from Authorization: Bearer,
// x-api-key and, when allowed, the key query parameter.
func AccessKey(cfg AuthConfig) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.Enabled != nil && !cfg.Enabled() {
			c.Next()
			return
		}
		key := extractAccessKey(c, cfg.AllowQuery)
		if key == "" {
			abortJSON(c, http.StatusUnauthorized, "invalid_request_error", "missing_access_key", "Access key not provided")
			return
		}
		if cfg.Validate == nil || !cfg.Validate(key) {
			abortJSON(c, http.StatusUnauthorized, "invalid_request_error", "invalid_access_key", "Invalid access key")
			return
		}
		c.Set(accessKeyContextKey, key)
		c.Next()
	}
}

func extractAccessKey(c *gin.Context, allowQuery bool) string {
	auth := strings.TrimSpace(c.GetHeader("Authorization"))
	if len(auth) > 7 && strings.EqualFold(auth[:7], "bearer ") {
		return strings.TrimSpace(auth[7:])
	}
	if v := strings.TrimSpace(c.GetHeader("x-api-key")); v != "" {
		return v
	}
	if allowQuery {
		return strings.TrimSpace(c.Query("key"))
	}
	return ""
}
