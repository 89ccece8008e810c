package middleware

import (
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// Recovery 返回一个 panic 恢复中间件
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				rid, _ := c.Get("request_id")
				log.WithFields(log.Fields{
					"error":      err,
					"stack":      string(debug.Stack()),
					"request_id": rid,
					"path":       c.Request.URL.Path,
					"method":     c.Request.Method,
					"client_ip":  c.ClientIP(),
				}).Error("Panic recovered")
				abortJSON(c, http.StatusInternalServerError, "internal_error", "panic_recovered", "Internal server error")
			}
		}()
		c.Next()
	}
}

// SafeGo 安全地启动 goroutine，带 panic 恢复
func SafeGo(name string, fn func()) {
	go func() {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"goroutine": name,
					"error":     err,
					"stack":     string(debug.Stack()),
				}).Error("Goroutine panic recovered")
			}
		}()
		fn()
	}()
}
