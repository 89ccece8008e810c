package server

import (
	"context"
	"errors"
	"net/http"

	"kiro-console/internal/console"
	"kiro-console/internal/logging"
	"kiro-console/internal/poolapi"

	"github.com/gin-gonic/gin"
	log "github.com/sirupsen/logrus"
)

// errorStatus maps console and pool errors onto HTTP statuses.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, console.ErrBusy):
		return http.StatusConflict, "action_in_progress"
	case errors.Is(err, console.ErrBatchRunning):
		return http.StatusConflict, "batch_running"
	case errors.Is(err, console.ErrDeclined):
		return http.StatusBadRequest, "confirmation_required"
	case errors.Is(err, console.ErrNotFound), poolapi.IsNotFound(err):
		return http.StatusNotFound, "credential_not_found"
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, "pool_timeout"
	}
	var apiErr *poolapi.APIError
	if errors.As(err, &apiErr) {
		return http.StatusBadGateway, "pool_error"
	}
	return http.StatusBadGateway, "pool_unreachable"
}

func respondError(c *gin.Context, status int, code, message string) {
	typ := "invalid_request_error"
	if status >= 500 {
		typ = "upstream_error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error": gin.H{
			"message": message,
			"type":    typ,
			"code":    code,
		},
	})
}

// respondErr logs err against the request and writes the mapped status.
func respondErr(c *gin.Context, err error) {
	status, code := errorStatus(err)
	entry := logging.WithReq(c, log.Fields{"status": status, "code": code})
	if status >= 500 {
		entry.WithError(err).Warn("request failed")
	} else {
		entry.WithError(err).Debug("request rejected")
	}
	_ = c.Error(err)
	respondError(c, status, code, err.Error())
}
