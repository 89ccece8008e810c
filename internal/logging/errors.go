package logging

import (
	"context"
	"errors"
	"net/http"
)

// ErrorKind labels a pool API outcome for logs. status 0 with an error is a
// transport failure.
func ErrorKind(status int, hasErr bool) string {
	if hasErr && status == 0 {
		return "network_error"
	}
	switch {
	case status == http.StatusTooManyRequests:
		return "pool_429"
	case status == http.StatusUnauthorized, status == http.StatusForbidden:
		return "pool_auth"
	case status == http.StatusNotFound:
		return "pool_not_found"
	case status == http.StatusConflict:
		return "pool_conflict"
	case status >= 500 && status < 600:
		return "pool_5xx"
	case status >= 400 && status < 500:
		return "pool_4xx"
	}
	if hasErr {
		return "error"
	}
	return "ok"
}

// CauseKind distinguishes caller cancellation from deadline expiry.
func CauseKind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return "canceled"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	}
	return "error"
}
