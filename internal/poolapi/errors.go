package poolapi

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"kiro-console/internal/constants"
	"kiro-console/internal/credential"

	"github.com/tidwall/gjson"
)

// APIError is a non-2xx answer from the provider-pool API.
type APIError struct {
	Op      string
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return e.Message
}

// NotFound reports whether the credential was unknown upstream.
func (e *APIError) NotFound() bool { return e.Status == http.StatusNotFound }

// IsNotFound unwraps err and reports a 404 from the pool.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.NotFound()
}

// StatusOf returns the HTTP status carried by err, or 0.
func StatusOf(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status
	}
	return 0
}

// errorFromBody builds an APIError, preferring the message the pool put in
// the body over the bare status text.
func errorFromBody(op string, status int, body []byte) *APIError {
	msg := ""
	if gjson.ValidBytes(body) {
		for _, path := range []string{"error.message", "error", "message", "detail"} {
			if r := gjson.GetBytes(body, path); r.Exists() && r.Type == gjson.String && strings.TrimSpace(r.String()) != "" {
				msg = strings.TrimSpace(r.String())
				break
			}
		}
	} else if text := strings.TrimSpace(string(body)); text != "" && len(text) <= constants.MaxErrorMessageLength {
		msg = text
	}
	if msg == "" {
		msg = fmt.Sprintf("%d %s", status, http.StatusText(status))
	}
	return &APIError{Op: op, Status: status, Message: credential.Truncate(msg, constants.MaxErrorMessageLength)}
}
