package config

import (
	"fmt"
	"net"
	"net/url"
	"strconv"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("config validation error [%s=%s]: %s", e.Field, e.Value, e.Message)
}

// ValidationResult holds the results of configuration validation
type ValidationResult struct {
	Errors   []ValidationError
	Warnings []ValidationError
	Valid    bool
}

// AddError adds a validation error
func (r *ValidationResult) AddError(field, value, message string) {
	r.Errors = append(r.Errors, ValidationError{Field: field, Value: value, Message: message})
	r.Valid = false
}

// AddWarning adds a validation warning
func (r *ValidationResult) AddWarning(field, value, message string) {
	r.Warnings = append(r.Warnings, ValidationError{Field: field, Value: value, Message: message})
}

// Err joins the errors into one, or returns nil when valid.
func (r ValidationResult) Err() error {
	if r.Valid {
		return nil
	}
	msgs := make([]string, 0, len(r.Errors))
	for _, e := range r.Errors {
		msgs = append(msgs, e.Error())
	}
	return fmt.Errorf("%s", strings.Join(msgs, "; "))
}

// Validate validates the configuration and returns validation results
func (c *Config) Validate() ValidationResult {
	result := ValidationResult{Valid: true}

	if _, port, err := net.SplitHostPort(c.Server.Listen); err != nil {
		result.AddError("server.listen", c.Server.Listen, "must be host:port")
	} else if n, err := strconv.Atoi(port); err != nil || n < 0 || n > 65535 {
		result.AddError("server.listen", c.Server.Listen, "port must be between 0 and 65535")
	}
	if c.Server.AccessKey == "" && c.Server.AccessKeyHash == "" {
		result.AddWarning("server.access_key", "", "no access key configured, API is unauthenticated")
	}
	if c.Server.AccessKeyHash != "" && !strings.HasPrefix(c.Server.AccessKeyHash, "$2") {
		result.AddError("server.access_key_hash", "***", "must be a bcrypt hash")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		result.AddError("server.rate_limit", fmt.Sprintf("%d/%d", c.Server.RateLimitRPS, c.Server.RateLimitBurst), "must not be negative")
	}

	if u, err := url.Parse(c.Upstream.BaseURL); err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		result.AddError("upstream.base_url", c.Upstream.BaseURL, "must be an absolute http(s) URL")
	}
	if strings.ContainsAny(c.Upstream.ProviderKind, "/ ") {
		result.AddError("upstream.provider_kind", c.Upstream.ProviderKind, "must be a single path segment")
	}
	if c.Upstream.RetryMax < 0 || c.Upstream.RetryMax > 10 {
		result.AddWarning("upstream.retry_max", strconv.Itoa(c.Upstream.RetryMax), "retry_max should be between 0 and 10")
	}
	if c.Upstream.TimeoutSeconds < 0 {
		result.AddError("upstream.timeout_seconds", strconv.Itoa(c.Upstream.TimeoutSeconds), "must not be negative")
	}
	if c.Upstream.HealthTimeoutSeconds < 0 {
		result.AddError("upstream.health_timeout_seconds", strconv.Itoa(c.Upstream.HealthTimeoutSeconds), "must not be negative")
	}

	if c.Console.SwitchResultTTLSeconds < 0 {
		result.AddError("console.switch_result_ttl_seconds", strconv.Itoa(c.Console.SwitchResultTTLSeconds), "must not be negative")
	}
	if c.Console.BatchPacing < 0 {
		result.AddError("console.batch_pacing", strconv.FormatFloat(c.Console.BatchPacing, 'f', -1, 64), "must not be negative")
	}
	return result
}
