package credential

import (
	"strings"
	"time"
	"unicode/utf8"
)

// ErrorPreviewLimit bounds how many runes of last_error_message are shown.
const ErrorPreviewLimit = 150

// TokenCacheStatus mirrors the token cache record attached to OAuth credentials.
type TokenCacheStatus struct {
	IsValid        bool       `json:"is_valid"`
	IsExpiringSoon bool       `json:"is_expiring_soon"`
	ExpiryTime     *time.Time `json:"expiry_time,omitempty"`
}

// Resource is one credential as reported by the provider pool.
// The console never constructs or mutates these; they are replaced wholesale on reload.
type Resource struct {
	UUID                string            `json:"uuid"`
	ProviderType        string            `json:"provider_type"`
	CredentialType      string            `json:"credential_type"`
	Name                string            `json:"name,omitempty"`
	IsHealthy           bool              `json:"is_healthy"`
	IsDisabled          bool              `json:"is_disabled"`
	UsageCount          int64             `json:"usage_count"`
	ErrorCount          int64             `json:"error_count"`
	LastUsed            *time.Time        `json:"last_used,omitempty"`
	LastErrorMessage    string            `json:"last_error_message,omitempty"`
	LastHealthCheckTime *time.Time        `json:"last_health_check_time,omitempty"`
	Source              SourceTag         `json:"source,omitempty"`
	ProxyURL            string            `json:"proxy_url,omitempty"`
	TokenCacheStatus    *TokenCacheStatus `json:"token_cache_status,omitempty"`

	// Edit form fields.
	CheckHealth        bool     `json:"check_health"`
	CheckModelName     string   `json:"check_model_name,omitempty"`
	NotSupportedModels []string `json:"not_supported_models,omitempty"`
	DisplayCredential  string   `json:"display_credential,omitempty"`
	BaseURL            string   `json:"base_url,omitempty"`
	APIKey             string   `json:"api_key,omitempty"`
}

// Healthy reports the derived health flag: upstream health and not disabled.
func (r Resource) Healthy() bool {
	return r.IsHealthy && !r.IsDisabled
}

// DisplayName falls back to a truncated uuid when the credential is unnamed.
func (r Resource) DisplayName() string {
	if name := strings.TrimSpace(r.Name); name != "" {
		return name
	}
	id := r.UUID
	if len(id) > 8 {
		id = id[:8]
	}
	return "凭证 #" + id
}

// IsOAuth reports whether token refresh applies to this credential.
func (r Resource) IsOAuth() bool {
	return strings.Contains(r.CredentialType, "oauth")
}

// TypeLabel returns the short label for the credential type.
func (r Resource) TypeLabel() string {
	t := r.CredentialType
	if t == "" {
		t = "unknown"
	}
	switch {
	case t == "iflow_cookie":
		return "Cookie"
	case strings.HasSuffix(t, "_oauth"):
		return "OAuth"
	case strings.HasSuffix(t, "_key"):
		return "API Key"
	}
	return t
}

// ErrorPreview truncates the last error message for display.
func (r Resource) ErrorPreview() string {
	return Truncate(r.LastErrorMessage, ErrorPreviewLimit)
}

// Truncate cuts s to limit runes, appending "..." when anything was dropped.
func Truncate(s string, limit int) string {
	if limit <= 0 || utf8.RuneCountInString(s) <= limit {
		return s
	}
	runes := []rune(s)
	return string(runes[:limit]) + "..."
}

// TokenTone classifies the token cache status for display.
type TokenTone string

const (
	TokenToneNone     TokenTone = "none"
	TokenToneExpiring TokenTone = "expiring"
	TokenToneValid    TokenTone = "valid"
	TokenToneInvalid  TokenTone = "invalid"
)

// TokenTone follows expiry first, then validity.
func (r Resource) TokenTone() TokenTone {
	st := r.TokenCacheStatus
	if st == nil || st.ExpiryTime == nil {
		return TokenToneNone
	}
	switch {
	case st.IsExpiringSoon:
		return TokenToneExpiring
	case st.IsValid:
		return TokenToneValid
	default:
		return TokenToneInvalid
	}
}
