package poolapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"kiro-console/internal/credential"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

func poolPath(format string, args ...string) string {
	escaped := make([]any, len(args))
	for i, a := range args {
		escaped[i] = url.PathEscape(a)
	}
	return fmt.Sprintf(format, escaped...)
}

// unwrap returns the payload of {"data": ...} envelopes, or body unchanged.
func unwrap(body []byte) []byte {
	if r := gjson.GetBytes(body, "data"); r.Exists() && (r.IsObject() || r.IsArray()) {
		return []byte(r.Raw)
	}
	return body
}

func decode[T any](op string, body []byte) (*T, error) {
	body = unwrap(body)
	if len(body) == 0 {
		return new(T), nil
	}
	var out T
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("%s: decode response: %w", op, err)
	}
	return &out, nil
}

// List returns every credential of a provider kind. The pool may answer with
// a bare array or an object holding it under credentials, items or the kind.
func (c *Client) List(ctx context.Context, kind string) ([]credential.Resource, error) {
	body, err := c.call(ctx, "list", http.MethodGet, poolPath("/api/provider-pool/%s/credentials", kind), nil)
	if err != nil {
		return nil, err
	}
	body = unwrap(body)
	raw := gjson.ParseBytes(body)
	if !raw.IsArray() {
		for _, key := range []string{"credentials", "items", kind} {
			if r := raw.Get(key); r.IsArray() {
				raw = r
				break
			}
		}
	}
	if !raw.IsArray() {
		return nil, fmt.Errorf("list: unexpected response shape")
	}
	items := make([]credential.Resource, 0, len(raw.Array()))
	if err := json.Unmarshal([]byte(raw.Raw), &items); err != nil {
		return nil, fmt.Errorf("list: decode response: %w", err)
	}
	return items, nil
}

// Delete removes a credential from the pool.
func (c *Client) Delete(ctx context.Context, id, kind string) error {
	_, err := c.call(ctx, "delete", http.MethodDelete, poolPath("/api/provider-pool/%s/credentials/%s", kind, id), nil)
	return err
}

// SetDisabled writes the disabled flag of a credential.
func (c *Client) SetDisabled(ctx context.Context, id string, disabled bool) (*credential.Resource, error) {
	body, err := sjson.SetBytes([]byte(`{}`), "is_disabled", disabled)
	if err != nil {
		return nil, err
	}
	resp, err := c.call(ctx, "toggle", http.MethodPost, poolPath("/api/provider-pool/credentials/%s/toggle", id), body)
	if err != nil {
		return nil, err
	}
	return decode[credential.Resource]("toggle", resp)
}

// Reset clears the counters of a credential.
func (c *Client) Reset(ctx context.Context, id string) error {
	_, err := c.call(ctx, "reset", http.MethodPost, poolPath("/api/provider-pool/credentials/%s/reset", id), nil)
	return err
}

// CheckHealth runs a live validation of a credential.
func (c *Client) CheckHealth(ctx context.Context, id string) (*credential.HealthCheckResult, error) {
	resp, err := c.call(ctx, "check-health", http.MethodPost, poolPath("/api/provider-pool/credentials/%s/health-check", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.HealthCheckResult]("check-health", resp)
}

// RefreshToken refreshes the OAuth token of a credential.
func (c *Client) RefreshToken(ctx context.Context, id string) error {
	_, err := c.call(ctx, "refresh-token", http.MethodPost, poolPath("/api/provider-pool/credentials/%s/refresh-token", id), nil)
	return err
}

// Update sends only the fields set in patch.
func (c *Client) Update(ctx context.Context, id string, patch credential.UpdatePatch) (*credential.Resource, error) {
	body, err := patchBody(patch)
	if err != nil {
		return nil, fmt.Errorf("update: %w", err)
	}
	resp, err := c.call(ctx, "update", http.MethodPut, poolPath("/api/provider-pool/credentials/%s", id), body)
	if err != nil {
		return nil, err
	}
	return decode[credential.Resource]("update", resp)
}

func patchBody(p credential.UpdatePatch) ([]byte, error) {
	body := []byte(`{}`)
	var err error
	set := func(path string, value any) {
		if err != nil {
			return
		}
		body, err = sjson.SetBytes(body, path, value)
	}
	if p.Name != nil {
		set("name", *p.Name)
	}
	if p.IsDisabled != nil {
		set("is_disabled", *p.IsDisabled)
	}
	if p.CheckHealth != nil {
		set("check_health", *p.CheckHealth)
	}
	if p.CheckModelName != nil {
		set("check_model_name", *p.CheckModelName)
	}
	if p.NotSupportedModels != nil {
		set("not_supported_models", p.NotSupportedModels)
	}
	if p.NewCredsFilePath != nil {
		set("new_creds_file_path", *p.NewCredsFilePath)
	}
	if p.NewProjectID != nil {
		set("new_project_id", *p.NewProjectID)
	}
	if p.NewBaseURL != nil {
		set("new_base_url", *p.NewBaseURL)
	}
	if p.NewAPIKey != nil {
		set("new_api_key", *p.NewAPIKey)
	}
	if p.NewProxyURL != nil {
		set("new_proxy_url", *p.NewProxyURL)
	}
	return body, err
}

// FetchFingerprint returns the device fingerprint of a Kiro credential.
func (c *Client) FetchFingerprint(ctx context.Context, id string) (*credential.Fingerprint, error) {
	resp, err := c.call(ctx, "fingerprint", http.MethodGet, poolPath("/api/kiro/credentials/%s/fingerprint", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.Fingerprint]("fingerprint", resp)
}

// FetchUsage returns the subscription usage of a Kiro credential.
func (c *Client) FetchUsage(ctx context.Context, id string) (*credential.Usage, error) {
	resp, err := c.call(ctx, "usage", http.MethodGet, poolPath("/api/kiro/credentials/%s/usage", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.Usage]("usage", resp)
}

// FetchStatus returns the detailed status of a Kiro credential.
func (c *Client) FetchStatus(ctx context.Context, id string) (*credential.Status, error) {
	resp, err := c.call(ctx, "status", http.MethodGet, poolPath("/api/kiro/credentials/%s/status", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.Status]("status", resp)
}

// QuickRefresh asks the Kiro backend to refresh a credential now.
func (c *Client) QuickRefresh(ctx context.Context, id string) (*credential.RefreshResult, error) {
	resp, err := c.call(ctx, "quick-refresh", http.MethodPost, poolPath("/api/kiro/credentials/%s/refresh", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.RefreshResult]("quick-refresh", resp)
}

// SwitchToLocal makes a credential the active one of the local Kiro IDE.
func (c *Client) SwitchToLocal(ctx context.Context, id string) (*credential.SwitchResult, error) {
	resp, err := c.call(ctx, "switch-local", http.MethodPost, poolPath("/api/kiro/credentials/%s/switch-local", id), nil)
	if err != nil {
		return nil, err
	}
	return decode[credential.SwitchResult]("switch-local", resp)
}
