// Package config loads the console configuration from a YAML or JSON file,
// overlays KIRO_CONSOLE_* environment variables and hot-reloads on change.
package config

import (
	"time"

	"kiro-console/internal/constants"
	"kiro-console/internal/monitoring"
)

// Config is the full runtime configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server" json:"server"`
	Upstream  UpstreamConfig  `yaml:"upstream" json:"upstream"`
	Console   ConsoleConfig   `yaml:"console" json:"console"`
	Logging   LoggingConfig   `yaml:"logging" json:"logging"`
	Telemetry TelemetryConfig `yaml:"telemetry" json:"telemetry"`
}

// ServerConfig controls the console HTTP surface.
type ServerConfig struct {
	Listen string `yaml:"listen" json:"listen"`
	// AccessKey and AccessKeyHash guard /api. Both empty disables auth.
	AccessKey      string   `yaml:"access_key" json:"access_key,omitempty"`
	AccessKeyHash  string   `yaml:"access_key_hash" json:"access_key_hash,omitempty"`
	CORSOrigins    []string `yaml:"cors_origins" json:"cors_origins,omitempty"`
	RateLimitRPS   int      `yaml:"rate_limit_rps" json:"rate_limit_rps"`
	RateLimitBurst int      `yaml:"rate_limit_burst" json:"rate_limit_burst"`
}

// UpstreamConfig points at the provider-pool API that owns the credentials.
type UpstreamConfig struct {
	BaseURL              string `yaml:"base_url" json:"base_url"`
	Token                string `yaml:"token" json:"token,omitempty"`
	ProviderKind         string `yaml:"provider_kind" json:"provider_kind"`
	RetryMax             int    `yaml:"retry_max" json:"retry_max"`
	TimeoutSeconds       int    `yaml:"timeout_seconds" json:"timeout_seconds"`
	HealthTimeoutSeconds int    `yaml:"health_timeout_seconds" json:"health_timeout_seconds"`
	SlowCallMillis       int    `yaml:"slow_call_ms" json:"slow_call_ms"`
}

// ConsoleConfig tunes the orchestration layer.
type ConsoleConfig struct {
	SwitchResultTTLSeconds int `yaml:"switch_result_ttl_seconds" json:"switch_result_ttl_seconds"`
	// BatchPacing caps batch calls per second; 0 runs them back to back.
	BatchPacing float64 `yaml:"batch_pacing" json:"batch_pacing"`
}

type LoggingConfig struct {
	Debug bool   `yaml:"debug" json:"debug"`
	File  string `yaml:"file" json:"file,omitempty"`
}

type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint" json:"otlp_endpoint,omitempty"`
}

const (
	DefaultListen       = "127.0.0.1:8089"
	DefaultBaseURL      = "http://127.0.0.1:8080"
	DefaultProviderKind = "kiro"
)

// Default returns a configuration with every default applied. Files are
// decoded on top of it, so an explicit retry_max of 0 survives.
func Default() *Config {
	cfg := &Config{Upstream: UpstreamConfig{RetryMax: constants.UpstreamMaxRetries}}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.Server.Listen == "" {
		c.Server.Listen = DefaultListen
	}
	if c.Server.RateLimitRPS == 0 {
		c.Server.RateLimitRPS = 20
	}
	if c.Server.RateLimitBurst == 0 {
		c.Server.RateLimitBurst = 40
	}
	if c.Upstream.BaseURL == "" {
		c.Upstream.BaseURL = DefaultBaseURL
	}
	if c.Upstream.ProviderKind == "" {
		c.Upstream.ProviderKind = DefaultProviderKind
	}
	if c.Upstream.TimeoutSeconds == 0 {
		c.Upstream.TimeoutSeconds = int(constants.UpstreamCallTimeout / time.Second)
	}
	if c.Upstream.HealthTimeoutSeconds == 0 {
		c.Upstream.HealthTimeoutSeconds = int(constants.HealthCheckCallTimeout / time.Second)
	}
	if c.Upstream.SlowCallMillis == 0 {
		c.Upstream.SlowCallMillis = int(monitoring.SlowCallThreshold / time.Millisecond)
	}
	if c.Console.SwitchResultTTLSeconds == 0 {
		c.Console.SwitchResultTTLSeconds = int(constants.TransientResultTTL / time.Second)
	}
}

func (u UpstreamConfig) Timeout() time.Duration {
	return time.Duration(u.TimeoutSeconds) * time.Second
}

func (u UpstreamConfig) HealthTimeout() time.Duration {
	return time.Duration(u.HealthTimeoutSeconds) * time.Second
}

func (u UpstreamConfig) SlowCallThreshold() time.Duration {
	return time.Duration(u.SlowCallMillis) * time.Millisecond
}

func (c ConsoleConfig) SwitchResultTTL() time.Duration {
	return time.Duration(c.SwitchResultTTLSeconds) * time.Second
}

// Redacted returns a copy with secrets blanked, safe to log or broadcast.
func (c Config) Redacted() Config {
	out := c
	if out.Server.AccessKey != "" {
		out.Server.AccessKey = "***"
	}
	if out.Server.AccessKeyHash != "" {
		out.Server.AccessKeyHash = "***"
	}
	if out.Upstream.Token != "" {
		out.Upstream.Token = "***"
	}
	out.Server.CORSOrigins = append([]string(nil), c.Server.CORSOrigins...)
	return out
}
