package config

import (
	"os"
	"strconv"
	"strings"
)

const envPrefix = "KIRO_CONSOLE_"

func getenv(key, def string) string {
	if v := os.Getenv(envPrefix + key); v != "" {
		return v
	}
	return def
}

func setStringFromEnv(key string, target *string) {
	if v := strings.TrimSpace(getenv(key, "")); v != "" {
		*target = v
	}
}

func setIntFromEnv(key string, setter func(int)) {
	if v := getenv(key, ""); v != "" {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			setter(n)
		}
	}
}

func setFloatFromEnv(key string, setter func(float64)) {
	if v := getenv(key, ""); v != "" {
		if f, err := strconv.ParseFloat(strings.TrimSpace(v), 64); err == nil {
			setter(f)
		}
	}
}

func setToggleFromEnv(key string, setter func(bool)) {
	v := strings.ToLower(strings.TrimSpace(getenv(key, "")))
	switch v {
	case "1", "true", "yes", "on":
		setter(true)
	case "0", "false", "no", "off":
		setter(false)
	}
}

func splitAndTrim(input, sep string) []string {
	parts := strings.Split(input, sep)
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}

// applyEnv overlays KIRO_CONSOLE_* variables. Environment wins over the file.
func (c *Config) applyEnv() {
	setStringFromEnv("LISTEN", &c.Server.Listen)
	setStringFromEnv("ACCESS_KEY", &c.Server.AccessKey)
	setStringFromEnv("ACCESS_KEY_HASH", &c.Server.AccessKeyHash)
	if v := getenv("CORS_ORIGINS", ""); v != "" {
		c.Server.CORSOrigins = splitAndTrim(v, ",")
	}
	setIntFromEnv("RATE_LIMIT_RPS", func(n int) { c.Server.RateLimitRPS = n })
	setIntFromEnv("RATE_LIMIT_BURST", func(n int) { c.Server.RateLimitBurst = n })

	setStringFromEnv("UPSTREAM_URL", &c.Upstream.BaseURL)
	setStringFromEnv("UPSTREAM_TOKEN", &c.Upstream.Token)
	setStringFromEnv("PROVIDER_KIND", &c.Upstream.ProviderKind)
	setIntFromEnv("RETRY_MAX", func(n int) { c.Upstream.RetryMax = n })
	setIntFromEnv("TIMEOUT_SECONDS", func(n int) { c.Upstream.TimeoutSeconds = n })
	setIntFromEnv("HEALTH_TIMEOUT_SECONDS", func(n int) { c.Upstream.HealthTimeoutSeconds = n })
	setIntFromEnv("SLOW_CALL_MS", func(n int) { c.Upstream.SlowCallMillis = n })

	setIntFromEnv("SWITCH_RESULT_TTL_SECONDS", func(n int) { c.Console.SwitchResultTTLSeconds = n })
	setFloatFromEnv("BATCH_PACING", func(f float64) { c.Console.BatchPacing = f })

	setToggleFromEnv("DEBUG", func(b bool) { c.Logging.Debug = b })
	setStringFromEnv("LOG_FILE", &c.Logging.File)
	setStringFromEnv("OTLP_ENDPOINT", &c.Telemetry.OTLPEndpoint)
}
