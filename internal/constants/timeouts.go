package constants

import "time"

const (
	// UpstreamCallTimeout bounds one provider-pool API call including retries.
	UpstreamCallTimeout = 30 * time.Second
	// HealthCheckCallTimeout is longer because the pool sends a live model request.
	HealthCheckCallTimeout = 60 * time.Second
	// TransientResultTTL is how long a switch-to-local result stays visible.
	TransientResultTTL = 5 * time.Second
	// ServerShutdownTimeout bounds graceful HTTP server shutdown.
	ServerShutdownTimeout = 30 * time.Second
	// ConfigWatchDebounce coalesces bursts of config file writes.
	ConfigWatchDebounce = 250 * time.Millisecond
	// ConfigPollInterval is the fallback when fsnotify is unavailable.
	ConfigPollInterval = 5 * time.Second
	// WSWriteTimeout bounds one websocket frame write.
	WSWriteTimeout = 10 * time.Second
	// WSPingInterval keeps idle notification streams alive.
	WSPingInterval = 30 * time.Second
)
