package config

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"kiro-console/internal/constants"
	"kiro-console/internal/events"
	"kiro-console/internal/monitoring"

	"github.com/fsnotify/fsnotify"
	log "github.com/sirupsen/logrus"
)

// Manager holds the live configuration and reloads it when the file changes.
type Manager struct {
	mu        sync.RWMutex
	config    *Config
	path      string
	lastMod   time.Time
	lastSize  int64
	onChange  []func(*Config)
	publisher events.Publisher
	stopCh    chan struct{}
	stopOnce  sync.Once
}

// ChangeEvent is the payload broadcast on events.TopicConfigUpdated.
// Secrets are redacted.
type ChangeEvent struct {
	Path      string    `json:"path"`
	UpdatedAt time.Time `json:"updated_at"`
	Config    Config    `json:"config"`
	Previous  *Config   `json:"previous,omitempty"`
}

// NewManager loads path and, when it names an existing file, starts
// watching it. A missing file falls back to defaults plus environment.
func NewManager(path string) (*Manager, error) {
	if path != "" {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}
	m := &Manager{path: path, stopCh: make(chan struct{})}

	cfg, err := Load(path)
	if err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load config: %w", err)
		}
		log.WithField("path", path).Warn("using default configuration (no config file found)")
		if cfg, err = Load(""); err != nil {
			return nil, err
		}
	}
	res := cfg.Validate()
	if !res.Valid {
		return nil, res.Err()
	}
	for _, w := range res.Warnings {
		log.WithFields(log.Fields{"field": w.Field, "value": w.Value}).Warn(w.Message)
	}
	m.config = cfg
	m.stat()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			m.startWatcher()
		}
	}
	return m, nil
}

// Get returns a copy of the current configuration.
func (m *Manager) Get() *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()
	cfg := *m.config
	cfg.Server.CORSOrigins = append([]string(nil), m.config.Server.CORSOrigins...)
	return &cfg
}

// Path is the watched file, or "" when running on defaults.
func (m *Manager) Path() string { return m.path }

// OnChange registers a callback for configuration changes.
func (m *Manager) OnChange(fn func(*Config)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.onChange = append(m.onChange, fn)
}

// SetEventPublisher wires the event hub used to broadcast config updates.
func (m *Manager) SetEventPublisher(p events.Publisher) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.publisher = p
}

// Reload re-reads the file now. An invalid file keeps the previous config.
func (m *Manager) Reload() error {
	if m.path == "" {
		return nil
	}
	next, err := Load(m.path)
	if err != nil {
		monitoring.ConfigReloadsTotal.WithLabelValues("error").Inc()
		return err
	}
	if res := next.Validate(); !res.Valid {
		monitoring.ConfigReloadsTotal.WithLabelValues("invalid").Inc()
		return res.Err()
	}

	m.mu.Lock()
	prev := m.config
	m.config = next
	m.mu.Unlock()
	m.stat()

	monitoring.ConfigReloadsTotal.WithLabelValues("ok").Inc()
	logConfigChanges(prev, next)
	m.emitChange(prev, next)
	return nil
}

// Close stops the watcher. Safe to call more than once.
func (m *Manager) Close() {
	m.stopOnce.Do(func() { close(m.stopCh) })
}

func (m *Manager) stat() {
	if m.path == "" {
		return
	}
	info, err := os.Stat(m.path)
	if err != nil {
		return
	}
	m.mu.Lock()
	m.lastMod = info.ModTime()
	m.lastSize = info.Size()
	m.mu.Unlock()
}

func (m *Manager) changedOnDisk() bool {
	info, err := os.Stat(m.path)
	if err != nil {
		return false
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	return !info.ModTime().Equal(m.lastMod) || info.Size() != m.lastSize
}

func (m *Manager) checkAndReload() {
	if m.path == "" || !m.changedOnDisk() {
		return
	}
	if err := m.Reload(); err != nil {
		log.WithError(err).WithField("path", m.path).Warn("failed to reload config")
		// Remember the broken revision so it is not retried every tick.
		m.stat()
	}
}

func (m *Manager) listenersSnapshot() ([]func(*Config), events.Publisher) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	callbacks := make([]func(*Config), len(m.onChange))
	copy(callbacks, m.onChange)
	return callbacks, m.publisher
}

func (m *Manager) emitChange(prev, next *Config) {
	callbacks, publisher := m.listenersSnapshot()
	for _, fn := range callbacks {
		cp := *next
		fn(&cp)
	}
	if publisher == nil {
		return
	}
	event := ChangeEvent{Path: m.path, UpdatedAt: time.Now().UTC(), Config: next.Redacted()}
	if prev != nil {
		p := prev.Redacted()
		event.Previous = &p
	}
	publisher.Publish(context.Background(), events.TopicConfigUpdated, event, nil)
}

func logConfigChanges(prev, next *Config) {
	changed := func(field string, old, new any) {
		log.WithFields(log.Fields{"field": field, "old": old, "new": new}).Info("config changed")
	}
	if prev.Logging.Debug != next.Logging.Debug {
		changed("logging.debug", prev.Logging.Debug, next.Logging.Debug)
	}
	if prev.Upstream.BaseURL != next.Upstream.BaseURL {
		changed("upstream.base_url", prev.Upstream.BaseURL, next.Upstream.BaseURL)
	}
	if prev.Console.SwitchResultTTLSeconds != next.Console.SwitchResultTTLSeconds {
		changed("console.switch_result_ttl_seconds", prev.Console.SwitchResultTTLSeconds, next.Console.SwitchResultTTLSeconds)
	}
	if prev.Console.BatchPacing != next.Console.BatchPacing {
		changed("console.batch_pacing", prev.Console.BatchPacing, next.Console.BatchPacing)
	}
	if prev.Upstream.SlowCallMillis != next.Upstream.SlowCallMillis {
		changed("upstream.slow_call_ms", prev.Upstream.SlowCallMillis, next.Upstream.SlowCallMillis)
	}
}

func (m *Manager) startWatcher() {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		log.WithError(err).Warn("failed to create file watcher, falling back to polling")
		m.startPollingWatcher()
		return
	}
	// Watch the directory too so atomic rename-over writes are seen.
	if err := watcher.Add(filepath.Dir(m.path)); err != nil {
		log.WithError(err).WithField("path", m.path).Warn("failed to watch config directory, falling back to polling")
		watcher.Close()
		m.startPollingWatcher()
		return
	}
	log.WithField("path", m.path).Info("config watcher started using fsnotify")

	target := filepath.Clean(m.path)
	go func() {
		defer watcher.Close()
		var debounce *time.Timer
		for {
			select {
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != target || !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
					continue
				}
				if debounce != nil {
					debounce.Stop()
				}
				debounce = time.AfterFunc(constants.ConfigWatchDebounce, m.checkAndReload)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				log.WithError(err).Warn("config watcher error")
			case <-m.stopCh:
				if debounce != nil {
					debounce.Stop()
				}
				return
			}
		}
	}()
}

func (m *Manager) startPollingWatcher() {
	ticker := time.NewTicker(constants.ConfigPollInterval)
	log.WithField("interval", constants.ConfigPollInterval.String()).Info("config watcher started using polling")
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				m.checkAndReload()
			case <-m.stopCh:
				return
			}
		}
	}()
}
