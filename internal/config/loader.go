package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Load reads path (YAML or JSON by extension), overlays the environment and
// fills defaults. An empty path yields defaults plus environment.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, err
		}
		if err := decode(path, data, cfg); err != nil {
			return nil, err
		}
	}
	cfg.applyEnv()
	cfg.applyDefaults()
	cfg.normalize()
	return cfg, nil
}

func decode(path string, data []byte, cfg *Config) error {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse YAML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("failed to parse JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			if err := json.Unmarshal(data, cfg); err != nil {
				return fmt.Errorf("failed to parse config file (tried YAML and JSON)")
			}
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Upstream.BaseURL = strings.TrimRight(strings.TrimSpace(c.Upstream.BaseURL), "/")
	c.Upstream.ProviderKind = strings.ToLower(strings.TrimSpace(c.Upstream.ProviderKind))
}

// ResolvePath returns explicit if set, otherwise the first existing
// well-known location, otherwise "".
func ResolvePath(explicit string) (string, error) {
	if explicit != "" {
		if strings.HasPrefix(explicit, "~") {
			home, err := os.UserHomeDir()
			if err != nil {
				return "", fmt.Errorf("failed to get home directory: %w", err)
			}
			explicit = filepath.Join(home, explicit[1:])
		}
		return explicit, nil
	}
	locations := []string{"kiro-console.yaml", "kiro-console.yml", "kiro-console.json"}
	if home, err := os.UserHomeDir(); err == nil {
		locations = append(locations, filepath.Join(home, ".kiro-console", "config.yaml"))
	}
	locations = append(locations, "/etc/kiro-console/config.yaml")
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return loc, nil
		}
	}
	return "", nil
}
