// YAML configuration for submission platforms.
//
// The file maps platform names to delivery endpoints and queue/rate tuning:
//
//	platforms:
//	  email:
//	    endpoint: "https://mail-bridge.internal/submit"
//	    secret: "shared-hmac-key"
//	    rate_per_minute: 30
//	    burst: 5
//	    workers: 2
//	    queue_capacity: 256
//	  webform:
//	    endpoint: "https://form-bridge.internal/submit"
//	    rate_per_minute: 10
package platform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// PlatformConfig tunes one platform's queue and adapter.
type PlatformConfig struct {
	Endpoint      string  `yaml:"endpoint"`
	Secret        string  `yaml:"secret"`
	RatePerMinute float64 `yaml:"rate_per_minute"`
	Burst         int     `yaml:"burst"`
	Workers       int     `yaml:"workers"`
	QueueCapacity int     `yaml:"queue_capacity"`
}

// Config is the full platforms file.
type Config struct {
	Platforms map[string]PlatformConfig `yaml:"platforms"`
}

// LoadConfig reads and validates the platforms YAML file, applying defaults
// for optional tuning fields.
func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse platforms config: %w", err)
	}
	if len(cfg.Platforms) == 0 {
		return nil, fmt.Errorf("platforms config %s defines no platforms", path)
	}
	for name, pc := range cfg.Platforms {
		if pc.Endpoint == "" {
			return nil, fmt.Errorf("platform %s: endpoint is required", name)
		}
		if pc.RatePerMinute <= 0 {
			pc.RatePerMinute = 60
		}
		if pc.Burst <= 0 {
			pc.Burst = 1
		}
		if pc.Workers <= 0 {
			pc.Workers = 1
		}
		if pc.QueueCapacity <= 0 {
			pc.QueueCapacity = 128
		}
		cfg.Platforms[name] = pc
	}
	return &cfg, nil
}

// BuildRegistry constructs webhook adapters for every configured platform.
func (c *Config) BuildRegistry() *Registry {
	reg := NewRegistry()
	for name, pc := range c.Platforms {
		reg.Register(&WebhookAdapter{PlatformName: name, Endpoint: pc.Endpoint, Secret: pc.Secret})
	}
	return reg
}
