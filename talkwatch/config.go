package talkwatch

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level talkwatch configuration.
type Config struct {
	DB          string        `yaml:"db"`
	Viewer      string        `yaml:"viewer"`
	Poll        time.Duration `yaml:"poll"`
	MarkAllRead bool          `yaml:"mark_all_read"`
	// SyncVisits mirrors the visit log to the viewer's wiki user option
	// after every check, so other clients see the same read state.
	SyncVisits bool `yaml:"sync_visits"`
	WikiConfig  string        `yaml:"wiki_config"` // path to a wiki YAML, empty = built-in defaults
	API         APIConfig     `yaml:"api"`
	Pages       []string      `yaml:"pages"`
	Sinks       []SinkConfig  `yaml:"sinks"`
	HTTP        HTTPConfig    `yaml:"http"`
}

// APIConfig points at the wiki's action API.
type APIConfig struct {
	Endpoint  string `yaml:"endpoint"`
	UserAgent string `yaml:"user_agent"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// HTTPConfig controls the daemon's HTTP API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("talkwatch: read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("talkwatch: parse config: %w", err)
	}

	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.DB == "" {
		c.DB = "talkwatch.db"
	}
	if c.Poll <= 0 {
		c.Poll = 5 * time.Minute
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8475"
	}
}
