package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/lcabon/resq/core/dispatch"
	"github.com/lcabon/resq/core/evidence"
	"github.com/lcabon/resq/core/factory"
	"github.com/lcabon/resq/core/metrics"
	corerouting "github.com/lcabon/resq/core/routing"
	"github.com/lcabon/resq/infra/mqtt"
	infrarouting "github.com/lcabon/resq/infra/routing"
)

// Config is the full service configuration.
type Config struct {
	MQTT       mqtt.Config          `json:"mqtt"`
	Dispatch   dispatch.Config      `json:"dispatch"`
	Routing    infrarouting.Config  `json:"routing"`
	Refiner    corerouting.Config   `json:"refiner"`
	Evidence   evidence.Config      `json:"evidence"`
	Checkpoint factory.ModuleConfig `json:"checkpoint"`
	Metrics    metrics.Config       `json:"metrics"`
	Directory  DirectoryConfig      `json:"directory"`
	Mission    MissionConfig        `json:"mission"`
}

// DirectoryConfig tunes the cached resource directory.
type DirectoryConfig struct {
	// RefreshSeconds is the interval between discovery rounds.
	RefreshSeconds int `json:"refresh_seconds"`
}

func (c *DirectoryConfig) SetDefaults() {
	if c.RefreshSeconds <= 0 {
		c.RefreshSeconds = 30
	}
}

// MissionConfig tunes the mission pipelines.
type MissionConfig struct {
	// AckTimeoutSeconds bounds the wait for a device acknowledgment.
	AckTimeoutSeconds int `json:"ack_timeout_seconds"`
}

func (c *MissionConfig) SetDefaults() {
	if c.AckTimeoutSeconds <= 0 {
		c.AckTimeoutSeconds = 10
	}
}

// Load reads the configuration file and applies RESQ_ environment
// overrides, "__" separating nesting levels (RESQ_MQTT__BROKER).
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	if err := k.Load(env.Provider("RESQ_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "resq_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}

	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's zero values.
func (c *Config) SetDefaults() {
	c.MQTT.SetDefaults()
	c.Dispatch.SetDefaults()
	c.Routing.SetDefaults()
	c.Refiner.SetDefaults()
	c.Evidence.SetDefaults()
	c.Metrics.SetDefaults()
	c.Directory.SetDefaults()
	c.Mission.SetDefaults()
	if c.Checkpoint.Type == "" {
		c.Checkpoint.Type = "memory"
	}
}

// Validate checks the sections that carry mandatory fields.
func (c Config) Validate() error {
	if err := c.MQTT.Validate(); err != nil {
		return err
	}
	if err := c.Dispatch.Validate(); err != nil {
		return err
	}
	if c.Routing.BaseURL == "" {
		return fmt.Errorf("routing base_url is required")
	}
	return nil
}
