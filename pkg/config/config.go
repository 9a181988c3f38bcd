// Package config loads the YAML configuration of the onode store.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/felixhuettner/ceph/core/storage"
	"github.com/felixhuettner/ceph/pkg/logger"
	"github.com/felixhuettner/ceph/pkg/telemetry"
)

const DefaultStorePath = "data/onode.db"

var ErrInvalidConfig = errors.New("invalid configuration")

// Config is the top-level configuration file.
type Config struct {
	Logger    logger.Config    `yaml:"logger"`
	Telemetry telemetry.Config `yaml:"telemetry"`
	Store     storage.Config   `yaml:"store"`
}

// Default returns the configuration used when no file is given.
func Default() Config {
	cfg := Config{
		Logger: logger.Config{
			Level:      "info",
			Format:     "console",
			OutputFile: "stderr",
			Service:    logger.DefaultService,
		},
		Telemetry: telemetry.Config{
			ServiceName:      "onode",
			TraceSampleRatio: 1.0,
		},
		Store: storage.Config{Path: DefaultStorePath},
	}
	cfg.Store = cfg.Store.WithDefaults()
	return cfg
}

// Load reads path over the defaults. An empty path yields Default().
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	cfg.Store = cfg.Store.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the fields defaults cannot repair.
func (c Config) Validate() error {
	if c.Store.Path == "" {
		return fmt.Errorf("%w: store.path is empty", ErrInvalidConfig)
	}
	switch strings.ToUpper(c.Store.JournalMode) {
	case "DELETE", "TRUNCATE", "PERSIST", "MEMORY", "WAL", "OFF":
	default:
		return fmt.Errorf("%w: unknown store.journal_mode %q", ErrInvalidConfig, c.Store.JournalMode)
	}
	if c.Telemetry.Enabled && c.Telemetry.ServiceName == "" {
		return fmt.Errorf("%w: telemetry.service_name is required when telemetry is enabled", ErrInvalidConfig)
	}
	if c.Telemetry.PrometheusPort < 0 || c.Telemetry.PrometheusPort > 65535 {
		return fmt.Errorf("%w: telemetry.prometheus_port %d out of range", ErrInvalidConfig, c.Telemetry.PrometheusPort)
	}
	return nil
}
