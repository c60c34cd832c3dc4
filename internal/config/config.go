// Package config holds the daemon's start-up configuration: listen
// addresses, the shaped interface, and where the profile catalog lives.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Backend names accepted in configuration.
const (
	BackendTC   = "tc"
	BackendNoop = "noop"
)

// Config is the daemon configuration. Zero values are filled from
// Default(); flags in cmd override file values.
type Config struct {
	// ListenAddr is the HTTP facade address.
	ListenAddr string `yaml:"listen_addr" json:"listen_addr"`
	// MetricsAddr serves Prometheus /metrics on its own listener.
	MetricsAddr string `yaml:"metrics_addr" json:"metrics_addr"`
	// Interface is the network interface the tc backend shapes.
	Interface string `yaml:"interface" json:"interface"`
	// CatalogPath points at the JSON profile/scenario definitions.
	CatalogPath string `yaml:"catalog_path" json:"catalog_path"`
	// BaselineProfile is the profile the engine starts on.
	BaselineProfile string `yaml:"baseline_profile" json:"baseline_profile"`
	// Backend selects the shaping backend: "tc" or "noop".
	Backend string `yaml:"backend" json:"backend"`

	Log LogConfig `yaml:"log" json:"log"`
}

// LogConfig mirrors the logging package's knobs so they can live in the
// same file as everything else.
type LogConfig struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// Default returns the configuration used when no file is given. The
// port and catalog path match what the mobile test rigs already expect.
func Default() Config {
	return Config{
		ListenAddr:      ":9090",
		MetricsAddr:     ":9091",
		Interface:       "eth0",
		CatalogPath:     "/etc/network-sim/network-profiles.json",
		BaselineProfile: "wifi",
		Backend:         BackendTC,
	}
}

// LoadFile reads a YAML or JSON config file and overlays it on the
// defaults. Unset fields keep their default values.
func LoadFile(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse JSON config: %w", err)
		}
	default:
		return cfg, fmt.Errorf("unsupported config format: %s", ext)
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Validate rejects configurations the daemon cannot start with.
func (c Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if c.Interface == "" && c.Backend == BackendTC {
		return fmt.Errorf("interface must be set for the tc backend")
	}
	switch c.Backend {
	case BackendTC, BackendNoop:
	default:
		return fmt.Errorf("unknown backend %q (want %q or %q)", c.Backend, BackendTC, BackendNoop)
	}
	if c.BaselineProfile == "" {
		return fmt.Errorf("baseline_profile must not be empty")
	}
	return nil
}
