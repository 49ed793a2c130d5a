package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"packtrack/internal/valuation"
)

// Config represents the application configuration
type Config struct {
	DataDir  string `yaml:"data_dir"`
	LogLevel string `yaml:"log_level"`

	// CostMethod selects the unit-cost averaging rule: "simple_mean"
	// (the default, matching the dashboard's historical behavior) or
	// "weighted_average".
	CostMethod string `yaml:"cost_method"`

	Server struct {
		Port int `yaml:"port"`
	} `yaml:"server"`

	Metrics struct {
		Enabled bool   `yaml:"enabled"`
		Port    int    `yaml:"port"`
		Path    string `yaml:"path"`
	} `yaml:"metrics"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	cfg := &Config{
		DataDir:    "data",
		LogLevel:   "info",
		CostMethod: string(valuation.MethodSimpleMean),
	}
	cfg.Server.Port = 8080
	cfg.Metrics.Enabled = true
	cfg.Metrics.Port = 9090
	cfg.Metrics.Path = "/metrics"
	return cfg
}

// Load reads the YAML configuration file at path, falling back to defaults
// for anything unset. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if !valuation.Method(cfg.CostMethod).IsValid() {
		return nil, fmt.Errorf("invalid cost_method %q", cfg.CostMethod)
	}
	return cfg, nil
}
