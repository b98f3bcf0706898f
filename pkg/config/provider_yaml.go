package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// YAMLProvider implements Provider for YAML configuration files. Fields
// absent from the file keep their documented defaults.
type YAMLProvider struct {
	filename string
}

// NewYAMLProvider creates a new YAML configuration provider
func NewYAMLProvider(filename string) *YAMLProvider {
	return &YAMLProvider{
		filename: filename,
	}
}

// LoadConfig loads the pipeline configuration from the YAML file, layered
// over the defaults.
func (y *YAMLProvider) LoadConfig() (*Config, error) {
	cfgFile, err := os.ReadFile(y.filename)
	if err != nil {
		return nil, err
	}

	cfg := Default()
	if err := yaml.Unmarshal(cfgFile, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", y.filename, err)
	}

	if cfg.MaxGapFactor <= 0 {
		return nil, fmt.Errorf("max_gap_factor must be positive, got %v", cfg.MaxGapFactor)
	}
	if cfg.MinSessionSeconds < 0 {
		return nil, fmt.Errorf("min_session_seconds must not be negative, got %v", cfg.MinSessionSeconds)
	}

	return cfg, nil
}

// StaticProvider implements Provider for an in-memory configuration,
// used when no config file is given.
type StaticProvider struct {
	cfg *Config
}

// NewStaticProvider wraps an existing Config in a Provider.
func NewStaticProvider(cfg *Config) *StaticProvider {
	return &StaticProvider{cfg: cfg}
}

// LoadConfig returns the wrapped configuration.
func (s *StaticProvider) LoadConfig() (*Config, error) {
	return s.cfg, nil
}
