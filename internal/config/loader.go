// Package config provides configuration loading and management.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/JustZerooo/CounterStrikeSharp/internal/constants"
)

// Loader handles loading and saving the configuration file.
type Loader struct {
	baseDir string
}

// NewLoader creates a new config loader.
// The config directory is resolved in this order:
//  1. CSSHARP_CONFIG environment variable (used as the directory itself).
//  2. ~/.cssharp.
//  3. /tmp/cssharp-fallback (containers without a home dir).
//
// The loader never fails: without a config file Load returns defaults with
// environment overrides applied.
func NewLoader() *Loader {
	if dir := os.Getenv(constants.EnvConfigDir); dir != "" {
		return &Loader{baseDir: dir}
	}

	homeDir, err := os.UserHomeDir()
	if err == nil {
		return &Loader{baseDir: filepath.Join(homeDir, constants.DefaultDir)}
	}

	return &Loader{baseDir: constants.FallbackDir}
}

// NewLoaderAt creates a loader rooted at dir.
func NewLoaderAt(dir string) *Loader {
	return &Loader{baseDir: dir}
}

// Dir returns the config directory.
func (l *Loader) Dir() string { return l.baseDir }

// ConfigPath returns the path to the config file.
func (l *Loader) ConfigPath() string {
	return filepath.Join(l.baseDir, constants.ConfigFile)
}

// Resolve makes a relative data file path absolute against the config
// directory.
func (l *Loader) Resolve(path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(l.baseDir, path)
}

// Load loads and validates the configuration with layered precedence.
// Data file paths in the result are absolute.
func (l *Loader) Load() (*Config, error) {
	cfg, _, err := l.LoadWithSources()
	return cfg, err
}

// LoadWithSources is Load that also reports which fields the config file
// and the environment set.
func (l *Loader) LoadWithSources() (*Config, []FieldSource, error) {
	layered := NewLayeredLoader()
	cfg, err := layered.Load(l.ConfigPath())
	if err != nil {
		return nil, nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config %s: %w", l.ConfigPath(), err)
	}

	cfg.GameData.Path = l.Resolve(cfg.GameData.Path)
	cfg.Schema.Path = l.Resolve(cfg.Schema.Path)
	return cfg, layered.Sources(), nil
}

// Save writes the configuration file.
func (l *Loader) Save(cfg *Config) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	//nolint:gosec // G301: Directory needs standard permissions for traversal
	if err := os.MkdirAll(l.baseDir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(l.ConfigPath(), data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// Load is a shorthand for NewLoader().Load().
func Load() (*Config, error) {
	return NewLoader().Load()
}
