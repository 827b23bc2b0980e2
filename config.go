package stencilview

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config holds the server settings for cmd/stencilview.
type Config struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string `yaml:"addr" validate:"required"`

	// DebounceMS is the delay applied to auto-recompute after an edit.
	DebounceMS int `yaml:"debounce_ms" validate:"gte=0,lte=5000"`

	// DefaultMode is the display mode new sessions start in.
	DefaultMode Mode `yaml:"default_mode" validate:"oneof=raw compiled"`

	// ShowMarkup renders compiled output as live HTML by default.
	ShowMarkup bool `yaml:"show_markup"`

	// AutoRecompute reruns substitution on edits by default.
	AutoRecompute bool `yaml:"auto_recompute"`

	// SnippetDB is the SQLite file for saved snippets. Empty disables
	// snippet persistence.
	SnippetDB string `yaml:"snippet_db,omitempty"`

	// SessionTTLMinutes is how long an idle browser session stays valid.
	SessionTTLMinutes int `yaml:"session_ttl_minutes" validate:"gte=0"`
}

// DefaultConfig returns a new Config with default values
func DefaultConfig() *Config {
	return &Config{
		Addr:              ":8080",
		DebounceMS:        250,
		DefaultMode:       ModeCompiled,
		ShowMarkup:        true,
		AutoRecompute:     true,
		SessionTTLMinutes: 24 * 60,
	}
}

// LoadConfig reads the YAML config at path over the defaults. An empty path
// or a missing file returns the defaults.
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				return cfg, nil
			}
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the config against its field constraints.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if multi := ValidationToMultiError(err); len(multi) > 0 {
			return fmt.Errorf("invalid config: %w", multi)
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// Debounce returns the edit debounce delay as a duration.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.DebounceMS) * time.Millisecond
}

// SessionTTL returns the session time-to-live as a duration.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLMinutes) * time.Minute
}
