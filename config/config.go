// Package config loads the application configuration from YAML.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/georgepadayatti/docsign/digest"
)

// Common errors
var (
	ErrConfigurationError   = errors.New("configuration error")
	ErrMissingRequiredField = errors.New("missing required field")
)

// ConfigError represents a configuration error with context.
type ConfigError struct {
	Field   string
	Message string
	Err     error
}

func (e *ConfigError) Error() string {
	if e.Field != "" {
		return fmt.Sprintf("config error in '%s': %s", e.Field, e.Message)
	}
	return fmt.Sprintf("config error: %s", e.Message)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// NewConfigError creates a new ConfigError.
func NewConfigError(field, message string) *ConfigError {
	return &ConfigError{Field: field, Message: message, Err: ErrConfigurationError}
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level is the minimum level: trace, debug, info, warn, error.
	Level string `yaml:"level" json:"level"`

	// Pretty enables human-readable console output instead of JSON.
	Pretty bool `yaml:"pretty" json:"pretty"`
}

// Config is the application configuration.
type Config struct {
	// RegistryDir is the certificate registry directory. Holds only
	// public material and is safe to share.
	RegistryDir string `yaml:"registry-dir" json:"registry_dir"`

	// KeyStoreDir is the encrypted private key store directory. Kept
	// separate from the registry so exporting one never leaks the other.
	KeyStoreDir string `yaml:"key-store-dir" json:"key_store_dir"`

	// PinnedFile is the path to the pinned certificate list.
	PinnedFile string `yaml:"pinned-file" json:"pinned_file,omitempty"`

	// DigestAlgorithm is the default digest for new signatures.
	DigestAlgorithm string `yaml:"digest-algorithm" json:"digest_algorithm"`

	// Logging configures the structured logger.
	Logging LoggingConfig `yaml:"logging" json:"logging"`
}

// Default returns the default configuration rooted under the user's
// home directory.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	root := filepath.Join(home, ".docsign")
	return &Config{
		RegistryDir:     filepath.Join(root, "certs"),
		KeyStoreDir:     filepath.Join(root, "keys"),
		PinnedFile:      filepath.Join(root, "pinned"),
		DigestAlgorithm: string(digest.SHA256),
		Logging:         LoggingConfig{Level: "info"},
	}
}

// Load reads a YAML configuration file. Fields absent from the file
// keep their defaults.
func Load(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrConfigurationError, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and the digest algorithm name.
func (c *Config) Validate() error {
	if c.RegistryDir == "" {
		return NewConfigError("registry-dir", "required field is missing")
	}
	if c.KeyStoreDir == "" {
		return NewConfigError("key-store-dir", "required field is missing")
	}
	if !digest.Algorithm(c.DigestAlgorithm).Valid() {
		return NewConfigError("digest-algorithm", fmt.Sprintf("unsupported algorithm %q", c.DigestAlgorithm))
	}
	return nil
}
