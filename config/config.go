package config

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/randydotnet/retryproxy/backoff"
	"github.com/randydotnet/retryproxy/invoker"
)

// Config is the declarative retry configuration for one invoker.
type Config struct {
	// MaxRetries is the retry ceiling. A nil value keeps the invoker's
	// current ceiling; zero disables retries.
	MaxRetries *int `yaml:"maxRetries,omitempty" json:"maxRetries,omitempty"`

	// Backoff describes the delay strategy between attempts.
	Backoff BackoffConfig `yaml:"backoff,omitempty" json:"backoff,omitempty"`
}

// BackoffConfig is the YAML/JSON shape of a backoff strategy.
type BackoffConfig struct {
	Type            string   `yaml:"type,omitempty" json:"type,omitempty"`
	InitialInterval Duration `yaml:"initialInterval,omitempty" json:"initialInterval,omitempty"`
	MaxInterval     Duration `yaml:"maxInterval,omitempty" json:"maxInterval,omitempty"`
	Multiplier      float64  `yaml:"multiplier,omitempty" json:"multiplier,omitempty"`
	Jitter          float64  `yaml:"jitter,omitempty" json:"jitter,omitempty"`
	Increment       Duration `yaml:"increment,omitempty" json:"increment,omitempty"`
}

// toBackoff converts the wire shape to the backoff package's config.
func (c *BackoffConfig) toBackoff() *backoff.Config {
	return &backoff.Config{
		Type:            backoff.Type(c.Type),
		InitialInterval: c.InitialInterval.Duration(),
		MaxInterval:     c.MaxInterval.Duration(),
		Multiplier:      c.Multiplier,
		Jitter:          c.Jitter,
		Increment:       c.Increment.Duration(),
	}
}

// Load loads configuration from a file path.
func Load(path string) (*Config, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve path %s: %w", path, err)
	}

	data, err := os.ReadFile(absPath) //nolint:gosec // path is validated via filepath.Abs
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	return parse(data)
}

// LoadFromReader loads configuration from an io.Reader.
func LoadFromReader(r io.Reader) (*Config, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}
	return parse(data)
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the configuration, normalizing absent backoff fields to
// their defaults.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if cfg.MaxRetries != nil && *cfg.MaxRetries < 0 {
		return fmt.Errorf("maxRetries %d is negative", *cfg.MaxRetries)
	}

	bc := cfg.Backoff.toBackoff()
	if err := bc.Validate(); err != nil {
		return fmt.Errorf("backoff: %w", err)
	}

	// Write the normalized values back so Apply sees them.
	cfg.Backoff.Type = string(bc.Type)
	cfg.Backoff.InitialInterval = Duration(bc.InitialInterval)
	cfg.Backoff.MaxInterval = Duration(bc.MaxInterval)
	cfg.Backoff.Multiplier = bc.Multiplier
	cfg.Backoff.Jitter = bc.Jitter
	cfg.Backoff.Increment = Duration(bc.Increment)
	return nil
}

// Apply pushes the configuration onto an invoker. In-flight calls keep the
// values they started with; subsequent calls pick up the new ceiling and
// delay strategy.
func Apply(cfg *Config, inv *invoker.Invoker) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}
	if inv == nil {
		return invoker.ErrNilInvoker
	}

	if cfg.MaxRetries != nil {
		inv.SetMaxRetries(*cfg.MaxRetries)
	}
	inv.SetBackoffFactory(backoff.FactoryFromConfig(cfg.Backoff.toBackoff()))
	return nil
}
