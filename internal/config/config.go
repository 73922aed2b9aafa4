// Package config handles configuration loading and validation for jwtlens.
package config

import (
	"encoding/json"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"go.uber.org/zap/zapcore"
	"gopkg.in/yaml.v3"
)

const (
	DefaultBaseURL   = "http://127.0.0.1:5000/api"
	DefaultTimeout   = 15 * time.Second
	DefaultAlgorithm = "HS256"
	DefaultPayload   = `{"sub":"123","name":"Alice"}`
)

// SupportedAlgorithms are the signing algorithms the encoder offers
var SupportedAlgorithms = []string{"HS256", "HS384", "HS512"}

// Config is the full client configuration
type Config struct {
	API     APIConfig     `yaml:"api" toml:"api" json:"api"`
	Log     LogConfig     `yaml:"log" toml:"log" json:"log"`
	Encoder EncoderConfig `yaml:"encoder" toml:"encoder" json:"encoder"`
}

// APIConfig locates the analysis service
type APIConfig struct {
	BaseURL string   `yaml:"base_url" toml:"base_url" json:"base_url"`
	Timeout Duration `yaml:"timeout" toml:"timeout" json:"timeout"`
}

// LogConfig controls the zap logger
type LogConfig struct {
	Level string `yaml:"level" toml:"level" json:"level"`
	File  string `yaml:"file" toml:"file" json:"file"`
}

// EncoderConfig holds the encoder form defaults
type EncoderConfig struct {
	Algorithm       string `yaml:"algorithm" toml:"algorithm" json:"algorithm"`
	PayloadTemplate string `yaml:"payload_template" toml:"payload_template" json:"payload_template"`
}

// Duration is a time.Duration written as "10s" in config files
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(text)))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: DefaultBaseURL,
			Timeout: Duration{DefaultTimeout},
		},
		Log: LogConfig{
			Level: "warn",
		},
		Encoder: EncoderConfig{
			Algorithm:       DefaultAlgorithm,
			PayloadTemplate: DefaultPayload,
		},
	}
}

// DefaultPath is $XDG_CONFIG_HOME/jwtlens/config.yaml
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, "jwtlens", "config.yaml")
}

// Load reads path (defaults when it does not exist), applies environment
// overrides and validates the result.
func Load(path string) (*Config, error) {
	cfg, err := loadConfigFromFile(path)
	if err != nil {
		return nil, err
	}

	if err := cfg.ApplyEnvOverrides(); err != nil {
		return nil, fmt.Errorf("environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}
	return cfg, nil
}

func loadConfigFromFile(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Default(), nil
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	switch filepath.Ext(path) {
	case ".toml":
		if _, err := toml.Decode(string(data), cfg); err != nil {
			return nil, fmt.Errorf("decode TOML: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode JSON: %w", err)
		}
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode YAML: %w", err)
		}
	}
	return cfg, nil
}

// ApplyEnvOverrides lets JWTLENS_* variables win over the file. Values
// that cannot be parsed are reported and leave the field unchanged.
func (c *Config) ApplyEnvOverrides() error {
	var errs ValidationErrors
	if v := os.Getenv("JWTLENS_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("JWTLENS_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			errs = append(errs, ValidationError{Field: "JWTLENS_TIMEOUT", Message: fmt.Sprintf("invalid duration %q", v)})
		} else {
			c.API.Timeout = Duration{d}
		}
	}
	if v := os.Getenv("JWTLENS_LOG_LEVEL"); v != "" {
		c.Log.Level = v
	}
	if v := os.Getenv("JWTLENS_LOG_FILE"); v != "" {
		c.Log.File = v
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// ValidationError is one invalid configuration field
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config: %s: %s", e.Field, e.Message)
}

// ValidationErrors collects every invalid field
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	msgs := make([]string, 0, len(e))
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, "; ")
}

// Validate checks the configuration for values the client cannot use
func (c *Config) Validate() error {
	var errs ValidationErrors

	u, err := url.Parse(c.API.BaseURL)
	if c.API.BaseURL == "" || err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, ValidationError{Field: "api.base_url", Message: fmt.Sprintf("invalid URL %q", c.API.BaseURL)})
	}
	if c.API.Timeout.Duration <= 0 {
		errs = append(errs, ValidationError{Field: "api.timeout", Message: "must be positive"})
	}
	if _, err := zapcore.ParseLevel(c.Log.Level); err != nil {
		errs = append(errs, ValidationError{Field: "log.level", Message: err.Error()})
	}
	if !IsSupportedAlgorithm(c.Encoder.Algorithm) {
		errs = append(errs, ValidationError{
			Field:   "encoder.algorithm",
			Message: fmt.Sprintf("unsupported algorithm %q (want one of %s)", c.Encoder.Algorithm, strings.Join(SupportedAlgorithms, ", ")),
		})
	}
	if c.Encoder.PayloadTemplate != "" && !json.Valid([]byte(c.Encoder.PayloadTemplate)) {
		errs = append(errs, ValidationError{Field: "encoder.payload_template", Message: "not valid JSON"})
	}

	if len(errs) > 0 {
		return errs
	}
	return nil
}

// IsSupportedAlgorithm reports whether alg is one of SupportedAlgorithms
func IsSupportedAlgorithm(alg string) bool {
	for _, a := range SupportedAlgorithms {
		if a == alg {
			return true
		}
	}
	return false
}
