// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/bureau-foundation/cnl/lib/face"
	"github.com/bureau-foundation/cnl/lib/ndn"
	"github.com/bureau-foundation/cnl/lib/stream"
	"github.com/bureau-foundation/cnl/lib/transform"
)

// EnvironmentVariable names the variable Load reads the config path
// from.
const EnvironmentVariable = "CNL_CONFIG"

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Duration is a time.Duration written as a Go duration string ("4s",
// "250ms") in both YAML and JSON.
type Duration time.Duration

// UnmarshalYAML implements yaml.Unmarshaler.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var text string
	if err := node.Decode(&text); err != nil {
		return err
	}
	return d.parse(text)
}

// MarshalYAML implements yaml.Marshaler.
func (d Duration) MarshalYAML() (any, error) { return time.Duration(d).String(), nil }

// UnmarshalJSON implements json.Unmarshaler.
func (d *Duration) UnmarshalJSON(data []byte) error {
	var text string
	if err := json.Unmarshal(data, &text); err != nil {
		return fmt.Errorf("duration must be a string like \"4s\": %w", err)
	}
	return d.parse(text)
}

// MarshalJSON implements json.Marshaler.
func (d Duration) MarshalJSON() ([]byte, error) { return json.Marshal(time.Duration(d).String()) }

func (d *Duration) parse(text string) error {
	parsed, err := time.ParseDuration(text)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

// Config is the configuration of the cnl command.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment" json:"environment"`

	// Face configures the network face.
	Face FaceConfig `yaml:"face" json:"face"`

	// Stream configures the produced or consumed stream.
	Stream StreamConfig `yaml:"stream" json:"stream"`

	// Logging configures the slog handler.
	Logging LoggingConfig `yaml:"logging" json:"logging"`

	// Metrics configures the Prometheus endpoint.
	Metrics MetricsConfig `yaml:"metrics" json:"metrics"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty" json:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty" json:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty" json:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Face    *FaceConfig    `yaml:"face,omitempty" json:"face,omitempty"`
	Stream  *StreamConfig  `yaml:"stream,omitempty" json:"stream,omitempty"`
	Logging *LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Metrics *MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
}

// FaceConfig configures the stream transport.
type FaceConfig struct {
	// Listen is the TCP address a producer accepts consumers on.
	// Default: 127.0.0.1:6363
	Listen string `yaml:"listen" json:"listen"`

	// Connect is the TCP address a consumer dials.
	// Default: 127.0.0.1:6363
	Connect string `yaml:"connect" json:"connect"`

	// InterestLifetime is the lifetime of the first attempt of every
	// Interest. Default: 4s
	InterestLifetime Duration `yaml:"interest_lifetime" json:"interest_lifetime"`

	// MaxRetryLifetime caps the doubled lifetime of re-expressed
	// Interests. Default: 16s
	MaxRetryLifetime Duration `yaml:"max_retry_lifetime" json:"max_retry_lifetime"`

	// DeadNonceCapacity is the number of recently seen Interest nonces
	// remembered for loop detection. Default: 4096
	DeadNonceCapacity int `yaml:"dead_nonce_capacity" json:"dead_nonce_capacity"`
}

// StreamConfig configures the stream handler and content transforms.
type StreamConfig struct {
	// Prefix is the stream namespace. Required.
	Prefix string `yaml:"prefix" json:"prefix"`

	// PipelineSize is the consumer window. Zero polls _latest instead.
	// Default: 8
	PipelineSize int `yaml:"pipeline_size" json:"pipeline_size"`

	// LatestFreshness is the freshness period of produced _latest
	// packets. Default: 1s
	LatestFreshness Duration `yaml:"latest_freshness" json:"latest_freshness"`

	// MaxSegmentPayload is the largest segment payload produced.
	// Default: 8000
	MaxSegmentPayload int `yaml:"max_segment_payload" json:"max_segment_payload"`

	// Compression is one of none, lz4, zstd, auto. Default: auto
	Compression string `yaml:"compression" json:"compression"`

	// RecipientsFile lists age recipients; a producer encrypts to them.
	RecipientsFile string `yaml:"recipients_file" json:"recipients_file"`

	// IdentityFile holds age identities; a consumer decrypts with them.
	IdentityFile string `yaml:"identity_file" json:"identity_file"`

	// SecretFile holds a group secret shared by producer and consumers.
	// Content is sealed with a key derived from it.
	SecretFile string `yaml:"secret_file" json:"secret_file"`

	// SigningKeyFile holds a secret from which the keyed packet
	// signature key is derived. Without it packets carry a digest.
	SigningKeyFile string `yaml:"signing_key_file" json:"signing_key_file"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	// Level is one of debug, info, warn, error. Default: info
	Level string `yaml:"level" json:"level"`

	// Format is one of auto, text, json. Auto selects text on a
	// terminal and JSON otherwise. Default: auto
	Format string `yaml:"format" json:"format"`
}

// MetricsConfig configures the Prometheus endpoint.
type MetricsConfig struct {
	// Address serves /metrics when non-empty.
	Address string `yaml:"address" json:"address"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
// They exist primarily to ensure all fields have sensible zero-values,
// not as a fallback - the config file is required.
func Default() *Config {
	return &Config{
		Environment: Development,
		Face: FaceConfig{
			Listen:            "127.0.0.1:6363",
			Connect:           "127.0.0.1:6363",
			InterestLifetime:  Duration(face.DefaultRetryInitialLifetime),
			MaxRetryLifetime:  Duration(face.DefaultRetryMaxLifetime),
			DeadNonceCapacity: face.DefaultDeadNonceCapacity,
		},
		Stream: StreamConfig{
			PipelineSize:      stream.DefaultPipelineSize,
			LatestFreshness:   Duration(stream.DefaultLatestPacketFreshnessPeriod),
			MaxSegmentPayload: 8000,
			Compression:       "auto",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "auto",
		},
	}
}

// Load loads configuration from the CNL_CONFIG environment variable.
//
// This is the only way to load configuration without an explicit path.
// There are no fallbacks or defaults - if CNL_CONFIG is not set, this fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvironmentVariable)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your cnl.yaml config file, or use --config flag", EnvironmentVariable)
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path. Files named
// *.json or *.jsonc are JSON with comments; anything else is YAML.
//
// The config file is the single source of truth. Environment variables do not
// override config values. The only expansion performed is ${HOME} and similar
// variables in file paths.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	default:
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parsing %s: %w", path, err)
		}
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		// Production defaults: machine-readable logs.
		if overrides == nil {
			overrides = &ConfigOverrides{
				Logging: &LoggingConfig{Format: "json"},
			}
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Face != nil {
		if overrides.Face.Listen != "" {
			c.Face.Listen = overrides.Face.Listen
		}
		if overrides.Face.Connect != "" {
			c.Face.Connect = overrides.Face.Connect
		}
		if overrides.Face.InterestLifetime != 0 {
			c.Face.InterestLifetime = overrides.Face.InterestLifetime
		}
		if overrides.Face.MaxRetryLifetime != 0 {
			c.Face.MaxRetryLifetime = overrides.Face.MaxRetryLifetime
		}
		if overrides.Face.DeadNonceCapacity != 0 {
			c.Face.DeadNonceCapacity = overrides.Face.DeadNonceCapacity
		}
	}

	if overrides.Stream != nil {
		if overrides.Stream.Prefix != "" {
			c.Stream.Prefix = overrides.Stream.Prefix
		}
		// A zero pipeline size is meaningful, so it cannot be told
		// apart from an absent override. Only positive sizes apply.
		if overrides.Stream.PipelineSize > 0 {
			c.Stream.PipelineSize = overrides.Stream.PipelineSize
		}
		if overrides.Stream.LatestFreshness != 0 {
			c.Stream.LatestFreshness = overrides.Stream.LatestFreshness
		}
		if overrides.Stream.MaxSegmentPayload != 0 {
			c.Stream.MaxSegmentPayload = overrides.Stream.MaxSegmentPayload
		}
		if overrides.Stream.Compression != "" {
			c.Stream.Compression = overrides.Stream.Compression
		}
		if overrides.Stream.RecipientsFile != "" {
			c.Stream.RecipientsFile = overrides.Stream.RecipientsFile
		}
		if overrides.Stream.IdentityFile != "" {
			c.Stream.IdentityFile = overrides.Stream.IdentityFile
		}
		if overrides.Stream.SecretFile != "" {
			c.Stream.SecretFile = overrides.Stream.SecretFile
		}
		if overrides.Stream.SigningKeyFile != "" {
			c.Stream.SigningKeyFile = overrides.Stream.SigningKeyFile
		}
	}

	if overrides.Logging != nil {
		if overrides.Logging.Level != "" {
			c.Logging.Level = overrides.Logging.Level
		}
		if overrides.Logging.Format != "" {
			c.Logging.Format = overrides.Logging.Format
		}
	}

	if overrides.Metrics != nil && overrides.Metrics.Address != "" {
		c.Metrics.Address = overrides.Metrics.Address
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in file paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"HOME": os.Getenv("HOME"),
	}

	c.Stream.RecipientsFile = expandVars(c.Stream.RecipientsFile, vars)
	c.Stream.IdentityFile = expandVars(c.Stream.IdentityFile, vars)
	c.Stream.SecretFile = expandVars(c.Stream.SecretFile, vars)
	c.Stream.SigningKeyFile = expandVars(c.Stream.SigningKeyFile, vars)
}

// expandVars expands ${VAR} and ${VAR:-default} patterns.
var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

var (
	logLevels  = []string{"debug", "info", "warn", "error"}
	logFormats = []string{"auto", "text", "json"}
)

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if c.Environment != Development && c.Environment != Staging && c.Environment != Production {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Face.InterestLifetime <= 0 {
		errs = append(errs, fmt.Errorf("face.interest_lifetime must be positive"))
	}
	if c.Face.MaxRetryLifetime < c.Face.InterestLifetime {
		errs = append(errs, fmt.Errorf("face.max_retry_lifetime must be at least face.interest_lifetime"))
	}
	if c.Face.DeadNonceCapacity <= 0 {
		errs = append(errs, fmt.Errorf("face.dead_nonce_capacity must be positive"))
	}

	if c.Stream.Prefix == "" {
		errs = append(errs, fmt.Errorf("stream.prefix is required"))
	} else if _, err := c.StreamPrefix(); err != nil {
		errs = append(errs, fmt.Errorf("stream.prefix: %w", err))
	}
	if c.Stream.PipelineSize < 0 {
		errs = append(errs, fmt.Errorf("stream.pipeline_size must not be negative"))
	}
	if c.Stream.LatestFreshness <= 0 {
		errs = append(errs, fmt.Errorf("stream.latest_freshness must be positive"))
	}
	if c.Stream.MaxSegmentPayload <= 0 {
		errs = append(errs, fmt.Errorf("stream.max_segment_payload must be positive"))
	}
	if _, err := transform.ParseCompressionTag(c.Stream.Compression); err != nil {
		errs = append(errs, fmt.Errorf("stream.compression: %w", err))
	}
	if c.Stream.RecipientsFile != "" && c.Stream.SecretFile != "" {
		errs = append(errs, fmt.Errorf("stream.recipients_file and stream.secret_file are mutually exclusive"))
	}

	if !slices.Contains(logLevels, c.Logging.Level) {
		errs = append(errs, fmt.Errorf("logging.level must be one of: %v", logLevels))
	}
	if !slices.Contains(logFormats, c.Logging.Format) {
		errs = append(errs, fmt.Errorf("logging.format must be one of: %v", logFormats))
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// StreamPrefix parses Stream.Prefix.
func (c *Config) StreamPrefix() (ndn.Name, error) {
	prefix, err := ndn.ParseName(c.Stream.Prefix)
	if err != nil {
		return nil, err
	}
	if len(prefix) == 0 {
		return nil, fmt.Errorf("prefix must have at least one component")
	}
	return prefix, nil
}

// RetryOptions returns the face retry policy.
func (c *Config) RetryOptions() face.RetryOptions {
	return face.RetryOptions{
		InitialLifetime: time.Duration(c.Face.InterestLifetime),
		MaxLifetime:     time.Duration(c.Face.MaxRetryLifetime),
	}
}
