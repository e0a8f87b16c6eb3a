package cliconfig

import (
	"fmt"
	"strings"

	"github.com/getmockd/chaoskit/pkg/logging"
)

// CLIConfig is the complete configuration for the chaoskit CLI.
type CLIConfig struct {
	// PolicyFile is the policy document to load. Empty means the built-in
	// datastore default.
	PolicyFile string `yaml:"policy,omitempty"`

	LogLevel  string `yaml:"logLevel,omitempty"`
	LogFormat string `yaml:"logFormat,omitempty"`

	// Seed fixes the random source. Zero means a random seed.
	Seed uint64 `yaml:"seed,omitempty"`

	// Sources tracks where each value came from.
	Sources map[string]string `yaml:"-"`
}

// ConfigSource identifies where a config value originated.
const (
	SourceDefault = "default"
	SourceEnv     = "env"
	SourceGlobal  = "global"
	SourceLocal   = "local"
	SourceFlag    = "flag"
)

// Defaults.
const (
	DefaultLogLevel  = "info"
	DefaultLogFormat = "text"
)

// NewDefault creates a CLIConfig with default values.
func NewDefault() *CLIConfig {
	return &CLIConfig{
		LogLevel:  DefaultLogLevel,
		LogFormat: DefaultLogFormat,
		Sources: map[string]string{
			"logLevel":  SourceDefault,
			"logFormat": SourceDefault,
		},
	}
}

var validLevels = map[string]bool{"debug": true, "info": true, "warn": true, "warning": true, "error": true}

// Validate checks that the logging settings are recognised. The logging
// parsers fall back silently, so typos are caught here instead.
func (c *CLIConfig) Validate() error {
	if c.LogLevel != "" && !validLevels[strings.ToLower(c.LogLevel)] {
		return fmt.Errorf("logLevel %q must be one of debug, info, warn, error", c.LogLevel)
	}
	if c.LogFormat != "" && logging.ParseFormat(c.LogFormat) == logging.FormatText &&
		!strings.EqualFold(c.LogFormat, string(logging.FormatText)) {
		return fmt.Errorf("logFormat %q must be text or json", c.LogFormat)
	}
	return nil
}

// Logging returns the logging config for c, writing to the default output.
func (c *CLIConfig) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.ParseLevel(c.LogLevel)
	cfg.Format = logging.ParseFormat(c.LogFormat)
	return cfg
}

// Source returns where key was set, or SourceDefault.
func (c *CLIConfig) Source(key string) string {
	if s, ok := c.Sources[key]; ok {
		return s
	}
	return SourceDefault
}

// set records that key came from src.
func (c *CLIConfig) set(key, src string) {
	if c.Sources == nil {
		c.Sources = make(map[string]string)
	}
	c.Sources[key] = src
}

// MergeConfig merges source into target. Only non-zero values are applied.
func MergeConfig(target, source *CLIConfig, sourceType string) {
	if source == nil {
		return
	}
	if source.PolicyFile != "" {
		target.PolicyFile = source.PolicyFile
		target.set("policy", sourceType)
	}
	if source.LogLevel != "" {
		target.LogLevel = source.LogLevel
		target.set("logLevel", sourceType)
	}
	if source.LogFormat != "" {
		target.LogFormat = source.LogFormat
		target.set("logFormat", sourceType)
	}
	if source.Seed != 0 {
		target.Seed = source.Seed
		target.set("seed", sourceType)
	}
}
