package cliconfig

import (
	"os"
	"strconv"
)

// Environment variable names
const (
	EnvPolicy    = "CHAOSKIT_POLICY"
	EnvLogLevel  = "CHAOSKIT_LOG_LEVEL"
	EnvLogFormat = "CHAOSKIT_LOG_FORMAT"
	EnvSeed      = "CHAOSKIT_SEED"
)

// LoadEnvConfig applies environment variables to cfg. Unset variables and
// unparseable seeds are ignored.
func LoadEnvConfig(cfg *CLIConfig) {
	if v := os.Getenv(EnvPolicy); v != "" {
		cfg.PolicyFile = v
		cfg.set("policy", SourceEnv)
	}
	if v := os.Getenv(EnvLogLevel); v != "" {
		cfg.LogLevel = v
		cfg.set("logLevel", SourceEnv)
	}
	if v := os.Getenv(EnvLogFormat); v != "" {
		cfg.LogFormat = v
		cfg.set("logFormat", SourceEnv)
	}
	if v := os.Getenv(EnvSeed); v != "" {
		if seed, err := strconv.ParseUint(v, 10, 64); err == nil {
			cfg.Seed = seed
			cfg.set("seed", SourceEnv)
		}
	}
}
