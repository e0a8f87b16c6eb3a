package cliconfig

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/getmockd/chaoskit/pkg/logging"
)

func TestNewDefault(t *testing.T) {
	cfg := NewDefault()
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Equal(t, DefaultLogFormat, cfg.LogFormat)
	assert.Empty(t, cfg.PolicyFile)
	assert.Equal(t, SourceDefault, cfg.Source("logLevel"))
	assert.Equal(t, SourceDefault, cfg.Source("seed"))
	assert.NoError(t, cfg.Validate())
}

func TestCLIConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     CLIConfig
		wantErr string
	}{
		{"valid", CLIConfig{LogLevel: "debug", LogFormat: "json"}, ""},
		{"bad level", CLIConfig{LogLevel: "loud", LogFormat: "text"}, "logLevel"},
		{"bad format", CLIConfig{LogLevel: "info", LogFormat: "xml"}, "logFormat"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoadEnvConfig(t *testing.T) {
	t.Setenv(EnvPolicy, "/etc/chaos.yaml")
	t.Setenv(EnvLogLevel, "debug")
	t.Setenv(EnvLogFormat, "json")
	t.Setenv(EnvSeed, "42")

	cfg := NewDefault()
	LoadEnvConfig(cfg)

	assert.Equal(t, "/etc/chaos.yaml", cfg.PolicyFile)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, uint64(42), cfg.Seed)
	for _, key := range []string{"policy", "logLevel", "logFormat", "seed"} {
		assert.Equal(t, SourceEnv, cfg.Source(key), key)
	}
}

func TestLoadEnvConfig_IgnoresBadSeed(t *testing.T) {
	t.Setenv(EnvSeed, "not-a-number")
	cfg := NewDefault()
	LoadEnvConfig(cfg)
	assert.Zero(t, cfg.Seed)
	assert.Equal(t, SourceDefault, cfg.Source("seed"))
}

func TestLoadConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".chaoskitrc.yaml")
	require.NoError(t, os.WriteFile(path, []byte("policy: chaos.yaml\nlogLevel: warn\nseed: 7\n"), 0o600))

	assert.Equal(t, path, FindLocalConfig(dir))

	cfg, err := LoadConfigFile(path)
	require.NoError(t, err)
	assert.Equal(t, "chaos.yaml", cfg.PolicyFile)
	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Empty(t, cfg.LogFormat)
	assert.Equal(t, uint64(7), cfg.Seed)
}

func TestLoadConfigFile_Invalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("seed: [1, 2\n"), 0o600))

	_, err := LoadConfigFile(path)
	var ce *ConfigError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, path, ce.Path)
}

func TestFindLocalConfig_None(t *testing.T) {
	assert.Empty(t, FindLocalConfig(t.TempDir()))
}

func TestMergeConfig(t *testing.T) {
	target := NewDefault()
	MergeConfig(target, &CLIConfig{LogFormat: "json", Seed: 9}, SourceLocal)

	assert.Equal(t, DefaultLogLevel, target.LogLevel)
	assert.Equal(t, SourceDefault, target.Source("logLevel"))
	assert.Equal(t, "json", target.LogFormat)
	assert.Equal(t, SourceLocal, target.Source("logFormat"))
	assert.Equal(t, uint64(9), target.Seed)

	MergeConfig(target, nil, SourceGlobal)
	assert.Equal(t, "json", target.LogFormat)
}

func TestLoadAll_EnvWinsOverLocal(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".chaoskitrc.yaml"), []byte("logLevel: warn\nlogFormat: json\n"), 0o600))
	t.Chdir(dir)
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("HOME", t.TempDir())
	t.Setenv(EnvLogLevel, "error")

	cfg, err := LoadAll()
	require.NoError(t, err)
	assert.Equal(t, "error", cfg.LogLevel)
	assert.Equal(t, SourceEnv, cfg.Source("logLevel"))
	assert.Equal(t, "json", cfg.LogFormat)
	assert.Equal(t, SourceLocal, cfg.Source("logFormat"))
}

func TestCLIConfig_Logging(t *testing.T) {
	cfg := &CLIConfig{LogLevel: "DEBUG", LogFormat: "json"}
	lc := cfg.Logging()
	assert.Equal(t, logging.LevelDebug, lc.Level)
	assert.Equal(t, logging.FormatJSON, lc.Format)
}
