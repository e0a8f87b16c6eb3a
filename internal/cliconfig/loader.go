package cliconfig

import (
	"errors"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// GlobalConfigDir is the directory for global config under os.UserConfigDir.
const GlobalConfigDir = "chaoskit"

// LocalConfigFileNames are searched in the current directory, in order.
var LocalConfigFileNames = []string{".chaoskitrc.yaml", ".chaoskitrc.yml"}

// GlobalConfigFileNames are searched in the global config dir, in order.
var GlobalConfigFileNames = []string{"config.yaml", "config.yml"}

// ConfigError is a config file that could not be decoded.
type ConfigError struct {
	Path    string
	Message string
}

func (e *ConfigError) Error() string {
	return e.Path + ": " + e.Message
}

// FindLocalConfig returns the first local config file in dir, or "".
func FindLocalConfig(dir string) string {
	return findFirst(dir, LocalConfigFileNames)
}

// FindGlobalConfig returns the global config file path, or "" when there is
// none.
func FindGlobalConfig() string {
	configDir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return findFirst(filepath.Join(configDir, GlobalConfigDir), GlobalConfigFileNames)
}

func findFirst(dir string, names []string) string {
	for _, name := range names {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// LoadConfigFile loads a CLIConfig from a YAML file.
func LoadConfigFile(path string) (*CLIConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg CLIConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, &ConfigError{Path: path, Message: err.Error()}
	}
	cfg.Sources = make(map[string]string)
	return &cfg, nil
}

// LoadAll loads configuration from every source and merges it.
// Precedence: env > local config > global config > defaults. Flags are
// applied by the caller afterwards.
func LoadAll() (*CLIConfig, error) {
	cfg := NewDefault()

	var errs []error
	if path := FindGlobalConfig(); path != "" {
		global, err := LoadConfigFile(path)
		if err != nil {
			errs = append(errs, err)
		}
		MergeConfig(cfg, global, SourceGlobal)
	}

	if cwd, err := os.Getwd(); err == nil {
		if path := FindLocalConfig(cwd); path != "" {
			local, err := LoadConfigFile(path)
			if err != nil {
				errs = append(errs, err)
			}
			MergeConfig(cfg, local, SourceLocal)
		}
	}

	LoadEnvConfig(cfg)
	return cfg, errors.Join(errs...)
}
