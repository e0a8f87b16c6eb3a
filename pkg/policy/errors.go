package policy

import (
	"errors"
	"fmt"
)

// ConfigurationError reports a malformed policy document. Path locates the
// offending value, e.g. "errors.PUT.rate".
type ConfigurationError struct {
	Path   string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	msg := e.Reason
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Path == "" {
		return "chaos config: " + msg
	}
	return fmt.Sprintf("chaos config: %s: %s", e.Path, msg)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a *ConfigurationError.
func IsConfigurationError(err error) bool {
	var ce *ConfigurationError
	return errors.As(err, &ce)
}

func configErr(path, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Path: path, Reason: fmt.Sprintf(format, args...)}
}

func wrapConfigErr(path string, err error) *ConfigurationError {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return ce
	}
	return &ConfigurationError{Path: path, Err: err}
}

func joinPath(parts ...string) string {
	out := ""
	for _, p := range parts {
		if p == "" {
			continue
		}
		if out != "" {
			out += "."
		}
		out += p
	}
	return out
}
