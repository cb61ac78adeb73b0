package provider

import (
	"errors"
	"fmt"
)

var (
	// ErrModelNotSupported is returned for model names outside the known families.
	ErrModelNotSupported = errors.New("Model not supported")

	// ErrAPIKeyMissing is returned when the resolved family has no API key.
	ErrAPIKeyMissing = errors.New("API key not passed")
)

// ConfigError is a fatal, pre-call configuration error for one model name.
type ConfigError struct {
	Model string
	// Suggestion is a close known model id, if any.
	Suggestion string
	Err        error
}

func (e *ConfigError) Error() string {
	msg := fmt.Sprintf("%s: %s", e.Err, e.Model)
	if e.Suggestion != "" {
		msg += fmt.Sprintf(" (did you mean %q?)", e.Suggestion)
	}
	return msg
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsConfigError reports whether err is a provider configuration error.
func IsConfigError(err error) bool {
	var cfgErr *ConfigError
	return errors.As(err, &cfgErr)
}
