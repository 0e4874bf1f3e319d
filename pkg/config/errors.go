package config

import "github.com/pkg/errors"

// ErrNoRegistry is returned when a step is started without a counter registry.
var ErrNoRegistry = errors.New("counter registry is not available")

// ConfigurationError reports settings that cannot be used to start a step.
type ConfigurationError struct {
	Op  string
	Err error
}

func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Op + ": " + e.Err.Error()
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// NewConfigurationError wraps err. A nil err gives a nil error.
func NewConfigurationError(op string, err error) error {
	if err == nil {
		return nil
	}

	return &ConfigurationError{Op: op, Err: err}
}
