package config

import (
	"errors"
	"fmt"
)

// ErrConfig marks configuration that prevents a run from starting.
var ErrConfig = errors.New("invalid configuration")

type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

func (e *ConfigError) Is(target error) bool {
	return target == ErrConfig || errors.Is(e.Err, target)
}

func invalid(field, format string, args ...any) *ConfigError {
	return &ConfigError{Field: field, Err: fmt.Errorf(format, args...)}
}
