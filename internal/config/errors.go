package config

import "fmt"

// ConfigurationError reports an invalid scenario. It is raised before a run
// starts; nothing is simulated with a configuration that failed validation.
type ConfigurationError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigurationError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("config: %s: %s: %v", e.Field, e.Reason, e.Err)
	}
	return fmt.Sprintf("config: %s: %s", e.Field, e.Reason)
}

func (e *ConfigurationError) Unwrap() error { return e.Err }

func invalid(field, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// Wrap reports err as a configuration problem with field.
func Wrap(field string, err error) error {
	if err == nil {
		return nil
	}
	return &ConfigurationError{Field: field, Reason: "invalid", Err: err}
}
