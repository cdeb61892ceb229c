package sync

import (
	"errors"
	"fmt"
)

// ErrHandlerNotRegistered is wrapped by ConfigurationError when a handler is missing
var ErrHandlerNotRegistered = errors.New("handler not registered")

// ConfigurationError means a schedule cannot run as configured. It is never
// retried and nothing is written for it.
type ConfigurationError struct {
	ScheduleID int64
	Service    string
	Operation  Operation
	Model      string
	Err        error
}

func (e *ConfigurationError) Error() string {
	prefix := ""
	if e.ScheduleID != 0 {
		prefix = fmt.Sprintf("schedule %d: ", e.ScheduleID)
	}
	if e.Operation != "" {
		return fmt.Sprintf("%sno %s handler for service %q and model %q: %v",
			prefix, e.Operation, e.Service, e.Model, e.Err)
	}
	return fmt.Sprintf("%sservice %q, model %q: %v", prefix, e.Service, e.Model, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}

// ProviderError is a failure raised while a schedule ran against its provider.
type ProviderError struct {
	ScheduleID int64
	Schedule   string
	Operation  Operation
	Err        error
}

func (e *ProviderError) Error() string {
	if e.Operation == "" {
		return e.Err.Error()
	}
	return fmt.Sprintf("failed to %s data: %v", e.Operation, e.Err)
}

func (e *ProviderError) Unwrap() error {
	return e.Err
}

// IsConfigurationError reports whether err is or wraps a ConfigurationError
func IsConfigurationError(err error) bool {
	var cerr *ConfigurationError
	return errors.As(err, &cerr)
}
