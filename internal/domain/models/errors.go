package models

import (
	"errors"
	"fmt"
)

// ConfigurationError marks an invalid policy or threshold set. It is fatal at
// load time and never silently defaulted.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration: %s: %s", e.Field, e.Reason)
}

// ConfigErrorf builds a ConfigurationError for a field.
func ConfigErrorf(field, format string, a ...interface{}) *ConfigurationError {
	return &ConfigurationError{Field: field, Reason: fmt.Sprintf(format, a...)}
}

// DataUnavailableError marks a fetch failure for one symbol/timeframe. The
// affected timeframe is excluded from aggregation; siblings keep running.
type DataUnavailableError struct {
	Symbol string
	TF     string
	Err    error
}

func (e *DataUnavailableError) Error() string {
	return fmt.Sprintf("data unavailable: %s/%s: %v", e.Symbol, e.TF, e.Err)
}

func (e *DataUnavailableError) Unwrap() error { return e.Err }

// EmissionError marks a sink failure. The computed signal stays valid.
type EmissionError struct {
	Symbol string
	Err    error
}

func (e *EmissionError) Error() string {
	return fmt.Sprintf("emission: %s: %v", e.Symbol, e.Err)
}

func (e *EmissionError) Unwrap() error { return e.Err }

// ErrJobTimeout is surfaced to the queue when a job exceeds its allotted time.
var ErrJobTimeout = errors.New("job timed out")

// ErrDuplicateJob marks a dispatch collapsed by dedupe key. Soft: resolved by
// silent skip, never surfaced as a failure.
var ErrDuplicateJob = errors.New("duplicate job")
