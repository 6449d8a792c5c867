package config

import (
	"errors"
	"fmt"
	"time"
)

// ErrUsage matches every error caused by bad command-line input.
var ErrUsage = errors.New("usage error")

// UsageError is a command-line input error. It matches ErrUsage.
type UsageError struct {
	Err error
}

func (e *UsageError) Error() string { return e.Err.Error() }

func (e *UsageError) Unwrap() error { return e.Err }

func (e *UsageError) Is(target error) bool { return target == ErrUsage }

// Usage wraps err as a UsageError.
func Usage(err error) error {
	if err == nil {
		return nil
	}
	return &UsageError{Err: err}
}

// Usagef formats a UsageError.
func Usagef(format string, args ...any) error {
	return &UsageError{Err: fmt.Errorf(format, args...)}
}

// Overrides carries command-line values that take precedence over the
// config file. Nil fields were not given.
type Overrides struct {
	TimeoutSeconds *int
	Retries        *int
	BatchSize      *int
	Rate           *float64
	Output         *string
	StoragePath    *string
	Interactive    *bool
}

// Apply validates the overrides and writes them into cfg.
func (o Overrides) Apply(cfg *Config) error {
	if o.TimeoutSeconds != nil {
		if *o.TimeoutSeconds < 1 {
			return Usagef("Timeout must be a positive integer")
		}
		cfg.Probe.Timeout = Duration{time.Duration(*o.TimeoutSeconds) * time.Second}
	}
	if o.Retries != nil {
		if *o.Retries < 1 {
			return Usagef("Retries must be a positive integer")
		}
		cfg.Probe.Attempts = *o.Retries
	}
	if o.BatchSize != nil {
		if *o.BatchSize < 1 {
			return Usagef("Batch size must be greater than 0")
		}
		cfg.Probe.BatchSize = *o.BatchSize
	}
	if o.Rate != nil {
		if *o.Rate < 0 {
			return Usagef("Rate must not be negative")
		}
		cfg.Probe.Rate = *o.Rate
	}
	if o.Output != nil {
		if *o.Output == "" {
			return Usagef("Output path must not be empty")
		}
		cfg.Report.Output = *o.Output
	}
	if o.StoragePath != nil {
		cfg.Storage.Path = *o.StoragePath
	}
	if o.Interactive != nil {
		cfg.Report.Interactive = *o.Interactive
	}
	return nil
}
