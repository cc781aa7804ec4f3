package common

import (
	"errors"
	"fmt"
)

// ConfigError reports missing or invalid configuration. It is raised before
// any network call and aborts the run.
type ConfigError struct {
	Field  string
	Reason string
	Err    error
}

func (e *ConfigError) Error() string {
	msg := "config error"
	if e.Field != "" {
		msg += ": " + e.Field
	}
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConfigError) Unwrap() error { return e.Err }

// NewConfigError creates a ConfigError for a single field.
func NewConfigError(field, reason string) *ConfigError {
	return &ConfigError{Field: field, Reason: reason}
}

// FetchError is recorded against a single ticker when its market data could
// not be fetched or used. It never aborts the run.
type FetchError struct {
	Ticker   string
	Provider string
	Err      error
}

func (e *FetchError) Error() string {
	if e.Provider != "" {
		return fmt.Sprintf("fetch %s from %s: %v", e.Ticker, e.Provider, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.Ticker, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// MailError reports an SMTP connection, authentication or delivery failure.
type MailError struct {
	Op  string
	Err error
}

func (e *MailError) Error() string {
	return fmt.Sprintf("mail %s: %v", e.Op, e.Err)
}

func (e *MailError) Unwrap() error { return e.Err }

// Exit codes returned by the command.
const (
	ExitOK          = 0
	ExitFailure     = 1
	ExitConfigError = 2
	ExitMailError   = 3
)

// ExitCode maps an error returned by a run to the process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var cfgErr *ConfigError
	if errors.As(err, &cfgErr) {
		return ExitConfigError
	}
	var mailErr *MailError
	if errors.As(err, &mailErr) {
		return ExitMailError
	}
	return ExitFailure
}
