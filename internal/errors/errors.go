package errors

import (
	"errors"
	"fmt"
	"strings"
)

// RelayError is the base interface for all relay errors.
type RelayError interface {
	error
	IsRelayError() bool
}

// Compile-time verification that all error types implement RelayError.
var (
	_ RelayError = (*BackendNotFoundError)(nil)
	_ RelayError = (*BackendStartError)(nil)
	_ RelayError = (*ProcessError)(nil)
	_ RelayError = (*MessageParseError)(nil)
	_ RelayError = (*ConfigError)(nil)
)

// Sentinel errors for commonly checked conditions.
var (
	// ErrBackendNotStarted indicates the backend process has not been started.
	ErrBackendNotStarted = errors.New("backend not started")

	// ErrBackendInputClosed indicates the backend's stdin can no longer be written.
	ErrBackendInputClosed = errors.New("backend input closed")

	// ErrRelayClosed indicates the relay has already run and cannot be reused.
	ErrRelayClosed = errors.New("relay closed: relays are single-use, create a new one with New()")

	// ErrInvalidTransition indicates a lifecycle state change that the state machine forbids.
	ErrInvalidTransition = errors.New("invalid lifecycle transition")
)

// BackendNotFoundError indicates the backend executable could not be resolved.
type BackendNotFoundError struct {
	Command       string
	SearchedPaths []string
}

func (e *BackendNotFoundError) Error() string {
	return fmt.Sprintf("backend %q not found in: %v", e.Command, e.SearchedPaths)
}

// IsRelayError implements RelayError.
func (e *BackendNotFoundError) IsRelayError() bool { return true }

// BackendStartError indicates the backend process could not be spawned.
type BackendStartError struct {
	Err error
}

func (e *BackendStartError) Error() string {
	return fmt.Sprintf("failed to start backend: %v", e.Err)
}

func (e *BackendStartError) Unwrap() error {
	return e.Err
}

// IsRelayError implements RelayError.
func (e *BackendStartError) IsRelayError() bool { return true }

// ProcessError indicates the backend process exited unsuccessfully.
type ProcessError struct {
	ExitCode int
	Stderr   string
	Err      error
}

func (e *ProcessError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("backend process failed (exit %d): %v", e.ExitCode, e.Err)
	}

	return fmt.Sprintf("backend process failed (exit %d): %s", e.ExitCode, e.Stderr)
}

func (e *ProcessError) Unwrap() error {
	return e.Err
}

// IsRelayError implements RelayError.
func (e *ProcessError) IsRelayError() bool { return true }

// MessageParseError indicates a framed line was not valid JSON.
// The offending line is kept verbatim for the audit log.
type MessageParseError struct {
	Line []byte
	Err  error
}

func (e *MessageParseError) Error() string {
	return fmt.Sprintf("failed to parse message: %v", e.Err)
}

func (e *MessageParseError) Unwrap() error {
	return e.Err
}

// IsRelayError implements RelayError.
func (e *MessageParseError) IsRelayError() bool { return true }

// ConfigError reports one or more invalid configuration fields.
type ConfigError struct {
	Problems []string
	Err      error
}

func (e *ConfigError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("invalid configuration: %v", e.Err)
	}

	return "invalid configuration: " + strings.Join(e.Problems, "; ")
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}

// IsRelayError implements RelayError.
func (e *ConfigError) IsRelayError() bool { return true }
