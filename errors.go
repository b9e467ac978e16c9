package relay

import "github.com/wagiedev/evm-wallet-relay/internal/errors"

// Re-export error types from internal package

// BackendNotFoundError indicates the backend executable was not found.
type BackendNotFoundError = errors.BackendNotFoundError

// BackendStartError indicates the backend process could not be spawned.
type BackendStartError = errors.BackendStartError

// ProcessError indicates the backend process exited unsuccessfully.
type ProcessError = errors.ProcessError

// MessageParseError indicates an input line was not valid JSON.
type MessageParseError = errors.MessageParseError

// ConfigError indicates an invalid configuration.
type ConfigError = errors.ConfigError

// RelayError is the base interface for all relay errors.
type RelayError = errors.RelayError

// Re-export sentinel errors from internal package.
var (
	// ErrBackendNotStarted indicates the backend process has not been started.
	ErrBackendNotStarted = errors.ErrBackendNotStarted

	// ErrBackendInputClosed indicates the backend's stdin can no longer be written.
	ErrBackendInputClosed = errors.ErrBackendInputClosed

	// ErrRelayClosed indicates Run was called on a relay that already ran.
	ErrRelayClosed = errors.ErrRelayClosed

	// ErrInvalidTransition indicates a forbidden lifecycle state change.
	ErrInvalidTransition = errors.ErrInvalidTransition
)
