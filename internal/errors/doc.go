// Package errors defines error types for the relay.
//
// This package provides structured error types for the failure scenarios of
// the relay: resolving and spawning the backend, backend exits, malformed
// input lines, and configuration problems. All error types support
// error unwrapping and can be checked using errors.Is, errors.As, and errors.AsType.
package errors
