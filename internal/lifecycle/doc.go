// Package lifecycle implements the relay's state machine and shutdown
// signal handling.
//
// A relay moves STARTING -> RUNNING -> STOPPING -> STOPPED. STARTING may go
// straight to STOPPED when the backend cannot be spawned, and nothing ever
// leaves STOPPED. SIGINT and SIGTERM are forwarded to the backend rather
// than acted on directly; the relay exits only once the backend has.
package lifecycle
