// Package audit records relay traffic and lifecycle events.
//
// Each entry is one line of the form "[2006-01-02T15:04:05.000Z] text".
// Writes are best effort: failures are counted but never surfaced.
package audit
