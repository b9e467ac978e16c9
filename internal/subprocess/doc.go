// Package subprocess supervises the backend process behind the relay.
//
// The backend is spawned with three independent pipes. Lines forwarded by
// the relay are written to its stdin; its stdout is copied byte-for-byte to
// the caller-facing stream; its stderr is drained into the audit log only.
// The package also resolves the backend executable and maps the backend's
// exit status to the relay's own exit code.
package subprocess
