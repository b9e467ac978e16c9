// Package protocol classifies framed JSON-RPC lines and answers the
// handshake methods locally.
//
// The Dispatcher handles:
//   - initialize, answered from the tool catalog
//   - list-tools and mcp:list-tools, answered with the static tool list
//   - everything else, forwarded to the backend byte-for-byte
//   - unparseable lines, audited and dropped
//
// Responses written locally echo the caller's id exactly, including its
// JSON type. All writes to the caller go through a single Output.
//
// Example usage:
//
//	out := protocol.NewOutput(os.Stdout)
//	d := protocol.NewDispatcher(log, out, backend, auditLog, catalog)
//
//	if err := d.Handle(ctx, line); err != nil {
//	    // the backend can no longer accept input
//	}
package protocol
