// Package relay implements a stdio JSON-RPC relay in front of a backend
// process, originally the EVM Wallet MCP Server adapter.
//
// The relay reads newline-delimited JSON-RPC from its input. It answers
// the handshake methods initialize, mcp:list-tools and list-tools from a
// static catalog, and writes every other line verbatim to the backend's
// stdin. The backend's stdout is copied verbatim to the relay's output and
// its stderr goes only to the audit log. SIGINT and SIGTERM are forwarded
// to the backend, and the relay exits with the backend's exit code.
//
// # Basic Usage
//
//	r, err := relay.New(
//	    relay.WithLogger(slog.Default()),
//	    relay.WithRoot("/srv/wallet"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	code, err := r.Run(context.Background())
//	if err != nil {
//	    slog.Error("relay failed", "error", err)
//	}
//
//	os.Exit(code)
//
// # Configuration
//
// DefaultConfig launches "python -m app.ai.mcp_stdio_adapter" in the
// project root and appends the audit log to mcp_stdio.log there. LoadConfig
// reads overrides from YAML or JSON-with-comments files, and options such
// as WithBackend and WithShutdownGrace adjust individual fields.
//
// # Audit Log
//
// Every request, local response, backend output chunk, backend error
// output, parse error, signal and lifecycle change is appended to the
// audit log as one "[timestamp] text" line. Audit failures never interrupt
// relaying.
//
// # Error Handling
//
// Run returns typed errors that can be inspected with errors.As:
//
//	if _, ok := errors.AsType[*relay.BackendNotFoundError](err); ok {
//	    // backend executable is missing
//	}
//
//	if errors.Is(err, relay.ErrBackendInputClosed) {
//	    // the backend stopped accepting input
//	}
package relay
