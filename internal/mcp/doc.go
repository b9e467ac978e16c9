// Package mcp holds the static tool catalog and handshake payloads that the
// relay serves without involving the backend.
//
// The catalog is fixed for the lifetime of the process; there is no dynamic
// tool registration. Types come from the official MCP Go SDK so that the
// wire shapes of initialize and the tool schemas match what MCP clients expect.
package mcp
