// Package config provides configuration types for the relay.
//
// Configuration starts from Default, which reproduces the wallet deployment
// (python backend, mcp_stdio.log audit file), and may be overlaid by a YAML
// or JSONC file, by environment variables, and finally by command-line flags.
package config
