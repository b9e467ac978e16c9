package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

// Defaults mirror the wallet deployment the relay was built for.
const (
	DefaultBackendCommand  = "python"
	DefaultAuditFile       = "mcp_stdio.log"
	DefaultServerName      = "EVM Wallet MCP Server"
	DefaultServerVersion   = "1.0.0"
	DefaultProtocolVersion = "2024-11-05"
	DefaultShutdownGrace   = 10 * time.Second
	DefaultReadBufferSize  = 32 * 1024
)

// Environment variables that override file and default values.
const (
	EnvBackend = "WALLET_RELAY_BACKEND"
	EnvRoot    = "WALLET_RELAY_ROOT"
)

// DefaultBackendArgs launches the stdio adapter module of the wallet backend.
var DefaultBackendArgs = []string{"-m", "app.ai.mcp_stdio_adapter"}

// Duration is a time.Duration that decodes from strings such as "10s" in
// both YAML and JSON configuration files.
type Duration time.Duration

// UnmarshalText implements encoding.TextUnmarshaler.
func (d *Duration) UnmarshalText(text []byte) error {
	parsed, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("parse duration %q: %w", text, err)
	}

	*d = Duration(parsed)

	return nil
}

// MarshalText implements encoding.TextMarshaler.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete relay configuration.
type Config struct {
	// Root is the project root. Relative backend and audit paths are
	// resolved against it. Defaults to the current directory.
	Root string `yaml:"root" json:"root"`

	// Backend describes the child process the relay fronts.
	Backend Backend `yaml:"backend" json:"backend"`

	// Audit configures the traffic log.
	Audit Audit `yaml:"audit" json:"audit"`

	// Server is the identity reported in locally answered handshakes.
	Server Server `yaml:"server" json:"server"`

	// ReplyParseErrors makes the relay answer unparseable lines with a
	// JSON-RPC -32700 error instead of dropping them silently.
	ReplyParseErrors bool `yaml:"reply_parse_errors" json:"reply_parse_errors"`

	// ShutdownGrace is how long the backend may take to exit after a
	// forwarded termination signal before it is killed. Zero waits forever.
	ShutdownGrace Duration `yaml:"shutdown_grace" json:"shutdown_grace"`

	// ReadBufferSize is the chunk size used when reading stdin.
	ReadBufferSize int `yaml:"read_buffer_size" json:"read_buffer_size"`
}

// Backend describes how to launch the backend process.
type Backend struct {
	// Command is the executable, either a path or a name looked up in PATH.
	Command string `yaml:"command" json:"command"`

	// Args is the fixed argument vector passed to Command.
	Args []string `yaml:"args" json:"args"`

	// Dir is the working directory. Empty means Root.
	Dir string `yaml:"dir" json:"dir"`

	// Env holds extra KEY=VALUE pairs appended to the inherited environment.
	Env map[string]string `yaml:"env" json:"env"`
}

// Audit configures the audit log.
type Audit struct {
	// Path is the log file. Relative paths are resolved against Root.
	Path string `yaml:"path" json:"path"`
}

// Server is the identity advertised by the initialize response.
type Server struct {
	Name            string `yaml:"name" json:"name"`
	Version         string `yaml:"version" json:"version"`
	ProtocolVersion string `yaml:"protocol_version" json:"protocol_version"`
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Root: ".",
		Backend: Backend{
			Command: DefaultBackendCommand,
			Args:    append([]string(nil), DefaultBackendArgs...),
		},
		Audit: Audit{Path: DefaultAuditFile},
		Server: Server{
			Name:            DefaultServerName,
			Version:         DefaultServerVersion,
			ProtocolVersion: DefaultProtocolVersion,
		},
		ShutdownGrace:  Duration(DefaultShutdownGrace),
		ReadBufferSize: DefaultReadBufferSize,
	}
}

// ApplyEnv overlays values from the process environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		lookup = os.LookupEnv
	}

	if v, ok := lookup(EnvBackend); ok && strings.TrimSpace(v) != "" {
		c.Backend.Command = v
	}

	if v, ok := lookup(EnvRoot); ok && strings.TrimSpace(v) != "" {
		c.Root = v
	}
}

// Validate reports every invalid field at once.
func (c *Config) Validate() error {
	var problems []string

	if strings.TrimSpace(c.Backend.Command) == "" {
		problems = append(problems, "backend command is required")
	}

	if strings.TrimSpace(c.Audit.Path) == "" {
		problems = append(problems, "audit path is required")
	}

	if c.Server.Name == "" || c.Server.Version == "" {
		problems = append(problems, "server name and version are required")
	}

	if c.Server.ProtocolVersion == "" {
		problems = append(problems, "protocol version is required")
	}

	if c.ShutdownGrace < 0 {
		problems = append(problems, "shutdown grace must not be negative")
	}

	if c.ReadBufferSize <= 0 {
		problems = append(problems, "read buffer size must be positive")
	}

	if len(problems) > 0 {
		return &errors.ConfigError{Problems: problems}
	}

	return nil
}

// ResolvePath makes path absolute relative to Root.
func (c *Config) ResolvePath(path string) string {
	if filepath.IsAbs(path) {
		return path
	}

	root := c.Root
	if root == "" {
		root = "."
	}

	if abs, err := filepath.Abs(filepath.Join(root, path)); err == nil {
		return abs
	}

	return filepath.Join(root, path)
}

// BackendDir returns the resolved working directory of the backend.
func (c *Config) BackendDir() string {
	if c.Backend.Dir == "" {
		return c.ResolvePath(".")
	}

	return c.ResolvePath(c.Backend.Dir)
}

// AuditPath returns the resolved audit log path.
func (c *Config) AuditPath() string {
	return c.ResolvePath(c.Audit.Path)
}

// Environ returns the backend environment: the inherited environment
// followed by the configured extras in sorted key order.
func (b *Backend) Environ(base []string) []string {
	env := append([]string(nil), base...)

	keys := make([]string, 0, len(b.Env))
	for k := range b.Env {
		keys = append(keys, k)
	}

	slices.Sort(keys)

	for _, k := range keys {
		env = append(env, k+"="+b.Env[k])
	}

	return env
}
