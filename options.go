package relay

import (
	"io"
	"log/slog"
	"maps"
	"os"
	"time"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/wagiedev/evm-wallet-relay/internal/config"
)

// Option configures a Relay using the functional options pattern.
type Option func(*Options)

// Options holds everything a Relay needs. Fields left zero are filled in
// by New.
type Options struct {
	// Logger receives diagnostics. Defaults to NopLogger.
	Logger *slog.Logger

	// Config is the relay configuration. Defaults to DefaultConfig.
	Config *Config

	// Stdin is the caller-facing input stream. Defaults to os.Stdin.
	Stdin io.Reader

	// Stdout is the caller-facing output stream. Defaults to os.Stdout.
	Stdout io.Writer

	// AuditWriter replaces the audit file named by Config.Audit.Path.
	AuditWriter io.Writer

	// Signals delivers shutdown signals. When nil, Run subscribes to
	// SIGINT and SIGTERM itself.
	Signals <-chan os.Signal

	// Tools is the catalog answered for list-tools. Defaults to the wallet tools.
	Tools []*sdkmcp.Tool
}

// applyOptions applies functional options over the defaults.
func applyOptions(opts []Option) *Options {
	options := &Options{Config: config.Default()}
	for _, opt := range opts {
		opt(options)
	}

	return options
}

// ===== Basic Configuration =====

// WithLogger sets the logger for diagnostic output.
// If not set, logging is disabled (silent operation).
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.Logger = logger
	}
}

// WithConfig replaces the whole configuration, including anything set by
// earlier options. The value is copied.
func WithConfig(cfg *Config) Option {
	return func(o *Options) {
		if cfg == nil {
			return
		}

		c := *cfg
		c.Backend.Args = append([]string(nil), cfg.Backend.Args...)
		c.Backend.Env = maps.Clone(cfg.Backend.Env)
		o.Config = &c
	}
}

// WithRoot sets the project root that relative backend and audit paths
// are resolved against.
func WithRoot(dir string) Option {
	return func(o *Options) {
		o.Config.Root = dir
	}
}

// WithBackend sets the backend command line.
func WithBackend(command string, args ...string) Option {
	return func(o *Options) {
		o.Config.Backend.Command = command
		o.Config.Backend.Args = append([]string(nil), args...)
	}
}

// WithBackendEnv adds an environment variable for the backend.
func WithBackendEnv(key, value string) Option {
	return func(o *Options) {
		if o.Config.Backend.Env == nil {
			o.Config.Backend.Env = make(map[string]string)
		}

		o.Config.Backend.Env[key] = value
	}
}

// WithAuditPath sets the audit log file.
func WithAuditPath(path string) Option {
	return func(o *Options) {
		o.Config.Audit.Path = path
	}
}

// WithShutdownGrace sets how long the backend may take to exit after a
// forwarded signal before it is killed. Zero waits indefinitely.
func WithShutdownGrace(d time.Duration) Option {
	return func(o *Options) {
		o.Config.ShutdownGrace = config.Duration(d)
	}
}

// WithParseErrorReplies makes the relay answer unparseable lines with a
// JSON-RPC parse error instead of dropping them.
func WithParseErrorReplies(enabled bool) Option {
	return func(o *Options) {
		o.Config.ReplyParseErrors = enabled
	}
}

// ===== Streams =====

// WithStdin sets the caller-facing input stream.
func WithStdin(r io.Reader) Option {
	return func(o *Options) {
		o.Stdin = r
	}
}

// WithStdout sets the caller-facing output stream.
func WithStdout(w io.Writer) Option {
	return func(o *Options) {
		o.Stdout = w
	}
}

// WithAuditWriter sends the audit log to w instead of the configured file.
func WithAuditWriter(w io.Writer) Option {
	return func(o *Options) {
		o.AuditWriter = w
	}
}

// WithSignals supplies the shutdown signal channel. Tests pass their own
// channel to drive shutdown without touching the process's signal state.
func WithSignals(signals <-chan os.Signal) Option {
	return func(o *Options) {
		o.Signals = signals
	}
}

// ===== Catalog =====

// WithTools replaces the tool catalog answered locally for list-tools.
func WithTools(tools ...*sdkmcp.Tool) Option {
	return func(o *Options) {
		o.Tools = tools
	}
}
