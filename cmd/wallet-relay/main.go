// Command wallet-relay speaks MCP over stdio on behalf of the EVM wallet
// backend.
//
// Usage:
//
//	wallet-relay [flags] [-- backend-command [args...]]
//
// Without a backend command the relay launches
// "python -m app.ai.mcp_stdio_adapter" in the project root. Diagnostics go
// to stderr; stdout carries protocol traffic only.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	relay "github.com/wagiedev/evm-wallet-relay"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdin, os.Stdout, os.Stderr))
}

// run executes the command line and returns the process exit code.
func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	c := newRootCommandeer(stdin, stdout, stderr)
	c.cmd.SetArgs(args)

	if err := c.cmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(stderr, "wallet-relay: %v\n", err)

		if c.exitCode == 0 {
			return 1
		}
	}

	return c.exitCode
}

type rootCommandeer struct {
	cmd *cobra.Command

	configPath       string
	root             string
	logFile          string
	logLevel         string
	replyParseErrors bool
	shutdownGrace    time.Duration

	stdin  io.Reader
	stdout io.Writer
	stderr io.Writer

	exitCode int
}

func newRootCommandeer(stdin io.Reader, stdout, stderr io.Writer) *rootCommandeer {
	c := &rootCommandeer{
		stdin:  stdin,
		stdout: stdout,
		stderr: stderr,
	}

	cmd := &cobra.Command{
		Use:   "wallet-relay [flags] [-- backend-command [args...]]",
		Short: "Relay MCP stdio traffic to the EVM wallet backend",
		Long: "wallet-relay answers the MCP handshake (initialize, list-tools) itself and\n" +
			"passes every other JSON-RPC line to the wallet backend process unchanged.",
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          c.run,
	}

	// Help text must never reach the protocol stream.
	cmd.SetOut(stderr)
	cmd.SetErr(stderr)

	c.addFlags(cmd.Flags())
	c.cmd = cmd

	return c
}

func (c *rootCommandeer) addFlags(fs *pflag.FlagSet) {
	defaults := relay.DefaultConfig()

	fs.StringVarP(&c.configPath, "config", "c", "", "Configuration file (.yaml, .yml, .json or .jsonc)")
	fs.StringVar(&c.root, "root", defaults.Root, "Project root; the backend runs here and relative paths resolve against it")
	fs.StringVar(&c.logFile, "log-file", defaults.Audit.Path, "Audit log file, relative to the project root")
	fs.StringVar(&c.logLevel, "log-level", "warn", "Diagnostic log level (debug, info, warn, error)")
	fs.BoolVar(&c.replyParseErrors, "reply-parse-errors", false, "Answer unparseable lines with a JSON-RPC -32700 error")
	fs.DurationVar(&c.shutdownGrace, "shutdown-grace", time.Duration(defaults.ShutdownGrace),
		"How long the backend may take to exit after a forwarded signal before it is killed (0 waits forever)")

	// Everything after the first positional argument belongs to the backend.
	fs.SetInterspersed(false)
}

func (c *rootCommandeer) run(cmd *cobra.Command, args []string) error {
	logger, err := newLogger(c.stderr, c.logLevel)
	if err != nil {
		return err
	}

	cfg, err := c.resolveConfig(cmd.Flags(), args, os.LookupEnv)
	if err != nil {
		return err
	}

	if f, ok := c.stdin.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		logger.Warn("stdin is a terminal; wallet-relay expects JSON-RPC from an MCP client")
	}

	r, err := relay.New(
		relay.WithLogger(logger),
		relay.WithConfig(cfg),
		relay.WithStdin(c.stdin),
		relay.WithStdout(c.stdout),
	)
	if err != nil {
		return err
	}

	code, err := r.Run(cmd.Context())
	c.exitCode = code

	if err != nil {
		return fmt.Errorf("relay: %w", err)
	}

	return nil
}

// resolveConfig layers the configuration: defaults, then the config file,
// then the environment, then explicitly set flags, then the backend argv.
func (c *rootCommandeer) resolveConfig(
	fs *pflag.FlagSet,
	args []string,
	lookup func(string) (string, bool),
) (*relay.Config, error) {
	cfg := relay.DefaultConfig()

	if c.configPath != "" {
		loaded, err := relay.LoadConfig(c.configPath)
		if err != nil {
			return nil, err
		}

		cfg = loaded
	}

	cfg.ApplyEnv(lookup)

	if fs.Changed("root") {
		cfg.Root = c.root
	}

	if fs.Changed("log-file") {
		cfg.Audit.Path = c.logFile
	}

	if fs.Changed("reply-parse-errors") {
		cfg.ReplyParseErrors = c.replyParseErrors
	}

	if fs.Changed("shutdown-grace") {
		cfg.ShutdownGrace = relay.Duration(c.shutdownGrace)
	}

	if len(args) > 0 {
		cfg.Backend.Command = args[0]
		cfg.Backend.Args = append([]string(nil), args[1:]...)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// newLogger builds the diagnostic logger. It writes text records to w,
// which is stderr in production.
func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
