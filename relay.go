package relay

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/wagiedev/evm-wallet-relay/internal/audit"
	"github.com/wagiedev/evm-wallet-relay/internal/config"
	"github.com/wagiedev/evm-wallet-relay/internal/framer"
	"github.com/wagiedev/evm-wallet-relay/internal/lifecycle"
	"github.com/wagiedev/evm-wallet-relay/internal/mcp"
	"github.com/wagiedev/evm-wallet-relay/internal/protocol"
	"github.com/wagiedev/evm-wallet-relay/internal/subprocess"
)

// spawnFailureExitCode is returned when the backend never started.
const spawnFailureExitCode = 1

// Relay fronts a backend process over stdio. It answers the handshake
// methods itself and passes all other traffic through unchanged.
//
// A Relay runs once; create a new one with New for every run.
type Relay struct {
	log     *slog.Logger
	opts    *Options
	catalog *mcp.Catalog

	used       atomic.Bool
	coord      atomic.Pointer[lifecycle.Coordinator]
	dispatcher atomic.Pointer[protocol.Dispatcher]
}

// New validates the options and creates a relay. Nothing is spawned until
// Run.
func New(opts ...Option) (*Relay, error) {
	options := applyOptions(opts)

	if options.Logger == nil {
		options.Logger = NopLogger()
	}

	if options.Stdin == nil {
		options.Stdin = os.Stdin
	}

	if options.Stdout == nil {
		options.Stdout = os.Stdout
	}

	if err := options.Config.Validate(); err != nil {
		return nil, err
	}

	tools := options.Tools
	if tools == nil {
		tools = mcp.WalletTools()
	}

	server := options.Config.Server

	return &Relay{
		log:     options.Logger.With("component", "relay"),
		opts:    options,
		catalog: mcp.NewCatalog(server.Name, server.Version, server.ProtocolVersion, tools...),
	}, nil
}

// State returns the relay's lifecycle state.
func (r *Relay) State() State {
	coord := r.coord.Load()
	if coord == nil {
		return StateStarting
	}

	return coord.State()
}

// Stats returns counters for the lines handled so far.
func (r *Relay) Stats() Stats {
	d := r.dispatcher.Load()
	if d == nil {
		return Stats{}
	}

	return d.Stats()
}

// Run spawns the backend and relays traffic until the backend exits. It
// returns the exit code the relay process should use: the backend's own
// code, 128 plus the signal number when the backend was killed by a
// signal, or 1 when the backend could not be started.
//
// The error is nil when the backend simply exited, whatever its status.
// It is non-nil for relay failures: the backend could not be started,
// input could not be forwarded, or output could not be written.
//
// Cancelling ctx stops the backend the same way SIGTERM does.
//
// Run returns as soon as the backend has exited. A Read on Stdin that is
// still blocked at that point is abandoned: whatever it returns later is
// discarded and never answered or forwarded.
func (r *Relay) Run(ctx context.Context) (int, error) {
	if !r.used.CompareAndSwap(false, true) {
		return spawnFailureExitCode, ErrRelayClosed
	}

	cfg := r.opts.Config

	auditLog := r.openAudit(cfg)
	defer func() { _ = auditLog.Close() }()

	coord := lifecycle.New(r.log, auditLog,
		lifecycle.WithShutdownGrace(time.Duration(cfg.ShutdownGrace)))
	r.coord.Store(coord)

	auditLog.Appendf("relay session %s started pid=%d", auditLog.Session(), os.Getpid())
	auditLog.Appendf("starting %s %s with backend: %s",
		cfg.Server.Name, cfg.Server.Version, commandLine(&cfg.Backend))

	backend := subprocess.NewBackend(r.log, &cfg.Backend, cfg.BackendDir())
	if err := backend.Start(ctx); err != nil {
		r.log.Error("Failed to start backend", "error", err)
		auditLog.Appendf("failed to start backend: %v", err)
		_ = coord.Stopped(spawnFailureExitCode)

		return spawnFailureExitCode, err
	}

	_ = coord.MarkRunning()

	auditLog.Appendf("backend started pid=%d", backend.Pid())

	signals := r.opts.Signals
	if signals == nil {
		ch, stop := lifecycle.Notify()
		defer stop()

		signals = ch
	}

	out := protocol.NewOutput(r.opts.Stdout)
	dispatcher := protocol.NewDispatcher(r.log, out, backend, auditLog, r.catalog,
		protocol.WithParseErrorReplies(cfg.ReplyParseErrors))
	r.dispatcher.Store(dispatcher)

	var fatal firstError

	// Input stops being dispatched once the backend has exited.
	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	gate := &inputGate{}

	go r.readInput(readCtx, gate, dispatcher, backend, coord, auditLog, &fatal)

	// The pipe readers must finish before the backend is reaped.
	var pipes errgroup.Group

	pipes.Go(func() error {
		err := backend.RelayOutput(out, func(chunk []byte) {
			auditLog.Append("backend output: " + string(chunk))
		})
		if err != nil {
			r.log.Error("Failed to relay backend output", "error", err)
			auditLog.Appendf("output failed: %v", err)
			coord.RequestStop("output failed")
		}

		return err
	})

	pipes.Go(func() error {
		return backend.DrainErrors(func(chunk []byte) {
			auditLog.Append("backend error: " + string(chunk))
		})
	})

	var watchers sync.WaitGroup

	watchers.Go(func() {
		coord.ForwardSignals(context.WithoutCancel(ctx), backend, signals)
	})

	watchers.Go(func() {
		select {
		case <-ctx.Done():
			coord.RequestStop("context cancelled")
		case <-backend.Done():
		}
	})

	if err := pipes.Wait(); err != nil {
		fatal.set(err)
	}

	code, waitErr := backend.Wait()
	if waitErr != nil && code < 0 {
		r.log.Error("Failed to wait for backend", "error", waitErr)
		fatal.set(waitErr)

		code = spawnFailureExitCode
	}

	cancelRead()
	gate.close()
	watchers.Wait()

	auditLog.Appendf("backend exited with code %d", code)
	_ = coord.BeginStop("backend exited")
	_ = coord.Stopped(code)

	stats := dispatcher.Stats()
	r.log.Info("Relay stopped",
		"exit_code", code,
		"received", stats.Received,
		"answered", stats.Answered,
		"forwarded", stats.Forwarded,
		"dropped", stats.Dropped,
	)

	if dropped := auditLog.Dropped(); dropped > 0 {
		r.log.Warn("Some audit entries could not be written", "dropped", dropped)
	}

	return code, fatal.get()
}

// readInput frames the caller's input and dispatches every line. At EOF it
// closes the backend's input; on a fatal error it stops the backend.
func (r *Relay) readInput(
	ctx context.Context,
	gate *inputGate,
	dispatcher *protocol.Dispatcher,
	backend *subprocess.Backend,
	coord *lifecycle.Coordinator,
	auditLog *audit.Logger,
	fatal *firstError,
) {
	rest, err := framer.ReadLines(ctx, r.opts.Stdin, r.opts.Config.ReadBufferSize,
		func(line []byte) error {
			return gate.dispatch(ctx, func() error {
				return dispatcher.Handle(ctx, line)
			})
		})

	if len(rest) > 0 {
		auditLog.Append("discarded unterminated input: " + string(rest))
	}

	switch {
	case ctx.Err() != nil:
		r.log.Debug("Input reader stopped", "error", ctx.Err())

	case err != nil:
		r.log.Error("Fatal input error", "error", err)
		auditLog.Appendf("fatal: %v", err)
		fatal.set(err)
		coord.RequestStop(err.Error())

	default:
		r.log.Debug("Input closed, closing backend input")
		auditLog.Append("input closed, closing backend input")

		if err := backend.CloseInput(); err != nil {
			r.log.Warn("Failed to close backend input", "error", err)
		}
	}
}

// openAudit opens the audit log. It never fails; an unusable file only
// produces a warning.
func (r *Relay) openAudit(cfg *config.Config) *audit.Logger {
	if r.opts.AuditWriter != nil {
		return audit.NewWriter(r.opts.AuditWriter)
	}

	path := cfg.AuditPath()

	l := audit.Open(path)
	if l.Dropped() > 0 {
		r.log.Warn("Audit log unavailable, continuing without it", "path", path)
	}

	return l
}

// inputGate lets Run wait out a line that is being dispatched and refuse
// every line after it.
type inputGate struct {
	mu     sync.Mutex
	closed bool
}

func (g *inputGate) dispatch(ctx context.Context, fn func() error) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.closed {
		return context.Canceled
	}

	if err := ctx.Err(); err != nil {
		return err
	}

	return fn()
}

func (g *inputGate) close() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.closed = true
}

// firstError keeps the first error it is given.
type firstError struct {
	mu  sync.Mutex
	err error
}

func (e *firstError) set(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.err == nil {
		e.err = err
	}
}

func (e *firstError) get() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.err
}

func commandLine(b *config.Backend) string {
	if len(b.Args) == 0 {
		return b.Command
	}

	return fmt.Sprintf("%s %s", b.Command, strings.Join(b.Args, " "))
}
