package lifecycle

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

// State is a relay lifecycle phase.
type State int32

const (
	// StateStarting is the initial state, before the backend is spawned.
	StateStarting State = iota
	// StateRunning means the backend is up and traffic is flowing.
	StateRunning
	// StateStopping means a shutdown signal was forwarded or a fatal error occurred.
	StateStopping
	// StateStopped is terminal: the backend has exited and the exit code is known.
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateStarting:
		return "starting"
	case StateRunning:
		return "running"
	case StateStopping:
		return "stopping"
	case StateStopped:
		return "stopped"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// Auditor receives lifecycle events for the audit log.
type Auditor interface {
	Append(text string)
}

// Signaler is the process the coordinator stops.
type Signaler interface {
	Signal(sig os.Signal) error
	Kill() error
	// Done is closed once the process has exited.
	Done() <-chan struct{}
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithShutdownGrace sets how long the backend may take to exit after the
// first stop signal before it is killed. Zero waits indefinitely.
func WithShutdownGrace(d time.Duration) Option {
	return func(c *Coordinator) {
		c.grace = d
	}
}

// Coordinator tracks the relay lifecycle and forwards shutdown signals to
// the backend.
type Coordinator struct {
	log   *slog.Logger
	audit Auditor
	grace time.Duration

	mu       sync.Mutex
	state    State
	reason   string
	exitCode int
	stopping chan struct{}

	stopReq chan string
}

// New creates a coordinator in StateStarting.
func New(log *slog.Logger, audit Auditor, opts ...Option) *Coordinator {
	c := &Coordinator{
		log:      log.With("component", "lifecycle"),
		audit:    audit,
		stopping: make(chan struct{}),
		stopReq:  make(chan string, 1),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// State returns the current state.
func (c *Coordinator) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.state
}

// Reason returns why the relay began stopping, or "" while running.
func (c *Coordinator) Reason() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.reason
}

// ExitCode returns the code recorded by Stopped.
func (c *Coordinator) ExitCode() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.exitCode
}

// Stopping is closed when the relay leaves StateRunning for good.
func (c *Coordinator) Stopping() <-chan struct{} {
	return c.stopping
}

// MarkRunning moves STARTING to RUNNING once the backend has spawned.
func (c *Coordinator) MarkRunning() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state != StateStarting {
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, c.state, StateRunning)
	}

	c.transition(StateRunning, "")

	return nil
}

// BeginStop moves STARTING or RUNNING to STOPPING. Calling it again while
// already stopping is a no-op, so repeated signals are harmless.
func (c *Coordinator) BeginStop(reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateStopping:
		return nil
	case StateStopped:
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, c.state, StateStopping)
	}

	c.reason = reason
	c.transition(StateStopping, reason)
	close(c.stopping)

	return nil
}

// Stopped records the final exit code. It moves STOPPING to STOPPED, or
// STARTING to STOPPED when the backend never spawned. A running relay must
// pass through BeginStop first.
func (c *Coordinator) Stopped(code int) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch c.state {
	case StateStopping:
	case StateStarting:
		close(c.stopping)
	default:
		return fmt.Errorf("%w: %s -> %s", errors.ErrInvalidTransition, c.state, StateStopped)
	}

	c.exitCode = code
	c.transition(StateStopped, fmt.Sprintf("exit code %d", code))

	return nil
}

// RequestStop asks ForwardSignals to terminate the backend with SIGTERM,
// as if the relay itself had been signalled. Only the first request is
// kept.
func (c *Coordinator) RequestStop(reason string) {
	select {
	case c.stopReq <- reason:
	default:
	}
}

// ForwardSignals relays every signal received on signals to target until
// target exits or ctx is cancelled. The first signal, or the first
// RequestStop, moves the relay to STOPPING and starts the shutdown grace
// timer; when it fires the backend is killed.
func (c *Coordinator) ForwardSignals(ctx context.Context, target Signaler, signals <-chan os.Signal) {
	var (
		graceTimer *time.Timer
		graceC     <-chan time.Time
	)

	defer func() {
		if graceTimer != nil {
			graceTimer.Stop()
		}
	}()

	startGrace := func() {
		if graceTimer != nil || c.grace <= 0 {
			return
		}

		graceTimer = time.NewTimer(c.grace)
		graceC = graceTimer.C
	}

	for {
		select {
		case <-ctx.Done():
			return

		case <-target.Done():
			return

		case sig, ok := <-signals:
			if !ok {
				signals = nil

				continue
			}

			name := SignalName(sig)
			c.audit.Append(fmt.Sprintf("received %s, forwarding to backend", name))
			c.log.Info("Forwarding signal to backend", "signal", name)

			if err := c.BeginStop("received " + name); err != nil {
				c.log.Debug("Signal received after stop", "signal", name)
			}

			if err := target.Signal(sig); err != nil {
				c.log.Warn("Failed to forward signal", "signal", name, "error", err)
			}

			startGrace()

		case reason := <-c.stopReq:
			c.audit.Append("stopping backend: " + reason)
			c.log.Info("Stopping backend", "reason", reason)

			_ = c.BeginStop(reason)

			if err := target.Signal(syscall.SIGTERM); err != nil {
				c.log.Warn("Failed to terminate backend", "error", err)
			}

			startGrace()

		case <-graceC:
			graceC = nil

			c.audit.Append(fmt.Sprintf("backend did not exit within %s, killing", c.grace))
			c.log.Warn("Shutdown grace period expired, killing backend", "grace", c.grace)

			if err := target.Kill(); err != nil {
				c.log.Warn("Failed to kill backend", "error", err)
			}
		}
	}
}

// transition must be called with mu held.
func (c *Coordinator) transition(to State, detail string) {
	from := c.state
	c.state = to

	text := fmt.Sprintf("lifecycle %s -> %s", from, to)
	if detail != "" {
		text += " (" + detail + ")"
	}

	c.audit.Append(text)
	c.log.Debug("Lifecycle transition", "from", from.String(), "to", to.String(), "detail", detail)
}

// Notify subscribes to SIGINT and SIGTERM. The returned func unsubscribes.
func Notify() (<-chan os.Signal, func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	return ch, func() { signal.Stop(ch) }
}

// SignalName returns the conventional upper-case name for the shutdown
// signals and the runtime's description for anything else.
func SignalName(sig os.Signal) string {
	switch sig {
	case syscall.SIGINT:
		return "SIGINT"
	case syscall.SIGTERM:
		return "SIGTERM"
	default:
		return sig.String()
	}
}
