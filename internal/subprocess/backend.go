package subprocess

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"os/exec"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/wagiedev/evm-wallet-relay/internal/config"
	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

const (
	// readChunkSize is the buffer size for reading backend stdout and stderr.
	readChunkSize = 32 * 1024
	// maxStderrTail is how much trailing stderr is kept for ProcessError.
	// Draining continues indefinitely; only the retained tail is capped.
	maxStderrTail = 64 * 1024
	// signalExitBase is added to the signal number when the backend was
	// killed by a signal, following the shell convention.
	signalExitBase = 128
)

// Backend owns the backend child process and its three pipes.
type Backend struct {
	log  *slog.Logger
	cfg  *config.Backend
	dir  string
	path string

	cmd    *exec.Cmd
	proc   atomic.Pointer[os.Process]
	stdin  io.WriteCloser
	stdout io.ReadCloser
	stderr io.ReadCloser

	mu          sync.Mutex // Protects stdin writes; never held while signalling
	stdinClosed bool       // Whether stdin was closed or failed

	tailMu     sync.Mutex
	stderrTail []byte

	waitOnce sync.Once
	done     chan struct{}
	exitCode int
	waitErr  error
}

// NewBackend creates a supervisor for the backend described by cfg, run in
// the working directory dir. Nothing is spawned until Start.
func NewBackend(log *slog.Logger, cfg *config.Backend, dir string) *Backend {
	return &Backend{
		log:  log.With("component", "backend"),
		cfg:  cfg,
		dir:  dir,
		done: make(chan struct{}),
	}
}

// Start resolves the backend executable and spawns it with stdin, stdout
// and stderr connected to pipes.
//
// Returns BackendNotFoundError if the executable cannot be located, or
// BackendStartError if the pipes cannot be created or the process fails
// to start.
func (b *Backend) Start(ctx context.Context) error {
	b.log.Info("Starting backend process", "command", b.cfg.Command, "dir", b.dir)

	path, err := NewDiscoverer(b.log).Discover(ctx, b.cfg.Command, b.dir)
	if err != nil {
		return fmt.Errorf("discover backend: %w", err)
	}

	b.path = path

	//nolint:gosec // G204: the backend command line comes from relay configuration
	cmd := exec.Command(b.path, b.cfg.Args...)
	cmd.Dir = b.dir
	cmd.Env = b.cfg.Environ(os.Environ())

	stdin, err := cmd.StdinPipe()
	if err != nil {
		b.log.Error("Failed to create stdin pipe", "error", err)

		return &errors.BackendStartError{Err: fmt.Errorf("stdin pipe: %w", err)}
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		b.log.Error("Failed to create stdout pipe", "error", err)

		return &errors.BackendStartError{Err: fmt.Errorf("stdout pipe: %w", err)}
	}

	stderr, err := cmd.StderrPipe()
	if err != nil {
		b.log.Error("Failed to create stderr pipe", "error", err)

		return &errors.BackendStartError{Err: fmt.Errorf("stderr pipe: %w", err)}
	}

	if err := cmd.Start(); err != nil {
		b.log.Error("Failed to start backend process", "error", err)

		return &errors.BackendStartError{Err: fmt.Errorf("start process: %w", err)}
	}

	b.mu.Lock()
	b.cmd = cmd
	b.stdin = stdin
	b.stdout = stdout
	b.stderr = stderr
	b.mu.Unlock()

	b.proc.Store(cmd.Process)

	b.log.Info("Backend process started", "pid", cmd.Process.Pid, "path", b.path)

	return nil
}

// Forward writes line and a terminating newline to the backend's stdin.
//
// The write is synchronous: a slow backend slows the caller down. Once a
// write has failed, or CloseInput has been called, every later call
// returns an error wrapping ErrBackendInputClosed.
func (b *Backend) Forward(ctx context.Context, line []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stdin == nil {
		return errors.ErrBackendNotStarted
	}

	if b.stdinClosed {
		return errors.ErrBackendInputClosed
	}

	// Use an explicit copy to avoid mutating the caller's backing array.
	data := make([]byte, len(line)+1)
	copy(data, line)
	data[len(line)] = '\n'

	if _, err := b.stdin.Write(data); err != nil {
		b.stdinClosed = true
		b.log.Error("Failed to write to backend stdin", "error", err)

		return fmt.Errorf("%w: %w", errors.ErrBackendInputClosed, err)
	}

	return nil
}

// RelayOutput copies every chunk read from the backend's stdout to w,
// unmodified and as a single write, and passes a copy to tee when it is
// not nil. It returns nil when the backend closes stdout, or the error
// that prevented writing to w.
func (b *Backend) RelayOutput(w io.Writer, tee func(chunk []byte)) error {
	if b.stdout == nil {
		return errors.ErrBackendNotStarted
	}

	defer b.log.Debug("Backend stdout relay stopped")

	return pump(b.stdout, func(chunk []byte) error {
		if _, err := w.Write(chunk); err != nil {
			return fmt.Errorf("relay backend output: %w", err)
		}

		if tee != nil {
			tee(chunk)
		}

		return nil
	})
}

// DrainErrors reads the backend's stderr until it is closed and passes
// every chunk to sink. Stderr never reaches the caller-facing stream.
// The most recent output is retained for ProcessError.
func (b *Backend) DrainErrors(sink func(chunk []byte)) error {
	if b.stderr == nil {
		return errors.ErrBackendNotStarted
	}

	defer b.log.Debug("Backend stderr drain stopped")

	return pump(b.stderr, func(chunk []byte) error {
		b.keepTail(chunk)

		if sink != nil {
			sink(chunk)
		}

		return nil
	})
}

// Wait blocks until the backend exits and returns its exit code.
//
// Per os/exec, Wait must only be called once RelayOutput and DrainErrors
// have returned (or were never started). It is safe to call Wait from
// several goroutines; all receive the same result.
//
// A non-zero exit is reported as a ProcessError. A backend killed by a
// signal reports 128 plus the signal number. If waiting itself fails the
// code is -1.
func (b *Backend) Wait() (int, error) {
	b.waitOnce.Do(func() {
		defer close(b.done)

		if b.cmd == nil {
			b.exitCode, b.waitErr = -1, errors.ErrBackendNotStarted

			return
		}

		err := b.cmd.Wait()
		if err == nil {
			b.log.Info("Backend process exited successfully")

			return
		}

		exitErr, ok := stderrors.AsType[*exec.ExitError](err)
		if !ok {
			b.log.Error("Waiting for backend failed", "error", err)
			b.exitCode, b.waitErr = -1, fmt.Errorf("wait for backend: %w", err)

			return
		}

		b.exitCode = exitCode(exitErr)
		b.waitErr = &errors.ProcessError{
			ExitCode: b.exitCode,
			Stderr:   b.StderrTail(),
			Err:      err,
		}

		b.log.Warn("Backend process exited with error", "exit_code", b.exitCode)
	})

	return b.exitCode, b.waitErr
}

// Done is closed once Wait has observed the backend's exit.
func (b *Backend) Done() <-chan struct{} {
	return b.done
}

// Signal sends sig to the backend. Signalling a backend that has already
// exited is not an error.
func (b *Backend) Signal(sig os.Signal) error {
	proc := b.proc.Load()
	if proc == nil {
		return errors.ErrBackendNotStarted
	}

	return signalProcess(proc, sig)
}

// Kill forcefully terminates the backend.
func (b *Backend) Kill() error {
	return b.Signal(os.Kill)
}

// Pid returns the backend's process id, or 0 before Start.
func (b *Backend) Pid() int {
	proc := b.proc.Load()
	if proc == nil {
		return 0
	}

	return proc.Pid
}

// Path returns the resolved executable path.
func (b *Backend) Path() string {
	return b.path
}

// CloseInput closes the backend's stdin so that it observes end of input.
// It is safe to call more than once.
func (b *Backend) CloseInput() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.stdin == nil || b.stdinClosed {
		b.stdinClosed = true

		return nil
	}

	b.log.Debug("Closing backend stdin")
	b.stdinClosed = true

	return b.stdin.Close()
}

// StderrTail returns the most recent stderr output.
func (b *Backend) StderrTail() string {
	b.tailMu.Lock()
	defer b.tailMu.Unlock()

	return string(b.stderrTail)
}

func (b *Backend) keepTail(chunk []byte) {
	b.tailMu.Lock()
	defer b.tailMu.Unlock()

	b.stderrTail = append(b.stderrTail, chunk...)
	if over := len(b.stderrTail) - maxStderrTail; over > 0 {
		b.stderrTail = append(b.stderrTail[:0], b.stderrTail[over:]...)
	}
}

// pump reads r until EOF and hands each chunk to fn. Reads from a pipe
// closed by process exit are treated as EOF.
func pump(r io.Reader, fn func(chunk []byte) error) error {
	buf := make([]byte, readChunkSize)

	for {
		n, err := r.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])

			if fnErr := fn(chunk); fnErr != nil {
				return fnErr
			}
		}

		if err != nil {
			if stderrors.Is(err, io.EOF) || stderrors.Is(err, fs.ErrClosed) {
				return nil
			}

			return fmt.Errorf("read backend pipe: %w", err)
		}
	}
}

// signalProcess sends sig to a process, returning nil if the process
// has already exited (os.ErrProcessDone).
func signalProcess(proc *os.Process, sig os.Signal) error {
	err := proc.Signal(sig)
	if stderrors.Is(err, os.ErrProcessDone) {
		return nil
	}

	return err
}

// exitCode maps an exit error to a process exit status, using 128+signal
// for signal deaths.
func exitCode(exitErr *exec.ExitError) int {
	if status, ok := exitErr.Sys().(syscall.WaitStatus); ok && status.Signaled() {
		return signalExitBase + int(status.Signal())
	}

	return exitErr.ExitCode()
}
