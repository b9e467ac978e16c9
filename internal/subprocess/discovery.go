package subprocess

import (
	"context"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

// Discoverer locates the backend executable.
type Discoverer interface {
	// Discover resolves command to an absolute executable path.
	// Relative paths containing a separator are resolved against dir;
	// bare names are looked up in PATH.
	Discover(ctx context.Context, command, dir string) (string, error)
}

// discoverer implements the Discoverer interface.
type discoverer struct {
	log *slog.Logger
}

// Compile-time verification that discoverer implements Discoverer.
var _ Discoverer = (*discoverer)(nil)

// NewDiscoverer creates a backend discoverer. A nil logger silences it.
func NewDiscoverer(log *slog.Logger) Discoverer {
	if log == nil {
		log = slog.New(slog.DiscardHandler)
	}

	return &discoverer{log: log}
}

// Discover locates the backend executable.
func (d *discoverer) Discover(ctx context.Context, command, dir string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	if command == "" {
		return "", &errors.BackendNotFoundError{Command: command}
	}

	if strings.ContainsRune(command, os.PathSeparator) || strings.ContainsRune(command, '/') {
		path := command
		if !filepath.IsAbs(path) {
			path = filepath.Join(dir, path)
		}

		d.log.Debug("Using explicit backend path", "path", path)

		if isExecutable(path) {
			return path, nil
		}

		d.log.Warn("Explicit backend path is not an executable file", "path", path)

		return "", &errors.BackendNotFoundError{Command: command, SearchedPaths: []string{path}}
	}

	d.log.Debug("Searching for backend in PATH", "command", command)

	path, err := exec.LookPath(command)
	if err != nil {
		d.log.Warn("Backend not found in PATH", "command", command, "error", err)

		return "", &errors.BackendNotFoundError{Command: command, SearchedPaths: []string{"$PATH"}}
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}

	d.log.Debug("Found backend in PATH", "path", path)

	return path, nil
}

// isExecutable reports whether path is a regular file with an execute bit.
func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false
	}

	return info.Mode().Perm()&0o111 != 0
}
