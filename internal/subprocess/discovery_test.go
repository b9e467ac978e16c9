package subprocess

import (
	"context"
	stderrors "errors"
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

func TestDiscoverer_PathLookup(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("Test requires a POSIX shell in PATH")
	}

	path, err := NewDiscoverer(nil).Discover(context.Background(), "sh", "")
	require.NoError(t, err)
	require.True(t, filepath.IsAbs(path))
}

func TestDiscoverer_RelativePathResolvedAgainstDir(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "bin"), 0o755))
	script := writeScript(t, filepath.Join(dir, "bin"), "backend", "exit 0")

	path, err := NewDiscoverer(nil).Discover(context.Background(), "./bin/backend", dir)
	require.NoError(t, err)
	require.Equal(t, script, path)
}

func TestDiscoverer_NotExecutable(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "backend.py")
	require.NoError(t, os.WriteFile(path, []byte("print('hi')\n"), 0o644))

	_, err := NewDiscoverer(nil).Discover(context.Background(), path, dir)
	require.Error(t, err)

	notFound, ok := stderrors.AsType[*errors.BackendNotFoundError](err)
	require.True(t, ok)
	require.Equal(t, []string{path}, notFound.SearchedPaths)
}

func TestDiscoverer_DirectoryIsNotExecutable(t *testing.T) {
	dir := t.TempDir()

	_, err := NewDiscoverer(nil).Discover(context.Background(), dir, "")
	require.IsType(t, &errors.BackendNotFoundError{}, err)
}

func TestDiscoverer_EmptyCommand(t *testing.T) {
	_, err := NewDiscoverer(nil).Discover(context.Background(), "", "")
	require.IsType(t, &errors.BackendNotFoundError{}, err)
}

func TestDiscoverer_CancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewDiscoverer(nil).Discover(ctx, "sh", "")
	require.ErrorIs(t, err, context.Canceled)
}
