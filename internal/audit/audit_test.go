package audit

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) {
	return 0, errors.New("no space left on device")
}

func fixedClock() time.Time {
	return time.Date(2025, 3, 14, 9, 26, 53, 589_000_000, time.UTC)
}

func TestAppend_Format(t *testing.T) {
	var buf bytes.Buffer

	l := NewWriter(&buf, WithClock(fixedClock))
	l.Append("received request: {\"id\":1}\n")
	l.Appendf("backend exited with code %d", 3)

	require.Equal(t,
		"[2025-03-14T09:26:53.589Z] received request: {\"id\":1}\n"+
			"[2025-03-14T09:26:53.589Z] backend exited with code 3\n",
		buf.String(),
	)
	require.Zero(t, l.Dropped())
}

func TestAppend_SwallowsWriteErrors(t *testing.T) {
	l := NewWriter(failingWriter{})

	require.NotPanics(t, func() {
		l.Append("one")
		l.Append("two")
	})
	require.Equal(t, int64(2), l.Dropped())
}

func TestNilLoggerIsSafe(t *testing.T) {
	var l *Logger

	require.NotPanics(t, func() {
		l.Append("ignored")
		require.Zero(t, l.Dropped())
		require.NoError(t, l.Close())
	})
}

func TestOpen_AppendsAcrossRuns(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "mcp_stdio.log")

	first := Open(path, WithClock(fixedClock))
	first.Append("first run")
	require.NoError(t, first.Close())

	second := Open(path, WithClock(fixedClock))
	second.Append("second run")
	require.NoError(t, second.Close())

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	require.Len(t, lines, 2)
	require.True(t, strings.HasSuffix(lines[0], "first run"))
	require.True(t, strings.HasSuffix(lines[1], "second run"))
	require.NotEqual(t, first.Session(), second.Session())
}

func TestOpen_UnwritablePathDiscards(t *testing.T) {
	dir := t.TempDir()
	blocker := filepath.Join(dir, "file")
	require.NoError(t, os.WriteFile(blocker, nil, 0o600))

	// A regular file cannot be used as a parent directory.
	l := Open(filepath.Join(blocker, "mcp_stdio.log"))
	require.NotNil(t, l)
	require.Equal(t, int64(1), l.Dropped())

	require.NotPanics(t, func() { l.Append("lost") })
	require.NoError(t, l.Close())
}

func TestAppend_ConcurrentLinesStayWhole(t *testing.T) {
	var buf bytes.Buffer

	l := NewWriter(&buf)

	var wg sync.WaitGroup

	for i := range 8 {
		wg.Go(func() {
			for range 50 {
				l.Append(strings.Repeat(string(rune('a'+i)), 64))
			}
		})
	}

	wg.Wait()

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 400)

	for _, line := range lines {
		body := line[strings.Index(line, "] ")+2:]
		require.Len(t, body, 64)
		require.Equal(t, strings.Repeat(body[:1], 64), body)
	}
}
