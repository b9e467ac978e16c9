package framer

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"io"
)

// DefaultReadSize is the chunk size used by ReadLines when none is given.
const DefaultReadSize = 32 * 1024

// Framer splits a byte stream into newline-terminated lines.
//
// Bytes after the last newline are held in the pending buffer until a later
// chunk terminates them. A Framer is not safe for concurrent use; it belongs
// to the goroutine that reads the input stream.
type Framer struct {
	pending []byte
}

// New creates an empty Framer.
func New() *Framer {
	return &Framer{}
}

// Push appends chunk to the pending buffer and returns every line completed
// by it, in the order they were delimited. The newline is not included.
// Returned slices are copies and remain valid after later calls.
func (f *Framer) Push(chunk []byte) [][]byte {
	if len(chunk) == 0 {
		return nil
	}

	f.pending = append(f.pending, chunk...)

	var lines [][]byte

	for {
		idx := bytes.IndexByte(f.pending, '\n')
		if idx < 0 {
			break
		}

		line := make([]byte, idx)
		copy(line, f.pending[:idx])
		lines = append(lines, line)

		f.pending = f.pending[idx+1:]
	}

	// Reclaim the consumed prefix once everything has been delimited.
	if len(f.pending) == 0 {
		f.pending = nil
	}

	return lines
}

// Pending returns the number of buffered bytes not yet terminated by a newline.
func (f *Framer) Pending() int {
	return len(f.pending)
}

// Flush returns and clears the unterminated remainder.
func (f *Framer) Flush() []byte {
	rest := f.pending
	f.pending = nil

	return rest
}

// ReadLines reads r in chunks of up to size bytes, frames them, and calls fn
// for every complete line in order. The next chunk is not framed until fn has
// returned for all lines of the previous one.
//
// ReadLines returns nil at EOF, the error returned by fn, a wrapped read
// error, or ctx.Err() when the context is cancelled between chunks. The
// unterminated remainder at EOF is returned in rest.
func ReadLines(
	ctx context.Context,
	r io.Reader,
	size int,
	fn func(line []byte) error,
) (rest []byte, err error) {
	if size <= 0 {
		size = DefaultReadSize
	}

	f := New()
	buf := make([]byte, size)

	for {
		if err := ctx.Err(); err != nil {
			return f.Flush(), err
		}

		n, readErr := r.Read(buf)

		for _, line := range f.Push(buf[:n]) {
			if err := fn(line); err != nil {
				return f.Flush(), err
			}
		}

		if readErr != nil {
			if stderrors.Is(readErr, io.EOF) {
				return f.Flush(), nil
			}

			return f.Flush(), fmt.Errorf("read input: %w", readErr)
		}
	}
}
