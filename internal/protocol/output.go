package protocol

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"sync"
)

// Output is the caller-facing stream. It is shared by the local responder
// and the backend output relay, so every write holds one lock and a write
// is never interleaved with another.
type Output struct {
	mu sync.Mutex
	w  io.Writer
}

// NewOutput wraps w as an exclusive sink.
func NewOutput(w io.Writer) *Output {
	return &Output{w: w}
}

// Write writes p unchanged as a single uninterrupted write.
func (o *Output) Write(p []byte) (int, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	n, err := o.w.Write(p)
	if err != nil {
		return n, fmt.Errorf("write output: %w", err)
	}

	return n, nil
}

// WriteLine writes p followed by a newline, unless p already ends in one.
func (o *Output) WriteLine(p []byte) error {
	if len(p) == 0 || p[len(p)-1] != '\n' {
		line := make([]byte, len(p)+1)
		copy(line, p)
		line[len(p)] = '\n'
		p = line
	}

	_, err := o.Write(p)

	return err
}

// marshal encodes v without HTML escaping and without a trailing newline.
func marshal(v any) ([]byte, error) {
	var buf bytes.Buffer

	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)

	if err := enc.Encode(v); err != nil {
		return nil, err
	}

	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}
