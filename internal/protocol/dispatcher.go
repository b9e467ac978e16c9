package protocol

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"fmt"
	"log/slog"
	"sync/atomic"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
	"github.com/wagiedev/evm-wallet-relay/internal/mcp"
)

// Forwarder delivers a line to the backend's input.
//
// This interface is satisfied by subprocess.Backend but allows for testing
// with in-memory backends.
type Forwarder interface {
	Forward(ctx context.Context, line []byte) error
}

// Auditor records one audit entry. Implementations must not fail.
type Auditor interface {
	Append(text string)
}

// Stats counts what the dispatcher did with the lines it was given.
type Stats struct {
	Received  int64
	Answered  int64
	Forwarded int64
	Dropped   int64
}

// Dispatcher classifies framed lines, answers handshake methods from the
// catalog, and forwards everything else to the backend.
//
// Handle is called from a single goroutine in input order. A local response
// is fully written before Handle returns, so responses keep input order.
type Dispatcher struct {
	log              *slog.Logger
	out              *Output
	backend          Forwarder
	audit            Auditor
	catalog          *mcp.Catalog
	replyParseErrors bool

	received  atomic.Int64
	answered  atomic.Int64
	forwarded atomic.Int64
	dropped   atomic.Int64
}

// DispatcherOption configures a Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithParseErrorReplies makes the dispatcher answer unparseable lines with a
// JSON-RPC parse error whose id is null, instead of dropping them silently.
func WithParseErrorReplies(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.replyParseErrors = enabled
	}
}

// NewDispatcher creates a dispatcher writing local responses to out.
func NewDispatcher(
	log *slog.Logger,
	out *Output,
	backend Forwarder,
	auditor Auditor,
	catalog *mcp.Catalog,
	opts ...DispatcherOption,
) *Dispatcher {
	d := &Dispatcher{
		log:     log.With("component", "dispatcher"),
		out:     out,
		backend: backend,
		audit:   auditor,
		catalog: catalog,
	}

	for _, opt := range opts {
		opt(d)
	}

	return d
}

// Handle processes one framed line.
//
// Parse failures are audited and dropped and do not return an error. Write
// failures on the caller-facing stream and forwarding failures are returned;
// the latter wrap errors.ErrBackendInputClosed and are fatal to the relay.
func (d *Dispatcher) Handle(ctx context.Context, line []byte) error {
	kind, msg, err := Classify(line)
	if err != nil {
		d.dropped.Add(1)
		d.handleParseError(line, err)

		return d.replyParseError()
	}

	if kind == KindBlank {
		return nil
	}

	d.received.Add(1)
	d.audit.Append("received request: " + string(line))

	switch kind {
	case KindInitialize:
		return d.respond(msg, d.catalog.InitializeResult(),
			fmt.Sprintf("answered %s locally", msg.Method))

	case KindListTools:
		return d.respond(msg, d.catalog.Descriptors(),
			fmt.Sprintf("answered %s locally with %d tools", msg.Method, d.catalog.Len()))

	default:
		return d.forward(ctx, line, msg)
	}
}

// Stats returns a snapshot of the counters.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Received:  d.received.Load(),
		Answered:  d.answered.Load(),
		Forwarded: d.forwarded.Load(),
		Dropped:   d.dropped.Load(),
	}
}

func (d *Dispatcher) handleParseError(line []byte, err error) {
	cause := err
	if parseErr, ok := stderrors.AsType[*errors.MessageParseError](err); ok {
		cause = parseErr.Err
	}

	d.log.Debug("Dropping unparseable line", "error", cause, "line_len", len(line))
	d.audit.Append(fmt.Sprintf("parse error: %v, input: %s", cause, line))
}

func (d *Dispatcher) replyParseError() error {
	if !d.replyParseErrors {
		return nil
	}

	data, err := marshal(&Response{
		JSONRPC: Version,
		Error: &jsonrpc.Error{
			Code:    jsonrpc.CodeParseError,
			Message: "Parse error",
		},
	})
	if err != nil {
		return fmt.Errorf("encode parse error response: %w", err)
	}

	if err := d.out.WriteLine(data); err != nil {
		return err
	}

	d.audit.Append("sent parse error response: " + string(data))

	return nil
}

func (d *Dispatcher) respond(msg *Message, result any, event string) error {
	payload, err := marshal(result)
	if err != nil {
		return fmt.Errorf("encode %s result: %w", msg.Method, err)
	}

	id := msg.ID
	if id == nil {
		id = json.RawMessage("null")
	}

	data, err := marshal(&Response{
		JSONRPC: Version,
		ID:      id,
		Result:  payload,
	})
	if err != nil {
		return fmt.Errorf("encode %s response: %w", msg.Method, err)
	}

	if err := d.out.WriteLine(data); err != nil {
		return err
	}

	d.answered.Add(1)
	d.log.Debug("Answered handshake locally", "method", msg.Method, "id", string(id))
	d.audit.Append(event)

	return nil
}

func (d *Dispatcher) forward(ctx context.Context, line []byte, msg *Message) error {
	if err := d.backend.Forward(ctx, line); err != nil {
		d.log.Error("Failed to forward request to backend", "method", msg.Method, "error", err)
		d.audit.Append(fmt.Sprintf("forward failed: %v", err))

		return fmt.Errorf("forward request: %w", err)
	}

	d.forwarded.Add(1)
	d.log.Debug("Forwarded request to backend", "method", msg.Method, "line_len", len(line))

	return nil
}
