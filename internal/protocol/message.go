package protocol

import (
	"bytes"
	"encoding/json"
	stderrors "errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

// Version is the only JSON-RPC version the relay emits.
const Version = "2.0"

// Handshake methods answered locally.
const (
	MethodInitialize   = "initialize"
	MethodListTools    = "list-tools"
	MethodMCPListTools = "mcp:list-tools"
)

// Kind tells the dispatcher what to do with a framed line.
type Kind int

const (
	// KindBlank is an empty or whitespace-only line. It is ignored.
	KindBlank Kind = iota
	// KindInitialize is an initialize request answered locally.
	KindInitialize
	// KindListTools is a list-tools request answered locally.
	KindListTools
	// KindForward is everything else: passed to the backend verbatim.
	KindForward
)

func (k Kind) String() string {
	switch k {
	case KindBlank:
		return "blank"
	case KindInitialize:
		return "initialize"
	case KindListTools:
		return "list-tools"
	case KindForward:
		return "forward"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Message is one parsed JSON-RPC request, notification or response.
//
// ID keeps the raw JSON of the id member so that it can be echoed with its
// original type and spelling; it is nil when the member is absent.
type Message struct {
	JSONRPC string
	ID      json.RawMessage
	Method  string
	Params  json.RawMessage
	Result  json.RawMessage
	Error   json.RawMessage
}

// HasID reports whether the message carried an id member (possibly null).
func (m *Message) HasID() bool {
	return m.ID != nil
}

// Response is a JSON-RPC response written by the relay itself.
type Response struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      json.RawMessage `json:"id"`
	Result  json.RawMessage `json:"result,omitempty"`
	Error   *jsonrpc.Error  `json:"error,omitempty"`
}

// Parse decodes one framed line.
//
// Any valid JSON value parses. Members of an object that have an
// unexpected type (a numeric method, say) are treated as absent rather
// than as a parse failure, so such messages are forwarded untouched.
// Non-object values, including batch arrays, yield an empty Message.
func Parse(line []byte) (*Message, error) {
	if !json.Valid(line) {
		var probe any

		err := json.Unmarshal(line, &probe)
		if err == nil {
			err = stderrors.New("invalid JSON")
		}

		return nil, &errors.MessageParseError{Line: line, Err: err}
	}

	msg := &Message{}

	trimmed := bytes.TrimSpace(line)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return msg, nil
	}

	var members map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &members); err != nil {
		return nil, &errors.MessageParseError{Line: line, Err: err}
	}

	_ = json.Unmarshal(members["jsonrpc"], &msg.JSONRPC)
	_ = json.Unmarshal(members["method"], &msg.Method)

	if id, ok := members["id"]; ok {
		msg.ID = id
		if msg.ID == nil {
			msg.ID = json.RawMessage("null")
		}
	}

	msg.Params = members["params"]
	msg.Result = members["result"]
	msg.Error = members["error"]

	return msg, nil
}

// Classify parses a framed line and decides how it is handled.
// Blank lines return KindBlank with a nil message and no error.
func Classify(line []byte) (Kind, *Message, error) {
	if len(bytes.TrimSpace(line)) == 0 {
		return KindBlank, nil, nil
	}

	msg, err := Parse(line)
	if err != nil {
		return KindForward, nil, err
	}

	switch msg.Method {
	case MethodInitialize:
		return KindInitialize, msg, nil
	case MethodListTools, MethodMCPListTools:
		return KindListTools, msg, nil
	default:
		return KindForward, msg, nil
	}
}
