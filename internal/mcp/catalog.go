package mcp

import (
	"encoding/json"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"
)

// ToolDescriptor is the wire form of one tool in a list-tools response.
//
// Parameters and InputSchema always carry the same schema: older clients
// read the former, MCP clients the latter.
type ToolDescriptor struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	Parameters  any    `json:"parameters"`
	InputSchema any    `json:"inputSchema"`
}

// Catalog answers the handshake methods on behalf of the backend.
// It is immutable after construction.
type Catalog struct {
	info            *mcp.Implementation
	protocolVersion string
	tools           []*mcp.Tool
}

// NewCatalog creates a catalog advertising the given identity and tools.
// Tools are reported in the order given.
func NewCatalog(name, version, protocolVersion string, tools ...*mcp.Tool) *Catalog {
	return &Catalog{
		info:            &mcp.Implementation{Name: name, Version: version},
		protocolVersion: protocolVersion,
		tools:           tools,
	}
}

// ServerInfo returns the advertised implementation identity.
func (c *Catalog) ServerInfo() *mcp.Implementation {
	return c.info
}

// ProtocolVersion returns the protocol version reported by initialize.
func (c *Catalog) ProtocolVersion() string {
	return c.protocolVersion
}

// InitializeResult builds the result of a locally answered initialize.
// Capabilities are deliberately empty.
func (c *Catalog) InitializeResult() *mcp.InitializeResult {
	return &mcp.InitializeResult{
		ProtocolVersion: c.protocolVersion,
		Capabilities:    &mcp.ServerCapabilities{},
		ServerInfo:      c.info,
	}
}

// Len returns the number of tools.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Descriptors returns the list-tools result.
func (c *Catalog) Descriptors() []ToolDescriptor {
	result := make([]ToolDescriptor, 0, len(c.tools))
	for _, t := range c.tools {
		result = append(result, ToolDescriptor{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  wireSchema(t.InputSchema),
			InputSchema: wireSchema(t.InputSchema),
		})
	}

	return result
}

// Tool returns the named tool, or nil.
func (c *Catalog) Tool(name string) *mcp.Tool {
	for _, t := range c.tools {
		if t.Name == name {
			return t
		}
	}

	return nil
}

// wireSchema wraps an object schema with no required properties so that it
// is sent with an explicit empty "required" list, which jsonschema.Schema
// omits.
func wireSchema(schema any) any {
	s, ok := schema.(*jsonschema.Schema)
	if !ok || s == nil || s.Type != "object" || len(s.Required) > 0 {
		return schema
	}

	return emptyRequiredSchema{schema: s}
}

type emptyRequiredSchema struct {
	schema *jsonschema.Schema
}

func (e emptyRequiredSchema) MarshalJSON() ([]byte, error) {
	data, err := json.Marshal(e.schema)
	if err != nil {
		return nil, err
	}

	// An object schema always marshals to a non-empty object.
	return append(data[:len(data)-1], `,"required":[]}`...), nil
}

// NewTool creates an mcp.Tool with the given parameters.
func NewTool(name, description string, inputSchema *jsonschema.Schema) *mcp.Tool {
	return &mcp.Tool{
		Name:        name,
		Description: description,
		InputSchema: inputSchema,
	}
}

// StringObjectSchema creates an object schema whose properties are all
// strings, in the given order, with the listed properties required.
func StringObjectSchema(properties []string, required ...string) *jsonschema.Schema {
	props := make(map[string]*jsonschema.Schema, len(properties))
	for _, name := range properties {
		props[name] = &jsonschema.Schema{Type: "string"}
	}

	return &jsonschema.Schema{
		Type:          "object",
		Properties:    props,
		PropertyOrder: append([]string(nil), properties...),
		Required:      required,
	}
}

// WalletTools returns the wallet tool set exposed by the backend.
// A fresh slice of fresh tools is returned on every call.
func WalletTools() []*mcp.Tool {
	return []*mcp.Tool{
		NewTool("get_wallet_balance", "查询钱包余额", StringObjectSchema(nil)),
		NewTool("get_transaction_history", "获取交易历史", StringObjectSchema(nil)),
		NewTool("import_token", "导入代币",
			StringObjectSchema([]string{"token_address", "token_symbol"}, "token_address")),
		NewTool("create_wallet", "创建新钱包", StringObjectSchema(nil)),
		NewTool("send_transaction", "发送交易",
			StringObjectSchema([]string{"to", "amount", "token"}, "to", "amount")),
	}
}
