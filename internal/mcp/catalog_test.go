package mcp

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
)

func walletCatalog() *Catalog {
	return NewCatalog("EVM Wallet MCP Server", "1.0.0", "2024-11-05", WalletTools()...)
}

func TestCatalogInitializeResult(t *testing.T) {
	data, err := json.Marshal(walletCatalog().InitializeResult())
	require.NoError(t, err)

	require.JSONEq(t, `{
		"protocolVersion": "2024-11-05",
		"capabilities": {},
		"serverInfo": {"name": "EVM Wallet MCP Server", "version": "1.0.0"}
	}`, string(data))
}

func TestCatalogDescriptors(t *testing.T) {
	catalog := walletCatalog()
	descriptors := catalog.Descriptors()

	require.Len(t, descriptors, 5)
	require.Equal(t, catalog.Len(), len(descriptors))

	names := make([]string, 0, len(descriptors))
	for _, d := range descriptors {
		names = append(names, d.Name)
		require.NotEmpty(t, d.Description)

		params, err := json.Marshal(d.Parameters)
		require.NoError(t, err)

		input, err := json.Marshal(d.InputSchema)
		require.NoError(t, err)

		require.JSONEq(t, string(params), string(input), "tool %s", d.Name)
	}

	require.Equal(t, []string{
		"get_wallet_balance",
		"get_transaction_history",
		"import_token",
		"create_wallet",
		"send_transaction",
	}, names)
}

func TestCatalogSchemas(t *testing.T) {
	catalog := walletCatalog()

	data, err := json.Marshal(catalog.Tool("send_transaction").InputSchema)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "object",
		"properties": {
			"to": {"type": "string"},
			"amount": {"type": "string"},
			"token": {"type": "string"}
		},
		"required": ["to", "amount"]
	}`, string(data))

	data, err = json.Marshal(catalog.Tool("create_wallet").InputSchema)
	require.NoError(t, err)
	require.JSONEq(t, `{"type": "object", "properties": {}}`, string(data))

	require.Nil(t, catalog.Tool("transfer_everything"))
}

func TestDescriptorsKeepEmptyRequiredList(t *testing.T) {
	descriptors := walletCatalog().Descriptors()

	data, err := json.Marshal(descriptors[3])
	require.NoError(t, err)
	require.JSONEq(t, `{
		"name": "create_wallet",
		"description": "创建新钱包",
		"parameters": {"type": "object", "properties": {}, "required": []},
		"inputSchema": {"type": "object", "properties": {}, "required": []}
	}`, string(data))

	data, err = json.Marshal(descriptors[2].InputSchema)
	require.NoError(t, err)
	require.JSONEq(t, `{
		"type": "object",
		"properties": {
			"token_address": {"type": "string"},
			"token_symbol": {"type": "string"}
		},
		"required": ["token_address"]
	}`, string(data))
}

func TestWalletToolDescriptions(t *testing.T) {
	descriptions := make(map[string]string)
	for _, tool := range WalletTools() {
		descriptions[tool.Name] = tool.Description
	}

	require.Equal(t, map[string]string{
		"get_wallet_balance":      "查询钱包余额",
		"get_transaction_history": "获取交易历史",
		"import_token":            "导入代币",
		"create_wallet":           "创建新钱包",
		"send_transaction":        "发送交易",
	}, descriptions)
}

func TestDescriptorWireShape(t *testing.T) {
	data, err := json.Marshal(walletCatalog().Descriptors()[2])
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	require.ElementsMatch(t, []string{"name", "description", "parameters", "inputSchema"}, keys(decoded))
	require.Equal(t, decoded["parameters"], decoded["inputSchema"])
}

func TestWalletToolsAreFresh(t *testing.T) {
	first := WalletTools()
	first[0].Name = "mutated"

	require.Equal(t, "get_wallet_balance", WalletTools()[0].Name)
}

func keys(m map[string]any) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}

	return out
}
