//go:build integration

package integration

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	relay "github.com/wagiedev/evm-wallet-relay"
)

// stubAdapter stands in for app.ai.mcp_stdio_adapter. It answers tools/call
// with a canned wallet balance, echoes notifications to stderr and exits
// cleanly at EOF or on SIGTERM.
const stubAdapter = `import json
import signal
import sys

signal.signal(signal.SIGTERM, lambda *_: sys.exit(0))
print("stub adapter ready", file=sys.stderr, flush=True)

for line in sys.stdin:
    msg = json.loads(line)
    if "id" not in msg:
        print("notification: " + msg.get("method", ""), file=sys.stderr, flush=True)
        continue
    if msg.get("method") == "tools/call" and msg["params"]["name"] == "get_wallet_balance":
        result = {"content": [{"type": "text", "text": "1.5 ETH"}]}
        print(json.dumps({"jsonrpc": "2.0", "id": msg["id"], "result": result}), flush=True)
    else:
        error = {"code": -32601, "message": "Method not found"}
        print(json.dumps({"jsonrpc": "2.0", "id": msg["id"], "error": error}), flush=True)
`

// skipIfPythonNotInstalled skips the test if the error indicates python3 is not found.
func skipIfPythonNotInstalled(t *testing.T, err error) {
	t.Helper()

	if _, ok := errors.AsType[*relay.BackendNotFoundError](err); ok {
		t.Skip("python3 not installed")
	}
}

// writeAdapter writes the stub adapter into a fresh project root.
func writeAdapter(t *testing.T) string {
	t.Helper()

	root := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(root, "adapter.py"), []byte(stubAdapter), 0o600))

	return root
}
