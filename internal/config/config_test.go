package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	require.Equal(t, "python", cfg.Backend.Command)
	require.Equal(t, []string{"-m", "app.ai.mcp_stdio_adapter"}, cfg.Backend.Args)
	require.Equal(t, "mcp_stdio.log", cfg.Audit.Path)
	require.Equal(t, "EVM Wallet MCP Server", cfg.Server.Name)
	require.Equal(t, "1.0.0", cfg.Server.Version)
	require.Equal(t, "2024-11-05", cfg.Server.ProtocolVersion)
	require.Equal(t, Duration(10*time.Second), cfg.ShutdownGrace)
	require.NoError(t, cfg.Validate())

	// Mutating one default must not leak into the next.
	cfg.Backend.Args[0] = "-c"
	require.Equal(t, "-m", Default().Backend.Args[0])
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := Default()
	cfg.Backend.Command = " "
	cfg.Audit.Path = ""
	cfg.ReadBufferSize = 0
	cfg.ShutdownGrace = Duration(-time.Second)

	err := cfg.Validate()
	require.Error(t, err)

	cfgErr, ok := err.(*errors.ConfigError)
	require.True(t, ok)
	require.Len(t, cfgErr.Problems, 4)
	require.Contains(t, err.Error(), "backend command is required")
}

func TestLoad_YAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
root: /srv/wallet
backend:
  command: /opt/venv/bin/python
  args: ["-m", "app.ai.mcp_stdio_adapter"]
  env:
    PYTHONUNBUFFERED: "1"
shutdown_grace: 3s
reply_parse_errors: true
`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "/srv/wallet", cfg.Root)
	require.Equal(t, "/opt/venv/bin/python", cfg.Backend.Command)
	require.Equal(t, map[string]string{"PYTHONUNBUFFERED": "1"}, cfg.Backend.Env)
	require.Equal(t, Duration(3*time.Second), cfg.ShutdownGrace)
	require.True(t, cfg.ReplyParseErrors)

	// Untouched sections keep their defaults.
	require.Equal(t, "mcp_stdio.log", cfg.Audit.Path)
	require.Equal(t, "EVM Wallet MCP Server", cfg.Server.Name)
	require.Equal(t, "/srv/wallet/mcp_stdio.log", cfg.AuditPath())
	require.Equal(t, "/srv/wallet", cfg.BackendDir())
}

func TestLoad_JSONC(t *testing.T) {
	path := filepath.Join(t.TempDir(), "relay.jsonc")
	require.NoError(t, os.WriteFile(path, []byte(`{
  // wallet backend lives next to the relay
  "backend": {"command": "./backend", "dir": "svc",},
  "audit": {"path": "/var/log/relay.log"},
  "shutdown_grace": "250ms",
}`), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, "./backend", cfg.Backend.Command)
	require.Equal(t, "/var/log/relay.log", cfg.AuditPath())
	require.Equal(t, Duration(250*time.Millisecond), cfg.ShutdownGrace)
	require.True(t, filepath.IsAbs(cfg.BackendDir()))
	require.Equal(t, "svc", filepath.Base(cfg.BackendDir()))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.yaml"))
	require.Error(t, err)
	require.IsType(t, &errors.ConfigError{}, err)

	toml := filepath.Join(dir, "relay.toml")
	require.NoError(t, os.WriteFile(toml, []byte("x = 1"), 0o600))

	_, err = Load(toml)
	require.ErrorContains(t, err, "unsupported config format")

	bad := filepath.Join(dir, "relay.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("shutdown_grace: soon\n"), 0o600))

	_, err = Load(bad)
	require.ErrorContains(t, err, "parse duration")
}

func TestApplyEnv(t *testing.T) {
	cfg := Default()
	env := map[string]string{
		EnvBackend: "/usr/bin/python3",
		EnvRoot:    "/srv/wallet",
	}

	cfg.ApplyEnv(func(k string) (string, bool) {
		v, ok := env[k]

		return v, ok
	})

	require.Equal(t, "/usr/bin/python3", cfg.Backend.Command)
	require.Equal(t, "/srv/wallet", cfg.Root)
}

func TestBackendEnviron(t *testing.T) {
	b := Backend{Env: map[string]string{"B": "2", "A": "1"}}

	require.Equal(t, []string{"PATH=/bin", "A=1", "B=2"}, b.Environ([]string{"PATH=/bin"}))
}
