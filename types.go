package relay

import (
	"github.com/wagiedev/evm-wallet-relay/internal/config"
	"github.com/wagiedev/evm-wallet-relay/internal/lifecycle"
	"github.com/wagiedev/evm-wallet-relay/internal/protocol"
)

// Re-export types from internal packages

// ===== Configuration =====

// Config is the relay configuration.
type Config = config.Config

// BackendConfig describes how the backend process is launched.
type BackendConfig = config.Backend

// AuditConfig configures the audit log.
type AuditConfig = config.Audit

// ServerConfig is the identity advertised by the initialize response.
type ServerConfig = config.Server

// Duration is a time.Duration that decodes from strings such as "10s".
type Duration = config.Duration

// DefaultConfig returns the configuration used when nothing is overridden.
func DefaultConfig() *Config {
	return config.Default()
}

// LoadConfig reads a YAML or JSON-with-comments configuration file over
// the defaults.
func LoadConfig(path string) (*Config, error) {
	return config.Load(path)
}

// ===== Lifecycle =====

// State is a relay lifecycle phase.
type State = lifecycle.State

const (
	// StateStarting is the initial state, before the backend is spawned.
	StateStarting = lifecycle.StateStarting
	// StateRunning means the backend is up and traffic is flowing.
	StateRunning = lifecycle.StateRunning
	// StateStopping means a shutdown is in progress.
	StateStopping = lifecycle.StateStopping
	// StateStopped means the backend has exited.
	StateStopped = lifecycle.StateStopped
)

// ===== Traffic =====

// Stats counts what the relay did with the lines it read.
type Stats = protocol.Stats
