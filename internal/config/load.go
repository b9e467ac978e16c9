package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/wagiedev/evm-wallet-relay/internal/errors"
)

// Load reads a configuration file and overlays it on Default.
//
// The format is chosen by extension: .yaml and .yml are YAML, .json and
// .jsonc are JSON with optional comments and trailing commas. Fields the
// file does not mention keep their default values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &errors.ConfigError{Err: fmt.Errorf("reading %s: %w", path, err)}
	}

	cfg := Default()
	if err := Decode(cfg, filepath.Ext(path), data); err != nil {
		return nil, &errors.ConfigError{Err: fmt.Errorf("%s: %w", path, err)}
	}

	return cfg, nil
}

// Decode overlays data, in the format named by ext, onto cfg.
func Decode(cfg *Config, ext string, data []byte) error {
	switch strings.ToLower(ext) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return fmt.Errorf("parsing yaml: %w", err)
		}
	case ".json", ".jsonc":
		if err := json.Unmarshal(jsonc.ToJSON(data), cfg); err != nil {
			return fmt.Errorf("parsing json: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config format %q", ext)
	}

	return nil
}
