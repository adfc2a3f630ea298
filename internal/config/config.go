// Package config loads tool-level settings from conductor.yml. These are
// host defaults (call cap, state directory, stub fleet); the pipeline
// itself is described separately by its definition file.
package config

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// ToolConfig holds settings loaded from conductor.yml. Command-line flags
// override any value set here.
type ToolConfig struct {
	// Definition is the default pipeline definition path.
	Definition string `yaml:"definition,omitempty"`

	// StateDir is where durable store scopes are persisted.
	StateDir string `yaml:"stateDir,omitempty"`

	// MaxCalls caps in-flight model calls across the process.
	MaxCalls int `yaml:"maxCalls,omitempty"`

	// Stub routes every agent to a locally spawned stub fleet.
	Stub bool `yaml:"stub,omitempty"`

	// StubPort is the stub fleet's base port.
	StubPort int `yaml:"stubPort,omitempty"`

	// MCPAddr, when set, serves the run-control MCP tools on this address.
	MCPAddr string `yaml:"mcpAddr,omitempty"`

	Verbose bool `yaml:"verbose,omitempty"`
}

// Load attempts to read conductor.yml or conductor.yaml from the given
// directory. Returns a zero-value config (not an error) if no config file
// exists.
func Load(dir string) (*ToolConfig, error) {
	for _, name := range []string{"conductor.yml", "conductor.yaml"} {
		path := filepath.Join(dir, name)
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		var cfg ToolConfig
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return nil, err
		}
		return &cfg, nil
	}
	return &ToolConfig{}, nil
}
