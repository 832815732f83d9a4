// Package setup registers the advisor MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ServerName is the key the advisor is registered under in a client config.
const ServerName = "skin-lesion-advisor"

// ClientConfig is the part of an MCP client configuration file we manage.
// Other top-level keys are preserved on save.
type ClientConfig struct {
	MCPServers map[string]ServerEntry `json:"mcpServers"`
	extra      map[string]json.RawMessage
}

// ServerEntry is a single MCP server launch configuration.
type ServerEntry struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// Options controls Register.
type Options struct {
	BinaryPath  string
	DataDir     string
	CatalogPath string
	LogLevel    string
}

// Status describes how the advisor is registered in a client config.
type Status struct {
	ConfigPath string
	Registered bool
	BinaryPath string
	DataDir    string
	Issues     []string
}

// LoadClientConfig reads a client configuration. A missing file yields an empty config.
func LoadClientConfig(path string) (*ClientConfig, error) {
	config := &ClientConfig{
		MCPServers: make(map[string]ServerEntry),
		extra:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return config, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &config.extra); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := config.extra["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &config.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(config.extra, "mcpServers")
	}
	if config.MCPServers == nil {
		config.MCPServers = make(map[string]ServerEntry)
	}

	return config, nil
}

// SaveClientConfig writes the configuration, creating the directory if needed.
func SaveClientConfig(path string, config *ClientConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	out := make(map[string]interface{}, len(config.extra)+1)
	for key, value := range config.extra {
		out[key] = value
	}
	out["mcpServers"] = config.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the advisor entry in the client config at path.
func Register(path string, opts Options) (ServerEntry, error) {
	if opts.BinaryPath == "" {
		return ServerEntry{}, fmt.Errorf("binary path is required")
	}

	config, err := LoadClientConfig(path)
	if err != nil {
		return ServerEntry{}, err
	}

	entry := ServerEntry{
		Command: opts.BinaryPath,
		Env:     make(map[string]string),
	}
	if opts.DataDir != "" {
		entry.Env["ADVISOR_DATA_DIR"] = opts.DataDir
	}
	if opts.CatalogPath != "" {
		entry.Env["ADVISOR_CATALOG_PATH"] = opts.CatalogPath
	}
	if opts.LogLevel != "" {
		entry.Env["ADVISOR_LOG_LEVEL"] = opts.LogLevel
	}
	if len(entry.Env) == 0 {
		entry.Env = nil
	}

	config.MCPServers[ServerName] = entry
	if err := SaveClientConfig(path, config); err != nil {
		return ServerEntry{}, err
	}
	return entry, nil
}

// Unregister removes the advisor entry. It reports whether an entry existed.
func Unregister(path string) (bool, error) {
	config, err := LoadClientConfig(path)
	if err != nil {
		return false, err
	}
	if _, ok := config.MCPServers[ServerName]; !ok {
		return false, nil
	}
	delete(config.MCPServers, ServerName)
	return true, SaveClientConfig(path, config)
}

// GetStatus inspects the client config at path. defaultDataDir is reported
// when the entry does not override the data directory.
func GetStatus(path, defaultDataDir string) (*Status, error) {
	status := &Status{ConfigPath: path, DataDir: defaultDataDir}

	config, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := config.MCPServers[ServerName]
	if !ok {
		status.Issues = append(status.Issues, "advisor is not registered")
		return status, nil
	}

	status.Registered = true
	status.BinaryPath = entry.Command
	if dir := entry.Env["ADVISOR_DATA_DIR"]; dir != "" {
		status.DataDir = dir
	}

	if info, err := os.Stat(entry.Command); err != nil {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	} else if info.Mode()&0111 == 0 {
		status.Issues = append(status.Issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}

	return status, nil
}
