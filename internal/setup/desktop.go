// Package setup registers the MCP server with desktop MCP clients.
package setup

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"

	"github.com/as-progression-tracker/internal/config"
)

// ServerName is the key under which the tracker is registered
const ServerName = "as-progression-tracker"

// BinaryName is the executable built from cmd/mcp-server
const BinaryName = "mcp-server"

// MCPServerConfig represents a single MCP server entry
type MCPServerConfig struct {
	Command string            `json:"command"`
	Args    []string          `json:"args,omitempty"`
	Env     map[string]string `json:"env,omitempty"`
}

// ClientConfig is a desktop client configuration file. Keys other than
// mcpServers are preserved as-is.
type ClientConfig struct {
	MCPServers map[string]MCPServerConfig
	other      map[string]json.RawMessage
}

// RegisterOptions controls the registered entry
type RegisterOptions struct {
	ConfigPath   string // client config file; empty selects the platform default
	BinaryPath   string // empty searches PATH and common locations
	ConfigFile   string // tracker config.yaml passed to the server
	ArtifactPath string // model artifact override
}

// DesktopConfigPath returns the default client config file for goos
func DesktopConfigPath(goos string, getenv func(string) string) (string, error) {
	var configDir string

	switch goos {
	case "darwin":
		home := getenv("HOME")
		if home == "" {
			return "", fmt.Errorf("HOME is not set")
		}
		configDir = filepath.Join(home, "Library", "Application Support", "Claude")
	case "linux":
		if xdg := getenv("XDG_CONFIG_HOME"); xdg != "" {
			configDir = filepath.Join(xdg, "Claude")
		} else {
			home := getenv("HOME")
			if home == "" {
				return "", fmt.Errorf("HOME is not set")
			}
			configDir = filepath.Join(home, ".config", "Claude")
		}
	case "windows":
		appData := getenv("APPDATA")
		if appData == "" {
			return "", fmt.Errorf("APPDATA environment variable not set")
		}
		configDir = filepath.Join(appData, "Claude")
	default:
		return "", fmt.Errorf("unsupported operating system: %s", goos)
	}

	return filepath.Join(configDir, "claude_desktop_config.json"), nil
}

// LoadClientConfig reads a client config; a missing file yields an empty config
func LoadClientConfig(path string) (*ClientConfig, error) {
	cfg := &ClientConfig{
		MCPServers: make(map[string]MCPServerConfig),
		other:      make(map[string]json.RawMessage),
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, &cfg.other); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	if raw, ok := cfg.other["mcpServers"]; ok {
		if err := json.Unmarshal(raw, &cfg.MCPServers); err != nil {
			return nil, fmt.Errorf("failed to parse mcpServers: %w", err)
		}
		delete(cfg.other, "mcpServers")
	}
	if cfg.MCPServers == nil {
		cfg.MCPServers = make(map[string]MCPServerConfig)
	}
	return cfg, nil
}

// Save writes the config, creating the directory when needed
func (c *ClientConfig) Save(path string) error {
	out := make(map[string]interface{}, len(c.other)+1)
	for k, v := range c.other {
		out[k] = v
	}
	out["mcpServers"] = c.MCPServers

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Register adds or replaces the tracker entry and returns the config path written
func Register(opts RegisterOptions) (string, error) {
	path, err := resolveConfigPath(opts.ConfigPath)
	if err != nil {
		return "", err
	}

	binary := opts.BinaryPath
	if binary == "" {
		if binary, err = findBinary(); err != nil {
			return "", err
		}
	}

	cfg, err := LoadClientConfig(path)
	if err != nil {
		return "", err
	}

	entry := MCPServerConfig{Command: binary, Env: map[string]string{}}
	if opts.ConfigFile != "" {
		abs, err := filepath.Abs(opts.ConfigFile)
		if err != nil {
			return "", err
		}
		entry.Env[config.EnvPrefix+"_CONFIG_FILE"] = abs
	}
	if opts.ArtifactPath != "" {
		abs, err := filepath.Abs(opts.ArtifactPath)
		if err != nil {
			return "", err
		}
		entry.Env[config.EnvPrefix+"_CLASSIFIER_ARTIFACT_PATH"] = abs
	}
	cfg.MCPServers[ServerName] = entry

	return path, cfg.Save(path)
}

// Check reports problems with the registered entry. An empty result means the
// entry exists and points at an executable file.
func Check(configPath string) ([]string, error) {
	path, err := resolveConfigPath(configPath)
	if err != nil {
		return nil, err
	}
	cfg, err := LoadClientConfig(path)
	if err != nil {
		return nil, err
	}

	entry, ok := cfg.MCPServers[ServerName]
	if !ok {
		return []string{fmt.Sprintf("%s is not registered in %s", ServerName, path)}, nil
	}

	var issues []string
	info, err := os.Stat(entry.Command)
	switch {
	case err != nil:
		issues = append(issues, fmt.Sprintf("server binary not found: %s", entry.Command))
	case info.Mode()&0o111 == 0:
		issues = append(issues, fmt.Sprintf("server binary is not executable: %s", entry.Command))
	}
	for _, key := range []string{config.EnvPrefix + "_CONFIG_FILE", config.EnvPrefix + "_CLASSIFIER_ARTIFACT_PATH"} {
		if p, ok := entry.Env[key]; ok {
			if _, err := os.Stat(p); err != nil {
				issues = append(issues, fmt.Sprintf("%s points to a missing file: %s", key, p))
			}
		}
	}
	return issues, nil
}

func resolveConfigPath(path string) (string, error) {
	if path != "" {
		return path, nil
	}
	return DesktopConfigPath(runtime.GOOS, os.Getenv)
}

func findBinary() (string, error) {
	if path, err := exec.LookPath(BinaryName); err == nil {
		return path, nil
	}

	home, _ := os.UserHomeDir()
	locations := []string{
		"./" + BinaryName,
		"./build/" + BinaryName,
		filepath.Join(home, ".local", "bin", BinaryName),
		"/usr/local/bin/" + BinaryName,
	}
	for _, loc := range locations {
		if _, err := os.Stat(loc); err == nil {
			return filepath.Abs(loc)
		}
	}

	return "", fmt.Errorf("binary %q not found in PATH or common locations; pass --binary", BinaryName)
}
