// Package config provides configuration management for the FSAuth agent.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"gopkg.in/yaml.v3"
)

// DataDirName is the hidden directory that holds the agent's local state.
const DataDirName = ".faerion"

// DefaultDataRoot returns the machine-wide data root for the current platform.
// The agent state is shared per machine, not per user.
func DefaultDataRoot() string {
	if runtime.GOOS == "windows" {
		if root := os.Getenv("ProgramData"); root != "" {
			return root
		}
		return `C:\ProgramData`
	}
	return "/var/lib"
}

// DefaultDataDir returns the default agent data directory.
func DefaultDataDir() string {
	return filepath.Join(DefaultDataRoot(), DataDirName)
}

// DefaultConfigPath returns the default config file path inside the data directory.
func DefaultConfigPath() string {
	return filepath.Join(DefaultDataDir(), "config.yml")
}

// ProxyConfig holds outbound proxy settings for the transport.
type ProxyConfig struct {
	HTTPProxy   string `yaml:"http_proxy,omitempty"`
	HTTPSProxy  string `yaml:"https_proxy,omitempty"`
	SOCKS5Proxy string `yaml:"socks5_proxy,omitempty"`
	NoProxy     string `yaml:"no_proxy,omitempty"`
}

// HasProxy returns true if any proxy is configured.
func (p *ProxyConfig) HasProxy() bool {
	if p == nil {
		return false
	}
	return p.HTTPProxy != "" || p.HTTPSProxy != "" || p.SOCKS5Proxy != ""
}

// AgentConfig holds the agent's configuration.
type AgentConfig struct {
	AppName         string       `yaml:"app_name,omitempty"`
	ServerURL       string       `yaml:"server_url,omitempty"`
	AppSecret       string       `yaml:"app_secret,omitempty"`
	Username        string       `yaml:"username,omitempty"`
	LicenseKey      string       `yaml:"license_key,omitempty"`
	SubscriptionKey string       `yaml:"subscription_key,omitempty"`
	InstallID       string       `yaml:"install_id,omitempty"`
	DataDir         string       `yaml:"data_dir,omitempty"`
	Proxy           *ProxyConfig `yaml:"proxy,omitempty"`
}

// Validate checks that the configuration has required fields for operation.
func (c *AgentConfig) Validate() error {
	if c.ServerURL == "" {
		return errors.New("server_url is required")
	}
	if c.AppSecret == "" {
		return errors.New("app_secret is required")
	}
	return nil
}

// IsConfigured returns true if the agent has been registered with a server.
func (c *AgentConfig) IsConfigured() bool {
	return c.ServerURL != "" && c.AppSecret != ""
}

// EffectiveDataDir returns the configured data directory, or the default.
func (c *AgentConfig) EffectiveDataDir() string {
	if c.DataDir != "" {
		return c.DataDir
	}
	return DefaultDataDir()
}

// Load reads the configuration from the given path.
// If the file does not exist, an empty config is returned.
func Load(path string) (*AgentConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &AgentConfig{}, nil
		}
		return nil, fmt.Errorf("read config file: %w", err)
	}

	var cfg AgentConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config file: %w", err)
	}

	return &cfg, nil
}

// LoadDefault loads the configuration from the default path.
func LoadDefault() (*AgentConfig, error) {
	return Load(DefaultConfigPath())
}

// Save writes the configuration to the given path, creating directories as needed.
func (c *AgentConfig) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	// The file carries the app secret, keep it user-only.
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("write config file: %w", err)
	}

	return nil
}

// SaveDefault saves the configuration to the default path.
func (c *AgentConfig) SaveDefault() error {
	return c.Save(DefaultConfigPath())
}
