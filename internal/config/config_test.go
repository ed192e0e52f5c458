package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestAgentConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     AgentConfig
		wantErr bool
	}{
		{
			name:    "empty config",
			cfg:     AgentConfig{},
			wantErr: true,
		},
		{
			name: "missing app_secret",
			cfg: AgentConfig{
				ServerURL: "https://licensing.example.com",
			},
			wantErr: true,
		},
		{
			name: "missing server_url",
			cfg: AgentConfig{
				AppSecret: "test-secret",
			},
			wantErr: true,
		},
		{
			name: "valid config",
			cfg: AgentConfig{
				ServerURL: "https://licensing.example.com",
				AppSecret: "test-secret",
			},
			wantErr: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAgentConfig_IsConfigured(t *testing.T) {
	tests := []struct {
		name string
		cfg  AgentConfig
		want bool
	}{
		{
			name: "empty config",
			cfg:  AgentConfig{},
			want: false,
		},
		{
			name: "partial config",
			cfg: AgentConfig{
				ServerURL: "https://licensing.example.com",
			},
			want: false,
		},
		{
			name: "configured",
			cfg: AgentConfig{
				ServerURL: "https://licensing.example.com",
				AppSecret: "test-secret",
			},
			want: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.IsConfigured(); got != tt.want {
				t.Errorf("IsConfigured() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoad_NonExistent(t *testing.T) {
	cfg, err := Load("/nonexistent/path/config.yml")
	if err != nil {
		t.Fatalf("Load() unexpected error: %v", err)
	}
	if cfg == nil {
		t.Fatal("Load() returned nil config")
	}
	if cfg.ServerURL != "" || cfg.AppSecret != "" {
		t.Error("Load() expected empty config for non-existent file")
	}
}

func TestAgentConfig_SaveAndLoad(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "subdir", "config.yml")

	original := &AgentConfig{
		AppName:         "FSDemo",
		ServerURL:       "https://licensing.example.com",
		AppSecret:       "secret-12345",
		Username:        "bob",
		SubscriptionKey: "SUB-KEY-1",
		InstallID:       "install-uuid",
		Proxy: &ProxyConfig{
			SOCKS5Proxy: "socks5://127.0.0.1:1080",
		},
	}

	if err := original.Save(configPath); err != nil {
		t.Fatalf("Save() error: %v", err)
	}

	info, err := os.Stat(configPath)
	if err != nil {
		t.Fatalf("Stat() error: %v", err)
	}
	if info.Mode().Perm()&0077 != 0 {
		t.Errorf("Config file has insecure permissions: %v", info.Mode())
	}

	loaded, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	if loaded.ServerURL != original.ServerURL {
		t.Errorf("ServerURL = %q, want %q", loaded.ServerURL, original.ServerURL)
	}
	if loaded.AppSecret != original.AppSecret {
		t.Errorf("AppSecret = %q, want %q", loaded.AppSecret, original.AppSecret)
	}
	if loaded.Username != original.Username {
		t.Errorf("Username = %q, want %q", loaded.Username, original.Username)
	}
	if loaded.SubscriptionKey != original.SubscriptionKey {
		t.Errorf("SubscriptionKey = %q, want %q", loaded.SubscriptionKey, original.SubscriptionKey)
	}
	if !loaded.Proxy.HasProxy() {
		t.Error("Proxy settings were not round-tripped")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, "config.yml")

	if err := os.WriteFile(configPath, []byte("not: valid: yaml: {{"), 0600); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML")
	}
}

func TestAgentConfig_EffectiveDataDir(t *testing.T) {
	cfg := &AgentConfig{}
	if got := cfg.EffectiveDataDir(); got != DefaultDataDir() {
		t.Errorf("EffectiveDataDir() = %q, want default %q", got, DefaultDataDir())
	}

	cfg.DataDir = "/tmp/custom"
	if got := cfg.EffectiveDataDir(); got != "/tmp/custom" {
		t.Errorf("EffectiveDataDir() = %q, want override", got)
	}
}

func TestProxyConfig_HasProxy(t *testing.T) {
	var nilProxy *ProxyConfig
	if nilProxy.HasProxy() {
		t.Error("nil ProxyConfig should report no proxy")
	}
	if (&ProxyConfig{NoProxy: "internal.example.com"}).HasProxy() {
		t.Error("no_proxy alone should not count as a configured proxy")
	}
	if !(&ProxyConfig{HTTPProxy: "http://proxy:3128"}).HasProxy() {
		t.Error("http proxy should count as configured")
	}
}
