package config

import (
	"os"
	"testing"
)

func TestLoadDefaults(t *testing.T) {
	clearEdonEnv(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	tests := []struct {
		name  string
		check func(*Config) bool
	}{
		{"default mode is api", func(c *Config) bool { return c.Mode == "api" }},
		{"default host is 0.0.0.0", func(c *Config) bool { return c.Host == "0.0.0.0" }},
		{"default port is 8080", func(c *Config) bool { return c.Port == 8080 }},
		{"default log level is info", func(c *Config) bool { return c.LogLevel == "info" }},
		{"json logging off by default", func(c *Config) bool { return !c.JSONLogging }},
		{"auth enabled by default", func(c *Config) bool { return c.AuthEnabled }},
		{"credentials strict off by default", func(c *Config) bool { return !c.CredentialsStrict }},
		{"validate strict on by default", func(c *Config) bool { return c.ValidateStrict }},
		{"token hardening on by default", func(c *Config) bool { return c.TokenHardening }},
		{"network gating off by default", func(c *Config) bool { return !c.NetworkGating }},
		{"rate limit per minute is 60", func(c *Config) bool { return c.RateLimitPerMinute == 60 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !tt.check(cfg) {
				t.Errorf("check failed for %q", tt.name)
			}
		})
	}
}

func TestListenAddr(t *testing.T) {
	cfg := &Config{Host: "127.0.0.1", Port: 9090}
	if got, want := cfg.ListenAddr(), "127.0.0.1:9090"; got != want {
		t.Errorf("ListenAddr() = %q, want %q", got, want)
	}
}

func TestIsProduction(t *testing.T) {
	cfg := &Config{Environment: "production"}
	if !cfg.IsProduction() {
		t.Error("IsProduction() = false, want true")
	}
	cfg.Environment = "development"
	if cfg.IsProduction() {
		t.Error("IsProduction() = true, want false")
	}
}

func clearEdonEnv(t *testing.T) {
	t.Helper()
	for _, kv := range os.Environ() {
		for i := 0; i < len(kv); i++ {
			if kv[i] == '=' {
				key := kv[:i]
				if len(key) > 5 && key[:5] == "EDON_" {
					os.Unsetenv(key)
				}
				break
			}
		}
	}
}
