package client

import (
	"testing"
	"time"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Timeout != 60*time.Second {
		t.Errorf("Timeout = %v, want 60s", cfg.Timeout)
	}
	if cfg.IgnoreHTTPErrors {
		t.Error("IgnoreHTTPErrors should default to false")
	}
	if cfg.ClientName != "go_xpipe_api" {
		t.Errorf("ClientName = %q", cfg.ClientName)
	}
	if cfg.MinVersion != "10.1-12" {
		t.Errorf("MinVersion = %q", cfg.MinVersion)
	}
	if cfg.MaxConcurrent != 4 || cfg.MaxQueue != -1 {
		t.Errorf("MaxConcurrent/MaxQueue = %d/%d", cfg.MaxConcurrent, cfg.MaxQueue)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() = %v", err)
	}
}

func TestConfig_ResolvedBaseURL(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
		want string
	}{
		{"default", Config{}, "http://127.0.0.1:21721"},
		{"ptb", Config{PTB: true}, "http://127.0.0.1:21722"},
		{"explicit wins", Config{PTB: true, BaseURL: "http://10.0.0.1:1234"}, "http://10.0.0.1:1234"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.cfg.ResolvedBaseURL(); got != tt.want {
				t.Errorf("ResolvedBaseURL() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"https base url", func(c *Config) { c.BaseURL = "https://host:21721/" }, false},
		{"bad scheme", func(c *Config) { c.BaseURL = "ftp://host" }, true},
		{"no host", func(c *Config) { c.BaseURL = "http://" }, true},
		{"negative timeout", func(c *Config) { c.Timeout = -1 }, true},
		{"negative rate", func(c *Config) { c.RateLimit = -1 }, true},
		{"negative concurrency", func(c *Config) { c.MaxConcurrent = -1 }, true},
		{"negative acquire timeout", func(c *Config) { c.AcquireTimeout = -time.Second }, true},
		{"bad min version", func(c *Config) { c.MinVersion = "latest" }, true},
		{"bad min version skipped", func(c *Config) {
			c.MinVersion = "latest"
			c.SkipVersionCheck = true
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
