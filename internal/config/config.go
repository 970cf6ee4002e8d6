package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/smnsjas/go-xpipe/client"
)

//go:embed sample_config.toml
var sampleConfig string

const defaultConfigPath = "~/.config/xpipe-client/config.toml"

// Environment variables that override file values.
const (
	EnvAPIKey  = "XPIPE_API_KEY"
	EnvBaseURL = "XPIPE_BASE_URL"
)

// Daemon holds the connection settings.
type Daemon struct {
	BaseURL          string `toml:"base_url" json:"base_url"`
	PTB              bool   `toml:"ptb" json:"ptb"`
	APIKey           string `toml:"api_key" json:"api_key"`
	AuthFile         string `toml:"auth_file" json:"auth_file"`
	WatchAuthFile    bool   `toml:"watch_auth_file" json:"watch_auth_file"`
	TimeoutSeconds   int    `toml:"timeout_seconds" json:"timeout_seconds"`
	ClientName       string `toml:"client_name" json:"client_name"`
	MinVersion       string `toml:"min_version" json:"min_version"`
	SkipVersionCheck bool   `toml:"skip_version_check" json:"skip_version_check"`
}

// Limits holds request throttling and concurrency settings.
type Limits struct {
	RateLimit             float64 `toml:"rate_limit" json:"rate_limit"`
	RateBurst             int     `toml:"rate_burst" json:"rate_burst"`
	MaxConcurrent         int     `toml:"max_concurrent" json:"max_concurrent"`
	MaxQueue              int     `toml:"max_queue" json:"max_queue"`
	AcquireTimeoutSeconds int     `toml:"acquire_timeout_seconds" json:"acquire_timeout_seconds"`
}

// Logging holds logger settings.
type Logging struct {
	Level      string `toml:"level" json:"level"`
	Format     string `toml:"format" json:"format"`
	File       string `toml:"file" json:"file"`
	MaxSizeMB  int    `toml:"max_size_mb" json:"max_size_mb"`
	MaxBackups int    `toml:"max_backups" json:"max_backups"`
}

// Output holds CLI rendering settings.
type Output struct {
	Format string `toml:"format" json:"format"`
}

// Config is the full CLI configuration.
type Config struct {
	Daemon  Daemon  `toml:"daemon" json:"daemon"`
	Limits  Limits  `toml:"limits" json:"limits"`
	Logging Logging `toml:"logging" json:"logging"`
	Output  Output  `toml:"output" json:"output"`
}

// DefaultConfigPath returns the absolute path of the default config file.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. A missing file
// is not an error: the defaults are returned and exists is false.
func Load(path string) (cfg *Config, resolvedPath string, exists bool, err error) {
	c := Default()

	resolvedPath, exists, err = resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(&c); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	c.applyEnv()

	if err := c.normalize(); err != nil {
		return nil, "", false, err
	}
	if err := c.Validate(); err != nil {
		return nil, "", false, err
	}
	return &c, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path == "" {
		path = defaultConfigPath
	}
	expanded, err := expandPath(path)
	if err != nil {
		return "", false, err
	}
	info, err := os.Stat(expanded)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return expanded, false, nil
		}
		return "", false, fmt.Errorf("stat config: %w", err)
	}
	if info.IsDir() {
		return "", false, fmt.Errorf("config path %q is a directory", expanded)
	}
	return expanded, true, nil
}

func (c *Config) applyEnv() {
	if v := strings.TrimSpace(os.Getenv(EnvAPIKey)); v != "" {
		c.Daemon.APIKey = v
	}
	if v := strings.TrimSpace(os.Getenv(EnvBaseURL)); v != "" {
		c.Daemon.BaseURL = v
	}
}

// ClientConfig converts c into a client.Config using logger.
func (c *Config) ClientConfig(logger *slog.Logger) client.Config {
	cc := client.DefaultConfig()
	cc.BaseURL = c.Daemon.BaseURL
	cc.PTB = c.Daemon.PTB
	cc.APIKey = c.Daemon.APIKey
	cc.AuthFile = c.Daemon.AuthFile
	cc.WatchAuthFile = c.Daemon.WatchAuthFile
	cc.Timeout = time.Duration(c.Daemon.TimeoutSeconds) * time.Second
	cc.ClientName = c.Daemon.ClientName
	cc.MinVersion = c.Daemon.MinVersion
	cc.SkipVersionCheck = c.Daemon.SkipVersionCheck
	cc.RateLimit = c.Limits.RateLimit
	cc.RateBurst = c.Limits.RateBurst
	cc.MaxConcurrent = c.Limits.MaxConcurrent
	cc.MaxQueue = c.Limits.MaxQueue
	cc.AcquireTimeout = time.Duration(c.Limits.AcquireTimeoutSeconds) * time.Second
	cc.Logger = logger
	return cc
}

// Encode renders c as TOML.
func (c *Config) Encode() ([]byte, error) {
	return toml.Marshal(c)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes the sample configuration file to path. An existing
// file is left untouched unless overwrite is set.
func CreateSample(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config file %s already exists", path)
		}
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}
	// The file may hold an API key.
	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
