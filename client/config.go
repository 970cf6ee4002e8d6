package client

import (
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/smnsjas/go-xpipe/daemon"
)

const (
	// DefaultBaseURL is the API address of a locally running daemon.
	DefaultBaseURL = "http://127.0.0.1:21721"

	// DefaultPTBBaseURL is the API address of a public test build daemon.
	DefaultPTBBaseURL = "http://127.0.0.1:21722"

	// DefaultMinVersion is the oldest daemon version this library talks to.
	DefaultMinVersion = "10.1-12"
)

// Config holds configuration for an XPipe client.
type Config struct {
	// BaseURL is the daemon API address. Empty selects DefaultBaseURL or
	// DefaultPTBBaseURL depending on PTB.
	BaseURL string

	// PTB targets the public test build daemon: its port and auth file.
	PTB bool

	// APIKey authenticates with a key created in the daemon settings.
	// When empty the local auth file is used instead.
	APIKey string

	// AuthFile overrides the location of the local auth file.
	AuthFile string

	// WatchAuthFile reloads local credentials when the daemon rewrites its
	// auth file, e.g. after a restart. Ignored with APIKey.
	WatchAuthFile bool

	// Timeout is the per-request HTTP timeout.
	Timeout time.Duration

	// IgnoreHTTPErrors leaves statuses >= 400 to the caller instead of
	// returning *daemon.APIError.
	IgnoreHTTPErrors bool

	// ClientName is announced to the daemon during the handshake.
	ClientName string

	// MinVersion is the oldest acceptable daemon version.
	MinVersion string

	// SkipVersionCheck disables the post-handshake version gate.
	SkipVersionCheck bool

	// RateLimit caps requests per second. Zero disables limiting.
	RateLimit float64

	// RateBurst is the limiter burst size.
	RateBurst int

	// MaxConcurrent limits in-flight operations of an AsyncClient.
	MaxConcurrent int

	// MaxQueue limits operations waiting for a slot (-1 = unbounded, 0 = no queue).
	MaxQueue int

	// AcquireTimeout bounds how long an operation waits for a slot.
	AcquireTimeout time.Duration

	// Logger receives diagnostics and security events. Nil disables logging.
	Logger *slog.Logger
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:        60 * time.Second,
		ClientName:     daemon.DefaultClientName,
		MinVersion:     DefaultMinVersion,
		RateBurst:      1,
		MaxConcurrent:  4,
		MaxQueue:       -1,
		AcquireTimeout: 60 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.BaseURL != "" {
		u, err := url.Parse(c.BaseURL)
		if err != nil {
			return fmt.Errorf("invalid base url: %w", err)
		}
		if u.Scheme != "http" && u.Scheme != "https" {
			return fmt.Errorf("base url must use http or https: %s", c.BaseURL)
		}
		if u.Host == "" {
			return fmt.Errorf("base url has no host: %s", c.BaseURL)
		}
	}
	if c.Timeout < 0 {
		return errors.New("timeout must not be negative")
	}
	if c.RateLimit < 0 {
		return errors.New("rate limit must not be negative")
	}
	if c.MaxConcurrent < 0 {
		return errors.New("max concurrent must not be negative")
	}
	if c.AcquireTimeout < 0 {
		return errors.New("acquire timeout must not be negative")
	}
	if !c.SkipVersionCheck && c.MinVersion != "" {
		if _, err := ParseVersion(c.MinVersion); err != nil {
			return fmt.Errorf("invalid min version: %w", err)
		}
	}
	return nil
}

// ResolvedBaseURL returns the base URL the client will talk to.
func (c *Config) ResolvedBaseURL() string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	if c.PTB {
		return DefaultPTBBaseURL
	}
	return DefaultBaseURL
}

// LogValue implements slog.LogValuer so the API key never reaches log output.
func (c Config) LogValue() slog.Value {
	apiKey := ""
	if c.APIKey != "" {
		apiKey = "[REDACTED]"
	}
	return slog.GroupValue(
		slog.String("base_url", c.ResolvedBaseURL()),
		slog.Bool("ptb", c.PTB),
		slog.String("api_key", apiKey),
		slog.String("auth_file", c.AuthFile),
		slog.Duration("timeout", c.Timeout),
		slog.Bool("ignore_http_errors", c.IgnoreHTTPErrors),
		slog.String("client_name", c.ClientName),
		slog.String("min_version", c.MinVersion),
		slog.Int("max_concurrent", c.MaxConcurrent),
	)
}
