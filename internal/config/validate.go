package config

import (
	"errors"
	"fmt"

	xlog "github.com/smnsjas/go-xpipe/internal/log"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateDaemon(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	switch c.Output.Format {
	case OutputAuto, OutputTable, OutputJSON, OutputYAML:
	default:
		return fmt.Errorf("output.format must be one of auto, table, json, yaml (got %q)", c.Output.Format)
	}
	return nil
}

func (c *Config) validateDaemon() error {
	if c.Daemon.TimeoutSeconds < 0 {
		return errors.New("daemon.timeout_seconds must be non-negative")
	}
	if c.Limits.RateLimit < 0 {
		return errors.New("limits.rate_limit must be non-negative")
	}
	if c.Limits.MaxConcurrent < 0 {
		return errors.New("limits.max_concurrent must be non-negative")
	}
	if c.Limits.AcquireTimeoutSeconds < 0 {
		return errors.New("limits.acquire_timeout_seconds must be non-negative")
	}
	// Everything else is checked where it is used.
	cc := c.ClientConfig(nil)
	if err := cc.Validate(); err != nil {
		return fmt.Errorf("daemon: %w", err)
	}
	return nil
}

func (c *Config) validateLogging() error {
	if c.Logging.Level != "" {
		if _, err := xlog.ParseLevel(c.Logging.Level); err != nil {
			return fmt.Errorf("logging.level: %w", err)
		}
	}
	if c.Logging.Format != "text" && c.Logging.Format != "json" {
		return fmt.Errorf("logging.format must be text or json (got %q)", c.Logging.Format)
	}
	if c.Logging.MaxSizeMB < 0 || c.Logging.MaxBackups < 0 {
		return errors.New("logging rotation limits must be non-negative")
	}
	return nil
}
