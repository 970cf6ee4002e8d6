package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeDaemon(); err != nil {
		return err
	}
	if err := c.normalizeLogging(); err != nil {
		return err
	}
	c.Output.Format = strings.ToLower(strings.TrimSpace(c.Output.Format))
	if c.Output.Format == "" {
		c.Output.Format = OutputAuto
	}
	return nil
}

func (c *Config) normalizeDaemon() error {
	c.Daemon.BaseURL = strings.TrimRight(strings.TrimSpace(c.Daemon.BaseURL), "/")
	c.Daemon.APIKey = strings.TrimSpace(c.Daemon.APIKey)
	c.Daemon.ClientName = strings.TrimSpace(c.Daemon.ClientName)
	c.Daemon.MinVersion = strings.TrimSpace(c.Daemon.MinVersion)

	var err error
	if c.Daemon.AuthFile, err = expandPath(strings.TrimSpace(c.Daemon.AuthFile)); err != nil {
		return fmt.Errorf("daemon.auth_file: %w", err)
	}
	return nil
}

func (c *Config) normalizeLogging() error {
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}

	var err error
	if c.Logging.File, err = expandPath(strings.TrimSpace(c.Logging.File)); err != nil {
		return fmt.Errorf("logging.file: %w", err)
	}
	return nil
}
