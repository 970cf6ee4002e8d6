package main

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/smnsjas/go-xpipe/client"
	"github.com/smnsjas/go-xpipe/internal/config"
	xlog "github.com/smnsjas/go-xpipe/internal/log"
)

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error

	logger   *slog.Logger
	closeLog func() error

	// promptAPIKey reads a key when --api-key is "-".
	promptAPIKey func(cmd *cobra.Command) (string, error)
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{
		flags:        flags,
		promptAPIKey: readAPIKey,
	}
}

// ensureConfig loads the configuration file once and applies flag overrides.
func (c *commandContext) ensureConfig(cmd *cobra.Command) (*config.Config, error) {
	c.configOnce.Do(func() {
		cfg, path, _, err := config.Load(strings.TrimSpace(c.flags.config))
		if err != nil {
			c.configErr = fmt.Errorf("load config: %w", err)
			return
		}
		if err := c.applyFlags(cmd, cfg); err != nil {
			c.configErr = err
			return
		}

		logger, closeLog, err := xlog.New(xlog.Options{
			Level:      cfg.Logging.Level,
			JSON:       cfg.Logging.Format == "json",
			File:       cfg.Logging.File,
			MaxSizeMB:  cfg.Logging.MaxSizeMB,
			MaxBackups: cfg.Logging.MaxBackups,
			Output:     cmd.ErrOrStderr(),
		})
		if err != nil {
			c.configErr = fmt.Errorf("set up logging: %w", err)
			return
		}

		c.config = cfg
		c.configPath = path
		c.logger = logger
		c.closeLog = closeLog
		logger.Debug("configuration loaded", "path", path, "config", cfg.ClientConfig(nil))
	})
	return c.config, c.configErr
}

func (c *commandContext) applyFlags(cmd *cobra.Command, cfg *config.Config) error {
	changed := func(name string) bool {
		f := cmd.Flags().Lookup(name)
		return f != nil && f.Changed
	}

	if changed("base-url") {
		cfg.Daemon.BaseURL = strings.TrimRight(strings.TrimSpace(c.flags.baseURL), "/")
	}
	if changed("ptb") {
		cfg.Daemon.PTB = c.flags.ptb
	}
	if changed("api-key") {
		key := strings.TrimSpace(c.flags.apiKey)
		if key == "-" {
			prompted, err := c.promptAPIKey(cmd)
			if err != nil {
				return fmt.Errorf("read api key: %w", err)
			}
			key = prompted
		}
		cfg.Daemon.APIKey = key
	}
	if changed("output") {
		cfg.Output.Format = strings.ToLower(strings.TrimSpace(c.flags.output))
	}
	if changed("log-level") {
		cfg.Logging.Level = strings.ToLower(strings.TrimSpace(c.flags.logLevel))
	}
	if changed("log-file") {
		path, err := config.ExpandPath(strings.TrimSpace(c.flags.logFile))
		if err != nil {
			return fmt.Errorf("resolve log file: %w", err)
		}
		cfg.Logging.File = path
	}
	if changed("timeout") {
		cfg.Daemon.TimeoutSeconds = int(c.flags.timeout.Seconds())
	}
	return cfg.Validate()
}

// withClient runs fn with a connected client that is closed afterwards.
func (c *commandContext) withClient(cmd *cobra.Command, fn func(context.Context, *client.Client) error) error {
	cfg, err := c.ensureConfig(cmd)
	if err != nil {
		return err
	}
	cl, err := client.New(cfg.ClientConfig(c.logger))
	if err != nil {
		return err
	}
	defer cl.Close()
	return fn(cmd.Context(), cl)
}

func (c *commandContext) close() error {
	if c.closeLog == nil {
		return nil
	}
	err := c.closeLog()
	c.closeLog = nil
	return err
}

func parseConnectionID(s string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(s))
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid connection id %q: %w", s, err)
	}
	return id, nil
}

func parseConnectionIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, a := range args {
		id, err := parseConnectionID(a)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, nil
}
