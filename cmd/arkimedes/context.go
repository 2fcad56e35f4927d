package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"arkimedes/internal/arkdb"
	"arkimedes/internal/config"
	"arkimedes/internal/ezid"
	"arkimedes/internal/logging"
	"arkimedes/internal/tracing"
)

type commandContext struct {
	configFlag *string
	quietFlag  *bool

	configOnce sync.Once
	config     *config.Config
	configErr  error

	loggerOnce sync.Once
	logger     *slog.Logger
	logCloser  io.Closer
	loggerErr  error

	tracerOnce sync.Once
	tracer     *tracing.Provider
	tracerErr  error

	closeOnce sync.Once
}

func newCommandContext(configFlag *string, quietFlag *bool) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		quietFlag:  quietFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

func (c *commandContext) configPath() string {
	if c.configFlag == nil {
		return ""
	}
	return strings.TrimSpace(*c.configFlag)
}

// loggerFor returns the process logger, writing to the command's stderr.
func (c *commandContext) loggerFor(cmd *cobra.Command) (*slog.Logger, error) {
	c.loggerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.loggerErr = err
			return
		}
		logger, closer, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr())
		if err != nil {
			c.loggerErr = fmt.Errorf("setup logging: %w", err)
			return
		}
		if c.quietFlag != nil && *c.quietFlag {
			logger = logging.WithLevelOverride(logger, slog.LevelWarn)
		}
		c.logger = logger
		c.logCloser = closer
	})
	return c.logger, c.loggerErr
}

func (c *commandContext) tracerProvider() (*tracing.Provider, error) {
	c.tracerOnce.Do(func() {
		cfg, err := c.ensureConfig()
		if err != nil {
			c.tracerErr = err
			return
		}
		c.tracer, c.tracerErr = tracing.NewProvider(cfg.Tracing)
	})
	return c.tracer, c.tracerErr
}

// registryClient builds a client from config. Credentials are required.
func (c *commandContext) registryClient(cmd *cobra.Command) (*ezid.Client, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if err := cfg.RequireCredentials(); err != nil {
		return nil, err
	}
	logger, err := c.loggerFor(cmd)
	if err != nil {
		return nil, err
	}
	provider, err := c.tracerProvider()
	if err != nil {
		return nil, err
	}
	return ezid.New(ezid.Config{
		BaseURL:        cfg.Registry.BaseURL,
		Username:       cfg.Registry.Username,
		Password:       cfg.Registry.Password,
		Shoulder:       cfg.Registry.Shoulder,
		UserAgent:      cfg.Registry.UserAgent,
		TimeoutSeconds: cfg.Registry.TimeoutSeconds,
	}, ezid.WithLogger(logger), ezid.WithTracer(provider.Tracer()))
}

// openStore opens the mirror database, or returns nil when it is disabled.
func (c *commandContext) openStore() (*arkdb.Store, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}
	if !cfg.Database.Enabled {
		return nil, nil
	}
	store, err := arkdb.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("open mirror database: %w", err)
	}
	return store, nil
}

// requireStore opens the mirror database and fails when it is disabled.
func (c *commandContext) requireStore() (*arkdb.Store, error) {
	store, err := c.openStore()
	if err != nil {
		return nil, err
	}
	if store == nil {
		return nil, errors.New("mirror database is disabled (set database.enabled = true)")
	}
	return store, nil
}

// close flushes traces and closes the log file. Commands that log defer it.
func (c *commandContext) close() {
	c.closeOnce.Do(func() {
		if c.tracer != nil {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := c.tracer.Shutdown(ctx); err != nil && c.logger != nil {
				c.logger.Warn("trace flush failed", logging.Error(err))
			}
		}
		if c.logCloser != nil {
			_ = c.logCloser.Close()
		}
	})
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
