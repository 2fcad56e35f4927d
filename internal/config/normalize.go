package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeRegistry()
	c.normalizeBatch()
	if err := c.normalizeDatabase(); err != nil {
		return err
	}
	c.normalizeDefaults()
	c.normalizeReconcile()
	c.normalizeSources()
	if err := c.normalizeTracing(); err != nil {
		return err
	}
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.DataDir) == "" {
		c.Paths.DataDir = defaultDataDir
	}
	if c.Paths.DataDir, err = ExpandPath(c.Paths.DataDir); err != nil {
		return fmt.Errorf("paths.data_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = filepath.Join(c.Paths.DataDir, "logs")
	}
	if c.Paths.LogDir, err = ExpandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeRegistry() {
	c.Registry.BaseURL = strings.TrimRight(strings.TrimSpace(c.Registry.BaseURL), "/")
	if c.Registry.BaseURL == "" {
		c.Registry.BaseURL = defaultRegistryBaseURL
	}
	if c.Registry.Username == "" {
		if value, ok := os.LookupEnv("EZID_USERNAME"); ok {
			c.Registry.Username = value
		}
	}
	if c.Registry.Password == "" {
		if value, ok := os.LookupEnv("EZID_PASSWORD"); ok {
			c.Registry.Password = value
		}
	}
	if c.Registry.Shoulder == "" {
		if value, ok := os.LookupEnv("EZID_SHOULDER"); ok {
			c.Registry.Shoulder = value
		}
	}
	c.Registry.Username = strings.TrimSpace(c.Registry.Username)
	c.Registry.Shoulder = strings.TrimSpace(c.Registry.Shoulder)
	c.Registry.UserAgent = strings.TrimSpace(c.Registry.UserAgent)
	if c.Registry.UserAgent == "" {
		c.Registry.UserAgent = defaultUserAgent
	}
	if c.Registry.TimeoutSeconds <= 0 {
		c.Registry.TimeoutSeconds = defaultRegistryTimeout
	}
}

func (c *Config) normalizeBatch() {
	if c.Batch.Concurrency == 0 {
		c.Batch.Concurrency = defaultConcurrency
	}
	if c.Batch.MaxAttempts == 0 {
		c.Batch.MaxAttempts = defaultMaxAttempts
	}
	if c.Batch.RetryMaxDelayMS == 0 {
		c.Batch.RetryMaxDelayMS = defaultRetryMaxDelayMS
	}
	if c.Batch.CallTimeoutSeconds == 0 {
		c.Batch.CallTimeoutSeconds = defaultCallTimeoutSeconds
	}
}

func (c *Config) normalizeDatabase() error {
	path := strings.TrimSpace(c.Database.Path)
	if path == "" {
		path = filepath.Join(c.Paths.DataDir, defaultDatabaseFile)
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("database.path: %w", err)
	}
	c.Database.Path = expanded
	return nil
}

func (c *Config) normalizeDefaults() {
	c.Defaults.Publisher = strings.TrimSpace(c.Defaults.Publisher)
	c.Defaults.Type = strings.TrimSpace(c.Defaults.Type)
	c.Defaults.Profile = strings.ToLower(strings.TrimSpace(c.Defaults.Profile))
}

func (c *Config) normalizeReconcile() {
	c.Reconcile.BaseURL = strings.TrimRight(strings.TrimSpace(c.Reconcile.BaseURL), "/")
	if c.Reconcile.BaseURL == "" {
		c.Reconcile.BaseURL = defaultReconcileBaseURL
	}
	if c.Reconcile.TimeoutSeconds <= 0 {
		c.Reconcile.TimeoutSeconds = defaultReconcileTimeout
	}
}

func (c *Config) normalizeSources() {
	c.Sources.PDFToText = strings.TrimSpace(c.Sources.PDFToText)
	c.Sources.OAIBaseURL = strings.TrimSpace(c.Sources.OAIBaseURL)
	c.Sources.OAISet = strings.TrimSpace(c.Sources.OAISet)
	if c.Sources.TimeoutSeconds <= 0 {
		c.Sources.TimeoutSeconds = defaultSourcesTimeout
	}
}

func (c *Config) normalizeTracing() error {
	if !c.Tracing.Enabled {
		return nil
	}
	path := strings.TrimSpace(c.Tracing.FilePath)
	if path == "" {
		path = filepath.Join(c.Paths.LogDir, defaultTraceFile)
	}
	expanded, err := ExpandPath(path)
	if err != nil {
		return fmt.Errorf("tracing.file_path: %w", err)
	}
	c.Tracing.FilePath = expanded
	return nil
}

func (c *Config) normalizeLogging() {
	format := strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch format {
	case "", "console", "text", "pretty":
		format = "console"
	case "json":
	}
	c.Logging.Format = format

	level := strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if level == "" {
		level = defaultLogLevel
	}
	c.Logging.Level = level
}
