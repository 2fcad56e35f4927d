package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"arkimedes/internal/services"
)

// Validate ensures the configuration is usable.
func (c *Config) Validate() error {
	if err := c.validateRegistry(); err != nil {
		return err
	}
	if err := c.validateBatch(); err != nil {
		return err
	}
	if err := c.validateReconcile(); err != nil {
		return err
	}
	if err := c.validateSources(); err != nil {
		return err
	}
	if err := c.validateLogging(); err != nil {
		return err
	}
	return nil
}

// RequireCredentials reports a helpful error when registry credentials are
// missing. Commands that mutate the registry call it before doing any work.
func (c *Config) RequireCredentials() error {
	if c.HasCredentials() {
		return nil
	}
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	return services.Wrap(services.ErrConfiguration, "config", "credentials",
		fmt.Sprintf("registry.username and registry.password are required. Set EZID_USERNAME/EZID_PASSWORD or edit %s (create with 'arkimedes config init')", defaultPath), nil)
}

func (c *Config) validateRegistry() error {
	if err := validateHTTPURL("registry.base_url", c.Registry.BaseURL); err != nil {
		return err
	}
	if c.Registry.TimeoutSeconds <= 0 {
		return errors.New("registry.timeout_seconds must be positive")
	}
	if c.Registry.Shoulder != "" && !strings.Contains(c.Registry.Shoulder, ":") {
		return fmt.Errorf("registry.shoulder %q must include a scheme such as ark:/ or doi:", c.Registry.Shoulder)
	}
	return nil
}

func (c *Config) validateBatch() error {
	if c.Batch.Concurrency < 1 || c.Batch.Concurrency > maxConcurrency {
		return fmt.Errorf("batch.concurrency must be between 1 and %d", maxConcurrency)
	}
	if c.Batch.MaxAttempts < 1 {
		return errors.New("batch.max_attempts must be at least 1")
	}
	if c.Batch.RetryBaseDelayMS < 0 {
		return errors.New("batch.retry_base_delay_ms must be >= 0")
	}
	if c.Batch.RetryMaxDelayMS < c.Batch.RetryBaseDelayMS {
		return errors.New("batch.retry_max_delay_ms must be >= batch.retry_base_delay_ms")
	}
	if c.Batch.CallTimeoutSeconds <= 0 {
		return errors.New("batch.call_timeout_seconds must be positive")
	}
	return nil
}

func (c *Config) validateReconcile() error {
	if c.Reconcile.MinScore < 0 || c.Reconcile.MinScore > 1 {
		return errors.New("reconcile.min_score must be between 0 and 1")
	}
	if c.Reconcile.AcceptScore < 0 || c.Reconcile.AcceptScore > 1 {
		return errors.New("reconcile.accept_score must be between 0 and 1")
	}
	if c.Reconcile.AcceptScore < c.Reconcile.MinScore {
		return errors.New("reconcile.accept_score must be >= reconcile.min_score")
	}
	if !c.Reconcile.Enabled {
		return nil
	}
	return validateHTTPURL("reconcile.base_url", c.Reconcile.BaseURL)
}

func (c *Config) validateSources() error {
	if c.Sources.OAIBaseURL == "" {
		return nil
	}
	return validateHTTPURL("sources.oai_base_url", c.Sources.OAIBaseURL)
}

func (c *Config) validateLogging() error {
	switch c.Logging.Format {
	case "console", "json":
	default:
		return fmt.Errorf("logging.format %q must be console or json", c.Logging.Format)
	}
	switch c.Logging.Level {
	case "debug", "info", "warn", "warning", "error":
	default:
		return fmt.Errorf("logging.level %q must be debug, info, warn or error", c.Logging.Level)
	}
	if c.Logging.RetentionDays < 0 {
		return errors.New("logging.retention_days must be >= 0")
	}
	return nil
}

func validateHTTPURL(field, value string) error {
	if strings.TrimSpace(value) == "" {
		return fmt.Errorf("%s must be set", field)
	}
	parsed, err := url.Parse(value)
	if err != nil {
		return fmt.Errorf("%s: %w", field, err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("%s must be an http(s) URL", field)
	}
	if parsed.Host == "" {
		return fmt.Errorf("%s must include a host", field)
	}
	return nil
}
