package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// Registry contains the identifier registry endpoint and credentials.
type Registry struct {
	BaseURL        string `toml:"base_url"`
	Username       string `toml:"username"`
	Password       string `toml:"password"`
	Shoulder       string `toml:"shoulder"`
	UserAgent      string `toml:"user_agent"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Batch contains worker pool and retry settings for bulk operations.
type Batch struct {
	Concurrency      int `toml:"concurrency"`
	MaxAttempts      int `toml:"max_attempts"`
	RetryBaseDelayMS int `toml:"retry_base_delay_ms"`
	RetryMaxDelayMS  int `toml:"retry_max_delay_ms"`
	// CallTimeoutSeconds bounds each registry call, including calls that
	// keep running after a batch is interrupted.
	CallTimeoutSeconds int `toml:"call_timeout_seconds"`
}

// Paths contains directory configuration.
type Paths struct {
	DataDir string `toml:"data_dir"`
	LogDir  string `toml:"log_dir"`
}

// Database contains settings for the local identifier mirror.
type Database struct {
	Enabled bool   `toml:"enabled"`
	Path    string `toml:"path"`
	// DuplicateCheck refuses to mint a record whose target the mirror
	// already holds.
	DuplicateCheck bool `toml:"duplicate_check"`
}

// Defaults contains metadata applied to records that lack it.
type Defaults struct {
	Publisher string `toml:"publisher"`
	Type      string `toml:"type"`
	Profile   string `toml:"profile"`
	// MirrorERC copies dc.creator, dc.title and dc.date into the erc.who,
	// erc.what and erc.when keys when those are absent.
	MirrorERC bool `toml:"mirror_erc"`
}

// Reconcile contains name-authority reconciliation settings.
type Reconcile struct {
	Enabled        bool    `toml:"enabled"`
	BaseURL        string  `toml:"base_url"`
	MinScore       float64 `toml:"min_score"`
	AcceptScore    float64 `toml:"accept_score"`
	TimeoutSeconds int     `toml:"timeout_seconds"`
}

// Sources contains settings for ingestion collaborators.
type Sources struct {
	PDFToText      string `toml:"pdftotext"`
	OAIBaseURL     string `toml:"oai_base_url"`
	OAISet         string `toml:"oai_set"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format string `toml:"format"`
	Level  string `toml:"level"`
	// File additionally writes JSON logs into paths.log_dir.
	File          bool `toml:"file"`
	RetentionDays int  `toml:"retention_days"`
}

// Tracing contains OpenTelemetry settings.
type Tracing struct {
	Enabled  bool   `toml:"enabled"`
	FilePath string `toml:"file_path"`
}

// Config encapsulates all configuration values for arkimedes.
//
// Configuration sections by subsystem:
//   - Registry: endpoint, credentials and default shoulder
//   - Batch: worker pool size and retry policy
//   - Paths: data and log directories
//   - Database: local identifier mirror
//   - Defaults: metadata profile defaults
//   - Reconcile: name-authority reconciliation
//   - Sources: PDF text extraction and OAI-PMH harvesting
//   - Logging: log format and level
//   - Tracing: OpenTelemetry span export
type Config struct {
	Registry  Registry  `toml:"registry"`
	Batch     Batch     `toml:"batch"`
	Paths     Paths     `toml:"paths"`
	Database  Database  `toml:"database"`
	Defaults  Defaults  `toml:"defaults"`
	Reconcile Reconcile `toml:"reconcile"`
	Sources   Sources   `toml:"sources"`
	Logging   Logging   `toml:"logging"`
	Tracing   Tracing   `toml:"tracing"`
}

// EnsureDirectories creates the data and log directories plus the parent of
// the mirror database.
func (c *Config) EnsureDirectories() error {
	dirs := []string{c.Paths.DataDir, c.Paths.LogDir}
	if c.Database.Enabled && strings.TrimSpace(c.Database.Path) != "" {
		dirs = append(dirs, filepath.Dir(c.Database.Path))
	}
	for _, dir := range dirs {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// HasCredentials reports whether registry credentials are configured.
func (c *Config) HasCredentials() bool {
	return strings.TrimSpace(c.Registry.Username) != "" && c.Registry.Password != ""
}

// RetryBaseDelay returns the first retry delay.
func (c *Config) RetryBaseDelay() time.Duration {
	return time.Duration(c.Batch.RetryBaseDelayMS) * time.Millisecond
}

// RetryMaxDelay returns the retry delay cap.
func (c *Config) RetryMaxDelay() time.Duration {
	return time.Duration(c.Batch.RetryMaxDelayMS) * time.Millisecond
}

// CallTimeout returns the per-call registry timeout used by batches.
func (c *Config) CallTimeout() time.Duration {
	return time.Duration(c.Batch.CallTimeoutSeconds) * time.Second
}

// PDFToTextBinary returns the pdftotext executable name.
func (c *Config) PDFToTextBinary() string {
	if bin := strings.TrimSpace(c.Sources.PDFToText); bin != "" {
		return bin
	}
	return defaultPDFToText
}

// Redacted returns a copy safe for display, with the password masked.
func (c Config) Redacted() Config {
	if c.Registry.Password != "" {
		c.Registry.Password = "********"
	}
	return c
}

// Marshal renders the configuration as TOML.
func (c Config) Marshal() ([]byte, error) {
	out, err := toml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	return out, nil
}
