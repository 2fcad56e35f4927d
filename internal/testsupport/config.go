package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"arkimedes/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.Registry.Username = "apitest"
	cfgVal.Registry.Password = "apitest"
	cfgVal.Registry.Shoulder = "ark:/99999/fk4"
	cfgVal.Paths.DataDir = filepath.Join(base, "data")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Database.Path = filepath.Join(base, "data", "arks.db")
	cfgVal.Batch.RetryBaseDelayMS = 1
	cfgVal.Batch.RetryMaxDelayMS = 5

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithRegistry points the config at a fake registry and copies its
// credentials when it enforces any.
func WithRegistry(reg *Registry) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Registry.BaseURL = reg.URL
		if reg.Username != "" {
			b.cfg.Registry.Username = reg.Username
			b.cfg.Registry.Password = reg.Password
		}
	}
}

// WithoutDatabase disables the local mirror.
func WithoutDatabase() ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Database.Enabled = false
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. Each stub prints its name and exits 0.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"pdftotext", "pdfinfo"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		for _, name := range names {
			WriteExecutable(b.t, binDir, name, "echo "+name)
		}
		b.t.Setenv("PATH", binDir+string(os.PathListSeparator)+os.Getenv("PATH"))
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.DataDir)
}
