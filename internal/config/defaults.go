package config

const (
	defaultConfigPath         = "~/.config/arkimedes/config.toml"
	projectConfigName         = "arkimedes.toml"
	defaultRegistryBaseURL    = "https://ezid.cdlib.org"
	defaultUserAgent          = "arkimedes/dev"
	defaultRegistryTimeout    = 30
	defaultConcurrency        = 2
	defaultMaxAttempts        = 4
	defaultRetryBaseDelayMS   = 500
	defaultRetryMaxDelayMS    = 10000
	defaultCallTimeoutSeconds = 60
	defaultDataDir            = "~/.local/share/arkimedes"
	defaultLogDir             = "~/.local/share/arkimedes/logs"
	defaultDatabaseFile       = "arks.db"
	defaultPublisher          = "Iowa State University Library"
	defaultType               = "Collection"
	defaultProfile            = "dc"
	defaultReconcileBaseURL   = "https://id.loc.gov"
	defaultReconcileMinScore  = 0.60
	defaultReconcileAccept    = 0.70
	defaultReconcileTimeout   = 15
	defaultPDFToText          = "pdftotext"
	defaultSourcesTimeout     = 60
	defaultLogFormat          = "console"
	defaultLogLevel           = "info"
	defaultTraceFile          = "traces.jsonl"
	defaultLogRetentionDays   = 30

	maxConcurrency = 16
)

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		Registry: Registry{
			BaseURL:        defaultRegistryBaseURL,
			UserAgent:      defaultUserAgent,
			TimeoutSeconds: defaultRegistryTimeout,
		},
		Batch: Batch{
			Concurrency:        defaultConcurrency,
			MaxAttempts:        defaultMaxAttempts,
			RetryBaseDelayMS:   defaultRetryBaseDelayMS,
			RetryMaxDelayMS:    defaultRetryMaxDelayMS,
			CallTimeoutSeconds: defaultCallTimeoutSeconds,
		},
		Paths: Paths{
			DataDir: defaultDataDir,
			LogDir:  defaultLogDir,
		},
		Database: Database{
			Enabled:        true,
			DuplicateCheck: true,
		},
		Defaults: Defaults{
			Publisher: defaultPublisher,
			Type:      defaultType,
			Profile:   defaultProfile,
			MirrorERC: true,
		},
		Reconcile: Reconcile{
			BaseURL:        defaultReconcileBaseURL,
			MinScore:       defaultReconcileMinScore,
			AcceptScore:    defaultReconcileAccept,
			TimeoutSeconds: defaultReconcileTimeout,
		},
		Sources: Sources{
			PDFToText:      defaultPDFToText,
			TimeoutSeconds: defaultSourcesTimeout,
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
