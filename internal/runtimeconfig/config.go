package runtimeconfig

import (
	"errors"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/robfig/cron/v3"
)

// EnvPrefix namespaces every environment override.
const EnvPrefix = "PAGECMS_"

var (
	ErrSchedulingRequiresVersioning  = errors.New("pagecms config: scheduling requires versioning to be enabled")
	ErrCommandsCronRequiresScheduler = errors.New("pagecms config: cron auto-registration requires the scheduler to be enabled")
	ErrVersionRetentionInvalid       = errors.New("pagecms config: version retention must be zero or positive")
	ErrVersionIntervalInvalid        = errors.New("pagecms config: version min interval must be zero or positive")
	ErrDefaultLanguageRequired       = errors.New("pagecms config: default language is required")
	ErrDuplicateAttemptsInvalid      = errors.New("pagecms config: duplicate slug attempts must be positive")
	ErrCronExpressionInvalid         = errors.New("pagecms config: cron expression is invalid")
	ErrPreviewTTLInvalid             = errors.New("pagecms config: preview ttl must be positive and within the maximum")
	ErrLockProviderUnknown           = errors.New("pagecms config: lock provider is invalid")
	ErrLockRedisURLRequired          = errors.New("pagecms config: redis url is required for the redis lock provider")
	ErrStorageDriverUnknown          = errors.New("pagecms config: storage driver is invalid")
	ErrStorageDSNRequired            = errors.New("pagecms config: storage dsn is required")
	ErrMarkdownContentDirRequired    = errors.New("pagecms config: markdown content directory is required when markdown is enabled")
	ErrLoggingProviderUnknown        = errors.New("pagecms config: logging provider is invalid")
	ErrLoggingLevelInvalid           = errors.New("pagecms config: logging level is invalid")
	ErrLoggingFormatInvalid          = errors.New("pagecms config: logging format is invalid")
)

// Config aggregates the runtime settings of the page engine. Every field can be overridden
// through PAGECMS_ prefixed environment variables via LoadEnv.
type Config struct {
	Pages      PagesConfig      `envPrefix:"PAGES_"`
	Versioning VersioningConfig `envPrefix:"VERSIONING_"`
	Scheduler  SchedulerConfig  `envPrefix:"SCHEDULER_"`
	Previews   PreviewsConfig   `envPrefix:"PREVIEWS_"`
	Locks      LocksConfig      `envPrefix:"LOCKS_"`
	Storage    StorageConfig    `envPrefix:"STORAGE_"`
	Cache      CacheConfig      `envPrefix:"CACHE_"`
	Logging    LoggingConfig    `envPrefix:"LOG_"`
	Markdown   MarkdownConfig   `envPrefix:"MARKDOWN_"`
	Commands   CommandsConfig   `envPrefix:"COMMANDS_"`
}

// PagesConfig tunes validation and slug handling.
type PagesConfig struct {
	ReservedSlugs         []string `env:"RESERVED_SLUGS" envSeparator:","`
	TrackedFields         []string `env:"TRACKED_FIELDS" envSeparator:","`
	EnforceHTTPSCanonical bool     `env:"ENFORCE_HTTPS_CANONICAL"`
	DefaultLanguage       string   `env:"DEFAULT_LANGUAGE"`
	DuplicateSlugAttempts int      `env:"DUPLICATE_SLUG_ATTEMPTS"`
}

// VersioningConfig controls snapshot recording.
type VersioningConfig struct {
	Enabled     bool          `env:"ENABLED"`
	Retention   int           `env:"RETENTION"`
	MinInterval time.Duration `env:"MIN_INTERVAL"`
}

type SchedulerConfig struct {
	Enabled     bool          `env:"ENABLED"`
	SweepCron   string        `env:"SWEEP_CRON"`
	PurgeCron   string        `env:"PURGE_CRON"`
	PageTimeout time.Duration `env:"PAGE_TIMEOUT"`
	BatchSize   int           `env:"BATCH_SIZE"`
}

type PreviewsConfig struct {
	DefaultTTL time.Duration `env:"DEFAULT_TTL"`
	MaxTTL     time.Duration `env:"MAX_TTL"`
}

// LocksConfig selects the page lock provider. The memory provider only serialises writers of
// a single process.
type LocksConfig struct {
	Provider   string        `env:"PROVIDER"`
	RedisURL   string        `env:"REDIS_URL"`
	Prefix     string        `env:"PREFIX"`
	LeaseTTL   time.Duration `env:"LEASE_TTL"`
	RetryDelay time.Duration `env:"RETRY_DELAY"`
}

type StorageConfig struct {
	Driver string `env:"DRIVER"`
	DSN    string `env:"DSN"`
	Debug  bool   `env:"DEBUG"`
}

// CacheConfig wraps version reads with go-repository-cache when enabled.
type CacheConfig struct {
	Enabled bool          `env:"ENABLED"`
	TTL     time.Duration `env:"TTL"`
}

type LoggingConfig struct {
	Provider  string   `env:"PROVIDER"`
	Level     string   `env:"LEVEL"`
	Format    string   `env:"FORMAT"`
	AddSource bool     `env:"ADD_SOURCE"`
	Focus     []string `env:"FOCUS" envSeparator:","`
}

type MarkdownConfig struct {
	Enabled    bool     `env:"ENABLED"`
	ContentDir string   `env:"CONTENT_DIR"`
	Pattern    string   `env:"PATTERN"`
	Recursive  bool     `env:"RECURSIVE"`
	Languages  []string `env:"LANGUAGES" envSeparator:","`
	SafeMode   bool     `env:"SAFE_MODE"`
}

type CommandsConfig struct {
	Enabled          bool `env:"ENABLED"`
	AutoRegisterCron bool `env:"AUTO_REGISTER_CRON"`
}

// DefaultConfig returns the settings used when nothing is overridden.
func DefaultConfig() Config {
	return Config{
		Pages: PagesConfig{
			ReservedSlugs:         []string{"admin", "api", "static", "media", "sitemap", "robots", "assets"},
			TrackedFields:         []string{"title", "slug", "body", "banner", "template", "status", "language"},
			EnforceHTTPSCanonical: true,
			DefaultLanguage:       "en",
			DuplicateSlugAttempts: 50,
		},
		Versioning: VersioningConfig{
			Enabled:   true,
			Retention: 20,
		},
		Scheduler: SchedulerConfig{
			Enabled:     true,
			SweepCron:   "@every 1m",
			PurgeCron:   "@hourly",
			PageTimeout: 10 * time.Second,
			BatchSize:   200,
		},
		Previews: PreviewsConfig{
			DefaultTTL: 24 * time.Hour,
			MaxTTL:     7 * 24 * time.Hour,
		},
		Locks: LocksConfig{
			Provider:   "memory",
			LeaseTTL:   30 * time.Second,
			RetryDelay: 50 * time.Millisecond,
		},
		Storage: StorageConfig{
			Driver: "sqlite",
			DSN:    "file:pagecms.db?cache=shared&_fk=1",
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     time.Minute,
		},
		Logging: LoggingConfig{
			Provider: "console",
			Level:    "info",
		},
		Markdown: MarkdownConfig{
			ContentDir: "content",
			Pattern:    "*.md",
			Recursive:  true,
			Languages:  []string{"en", "sv"},
		},
		Commands: CommandsConfig{
			Enabled: true,
		},
	}
}

// LoadEnv overlays PAGECMS_ environment variables on top of base. Unset variables keep the
// value already present in base.
func LoadEnv(base Config) (Config, error) {
	return loadEnv(base, env.Options{Prefix: EnvPrefix})
}

// LoadEnvFrom behaves like LoadEnv but reads from the supplied map instead of the process
// environment.
func LoadEnvFrom(base Config, environment map[string]string) (Config, error) {
	return loadEnv(base, env.Options{Prefix: EnvPrefix, Environment: environment})
}

func loadEnv(base Config, opts env.Options) (Config, error) {
	cfg := base
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return Config{}, fmt.Errorf("pagecms config: parse environment: %w", err)
	}
	return cfg, nil
}

// Validate reports the first inconsistent setting.
func (cfg Config) Validate() error {
	if strings.TrimSpace(cfg.Pages.DefaultLanguage) == "" {
		return ErrDefaultLanguageRequired
	}
	if cfg.Pages.DuplicateSlugAttempts <= 0 {
		return ErrDuplicateAttemptsInvalid
	}
	if cfg.Versioning.Retention < 0 {
		return ErrVersionRetentionInvalid
	}
	if cfg.Versioning.MinInterval < 0 {
		return ErrVersionIntervalInvalid
	}
	if cfg.Scheduler.Enabled && !cfg.Versioning.Enabled {
		return ErrSchedulingRequiresVersioning
	}
	if cfg.Commands.AutoRegisterCron && !cfg.Scheduler.Enabled {
		return ErrCommandsCronRequiresScheduler
	}
	if cfg.Scheduler.Enabled {
		for _, expr := range []string{cfg.Scheduler.SweepCron, cfg.Scheduler.PurgeCron} {
			if err := validateCron(expr); err != nil {
				return err
			}
		}
	}
	if cfg.Previews.DefaultTTL <= 0 || cfg.Previews.MaxTTL <= 0 || cfg.Previews.DefaultTTL > cfg.Previews.MaxTTL {
		return ErrPreviewTTLInvalid
	}
	if err := cfg.Locks.validate(); err != nil {
		return err
	}
	if err := cfg.Storage.validate(); err != nil {
		return err
	}
	if cfg.Markdown.Enabled && strings.TrimSpace(cfg.Markdown.ContentDir) == "" {
		return ErrMarkdownContentDirRequired
	}
	return cfg.Logging.validate()
}

func (l LocksConfig) validate() error {
	switch normalize(l.Provider) {
	case "", "memory":
		return nil
	case "redis":
		if strings.TrimSpace(l.RedisURL) == "" {
			return ErrLockRedisURLRequired
		}
		if _, err := url.Parse(l.RedisURL); err != nil {
			return fmt.Errorf("%w: %v", ErrLockRedisURLRequired, err)
		}
		return nil
	default:
		return fmt.Errorf("%w: %s", ErrLockProviderUnknown, l.Provider)
	}
}

func (s StorageConfig) validate() error {
	switch normalize(s.Driver) {
	case "sqlite", "sqlite3", "postgres", "postgresql":
	default:
		return fmt.Errorf("%w: %s", ErrStorageDriverUnknown, s.Driver)
	}
	if strings.TrimSpace(s.DSN) == "" {
		return ErrStorageDSNRequired
	}
	return nil
}

func (l LoggingConfig) validate() error {
	provider := normalize(l.Provider)
	if !slices.Contains(supportedProviders, provider) {
		return fmt.Errorf("%w: %s", ErrLoggingProviderUnknown, l.Provider)
	}
	if level := normalize(l.Level); level != "" && !slices.Contains(supportedLevels, level) {
		return fmt.Errorf("%w: %s", ErrLoggingLevelInvalid, l.Level)
	}
	if provider == "gologger" {
		if format := normalize(l.Format); format != "" && !slices.Contains(supportedFormats, format) {
			return fmt.Errorf("%w: %s", ErrLoggingFormatInvalid, l.Format)
		}
	}
	return nil
}

var (
	supportedProviders = []string{"console", "gologger"}
	supportedLevels    = []string{"trace", "debug", "info", "warn", "error", "fatal"}
	supportedFormats   = []string{"json", "console", "pretty"}
	cronParser         = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
)

func validateCron(expr string) error {
	if _, err := cronParser.Parse(strings.TrimSpace(expr)); err != nil {
		return fmt.Errorf("%w: %q: %v", ErrCronExpressionInvalid, expr, err)
	}
	return nil
}

func normalize(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
