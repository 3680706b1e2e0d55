package runtimeconfig_test

import (
	"errors"
	"testing"
	"time"

	"github.com/municipio/pagecms/internal/runtimeconfig"
)

func TestDefaultConfigValidates(t *testing.T) {
	if err := runtimeconfig.DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config should validate: %v", err)
	}
}

func TestDefaultConfigMatchesServiceLanguage(t *testing.T) {
	cfg := runtimeconfig.DefaultConfig()
	if cfg.Pages.DefaultLanguage != "en" {
		t.Fatalf("expected default language en got %q", cfg.Pages.DefaultLanguage)
	}
	if len(cfg.Markdown.Languages) == 0 || cfg.Markdown.Languages[0] != cfg.Pages.DefaultLanguage {
		t.Fatalf("expected markdown languages to lead with the default got %v", cfg.Markdown.Languages)
	}
}

func TestConfigValidateRejectsInconsistentSettings(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*runtimeconfig.Config)
		target error
	}{
		{"scheduler without versioning", func(c *runtimeconfig.Config) { c.Versioning.Enabled = false }, runtimeconfig.ErrSchedulingRequiresVersioning},
		{"cron without scheduler", func(c *runtimeconfig.Config) {
			c.Scheduler.Enabled = false
			c.Commands.AutoRegisterCron = true
		}, runtimeconfig.ErrCommandsCronRequiresScheduler},
		{"negative retention", func(c *runtimeconfig.Config) { c.Versioning.Retention = -1 }, runtimeconfig.ErrVersionRetentionInvalid},
		{"bad sweep cron", func(c *runtimeconfig.Config) { c.Scheduler.SweepCron = "every minute" }, runtimeconfig.ErrCronExpressionInvalid},
		{"preview ttl above max", func(c *runtimeconfig.Config) { c.Previews.DefaultTTL = 30 * 24 * time.Hour }, runtimeconfig.ErrPreviewTTLInvalid},
		{"redis without url", func(c *runtimeconfig.Config) { c.Locks.Provider = "redis" }, runtimeconfig.ErrLockRedisURLRequired},
		{"unknown lock provider", func(c *runtimeconfig.Config) { c.Locks.Provider = "etcd" }, runtimeconfig.ErrLockProviderUnknown},
		{"unknown driver", func(c *runtimeconfig.Config) { c.Storage.Driver = "mysql" }, runtimeconfig.ErrStorageDriverUnknown},
		{"missing dsn", func(c *runtimeconfig.Config) { c.Storage.DSN = " " }, runtimeconfig.ErrStorageDSNRequired},
		{"markdown without dir", func(c *runtimeconfig.Config) {
			c.Markdown.Enabled = true
			c.Markdown.ContentDir = ""
		}, runtimeconfig.ErrMarkdownContentDirRequired},
		{"unknown logger", func(c *runtimeconfig.Config) { c.Logging.Provider = "syslog" }, runtimeconfig.ErrLoggingProviderUnknown},
		{"bad level", func(c *runtimeconfig.Config) { c.Logging.Level = "verbose" }, runtimeconfig.ErrLoggingLevelInvalid},
		{"bad gologger format", func(c *runtimeconfig.Config) {
			c.Logging.Provider = "gologger"
			c.Logging.Format = "xml"
		}, runtimeconfig.ErrLoggingFormatInvalid},
		{"missing language", func(c *runtimeconfig.Config) { c.Pages.DefaultLanguage = "" }, runtimeconfig.ErrDefaultLanguageRequired},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := runtimeconfig.DefaultConfig()
			tc.mutate(&cfg)
			if err := cfg.Validate(); !errors.Is(err, tc.target) {
				t.Fatalf("expected %v got %v", tc.target, err)
			}
		})
	}
}

func TestLoadEnvOverlaysDefaults(t *testing.T) {
	cfg, err := runtimeconfig.LoadEnvFrom(runtimeconfig.DefaultConfig(), map[string]string{
		"PAGECMS_PAGES_DEFAULT_LANGUAGE":      "sv",
		"PAGECMS_PAGES_RESERVED_SLUGS":        "admin,kommun",
		"PAGECMS_VERSIONING_RETENTION":        "5",
		"PAGECMS_SCHEDULER_SWEEP_CRON":        "@every 30s",
		"PAGECMS_PREVIEWS_DEFAULT_TTL":        "2h",
		"PAGECMS_LOCKS_PROVIDER":              "redis",
		"PAGECMS_LOCKS_REDIS_URL":             "redis://localhost:6379/0",
		"PAGECMS_STORAGE_DRIVER":              "postgres",
		"PAGECMS_STORAGE_DSN":                 "postgres://cms@localhost/pages?sslmode=disable",
		"PAGECMS_LOG_LEVEL":                   "debug",
		"PAGECMS_COMMANDS_AUTO_REGISTER_CRON": "true",
	})
	if err != nil {
		t.Fatalf("load env: %v", err)
	}
	if cfg.Pages.DefaultLanguage != "sv" || len(cfg.Pages.ReservedSlugs) != 2 || cfg.Pages.ReservedSlugs[1] != "kommun" {
		t.Fatalf("unexpected pages config %+v", cfg.Pages)
	}
	if cfg.Versioning.Retention != 5 || !cfg.Versioning.Enabled {
		t.Fatalf("unexpected versioning config %+v", cfg.Versioning)
	}
	if cfg.Scheduler.SweepCron != "@every 30s" || cfg.Scheduler.PurgeCron != "@hourly" {
		t.Fatalf("unexpected scheduler config %+v", cfg.Scheduler)
	}
	if cfg.Previews.DefaultTTL != 2*time.Hour || cfg.Previews.MaxTTL != 7*24*time.Hour {
		t.Fatalf("unexpected previews config %+v", cfg.Previews)
	}
	if cfg.Locks.Provider != "redis" || cfg.Storage.Driver != "postgres" || cfg.Logging.Level != "debug" {
		t.Fatalf("overrides not applied: %+v %+v %+v", cfg.Locks, cfg.Storage, cfg.Logging)
	}
	if !cfg.Commands.AutoRegisterCron {
		t.Fatalf("expected cron auto registration")
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("overlaid config should validate: %v", err)
	}
}

func TestLoadEnvRejectsMalformedValues(t *testing.T) {
	_, err := runtimeconfig.LoadEnvFrom(runtimeconfig.DefaultConfig(), map[string]string{
		"PAGECMS_VERSIONING_RETENTION": "many",
	})
	if err == nil {
		t.Fatalf("expected parse error")
	}
}
