package pagecms

import "github.com/municipio/pagecms/internal/runtimeconfig"

var (
	ErrSchedulingRequiresVersioning  = runtimeconfig.ErrSchedulingRequiresVersioning
	ErrCommandsCronRequiresScheduler = runtimeconfig.ErrCommandsCronRequiresScheduler
	ErrVersionRetentionInvalid       = runtimeconfig.ErrVersionRetentionInvalid
	ErrVersionIntervalInvalid        = runtimeconfig.ErrVersionIntervalInvalid
	ErrDefaultLanguageRequired       = runtimeconfig.ErrDefaultLanguageRequired
	ErrDuplicateAttemptsInvalid      = runtimeconfig.ErrDuplicateAttemptsInvalid
	ErrCronExpressionInvalid         = runtimeconfig.ErrCronExpressionInvalid
	ErrPreviewTTLInvalid             = runtimeconfig.ErrPreviewTTLInvalid
	ErrLockProviderUnknown           = runtimeconfig.ErrLockProviderUnknown
	ErrLockRedisURLRequired          = runtimeconfig.ErrLockRedisURLRequired
	ErrStorageDriverUnknown          = runtimeconfig.ErrStorageDriverUnknown
	ErrStorageDSNRequired            = runtimeconfig.ErrStorageDSNRequired
	ErrMarkdownContentDirRequired    = runtimeconfig.ErrMarkdownContentDirRequired
	ErrLoggingProviderUnknown        = runtimeconfig.ErrLoggingProviderUnknown
	ErrLoggingLevelInvalid           = runtimeconfig.ErrLoggingLevelInvalid
	ErrLoggingFormatInvalid          = runtimeconfig.ErrLoggingFormatInvalid
)

type (
	Config           = runtimeconfig.Config
	PagesConfig      = runtimeconfig.PagesConfig
	VersioningConfig = runtimeconfig.VersioningConfig
	SchedulerConfig  = runtimeconfig.SchedulerConfig
	PreviewsConfig   = runtimeconfig.PreviewsConfig
	LocksConfig      = runtimeconfig.LocksConfig
	StorageConfig    = runtimeconfig.StorageConfig
	CacheConfig      = runtimeconfig.CacheConfig
	LoggingConfig    = runtimeconfig.LoggingConfig
	MarkdownConfig   = runtimeconfig.MarkdownConfig
	CommandsConfig   = runtimeconfig.CommandsConfig
)

func DefaultConfig() Config {
	return runtimeconfig.DefaultConfig()
}

// LoadEnv overlays PAGECMS_ environment variables on top of base.
func LoadEnv(base Config) (Config, error) {
	return runtimeconfig.LoadEnv(base)
}
