package di

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"time"

	command "github.com/goliatone/go-command"
	repocache "github.com/goliatone/go-repository-cache/cache"
	"github.com/uptrace/bun"

	auditcmd "github.com/municipio/pagecms/internal/commands/audit"
	markdowncmd "github.com/municipio/pagecms/internal/commands/markdown"
	pagescmd "github.com/municipio/pagecms/internal/commands/pages"
	previewscmd "github.com/municipio/pagecms/internal/commands/previews"
	"github.com/municipio/pagecms/internal/jobs"
	"github.com/municipio/pagecms/internal/locks"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/logging/console"
	"github.com/municipio/pagecms/internal/logging/gologger"
	"github.com/municipio/pagecms/internal/markdown"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/internal/previews"
	"github.com/municipio/pagecms/internal/runtimeconfig"
	"github.com/municipio/pagecms/internal/sanitize"
	"github.com/municipio/pagecms/internal/scheduler"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const redisConnectTimeout = 5 * time.Second

// CommandRegistry receives every command handler built by the container.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// CronRegistrar binds a handler to a cron expression. It matches the go-command registrar
// signature and CronRunner.Register.
type CronRegistrar func(command.HandlerConfig, any) error

// CommandSubscription is released when the container shuts down.
type CommandSubscription interface {
	Unsubscribe()
}

// CommandDispatcher subscribes handlers to a message bus.
type CommandDispatcher interface {
	RegisterCommand(handler any) (CommandSubscription, error)
}

// AuditStore records lifecycle events and exposes them to the audit commands.
type AuditStore interface {
	interfaces.AuditRecorder
	auditcmd.AuditCleaner
}

// Container wires the page engine from runtime configuration. Repositories default to memory
// implementations; WithBunDB switches every repository to the database.
type Container struct {
	Config runtimeconfig.Config

	loggerProvider interfaces.LoggerProvider
	authorizer     interfaces.Authorizer
	sanitizer      interfaces.Sanitizer
	clock          func() time.Time
	audit          AuditStore

	bunDB         *bun.DB
	cacheService  repocache.CacheService
	keySerializer repocache.KeySerializer
	locker        locks.Locker

	pageRepo    pages.PageRepository
	versionRepo pages.VersionRepository
	historyRepo pages.SlugHistoryRepository
	tokenRepo   previews.TokenRepository

	pageSvc     pages.Lifecycle
	previewSvc  previews.Service
	worker      *jobs.Worker
	cronRunner  *scheduler.CronRunner
	markdownFS  fs.FS
	markdownSvc interfaces.MarkdownService

	commandRegistry   CommandRegistry
	commandDispatcher CommandDispatcher
	cronRegistrar     CronRegistrar
	subscriptions     []CommandSubscription

	pageCommands     *pagescmd.HandlerSet
	previewCommands  *previewscmd.PurgeExpiredPreviewsHandler
	markdownCommands *markdowncmd.HandlerSet
	auditCleanup     *auditcmd.CleanupAuditHandler
	auditExport      *auditcmd.ExportAuditHandler
}

// Option mutates the container before services are built.
type Option func(*Container)

// WithLoggerProvider overrides the provider selected by Config.Logging.
func WithLoggerProvider(provider interfaces.LoggerProvider) Option {
	return func(c *Container) {
		c.loggerProvider = provider
	}
}

// WithAuthorizer replaces the allow-all authorizer.
func WithAuthorizer(authorizer interfaces.Authorizer) Option {
	return func(c *Container) {
		c.authorizer = authorizer
	}
}

func WithSanitizer(sanitizer interfaces.Sanitizer) Option {
	return func(c *Container) {
		c.sanitizer = sanitizer
	}
}

// WithClock overrides the clock shared by every service.
func WithClock(clock func() time.Time) Option {
	return func(c *Container) {
		c.clock = clock
	}
}

func WithAuditStore(store AuditStore) Option {
	return func(c *Container) {
		c.audit = store
	}
}

// WithBunDB backs every repository with the supplied database.
func WithBunDB(db *bun.DB) Option {
	return func(c *Container) {
		c.bunDB = db
	}
}

// WithCache overrides the repository cache built from Config.Cache.
func WithCache(service repocache.CacheService, serializer repocache.KeySerializer) Option {
	return func(c *Container) {
		c.cacheService = service
		c.keySerializer = serializer
	}
}

// WithLocker overrides the locker selected by Config.Locks.
func WithLocker(locker locks.Locker) Option {
	return func(c *Container) {
		c.locker = locker
	}
}

// WithMarkdownFS reads markdown sources from filesystem instead of Config.Markdown.ContentDir.
func WithMarkdownFS(filesystem fs.FS) Option {
	return func(c *Container) {
		c.markdownFS = filesystem
	}
}

// WithPageService overrides the lifecycle service binding.
func WithPageService(svc pages.Lifecycle) Option {
	return func(c *Container) {
		c.pageSvc = svc
	}
}

func WithPreviewService(svc previews.Service) Option {
	return func(c *Container) {
		c.previewSvc = svc
	}
}

// WithCommandRegistry registers every built command handler with reg.
func WithCommandRegistry(reg CommandRegistry) Option {
	return func(c *Container) {
		c.commandRegistry = reg
	}
}

// WithCommandDispatcher subscribes every built command handler to dispatcher.
func WithCommandDispatcher(dispatcher CommandDispatcher) Option {
	return func(c *Container) {
		c.commandDispatcher = dispatcher
	}
}

// WithCronRegistrar replaces the built-in cron runner when Commands.AutoRegisterCron is set.
func WithCronRegistrar(registrar CronRegistrar) Option {
	return func(c *Container) {
		c.cronRegistrar = registrar
	}
}

// NewContainer validates cfg and builds the services it describes.
func NewContainer(cfg runtimeconfig.Config, opts ...Option) (*Container, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	c := &Container{
		Config: cfg,
		clock:  time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(c)
		}
	}
	if c.clock == nil {
		c.clock = time.Now
	}
	if c.authorizer == nil {
		c.authorizer = interfaces.AllowAll()
	}
	if c.sanitizer == nil {
		c.sanitizer = sanitize.New()
	}
	if c.audit == nil {
		c.audit = jobs.NewInMemoryAuditRecorder()
	}

	steps := []func() error{
		c.configureLoggerProvider,
		c.configureCacheDefaults,
		c.configureLocker,
		c.configureRepositories,
		c.configureServices,
		c.configureMarkdown,
		c.configureScheduler,
		c.configureCommands,
	}
	for _, step := range steps {
		if err := step(); err != nil {
			c.Close()
			return nil, err
		}
	}
	return c, nil
}

func (c *Container) configureLoggerProvider() error {
	if c.loggerProvider != nil {
		return nil
	}
	logCfg := c.Config.Logging
	switch strings.ToLower(strings.TrimSpace(logCfg.Provider)) {
	case "gologger":
		provider, err := gologger.NewProvider(gologger.Config{
			Level:     logCfg.Level,
			Format:    logCfg.Format,
			AddSource: logCfg.AddSource,
			Focus:     logCfg.Focus,
		})
		if err != nil {
			return err
		}
		c.loggerProvider = provider
	default:
		c.loggerProvider = console.NewProvider(console.Options{
			MinLevel: console.ParseLevel(logCfg.Level),
		})
	}
	return nil
}

func (c *Container) configureCacheDefaults() error {
	if !c.Config.Cache.Enabled || c.bunDB == nil {
		return nil
	}
	if c.cacheService == nil {
		cfg := repocache.DefaultConfig()
		if c.Config.Cache.TTL > 0 {
			cfg.TTL = c.Config.Cache.TTL
		}
		service, err := repocache.NewCacheService(cfg)
		if err != nil {
			return fmt.Errorf("di: version cache: %w", err)
		}
		c.cacheService = service
	}
	if c.keySerializer == nil {
		c.keySerializer = repocache.NewDefaultKeySerializer()
	}
	return nil
}

func (c *Container) configureLocker() error {
	if c.locker != nil {
		return nil
	}
	lockCfg := c.Config.Locks
	logger := logging.ModuleLogger(c.loggerProvider, "pagecms.locks")
	switch strings.ToLower(strings.TrimSpace(lockCfg.Provider)) {
	case "redis":
		ctx, cancel := context.WithTimeout(context.Background(), redisConnectTimeout)
		defer cancel()
		locker, err := locks.NewRedisLockerFromURL(ctx, lockCfg.RedisURL, locks.RedisOptions{
			Prefix:     lockCfg.Prefix,
			LeaseTTL:   lockCfg.LeaseTTL,
			RetryDelay: lockCfg.RetryDelay,
			Logger:     logger,
		})
		if err != nil {
			return fmt.Errorf("di: redis locker: %w", err)
		}
		c.locker = locker
		logger.Info("locks.configured", "provider", "redis")
	default:
		c.locker = locks.NewMemoryLocker()
		logger.Debug("locks.configured", "provider", "memory")
	}
	return nil
}

func (c *Container) configureRepositories() error {
	if c.bunDB == nil {
		c.pageRepo = pages.NewMemoryPageRepository()
		c.versionRepo = pages.NewMemoryVersionRepository()
		c.historyRepo = pages.NewMemorySlugHistoryRepository()
		c.tokenRepo = previews.NewMemoryTokenRepository()
		return nil
	}
	c.pageRepo = pages.NewBunPageRepository(c.bunDB)
	if c.cacheService != nil {
		c.versionRepo = pages.NewBunVersionRepositoryWithCache(c.bunDB, c.cacheService, c.keySerializer)
	} else {
		c.versionRepo = pages.NewBunVersionRepository(c.bunDB)
	}
	c.historyRepo = pages.NewBunSlugHistoryRepository(c.bunDB)
	c.tokenRepo = previews.NewBunTokenRepository(c.bunDB)
	return nil
}

func (c *Container) configureServices() error {
	cfg := c.Config
	if c.pageSvc == nil {
		pageOpts := []pages.ServiceOption{
			pages.WithClock(c.clock),
			pages.WithLocker(c.locker),
			pages.WithLogger(logging.PagesLogger(c.loggerProvider)),
			pages.WithAuthorizer(c.authorizer),
			pages.WithSanitizer(c.sanitizer),
			pages.WithAuditRecorder(c.audit),
			pages.WithVersioningEnabled(cfg.Versioning.Enabled),
			pages.WithVersionRetentionLimit(cfg.Versioning.Retention),
			pages.WithVersionMinInterval(cfg.Versioning.MinInterval),
			pages.WithEnforceHTTPSCanonical(cfg.Pages.EnforceHTTPSCanonical),
			pages.WithDefaultLanguage(cfg.Pages.DefaultLanguage),
			pages.WithDuplicateSlugAttempts(cfg.Pages.DuplicateSlugAttempts),
		}
		if len(cfg.Pages.ReservedSlugs) > 0 {
			pageOpts = append(pageOpts, pages.WithReservedSlugs(cfg.Pages.ReservedSlugs...))
		}
		if len(cfg.Pages.TrackedFields) > 0 {
			pageOpts = append(pageOpts, pages.WithTrackedFields(cfg.Pages.TrackedFields...))
		}
		c.pageSvc = pages.NewService(c.pageRepo, c.versionRepo, c.historyRepo, pageOpts...)
	}

	if c.previewSvc == nil {
		c.previewSvc = previews.NewService(c.tokenRepo, c.pageRepo,
			previews.WithClock(c.clock),
			previews.WithLogger(logging.PreviewsLogger(c.loggerProvider)),
			previews.WithAuthorizer(c.authorizer),
			previews.WithAuditRecorder(c.audit),
			previews.WithDefaultTTL(cfg.Previews.DefaultTTL),
			previews.WithMaxTTL(cfg.Previews.MaxTTL),
		)
	}
	return nil
}

func (c *Container) configureMarkdown() error {
	mdCfg := c.Config.Markdown
	if !mdCfg.Enabled && c.markdownFS == nil {
		return nil
	}
	logger := logging.MarkdownLogger(c.loggerProvider)
	importer := markdown.NewImporter(markdown.ImporterConfig{
		Pages:     c.pageSvc,
		Sanitizer: c.sanitizer,
		Logger:    logger,
	})
	serviceCfg := markdown.Config{
		BasePath:        mdCfg.ContentDir,
		DefaultLanguage: c.Config.Pages.DefaultLanguage,
		Languages:       mdCfg.Languages,
		Pattern:         mdCfg.Pattern,
		Recursive:       mdCfg.Recursive,
		Parser: interfaces.ParseOptions{
			SafeMode: mdCfg.SafeMode,
		},
	}
	serviceOpts := []markdown.ServiceOption{
		markdown.WithImporter(importer),
		markdown.WithLogger(logger),
	}

	if c.markdownFS != nil {
		c.markdownSvc = markdown.NewServiceFS(c.markdownFS, serviceCfg, serviceOpts...)
		return nil
	}
	svc, err := markdown.NewService(serviceCfg, serviceOpts...)
	if err != nil {
		return fmt.Errorf("di: markdown service: %w", err)
	}
	c.markdownSvc = svc
	return nil
}

func (c *Container) configureScheduler() error {
	schedCfg := c.Config.Scheduler
	logger := logging.SchedulerLogger(c.loggerProvider)
	if !schedCfg.Enabled {
		logger.Debug("scheduler.configured", "provider", "disabled")
		return nil
	}
	c.worker = jobs.NewWorker(c.pageSvc,
		jobs.WithClock(c.clock),
		jobs.WithBatchSize(schedCfg.BatchSize),
		jobs.WithPageTimeout(schedCfg.PageTimeout),
		jobs.WithLogger(logger),
	)
	if c.cronRegistrar == nil {
		c.cronRunner = scheduler.NewCronRunner(scheduler.WithLogger(logger))
		c.cronRegistrar = c.cronRunner.Register
		logger.Info("scheduler.configured", "provider", "robfig-cron")
		return nil
	}
	logger.Info("scheduler.configured", "provider", "external")
	return nil
}

func (c *Container) configureCommands() error {
	cfg := c.Config
	if !cfg.Commands.Enabled {
		return nil
	}

	var sweeper pagescmd.Sweeper = disabledSweeper{}
	if c.worker != nil {
		sweeper = c.worker
	}
	set, err := pagescmd.RegisterPageCommands(nil, c.pageSvc, sweeper, c.loggerProvider, c.pageGates(),
		pagescmd.WithSweepOptions(pagescmd.SweepWithCronExpression(cfg.Scheduler.SweepCron)),
	)
	if err != nil {
		return err
	}
	c.pageCommands = set
	handlers := []any{set.Publish, set.Schedule, set.Rollback, set.Sweep}

	purge, err := previewscmd.RegisterPreviewCommands(nil, c.previewSvc, c.loggerProvider,
		previewscmd.PurgeWithCronExpression(cfg.Scheduler.PurgeCron),
	)
	if err != nil {
		return err
	}
	c.previewCommands = purge
	handlers = append(handlers, purge)

	if c.markdownSvc != nil {
		mdSet, err := markdowncmd.RegisterMarkdownCommands(nil, c.markdownSvc, c.loggerProvider, markdowncmd.FeatureGates{
			MarkdownEnabled: func() bool { return c.Config.Markdown.Enabled || c.markdownFS != nil },
		})
		if err != nil {
			return err
		}
		c.markdownCommands = mdSet
		handlers = append(handlers, mdSet.Import)
	}

	auditLogger := logging.ModuleLogger(c.loggerProvider, "pagecms.commands.audit")
	c.auditCleanup = auditcmd.NewCleanupAuditHandler(c.audit, auditLogger, auditcmd.CleanupWithClock(c.clock))
	c.auditExport = auditcmd.NewExportAuditHandler(c.audit, auditLogger)
	handlers = append(handlers, c.auditCleanup, c.auditExport)

	for _, handler := range handlers {
		if c.commandRegistry != nil {
			if err := c.commandRegistry.RegisterCommand(handler); err != nil {
				return fmt.Errorf("di: register command %T: %w", handler, err)
			}
		}
		if c.commandDispatcher != nil {
			sub, err := c.commandDispatcher.RegisterCommand(handler)
			if err != nil {
				return fmt.Errorf("di: subscribe command %T: %w", handler, err)
			}
			if sub != nil {
				c.subscriptions = append(c.subscriptions, sub)
			}
		}
	}

	if cfg.Commands.AutoRegisterCron {
		return c.registerCron()
	}
	return nil
}

type cronJob interface {
	CronOptions() command.HandlerConfig
}

func (c *Container) registerCron() error {
	if c.cronRegistrar == nil {
		return errors.New("di: cron registration requested without a scheduler")
	}
	var cronJobs []cronJob
	if c.pageCommands != nil && c.Config.Scheduler.Enabled {
		cronJobs = append(cronJobs, c.pageCommands.Sweep)
	}
	cronJobs = append(cronJobs, c.previewCommands)
	for _, job := range cronJobs {
		if err := c.cronRegistrar(job.CronOptions(), job); err != nil {
			return fmt.Errorf("di: register cron %T: %w", job, err)
		}
	}
	return nil
}

func (c *Container) pageGates() pagescmd.FeatureGates {
	return pagescmd.FeatureGates{
		VersioningEnabled: func() bool { return c.Config.Versioning.Enabled },
		SchedulingEnabled: func() bool { return c.Config.Scheduler.Enabled },
	}
}

// disabledSweeper stands in for the worker when scheduling is off. The sweep handler's
// feature gate rejects runs before it is reached.
type disabledSweeper struct{}

func (disabledSweeper) Process(context.Context) (jobs.SweepResult, error) {
	return jobs.SweepResult{}, nil
}

// Close releases command subscriptions. The database handle stays owned by the caller.
func (c *Container) Close() {
	for _, sub := range c.subscriptions {
		sub.Unsubscribe()
	}
	c.subscriptions = nil
}

// LoggerProvider exposes the configured logger provider.
func (c *Container) LoggerProvider() interfaces.LoggerProvider {
	return c.loggerProvider
}

// PageService returns the page lifecycle service.
func (c *Container) PageService() pages.Lifecycle {
	return c.pageSvc
}

// PreviewService returns the preview token issuer.
func (c *Container) PreviewService() previews.Service {
	return c.previewSvc
}

// MarkdownService returns the markdown importer service, nil when markdown is disabled.
func (c *Container) MarkdownService() interfaces.MarkdownService {
	return c.markdownSvc
}

// Worker returns the schedule sweeper, nil when scheduling is disabled.
func (c *Container) Worker() *jobs.Worker {
	return c.worker
}

// CronRunner returns the built-in cron runner. It is nil when scheduling is disabled or an
// external registrar was supplied.
func (c *Container) CronRunner() *scheduler.CronRunner {
	return c.cronRunner
}

func (c *Container) Locker() locks.Locker {
	return c.locker
}

func (c *Container) AuditStore() AuditStore {
	return c.audit
}

// PageCommands returns the page command handlers, nil when commands are disabled.
func (c *Container) PageCommands() *pagescmd.HandlerSet {
	return c.pageCommands
}

func (c *Container) PreviewCommands() *previewscmd.PurgeExpiredPreviewsHandler {
	return c.previewCommands
}

func (c *Container) MarkdownCommands() *markdowncmd.HandlerSet {
	return c.markdownCommands
}

// AuditCommands returns the audit cleanup and export handlers.
func (c *Container) AuditCommands() (*auditcmd.CleanupAuditHandler, *auditcmd.ExportAuditHandler) {
	return c.auditCleanup, c.auditExport
}
