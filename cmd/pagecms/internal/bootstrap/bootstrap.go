package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"strings"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/uptrace/bun"

	"github.com/municipio/pagecms"
	"github.com/municipio/pagecms/internal/di"
	"github.com/municipio/pagecms/internal/identity"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/storage"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// Options captures how a CLI run builds its module.
type Options struct {
	// EnvFile is loaded before the environment is read. A missing file is ignored unless
	// RequireEnvFile is set.
	EnvFile        string
	RequireEnvFile bool
	// Configure adjusts the configuration after environment overrides are applied.
	Configure      func(*pagecms.Config)
	Migrate        bool
	LoggerProvider interfaces.LoggerProvider
	DIOptions      []di.Option
}

// Runtime bundles the module with the database it owns.
type Runtime struct {
	Config pagecms.Config
	Module *pagecms.Module
	DB     *bun.DB
	Logger interfaces.Logger
}

// Build loads configuration, opens storage and constructs the module.
func Build(ctx context.Context, opts Options) (*Runtime, error) {
	if err := loadEnvFile(opts.EnvFile, opts.RequireEnvFile); err != nil {
		return nil, err
	}
	cfg, err := pagecms.LoadEnv(pagecms.DefaultConfig())
	if err != nil {
		return nil, err
	}
	if opts.Configure != nil {
		opts.Configure(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	db, err := storage.Open(ctx, storage.Options{
		Driver: cfg.Storage.Driver,
		DSN:    cfg.Storage.DSN,
		Debug:  cfg.Storage.Debug,
		Logger: logging.StorageLogger(opts.LoggerProvider),
	})
	if err != nil {
		return nil, err
	}
	if opts.Migrate {
		if err := storage.Migrate(ctx, db); err != nil {
			_ = db.Close()
			return nil, err
		}
	}

	diOpts := append([]di.Option{di.WithBunDB(db)}, opts.DIOptions...)
	if opts.LoggerProvider != nil {
		diOpts = append(diOpts, di.WithLoggerProvider(opts.LoggerProvider))
	}
	module, err := pagecms.New(cfg, diOpts...)
	if err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("initialise module: %w", err)
	}

	return &Runtime{
		Config: cfg,
		Module: module,
		DB:     db,
		Logger: logging.ModuleLogger(module.Container().LoggerProvider(), "pagecms.cli"),
	}, nil
}

// Close stops background work and closes the database.
func (r *Runtime) Close(ctx context.Context) error {
	if r == nil {
		return nil
	}
	var errs []error
	if r.Module != nil {
		errs = append(errs, r.Module.Close(ctx))
	}
	if r.DB != nil {
		errs = append(errs, r.DB.Close())
	}
	return errors.Join(errs...)
}

func loadEnvFile(path string, required bool) error {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if !required && errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ParseTenant accepts a tenant UUID or a municipality code.
func ParseTenant(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, errors.New("tenant is required")
	}
	if id, err := uuid.Parse(trimmed); err == nil {
		return id, nil
	}
	return identity.TenantUUID(trimmed), nil
}

// ParseUUID converts the supplied string into a UUID, returning uuid.Nil when the input is empty.
func ParseUUID(value string) (uuid.UUID, error) {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return uuid.Nil, nil
	}
	return uuid.Parse(trimmed)
}
