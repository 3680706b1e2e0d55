package previewscmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/scheduler"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const purgeExpiredMessageType = "pagecms.previews.purge"

// Purger removes preview tokens whose expiry has passed.
type Purger interface {
	PurgeExpired(ctx context.Context) (int, error)
}

// PurgeExpiredPreviewsCommand deletes every expired preview token.
type PurgeExpiredPreviewsCommand struct{}

// Type implements command.Message.
func (PurgeExpiredPreviewsCommand) Type() string { return purgeExpiredMessageType }

// Validate satisfies command.Message.
func (PurgeExpiredPreviewsCommand) Validate() error {
	return validation.ValidateStruct(&PurgeExpiredPreviewsCommand{})
}

type purgeHandlerConfig struct {
	cronConfig command.HandlerConfig
	timeout    time.Duration
}

// PurgeHandlerOption customises the purge handler.
type PurgeHandlerOption func(*purgeHandlerConfig)

// PurgeWithCronExpression overrides the cron expression used when registering the purge job.
func PurgeWithCronExpression(expression string) PurgeHandlerOption {
	return func(cfg *purgeHandlerConfig) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			cfg.cronConfig.Expression = trimmed
		}
	}
}

// PurgeWithTimeout overrides the default execution timeout.
func PurgeWithTimeout(timeout time.Duration) PurgeHandlerOption {
	return func(cfg *purgeHandlerConfig) {
		cfg.timeout = timeout
	}
}

// PurgeExpiredPreviewsHandler wraps the preview service purge for CLI and cron use.
type PurgeExpiredPreviewsHandler struct {
	purger     Purger
	logger     interfaces.Logger
	cronConfig command.HandlerConfig
	timeout    time.Duration
	removed    int
}

func NewPurgeExpiredPreviewsHandler(purger Purger, logger interfaces.Logger, opts ...PurgeHandlerOption) *PurgeExpiredPreviewsHandler {
	cfg := purgeHandlerConfig{
		cronConfig: command.HandlerConfig{
			Expression: scheduler.DefaultPurgeExpression,
		},
		timeout: commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &PurgeExpiredPreviewsHandler{
		purger:     purger,
		logger:     commands.EnsureLogger(logger),
		cronConfig: cfg.cronConfig,
		timeout:    cfg.timeout,
	}
}

// Execute satisfies command.Commander[PurgeExpiredPreviewsCommand].
func (h *PurgeExpiredPreviewsHandler) Execute(ctx context.Context, msg PurgeExpiredPreviewsCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	removed, err := h.purger.PurgeExpired(ctx)
	if err != nil {
		if ctx.Err() != nil {
			return commands.WrapContextError(ctx.Err())
		}
		return commands.WrapExecuteError(err)
	}
	h.removed = removed

	logging.WithFields(h.logger, map[string]any{
		"operation": "previews.purge",
		"removed":   removed,
	}).Debug("previews.command.purge.completed")
	return nil
}

// LastRemoved reports how many tokens the most recent run deleted.
func (h *PurgeExpiredPreviewsHandler) LastRemoved() int {
	return h.removed
}

// CronName names the job in the cron runner.
func (h *PurgeExpiredPreviewsHandler) CronName() string {
	return scheduler.JobPreviewsPurge
}

// CronHandler binds the purge to a cron runner.
func (h *PurgeExpiredPreviewsHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), PurgeExpiredPreviewsCommand{})
	}
}

// CronOptions returns the configured cron metadata.
func (h *PurgeExpiredPreviewsHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the purge handler to CLI integrations.
func (h *PurgeExpiredPreviewsHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for the purge.
func (h *PurgeExpiredPreviewsHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"previews", "purge"},
		Group:       "previews",
		Description: "Delete expired preview tokens",
	}
}
