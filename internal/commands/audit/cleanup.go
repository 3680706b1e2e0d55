package auditcmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const (
	cleanupAuditMessageType = "pagecms.audit.cleanup"

	// DefaultAuditRetention keeps roughly one quarter of lifecycle history.
	DefaultAuditRetention = 90 * 24 * time.Hour
)

// AuditCleaner prunes audit events recorded before a cutoff.
type AuditCleaner interface {
	AuditLog
	DeleteBefore(ctx context.Context, cutoff time.Time) (int, error)
}

// CleanupAuditCommand prunes lifecycle audit events older than OlderThan.
// A zero OlderThan falls back to the handler retention. DryRun only counts.
type CleanupAuditCommand struct {
	OlderThan time.Duration `json:"older_than,omitempty"`
	DryRun    bool          `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (CleanupAuditCommand) Type() string { return cleanupAuditMessageType }

// Validate rejects negative retention windows.
func (m CleanupAuditCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.OlderThan, validation.Min(time.Duration(0))),
	)
}

// CleanupHandlerOption customises the cleanup handler.
type CleanupHandlerOption func(*CleanupAuditHandler)

// CleanupWithCronExpression overrides the cron expression for the cleanup handler.
func CleanupWithCronExpression(expression string) CleanupHandlerOption {
	return func(h *CleanupAuditHandler) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			h.cronConfig.Expression = trimmed
		}
	}
}

// CleanupWithRetention sets the window applied when the message carries none.
func CleanupWithRetention(retention time.Duration) CleanupHandlerOption {
	return func(h *CleanupAuditHandler) {
		if retention > 0 {
			h.retention = retention
		}
	}
}

// CleanupWithClock overrides the clock used to compute the cutoff.
func CleanupWithClock(clock func() time.Time) CleanupHandlerOption {
	return func(h *CleanupAuditHandler) {
		if clock != nil {
			h.now = clock
		}
	}
}

// CleanupWithTimeout overrides the default execution timeout.
func CleanupWithTimeout(timeout time.Duration) CleanupHandlerOption {
	return func(h *CleanupAuditHandler) {
		h.timeout = timeout
	}
}

// CleanupAuditHandler prunes page lifecycle audit history.
type CleanupAuditHandler struct {
	cleaner    AuditCleaner
	logger     interfaces.Logger
	cronConfig command.HandlerConfig
	retention  time.Duration
	timeout    time.Duration
	now        func() time.Time
}

func NewCleanupAuditHandler(cleaner AuditCleaner, logger interfaces.Logger, opts ...CleanupHandlerOption) *CleanupAuditHandler {
	handler := &CleanupAuditHandler{
		cleaner:    cleaner,
		logger:     commands.EnsureLogger(logger),
		cronConfig: command.HandlerConfig{Expression: "@daily"},
		retention:  DefaultAuditRetention,
		timeout:    commands.DefaultCommandTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	return handler
}

// Execute satisfies command.Commander[CleanupAuditCommand].
func (h *CleanupAuditHandler) Execute(ctx context.Context, msg CleanupAuditCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	window := msg.OlderThan
	if window == 0 {
		window = h.retention
	}
	cutoff := h.now().Add(-window)
	logger := logging.WithFields(h.logger, map[string]any{
		"operation": "audit.cleanup",
		"cutoff":    cutoff,
	})

	if msg.DryRun {
		events, err := h.cleaner.List(ctx)
		if err != nil {
			return commands.WrapExecuteError(err)
		}
		stale := 0
		for _, event := range events {
			if event.OccurredAt.Before(cutoff) {
				stale++
			}
		}
		logging.WithFields(logger, map[string]any{
			"dry_run": true,
			"stale":   stale,
		}).Debug("audit.command.cleanup.dry_run")
		return nil
	}

	removed, err := h.cleaner.DeleteBefore(ctx, cutoff)
	if err != nil {
		return commands.WrapExecuteError(err)
	}
	logging.WithFields(logger, map[string]any{
		"removed": removed,
	}).Info("audit.command.cleanup.removed")
	return nil
}

// CronHandler prunes with the handler retention.
func (h *CleanupAuditHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), CleanupAuditCommand{})
	}
}

func (h *CleanupAuditHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the cleanup handler to CLI integrations.
func (h *CleanupAuditHandler) CLIHandler() any {
	return h
}

func (h *CleanupAuditHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"audit", "cleanup"},
		Group:       "audit",
		Description: "Prune page lifecycle audit events older than the retention window",
	}
}
