package pagescmd

import (
	"context"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/jobs"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/scheduler"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const sweepSchedulesMessageType = "pagecms.pages.sweep"

// Sweeper runs one pass over due page schedules.
type Sweeper interface {
	Process(ctx context.Context) (jobs.SweepResult, error)
}

// SweepSchedulesCommand applies every elapsed publish and unpublish schedule.
type SweepSchedulesCommand struct{}

// Type implements command.Message.
func (SweepSchedulesCommand) Type() string { return sweepSchedulesMessageType }

// Validate satisfies command.Message.
func (SweepSchedulesCommand) Validate() error {
	return validation.ValidateStruct(&SweepSchedulesCommand{})
}

type sweepHandlerConfig struct {
	cronConfig command.HandlerConfig
	timeout    time.Duration
}

// SweepHandlerOption customises the sweep handler.
type SweepHandlerOption func(*sweepHandlerConfig)

// SweepWithCronExpression overrides the cron expression for the sweep handler.
func SweepWithCronExpression(expression string) SweepHandlerOption {
	return func(cfg *sweepHandlerConfig) {
		if trimmed := strings.TrimSpace(expression); trimmed != "" {
			cfg.cronConfig.Expression = trimmed
		}
	}
}

// SweepWithTimeout overrides the default execution timeout.
func SweepWithTimeout(timeout time.Duration) SweepHandlerOption {
	return func(cfg *sweepHandlerConfig) {
		cfg.timeout = timeout
	}
}

// SweepSchedulesHandler drives the schedule worker from the CLI or a cron runner.
type SweepSchedulesHandler struct {
	sweeper    Sweeper
	gates      FeatureGates
	logger     interfaces.Logger
	cronConfig command.HandlerConfig
	timeout    time.Duration
	last       jobs.SweepResult
}

func NewSweepSchedulesHandler(sweeper Sweeper, logger interfaces.Logger, gates FeatureGates, opts ...SweepHandlerOption) *SweepSchedulesHandler {
	cfg := sweepHandlerConfig{
		cronConfig: command.HandlerConfig{
			Expression: scheduler.DefaultSweepExpression,
		},
		timeout: commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}
	return &SweepSchedulesHandler{
		sweeper:    sweeper,
		gates:      gates,
		logger:     commands.EnsureLogger(logger),
		cronConfig: cfg.cronConfig,
		timeout:    cfg.timeout,
	}
}

// Execute satisfies command.Commander[SweepSchedulesCommand].
func (h *SweepSchedulesHandler) Execute(ctx context.Context, msg SweepSchedulesCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	if !h.gates.schedulingEnabled() {
		return commands.WrapExecuteError(ErrSchedulingDisabled)
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	if err := ctx.Err(); err != nil {
		return commands.WrapContextError(err)
	}

	result, err := h.sweeper.Process(ctx)
	h.last = result
	if err != nil {
		if ctx.Err() != nil {
			return commands.WrapContextError(ctx.Err())
		}
		return commands.WrapExecuteError(err)
	}

	logging.WithFields(h.logger, map[string]any{
		"operation":   "pages.sweep",
		"published":   len(result.Published),
		"unpublished": len(result.Unpublished),
		"skipped":     len(result.Skipped),
		"failed":      len(result.Failed),
	}).Debug("pages.command.sweep.completed")
	return nil
}

// LastResult returns the outcome of the most recent run.
func (h *SweepSchedulesHandler) LastResult() jobs.SweepResult {
	return h.last
}

// CronName names the job in the cron runner.
func (h *SweepSchedulesHandler) CronName() string {
	return scheduler.JobPagesSweep
}

// CronHandler satisfies command.CronCommand by binding the sweep to a cron runner.
func (h *SweepSchedulesHandler) CronHandler() func() error {
	return func() error {
		return h.Execute(context.Background(), SweepSchedulesCommand{})
	}
}

// CronOptions returns the configured cron metadata.
func (h *SweepSchedulesHandler) CronOptions() command.HandlerConfig {
	return h.cronConfig
}

// CLIHandler exposes the sweep handler to CLI integrations.
func (h *SweepSchedulesHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for the sweep.
func (h *SweepSchedulesHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"pages", "sweep"},
		Group:       "pages",
		Description: "Apply elapsed publish and unpublish schedules",
	}
}
