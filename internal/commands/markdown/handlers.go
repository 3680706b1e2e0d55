package markdowncmd

import (
	"context"
	"errors"

	command "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const importOperation = "markdown.import_directory"

// ErrMarkdownFeatureDisabled is returned when the markdown feature flag is disabled at runtime.
var ErrMarkdownFeatureDisabled = errors.New("markdown command: feature disabled")

var _ command.Commander[ImportDirectoryCommand] = (*ImportDirectoryHandler)(nil)

// ImportDirectoryHandler runs directory imports through the shared command handler foundation.
type ImportDirectoryHandler struct {
	inner *commands.Handler[ImportDirectoryCommand]
	last  *interfaces.ImportResult
}

// NewImportDirectoryHandler creates a handler bound to the supplied Markdown service.
func NewImportDirectoryHandler(service interfaces.MarkdownService, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[ImportDirectoryCommand]) *ImportDirectoryHandler {
	baseLogger := logging.Ensure(logger)
	handler := &ImportDirectoryHandler{}

	exec := func(ctx context.Context, msg ImportDirectoryCommand) error {
		if !gates.markdownEnabled() {
			return ErrMarkdownFeatureDisabled
		}
		if err := ctx.Err(); err != nil {
			return err
		}

		result, err := service.ImportDirectory(ctx, msg.Directory, interfaces.ImportOptions{
			TenantID: msg.TenantID,
			Actor:    msg.Actor,
			Language: msg.Language,
			DryRun:   msg.DryRun,
		})
		handler.last = result
		if result != nil {
			logging.WithFields(baseLogger, map[string]any{
				"created_count": len(result.CreatedPageIDs),
				"updated_count": len(result.UpdatedPageIDs),
				"skipped_count": len(result.SkippedPageIDs),
				"error_count":   len(result.Errors),
				"dry_run":       msg.DryRun,
			}).Info("markdown.command.import_directory.completed")
		}
		return err
	}

	handlerOpts := []commands.HandlerOption[ImportDirectoryCommand]{
		commands.WithLogger[ImportDirectoryCommand](baseLogger),
		commands.WithOperation[ImportDirectoryCommand](importOperation),
		commands.WithMessageFields(func(msg ImportDirectoryCommand) map[string]any {
			fields := map[string]any{
				"directory": msg.Directory,
				"tenant_id": msg.TenantID,
			}
			if msg.Actor != uuid.Nil {
				fields["actor"] = msg.Actor
			}
			if msg.Language != "" {
				fields["language"] = msg.Language
			}
			if msg.DryRun {
				fields["dry_run"] = true
			}
			return fields
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[ImportDirectoryCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	handler.inner = commands.NewHandler(exec, handlerOpts...)
	return handler
}

// Execute satisfies command.Commander[ImportDirectoryCommand].
func (h *ImportDirectoryHandler) Execute(ctx context.Context, msg ImportDirectoryCommand) error {
	return h.inner.Execute(ctx, msg)
}

// LastResult returns the outcome of the most recent import, nil before the first run.
func (h *ImportDirectoryHandler) LastResult() *interfaces.ImportResult {
	return h.last
}

// CLIHandler exposes the import handler to CLI integrations.
func (h *ImportDirectoryHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for the import.
func (h *ImportDirectoryHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"pages", "import"},
		Group:       "pages",
		Description: "Import Markdown page sources into a tenant",
	}
}
