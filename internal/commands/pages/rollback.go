package pagescmd

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const rollbackPageMessageType = "pagecms.pages.rollback"

// RollbackPageCommand restores a page to a stored version.
type RollbackPageCommand struct {
	TenantID uuid.UUID `json:"tenant_id"`
	PageID   uuid.UUID `json:"page_id"`
	Version  int       `json:"version"`
	Actor    uuid.UUID `json:"actor,omitempty"`
}

// Type implements command.Message.
func (RollbackPageCommand) Type() string { return rollbackPageMessageType }

// Validate ensures the command carries the required identifiers.
func (m RollbackPageCommand) Validate() error {
	errs := validation.Errors{}
	if m.TenantID == uuid.Nil {
		errs["tenant_id"] = validation.NewError("pagecms.pages.rollback.tenant_id_required", "tenant_id is required")
	}
	if m.PageID == uuid.Nil {
		errs["page_id"] = validation.NewError("pagecms.pages.rollback.page_id_required", "page_id is required")
	}
	if m.Version <= 0 {
		errs["version"] = validation.NewError("pagecms.pages.rollback.version_invalid", "version must be greater than zero")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

type RollbackPageHandler struct {
	inner *commands.Handler[RollbackPageCommand]
}

func NewRollbackPageHandler(service pages.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[RollbackPageCommand]) *RollbackPageHandler {
	baseLogger := commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg RollbackPageCommand) error {
		if !gates.versioningEnabled() {
			return pages.ErrVersioningDisabled
		}
		_, err := service.Rollback(ctx, pages.RollbackPageRequest{
			TenantID: msg.TenantID,
			PageID:   msg.PageID,
			Version:  msg.Version,
			Actor:    msg.Actor,
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[RollbackPageCommand]{
		commands.WithLogger[RollbackPageCommand](baseLogger),
		commands.WithOperation[RollbackPageCommand]("pages.rollback"),
		commands.WithMessageFields(func(msg RollbackPageCommand) map[string]any {
			return map[string]any{
				"tenant_id": msg.TenantID,
				"page_id":   msg.PageID,
				"version":   msg.Version,
			}
		}),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &RollbackPageHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[RollbackPageCommand].
func (h *RollbackPageHandler) Execute(ctx context.Context, msg RollbackPageCommand) error {
	return h.inner.Execute(ctx, msg)
}
