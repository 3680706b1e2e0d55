package pagescmd

import (
	"context"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const publishPageMessageType = "pagecms.pages.publish"

// PublishPageCommand publishes a draft or pending page.
type PublishPageCommand struct {
	TenantID   uuid.UUID `json:"tenant_id"`
	PageID     uuid.UUID `json:"page_id"`
	Actor      uuid.UUID `json:"actor,omitempty"`
	ChangeNote string    `json:"change_note,omitempty"`
}

// Type implements command.Message.
func (PublishPageCommand) Type() string { return publishPageMessageType }

// Validate ensures the command captures the required identifiers before reaching handlers.
func (m PublishPageCommand) Validate() error {
	errs := validation.Errors{}
	if m.TenantID == uuid.Nil {
		errs["tenant_id"] = validation.NewError("pagecms.pages.publish.tenant_id_required", "tenant_id is required")
	}
	if m.PageID == uuid.Nil {
		errs["page_id"] = validation.NewError("pagecms.pages.publish.page_id_required", "page_id is required")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// PublishPageHandler publishes pages via the lifecycle service.
type PublishPageHandler struct {
	inner *commands.Handler[PublishPageCommand]
}

func NewPublishPageHandler(service pages.Service, logger interfaces.Logger, opts ...commands.HandlerOption[PublishPageCommand]) *PublishPageHandler {
	baseLogger := commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg PublishPageCommand) error {
		_, err := service.Publish(ctx, pages.TransitionRequest{
			TenantID:   msg.TenantID,
			PageID:     msg.PageID,
			Actor:      msg.Actor,
			ChangeNote: msg.ChangeNote,
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[PublishPageCommand]{
		commands.WithLogger[PublishPageCommand](baseLogger),
		commands.WithOperation[PublishPageCommand]("pages.publish"),
		commands.WithMessageFields(func(msg PublishPageCommand) map[string]any {
			return map[string]any{
				"tenant_id": msg.TenantID,
				"page_id":   msg.PageID,
			}
		}),
		commands.WithTelemetry(commands.DefaultTelemetry[PublishPageCommand](baseLogger)),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &PublishPageHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[PublishPageCommand].Execute.
func (h *PublishPageHandler) Execute(ctx context.Context, msg PublishPageCommand) error {
	return h.inner.Execute(ctx, msg)
}
