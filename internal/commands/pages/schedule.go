package pagescmd

import (
	"context"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const schedulePageMessageType = "pagecms.pages.schedule"

// SchedulePageCommand updates the publish and unpublish windows of a page. Nil timestamps
// clear the corresponding schedule.
type SchedulePageCommand struct {
	TenantID    uuid.UUID  `json:"tenant_id"`
	PageID      uuid.UUID  `json:"page_id"`
	PublishAt   *time.Time `json:"publish_at,omitempty"`
	UnpublishAt *time.Time `json:"unpublish_at,omitempty"`
	ScheduledBy uuid.UUID  `json:"scheduled_by,omitempty"`
}

// Type implements command.Message.
func (SchedulePageCommand) Type() string { return schedulePageMessageType }

// Validate ensures the message carries the required fields before reaching handlers.
func (m SchedulePageCommand) Validate() error {
	errs := validation.Errors{}
	if m.TenantID == uuid.Nil {
		errs["tenant_id"] = validation.NewError("pagecms.pages.schedule.tenant_id_required", "tenant_id is required")
	}
	if m.PageID == uuid.Nil {
		errs["page_id"] = validation.NewError("pagecms.pages.schedule.page_id_required", "page_id is required")
	}
	if m.PublishAt != nil && m.PublishAt.IsZero() {
		errs["publish_at"] = validation.NewError("pagecms.pages.schedule.publish_at_invalid", "publish_at must be a valid timestamp when provided")
	}
	if m.UnpublishAt != nil && m.UnpublishAt.IsZero() {
		errs["unpublish_at"] = validation.NewError("pagecms.pages.schedule.unpublish_at_invalid", "unpublish_at must be a valid timestamp when provided")
	}
	if len(errs) > 0 {
		return errs
	}
	return nil
}

// SchedulePageHandler coordinates scheduling changes via the page service.
type SchedulePageHandler struct {
	inner *commands.Handler[SchedulePageCommand]
}

func NewSchedulePageHandler(service pages.Service, logger interfaces.Logger, gates FeatureGates, opts ...commands.HandlerOption[SchedulePageCommand]) *SchedulePageHandler {
	baseLogger := commands.EnsureLogger(logger)

	exec := func(ctx context.Context, msg SchedulePageCommand) error {
		if !gates.schedulingEnabled() {
			return ErrSchedulingDisabled
		}

		fields := map[string]any{
			"page_id": msg.PageID,
		}
		if msg.PublishAt != nil {
			fields["publish_at"] = msg.PublishAt
		}
		if msg.UnpublishAt != nil {
			fields["unpublish_at"] = msg.UnpublishAt
		}
		logging.WithFields(baseLogger, fields).Debug("pages.command.schedule.dispatch")

		_, err := service.Schedule(ctx, pages.SchedulePageRequest{
			TenantID:    msg.TenantID,
			PageID:      msg.PageID,
			Actor:       msg.ScheduledBy,
			PublishAt:   msg.PublishAt,
			UnpublishAt: msg.UnpublishAt,
		})
		return err
	}

	handlerOpts := []commands.HandlerOption[SchedulePageCommand]{
		commands.WithLogger[SchedulePageCommand](baseLogger),
		commands.WithOperation[SchedulePageCommand]("pages.schedule"),
	}
	handlerOpts = append(handlerOpts, opts...)

	return &SchedulePageHandler{
		inner: commands.NewHandler(exec, handlerOpts...),
	}
}

// Execute satisfies command.Commander[SchedulePageCommand].
func (h *SchedulePageHandler) Execute(ctx context.Context, msg SchedulePageCommand) error {
	return h.inner.Execute(ctx, msg)
}
