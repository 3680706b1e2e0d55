package auditcmd

import (
	"context"
	"sort"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	command "github.com/goliatone/go-command"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const exportAuditMessageType = "pagecms.audit.export"

// AuditLog exposes read operations for recorded audit events.
type AuditLog interface {
	List(ctx context.Context) ([]interfaces.AuditEvent, error)
}

// ExportAuditCommand selects the lifecycle trail of a tenant, optionally narrowed to one
// page, one action and an occurrence window [Since, Until). Events are emitted oldest first.
type ExportAuditCommand struct {
	TenantID   uuid.UUID  `json:"tenant_id,omitempty"`
	PageID     uuid.UUID  `json:"page_id,omitempty"`
	Action     string     `json:"action,omitempty"`
	Since      *time.Time `json:"since,omitempty"`
	Until      *time.Time `json:"until,omitempty"`
	MaxRecords *int       `json:"max_records,omitempty"`
}

// Type implements command.Message.
func (ExportAuditCommand) Type() string { return exportAuditMessageType }

// Validate rejects negative limits and inverted windows.
func (m ExportAuditCommand) Validate() error {
	return validation.ValidateStruct(&m,
		validation.Field(&m.MaxRecords, validation.When(m.MaxRecords != nil, validation.Min(0))),
		validation.Field(&m.Until, validation.By(func(any) error {
			if m.Since != nil && m.Until != nil && !m.Until.After(*m.Since) {
				return validation.NewError("pagecms.audit.export.window_invalid", "until must be after since")
			}
			return nil
		})),
	)
}

func (m ExportAuditCommand) matches(event interfaces.AuditEvent) bool {
	if m.TenantID != uuid.Nil && event.TenantID != m.TenantID {
		return false
	}
	if m.PageID != uuid.Nil && event.EntityID != m.PageID.String() {
		return false
	}
	if action := strings.TrimSpace(m.Action); action != "" && !strings.EqualFold(event.Action, action) {
		return false
	}
	if m.Since != nil && event.OccurredAt.Before(*m.Since) {
		return false
	}
	if m.Until != nil && !event.OccurredAt.Before(*m.Until) {
		return false
	}
	return true
}

// AuditSink receives each exported event in order. Returning an error stops the export.
type AuditSink func(ctx context.Context, event interfaces.AuditEvent) error

// ExportAuditHandler streams the selected audit trail to a sink. Without a sink events are
// written to the handler logger.
type ExportAuditHandler struct {
	log     AuditLog
	logger  interfaces.Logger
	sink    AuditSink
	timeout time.Duration
}

// ExportHandlerOption customises the export handler.
type ExportHandlerOption func(*ExportAuditHandler)

// ExportWithTimeout overrides the default execution timeout.
func ExportWithTimeout(timeout time.Duration) ExportHandlerOption {
	return func(h *ExportAuditHandler) {
		h.timeout = timeout
	}
}

// ExportWithSink routes exported events to sink instead of the logger.
func ExportWithSink(sink AuditSink) ExportHandlerOption {
	return func(h *ExportAuditHandler) {
		if sink != nil {
			h.sink = sink
		}
	}
}

func NewExportAuditHandler(log AuditLog, logger interfaces.Logger, opts ...ExportHandlerOption) *ExportAuditHandler {
	handler := &ExportAuditHandler{
		log:     log,
		logger:  commands.EnsureLogger(logger),
		timeout: commands.DefaultCommandTimeout,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}
	if handler.sink == nil {
		handler.sink = handler.logEvent
	}
	return handler
}

// Execute satisfies command.Commander[ExportAuditCommand].
func (h *ExportAuditHandler) Execute(ctx context.Context, msg ExportAuditCommand) error {
	if err := commands.WrapValidationError(command.ValidateMessage(msg)); err != nil {
		return err
	}
	ctx = commands.EnsureContext(ctx)
	ctx, cancel := commands.WithCommandTimeout(ctx, h.timeout)
	defer cancel()

	all, err := h.log.List(ctx)
	if err != nil {
		return commands.WrapExecuteError(err)
	}
	trail := selectTrail(all, msg)

	perAction := map[string]int{}
	for _, event := range trail {
		if err := ctx.Err(); err != nil {
			return commands.WrapContextError(err)
		}
		if err := h.sink(ctx, event); err != nil {
			return commands.WrapExecuteError(err)
		}
		perAction[event.Action]++
	}

	logging.WithFields(h.logger, map[string]any{
		"operation": "audit.export",
		"tenant_id": msg.TenantID,
		"exported":  len(trail),
		"scanned":   len(all),
		"actions":   perAction,
	}).Info("audit.command.export.completed")
	return nil
}

func (h *ExportAuditHandler) logEvent(_ context.Context, event interfaces.AuditEvent) error {
	logging.WithFields(h.logger, map[string]any{
		"operation":   "audit.export",
		"entity_type": event.EntityType,
		"entity_id":   event.EntityID,
		"tenant_id":   event.TenantID,
		"actor":       event.Actor,
		"action":      event.Action,
		"occurred_at": event.OccurredAt.UTC().Format(time.RFC3339),
		"metadata":    event.Metadata,
	}).Debug("audit.command.export.event")
	return nil
}

// CLIHandler satisfies command.CLICommand by returning the handler.
func (h *ExportAuditHandler) CLIHandler() any {
	return h
}

// CLIOptions describes the CLI metadata for audit export.
func (h *ExportAuditHandler) CLIOptions() command.CLIConfig {
	return command.CLIConfig{
		Path:        []string{"audit", "export"},
		Group:       "audit",
		Description: "Export the page lifecycle audit trail",
	}
}

// selectTrail filters events, orders them by occurrence and applies the record limit.
func selectTrail(events []interfaces.AuditEvent, msg ExportAuditCommand) []interfaces.AuditEvent {
	out := make([]interfaces.AuditEvent, 0, len(events))
	for _, event := range events {
		if msg.matches(event) {
			out = append(out, event)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].OccurredAt.Before(out[j].OccurredAt)
	})
	if msg.MaxRecords != nil && *msg.MaxRecords < len(out) {
		out = out[:*msg.MaxRecords]
	}
	return out
}
