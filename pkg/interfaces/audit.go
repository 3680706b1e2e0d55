package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// AuditEvent captures a lifecycle change applied to an entity.
type AuditEvent struct {
	EntityType string
	EntityID   string
	TenantID   uuid.UUID
	Actor      uuid.UUID
	Action     string
	OccurredAt time.Time
	Metadata   map[string]any
}

// AuditRecorder persists audit events. Recording failures never abort the audited change.
type AuditRecorder interface {
	Record(ctx context.Context, event AuditEvent) error
}
