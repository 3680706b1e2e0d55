package pages

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Service describes the page lifecycle engine. Every request carries the tenant it acts on.
type Service interface {
	Create(ctx context.Context, req CreatePageRequest) (*MutationResult, error)
	Update(ctx context.Context, req UpdatePageRequest) (*MutationResult, error)
	Delete(ctx context.Context, req DeletePageRequest) error
	Get(ctx context.Context, req GetPageRequest) (*Page, error)
	List(ctx context.Context, req ListPagesRequest) ([]*Page, error)
	Submit(ctx context.Context, req TransitionRequest) (*MutationResult, error)
	Publish(ctx context.Context, req TransitionRequest) (*MutationResult, error)
	Unpublish(ctx context.Context, req TransitionRequest) (*MutationResult, error)
	Archive(ctx context.Context, req TransitionRequest) (*MutationResult, error)
	Restore(ctx context.Context, req TransitionRequest) (*MutationResult, error)
	Schedule(ctx context.Context, req SchedulePageRequest) (*MutationResult, error)
	Duplicate(ctx context.Context, req DuplicatePageRequest) (*MutationResult, error)
	ListVersions(ctx context.Context, req ListVersionsRequest) ([]*PageVersion, error)
	GetVersion(ctx context.Context, req GetVersionRequest) (*PageVersion, error)
	Rollback(ctx context.Context, req RollbackPageRequest) (*MutationResult, error)
	Resolve(ctx context.Context, req ResolvePageRequest) (*Resolution, error)
}

// PageMetaInput captures SEO fields supplied by editors.
type PageMetaInput struct {
	MetaTitle       string
	MetaDescription string
	CanonicalURL    string
	OGTitle         string
	OGDescription   string
	OGImage         string
	RobotsDirective string
}

// PageSectionInput captures a section. A known ID updates the existing section in place.
type PageSectionInput struct {
	ID       uuid.UUID
	Title    string
	Content  string
	Type     string
	Position int
	IsActive bool
}

// PageMediaInput captures a media item. A known ID updates the existing item in place.
type PageMediaInput struct {
	ID         uuid.UUID
	File       string
	URL        string
	MediaURL   string
	Caption    string
	IsFeatured bool
}

// CreatePageRequest captures the payload required to create a page.
type CreatePageRequest struct {
	TenantID             uuid.UUID
	Actor                uuid.UUID
	Title                string
	Slug                 string
	Language             string
	Body                 string
	Banner               string
	Template             string
	Status               string
	IsFeatured           bool
	TranslationOf        *uuid.UUID
	ScheduledPublishAt   *time.Time
	ScheduledUnpublishAt *time.Time
	Meta                 *PageMetaInput
	Sections             []PageSectionInput
	Media                []PageMediaInput
	ChangeNote           string
}

// UpdatePageRequest applies a partial update. Nil scalar pointers leave fields untouched, a nil
// Meta keeps the current meta and nil Sections or Media slices keep the current children. A
// non-nil empty slice clears the collection. Status is changed only through transitions.
type UpdatePageRequest struct {
	TenantID         uuid.UUID
	PageID           uuid.UUID
	Actor            uuid.UUID
	ExpectedRevision int
	Title            *string
	Slug             *string
	Language         *string
	Body             *string
	Banner           *string
	Template         *string
	IsFeatured       *bool
	Meta             *PageMetaInput
	ClearMeta        bool
	Sections         []PageSectionInput
	Media            []PageMediaInput
	ChangeNote       string
	ForceVersion     bool
}

// DeletePageRequest soft deletes a page unless HardDelete is set.
type DeletePageRequest struct {
	TenantID   uuid.UUID
	PageID     uuid.UUID
	Actor      uuid.UUID
	HardDelete bool
}

// GetPageRequest loads a page together with its children.
type GetPageRequest struct {
	TenantID       uuid.UUID
	PageID         uuid.UUID
	IncludeDeleted bool
}

// ListPagesRequest filters the pages of a tenant.
type ListPagesRequest struct {
	TenantID       uuid.UUID
	Language       string
	Status         string
	IncludeDeleted bool
}

// TransitionRequest drives an explicit status change.
type TransitionRequest struct {
	TenantID   uuid.UUID
	PageID     uuid.UUID
	Actor      uuid.UUID
	ChangeNote string
}

// SchedulePageRequest sets or clears the scheduled publish and unpublish timestamps.
type SchedulePageRequest struct {
	TenantID    uuid.UUID
	PageID      uuid.UUID
	Actor       uuid.UUID
	PublishAt   *time.Time
	UnpublishAt *time.Time
}

// DuplicatePageRequest copies a page into a new draft.
type DuplicatePageRequest struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
	Actor    uuid.UUID
}

type ListVersionsRequest struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
}

type GetVersionRequest struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
	Version  int
}

// RollbackPageRequest restores a page from a stored version snapshot.
type RollbackPageRequest struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
	Actor    uuid.UUID
	Version  int
}

// ResolvePageRequest looks up a public page by slug with redirect fallback.
type ResolvePageRequest struct {
	TenantID uuid.UUID
	Slug     string
	Language string
}
