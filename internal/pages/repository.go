package pages

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/uptrace/bun"
)

// PageFilter narrows List results. Zero values disable a filter.
type PageFilter struct {
	TenantID       uuid.UUID
	Language       string
	Status         domain.Status
	IncludeDeleted bool
}

// ChildReplacement selects which owned collections an update rewrites from the record.
type ChildReplacement struct {
	Meta     bool
	Sections bool
	Media    bool
}

// Any reports whether at least one collection is replaced.
func (c ChildReplacement) Any() bool {
	return c.Meta || c.Sections || c.Media
}

// AllChildren replaces every owned collection.
var AllChildren = ChildReplacement{Meta: true, Sections: true, Media: true}

// PageRepository persists the page aggregate. Records returned by GetByID carry their
// children; list methods return bare rows.
type PageRepository interface {
	Create(ctx context.Context, record *Page) (*Page, error)
	GetByID(ctx context.Context, id uuid.UUID) (*Page, error)
	// ListBySlug returns non-deleted pages of a tenant using slug. An empty language matches all.
	ListBySlug(ctx context.Context, tenantID uuid.UUID, language, slug string) ([]*Page, error)
	List(ctx context.Context, filter PageFilter) ([]*Page, error)
	// ListDue returns non-deleted pages whose scheduled publish or unpublish time has elapsed.
	ListDue(ctx context.Context, now time.Time) ([]*Page, error)
	// Update writes the row when the stored revision still equals expectedRevision.
	Update(ctx context.Context, record *Page, expectedRevision int, children ChildReplacement) (*Page, error)
	// Purge removes the page together with every owned row.
	Purge(ctx context.Context, id uuid.UUID) error
}

// VersionRepository stores numbered page snapshots.
type VersionRepository interface {
	Create(ctx context.Context, version *PageVersion) (*PageVersion, error)
	Latest(ctx context.Context, pageID uuid.UUID) (*PageVersion, error)
	Get(ctx context.Context, pageID uuid.UUID, number int) (*PageVersion, error)
	// List returns versions ordered by ascending number.
	List(ctx context.Context, pageID uuid.UUID) ([]*PageVersion, error)
	// Prune deletes the oldest versions so that at most keep remain.
	Prune(ctx context.Context, pageID uuid.UUID, keep int) (int, error)
}

// SlugHistoryRepository stores slug renames. Rows are append-only.
type SlugHistoryRepository interface {
	Create(ctx context.Context, entry *PageSlugHistory) (*PageSlugHistory, error)
	// Find returns the entry for (page, old slug) or nil when none exists.
	Find(ctx context.Context, pageID uuid.UUID, oldSlug string) (*PageSlugHistory, error)
	// LatestByOldSlug returns the most recent rename away from slug or nil. An empty language matches all.
	LatestByOldSlug(ctx context.Context, tenantID uuid.UUID, language, slug string) (*PageSlugHistory, error)
	ListByPage(ctx context.Context, pageID uuid.UUID) ([]*PageSlugHistory, error)
	DeleteByPage(ctx context.Context, pageID uuid.UUID) error
}

func NewPageRepository(db *bun.DB) repository.Repository[*Page] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*Page]{
		NewRecord: func() *Page { return &Page{} },
		GetID: func(p *Page) uuid.UUID {
			return p.ID
		},
		SetID: func(p *Page, id uuid.UUID) {
			p.ID = id
		},
		GetIdentifier: func() string {
			return "slug"
		},
		GetIdentifierValue: func(p *Page) string {
			return p.Slug
		},
	})
}

func NewPageMetaRepository(db *bun.DB) repository.Repository[*PageMeta] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageMeta]{
		NewRecord: func() *PageMeta { return &PageMeta{} },
		GetID: func(m *PageMeta) uuid.UUID {
			return m.ID
		},
		SetID: func(m *PageMeta, id uuid.UUID) {
			m.ID = id
		},
		GetIdentifier: func() string {
			return "page_id"
		},
		GetIdentifierValue: func(m *PageMeta) string {
			return m.PageID.String()
		},
	})
}

func NewPageSectionRepository(db *bun.DB) repository.Repository[*PageSection] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageSection]{
		NewRecord: func() *PageSection { return &PageSection{} },
		GetID: func(s *PageSection) uuid.UUID {
			return s.ID
		},
		SetID: func(s *PageSection, id uuid.UUID) {
			s.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(s *PageSection) string {
			return s.ID.String()
		},
	})
}

func NewPageMediaRepository(db *bun.DB) repository.Repository[*PageMedia] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageMedia]{
		NewRecord: func() *PageMedia { return &PageMedia{} },
		GetID: func(m *PageMedia) uuid.UUID {
			return m.ID
		},
		SetID: func(m *PageMedia, id uuid.UUID) {
			m.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(m *PageMedia) string {
			return m.ID.String()
		},
	})
}

func NewPageVersionRepository(db *bun.DB) repository.Repository[*PageVersion] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageVersion]{
		NewRecord: func() *PageVersion { return &PageVersion{} },
		GetID: func(pv *PageVersion) uuid.UUID {
			return pv.ID
		},
		SetID: func(pv *PageVersion, id uuid.UUID) {
			pv.ID = id
		},
		GetIdentifier: func() string {
			return "id"
		},
		GetIdentifierValue: func(pv *PageVersion) string {
			return pv.ID.String()
		},
	})
}

func NewPageSlugHistoryRepository(db *bun.DB) repository.Repository[*PageSlugHistory] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PageSlugHistory]{
		NewRecord: func() *PageSlugHistory { return &PageSlugHistory{} },
		GetID: func(h *PageSlugHistory) uuid.UUID {
			return h.ID
		},
		SetID: func(h *PageSlugHistory, id uuid.UUID) {
			h.ID = id
		},
		GetIdentifier: func() string {
			return "old_slug"
		},
		GetIdentifierValue: func(h *PageSlugHistory) string {
			return h.OldSlug
		},
	})
}
