package pages

import (
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/uptrace/bun"
)

// Status aliases the lifecycle status shared with the domain package.
type Status = domain.Status

const (
	TemplateDefault = "default"
	TemplateLanding = "landing"
	TemplateArticle = "article"
	TemplateContact = "contact"
	TemplateAbout   = "about"
)

// Templates lists the supported template tags.
var Templates = []string{TemplateDefault, TemplateLanding, TemplateArticle, TemplateContact, TemplateAbout}

const (
	SectionText        = "text"
	SectionImage       = "image"
	SectionVideo       = "video"
	SectionCTA         = "cta"
	SectionGallery     = "gallery"
	SectionEmbed       = "embed"
	SectionContactForm = "contact_form"
)

// SectionTypes lists the supported section kinds.
var SectionTypes = []string{SectionText, SectionImage, SectionVideo, SectionCTA, SectionGallery, SectionEmbed, SectionContactForm}

// DefaultReservedSlugs collide with structural URL prefixes and can never be assigned to a page.
var DefaultReservedSlugs = []string{"admin", "api", "static", "media", "sitemap", "robots", "assets"}

// DefaultRobotsDirective is applied to meta records that omit a robots value.
const DefaultRobotsDirective = "index, follow"

// Page is the aggregate root of the lifecycle engine. Children are loaded on demand and
// are not persisted through the page row.
type Page struct {
	bun.BaseModel `bun:"table:pages,alias:p"`

	ID                   uuid.UUID      `bun:",pk,type:uuid" json:"id"`
	TenantID             uuid.UUID      `bun:"tenant_id,notnull,type:uuid" json:"tenant_id"`
	Title                string         `bun:"title,notnull" json:"title"`
	Slug                 string         `bun:"slug,notnull" json:"slug"`
	Language             string         `bun:"language,notnull" json:"language"`
	Body                 string         `bun:"body" json:"body"`
	Banner               string         `bun:"banner" json:"banner,omitempty"`
	Template             string         `bun:"template,notnull" json:"template"`
	Status               Status         `bun:"status,notnull" json:"status"`
	IsFeatured           bool           `bun:"is_featured,notnull,default:false" json:"is_featured"`
	PublishedAt          *time.Time     `bun:"published_at,nullzero" json:"published_at,omitempty"`
	UnpublishedAt        *time.Time     `bun:"unpublished_at,nullzero" json:"unpublished_at,omitempty"`
	ScheduledPublishAt   *time.Time     `bun:"scheduled_publish_at,nullzero" json:"scheduled_publish_at,omitempty"`
	ScheduledUnpublishAt *time.Time     `bun:"scheduled_unpublish_at,nullzero" json:"scheduled_unpublish_at,omitempty"`
	TranslationOf        *uuid.UUID     `bun:"translation_of,type:uuid" json:"translation_of,omitempty"`
	IsDeleted            bool           `bun:"is_deleted,notnull,default:false" json:"is_deleted"`
	DeletedAt            *time.Time     `bun:"deleted_at,nullzero" json:"deleted_at,omitempty"`
	Revision             int            `bun:"revision,notnull,default:1" json:"revision"`
	CreatedBy            uuid.UUID      `bun:"created_by,type:uuid" json:"created_by"`
	UpdatedBy            uuid.UUID      `bun:"updated_by,type:uuid" json:"updated_by"`
	CreatedAt            time.Time      `bun:"created_at,nullzero,default:current_timestamp" json:"created_at"`
	UpdatedAt            time.Time      `bun:"updated_at,nullzero,default:current_timestamp" json:"updated_at"`
	Meta                 *PageMeta      `bun:"-" json:"meta,omitempty"`
	Sections             []*PageSection `bun:"-" json:"sections,omitempty"`
	Media                []*PageMedia   `bun:"-" json:"media,omitempty"`
}

// PageMeta carries the SEO companion of a page.
type PageMeta struct {
	bun.BaseModel `bun:"table:page_meta,alias:pm"`

	ID              uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID          uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	MetaTitle       string    `bun:"meta_title" json:"meta_title,omitempty"`
	MetaDescription string    `bun:"meta_description" json:"meta_description,omitempty"`
	CanonicalURL    string    `bun:"canonical_url" json:"canonical_url,omitempty"`
	OGTitle         string    `bun:"og_title" json:"og_title,omitempty"`
	OGDescription   string    `bun:"og_description" json:"og_description,omitempty"`
	OGImage         string    `bun:"og_image" json:"og_image,omitempty"`
	RobotsDirective string    `bun:"robots_directive,notnull" json:"robots_directive"`
}

// PageSection is an ordered content block owned by a page. Ordinal records insertion order
// so sections sharing a position keep a stable order.
type PageSection struct {
	bun.BaseModel `bun:"table:page_sections,alias:ps"`

	ID       uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID   uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	Title    string    `bun:"title" json:"title,omitempty"`
	Content  string    `bun:"content" json:"content,omitempty"`
	Type     string    `bun:"type,notnull" json:"type"`
	Position int       `bun:"position,notnull" json:"position"`
	Ordinal  int       `bun:"ordinal,notnull" json:"-"`
	IsActive bool      `bun:"is_active,notnull" json:"is_active"`
}

// PageMedia references an uploaded file, an external url or a legacy media url.
type PageMedia struct {
	bun.BaseModel `bun:"table:page_media,alias:pmd"`

	ID         uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID     uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	File       string    `bun:"file" json:"file,omitempty"`
	URL        string    `bun:"url" json:"url,omitempty"`
	MediaURL   string    `bun:"media_url" json:"media_url,omitempty"`
	Caption    string    `bun:"caption" json:"caption,omitempty"`
	IsFeatured bool      `bun:"is_featured,notnull" json:"is_featured"`
	Position   int       `bun:"position,notnull" json:"position"`
}

// PageVersion is an immutable numbered snapshot of a page.
type PageVersion struct {
	bun.BaseModel `bun:"table:page_versions,alias:pv"`

	ID         uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID     uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	Number     int       `bun:"version_number,notnull" json:"version_number"`
	Title      string    `bun:"title" json:"title"`
	Body       string    `bun:"body" json:"body"`
	Snapshot   Snapshot  `bun:"snapshot,type:jsonb,notnull" json:"snapshot"`
	CreatedBy  uuid.UUID `bun:"created_by,type:uuid" json:"created_by"`
	ChangeNote string    `bun:"change_note" json:"change_note"`
	CreatedAt  time.Time `bun:"created_at,notnull" json:"created_at"`
}

// PageSlugHistory records a slug rename for redirect resolution.
type PageSlugHistory struct {
	bun.BaseModel `bun:"table:page_slug_history,alias:psh"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID    uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	TenantID  uuid.UUID `bun:"tenant_id,notnull,type:uuid" json:"tenant_id"`
	Language  string    `bun:"language,notnull" json:"language"`
	OldSlug   string    `bun:"old_slug,notnull" json:"old_slug"`
	NewSlug   string    `bun:"new_slug,notnull" json:"new_slug"`
	ChangedAt time.Time `bun:"changed_at,notnull" json:"changed_at"`
}

// MutationResult describes the outcome of a page mutation. Versioning runs as a best-effort
// side channel: a failure is reported through VersionError and never as the mutation error.
type MutationResult struct {
	Page         *Page
	Version      *PageVersion
	VersionError error
}

// Resolution is returned by slug lookups. RedirectSlug is set when the requested slug is
// historical and callers should issue a permanent redirect.
type Resolution struct {
	Page         *Page
	RedirectSlug string
}

// IsRedirect reports whether the lookup resolved through slug history.
func (r *Resolution) IsRedirect() bool {
	return r != nil && r.RedirectSlug != ""
}

// PublicPath returns the relative public url of a page slug.
func PublicPath(slug string) string {
	return "public/pages/" + slug + "/"
}
