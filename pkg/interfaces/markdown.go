package interfaces

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// MarkdownParser defines how raw Markdown bytes are converted into HTML.
type MarkdownParser interface {
	// Parse converts Markdown into HTML using the parser's default settings.
	Parse(markdown []byte) ([]byte, error)
	// ParseWithOptions converts Markdown into HTML using the supplied overrides.
	ParseWithOptions(markdown []byte, opts ParseOptions) ([]byte, error)
}

// ParseOptions customises Markdown parsing behaviour, keeping option names
// readable for configuration unmarshalling and CLI flags.
type ParseOptions struct {
	Extensions []string
	HardWraps  bool
	SafeMode   bool
}

// MarkdownService loads Markdown page sources from disk, renders them and imports them as
// pages of a tenant.
type MarkdownService interface {
	Load(ctx context.Context, path string, opts LoadOptions) (*Document, error)
	LoadDirectory(ctx context.Context, dir string, opts LoadOptions) ([]*Document, error)
	Render(ctx context.Context, markdown []byte, opts ParseOptions) ([]byte, error)
	Import(ctx context.Context, doc *Document, opts ImportOptions) (*ImportResult, error)
	ImportDirectory(ctx context.Context, dir string, opts ImportOptions) (*ImportResult, error)
}

// Document represents a Markdown file with parsed metadata and content.
type Document struct {
	FilePath     string
	Language     string
	FrontMatter  FrontMatter
	Body         []byte
	BodyHTML     []byte
	LastModified time.Time
	// Checksum stores the SHA-256 digest of the original file content.
	Checksum []byte
}

// FrontMatter models the page fields a Markdown source may declare.
type FrontMatter struct {
	Title    string          `yaml:"title" json:"title"`
	Slug     string          `yaml:"slug" json:"slug"`
	Language string          `yaml:"language" json:"language"`
	Template string          `yaml:"template" json:"template"`
	Status   string          `yaml:"status" json:"status"`
	Meta     FrontMatterMeta `yaml:"meta" json:"meta"`
	Custom   map[string]any  `yaml:",inline" json:"custom"`
	Raw      map[string]any  `yaml:"-" json:"raw"`
}

// FrontMatterMeta carries the SEO block of a Markdown source.
type FrontMatterMeta struct {
	Title         string `yaml:"title" json:"title"`
	Description   string `yaml:"description" json:"description"`
	CanonicalURL  string `yaml:"canonical_url" json:"canonical_url"`
	OGTitle       string `yaml:"og_title" json:"og_title"`
	OGDescription string `yaml:"og_description" json:"og_description"`
	OGImage       string `yaml:"og_image" json:"og_image"`
	Robots        string `yaml:"robots" json:"robots"`
}

// IsZero reports whether no meta field was declared.
func (m FrontMatterMeta) IsZero() bool {
	return m == FrontMatterMeta{}
}

// LoadOptions fine-tunes how documents are discovered and parsed from disk.
type LoadOptions struct {
	Recursive        *bool
	Pattern          string
	LanguagePatterns map[string]string
	Parser           ParseOptions
}

// ImportOptions controls how Markdown documents become pages of a tenant.
type ImportOptions struct {
	TenantID uuid.UUID
	Actor    uuid.UUID
	// Language is used when neither the front matter nor the path declares one.
	Language string
	DryRun   bool
}

// ImportResult reports the outcome of an import run.
type ImportResult struct {
	CreatedPageIDs []uuid.UUID
	UpdatedPageIDs []uuid.UUID
	SkippedPageIDs []uuid.UUID
	Errors         []error
}
