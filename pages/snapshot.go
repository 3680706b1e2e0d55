package pages

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"reflect"
)

// SnapshotSchemaVersion identifies the layout of snapshots written by this release.
const SnapshotSchemaVersion = 1

const (
	FieldTitle      = "title"
	FieldSlug       = "slug"
	FieldBody       = "body"
	FieldBanner     = "banner"
	FieldTemplate   = "template"
	FieldStatus     = "status"
	FieldLanguage   = "language"
	FieldIsFeatured = "is_featured"
)

// DefaultTrackedFields lists the scalar fields captured in snapshots unless configured otherwise.
var DefaultTrackedFields = []string{FieldTitle, FieldSlug, FieldBody, FieldBanner, FieldTemplate, FieldStatus, FieldLanguage}

// TrackableFields lists every scalar field a snapshot can carry.
var TrackableFields = []string{FieldTitle, FieldSlug, FieldBody, FieldBanner, FieldTemplate, FieldStatus, FieldLanguage, FieldIsFeatured}

// Snapshot is the structural point-in-time copy stored with every version.
type Snapshot struct {
	SchemaVersion int               `json:"schema_version"`
	Fields        SnapshotFields    `json:"fields"`
	Meta          *MetaSnapshot     `json:"meta,omitempty"`
	Sections      []SectionSnapshot `json:"sections"`
	Media         []MediaSnapshot   `json:"media"`
}

// SnapshotFields holds tracked scalar fields. Untracked fields stay nil.
type SnapshotFields struct {
	Title      *string `json:"title,omitempty"`
	Slug       *string `json:"slug,omitempty"`
	Body       *string `json:"body,omitempty"`
	Banner     *string `json:"banner,omitempty"`
	Template   *string `json:"template,omitempty"`
	Status     *string `json:"status,omitempty"`
	Language   *string `json:"language,omitempty"`
	IsFeatured *bool   `json:"is_featured,omitempty"`
}

type MetaSnapshot struct {
	MetaTitle       string `json:"meta_title"`
	MetaDescription string `json:"meta_description"`
	CanonicalURL    string `json:"canonical_url"`
	OGTitle         string `json:"og_title"`
	OGDescription   string `json:"og_description"`
	OGImage         string `json:"og_image"`
	RobotsDirective string `json:"robots_directive"`
}

type SectionSnapshot struct {
	ID       string `json:"id"`
	Title    string `json:"title"`
	Content  string `json:"content"`
	Type     string `json:"type"`
	Position int    `json:"position"`
	IsActive bool   `json:"is_active"`
}

type MediaSnapshot struct {
	ID         string `json:"id"`
	File       string `json:"file"`
	URL        string `json:"url"`
	MediaURL   string `json:"media_url"`
	Caption    string `json:"caption"`
	IsFeatured bool   `json:"is_featured"`
}

// Equal compares two snapshots structurally. Nil and empty collections are equivalent.
func (s Snapshot) Equal(other Snapshot) bool {
	return reflect.DeepEqual(s.normalized(), other.normalized())
}

// Clone returns a deep copy so stored versions never share memory with live pages.
func (s Snapshot) Clone() Snapshot {
	out := Snapshot{
		SchemaVersion: s.SchemaVersion,
		Fields:        s.Fields.clone(),
		Sections:      append([]SectionSnapshot{}, s.Sections...),
		Media:         append([]MediaSnapshot{}, s.Media...),
	}
	if s.Meta != nil {
		meta := *s.Meta
		out.Meta = &meta
	}
	return out
}

// ToMap renders the snapshot as a generic document for schema validation.
func (s Snapshot) ToMap() (map[string]any, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return nil, err
	}
	out := map[string]any{}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Value stores snapshots as JSON documents.
func (s Snapshot) Value() (driver.Value, error) {
	raw, err := json.Marshal(s.normalized())
	if err != nil {
		return nil, err
	}
	return string(raw), nil
}

// Scan decodes snapshots read back from storage.
func (s *Snapshot) Scan(src any) error {
	var raw []byte
	switch typed := src.(type) {
	case nil:
		*s = Snapshot{}
		return nil
	case []byte:
		raw = typed
	case string:
		raw = []byte(typed)
	default:
		return fmt.Errorf("pages: unsupported snapshot source %T", src)
	}
	var decoded Snapshot
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return fmt.Errorf("pages: decode snapshot: %w", err)
	}
	*s = decoded.normalized()
	return nil
}

func (s Snapshot) normalized() Snapshot {
	out := s
	if out.Sections == nil {
		out.Sections = []SectionSnapshot{}
	}
	if out.Media == nil {
		out.Media = []MediaSnapshot{}
	}
	return out
}

func (f SnapshotFields) clone() SnapshotFields {
	return SnapshotFields{
		Title:      cloneString(f.Title),
		Slug:       cloneString(f.Slug),
		Body:       cloneString(f.Body),
		Banner:     cloneString(f.Banner),
		Template:   cloneString(f.Template),
		Status:     cloneString(f.Status),
		Language:   cloneString(f.Language),
		IsFeatured: cloneBool(f.IsFeatured),
	}
}

func cloneString(value *string) *string {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}

func cloneBool(value *bool) *bool {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
