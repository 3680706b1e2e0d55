package pages

import (
	"sort"
	"strings"

	"github.com/google/uuid"
	cmspages "github.com/municipio/pagecms/pages"
)

// SnapshotBuilder captures the versioned structure of a page. Build is a pure function of
// the page and the tracked field set.
type SnapshotBuilder struct {
	tracked map[string]struct{}
}

// NewSnapshotBuilder tracks the supplied scalar fields. Unknown names are ignored and an
// empty list falls back to the default set.
func NewSnapshotBuilder(fields ...string) *SnapshotBuilder {
	tracked := map[string]struct{}{}
	for _, field := range fields {
		name := strings.ToLower(strings.TrimSpace(field))
		if isTrackable(name) {
			tracked[name] = struct{}{}
		}
	}
	if len(tracked) == 0 {
		for _, field := range cmspages.DefaultTrackedFields {
			tracked[field] = struct{}{}
		}
	}
	return &SnapshotBuilder{tracked: tracked}
}

// Tracks reports whether field is captured.
func (b *SnapshotBuilder) Tracks(field string) bool {
	_, ok := b.tracked[field]
	return ok
}

// Build returns the snapshot of page.
func (b *SnapshotBuilder) Build(page *Page) Snapshot {
	snap := Snapshot{
		SchemaVersion: cmspages.SnapshotSchemaVersion,
		Sections:      []SectionSnapshot{},
		Media:         []MediaSnapshot{},
	}
	if page == nil {
		return snap
	}

	snap.Fields = SnapshotFields{
		Title:    b.stringField(cmspages.FieldTitle, page.Title),
		Slug:     b.stringField(cmspages.FieldSlug, page.Slug),
		Body:     b.stringField(cmspages.FieldBody, page.Body),
		Banner:   b.stringField(cmspages.FieldBanner, page.Banner),
		Template: b.stringField(cmspages.FieldTemplate, page.Template),
		Status:   b.stringField(cmspages.FieldStatus, string(page.Status)),
		Language: b.stringField(cmspages.FieldLanguage, page.Language),
	}
	if b.Tracks(cmspages.FieldIsFeatured) {
		featured := page.IsFeatured
		snap.Fields.IsFeatured = &featured
	}

	if page.Meta != nil {
		snap.Meta = &MetaSnapshot{
			MetaTitle:       page.Meta.MetaTitle,
			MetaDescription: page.Meta.MetaDescription,
			CanonicalURL:    page.Meta.CanonicalURL,
			OGTitle:         page.Meta.OGTitle,
			OGDescription:   page.Meta.OGDescription,
			OGImage:         page.Meta.OGImage,
			RobotsDirective: page.Meta.RobotsDirective,
		}
	}

	for _, section := range orderedSections(page.Sections) {
		snap.Sections = append(snap.Sections, SectionSnapshot{
			ID:       section.ID.String(),
			Title:    section.Title,
			Content:  section.Content,
			Type:     section.Type,
			Position: section.Position,
			IsActive: section.IsActive,
		})
	}
	for _, item := range page.Media {
		if item == nil {
			continue
		}
		snap.Media = append(snap.Media, MediaSnapshot{
			ID:         item.ID.String(),
			File:       item.File,
			URL:        item.URL,
			MediaURL:   item.MediaURL,
			Caption:    item.Caption,
			IsFeatured: item.IsFeatured,
		})
	}
	return snap
}

// Restore applies snap onto page. Status is never restored and untracked fields keep their
// current value. Children are replaced wholesale using the stored ids.
func (b *SnapshotBuilder) Restore(page *Page, snap Snapshot) {
	if page == nil {
		return
	}
	f := snap.Fields
	if f.Title != nil {
		page.Title = *f.Title
	}
	if f.Slug != nil {
		page.Slug = *f.Slug
	}
	if f.Body != nil {
		page.Body = *f.Body
	}
	if f.Banner != nil {
		page.Banner = *f.Banner
	}
	if f.Template != nil {
		page.Template = *f.Template
	}
	if f.Language != nil {
		page.Language = *f.Language
	}
	if f.IsFeatured != nil {
		page.IsFeatured = *f.IsFeatured
	}

	page.Meta = nil
	if snap.Meta != nil {
		page.Meta = &PageMeta{
			PageID:          page.ID,
			MetaTitle:       snap.Meta.MetaTitle,
			MetaDescription: snap.Meta.MetaDescription,
			CanonicalURL:    snap.Meta.CanonicalURL,
			OGTitle:         snap.Meta.OGTitle,
			OGDescription:   snap.Meta.OGDescription,
			OGImage:         snap.Meta.OGImage,
			RobotsDirective: snap.Meta.RobotsDirective,
		}
	}

	page.Sections = make([]*PageSection, 0, len(snap.Sections))
	for i, section := range snap.Sections {
		page.Sections = append(page.Sections, &PageSection{
			ID:       parseSnapshotID(section.ID),
			PageID:   page.ID,
			Title:    section.Title,
			Content:  section.Content,
			Type:     section.Type,
			Position: section.Position,
			Ordinal:  i,
			IsActive: section.IsActive,
		})
	}
	page.Media = make([]*PageMedia, 0, len(snap.Media))
	for i, item := range snap.Media {
		page.Media = append(page.Media, &PageMedia{
			ID:         parseSnapshotID(item.ID),
			PageID:     page.ID,
			File:       item.File,
			URL:        item.URL,
			MediaURL:   item.MediaURL,
			Caption:    item.Caption,
			IsFeatured: item.IsFeatured,
			Position:   i,
		})
	}
}

func (b *SnapshotBuilder) stringField(name, value string) *string {
	if !b.Tracks(name) {
		return nil
	}
	copied := value
	return &copied
}

func orderedSections(sections []*PageSection) []*PageSection {
	out := make([]*PageSection, 0, len(sections))
	for _, section := range sections {
		if section != nil {
			out = append(out, section)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].Ordinal < out[j].Ordinal
	})
	return out
}

func parseSnapshotID(raw string) uuid.UUID {
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.New()
	}
	return id
}

func isTrackable(name string) bool {
	for _, candidate := range cmspages.TrackableFields {
		if candidate == name {
			return true
		}
	}
	return false
}
