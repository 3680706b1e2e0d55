package pages

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
	cmspages "github.com/municipio/pagecms/pages"
)

const (
	maxTitleLength    = 255
	maxLanguageLength = 10
)

func (s *service) validatePage(page *Page) error {
	err := validation.ValidateStruct(page,
		validation.Field(&page.Title, validation.Required, validation.Length(1, maxTitleLength)),
		validation.Field(&page.Language, validation.Required, validation.Length(2, maxLanguageLength)),
		validation.Field(&page.Template, validation.Required, validation.In(stringsToAny(cmspages.Templates)...)),
	)
	if err != nil {
		return fieldsError(err)
	}

	if page.Slug == "" {
		return validationError(ErrSlugRequired, codeSlugInvalid, "slug", "is required")
	}
	if !IsValidSlug(page.Slug) {
		return validationError(ErrSlugInvalid, codeSlugInvalid, "slug", "must contain lowercase letters, digits and single hyphens")
	}
	if _, reserved := s.reserved[page.Slug]; reserved {
		return validationError(ErrSlugReserved, codeSlugReserved, "slug", "is reserved")
	}

	if page.Meta != nil && page.Meta.CanonicalURL != "" {
		if err := s.validateCanonical(page.Meta.CanonicalURL); err != nil {
			return err
		}
	}
	for i, section := range page.Sections {
		if !contains(cmspages.SectionTypes, section.Type) {
			return validationError(ErrSectionTypeInvalid, codePageInvalid, fmt.Sprintf("sections[%d].type", i), "is not supported")
		}
	}
	featured := 0
	for i, item := range page.Media {
		if item.File == "" && item.URL == "" && item.MediaURL == "" {
			return validationError(ErrMediaSourceRequired, codeMediaSourceRequired, fmt.Sprintf("media[%d]", i), "requires a file, url or media url")
		}
		if item.IsFeatured {
			featured++
		}
	}
	if featured > 1 {
		return validationError(ErrMultipleFeaturedMedia, codeMediaFeatured, "media", "only one item can be featured")
	}
	return validateScheduleWindow(page.ScheduledPublishAt, page.ScheduledUnpublishAt)
}

func (s *service) validateCanonical(raw string) error {
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return validationError(ErrCanonicalURLInvalid, codeCanonicalInvalid, "meta.canonical_url", "must be an absolute url")
	}
	switch strings.ToLower(parsed.Scheme) {
	case "https":
		return nil
	case "http":
		if s.enforceHTTPS {
			return validationError(ErrCanonicalURLInsecure, codeCanonicalInvalid, "meta.canonical_url", "must use https")
		}
		return nil
	default:
		return validationError(ErrCanonicalURLInvalid, codeCanonicalInvalid, "meta.canonical_url", "must use http or https")
	}
}

func validateScheduleWindow(publishAt, unpublishAt *time.Time) error {
	if publishAt == nil || unpublishAt == nil {
		return nil
	}
	if !publishAt.Before(*unpublishAt) {
		return validationError(ErrScheduleWindowInvalid, codeScheduleInvalid, "scheduled_unpublish_at", "must be after scheduled_publish_at")
	}
	return nil
}

func (s *service) buildMeta(pageID uuid.UUID, input *PageMetaInput, existing *PageMeta) *PageMeta {
	if input == nil {
		return nil
	}
	id := s.id()
	if existing != nil {
		id = existing.ID
	}
	robots := strings.TrimSpace(input.RobotsDirective)
	if robots == "" {
		robots = cmspages.DefaultRobotsDirective
	}
	return &PageMeta{
		ID:              id,
		PageID:          pageID,
		MetaTitle:       s.sanitizer.SanitizePlainText(input.MetaTitle),
		MetaDescription: s.sanitizer.SanitizePlainText(input.MetaDescription),
		CanonicalURL:    strings.TrimSpace(input.CanonicalURL),
		OGTitle:         s.sanitizer.SanitizePlainText(input.OGTitle),
		OGDescription:   s.sanitizer.SanitizePlainText(input.OGDescription),
		OGImage:         strings.TrimSpace(input.OGImage),
		RobotsDirective: robots,
	}
}

// buildSections keeps ids of existing sections and assigns fresh ids to everything else.
func (s *service) buildSections(pageID uuid.UUID, inputs []PageSectionInput, existing []*PageSection) []*PageSection {
	known := make(map[uuid.UUID]struct{}, len(existing))
	for _, section := range existing {
		known[section.ID] = struct{}{}
	}
	out := make([]*PageSection, 0, len(inputs))
	for i, input := range inputs {
		out = append(out, &PageSection{
			ID:       s.keepID(input.ID, known),
			PageID:   pageID,
			Title:    s.sanitizer.SanitizePlainText(input.Title),
			Content:  s.sanitizer.SanitizeHTML(input.Content),
			Type:     strings.ToLower(strings.TrimSpace(input.Type)),
			Position: input.Position,
			Ordinal:  i,
			IsActive: input.IsActive,
		})
	}
	return out
}

func (s *service) buildMedia(pageID uuid.UUID, inputs []PageMediaInput, existing []*PageMedia) []*PageMedia {
	known := make(map[uuid.UUID]struct{}, len(existing))
	for _, item := range existing {
		known[item.ID] = struct{}{}
	}
	out := make([]*PageMedia, 0, len(inputs))
	for i, input := range inputs {
		out = append(out, &PageMedia{
			ID:         s.keepID(input.ID, known),
			PageID:     pageID,
			File:       strings.TrimSpace(input.File),
			URL:        strings.TrimSpace(input.URL),
			MediaURL:   strings.TrimSpace(input.MediaURL),
			Caption:    s.sanitizer.SanitizePlainText(input.Caption),
			IsFeatured: input.IsFeatured,
			Position:   i,
		})
	}
	return out
}

func (s *service) keepID(id uuid.UUID, known map[uuid.UUID]struct{}) uuid.UUID {
	if _, ok := known[id]; ok && id != uuid.Nil {
		return id
	}
	return s.id()
}

func stringsToAny(values []string) []any {
	out := make([]any, len(values))
	for i, value := range values {
		out[i] = value
	}
	return out
}

func contains(values []string, target string) bool {
	for _, value := range values {
		if value == target {
			return true
		}
	}
	return false
}
