package pages

import (
	"context"

	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/permissions"
)

const (
	duplicateTitleSuffix = " (Copy)"
	duplicateSlugSuffix  = "-copy"
)

// Duplicate copies a page and its children into a new draft with a unique "-copy" slug.
func (s *service) Duplicate(ctx context.Context, req DuplicatePageRequest) (*MutationResult, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	source, err := s.loadLive(ctx, req.TenantID, req.PageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.Actor, permissions.PagesDuplicate, source.TenantID, source.ID, source.Status); err != nil {
		return nil, err
	}

	now := s.now()
	copyPage := clonePage(source)
	copyPage.ID = s.id()
	copyPage.Title = source.Title + duplicateTitleSuffix
	copyPage.Status = domain.StatusDraft
	copyPage.PublishedAt = nil
	copyPage.UnpublishedAt = nil
	copyPage.ScheduledPublishAt = nil
	copyPage.ScheduledUnpublishAt = nil
	copyPage.IsDeleted = false
	copyPage.DeletedAt = nil
	copyPage.Revision = 1
	copyPage.CreatedBy = req.Actor
	copyPage.UpdatedBy = req.Actor
	copyPage.CreatedAt = now
	copyPage.UpdatedAt = now
	if copyPage.Meta != nil {
		copyPage.Meta.ID = s.id()
		copyPage.Meta.PageID = copyPage.ID
	}
	for _, section := range copyPage.Sections {
		section.ID = s.id()
		section.PageID = copyPage.ID
	}
	for _, item := range copyPage.Media {
		item.ID = s.id()
		item.PageID = copyPage.ID
	}

	var created *Page
	err = s.withAvailableSlug(ctx, copyPage, source.Slug+duplicateSlugSuffix, func() error {
		var createErr error
		created, createErr = s.pages.Create(ctx, copyPage)
		return storageError(createErr, "duplicate", copyPage)
	})
	if err != nil {
		return nil, err
	}

	logging.WithPageContext(s.logger, created.TenantID, created.ID, "duplicate").
		Info("pages.duplicated", "source_id", source.ID, "slug", created.Slug)
	s.recordAudit(ctx, created, req.Actor, "duplicated", map[string]any{"source_id": source.ID.String()})
	return s.recordVersion(ctx, created, req.Actor, "", false), nil
}
