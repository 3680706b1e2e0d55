package pages

import (
	"context"
	"errors"
	"fmt"

	goerrors "github.com/goliatone/go-errors"
	"github.com/municipio/pagecms/internal/permissions"
	"github.com/municipio/pagecms/internal/validation"
)

// ListVersions returns the retained versions of a page, oldest first.
func (s *service) ListVersions(ctx context.Context, req ListVersionsRequest) ([]*PageVersion, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	if _, err := s.load(ctx, req.TenantID, req.PageID, true); err != nil {
		return nil, err
	}
	versions, err := s.versions.List(ctx, req.PageID)
	if err != nil {
		return nil, storageError(err, "list versions", nil)
	}
	return versions, nil
}

func (s *service) GetVersion(ctx context.Context, req GetVersionRequest) (*PageVersion, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	if req.Version <= 0 {
		return nil, validationError(ErrVersionRequired, codeVersionRequired, "version", "must be a positive number")
	}
	if _, err := s.load(ctx, req.TenantID, req.PageID, true); err != nil {
		return nil, err
	}
	version, err := s.versions.Get(ctx, req.PageID, req.Version)
	if err != nil {
		return nil, storageError(err, "get version", nil)
	}
	return version, nil
}

// Rollback restores the page content captured by a version and records the result as a
// new forced version. Status is left untouched.
func (s *service) Rollback(ctx context.Context, req RollbackPageRequest) (*MutationResult, error) {
	if !s.versioningEnabled {
		return nil, goerrors.Wrap(ErrVersioningDisabled, goerrors.CategoryOperation, ErrVersioningDisabled.Error()).
			WithTextCode(codeVersioningDisabled)
	}
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	if req.Version <= 0 {
		return nil, validationError(ErrVersionRequired, codeVersionRequired, "version", "must be a positive number")
	}
	unlock, err := s.lockPage(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.loadLive(ctx, req.TenantID, req.PageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.Actor, permissions.PagesRollback, current.TenantID, current.ID, current.Status); err != nil {
		return nil, err
	}
	version, err := s.versions.Get(ctx, current.ID, req.Version)
	if err != nil {
		return nil, storageError(err, "get version", nil)
	}
	if err := validateStoredSnapshot(version.Snapshot); err != nil {
		return nil, err
	}

	next := clonePage(current)
	s.builder.Restore(next, version.Snapshot)
	if next.Meta != nil {
		next.Meta.ID = s.id()
		if current.Meta != nil {
			next.Meta.ID = current.Meta.ID
		}
	}
	if err := s.validatePage(next); err != nil {
		return nil, err
	}

	note := fmt.Sprintf("Rolled back to version %d", version.Number)
	var result *MutationResult
	if next.Slug != current.Slug || next.Language != current.Language {
		err = s.withAvailableSlug(ctx, next, next.Slug, func() error {
			var writeErr error
			result, writeErr = s.write(ctx, current, next, AllChildren, req.Actor, note, true, "rollback")
			return writeErr
		})
	} else {
		result, err = s.persist(ctx, current, next, AllChildren, req.Actor, note, true, "rollback")
	}
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, result.Page, req.Actor, "rolled_back", map[string]any{"version": version.Number})
	return result, nil
}

// withAvailableSlug sets page.Slug to base, or to the first free variant base-2, base-3
// and so on, and runs store while that slug's lock is held. A candidate taken by a
// concurrent writer, whether seen under the lock or reported by the unique index on store,
// moves on to the next suffix.
func (s *service) withAvailableSlug(ctx context.Context, page *Page, base string, store func() error) error {
	for attempt := 1; attempt <= s.duplicateAttempts; attempt++ {
		page.Slug = base
		if attempt > 1 {
			page.Slug = fmt.Sprintf("%s-%d", base, attempt)
		}
		unlock, err := s.claimSlug(ctx, page)
		if err == nil {
			err = store()
			unlock()
		}
		if err == nil || !errors.Is(err, ErrSlugConflict) {
			return err
		}
	}
	page.Slug = base
	return conflictError(ErrDuplicateSlugExhausted, codeDuplicateExhausted, map[string]any{
		"tenant_id": page.TenantID.String(),
		"language":  page.Language,
		"slug":      base,
		"attempts":  s.duplicateAttempts,
	})
}

func validateStoredSnapshot(snapshot Snapshot) error {
	document, err := snapshot.ToMap()
	if err == nil {
		err = validation.ValidateSnapshot(document)
	}
	if err == nil {
		return nil
	}
	wrapped := goerrors.Wrap(ErrSnapshotInvalid, goerrors.CategoryValidation, ErrSnapshotInvalid.Error()).
		WithTextCode(codeSnapshotInvalid)
	for _, issue := range validation.Issues(err) {
		wrapped.ValidationErrors = append(wrapped.ValidationErrors, goerrors.FieldError{
			Field:   issue.Location,
			Message: issue.Message,
		})
	}
	return wrapped
}
