package pages

import (
	"context"
	"errors"
	"fmt"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/locks"
	"github.com/municipio/pagecms/internal/storage"
)

const (
	codePageInvalid          = "PAGE_INVALID"
	codeTenantRequired       = "PAGE_TENANT_REQUIRED"
	codeSlugInvalid          = "PAGE_SLUG_INVALID"
	codeSlugReserved         = "PAGE_SLUG_RESERVED"
	codeSlugExists           = "PAGE_SLUG_EXISTS"
	codeCanonicalInvalid     = "PAGE_CANONICAL_INVALID"
	codeMediaSourceRequired  = "PAGE_MEDIA_SOURCE_REQUIRED"
	codeMediaFeatured        = "PAGE_MEDIA_FEATURED_MULTIPLE"
	codeScheduleInvalid      = "PAGE_SCHEDULE_INVALID"
	codeSnapshotInvalid      = "PAGE_SNAPSHOT_INVALID"
	codeVersionRequired      = "PAGE_VERSION_REQUIRED"
	codeVersioningDisabled   = "PAGE_VERSIONING_DISABLED"
	codeTranslationAbsent    = "PAGE_TRANSLATION_SOURCE_NOT_FOUND"
	codePageNotFound         = "PAGE_NOT_FOUND"
	codeVersionNotFound      = "PAGE_VERSION_NOT_FOUND"
	codeSlugConflict         = "PAGE_SLUG_CONFLICT"
	codeRevisionConflict     = "PAGE_REVISION_CONFLICT"
	codeDuplicateExhausted   = "PAGE_DUPLICATE_SLUG_EXHAUSTED"
	codeForbidden            = "PAGE_FORBIDDEN"
	codeTransitionInvalid    = "PAGE_TRANSITION_INVALID"
	codeStorageFailure       = "PAGE_STORAGE_FAILURE"
	codeRedirectChainTooLong = "PAGE_REDIRECT_CHAIN_TOO_LONG"
)

var errUniqueViolation = errors.New("pages: unique index violated")

func uniqueViolation(index string) error {
	return fmt.Errorf("%w: %s", errUniqueViolation, index)
}

func isUniqueViolation(err error) bool {
	return errors.Is(err, errUniqueViolation) || storage.IsUniqueViolation(err)
}

func validationError(sentinel error, code, field, message string) error {
	wrapped := goerrors.Wrap(sentinel, goerrors.CategoryValidation, sentinel.Error()).WithTextCode(code)
	wrapped.ValidationErrors = goerrors.ValidationErrors{{Field: field, Message: message}}
	return wrapped
}

// fieldsError converts ozzo field errors into a validation error rooted at ErrPageInvalid.
func fieldsError(err error) error {
	if err == nil {
		return nil
	}
	var ozzo validation.Errors
	if !errors.As(err, &ozzo) {
		return goerrors.Wrap(err, goerrors.CategoryValidation, ErrPageInvalid.Error()).WithTextCode(codePageInvalid)
	}
	mapped := goerrors.FromOzzoValidation(ozzo, ErrPageInvalid.Error())
	mapped.Source = ErrPageInvalid
	return mapped.WithTextCode(codePageInvalid)
}

func notFoundError(err error) error {
	code := codePageNotFound
	if errors.Is(err, ErrVersionNotFound) {
		code = codeVersionNotFound
	}
	return goerrors.Wrap(err, goerrors.CategoryNotFound, err.Error()).WithTextCode(code)
}

func pageNotFound(id uuid.UUID) error {
	return notFoundError(&PageNotFoundError{Key: id.String()})
}

func conflictError(sentinel error, code string, metadata map[string]any) error {
	return goerrors.Wrap(sentinel, goerrors.CategoryConflict, sentinel.Error()).
		WithTextCode(code).
		WithMetadata(metadata)
}

func revisionConflict(pageID uuid.UUID, expected, actual int) error {
	return conflictError(ErrRevisionConflict, codeRevisionConflict, map[string]any{
		"page_id":           pageID.String(),
		"expected_revision": expected,
		"actual_revision":   actual,
	})
}

func slugConflict(tenantID uuid.UUID, language, slug string) error {
	return conflictError(ErrSlugConflict, codeSlugConflict, map[string]any{
		"tenant_id": tenantID.String(),
		"language":  language,
		"slug":      slug,
	})
}

func forbiddenError(action string, pageID uuid.UUID) error {
	metadata := map[string]any{"action": action}
	if pageID != uuid.Nil {
		metadata["page_id"] = pageID.String()
	}
	return goerrors.Wrap(ErrForbidden, goerrors.CategoryAuthz, ErrForbidden.Error()).
		WithTextCode(codeForbidden).
		WithMetadata(metadata)
}

func transitionError(from, to string) error {
	return goerrors.Wrap(ErrTransitionInvalid, goerrors.CategoryBadInput, fmt.Sprintf("%s: %s -> %s", ErrTransitionInvalid.Error(), from, to)).
		WithTextCode(codeTransitionInvalid).
		WithMetadata(map[string]any{"from": from, "to": to})
}

// storageError classifies repository failures. Errors already categorized pass through,
// unique index violations become slug conflicts and everything else is a storage failure.
func storageError(err error, op string, page *Page) error {
	if err == nil {
		return nil
	}
	var typed *goerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, ErrPageNotFound) || errors.Is(err, ErrVersionNotFound) {
		return notFoundError(err)
	}
	if errors.Is(err, locks.ErrLockUnavailable) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return goerrors.Wrap(err, goerrors.CategoryOperation, "pages: "+op+" interrupted").WithTextCode(codeStorageFailure)
	}
	if isUniqueViolation(err) && page != nil {
		return slugConflict(page.TenantID, page.Language, page.Slug)
	}
	return goerrors.Wrap(errors.Join(ErrStorage, err), goerrors.CategoryInternal, "pages: "+op+" failed").
		WithTextCode(codeStorageFailure)
}
