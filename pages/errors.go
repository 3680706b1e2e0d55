package pages

import (
	"errors"
	"fmt"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// CategoryExpired tags credentials that existed but are past their validity window.
const CategoryExpired goerrors.Category = "expired"

var (
	ErrTenantRequired          = errors.New("pages: tenant is required")
	ErrPageRequired            = errors.New("pages: page id required")
	ErrPageInvalid             = errors.New("pages: page payload is invalid")
	ErrTitleRequired           = errors.New("pages: title is required")
	ErrSlugRequired            = errors.New("pages: slug is required")
	ErrSlugInvalid             = errors.New("pages: slug contains invalid characters")
	ErrSlugReserved            = errors.New("pages: slug is reserved")
	ErrSlugExists              = errors.New("pages: slug already exists")
	ErrSlugConflict            = errors.New("pages: slug claimed by a concurrent writer")
	ErrRevisionConflict        = errors.New("pages: page revision mismatch")
	ErrLanguageRequired        = errors.New("pages: language is required")
	ErrTemplateInvalid         = errors.New("pages: template is not supported")
	ErrStatusInvalid           = errors.New("pages: status is not supported")
	ErrTransitionInvalid       = errors.New("pages: status transition not allowed")
	ErrCanonicalURLInvalid     = errors.New("pages: canonical url must be an absolute http(s) url")
	ErrCanonicalURLInsecure    = errors.New("pages: canonical url must use https")
	ErrSectionTypeInvalid      = errors.New("pages: section type is not supported")
	ErrMediaSourceRequired     = errors.New("pages: media requires a file, url or media url")
	ErrMultipleFeaturedMedia   = errors.New("pages: only one media item can be featured")
	ErrScheduleWindowInvalid   = errors.New("pages: publish_at must be before unpublish_at")
	ErrPageNotFound            = errors.New("pages: page not found")
	ErrVersionNotFound         = errors.New("pages: version not found")
	ErrVersionRequired         = errors.New("pages: version number required")
	ErrVersioningDisabled      = errors.New("pages: versioning feature disabled")
	ErrSnapshotInvalid         = errors.New("pages: snapshot does not match schema")
	ErrDuplicateSlugExhausted  = errors.New("pages: unable to determine unique duplicate slug")
	ErrForbidden               = errors.New("pages: actor is not allowed to perform this action")
	ErrStorage                 = errors.New("pages: storage failure")
	ErrRedirectChainTooLong    = errors.New("pages: slug redirect chain exceeds hop limit")
	ErrTranslationTargetAbsent = errors.New("pages: translation source page not found")
)

// PageNotFoundError reports a missing page keyed by id or slug.
type PageNotFoundError struct {
	Key string
}

func (e *PageNotFoundError) Error() string {
	if e == nil || strings.TrimSpace(e.Key) == "" {
		return ErrPageNotFound.Error()
	}
	return fmt.Sprintf("%s: %s", ErrPageNotFound.Error(), e.Key)
}

func (e *PageNotFoundError) Unwrap() error {
	return ErrPageNotFound
}

// PageVersionNotFoundError reports a missing version for a page.
type PageVersionNotFoundError struct {
	PageID  uuid.UUID
	Version int
}

func (e *PageVersionNotFoundError) Error() string {
	if e == nil {
		return ErrVersionNotFound.Error()
	}
	if e.Version > 0 {
		return fmt.Sprintf("%s: page=%s version=%d", ErrVersionNotFound.Error(), e.PageID, e.Version)
	}
	return fmt.Sprintf("%s: page=%s", ErrVersionNotFound.Error(), e.PageID)
}

func (e *PageVersionNotFoundError) Unwrap() error {
	return ErrVersionNotFound
}

// IsValidation reports whether err represents rejected caller input.
func IsValidation(err error) bool {
	return goerrors.IsValidation(err)
}

// IsNotFound reports whether err represents a missing page, version or token.
func IsNotFound(err error) bool {
	if goerrors.IsNotFound(err) {
		return true
	}
	return errors.Is(err, ErrPageNotFound) || errors.Is(err, ErrVersionNotFound)
}

// IsConflict reports whether err represents a lost race with a concurrent writer.
func IsConflict(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryConflict)
}

// IsExpired reports whether err represents an expired credential.
func IsExpired(err error) bool {
	return goerrors.IsCategory(err, CategoryExpired)
}

// IsForbidden reports whether err represents an authorization failure.
func IsForbidden(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryAuthz)
}
