package previews

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/storage"
	cmspages "github.com/municipio/pagecms/pages"
)

const (
	codeTokenRequired  = "PREVIEW_TOKEN_REQUIRED"
	codeTokenNotFound  = "PREVIEW_TOKEN_NOT_FOUND"
	codeTokenExpired   = "PREVIEW_TOKEN_EXPIRED"
	codeTokenCollision = "PREVIEW_TOKEN_COLLISION"
	codeTTLInvalid     = "PREVIEW_TTL_INVALID"
	codeRequestInvalid = "PREVIEW_REQUEST_INVALID"
	codeForbidden      = "PREVIEW_FORBIDDEN"
	codeStorageFailure = "PREVIEW_STORAGE_FAILURE"
	codeEntropyFailure = "PREVIEW_ENTROPY_FAILURE"
)

var errDuplicateToken = errors.New("previews: token already stored")

func isDuplicateToken(err error) bool {
	return errors.Is(err, errDuplicateToken) || storage.IsUniqueViolation(err)
}

func validationError(sentinel error, code, field, message string) error {
	wrapped := goerrors.Wrap(sentinel, goerrors.CategoryValidation, sentinel.Error()).WithTextCode(code)
	wrapped.ValidationErrors = goerrors.ValidationErrors{{Field: field, Message: message}}
	return wrapped
}

func tokenNotFound() error {
	return goerrors.Wrap(ErrTokenNotFound, goerrors.CategoryNotFound, ErrTokenNotFound.Error()).
		WithTextCode(codeTokenNotFound)
}

func pageNotFound(pageID uuid.UUID) error {
	return goerrors.Wrap(&cmspages.PageNotFoundError{Key: pageID.String()}, goerrors.CategoryNotFound, cmspages.ErrPageNotFound.Error()).
		WithTextCode(codeTokenNotFound).
		WithMetadata(map[string]any{"page_id": pageID.String()})
}

func tokenExpired(token *PreviewToken) error {
	return goerrors.Wrap(ErrTokenExpired, cmspages.CategoryExpired, ErrTokenExpired.Error()).
		WithTextCode(codeTokenExpired).
		WithMetadata(map[string]any{
			"page_id":    token.PageID.String(),
			"expires_at": token.ExpiresAt,
		})
}

func forbiddenError(action string, pageID uuid.UUID) error {
	return goerrors.Wrap(cmspages.ErrForbidden, goerrors.CategoryAuthz, cmspages.ErrForbidden.Error()).
		WithTextCode(codeForbidden).
		WithMetadata(map[string]any{"action": action, "page_id": pageID.String()})
}

func storageError(err error, op string) error {
	if err == nil {
		return nil
	}
	var typed *goerrors.Error
	if errors.As(err, &typed) {
		return err
	}
	category := goerrors.CategoryInternal
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		category = goerrors.CategoryOperation
	}
	return goerrors.Wrap(errors.Join(ErrStorage, err), category, "previews: "+op+" failed").
		WithTextCode(codeStorageFailure)
}

func isPageNotFound(err error) bool {
	return errors.Is(err, cmspages.ErrPageNotFound) || goerrors.IsNotFound(err)
}

func isTokenNotFound(err error) bool {
	return errors.Is(err, ErrTokenNotFound)
}
