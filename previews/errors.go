package previews

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/municipio/pagecms/pages"
)

var (
	ErrTokenRequired    = errors.New("previews: token is required")
	ErrTokenNotFound    = errors.New("previews: token not found")
	ErrTokenExpired     = errors.New("previews: token expired")
	ErrTokenCollision   = errors.New("previews: could not allocate a unique token")
	ErrTTLInvalid       = errors.New("previews: ttl must be positive and within the configured maximum")
	ErrPageRequired     = errors.New("previews: page id required")
	ErrTenantRequired   = errors.New("previews: tenant is required")
	ErrTenantMismatch   = errors.New("previews: page belongs to another tenant")
	ErrStorage          = errors.New("previews: storage failure")
	ErrEntropyExhausted = errors.New("previews: random source failed")
)

// IsNotFound reports whether err represents an unknown token or a missing page.
func IsNotFound(err error) bool {
	return goerrors.IsNotFound(err) || errors.Is(err, ErrTokenNotFound)
}

// IsExpired reports whether err represents a token past its expiry.
func IsExpired(err error) bool {
	return goerrors.IsCategory(err, pages.CategoryExpired) || errors.Is(err, ErrTokenExpired)
}
