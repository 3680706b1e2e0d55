package previews

import cmspreviews "github.com/municipio/pagecms/previews"

type (
	Service      = cmspreviews.Service
	PreviewToken = cmspreviews.PreviewToken
	IssueRequest = cmspreviews.IssueRequest
	Preview      = cmspreviews.Preview
)

var (
	ErrTokenRequired    = cmspreviews.ErrTokenRequired
	ErrTokenNotFound    = cmspreviews.ErrTokenNotFound
	ErrTokenExpired     = cmspreviews.ErrTokenExpired
	ErrTokenCollision   = cmspreviews.ErrTokenCollision
	ErrTTLInvalid       = cmspreviews.ErrTTLInvalid
	ErrPageRequired     = cmspreviews.ErrPageRequired
	ErrTenantRequired   = cmspreviews.ErrTenantRequired
	ErrTenantMismatch   = cmspreviews.ErrTenantMismatch
	ErrStorage          = cmspreviews.ErrStorage
	ErrEntropyExhausted = cmspreviews.ErrEntropyExhausted
)

const (
	TokenBytes     = cmspreviews.TokenBytes
	MaxTokenLength = cmspreviews.MaxTokenLength
)

func IsNotFound(err error) bool {
	return cmspreviews.IsNotFound(err)
}

func IsExpired(err error) bool {
	return cmspreviews.IsExpired(err)
}
