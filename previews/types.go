package previews

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/pages"
	"github.com/uptrace/bun"
)

// TokenBytes is the amount of entropy drawn for every token.
const TokenBytes = 32

// MaxTokenLength bounds the stored token column.
const MaxTokenLength = 64

// PreviewToken grants read access to a single page until ExpiresAt.
type PreviewToken struct {
	bun.BaseModel `bun:"table:page_preview_tokens,alias:ppt"`

	ID        uuid.UUID `bun:",pk,type:uuid" json:"id"`
	PageID    uuid.UUID `bun:"page_id,notnull,type:uuid" json:"page_id"`
	TenantID  uuid.UUID `bun:"tenant_id,notnull,type:uuid" json:"tenant_id"`
	Token     string    `bun:"token,notnull,unique" json:"token"`
	CreatedBy uuid.UUID `bun:"created_by,type:uuid" json:"created_by"`
	CreatedAt time.Time `bun:"created_at,notnull" json:"created_at"`
	ExpiresAt time.Time `bun:"expires_at,notnull" json:"expires_at"`
}

// ValidAt reports whether the token can still be redeemed at now.
func (t *PreviewToken) ValidAt(now time.Time) bool {
	return t != nil && now.Before(t.ExpiresAt)
}

// IssueRequest describes a preview grant. A zero TTL falls back to the configured default.
type IssueRequest struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
	Issuer   uuid.UUID
	TTL      time.Duration
}

// Preview is the read-only projection returned on redemption. The page carries its meta,
// sections and media regardless of publication status.
type Preview struct {
	Token *PreviewToken
	Page  *pages.Page
}

// Service issues and redeems preview tokens.
type Service interface {
	Issue(ctx context.Context, req IssueRequest) (*PreviewToken, error)
	Redeem(ctx context.Context, token string) (*Preview, error)
	Revoke(ctx context.Context, token string) error
	PurgeExpired(ctx context.Context) (int, error)
}

// Path returns the relative preview url of a token.
func Path(token string) string {
	return "preview/" + token + "/"
}
