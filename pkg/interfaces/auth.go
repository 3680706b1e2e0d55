package interfaces

import (
	"context"

	"github.com/google/uuid"
)

// AuthorizationResource describes the page an actor wants to act on. PageID is nil for
// operations that create new pages.
type AuthorizationResource struct {
	TenantID uuid.UUID
	PageID   uuid.UUID
	Status   string
}

// Authorizer decides whether an actor may perform an action. Actions are permission tokens
// such as "pages:publish".
type Authorizer interface {
	Authorize(ctx context.Context, actor uuid.UUID, action string, resource AuthorizationResource) bool
}

// AuthorizerFunc adapts a function into an Authorizer.
type AuthorizerFunc func(ctx context.Context, actor uuid.UUID, action string, resource AuthorizationResource) bool

func (fn AuthorizerFunc) Authorize(ctx context.Context, actor uuid.UUID, action string, resource AuthorizationResource) bool {
	if fn == nil {
		return true
	}
	return fn(ctx, actor, action, resource)
}

// AllowAll returns an Authorizer that grants every action.
func AllowAll() Authorizer {
	return AuthorizerFunc(func(context.Context, uuid.UUID, string, AuthorizationResource) bool {
		return true
	})
}
