package permissions

import (
	"context"
	"sync"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// GrantAuthorizer answers authorization checks from an in-memory grant table keyed by actor.
// Grants may be global ("pages:publish") or tenant scoped ("pages:publish@<tenant-id>").
type GrantAuthorizer struct {
	mu       sync.RWMutex
	grants   map[uuid.UUID]Set
	strategy Strategy
}

var _ interfaces.Authorizer = (*GrantAuthorizer)(nil)

// AuthorizerOption configures a GrantAuthorizer.
type AuthorizerOption func(*GrantAuthorizer)

// WithStrategy overrides how tenant scoped grants are resolved.
func WithStrategy(strategy Strategy) AuthorizerOption {
	return func(a *GrantAuthorizer) {
		if strategy != nil {
			a.strategy = strategy
		}
	}
}

func NewGrantAuthorizer(opts ...AuthorizerOption) *GrantAuthorizer {
	a := &GrantAuthorizer{
		grants:   make(map[uuid.UUID]Set),
		strategy: TenantFirstStrategy,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Grant adds permissions for an actor.
func (a *GrantAuthorizer) Grant(actor uuid.UUID, perms ...string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	set, ok := a.grants[actor]
	if !ok {
		set = Set{}
		a.grants[actor] = set
	}
	for perm := range NewSet(perms...) {
		set[perm] = struct{}{}
	}
}

// GrantTenant adds permissions scoped to one tenant.
func (a *GrantAuthorizer) GrantTenant(actor, tenantID uuid.UUID, perms ...string) {
	scoped := make([]string, 0, len(perms))
	for _, perm := range perms {
		scoped = append(scoped, scopePermission(normalizePermission(perm), tenantID.String()))
	}
	a.Grant(actor, scoped...)
}

// Revoke removes every grant of an actor.
func (a *GrantAuthorizer) Revoke(actor uuid.UUID) {
	a.mu.Lock()
	defer a.mu.Unlock()
	delete(a.grants, actor)
}

func (a *GrantAuthorizer) Authorize(_ context.Context, actor uuid.UUID, action string, resource interfaces.AuthorizationResource) bool {
	a.mu.RLock()
	set := a.grants[actor]
	a.mu.RUnlock()
	if len(set) == 0 {
		return false
	}
	tenantKey := ""
	if resource.TenantID != uuid.Nil {
		tenantKey = resource.TenantID.String()
	}
	return allowedWithScope(set, a.strategy, action, tenantKey)
}

// Require returns an Error when the actor lacks the permission.
func Require(ctx context.Context, authorizer interfaces.Authorizer, actor uuid.UUID, permission string, resource interfaces.AuthorizationResource) error {
	if authorizer == nil {
		return nil
	}
	if authorizer.Authorize(ctx, actor, permission, resource) {
		return nil
	}
	return Error{Permission: normalizePermission(permission)}
}
