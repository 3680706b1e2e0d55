package locks

import (
	"context"
	"errors"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrLockUnavailable reports that a lease could not be obtained before the context ended.
var ErrLockUnavailable = errors.New("locks: lease not acquired")

// Unlock releases a held lease. It is safe to call more than once.
type Unlock func()

// Locker grants exclusive leases on string keys. Leases are not reentrant: a holder that
// asks for the same key again blocks until its context ends.
type Locker interface {
	Lock(ctx context.Context, key string) (Unlock, error)
}

// PageKey is the lease protecting a page row during saves and transitions.
func PageKey(pageID uuid.UUID) string {
	return "pages:" + pageID.String()
}

// VersionKey is the lease protecting version number assignment for a page.
func VersionKey(pageID uuid.UUID) string {
	return "pages:" + pageID.String() + ":versions"
}

// SlugKey is the lease protecting a slug claim inside a tenant and language.
func SlugKey(tenantID uuid.UUID, language, slug string) string {
	return "slug:" + tenantID.String() + ":" + language + ":" + slug
}

func unavailable(key string, cause error) error {
	return goerrors.Wrap(errors.Join(ErrLockUnavailable, cause), goerrors.CategoryOperation, "locks: acquire "+key).
		WithTextCode("LOCK_UNAVAILABLE")
}
