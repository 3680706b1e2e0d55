package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-slug"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
)

// MaxRedirectHops bounds how many historical renames a lookup follows.
const MaxRedirectHops = 10

// NormalizeSlug lowercases value and collapses every run of non alphanumerics into a hyphen.
func NormalizeSlug(value string) (string, error) {
	return slug.Normalize(value)
}

// IsValidSlug reports whether value is already normalized.
func IsValidSlug(value string) bool {
	return slug.IsValid(value)
}

// SlugRegistry records slug renames and resolves historical slugs to live pages.
type SlugRegistry struct {
	pages   PageRepository
	history SlugHistoryRepository
	now     func() time.Time
	id      IDGenerator
}

func NewSlugRegistry(pages PageRepository, history SlugHistoryRepository, now func() time.Time, id IDGenerator) *SlugRegistry {
	if now == nil {
		now = time.Now
	}
	if id == nil {
		id = uuid.New
	}
	return &SlugRegistry{pages: pages, history: history, now: now, id: id}
}

// RecordRename appends oldSlug as a redirect to the current slug of page. History is
// append-only: when the (page, old slug) pair is already recorded the existing row is
// returned untouched.
func (r *SlugRegistry) RecordRename(ctx context.Context, page *Page, oldSlug string) (*PageSlugHistory, error) {
	if page == nil || oldSlug == "" || oldSlug == page.Slug {
		return nil, nil
	}
	existing, err := r.history.Find(ctx, page.ID, oldSlug)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		return existing, nil
	}
	return r.history.Create(ctx, &PageSlugHistory{
		ID:        r.id(),
		PageID:    page.ID,
		TenantID:  page.TenantID,
		Language:  page.Language,
		OldSlug:   oldSlug,
		NewSlug:   page.Slug,
		ChangedAt: r.now(),
	})
}

// History lists the renames of a page.
func (r *SlugRegistry) History(ctx context.Context, pageID uuid.UUID) ([]*PageSlugHistory, error) {
	return r.history.ListByPage(ctx, pageID)
}

// Forget drops the history of a purged page.
func (r *SlugRegistry) Forget(ctx context.Context, pageID uuid.UUID) error {
	return r.history.DeleteByPage(ctx, pageID)
}

// Resolve returns the live published page for slug. A historical slug redirects to the
// current slug of the page that owned it. When that page is gone the recorded targets are
// followed instead, up to MaxRedirectHops.
func (r *SlugRegistry) Resolve(ctx context.Context, tenantID uuid.UUID, requested, language string) (*Resolution, error) {
	requested = strings.TrimSpace(requested)
	language = strings.TrimSpace(language)

	page, err := r.livePublished(ctx, tenantID, language, requested)
	if err != nil {
		return nil, err
	}
	if page != nil {
		return &Resolution{Page: page}, nil
	}

	visited := map[string]struct{}{requested: {}}
	current := requested
	for hop := 0; hop < MaxRedirectHops; hop++ {
		entry, err := r.history.LatestByOldSlug(ctx, tenantID, language, current)
		if err != nil {
			return nil, err
		}
		if entry == nil {
			return nil, notFoundError(&PageNotFoundError{Key: requested})
		}
		if language == "" {
			language = entry.Language
		}

		owner, err := r.liveOwner(ctx, tenantID, language, entry.PageID)
		if err != nil {
			return nil, err
		}
		if owner != nil && owner.Slug != requested {
			return &Resolution{Page: owner, RedirectSlug: owner.Slug}, nil
		}

		next := entry.NewSlug
		if _, seen := visited[next]; seen {
			return nil, notFoundError(&PageNotFoundError{Key: requested})
		}
		visited[next] = struct{}{}

		page, err := r.livePublished(ctx, tenantID, language, next)
		if err != nil {
			return nil, err
		}
		if page != nil {
			return &Resolution{Page: page, RedirectSlug: next}, nil
		}
		current = next
	}
	return nil, goerrors.Wrap(ErrRedirectChainTooLong, goerrors.CategoryNotFound, ErrRedirectChainTooLong.Error()).
		WithTextCode(codeRedirectChainTooLong).
		WithMetadata(map[string]any{"slug": requested, "hops": MaxRedirectHops})
}

// liveOwner loads the page a history row belongs to, or nil when it is missing, deleted,
// unpublished or outside the tenant and language.
func (r *SlugRegistry) liveOwner(ctx context.Context, tenantID uuid.UUID, language string, pageID uuid.UUID) (*Page, error) {
	page, err := r.pages.GetByID(ctx, pageID)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if page.TenantID != tenantID || page.IsDeleted || page.Status != domain.StatusPublished {
		return nil, nil
	}
	if language != "" && !strings.EqualFold(page.Language, language) {
		return nil, nil
	}
	return page, nil
}

func (r *SlugRegistry) livePublished(ctx context.Context, tenantID uuid.UUID, language, slugValue string) (*Page, error) {
	candidates, err := r.pages.ListBySlug(ctx, tenantID, language, slugValue)
	if err != nil {
		return nil, err
	}
	for _, candidate := range candidates {
		if candidate.IsDeleted || candidate.Status != domain.StatusPublished {
			continue
		}
		return r.pages.GetByID(ctx, candidate.ID)
	}
	return nil, nil
}
