package pages

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/goliatone/go-repository-cache/cache"
	repositorycache "github.com/goliatone/go-repository-cache/repositorycache"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/uptrace/bun"
)

var pageColumns = []string{
	"title",
	"slug",
	"language",
	"body",
	"banner",
	"template",
	"status",
	"is_featured",
	"published_at",
	"unpublished_at",
	"scheduled_publish_at",
	"scheduled_unpublish_at",
	"translation_of",
	"is_deleted",
	"deleted_at",
	"revision",
	"updated_by",
	"updated_at",
}

// BunPageRepository stores the page aggregate. Row and children writes share one transaction.
type BunPageRepository struct {
	db       *bun.DB
	repo     repository.Repository[*Page]
	meta     repository.Repository[*PageMeta]
	sections repository.Repository[*PageSection]
	media    repository.Repository[*PageMedia]
}

func NewBunPageRepository(db *bun.DB) *BunPageRepository {
	return &BunPageRepository{
		db:       db,
		repo:     NewPageRepository(db),
		meta:     NewPageMetaRepository(db),
		sections: NewPageSectionRepository(db),
		media:    NewPageMediaRepository(db),
	}
}

func (r *BunPageRepository) Create(ctx context.Context, record *Page) (*Page, error) {
	if r.db == nil {
		return nil, fmt.Errorf("page repository: database not configured")
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewInsert().Model(record).Exec(ctx); err != nil {
			return fmt.Errorf("insert page: %w", err)
		}
		return insertChildren(ctx, tx, record, AllChildren)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

func (r *BunPageRepository) GetByID(ctx context.Context, id uuid.UUID) (*Page, error) {
	record, err := r.repo.GetByID(ctx, id.String())
	if err != nil {
		return nil, mapRepositoryError(err, "page", id.String())
	}
	if err := r.loadChildren(ctx, record); err != nil {
		return nil, err
	}
	return record, nil
}

func (r *BunPageRepository) ListBySlug(ctx context.Context, tenantID uuid.UUID, language, slug string) ([]*Page, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.tenant_id = ?", tenantID).
				Where("?TableAlias.slug = ?", slug).
				Where("?TableAlias.is_deleted = ?", false)
			if language != "" {
				q = q.Where("?TableAlias.language = ?", language)
			}
			return q.OrderExpr("?TableAlias.language ASC")
		}),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "page", slug)
	}
	return records, nil
}

func (r *BunPageRepository) List(ctx context.Context, filter PageFilter) ([]*Page, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			q = q.Where("?TableAlias.tenant_id = ?", filter.TenantID)
			if filter.Language != "" {
				q = q.Where("?TableAlias.language = ?", filter.Language)
			}
			if filter.Status != "" {
				q = q.Where("?TableAlias.status = ?", filter.Status)
			}
			if !filter.IncludeDeleted {
				q = q.Where("?TableAlias.is_deleted = ?", false)
			}
			return q.OrderExpr("?TableAlias.created_at ASC")
		}),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "page", filter.TenantID.String())
	}
	return records, nil
}

func (r *BunPageRepository) ListDue(ctx context.Context, now time.Time) ([]*Page, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.is_deleted = ?", false).
				WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
					return q.
						WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
							return q.Where("?TableAlias.scheduled_publish_at <= ?", now).
								Where("?TableAlias.status IN (?)", bun.In([]domain.Status{domain.StatusDraft, domain.StatusPending}))
						}).
						WhereGroup(" OR ", func(q *bun.SelectQuery) *bun.SelectQuery {
							return q.Where("?TableAlias.scheduled_unpublish_at <= ?", now).
								Where("?TableAlias.status = ?", domain.StatusPublished)
						})
				}).
				OrderExpr("?TableAlias.created_at ASC")
		}),
	)
	if err != nil {
		return nil, mapRepositoryError(err, "page", "due")
	}
	return records, nil
}

// Update writes the row guarded by the revision column and replaces the selected children
// in the same transaction.
func (r *BunPageRepository) Update(ctx context.Context, record *Page, expectedRevision int, children ChildReplacement) (*Page, error) {
	if r.db == nil {
		return nil, fmt.Errorf("page repository: database not configured")
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		result, err := tx.NewUpdate().
			Model(record).
			Column(pageColumns...).
			Where("?TableAlias.id = ?", record.ID).
			Where("?TableAlias.revision = ?", expectedRevision).
			Exec(ctx)
		if err != nil {
			return fmt.Errorf("update page: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("page update rows affected: %w", err)
		}
		if affected == 0 {
			return staleRevision(ctx, tx, record.ID, expectedRevision)
		}
		return replaceChildren(ctx, tx, record, children)
	})
	if err != nil {
		return nil, err
	}
	return r.GetByID(ctx, record.ID)
}

// Purge removes the page row and everything that references it.
func (r *BunPageRepository) Purge(ctx context.Context, id uuid.UUID) error {
	if r.db == nil {
		return fmt.Errorf("page repository: database not configured")
	}
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		owned := []struct {
			model any
			table string
		}{
			{model: (*PageMeta)(nil), table: "meta"},
			{model: (*PageSection)(nil), table: "sections"},
			{model: (*PageMedia)(nil), table: "media"},
			{model: (*PageVersion)(nil), table: "versions"},
			{model: (*PageSlugHistory)(nil), table: "slug history"},
		}
		for _, child := range owned {
			if _, err := tx.NewDelete().Model(child.model).Where("?TableAlias.page_id = ?", id).Exec(ctx); err != nil {
				return fmt.Errorf("delete page %s: %w", child.table, err)
			}
		}
		if _, err := tx.NewDelete().TableExpr("page_preview_tokens").Where("page_id = ?", id).Exec(ctx); err != nil {
			return fmt.Errorf("delete page preview tokens: %w", err)
		}

		result, err := tx.NewDelete().Model((*Page)(nil)).Where("?TableAlias.id = ?", id).Exec(ctx)
		if err != nil {
			return fmt.Errorf("delete page: %w", err)
		}
		affected, err := result.RowsAffected()
		if err != nil {
			return fmt.Errorf("page delete rows affected: %w", err)
		}
		if affected == 0 {
			return &PageNotFoundError{Key: id.String()}
		}
		return nil
	})
}

func (r *BunPageRepository) loadChildren(ctx context.Context, record *Page) error {
	metas, _, err := r.meta.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", record.ID)
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return fmt.Errorf("page meta repository error: %w", err)
	}
	record.Meta = nil
	if len(metas) > 0 {
		record.Meta = metas[0]
	}

	sections, _, err := r.sections.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", record.ID).
				OrderExpr("?TableAlias.position ASC, ?TableAlias.ordinal ASC")
		}),
	)
	if err != nil {
		return fmt.Errorf("page section repository error: %w", err)
	}
	record.Sections = sections

	media, _, err := r.media.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", record.ID).
				OrderExpr("?TableAlias.position ASC")
		}),
	)
	if err != nil {
		return fmt.Errorf("page media repository error: %w", err)
	}
	record.Media = media
	return nil
}

func staleRevision(ctx context.Context, tx bun.Tx, id uuid.UUID, expected int) error {
	var actual int
	err := tx.NewSelect().
		Model((*Page)(nil)).
		Column("revision").
		Where("?TableAlias.id = ?", id).
		Scan(ctx, &actual)
	if errors.Is(err, sql.ErrNoRows) {
		return &PageNotFoundError{Key: id.String()}
	}
	if err != nil {
		return fmt.Errorf("read page revision: %w", err)
	}
	return revisionConflict(id, expected, actual)
}

func replaceChildren(ctx context.Context, tx bun.Tx, record *Page, children ChildReplacement) error {
	if children.Meta {
		if _, err := tx.NewDelete().Model((*PageMeta)(nil)).Where("?TableAlias.page_id = ?", record.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete page meta: %w", err)
		}
	}
	if children.Sections {
		if _, err := tx.NewDelete().Model((*PageSection)(nil)).Where("?TableAlias.page_id = ?", record.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete page sections: %w", err)
		}
	}
	if children.Media {
		if _, err := tx.NewDelete().Model((*PageMedia)(nil)).Where("?TableAlias.page_id = ?", record.ID).Exec(ctx); err != nil {
			return fmt.Errorf("delete page media: %w", err)
		}
	}
	return insertChildren(ctx, tx, record, children)
}

func insertChildren(ctx context.Context, tx bun.Tx, record *Page, children ChildReplacement) error {
	if children.Meta && record.Meta != nil {
		meta := cloneMeta(record.Meta)
		meta.PageID = record.ID
		if meta.ID == uuid.Nil {
			meta.ID = uuid.New()
		}
		if _, err := tx.NewInsert().Model(meta).Exec(ctx); err != nil {
			return fmt.Errorf("insert page meta: %w", err)
		}
	}
	if children.Sections && len(record.Sections) > 0 {
		sections := cloneSections(record.Sections)
		for _, section := range sections {
			section.PageID = record.ID
			if section.ID == uuid.Nil {
				section.ID = uuid.New()
			}
		}
		if _, err := tx.NewInsert().Model(&sections).Exec(ctx); err != nil {
			return fmt.Errorf("insert page sections: %w", err)
		}
	}
	if children.Media && len(record.Media) > 0 {
		media := cloneMedia(record.Media)
		for _, item := range media {
			item.PageID = record.ID
			if item.ID == uuid.Nil {
				item.ID = uuid.New()
			}
		}
		if _, err := tx.NewInsert().Model(&media).Exec(ctx); err != nil {
			return fmt.Errorf("insert page media: %w", err)
		}
	}
	return nil
}

// BunVersionRepository stores page versions. Reads of a single version may be served from
// the optional repository cache since stored versions never change.
type BunVersionRepository struct {
	db     *bun.DB
	repo   repository.Repository[*PageVersion]
	cached repository.Repository[*PageVersion]
}

func NewBunVersionRepository(db *bun.DB) *BunVersionRepository {
	return NewBunVersionRepositoryWithCache(db, nil, nil)
}

// NewBunVersionRepositoryWithCache constructs a VersionRepository with optional caching of
// single version lookups.
func NewBunVersionRepositoryWithCache(db *bun.DB, cacheService cache.CacheService, keySerializer cache.KeySerializer) *BunVersionRepository {
	base := NewPageVersionRepository(db)
	return &BunVersionRepository{
		db:     db,
		repo:   base,
		cached: wrapWithCache(base, cacheService, keySerializer),
	}
}

func (r *BunVersionRepository) Create(ctx context.Context, version *PageVersion) (*PageVersion, error) {
	return r.repo.Create(ctx, version)
}

func (r *BunVersionRepository) Latest(ctx context.Context, pageID uuid.UUID) (*PageVersion, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).
				OrderExpr("?TableAlias.version_number DESC")
		}),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, &PageVersionNotFoundError{PageID: pageID}
	}
	return records[0], nil
}

// Get reads a version by its derived row id so cache keys stay per page and number.
func (r *BunVersionRepository) Get(ctx context.Context, pageID uuid.UUID, number int) (*PageVersion, error) {
	record, err := r.cached.GetByID(ctx, VersionRecordID(pageID, number).String())
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, &PageVersionNotFoundError{PageID: pageID, Version: number}
		}
		return nil, fmt.Errorf("version repository error: %w", err)
	}
	return cloneVersion(record), nil
}

func (r *BunVersionRepository) List(ctx context.Context, pageID uuid.UUID) ([]*PageVersion, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).
				OrderExpr("?TableAlias.version_number ASC")
		}),
	)
	return records, err
}

// Prune deletes the oldest versions of a page until at most keep remain. Deletes go
// through the cached repository so pruned versions drop out of the cache.
func (r *BunVersionRepository) Prune(ctx context.Context, pageID uuid.UUID, keep int) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("version repository: database not configured")
	}
	if keep < 0 {
		keep = 0
	}
	total, err := r.db.NewSelect().Model((*PageVersion)(nil)).Where("?TableAlias.page_id = ?", pageID).Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("count page versions: %w", err)
	}
	excess := total - keep
	if excess <= 0 {
		return 0, nil
	}
	var ids []uuid.UUID
	if err := r.db.NewSelect().
		Model((*PageVersion)(nil)).
		Column("id").
		Where("?TableAlias.page_id = ?", pageID).
		OrderExpr("?TableAlias.version_number ASC").
		Limit(excess).
		Scan(ctx, &ids); err != nil {
		return 0, fmt.Errorf("select prunable versions: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = id.String()
	}
	if err := r.cached.DeleteWhere(ctx, repository.DeleteByIDs(keys)); err != nil {
		return 0, fmt.Errorf("delete page versions: %w", err)
	}
	return len(ids), nil
}

type BunSlugHistoryRepository struct {
	db   *bun.DB
	repo repository.Repository[*PageSlugHistory]
}

func NewBunSlugHistoryRepository(db *bun.DB) *BunSlugHistoryRepository {
	return &BunSlugHistoryRepository{db: db, repo: NewPageSlugHistoryRepository(db)}
}

func (r *BunSlugHistoryRepository) Create(ctx context.Context, entry *PageSlugHistory) (*PageSlugHistory, error) {
	return r.repo.Create(ctx, entry)
}

func (r *BunSlugHistoryRepository) Find(ctx context.Context, pageID uuid.UUID, oldSlug string) (*PageSlugHistory, error) {
	return r.first(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		return q.Where("?TableAlias.page_id = ?", pageID).
			Where("?TableAlias.old_slug = ?", oldSlug)
	})
}

func (r *BunSlugHistoryRepository) LatestByOldSlug(ctx context.Context, tenantID uuid.UUID, language, slug string) (*PageSlugHistory, error) {
	return r.first(ctx, func(q *bun.SelectQuery) *bun.SelectQuery {
		q = q.Where("?TableAlias.tenant_id = ?", tenantID).
			Where("?TableAlias.old_slug = ?", slug)
		if language != "" {
			q = q.Where("?TableAlias.language = ?", language)
		}
		return q.OrderExpr("?TableAlias.changed_at DESC")
	})
}

func (r *BunSlugHistoryRepository) ListByPage(ctx context.Context, pageID uuid.UUID) ([]*PageSlugHistory, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.Where("?TableAlias.page_id = ?", pageID).
				OrderExpr("?TableAlias.changed_at ASC")
		}),
	)
	return records, err
}

func (r *BunSlugHistoryRepository) DeleteByPage(ctx context.Context, pageID uuid.UUID) error {
	if r.db == nil {
		return fmt.Errorf("slug history repository: database not configured")
	}
	_, err := r.db.NewDelete().Model((*PageSlugHistory)(nil)).Where("?TableAlias.page_id = ?", pageID).Exec(ctx)
	return err
}

func (r *BunSlugHistoryRepository) first(ctx context.Context, filter func(*bun.SelectQuery) *bun.SelectQuery) (*PageSlugHistory, error) {
	records, _, err := r.repo.List(ctx,
		repository.SelectRawProcessor(filter),
		repository.SelectPaginate(1, 0),
	)
	if err != nil {
		return nil, err
	}
	if len(records) == 0 {
		return nil, nil
	}
	return records[0], nil
}

func mapRepositoryError(err error, resource, key string) error {
	if err == nil {
		return nil
	}
	if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
		return &PageNotFoundError{Key: key}
	}
	return fmt.Errorf("%s repository error: %w", resource, err)
}

func wrapWithCache[T any](base repository.Repository[T], cacheService cache.CacheService, keySerializer cache.KeySerializer) repository.Repository[T] {
	if cacheService == nil || keySerializer == nil {
		return base
	}
	return repositorycache.New(base, cacheService, keySerializer)
}
