package storage

import (
	"context"
	"fmt"

	"github.com/municipio/pagecms/pages"
	"github.com/municipio/pagecms/previews"
	"github.com/uptrace/bun"
)

// Models lists every table owned by the page engine in creation order.
func Models() []any {
	return []any{
		(*pages.Page)(nil),
		(*pages.PageMeta)(nil),
		(*pages.PageSection)(nil),
		(*pages.PageMedia)(nil),
		(*pages.PageVersion)(nil),
		(*pages.PageSlugHistory)(nil),
		(*previews.PreviewToken)(nil),
	}
}

type indexDef struct {
	name    string
	model   any
	columns []string
	unique  bool
	where   string
}

var indexes = []indexDef{
	{name: "pages_live_slug_uidx", model: (*pages.Page)(nil), columns: []string{"tenant_id", "language", "slug"}, unique: true, where: "is_deleted = false"},
	{name: "pages_tenant_idx", model: (*pages.Page)(nil), columns: []string{"tenant_id", "status"}},
	{name: "pages_schedule_publish_idx", model: (*pages.Page)(nil), columns: []string{"scheduled_publish_at"}},
	{name: "pages_schedule_unpublish_idx", model: (*pages.Page)(nil), columns: []string{"scheduled_unpublish_at"}},
	{name: "page_meta_page_uidx", model: (*pages.PageMeta)(nil), columns: []string{"page_id"}, unique: true},
	{name: "page_sections_page_idx", model: (*pages.PageSection)(nil), columns: []string{"page_id", "position", "ordinal"}},
	{name: "page_media_page_idx", model: (*pages.PageMedia)(nil), columns: []string{"page_id", "position"}},
	{name: "page_versions_number_uidx", model: (*pages.PageVersion)(nil), columns: []string{"page_id", "version_number"}, unique: true},
	{name: "page_slug_history_lookup_idx", model: (*pages.PageSlugHistory)(nil), columns: []string{"tenant_id", "old_slug", "changed_at"}},
	{name: "page_slug_history_page_uidx", model: (*pages.PageSlugHistory)(nil), columns: []string{"page_id", "old_slug"}, unique: true},
	{name: "page_preview_tokens_expiry_idx", model: (*previews.PreviewToken)(nil), columns: []string{"expires_at"}},
}

// Migrate creates the page engine tables and indexes when missing.
func Migrate(ctx context.Context, db bun.IDB) error {
	for _, model := range Models() {
		if _, err := db.NewCreateTable().Model(model).IfNotExists().Exec(ctx); err != nil {
			return fmt.Errorf("storage: create table %T: %w", model, err)
		}
	}
	for _, idx := range indexes {
		q := db.NewCreateIndex().Model(idx.model).Index(idx.name).Column(idx.columns...).IfNotExists()
		if idx.unique {
			q = q.Unique()
		}
		if idx.where != "" {
			q = q.Where(idx.where)
		}
		if _, err := q.Exec(ctx); err != nil {
			return fmt.Errorf("storage: create index %s: %w", idx.name, err)
		}
	}
	return nil
}
