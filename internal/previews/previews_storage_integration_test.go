package previews_test

import (
	"context"
	"testing"
	"time"

	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/internal/previews"
	"github.com/municipio/pagecms/pkg/testsupport"
)

func TestPreviewTokensWithBunStorage(t *testing.T) {
	ctx := context.Background()
	db, err := testsupport.NewMigratedBunDB(ctx)
	if err != nil {
		t.Fatalf("new bun db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	clock := newTestClock()
	pageRepo := pages.NewBunPageRepository(db)
	lifecycle := pages.NewService(pageRepo, pages.NewBunVersionRepository(db), pages.NewBunSlugHistoryRepository(db),
		pages.WithClock(clock.Now),
	)
	svc := previews.NewService(previews.NewBunTokenRepository(db), pageRepo, previews.WithClock(clock.Now))

	created, err := lifecycle.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "Town Budget"})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}

	token, err := svc.Issue(ctx, previews.IssueRequest{TenantID: testTenant, PageID: created.Page.ID, TTL: time.Hour})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	preview, err := svc.Redeem(ctx, token.Token)
	if err != nil {
		t.Fatalf("redeem: %v", err)
	}
	if preview.Page.Slug != "town-budget" {
		t.Fatalf("unexpected slug %q", preview.Page.Slug)
	}

	clock.Advance(2 * time.Hour)
	if _, err := svc.Redeem(ctx, token.Token); !previews.IsExpired(err) {
		t.Fatalf("expected expired got %v", err)
	}
	removed, err := svc.PurgeExpired(ctx)
	if err != nil {
		t.Fatalf("purge: %v", err)
	}
	if removed != 1 {
		t.Fatalf("expected 1 purged got %d", removed)
	}
	if _, err := svc.Redeem(ctx, token.Token); !previews.IsNotFound(err) {
		t.Fatalf("expected purged token to be unknown got %v", err)
	}
}
