package pages_test

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/pages"
)

func TestSlugRegistryHistoryIsAppendOnly(t *testing.T) {
	clock := newTestClock()
	store := pages.NewMemoryPageRepository()
	registry := pages.NewSlugRegistry(store, pages.NewMemorySlugHistoryRepository(), clock.Now, nil)
	ctx := context.Background()

	page, err := store.Create(ctx, &pages.Page{
		ID:       uuid.New(),
		TenantID: testTenant,
		Language: "en",
		Title:    "Harbour",
		Slug:     "a",
		Status:   "published",
	})
	if err != nil {
		t.Fatalf("create page: %v", err)
	}

	// a -> b -> a -> c
	renames := []string{"b", "a", "c"}
	for _, next := range renames {
		clock.Advance(time.Minute)
		old := page.Slug
		page.Slug = next
		if _, err := registry.RecordRename(ctx, page, old); err != nil {
			t.Fatalf("record %s -> %s: %v", old, next, err)
		}
	}
	if _, err := store.Update(ctx, page, page.Revision, pages.ChildReplacement{}); err != nil {
		t.Fatalf("update page slug: %v", err)
	}

	entries, err := registry.History(ctx, page.ID)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	got := map[string]string{}
	for _, entry := range entries {
		got[entry.OldSlug] = entry.NewSlug
	}
	if len(entries) != 2 || got["a"] != "b" || got["b"] != "a" {
		t.Fatalf("expected untouched rows a->b and b->a got %+v", got)
	}

	for _, old := range []string{"a", "b"} {
		resolution, err := registry.Resolve(ctx, testTenant, old, "en")
		if err != nil {
			t.Fatalf("resolve %s: %v", old, err)
		}
		if resolution.RedirectSlug != "c" || resolution.Page.ID != page.ID {
			t.Fatalf("expected %s to redirect to c got %+v", old, resolution)
		}
	}

	if entry, err := registry.RecordRename(ctx, page, "c"); err != nil || entry != nil {
		t.Fatalf("expected no-op for unchanged slug got %+v %v", entry, err)
	}
}

func TestSlugRegistryStopsLongChains(t *testing.T) {
	clock := newTestClock()
	store := pages.NewMemoryPageRepository()
	history := pages.NewMemorySlugHistoryRepository()
	registry := pages.NewSlugRegistry(store, history, clock.Now, nil)
	ctx := context.Background()

	page := &pages.Page{ID: uuid.New(), TenantID: testTenant, Language: "en"}
	for i := 0; i <= pages.MaxRedirectHops+1; i++ {
		clock.Advance(time.Second)
		page.Slug = fmt.Sprintf("s%d", i+1)
		if _, err := registry.RecordRename(ctx, page, fmt.Sprintf("s%d", i)); err != nil {
			t.Fatalf("record %d: %v", i, err)
		}
	}

	_, err := registry.Resolve(ctx, testTenant, "s0", "en")
	if !errors.Is(err, pages.ErrRedirectChainTooLong) {
		t.Fatalf("expected hop limit error got %v", err)
	}
}

func TestSlugRegistryDetectsCycles(t *testing.T) {
	clock := newTestClock()
	history := pages.NewMemorySlugHistoryRepository()
	registry := pages.NewSlugRegistry(pages.NewMemoryPageRepository(), history, clock.Now, nil)
	ctx := context.Background()

	page := &pages.Page{ID: uuid.New(), TenantID: testTenant, Language: "en", Slug: "y"}
	if _, err := registry.RecordRename(ctx, page, "x"); err != nil {
		t.Fatalf("record: %v", err)
	}
	clock.Advance(time.Second)
	page.Slug = "x"
	if _, err := registry.RecordRename(ctx, page, "y"); err != nil {
		t.Fatalf("record: %v", err)
	}

	if _, err := registry.Resolve(ctx, testTenant, "x", "en"); !pages.IsNotFound(err) {
		t.Fatalf("expected cycle without a live page to be not found got %v", err)
	}
}

func TestNormalizeSlug(t *testing.T) {
	got, err := pages.NormalizeSlug("Beach Cleanup Day")
	if err != nil {
		t.Fatalf("normalize: %v", err)
	}
	if got != "beach-cleanup-day" {
		t.Fatalf("expected beach-cleanup-day got %q", got)
	}
	if !pages.IsValidSlug(got) || pages.IsValidSlug("Not Valid") {
		t.Fatalf("unexpected slug validity results")
	}
}
