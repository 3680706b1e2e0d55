package pages_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/identity"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/internal/permissions"
	"github.com/municipio/pagecms/pkg/interfaces"
)

var testTenant = uuid.MustParse("6f1d1c3e-6d3b-4e1e-9a55-0c1c7b0f4a10")

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type harness struct {
	svc      pages.Lifecycle
	clock    *testClock
	store    *pages.MemoryPageRepository
	versions *pages.MemoryVersionRepository
	history  *pages.MemorySlugHistoryRepository
}

func newHarness(t *testing.T, opts ...pages.ServiceOption) *harness {
	t.Helper()
	h := &harness{
		clock:    newTestClock(),
		store:    pages.NewMemoryPageRepository(),
		versions: pages.NewMemoryVersionRepository(),
		history:  pages.NewMemorySlugHistoryRepository(),
	}
	all := append([]pages.ServiceOption{pages.WithClock(h.clock.Now)}, opts...)
	h.svc = pages.NewService(h.store, h.versions, h.history, all...)
	return h
}

func (h *harness) create(t *testing.T, req pages.CreatePageRequest) *pages.Page {
	t.Helper()
	if req.TenantID == uuid.Nil {
		req.TenantID = testTenant
	}
	result, err := h.svc.Create(context.Background(), req)
	if err != nil {
		t.Fatalf("create page %q: %v", req.Title, err)
	}
	return result.Page
}

func ptr[T any](value T) *T {
	return &value
}

func TestCreateDerivesSlugAndRecordsFirstVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	result, err := h.svc.Create(ctx, pages.CreatePageRequest{
		TenantID: testTenant,
		Actor:    uuid.New(),
		Title:    "Beach Cleanup Day",
		Body:     "<p>Bring gloves</p><script>alert(1)</script>",
		Meta:     &pages.PageMetaInput{MetaTitle: "Cleanup"},
	})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	page := result.Page
	if page.Slug != "beach-cleanup-day" {
		t.Fatalf("expected derived slug got %q", page.Slug)
	}
	if page.Status != domain.StatusDraft {
		t.Fatalf("expected draft status got %q", page.Status)
	}
	if page.Language != "en" || page.Template != "default" {
		t.Fatalf("expected defaults en/default got %s/%s", page.Language, page.Template)
	}
	if strings.Contains(page.Body, "script") {
		t.Fatalf("expected body to be sanitized got %q", page.Body)
	}
	if page.Meta == nil || page.Meta.RobotsDirective != "index, follow" {
		t.Fatalf("expected default robots directive got %+v", page.Meta)
	}
	if result.Version == nil || result.Version.Number != 1 {
		t.Fatalf("expected version 1 got %+v", result.Version)
	}
	if result.Version.ChangeNote != "Auto version 1" {
		t.Fatalf("expected default change note got %q", result.Version.ChangeNote)
	}
	if !page.CreatedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected created_at from clock got %v", page.CreatedAt)
	}
}

func TestCreateValidation(t *testing.T) {
	cases := []struct {
		name   string
		req    pages.CreatePageRequest
		target error
	}{
		{name: "missing tenant", req: pages.CreatePageRequest{Title: "Home"}, target: pages.ErrTenantRequired},
		{name: "reserved slug", req: pages.CreatePageRequest{TenantID: testTenant, Title: "Admin", Slug: "admin"}, target: pages.ErrSlugReserved},
		{name: "invalid slug", req: pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Slug: "has spaces"}, target: pages.ErrSlugInvalid},
		{name: "missing title", req: pages.CreatePageRequest{TenantID: testTenant, Slug: "home"}, target: pages.ErrPageInvalid},
		{name: "unknown template", req: pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Template: "gallery"}, target: pages.ErrPageInvalid},
		{name: "archived status", req: pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Status: "archived"}, target: pages.ErrStatusInvalid},
		{
			name:   "insecure canonical",
			req:    pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Meta: &pages.PageMetaInput{CanonicalURL: "http://city.example/home"}},
			target: pages.ErrCanonicalURLInsecure,
		},
		{
			name:   "relative canonical",
			req:    pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Meta: &pages.PageMetaInput{CanonicalURL: "/home"}},
			target: pages.ErrCanonicalURLInvalid,
		},
		{
			name:   "unknown section type",
			req:    pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Sections: []pages.PageSectionInput{{Type: "carousel"}}},
			target: pages.ErrSectionTypeInvalid,
		},
		{
			name:   "media without source",
			req:    pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Media: []pages.PageMediaInput{{Caption: "empty"}}},
			target: pages.ErrMediaSourceRequired,
		},
		{
			name: "two featured media",
			req: pages.CreatePageRequest{TenantID: testTenant, Title: "Home", Media: []pages.PageMediaInput{
				{URL: "https://cdn.example/a.jpg", IsFeatured: true},
				{URL: "https://cdn.example/b.jpg", IsFeatured: true},
			}},
			target: pages.ErrMultipleFeaturedMedia,
		},
		{
			name: "inverted schedule",
			req: pages.CreatePageRequest{
				TenantID:             testTenant,
				Title:                "Home",
				ScheduledPublishAt:   ptr(time.Date(2024, 4, 2, 0, 0, 0, 0, time.UTC)),
				ScheduledUnpublishAt: ptr(time.Date(2024, 4, 1, 0, 0, 0, 0, time.UTC)),
			},
			target: pages.ErrScheduleWindowInvalid,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.svc.Create(context.Background(), tc.req)
			if !errors.Is(err, tc.target) {
				t.Fatalf("expected %v got %v", tc.target, err)
			}
			if !pages.IsValidation(err) {
				t.Fatalf("expected validation category got %v", err)
			}
		})
	}
}

func TestCanonicalHTTPAllowedWhenNotEnforced(t *testing.T) {
	h := newHarness(t, pages.WithEnforceHTTPSCanonical(false))
	page := h.create(t, pages.CreatePageRequest{
		Title: "Home",
		Meta:  &pages.PageMetaInput{CanonicalURL: "http://city.example/home"},
	})
	if page.Meta.CanonicalURL != "http://city.example/home" {
		t.Fatalf("expected canonical url to be stored got %q", page.Meta.CanonicalURL)
	}
}

func TestSlugUniquePerTenantAndLanguage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, pages.CreatePageRequest{Title: "Parks", Slug: "parks"})

	_, err := h.svc.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "Parks again", Slug: "parks"})
	if !errors.Is(err, pages.ErrSlugExists) || !pages.IsValidation(err) {
		t.Fatalf("expected slug exists validation error got %v", err)
	}

	h.create(t, pages.CreatePageRequest{Title: "Parques", Slug: "parks", Language: "es"})
	h.create(t, pages.CreatePageRequest{TenantID: uuid.New(), Title: "Parks", Slug: "parks"})
}

func TestSoftDeletedSlugCanBeReused(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Events", Slug: "events"})

	if err := h.svc.Delete(ctx, pages.DeletePageRequest{TenantID: testTenant, PageID: page.ID}); err != nil {
		t.Fatalf("soft delete: %v", err)
	}
	if _, err := h.svc.Get(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: page.ID}); !pages.IsNotFound(err) {
		t.Fatalf("expected deleted page to be hidden got %v", err)
	}
	deleted, err := h.svc.Get(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: page.ID, IncludeDeleted: true})
	if err != nil {
		t.Fatalf("get deleted: %v", err)
	}
	if !deleted.IsDeleted || deleted.DeletedAt == nil {
		t.Fatalf("expected soft delete markers got %+v", deleted)
	}

	h.create(t, pages.CreatePageRequest{Title: "Events", Slug: "events"})
}

func TestHardDeletePurgesVersionsAndHistory(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Old", Slug: "old"})
	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Slug: ptr("new")}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	if err := h.svc.Delete(ctx, pages.DeletePageRequest{TenantID: testTenant, PageID: page.ID, HardDelete: true}); err != nil {
		t.Fatalf("purge: %v", err)
	}
	if _, err := h.svc.Get(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: page.ID, IncludeDeleted: true}); !pages.IsNotFound(err) {
		t.Fatalf("expected purged page to be gone got %v", err)
	}
	versions, _ := h.versions.List(ctx, page.ID)
	if len(versions) != 0 {
		t.Fatalf("expected versions to be purged got %d", len(versions))
	}
	entries, _ := h.history.ListByPage(ctx, page.ID)
	if len(entries) != 0 {
		t.Fatalf("expected slug history to be purged got %d", len(entries))
	}
}

func TestGetIsTenantScoped(t *testing.T) {
	h := newHarness(t)
	page := h.create(t, pages.CreatePageRequest{Title: "Library"})

	_, err := h.svc.Get(context.Background(), pages.GetPageRequest{TenantID: uuid.New(), PageID: page.ID})
	if !pages.IsNotFound(err) {
		t.Fatalf("expected not found for foreign tenant got %v", err)
	}
}

func TestListFiltersByLanguageAndStatus(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.create(t, pages.CreatePageRequest{Title: "Home"})
	h.create(t, pages.CreatePageRequest{Title: "Inicio", Language: "es", Status: "published"})
	h.create(t, pages.CreatePageRequest{Title: "Review", Status: "pending"})

	spanish, err := h.svc.List(ctx, pages.ListPagesRequest{TenantID: testTenant, Language: "es"})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(spanish) != 1 || spanish[0].Slug != "inicio" {
		t.Fatalf("expected the spanish page got %+v", spanish)
	}
	pending, err := h.svc.List(ctx, pages.ListPagesRequest{TenantID: testTenant, Status: "pending"})
	if err != nil {
		t.Fatalf("list pending: %v", err)
	}
	if len(pending) != 1 || pending[0].Slug != "review" {
		t.Fatalf("expected the pending page got %+v", pending)
	}
	if _, err := h.svc.List(ctx, pages.ListPagesRequest{TenantID: testTenant, Status: "lost"}); !pages.IsValidation(err) {
		t.Fatalf("expected validation error for unknown status got %v", err)
	}
}

func TestUpdateIdenticalResaveSkipsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Budget", Body: "<p>2024</p>"})

	result, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Title: ptr("Budget")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Version != nil {
		t.Fatalf("expected unchanged snapshot to skip versioning got %+v", result.Version)
	}
	if result.Page.Revision != 2 {
		t.Fatalf("expected revision bump got %d", result.Page.Revision)
	}

	forced, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, ForceVersion: true, ChangeNote: "checkpoint"})
	if err != nil {
		t.Fatalf("forced update: %v", err)
	}
	if forced.Version == nil || forced.Version.Number != 2 || forced.Version.ChangeNote != "checkpoint" {
		t.Fatalf("expected forced version 2 got %+v", forced.Version)
	}
}

func TestUpdateDebouncesVersionsWithinMinInterval(t *testing.T) {
	h := newHarness(t, pages.WithVersionMinInterval(time.Minute))
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Draft"})

	result, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Title: ptr("Draft two")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if result.Version != nil {
		t.Fatalf("expected debounced version got %+v", result.Version)
	}

	h.clock.Advance(2 * time.Minute)
	result, err = h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Title: ptr("Draft three")})
	if err != nil {
		t.Fatalf("update after interval: %v", err)
	}
	if result.Version == nil || result.Version.Number != 2 {
		t.Fatalf("expected version 2 after interval got %+v", result.Version)
	}
}

func TestUpdateRejectsStaleRevision(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Transit"})
	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, ExpectedRevision: 1, Title: ptr("Transit map")}); err != nil {
		t.Fatalf("first update: %v", err)
	}

	_, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, ExpectedRevision: 1, Title: ptr("Bus map")})
	if !errors.Is(err, pages.ErrRevisionConflict) || !pages.IsConflict(err) {
		t.Fatalf("expected revision conflict got %v", err)
	}
}

func TestConcurrentConflictingUpdatesOneWins(t *testing.T) {
	h := newHarness(t)
	page := h.create(t, pages.CreatePageRequest{Title: "Harbor"})

	var wg sync.WaitGroup
	errs := make(chan error, 2)
	for _, title := range []string{"Harbor north", "Harbor south"} {
		wg.Add(1)
		go func(title string) {
			defer wg.Done()
			_, err := h.svc.Update(context.Background(), pages.UpdatePageRequest{
				TenantID:         testTenant,
				PageID:           page.ID,
				ExpectedRevision: page.Revision,
				Title:            ptr(title),
			})
			errs <- err
		}(title)
	}
	wg.Wait()
	close(errs)

	succeeded, conflicted := 0, 0
	for err := range errs {
		switch {
		case err == nil:
			succeeded++
		case pages.IsConflict(err):
			conflicted++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 1 || conflicted != 1 {
		t.Fatalf("expected one success and one conflict got %d/%d", succeeded, conflicted)
	}
}

func TestUpdateReplacesChildrenOnlyWhenSupplied(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{
		Title:    "Pool",
		Meta:     &pages.PageMetaInput{MetaTitle: "Pool"},
		Sections: []pages.PageSectionInput{{Type: "text", Content: "<p>Hours</p>", IsActive: true}},
		Media:    []pages.PageMediaInput{{URL: "https://cdn.example/pool.jpg", IsFeatured: true}},
	})
	sectionID := page.Sections[0].ID

	result, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Title: ptr("City pool")})
	if err != nil {
		t.Fatalf("update title: %v", err)
	}
	if len(result.Page.Sections) != 1 || len(result.Page.Media) != 1 || result.Page.Meta == nil {
		t.Fatalf("expected children to be kept got %+v", result.Page)
	}

	result, err = h.svc.Update(ctx, pages.UpdatePageRequest{
		TenantID:  testTenant,
		PageID:    page.ID,
		ClearMeta: true,
		Sections:  []pages.PageSectionInput{{ID: sectionID, Type: "text", Content: "<p>New hours</p>", IsActive: true}},
		Media:     []pages.PageMediaInput{},
	})
	if err != nil {
		t.Fatalf("update children: %v", err)
	}
	if result.Page.Meta != nil {
		t.Fatalf("expected meta to be cleared")
	}
	if len(result.Page.Media) != 0 {
		t.Fatalf("expected media to be cleared got %d", len(result.Page.Media))
	}
	if result.Page.Sections[0].ID != sectionID || result.Page.Sections[0].Content != "<p>New hours</p>" {
		t.Fatalf("expected section updated in place got %+v", result.Page.Sections[0])
	}
}

func TestRenameRecordsHistoryAndResolvesRedirect(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Old news", Slug: "old-news", Status: "published"})

	h.clock.Advance(time.Minute)
	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Slug: ptr("news")}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	h.clock.Advance(time.Minute)
	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Slug: ptr("latest-news")}); err != nil {
		t.Fatalf("second rename: %v", err)
	}

	resolution, err := h.svc.Resolve(ctx, pages.ResolvePageRequest{TenantID: testTenant, Slug: "old-news"})
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if !resolution.IsRedirect() || resolution.RedirectSlug != "latest-news" {
		t.Fatalf("expected redirect to latest-news got %+v", resolution)
	}
	if resolution.Page.ID != page.ID {
		t.Fatalf("expected resolved page %s got %s", page.ID, resolution.Page.ID)
	}

	direct, err := h.svc.Resolve(ctx, pages.ResolvePageRequest{TenantID: testTenant, Slug: "latest-news", Language: "en"})
	if err != nil {
		t.Fatalf("resolve direct: %v", err)
	}
	if direct.IsRedirect() {
		t.Fatalf("expected direct hit got redirect %q", direct.RedirectSlug)
	}

	if _, err := h.svc.Resolve(ctx, pages.ResolvePageRequest{TenantID: testTenant, Slug: "never-existed"}); !pages.IsNotFound(err) {
		t.Fatalf("expected not found got %v", err)
	}
}

func TestRenameBackAndForthKeepsTwoHistoryRows(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "A", Slug: "a"})

	for _, slug := range []string{"b", "a", "b"} {
		h.clock.Advance(time.Second)
		if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Slug: ptr(slug)}); err != nil {
			t.Fatalf("rename to %s: %v", slug, err)
		}
	}

	entries, err := h.svc.SlugHistory(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected two history rows got %d", len(entries))
	}
}

func TestResolveIgnoresDraftPages(t *testing.T) {
	h := newHarness(t)
	h.create(t, pages.CreatePageRequest{Title: "Hidden"})

	_, err := h.svc.Resolve(context.Background(), pages.ResolvePageRequest{TenantID: testTenant, Slug: "hidden"})
	if !pages.IsNotFound(err) {
		t.Fatalf("expected drafts to stay unresolved got %v", err)
	}
}

func TestPublishSetsTimestampsAndForcesVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{
		Title:              "Festival",
		ScheduledPublishAt: ptr(time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)),
	})

	h.clock.Advance(time.Hour)
	result, err := h.svc.Publish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	published := result.Page
	if published.Status != domain.StatusPublished {
		t.Fatalf("expected published got %s", published.Status)
	}
	if published.PublishedAt == nil || !published.PublishedAt.Equal(h.clock.Now()) {
		t.Fatalf("expected published_at to be stamped got %v", published.PublishedAt)
	}
	if published.ScheduledPublishAt != nil {
		t.Fatalf("expected scheduled publish to be cleared")
	}
	if result.Version == nil || result.Version.ChangeNote != "published" {
		t.Fatalf("expected forced publish version got %+v", result.Version)
	}

	result, err = h.svc.Unpublish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("unpublish: %v", err)
	}
	if result.Page.Status != domain.StatusDraft || result.Page.UnpublishedAt == nil {
		t.Fatalf("expected draft with unpublished_at got %+v", result.Page)
	}
	if result.Version == nil || result.Version.ChangeNote != "unpublished" {
		t.Fatalf("expected forced unpublish version got %+v", result.Version)
	}
	firstPublished := *published.PublishedAt
	if result.Page.PublishedAt == nil || !result.Page.PublishedAt.Equal(firstPublished) {
		t.Fatalf("expected unpublish to keep published_at %v got %v", firstPublished, result.Page.PublishedAt)
	}

	h.clock.Advance(time.Hour)
	result, err = h.svc.Publish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("republish: %v", err)
	}
	if result.Page.PublishedAt == nil || !result.Page.PublishedAt.Equal(firstPublished) {
		t.Fatalf("expected republish to keep the first publish date %v got %v", firstPublished, result.Page.PublishedAt)
	}
}

func TestTransitionsFollowTheStateMachine(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Zoning"})
	req := pages.TransitionRequest{TenantID: testTenant, PageID: page.ID}

	if _, err := h.svc.Unpublish(ctx, req); !errors.Is(err, pages.ErrTransitionInvalid) {
		t.Fatalf("expected invalid transition for draft unpublish got %v", err)
	}
	submitted, err := h.svc.Submit(ctx, req)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if submitted.Page.Status != domain.StatusPending {
		t.Fatalf("expected pending got %s", submitted.Page.Status)
	}
	archived, err := h.svc.Archive(ctx, req)
	if err != nil {
		t.Fatalf("archive: %v", err)
	}
	if archived.Version == nil || archived.Version.ChangeNote != "archived" {
		t.Fatalf("expected archived version got %+v", archived.Version)
	}
	if _, err := h.svc.Publish(ctx, req); !errors.Is(err, pages.ErrTransitionInvalid) {
		t.Fatalf("expected archived page publish to fail got %v", err)
	}
	restored, err := h.svc.Restore(ctx, req)
	if err != nil {
		t.Fatalf("restore: %v", err)
	}
	if restored.Page.Status != domain.StatusDraft {
		t.Fatalf("expected restore to land on draft got %s", restored.Page.Status)
	}
}

func TestApplySchedulePublishesDuePage(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{
		Title:              "Election results",
		ScheduledPublishAt: ptr(h.clock.Now().Add(time.Hour)),
	})

	due, err := h.svc.ListDue(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 0 {
		t.Fatalf("expected nothing due yet got %d", len(due))
	}

	h.clock.Advance(2 * time.Hour)
	due, err = h.svc.ListDue(ctx, h.clock.Now())
	if err != nil {
		t.Fatalf("list due: %v", err)
	}
	if len(due) != 1 || due[0].ID != page.ID {
		t.Fatalf("expected the page to be due got %+v", due)
	}

	outcome, result, err := h.svc.ApplySchedule(ctx, page.ID)
	if err != nil {
		t.Fatalf("apply schedule: %v", err)
	}
	if outcome != pages.SchedulePublished {
		t.Fatalf("expected published outcome got %s", outcome)
	}
	if result.Page.Status != domain.StatusPublished || result.Page.PublishedAt == nil || result.Page.ScheduledPublishAt != nil {
		t.Fatalf("unexpected page state %+v", result.Page)
	}
	if result.Page.UpdatedBy != identity.SystemActorUUID("scheduler") {
		t.Fatalf("expected system actor got %s", result.Page.UpdatedBy)
	}
	if result.Version == nil || result.Version.ChangeNote != "Scheduled publish" {
		t.Fatalf("expected scheduled publish version got %+v", result.Version)
	}

	outcome, _, err = h.svc.ApplySchedule(ctx, page.ID)
	if err != nil || outcome != pages.ScheduleSkipped {
		t.Fatalf("expected second sweep to skip got %s %v", outcome, err)
	}
}

func TestScheduleThenApplyUnpublish(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Road closure", Status: "published"})

	_, err := h.svc.Schedule(ctx, pages.SchedulePageRequest{
		TenantID:    testTenant,
		PageID:      page.ID,
		PublishAt:   ptr(h.clock.Now().Add(2 * time.Hour)),
		UnpublishAt: ptr(h.clock.Now().Add(time.Hour)),
	})
	if !errors.Is(err, pages.ErrScheduleWindowInvalid) {
		t.Fatalf("expected inverted window to fail got %v", err)
	}

	if _, err := h.svc.Schedule(ctx, pages.SchedulePageRequest{
		TenantID:    testTenant,
		PageID:      page.ID,
		UnpublishAt: ptr(h.clock.Now().Add(time.Hour)),
	}); err != nil {
		t.Fatalf("schedule: %v", err)
	}

	h.clock.Advance(90 * time.Minute)
	outcome, result, err := h.svc.ApplySchedule(ctx, page.ID)
	if err != nil {
		t.Fatalf("apply schedule: %v", err)
	}
	if outcome != pages.ScheduleUnpublished {
		t.Fatalf("expected unpublished outcome got %s", outcome)
	}
	if result.Page.Status != domain.StatusDraft || result.Page.ScheduledUnpublishAt != nil || result.Page.UnpublishedAt == nil {
		t.Fatalf("unexpected page state %+v", result.Page)
	}
	if result.Version == nil || result.Version.ChangeNote != "Scheduled unpublish" {
		t.Fatalf("expected scheduled unpublish version got %+v", result.Version)
	}
}

func TestDuplicateAssignsCopySlugs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	source := h.create(t, pages.CreatePageRequest{
		Title:    "Beach",
		Status:   "published",
		Meta:     &pages.PageMetaInput{MetaTitle: "Beaches"},
		Sections: []pages.PageSectionInput{{Type: "text", Content: "<p>Sand</p>", IsActive: true}},
		Media:    []pages.PageMediaInput{{File: "uploads/beach.jpg", IsFeatured: true}},
	})
	if source.Slug != "beach" {
		t.Fatalf("expected slug beach got %q", source.Slug)
	}

	first, err := h.svc.Duplicate(ctx, pages.DuplicatePageRequest{TenantID: testTenant, PageID: source.ID})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	second, err := h.svc.Duplicate(ctx, pages.DuplicatePageRequest{TenantID: testTenant, PageID: source.ID})
	if err != nil {
		t.Fatalf("duplicate again: %v", err)
	}

	if first.Page.Slug != "beach-copy" || second.Page.Slug != "beach-copy-2" {
		t.Fatalf("expected beach-copy and beach-copy-2 got %q and %q", first.Page.Slug, second.Page.Slug)
	}
	if first.Page.Title != "Beach (Copy)" {
		t.Fatalf("expected copy title got %q", first.Page.Title)
	}
	if first.Page.Status != domain.StatusDraft || first.Page.PublishedAt != nil {
		t.Fatalf("expected duplicate to be an unpublished draft got %+v", first.Page)
	}
	if len(first.Page.Sections) != 1 || first.Page.Sections[0].ID == source.Sections[0].ID {
		t.Fatalf("expected copied section with fresh id got %+v", first.Page.Sections)
	}

	meta := first.Page.Meta
	if meta == nil || meta.MetaTitle != "Beaches" {
		t.Fatalf("expected copied meta got %+v", meta)
	}
	if meta.ID == source.Meta.ID || meta.PageID != first.Page.ID {
		t.Fatalf("expected meta with fresh id owned by the copy got %+v", meta)
	}
	if len(first.Page.Media) != 1 || first.Page.Media[0].File != "uploads/beach.jpg" || !first.Page.Media[0].IsFeatured {
		t.Fatalf("expected copied media got %+v", first.Page.Media)
	}
	if first.Page.Media[0].ID == source.Media[0].ID || first.Page.Media[0].PageID != first.Page.ID {
		t.Fatalf("expected media with fresh id owned by the copy got %+v", first.Page.Media[0])
	}

	reloaded, err := h.svc.Get(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: source.ID})
	if err != nil {
		t.Fatalf("reload source: %v", err)
	}
	if reloaded.Meta == nil || reloaded.Meta.ID != source.Meta.ID || reloaded.Meta.PageID != source.ID {
		t.Fatalf("expected source meta untouched got %+v", reloaded.Meta)
	}
	if len(reloaded.Media) != 1 || reloaded.Media[0].ID != source.Media[0].ID || reloaded.Media[0].PageID != source.ID {
		t.Fatalf("expected source media untouched got %+v", reloaded.Media)
	}
}

func TestRollbackRestoresContentAndRecordsVersion(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{
		Title:    "Council meeting",
		Body:     "<p>Agenda</p>",
		Meta:     &pages.PageMetaInput{MetaTitle: "Agenda"},
		Sections: []pages.PageSectionInput{{Type: "text", Content: "<p>first</p>", IsActive: true}},
		Media:    []pages.PageMediaInput{{File: "uploads/agenda.pdf"}},
	})
	originalSection := page.Sections[0].ID

	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{
		TenantID: testTenant,
		PageID:   page.ID,
		Title:    ptr("Council minutes"),
		Body:     ptr("<p>Minutes</p>"),
		Meta:     &pages.PageMetaInput{MetaTitle: "Minutes"},
		Sections: []pages.PageSectionInput{{Type: "cta", Content: "<p>second</p>", IsActive: true}},
		Media:    []pages.PageMediaInput{},
	}); err != nil {
		t.Fatalf("update: %v", err)
	}

	result, err := h.svc.Rollback(ctx, pages.RollbackPageRequest{TenantID: testTenant, PageID: page.ID, Version: 1})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	restored := result.Page
	if restored.Title != "Council meeting" || restored.Body != "<p>Agenda</p>" {
		t.Fatalf("expected scalar fields restored got %q / %q", restored.Title, restored.Body)
	}
	if restored.Meta == nil || restored.Meta.MetaTitle != "Agenda" {
		t.Fatalf("expected meta restored got %+v", restored.Meta)
	}
	if len(restored.Sections) != 1 || restored.Sections[0].ID != originalSection || restored.Sections[0].Content != "<p>first</p>" {
		t.Fatalf("expected original section restored got %+v", restored.Sections)
	}
	if len(restored.Media) != 1 || restored.Media[0].File != "uploads/agenda.pdf" {
		t.Fatalf("expected media restored got %+v", restored.Media)
	}
	if result.Version == nil || result.Version.Number != 3 || result.Version.ChangeNote != "Rolled back to version 1" {
		t.Fatalf("expected rollback version 3 got %+v", result.Version)
	}

	if _, err := h.svc.Rollback(ctx, pages.RollbackPageRequest{TenantID: testTenant, PageID: page.ID, Version: 42}); !pages.IsNotFound(err) {
		t.Fatalf("expected missing version to be not found got %v", err)
	}
}

func TestRollbackSuffixesCollidingSlug(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "News", Slug: "news"})
	if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, Slug: ptr("updates")}); err != nil {
		t.Fatalf("rename: %v", err)
	}
	h.create(t, pages.CreatePageRequest{Title: "News", Slug: "news"})

	result, err := h.svc.Rollback(ctx, pages.RollbackPageRequest{TenantID: testTenant, PageID: page.ID, Version: 1})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if result.Page.Slug != "news-2" {
		t.Fatalf("expected suffixed slug news-2 got %q", result.Page.Slug)
	}
}

// racingPageRepository inserts a rival page right after the first slug lookup
// for the armed slug, the way a writer on another instance would.
type racingPageRepository struct {
	*pages.MemoryPageRepository
	mu    sync.Mutex
	armed string
}

func (r *racingPageRepository) arm(slug string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.armed = slug
}

func (r *racingPageRepository) ListBySlug(ctx context.Context, tenantID uuid.UUID, language, slug string) ([]*pages.Page, error) {
	found, err := r.MemoryPageRepository.ListBySlug(ctx, tenantID, language, slug)
	if err != nil {
		return nil, err
	}
	r.mu.Lock()
	fire := r.armed != "" && r.armed == slug
	if fire {
		r.armed = ""
	}
	r.mu.Unlock()
	if fire {
		rival := &pages.Page{
			ID:       uuid.New(),
			TenantID: tenantID,
			Language: language,
			Slug:     slug,
			Title:    "Rival",
			Status:   domain.StatusDraft,
			Revision: 1,
		}
		if _, err := r.MemoryPageRepository.Create(ctx, rival); err != nil {
			return nil, err
		}
	}
	return found, nil
}

func newRacingService(t *testing.T) (pages.Lifecycle, *racingPageRepository) {
	t.Helper()
	clock := newTestClock()
	repo := &racingPageRepository{MemoryPageRepository: pages.NewMemoryPageRepository()}
	svc := pages.NewService(repo, pages.NewMemoryVersionRepository(), pages.NewMemorySlugHistoryRepository(), pages.WithClock(clock.Now))
	return svc, repo
}

func TestDuplicateRetriesNextSuffixWhenSlugIsTakenConcurrently(t *testing.T) {
	svc, repo := newRacingService(t)
	ctx := context.Background()
	source, err := svc.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "Beach"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}

	repo.arm("beach-copy")
	result, err := svc.Duplicate(ctx, pages.DuplicatePageRequest{TenantID: testTenant, PageID: source.Page.ID})
	if err != nil {
		t.Fatalf("duplicate: %v", err)
	}
	if result.Page.Slug != "beach-copy-2" {
		t.Fatalf("expected beach-copy-2 after losing the race got %q", result.Page.Slug)
	}
}

func TestRollbackRetriesNextSuffixWhenSlugIsTakenConcurrently(t *testing.T) {
	svc, repo := newRacingService(t)
	ctx := context.Background()
	created, err := svc.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "News", Slug: "news"})
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if _, err := svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: created.Page.ID, Slug: ptr("updates")}); err != nil {
		t.Fatalf("rename: %v", err)
	}

	repo.arm("news")
	result, err := svc.Rollback(ctx, pages.RollbackPageRequest{TenantID: testTenant, PageID: created.Page.ID, Version: 1})
	if err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if result.Page.Slug != "news-2" {
		t.Fatalf("expected news-2 after losing the race got %q", result.Page.Slug)
	}
}

func TestRollbackRequiresVersioning(t *testing.T) {
	h := newHarness(t, pages.WithVersioningEnabled(false))
	page := h.create(t, pages.CreatePageRequest{Title: "Quiet"})

	_, err := h.svc.Rollback(context.Background(), pages.RollbackPageRequest{TenantID: testTenant, PageID: page.ID, Version: 1})
	if !errors.Is(err, pages.ErrVersioningDisabled) {
		t.Fatalf("expected versioning disabled got %v", err)
	}
}

func TestVersionRetentionKeepsNewest(t *testing.T) {
	h := newHarness(t, pages.WithVersionRetentionLimit(3))
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Notices"})

	for i := 0; i < 5; i++ {
		if _, err := h.svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, ForceVersion: true}); err != nil {
			t.Fatalf("update %d: %v", i, err)
		}
	}

	versions, err := h.svc.ListVersions(ctx, pages.ListVersionsRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("list versions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("expected 3 retained versions got %d", len(versions))
	}
	for i, version := range versions {
		if version.Number != 4+i {
			t.Fatalf("expected gapless numbers 4..6 got %d at %d", version.Number, i)
		}
	}

	if _, err := h.svc.GetVersion(ctx, pages.GetVersionRequest{TenantID: testTenant, PageID: page.ID, Version: 1}); !pages.IsNotFound(err) {
		t.Fatalf("expected pruned version to be gone got %v", err)
	}
	if _, err := h.svc.GetVersion(ctx, pages.GetVersionRequest{TenantID: testTenant, PageID: page.ID}); !errors.Is(err, pages.ErrVersionRequired) {
		t.Fatalf("expected version required got %v", err)
	}
}

type failingVersions struct {
	*pages.MemoryVersionRepository
}

func (failingVersions) Create(context.Context, *pages.PageVersion) (*pages.PageVersion, error) {
	return nil, errors.New("disk full")
}

func TestVersionFailureDoesNotFailMutation(t *testing.T) {
	clock := newTestClock()
	store := pages.NewMemoryPageRepository()
	svc := pages.NewService(store, failingVersions{pages.NewMemoryVersionRepository()}, pages.NewMemorySlugHistoryRepository(),
		pages.WithClock(clock.Now))

	result, err := svc.Create(context.Background(), pages.CreatePageRequest{TenantID: testTenant, Title: "Water"})
	if err != nil {
		t.Fatalf("expected create to succeed got %v", err)
	}
	if result.VersionError == nil {
		t.Fatalf("expected version error on result")
	}
	if result.Version != nil {
		t.Fatalf("expected no version got %+v", result.Version)
	}
	if _, err := store.GetByID(context.Background(), result.Page.ID); err != nil {
		t.Fatalf("expected page persisted: %v", err)
	}
}

func TestAuthorizerGuardsTransitions(t *testing.T) {
	editor := uuid.New()
	publisher := uuid.New()
	authorizer := permissions.NewGrantAuthorizer()
	authorizer.Grant(editor, permissions.EditorPermissions()...)
	authorizer.GrantTenant(publisher, testTenant, permissions.PublisherPermissions()...)

	h := newHarness(t, pages.WithAuthorizer(authorizer))
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Permits", Actor: editor})

	_, err := h.svc.Publish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID, Actor: editor})
	if !pages.IsForbidden(err) || !errors.Is(err, pages.ErrForbidden) {
		t.Fatalf("expected forbidden got %v", err)
	}
	if _, err := h.svc.Publish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID, Actor: publisher}); err != nil {
		t.Fatalf("publisher publish: %v", err)
	}
	if _, err := h.svc.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "Direct", Status: "published", Actor: editor}); !pages.IsForbidden(err) {
		t.Fatalf("expected editor publish-on-create to be forbidden got %v", err)
	}
}

type recordedAudit struct {
	mu     sync.Mutex
	events []interfaces.AuditEvent
}

func (r *recordedAudit) Record(_ context.Context, event interfaces.AuditEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, event)
	return nil
}

func TestLifecycleEmitsAuditEvents(t *testing.T) {
	recorder := &recordedAudit{}
	h := newHarness(t, pages.WithAuditRecorder(recorder))
	ctx := context.Background()
	page := h.create(t, pages.CreatePageRequest{Title: "Recycling"})
	if _, err := h.svc.Publish(ctx, pages.TransitionRequest{TenantID: testTenant, PageID: page.ID}); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if len(recorder.events) != 2 {
		t.Fatalf("expected two audit events got %d", len(recorder.events))
	}
	publish := recorder.events[1]
	if publish.Action != "publish" || publish.Metadata["from"] != "draft" || publish.Metadata["to"] != "published" {
		t.Fatalf("unexpected publish audit event %+v", publish)
	}
	if publish.TenantID != testTenant || publish.EntityID != page.ID.String() {
		t.Fatalf("expected page identity on audit event got %+v", publish)
	}
}

func TestTranslationSourceMustExist(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	missing := uuid.New()

	_, err := h.svc.Create(ctx, pages.CreatePageRequest{TenantID: testTenant, Title: "Hola", Language: "es", TranslationOf: &missing})
	if !errors.Is(err, pages.ErrTranslationTargetAbsent) {
		t.Fatalf("expected missing translation source got %v", err)
	}

	source := h.create(t, pages.CreatePageRequest{Title: "Hello"})
	translated := h.create(t, pages.CreatePageRequest{Title: "Hola", Language: "es", TranslationOf: &source.ID})
	if translated.TranslationOf == nil || *translated.TranslationOf != source.ID {
		t.Fatalf("expected translation link got %+v", translated.TranslationOf)
	}
}
