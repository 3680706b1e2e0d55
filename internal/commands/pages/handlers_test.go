package pagescmd_test

import (
	"context"
	"errors"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	pagescmd "github.com/municipio/pagecms/internal/commands/pages"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/jobs"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/pages"
)

var testTenant = uuid.MustParse("a1c3e5f7-1b2d-4e6f-8a9b-0c1d2e3f4a5b")

func fixedClock() time.Time {
	return time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)
}

func newLifecycle() pages.Lifecycle {
	return pages.NewService(
		pages.NewMemoryPageRepository(),
		pages.NewMemoryVersionRepository(),
		pages.NewMemorySlugHistoryRepository(),
		pages.WithClock(fixedClock),
	)
}

func createDraft(t *testing.T, svc pages.Lifecycle, title string) *pages.Page {
	t.Helper()
	result, err := svc.Create(context.Background(), pages.CreatePageRequest{TenantID: testTenant, Title: title})
	if err != nil {
		t.Fatalf("create %q: %v", title, err)
	}
	return result.Page
}

func TestPublishPageHandlerPublishes(t *testing.T) {
	svc := newLifecycle()
	page := createDraft(t, svc, "Recycling Calendar")
	handler := pagescmd.NewPublishPageHandler(svc, logging.NoOp())

	if err := handler.Execute(context.Background(), pagescmd.PublishPageCommand{TenantID: testTenant, PageID: page.ID}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, err := svc.Get(context.Background(), pages.GetPageRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != domain.StatusPublished {
		t.Fatalf("expected published got %s", stored.Status)
	}

	err = handler.Execute(context.Background(), pagescmd.PublishPageCommand{TenantID: testTenant, PageID: page.ID})
	if !errors.Is(err, pages.ErrTransitionInvalid) {
		t.Fatalf("expected transition error to surface got %v", err)
	}
}

func TestPublishPageCommandValidation(t *testing.T) {
	handler := pagescmd.NewPublishPageHandler(newLifecycle(), logging.NoOp())

	err := handler.Execute(context.Background(), pagescmd.PublishPageCommand{})
	if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected validation failure got %v", err)
	}
}

func TestSchedulePageHandlerRespectsGate(t *testing.T) {
	svc := newLifecycle()
	page := createDraft(t, svc, "Town Fair")
	publishAt := fixedClock().Add(24 * time.Hour)

	disabled := pagescmd.NewSchedulePageHandler(svc, logging.NoOp(), pagescmd.FeatureGates{
		SchedulingEnabled: func() bool { return false },
	})
	err := disabled.Execute(context.Background(), pagescmd.SchedulePageCommand{TenantID: testTenant, PageID: page.ID, PublishAt: &publishAt})
	if !errors.Is(err, pagescmd.ErrSchedulingDisabled) {
		t.Fatalf("expected scheduling disabled got %v", err)
	}

	handler := pagescmd.NewSchedulePageHandler(svc, logging.NoOp(), pagescmd.FeatureGates{})
	if err := handler.Execute(context.Background(), pagescmd.SchedulePageCommand{TenantID: testTenant, PageID: page.ID, PublishAt: &publishAt}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	stored, err := svc.Get(context.Background(), pages.GetPageRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.ScheduledPublishAt == nil || !stored.ScheduledPublishAt.Equal(publishAt) {
		t.Fatalf("expected publish_at %s got %v", publishAt, stored.ScheduledPublishAt)
	}
}

func TestRollbackPageHandlerRestoresVersion(t *testing.T) {
	svc := newLifecycle()
	page := createDraft(t, svc, "Harbour Office")
	ctx := context.Background()

	title := "Harbour Office (closed)"
	if _, err := svc.Update(ctx, pages.UpdatePageRequest{TenantID: testTenant, PageID: page.ID, ExpectedRevision: page.Revision, Title: &title}); err != nil {
		t.Fatalf("update: %v", err)
	}

	handler := pagescmd.NewRollbackPageHandler(svc, logging.NoOp(), pagescmd.FeatureGates{})
	if err := handler.Execute(ctx, pagescmd.RollbackPageCommand{TenantID: testTenant, PageID: page.ID}); !goerrors.IsCategory(err, goerrors.CategoryValidation) {
		t.Fatalf("expected missing version to fail validation got %v", err)
	}
	if err := handler.Execute(ctx, pagescmd.RollbackPageCommand{TenantID: testTenant, PageID: page.ID, Version: 1}); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	stored, err := svc.Get(ctx, pages.GetPageRequest{TenantID: testTenant, PageID: page.ID})
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Title != "Harbour Office" {
		t.Fatalf("expected original title got %q", stored.Title)
	}
}

type stubSweeper struct {
	result jobs.SweepResult
	err    error
	calls  int
}

func (s *stubSweeper) Process(context.Context) (jobs.SweepResult, error) {
	s.calls++
	return s.result, s.err
}

func TestSweepSchedulesHandler(t *testing.T) {
	published := uuid.New()
	sweeper := &stubSweeper{result: jobs.SweepResult{Published: []uuid.UUID{published}}}
	handler := pagescmd.NewSweepSchedulesHandler(sweeper, logging.NoOp(), pagescmd.FeatureGates{},
		pagescmd.SweepWithCronExpression("*/5 * * * *"),
	)

	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron run: %v", err)
	}
	if sweeper.calls != 1 {
		t.Fatalf("expected one sweep got %d", sweeper.calls)
	}
	if got := handler.LastResult().Published; len(got) != 1 || got[0] != published {
		t.Fatalf("unexpected last result %+v", handler.LastResult())
	}
	if handler.CronOptions().Expression != "*/5 * * * *" {
		t.Fatalf("unexpected cron expression %q", handler.CronOptions().Expression)
	}
	if path := handler.CLIOptions().Path; len(path) != 2 || path[1] != "sweep" {
		t.Fatalf("unexpected cli path %v", path)
	}

	sweeper.err = errors.New("listing failed")
	err := handler.Execute(context.Background(), pagescmd.SweepSchedulesCommand{})
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category got %v", err)
	}
}

func TestSweepSchedulesHandlerDefaultsToEveryMinute(t *testing.T) {
	handler := pagescmd.NewSweepSchedulesHandler(&stubSweeper{}, nil, pagescmd.FeatureGates{})
	if handler.CronOptions().Expression != "@every 1m" {
		t.Fatalf("unexpected default expression %q", handler.CronOptions().Expression)
	}
}

type recordingRegistry struct {
	handlers []any
}

func (r *recordingRegistry) RegisterCommand(handler any) error {
	r.handlers = append(r.handlers, handler)
	return nil
}

func TestRegisterPageCommands(t *testing.T) {
	reg := &recordingRegistry{}
	set, err := pagescmd.RegisterPageCommands(reg, newLifecycle(), &stubSweeper{}, nil, pagescmd.FeatureGates{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(reg.handlers) != 4 {
		t.Fatalf("expected 4 handlers registered got %d", len(reg.handlers))
	}
	if set.Sweep == nil || set.Publish == nil {
		t.Fatal("expected handler set populated")
	}
	if _, err := pagescmd.RegisterPageCommands(reg, nil, &stubSweeper{}, nil, pagescmd.FeatureGates{}); err == nil {
		t.Fatal("expected nil service to fail")
	}
}
