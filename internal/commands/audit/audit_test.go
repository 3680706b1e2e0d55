package auditcmd

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/jobs"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

type stubAuditLog struct {
	events      []interfaces.AuditEvent
	listErr     error
	deleteErr   error
	listCalls   int
	deleteCalls int
	cutoff      time.Time
}

func (s *stubAuditLog) List(context.Context) ([]interfaces.AuditEvent, error) {
	s.listCalls++
	if s.listErr != nil {
		return nil, s.listErr
	}
	copyEvents := make([]interfaces.AuditEvent, len(s.events))
	copy(copyEvents, s.events)
	return copyEvents, nil
}

func (s *stubAuditLog) DeleteBefore(_ context.Context, cutoff time.Time) (int, error) {
	s.deleteCalls++
	s.cutoff = cutoff
	return 0, s.deleteErr
}

func TestExportAuditHandlerRespectsLimit(t *testing.T) {
	log := &stubAuditLog{
		events: []interfaces.AuditEvent{
			{EntityType: "page", EntityID: "1", Action: "published", OccurredAt: time.Now()},
			{EntityType: "page", EntityID: "2", Action: "published", OccurredAt: time.Now()},
			{EntityType: "page", EntityID: "3", Action: "unpublished", OccurredAt: time.Now()},
		},
	}
	handler := NewExportAuditHandler(log, logging.NoOp())
	limit := 2

	if err := handler.Execute(context.Background(), ExportAuditCommand{MaxRecords: &limit}); err != nil {
		t.Fatalf("export execute: %v", err)
	}
	if log.listCalls != 1 {
		t.Fatalf("expected list to be called once, got %d", log.listCalls)
	}
}

func TestExportAuditHandlerPropagatesError(t *testing.T) {
	log := &stubAuditLog{listErr: errors.New("list failed")}
	handler := NewExportAuditHandler(log, logging.NoOp())

	err := handler.Execute(context.Background(), ExportAuditCommand{})
	if err == nil {
		t.Fatal("expected list error")
	}
	if !errors.Is(err, log.listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

var cleanupNow = time.Date(2024, 3, 15, 12, 0, 0, 0, time.UTC)

func cleanupClock() time.Time { return cleanupNow }

func TestCleanupAuditHandlerDryRunCountsOnly(t *testing.T) {
	log := &stubAuditLog{
		events: []interfaces.AuditEvent{
			{EntityType: "page", EntityID: "1", OccurredAt: cleanupNow.Add(-200 * 24 * time.Hour)},
			{EntityType: "page", EntityID: "2", OccurredAt: cleanupNow},
		},
	}
	handler := NewCleanupAuditHandler(log, logging.NoOp(), CleanupWithClock(cleanupClock))

	if err := handler.Execute(context.Background(), CleanupAuditCommand{DryRun: true}); err != nil {
		t.Fatalf("cleanup dry run: %v", err)
	}
	if log.deleteCalls != 0 {
		t.Fatalf("expected no deletes, got %d", log.deleteCalls)
	}
	if log.listCalls != 1 {
		t.Fatalf("expected list once, got %d", log.listCalls)
	}
}

func TestCleanupAuditHandlerUsesRetentionCutoff(t *testing.T) {
	log := &stubAuditLog{}
	handler := NewCleanupAuditHandler(log, logging.NoOp(), CleanupWithClock(cleanupClock))

	if err := handler.Execute(context.Background(), CleanupAuditCommand{}); err != nil {
		t.Fatalf("cleanup execute: %v", err)
	}
	if want := cleanupNow.Add(-DefaultAuditRetention); !log.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s got %s", want, log.cutoff)
	}

	if err := handler.Execute(context.Background(), CleanupAuditCommand{OlderThan: time.Hour}); err != nil {
		t.Fatalf("cleanup execute: %v", err)
	}
	if want := cleanupNow.Add(-time.Hour); !log.cutoff.Equal(want) {
		t.Fatalf("expected cutoff %s got %s", want, log.cutoff)
	}
}

func TestCleanupAuditHandlerRejectsNegativeWindow(t *testing.T) {
	log := &stubAuditLog{}
	handler := NewCleanupAuditHandler(log, logging.NoOp())

	if err := handler.Execute(context.Background(), CleanupAuditCommand{OlderThan: -time.Minute}); err == nil {
		t.Fatal("expected validation error")
	}
	if log.deleteCalls != 0 {
		t.Fatalf("expected no deletes, got %d", log.deleteCalls)
	}
}

func TestCleanupAuditHandlerPropagatesErrors(t *testing.T) {
	log := &stubAuditLog{deleteErr: errors.New("delete boom")}
	handler := NewCleanupAuditHandler(log, logging.NoOp())

	err := handler.Execute(context.Background(), CleanupAuditCommand{})
	if !errors.Is(err, log.deleteErr) {
		t.Fatalf("expected delete error, got %v", err)
	}

	log.listErr = errors.New("list boom")
	err = handler.Execute(context.Background(), CleanupAuditCommand{DryRun: true})
	if !errors.Is(err, log.listErr) {
		t.Fatalf("expected list error, got %v", err)
	}
}

func TestExportAuditSelectsPageTrailInWindow(t *testing.T) {
	tenant := uuid.New()
	page := uuid.New()
	events := []interfaces.AuditEvent{
		{TenantID: tenant, EntityID: page.String(), Action: "published", OccurredAt: cleanupNow.Add(-time.Hour)},
		{TenantID: tenant, EntityID: page.String(), Action: "created", OccurredAt: cleanupNow.Add(-3 * time.Hour)},
		{TenantID: tenant, EntityID: uuid.NewString(), Action: "published", OccurredAt: cleanupNow.Add(-2 * time.Hour)},
		{TenantID: uuid.New(), EntityID: page.String(), Action: "published", OccurredAt: cleanupNow.Add(-time.Hour)},
		{TenantID: tenant, EntityID: page.String(), Action: "archived", OccurredAt: cleanupNow},
	}

	since := cleanupNow.Add(-4 * time.Hour)
	until := cleanupNow
	got := selectTrail(events, ExportAuditCommand{TenantID: tenant, PageID: page, Since: &since, Until: &until})
	if len(got) != 2 || got[0].Action != "created" || got[1].Action != "published" {
		t.Fatalf("expected created then published inside the window, got %+v", got)
	}

	got = selectTrail(events, ExportAuditCommand{TenantID: tenant, Action: "Published"})
	if len(got) != 2 || got[0].OccurredAt.After(got[1].OccurredAt) {
		t.Fatalf("expected two published events oldest first, got %+v", got)
	}
	if got := selectTrail(events, ExportAuditCommand{}); len(got) != len(events) {
		t.Fatalf("expected unfiltered export got %d", len(got))
	}
}

func TestExportAuditHandlerStreamsToSink(t *testing.T) {
	tenant := uuid.New()
	log := &stubAuditLog{
		events: []interfaces.AuditEvent{
			{TenantID: tenant, EntityID: "2", Action: "published", OccurredAt: cleanupNow},
			{TenantID: tenant, EntityID: "1", Action: "created", OccurredAt: cleanupNow.Add(-time.Minute)},
			{TenantID: tenant, EntityID: "3", Action: "archived", OccurredAt: cleanupNow.Add(time.Minute)},
		},
	}
	var seen []string
	handler := NewExportAuditHandler(log, logging.NoOp(), ExportWithSink(func(_ context.Context, event interfaces.AuditEvent) error {
		seen = append(seen, event.EntityID)
		return nil
	}))
	limit := 2

	if err := handler.Execute(context.Background(), ExportAuditCommand{TenantID: tenant, MaxRecords: &limit}); err != nil {
		t.Fatalf("export execute: %v", err)
	}
	if len(seen) != 2 || seen[0] != "1" || seen[1] != "2" {
		t.Fatalf("expected the two oldest events in order, got %v", seen)
	}

	sinkErr := errors.New("sink closed")
	failing := NewExportAuditHandler(log, logging.NoOp(), ExportWithSink(func(context.Context, interfaces.AuditEvent) error {
		return sinkErr
	}))
	if err := failing.Execute(context.Background(), ExportAuditCommand{}); !errors.Is(err, sinkErr) {
		t.Fatalf("expected sink error, got %v", err)
	}
}

func TestExportAuditCommandValidation(t *testing.T) {
	since := cleanupNow
	before := cleanupNow.Add(-time.Hour)
	negative := -1
	cases := []struct {
		name string
		msg  ExportAuditCommand
		ok   bool
	}{
		{name: "empty", msg: ExportAuditCommand{}, ok: true},
		{name: "open window", msg: ExportAuditCommand{Since: &since}, ok: true},
		{name: "inverted window", msg: ExportAuditCommand{Since: &since, Until: &before}},
		{name: "empty window", msg: ExportAuditCommand{Since: &since, Until: &since}},
		{name: "negative limit", msg: ExportAuditCommand{MaxRecords: &negative}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.msg.Validate()
			if tc.ok && err != nil {
				t.Fatalf("expected valid message, got %v", err)
			}
			if !tc.ok && err == nil {
				t.Fatal("expected validation error")
			}
		})
	}
}

func TestCleanupPrunesInMemoryRecorder(t *testing.T) {
	ctx := context.Background()
	recorder := jobs.NewInMemoryAuditRecorder()
	_ = recorder.Record(ctx, interfaces.AuditEvent{EntityType: "page", EntityID: "1", Action: "created", OccurredAt: cleanupNow.Add(-100 * 24 * time.Hour)})
	_ = recorder.Record(ctx, interfaces.AuditEvent{EntityType: "page", EntityID: "1", Action: "published", OccurredAt: cleanupNow.Add(-time.Hour)})
	handler := NewCleanupAuditHandler(recorder, logging.NoOp(), CleanupWithClock(cleanupClock))

	if err := handler.Execute(ctx, CleanupAuditCommand{}); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
	events := recorder.Events()
	if len(events) != 1 || events[0].Action != "published" {
		t.Fatalf("expected only the recent event to survive, got %+v", events)
	}
}
