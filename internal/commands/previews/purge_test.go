package previewscmd_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	previewscmd "github.com/municipio/pagecms/internal/commands/previews"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/scheduler"
)

type stubPurger struct {
	removed int
	err     error
	calls   int
}

func (s *stubPurger) PurgeExpired(ctx context.Context) (int, error) {
	s.calls++
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	return s.removed, s.err
}

type recordingRegistry struct {
	handlers []any
}

func (r *recordingRegistry) RegisterCommand(handler any) error {
	r.handlers = append(r.handlers, handler)
	return nil
}

func TestPurgeHandlerReportsRemoved(t *testing.T) {
	purger := &stubPurger{removed: 3}
	handler := previewscmd.NewPurgeExpiredPreviewsHandler(purger, logging.NoOp())

	if err := handler.Execute(context.Background(), previewscmd.PurgeExpiredPreviewsCommand{}); err != nil {
		t.Fatalf("execute: %v", err)
	}
	if handler.LastRemoved() != 3 {
		t.Fatalf("expected 3 removed got %d", handler.LastRemoved())
	}
}

func TestPurgeHandlerWrapsFailure(t *testing.T) {
	boom := errors.New("storage offline")
	handler := previewscmd.NewPurgeExpiredPreviewsHandler(&stubPurger{err: boom}, logging.NoOp())

	err := handler.Execute(context.Background(), previewscmd.PurgeExpiredPreviewsCommand{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped storage error got %v", err)
	}
	if !goerrors.IsCategory(err, goerrors.CategoryCommand) {
		t.Fatalf("expected command category got %v", err)
	}
}

func TestPurgeHandlerCancelledContext(t *testing.T) {
	purger := &stubPurger{}
	handler := previewscmd.NewPurgeExpiredPreviewsHandler(purger, logging.NoOp())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := handler.Execute(ctx, previewscmd.PurgeExpiredPreviewsCommand{}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation got %v", err)
	}
	if purger.calls != 0 {
		t.Fatalf("purger should not run on a cancelled context")
	}
}

func TestPurgeHandlerCronMetadata(t *testing.T) {
	purger := &stubPurger{removed: 1}
	handler := previewscmd.NewPurgeExpiredPreviewsHandler(purger, logging.NoOp())

	if got := handler.CronOptions().Expression; got != scheduler.DefaultPurgeExpression {
		t.Fatalf("expected default expression got %q", got)
	}
	if handler.CronName() != scheduler.JobPreviewsPurge {
		t.Fatalf("unexpected cron name %q", handler.CronName())
	}
	if err := handler.CronHandler()(); err != nil {
		t.Fatalf("cron handler: %v", err)
	}
	if purger.calls != 1 {
		t.Fatalf("expected cron handler to run the purge")
	}

	custom := previewscmd.NewPurgeExpiredPreviewsHandler(purger, logging.NoOp(), previewscmd.PurgeWithCronExpression(" @every 5m "))
	if got := custom.CronOptions().Expression; got != "@every 5m" {
		t.Fatalf("expected trimmed override got %q", got)
	}
	if path := custom.CLIOptions().Path; len(path) != 2 || path[0] != "previews" || path[1] != "purge" {
		t.Fatalf("unexpected cli path %v", path)
	}
}

func TestRegisterPreviewCommands(t *testing.T) {
	reg := &recordingRegistry{}
	handler, err := previewscmd.RegisterPreviewCommands(reg, &stubPurger{}, nil)
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(reg.handlers) != 1 || reg.handlers[0] != any(handler) {
		t.Fatalf("expected handler to be registered got %v", reg.handlers)
	}
	if _, err := previewscmd.RegisterPreviewCommands(reg, nil, nil); err == nil {
		t.Fatalf("expected error for nil purger")
	}
}
