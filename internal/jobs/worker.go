package jobs

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const (
	defaultBatchSize   = 200
	defaultPageTimeout = 10 * time.Second
)

// Lifecycle is the slice of the page service the sweeper drives.
type Lifecycle interface {
	ListDue(ctx context.Context, now time.Time) ([]*pages.Page, error)
	ApplySchedule(ctx context.Context, pageID uuid.UUID) (pages.ScheduleOutcome, *pages.MutationResult, error)
}

// SweepResult lists the pages touched by one sweep.
type SweepResult struct {
	Published   []uuid.UUID
	Unpublished []uuid.UUID
	Skipped     []uuid.UUID
	Failed      []uuid.UUID
}

// Processed reports how many due pages were looked at.
func (r SweepResult) Processed() int {
	return len(r.Published) + len(r.Unpublished) + len(r.Skipped) + len(r.Failed)
}

// Worker applies elapsed publish and unpublish schedules.
type Worker struct {
	pages       Lifecycle
	logger      interfaces.Logger
	now         func() time.Time
	batchSize   int
	pageTimeout time.Duration
}

type Option func(*Worker)

func WithClock(clock func() time.Time) Option {
	return func(w *Worker) {
		if clock != nil {
			w.now = clock
		}
	}
}

// WithBatchSize caps how many due pages one sweep handles. The rest wait for the next run.
func WithBatchSize(size int) Option {
	return func(w *Worker) {
		if size > 0 {
			w.batchSize = size
		}
	}
}

// WithPageTimeout bounds the work done for a single page.
func WithPageTimeout(timeout time.Duration) Option {
	return func(w *Worker) {
		if timeout > 0 {
			w.pageTimeout = timeout
		}
	}
}

func WithLogger(logger interfaces.Logger) Option {
	return func(w *Worker) {
		w.logger = logging.Ensure(logger)
	}
}

func NewWorker(lifecycle Lifecycle, opts ...Option) *Worker {
	w := &Worker{
		pages:       lifecycle,
		logger:      logging.NoOp(),
		now:         time.Now,
		batchSize:   defaultBatchSize,
		pageTimeout: defaultPageTimeout,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Process runs one sweep. Failures of individual pages are logged and counted; only a failed
// listing or a cancelled context stops the sweep.
func (w *Worker) Process(ctx context.Context) (SweepResult, error) {
	var result SweepResult
	if w.pages == nil {
		return result, errors.New("jobs: page lifecycle is nil")
	}
	due, err := w.pages.ListDue(ctx, w.now())
	if err != nil {
		return result, err
	}
	if len(due) > w.batchSize {
		w.logger.Debug("scheduler.sweep.batch_truncated", "due", len(due), "batch_size", w.batchSize)
		due = due[:w.batchSize]
	}

	for _, page := range due {
		if page == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return result, err
		}
		outcome, err := w.processPage(ctx, page.ID)
		if err != nil {
			w.logger.Error("scheduler.sweep.page_failed", "page_id", page.ID, "tenant_id", page.TenantID, "error", err)
			result.Failed = append(result.Failed, page.ID)
			continue
		}
		switch outcome {
		case pages.SchedulePublished:
			result.Published = append(result.Published, page.ID)
		case pages.ScheduleUnpublished:
			result.Unpublished = append(result.Unpublished, page.ID)
		default:
			result.Skipped = append(result.Skipped, page.ID)
		}
	}

	if result.Processed() > 0 {
		w.logger.Info("scheduler.sweep.completed",
			"published", len(result.Published),
			"unpublished", len(result.Unpublished),
			"skipped", len(result.Skipped),
			"failed", len(result.Failed),
		)
	}
	return result, nil
}

func (w *Worker) processPage(ctx context.Context, pageID uuid.UUID) (pages.ScheduleOutcome, error) {
	pageCtx, cancel := context.WithTimeout(ctx, w.pageTimeout)
	defer cancel()
	outcome, result, err := w.pages.ApplySchedule(pageCtx, pageID)
	if err != nil {
		return outcome, err
	}
	if result != nil && result.VersionError != nil {
		w.logger.Warn("scheduler.sweep.version_failed", "page_id", pageID, "error", result.VersionError)
	}
	return outcome, nil
}
