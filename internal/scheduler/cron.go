package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	command "github.com/goliatone/go-command"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
	"github.com/robfig/cron/v3"
)

var (
	ErrExpressionRequired = errors.New("scheduler: cron expression is required")
	ErrHandlerUnsupported = errors.New("scheduler: handler must be func() error, func() or expose CronHandler")
)

// ExpressionParser accepts standard five field expressions and descriptors such as "@every 1m".
var ExpressionParser = cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)

type cronHandler interface {
	CronHandler() func() error
}

// Entry describes a registered cron job.
type Entry struct {
	Name       string
	Expression string
	Next       time.Time
	Prev       time.Time
}

// CronRunner runs registered handlers on robfig/cron schedules. Overlapping runs of the same
// entry are skipped.
type CronRunner struct {
	mu       sync.Mutex
	cron     *cron.Cron
	logger   interfaces.Logger
	entries  map[cron.EntryID]Entry
	sequence int
}

var _ interfaces.CronScheduler = (*CronRunner)(nil)

type CronOption func(*CronRunner)

func WithLogger(logger interfaces.Logger) CronOption {
	return func(r *CronRunner) {
		r.logger = logging.Ensure(logger)
	}
}

func NewCronRunner(opts ...CronOption) *CronRunner {
	r := &CronRunner{
		logger:  logging.NoOp(),
		entries: make(map[cron.EntryID]Entry),
	}
	for _, opt := range opts {
		opt(r)
	}
	r.cron = cron.New(
		cron.WithParser(ExpressionParser),
		cron.WithLocation(time.UTC),
		cron.WithChain(cron.Recover(cron.DiscardLogger), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	return r
}

// Register binds handler to cfg.Expression. It satisfies the go-command cron registrar signature.
func (r *CronRunner) Register(cfg command.HandlerConfig, handler any) error {
	expression := strings.TrimSpace(cfg.Expression)
	if expression == "" {
		return ErrExpressionRequired
	}
	run, err := handlerFunc(handler)
	if err != nil {
		return err
	}
	if _, err := ExpressionParser.Parse(expression); err != nil {
		return fmt.Errorf("scheduler: invalid cron expression %q: %w", expression, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.sequence++
	name := fmt.Sprintf("%s#%d", handlerName(handler), r.sequence)
	id, err := r.cron.AddFunc(expression, func() {
		started := time.Now()
		if err := run(); err != nil {
			r.logger.Error("scheduler.job.failed", "job", name, "error", err)
			return
		}
		r.logger.Debug("scheduler.job.completed", "job", name, "duration_ms", time.Since(started).Milliseconds())
	})
	if err != nil {
		return fmt.Errorf("scheduler: register %s: %w", name, err)
	}
	r.entries[id] = Entry{Name: name, Expression: expression}
	r.logger.Info("scheduler.job.registered", "job", name, "expression", expression)
	return nil
}

// Entries lists registered jobs ordered by name.
func (r *CronRunner) Entries() []Entry {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Entry, 0, len(r.entries))
	for id, entry := range r.entries {
		scheduled := r.cron.Entry(id)
		entry.Next = scheduled.Next
		entry.Prev = scheduled.Prev
		out = append(out, entry)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].Name < out[j].Name
	})
	return out
}

func (r *CronRunner) Start() {
	r.cron.Start()
	r.logger.Info("scheduler.started", "jobs", len(r.cron.Entries()))
}

// Stop halts scheduling and waits for running jobs until ctx is done.
func (r *CronRunner) Stop(ctx context.Context) error {
	done := r.cron.Stop()
	select {
	case <-done.Done():
		r.logger.Info("scheduler.stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func handlerFunc(handler any) (func() error, error) {
	switch fn := handler.(type) {
	case func() error:
		if fn != nil {
			return fn, nil
		}
	case func():
		if fn != nil {
			return func() error {
				fn()
				return nil
			}, nil
		}
	case cronHandler:
		if run := fn.CronHandler(); run != nil {
			return run, nil
		}
	}
	return nil, ErrHandlerUnsupported
}

func handlerName(handler any) string {
	if named, ok := handler.(interface{ CronName() string }); ok {
		if name := strings.TrimSpace(named.CronName()); name != "" {
			return name
		}
	}
	return "job"
}
