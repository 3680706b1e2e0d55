package pages

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/identity"
	"github.com/municipio/pagecms/internal/locks"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// DefaultVersionRetention caps the versions kept per page.
const DefaultVersionRetention = 20

// VersionStore appends snapshots as numbered versions and prunes the oldest past retention.
type VersionStore struct {
	repo        VersionRepository
	locker      locks.Locker
	now         func() time.Time
	retention   int
	minInterval time.Duration
	logger      interfaces.Logger
}

// VersionStoreOption configures a VersionStore.
type VersionStoreOption func(*VersionStore)

// WithStoreRetention sets the retention ceiling. Zero keeps every version.
func WithStoreRetention(limit int) VersionStoreOption {
	return func(s *VersionStore) {
		if limit < 0 {
			limit = 0
		}
		s.retention = limit
	}
}

// WithStoreMinInterval skips unforced versions recorded sooner than interval after the latest.
func WithStoreMinInterval(interval time.Duration) VersionStoreOption {
	return func(s *VersionStore) {
		if interval < 0 {
			interval = 0
		}
		s.minInterval = interval
	}
}

func WithStoreClock(clock func() time.Time) VersionStoreOption {
	return func(s *VersionStore) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithStoreLocker(locker locks.Locker) VersionStoreOption {
	return func(s *VersionStore) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithStoreLogger(logger interfaces.Logger) VersionStoreOption {
	return func(s *VersionStore) {
		s.logger = logging.Ensure(logger)
	}
}

func NewVersionStore(repo VersionRepository, opts ...VersionStoreOption) *VersionStore {
	s := &VersionStore{
		repo:      repo,
		locker:    locks.NewMemoryLocker(),
		now:       time.Now,
		retention: DefaultVersionRetention,
		logger:    logging.NoOp(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// VersionRecordID derives the row id of version number of a page, so a version can be
// fetched by primary key without a lookup.
func VersionRecordID(pageID uuid.UUID, number int) uuid.UUID {
	return identity.UUID(fmt.Sprintf("page-version:%s:%d", pageID, number))
}

// Record appends snapshot as the next version of page. It returns nil without error when
// the snapshot is unchanged or the debounce window has not elapsed, unless force is set.
func (s *VersionStore) Record(ctx context.Context, page *Page, snapshot Snapshot, editor uuid.UUID, note string, force bool) (*PageVersion, error) {
	if page == nil || page.ID == uuid.Nil {
		return nil, ErrPageRequired
	}
	unlock, err := s.locker.Lock(ctx, locks.VersionKey(page.ID))
	if err != nil {
		return nil, err
	}
	defer unlock()

	now := s.now()
	next := 1
	latest, err := s.repo.Latest(ctx, page.ID)
	switch {
	case err == nil:
		if !force {
			if latest.Snapshot.Equal(snapshot) {
				return nil, nil
			}
			if s.minInterval > 0 && now.Sub(latest.CreatedAt) < s.minInterval {
				s.logger.Debug("pages.version.debounced", "page_id", page.ID, "latest", latest.Number)
				return nil, nil
			}
		}
		next = latest.Number + 1
	case errors.Is(err, ErrVersionNotFound):
	default:
		return nil, err
	}

	if note == "" {
		note = fmt.Sprintf("Auto version %d", next)
	}
	version := &PageVersion{
		ID:         VersionRecordID(page.ID, next),
		PageID:     page.ID,
		Number:     next,
		Title:      page.Title,
		Body:       page.Body,
		Snapshot:   snapshot.Clone(),
		CreatedBy:  editor,
		ChangeNote: note,
		CreatedAt:  now,
	}
	created, err := s.repo.Create(ctx, version)
	if err != nil {
		return nil, err
	}

	if s.retention > 0 {
		pruned, err := s.repo.Prune(ctx, page.ID, s.retention)
		if err != nil {
			s.logger.Warn("pages.version.prune_failed", "page_id", page.ID, "error", err)
		} else if pruned > 0 {
			s.logger.Debug("pages.version.pruned", "page_id", page.ID, "count", pruned)
		}
	}
	return created, nil
}

func (s *VersionStore) List(ctx context.Context, pageID uuid.UUID) ([]*PageVersion, error) {
	return s.repo.List(ctx, pageID)
}

func (s *VersionStore) Get(ctx context.Context, pageID uuid.UUID, number int) (*PageVersion, error) {
	if number <= 0 {
		return nil, ErrVersionRequired
	}
	return s.repo.Get(ctx, pageID, number)
}

// Purge removes every version of a page.
func (s *VersionStore) Purge(ctx context.Context, pageID uuid.UUID) error {
	_, err := s.repo.Prune(ctx, pageID, 0)
	return err
}
