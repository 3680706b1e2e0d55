package pages

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/identity"
	"github.com/municipio/pagecms/internal/locks"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/permissions"
	"github.com/municipio/pagecms/internal/sanitize"
	cmspages "github.com/municipio/pagecms/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const (
	defaultLanguage          = "en"
	defaultDuplicateAttempts = 50
)

// Lifecycle extends Service with the hooks used by background workers.
type Lifecycle interface {
	Service
	// ListDue returns pages whose scheduled transition has elapsed at now.
	ListDue(ctx context.Context, now time.Time) ([]*Page, error)
	// ApplySchedule re-checks a due page under its lock and applies the scheduled transition.
	ApplySchedule(ctx context.Context, pageID uuid.UUID) (ScheduleOutcome, *MutationResult, error)
	// SlugHistory lists the recorded renames of a page.
	SlugHistory(ctx context.Context, req GetPageRequest) ([]*PageSlugHistory, error)
}

// ScheduleOutcome reports what ApplySchedule did.
type ScheduleOutcome string

const (
	ScheduleSkipped     ScheduleOutcome = "skipped"
	SchedulePublished   ScheduleOutcome = "published"
	ScheduleUnpublished ScheduleOutcome = "unpublished"
)

// ServiceOption configures the service at construction time.
type ServiceOption func(*service)

// WithClock overrides the clock used to stamp records.
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

type IDGenerator func() uuid.UUID

func WithIDGenerator(generator IDGenerator) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// WithLocker replaces the in-process locker, e.g. with a Redis lease locker.
func WithLocker(locker locks.Locker) ServiceOption {
	return func(s *service) {
		if locker != nil {
			s.locker = locker
		}
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

// WithAuthorizer installs the permission policy. Without one every action is allowed.
func WithAuthorizer(authorizer interfaces.Authorizer) ServiceOption {
	return func(s *service) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

func WithSanitizer(sanitizer interfaces.Sanitizer) ServiceOption {
	return func(s *service) {
		if sanitizer != nil {
			s.sanitizer = sanitizer
		}
	}
}

// WithReservedSlugs adds slugs to the built-in reserved set.
func WithReservedSlugs(slugs ...string) ServiceOption {
	return func(s *service) {
		for _, value := range slugs {
			if normalized := strings.ToLower(strings.TrimSpace(value)); normalized != "" {
				s.reserved[normalized] = struct{}{}
			}
		}
	}
}

// WithTrackedFields selects the scalar fields captured in snapshots.
func WithTrackedFields(fields ...string) ServiceOption {
	return func(s *service) {
		s.trackedFields = append([]string(nil), fields...)
	}
}

// WithVersioningEnabled toggles version recording.
func WithVersioningEnabled(enabled bool) ServiceOption {
	return func(s *service) {
		s.versioningEnabled = enabled
	}
}

// WithVersionRetentionLimit constrains how many versions are retained per page. Zero keeps all.
func WithVersionRetentionLimit(limit int) ServiceOption {
	return func(s *service) {
		if limit < 0 {
			limit = 0
		}
		s.versionRetention = limit
	}
}

// WithVersionMinInterval debounces unforced versions.
func WithVersionMinInterval(interval time.Duration) ServiceOption {
	return func(s *service) {
		s.versionMinInterval = interval
	}
}

// WithEnforceHTTPSCanonical rejects http canonical urls when enabled.
func WithEnforceHTTPSCanonical(enforce bool) ServiceOption {
	return func(s *service) {
		s.enforceHTTPS = enforce
	}
}

func WithAuditRecorder(recorder interfaces.AuditRecorder) ServiceOption {
	return func(s *service) {
		s.audit = recorder
	}
}

// WithDefaultLanguage sets the language applied when requests omit one.
func WithDefaultLanguage(language string) ServiceOption {
	return func(s *service) {
		if normalized := normalizeLanguage(language); normalized != "" {
			s.defaultLanguage = normalized
		}
	}
}

// WithDuplicateSlugAttempts bounds the suffix search used by Duplicate and Rollback.
func WithDuplicateSlugAttempts(attempts int) ServiceOption {
	return func(s *service) {
		if attempts > 0 {
			s.duplicateAttempts = attempts
		}
	}
}

// WithSystemActor sets the actor stamped on scheduled transitions.
func WithSystemActor(actor uuid.UUID) ServiceOption {
	return func(s *service) {
		s.systemActor = actor
	}
}

type service struct {
	pages      PageRepository
	versions   *VersionStore
	slugs      *SlugRegistry
	builder    *SnapshotBuilder
	locker     locks.Locker
	now        func() time.Time
	id         IDGenerator
	logger     interfaces.Logger
	authorizer interfaces.Authorizer
	sanitizer  interfaces.Sanitizer
	audit      interfaces.AuditRecorder

	reserved           map[string]struct{}
	trackedFields      []string
	versioningEnabled  bool
	versionRetention   int
	versionMinInterval time.Duration
	enforceHTTPS       bool
	defaultLanguage    string
	duplicateAttempts  int
	systemActor        uuid.UUID
}

// NewService constructs the page lifecycle service.
func NewService(pages PageRepository, versions VersionRepository, history SlugHistoryRepository, opts ...ServiceOption) Lifecycle {
	s := &service{
		pages:             pages,
		locker:            locks.NewMemoryLocker(),
		now:               time.Now,
		id:                uuid.New,
		logger:            logging.NoOp(),
		authorizer:        interfaces.AllowAll(),
		sanitizer:         sanitize.New(),
		reserved:          map[string]struct{}{},
		versioningEnabled: true,
		versionRetention:  DefaultVersionRetention,
		enforceHTTPS:      true,
		defaultLanguage:   defaultLanguage,
		duplicateAttempts: defaultDuplicateAttempts,
		systemActor:       identity.SystemActorUUID("scheduler"),
	}
	for _, slugValue := range cmspages.DefaultReservedSlugs {
		s.reserved[slugValue] = struct{}{}
	}

	for _, opt := range opts {
		opt(s)
	}

	s.builder = NewSnapshotBuilder(s.trackedFields...)
	s.versions = NewVersionStore(versions,
		WithStoreLocker(s.locker),
		WithStoreClock(s.now),
		WithStoreRetention(s.versionRetention),
		WithStoreMinInterval(s.versionMinInterval),
		WithStoreLogger(s.logger),
	)
	s.slugs = NewSlugRegistry(pages, history, s.now, s.id)
	return s
}

// Create validates and stores a new page, then records its first version.
func (s *service) Create(ctx context.Context, req CreatePageRequest) (*MutationResult, error) {
	if req.TenantID == uuid.Nil {
		return nil, validationError(ErrTenantRequired, codeTenantRequired, "tenant_id", "is required")
	}
	status, ok := domain.ParseStatus(req.Status)
	if !ok || status == domain.StatusArchived {
		return nil, validationError(ErrStatusInvalid, codePageInvalid, "status", "must be draft, pending or published")
	}
	if err := s.authorize(ctx, req.Actor, permissions.PagesCreate, req.TenantID, uuid.Nil, ""); err != nil {
		return nil, err
	}
	if status == domain.StatusPublished {
		if err := s.authorize(ctx, req.Actor, permissions.PagesPublish, req.TenantID, uuid.Nil, ""); err != nil {
			return nil, err
		}
	}

	now := s.now()
	page := &Page{
		ID:                   s.id(),
		TenantID:             req.TenantID,
		Title:                s.sanitizer.SanitizePlainText(req.Title),
		Slug:                 strings.ToLower(strings.TrimSpace(req.Slug)),
		Language:             s.languageOrDefault(req.Language),
		Body:                 s.sanitizer.SanitizeHTML(req.Body),
		Banner:               strings.TrimSpace(req.Banner),
		Template:             templateOrDefault(req.Template),
		Status:               domain.StatusDraft,
		IsFeatured:           req.IsFeatured,
		TranslationOf:        req.TranslationOf,
		ScheduledPublishAt:   cloneTimePtr(req.ScheduledPublishAt),
		ScheduledUnpublishAt: cloneTimePtr(req.ScheduledUnpublishAt),
		Revision:             1,
		CreatedBy:            req.Actor,
		UpdatedBy:            req.Actor,
		CreatedAt:            now,
		UpdatedAt:            now,
	}
	page.Meta = s.buildMeta(page.ID, req.Meta, nil)
	page.Sections = s.buildSections(page.ID, req.Sections, nil)
	page.Media = s.buildMedia(page.ID, req.Media, nil)
	if page.Slug == "" {
		page.Slug = s.deriveSlug(page.Title)
	}
	if err := s.validatePage(page); err != nil {
		return nil, err
	}
	if err := s.checkTranslationSource(ctx, page); err != nil {
		return nil, err
	}
	if err := s.precheckSlug(ctx, page); err != nil {
		return nil, err
	}

	note := req.ChangeNote
	force := false
	switch status {
	case domain.StatusPublished:
		applyTransition(page, domain.TransitionPublish, now)
		force = true
		if note == "" {
			note = noteFor(domain.TransitionPublish)
		}
	case domain.StatusPending:
		page.Status = domain.StatusPending
	}

	unlockSlug, err := s.claimSlug(ctx, page)
	if err != nil {
		return nil, err
	}
	created, err := s.pages.Create(ctx, page)
	unlockSlug()
	if err != nil {
		return nil, storageError(err, "create", page)
	}

	logger := logging.WithPageContext(s.logger, created.TenantID, created.ID, "create")
	logger.Info("pages.created", "slug", created.Slug, "language", created.Language, "status", created.Status)
	s.recordAudit(ctx, created, req.Actor, "created", nil)
	return s.recordVersion(ctx, created, req.Actor, note, force), nil
}

// Update applies a partial update under the page lock.
func (s *service) Update(ctx context.Context, req UpdatePageRequest) (*MutationResult, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	unlock, err := s.lockPage(ctx, req.PageID)
	if err != nil {
		return nil, err
	}
	defer unlock()

	current, err := s.loadLive(ctx, req.TenantID, req.PageID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(ctx, req.Actor, permissions.PagesUpdate, current.TenantID, current.ID, current.Status); err != nil {
		return nil, err
	}
	if req.ExpectedRevision > 0 && req.ExpectedRevision != current.Revision {
		return nil, revisionConflict(current.ID, req.ExpectedRevision, current.Revision)
	}

	next := clonePage(current)
	if req.Title != nil {
		next.Title = s.sanitizer.SanitizePlainText(*req.Title)
	}
	if req.Body != nil {
		next.Body = s.sanitizer.SanitizeHTML(*req.Body)
	}
	if req.Banner != nil {
		next.Banner = strings.TrimSpace(*req.Banner)
	}
	if req.Template != nil {
		next.Template = templateOrDefault(*req.Template)
	}
	if req.Language != nil {
		next.Language = s.languageOrDefault(*req.Language)
	}
	if req.IsFeatured != nil {
		next.IsFeatured = *req.IsFeatured
	}
	if req.Slug != nil {
		next.Slug = strings.ToLower(strings.TrimSpace(*req.Slug))
		if next.Slug == "" {
			next.Slug = s.deriveSlug(next.Title)
		}
	}

	children := ChildReplacement{}
	switch {
	case req.ClearMeta:
		next.Meta = nil
		children.Meta = true
	case req.Meta != nil:
		next.Meta = s.buildMeta(next.ID, req.Meta, current.Meta)
		children.Meta = true
	}
	if req.Sections != nil {
		next.Sections = s.buildSections(next.ID, req.Sections, current.Sections)
		children.Sections = true
	}
	if req.Media != nil {
		next.Media = s.buildMedia(next.ID, req.Media, current.Media)
		children.Media = true
	}
	if err := s.validatePage(next); err != nil {
		return nil, err
	}
	return s.persist(ctx, current, next, children, req.Actor, req.ChangeNote, req.ForceVersion, "update")
}

// Delete soft deletes a page, or purges it with every owned row when HardDelete is set.
func (s *service) Delete(ctx context.Context, req DeletePageRequest) error {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return err
	}
	unlock, err := s.lockPage(ctx, req.PageID)
	if err != nil {
		return err
	}
	defer unlock()

	current, err := s.load(ctx, req.TenantID, req.PageID, req.HardDelete)
	if err != nil {
		return err
	}
	logger := logging.WithPageContext(s.logger, current.TenantID, current.ID, "delete")

	if req.HardDelete {
		if err := s.authorize(ctx, req.Actor, permissions.PagesPurge, current.TenantID, current.ID, current.Status); err != nil {
			return err
		}
		if err := s.pages.Purge(ctx, current.ID); err != nil {
			return storageError(err, "purge", current)
		}
		if err := s.versions.Purge(ctx, current.ID); err != nil {
			logger.Warn("pages.purge.versions_failed", "error", err)
		}
		if err := s.slugs.Forget(ctx, current.ID); err != nil {
			logger.Warn("pages.purge.slug_history_failed", "error", err)
		}
		logger.Info("pages.purged", "slug", current.Slug)
		s.recordAudit(ctx, current, req.Actor, "purged", nil)
		return nil
	}

	if err := s.authorize(ctx, req.Actor, permissions.PagesDelete, current.TenantID, current.ID, current.Status); err != nil {
		return err
	}
	now := s.now()
	next := clonePage(current)
	next.IsDeleted = true
	next.DeletedAt = &now
	next.Revision = current.Revision + 1
	next.UpdatedAt = now
	next.UpdatedBy = req.Actor
	if _, err := s.pages.Update(ctx, next, current.Revision, ChildReplacement{}); err != nil {
		return storageError(err, "delete", next)
	}
	logger.Info("pages.deleted", "slug", current.Slug)
	s.recordAudit(ctx, next, req.Actor, "deleted", nil)
	return nil
}

// Get loads a page with its children.
func (s *service) Get(ctx context.Context, req GetPageRequest) (*Page, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	return s.load(ctx, req.TenantID, req.PageID, req.IncludeDeleted)
}

// List returns tenant pages without their children.
func (s *service) List(ctx context.Context, req ListPagesRequest) ([]*Page, error) {
	if req.TenantID == uuid.Nil {
		return nil, validationError(ErrTenantRequired, codeTenantRequired, "tenant_id", "is required")
	}
	filter := PageFilter{
		TenantID:       req.TenantID,
		Language:       normalizeLanguage(req.Language),
		IncludeDeleted: req.IncludeDeleted,
	}
	if strings.TrimSpace(req.Status) != "" {
		status, ok := domain.ParseStatus(req.Status)
		if !ok {
			return nil, validationError(ErrStatusInvalid, codePageInvalid, "status", "is not supported")
		}
		filter.Status = status
	}
	records, err := s.pages.List(ctx, filter)
	if err != nil {
		return nil, storageError(err, "list", nil)
	}
	return records, nil
}

// Resolve looks a slug up, following rename history to the live page.
func (s *service) Resolve(ctx context.Context, req ResolvePageRequest) (*Resolution, error) {
	if req.TenantID == uuid.Nil {
		return nil, validationError(ErrTenantRequired, codeTenantRequired, "tenant_id", "is required")
	}
	if strings.TrimSpace(req.Slug) == "" {
		return nil, validationError(ErrSlugRequired, codeSlugInvalid, "slug", "is required")
	}
	resolution, err := s.slugs.Resolve(ctx, req.TenantID, strings.ToLower(req.Slug), normalizeLanguage(req.Language))
	if err != nil {
		return nil, storageError(err, "resolve", nil)
	}
	return resolution, nil
}

func (s *service) SlugHistory(ctx context.Context, req GetPageRequest) ([]*PageSlugHistory, error) {
	if _, err := s.Get(ctx, GetPageRequest{TenantID: req.TenantID, PageID: req.PageID, IncludeDeleted: true}); err != nil {
		return nil, err
	}
	entries, err := s.slugs.History(ctx, req.PageID)
	if err != nil {
		return nil, storageError(err, "slug history", nil)
	}
	return entries, nil
}

// persist writes next over current and runs the post-save steps: slug history, then the
// best-effort version. The caller holds the page lock.
func (s *service) persist(ctx context.Context, current, next *Page, children ChildReplacement, actor uuid.UUID, note string, force bool, action string) (*MutationResult, error) {
	slugMoved := current.Slug != next.Slug || !strings.EqualFold(current.Language, next.Language)
	unlockSlug := locks.Unlock(func() {})
	if slugMoved {
		if err := s.precheckSlug(ctx, next); err != nil {
			return nil, err
		}
		var err error
		if unlockSlug, err = s.claimSlug(ctx, next); err != nil {
			return nil, err
		}
	}
	defer unlockSlug()
	return s.write(ctx, current, next, children, actor, note, force, action)
}

// write stores next over current once any slug it claims is locked by the caller.
func (s *service) write(ctx context.Context, current, next *Page, children ChildReplacement, actor uuid.UUID, note string, force bool, action string) (*MutationResult, error) {
	now := s.now()
	next.Revision = current.Revision + 1
	next.UpdatedAt = now
	next.UpdatedBy = actor

	saved, err := s.pages.Update(ctx, next, current.Revision, children)
	if err != nil {
		return nil, storageError(err, action, next)
	}

	logger := logging.WithPageContext(s.logger, saved.TenantID, saved.ID, action)
	if current.Slug != saved.Slug {
		if _, err := s.slugs.RecordRename(ctx, saved, current.Slug); err != nil {
			logger.Warn("pages.slug_history.record_failed", "old_slug", current.Slug, "new_slug", saved.Slug, "error", err)
		} else {
			logger.Info("pages.slug_changed", "old_slug", current.Slug, "new_slug", saved.Slug)
		}
	}
	logger.Debug("pages.saved", "revision", saved.Revision, "status", saved.Status)
	return s.recordVersion(ctx, saved, actor, note, force), nil
}

func (s *service) recordVersion(ctx context.Context, page *Page, actor uuid.UUID, note string, force bool) *MutationResult {
	result := &MutationResult{Page: page}
	if !s.versioningEnabled {
		return result
	}
	version, err := s.versions.Record(ctx, page, s.builder.Build(page), actor, note, force)
	if err != nil {
		s.logger.Warn("pages.version.record_failed", "page_id", page.ID, "tenant_id", page.TenantID, "error", err)
		result.VersionError = err
		return result
	}
	result.Version = version
	return result
}

// precheckSlug reports a slug owned by another live page as a validation failure.
func (s *service) precheckSlug(ctx context.Context, page *Page) error {
	taken, err := s.slugTaken(ctx, page)
	if err != nil {
		return err
	}
	if taken {
		return validationError(ErrSlugExists, codeSlugExists, "slug", "is already used by another page")
	}
	return nil
}

// claimSlug takes the slug lock and re-checks ownership. Losing the race is a conflict.
func (s *service) claimSlug(ctx context.Context, page *Page) (locks.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, locks.SlugKey(page.TenantID, page.Language, page.Slug))
	if err != nil {
		return nil, storageError(err, "claim slug", page)
	}
	taken, err := s.slugTaken(ctx, page)
	if err != nil {
		unlock()
		return nil, err
	}
	if taken {
		unlock()
		return nil, slugConflict(page.TenantID, page.Language, page.Slug)
	}
	return unlock, nil
}

func (s *service) slugTaken(ctx context.Context, page *Page) (bool, error) {
	existing, err := s.pages.ListBySlug(ctx, page.TenantID, page.Language, page.Slug)
	if err != nil {
		return false, storageError(err, "slug lookup", nil)
	}
	for _, candidate := range existing {
		if candidate.ID != page.ID && !candidate.IsDeleted {
			return true, nil
		}
	}
	return false, nil
}

func (s *service) lockPage(ctx context.Context, pageID uuid.UUID) (locks.Unlock, error) {
	unlock, err := s.locker.Lock(ctx, locks.PageKey(pageID))
	if err != nil {
		return nil, storageError(err, "lock", nil)
	}
	return unlock, nil
}

// load fetches a page of tenantID. Pages of other tenants are reported as missing.
func (s *service) load(ctx context.Context, tenantID, pageID uuid.UUID, includeDeleted bool) (*Page, error) {
	page, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return nil, storageError(err, "load", nil)
	}
	if page.TenantID != tenantID || (page.IsDeleted && !includeDeleted) {
		return nil, pageNotFound(pageID)
	}
	return page, nil
}

func (s *service) loadLive(ctx context.Context, tenantID, pageID uuid.UUID) (*Page, error) {
	return s.load(ctx, tenantID, pageID, false)
}

func (s *service) checkTranslationSource(ctx context.Context, page *Page) error {
	if page.TranslationOf == nil || *page.TranslationOf == uuid.Nil {
		page.TranslationOf = nil
		return nil
	}
	source, err := s.pages.GetByID(ctx, *page.TranslationOf)
	if err != nil {
		if errors.Is(err, ErrPageNotFound) {
			return validationError(ErrTranslationTargetAbsent, codeTranslationAbsent, "translation_of", "does not reference a page")
		}
		return storageError(err, "translation lookup", nil)
	}
	if source.TenantID != page.TenantID || source.IsDeleted {
		return validationError(ErrTranslationTargetAbsent, codeTranslationAbsent, "translation_of", "does not reference a page")
	}
	return nil
}

func (s *service) authorize(ctx context.Context, actor uuid.UUID, permission string, tenantID, pageID uuid.UUID, status domain.Status) error {
	resource := interfaces.AuthorizationResource{TenantID: tenantID, PageID: pageID, Status: string(status)}
	if s.authorizer.Authorize(ctx, actor, permission, resource) {
		return nil
	}
	logging.WithPageContext(s.logger, tenantID, pageID, permission).Warn("pages.forbidden", "actor", actor)
	return forbiddenError(permission, pageID)
}

func (s *service) recordAudit(ctx context.Context, page *Page, actor uuid.UUID, action string, metadata map[string]any) {
	if s.audit == nil || page == nil {
		return
	}
	event := interfaces.AuditEvent{
		EntityType: "page",
		EntityID:   page.ID.String(),
		TenantID:   page.TenantID,
		Actor:      actor,
		Action:     action,
		OccurredAt: s.now(),
		Metadata:   metadata,
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("pages.audit.record_failed", "page_id", page.ID, "action", action, "error", err)
	}
}

func (s *service) deriveSlug(title string) string {
	normalized, err := NormalizeSlug(title)
	if err != nil {
		return ""
	}
	return normalized
}

func (s *service) languageOrDefault(language string) string {
	if normalized := normalizeLanguage(language); normalized != "" {
		return normalized
	}
	return s.defaultLanguage
}

func requireIDs(tenantID, pageID uuid.UUID) error {
	if tenantID == uuid.Nil {
		return validationError(ErrTenantRequired, codeTenantRequired, "tenant_id", "is required")
	}
	if pageID == uuid.Nil {
		return validationError(ErrPageRequired, codePageInvalid, "page_id", "is required")
	}
	return nil
}

func normalizeLanguage(language string) string {
	return strings.ToLower(strings.TrimSpace(language))
}

func templateOrDefault(template string) string {
	normalized := strings.ToLower(strings.TrimSpace(template))
	if normalized == "" {
		return cmspages.TemplateDefault
	}
	return normalized
}
