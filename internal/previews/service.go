package previews

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"io"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/permissions"
	cmspages "github.com/municipio/pagecms/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const (
	DefaultTTL          = 24 * time.Hour
	DefaultMaxTTL       = 7 * 24 * time.Hour
	defaultIssueRetries = 3
)

// PageReader loads a page with its meta, sections and media. Soft-deleted pages are returned
// so callers can decide how to treat them.
type PageReader interface {
	GetByID(ctx context.Context, id uuid.UUID) (*cmspages.Page, error)
}

type ServiceOption func(*service)

func WithClock(clock func() time.Time) ServiceOption {
	return func(s *service) {
		if clock != nil {
			s.now = clock
		}
	}
}

func WithIDGenerator(generator func() uuid.UUID) ServiceOption {
	return func(s *service) {
		if generator != nil {
			s.id = generator
		}
	}
}

// WithRandom replaces the entropy source used for token values.
func WithRandom(reader io.Reader) ServiceOption {
	return func(s *service) {
		if reader != nil {
			s.random = reader
		}
	}
}

// WithDefaultTTL sets the lifetime applied when a request omits one.
func WithDefaultTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.defaultTTL = ttl
		}
	}
}

// WithMaxTTL caps requested lifetimes.
func WithMaxTTL(ttl time.Duration) ServiceOption {
	return func(s *service) {
		if ttl > 0 {
			s.maxTTL = ttl
		}
	}
}

// WithIssueRetries bounds how many fresh tokens are drawn after a collision.
func WithIssueRetries(retries int) ServiceOption {
	return func(s *service) {
		if retries > 0 {
			s.retries = retries
		}
	}
}

func WithLogger(logger interfaces.Logger) ServiceOption {
	return func(s *service) {
		s.logger = logging.Ensure(logger)
	}
}

func WithAuthorizer(authorizer interfaces.Authorizer) ServiceOption {
	return func(s *service) {
		if authorizer != nil {
			s.authorizer = authorizer
		}
	}
}

func WithAuditRecorder(recorder interfaces.AuditRecorder) ServiceOption {
	return func(s *service) {
		s.audit = recorder
	}
}

type service struct {
	tokens     TokenRepository
	pages      PageReader
	now        func() time.Time
	id         func() uuid.UUID
	random     io.Reader
	logger     interfaces.Logger
	authorizer interfaces.Authorizer
	audit      interfaces.AuditRecorder
	defaultTTL time.Duration
	maxTTL     time.Duration
	retries    int
}

var _ Service = (*service)(nil)

// NewService constructs the preview token issuer.
func NewService(tokens TokenRepository, pages PageReader, opts ...ServiceOption) Service {
	s := &service{
		tokens:     tokens,
		pages:      pages,
		now:        time.Now,
		id:         uuid.New,
		random:     rand.Reader,
		logger:     logging.NoOp(),
		authorizer: interfaces.AllowAll(),
		defaultTTL: DefaultTTL,
		maxTTL:     DefaultMaxTTL,
		retries:    defaultIssueRetries,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.defaultTTL > s.maxTTL {
		s.defaultTTL = s.maxTTL
	}
	return s
}

// Issue grants time-limited read access to a page of the requesting tenant.
func (s *service) Issue(ctx context.Context, req IssueRequest) (*PreviewToken, error) {
	if req.TenantID == uuid.Nil {
		return nil, validationError(ErrTenantRequired, codeRequestInvalid, "tenant_id", "is required")
	}
	if req.PageID == uuid.Nil {
		return nil, validationError(ErrPageRequired, codeRequestInvalid, "page_id", "is required")
	}
	ttl := req.TTL
	if ttl == 0 {
		ttl = s.defaultTTL
	}
	if ttl < 0 || ttl > s.maxTTL {
		return nil, validationError(ErrTTLInvalid, codeTTLInvalid, "ttl", "must be positive and at most "+s.maxTTL.String())
	}

	page, err := s.pages.GetByID(ctx, req.PageID)
	if err != nil {
		if isPageNotFound(err) {
			return nil, pageNotFound(req.PageID)
		}
		return nil, storageError(err, "load page")
	}
	// pages of other tenants are reported as missing
	if page == nil || page.IsDeleted || page.TenantID != req.TenantID {
		return nil, pageNotFound(req.PageID)
	}
	resource := interfaces.AuthorizationResource{TenantID: page.TenantID, PageID: page.ID, Status: string(page.Status)}
	if !s.authorizer.Authorize(ctx, req.Issuer, permissions.PreviewsIssue, resource) {
		s.logger.Warn("previews.forbidden", "page_id", page.ID, "actor", req.Issuer)
		return nil, forbiddenError(permissions.PreviewsIssue, page.ID)
	}

	now := s.now()
	for attempt := 0; attempt < s.retries; attempt++ {
		value, err := s.generate()
		if err != nil {
			return nil, err
		}
		record := &PreviewToken{
			ID:        s.id(),
			PageID:    page.ID,
			TenantID:  page.TenantID,
			Token:     value,
			CreatedBy: req.Issuer,
			CreatedAt: now,
			ExpiresAt: now.Add(ttl),
		}
		created, err := s.tokens.Create(ctx, record)
		if err == nil {
			s.logger.Info("previews.issued", "page_id", page.ID, "tenant_id", page.TenantID, "expires_at", created.ExpiresAt)
			s.recordAudit(ctx, created, req.Issuer, "preview_issued")
			return created, nil
		}
		if !isDuplicateToken(err) {
			return nil, storageError(err, "store token")
		}
		s.logger.Debug("previews.token.collision", "page_id", page.ID, "attempt", attempt+1)
	}
	return nil, goerrors.Wrap(ErrTokenCollision, goerrors.CategoryConflict, ErrTokenCollision.Error()).
		WithTextCode(codeTokenCollision).
		WithMetadata(map[string]any{"attempts": s.retries})
}

// Redeem returns the page behind a live token whatever its publication status.
func (s *service) Redeem(ctx context.Context, token string) (*Preview, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, validationError(ErrTokenRequired, codeTokenRequired, "token", "is required")
	}
	if len(token) > MaxTokenLength {
		return nil, tokenNotFound()
	}
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		return nil, storageError(err, "load token")
	}
	if record == nil {
		return nil, tokenNotFound()
	}

	page, err := s.pages.GetByID(ctx, record.PageID)
	if err != nil {
		if isPageNotFound(err) {
			return nil, pageNotFound(record.PageID)
		}
		return nil, storageError(err, "load page")
	}
	if page == nil || page.IsDeleted || page.TenantID != record.TenantID {
		return nil, pageNotFound(record.PageID)
	}
	if !record.ValidAt(s.now()) {
		return nil, tokenExpired(record)
	}
	return &Preview{Token: record, Page: page}, nil
}

// Revoke deletes a token before its expiry.
func (s *service) Revoke(ctx context.Context, token string) error {
	token = strings.TrimSpace(token)
	if token == "" {
		return validationError(ErrTokenRequired, codeTokenRequired, "token", "is required")
	}
	record, err := s.tokens.GetByToken(ctx, token)
	if err != nil {
		return storageError(err, "load token")
	}
	if record == nil {
		return tokenNotFound()
	}
	if err := s.tokens.DeleteByToken(ctx, token); err != nil {
		if isTokenNotFound(err) {
			return tokenNotFound()
		}
		return storageError(err, "revoke token")
	}
	s.logger.Info("previews.revoked", "page_id", record.PageID, "tenant_id", record.TenantID)
	s.recordAudit(ctx, record, uuid.Nil, "preview_revoked")
	return nil
}

// PurgeExpired removes every token past its expiry.
func (s *service) PurgeExpired(ctx context.Context) (int, error) {
	removed, err := s.tokens.DeleteExpired(ctx, s.now())
	if err != nil {
		return 0, storageError(err, "purge tokens")
	}
	if removed > 0 {
		s.logger.Info("previews.purged", "count", removed)
	}
	return removed, nil
}

func (s *service) generate() (string, error) {
	buf := make([]byte, TokenBytes)
	if _, err := io.ReadFull(s.random, buf); err != nil {
		return "", goerrors.Wrap(ErrEntropyExhausted, goerrors.CategoryInternal, ErrEntropyExhausted.Error()).
			WithTextCode(codeEntropyFailure).
			WithMetadata(map[string]any{"cause": err.Error()})
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

func (s *service) recordAudit(ctx context.Context, token *PreviewToken, actor uuid.UUID, action string) {
	if s.audit == nil || token == nil {
		return
	}
	event := interfaces.AuditEvent{
		EntityType: "page",
		EntityID:   token.PageID.String(),
		TenantID:   token.TenantID,
		Actor:      actor,
		Action:     action,
		OccurredAt: s.now(),
		Metadata: map[string]any{
			"token_id":   token.ID.String(),
			"expires_at": token.ExpiresAt,
		},
	}
	if err := s.audit.Record(ctx, event); err != nil {
		s.logger.Warn("previews.audit.record_failed", "page_id", token.PageID, "action", action, "error", err)
	}
}
