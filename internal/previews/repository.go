package previews

import (
	"context"
	"fmt"
	"sync"
	"time"

	goerrors "github.com/goliatone/go-errors"
	repository "github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// TokenRepository persists preview tokens.
type TokenRepository interface {
	Create(ctx context.Context, token *PreviewToken) (*PreviewToken, error)
	// GetByToken returns nil without error when the token is unknown.
	GetByToken(ctx context.Context, token string) (*PreviewToken, error)
	DeleteByToken(ctx context.Context, token string) error
	// DeleteExpired removes tokens whose expiry is at or before now and reports how many were removed.
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

func NewPreviewTokenRepository(db *bun.DB) repository.Repository[*PreviewToken] {
	return repository.MustNewRepository(db, repository.ModelHandlers[*PreviewToken]{
		NewRecord: func() *PreviewToken { return &PreviewToken{} },
		GetID: func(t *PreviewToken) uuid.UUID {
			return t.ID
		},
		SetID: func(t *PreviewToken, id uuid.UUID) {
			t.ID = id
		},
		GetIdentifier: func() string {
			return "token"
		},
		GetIdentifierValue: func(t *PreviewToken) string {
			return t.Token
		},
	})
}

type BunTokenRepository struct {
	db   *bun.DB
	repo repository.Repository[*PreviewToken]
}

func NewBunTokenRepository(db *bun.DB) *BunTokenRepository {
	return &BunTokenRepository{db: db, repo: NewPreviewTokenRepository(db)}
}

func (r *BunTokenRepository) Create(ctx context.Context, token *PreviewToken) (*PreviewToken, error) {
	return r.repo.Create(ctx, token)
}

func (r *BunTokenRepository) GetByToken(ctx context.Context, token string) (*PreviewToken, error) {
	record, err := r.repo.GetByIdentifier(ctx, token)
	if err != nil {
		if goerrors.IsCategory(err, repository.CategoryDatabaseNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("preview token repository error: %w", err)
	}
	return record, nil
}

func (r *BunTokenRepository) DeleteByToken(ctx context.Context, token string) error {
	if r.db == nil {
		return fmt.Errorf("preview token repository: database not configured")
	}
	result, err := r.db.NewDelete().Model((*PreviewToken)(nil)).Where("?TableAlias.token = ?", token).Exec(ctx)
	if err != nil {
		return fmt.Errorf("delete preview token: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("preview token delete rows affected: %w", err)
	}
	if affected == 0 {
		return ErrTokenNotFound
	}
	return nil
}

func (r *BunTokenRepository) DeleteExpired(ctx context.Context, now time.Time) (int, error) {
	if r.db == nil {
		return 0, fmt.Errorf("preview token repository: database not configured")
	}
	result, err := r.db.NewDelete().Model((*PreviewToken)(nil)).Where("?TableAlias.expires_at <= ?", now).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("delete expired preview tokens: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("preview token delete rows affected: %w", err)
	}
	return int(affected), nil
}

// MemoryTokenRepository keeps tokens in a map keyed by token value.
type MemoryTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*PreviewToken
}

func NewMemoryTokenRepository() *MemoryTokenRepository {
	return &MemoryTokenRepository{tokens: make(map[string]*PreviewToken)}
}

func (m *MemoryTokenRepository) Create(_ context.Context, token *PreviewToken) (*PreviewToken, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.tokens[token.Token]; exists {
		return nil, errDuplicateToken
	}
	copied := *token
	m.tokens[token.Token] = &copied
	out := copied
	return &out, nil
}

func (m *MemoryTokenRepository) GetByToken(_ context.Context, token string) (*PreviewToken, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	record, ok := m.tokens[token]
	if !ok {
		return nil, nil
	}
	out := *record
	return &out, nil
}

func (m *MemoryTokenRepository) DeleteByToken(_ context.Context, token string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[token]; !ok {
		return ErrTokenNotFound
	}
	delete(m.tokens, token)
	return nil
}

func (m *MemoryTokenRepository) DeleteExpired(_ context.Context, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	removed := 0
	for key, record := range m.tokens {
		if !record.ValidAt(now) {
			delete(m.tokens, key)
			removed++
		}
	}
	return removed, nil
}
