package pages

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
)

// MemoryPageRepository is an in-memory page store for tests and single-process setups. It
// enforces the live slug index the same way the database does.
type MemoryPageRepository struct {
	mu    sync.RWMutex
	pages map[uuid.UUID]*Page
	order []uuid.UUID
}

func NewMemoryPageRepository() *MemoryPageRepository {
	return &MemoryPageRepository{pages: make(map[uuid.UUID]*Page)}
}

func (m *MemoryPageRepository) Create(_ context.Context, record *Page) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.pages[record.ID]; exists {
		return nil, uniqueViolation("pages.id")
	}
	if m.liveSlugTakenLocked(record) {
		return nil, uniqueViolation("pages_live_slug_uidx")
	}
	copied := clonePage(record)
	m.pages[copied.ID] = copied
	m.order = append(m.order, copied.ID)
	return clonePage(copied), nil
}

func (m *MemoryPageRepository) GetByID(_ context.Context, id uuid.UUID) (*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	page, ok := m.pages[id]
	if !ok {
		return nil, &PageNotFoundError{Key: id.String()}
	}
	return clonePage(page), nil
}

func (m *MemoryPageRepository) ListBySlug(_ context.Context, tenantID uuid.UUID, language, slug string) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Page{}
	for _, id := range m.order {
		page := m.pages[id]
		if page == nil || page.IsDeleted || page.TenantID != tenantID || page.Slug != slug {
			continue
		}
		if language != "" && !strings.EqualFold(page.Language, language) {
			continue
		}
		out = append(out, clonePageRow(page))
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Language < out[j].Language })
	return out, nil
}

func (m *MemoryPageRepository) List(_ context.Context, filter PageFilter) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Page, 0, len(m.pages))
	for _, id := range m.order {
		page := m.pages[id]
		if page == nil {
			continue
		}
		if filter.TenantID != uuid.Nil && page.TenantID != filter.TenantID {
			continue
		}
		if !filter.IncludeDeleted && page.IsDeleted {
			continue
		}
		if filter.Language != "" && !strings.EqualFold(page.Language, filter.Language) {
			continue
		}
		if filter.Status != "" && page.Status != filter.Status {
			continue
		}
		out = append(out, clonePageRow(page))
	}
	return out, nil
}

func (m *MemoryPageRepository) ListDue(_ context.Context, now time.Time) ([]*Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*Page{}
	for _, id := range m.order {
		page := m.pages[id]
		if page == nil || page.IsDeleted {
			continue
		}
		if publishDue(page, now) || unpublishDue(page, now) {
			out = append(out, clonePageRow(page))
		}
	}
	return out, nil
}

func (m *MemoryPageRepository) Update(_ context.Context, record *Page, expectedRevision int, children ChildReplacement) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	current, ok := m.pages[record.ID]
	if !ok {
		return nil, &PageNotFoundError{Key: record.ID.String()}
	}
	if current.Revision != expectedRevision {
		return nil, revisionConflict(record.ID, expectedRevision, current.Revision)
	}
	if !record.IsDeleted && m.liveSlugTakenLocked(record) {
		return nil, uniqueViolation("pages_live_slug_uidx")
	}

	updated := clonePageRow(record)
	updated.Meta = current.Meta
	updated.Sections = current.Sections
	updated.Media = current.Media
	if children.Meta {
		updated.Meta = cloneMeta(record.Meta)
	}
	if children.Sections {
		updated.Sections = cloneSections(record.Sections)
	}
	if children.Media {
		updated.Media = cloneMedia(record.Media)
	}
	m.pages[record.ID] = updated
	return clonePage(updated), nil
}

func (m *MemoryPageRepository) Purge(_ context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.pages[id]; !ok {
		return &PageNotFoundError{Key: id.String()}
	}
	delete(m.pages, id)
	for i, candidate := range m.order {
		if candidate == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

func (m *MemoryPageRepository) liveSlugTakenLocked(record *Page) bool {
	if record.IsDeleted {
		return false
	}
	for id, page := range m.pages {
		if id == record.ID || page.IsDeleted {
			continue
		}
		if page.TenantID == record.TenantID && page.Slug == record.Slug && strings.EqualFold(page.Language, record.Language) {
			return true
		}
	}
	return false
}

// MemoryVersionRepository keeps versions per page in number order.
type MemoryVersionRepository struct {
	mu       sync.RWMutex
	versions map[uuid.UUID][]*PageVersion
}

func NewMemoryVersionRepository() *MemoryVersionRepository {
	return &MemoryVersionRepository{versions: make(map[uuid.UUID][]*PageVersion)}
}

func (m *MemoryVersionRepository) Create(_ context.Context, version *PageVersion) (*PageVersion, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.versions[version.PageID] {
		if existing.Number == version.Number {
			return nil, uniqueViolation("page_versions_number_uidx")
		}
	}
	copied := cloneVersion(version)
	list := append(m.versions[version.PageID], copied)
	sort.SliceStable(list, func(i, j int) bool { return list[i].Number < list[j].Number })
	m.versions[version.PageID] = list
	return cloneVersion(copied), nil
}

func (m *MemoryVersionRepository) Latest(_ context.Context, pageID uuid.UUID) (*PageVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[pageID]
	if len(list) == 0 {
		return nil, &PageVersionNotFoundError{PageID: pageID}
	}
	return cloneVersion(list[len(list)-1]), nil
}

func (m *MemoryVersionRepository) Get(_ context.Context, pageID uuid.UUID, number int) (*PageVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, version := range m.versions[pageID] {
		if version.Number == number {
			return cloneVersion(version), nil
		}
	}
	return nil, &PageVersionNotFoundError{PageID: pageID, Version: number}
}

func (m *MemoryVersionRepository) List(_ context.Context, pageID uuid.UUID) ([]*PageVersion, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	list := m.versions[pageID]
	out := make([]*PageVersion, 0, len(list))
	for _, version := range list {
		out = append(out, cloneVersion(version))
	}
	return out, nil
}

func (m *MemoryVersionRepository) Prune(_ context.Context, pageID uuid.UUID, keep int) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if keep < 0 {
		keep = 0
	}
	list := m.versions[pageID]
	excess := len(list) - keep
	if excess <= 0 {
		return 0, nil
	}
	remaining := append([]*PageVersion(nil), list[excess:]...)
	if len(remaining) == 0 {
		delete(m.versions, pageID)
	} else {
		m.versions[pageID] = remaining
	}
	return excess, nil
}

// MemorySlugHistoryRepository is an append-mostly list of slug renames.
type MemorySlugHistoryRepository struct {
	mu      sync.RWMutex
	entries []*PageSlugHistory
}

func NewMemorySlugHistoryRepository() *MemorySlugHistoryRepository {
	return &MemorySlugHistoryRepository{}
}

func (m *MemorySlugHistoryRepository) Create(_ context.Context, entry *PageSlugHistory) (*PageSlugHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.entries {
		if existing.PageID == entry.PageID && existing.OldSlug == entry.OldSlug {
			return nil, uniqueViolation("page_slug_history_page_uidx")
		}
	}
	copied := *entry
	m.entries = append(m.entries, &copied)
	out := copied
	return &out, nil
}

func (m *MemorySlugHistoryRepository) Find(_ context.Context, pageID uuid.UUID, oldSlug string) (*PageSlugHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, existing := range m.entries {
		if existing.PageID == pageID && existing.OldSlug == oldSlug {
			out := *existing
			return &out, nil
		}
	}
	return nil, nil
}

func (m *MemorySlugHistoryRepository) LatestByOldSlug(_ context.Context, tenantID uuid.UUID, language, slug string) (*PageSlugHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var latest *PageSlugHistory
	for _, existing := range m.entries {
		if existing.TenantID != tenantID || existing.OldSlug != slug {
			continue
		}
		if language != "" && !strings.EqualFold(existing.Language, language) {
			continue
		}
		if latest == nil || !existing.ChangedAt.Before(latest.ChangedAt) {
			latest = existing
		}
	}
	if latest == nil {
		return nil, nil
	}
	out := *latest
	return &out, nil
}

func (m *MemorySlugHistoryRepository) ListByPage(_ context.Context, pageID uuid.UUID) ([]*PageSlugHistory, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []*PageSlugHistory{}
	for _, existing := range m.entries {
		if existing.PageID == pageID {
			copied := *existing
			out = append(out, &copied)
		}
	}
	return out, nil
}

// DeleteByPage drops every entry of a purged page.
func (m *MemorySlugHistoryRepository) DeleteByPage(_ context.Context, pageID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	kept := m.entries[:0]
	for _, existing := range m.entries {
		if existing.PageID != pageID {
			kept = append(kept, existing)
		}
	}
	m.entries = kept
	return nil
}

func publishDue(page *Page, now time.Time) bool {
	if page.ScheduledPublishAt == nil || page.ScheduledPublishAt.After(now) {
		return false
	}
	return page.Status == domain.StatusDraft || page.Status == domain.StatusPending
}

func unpublishDue(page *Page, now time.Time) bool {
	if page.ScheduledUnpublishAt == nil || page.ScheduledUnpublishAt.After(now) {
		return false
	}
	return page.Status == domain.StatusPublished
}

func clonePage(src *Page) *Page {
	if src == nil {
		return nil
	}
	out := clonePageRow(src)
	out.Meta = cloneMeta(src.Meta)
	out.Sections = cloneSections(src.Sections)
	out.Media = cloneMedia(src.Media)
	return out
}

func clonePageRow(src *Page) *Page {
	if src == nil {
		return nil
	}
	out := *src
	out.PublishedAt = cloneTimePtr(src.PublishedAt)
	out.UnpublishedAt = cloneTimePtr(src.UnpublishedAt)
	out.ScheduledPublishAt = cloneTimePtr(src.ScheduledPublishAt)
	out.ScheduledUnpublishAt = cloneTimePtr(src.ScheduledUnpublishAt)
	out.DeletedAt = cloneTimePtr(src.DeletedAt)
	if src.TranslationOf != nil {
		id := *src.TranslationOf
		out.TranslationOf = &id
	}
	out.Meta = nil
	out.Sections = nil
	out.Media = nil
	return &out
}

func cloneMeta(src *PageMeta) *PageMeta {
	if src == nil {
		return nil
	}
	out := *src
	return &out
}

func cloneSections(src []*PageSection) []*PageSection {
	if src == nil {
		return nil
	}
	out := make([]*PageSection, 0, len(src))
	for _, section := range src {
		if section == nil {
			continue
		}
		copied := *section
		out = append(out, &copied)
	}
	return out
}

func cloneMedia(src []*PageMedia) []*PageMedia {
	if src == nil {
		return nil
	}
	out := make([]*PageMedia, 0, len(src))
	for _, item := range src {
		if item == nil {
			continue
		}
		copied := *item
		out = append(out, &copied)
	}
	return out
}

func cloneVersion(src *PageVersion) *PageVersion {
	if src == nil {
		return nil
	}
	out := *src
	out.Snapshot = src.Snapshot.Clone()
	return &out
}

func cloneTimePtr(value *time.Time) *time.Time {
	if value == nil {
		return nil
	}
	copied := *value
	return &copied
}
