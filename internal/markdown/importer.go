package markdown

import (
	"context"
	"errors"
	"fmt"
	"path"
	"slices"
	"strings"

	"github.com/goliatone/go-slug"
	"github.com/google/uuid"

	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/identity"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/sanitize"
	"github.com/municipio/pagecms/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

var (
	ErrPagesRequired    = errors.New("markdown importer: page service is required")
	ErrTenantRequired   = errors.New("markdown importer: tenant is required")
	ErrSlugMissing      = errors.New("markdown importer: slug could not be determined")
	ErrLanguageMissing  = errors.New("markdown importer: language could not be determined")
	ErrDuplicateSources = errors.New("markdown importer: several documents target the same slug")
)

// PageWriter is the subset of the page lifecycle the importer drives.
type PageWriter interface {
	List(ctx context.Context, req pages.ListPagesRequest) ([]*pages.Page, error)
	Get(ctx context.Context, req pages.GetPageRequest) (*pages.Page, error)
	Create(ctx context.Context, req pages.CreatePageRequest) (*pages.MutationResult, error)
	Update(ctx context.Context, req pages.UpdatePageRequest) (*pages.MutationResult, error)
	Publish(ctx context.Context, req pages.TransitionRequest) (*pages.MutationResult, error)
}

// ImporterConfig encapsulates dependencies required to persist markdown documents.
type ImporterConfig struct {
	Pages     PageWriter
	Sanitizer interfaces.Sanitizer
	Logger    interfaces.Logger
}

// Importer creates or updates pages from rendered markdown documents. Documents are matched to
// pages by tenant, language and slug.
type Importer struct {
	pages     PageWriter
	sanitizer interfaces.Sanitizer
	logger    interfaces.Logger
}

// NewImporter builds an Importer from the supplied configuration.
func NewImporter(cfg ImporterConfig) *Importer {
	sanitizer := cfg.Sanitizer
	if sanitizer == nil {
		sanitizer = sanitize.New()
	}
	return &Importer{
		pages:     cfg.Pages,
		sanitizer: sanitizer,
		logger:    logging.Ensure(cfg.Logger),
	}
}

// ImportDocument imports a single markdown document.
func (i *Importer) ImportDocument(ctx context.Context, doc *interfaces.Document, opts interfaces.ImportOptions) (*interfaces.ImportResult, error) {
	return i.ImportDocuments(ctx, []*interfaces.Document{doc}, opts)
}

// ImportDocuments imports every document. A failing document is reported in the result and the
// run continues with the next one; the first failure is also returned.
func (i *Importer) ImportDocuments(ctx context.Context, docs []*interfaces.Document, opts interfaces.ImportOptions) (*interfaces.ImportResult, error) {
	if i.pages == nil {
		return nil, ErrPagesRequired
	}
	if opts.TenantID == uuid.Nil {
		return nil, ErrTenantRequired
	}
	if opts.Actor == uuid.Nil {
		opts.Actor = identity.SystemActorUUID("markdown-importer")
	}

	acc := newImportAccumulator()
	existing := map[string][]*pages.Page{}
	seen := map[string]string{}

	for _, doc := range sortDocuments(docs) {
		if err := ctx.Err(); err != nil {
			acc.addError(err)
			break
		}
		target, err := i.resolveTarget(doc, opts)
		if err != nil {
			acc.addError(err)
			continue
		}
		key := target.language + "/" + target.slug
		if previous, ok := seen[key]; ok {
			acc.addError(fmt.Errorf("%w: %s and %s", ErrDuplicateSources, previous, doc.FilePath))
			continue
		}
		seen[key] = doc.FilePath

		candidates, ok := existing[target.language]
		if !ok {
			candidates, err = i.pages.List(ctx, pages.ListPagesRequest{TenantID: opts.TenantID, Language: target.language})
			if err != nil {
				acc.addError(fmt.Errorf("markdown importer: list pages: %w", err))
				continue
			}
			existing[target.language] = candidates
		}

		if err := i.apply(ctx, target, findBySlug(candidates, target.slug), opts, acc); err != nil {
			i.logger.Warn("markdown.import.document_failed", "path", doc.FilePath, "slug", target.slug, "error", err)
			acc.addError(err)
		}
	}

	result := acc.result()
	logging.WithFields(i.logger, map[string]any{
		"tenant_id": opts.TenantID,
		"created":   len(result.CreatedPageIDs),
		"updated":   len(result.UpdatedPageIDs),
		"skipped":   len(result.SkippedPageIDs),
		"failed":    len(result.Errors),
		"dry_run":   opts.DryRun,
	}).Info("markdown.import.completed")
	return result, firstError(result.Errors)
}

type importTarget struct {
	doc      *interfaces.Document
	slug     string
	language string
	title    string
	body     string
	template string
	status   domain.Status
	meta     *pages.PageMetaInput
}

func (i *Importer) resolveTarget(doc *interfaces.Document, opts interfaces.ImportOptions) (*importTarget, error) {
	if doc == nil {
		return nil, errors.New("markdown importer: nil document")
	}
	slugValue, err := documentSlug(doc)
	if err != nil {
		return nil, err
	}
	language := strings.ToLower(strings.TrimSpace(doc.Language))
	if language == "" {
		language = strings.ToLower(strings.TrimSpace(opts.Language))
	}
	if language == "" {
		return nil, fmt.Errorf("%w: %s", ErrLanguageMissing, doc.FilePath)
	}

	status := domain.StatusDraft
	if raw := doc.FrontMatter.Status; raw != "" {
		parsed, ok := domain.ParseStatus(raw)
		if !ok {
			return nil, fmt.Errorf("markdown importer: %s: unsupported status %q", doc.FilePath, raw)
		}
		status = parsed
	}

	title := strings.TrimSpace(doc.FrontMatter.Title)
	if title == "" {
		title = fallbackTitle(slugValue)
	}

	return &importTarget{
		doc:      doc,
		slug:     slugValue,
		language: language,
		title:    i.sanitizer.SanitizePlainText(title),
		body:     i.sanitizer.SanitizeHTML(string(doc.BodyHTML)),
		template: strings.ToLower(doc.FrontMatter.Template),
		status:   status,
		meta:     i.metaInput(doc.FrontMatter.Meta),
	}, nil
}

func (i *Importer) apply(ctx context.Context, target *importTarget, current *pages.Page, opts interfaces.ImportOptions, acc *importAccumulator) error {
	note := "imported from " + target.doc.FilePath

	if current == nil {
		if opts.DryRun {
			return nil
		}
		result, err := i.pages.Create(ctx, pages.CreatePageRequest{
			TenantID:   opts.TenantID,
			Actor:      opts.Actor,
			Title:      target.title,
			Slug:       target.slug,
			Language:   target.language,
			Body:       target.body,
			Template:   target.template,
			Status:     string(target.status),
			Meta:       target.meta,
			ChangeNote: note,
		})
		if err != nil {
			return fmt.Errorf("markdown importer: create page %s: %w", target.slug, err)
		}
		acc.created(result.Page.ID)
		return nil
	}

	loaded, err := i.pages.Get(ctx, pages.GetPageRequest{TenantID: opts.TenantID, PageID: current.ID})
	if err != nil {
		return fmt.Errorf("markdown importer: load page %s: %w", target.slug, err)
	}

	changed := contentChanged(loaded, target)
	publish := target.status == domain.StatusPublished && loaded.Status != domain.StatusPublished
	if (!changed && !publish) || opts.DryRun {
		acc.skip(loaded.ID)
		return nil
	}

	if changed {
		req := pages.UpdatePageRequest{
			TenantID:         opts.TenantID,
			PageID:           loaded.ID,
			Actor:            opts.Actor,
			ExpectedRevision: loaded.Revision,
			Title:            &target.title,
			Body:             &target.body,
			Meta:             target.meta,
			ChangeNote:       note,
		}
		if target.template != "" {
			req.Template = &target.template
		}
		if _, err := i.pages.Update(ctx, req); err != nil {
			return fmt.Errorf("markdown importer: update page %s: %w", target.slug, err)
		}
	}
	if publish {
		if _, err := i.pages.Publish(ctx, pages.TransitionRequest{
			TenantID:   opts.TenantID,
			PageID:     loaded.ID,
			Actor:      opts.Actor,
			ChangeNote: note,
		}); err != nil {
			return fmt.Errorf("markdown importer: publish page %s: %w", target.slug, err)
		}
	}
	acc.updated(loaded.ID)
	return nil
}

func contentChanged(page *pages.Page, target *importTarget) bool {
	if page.Title != target.title || page.Body != target.body {
		return true
	}
	if target.template != "" && page.Template != target.template {
		return true
	}
	if target.meta == nil {
		return false
	}
	if page.Meta == nil {
		return true
	}
	robots := target.meta.RobotsDirective
	if robots == "" {
		robots = pages.DefaultRobotsDirective
	}
	return page.Meta.MetaTitle != target.meta.MetaTitle ||
		page.Meta.MetaDescription != target.meta.MetaDescription ||
		page.Meta.CanonicalURL != target.meta.CanonicalURL ||
		page.Meta.OGTitle != target.meta.OGTitle ||
		page.Meta.OGDescription != target.meta.OGDescription ||
		page.Meta.OGImage != target.meta.OGImage ||
		page.Meta.RobotsDirective != robots
}

func documentSlug(doc *interfaces.Document) (string, error) {
	candidate := doc.FrontMatter.Slug
	if candidate == "" {
		base := path.Base(doc.FilePath)
		candidate = strings.TrimSuffix(base, path.Ext(base))
	}
	normalized, err := slug.Normalize(candidate)
	if err != nil || normalized == "" {
		return "", fmt.Errorf("%w: %s", ErrSlugMissing, doc.FilePath)
	}
	return normalized, nil
}

func (i *Importer) metaInput(meta interfaces.FrontMatterMeta) *pages.PageMetaInput {
	if meta.IsZero() {
		return nil
	}
	return &pages.PageMetaInput{
		MetaTitle:       i.sanitizer.SanitizePlainText(meta.Title),
		MetaDescription: i.sanitizer.SanitizePlainText(meta.Description),
		CanonicalURL:    strings.TrimSpace(meta.CanonicalURL),
		OGTitle:         i.sanitizer.SanitizePlainText(meta.OGTitle),
		OGDescription:   i.sanitizer.SanitizePlainText(meta.OGDescription),
		OGImage:         strings.TrimSpace(meta.OGImage),
		RobotsDirective: strings.TrimSpace(meta.Robots),
	}
}

func findBySlug(candidates []*pages.Page, slugValue string) *pages.Page {
	for _, page := range candidates {
		if page != nil && !page.IsDeleted && page.Slug == slugValue {
			return page
		}
	}
	return nil
}

func sortDocuments(docs []*interfaces.Document) []*interfaces.Document {
	sorted := slices.Clone(docs)
	slices.SortStableFunc(sorted, func(a, b *interfaces.Document) int {
		if a == nil || b == nil {
			return 0
		}
		if c := strings.Compare(a.Language, b.Language); c != 0 {
			return c
		}
		return strings.Compare(a.FilePath, b.FilePath)
	})
	return sorted
}

func fallbackTitle(slugValue string) string {
	words := strings.Fields(strings.NewReplacer("-", " ", "_", " ").Replace(slugValue))
	for idx, word := range words {
		words[idx] = strings.ToUpper(word[:1]) + word[1:]
	}
	if len(words) == 0 {
		return "Untitled"
	}
	return strings.Join(words, " ")
}

type importAccumulator struct {
	createdIDs []uuid.UUID
	updatedIDs []uuid.UUID
	skippedIDs []uuid.UUID
	errors     []error
}

func newImportAccumulator() *importAccumulator {
	return &importAccumulator{
		createdIDs: []uuid.UUID{},
		updatedIDs: []uuid.UUID{},
		skippedIDs: []uuid.UUID{},
		errors:     []error{},
	}
}

func (a *importAccumulator) created(id uuid.UUID) {
	if id != uuid.Nil {
		a.createdIDs = append(a.createdIDs, id)
	}
}

func (a *importAccumulator) updated(id uuid.UUID) {
	if id != uuid.Nil {
		a.updatedIDs = append(a.updatedIDs, id)
	}
}

func (a *importAccumulator) skip(id uuid.UUID) {
	if id != uuid.Nil {
		a.skippedIDs = append(a.skippedIDs, id)
	}
}

func (a *importAccumulator) addError(err error) {
	if err != nil {
		a.errors = append(a.errors, err)
	}
}

func (a *importAccumulator) result() *interfaces.ImportResult {
	return &interfaces.ImportResult{
		CreatedPageIDs: a.createdIDs,
		UpdatedPageIDs: a.updatedIDs,
		SkippedPageIDs: a.skippedIDs,
		Errors:         a.errors,
	}
}

func firstError(errs []error) error {
	if len(errs) == 0 {
		return nil
	}
	return errs[0]
}
