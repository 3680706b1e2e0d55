package pages

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/internal/domain"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/internal/permissions"
)

const (
	noteScheduledPublish   = "Scheduled publish"
	noteScheduledUnpublish = "Scheduled unpublish"
)

var transitionPermissions = map[domain.Transition]string{
	domain.TransitionSubmit:    permissions.PagesSubmit,
	domain.TransitionPublish:   permissions.PagesPublish,
	domain.TransitionUnpublish: permissions.PagesUnpublish,
	domain.TransitionArchive:   permissions.PagesArchive,
	domain.TransitionRestore:   permissions.PagesRestore,
}

var transitionNotes = map[domain.Transition]string{
	domain.TransitionPublish:   "published",
	domain.TransitionUnpublish: "unpublished",
	domain.TransitionArchive:   "archived",
	domain.TransitionRestore:   "restored",
}

func noteFor(transition domain.Transition) string {
	return transitionNotes[transition]
}

// Submit moves a draft into review.
func (s *service) Submit(ctx context.Context, req TransitionRequest) (*MutationResult, error) {
	return s.transition(ctx, req, domain.TransitionSubmit)
}

func (s *service) Publish(ctx context.Context, req TransitionRequest) (*MutationResult, error) {
	return s.transition(ctx, req, domain.TransitionPublish)
}

func (s *service) Unpublish(ctx context.Context, req TransitionRequest) (*MutationResult, error) {
	return s.transition(ctx, req, domain.TransitionUnpublish)
}

func (s *service) Archive(ctx context.Context, req TransitionRequest) (*MutationResult, error) {
	return s.transition(ctx, req, domain.TransitionArchive)
}

func (s *service) Restore(ctx context.Context, req TransitionRequest) (*MutationResult, error) {
	return s.transition(ctx, req, domain.TransitionRestore)
}

func (s *service) transition(ctx context.Context, req TransitionRequest, transition domain.Transition) (*MutationResult, error) {
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
	if err := s.authorize(ctx, req.Actor, transitionPermissions[transition], current.TenantID, current.ID, current.Status); err != nil {
		return nil, err
	}
	if !transition.Allows(current.Status) {
		return nil, transitionError(string(current.Status), string(transition.Target()))
	}

	next := clonePage(current)
	applyTransition(next, transition, s.now())

	note := req.ChangeNote
	if note == "" {
		note = noteFor(transition)
	}
	// submit only changes audit fields, so an unchanged snapshot records nothing.
	force := transition != domain.TransitionSubmit
	result, err := s.persist(ctx, current, next, ChildReplacement{}, req.Actor, note, force, string(transition))
	if err != nil {
		return nil, err
	}
	s.recordAudit(ctx, result.Page, req.Actor, string(transition), map[string]any{
		"from": string(current.Status),
		"to":   string(result.Page.Status),
	})
	return result, nil
}

// applyTransition moves page to the transition target and applies the timestamp side effects.
func applyTransition(page *Page, transition domain.Transition, now time.Time) {
	page.Status = transition.Target()
	switch transition {
	case domain.TransitionPublish:
		if page.PublishedAt == nil {
			published := now
			page.PublishedAt = &published
		}
		page.ScheduledPublishAt = nil
	case domain.TransitionUnpublish:
		unpublished := now
		page.UnpublishedAt = &unpublished
		page.ScheduledPublishAt = nil
		page.ScheduledUnpublishAt = nil
	}
}

// Schedule sets or clears the scheduled timestamps of a page.
func (s *service) Schedule(ctx context.Context, req SchedulePageRequest) (*MutationResult, error) {
	if err := requireIDs(req.TenantID, req.PageID); err != nil {
		return nil, err
	}
	if err := validateScheduleWindow(req.PublishAt, req.UnpublishAt); err != nil {
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
	if err := s.authorize(ctx, req.Actor, permissions.PagesSchedule, current.TenantID, current.ID, current.Status); err != nil {
		return nil, err
	}

	next := clonePage(current)
	next.ScheduledPublishAt = cloneTimePtr(req.PublishAt)
	next.ScheduledUnpublishAt = cloneTimePtr(req.UnpublishAt)
	result, err := s.persist(ctx, current, next, ChildReplacement{}, req.Actor, "", false, "schedule")
	if err != nil {
		return nil, err
	}
	metadata := map[string]any{}
	if req.PublishAt != nil {
		metadata["publish_at"] = req.PublishAt.UTC().Format(time.RFC3339)
	}
	if req.UnpublishAt != nil {
		metadata["unpublish_at"] = req.UnpublishAt.UTC().Format(time.RFC3339)
	}
	s.recordAudit(ctx, result.Page, req.Actor, "scheduled", metadata)
	return result, nil
}

func (s *service) ListDue(ctx context.Context, now time.Time) ([]*Page, error) {
	records, err := s.pages.ListDue(ctx, now)
	if err != nil {
		return nil, storageError(err, "list due", nil)
	}
	return records, nil
}

// ApplySchedule runs the scheduled transition of a page when it is still due once the page
// lock is held. Publishing wins when both timestamps have elapsed; the unpublish runs on the
// next sweep.
func (s *service) ApplySchedule(ctx context.Context, pageID uuid.UUID) (ScheduleOutcome, *MutationResult, error) {
	if pageID == uuid.Nil {
		return ScheduleSkipped, nil, validationError(ErrPageRequired, codePageInvalid, "page_id", "is required")
	}
	unlock, err := s.lockPage(ctx, pageID)
	if err != nil {
		return ScheduleSkipped, nil, err
	}
	defer unlock()

	current, err := s.pages.GetByID(ctx, pageID)
	if err != nil {
		return ScheduleSkipped, nil, storageError(err, "load", nil)
	}
	if current.IsDeleted {
		return ScheduleSkipped, nil, nil
	}

	now := s.now()
	var (
		transition domain.Transition
		outcome    ScheduleOutcome
		note       string
	)
	switch {
	case publishDue(current, now):
		transition, outcome, note = domain.TransitionPublish, SchedulePublished, noteScheduledPublish
	case unpublishDue(current, now):
		transition, outcome, note = domain.TransitionUnpublish, ScheduleUnpublished, noteScheduledUnpublish
	default:
		return ScheduleSkipped, nil, nil
	}

	next := clonePage(current)
	applyTransition(next, transition, now)
	result, err := s.persist(ctx, current, next, ChildReplacement{}, s.systemActor, note, true, string(outcome))
	if err != nil {
		return ScheduleSkipped, nil, err
	}
	logging.WithPageContext(s.logger, current.TenantID, current.ID, string(transition)).
		Info("pages.schedule.applied", "outcome", outcome, "slug", current.Slug)
	s.recordAudit(ctx, result.Page, s.systemActor, string(outcome), map[string]any{
		"from":      string(current.Status),
		"to":        string(result.Page.Status),
		"scheduled": true,
	})
	return outcome, result, nil
}
