package domain

import internaldomain "github.com/municipio/pagecms/internal/domain"

// Status represents lifecycle states for pages.
type Status = internaldomain.Status

// Transition names an explicit lifecycle operation.
type Transition = internaldomain.Transition

const (
	// StatusDraft indicates a page still under preparation.
	StatusDraft = internaldomain.StatusDraft
	// StatusPending marks a page awaiting editorial review.
	StatusPending = internaldomain.StatusPending
	// StatusPublished identifies a page visible to the public.
	StatusPublished = internaldomain.StatusPublished
	// StatusArchived marks a page that is retained for history but not publicly visible.
	StatusArchived = internaldomain.StatusArchived
)

const (
	TransitionSubmit    = internaldomain.TransitionSubmit
	TransitionPublish   = internaldomain.TransitionPublish
	TransitionUnpublish = internaldomain.TransitionUnpublish
	TransitionArchive   = internaldomain.TransitionArchive
	TransitionRestore   = internaldomain.TransitionRestore
)
