package domain

// Status represents lifecycle states for pages
type Status string

const (
	// StatusDraft indicates a page still under preparation
	StatusDraft Status = "draft"
	// StatusPending marks a page submitted for editorial review
	StatusPending Status = "pending"
	// StatusPublished identifies a page visible to the public
	StatusPublished Status = "published"
	// StatusArchived marks a page retained for history but not publicly visible
	StatusArchived Status = "archived"
)
