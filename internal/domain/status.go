package domain

import "strings"

// Transition names the explicit lifecycle operations that move a page between states.
type Transition string

const (
	TransitionSubmit    Transition = "submit"
	TransitionPublish   Transition = "publish"
	TransitionUnpublish Transition = "unpublish"
	TransitionArchive   Transition = "archive"
	TransitionRestore   Transition = "restore"
)

var transitionTargets = map[Transition]Status{
	TransitionSubmit:    StatusPending,
	TransitionPublish:   StatusPublished,
	TransitionUnpublish: StatusDraft,
	TransitionArchive:   StatusArchived,
	TransitionRestore:   StatusDraft,
}

var transitionSources = map[Transition][]Status{
	TransitionSubmit:    {StatusDraft},
	TransitionPublish:   {StatusDraft, StatusPending},
	TransitionUnpublish: {StatusPublished},
	TransitionArchive:   {StatusDraft, StatusPending, StatusPublished},
	TransitionRestore:   {StatusArchived},
}

// Target returns the status a transition lands on.
func (t Transition) Target() Status {
	return transitionTargets[t]
}

// Allows reports whether the transition may start from the supplied status.
func (t Transition) Allows(from Status) bool {
	for _, candidate := range transitionSources[t] {
		if candidate == from {
			return true
		}
	}
	return false
}

// CanTransition reports whether any defined edge moves a page from one status to another.
func CanTransition(from, to Status) bool {
	for transition, target := range transitionTargets {
		if target == to && transition.Allows(from) {
			return true
		}
	}
	return false
}

// ParseStatus normalises user supplied status strings. Unknown values return false.
func ParseStatus(input string) (Status, bool) {
	status := Status(strings.ToLower(strings.TrimSpace(input)))
	switch status {
	case StatusDraft, StatusPending, StatusPublished, StatusArchived:
		return status, true
	case "":
		return StatusDraft, true
	default:
		return status, false
	}
}

// IsPublic reports whether pages in the status are visible without a preview token.
func (s Status) IsPublic() bool {
	return s == StatusPublished
}

func (s Status) String() string {
	return string(s)
}
