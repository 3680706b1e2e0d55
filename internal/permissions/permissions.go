package permissions

import (
	"errors"
	"strings"
)

type Action string

const (
	ActionRead      Action = "read"
	ActionCreate    Action = "create"
	ActionUpdate    Action = "update"
	ActionDelete    Action = "delete"
	ActionPurge     Action = "purge"
	ActionSubmit    Action = "submit"
	ActionPublish   Action = "publish"
	ActionUnpublish Action = "unpublish"
	ActionArchive   Action = "archive"
	ActionRestore   Action = "restore"
	ActionSchedule  Action = "schedule"
	ActionDuplicate Action = "duplicate"
	ActionRollback  Action = "rollback"
	ActionIssue     Action = "issue"
	ActionRevoke    Action = "revoke"
)

const (
	ResourcePages    = "pages"
	ResourcePreviews = "previews"
)

const (
	PagesRead      = "pages:read"
	PagesCreate    = "pages:create"
	PagesUpdate    = "pages:update"
	PagesDelete    = "pages:delete"
	PagesPurge     = "pages:purge"
	PagesSubmit    = "pages:submit"
	PagesPublish   = "pages:publish"
	PagesUnpublish = "pages:unpublish"
	PagesArchive   = "pages:archive"
	PagesRestore   = "pages:restore"
	PagesSchedule  = "pages:schedule"
	PagesDuplicate = "pages:duplicate"
	PagesRollback  = "pages:rollback"

	PreviewsIssue  = "previews:issue"
	PreviewsRevoke = "previews:revoke"
)

var ErrPermissionDenied = errors.New("permissions: denied")

type Error struct {
	Permission string
}

func (e Error) Error() string {
	if strings.TrimSpace(e.Permission) == "" {
		return "permission denied"
	}
	return "permission denied: " + e.Permission
}

func (e Error) Unwrap() error {
	return ErrPermissionDenied
}

// PermissionSet captures the editorial permission tokens of a resource.
type PermissionSet struct {
	Read    string `json:"read,omitempty"`
	Create  string `json:"create,omitempty"`
	Update  string `json:"update,omitempty"`
	Delete  string `json:"delete,omitempty"`
	Publish string `json:"publish,omitempty"`
}

// EditorPermissions lists what an editor may do without publishing rights.
func EditorPermissions() []string {
	return []string{PagesRead, PagesCreate, PagesUpdate, PagesSubmit, PagesDuplicate, PagesSchedule, PreviewsIssue}
}

// PublisherPermissions extends the editor role with every lifecycle transition.
func PublisherPermissions() []string {
	return append(EditorPermissions(),
		PagesPublish, PagesUnpublish, PagesArchive, PagesRestore, PagesRollback, PagesDelete, PreviewsRevoke)
}

// ResourcePermissions creates a permission set for a resource.
func ResourcePermissions(resource string, includePublish bool) PermissionSet {
	normalized := normalizeToken(resource)
	perms := PermissionSet{
		Read:   Join(normalized, ActionRead),
		Create: Join(normalized, ActionCreate),
		Update: Join(normalized, ActionUpdate),
		Delete: Join(normalized, ActionDelete),
	}
	if includePublish {
		perms.Publish = Join(normalized, ActionPublish)
	}
	return perms
}

// Join builds a permission token from resource and action.
func Join(resource string, action Action) string {
	res := normalizeToken(resource)
	act := normalizeToken(string(action))
	if res == "" || act == "" {
		return ""
	}
	return res + ":" + act
}

// List returns the non-empty permissions in the set.
func (p PermissionSet) List() []string {
	out := make([]string, 0, 5)
	for _, perm := range []string{p.Read, p.Create, p.Update, p.Delete, p.Publish} {
		if perm != "" {
			out = append(out, perm)
		}
	}
	return out
}

type Checker interface {
	Allowed(permission string) bool
}

type CheckerFunc func(permission string) bool

func (fn CheckerFunc) Allowed(permission string) bool {
	return fn(permission)
}

// Set is a static permission list. "pages:*" grants every pages action and "*" grants all.
type Set map[string]struct{}

func NewSet(perms ...string) Set {
	set := Set{}
	for _, perm := range perms {
		normalized := normalizePermission(perm)
		if normalized == "" {
			continue
		}
		set[normalized] = struct{}{}
	}
	return set
}

func (s Set) Allowed(permission string) bool {
	if len(s) == 0 {
		return false
	}
	normalized := normalizePermission(permission)
	if normalized == "" {
		return false
	}
	if _, ok := s[normalized]; ok {
		return true
	}
	base, tenant := splitPermissionScope(normalized)
	resource, _ := splitPermission(base)
	if resource != "" {
		if _, ok := s[scopePermission(resource+":*", tenant)]; ok {
			return true
		}
	}
	if _, ok := s[scopePermission("*", tenant)]; ok {
		return true
	}
	return false
}

func splitPermission(permission string) (string, Action) {
	normalized := normalizePermission(permission)
	if normalized == "" {
		return "", ""
	}
	parts := strings.SplitN(normalized, ":", 2)
	resource := normalizeToken(parts[0])
	if len(parts) == 1 {
		return resource, ""
	}
	return resource, Action(normalizeToken(parts[1]))
}

func normalizePermission(permission string) string {
	trimmed := strings.TrimSpace(permission)
	if trimmed == "" {
		return ""
	}
	return strings.ToLower(trimmed)
}

func normalizeToken(value string) string {
	return strings.ToLower(strings.TrimSpace(value))
}
