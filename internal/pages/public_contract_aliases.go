package pages

import cmspages "github.com/municipio/pagecms/pages"

type (
	Service              = cmspages.Service
	Page                 = cmspages.Page
	PageMeta             = cmspages.PageMeta
	PageSection          = cmspages.PageSection
	PageMedia            = cmspages.PageMedia
	PageVersion          = cmspages.PageVersion
	PageSlugHistory      = cmspages.PageSlugHistory
	Snapshot             = cmspages.Snapshot
	SnapshotFields       = cmspages.SnapshotFields
	MetaSnapshot         = cmspages.MetaSnapshot
	SectionSnapshot      = cmspages.SectionSnapshot
	MediaSnapshot        = cmspages.MediaSnapshot
	MutationResult       = cmspages.MutationResult
	Resolution           = cmspages.Resolution
	PageMetaInput        = cmspages.PageMetaInput
	PageSectionInput     = cmspages.PageSectionInput
	PageMediaInput       = cmspages.PageMediaInput
	CreatePageRequest    = cmspages.CreatePageRequest
	UpdatePageRequest    = cmspages.UpdatePageRequest
	DeletePageRequest    = cmspages.DeletePageRequest
	GetPageRequest       = cmspages.GetPageRequest
	ListPagesRequest     = cmspages.ListPagesRequest
	TransitionRequest    = cmspages.TransitionRequest
	SchedulePageRequest  = cmspages.SchedulePageRequest
	DuplicatePageRequest = cmspages.DuplicatePageRequest
	ListVersionsRequest  = cmspages.ListVersionsRequest
	GetVersionRequest    = cmspages.GetVersionRequest
	RollbackPageRequest  = cmspages.RollbackPageRequest
	ResolvePageRequest   = cmspages.ResolvePageRequest
	PageNotFoundError    = cmspages.PageNotFoundError

	PageVersionNotFoundError = cmspages.PageVersionNotFoundError
)

var (
	ErrTenantRequired          = cmspages.ErrTenantRequired
	ErrPageRequired            = cmspages.ErrPageRequired
	ErrPageInvalid             = cmspages.ErrPageInvalid
	ErrTitleRequired           = cmspages.ErrTitleRequired
	ErrSlugRequired            = cmspages.ErrSlugRequired
	ErrSlugInvalid             = cmspages.ErrSlugInvalid
	ErrSlugReserved            = cmspages.ErrSlugReserved
	ErrSlugExists              = cmspages.ErrSlugExists
	ErrSlugConflict            = cmspages.ErrSlugConflict
	ErrRevisionConflict        = cmspages.ErrRevisionConflict
	ErrLanguageRequired        = cmspages.ErrLanguageRequired
	ErrTemplateInvalid         = cmspages.ErrTemplateInvalid
	ErrStatusInvalid           = cmspages.ErrStatusInvalid
	ErrTransitionInvalid       = cmspages.ErrTransitionInvalid
	ErrCanonicalURLInvalid     = cmspages.ErrCanonicalURLInvalid
	ErrCanonicalURLInsecure    = cmspages.ErrCanonicalURLInsecure
	ErrSectionTypeInvalid      = cmspages.ErrSectionTypeInvalid
	ErrMediaSourceRequired     = cmspages.ErrMediaSourceRequired
	ErrMultipleFeaturedMedia   = cmspages.ErrMultipleFeaturedMedia
	ErrScheduleWindowInvalid   = cmspages.ErrScheduleWindowInvalid
	ErrPageNotFound            = cmspages.ErrPageNotFound
	ErrVersionNotFound         = cmspages.ErrVersionNotFound
	ErrVersionRequired         = cmspages.ErrVersionRequired
	ErrVersioningDisabled      = cmspages.ErrVersioningDisabled
	ErrSnapshotInvalid         = cmspages.ErrSnapshotInvalid
	ErrDuplicateSlugExhausted  = cmspages.ErrDuplicateSlugExhausted
	ErrForbidden               = cmspages.ErrForbidden
	ErrStorage                 = cmspages.ErrStorage
	ErrRedirectChainTooLong    = cmspages.ErrRedirectChainTooLong
	ErrTranslationTargetAbsent = cmspages.ErrTranslationTargetAbsent
)

var (
	IsValidation = cmspages.IsValidation
	IsNotFound   = cmspages.IsNotFound
	IsConflict   = cmspages.IsConflict
	IsExpired    = cmspages.IsExpired
	IsForbidden  = cmspages.IsForbidden
)
