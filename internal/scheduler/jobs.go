package scheduler

const (
	JobPagesSweep    = "pagecms.pages.sweep"
	JobPreviewsPurge = "pagecms.previews.purge"
)

const (
	DefaultSweepExpression = "@every 1m"
	DefaultPurgeExpression = "@hourly"
)
