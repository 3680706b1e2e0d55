package logging

import (
	"context"
	"strings"

	"github.com/google/uuid"
	"github.com/municipio/pagecms/pkg/interfaces"
)

const (
	rootModule      = "pagecms"
	pagesModule     = "pagecms.pages"
	schedulerModule = "pagecms.scheduler"
	previewsModule  = "pagecms.previews"
	markdownModule  = "pagecms.markdown"
	storageModule   = "pagecms.storage"
)

const (
	fieldTenantID = "tenant_id"
	fieldPageID   = "page_id"
	fieldAction   = "action"
)

// ModuleLogger returns a module-scoped logger, defaulting to a no-op
// implementation when no provider is supplied. The module identifier is
// attached as a structured field.
func ModuleLogger(provider interfaces.LoggerProvider, module string) interfaces.Logger {
	if module == "" {
		module = rootModule
	}

	logger := NoOp()
	if provider != nil {
		if provided := provider.GetLogger(module); provided != nil {
			logger = provided
		}
	}

	return WithFields(logger, map[string]any{
		"module": module,
	})
}

// PagesLogger returns the logger namespace reserved for the page lifecycle.
func PagesLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, pagesModule)
}

// SchedulerLogger returns the logger namespace reserved for scheduled sweeps.
func SchedulerLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, schedulerModule)
}

// PreviewsLogger returns the logger namespace reserved for preview tokens.
func PreviewsLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, previewsModule)
}

// MarkdownLogger returns the logger namespace reserved for markdown imports.
func MarkdownLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, markdownModule)
}

// StorageLogger returns the logger namespace reserved for database bootstrapping.
func StorageLogger(provider interfaces.LoggerProvider) interfaces.Logger {
	return ModuleLogger(provider, storageModule)
}

// WithPageContext enriches the logger with tenant, page and action fields. Zero values are skipped.
func WithPageContext(logger interfaces.Logger, tenantID, pageID uuid.UUID, action string) interfaces.Logger {
	fields := map[string]any{}
	if tenantID != uuid.Nil {
		fields[fieldTenantID] = tenantID.String()
	}
	if pageID != uuid.Nil {
		fields[fieldPageID] = pageID.String()
	}
	if trimmed := strings.TrimSpace(action); trimmed != "" {
		fields[fieldAction] = trimmed
	}
	return WithFields(logger, fields)
}

// NoOp returns a logger that drops every log entry.
func NoOp() interfaces.Logger {
	return noopLogger{}
}

type noopLogger struct{}

var _ interfaces.Logger = noopLogger{}

func (noopLogger) Trace(string, ...any) {}
func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}
func (noopLogger) Fatal(string, ...any) {}

func (n noopLogger) WithFields(map[string]any) interfaces.Logger {
	return n
}

func (n noopLogger) WithContext(context.Context) interfaces.Logger {
	return n
}
