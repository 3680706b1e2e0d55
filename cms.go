package pagecms

import (
	"context"

	"github.com/municipio/pagecms/internal/di"
	"github.com/municipio/pagecms/internal/jobs"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
	cmspreviews "github.com/municipio/pagecms/previews"
)

// PageService exports the page lifecycle contract, including the scheduler hooks.
type PageService = pages.Lifecycle

// PreviewService exports the preview token contract.
type PreviewService = cmspreviews.Service

// SweepResult exports the outcome of a schedule sweep.
type SweepResult = jobs.SweepResult

// Module represents the top level page engine façade.
type Module struct {
	container *di.Container
}

// New constructs a module using the provided configuration and optional DI overrides.
func New(cfg Config, opts ...di.Option) (*Module, error) {
	container, err := di.NewContainer(cfg, opts...)
	if err != nil {
		return nil, err
	}
	return &Module{container: container}, nil
}

// Container exposes the underlying DI container for advanced integrations.
func (m *Module) Container() *di.Container {
	return m.container
}

// Pages returns the configured page lifecycle service.
func (m *Module) Pages() PageService {
	return m.container.PageService()
}

// Previews returns the configured preview token issuer.
func (m *Module) Previews() PreviewService {
	return m.container.PreviewService()
}

// Markdown returns the markdown importer when configured.
func (m *Module) Markdown() interfaces.MarkdownService {
	return m.container.MarkdownService()
}

// Sweep applies every elapsed schedule once. It returns a zero result when scheduling is
// disabled.
func (m *Module) Sweep(ctx context.Context) (SweepResult, error) {
	worker := m.container.Worker()
	if worker == nil {
		return SweepResult{}, nil
	}
	return worker.Process(ctx)
}

// StartScheduler starts the built-in cron runner when one is configured.
func (m *Module) StartScheduler() bool {
	runner := m.container.CronRunner()
	if runner == nil {
		return false
	}
	runner.Start()
	return true
}

// Close stops the cron runner and releases command subscriptions.
func (m *Module) Close(ctx context.Context) error {
	defer m.container.Close()
	if runner := m.container.CronRunner(); runner != nil {
		return runner.Stop(ctx)
	}
	return nil
}
