package pagescmd

import (
	"errors"

	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/internal/pages"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// HandlerSet groups the page command handlers produced by RegisterPageCommands.
type HandlerSet struct {
	Publish  *PublishPageHandler
	Schedule *SchedulePageHandler
	Rollback *RollbackPageHandler
	Sweep    *SweepSchedulesHandler
}

// Option customises handler wiring during registration.
type Option func(*options)

type options struct {
	sweepOpts []SweepHandlerOption
}

// WithSweepOptions forwards options to the sweep handler constructor.
func WithSweepOptions(opts ...SweepHandlerOption) Option {
	return func(cfg *options) {
		cfg.sweepOpts = append(cfg.sweepOpts, opts...)
	}
}

// RegisterPageCommands builds the page command handlers and registers them with reg when
// supplied.
func RegisterPageCommands(reg CommandRegistry, service pages.Service, sweeper Sweeper, provider interfaces.LoggerProvider, gates FeatureGates, opts ...Option) (*HandlerSet, error) {
	if service == nil {
		return nil, errors.New("page command registration: service is nil")
	}
	if sweeper == nil {
		return nil, errors.New("page command registration: sweeper is nil")
	}
	cfg := options{}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	logger := commands.CommandLogger(provider, "pages")
	set := &HandlerSet{
		Publish:  NewPublishPageHandler(service, logger),
		Schedule: NewSchedulePageHandler(service, logger, gates),
		Rollback: NewRollbackPageHandler(service, logger, gates),
		Sweep:    NewSweepSchedulesHandler(sweeper, logger, gates, cfg.sweepOpts...),
	}
	if reg != nil {
		for _, handler := range []any{set.Publish, set.Schedule, set.Rollback, set.Sweep} {
			if err := reg.RegisterCommand(handler); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}
