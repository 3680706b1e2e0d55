package scheduler

import (
	"context"

	command "github.com/goliatone/go-command"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// NewNoOp returns a scheduler that accepts registrations and never runs them. It backs
// deployments with the scheduler disabled.
func NewNoOp() interfaces.CronScheduler {
	return noOpScheduler{}
}

type noOpScheduler struct{}

func (noOpScheduler) Register(command.HandlerConfig, any) error {
	return nil
}

func (noOpScheduler) Start() {}

func (noOpScheduler) Stop(context.Context) error {
	return nil
}
