package interfaces

import (
	"context"

	command "github.com/goliatone/go-command"
)

// CronScheduler runs handlers on cron expressions. Register follows the go-command cron
// registrar signature so command handlers can be bound directly.
type CronScheduler interface {
	Register(cfg command.HandlerConfig, handler any) error
	Start()
	// Stop halts scheduling and waits for running jobs until ctx is done.
	Stop(ctx context.Context) error
}
