package previewscmd

import (
	"errors"

	"github.com/municipio/pagecms/internal/commands"
	"github.com/municipio/pagecms/pkg/interfaces"
)

// CommandRegistry is the minimal registration contract expected when wiring command handlers.
type CommandRegistry interface {
	RegisterCommand(handler any) error
}

// RegisterPreviewCommands builds the purge handler and registers it with reg when supplied.
func RegisterPreviewCommands(reg CommandRegistry, purger Purger, provider interfaces.LoggerProvider, opts ...PurgeHandlerOption) (*PurgeExpiredPreviewsHandler, error) {
	if purger == nil {
		return nil, errors.New("preview command registration: purger is nil")
	}
	handler := NewPurgeExpiredPreviewsHandler(purger, commands.CommandLogger(provider, "previews"), opts...)
	if reg != nil {
		if err := reg.RegisterCommand(handler); err != nil {
			return nil, err
		}
	}
	return handler, nil
}
