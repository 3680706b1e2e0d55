package markdowncmd

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/google/uuid"
)

const importDirectoryMessageType = "pagecms.markdown.import_directory"

// ImportDirectoryCommand imports every Markdown source under Directory as pages of TenantID.
type ImportDirectoryCommand struct {
	// Directory selects the filesystem path (relative or absolute) to load Markdown files from.
	Directory string    `json:"directory"`
	TenantID  uuid.UUID `json:"tenant_id"`
	// Actor is recorded as creator/updater. The importer system actor is used when empty.
	Actor uuid.UUID `json:"actor,omitempty"`
	// Language applies to sources whose path and front matter declare none.
	Language string `json:"language,omitempty"`
	// DryRun reports what would change without persisting anything.
	DryRun bool `json:"dry_run,omitempty"`
}

// Type implements command.Message.
func (ImportDirectoryCommand) Type() string { return importDirectoryMessageType }

// Validate ensures directory and tenant input are present before handlers execute.
func (cmd ImportDirectoryCommand) Validate() error {
	return validation.ValidateStruct(&cmd,
		validation.Field(&cmd.Directory, validation.Required, validation.By(func(value any) error {
			if strings.TrimSpace(value.(string)) == "" {
				return validation.NewError("pagecms.markdown.import_directory.directory_required", "directory is required")
			}
			return nil
		})),
		validation.Field(&cmd.TenantID, validation.Required, validation.By(func(value any) error {
			if value.(uuid.UUID) == uuid.Nil {
				return validation.NewError("pagecms.markdown.import_directory.tenant_required", "tenant is required")
			}
			return nil
		})),
		validation.Field(&cmd.Language, validation.Length(0, 8)),
	)
}
