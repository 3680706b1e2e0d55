package markdowncmd_test

import (
	"context"
	"errors"
	"testing"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
	markdowncmd "github.com/municipio/pagecms/internal/commands/markdown"
	"github.com/municipio/pagecms/internal/logging"
	"github.com/municipio/pagecms/pkg/interfaces"
)

var testTenant = uuid.MustParse("0b6f3c2a-8e4d-4a1b-9c7e-5f2d1a0b3c4d")

type importCall struct {
	directory string
	options   interfaces.ImportOptions
}

type stubMarkdownService struct {
	calls  []importCall
	result *interfaces.ImportResult
	err    error
}

func (s *stubMarkdownService) Load(context.Context, string, interfaces.LoadOptions) (*interfaces.Document, error) {
	return nil, nil
}

func (s *stubMarkdownService) LoadDirectory(context.Context, string, interfaces.LoadOptions) ([]*interfaces.Document, error) {
	return nil, nil
}

func (s *stubMarkdownService) Render(context.Context, []byte, interfaces.ParseOptions) ([]byte, error) {
	return nil, nil
}

func (s *stubMarkdownService) Import(context.Context, *interfaces.Document, interfaces.ImportOptions) (*interfaces.ImportResult, error) {
	return nil, nil
}

func (s *stubMarkdownService) ImportDirectory(_ context.Context, directory string, opts interfaces.ImportOptions) (*interfaces.ImportResult, error) {
	s.calls = append(s.calls, importCall{directory: directory, options: opts})
	return s.result, s.err
}

type recordingRegistry struct {
	handlers []any
}

func (r *recordingRegistry) RegisterCommand(handler any) error {
	r.handlers = append(r.handlers, handler)
	return nil
}

func TestImportDirectoryHandlerForwardsOptions(t *testing.T) {
	actor := uuid.MustParse("7e1d2c3b-4a5f-4e6d-8c7b-9a0f1e2d3c4b")
	service := &stubMarkdownService{result: &interfaces.ImportResult{CreatedPageIDs: []uuid.UUID{uuid.New()}}}
	handler := markdowncmd.NewImportDirectoryHandler(service, logging.NoOp(), markdowncmd.FeatureGates{})

	err := handler.Execute(context.Background(), markdowncmd.ImportDirectoryCommand{
		Directory: "content/pages",
		TenantID:  testTenant,
		Actor:     actor,
		Language:  "sv",
		DryRun:    true,
	})
	if err != nil {
		t.Fatalf("execute: %v", err)
	}
	if len(service.calls) != 1 {
		t.Fatalf("expected one import call got %d", len(service.calls))
	}
	call := service.calls[0]
	if call.directory != "content/pages" {
		t.Fatalf("unexpected directory %q", call.directory)
	}
	want := interfaces.ImportOptions{TenantID: testTenant, Actor: actor, Language: "sv", DryRun: true}
	if call.options != want {
		t.Fatalf("unexpected options %+v", call.options)
	}
	if handler.LastResult() == nil || len(handler.LastResult().CreatedPageIDs) != 1 {
		t.Fatalf("expected last result to be kept")
	}
}

func TestImportDirectoryCommandValidation(t *testing.T) {
	service := &stubMarkdownService{}
	handler := markdowncmd.NewImportDirectoryHandler(service, logging.NoOp(), markdowncmd.FeatureGates{})

	cases := []markdowncmd.ImportDirectoryCommand{
		{TenantID: testTenant},
		{Directory: "   ", TenantID: testTenant},
		{Directory: "content"},
	}
	for _, msg := range cases {
		err := handler.Execute(context.Background(), msg)
		if !goerrors.IsCategory(err, goerrors.CategoryValidation) {
			t.Fatalf("expected validation error for %+v got %v", msg, err)
		}
	}
	if len(service.calls) != 0 {
		t.Fatalf("invalid commands must not reach the service")
	}
}

func TestImportDirectoryHandlerRespectsGate(t *testing.T) {
	service := &stubMarkdownService{}
	handler := markdowncmd.NewImportDirectoryHandler(service, logging.NoOp(), markdowncmd.FeatureGates{
		MarkdownEnabled: func() bool { return false },
	})

	err := handler.Execute(context.Background(), markdowncmd.ImportDirectoryCommand{Directory: "content", TenantID: testTenant})
	if !errors.Is(err, markdowncmd.ErrMarkdownFeatureDisabled) {
		t.Fatalf("expected feature disabled got %v", err)
	}
	if len(service.calls) != 0 {
		t.Fatalf("disabled gate must not reach the service")
	}
}

func TestImportDirectoryHandlerSurfacesImportErrors(t *testing.T) {
	boom := errors.New("duplicate sources")
	service := &stubMarkdownService{
		result: &interfaces.ImportResult{Errors: []error{boom}},
		err:    boom,
	}
	handler := markdowncmd.NewImportDirectoryHandler(service, logging.NoOp(), markdowncmd.FeatureGates{})

	err := handler.Execute(context.Background(), markdowncmd.ImportDirectoryCommand{Directory: "content", TenantID: testTenant})
	if !errors.Is(err, boom) {
		t.Fatalf("expected import error got %v", err)
	}
	if handler.LastResult() == nil || len(handler.LastResult().Errors) != 1 {
		t.Fatalf("partial result should still be recorded")
	}
}

func TestRegisterMarkdownCommands(t *testing.T) {
	reg := &recordingRegistry{}
	set, err := markdowncmd.RegisterMarkdownCommands(reg, &stubMarkdownService{}, nil, markdowncmd.FeatureGates{})
	if err != nil {
		t.Fatalf("register: %v", err)
	}
	if len(reg.handlers) != 1 || reg.handlers[0] != any(set.Import) {
		t.Fatalf("expected import handler registered got %v", reg.handlers)
	}
	if path := set.Import.CLIOptions().Path; len(path) != 2 || path[1] != "import" {
		t.Fatalf("unexpected cli path %v", path)
	}

	if _, err := markdowncmd.RegisterMarkdownCommands(reg, nil, nil, markdowncmd.FeatureGates{}); err == nil {
		t.Fatalf("expected error for nil service")
	}
}
