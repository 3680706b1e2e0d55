package validation_test

import (
	"errors"
	"testing"

	"github.com/municipio/pagecms/internal/validation"
)

func validSnapshot() map[string]any {
	return map[string]any{
		"schema_version": float64(1),
		"fields": map[string]any{
			"title":    "Beach",
			"slug":     "beach",
			"template": "default",
			"status":   "draft",
		},
		"sections": []any{
			map[string]any{"id": "3f0c", "type": "text", "position": float64(0), "is_active": true},
		},
		"media": []any{},
	}
}

func TestValidateSnapshotAcceptsWellFormedDocument(t *testing.T) {
	if err := validation.ValidateSnapshot(validSnapshot()); err != nil {
		t.Fatalf("expected snapshot to validate, got %v", err)
	}
}

func TestValidateSnapshotRejectsUnknownSectionType(t *testing.T) {
	doc := validSnapshot()
	doc["sections"] = []any{
		map[string]any{"id": "3f0c", "type": "carousel", "position": float64(0), "is_active": true},
	}
	err := validation.ValidateSnapshot(doc)
	if !errors.Is(err, validation.ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
	issues := validation.Issues(err)
	if len(issues) == 0 {
		t.Fatalf("expected issues to be reported")
	}
}

func TestValidateSnapshotRejectsFutureSchemaVersion(t *testing.T) {
	doc := validSnapshot()
	doc["schema_version"] = float64(2)
	if err := validation.ValidateSnapshot(doc); err == nil {
		t.Fatalf("expected schema version mismatch to fail")
	}
}

func TestValidateSnapshotRejectsNil(t *testing.T) {
	if err := validation.ValidateSnapshot(nil); !errors.Is(err, validation.ErrSchemaValidation) {
		t.Fatalf("expected ErrSchemaValidation, got %v", err)
	}
}
