package services_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"arkimedes/internal/services"
)

func TestWrapIncludesContext(t *testing.T) {
	base := errors.New("boom")
	err := services.Wrap(services.ErrExternalTool, "sources", "pdftotext", "failed", base)
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrExternalTool) {
		t.Fatalf("expected marker to be retained, got %v", err)
	}
	if !errors.Is(err, base) {
		t.Fatalf("expected wrapped error to contain base error, got %v", err)
	}
	msg := err.Error()
	for _, fragment := range []string{"sources", "pdftotext", "failed"} {
		if !strings.Contains(msg, fragment) {
			t.Fatalf("expected %q in error string %q", fragment, msg)
		}
	}
}

type kindError string

func (e kindError) Error() string     { return string(e) }
func (e kindError) ErrorKind() string { return string(e) }

func TestExitCodeMapping(t *testing.T) {
	if code := services.ExitCode(nil); code != services.ExitOK {
		t.Fatalf("expected ok for nil error, got %d", code)
	}
	validationErr := services.Wrap(services.ErrValidation, "batch", "prepare", "invalid", nil)
	if code := services.ExitCode(validationErr); code != services.ExitUsage {
		t.Fatalf("expected usage for validation error, got %d", code)
	}
	schemaErr := fmt.Errorf("load: %w", kindError("schema"))
	if code := services.ExitCode(schemaErr); code != services.ExitUsage {
		t.Fatalf("expected usage for schema error, got %d", code)
	}
	transientErr := services.Wrap(services.ErrTransient, "ezid", "mint", "failed", errors.New("io"))
	if code := services.ExitCode(transientErr); code != services.ExitFailure {
		t.Fatalf("expected failure for transient error, got %d", code)
	}
}
