package security

import (
	"errors"
	"log/slog"
	"testing"

	"github.com/prism-search/prism/internal/perr"
)

func TestSanitizeKnownKind(t *testing.T) {
	err := perr.Authz("authz.denied", "principal writer lacks action admin on collection secrets")
	got := Sanitize(slog.Default(), err)
	if got.Category != "not authorized" {
		t.Fatalf("expected generic authz category, got %q", got.Category)
	}
	if got.Code != "authz.denied" {
		t.Fatalf("expected code to survive sanitization, got %q", got.Code)
	}
}

func TestSanitizeHidesInternalDetail(t *testing.T) {
	err := perr.IO("storage.read_failed", errors.New("open /var/secret/shard-07.db: permission denied"))
	got := Sanitize(slog.Default(), err)
	if got.Category != "storage error" {
		t.Fatalf("expected generic storage category, got %q", got.Category)
	}
	if got.Category == err.Error() {
		t.Fatal("sanitized category must not equal the raw error text")
	}
}

func TestSanitizeUnknownErrorType(t *testing.T) {
	got := Sanitize(slog.Default(), errors.New("boom"))
	if got.Category != "internal error" || got.Code != "internal.unknown" {
		t.Fatalf("expected internal error/internal.unknown fallback, got %+v", got)
	}
}

func TestSanitizeNilError(t *testing.T) {
	got := Sanitize(slog.Default(), nil)
	if got != (SanitizedError{}) {
		t.Fatalf("expected zero value for nil error, got %+v", got)
	}
}
