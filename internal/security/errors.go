package security

import (
	"errors"
	"log/slog"

	"github.com/prism-search/prism/internal/perr"
)

// externalMessage is the generic, category-only text every perr.Kind is
// sanitized to before it crosses the trust boundary (spec.md §7: "external
// error text is a generic category plus a stable code; internal details ...
// go only to the log sink").
var externalMessage = map[perr.Kind]string{
	perr.KindConfiguration: "configuration error",
	perr.KindNotFound:      "not found",
	perr.KindAuthz:         "not authorized",
	perr.KindInput:         "invalid request",
	perr.KindConflict:      "conflict",
	perr.KindIO:            "storage error",
	perr.KindBackend:       "backend error",
	perr.KindUpstream:      "upstream error",
	perr.KindPartial:       "partial result",
}

// SanitizedError is what a caller outside the trust boundary receives:
// a category and a stable machine-readable code, nothing else.
type SanitizedError struct {
	Category string
	Code     string
}

func (e SanitizedError) Error() string { return e.Category }

// Sanitize strips err down to a SanitizedError, logging the full original
// error (including any wrapped cause) to log first. Authorization errors
// in particular MUST NOT leak whether the underlying resource exists, so
// their category is identical regardless of the underlying reason.
func Sanitize(log *slog.Logger, err error) SanitizedError {
	if err == nil {
		return SanitizedError{}
	}
	if log != nil {
		log.Error("request failed", "error", err, "code", perr.KindOf(err))
	}

	var pe *perr.Error
	if errors.As(err, &pe) {
		category, ok := externalMessage[pe.Kind]
		if !ok {
			category = "internal error"
		}
		return SanitizedError{Category: category, Code: pe.Code}
	}
	return SanitizedError{Category: "internal error", Code: "internal.unknown"}
}
