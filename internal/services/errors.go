package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrExternalTool     = errors.New("external tool error")
	ErrValidation       = errors.New("validation error")
	ErrUnsupportedInput = errors.New("unsupported input")
	ErrNotFound         = errors.New("not found")
	ErrTransient        = errors.New("transient failure")
)

// Kind is a coarse error classification used for structured logging.
type Kind string

const (
	KindExternalTool     Kind = "external_tool"
	KindValidation       Kind = "validation"
	KindUnsupportedInput Kind = "unsupported_input"
	KindNotFound         Kind = "not_found"
	KindTransient        Kind = "transient"
	KindUnknown          Kind = "unknown"
)

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	detail := buildDetail(stage, operation, message)
	if marker == nil {
		marker = ErrTransient
	}
	if err != nil {
		return fmt.Errorf("%w: %s: %w", marker, detail, err)
	}
	return fmt.Errorf("%w: %s", marker, detail)
}

// ErrorDetails is the log-friendly breakdown of a wrapped error.
type ErrorDetails struct {
	Kind    Kind
	Message string
	Cause   error
}

// Details classifies err by marker and extracts the innermost cause.
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{Kind: KindUnknown}
	}
	details := ErrorDetails{Kind: KindOf(err), Message: strings.TrimSpace(err.Error())}
	cause := err
	for {
		next := unwrapLast(cause)
		if next == nil {
			break
		}
		cause = next
	}
	if cause != err && !isMarker(cause) {
		details.Cause = cause
	}
	return details
}

// KindOf maps err onto a Kind using the sentinel markers.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrExternalTool):
		return KindExternalTool
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrUnsupportedInput):
		return KindUnsupportedInput
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrTransient):
		return KindTransient
	default:
		return KindUnknown
	}
}

func unwrapLast(err error) error {
	switch e := err.(type) {
	case interface{ Unwrap() []error }:
		errs := e.Unwrap()
		if len(errs) == 0 {
			return nil
		}
		return errs[len(errs)-1]
	case interface{ Unwrap() error }:
		return e.Unwrap()
	default:
		return nil
	}
}

func isMarker(err error) bool {
	for _, marker := range []error{ErrExternalTool, ErrValidation, ErrUnsupportedInput, ErrNotFound, ErrTransient} {
		if err == marker {
			return true
		}
	}
	return false
}

func buildDetail(stage, operation, message string) string {
	parts := make([]string, 0, 3)
	if stage = strings.TrimSpace(stage); stage != "" {
		parts = append(parts, stage)
	}
	if operation = strings.TrimSpace(operation); operation != "" {
		parts = append(parts, operation)
	}
	if message = strings.TrimSpace(message); message != "" {
		parts = append(parts, message)
	}
	if len(parts) == 0 {
		return "service failure"
	}
	return strings.Join(parts, ": ")
}
