package services

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrIncompatible    = errors.New("incompatible capability")
	ErrNotFound        = errors.New("not found")
	ErrProvider        = errors.New("provider error")
	ErrMediaProcessing = errors.New("media processing error")
	ErrStorage         = errors.New("storage error")
	ErrConfiguration   = errors.New("configuration error")
	ErrConflict        = errors.New("conflict")
	ErrTransient       = errors.New("transient failure")
)

// Error is the structured failure produced by Wrap. Marker is one of the
// sentinel errors above; Cause is the underlying error, if any.
type Error struct {
	Marker    error
	Stage     string
	Operation string
	Message   string
	Cause     error
}

func (e *Error) Error() string {
	detail := buildDetail(e.Stage, e.Operation, e.Message)
	if e.Cause != nil {
		return fmt.Sprintf("%v: %s: %v", e.Marker, detail, e.Cause)
	}
	return fmt.Sprintf("%v: %s", e.Marker, detail)
}

// Unwrap exposes both the marker and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	out := []error{e.Marker}
	if e.Cause != nil {
		out = append(out, e.Cause)
	}
	return out
}

// Wrap builds an error message that includes stage context while tagging it with
// the provided marker for later classification. The marker should be one
// of the exported sentinel errors above.
func Wrap(marker error, stage, operation, message string, err error) error {
	if marker == nil {
		marker = ErrTransient
	}
	return &Error{
		Marker:    marker,
		Stage:     strings.TrimSpace(stage),
		Operation: strings.TrimSpace(operation),
		Message:   strings.TrimSpace(message),
		Cause:     err,
	}
}

// ErrorDetails is the flattened view of a wrapped error used for logging.
type ErrorDetails struct {
	Kind      string
	Stage     string
	Operation string
	Message   string
	Cause     string
}

// Details extracts structured fields from err. Errors that did not pass
// through Wrap are reported with Kind "unknown".
func Details(err error) ErrorDetails {
	if err == nil {
		return ErrorDetails{}
	}
	var wrapped *Error
	if errors.As(err, &wrapped) {
		d := ErrorDetails{
			Kind:      Kind(err),
			Stage:     wrapped.Stage,
			Operation: wrapped.Operation,
			Message:   wrapped.Message,
		}
		if wrapped.Cause != nil {
			d.Cause = wrapped.Cause.Error()
		}
		return d
	}
	return ErrorDetails{Kind: Kind(err), Message: err.Error()}
}

// Kind names the taxonomy class of err.
func Kind(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrIncompatible):
		return "incompatible_capability"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrProvider):
		return "provider"
	case errors.Is(err, ErrMediaProcessing):
		return "media_processing"
	case errors.Is(err, ErrStorage):
		return "storage"
	case errors.Is(err, ErrConfiguration):
		return "configuration"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrTransient):
		return "transient"
	default:
		return "unknown"
	}
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
