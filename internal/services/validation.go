package services

import (
	"sort"
	"strings"
)

// FieldError describes one rejected configuration field.
type FieldError struct {
	Field   string
	Message string
}

// ValidationError aggregates field-level failures. When Incompatible is set
// the error also matches ErrIncompatible, which callers surface as an
// IncompatibleCapability failure.
type ValidationError struct {
	Subject      string
	Fields       []FieldError
	Incompatible bool
}

// Add records a field failure.
func (v *ValidationError) Add(field, message string) {
	v.Fields = append(v.Fields, FieldError{Field: field, Message: message})
}

// AddIncompatible records a field failure caused by an unsupported capability.
func (v *ValidationError) AddIncompatible(field, message string) {
	v.Incompatible = true
	v.Add(field, message)
}

// Empty reports whether no failures were recorded.
func (v *ValidationError) Empty() bool {
	return v == nil || len(v.Fields) == 0
}

// Err returns v as an error, or nil when nothing was recorded.
func (v *ValidationError) Err() error {
	if v.Empty() {
		return nil
	}
	sort.SliceStable(v.Fields, func(i, j int) bool { return v.Fields[i].Field < v.Fields[j].Field })
	return v
}

func (v *ValidationError) Error() string {
	msgs := make([]string, 0, len(v.Fields))
	for _, f := range v.Fields {
		msgs = append(msgs, f.Field+": "+f.Message)
	}
	prefix := "validation failed"
	if v.Incompatible {
		prefix = "incompatible capability"
	}
	if v.Subject != "" {
		prefix += " for " + v.Subject
	}
	return prefix + ": " + strings.Join(msgs, "; ")
}

func (v *ValidationError) Unwrap() []error {
	if v.Incompatible {
		return []error{ErrValidation, ErrIncompatible}
	}
	return []error{ErrValidation}
}

// FieldMessages returns the failures keyed by field name.
func (v *ValidationError) FieldMessages() map[string]string {
	out := make(map[string]string, len(v.Fields))
	for _, f := range v.Fields {
		out[f.Field] = f.Message
	}
	return out
}
