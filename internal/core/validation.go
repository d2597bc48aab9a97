package core

import (
	"sort"
	"strings"
)

// ValidationError collects every problem found in one input, keyed by field.
type ValidationError struct {
	Fields map[string][]string `json:"fields"`
}

// NewValidationError returns an empty, field-keyed validation error.
func NewValidationError() *ValidationError {
	return &ValidationError{Fields: make(map[string][]string)}
}

// Add records msg against field.
func (e *ValidationError) Add(field, msg string) {
	if e.Fields == nil {
		e.Fields = make(map[string][]string)
	}
	e.Fields[field] = append(e.Fields[field], msg)
}

// Empty reports whether no field has a message.
func (e *ValidationError) Empty() bool {
	return len(e.Fields) == 0
}

// Err returns e, or nil when nothing was recorded.
func (e *ValidationError) Err() error {
	if e == nil || e.Empty() {
		return nil
	}
	return e
}

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], ", "))
	}
	return "validation failed: " + strings.Join(parts, "; ")
}
