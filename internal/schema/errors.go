package schema

import (
	"fmt"
	"strings"
)

// FieldError names one invalid front matter field.
type FieldError struct {
	Field  string
	Reason string
}

func (e FieldError) Error() string {
	return e.Field + ": " + e.Reason
}

// ValidationError collects every field violation of one document.
type ValidationError struct {
	Path   string
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Fields))
	for i, f := range e.Fields {
		parts[i] = f.Error()
	}
	return fmt.Sprintf("%s: invalid front matter: %s", e.Path, strings.Join(parts, "; "))
}

// Has reports whether field is among the violations.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}
