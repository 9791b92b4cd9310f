package model

import (
	"errors"
	"fmt"
	"strings"
)

// Common errors.
var (
	ErrUnknownField    = errors.New("unknown field")
	ErrInvalidField    = errors.New("invalid field definition")
	ErrInvalidSchema   = errors.New("invalid schema definition")
	ErrUnknownSchema   = errors.New("unknown schema")
	ErrRegistryFrozen  = errors.New("registry is resolved and read-only")
	ErrNotResolved     = errors.New("registry has not been resolved")
	ErrBusy            = errors.New("document has an operation in flight")
	ErrDeleted         = errors.New("document has been deleted")
	ErrNoKey           = errors.New("document has no primary key")
	ErrNotTopLevel     = errors.New("embedded documents cannot be referenced")
	ErrIncompatibleCls = errors.New("stored type is not compatible with the expected schema")
)

// ValidationError holds a list of field-level validation errors.
type ValidationError struct {
	Errors []FieldError
}

// FieldError represents a single validation failure on a field path such as
// "author.name" or "comments[1].content".
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// Error formats the validation error as a semicolon-separated list of field messages.
func (e *ValidationError) Error() string {
	parts := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		parts[i] = fe.Field + ": " + fe.Message
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// HasErrors reports whether the validation error contains any field errors.
func (e *ValidationError) HasErrors() bool {
	return len(e.Errors) > 0
}

// Has reports whether any error was recorded for the given field path.
func (e *ValidationError) Has(path string) bool {
	for _, fe := range e.Errors {
		if fe.Field == path {
			return true
		}
	}
	return false
}

func (e *ValidationError) add(path, format string, args ...any) {
	e.Errors = append(e.Errors, FieldError{Field: path, Message: fmt.Sprintf(format, args...)})
}

// AsValidationError extracts a *ValidationError from err.
func AsValidationError(err error) (*ValidationError, bool) {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve, true
	}
	return nil, false
}

// CoercionError reports a value that cannot be converted to its field's wire
// representation. Validation reports the same condition as a FieldError, so a
// CoercionError only escapes when encoding is attempted on an unvalidated value.
type CoercionError struct {
	Field  string
	Kind   Kind
	Value  any
	Reason string
}

func (e *CoercionError) Error() string {
	return fmt.Sprintf("cannot coerce %T to %s for field %q: %s", e.Value, e.Kind, e.Field, e.Reason)
}

func joinPath(prefix, name string) string {
	if prefix == "" {
		return name
	}
	if name == "" {
		return prefix
	}
	return prefix + "." + name
}

func indexPath(prefix string, i int) string {
	return fmt.Sprintf("%s[%d]", prefix, i)
}
