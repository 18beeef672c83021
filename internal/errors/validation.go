package errors

import (
	"sort"
	"strings"

	"github.com/cockroachdb/errors"
)

// FieldError is one violated form field.
type FieldError struct {
	Field   string `json:"field"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// FieldErrors collects every violated field of a form.
type FieldErrors struct {
	Errors []FieldError `json:"errors"`
}

func (f *FieldErrors) Error() string {
	if f == nil || len(f.Errors) == 0 {
		return "validation error"
	}
	parts := make([]string, 0, len(f.Errors))
	for _, e := range f.Errors {
		parts = append(parts, e.Field+": "+e.Message)
	}
	return "validation error: " + strings.Join(parts, "; ")
}

// Add records a violation, keeping the first message per field.
func (f *FieldErrors) Add(field, code, message string) {
	for _, existing := range f.Errors {
		if existing.Field == field {
			return
		}
	}
	f.Errors = append(f.Errors, FieldError{Field: field, Code: code, Message: message})
}

func (f *FieldErrors) Empty() bool {
	return f == nil || len(f.Errors) == 0
}

// Fields returns the violated field names in sorted order.
func (f *FieldErrors) Fields() []string {
	if f == nil {
		return nil
	}
	out := make([]string, 0, len(f.Errors))
	for _, e := range f.Errors {
		out = append(out, e.Field)
	}
	sort.Strings(out)
	return out
}

// Err returns nil when no field failed, otherwise a marked validation error.
func (f *FieldErrors) Err() error {
	if f.Empty() {
		return nil
	}
	return WithError(f).
		WithHint("Please correct the highlighted fields").
		Mark(ErrValidation)
}

// NewFieldError builds a validation error for a single field.
func NewFieldError(field, code, message string) error {
	fe := &FieldErrors{}
	fe.Add(field, code, message)
	return fe.Err()
}

// FieldErrorsFrom extracts the field violations from err.
func FieldErrorsFrom(err error) *FieldErrors {
	var fe *FieldErrors
	if errors.As(err, &fe) {
		return fe
	}
	return nil
}
