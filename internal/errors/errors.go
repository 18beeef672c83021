// Package errors defines the console error taxonomy. Every error surfaced to a
// page is marked with one of the sentinels below and carries a hint holding the
// user-facing message.
package errors

import (
	"net/http"
	"strings"

	"github.com/cockroachdb/errors"
)

const (
	ErrCodeFetch      = "fetch_error"
	ErrCodeValidation = "validation_error"
	ErrCodeConflict   = "conflict"
	ErrCodeNotFound   = "not_found"
	ErrCodeInternal   = "internal_error"
)

var (
	// ErrFetch marks network failures, non-2xx responses and malformed
	// payloads on reads.
	ErrFetch = errors.New(ErrCodeFetch)
	// ErrValidation marks client-side form check failures.
	ErrValidation = errors.New(ErrCodeValidation)
	// ErrConflict marks writes rejected by the backend.
	ErrConflict = errors.New(ErrCodeConflict)
	// ErrNotFound marks records that vanished or never existed.
	ErrNotFound = errors.New(ErrCodeNotFound)
	ErrInternal = errors.New(ErrCodeInternal)

	statusCodeMap = []struct {
		err    error
		status int
		code   string
	}{
		{ErrValidation, http.StatusBadRequest, ErrCodeValidation},
		{ErrNotFound, http.StatusNotFound, ErrCodeNotFound},
		{ErrConflict, http.StatusConflict, ErrCodeConflict},
		{ErrFetch, http.StatusBadGateway, ErrCodeFetch},
		{ErrInternal, http.StatusInternalServerError, ErrCodeInternal},
	}
)

const defaultDisplay = "An unexpected error occurred"

func IsFetch(err error) bool      { return errors.Is(err, ErrFetch) }
func IsValidation(err error) bool { return errors.Is(err, ErrValidation) }
func IsConflict(err error) bool   { return errors.Is(err, ErrConflict) }
func IsNotFound(err error) bool   { return errors.Is(err, ErrNotFound) }

// HTTPStatusFromErr maps a marked error to a response status.
func HTTPStatusFromErr(err error) int {
	for _, entry := range statusCodeMap {
		if errors.Is(err, entry.err) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// Code returns the machine-readable code of a marked error.
func Code(err error) string {
	for _, entry := range statusCodeMap {
		if errors.Is(err, entry.err) {
			return entry.code
		}
	}
	return ErrCodeInternal
}

// DisplayMessage returns the first non-empty hint attached to err.
func DisplayMessage(err error) string {
	if err == nil {
		return ""
	}
	for _, hint := range errors.GetAllHints(err) {
		if hint = strings.TrimSpace(hint); hint != "" {
			return hint
		}
	}
	return defaultDisplay
}

func As(err error, target any) bool {
	return errors.As(err, target)
}
