// Package apperror defines the error taxonomy shared by every layer.
//
// Each failure class is a sentinel error. An *AppError wraps exactly one
// sentinel (Err) plus a human-readable message, so callers branch with
// errors.Is and handlers map the sentinel to an HTTP status in one place.
//
// The classes a submission can end in:
//
//	ErrValidation       per-field, user-correctable, never has side effects
//	ErrBlocked          the account is blocked from posting
//	ErrRateLimited      the account posted less than a minute ago
//	ErrContentRejected  blacklisted content (the account gets blocked)
//	ErrStore            the document store failed, not the user's fault
//
// ErrBlocked and ErrRateLimited together form the "rate limit or block"
// class: the user either has to wait or cannot post at all.
package apperror

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrValidation      = errors.New("Validation Error")
	ErrBlocked         = errors.New("blocked")
	ErrRateLimited     = errors.New("rate limited")
	ErrContentRejected = errors.New("content rejected")
	ErrStore           = errors.New("store failure")
	ErrMetadataFetch   = errors.New("metadata fetch failed")
)

type AppError struct {
	Err     error             // sentinel class
	Message string            // Human-readable error message
	Field   string            // Optional: field causing the error
	Fields  map[string]string // Optional: every failing field → message
	Cause   error             // Optional: underlying error (store, network)
}

func (e *AppError) Error() string {
	return e.Message
}

// Unwrap exposes both the sentinel and the cause, so errors.Is matches
// either of them.
func (e *AppError) Unwrap() []error {
	if e.Cause == nil {
		return []error{e.Err}
	}
	return []error{e.Err, e.Cause}
}

func NotFound(resource, id string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: fmt.Sprintf("%s not found with id %s", resource, id),
	}
}

func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// FieldsInvalid merges several independent field errors into one validation
// error. Message lists them in field order so logs are stable.
func FieldsInvalid(fields map[string]string) *AppError {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)

	parts := make([]string, 0, len(names))
	for _, name := range names {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fields[name]))
	}

	e := &AppError{
		Err:     ErrValidation,
		Message: strings.Join(parts, "; "),
		Fields:  fields,
	}
	if len(names) == 1 {
		e.Field = names[0]
		e.Message = fields[names[0]]
	}
	return e
}

func Blocked(message string) *AppError {
	return &AppError{Err: ErrBlocked, Message: message}
}

func RateLimited(message string) *AppError {
	return &AppError{Err: ErrRateLimited, Message: message}
}

// ContentRejected is reported against a field so the form can show it inline.
func ContentRejected(field, message string) *AppError {
	return &AppError{
		Err:     ErrContentRejected,
		Message: message,
		Field:   field,
		Fields:  map[string]string{field: message},
	}
}

// Store wraps a persistence failure. The message is safe to show to users;
// the cause is kept for logs.
func Store(message string, cause error) *AppError {
	return &AppError{Err: ErrStore, Message: message, Cause: cause}
}

func MetadataFetch(url string, cause error) *AppError {
	return &AppError{
		Err:     ErrMetadataFetch,
		Message: fmt.Sprintf("fetching metadata for %s failed", url),
		Cause:   cause,
	}
}

// FieldErrors returns the field → message map carried by err, or nil.
func FieldErrors(err error) map[string]string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Fields
	}
	return nil
}
