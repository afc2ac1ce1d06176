package domain

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

var (
	// ErrNotFound is returned when an operation targets a missing record.
	ErrNotFound = errors.New("not found")

	// ErrNotLinked is returned when a chat identity has no linked account.
	ErrNotLinked = errors.New("chat identity is not linked to an account")

	// ErrLinkInvalid is returned for unknown or already redeemed link credentials.
	ErrLinkInvalid = errors.New("invalid or expired link code")

	// ErrLinkExpired is returned for link credentials past their expiry.
	ErrLinkExpired = errors.New("link code expired")

	// ErrForbidden is returned when a caller touches a record it does not own.
	ErrForbidden = errors.New("record belongs to another account")

	// ErrUnauthenticated is returned when no valid caller identity was presented.
	ErrUnauthenticated = errors.New("unauthenticated")

	// ErrInsufficientInfo is returned when the model gave nothing usable.
	ErrInsufficientInfo = errors.New("insufficient information in model response")
)

// FieldError describes one rejected field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError lists every field that failed validation.
type ValidationError struct {
	Fields []FieldError `json:"fields"`
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

// Add records a failure for field.
func (e *ValidationError) Add(field, format string, args ...any) {
	e.Fields = append(e.Fields, FieldError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Has reports whether field failed.
func (e *ValidationError) Has(field string) bool {
	for _, f := range e.Fields {
		if f.Field == field {
			return true
		}
	}
	return false
}

// OrNil returns e if any field failed and nil otherwise, with fields sorted
// by name so messages are stable.
func (e *ValidationError) OrNil() error {
	if len(e.Fields) == 0 {
		return nil
	}
	sort.SliceStable(e.Fields, func(i, j int) bool { return e.Fields[i].Field < e.Fields[j].Field })
	return e
}

// UpstreamError wraps a failed call to the store or the completion service.
type UpstreamError struct {
	Op  string
	Err error
}

func (e *UpstreamError) Error() string {
	return e.Op + ": " + e.Err.Error()
}

func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Upstream wraps err as an UpstreamError unless it is nil, ErrNotFound, or
// already an UpstreamError.
func Upstream(op string, err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return err
	}
	return &UpstreamError{Op: op, Err: err}
}

// IsValidation reports whether err is a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}
