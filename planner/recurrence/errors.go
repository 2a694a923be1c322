package recurrence

import (
	"errors"
	"fmt"
)

// ErrorType classifies recurrence errors.
type ErrorType string

const (
	// ErrConfiguration marks a malformed pattern, series or exception, rejected at creation.
	ErrConfiguration ErrorType = "configuration"
	// ErrNotFound marks an edit that targets a date which is not an occurrence.
	ErrNotFound ErrorType = "not_found"
)

// Error represents a recurrence-related error
type Error struct {
	Type    ErrorType
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Is lets errors.Is match on the error type alone, e.g.
// errors.Is(err, &Error{Type: ErrNotFound}).
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Type == e.Type && (t.Message == "" || t.Message == e.Message)
}

func configErrorf(format string, args ...any) error {
	return &Error{Type: ErrConfiguration, Message: fmt.Sprintf(format, args...)}
}

// Configurationf builds an ErrConfiguration error.
func Configurationf(format string, args ...any) error {
	return configErrorf(format, args...)
}

// NotFoundf builds an ErrNotFound error.
func NotFoundf(format string, args ...any) error {
	return &Error{Type: ErrNotFound, Message: fmt.Sprintf(format, args...)}
}

// IsConfiguration reports whether err (or anything it wraps) is a configuration error.
func IsConfiguration(err error) bool {
	return hasType(err, ErrConfiguration)
}

// IsNotFound reports whether err (or anything it wraps) is a not-found error.
func IsNotFound(err error) bool {
	return hasType(err, ErrNotFound)
}

func hasType(err error, typ ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == typ
}
