package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/samber/mo"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
)

// Error types
type ErrorType string

const (
	ErrNotFound      ErrorType = "not_found"
	ErrAlreadyExists ErrorType = "already_exists"
	ErrInvalidInput  ErrorType = "invalid_input"
	// ErrConflict is returned when a series changed since it was read.
	ErrConflict ErrorType = "conflict"
)

// Error represents a storage-related error
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

// IsNotFound reports whether err is a storage not-found error.
func IsNotFound(err error) bool { return hasType(err, ErrNotFound) }

// IsConflict reports whether err is an optimistic-concurrency conflict.
func IsConflict(err error) bool { return hasType(err, ErrConflict) }

// IsInvalidInput reports whether the store rejected its input.
func IsInvalidInput(err error) bool {
	return hasType(err, ErrInvalidInput) || hasType(err, ErrAlreadyExists)
}

func hasType(err error, typ ErrorType) bool {
	var e *Error
	return errors.As(err, &e) && e.Type == typ
}

// TimeBlock is one activity slot of a template, as "HH:MM" times.
type TimeBlock struct {
	Start    string `json:"start" yaml:"start"`
	End      string `json:"end" yaml:"end"`
	Activity string `json:"activity" yaml:"activity"`
}

// Template is a named day layout that series assign to dates.
type Template struct {
	Ref      string      `json:"ref"`
	OwnerRef string      `json:"ownerRef"`
	Name     string      `json:"name"`
	Color    string      `json:"color,omitempty"`
	Blocks   []TimeBlock `json:"blocks"`
	Created  time.Time   `json:"created"`
	Modified time.Time   `json:"modified"`
}

const blockLayout = "15:04"

// Validate checks the template's identity and that every block is a
// non-empty "HH:MM" interval.
func (t *Template) Validate() error {
	if t.Ref == "" || t.OwnerRef == "" {
		return &Error{Type: ErrInvalidInput, Message: "template ref and owner are required"}
	}
	if t.Name == "" {
		return &Error{Type: ErrInvalidInput, Message: "template name is required"}
	}
	for i, b := range t.Blocks {
		start, err := time.Parse(blockLayout, b.Start)
		if err != nil {
			return &Error{Type: ErrInvalidInput, Message: fmt.Sprintf("block %d start", i), Err: err}
		}
		end, err := time.Parse(blockLayout, b.End)
		if err != nil {
			return &Error{Type: ErrInvalidInput, Message: fmt.Sprintf("block %d end", i), Err: err}
		}
		if !end.After(start) {
			return &Error{Type: ErrInvalidInput, Message: fmt.Sprintf("block %d ends before it starts", i)}
		}
	}
	return nil
}

// Storage is the interface that must be implemented by storage backends.
// Series returned by a store are owned by the caller.
type Storage interface {
	// LoadSeriesOverlapping returns the owner's series, active or not, whose
	// [start, end] span intersects [from, to].
	LoadSeriesOverlapping(ctx context.Context, ownerRef string, from, to recurrence.Date) ([]*recurrence.Series, error)
	GetSeries(ctx context.Context, id string) (*recurrence.Series, error)
	// CreateSeries stores a new series, assigning its Position (creation
	// order per owner) and Version 1, and setting its timestamps.
	CreateSeries(ctx context.Context, s *recurrence.Series) error
	// SaveSeries replaces a series whose stored Version equals s.Version, and
	// increments it. A mismatch is an ErrConflict.
	SaveSeries(ctx context.Context, s *recurrence.Series) error
	// CommitEdit saves updated (version-checked) and creates successor, if
	// present, atomically. The successor keeps the Position it was given.
	CommitEdit(ctx context.Context, updated *recurrence.Series, successor mo.Option[*recurrence.Series]) error

	GetTemplate(ctx context.Context, ref string) (*Template, error)
	// PutTemplate creates or replaces a template.
	PutTemplate(ctx context.Context, t *Template) error
}
