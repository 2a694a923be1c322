// Package editor applies user edits to a single occurrence, to an occurrence
// and everything after it, or to a whole series. It computes the new series
// values only; committing them is up to the storage layer.
package editor

import (
	"io"
	"log/slog"

	"github.com/google/uuid"
	"github.com/samber/mo"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
)

// Scope selects which occurrences an edit affects.
type Scope string

const (
	ScopeThis          Scope = "this"
	ScopeThisAndFuture Scope = "this_and_future"
	ScopeAll           Scope = "all"
)

// Action is the kind of edit.
type Action string

const (
	// ActionDelete removes occurrences.
	ActionDelete Action = "delete"
	// ActionRetemplate assigns a different template to occurrences.
	ActionRetemplate Action = "retemplate"
	// ActionRestore drops the exception on a single date.
	ActionRestore Action = "restore"
)

// Mutation describes what to do to the selected occurrences.
type Mutation struct {
	Action      Action
	TemplateRef string
	Reason      string
}

// Result holds the edited series and, for a split, the series continuing it.
type Result struct {
	Updated   *recurrence.Series
	Successor mo.Option[*recurrence.Series]
}

// Editor computes series edits. It is safe for concurrent use.
type Editor struct {
	engine *recurrence.Engine
	newID  func() string
	logger *slog.Logger
}

// Option configures an Editor.
type Option func(*Editor)

// WithIDGenerator sets the function that names successor series.
func WithIDGenerator(fn func() string) Option {
	return func(e *Editor) {
		if fn != nil {
			e.newID = fn
		}
	}
}

// WithLogger sets the logger for the editor
func WithLogger(logger *slog.Logger) Option {
	return func(e *Editor) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// New creates an editor evaluating occurrences with engine. A nil engine
// gets an uncached one.
func New(engine *recurrence.Engine, opts ...Option) *Editor {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	e := &Editor{
		engine: engine,
		newID:  uuid.NewString,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Apply edits series at originalDate. The input series is left untouched.
//
// Eligibility is checked with Engine.MatchesIgnoringExceptions, not
// IsOccurrence: the series must be active and the date a pattern match within
// its bounds, but an exception already recorded on the date does not
// disqualify it. A date hidden by a Delete exception can therefore still be
// retemplated or restored, and repeating an edit replaces rather than fails.
func (e *Editor) Apply(series *recurrence.Series, scope Scope, originalDate recurrence.Date, m Mutation) (Result, error) {
	if series == nil {
		return Result{}, recurrence.NotFoundf("series is required")
	}
	if err := validate(scope, m); err != nil {
		return Result{}, err
	}
	if !series.IsActive {
		return Result{}, recurrence.NotFoundf("series %s is not active", series.ID)
	}
	if !e.engine.MatchesIgnoringExceptions(series, originalDate) {
		return Result{}, recurrence.NotFoundf("%s is not an occurrence of series %s", originalDate, series.ID)
	}

	var res Result
	switch scope {
	case ScopeThis:
		res = e.applyThis(series, originalDate, m)
	case ScopeAll:
		res = e.applyAll(series, m)
	case ScopeThisAndFuture:
		if originalDate.Equal(series.StartDate) {
			res = e.applyAll(series, m)
		} else {
			res = e.split(series, originalDate, m)
		}
	}
	if err := res.Updated.Validate(); err != nil {
		return Result{}, err
	}
	if succ, ok := res.Successor.Get(); ok {
		if err := succ.Validate(); err != nil {
			return Result{}, err
		}
	}

	e.logger.Debug("edit applied",
		"series_id", series.ID,
		"scope", scope,
		"action", m.Action,
		"date", originalDate,
		"split", res.Successor.IsPresent())
	return res, nil
}

func validate(scope Scope, m Mutation) error {
	switch scope {
	case ScopeThis, ScopeThisAndFuture, ScopeAll:
	default:
		return &recurrence.Error{Type: recurrence.ErrConfiguration, Message: "unknown edit scope " + string(scope)}
	}
	switch m.Action {
	case ActionDelete:
	case ActionRetemplate:
		if m.TemplateRef == "" {
			return &recurrence.Error{Type: recurrence.ErrConfiguration, Message: "retemplate requires a template reference"}
		}
	case ActionRestore:
		if scope != ScopeThis {
			return &recurrence.Error{Type: recurrence.ErrConfiguration, Message: "restore applies to a single occurrence only"}
		}
	default:
		return &recurrence.Error{Type: recurrence.ErrConfiguration, Message: "unknown edit action " + string(m.Action)}
	}
	return nil
}

func (e *Editor) applyThis(series *recurrence.Series, date recurrence.Date, m Mutation) Result {
	updated := series.Clone()
	switch m.Action {
	case ActionDelete:
		updated.Exceptions[date] = recurrence.Exception{
			OriginalDate: date,
			Action:       recurrence.ActionDelete,
			Reason:       m.Reason,
		}
	case ActionRetemplate:
		updated.Exceptions[date] = recurrence.Exception{
			OriginalDate:        date,
			Action:              recurrence.ActionModify,
			ModifiedTemplateRef: m.TemplateRef,
			Reason:              m.Reason,
		}
	case ActionRestore:
		delete(updated.Exceptions, date)
	}
	return Result{Updated: updated, Successor: mo.None[*recurrence.Series]()}
}

func (e *Editor) applyAll(series *recurrence.Series, m Mutation) Result {
	updated := series.Clone()
	switch m.Action {
	case ActionDelete:
		updated.IsActive = false
	case ActionRetemplate:
		updated.TemplateRef = m.TemplateRef
	}
	return Result{Updated: updated, Successor: mo.None[*recurrence.Series]()}
}

// split truncates series to end the day before date. A retemplate continues
// it with a successor from date onwards that keeps the original's anchor, so
// the cadence and count are unchanged across the cut.
func (e *Editor) split(series *recurrence.Series, date recurrence.Date, m Mutation) Result {
	updated := series.Clone()
	updated.EndDate = mo.Some(date.AddDays(-1))

	if m.Action == ActionDelete {
		return Result{Updated: updated, Successor: mo.None[*recurrence.Series]()}
	}

	successor := &recurrence.Series{
		ID:          e.newID(),
		TemplateRef: m.TemplateRef,
		OwnerRef:    series.OwnerRef,
		StartDate:   date,
		EndDate:     series.EndDate,
		Anchor:      series.EffectiveAnchor(),
		Pattern:     series.Pattern,
		Notes:       series.Notes,
		Exceptions:  make(map[recurrence.Date]recurrence.Exception),
		IsActive:    true,
		ParentID:    series.ID,
		Position:    series.Position,
	}
	for d, ex := range series.Exceptions {
		if !d.Before(date) {
			successor.Exceptions[d] = ex
			delete(updated.Exceptions, d)
		}
	}
	return Result{Updated: updated, Successor: mo.Some(successor)}
}

// ParseScope converts the wire form of a scope.
func ParseScope(s string) (Scope, error) {
	switch sc := Scope(s); sc {
	case ScopeThis, ScopeThisAndFuture, ScopeAll:
		return sc, nil
	}
	return "", &recurrence.Error{Type: recurrence.ErrConfiguration, Message: "unknown edit scope " + s}
}
