package recurrence

import (
	"maps"
	"time"

	"github.com/samber/mo"
)

// ExceptionAction is what an exception does to its occurrence.
type ExceptionAction string

const (
	// ActionDelete suppresses the occurrence.
	ActionDelete ExceptionAction = "delete"
	// ActionModify substitutes a different template for the occurrence.
	ActionModify ExceptionAction = "modify"
)

// Exception overrides a single occurrence of a series.
type Exception struct {
	OriginalDate        Date            `json:"originalDate"`
	Action              ExceptionAction `json:"action"`
	ModifiedTemplateRef string          `json:"modifiedTemplateRef,omitempty"`
	Reason              string          `json:"reason,omitempty"`
}

// Validate checks that a template reference is present iff the action is Modify.
func (e Exception) Validate() error {
	if e.OriginalDate.IsZero() || !e.OriginalDate.Valid() {
		return configErrorf("exception date %v is invalid", e.OriginalDate)
	}
	switch e.Action {
	case ActionDelete:
		if e.ModifiedTemplateRef != "" {
			return configErrorf("delete exception on %s cannot carry a template", e.OriginalDate)
		}
	case ActionModify:
		if e.ModifiedTemplateRef == "" {
			return configErrorf("modify exception on %s requires a template", e.OriginalDate)
		}
	default:
		return configErrorf("unknown exception action %q", e.Action)
	}
	return nil
}

// Series (a planned day) assigns a template to a start date with a recurrence pattern.
type Series struct {
	ID          string
	TemplateRef string
	OwnerRef    string
	StartDate   Date
	EndDate     mo.Option[Date]
	// Anchor is the phase origin of the pattern. Zero means StartDate. A series
	// split off another keeps its predecessor's anchor so its cadence is unchanged.
	Anchor     Date
	Pattern    Pattern
	Notes      string
	Exceptions map[Date]Exception
	IsActive   bool
	// ParentID is the series this one was split from, if any.
	ParentID string
	// Position orders entries of different series on the same day (creation order).
	Position int64

	// Maintained by the persistence layer.
	Version   int64
	CreatedAt time.Time
	UpdatedAt time.Time
}

// SeriesParams are the inputs of NewSeries.
type SeriesParams struct {
	ID          string
	TemplateRef string
	OwnerRef    string
	StartDate   Date
	EndDate     mo.Option[Date]
	Pattern     Pattern
	Notes       string
	Exceptions  []Exception
}

// NewSeries validates params and returns an active series.
func NewSeries(params SeriesParams) (*Series, error) {
	s := &Series{
		ID:          params.ID,
		TemplateRef: params.TemplateRef,
		OwnerRef:    params.OwnerRef,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		Pattern:     params.Pattern,
		Notes:       params.Notes,
		Exceptions:  make(map[Date]Exception, len(params.Exceptions)),
		IsActive:    true,
	}
	if s.Pattern == nil {
		s.Pattern = Once{}
	}
	for _, ex := range params.Exceptions {
		if _, dup := s.Exceptions[ex.OriginalDate]; dup {
			return nil, configErrorf("duplicate exception for %s", ex.OriginalDate)
		}
		s.Exceptions[ex.OriginalDate] = ex
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return s, nil
}

// Validate checks the structural invariants of a series.
func (s *Series) Validate() error {
	if s.TemplateRef == "" {
		return configErrorf("template reference is required")
	}
	if s.OwnerRef == "" {
		return configErrorf("owner reference is required")
	}
	if s.StartDate.IsZero() || !s.StartDate.Valid() {
		return configErrorf("start date %v is invalid", s.StartDate)
	}
	if end, ok := s.EndDate.Get(); ok {
		if !end.Valid() {
			return configErrorf("end date %v is invalid", end)
		}
		if end.Before(s.StartDate) {
			return configErrorf("end date %s is before start date %s", end, s.StartDate)
		}
	}
	if err := ValidatePattern(s.Pattern); err != nil {
		return err
	}
	if until, ok := s.Pattern.Bounds().Until.Get(); ok && until.Before(s.StartDate) {
		return configErrorf("recurrence until %s is before start date %s", until, s.StartDate)
	}
	if !s.Anchor.IsZero() {
		if s.Anchor.After(s.StartDate) {
			return configErrorf("anchor %s is after start date %s", s.Anchor, s.StartDate)
		}
		if _, once := s.Pattern.(Once); once && !s.Anchor.Equal(s.StartDate) {
			return configErrorf("non-recurring series cannot have a separate anchor")
		}
	}
	for date, ex := range s.Exceptions {
		if !date.Equal(ex.OriginalDate) {
			return configErrorf("exception keyed %s carries date %s", date, ex.OriginalDate)
		}
		if err := ex.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// EffectiveAnchor returns the date the pattern is measured from.
func (s *Series) EffectiveAnchor() Date {
	if s.Anchor.IsZero() {
		return s.StartDate
	}
	return s.Anchor
}

// ExceptionOn returns the exception recorded for d, if any.
func (s *Series) ExceptionOn(d Date) (Exception, bool) {
	ex, ok := s.Exceptions[d]
	return ex, ok
}

// LastPossibleDate is the earlier of the series end and the pattern's until,
// when either is set. It ignores count.
func (s *Series) LastPossibleDate() mo.Option[Date] {
	end := s.EndDate
	if until, ok := s.Pattern.Bounds().Until.Get(); ok {
		if e, set := end.Get(); !set || until.Before(e) {
			end = mo.Some(until)
		}
	}
	return end
}

// Overlaps reports whether the series' [start, end] span intersects [from, to].
func (s *Series) Overlaps(from, to Date) bool {
	if s.StartDate.After(to) {
		return false
	}
	if end, ok := s.LastPossibleDate().Get(); ok && end.Before(from) {
		return false
	}
	return true
}

// Clone returns a copy whose exception map can be modified independently.
func (s *Series) Clone() *Series {
	c := *s
	c.Exceptions = maps.Clone(s.Exceptions)
	if c.Exceptions == nil {
		c.Exceptions = make(map[Date]Exception)
	}
	return &c
}
