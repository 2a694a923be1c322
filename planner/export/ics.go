// Package export renders planned days as iCalendar (RFC 5545) data.
package export

import (
	"bytes"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/emersion/go-ical"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// ProductID is the PRODID of exported calendars.
const ProductID = "-//Eterny//Day Planner//EN"

// Exporter builds ICS documents. Every event is an all-day event.
type Exporter struct {
	engine *recurrence.Engine
	now    func() time.Time
}

// Option configures an Exporter.
type Option func(*Exporter)

// WithClock sets the source of DTSTAMP values.
func WithClock(now func() time.Time) Option {
	return func(x *Exporter) {
		if now != nil {
			x.now = now
		}
	}
}

// New creates an exporter that checks occurrences with engine.
func New(engine *recurrence.Engine, opts ...Option) *Exporter {
	if engine == nil {
		engine = recurrence.NewEngine()
	}
	x := &Exporter{engine: engine, now: time.Now}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// SeriesUID is the iCalendar UID of a series.
func SeriesUID(seriesID string) string {
	return seriesID + "@planner"
}

// SeriesICS renders one recurring VEVENT per active series: its RRULE, an
// EXDATE per deleted occurrence, and an overriding VEVENT with RECURRENCE-ID
// for each occurrence whose template was swapped. templates supplies event
// summaries; a missing template falls back to its reference.
func (x *Exporter) SeriesICS(series []*recurrence.Series, templates map[string]*storage.Template) ([]byte, error) {
	cal := newCalendar()
	stamp := x.now().UTC()

	for _, s := range series {
		if s == nil || !s.IsActive {
			continue
		}
		master := ical.NewEvent()
		master.Props.SetText(ical.PropUID, SeriesUID(s.ID))
		master.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
		setSummary(master, s.TemplateRef, templates)
		if s.Notes != "" {
			master.Props.SetText(ical.PropDescription, s.Notes)
		}

		start := s.StartDate
		if opt, ok := recurrence.RRuleOption(s); ok {
			start = recurrence.DateOf(opt.Dtstart)
			rule := ical.NewProp(ical.PropRecurrenceRule)
			rule.Value = recurrence.FormatRRule(opt)
			master.Props.Set(rule)
		}
		setAllDay(master, start)

		var overrides []*ical.Event
		for _, d := range sortedExceptionDates(s) {
			ex, _ := s.ExceptionOn(d)
			if !x.engine.MatchesIgnoringExceptions(s, d) {
				continue
			}
			switch ex.Action {
			case recurrence.ActionDelete:
				exdate := ical.NewProp(ical.PropExceptionDates)
				exdate.SetDate(d.Time())
				master.Props.Add(exdate)
			case recurrence.ActionModify:
				override := ical.NewEvent()
				override.Props.SetText(ical.PropUID, SeriesUID(s.ID))
				override.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
				recurrenceID := ical.NewProp(ical.PropRecurrenceID)
				recurrenceID.SetDate(d.Time())
				override.Props.Set(recurrenceID)
				setAllDay(override, d)
				setSummary(override, ex.ModifiedTemplateRef, templates)
				if ex.Reason != "" {
					override.Props.SetText(ical.PropDescription, ex.Reason)
				}
				overrides = append(overrides, override)
			}
		}

		cal.Children = append(cal.Children, master.Component)
		for _, o := range overrides {
			cal.Children = append(cal.Children, o.Component)
		}
	}
	return encode(cal)
}

// ExpandedICS renders one standalone VEVENT per scheduled entry, for clients
// that do not understand recurrence rules.
func (x *Exporter) ExpandedICS(days []recurrence.ScheduledDay, templates map[string]*storage.Template) ([]byte, error) {
	cal := newCalendar()
	stamp := x.now().UTC()

	for _, day := range days {
		for _, entry := range day.Entries {
			event := ical.NewEvent()
			event.Props.SetText(ical.PropUID, fmt.Sprintf("%s-%s@planner", entry.SeriesID, entry.Date))
			event.Props.SetDateTime(ical.PropDateTimeStamp, stamp)
			setAllDay(event, entry.Date)
			setSummary(event, entry.TemplateRef, templates)
			if entry.Reason != "" {
				event.Props.SetText(ical.PropDescription, entry.Reason)
			} else if entry.Notes != "" {
				event.Props.SetText(ical.PropDescription, entry.Notes)
			}
			cal.Children = append(cal.Children, event.Component)
		}
	}
	return encode(cal)
}

func newCalendar() *ical.Calendar {
	cal := ical.NewCalendar()
	cal.Props.SetText(ical.PropVersion, "2.0")
	cal.Props.SetText(ical.PropProductID, ProductID)
	return cal
}

func setAllDay(event *ical.Event, d recurrence.Date) {
	event.Props.SetDate(ical.PropDateTimeStart, d.Time())
	event.Props.SetDate(ical.PropDateTimeEnd, d.AddDays(1).Time())
}

func setSummary(event *ical.Event, ref string, templates map[string]*storage.Template) {
	summary := ref
	if t, ok := templates[ref]; ok && t != nil {
		summary = t.Name
		if t.Color != "" {
			event.Props.SetText(ical.PropColor, t.Color)
		}
	}
	event.Props.SetText(ical.PropSummary, summary)
}

func sortedExceptionDates(s *recurrence.Series) []recurrence.Date {
	return slices.SortedFunc(maps.Keys(s.Exceptions), recurrence.Date.Compare)
}

func encode(cal *ical.Calendar) ([]byte, error) {
	var buf bytes.Buffer
	if err := ical.NewEncoder(&buf).Encode(cal); err != nil {
		return nil, fmt.Errorf("failed to encode calendar: %w", err)
	}
	return buf.Bytes(), nil
}
