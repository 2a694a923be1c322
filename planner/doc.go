/*
Package planner schedules day templates on calendar dates.

A user assigns a template (a named list of time blocks) to a recurring series
of dates. The planner answers which templates apply on a date or over a range,
applies edits to one occurrence, to an occurrence and everything after it, or
to a whole series, and exports the schedule as iCalendar or xCal.

# Basic Usage

	store := memory.New()
	p := planner.New(store)
	defer p.Close()

	series, err := p.AssignTemplate(ctx, planner.AssignRequest{
		OwnerRef:    "alice",
		TemplateRef: "tpl-work",
		StartDate:   recurrence.MustParseDate("2024-01-01"),
		Pattern:     recurrence.PatternSpec{Kind: recurrence.FreqWeekly, DaysOfWeek: []int{1, 2, 3, 4, 5}},
	})

	days, err := p.Calendar(ctx, "alice", from, to)

# Editing

EditOccurrence takes a scope:
  - editor.ScopeThis records an exception on the selected date only
  - editor.ScopeThisAndFuture ends the series the day before and, for a
    template change, starts a successor series on the selected date
  - editor.ScopeAll changes the series itself; existing exceptions stay

Edits are committed atomically. A concurrent edit of the same series fails
with a storage conflict error and can be retried.

# Storage

The planner stores through storage.Storage. Two implementations are
provided: storage/memory for tests and demos, and storage/gormstore for
PostgreSQL or SQLite.
*/
package planner
