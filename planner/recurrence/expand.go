package recurrence

import (
	"cmp"
	"slices"
	"sync"
)

// ScheduledTemplate is one series' entry on one day.
type ScheduledTemplate struct {
	SeriesID    string `json:"seriesId"`
	Date        Date   `json:"date"`
	TemplateRef string `json:"templateRef"`
	// Modified is set when a Modify exception substituted TemplateRef; the
	// series' own template is then kept in OriginalTemplateRef.
	Modified            bool   `json:"modified,omitempty"`
	OriginalTemplateRef string `json:"originalTemplateRef,omitempty"`
	Reason              string `json:"reason,omitempty"`
	Notes               string `json:"notes,omitempty"`
}

// ScheduledDay is the merged schedule of a single date.
type ScheduledDay struct {
	Date    Date                `json:"date"`
	Entries []ScheduledTemplate `json:"entries"`
}

// Expand returns one ScheduledDay per date of the inclusive range, ascending.
// Inactive series are skipped. Entries of the same day are ordered by series
// Position, then StartDate, then ID. A reversed range yields no days.
// Ranges over MaxRangeDays are clamped with a warning; callers that must not
// lose days check the limit first.
func (e *Engine) Expand(series []*Series, rangeStart, rangeEnd Date) []ScheduledDay {
	if rangeEnd.Before(rangeStart) {
		return []ScheduledDay{}
	}
	days := rangeStart.DaysUntil(rangeEnd) + 1
	if limit := e.config.MaxRangeDays; limit > 0 && days > limit {
		e.logger.Warn("expansion range clamped",
			"range_start", rangeStart,
			"range_end", rangeEnd,
			"max_days", limit)
		days = limit
		rangeEnd = rangeStart.AddDays(days - 1)
	}

	active := orderedActive(series)
	columns := make([][]slot, len(active))
	fill := func(i int) {
		columns[i] = e.column(active[i], rangeStart, rangeEnd, days)
	}

	if workers := e.config.Workers; workers > 1 && len(active) > 1 {
		var wg sync.WaitGroup
		sem := make(chan struct{}, workers)
		for i := range active {
			wg.Add(1)
			sem <- struct{}{}
			go func(i int) {
				defer wg.Done()
				defer func() { <-sem }()
				fill(i)
			}(i)
		}
		wg.Wait()
	} else {
		for i := range active {
			fill(i)
		}
	}

	out := make([]ScheduledDay, days)
	for i := range out {
		out[i] = ScheduledDay{Date: rangeStart.AddDays(i), Entries: []ScheduledTemplate{}}
		for _, col := range columns {
			if col[i].ok {
				out[i].Entries = append(out[i].Entries, col[i].entry)
			}
		}
	}
	return out
}

// Day answers a point query for a single date without expanding a range.
func (e *Engine) Day(series []*Series, d Date) ScheduledDay {
	day := ScheduledDay{Date: d, Entries: []ScheduledTemplate{}}
	for _, s := range orderedActive(series) {
		if e.IsOccurrence(s, d) {
			day.Entries = append(day.Entries, entryFor(s, d))
		}
	}
	return day
}

type slot struct {
	ok    bool
	entry ScheduledTemplate
}

// column evaluates one series over the range; index i is rangeStart+i.
func (e *Engine) column(s *Series, rangeStart, rangeEnd Date, days int) []slot {
	col := make([]slot, days)
	ev := e.prepare(s)
	first, last, ok := ev.span(rangeStart, rangeEnd)
	if !ok {
		return col
	}
	i := rangeStart.DaysUntil(first)
	for d := first; !d.After(last); d, i = d.AddDays(1), i+1 {
		if ev.occurs(d, true) {
			col[i] = slot{ok: true, entry: entryFor(s, d)}
		}
	}
	return col
}

// entryFor builds the entry of an occurrence, applying a Modify exception.
func entryFor(s *Series, d Date) ScheduledTemplate {
	entry := ScheduledTemplate{
		SeriesID:    s.ID,
		Date:        d,
		TemplateRef: s.TemplateRef,
		Notes:       s.Notes,
	}
	if ex, ok := s.ExceptionOn(d); ok && ex.Action == ActionModify {
		entry.TemplateRef = ex.ModifiedTemplateRef
		entry.Modified = true
		entry.OriginalTemplateRef = s.TemplateRef
		entry.Reason = ex.Reason
	}
	return entry
}

// orderedActive returns the active series in deterministic day order.
func orderedActive(series []*Series) []*Series {
	active := make([]*Series, 0, len(series))
	for _, s := range series {
		if s != nil && s.IsActive {
			active = append(active, s)
		}
	}
	slices.SortStableFunc(active, func(a, b *Series) int {
		if c := cmp.Compare(a.Position, b.Position); c != 0 {
			return c
		}
		if c := a.StartDate.Compare(b.StartDate); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return active
}
