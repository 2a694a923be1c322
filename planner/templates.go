package planner

import (
	"context"
	"fmt"

	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// templateMemo resolves template references once per call. Missing templates
// are remembered as nil; the first storage failure is kept in err and stops
// further lookups.
type templateMemo struct {
	p    *Planner
	seen map[string]*storage.Template
	err  error
}

func newTemplateMemo(p *Planner) *templateMemo {
	return &templateMemo{p: p, seen: make(map[string]*storage.Template)}
}

func (m *templateMemo) lookup(ctx context.Context, ref string) *storage.Template {
	if t, ok := m.seen[ref]; ok || m.err != nil {
		return t
	}
	t, err := m.p.store.GetTemplate(ctx, ref)
	switch {
	case storage.IsNotFound(err):
		m.p.logger.Warn("scheduled template is missing",
			"template_ref", ref)
		t = nil
	case err != nil:
		m.err = fmt.Errorf("failed to get template %s: %w", ref, err)
		return nil
	}
	m.seen[ref] = t
	return t
}

func (m *templateMemo) resolve(ctx context.Context, day recurrence.ScheduledDay) (CalendarDay, error) {
	out := CalendarDay{Date: day.Date, Entries: make([]CalendarEntry, 0, len(day.Entries))}
	for _, entry := range day.Entries {
		t := m.lookup(ctx, entry.TemplateRef)
		if m.err != nil {
			return CalendarDay{}, m.err
		}
		out.Entries = append(out.Entries, CalendarEntry{ScheduledTemplate: entry, Template: t})
	}
	return out, nil
}

// found returns the templates that resolved.
func (m *templateMemo) found() map[string]*storage.Template {
	out := make(map[string]*storage.Template, len(m.seen))
	for ref, t := range m.seen {
		if t != nil {
			out[ref] = t
		}
	}
	return out
}
