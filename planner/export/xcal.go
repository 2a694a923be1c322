package export

import (
	"fmt"

	"github.com/cod31nvictus/Eterny2.0-sub001/internal/xml"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/recurrence"
	"github.com/cod31nvictus/Eterny2.0-sub001/planner/storage"
)

// ExpandedXCal renders the same events as ExpandedICS in the xCal XML form.
func (x *Exporter) ExpandedXCal(days []recurrence.ScheduledDay, templates map[string]*storage.Template) ([]byte, error) {
	cal := &xml.Calendar{ProductID: ProductID}
	stamp := x.now().UTC().Format("2006-01-02T15:04:05Z")

	for _, day := range days {
		for _, entry := range day.Entries {
			event := xml.Event{
				UID:     fmt.Sprintf("%s-%s@planner", entry.SeriesID, entry.Date),
				Stamp:   stamp,
				Start:   entry.Date.String(),
				End:     entry.Date.AddDays(1).String(),
				Summary: entry.TemplateRef,
			}
			if t, ok := templates[entry.TemplateRef]; ok && t != nil {
				event.Summary = t.Name
				event.Color = t.Color
			}
			if entry.Reason != "" {
				event.Description = entry.Reason
			} else {
				event.Description = entry.Notes
			}
			cal.Events = append(cal.Events, event)
		}
	}
	return cal.Marshal()
}
