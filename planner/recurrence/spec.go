package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// PatternSpec is the flat, serialisable form of a Pattern used on the wire and in storage.
type PatternSpec struct {
	Kind         Frequency `json:"kind" yaml:"kind"`
	Interval     int       `json:"interval,omitempty" yaml:"interval,omitempty"`
	DaysOfWeek   []int     `json:"daysOfWeek,omitempty" yaml:"days_of_week,omitempty"`
	DaysOfMonth  []int     `json:"daysOfMonth,omitempty" yaml:"days_of_month,omitempty"`
	MonthsOfYear []int     `json:"monthsOfYear,omitempty" yaml:"months_of_year,omitempty"`
	BySetPos     []int     `json:"bySetPos,omitempty" yaml:"by_set_pos,omitempty"`
	Until        *Date     `json:"until,omitempty" yaml:"until,omitempty"`
	Count        *int      `json:"count,omitempty" yaml:"count,omitempty"`
}

// Build validates the spec and returns the matching Pattern variant. Fields
// that do not apply to the kind are rejected rather than ignored.
func (s PatternSpec) Build() (Pattern, error) {
	limit := Limit{
		Until: mo.PointerToOption(s.Until),
		Count: mo.PointerToOption(s.Count),
	}

	var p Pattern
	switch s.Kind {
	case FreqNone, "":
		if s.hasRecurrenceFields() {
			return nil, configErrorf("non-recurring pattern cannot carry recurrence fields")
		}
		return Once{}, nil
	case FreqDaily:
		if len(s.DaysOfWeek)+len(s.DaysOfMonth)+len(s.MonthsOfYear)+len(s.BySetPos) > 0 {
			return nil, configErrorf("daily pattern only accepts interval, until and count")
		}
		p = Daily{Every: s.Interval, Limit: limit}
	case FreqWeekly:
		if len(s.DaysOfMonth)+len(s.MonthsOfYear)+len(s.BySetPos) > 0 {
			return nil, configErrorf("weekly pattern only accepts days of week")
		}
		wd, err := toWeekdays(s.DaysOfWeek)
		if err != nil {
			return nil, err
		}
		p = Weekly{Every: s.Interval, Weekdays: wd, Limit: limit}
	case FreqMonthly:
		if len(s.MonthsOfYear) > 0 {
			return nil, configErrorf("monthly pattern cannot carry months of year")
		}
		wd, err := toWeekdays(s.DaysOfWeek)
		if err != nil {
			return nil, err
		}
		p = Monthly{
			Every:        s.Interval,
			MonthDays:    cloneInts(s.DaysOfMonth),
			Weekdays:     wd,
			SetPositions: cloneInts(s.BySetPos),
			Limit:        limit,
		}
	case FreqYearly:
		if len(s.DaysOfWeek)+len(s.DaysOfMonth)+len(s.BySetPos) > 0 {
			return nil, configErrorf("yearly pattern only accepts months of year")
		}
		months := make([]time.Month, 0, len(s.MonthsOfYear))
		for _, m := range s.MonthsOfYear {
			if m < 1 || m > 12 {
				return nil, configErrorf("month %d out of range 1-12", m)
			}
			months = append(months, time.Month(m))
		}
		p = Yearly{Every: s.Interval, Months: months, Limit: limit}
	default:
		return nil, configErrorf("unknown recurrence kind %q", s.Kind)
	}

	if err := p.validate(); err != nil {
		return nil, err
	}
	return p, nil
}

func (s PatternSpec) hasRecurrenceFields() bool {
	return s.Interval > 1 || len(s.DaysOfWeek) > 0 || len(s.DaysOfMonth) > 0 ||
		len(s.MonthsOfYear) > 0 || len(s.BySetPos) > 0 || s.Until != nil || s.Count != nil
}

// SpecOf is the inverse of PatternSpec.Build.
func SpecOf(p Pattern) PatternSpec {
	if p == nil {
		return PatternSpec{Kind: FreqNone}
	}
	spec := PatternSpec{Kind: p.Frequency()}
	if _, ok := p.(Once); ok {
		return spec
	}
	spec.Interval = p.Interval()
	limit := p.Bounds()
	spec.Until = limit.Until.ToPointer()
	spec.Count = limit.Count.ToPointer()

	switch v := p.(type) {
	case Weekly:
		spec.DaysOfWeek = fromWeekdays(v.Weekdays)
	case Monthly:
		spec.DaysOfMonth = cloneInts(v.MonthDays)
		spec.DaysOfWeek = fromWeekdays(v.Weekdays)
		spec.BySetPos = cloneInts(v.SetPositions)
	case Yearly:
		for _, m := range v.Months {
			spec.MonthsOfYear = append(spec.MonthsOfYear, int(m))
		}
	}
	return spec
}

func toWeekdays(days []int) ([]time.Weekday, error) {
	if len(days) == 0 {
		return nil, nil
	}
	out := make([]time.Weekday, 0, len(days))
	for _, d := range days {
		if d < 0 || d > 6 {
			return nil, configErrorf("weekday %d out of range 0-6", d)
		}
		out = append(out, time.Weekday(d))
	}
	return out, nil
}

func fromWeekdays(days []time.Weekday) []int {
	if len(days) == 0 {
		return nil
	}
	out := make([]int, 0, len(days))
	for _, d := range days {
		out = append(out, int(d))
	}
	return out
}

func cloneInts(in []int) []int {
	if len(in) == 0 {
		return nil
	}
	return append([]int(nil), in...)
}
