package recurrence

import (
	"fmt"
	"time"

	"github.com/samber/mo"
	"github.com/teambition/rrule-go"
)

// rruleWeekdays maps time.Weekday (Sunday = 0) onto rrule weekdays.
var rruleWeekdays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

// RRuleOption translates the series' pattern into an RFC 5545 rule anchored
// on the series' first pattern match (DTSTART). Exceptions are not included.
// The second result is false for non-recurring series.
//
// Weekly blocks are counted from the anchor, which RFC 5545 expresses with a
// WKST equal to the anchor's weekday. Week-of-month positions become nth
// weekdays (BYDAY=2MO), which select the same days as ceil(day/7). Split
// series, series ends and count bounds all become UNTIL, except that an
// unsplit, unbounded series keeps its COUNT.
func RRuleOption(s *Series) (rrule.ROption, bool) {
	if s.Pattern == nil {
		return rrule.ROption{}, false
	}
	if _, once := s.Pattern.(Once); once {
		return rrule.ROption{}, false
	}

	anchor := s.EffectiveAnchor()
	dtstart := firstMatchFrom(s.Pattern, anchor, s.StartDate).OrElse(s.StartDate)

	opt := rrule.ROption{
		Dtstart:  dtstart.Time(),
		Interval: s.Pattern.Interval(),
		Wkst:     rruleWeekdays[anchor.Weekday()],
	}

	switch p := s.Pattern.(type) {
	case Daily:
		opt.Freq = rrule.DAILY
	case Weekly:
		opt.Freq = rrule.WEEKLY
		for _, wd := range p.Weekdays {
			opt.Byweekday = append(opt.Byweekday, rruleWeekdays[wd])
		}
	case Monthly:
		opt.Freq = rrule.MONTHLY
		switch {
		case len(p.MonthDays) > 0:
			opt.Bymonthday = append([]int(nil), p.MonthDays...)
		case len(p.Weekdays) > 0 && len(p.SetPositions) > 0:
			for _, wd := range p.Weekdays {
				for _, pos := range p.SetPositions {
					day := rruleWeekdays[wd]
					opt.Byweekday = append(opt.Byweekday, day.Nth(pos))
				}
			}
		}
	case Yearly:
		opt.Freq = rrule.YEARLY
		if len(p.Months) > 0 {
			for _, m := range p.Months {
				opt.Bymonth = append(opt.Bymonth, int(m))
			}
			opt.Bymonthday = []int{anchor.Day}
		}
	}

	last := s.LastPossibleDate()
	if count, ok := s.Pattern.Bounds().Count.Get(); ok {
		if anchor.Equal(dtstart) && last.IsAbsent() {
			opt.Count = count
			return opt, true
		}
		if end, found := nthMatch(s.Pattern, anchor, count, s.Pattern.Bounds().Until).Get(); found {
			if l, set := last.Get(); !set || end.Before(l) {
				last = mo.Some(end)
			}
		}
	}
	if l, ok := last.Get(); ok {
		opt.Until = l.Time()
	}
	return opt, true
}

// RRuleString returns the RRULE value (without the "RRULE:" prefix), or "" for
// a non-recurring series.
func RRuleString(s *Series) string {
	opt, ok := RRuleOption(s)
	if !ok {
		return ""
	}
	return FormatRRule(opt)
}

// FormatRRule renders opt for an all-day DTSTART: UNTIL is written as a DATE
// (UNTIL=20240110), since RFC 5545 requires it to share DTSTART's value type.
func FormatRRule(opt rrule.ROption) string {
	until := opt.Until
	opt.Until = time.Time{}
	rule := opt.RRuleString()
	if until.IsZero() {
		return rule
	}
	return rule + ";UNTIL=" + until.UTC().Format(rrule.DateFormat)
}

// RRuleSet builds an rrule set for the series, with Delete exceptions as
// EXDATEs. A non-recurring series yields a set holding only its start date.
func RRuleSet(s *Series) (*rrule.Set, error) {
	set := &rrule.Set{}
	opt, ok := RRuleOption(s)
	if ok {
		r, err := rrule.NewRRule(opt)
		if err != nil {
			return nil, fmt.Errorf("failed to build rule for series %s: %w", s.ID, err)
		}
		set.RRule(r)
	} else {
		set.DTStart(s.StartDate.Time())
		set.RDate(s.StartDate.Time())
	}
	for d, ex := range s.Exceptions {
		if ex.Action == ActionDelete {
			set.ExDate(d.Time())
		}
	}
	return set, nil
}

// firstMatchFrom returns the first pattern match on or after from.
func firstMatchFrom(p Pattern, anchor, from Date) mo.Option[Date] {
	first := mo.None[Date]()
	walk(p, anchor, func(d Date) bool {
		if d.Before(from) {
			return true
		}
		first = mo.Some(d)
		return false
	})
	return first
}
