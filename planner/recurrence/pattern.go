package recurrence

import (
	"slices"
	"time"

	"github.com/samber/mo"
)

// Frequency names a pattern kind.
type Frequency string

const (
	FreqNone    Frequency = "none"
	FreqDaily   Frequency = "daily"
	FreqWeekly  Frequency = "weekly"
	FreqMonthly Frequency = "monthly"
	FreqYearly  Frequency = "yearly"
)

// Limit bounds the recurrence itself, independently of the series' own end date.
type Limit struct {
	Until mo.Option[Date]
	Count mo.Option[int]
}

// Pattern is a recurrence rule. The concrete types are Once, Daily, Weekly,
// Monthly and Yearly; each exposes only the fields relevant to it.
type Pattern interface {
	Frequency() Frequency
	// Interval is the "every N units" step; 1 for Once.
	Interval() int
	Bounds() Limit

	// matches reports whether d falls on the pattern measured from anchor.
	// Bounds, series dates and exceptions are not considered.
	matches(anchor, d Date) bool
	validate() error
}

// Once occurs on the series start date only.
type Once struct{}

// Daily occurs every Every days.
type Daily struct {
	Every int
	Limit Limit
}

// Weekly occurs in every Every-th seven-day block counted from the anchor, on
// Weekdays (or on the anchor's weekday when Weekdays is empty).
type Weekly struct {
	Every    int
	Weekdays []time.Weekday
	Limit    Limit
}

// Monthly occurs in every Every-th month. Day selection, by priority:
// MonthDays; else Weekdays at SetPositions (week-of-month, 1..5 from the start
// or -1..-5 from the end); else the anchor's day of month.
type Monthly struct {
	Every        int
	MonthDays    []int
	Weekdays     []time.Weekday
	SetPositions []int
	Limit        Limit
}

// Yearly occurs every Every years on the anchor's day of month, in Months (or
// the anchor's month when Months is empty).
type Yearly struct {
	Every  int
	Months []time.Month
	Limit  Limit
}

func (Once) Frequency() Frequency    { return FreqNone }
func (Daily) Frequency() Frequency   { return FreqDaily }
func (Weekly) Frequency() Frequency  { return FreqWeekly }
func (Monthly) Frequency() Frequency { return FreqMonthly }
func (Yearly) Frequency() Frequency  { return FreqYearly }

func (Once) Interval() int      { return 1 }
func (p Daily) Interval() int   { return p.Every }
func (p Weekly) Interval() int  { return p.Every }
func (p Monthly) Interval() int { return p.Every }
func (p Yearly) Interval() int  { return p.Every }

func (Once) Bounds() Limit      { return Limit{} }
func (p Daily) Bounds() Limit   { return p.Limit }
func (p Weekly) Bounds() Limit  { return p.Limit }
func (p Monthly) Bounds() Limit { return p.Limit }
func (p Yearly) Bounds() Limit  { return p.Limit }

func (Once) matches(anchor, d Date) bool {
	return d.Equal(anchor)
}

func (p Daily) matches(anchor, d Date) bool {
	dayDiff := anchor.DaysUntil(d)
	return dayDiff >= 0 && dayDiff%p.Every == 0
}

func (p Weekly) matches(anchor, d Date) bool {
	dayDiff := anchor.DaysUntil(d)
	if dayDiff < 0 {
		return false
	}
	if (dayDiff/7)%p.Every != 0 {
		return false
	}
	if len(p.Weekdays) > 0 {
		return slices.Contains(p.Weekdays, d.Weekday())
	}
	return d.Weekday() == anchor.Weekday()
}

func (p Monthly) matches(anchor, d Date) bool {
	monthDiff := anchor.MonthsUntil(d)
	if monthDiff < 0 || monthDiff%p.Every != 0 {
		return false
	}
	switch {
	case len(p.MonthDays) > 0:
		return slices.Contains(p.MonthDays, d.Day)
	case len(p.Weekdays) > 0 && len(p.SetPositions) > 0:
		return slices.Contains(p.Weekdays, d.Weekday()) && matchesSetPosition(p.SetPositions, d)
	default:
		return d.Day == anchor.Day
	}
}

func (p Yearly) matches(anchor, d Date) bool {
	yearDiff := d.Year - anchor.Year
	if yearDiff < 0 || yearDiff%p.Every != 0 {
		return false
	}
	if d.Day != anchor.Day {
		return false
	}
	if len(p.Months) > 0 {
		return slices.Contains(p.Months, d.Month)
	}
	return d.Month == anchor.Month
}

// matchesSetPosition reports whether d sits in one of the week-of-month
// positions: ceil(day/7) counted from the start, or -(1 + (last-day)/7) from the end.
func matchesSetPosition(positions []int, d Date) bool {
	fromStart := (d.Day-1)/7 + 1
	fromEnd := -((DaysInMonth(d.Year, d.Month)-d.Day)/7 + 1)
	return slices.Contains(positions, fromStart) || slices.Contains(positions, fromEnd)
}

func (Once) validate() error { return nil }

func (p Daily) validate() error {
	if err := validateEvery(p.Every); err != nil {
		return err
	}
	return p.Limit.validate()
}

func (p Weekly) validate() error {
	if err := validateEvery(p.Every); err != nil {
		return err
	}
	if err := validateWeekdays(p.Weekdays); err != nil {
		return err
	}
	return p.Limit.validate()
}

func (p Monthly) validate() error {
	if err := validateEvery(p.Every); err != nil {
		return err
	}
	for _, d := range p.MonthDays {
		if d < 1 || d > 31 {
			return configErrorf("day of month %d out of range 1-31", d)
		}
	}
	if err := validateWeekdays(p.Weekdays); err != nil {
		return err
	}
	for _, pos := range p.SetPositions {
		if pos == 0 || pos < -5 || pos > 5 {
			return configErrorf("set position %d out of range ±1-5", pos)
		}
	}
	if (len(p.Weekdays) > 0) != (len(p.SetPositions) > 0) {
		return configErrorf("monthly weekdays and set positions must be given together")
	}
	if len(p.MonthDays) > 0 && len(p.Weekdays) > 0 {
		return configErrorf("monthly pattern cannot combine days of month with weekdays")
	}
	return p.Limit.validate()
}

func (p Yearly) validate() error {
	if err := validateEvery(p.Every); err != nil {
		return err
	}
	for _, m := range p.Months {
		if m < time.January || m > time.December {
			return configErrorf("month %d out of range 1-12", m)
		}
	}
	return p.Limit.validate()
}

func (l Limit) validate() error {
	if c, ok := l.Count.Get(); ok && c < 1 {
		return configErrorf("count must be positive, got %d", c)
	}
	if u, ok := l.Until.Get(); ok && !u.Valid() {
		return configErrorf("invalid until date %v", u)
	}
	return nil
}

func validateEvery(every int) error {
	if every < 1 {
		return configErrorf("interval must be positive, got %d", every)
	}
	return nil
}

func validateWeekdays(days []time.Weekday) error {
	for _, wd := range days {
		if wd < time.Sunday || wd > time.Saturday {
			return configErrorf("weekday %d out of range 0-6", wd)
		}
	}
	return nil
}

// ValidatePattern checks a pattern built as a literal. Patterns built through
// PatternSpec.Build are already valid.
func ValidatePattern(p Pattern) error {
	if p == nil {
		return configErrorf("pattern is required")
	}
	return p.validate()
}
