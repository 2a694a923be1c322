package recurrence

import (
	"time"

	"github.com/samber/mo"
)

// walkHorizonYears caps how far a walk looks for matches: one full Gregorian
// cycle, after which every calendar pattern repeats.
const walkHorizonYears = 400

// walk calls fn with every match of p on or after anchor, in ascending order,
// until fn returns false or the horizon is passed. It steps period by period,
// so sparse patterns do not cost a day-by-day scan.
func walk(p Pattern, anchor Date, fn func(Date) bool) {
	horizon := anchor.Year + walkHorizonYears

	switch v := p.(type) {
	case Once:
		fn(anchor)

	case Daily:
		for d := anchor; d.Year < horizon; d = d.AddDays(v.Every) {
			if !fn(d) {
				return
			}
		}

	case Weekly:
		for block := anchor; block.Year < horizon; block = block.AddDays(7 * v.Every) {
			for i := 0; i < 7; i++ {
				d := block.AddDays(i)
				if v.matches(anchor, d) && !fn(d) {
					return
				}
			}
		}

	case Monthly:
		for k := 0; ; k += v.Every {
			first := NewDate(anchor.Year, anchor.Month+time.Month(k), 1)
			if first.Year >= horizon {
				return
			}
			last := DaysInMonth(first.Year, first.Month)
			for day := 1; day <= last; day++ {
				d := Date{Year: first.Year, Month: first.Month, Day: day}
				if d.Before(anchor) {
					continue
				}
				if v.matches(anchor, d) && !fn(d) {
					return
				}
			}
		}

	case Yearly:
		for y := anchor.Year; y < horizon; y += v.Every {
			for m := time.January; m <= time.December; m++ {
				d := Date{Year: y, Month: m, Day: anchor.Day}
				if !d.Valid() || d.Before(anchor) {
					continue
				}
				if v.matches(anchor, d) && !fn(d) {
					return
				}
			}
		}
	}
}

// nthMatch returns the n-th (1-based) match of p from anchor that is not after
// until, if there is one within the walk horizon.
func nthMatch(p Pattern, anchor Date, n int, until mo.Option[Date]) mo.Option[Date] {
	found := mo.None[Date]()
	seen := 0
	walk(p, anchor, func(d Date) bool {
		if u, ok := until.Get(); ok && d.After(u) {
			return false
		}
		seen++
		if seen == n {
			found = mo.Some(d)
			return false
		}
		return true
	})
	return found
}
