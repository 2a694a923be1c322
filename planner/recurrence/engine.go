package recurrence

import (
	"io"
	"log/slog"

	"github.com/samber/mo"
)

// Engine evaluates and expands series. It holds no calendar state: every
// answer is a function of the series and dates passed in.
type Engine struct {
	cache  *Cache[patternKey, mo.Option[Date]]
	config EngineConfig
	logger *slog.Logger
}

// NewEngine creates an engine without a cache and without range limits.
func NewEngine() *Engine {
	return &Engine{
		config: DisabledCacheConfig,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

// Close releases the engine's cache, if any.
func (e *Engine) Close() {
	if e.cache != nil {
		e.cache.Close()
	}
}

// CacheStats reports cache usage; the zero value when caching is disabled.
func (e *Engine) CacheStats() CacheStats {
	if e.cache == nil {
		return CacheStats{}
	}
	return e.cache.Stats()
}

// IsOccurrence reports whether s occurs on d. Rules, first match wins: before
// the start, after the series end, a Delete exception, or after the pattern's
// until all mean no; otherwise the pattern decides, and a count bound rejects
// dates after the count-th match. Exceptions on dates the pattern never hits
// are ignored.
func (e *Engine) IsOccurrence(s *Series, d Date) bool {
	return e.prepare(s).occurs(d, true)
}

// MatchesIgnoringExceptions is IsOccurrence with every exception disregarded.
func (e *Engine) MatchesIgnoringExceptions(s *Series, d Date) bool {
	return e.prepare(s).occurs(d, false)
}

// Occurrences lists the dates in [from, to] on which s occurs.
func (e *Engine) Occurrences(s *Series, from, to Date) []Date {
	ev := e.prepare(s)
	first, last, ok := ev.span(from, to)
	if !ok {
		return nil
	}
	var out []Date
	for d := first; !d.After(last); d = d.AddDays(1) {
		if ev.occurs(d, true) {
			out = append(out, d)
		}
	}
	return out
}

// NextOccurrence returns the first occurrence of s strictly after the given date.
func (e *Engine) NextOccurrence(s *Series, after Date) mo.Option[Date] {
	ev := e.prepare(s)
	last := s.LastPossibleDate()
	if c, ok := ev.countEnd.Get(); ok {
		if l, set := last.Get(); !set || c.Before(l) {
			last = mo.Some(c)
		}
	}

	next := mo.None[Date]()
	walk(s.Pattern, ev.anchor, func(d Date) bool {
		if l, ok := last.Get(); ok && d.After(l) {
			return false
		}
		if !d.After(after) {
			return true
		}
		if ev.occurs(d, true) {
			next = mo.Some(d)
			return false
		}
		return true
	})
	return next
}

// evaluation is a series prepared for repeated date checks.
type evaluation struct {
	series   *Series
	anchor   Date
	// countEnd is the count-th match when a count bound exists and is reached
	// within the walk horizon; otherwise the count never rejects.
	countEnd mo.Option[Date]
}

func (e *Engine) prepare(s *Series) evaluation {
	ev := evaluation{series: s, anchor: s.EffectiveAnchor()}
	if s.Pattern == nil {
		return ev
	}
	limit := s.Pattern.Bounds()
	count, ok := limit.Count.Get()
	if !ok {
		return ev
	}

	compute := func() mo.Option[Date] {
		return nthMatch(s.Pattern, ev.anchor, count, limit.Until)
	}
	if e.cache == nil {
		ev.countEnd = compute()
	} else {
		ev.countEnd = e.cache.Memo(keyOf(ev.anchor, s.Pattern), compute)
	}
	return ev
}

func (ev evaluation) occurs(d Date, honourExceptions bool) bool {
	s := ev.series
	if s.Pattern == nil {
		return false
	}
	if d.Before(s.StartDate) {
		return false
	}
	if end, ok := s.EndDate.Get(); ok && d.After(end) {
		return false
	}
	if honourExceptions {
		if ex, ok := s.ExceptionOn(d); ok && ex.Action == ActionDelete {
			return false
		}
	}
	limit := s.Pattern.Bounds()
	if until, ok := limit.Until.Get(); ok && d.After(until) {
		return false
	}
	if !s.Pattern.matches(ev.anchor, d) {
		return false
	}
	if c, ok := ev.countEnd.Get(); ok && d.After(c) {
		return false
	}
	return true
}

// span intersects [from, to] with the dates s can possibly occur on.
func (ev evaluation) span(from, to Date) (first, last Date, ok bool) {
	first, last = from, to
	if ev.series.StartDate.After(first) {
		first = ev.series.StartDate
	}
	if end, set := ev.series.LastPossibleDate().Get(); set {
		last = MinDate(last, end)
	}
	if c, set := ev.countEnd.Get(); set {
		last = MinDate(last, c)
	}
	return first, last, !first.After(last)
}
