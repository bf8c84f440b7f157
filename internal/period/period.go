// Package period resolves semantic period kinds into inclusive calendar
// date ranges. It is a leaf package: pure functions over dates, no I/O.
package period

import (
	"time"

	"tally/internal/core"
)

// Clock supplies "today" so that callers omitting a reference date stay
// testable. The resolver never reads the wall clock directly.
type Clock interface {
	Now() time.Time
}

// SystemClock is the production Clock.
type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now() }

// Range is an inclusive [Start, End] calendar range. Start <= End always
// holds for resolved ranges.
type Range struct {
	Kind  core.PeriodKind
	Start core.Date
	End   core.Date
}

// Contains reports whether d falls inside the range, bounds included.
func (r Range) Contains(d core.Date) bool {
	return !d.Before(r.Start.Time) && !d.After(r.End.Time)
}

// Resolve expands kind around ref. A zero ref means "today" per clock
// (a nil clock falls back to the system clock). Custom kinds carry their
// own bounds and go through ResolveCustom instead; Resolve treats them
// as daily around ref so the function stays total.
func Resolve(kind core.PeriodKind, ref core.Date, clock Clock) Range {
	if ref.IsZero() {
		if clock == nil {
			clock = SystemClock{}
		}
		ref = core.DateOf(clock.Now())
	}

	switch kind {
	case core.Weekly:
		// Week starts Monday. A weekend reference stays in the same week:
		// Sunday resolves to the Monday before it, never the one after.
		offset := (int(ref.Weekday()) + 6) % 7
		start := core.DateOf(ref.AddDate(0, 0, -offset))
		return Range{Kind: kind, Start: start, End: core.DateOf(start.AddDate(0, 0, 6))}
	case core.Monthly:
		start := core.NewDate(ref.Year(), ref.Month(), 1)
		// Day zero of the next month is the last day of this one,
		// leap Februaries included.
		end := core.DateOf(time.Date(ref.Year(), ref.Time.Month()+1, 0, 0, 0, 0, 0, time.UTC))
		return Range{Kind: kind, Start: start, End: end}
	case core.Yearly:
		return Range{
			Kind:  kind,
			Start: core.NewDate(ref.Year(), 1, 1),
			End:   core.NewDate(ref.Year(), 12, 31),
		}
	default:
		return Range{Kind: core.Daily, Start: ref, End: ref}
	}
}

// ResolveCustom wraps caller-supplied bounds verbatim; no derivation.
func ResolveCustom(start, end core.Date) Range {
	return Range{Kind: core.Custom, Start: start, End: end}
}
