package agenda

import (
	"slices"
	"time"

	"feedcal/internal/model"
)

// Window is the resolved date/time range of one run.
type Window struct {
	Now time.Time
	// Start is midnight of the first day; End is the last instant of the
	// last day (inclusive).
	Start time.Time
	End   time.Time
	// TimedFrom is the earliest start a timed event may have.
	TimedFrom time.Time
	// Empty is set when the configuration yields no days at all.
	Empty bool
}

// NewWindow resolves opts against now in loc.
func NewWindow(now time.Time, loc *time.Location, opts Options) Window {
	if loc == nil {
		loc = time.Local
	}
	now = now.In(loc)
	today := startOfDay(now)

	w := Window{Now: now}
	if opts.EndOffsetDays < opts.StartOffsetDays {
		w.Empty = true
		w.Start = today
		w.End = today
		w.TimedFrom = now
		return w
	}

	w.Start = today.AddDate(0, 0, opts.StartOffsetDays)
	w.End = today.AddDate(0, 0, opts.EndOffsetDays+1).Add(-time.Nanosecond)

	w.TimedFrom = now
	if opts.IncludeRecentPastTimed {
		w.TimedFrom = w.Start
		if opts.RecentPast > 0 {
			w.TimedFrom = latest(w.Start, now.Add(-opts.RecentPast))
		}
	}
	w.TimedFrom = latest(w.TimedFrom, w.Start)
	return w
}

// Contains applies the window rule to one event.
func (w Window) Contains(ev model.Event) bool {
	if w.Empty {
		return false
	}
	if ev.FullDay {
		first, last := daySpan(ev, w.Start.Location())
		return !first.After(startOfDay(w.End)) && !last.Before(w.Start)
	}
	return !ev.Start.Before(w.TimedFrom) && !ev.Start.After(w.End)
}

// Process runs the pipeline over the merged events: window filter, policy
// filters, sort, policy maps, truncation and grouping.
func Process(events []model.Event, w Window, opts Options) ([]model.Event, []model.DayGroup) {
	if w.Empty {
		return []model.Event{}, []model.DayGroup{}
	}

	kept := make([]model.Event, 0, len(events))
	for _, ev := range events {
		if !w.Contains(ev) || !passesPolicies(ev, opts.Policies) {
			continue
		}
		kept = append(kept, ev)
	}

	slices.SortStableFunc(kept, comparator(opts.Policies))

	for _, p := range opts.Policies {
		if p.Map == nil {
			continue
		}
		for i := range kept {
			kept[i] = p.Map(kept[i])
		}
	}

	maxEntries := opts.MaxEntries
	if maxEntries <= 0 {
		maxEntries = DefaultMaxEntries
	}
	if len(kept) > maxEntries {
		kept = kept[:maxEntries]
	}

	return kept, groupByDay(kept, w)
}

// CompareEvents orders by start instant, full-day before timed on ties.
func CompareEvents(a, b model.Event) int {
	if c := a.Start.Compare(b.Start); c != 0 {
		return c
	}
	return compareFullDayFirst(a, b)
}

func compareFullDayFirst(a, b model.Event) int {
	switch {
	case a.FullDay == b.FullDay:
		return 0
	case a.FullDay:
		return -1
	default:
		return 1
	}
}

func comparator(policies []Policy) func(a, b model.Event) int {
	var custom func(a, b model.Event) int
	for _, p := range policies {
		if p.Compare != nil {
			custom = p.Compare
		}
	}
	if custom == nil {
		return CompareEvents
	}
	return func(a, b model.Event) int {
		if c := custom(a, b); c != 0 {
			return c
		}
		return CompareEvents(a, b)
	}
}

func passesPolicies(ev model.Event, policies []Policy) bool {
	for _, p := range policies {
		if p.Filter != nil && !p.Filter(ev) {
			return false
		}
	}
	return true
}

// groupByDay buckets events by the calendar day of their start. Full-day
// events that began before the window are shown on its first day.
func groupByDay(events []model.Event, w Window) []model.DayGroup {
	loc := w.Start.Location()
	byDay := make(map[time.Time]*model.DayGroup)
	order := make([]time.Time, 0)

	for _, ev := range events {
		day := startOfDay(ev.Start.In(loc))
		if ev.FullDay && day.Before(w.Start) {
			day = w.Start
		}
		g, ok := byDay[day]
		if !ok {
			g = &model.DayGroup{Date: day, FullDay: []model.Event{}, Timed: []model.Event{}}
			byDay[day] = g
			order = append(order, day)
		}
		if ev.FullDay {
			g.FullDay = append(g.FullDay, ev)
		} else {
			g.Timed = append(g.Timed, ev)
		}
	}

	slices.SortFunc(order, func(a, b time.Time) int { return a.Compare(b) })

	out := make([]model.DayGroup, 0, len(order))
	for _, day := range order {
		g := byDay[day]
		byStart := func(a, b model.Event) int { return a.Start.Compare(b.Start) }
		slices.SortStableFunc(g.FullDay, byStart)
		slices.SortStableFunc(g.Timed, byStart)
		out = append(out, *g)
	}
	return out
}

// daySpan returns the first and last calendar day touched by a full-day
// event. End is exclusive, so an event ending at midnight does not touch
// the following day.
func daySpan(ev model.Event, loc *time.Location) (time.Time, time.Time) {
	first := startOfDay(ev.Start.In(loc))
	last := first
	if ev.HasEnd() && ev.End.After(ev.Start) {
		last = startOfDay(ev.End.Add(-time.Nanosecond).In(loc))
	}
	return first, latest(first, last)
}

func startOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

func latest(a, b time.Time) time.Time {
	if a.Before(b) {
		return b
	}
	return a
}
