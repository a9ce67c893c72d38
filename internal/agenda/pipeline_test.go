package agenda

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"feedcal/internal/model"
)

var testNow = time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

func at(day, hour, minute int) time.Time {
	return time.Date(2026, 3, day, hour, minute, 0, 0, time.UTC)
}

func timed(summary string, start time.Time) model.Event {
	return model.Event{Summary: summary, Start: start, End: start.Add(time.Hour), SourceName: "default"}
}

func fullDay(summary string, day int) model.Event {
	start := at(day, 0, 0)
	return model.Event{Summary: summary, Start: start, End: start.AddDate(0, 0, 1), FullDay: true, SourceName: "default"}
}

func summaries(events []model.Event) []string {
	out := make([]string, 0, len(events))
	for _, ev := range events {
		out = append(out, ev.Summary)
	}
	return out
}

func TestNewWindow(t *testing.T) {
	w := NewWindow(testNow, time.UTC, Options{StartOffsetDays: 0, EndOffsetDays: 7})
	assert.False(t, w.Empty)
	assert.True(t, w.Start.Equal(at(2, 0, 0)))
	assert.True(t, w.End.Equal(at(10, 0, 0).Add(-time.Nanosecond)))
	assert.True(t, w.TimedFrom.Equal(testNow))

	w = NewWindow(testNow, time.UTC, Options{StartOffsetDays: 2, EndOffsetDays: 3})
	assert.True(t, w.TimedFrom.Equal(at(4, 0, 0)), "lower bound never precedes the window start")

	w = NewWindow(testNow, time.UTC, Options{StartOffsetDays: 3, EndOffsetDays: 1})
	assert.True(t, w.Empty)
}

func TestWindowBoundary(t *testing.T) {
	opts := Options{EndOffsetDays: 0, MaxEntries: 10}
	w := NewWindow(testNow, time.UTC, opts)

	onEdge := timed("on edge", w.End)
	pastEdge := timed("past edge", w.End.Add(time.Nanosecond))
	assert.True(t, w.Contains(onEdge))
	assert.False(t, w.Contains(pastEdge))

	events, _ := Process([]model.Event{pastEdge, onEdge}, w, opts)
	assert.Equal(t, []string{"on edge"}, summaries(events))
}

func TestProcess_ExcludesPastTimedByDefault(t *testing.T) {
	events := []model.Event{
		timed("early", at(2, 7, 0)),
		timed("just passed", at(2, 8, 30)),
		timed("later", at(2, 11, 0)),
	}

	opts := Options{EndOffsetDays: 0, MaxEntries: 10}
	got, _ := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"later"}, summaries(got))

	opts.IncludeRecentPastTimed = true
	opts.RecentPast = time.Hour
	got, _ = Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"just passed", "later"}, summaries(got))

	opts.RecentPast = 0
	got, _ = Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"early", "just passed", "later"}, summaries(got))
}

func TestProcess_FullDayInclusion(t *testing.T) {
	multiDay := model.Event{
		Summary: "conference",
		Start:   at(1, 0, 0),
		End:     at(4, 0, 0),
		FullDay: true,
	}
	events := []model.Event{
		fullDay("yesterday", 1),
		fullDay("today", 2),
		fullDay("tomorrow", 3),
		multiDay,
	}

	opts := Options{EndOffsetDays: 0, MaxEntries: 10}
	got, days := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"conference", "today"}, summaries(got))

	require.Len(t, days, 1)
	assert.True(t, days[0].Date.Equal(at(2, 0, 0)), "spanning event is grouped on the first window day")
	assert.Equal(t, []string{"conference", "today"}, summaries(days[0].FullDay))
}

func TestProcess_SortFullDayFirstOnTies(t *testing.T) {
	events := []model.Event{
		timed("midnight meeting", at(3, 0, 0)),
		timed("b", at(4, 10, 0)),
		fullDay("holiday", 3),
		timed("a", at(3, 10, 0)),
		fullDay("other holiday", 4),
	}

	opts := Options{EndOffsetDays: 7, MaxEntries: 10}
	got, _ := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"holiday", "midnight meeting", "a", "other holiday", "b"}, summaries(got))

	for i := 0; i+1 < len(got); i++ {
		assert.False(t, got[i+1].Start.Before(got[i].Start))
		if got[i].Start.Equal(got[i+1].Start) {
			assert.False(t, !got[i].FullDay && got[i+1].FullDay)
		}
	}
}

func TestProcess_Truncates(t *testing.T) {
	var events []model.Event
	for h := 10; h < 22; h++ {
		events = append(events, timed("e", at(3, h, 0)))
	}

	opts := Options{EndOffsetDays: 7, MaxEntries: 5}
	got, days := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Len(t, got, 5)
	assert.True(t, got[4].Start.Equal(at(3, 14, 0)))
	require.Len(t, days, 1)
	assert.Len(t, days[0].Timed, 5)
}

func TestProcess_MalformedWindowIsEmpty(t *testing.T) {
	opts := Options{StartOffsetDays: 5, EndOffsetDays: 1, MaxEntries: 10}
	got, days := Process([]model.Event{timed("x", at(3, 10, 0))}, NewWindow(testNow, time.UTC, opts), opts)
	assert.Empty(t, got)
	assert.Empty(t, days)
}

func TestProcess_GroupsByDay(t *testing.T) {
	events := []model.Event{
		timed("tue late", at(3, 18, 0)),
		timed("mon late", at(2, 23, 0)),
		fullDay("tue holiday", 3),
		timed("tue early", at(3, 8, 0)),
	}

	opts := Options{EndOffsetDays: 7, MaxEntries: 10}
	_, days := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	require.Len(t, days, 2)

	assert.True(t, days[0].Date.Equal(at(2, 0, 0)))
	assert.Equal(t, []string{"mon late"}, summaries(days[0].Events()))

	assert.True(t, days[1].Date.Equal(at(3, 0, 0)))
	assert.Equal(t, []string{"tue holiday"}, summaries(days[1].FullDay))
	assert.Equal(t, []string{"tue early", "tue late"}, summaries(days[1].Timed))
}

func TestProcess_PolicyStages(t *testing.T) {
	events := []model.Event{
		{Summary: "beta", Start: at(3, 9, 0), SourceName: "work"},
		{Summary: "alpha", Start: at(3, 12, 0), SourceName: "work"},
		{Summary: "noise", Start: at(3, 10, 0), SourceName: "spam"},
	}

	opts := Options{
		EndOffsetDays: 7,
		MaxEntries:    10,
		Policies: []Policy{
			{Name: "drop-spam", Filter: func(ev model.Event) bool { return ev.SourceName != "spam" }},
			{Name: "by-summary", Compare: func(a, b model.Event) int { return strings.Compare(a.Summary, b.Summary) }},
			{Name: "shout", Map: func(ev model.Event) model.Event {
				ev.Summary = strings.ToUpper(ev.Summary)
				return ev
			}},
		},
	}

	got, _ := Process(events, NewWindow(testNow, time.UTC, opts), opts)
	assert.Equal(t, []string{"ALPHA", "BETA"}, summaries(got))
}
