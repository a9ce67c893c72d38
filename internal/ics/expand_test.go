package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExpandItems_WeeklyWithExdateAndOverride(t *testing.T) {
	body := calendar(
		`UID:weekly
SUMMARY:Weekly
DTSTART:20260302T090000Z
DTEND:20260302T100000Z
RRULE:FREQ=WEEKLY;COUNT=4
EXDATE:20260309T090000Z`,
		`UID:weekly
SUMMARY:Weekly (moved)
RECURRENCE-ID:20260316T090000Z
DTSTART:20260316T140000Z
DTEND:20260316T150000Z`,
		`UID:single
SUMMARY:One-off
DTSTART:20250101T090000Z`,
	)
	items, _, err := ParseCalendar(body)
	require.NoError(t, err)

	res, err := ExpandItems(items, ExpandConfig{
		RangeStart: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:   time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	var summaries []string
	var starts []time.Time
	for _, occ := range res.Occurrences {
		assert.Empty(t, occ.RawRRule)
		summaries = append(summaries, occ.Summary)
		starts = append(starts, occ.Start)
	}

	// 03-09 removed by EXDATE, 03-16 replaced by the override; the one-off
	// item passes through even though it is outside the range.
	assert.Equal(t, []string{"Weekly", "Weekly (moved)", "Weekly", "One-off"}, summaries)
	assert.True(t, starts[0].Equal(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)))
	assert.True(t, starts[1].Equal(time.Date(2026, 3, 16, 14, 0, 0, 0, time.UTC)))
	assert.True(t, starts[2].Equal(time.Date(2026, 3, 23, 9, 0, 0, 0, time.UTC)))
	assert.Empty(t, res.TruncatedEvents)
}

func TestExpandItems_Cap(t *testing.T) {
	items := []Item{{
		UID:      "daily",
		Summary:  "Daily",
		Start:    time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC),
		End:      time.Date(2026, 1, 1, 9, 0, 0, 0, time.UTC),
		RawRRule: "FREQ=DAILY",
	}}

	res, err := ExpandItems(items, ExpandConfig{
		RangeStart:             time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		RangeEnd:               time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
		MaxOccurrencesPerEvent: 5,
	})
	require.NoError(t, err)
	assert.Len(t, res.Occurrences, 5)
	assert.Equal(t, []string{"daily"}, res.TruncatedEvents)
}

func TestExpandItems_BadRuleKeepsBaseInstance(t *testing.T) {
	start := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	items := []Item{{UID: "x", Summary: "X", Start: start, RawRRule: "FREQ=SOMETIMES"}}

	res, err := ExpandItems(items, ExpandConfig{RangeStart: start, RangeEnd: start.AddDate(0, 1, 0)})
	require.NoError(t, err)
	require.Len(t, res.Occurrences, 1)
	assert.True(t, res.Occurrences[0].Start.Equal(start))
}

func TestExpandItems_InvalidRange(t *testing.T) {
	now := time.Now()
	_, err := ExpandItems(nil, ExpandConfig{RangeStart: now, RangeEnd: now.Add(-time.Hour)})
	assert.Error(t, err)
}
