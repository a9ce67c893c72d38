package model

import "time"

// DefaultSourceName is used for events whose source has no display name.
const DefaultSourceName = "default"

// DefaultColor tags events whose source has no color.
const DefaultColor = "#ffffff"

// FullDayThreshold is the minimum span of an event without an explicit
// all-day marker for it to be treated as full-day.
const FullDayThreshold = 24 * time.Hour

// CalendarSource describes one remote ICS feed plus its display metadata.
type CalendarSource struct {
	URL    string `json:"url" yaml:"url"`
	Name   string `json:"name" yaml:"name"`
	Color  string `json:"color,omitempty" yaml:"color"`
	Symbol string `json:"symbol,omitempty" yaml:"symbol"`
}

// DisplayName returns Name, or DefaultSourceName when it is unset.
func (s CalendarSource) DisplayName() string {
	if s.Name == "" {
		return DefaultSourceName
	}
	return s.Name
}

// DisplayColor returns Color, or DefaultColor when it is unset.
func (s CalendarSource) DisplayColor() string {
	if s.Color == "" {
		return DefaultColor
	}
	return s.Color
}

// RawDocument is a fetched, not yet parsed, calendar payload.
type RawDocument struct {
	Source CalendarSource
	Text   []byte
}

// Event is a single concrete calendar entry, already expanded and tagged
// with the source it came from.
type Event struct {
	Summary     string    `json:"summary"`
	Start       time.Time `json:"start"`
	End         time.Time `json:"end,omitzero"`
	Description string    `json:"description"`
	Location    string    `json:"location"`

	SourceName string `json:"source_name"`
	Color      string `json:"color,omitempty"`
	Symbol     string `json:"symbol,omitempty"`

	FullDay bool `json:"full_day"`
}

// HasEnd reports whether the event carries an end instant.
func (e Event) HasEnd() bool {
	return !e.End.IsZero()
}

// ClassifyFullDay applies the full-day rule: an explicit marker wins,
// otherwise the event must have an end at least FullDayThreshold after start.
func ClassifyFullDay(explicit bool, start, end time.Time) bool {
	if explicit {
		return true
	}
	if end.IsZero() {
		return false
	}
	return end.Sub(start) >= FullDayThreshold
}

// FetchOutcome records how a single source fared during one run.
// Error is non-empty iff Success is false.
type FetchOutcome struct {
	Source       CalendarSource `json:"source"`
	Success      bool           `json:"success"`
	EventCount   int            `json:"event_count"`
	SkippedItems int            `json:"skipped_items,omitempty"`
	ErrorKind    string         `json:"error_kind,omitempty"`
	StatusCode   int            `json:"status_code,omitempty"`
	Error        string         `json:"error,omitempty"`
	Elapsed      time.Duration  `json:"elapsed_ns"`

	// TruncatedRecurrences lists UIDs whose expansion hit the per-event cap.
	TruncatedRecurrences []string `json:"truncated_recurrences,omitempty"`
}

// DayGroup holds the events of one calendar day, full-day entries first.
type DayGroup struct {
	Date    time.Time `json:"date"`
	FullDay []Event   `json:"full_day"`
	Timed   []Event   `json:"timed"`
}

// Events returns the day's events in display order.
func (g DayGroup) Events() []Event {
	out := make([]Event, 0, len(g.FullDay)+len(g.Timed))
	out = append(out, g.FullDay...)
	return append(out, g.Timed...)
}

// AggregationResult is the immutable snapshot produced by one run.
type AggregationResult struct {
	RunID         string         `json:"run_id"`
	GeneratedAt   time.Time      `json:"generated_at"`
	Events        []Event        `json:"events"`
	Days          []DayGroup     `json:"days"`
	Outcomes      []FetchOutcome `json:"outcomes"`
	TotalFetched  int            `json:"total_fetched"`
	StatusSummary string         `json:"status_summary"`
}

// SucceededSources counts outcomes with Success set.
func (r *AggregationResult) SucceededSources() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.Success {
			n++
		}
	}
	return n
}
