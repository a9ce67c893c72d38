package agenda

import (
	"fmt"
	"time"

	"feedcal/internal/model"
)

const (
	DefaultEndOffsetDays    = 7
	DefaultMaxEntries       = 20
	DefaultPerSourceTimeout = 10 * time.Second
)

// Policy is one pluggable pipeline stage. Any of the hooks may be nil.
// Stages run in a fixed order: every Filter, then sorting (the last
// non-nil Compare replaces the default start-time order), then every Map.
// Map must not change Start or FullDay; grouping relies on them.
type Policy struct {
	Name    string
	Filter  func(model.Event) bool
	Compare func(a, b model.Event) int
	Map     func(model.Event) model.Event
}

// Options configures one aggregation run.
type Options struct {
	// StartOffsetDays / EndOffsetDays are relative to the start of today.
	StartOffsetDays int
	EndOffsetDays   int

	// MaxEntries caps the returned event list. Zero selects DefaultMaxEntries.
	MaxEntries int

	// PerSourceTimeout is the hard deadline of a single fetch. Zero selects
	// DefaultPerSourceTimeout.
	PerSourceTimeout time.Duration

	// IncludeRecentPastTimed widens the lower bound for timed events from
	// now to RecentPast before now (or to the window start when RecentPast
	// is zero).
	IncludeRecentPastTimed bool
	RecentPast             time.Duration

	// MaxOccurrencesPerEvent bounds RRULE expansion per event.
	MaxOccurrencesPerEvent int

	Policies []Policy
}

// DefaultOptions returns the options used when nothing is configured.
func DefaultOptions() Options {
	return Options{
		EndOffsetDays:    DefaultEndOffsetDays,
		MaxEntries:       DefaultMaxEntries,
		PerSourceTimeout: DefaultPerSourceTimeout,
	}
}

// validate rejects caller misuse and fills zero values.
func (o Options) validate() (Options, error) {
	if o.PerSourceTimeout < 0 {
		return o, newSourceError(KindConfig, 0, fmt.Errorf("negative per-source timeout %s", o.PerSourceTimeout))
	}
	if o.MaxEntries < 0 {
		return o, newSourceError(KindConfig, 0, fmt.Errorf("negative max entries %d", o.MaxEntries))
	}
	if o.RecentPast < 0 {
		return o, newSourceError(KindConfig, 0, fmt.Errorf("negative recent-past window %s", o.RecentPast))
	}
	if o.PerSourceTimeout == 0 {
		o.PerSourceTimeout = DefaultPerSourceTimeout
	}
	if o.MaxEntries == 0 {
		o.MaxEntries = DefaultMaxEntries
	}
	return o, nil
}
