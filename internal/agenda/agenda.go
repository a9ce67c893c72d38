// Package agenda merges several ICS feeds into one windowed, sorted and
// day-grouped event list together with a per-source status report.
//
// A run is strictly fan-out, fan-in, then aggregate: every source is
// fetched in its own goroutine, the run waits for all of them to settle
// (or time out), and only then normalizes, filters and sorts.
package agenda

import (
	"context"
	"time"

	"github.com/google/uuid"

	"feedcal/internal/clock"
	appLog "feedcal/internal/log"
	"feedcal/internal/model"
)

// Recorder receives per-run observations. internal/metrics implements it.
type Recorder interface {
	ObserveFetch(source string, result string, elapsed time.Duration)
	ObserveRun(res *model.AggregationResult)
}

// Aggregator runs aggregation cycles. It holds no per-run state, so
// consecutive runs are independent.
type Aggregator struct {
	fetcher  DocumentFetcher
	clock    clock.Clock
	location *time.Location
	recorder Recorder
}

// Option customizes an Aggregator.
type Option func(*Aggregator)

// WithClock overrides the system clock.
func WithClock(c clock.Clock) Option {
	return func(a *Aggregator) {
		if c != nil {
			a.clock = c
		}
	}
}

// WithLocation sets the display timezone used for day boundaries.
func WithLocation(loc *time.Location) Option {
	return func(a *Aggregator) {
		if loc != nil {
			a.location = loc
		}
	}
}

// WithRecorder attaches a metrics recorder.
func WithRecorder(r Recorder) Option {
	return func(a *Aggregator) {
		a.recorder = r
	}
}

// New creates an Aggregator that fetches documents through fetcher.
func New(fetcher DocumentFetcher, opts ...Option) *Aggregator {
	a := &Aggregator{
		fetcher:  fetcher,
		clock:    clock.NewSystem(),
		location: time.Local,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// FetchAll runs one aggregation over sources.
//
// The returned error is reserved for caller misuse (negative timeout or
// entry cap) and is reported before any fetch starts. Source failures are
// reported through the result's Outcomes and StatusSummary.
func (a *Aggregator) FetchAll(ctx context.Context, sources []model.CalendarSource, opts Options) (*model.AggregationResult, error) {
	opts, err := opts.validate()
	if err != nil {
		return nil, err
	}

	runID := uuid.NewString()
	now := a.clock.Now().In(a.location)

	if len(sources) == 0 {
		appLog.Info("aggregation skipped", "run_id", runID, "reason", ErrNoSources.Error())
		res := buildResult(runID, now, []model.Event{}, []model.DayGroup{}, []model.FetchOutcome{}, 0)
		a.observeRun(res)
		return res, nil
	}

	window := NewWindow(now, a.location, opts)
	appLog.Debug("aggregation start",
		"run_id", runID,
		"sources", len(sources),
		"window_start", window.Start.Format(time.RFC3339),
		"window_end", window.End.Format(time.RFC3339),
	)

	slots := a.fetchSources(ctx, sources, opts.PerSourceTimeout)

	// Everything below runs after the join, in this goroutine only.
	ncfg := NormalizeConfig{
		Location:               a.location,
		HorizonStart:           earliest(window.Start, window.TimedFrom),
		HorizonEnd:             window.End,
		MaxOccurrencesPerEvent: opts.MaxOccurrencesPerEvent,
	}

	merged := make([]model.Event, 0)
	outcomes := make([]model.FetchOutcome, 0, len(sources))
	for i, slot := range slots {
		src := sources[i]
		if slot.err != nil {
			outcomes = append(outcomes, failureOutcome(src, slot.err, slot.elapsed))
			continue
		}

		n, err := Normalize(slot.doc, ncfg)
		if err != nil {
			appLog.Error("source parse failed", err, "run_id", runID, "source", src.DisplayName())
			outcomes = append(outcomes, failureOutcome(src, err, slot.elapsed))
			continue
		}
		if n.Skipped > 0 {
			appLog.Debug("source items skipped",
				"run_id", runID,
				"source", src.DisplayName(),
				"kind", string(KindParse),
				"skipped", n.Skipped,
			)
		}
		if len(n.Truncated) > 0 {
			appLog.Info("source recurrences truncated", "run_id", runID, "source", src.DisplayName(), "uids", n.Truncated)
		}
		merged = append(merged, n.Events...)
		outcomes = append(outcomes, successOutcome(src, n, slot.elapsed))
	}

	events, days := Process(merged, window, opts)
	res := buildResult(runID, now, events, days, outcomes, len(merged))

	for _, o := range outcomes {
		a.observeFetch(o)
	}
	a.observeRun(res)

	appLog.Info("aggregation done",
		"run_id", runID,
		"status", res.StatusSummary,
		"kept", len(res.Events),
		"days", len(res.Days),
	)
	return res, nil
}

func (a *Aggregator) observeFetch(o model.FetchOutcome) {
	if a.recorder == nil {
		return
	}
	result := "ok"
	if !o.Success {
		result = o.ErrorKind
	}
	a.recorder.ObserveFetch(o.Source.DisplayName(), result, o.Elapsed)
}

func (a *Aggregator) observeRun(res *model.AggregationResult) {
	if a.recorder != nil {
		a.recorder.ObserveRun(res)
	}
}

func earliest(a, b time.Time) time.Time {
	if a.After(b) {
		return b
	}
	return a
}
