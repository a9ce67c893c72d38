// Package refresh drives aggregation runs on a cron schedule and keeps the
// latest result for readers.
package refresh

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"

	"feedcal/internal/agenda"
	appLog "feedcal/internal/log"
	"feedcal/internal/model"
)

// Runner is the aggregation entry point; *agenda.Aggregator satisfies it.
type Runner interface {
	FetchAll(ctx context.Context, sources []model.CalendarSource, opts agenda.Options) (*model.AggregationResult, error)
}

// Refresher serializes runs (scheduled and manual) and publishes each
// result as an immutable snapshot.
type Refresher struct {
	runner   Runner
	sources  []model.CalendarSource
	opts     agenda.Options
	location *time.Location

	runMu  sync.Mutex
	latest atomic.Pointer[model.AggregationResult]
}

// New creates a Refresher. sources and opts are copied and never modified.
func New(runner Runner, sources []model.CalendarSource, opts agenda.Options, loc *time.Location) *Refresher {
	if loc == nil {
		loc = time.Local
	}
	return &Refresher{
		runner:   runner,
		sources:  append([]model.CalendarSource(nil), sources...),
		opts:     opts,
		location: loc,
	}
}

// Run performs one aggregation, waiting for any run already in progress.
func (r *Refresher) Run(ctx context.Context) (*model.AggregationResult, error) {
	r.runMu.Lock()
	defer r.runMu.Unlock()

	res, err := r.runner.FetchAll(ctx, r.sources, r.opts)
	if err != nil {
		return nil, err
	}
	r.latest.Store(res)
	return res, nil
}

// Latest returns the most recent result, or nil before the first run.
func (r *Refresher) Latest() *model.AggregationResult {
	return r.latest.Load()
}

// Start runs once immediately, then on every tick of spec until ctx is
// cancelled. Ticks that arrive while a run is still going are skipped.
func (r *Refresher) Start(ctx context.Context, spec string) error {
	c := cron.New(
		cron.WithLocation(r.location),
		cron.WithLogger(cronLogger{}),
		cron.WithChain(cron.Recover(cronLogger{}), cron.SkipIfStillRunning(cronLogger{})),
	)

	if _, err := c.AddFunc(spec, func() { r.runLogged(ctx, "schedule") }); err != nil {
		return fmt.Errorf("refresh: invalid schedule %q: %w", spec, err)
	}

	r.runLogged(ctx, "startup")
	c.Start()
	appLog.Info("refresh scheduler started", "schedule", spec, "timezone", r.location.String())

	go func() {
		<-ctx.Done()
		stopCtx := c.Stop()
		<-stopCtx.Done()
		appLog.Info("refresh scheduler stopped")
	}()
	return nil
}

func (r *Refresher) runLogged(ctx context.Context, trigger string) {
	if ctx.Err() != nil {
		return
	}
	res, err := r.Run(ctx)
	if err != nil {
		appLog.Error("refresh run failed", err, "trigger", trigger)
		return
	}
	appLog.Info("refresh run completed", "trigger", trigger, "run_id", res.RunID, "status", res.StatusSummary)
}

// cronLogger routes cron's own messages into the application log.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	appLog.Debug("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	appLog.Error("cron: "+msg, err, keysAndValues...)
}
