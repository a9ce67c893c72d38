package agenda

import (
	"errors"
	"fmt"
	"time"

	"feedcal/internal/model"
)

// Summary formats the status line of a run. total counts normalized events
// before window filtering and truncation.
func Summary(total, succeeded, configured int) string {
	if configured == 0 {
		return ErrNoSources.Error()
	}
	return fmt.Sprintf("Fetched %d events from %d/%d sources", total, succeeded, configured)
}

func successOutcome(src model.CalendarSource, n Normalized, elapsed time.Duration) model.FetchOutcome {
	return model.FetchOutcome{
		Source:               src,
		Success:              true,
		EventCount:           len(n.Events),
		SkippedItems:         n.Skipped,
		TruncatedRecurrences: n.Truncated,
		Elapsed:              elapsed,
	}
}

func failureOutcome(src model.CalendarSource, err error, elapsed time.Duration) model.FetchOutcome {
	o := model.FetchOutcome{
		Source:  src,
		Success: false,
		Error:   err.Error(),
		Elapsed: elapsed,
	}
	var se *SourceError
	if errors.As(err, &se) {
		o.ErrorKind = string(se.Kind)
		o.StatusCode = se.StatusCode
	}
	return o
}

// buildResult assembles the immutable snapshot of a run.
func buildResult(runID string, generatedAt time.Time, events []model.Event, days []model.DayGroup, outcomes []model.FetchOutcome, total int) *model.AggregationResult {
	res := &model.AggregationResult{
		RunID:        runID,
		GeneratedAt:  generatedAt,
		Events:       events,
		Days:         days,
		Outcomes:     outcomes,
		TotalFetched: total,
	}
	res.StatusSummary = Summary(total, res.SucceededSources(), len(outcomes))
	return res
}
