package agenda

import (
	"time"

	"feedcal/internal/ics"
	"feedcal/internal/model"
)

const untitledSummary = "Untitled Event"

// NormalizeConfig carries what the normalizer needs besides the document.
type NormalizeConfig struct {
	// Location is the display timezone events are converted into.
	Location *time.Location
	// HorizonStart / HorizonEnd bound RRULE expansion.
	HorizonStart time.Time
	HorizonEnd   time.Time

	MaxOccurrencesPerEvent int
}

// Normalized is the output of normalizing one document.
type Normalized struct {
	Events    []model.Event
	Skipped   int
	Truncated []string
}

// Normalize parses doc and converts every usable item into an Event tagged
// with doc.Source. Unusable items are counted in Skipped; only a document
// the parser rejects as a whole produces an error (of kind FormatError).
func Normalize(doc model.RawDocument, cfg NormalizeConfig) (Normalized, error) {
	loc := cfg.Location
	if loc == nil {
		loc = time.Local
	}

	items, skipped, err := ics.ParseCalendar(doc.Text)
	if err != nil {
		return Normalized{}, newSourceError(KindFormat, 0, err)
	}

	horizonEnd := cfg.HorizonEnd
	if horizonEnd.Before(cfg.HorizonStart) {
		horizonEnd = cfg.HorizonStart
	}
	expanded, err := ics.ExpandItems(items, ics.ExpandConfig{
		RangeStart:             cfg.HorizonStart,
		RangeEnd:               horizonEnd,
		MaxOccurrencesPerEvent: cfg.MaxOccurrencesPerEvent,
	})
	if err != nil {
		return Normalized{}, newSourceError(KindFormat, 0, err)
	}

	out := Normalized{
		Events:    make([]model.Event, 0, len(expanded.Occurrences)),
		Skipped:   skipped,
		Truncated: expanded.TruncatedEvents,
	}
	for _, it := range expanded.Occurrences {
		out.Events = append(out.Events, toEvent(it, doc.Source, loc))
	}
	return out, nil
}

func toEvent(it ics.Item, src model.CalendarSource, loc *time.Location) model.Event {
	start := it.Start.In(loc)
	end := time.Time{}
	if !it.End.IsZero() {
		end = it.End.In(loc)
	}

	// DATE values name a calendar day, not an instant; anchor them to
	// midnight in the display zone.
	if it.AllDay {
		start = anchorDate(it.Start, loc)
		if !it.End.IsZero() {
			end = anchorDate(it.End, loc)
		}
	}

	summary := it.Summary
	if summary == "" {
		summary = untitledSummary
	}

	return model.Event{
		Summary:     summary,
		Start:       start,
		End:         end,
		Description: it.Description,
		Location:    it.Location,
		SourceName:  src.DisplayName(),
		Color:       src.DisplayColor(),
		Symbol:      src.Symbol,
		FullDay:     model.ClassifyFullDay(it.AllDay, start, end),
	}
}

func anchorDate(t time.Time, loc *time.Location) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, loc)
}
