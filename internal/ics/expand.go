package ics

import (
	"errors"
	"time"

	"github.com/teambition/rrule-go"

	appLog "feedcal/internal/log"
)

const (
	defaultMaxOccurrencesPerEvent = 5000
)

// ExpandConfig controls how recurrence expansion is performed.
type ExpandConfig struct {
	// RangeStart / RangeEnd bound the occurrences generated from RRULEs.
	// An occurrence is kept when its span overlaps the range.
	RangeStart time.Time
	RangeEnd   time.Time

	// MaxOccurrencesPerEvent is a safety cap to avoid infinite or extremely
	// large expansions. If zero, defaultMaxOccurrencesPerEvent is used.
	MaxOccurrencesPerEvent int
}

// ExpandResult wraps the list of expanded occurrences and information about
// truncation.
type ExpandResult struct {
	Occurrences []Item
	// TruncatedEvents records UIDs that hit the MaxOccurrencesPerEvent cap.
	TruncatedEvents []string
}

// ExpandItems turns parsed items into concrete occurrences.
//
// Non-recurring items pass through untouched (range filtering is left to
// the caller). RRULE items are expanded within the range with EXDATE
// removal and RECURRENCE-ID overrides applied. The returned items never
// carry RawRRule.
func ExpandItems(items []Item, cfg ExpandConfig) (ExpandResult, error) {
	var result ExpandResult

	if cfg.RangeEnd.Before(cfg.RangeStart) {
		return result, errors.New("expand: RangeEnd is before RangeStart")
	}
	if cfg.MaxOccurrencesPerEvent <= 0 {
		cfg.MaxOccurrencesPerEvent = defaultMaxOccurrencesPerEvent
	}

	// Overrides only matter for recurring bases sharing their UID.
	overridesByUID := make(map[string][]Item)
	recurringUIDs := make(map[string]bool)
	for _, it := range items {
		if it.IsOverride && it.Recurrence != nil {
			overridesByUID[it.UID] = append(overridesByUID[it.UID], it)
		} else if it.RawRRule != "" && it.UID != "" {
			recurringUIDs[it.UID] = true
		}
	}

	out := make([]Item, 0, len(items))
	for _, it := range items {
		if it.IsOverride && it.Recurrence != nil {
			// Orphaned overrides (no recurring base) stand on their own.
			if !recurringUIDs[it.UID] {
				out = append(out, clearRecurrence(it))
			}
			continue
		}
		if it.RawRRule == "" {
			out = append(out, it)
			continue
		}

		occ, hitCap := expandRecurring(it, overridesByUID[it.UID], cfg)
		out = append(out, occ...)
		if hitCap {
			result.TruncatedEvents = append(result.TruncatedEvents, it.UID)
			appLog.Error("expand: truncated occurrences for UID due to cap",
				errors.New("max occurrences reached"),
				"uid", it.UID,
				"cap", cfg.MaxOccurrencesPerEvent,
			)
		}
	}

	result.Occurrences = out
	return result, nil
}

func expandRecurring(it Item, overrides []Item, cfg ExpandConfig) ([]Item, bool) {
	out := make([]Item, 0)

	r, err := rrule.StrToRRule(it.RawRRule)
	if err != nil {
		// Fall back to the single base instance rather than losing the item.
		appLog.Debug("expand: failed to parse RRULE", "uid", it.UID, "rrule", it.RawRRule, "err", err.Error())
		return []Item{clearRecurrence(it)}, false
	}
	r.DTStart(it.Start)

	var set rrule.Set
	set.RRule(r)
	for _, ex := range it.ExDates {
		set.ExDate(ex.In(it.Start.Location()))
	}

	dur := it.End.Sub(it.Start)
	if it.End.IsZero() {
		dur = 0
	}

	// Widen the lower bound by the duration so occurrences that started
	// before the range but are still running are kept.
	rangeStart := cfg.RangeStart.Add(-dur).In(it.Start.Location())
	rangeEnd := cfg.RangeEnd.In(it.Start.Location())

	occTimes := set.Between(rangeStart, rangeEnd, true)

	hitCap := false
	if len(occTimes) > cfg.MaxOccurrencesPerEvent {
		occTimes = occTimes[:cfg.MaxOccurrencesPerEvent]
		hitCap = true
	}

	for _, occStart := range occTimes {
		occ := clearRecurrence(it)
		if it.AllDay {
			occStart = time.Date(occStart.Year(), occStart.Month(), occStart.Day(), 0, 0, 0, 0, occStart.Location())
		}
		occ.Start = occStart
		if !it.End.IsZero() {
			occ.End = occStart.Add(dur)
		}

		if o, ok := findOverrideForStart(overrides, occStart); ok {
			occ = clearRecurrence(o)
		}
		out = append(out, occ)
	}

	return out, hitCap
}

// findOverrideForStart finds an override whose RECURRENCE-ID matches the
// given occurrence start with exact time equality.
func findOverrideForStart(overrides []Item, occStart time.Time) (Item, bool) {
	for _, ov := range overrides {
		if ov.Recurrence == nil {
			continue
		}
		if ov.Recurrence.Equal(occStart) {
			return ov, true
		}
	}
	return Item{}, false
}

func clearRecurrence(it Item) Item {
	it.RawRRule = ""
	it.ExDates = nil
	it.Recurrence = nil
	it.IsOverride = false
	return it
}
