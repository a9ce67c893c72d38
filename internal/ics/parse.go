package ics

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "feedcal/internal/log"
)

var calendarMarker = []byte("BEGIN:VCALENDAR")

// icsDurationPattern matches dur-value from RFC 5545 section 3.3.6.
var icsDurationPattern = regexp.MustCompile(`^([+-]?)P(?:(\d+)W)?(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

var (
	errMissingStart = errors.New("missing DTSTART")
	errEmptyItem    = errors.New("missing SUMMARY and DTSTART")
)

// Item is the normalized representation of a VEVENT as produced by the
// parser. Recurrence expansion operates on this type.
type Item struct {
	UID string

	Summary     string
	Description string
	Location    string

	Start time.Time
	End   time.Time // zero when the VEVENT has no DTEND
	// AllDay is set when DTSTART is a DATE value rather than a DATE-TIME.
	AllDay bool

	RawRRule   string
	ExDates    []time.Time
	Recurrence *time.Time // RECURRENCE-ID (if present) in event's own timezone
	IsOverride bool       // true if this VEVENT is an override for a recurring instance
}

// LooksLikeCalendar reports whether body carries the VCALENDAR marker.
func LooksLikeCalendar(body []byte) bool {
	if bytes.Contains(body, calendarMarker) {
		return true
	}
	return bytes.Contains(bytes.ToUpper(body), calendarMarker)
}

// ParseCalendar parses a single ICS payload into a list of Items.
//
// A payload the library rejects as a whole returns an error. Individual
// VEVENTs that cannot be used are skipped and counted instead; recurrences
// are recorded but not expanded (see ExpandItems).
func ParseCalendar(body []byte) ([]Item, int, error) {
	if len(body) == 0 {
		return nil, 0, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return parseEventBlocks(body, err)
	}

	items := make([]Item, 0)
	skipped := 0
	for _, comp := range cal.Events() {
		it, ok := convertVEvent(comp)
		if !ok {
			skipped++
			continue
		}
		items = append(items, it)
	}

	return items, skipped, nil
}

func convertVEvent(ve *ical.VEvent) (Item, bool) {
	it, err := parseVEvent(ve)
	if err != nil {
		if !errors.Is(err, errEmptyItem) {
			appLog.Debug("ics vevent skipped", "reason", err.Error(), "uid", it.UID)
		}
		return it, false
	}
	return it, true
}

// parseEventBlocks is the fallback for documents golang-ical rejects as a
// whole. Each VEVENT block is parsed in its own minimal VCALENDAR, with
// every VTIMEZONE of the document carried along, so a broken content line
// only costs the block it sits in. docErr is returned when no block could
// be recovered.
func parseEventBlocks(body []byte, docErr error) ([]Item, int, error) {
	timezones, events := splitComponents(body)
	if len(events) == 0 {
		return nil, 0, docErr
	}

	items := make([]Item, 0, len(events))
	skipped := 0
	for _, block := range events {
		var doc strings.Builder
		doc.WriteString("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nPRODID:-//feedcal//recovered//EN\r\n")
		for _, tz := range timezones {
			doc.WriteString(tz)
		}
		doc.WriteString(block)
		doc.WriteString("END:VCALENDAR\r\n")

		cal, err := ical.ParseCalendar(strings.NewReader(doc.String()))
		if err != nil {
			skipped++
			appLog.Debug("ics vevent skipped", "reason", err.Error())
			continue
		}
		for _, comp := range cal.Events() {
			it, ok := convertVEvent(comp)
			if !ok {
				skipped++
				continue
			}
			items = append(items, it)
		}
	}

	if len(items) == 0 {
		return nil, 0, docErr
	}
	appLog.Debug("ics document recovered per event", "items", len(items), "skipped", skipped, "cause", docErr.Error())
	return items, skipped, nil
}

// splitComponents returns the complete VTIMEZONE and VEVENT blocks of body
// as CRLF-terminated text. Unterminated blocks are dropped.
func splitComponents(body []byte) (timezones, events []string) {
	var (
		current []string
		endTag  string
	)
	for _, line := range strings.Split(string(body), "\n") {
		line = strings.TrimRight(line, "\r")
		tag := strings.ToUpper(strings.TrimSpace(line))

		if endTag == "" {
			switch tag {
			case "BEGIN:VEVENT":
				endTag = "END:VEVENT"
			case "BEGIN:VTIMEZONE":
				endTag = "END:VTIMEZONE"
			default:
				continue
			}
			current = []string{line}
			continue
		}

		current = append(current, line)
		if tag != endTag {
			continue
		}
		block := strings.Join(current, "\r\n") + "\r\n"
		if endTag == "END:VEVENT" {
			events = append(events, block)
		} else {
			timezones = append(timezones, block)
		}
		current, endTag = nil, ""
	}
	return timezones, events
}

func parseVEvent(ve *ical.VEvent) (Item, error) {
	var out Item

	if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
		out.UID = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = strings.TrimSpace(p.Value)
	}
	if p := ve.GetProperty(ical.ComponentPropertyDescription); p != nil {
		out.Description = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	dtStartProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if dtStartProp == nil || strings.TrimSpace(dtStartProp.Value) == "" {
		if out.Summary == "" {
			return out, errEmptyItem
		}
		return out, errMissingStart
	}

	start, err := ve.GetStartAt()
	if err != nil {
		return out, err
	}
	out.Start = start

	// VALUE=DATE or no 'T' in the value -> all-day
	if params := dtStartProp.ICalParameters; params != nil {
		if vs, ok := params["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
			out.AllDay = true
		}
	}
	if !strings.Contains(dtStartProp.Value, "T") {
		out.AllDay = true
	}

	if ve.GetProperty(ical.ComponentPropertyDtEnd) != nil {
		end, err := ve.GetEndAt()
		if err != nil {
			return out, err
		}
		if end.Before(out.Start) {
			return out, errors.New("DTEND before DTSTART")
		}
		out.End = end
	} else if p := ve.GetProperty(ical.ComponentPropertyDuration); p != nil {
		end, err := addICSDuration(out.Start, p.Value)
		if err != nil {
			return out, err
		}
		out.End = end
	} else if out.AllDay {
		// RFC 5545: a DATE start without DTEND lasts one day.
		out.End = out.Start.AddDate(0, 0, 1)
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	// EXDATE can appear multiple times, each with a comma separated list.
	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		tzid := ""
		if tzs, ok := p.ICalParameters["TZID"]; ok && len(tzs) > 0 {
			tzid = tzs[0]
		}
		for _, part := range strings.Split(p.Value, ",") {
			part = strings.TrimSpace(part)
			if part == "" {
				continue
			}
			if t, err := parseICSTime(part, tzid, out.Start.Location()); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	if ridProp := ve.GetProperty("RECURRENCE-ID"); ridProp != nil {
		tzid := ""
		if tzs, ok := ridProp.ICalParameters["TZID"]; ok && len(tzs) > 0 {
			tzid = tzs[0]
		}
		if t, err := parseICSTime(ridProp.Value, tzid, out.Start.Location()); err == nil {
			out.Recurrence = &t
			out.IsOverride = true
		}
	}

	return out, nil
}

// addICSDuration returns start shifted by an RFC 5545 DURATION value such
// as P1D, PT1H30M or P2W. Weeks and days are nominal (calendar days in
// start's zone); negative durations are rejected.
func addICSDuration(start time.Time, v string) (time.Time, error) {
	m := icsDurationPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(v)))
	if m == nil || m[0] == "P" || m[0] == "+P" || strings.HasSuffix(m[0], "T") {
		return time.Time{}, fmt.Errorf("invalid DURATION %q", v)
	}
	if m[1] == "-" {
		return time.Time{}, fmt.Errorf("negative DURATION %q", v)
	}

	n := func(s string) int {
		if s == "" {
			return 0
		}
		i, _ := strconv.Atoi(s)
		return i
	}
	weeks, days := n(m[2]), n(m[3])
	clock := time.Duration(n(m[4]))*time.Hour +
		time.Duration(n(m[5]))*time.Minute +
		time.Duration(n(m[6]))*time.Second

	return start.AddDate(0, 0, weeks*7+days).Add(clock), nil
}

// parseICSTime parses a basic ICS date/date-time string for EXDATE and
// RECURRENCE-ID. Floating values use TZID when it resolves, else fallback.
func parseICSTime(v, tzid string, fallback *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	if v == "" {
		return time.Time{}, errors.New("empty time value")
	}

	loc := fallback
	if loc == nil {
		loc = time.Local
	}
	if tzid != "" {
		if l, err := time.LoadLocation(tzid); err == nil {
			loc = l
		}
	}

	// UTC form, e.g., 20250101T090000Z
	if strings.HasSuffix(v, "Z") {
		return time.Parse("20060102T150405Z", v)
	}

	// Local date-time, e.g., 20250101T090000
	if strings.Contains(v, "T") {
		return time.ParseInLocation("20060102T150405", v, loc)
	}

	// Date-only (all-day), e.g., 20250101
	return time.ParseInLocation("20060102", v, loc)
}
