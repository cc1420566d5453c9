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

	appLog "coursecal/internal/log"
)

// ParsedEvent is a VEVENT read back from a generated calendar. Recurrences
// are kept as raw RRULE/EXDATE data and expanded in expand.go.
type ParsedEvent struct {
	UID string

	Summary  string
	Location string

	Start time.Time
	End   time.Time
	TZID  string

	RawRRule string
	ExDates  []time.Time

	ReminderMinutes int
	ReminderText    string
}

// Parse reads an ICS payload. Times without a TZID (or with an unknown one)
// are interpreted in defaultLoc. Events that fail to parse are logged and
// skipped.
func Parse(body []byte, defaultLoc *time.Location) ([]ParsedEvent, error) {
	if len(body) == 0 {
		return nil, errors.New("ics: empty body")
	}
	if defaultLoc == nil {
		defaultLoc = time.Local
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("ics: parse: %w", err)
	}

	events := make([]ParsedEvent, 0)
	for _, comp := range cal.Events() {
		ev, perr := parseVEvent(comp, defaultLoc)
		if perr != nil {
			appLog.Error("ics vevent parse failed", perr)
			continue
		}
		events = append(events, ev)
	}

	appLog.Debug("ics parse completed", "event_count", len(events))
	return events, nil
}

func parseVEvent(ve *ical.VEvent, defaultLoc *time.Location) (ParsedEvent, error) {
	var out ParsedEvent

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.UID = uidProp.Value

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Summary = p.Value
	}
	if p := ve.GetProperty(ical.ComponentPropertyLocation); p != nil {
		out.Location = p.Value
	}

	startProp := ve.GetProperty(ical.ComponentPropertyDtStart)
	if startProp == nil {
		return out, fmt.Errorf("%s: missing DTSTART", out.UID)
	}
	start, tzid, err := parseTimeProp(startProp, defaultLoc)
	if err != nil {
		return out, fmt.Errorf("%s: DTSTART: %w", out.UID, err)
	}
	out.Start, out.TZID = start, tzid

	out.End = start
	if endProp := ve.GetProperty(ical.ComponentPropertyDtEnd); endProp != nil {
		if out.End, _, err = parseTimeProp(endProp, defaultLoc); err != nil {
			return out, fmt.Errorf("%s: DTEND: %w", out.UID, err)
		}
	}

	if p := ve.GetProperty(ical.ComponentPropertyRrule); p != nil {
		out.RawRRule = p.Value
	}

	for _, p := range ve.GetProperties(ical.ComponentPropertyExdate) {
		loc := locationOf(p, defaultLoc)
		for _, part := range strings.Split(p.Value, ",") {
			if t, err := parseICSTime(part, loc); err == nil {
				out.ExDates = append(out.ExDates, t)
			}
		}
	}

	for _, comp := range ve.Components {
		alarm, ok := comp.(*ical.VAlarm)
		if !ok {
			continue
		}
		if p := alarm.GetProperty(ical.ComponentPropertyTrigger); p != nil {
			if m, err := parseTrigger(p.Value); err == nil {
				out.ReminderMinutes = m
			}
		}
		if p := alarm.GetProperty(ical.ComponentPropertyDescription); p != nil {
			out.ReminderText = p.Value
		}
		break
	}

	return out, nil
}

func parseTimeProp(p *ical.IANAProperty, defaultLoc *time.Location) (time.Time, string, error) {
	t, err := parseICSTime(p.Value, locationOf(p, defaultLoc))
	return t, tzidOf(p), err
}

func tzidOf(p *ical.IANAProperty) string {
	if tzs, ok := p.ICalParameters[string(ical.ParameterTzid)]; ok && len(tzs) > 0 {
		return tzs[0]
	}
	return ""
}

func locationOf(p *ical.IANAProperty, defaultLoc *time.Location) *time.Location {
	tz := tzidOf(p)
	if tz == "" {
		return defaultLoc
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		appLog.Warn("ics unknown TZID", "tzid", tz)
		return defaultLoc
	}
	return loc
}

// parseICSTime parses the DATE-TIME forms found in generated calendars:
// UTC (trailing Z), local with TZID, and bare dates.
func parseICSTime(v string, loc *time.Location) (time.Time, error) {
	v = strings.TrimSpace(v)
	switch {
	case v == "":
		return time.Time{}, errors.New("empty time value")
	case strings.HasSuffix(v, "Z"):
		return time.Parse("20060102T150405Z", v)
	case strings.Contains(v, "T"):
		return time.ParseInLocation("20060102T150405", v, loc)
	default:
		return time.ParseInLocation("20060102", v, loc)
	}
}

var triggerRe = regexp.MustCompile(`^-?PT(?:(\d+)H)?(?:(\d+)M)?$`)

// parseTrigger returns the lead time in minutes of a relative trigger such
// as -PT30M or -PT1H15M.
func parseTrigger(v string) (int, error) {
	m := triggerRe.FindStringSubmatch(strings.TrimSpace(v))
	if m == nil || (m[1] == "" && m[2] == "") {
		return 0, fmt.Errorf("unsupported trigger %q", v)
	}
	var minutes int
	if m[1] != "" {
		h, _ := strconv.Atoi(m[1])
		minutes += h * 60
	}
	if m[2] != "" {
		n, _ := strconv.Atoi(m[2])
		minutes += n
	}
	return minutes, nil
}
