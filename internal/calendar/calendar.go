// Package calendar collects dated events and serializes them as iCalendar.
package calendar

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
	_ "time/tzdata"

	ics "github.com/arran4/golang-ical"

	appLog "coursecal/internal/log"
	"coursecal/internal/model"
)

const (
	localLayout = "20060102T150405"
	utcLayout   = "20060102T150405Z"
	productID   = "-//coursecal//timetable//CN"
)

var ErrBadName = errors.New("calendar: invalid name")

// Collection is an ordered list of events belonging to one calendar.
// Events keep insertion order and are never deduplicated.
type Collection struct {
	name   string
	tzid   string
	events []model.DatedEvent
}

// New returns an empty collection. tzid qualifies every DTSTART/DTEND.
func New(name, tzid string) *Collection {
	return &Collection{name: name, tzid: tzid}
}

func (c *Collection) Name() string { return c.name }

func (c *Collection) Len() int { return len(c.events) }

// Add appends ev.
func (c *Collection) Add(ev model.DatedEvent) {
	c.events = append(c.events, ev)
}

// Events returns a copy of the collected events in insertion order.
func (c *Collection) Events() []model.DatedEvent {
	out := make([]model.DatedEvent, len(c.events))
	copy(out, c.events)
	return out
}

// Render serializes the collection: a VCALENDAR header, then one VEVENT
// with exactly one VALARM per event, in insertion order.
func (c *Collection) Render() (string, error) {
	loc, err := time.LoadLocation(c.tzid)
	if err != nil {
		return "", fmt.Errorf("calendar: timezone %q: %w", c.tzid, err)
	}

	cal := ics.NewCalendar()
	cal.SetMethod(ics.MethodPublish)
	cal.SetProductId(productID)
	cal.SetXWRCalName(c.name)
	cal.SetXWRTimezone(c.tzid)

	for _, ev := range c.events {
		c.addEvent(cal, ev, loc)
	}
	return cal.Serialize(), nil
}

func (c *Collection) addEvent(cal *ics.Calendar, ev model.DatedEvent, loc *time.Location) {
	tz := &ics.KeyValues{Key: string(ics.ParameterTzid), Value: []string{c.tzid}}

	e := cal.AddEvent(ev.UID)
	e.SetSummary(ev.Summary)
	e.SetCreatedTime(ev.Created)
	e.SetProperty(ics.ComponentPropertyDtStart, ev.Start.In(loc).Format(localLayout), tz)
	e.SetDtStampTime(ev.Created)
	e.SetProperty(ics.ComponentPropertyDtEnd, ev.End.In(loc).Format(localLayout), tz)
	e.SetProperty(ics.ComponentPropertySequence, "0")
	e.SetModifiedAt(ev.Created)
	e.SetLocation(ev.Location)

	if r := ev.Recurrence; r != nil {
		e.AddRrule(rruleValue(r))
		for _, ex := range r.ExDates {
			e.AddProperty(ics.ComponentPropertyExdate, ex.In(loc).Format(localLayout), tz)
		}
	}

	alarm := e.AddAlarm()
	alarm.SetAction(ics.ActionDisplay)
	alarm.SetTrigger(fmt.Sprintf("-PT%dM", ev.ReminderMinutes))
	alarm.SetProperty(ics.ComponentPropertyDescription, ev.ReminderText)
}

// rruleValue renders FREQ=WEEKLY;UNTIL=...[;INTERVAL=n]. UNTIL is in UTC,
// as required when DTSTART carries a TZID.
func rruleValue(r *model.Recurrence) string {
	var b strings.Builder
	b.WriteString("FREQ=WEEKLY;UNTIL=")
	b.WriteString(r.Until.UTC().Format(utcLayout))
	if r.Interval > 1 {
		fmt.Fprintf(&b, ";INTERVAL=%d", r.Interval)
	}
	return b.String()
}

// Persist writes Render() to <dir>/<name>.ics via a temp file and rename,
// returning the final path.
func (c *Collection) Persist(dir string) (string, error) {
	if c.name == "" || strings.ContainsAny(c.name, `/\`) {
		return "", fmt.Errorf("%w: %q", ErrBadName, c.name)
	}
	body, err := c.Render()
	if err != nil {
		return "", err
	}
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("calendar: create %s: %w", dir, err)
	}

	path := filepath.Join(dir, c.name+".ics")
	tmp, err := os.CreateTemp(dir, ".coursecal-*.ics")
	if err != nil {
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.WriteString(body); err != nil {
		tmp.Close()
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		return "", fmt.Errorf("calendar: write %s: %w", path, err)
	}

	appLog.Info("calendar written", "path", path, "events", len(c.events))
	return path, nil
}
