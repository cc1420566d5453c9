// Package period maps class period indices to clock times.
package period

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrUnknownPeriod is returned when a period index has no start or end time.
var ErrUnknownPeriod = errors.New("period: no time for period")

// Clock is a time of day with minute precision.
type Clock struct {
	Hour   int
	Minute int
}

// ParseClock parses "HH:MM".
func ParseClock(s string) (Clock, error) {
	h, m, ok := strings.Cut(strings.TrimSpace(s), ":")
	if !ok {
		return Clock{}, fmt.Errorf("period: invalid clock %q", s)
	}
	hour, err := strconv.Atoi(h)
	if err != nil || hour < 0 || hour > 23 {
		return Clock{}, fmt.Errorf("period: invalid hour in %q", s)
	}
	minute, err := strconv.Atoi(m)
	if err != nil || minute < 0 || minute > 59 {
		return Clock{}, fmt.Errorf("period: invalid minute in %q", s)
	}
	return Clock{Hour: hour, Minute: minute}, nil
}

func (c Clock) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On returns the instant at clock c on the calendar date of day, in day's location.
func (c Clock) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Table holds two independent mappings: period -> start and period -> end.
// It is immutable after construction.
type Table struct {
	starts map[int]Clock
	ends   map[int]Clock
}

// Entry is one configured period.
type Entry struct {
	Index int
	Start Clock
	End   Clock
}

// NewTable builds a table from entries. Duplicate indices are rejected.
func NewTable(entries []Entry) (*Table, error) {
	t := &Table{
		starts: make(map[int]Clock, len(entries)),
		ends:   make(map[int]Clock, len(entries)),
	}
	for _, e := range entries {
		if e.Index < 1 {
			return nil, fmt.Errorf("period: index %d must be positive", e.Index)
		}
		if _, dup := t.starts[e.Index]; dup {
			return nil, fmt.Errorf("period: duplicate index %d", e.Index)
		}
		if !after(e.End, e.Start) {
			return nil, fmt.Errorf("period: %d ends (%s) before it starts (%s)", e.Index, e.End, e.Start)
		}
		t.starts[e.Index] = e.Start
		t.ends[e.Index] = e.End
	}
	return t, nil
}

// Default is the standard eleven-period day.
func Default() *Table {
	t, _ := NewTable(DefaultEntries())
	return t
}

// DefaultEntries returns the built-in period times.
func DefaultEntries() []Entry {
	return []Entry{
		{1, Clock{8, 0}, Clock{8, 50}},
		{2, Clock{9, 0}, Clock{9, 50}},
		{3, Clock{10, 20}, Clock{11, 10}},
		{4, Clock{11, 20}, Clock{12, 10}},
		{5, Clock{14, 0}, Clock{14, 50}},
		{6, Clock{15, 0}, Clock{15, 50}},
		{7, Clock{16, 20}, Clock{17, 10}},
		{8, Clock{17, 20}, Clock{18, 10}},
		{9, Clock{19, 0}, Clock{19, 50}},
		{10, Clock{20, 0}, Clock{20, 50}},
		{11, Clock{21, 0}, Clock{21, 50}},
	}
}

// Start returns the start time of period p.
func (t *Table) Start(p int) (Clock, error) {
	c, ok := t.starts[p]
	if !ok {
		return Clock{}, fmt.Errorf("%w %d (start)", ErrUnknownPeriod, p)
	}
	return c, nil
}

// End returns the end time of period p.
func (t *Table) End(p int) (Clock, error) {
	c, ok := t.ends[p]
	if !ok {
		return Clock{}, fmt.Errorf("%w %d (end)", ErrUnknownPeriod, p)
	}
	return c, nil
}

// Span resolves the start of the first and the end of the last period.
func (t *Table) Span(first, last int) (Clock, Clock, error) {
	start, err := t.Start(first)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	end, err := t.End(last)
	if err != nil {
		return Clock{}, Clock{}, err
	}
	if !after(end, start) {
		return Clock{}, Clock{}, fmt.Errorf("period: range %d-%d ends before it starts", first, last)
	}
	return start, end, nil
}

func after(a, b Clock) bool {
	return a.Hour*60+a.Minute > b.Hour*60+b.Minute
}
