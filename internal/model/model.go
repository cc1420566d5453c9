package model

import (
	"fmt"
	"time"
)

// Parity selects which weeks of a week range a course meets in.
type Parity int

const (
	EveryWeek Parity = iota
	OddWeeks
	EvenWeeks
)

func (p Parity) String() string {
	switch p {
	case OddWeeks:
		return "odd"
	case EvenWeeks:
		return "even"
	default:
		return "every"
	}
}

// Includes reports whether week w (1-based) is a meeting week under p.
func (p Parity) Includes(w int) bool {
	switch p {
	case OddWeeks:
		return w%2 == 1
	case EvenWeeks:
		return w%2 == 0
	default:
		return true
	}
}

// Interval is the weekly recurrence interval that reproduces p.
func (p Parity) Interval() int {
	if p == EveryWeek {
		return 1
	}
	return 2
}

// WeekRange is an inclusive range of 1-based term weeks.
type WeekRange struct {
	Start int
	End   int
}

func (r WeekRange) Valid() bool {
	return r.Start >= 1 && r.End >= r.Start
}

func (r WeekRange) String() string {
	if r.Start == r.End {
		return fmt.Sprintf("%d", r.Start)
	}
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// PeriodRange is an inclusive range of 1-based class periods.
type PeriodRange struct {
	Start int
	End   int
}

func (r PeriodRange) Valid() bool {
	return r.Start >= 1 && r.End >= r.Start
}

func (r PeriodRange) String() string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

// Descriptor is the parsed, not yet dated intent of one schedule-cell entry.
// It is consumed by the expander right after parsing and never stored.
type Descriptor struct {
	Name      string
	Teacher   string
	ClassInfo string

	// Location is the display location, already prefixed with the
	// institution or replaced by the online label.
	Location string

	Weeks   WeekRange
	Parity  Parity
	Periods PeriodRange

	// DayOffset is the zero-based weekday column (0 = Monday).
	DayOffset int

	// LabSafety marks the special lab-safety course, which is only skipped
	// on holidays and is split into two-period blocks.
	LabSafety bool
}

// Recurrence is a weekly recurrence rule. A nil *Recurrence means the event
// happens once.
type Recurrence struct {
	Interval int
	Until    time.Time
	// ExDates are meeting starts the rule would produce but which fall on a
	// holiday or an ordinary weekend.
	ExDates []time.Time
}

// Slot is one expanded meeting (or the first meeting of a recurring series).
type Slot struct {
	Start      time.Time
	End        time.Time
	Recurrence *Recurrence
}

// DatedEvent is one concrete calendar entry. It is built once and not
// mutated after being added to a calendar.
type DatedEvent struct {
	UID      string
	Summary  string
	Location string

	Start time.Time
	End   time.Time

	ReminderMinutes int
	ReminderText    string

	Recurrence *Recurrence

	Created time.Time
}

// Occurrence represents a single concrete instance of an event read back
// from a generated calendar (after recurrence expansion).
type Occurrence struct {
	UID string

	// InstanceKey uniquely identifies a single occurrence of a recurring
	// event, derived from the local start time.
	InstanceKey string

	Summary  string
	Location string

	Start time.Time
	End   time.Time

	ReminderMinutes int
}
