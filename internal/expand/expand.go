package expand

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"coursecal/internal/model"
	"coursecal/internal/period"
)

// Strategy selects how a descriptor becomes calendar slots.
type Strategy string

const (
	// Auto emits a recurrence rule when no date needs skipping, otherwise
	// one slot per meeting.
	Auto Strategy = "auto"
	// PerOccurrence always emits one slot per meeting.
	PerOccurrence Strategy = "occurrence"
	// RRule always emits a recurrence rule, with EXDATEs for skipped dates.
	RRule Strategy = "rrule"
)

// ParseStrategy maps a config value to a Strategy.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case Auto, PerOccurrence, RRule:
		return Strategy(s), nil
	case "":
		return Auto, nil
	}
	return "", fmt.Errorf("expand: unknown strategy %q", s)
}

// Calendar answers the holiday/workday questions of a term.
type Calendar interface {
	IsHoliday(t time.Time) bool
	IsWorkday(t time.Time) bool
}

// Term is the inclusive date window of a semester. Start is the Monday of
// week 1 and End the last day of the final week.
type Term struct {
	Start time.Time
	End   time.Time
}

// NewTerm normalizes start and end to midnight in loc.
func NewTerm(start, end time.Time, loc *time.Location) (Term, error) {
	t := Term{Start: midnight(start, loc), End: midnight(end, loc)}
	if t.End.Before(t.Start) {
		return Term{}, errors.New("expand: term ends before it starts")
	}
	return t, nil
}

// Contains reports whether the calendar date of d lies within the term.
func (t Term) Contains(d time.Time) bool {
	d = midnight(d, t.Start.Location())
	return !d.Before(t.Start) && !d.After(t.End)
}

// Weeks is the number of (possibly partial) weeks in the term.
func (t Term) Weeks() int {
	days := int(t.End.Sub(t.Start).Hours()/24+0.5) + 1
	return (days + 6) / 7
}

// Config controls expansion.
type Config struct {
	Strategy Strategy
	Periods  *period.Table
}

// Expander turns descriptors into dated slots. It is stateless; the same
// input always yields the same output.
type Expander struct {
	strategy Strategy
	periods  *period.Table
}

// New returns an expander. A nil period table uses period.Default().
func New(cfg Config) *Expander {
	if cfg.Strategy == "" {
		cfg.Strategy = Auto
	}
	if cfg.Periods == nil {
		cfg.Periods = period.Default()
	}
	return &Expander{strategy: cfg.Strategy, periods: cfg.Periods}
}

// Expand returns the slots of d within term, skipping holidays and ordinary
// weekends. Slots are ordered by block, then by date.
func (e *Expander) Expand(d model.Descriptor, term Term, cal Calendar) ([]model.Slot, error) {
	if !d.Weeks.Valid() {
		return nil, fmt.Errorf("expand: %s: invalid week range %s", d.Name, d.Weeks)
	}
	if d.DayOffset < 0 || d.DayOffset > 6 {
		return nil, fmt.Errorf("expand: %s: day offset %d out of range", d.Name, d.DayOffset)
	}
	blocks, err := e.blocks(d)
	if err != nil {
		return nil, fmt.Errorf("expand: %s: %w", d.Name, err)
	}

	switch e.strategy {
	case PerOccurrence:
		return e.perOccurrence(d, term, cal, blocks), nil
	case RRule:
		return e.recurrence(d, term, cal, blocks), nil
	default:
		slots := e.recurrence(d, term, cal, blocks)
		for _, s := range slots {
			if s.Recurrence != nil && len(s.Recurrence.ExDates) > 0 {
				return e.perOccurrence(d, term, cal, blocks), nil
			}
		}
		return slots, nil
	}
}

// block is a clock span within one day.
type block struct {
	start period.Clock
	end   period.Clock
}

// blocks resolves the period range. The lab-safety course is split into
// consecutive two-period blocks; everything else is one block.
func (e *Expander) blocks(d model.Descriptor) ([]block, error) {
	if !d.Periods.Valid() {
		return nil, fmt.Errorf("invalid period range %s", d.Periods)
	}
	if !d.LabSafety {
		start, end, err := e.periods.Span(d.Periods.Start, d.Periods.End)
		if err != nil {
			return nil, err
		}
		return []block{{start, end}}, nil
	}
	var out []block
	for p := d.Periods.Start; p <= d.Periods.End; p += 2 {
		last := min(p+1, d.Periods.End)
		start, end, err := e.periods.Span(p, last)
		if err != nil {
			return nil, err
		}
		out = append(out, block{start, end})
	}
	return out, nil
}

// meetingDate is term start + (w-1) weeks + day offset.
func meetingDate(term Term, w, dayOffset int) time.Time {
	return term.Start.AddDate(0, 0, (w-1)*7+dayOffset)
}

// skip reports whether no class is held on date.
func skip(d model.Descriptor, date time.Time, cal Calendar) bool {
	if cal != nil && cal.IsHoliday(date) {
		return true
	}
	if d.LabSafety {
		return false
	}
	if wd := date.Weekday(); wd == time.Saturday || wd == time.Sunday {
		return cal == nil || !cal.IsWorkday(date)
	}
	return false
}

func (e *Expander) perOccurrence(d model.Descriptor, term Term, cal Calendar, blocks []block) []model.Slot {
	var out []model.Slot
	for _, b := range blocks {
		for w := d.Weeks.Start; w <= d.Weeks.End; w++ {
			if !d.Parity.Includes(w) {
				continue
			}
			date := meetingDate(term, w, d.DayOffset)
			if date.After(term.End) {
				break
			}
			if skip(d, date, cal) {
				continue
			}
			out = append(out, model.Slot{Start: b.start.On(date), End: b.end.On(date)})
		}
	}
	return out
}

// recurrence emits one weekly rule per block. UNTIL is the end of the last
// meeting day within both the week range and the term; dates the rule
// produces but which must be skipped become EXDATEs. A rule with a single
// meeting is emitted as a one-off slot.
func (e *Expander) recurrence(d model.Descriptor, term Term, cal Calendar, blocks []block) []model.Slot {
	first, last := 0, 0
	for w := d.Weeks.Start; w <= d.Weeks.End; w++ {
		if !d.Parity.Includes(w) {
			continue
		}
		if meetingDate(term, w, d.DayOffset).After(term.End) {
			break
		}
		if first == 0 {
			first = w
		}
		last = w
	}
	if first == 0 {
		return nil
	}
	firstDate := meetingDate(term, first, d.DayOffset)
	lastDate := meetingDate(term, last, d.DayOffset)
	until := lastDate.Add(24*time.Hour - time.Second)

	var out []model.Slot
	for _, b := range blocks {
		dtstart := b.start.On(firstDate)
		r, err := rrule.NewRRule(rrule.ROption{
			Freq:     rrule.WEEKLY,
			Interval: d.Parity.Interval(),
			Dtstart:  dtstart,
			Until:    until,
		})
		if err != nil {
			return e.perOccurrence(d, term, cal, blocks)
		}

		occ := r.All()
		var kept, ex []time.Time
		for _, t := range occ {
			if skip(d, t, cal) {
				ex = append(ex, t)
			} else {
				kept = append(kept, t)
			}
		}
		switch {
		case len(kept) == 0:
			continue
		case len(occ) == 1:
			out = append(out, model.Slot{Start: dtstart, End: b.end.On(dtstart)})
		default:
			out = append(out, model.Slot{
				Start: dtstart,
				End:   b.end.On(dtstart),
				Recurrence: &model.Recurrence{
					Interval: d.Parity.Interval(),
					Until:    until,
					ExDates:  ex,
				},
			})
		}
	}
	return out
}

func midnight(t time.Time, loc *time.Location) time.Time {
	if loc == nil {
		loc = t.Location()
	}
	t = t.In(loc)
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, loc)
}
