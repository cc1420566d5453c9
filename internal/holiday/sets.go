// Package holiday resolves public holidays and make-up workdays for a term.
package holiday

import (
	"sort"
	"time"
)

const dateLayout = "2006-01-02"

// Sets holds the holiday and make-up workday dates of a term window.
// A Sets value is read-only once returned by a Resolver.
type Sets struct {
	holidays map[string]struct{}
	workdays map[string]struct{}
}

// NewSets builds sets from explicit dates. Time-of-day and location are ignored.
func NewSets(holidays, workdays []time.Time) *Sets {
	s := &Sets{
		holidays: make(map[string]struct{}, len(holidays)),
		workdays: make(map[string]struct{}, len(workdays)),
	}
	for _, d := range holidays {
		s.holidays[key(d)] = struct{}{}
	}
	for _, d := range workdays {
		s.workdays[key(d)] = struct{}{}
	}
	return s
}

func key(t time.Time) string {
	return t.Format(dateLayout)
}

// IsHoliday reports whether the calendar date of t is a public holiday.
func (s *Sets) IsHoliday(t time.Time) bool {
	if s == nil {
		return false
	}
	_, ok := s.holidays[key(t)]
	return ok
}

// IsWorkday reports whether the calendar date of t is a make-up workday.
func (s *Sets) IsWorkday(t time.Time) bool {
	if s == nil {
		return false
	}
	_, ok := s.workdays[key(t)]
	return ok
}

// Holidays returns the holiday dates as sorted "YYYY-MM-DD" strings.
func (s *Sets) Holidays() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.holidays)
}

// Workdays returns the make-up workday dates as sorted "YYYY-MM-DD" strings.
func (s *Sets) Workdays() []string {
	if s == nil {
		return nil
	}
	return sortedKeys(s.workdays)
}

func (s *Sets) addHoliday(d string) { s.holidays[d] = struct{}{} }
func (s *Sets) addWorkday(d string) { s.workdays[d] = struct{}{} }

// within drops every date outside [start, end].
func (s *Sets) within(start, end time.Time) *Sets {
	lo, hi := key(start), key(end)
	out := NewSets(nil, nil)
	for d := range s.holidays {
		if d >= lo && d <= hi {
			out.addHoliday(d)
		}
	}
	for d := range s.workdays {
		if d >= lo && d <= hi {
			out.addWorkday(d)
		}
	}
	return out
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
