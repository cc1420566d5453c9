// Package event builds calendar entries from expanded course slots.
package event

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"coursecal/internal/model"
)

var (
	ErrEmptyName    = errors.New("event: empty summary")
	ErrBadTimes     = errors.New("event: end must be after start on the same day")
	ErrNegativeLead = errors.New("event: negative reminder")
)

// TravelPolicy derives the reminder lead from the course and its location.
type TravelPolicy struct {
	BaseMinutes int

	ExperimentMarkers []string
	DistantMarkers    []string
}

// Minutes returns the travel lead for a course. Exactly one multiplier
// applies, checked in order: lab safety x2, experiment/practicum x1.5,
// distant building x1.33. Fractions are truncated.
func (p TravelPolicy) Minutes(name, location string, labSafety bool) int {
	base := p.BaseMinutes
	switch {
	case labSafety:
		return base * 2
	case containsAny(name, p.ExperimentMarkers):
		return int(float64(base) * 1.5)
	case containsAny(location, p.DistantMarkers):
		return int(float64(base) * 1.33)
	default:
		return base
	}
}

func containsAny(s string, markers []string) bool {
	for _, m := range markers {
		if m != "" && strings.Contains(s, m) {
			return true
		}
	}
	return false
}

// Spec is the input of Build.
type Spec struct {
	Name          string
	Location      string
	Start         time.Time
	End           time.Time
	Recurrence    *model.Recurrence
	TravelMinutes int
}

// Builder assigns identifiers and timestamps to new events.
type Builder struct {
	now   func() time.Time
	newID func() string
}

// NewBuilder returns a builder using the wall clock and random UUIDs.
func NewBuilder() *Builder {
	return &Builder{
		now:   time.Now,
		newID: uuid.NewString,
	}
}

// Build validates s and returns an immutable event with a fresh UID and a
// "time to leave" reminder TravelMinutes before the start.
func (b *Builder) Build(s Spec) (model.DatedEvent, error) {
	if strings.TrimSpace(s.Name) == "" {
		return model.DatedEvent{}, ErrEmptyName
	}
	if !s.End.After(s.Start) || !sameDay(s.Start, s.End) {
		return model.DatedEvent{}, fmt.Errorf("%w: %s - %s", ErrBadTimes, s.Start.Format(time.DateTime), s.End.Format(time.DateTime))
	}
	if s.TravelMinutes < 0 {
		return model.DatedEvent{}, ErrNegativeLead
	}

	return model.DatedEvent{
		UID:             b.newID(),
		Summary:         s.Name,
		Location:        s.Location,
		Start:           s.Start,
		End:             s.End,
		ReminderMinutes: s.TravelMinutes,
		ReminderText:    ReminderText(s.Location),
		Recurrence:      s.Recurrence,
		Created:         b.now().UTC(),
	}, nil
}

// ReminderText is the alarm description for a location.
func ReminderText(location string) string {
	return fmt.Sprintf("出发前往%s的时间到了", location)
}

func sameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.In(a.Location()).Date()
	return ay == by && am == bm && ad == bd
}
