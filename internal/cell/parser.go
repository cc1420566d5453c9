// Package cell parses timetable cells into course descriptors.
//
// A regular cell holds one or more 4-line records:
//
//	<course name>
//	<instructor>
//	<class info>
//	[<weeks>][<location>][<periods>]
//
// where <weeks> is "3-17周", "12周", "3-17单周", "2-16双周" or a comma list
// ("1-4,6,9-12周"), and <periods> is "3-4节". The periods token is optional;
// the row header ("第3-4节") is used when it is missing.
package cell

import (
	"errors"
	"fmt"
	"strings"

	"coursecal/internal/model"
	"coursecal/internal/period"
)

var (
	ErrNoWeek       = errors.New("no week token")
	ErrNoPeriod     = errors.New("no period token and no period in row header")
	ErrIncomplete   = errors.New("incomplete record")
	ErrBadDayOffset = errors.New("day offset out of range")
	ErrShadowed     = errors.New("record shares a cell with the lab-safety course and was dropped")
)

// ParseError reports a record that could not be turned into a descriptor.
// Other records of the same cell are unaffected.
type ParseError struct {
	Record int
	Name   string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Name != "" {
		return fmt.Sprintf("cell record %d (%s): %v", e.Record, e.Name, e.Err)
	}
	return fmt.Sprintf("cell record %d: %v", e.Record, e.Err)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

// Options carries the naming conventions the parser applies to locations.
type Options struct {
	Institution     string
	OnlineLabel     string
	UnknownLocation string
	// OnlineMarkers are substrings of a raw location meaning "no room".
	OnlineMarkers []string

	LabSafety LabSafety
}

// LabSafety configures the special lab-safety course.
type LabSafety struct {
	Name             string
	NoLocationMarker string
	HallMarker       string
	DefaultHall      string
	DefaultRoom      string
	// LastPeriod ends the period range when only the row header is known.
	LastPeriod int
}

// Parser turns raw cell text into descriptors. It holds no mutable state.
type Parser struct {
	periods *period.Table
	opts    Options
}

// NewParser returns a parser resolving periods against table.
func NewParser(table *period.Table, opts Options) *Parser {
	return &Parser{periods: table, opts: opts}
}

// Parse converts one cell into descriptors. Records that fail to parse are
// reported in errs and skipped; they never abort the remaining records.
func (p *Parser) Parse(text, rowHeader string, dayOffset int) (descs []model.Descriptor, errs []error) {
	if dayOffset < 0 || dayOffset > 6 {
		return nil, []error{&ParseError{Err: fmt.Errorf("%w: %d", ErrBadDayOffset, dayOffset)}}
	}
	text = normalize(text)
	if strings.TrimSpace(text) == "" {
		return nil, nil
	}

	if p.opts.LabSafety.Name != "" && strings.Contains(text, p.opts.LabSafety.Name) {
		return p.parseLabSafety(text, rowHeader, dayOffset)
	}

	lines := strings.Split(strings.TrimRight(text, "\n \t"), "\n")
	for i := range lines {
		lines[i] = strings.TrimSpace(lines[i])
	}

	for rec := 0; rec*4 < len(lines); rec++ {
		chunk := lines[rec*4:]
		name := chunk[0]
		if name == "" {
			continue
		}
		if len(chunk) < 4 {
			errs = append(errs, &ParseError{Record: rec, Name: name, Err: ErrIncomplete})
			continue
		}

		out, err := p.parseRecord(chunk[:4], rowHeader, dayOffset)
		if err != nil {
			errs = append(errs, &ParseError{Record: rec, Name: name, Err: err})
			continue
		}
		descs = append(descs, out...)
	}
	return descs, errs
}

func (p *Parser) parseRecord(rec []string, rowHeader string, dayOffset int) ([]model.Descriptor, error) {
	tokens := Tokenize(rec[3])

	week, ok := firstOf(tokens, TokenWeek)
	if !ok {
		return nil, ErrNoWeek
	}

	periods, err := p.resolvePeriods(tokens, rowHeader, 0)
	if err != nil {
		return nil, err
	}

	raw := ""
	if loc, ok := firstOf(tokens, TokenText); ok {
		raw = loc.Raw
	}

	base := model.Descriptor{
		Name:      rec[0],
		Teacher:   rec[1],
		ClassInfo: rec[2],
		Location:  p.location(raw),
		Parity:    week.Parity,
		Periods:   periods,
		DayOffset: dayOffset,
	}
	return splitWeeks(base, week.Weeks), nil
}

// resolvePeriods prefers an explicit period token and falls back to the row
// header. When lastPeriod > 0 a header-derived range ends at lastPeriod.
// The range is validated against the period table.
func (p *Parser) resolvePeriods(tokens []Token, rowHeader string, lastPeriod int) (model.PeriodRange, error) {
	var pr model.PeriodRange
	if tok, ok := firstOf(tokens, TokenPeriod); ok {
		pr = tok.Periods
	} else {
		hp, ok := headerPeriods(rowHeader)
		if !ok {
			return model.PeriodRange{}, ErrNoPeriod
		}
		pr = hp
		if lastPeriod > 0 {
			pr.End = lastPeriod
		}
		if !pr.Valid() {
			return model.PeriodRange{}, fmt.Errorf("row header %q: invalid period range %s", rowHeader, pr)
		}
	}
	if _, _, err := p.periods.Span(pr.Start, pr.End); err != nil {
		return model.PeriodRange{}, err
	}
	return pr, nil
}

// location formats a raw location token for display.
func (p *Parser) location(raw string) string {
	raw = strings.TrimSpace(raw)
	for _, m := range p.opts.OnlineMarkers {
		if m != "" && strings.Contains(raw, m) {
			return p.opts.OnlineLabel
		}
	}
	if raw == "" {
		raw = p.opts.UnknownLocation
	}
	return p.opts.Institution + "-" + raw
}

func firstOf(tokens []Token, kind TokenKind) (Token, bool) {
	for _, t := range tokens {
		if t.Kind == kind {
			return t, true
		}
	}
	return Token{}, false
}

func splitWeeks(base model.Descriptor, weeks []model.WeekRange) []model.Descriptor {
	out := make([]model.Descriptor, 0, len(weeks))
	for _, w := range weeks {
		d := base
		d.Weeks = w
		out = append(out, d)
	}
	return out
}
