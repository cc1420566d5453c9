package cell

import (
	"strings"

	"coursecal/internal/model"
)

// parseLabSafety handles the lab-safety course, whose cell does not follow
// the 4-line record layout. Its location is one of three fixed rooms and its
// periods default to "row header start" through LastPeriod.
// Regular records stacked in the same cell are not parsed; each one is
// reported as ErrShadowed.
func (p *Parser) parseLabSafety(text, rowHeader string, dayOffset int) ([]model.Descriptor, []error) {
	ls := p.opts.LabSafety
	text, errs := p.dropStackedRecords(text)
	tokens := Tokenize(text)

	week, ok := firstOf(tokens, TokenWeek)
	if !ok {
		return nil, append(errs, &ParseError{Name: ls.Name, Err: ErrNoWeek})
	}

	periods, err := p.resolvePeriods(tokens, rowHeader, ls.LastPeriod)
	if err != nil {
		return nil, append(errs, &ParseError{Name: ls.Name, Err: err})
	}

	base := model.Descriptor{
		Name:      ls.Name,
		Location:  p.labSafetyLocation(text, tokens),
		Parity:    week.Parity,
		Periods:   periods,
		DayOffset: dayOffset,
		LabSafety: true,
	}
	return splitWeeks(base, week.Weeks), errs
}

// dropStackedRecords removes every regular 4-line record (a plain name line
// whose fourth line carries a week token) from a lab-safety cell.
func (p *Parser) dropStackedRecords(text string) (string, []error) {
	name := p.opts.LabSafety.Name
	lines := strings.Split(text, "\n")
	var (
		kept []string
		errs []error
		rec  int
	)
	for i := 0; i < len(lines); i++ {
		if i+3 < len(lines) && isRecordAt(lines[i:i+4], name) {
			errs = append(errs, &ParseError{Record: rec, Name: strings.TrimSpace(lines[i]), Err: ErrShadowed})
			rec++
			i += 3
			continue
		}
		kept = append(kept, lines[i])
	}
	return strings.Join(kept, "\n"), errs
}

func isRecordAt(rec []string, labName string) bool {
	head := strings.TrimSpace(rec[0])
	if head == "" || strings.HasPrefix(head, "[") {
		return false
	}
	for _, l := range rec {
		if strings.Contains(l, labName) {
			return false
		}
	}
	_, ok := firstOf(Tokenize(rec[3]), TokenWeek)
	return ok
}

func (p *Parser) labSafetyLocation(text string, tokens []Token) string {
	ls := p.opts.LabSafety
	switch {
	case ls.NoLocationMarker != "" && strings.Contains(text, ls.NoLocationMarker):
		return p.opts.OnlineLabel
	case ls.HallMarker != "" && strings.Contains(text, ls.HallMarker):
		hall := ls.DefaultHall
		for _, t := range tokens {
			if t.Kind == TokenText && strings.Contains(t.Raw, ls.HallMarker) {
				hall = t.Raw
				break
			}
		}
		return p.opts.Institution + "-" + hall
	default:
		return p.opts.Institution + "-" + ls.DefaultRoom
	}
}
