// Package timetable wires the conversion pipeline: spreadsheet grid, cell
// parser, occurrence expander, event builder and calendar collection.
package timetable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coursecal/internal/calendar"
	"coursecal/internal/cell"
	"coursecal/internal/config"
	"coursecal/internal/event"
	"coursecal/internal/expand"
	"coursecal/internal/holiday"
	appLog "coursecal/internal/log"
	"coursecal/internal/sheet"
)

// Report summarizes one conversion.
type Report struct {
	Descriptors int
	Events      int
	// CellErrors holds the records that were skipped, each a *cell.ParseError
	// or an expansion error.
	CellErrors []error
	Holidays   holiday.Origin
}

// Converter turns a grid into a calendar. It is safe to reuse; each call of
// Convert builds a fresh collection.
type Converter struct {
	cfg      *config.Config
	loc      *time.Location
	parser   *cell.Parser
	expander *expand.Expander
	builder  *event.Builder
	policy   event.TravelPolicy
}

// New prepares a converter. travelMinutes is the base reminder lead.
func New(cfg *config.Config, travelMinutes int) (*Converter, error) {
	if cfg == nil {
		return nil, errors.New("timetable: nil config")
	}
	if travelMinutes < 0 {
		return nil, fmt.Errorf("timetable: negative travel time %d", travelMinutes)
	}
	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("timetable: timezone %q: %w", cfg.Timezone, err)
	}
	table, err := cfg.PeriodTable()
	if err != nil {
		return nil, err
	}
	strategy, err := expand.ParseStrategy(cfg.Strategy)
	if err != nil {
		return nil, err
	}

	return &Converter{
		cfg: cfg,
		loc: loc,
		parser: cell.NewParser(table, cell.Options{
			Institution:     cfg.Institution,
			OnlineLabel:     cfg.OnlineLabel,
			UnknownLocation: cfg.UnknownLocation,
			OnlineMarkers:   cfg.Markers.Online,
			LabSafety: cell.LabSafety{
				Name:             cfg.LabSafety.Name,
				NoLocationMarker: cfg.LabSafety.NoLocationMarker,
				HallMarker:       cfg.LabSafety.HallMarker,
				DefaultHall:      cfg.LabSafety.DefaultHall,
				DefaultRoom:      cfg.LabSafety.DefaultRoom,
				LastPeriod:       cfg.LabSafety.LastPeriod,
			},
		}),
		expander: expand.New(expand.Config{Strategy: strategy, Periods: table}),
		builder:  event.NewBuilder(),
		policy: event.TravelPolicy{
			BaseMinutes:       travelMinutes,
			ExperimentMarkers: cfg.Markers.Experiment,
			DistantMarkers:    cfg.Markers.Distant,
		},
	}, nil
}

// Term builds the semester window in the configured timezone.
func (c *Converter) Term(start, end time.Time) (expand.Term, error) {
	return expand.NewTerm(start, end, c.loc)
}

// Convert walks the grid row by row, Monday to Sunday, and collects one
// event per expanded slot. Broken records are logged and skipped.
func (c *Converter) Convert(grid *sheet.Grid, term expand.Term, cal expand.Calendar) (*calendar.Collection, Report, error) {
	var rep Report
	if grid == nil {
		return nil, rep, errors.New("timetable: nil grid")
	}
	if term.Start.Weekday() != time.Monday {
		appLog.Warn("term does not start on a Monday", "start", term.Start.Format(time.DateOnly), "weekday", term.Start.Weekday().String())
	}
	appLog.Info("converting timetable", "sheet", grid.Sheet, "rows", len(grid.Rows), "weeks", term.Weeks())

	coll := calendar.New(c.cfg.CalendarName, c.cfg.Timezone)
	for _, row := range grid.Rows {
		for day, text := range row.Cells {
			if text == "" {
				continue
			}
			descs, errs := c.parser.Parse(text, row.Header, day)
			for _, err := range errs {
				appLog.Error("cell record skipped", err, "row", row.Number, "day", day)
				rep.CellErrors = append(rep.CellErrors, err)
			}

			for _, d := range descs {
				rep.Descriptors++
				slots, err := c.expander.Expand(d, term, cal)
				if err != nil {
					appLog.Error("course skipped", err, "row", row.Number, "day", day, "name", d.Name)
					rep.CellErrors = append(rep.CellErrors, err)
					continue
				}

				minutes := c.policy.Minutes(d.Name, d.Location, d.LabSafety)
				for _, s := range slots {
					ev, err := c.builder.Build(event.Spec{
						Name:          d.Name,
						Location:      d.Location,
						Start:         s.Start,
						End:           s.End,
						Recurrence:    s.Recurrence,
						TravelMinutes: minutes,
					})
					if err != nil {
						return nil, rep, fmt.Errorf("timetable: %s: %w", d.Name, err)
					}
					coll.Add(ev)
					rep.Events++
				}
			}
		}
	}

	appLog.Info("timetable converted", "descriptors", rep.Descriptors, "events", rep.Events, "skipped", len(rep.CellErrors))
	return coll, rep, nil
}

// Request describes one generation run.
type Request struct {
	Path          string
	Start         time.Time
	End           time.Time
	TravelMinutes int
	// Offline skips the remote holiday lookup.
	Offline bool
}

// Generate reads the workbook, resolves holidays for the term and converts.
// Spreadsheet read failures are returned; holiday failures never are.
func Generate(ctx context.Context, cfg *config.Config, req Request) (*calendar.Collection, Report, error) {
	conv, err := New(cfg, req.TravelMinutes)
	if err != nil {
		return nil, Report{}, err
	}
	term, err := conv.Term(req.Start, req.End)
	if err != nil {
		return nil, Report{}, err
	}

	grid, err := sheet.Open(req.Path, cfg.Sheet)
	if err != nil {
		return nil, Report{}, err
	}

	opts := holiday.Options{
		BaseURL:      cfg.Holiday.APIURL,
		Timeout:      time.Duration(cfg.Holiday.TimeoutSeconds) * time.Second,
		CacheDir:     cfg.Holiday.CacheDir,
		FallbackYear: cfg.Holiday.FallbackYear,
	}
	if req.Offline {
		opts.BaseURL = ""
	}
	sets, origin := holiday.NewResolver(opts).Resolve(ctx, term.Start, term.End)
	appLog.Info("holidays resolved", "origin", string(origin), "holidays", len(sets.Holidays()), "workdays", len(sets.Workdays()))

	coll, rep, err := conv.Convert(grid, term, sets)
	rep.Holidays = origin
	return coll, rep, err
}
