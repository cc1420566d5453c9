package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"coursecal/internal/config"
	"coursecal/internal/expand"
	appLog "coursecal/internal/log"
	"coursecal/internal/timetable"
)

const (
	envConfig     = "COURSECAL_CONFIG"
	envHolidayAPI = "COURSECAL_HOLIDAY_API"
	dateLayout    = "20060102"
)

// rootOptions holds the persistent flags shared by every command.
type rootOptions struct {
	configPath string
	strategy   string
	offline    bool
	debug      bool

	cfg *config.Config
}

// runArgs are the positional arguments of generate and serve.
type runArgs struct {
	path          string
	start         time.Time
	end           time.Time
	travelMinutes int
	travelSet     bool
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}
	var out string

	cmd := &cobra.Command{
		Use:   "coursecal <timetable.xlsx> <start YYYYMMDD> <end YYYYMMDD> [travel-minutes]",
		Short: "Convert a weekly class timetable into an iCalendar file",
		Long: `coursecal reads a weekly class timetable exported as .xlsx, expands every
course into its concrete meetings for the given term (skipping public holidays
and honouring make-up workdays) and writes <calendar name>.ics with a
"time to leave" reminder on every event.`,
		Args: validateRunArgs,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return opts.setup()
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ra, err := parseRunArgs(args, opts.location())
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runGenerate(ctx, cmd, opts, ra, out)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.configPath, "config", "", "Path to config file (default $"+envConfig+" or the user config dir)")
	pf.StringVar(&opts.strategy, "strategy", "", "Expansion strategy: auto, occurrence or rrule (overrides config)")
	pf.BoolVar(&opts.offline, "offline", false, "Skip the remote holiday lookup and use the built-in tables")
	pf.BoolVar(&opts.debug, "debug", false, "Enable debug logging")
	cmd.Flags().StringVarP(&out, "out", "o", ".", "Output directory")

	cmd.AddCommand(newPreviewCmd(opts), newServeCmd(opts))
	return cmd
}

// setup configures logging and loads the configuration.
func (o *rootOptions) setup() error {
	if o.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	path := o.configPath
	if path == "" {
		path = os.Getenv(envConfig)
	}
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return fmt.Errorf("locate config dir: %w", err)
		}
		path = filepath.Join(dir, "coursecal", "config.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		if cfg == nil {
			return fmt.Errorf("load config %s: %w", path, err)
		}
		appLog.Warn("could not write default config; continuing with defaults", "path", path, "err", err)
	}

	if api := os.Getenv(envHolidayAPI); api != "" {
		cfg.Holiday.APIURL = api
	}
	if o.strategy != "" {
		if _, err := expand.ParseStrategy(o.strategy); err != nil {
			return err
		}
		cfg.Strategy = o.strategy
	}
	o.cfg = cfg

	appLog.Debug("effective config",
		"path", path,
		"timezone", cfg.Timezone,
		"strategy", cfg.Strategy,
		"travel_minutes", cfg.TravelMinutes,
		"holiday_api", cfg.Holiday.APIURL,
		"offline", o.offline,
	)
	return nil
}

func (o *rootOptions) location() *time.Location {
	if o.cfg != nil {
		if loc, err := time.LoadLocation(o.cfg.Timezone); err == nil {
			return loc
		}
	}
	return time.Local
}

func (o *rootOptions) request(ra runArgs) timetable.Request {
	travel := o.cfg.TravelMinutes
	if ra.travelSet {
		travel = ra.travelMinutes
	}
	return timetable.Request{
		Path:          ra.path,
		Start:         ra.start,
		End:           ra.end,
		TravelMinutes: travel,
		Offline:       o.offline,
	}
}

func validateRunArgs(_ *cobra.Command, args []string) error {
	_, err := parseRunArgs(args, time.UTC)
	return err
}

// parseRunArgs validates <xlsx> <start> <end> [travel-minutes].
func parseRunArgs(args []string, loc *time.Location) (runArgs, error) {
	var ra runArgs
	if len(args) < 3 || len(args) > 4 {
		return ra, fmt.Errorf("expected 3 or 4 arguments, got %d", len(args))
	}

	ra.path = args[0]
	if !strings.EqualFold(filepath.Ext(ra.path), ".xlsx") {
		return ra, fmt.Errorf("%q is not an .xlsx file", ra.path)
	}

	var err error
	if ra.start, err = time.ParseInLocation(dateLayout, args[1], loc); err != nil {
		return ra, fmt.Errorf("start date %q: expected YYYYMMDD", args[1])
	}
	if ra.end, err = time.ParseInLocation(dateLayout, args[2], loc); err != nil {
		return ra, fmt.Errorf("end date %q: expected YYYYMMDD", args[2])
	}
	if ra.end.Before(ra.start) {
		return ra, errors.New("start date is after end date")
	}

	if len(args) == 4 {
		n, err := strconv.Atoi(args[3])
		if err != nil || n < 0 {
			return ra, fmt.Errorf("travel time %q: expected a non-negative integer", args[3])
		}
		ra.travelMinutes, ra.travelSet = n, true
	}
	return ra, nil
}

func runGenerate(ctx context.Context, cmd *cobra.Command, opts *rootOptions, ra runArgs, out string) error {
	coll, rep, err := timetable.Generate(ctx, opts.cfg, opts.request(ra))
	if err != nil {
		return err
	}
	path, err := coll.Persist(out)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s (holidays: %s, skipped records: %d)\n",
		rep.Events, path, rep.Holidays, len(rep.CellErrors))
	return nil
}
