package main

import (
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"coursecal/internal/ics"
)

func newPreviewCmd(opts *rootOptions) *cobra.Command {
	var from, to string

	cmd := &cobra.Command{
		Use:   "preview <file.ics>",
		Short: "List the concrete meetings of a generated calendar",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			loc := opts.location()

			cfg := ics.ExpandConfig{DisplayLocation: loc}
			var err error
			if from != "" {
				if cfg.RangeStart, err = time.ParseInLocation(dateLayout, from, loc); err != nil {
					return fmt.Errorf("--from %q: expected YYYYMMDD", from)
				}
			}
			if to != "" {
				if cfg.RangeEnd, err = time.ParseInLocation(dateLayout, to, loc); err != nil {
					return fmt.Errorf("--to %q: expected YYYYMMDD", to)
				}
				cfg.RangeEnd = cfg.RangeEnd.AddDate(0, 0, 1).Add(-time.Second)
			}
			if from != "" && to == "" {
				cfg.RangeEnd = cfg.RangeStart.AddDate(1, 0, 0)
			}
			if to != "" && from == "" {
				cfg.RangeStart = cfg.RangeEnd.AddDate(-1, 0, 0)
			}

			body, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read %s: %w", args[0], err)
			}
			events, err := ics.Parse(body, loc)
			if err != nil {
				return err
			}
			res, err := ics.Expand(events, cfg)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			for _, occ := range res.Occurrences {
				fmt.Fprintf(tw, "%s\t%s\t%s-%s\t%s\t%s\t-%dm\n",
					occ.Start.Format(time.DateOnly),
					occ.Start.Weekday().String()[:3],
					occ.Start.Format("15:04"),
					occ.End.Format("15:04"),
					occ.Summary,
					occ.Location,
					occ.ReminderMinutes,
				)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%d meetings from %d events\n", len(res.Occurrences), len(events))
			return nil
		},
	}

	cmd.Flags().StringVar(&from, "from", "", "First day to list (YYYYMMDD)")
	cmd.Flags().StringVar(&to, "to", "", "Last day to list (YYYYMMDD)")
	return cmd
}
