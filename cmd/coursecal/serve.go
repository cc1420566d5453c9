package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"coursecal/internal/calendar"
	appLog "coursecal/internal/log"
	"coursecal/internal/timetable"
	"coursecal/internal/web"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve <timetable.xlsx> <start YYYYMMDD> <end YYYYMMDD> [travel-minutes]",
		Short: "Serve the calendar as a subscription feed and regenerate it on a schedule",
		Args:  validateRunArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cmd.SilenceUsage = true
			ra, err := parseRunArgs(args, opts.location())
			if err != nil {
				return err
			}
			if listen != "" {
				opts.cfg.Listen = listen
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, opts, ra)
		},
	}

	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func runServe(ctx context.Context, opts *rootOptions, ra runArgs) error {
	cfg := opts.cfg
	req := opts.request(ra)

	srv := web.NewServer(cfg, func(ctx context.Context) (*calendar.Collection, error) {
		coll, _, err := timetable.Generate(ctx, cfg, req)
		return coll, err
	})
	if err := srv.Refresh(ctx); err != nil {
		return err
	}

	sched := cron.New()
	if _, err := sched.AddFunc(cfg.RefreshCron, func() {
		if err := srv.Refresh(ctx); err != nil {
			appLog.Error("scheduled refresh failed", err)
		}
	}); err != nil {
		return fmt.Errorf("refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	sched.Start()
	defer func() {
		<-sched.Stop().Done()
	}()

	appLog.Info("serving calendar",
		"listen", "http://"+cfg.Listen,
		"refresh", cfg.RefreshCron,
		"workbook", ra.path,
	)
	return srv.Run(ctx)
}
