package commands

import (
	"errors"
	"log/slog"
	"remitscout-backend/internal/compare"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/serviceutil"
	"remitscout-backend/internal/components/telemetry"
	"sync"

	"github.com/spf13/cobra"
)

var (
	daemonNow  *bool
	daemonCron *string
)

func init() {
	daemonNow = daemonCmd.Flags().Bool("now", false, "Run once immediately before waiting for the schedule.")
	daemonCron = daemonCmd.Flags().String("cron", "", "Cron spec overriding schedule.cron.")
	rootCmd.AddCommand(daemonCmd)
}

var daemonCmd = &cobra.Command{
	Use:   "daemon [--now] [--cron <spec>]",
	Short: "Runs the comparison scraper on a schedule until interrupted.",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := cmd.Context()

		location, err := cfg.Schedule.TimeLocation()
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}
		retention, err := cfg.Schedule.Retention()
		if err != nil {
			serviceutil.Fatal("invalid schedule", err)
		}
		spec := cfg.Schedule.Cron
		if *daemonCron != "" {
			spec = *daemonCron
		}

		deps, err := newCompareDeps(true, false)
		if err != nil {
			serviceutil.Fatal("failed to set up comparison scraper", err)
		}
		defer deps.close()

		job := compare.NewJob(deps.runner, compare.JobOptions{
			Pairs:        deps.settings.Pairs,
			SnapshotPath: cfg.Compare.SnapshotPath,
			History:      deps.history,
			Retention:    retention,
		}, chrono.NewStandardTime(), tel)

		run := func() {
			_, err := job.Run(ctx)
			if err != nil && !errors.Is(err, compare.ErrRunInProgress) {
				slog.Error("scheduled comparison run failed", "err", err)
			}
		}

		telemetry.InstrumentPerfStats(ctx)

		cron := chrono.NewStandardCron(location, tel)
		err = cron.Cron(spec, run)
		if err != nil {
			deps.close()
			serviceutil.Fatal("invalid cron spec", err)
		}
		slog.Info("scheduler started", "cron", spec, "location", location.String())

		// cron.Stop waits for scheduled runs, the immediate run is tracked separately
		var immediate sync.WaitGroup
		if *daemonNow {
			immediate.Add(1)
			go func() {
				defer immediate.Done()
				run()
			}()
		}

		<-ctx.Done()
		slog.Info("shutting down, waiting for the running comparison to finish")
		<-cron.Stop().Done()
		immediate.Wait()
	},
}
