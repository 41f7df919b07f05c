package commands

import (
	"log/slog"
	"os"
	"remitscout-backend/internal/compare"
	"remitscout-backend/internal/components/chrono"
	"remitscout-backend/internal/components/serviceutil"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	compareOut         *string
	compareShowBrowser *bool
	compareNoHistory   *bool
	historyLimit       *int
	historyRun         *string
)

func init() {
	compareOut = compareRunCmd.Flags().String("out", "", "The snapshot file to write, defaults to compare.snapshot_path.")
	compareShowBrowser = compareRunCmd.Flags().Bool("show-browser", false, "Run chrome with a visible window.")
	compareNoHistory = compareRunCmd.Flags().Bool("no-history", false, "Do not record the run in the history database.")

	historyLimit = compareHistoryCmd.Flags().Int("limit", 20, "The number of runs to list.")
	historyRun = compareHistoryCmd.Flags().String("run", "", "Show the quotes of this run instead of listing runs.")

	compareCmd.AddCommand(compareRunCmd, compareHistoryCmd)
	rootCmd.AddCommand(compareCmd)
}

var compareCmd = &cobra.Command{
	Use:   "compare",
	Short: "Scrapes remittance comparison pages.",
}

func printQuotes(pairs []compare.Pair, quotes map[string][]compare.Quote) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Pair", "Status", "Provider", "Code", "Recipient gets", "Rate", "Fee", "Note"})
	for _, pair := range pairs {
		key := pair.Key()
		for _, q := range quotes[key] {
			note := q.Reason
			if q.Status == compare.STATUS_ERROR {
				note = q.Message
			}
			t.AppendRow(table.Row{key, q.Status, q.ProviderName, q.ProviderCode, q.RecipientAmount, q.ExchangeRate, q.Fee, note})
		}
		t.AppendSeparator()
	}
	t.Render()
}

var compareRunCmd = &cobra.Command{
	Use:   "run [--out <path/to/snapshot.json>]",
	Short: "Scrapes every configured pair once and writes the snapshot.",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := newCompareDeps(!*compareNoHistory, *compareShowBrowser)
		if err != nil {
			serviceutil.Fatal("failed to set up comparison scraper", err)
		}
		defer deps.close()

		out := *compareOut
		if out == "" {
			out = cfg.Compare.SnapshotPath
		}
		job := compare.NewJob(deps.runner, compare.JobOptions{
			Pairs:        deps.settings.Pairs,
			SnapshotPath: out,
			History:      deps.history,
		}, chrono.NewStandardTime(), tel)

		t1 := time.Now()
		result, err := job.Run(cmd.Context())
		if err != nil {
			deps.close()
			serviceutil.Fatal("comparison run failed", err)
		}
		quotes, errs := result.Counts()
		slog.Info("comparison run finished", "run_id", result.RunID, "quotes", quotes, "errors", errs, "seconds", time.Since(t1).Seconds(), "snapshot", out)

		printQuotes(result.Pairs, result.Quotes)
	},
}

var compareHistoryCmd = &cobra.Command{
	Use:   "history [--limit <n>] [--run <run id>]",
	Short: "Lists recorded comparison runs or the quotes of one run.",
	Run: func(cmd *cobra.Command, args []string) {
		deps, err := newCompareDeps(true, false)
		if err != nil {
			serviceutil.Fatal("failed to open history", err)
		}
		defer deps.close()
		if deps.history == nil {
			slog.Warn("no history database configured")
			return
		}

		if *historyRun != "" {
			quotes, err := deps.history.Quotes(cmd.Context(), *historyRun)
			if err != nil {
				deps.close()
				serviceutil.Fatal("failed to read quotes", err)
			}
			printQuotes(deps.settings.Pairs, quotes)
			return
		}

		runs, err := deps.history.Runs(cmd.Context(), *historyLimit)
		if err != nil {
			deps.close()
			serviceutil.Fatal("failed to list runs", err)
		}
		t := table.NewWriter()
		t.SetOutputMirror(os.Stdout)
		t.AppendHeader(table.Row{"Run", "Started", "Duration", "Pairs", "Quotes", "Errors"})
		for _, r := range runs {
			t.AppendRow(table.Row{
				r.ID,
				r.StartedAt.Format(time.DateTime),
				r.FinishedAt.Sub(r.StartedAt).String(),
				r.Pairs,
				r.Quotes,
				r.Errors,
			})
		}
		t.Render()
	},
}
