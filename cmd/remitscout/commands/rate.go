package commands

import (
	"fmt"
	"log/slog"
	"os"
	"remitscout-backend/internal/components/serviceutil"
	"remitscout-backend/internal/rates"
	"strconv"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	historicalAt *string
	rangeFrom    *string
	rangeTo      *string
	rangeGroup   *string
)

func init() {
	historicalAt = rateHistoricalCmd.Flags().String("at", "", "The point in time, RFC3339 or YYYY-MM-DD.")
	rangeFrom = rateRangeCmd.Flags().String("from", "", "Start of the range, RFC3339 or YYYY-MM-DD.")
	rangeTo = rateRangeCmd.Flags().String("to", "", "End of the range, RFC3339 or YYYY-MM-DD.")
	rangeGroup = rateRangeCmd.Flags().String("group", string(rates.GROUP_DAY), "Bucket size: day, hour or minute.")

	rateCmd.AddCommand(rateCurrentCmd, rateHistoricalCmd, rateRangeCmd)
	rootCmd.AddCommand(rateCmd)
}

var rateCmd = &cobra.Command{
	Use:   "rate",
	Short: "Looks up exchange rates through the cached rate service.",
}

func printRecord(record rates.Record) {
	observations, err := record.Observations()
	if err != nil {
		serviceutil.Fatal("failed to decode rate payload", err)
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Source", "Target", "Rate", "Time"})
	for _, o := range observations {
		t.AppendRow(table.Row{o.Source, o.Target, strconv.FormatFloat(o.Rate, 'f', -1, 64), o.Time})
	}
	t.SetCaption("fetched %s", record.CreatedAt.Format("2006-01-02 15:04:05 MST"))
	t.Render()
}

// failRate logs the full error and shows users the generic message.
func failRate(err error) {
	slog.Debug("rate lookup failed", "err", err)
	fmt.Fprintln(os.Stderr, rates.UserMessage(err))
	os.Exit(1)
}

var rateCurrentCmd = &cobra.Command{
	Use:   "current <source> <target>",
	Short: "Shows the current exchange rate of a currency pair.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		service, closeService, err := newRateService(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to create rate service", err)
		}
		defer closeService()

		record, err := service.GetCurrentRate(cmd.Context(), args[0], args[1])
		if err != nil {
			closeService()
			failRate(err)
		}
		printRecord(record)
	},
}

var rateHistoricalCmd = &cobra.Command{
	Use:   "historical <source> <target> --at <time>",
	Short: "Shows the exchange rate of a currency pair at a point in time.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		at, err := parseTimeFlag("at", *historicalAt)
		if err != nil {
			serviceutil.Fatal("invalid flag", err)
		}

		service, closeService, err := newRateService(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to create rate service", err)
		}
		defer closeService()

		record, err := service.GetHistoricalRate(cmd.Context(), args[0], args[1], at)
		if err != nil {
			closeService()
			failRate(err)
		}
		printRecord(record)
	},
}

var rateRangeCmd = &cobra.Command{
	Use:   "range <source> <target> --from <time> --to <time> [--group day|hour|minute]",
	Short: "Shows the exchange rates of a currency pair over a time range.",
	Args:  cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		from, err := parseTimeFlag("from", *rangeFrom)
		if err != nil {
			serviceutil.Fatal("invalid flag", err)
		}
		to, err := parseTimeFlag("to", *rangeTo)
		if err != nil {
			serviceutil.Fatal("invalid flag", err)
		}

		service, closeService, err := newRateService(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to create rate service", err)
		}
		defer closeService()

		record, err := service.GetHistoricalRates(cmd.Context(), args[0], args[1], from, to, rates.Grouping(*rangeGroup))
		if err != nil {
			closeService()
			failRate(err)
		}
		printRecord(record)
	},
}
