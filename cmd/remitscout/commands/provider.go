package commands

import (
	"encoding/json"
	"fmt"
	"os"
	"remitscout-backend/internal/components/serviceutil"
	"remitscout-backend/internal/providers"
	"strconv"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	providerJSON *bool
	providerDump *string
)

func init() {
	providerJSON = providerCmd.Flags().Bool("json", false, "Print profiles as json instead of a table.")
	providerDump = providerCmd.Flags().String("dump-http", "", "Write every homepage probe into this directory.")
	rootCmd.AddCommand(providerCmd)
}

func orDash[T any](value *T) string {
	if value == nil {
		return "-"
	}
	return fmt.Sprint(*value)
}

func printProfiles(profiles []providers.Profile) {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"Code", "Name", "Website", "Established", "Headquarters", "Regulations", "Transfer", "Payout"})
	for _, p := range profiles {
		established := "-"
		if p.Established != nil {
			established = strconv.Itoa(*p.Established)
		}
		t.AppendRow(table.Row{
			p.Code,
			p.Name,
			orDash(p.URL),
			established,
			orDash(p.Headquarters),
			strings.Join(p.Regulations, "\n"),
			strings.Join(p.TransferMethods, ", "),
			strings.Join(p.PayoutMethods, ", "),
		})
	}
	t.Render()
}

var providerCmd = &cobra.Command{
	Use:   "provider <code>...",
	Short: "Discovers and profiles money transfer providers.",
	Args:  cobra.MinimumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		if *providerDump != "" {
			cfg.Providers.DumpDir = *providerDump
		}
		scraper, _, err := newProviderScraper()
		if err != nil {
			serviceutil.Fatal("failed to create provider scraper", err)
		}

		profiles := scraper.ScrapeMany(cmd.Context(), args)
		if *providerJSON {
			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			err = enc.Encode(profiles)
			if err != nil {
				serviceutil.Fatal("failed to encode profiles", err)
			}
			return
		}
		printProfiles(profiles)
	},
}
