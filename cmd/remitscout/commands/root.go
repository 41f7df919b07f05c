package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"remitscout-backend/internal/components/telemetry"
	"remitscout-backend/internal/config"
	"time"

	"github.com/spf13/cobra"
)

var (
	configPath *string
	dotenvPath *string
	verbose    *bool
)

// populated by the persistent pre-run of the root command
var (
	cfg       config.Config
	tel       telemetry.API = telemetry.SlogAPI{}
	otelSetup telemetry.Telemetry
)

var rootCmd = &cobra.Command{
	Use:   "remitscout",
	Short: "remitscout collects exchange rates, provider profiles and remittance quotes.",
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(*configPath, *dotenvPath)
		if err != nil {
			return err
		}
		cfg = loaded
		telemetry.InitSlog(*verbose || cfg.Verbose)

		otelSetup, err = telemetry.Setup(cmd.Context(), "remitscout", cfg.Telemetry)
		if err != nil {
			return fmt.Errorf("setup telemetry: %w", err)
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := otelSetup.Shutdown(ctx)
		if err != nil {
			slog.Warn("failed to flush telemetry", "err", err)
		}
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().String("config", "remitscout.json5", "The config file to read.")
	dotenvPath = rootCmd.PersistentFlags().String("dotenv", ".env", "The .env file holding rate api credentials.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
