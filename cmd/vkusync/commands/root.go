package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"vkusync-backend/internal/app"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	configPath *string
	owner      *string
	verbose    *bool
)

var rootCmd = &cobra.Command{
	Use:   "vkusync",
	Short: "vkusync captures portal sessions, scrapes student records and syncs them into the record store.",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		telemetry.InitSlog(*verbose)
	},
}

func init() {
	configPath = rootCmd.PersistentFlags().StringP("config", "c", "config.json5", "The configuration file to read.")
	owner = rootCmd.PersistentFlags().String("owner", "", "The owner whose session and records are used, empty for the shared session.")
	verbose = rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging.")
}

func ExecuteContext(ctx context.Context) {
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// readConfig falls back to the defaults when there is no config file.
func readConfig() app.Config {
	cfg, err := app.ReadConfig(*configPath)
	if errors.Is(err, os.ErrNotExist) {
		slog.Debug("no config file, using defaults", "path", *configPath)
		cfg = app.Config{}.WithDefaults()
		err = cfg.Validate()
	}
	if err != nil {
		serviceutil.Fatal("failed to read config", err)
	}
	return cfg
}

func openApp(ctx context.Context) app.App {
	vkusync, err := app.New(ctx, readConfig(), telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("failed to initialize", err)
	}
	return vkusync
}

func newTable() table.Writer {
	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.SetStyle(table.StyleRounded)
	return t
}

func orDash(value *float64) any {
	if value == nil {
		return "-"
	}
	return *value
}
