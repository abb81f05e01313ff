package commands

import (
	"fmt"
	"log/slog"
	"vkusync-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var servePort *int

func init() {
	servePort = serveCmd.Flags().Int("port", 0, "The port to listen on, overrides server.port.")
	rootCmd.AddCommand(serveCmd, resyncCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [--port <port>]",
	Short: "Serves the http api, with the scheduled re-sync when one is configured.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		port := vkusync.Config.Server.Port
		if *servePort != 0 {
			port = *servePort
		}

		cron, err := vkusync.ScheduleResync(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to schedule resync", err)
		}
		if cron != nil {
			defer cron.Stop()
			slog.Info("scheduled resync", "spec", vkusync.Config.Resync.Schedule)
		}

		serviceutil.StartHttpServer(cmd.Context(), port, vkusync.Service().Handler())
	},
}

var resyncCmd = &cobra.Command{
	Use:   "resync",
	Short: "Re-syncs every owner that has a saved session once, headless.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		summary, err := vkusync.Resync().RunOnce(cmd.Context())
		if err != nil {
			serviceutil.Fatal("failed to list owners", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Owners", "Synced", "Skipped", "Failed"})
		t.AppendRow(table.Row{summary.Owners, summary.Synced, summary.Skipped, summary.Failed})
		t.Render()
		if summary.Failed > 0 && vkusync.Config.Smtp.Configured() {
			fmt.Println("failed owners were reported to the configured smtp recipients")
		}
	},
}
