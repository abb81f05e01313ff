package commands

import (
	"log/slog"
	"vkusync-backend/pkg/serviceutil"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(captureCmd)
}

var captureCmd = &cobra.Command{
	Use:   "capture [--owner <owner>]",
	Short: "Opens a browser window on the portal login page and saves the session once you have logged in.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		path := vkusync.Sessions.PathFor(*owner)
		slog.Info("waiting for login", "session", path)

		err := vkusync.Scraper.Capture(cmd.Context(), path)
		if err != nil {
			serviceutil.Fatal("failed to capture session", err)
		}
		slog.Info("session saved", "session", path)
	},
}
