package commands

import (
	"fmt"
	"log/slog"
	"os"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/scraper"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

var (
	scrapeSync     *bool
	scrapeHeadless *bool
)

func init() {
	scrapeSync = scrapeCmd.Flags().Bool("sync", false, "Validate the scraped records and sync them into the record store.")
	scrapeHeadless = scrapeCmd.Flags().Bool("headless", false, "Run the browser without a window.")
	rootCmd.AddCommand(scrapeCmd)
}

func printBundle(bundle portal.Bundle) {
	profile := newTable()
	profile.AppendHeader(table.Row{"Student ID", "Name", "Class", "Cohort", "Major", "Faculty"})
	profile.AppendRow(table.Row{
		bundle.Profile.StudentID,
		bundle.Profile.FullName,
		bundle.Profile.ClassCode,
		bundle.Profile.Cohort,
		bundle.Profile.Major,
		bundle.Profile.Faculty,
	})
	profile.Render()

	grades := newTable()
	grades.AppendHeader(table.Row{"Semester", "Course", "Credits", "Score"})
	for _, g := range bundle.Grades {
		grades.AppendRow(table.Row{g.Semester, g.CourseName, g.Credits, orDash(g.Score)})
	}
	grades.Render()

	fmt.Printf("%d progress rows, %d semester summaries\n", len(bundle.Progress), len(bundle.Summaries))
}

var scrapeCmd = &cobra.Command{
	Use:   "scrape [--sync] [--headless]",
	Short: "Scrapes the profile, grades and progress of the logged in student using the saved session.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		opts := scraper.Options{
			Headless:    *scrapeHeadless,
			SessionPath: vkusync.Sessions.PathFor(*owner),
		}

		if !*scrapeSync {
			result := vkusync.Scraper.Run(cmd.Context(), opts)
			if !result.Success {
				fmt.Fprintln(os.Stderr, "scrape failed:", result.Error)
				os.Exit(1)
			}
			for _, warning := range result.Warnings {
				slog.Warn("scrape step degraded", "step", warning)
			}
			printBundle(result.Bundle)
			return
		}

		outcome := vkusync.Pipeline.ScrapeAndSync(cmd.Context(), *owner, opts)
		for _, warning := range outcome.Data.Warnings {
			slog.Warn("scrape step degraded", "step", warning)
		}
		if !outcome.Success {
			fmt.Fprintln(os.Stderr, outcome.Message)
			os.Exit(1)
		}

		report := outcome.Data.Sync
		t := newTable()
		t.AppendHeader(table.Row{"Table", "Inserted", "Failed", "Dropped"})
		t.AppendRows([]table.Row{
			{"grades", report.GradesInserted, report.GradesFailed, 0},
			{"progress", report.ProgressInserted, report.ProgressFailed, report.ProgressDropped},
			{"summaries", report.SummariesInserted, report.SummariesFailed, 0},
		})
		t.Render()
		fmt.Println(outcome.Message)
	},
}
