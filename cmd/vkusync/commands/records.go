package commands

import (
	"errors"
	"fmt"
	"os"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/serviceutil"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(studentsCmd, gradesCmd, progressCmd, statsCmd)
}

var studentsCmd = &cobra.Command{
	Use:   "students",
	Short: "Lists the synced students.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		students, err := vkusync.Records.ListStudents(cmd.Context(), *owner)
		if err != nil {
			serviceutil.Fatal("failed to list students", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Student ID", "Name", "Class", "Major", "Faculty", "Synced at"})
		for _, s := range students {
			t.AppendRow(table.Row{s.StudentID, s.FullName, s.ClassCode, s.Major, s.Faculty, s.SyncedAt.Format("2006-01-02 15:04")})
		}
		t.AppendFooter(table.Row{"", "", "", "", "Total", len(students)})
		t.Render()
	},
}

func ensureStudent(cmd *cobra.Command, records store.Store, studentID string) {
	_, err := records.GetStudent(cmd.Context(), *owner, studentID)
	if errors.Is(err, store.ErrNotFound) {
		fmt.Fprintf(os.Stderr, "student %s has not been synced\n", studentID)
		os.Exit(1)
	}
	if err != nil {
		serviceutil.Fatal("failed to read student", err)
	}
}

var gradesCmd = &cobra.Command{
	Use:   "grades <student id>",
	Short: "Lists the synced grades and semester summaries of a student.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()
		ensureStudent(cmd, vkusync.Records, args[0])

		grades, err := vkusync.Records.ListGrades(cmd.Context(), *owner, args[0])
		if err != nil {
			serviceutil.Fatal("failed to list grades", err)
		}
		t := newTable()
		t.AppendHeader(table.Row{"Semester", "Course", "Credits", "Score"})
		for _, g := range grades {
			t.AppendRow(table.Row{g.Semester, g.CourseName, g.Credits, orDash(g.Score)})
		}
		t.Render()

		summaries, err := vkusync.Records.ListSummaries(cmd.Context(), *owner, args[0])
		if err != nil {
			serviceutil.Fatal("failed to list summaries", err)
		}
		if len(summaries) == 0 {
			return
		}
		s := newTable()
		s.AppendHeader(table.Row{"Semester", "Credits", "GPA (4)", "GPA (10)", "Classification", "Cumulative GPA (4)", "Cumulative credits"})
		for _, summary := range summaries {
			s.AppendRow(table.Row{
				summary.Semester,
				summary.SemesterCredits,
				orDash(summary.Gpa4),
				orDash(summary.Gpa10),
				summary.Classification,
				orDash(summary.CumulativeGpa4),
				summary.CumulativeCredits,
			})
		}
		s.Render()
	},
}

var progressCmd = &cobra.Command{
	Use:   "progress <student id>",
	Short: "Lists the synced academic progress of a student with its credit totals.",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()
		ensureStudent(cmd, vkusync.Records, args[0])

		progress, err := vkusync.Records.ListProgress(cmd.Context(), *owner, args[0])
		if err != nil {
			serviceutil.Fatal("failed to list progress", err)
		}

		t := newTable()
		t.AppendHeader(table.Row{"Semester", "Course", "Mandatory", "Credits", "Grade"})
		for _, p := range progress {
			grade := p.LetterGrade
			if grade == "" {
				grade = "-"
			}
			t.AppendRow(table.Row{p.Semester, p.CourseName, p.Mandatory, p.Credits, grade})
		}
		t.Render()

		summary := store.SummarizeProgress(progress)
		fmt.Printf(
			"%d courses, %d/%d credits completed (%d mandatory, %d elective), average grade (4): %v\n",
			summary.Courses,
			summary.CompletedCredits,
			summary.TotalCredits,
			summary.MandatoryCredits,
			summary.ElectiveCredits,
			orDash(summary.AverageGrade4),
		)
	},
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Prints the number of synced students and their distinct faculties and majors.",
	Run: func(cmd *cobra.Command, args []string) {
		vkusync := openApp(cmd.Context())
		defer vkusync.Close()

		stats, err := vkusync.Records.Stats(cmd.Context(), *owner)
		if err != nil {
			serviceutil.Fatal("failed to read stats", err)
		}
		fmt.Printf("%d students\n", stats.Students)

		t := newTable()
		t.AppendHeader(table.Row{"Faculties", "Majors"})
		rows := max(len(stats.Faculties), len(stats.Majors))
		for i := 0; i < rows; i++ {
			row := table.Row{"", ""}
			if i < len(stats.Faculties) {
				row[0] = stats.Faculties[i]
			}
			if i < len(stats.Majors) {
				row[1] = stats.Majors[i]
			}
			t.AppendRow(row)
		}
		t.Render()
	},
}
