package recordsync

import (
	"strings"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/textutil"
)

// NormalizeProgress turns extracted progress rows into store records. The semester and the
// credits fall back to the first digit run of their raw cell, credits default to 0 and a
// row without a semester or course name is dropped.
func NormalizeProgress(records []portal.ProgressRecord, owner, studentID string) (out []store.Progress, dropped int) {
	out = make([]store.Progress, 0, len(records))
	for _, r := range records {
		semester := r.Semester
		if semester == nil {
			if n, ok := textutil.FirstInt(r.SemesterText); ok {
				semester = &n
			}
		}

		credits := r.Credits
		if credits == 0 && r.CreditsText != "" {
			if n, ok := textutil.FirstInt(r.CreditsText); ok {
				credits = n
			}
		}
		if credits < 0 {
			credits = 0
		}

		courseName := strings.TrimSpace(r.CourseName)
		if semester == nil || courseName == "" {
			dropped++
			continue
		}

		out = append(out, store.Progress{
			Owner:       owner,
			StudentID:   studentID,
			CourseName:  courseName,
			Semester:    *semester,
			Mandatory:   r.Mandatory,
			Credits:     credits,
			LetterGrade: r.LetterGrade,
			Grade4:      r.Grade4,
		})
	}
	return out, dropped
}

func gradesToStore(records []portal.GradeRecord, owner, studentID string) []store.Grade {
	out := make([]store.Grade, len(records))
	for i, r := range records {
		out[i] = store.Grade{
			Owner:      owner,
			StudentID:  studentID,
			CourseName: r.CourseName,
			Credits:    r.Credits,
			Score:      r.Score,
			Semester:   r.Semester,
		}
	}
	return out
}

func summariesToStore(records []portal.SemesterSummary, owner, studentID string) []store.Summary {
	out := make([]store.Summary, len(records))
	for i, r := range records {
		out[i] = store.Summary{
			Owner:             owner,
			StudentID:         studentID,
			Semester:          r.Semester,
			RegisteredCredits: r.RegisteredCredits,
			NewCredits:        r.NewCredits,
			Gpa4:              r.Gpa4,
			Gpa10:             r.Gpa10,
			ScholarshipGpa:    r.ScholarshipGpa,
			SemesterCredits:   r.SemesterCredits,
			Classification:    r.Classification,
			CumulativeGpa4:    r.CumulativeGpa4,
			CumulativeGpa10:   r.CumulativeGpa10,
			CumulativeCredits: r.CumulativeCredits,
		}
	}
	return out
}

func studentToStore(p portal.Profile, owner string) store.Student {
	return store.Student{
		Owner:     owner,
		StudentID: p.StudentID,
		FullName:  p.FullName,
		ClassCode: p.ClassCode,
		Cohort:    p.Cohort,
		Major:     p.Major,
		Faculty:   p.Faculty,
	}
}
