package store

import (
	"math"
	"strings"
	"vkusync-backend/pkg/textutil"
)

type Stats struct {
	Students  int64    `json:"students"`
	Faculties []string `json:"faculties"`
	Majors    []string `json:"majors"`
}

// NewStats builds Stats from the distinct faculty and major values of a store. The portal is
// not consistent in how it spells those names across cohorts, near duplicates are merged.
func NewStats(students int64, faculties, majors []string) Stats {
	return Stats{
		Students:  students,
		Faculties: MergeSimilar(faculties),
		Majors:    MergeSimilar(majors),
	}
}

// MergeSimilar drops names that are a near duplicate of an earlier name, keeping the first
// spelling seen.
func MergeSimilar(names []string) []string {
	out := []string{}
	for _, name := range names {
		name = strings.TrimSpace(name)
		if name == "" {
			continue
		}
		duplicate := false
		for _, kept := range out {
			if textutil.SimilarName(kept, name) {
				duplicate = true
				break
			}
		}
		if !duplicate {
			out = append(out, name)
		}
	}
	return out
}

// ProgressSummary aggregates the progress table of one student.
type ProgressSummary struct {
	Courses          int      `json:"courses"`
	TotalCredits     int      `json:"total_credits"`
	CompletedCredits int      `json:"completed_credits"`
	MandatoryCredits int      `json:"mandatory_credits"`
	ElectiveCredits  int      `json:"elective_credits"`
	AverageGrade4    *float64 `json:"average_grade_4"`
}

// Completed reports whether the course has been passed, a letter grade other than F.
func (p Progress) Completed() bool {
	return p.LetterGrade != "" && p.LetterGrade != "F"
}

// SummarizeProgress totals credits over the progress records, the average on the 4 scale is
// weighted by credits and only covers courses that have a grade.
func SummarizeProgress(progress []Progress) ProgressSummary {
	summary := ProgressSummary{Courses: len(progress)}

	var weighted float64
	var gradedCredits int
	for _, p := range progress {
		summary.TotalCredits += p.Credits
		if p.Mandatory {
			summary.MandatoryCredits += p.Credits
		} else {
			summary.ElectiveCredits += p.Credits
		}
		if p.Completed() {
			summary.CompletedCredits += p.Credits
		}
		if p.Grade4 != nil && p.Credits > 0 {
			weighted += float64(*p.Grade4 * p.Credits)
			gradedCredits += p.Credits
		}
	}

	if gradedCredits > 0 {
		avg := math.Round(weighted/float64(gradedCredits)*100) / 100
		summary.AverageGrade4 = &avg
	}
	return summary
}
