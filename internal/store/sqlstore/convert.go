package sqlstore

import (
	"database/sql"
	"time"
	"vkusync-backend/internal/db"
	"vkusync-backend/internal/store"
)

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	out := v.Float64
	return &out
}

func nullInt(v *int) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: int64(*v), Valid: true}
}

func intPtr(v sql.NullInt64) *int {
	if !v.Valid {
		return nil
	}
	out := int(v.Int64)
	return &out
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullTime(v *time.Time) sql.NullInt64 {
	if v == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: v.Unix(), Valid: true}
}

func timePtr(v sql.NullInt64) *time.Time {
	if !v.Valid {
		return nil
	}
	out := time.Unix(v.Int64, 0).UTC()
	return &out
}

func studentFromRow(row db.Student) store.Student {
	return store.Student{
		Owner:     row.Owner,
		StudentID: row.StudentID,
		FullName:  row.FullName,
		ClassCode: row.ClassCode,
		Cohort:    row.Cohort,
		Major:     row.Major,
		Faculty:   row.Faculty,
		SyncedAt:  time.Unix(row.SyncedAt, 0).UTC(),
	}
}

func gradeFromRow(row db.Grade) store.Grade {
	return store.Grade{
		ID:         row.ID,
		Owner:      row.Owner,
		StudentID:  row.StudentID,
		CourseName: row.CourseName,
		Credits:    int(row.Credits),
		Score:      floatPtr(row.Score),
		Semester:   row.Semester,
	}
}

func progressFromRow(row db.AcademicProgress) store.Progress {
	return store.Progress{
		ID:          row.ID,
		Owner:       row.Owner,
		StudentID:   row.StudentID,
		CourseName:  row.CourseName,
		Semester:    int(row.Semester),
		Mandatory:   row.Mandatory,
		Credits:     int(row.Credits),
		LetterGrade: row.LetterGrade.String,
		Grade4:      intPtr(row.Grade4),
	}
}

func summaryFromRow(row db.SemesterSummary) store.Summary {
	return store.Summary{
		ID:                row.ID,
		Owner:             row.Owner,
		StudentID:         row.StudentID,
		Semester:          row.Semester,
		RegisteredCredits: int(row.RegisteredCredits),
		NewCredits:        int(row.NewCredits),
		Gpa4:              floatPtr(row.Gpa4),
		Gpa10:             floatPtr(row.Gpa10),
		ScholarshipGpa:    floatPtr(row.ScholarshipGpa),
		SemesterCredits:   int(row.SemesterCredits),
		Classification:    row.Classification,
		CumulativeGpa4:    floatPtr(row.CumulativeGpa4),
		CumulativeGpa10:   floatPtr(row.CumulativeGpa10),
		CumulativeCredits: int(row.CumulativeCredits),
	}
}

func tokenFromRow(row db.ApiToken) store.Token {
	return store.Token{
		Hash:      row.TokenHash,
		Owner:     row.Owner,
		Label:     row.Label,
		CreatedAt: time.Unix(row.CreatedAt, 0).UTC(),
		ExpiresAt: timePtr(row.ExpiresAt),
	}
}
