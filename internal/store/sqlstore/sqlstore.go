// Package sqlstore implements store.Store on sqlite, either a local file or a remote libsql
// database.
package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/db"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/sqliteutil"
)

const (
	report_insert_grade    = "insert.grade"
	report_insert_progress = "insert.progress"
	report_insert_summary  = "insert.summary"
)

type Store struct {
	sqldb  *sql.DB
	qry    *db.Queries
	makeTx db.MakeTx
	tel    telemetry.API
}

var (
	_ store.Store      = Store{}
	_ store.TokenStore = Store{}
)

// Open opens the database at dsn and applies the schema.
func Open(dsn string, tel telemetry.API) (Store, error) {
	sqldb, err := sqliteutil.OpenDB(db.Schema, dsn)
	if err != nil {
		return Store{}, err
	}
	return New(sqldb, tel), nil
}

func New(sqldb *sql.DB, tel telemetry.API) Store {
	assert.NotNil(sqldb, "sqldb")
	assert.NotNil(tel, "tel")

	return Store{
		sqldb:  sqldb,
		qry:    db.New(sqldb),
		makeTx: db.NewMakeTx(sqldb),
		tel:    telemetry.NewScopedAPI("sqlstore", tel),
	}
}

func (s Store) Close() error {
	return s.sqldb.Close()
}

func notFound(err error) error {
	if errors.Is(err, sql.ErrNoRows) {
		return store.ErrNotFound
	}
	return err
}

func (s Store) GetStudent(ctx context.Context, owner, studentID string) (store.Student, error) {
	row, err := s.qry.GetStudent(ctx, db.GetStudentParams{
		Owner:     owner,
		StudentID: studentID,
	})
	if err != nil {
		return store.Student{}, notFound(err)
	}
	return studentFromRow(row), nil
}

func (s Store) ListStudents(ctx context.Context, owner string) ([]store.Student, error) {
	rows, err := s.qry.ListStudents(ctx, owner)
	if err != nil {
		return nil, err
	}
	out := make([]store.Student, len(rows))
	for i, r := range rows {
		out[i] = studentFromRow(r)
	}
	return out, nil
}

func (s Store) InsertStudent(ctx context.Context, student store.Student) (store.Student, error) {
	if student.SyncedAt.IsZero() {
		student.SyncedAt = time.Now()
	}
	row, err := s.qry.CreateStudent(ctx, db.CreateStudentParams{
		Owner:     student.Owner,
		StudentID: student.StudentID,
		FullName:  student.FullName,
		ClassCode: student.ClassCode,
		Cohort:    student.Cohort,
		Major:     student.Major,
		Faculty:   student.Faculty,
		SyncedAt:  student.SyncedAt.Unix(),
	})
	if err != nil {
		return store.Student{}, fmt.Errorf("insert student: %w", err)
	}
	return studentFromRow(row), nil
}

// DeleteStudent removes the student, the foreign keys of the dependent tables cascade.
func (s Store) DeleteStudent(ctx context.Context, owner, studentID string) error {
	affected, err := s.qry.DeleteStudent(ctx, db.DeleteStudentParams{
		Owner:     owner,
		StudentID: studentID,
	})
	if err != nil {
		return fmt.Errorf("delete student: %w", err)
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// insertEach inserts every item with its own statement inside one transaction. A failing
// statement only rolls back itself in sqlite, so the remaining rows still go in and the
// failure is reported per row.
func insertEach[In any, Out any](
	ctx context.Context,
	s Store,
	reportId string,
	items []In,
	insert func(tx *db.Queries, item In) (Out, error),
) ([]Out, error) {
	if len(items) == 0 {
		return []Out{}, nil
	}

	tx, discard, commit, err := s.makeTx(ctx)
	if err != nil {
		return nil, err
	}
	defer discard()

	out := make([]Out, 0, len(items))
	for i, item := range items {
		row, err := insert(tx, item)
		if err != nil {
			s.tel.ReportWarning(reportId, fmt.Errorf("row %d: %w", i, err))
			continue
		}
		out = append(out, row)
	}

	err = commit()
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (s Store) InsertGrades(ctx context.Context, grades []store.Grade) ([]store.Grade, error) {
	return insertEach(ctx, s, report_insert_grade, grades, func(tx *db.Queries, g store.Grade) (store.Grade, error) {
		row, err := tx.CreateGrade(ctx, db.CreateGradeParams{
			Owner:      g.Owner,
			StudentID:  g.StudentID,
			CourseName: g.CourseName,
			Credits:    int64(g.Credits),
			Score:      nullFloat(g.Score),
			Semester:   g.Semester,
		})
		return gradeFromRow(row), err
	})
}

func (s Store) ListGrades(ctx context.Context, owner, studentID string) ([]store.Grade, error) {
	rows, err := s.qry.ListGrades(ctx, db.ListGradesParams{
		Owner:     owner,
		StudentID: studentID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.Grade, len(rows))
	for i, r := range rows {
		out[i] = gradeFromRow(r)
	}
	return out, nil
}

func (s Store) InsertProgress(ctx context.Context, progress []store.Progress) ([]store.Progress, error) {
	return insertEach(ctx, s, report_insert_progress, progress, func(tx *db.Queries, p store.Progress) (store.Progress, error) {
		row, err := tx.CreateAcademicProgress(ctx, db.CreateAcademicProgressParams{
			Owner:       p.Owner,
			StudentID:   p.StudentID,
			CourseName:  p.CourseName,
			Semester:    int64(p.Semester),
			Mandatory:   p.Mandatory,
			Credits:     int64(p.Credits),
			LetterGrade: nullString(p.LetterGrade),
			Grade4:      nullInt(p.Grade4),
		})
		return progressFromRow(row), err
	})
}

func (s Store) ListProgress(ctx context.Context, owner, studentID string) ([]store.Progress, error) {
	rows, err := s.qry.ListAcademicProgress(ctx, db.ListAcademicProgressParams{
		Owner:     owner,
		StudentID: studentID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.Progress, len(rows))
	for i, r := range rows {
		out[i] = progressFromRow(r)
	}
	return out, nil
}

func (s Store) InsertSummaries(ctx context.Context, summaries []store.Summary) ([]store.Summary, error) {
	return insertEach(ctx, s, report_insert_summary, summaries, func(tx *db.Queries, sm store.Summary) (store.Summary, error) {
		row, err := tx.CreateSemesterSummary(ctx, db.CreateSemesterSummaryParams{
			Owner:             sm.Owner,
			StudentID:         sm.StudentID,
			Semester:          sm.Semester,
			RegisteredCredits: int64(sm.RegisteredCredits),
			NewCredits:        int64(sm.NewCredits),
			Gpa4:              nullFloat(sm.Gpa4),
			Gpa10:             nullFloat(sm.Gpa10),
			ScholarshipGpa:    nullFloat(sm.ScholarshipGpa),
			SemesterCredits:   int64(sm.SemesterCredits),
			Classification:    sm.Classification,
			CumulativeGpa4:    nullFloat(sm.CumulativeGpa4),
			CumulativeGpa10:   nullFloat(sm.CumulativeGpa10),
			CumulativeCredits: int64(sm.CumulativeCredits),
		})
		return summaryFromRow(row), err
	})
}

func (s Store) ListSummaries(ctx context.Context, owner, studentID string) ([]store.Summary, error) {
	rows, err := s.qry.ListSemesterSummaries(ctx, db.ListSemesterSummariesParams{
		Owner:     owner,
		StudentID: studentID,
	})
	if err != nil {
		return nil, err
	}
	out := make([]store.Summary, len(rows))
	for i, r := range rows {
		out[i] = summaryFromRow(r)
	}
	return out, nil
}

func (s Store) Stats(ctx context.Context, owner string) (store.Stats, error) {
	count, err := s.qry.CountStudents(ctx, owner)
	if err != nil {
		return store.Stats{}, err
	}
	faculties, err := s.qry.ListFaculties(ctx, owner)
	if err != nil {
		return store.Stats{}, err
	}
	majors, err := s.qry.ListMajors(ctx, owner)
	if err != nil {
		return store.Stats{}, err
	}
	return store.NewStats(count, faculties, majors), nil
}

func (s Store) CreateToken(ctx context.Context, token store.Token) error {
	if token.CreatedAt.IsZero() {
		token.CreatedAt = time.Now()
	}
	return s.qry.CreateApiToken(ctx, db.CreateApiTokenParams{
		TokenHash: token.Hash,
		Owner:     token.Owner,
		Label:     token.Label,
		CreatedAt: token.CreatedAt.Unix(),
		ExpiresAt: nullTime(token.ExpiresAt),
	})
}

func (s Store) GetToken(ctx context.Context, hash string) (store.Token, error) {
	row, err := s.qry.GetApiToken(ctx, hash)
	if err != nil {
		return store.Token{}, notFound(err)
	}
	return tokenFromRow(row), nil
}

func (s Store) DeleteToken(ctx context.Context, hash string) (bool, error) {
	affected, err := s.qry.DeleteApiToken(ctx, hash)
	if err != nil {
		return false, err
	}
	return affected > 0, nil
}

func (s Store) TokenOwners(ctx context.Context) ([]string, error) {
	return s.qry.ListApiTokenOwners(ctx)
}
