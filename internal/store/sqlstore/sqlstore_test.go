package sqlstore

import (
	"context"
	"testing"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/store"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

func newTestStore(t testing.TB) (Store, *telemetry.MemoryAPI) {
	tel := &telemetry.MemoryAPI{}
	s, err := Open(":memory:", tel)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, tel
}

func ptr[T any](v T) *T {
	return &v
}

var testStudent = store.Student{
	Owner:     "owner-1",
	StudentID: "22IT001",
	FullName:  "Nguyễn Văn A",
	ClassCode: "22GIT1",
	Cohort:    "2022",
	Major:     "Công nghệ thông tin",
	Faculty:   "Khoa Khoa học máy tính",
	SyncedAt:  time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
}

func testGrades(owner, studentID string) []store.Grade {
	return []store.Grade{
		{Owner: owner, StudentID: studentID, CourseName: "Nhập môn lập trình", Credits: 3, Score: ptr(8.5), Semester: "Học kỳ 1 - Năm học 2022-2023"},
		{Owner: owner, StudentID: studentID, CourseName: "Toán rời rạc", Credits: 3, Score: nil, Semester: "Học kỳ 1 - Năm học 2022-2023"},
		{Owner: owner, StudentID: studentID, CourseName: "Giáo dục thể chất", Credits: 0, Score: ptr(10.0), Semester: "Học kỳ riêng - Quy đổi"},
	}
}

var ignoreIDs = cmpopts.IgnoreFields(store.Grade{}, "ID")

func TestStudentCrud(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetStudent(ctx, testStudent.Owner, testStudent.StudentID)
	require.ErrorIs(t, err, store.ErrNotFound)

	inserted, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)
	require.Equal(t, testStudent, inserted)

	got, err := s.GetStudent(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Equal(t, testStudent, got)

	// same student id under another owner is a separate record
	other := testStudent
	other.Owner = "owner-2"
	_, err = s.InsertStudent(ctx, other)
	require.NoError(t, err)

	// the primary key rejects a second insert for the same owner
	_, err = s.InsertStudent(ctx, testStudent)
	require.Error(t, err)

	list, err := s.ListStudents(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, list, 1)

	require.NoError(t, s.DeleteStudent(ctx, testStudent.Owner, testStudent.StudentID))
	require.ErrorIs(t, s.DeleteStudent(ctx, testStudent.Owner, testStudent.StudentID), store.ErrNotFound)

	_, err = s.GetStudent(ctx, "owner-2", testStudent.StudentID)
	require.NoError(t, err)
}

func TestGradesRoundTrip(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)

	grades := testGrades(testStudent.Owner, testStudent.StudentID)
	inserted, err := s.InsertGrades(ctx, grades)
	require.NoError(t, err)
	require.Len(t, inserted, len(grades))
	for _, g := range inserted {
		require.NotZero(t, g.ID)
	}

	fetched, err := s.ListGrades(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)

	diff := cmp.Diff(grades, fetched, ignoreIDs, cmpopts.SortSlices(func(a, b store.Grade) bool {
		return a.CourseName < b.CourseName
	}))
	require.Empty(t, diff)
}

func TestInsertGradesPartialFailure(t *testing.T) {
	s, tel := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)

	grades := testGrades(testStudent.Owner, testStudent.StudentID)
	grades[1].CourseName = ""
	grades[2].Score = ptr(11.0)

	inserted, err := s.InsertGrades(ctx, grades)
	require.NoError(t, err)
	require.Len(t, inserted, 1)
	require.Equal(t, "Nhập môn lập trình", inserted[0].CourseName)
	require.Len(t, tel.Reports("warning"), 2)

	// a grade for a student that does not exist violates the foreign key
	orphan := testGrades(testStudent.Owner, "missing")
	inserted, err = s.InsertGrades(ctx, orphan)
	require.NoError(t, err)
	require.Empty(t, inserted)
}

func TestInsertProgressPartialFailure(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)

	progress := make([]store.Progress, 5)
	for i := range progress {
		progress[i] = store.Progress{
			Owner:      testStudent.Owner,
			StudentID:  testStudent.StudentID,
			CourseName: "Học phần " + string(rune('A'+i)),
			Semester:   i + 1,
			Mandatory:  i%2 == 0,
			Credits:    3,
		}
	}
	progress[0].LetterGrade = "B"
	progress[0].Grade4 = ptr(3)
	// rejected by the check constraints
	progress[1].Grade4 = ptr(7)
	progress[3].LetterGrade = "Z"

	inserted, err := s.InsertProgress(ctx, progress)
	require.NoError(t, err)
	require.Len(t, inserted, 3)

	fetched, err := s.ListProgress(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Len(t, fetched, 3)
	require.Equal(t, "B", fetched[0].LetterGrade)
	require.Equal(t, ptr(3), fetched[0].Grade4)
	require.Nil(t, fetched[1].Grade4)
}

func TestDeleteCascades(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)
	_, err = s.InsertGrades(ctx, testGrades(testStudent.Owner, testStudent.StudentID))
	require.NoError(t, err)
	_, err = s.InsertProgress(ctx, []store.Progress{{
		Owner: testStudent.Owner, StudentID: testStudent.StudentID, CourseName: "x", Semester: 1, Credits: 2,
	}})
	require.NoError(t, err)
	_, err = s.InsertSummaries(ctx, []store.Summary{{
		Owner: testStudent.Owner, StudentID: testStudent.StudentID, Semester: "Học kỳ 1", Gpa4: ptr(3.2), Classification: "Giỏi",
	}})
	require.NoError(t, err)

	summaries, err := s.ListSummaries(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	require.Equal(t, ptr(3.2), summaries[0].Gpa4)
	require.Nil(t, summaries[0].Gpa10)

	require.NoError(t, s.DeleteStudent(ctx, testStudent.Owner, testStudent.StudentID))

	grades, err := s.ListGrades(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Empty(t, grades)
	progress, err := s.ListProgress(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Empty(t, progress)
	summaries, err = s.ListSummaries(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Empty(t, summaries)
}

func TestStats(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	for i, faculty := range []string{"Khoa Khoa học máy tính", "Khoa khoa học máy tính ", "Khoa Kỹ thuật máy tính và Điện tử"} {
		student := testStudent
		student.StudentID = string(rune('a' + i))
		student.Faculty = faculty
		_, err := s.InsertStudent(ctx, student)
		require.NoError(t, err)
	}

	stats, err := s.Stats(ctx, testStudent.Owner)
	require.NoError(t, err)
	require.Equal(t, int64(3), stats.Students)
	require.Len(t, stats.Faculties, 2)
	require.Equal(t, []string{"Công nghệ thông tin"}, stats.Majors)

	empty, err := s.Stats(ctx, "nobody")
	require.NoError(t, err)
	require.Zero(t, empty.Students)
	require.Empty(t, empty.Faculties)
}

func TestTokens(t *testing.T) {
	s, _ := newTestStore(t)
	ctx := context.Background()

	expires := time.Date(2030, 1, 1, 0, 0, 0, 0, time.UTC)
	token := store.Token{
		Hash:      "hash-1",
		Owner:     "owner-1",
		Label:     "laptop",
		CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		ExpiresAt: &expires,
	}
	require.NoError(t, s.CreateToken(ctx, token))
	require.NoError(t, s.CreateToken(ctx, store.Token{Hash: "hash-2", Owner: "owner-2"}))
	require.Error(t, s.CreateToken(ctx, store.Token{Hash: "hash-3"}))

	got, err := s.GetToken(ctx, "hash-1")
	require.NoError(t, err)
	require.Equal(t, token, got)

	owners, err := s.TokenOwners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"owner-1", "owner-2"}, owners)

	deleted, err := s.DeleteToken(ctx, "hash-1")
	require.NoError(t, err)
	require.True(t, deleted)
	deleted, err = s.DeleteToken(ctx, "hash-1")
	require.NoError(t, err)
	require.False(t, deleted)

	_, err = s.GetToken(ctx, "hash-1")
	require.ErrorIs(t, err, store.ErrNotFound)
}
