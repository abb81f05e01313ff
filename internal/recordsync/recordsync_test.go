package recordsync

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/store"
	"vkusync-backend/internal/store/sqlstore"
	"vkusync-backend/internal/validate"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func ptr[T any](v T) *T {
	return &v
}

// faultStore wraps a real store and fails selected calls.
type faultStore struct {
	store.Store

	deleteErr       error
	insertErr       error
	panicOnGrades   bool
	failProgressIdx map[int]bool
	calls           []string
}

func (s *faultStore) DeleteStudent(ctx context.Context, owner, studentID string) error {
	s.calls = append(s.calls, "delete")
	if s.deleteErr != nil {
		return s.deleteErr
	}
	return s.Store.DeleteStudent(ctx, owner, studentID)
}

func (s *faultStore) InsertStudent(ctx context.Context, student store.Student) (store.Student, error) {
	s.calls = append(s.calls, "insert-student")
	if s.insertErr != nil {
		return store.Student{}, s.insertErr
	}
	return s.Store.InsertStudent(ctx, student)
}

func (s *faultStore) InsertGrades(ctx context.Context, grades []store.Grade) ([]store.Grade, error) {
	s.calls = append(s.calls, "insert-grades")
	if s.panicOnGrades {
		panic("connection reset")
	}
	return s.Store.InsertGrades(ctx, grades)
}

func (s *faultStore) InsertProgress(ctx context.Context, progress []store.Progress) ([]store.Progress, error) {
	s.calls = append(s.calls, "insert-progress")
	var keep []store.Progress
	for i, p := range progress {
		if !s.failProgressIdx[i] {
			keep = append(keep, p)
		}
	}
	return s.Store.InsertProgress(ctx, keep)
}

func newSqlStore(t *testing.T) sqlstore.Store {
	s, err := sqlstore.Open(":memory:", &telemetry.MemoryAPI{})
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func newManager(s store.Store, options ...ManagerOption) Manager {
	options = append([]ManagerOption{
		WithTelemetryAPI(&telemetry.MemoryAPI{}),
		WithTimeAPI(chrono.FixedTime{At: time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC)}),
	}, options...)
	return NewManager(s, options...)
}

var testProfile = portal.Profile{StudentID: "S1", FullName: "A", ClassCode: "C1", Faculty: "F1"}

func testBundle() portal.Bundle {
	return portal.Bundle{
		Profile: testProfile,
		Grades: []portal.GradeRecord{
			{CourseName: "Toán cao cấp", Credits: 3, Score: ptr(7.5), Semester: "Học kỳ 1"},
			{CourseName: "Triết học", Credits: 2, Score: nil, Semester: "Học kỳ 1"},
		},
		Progress: []portal.ProgressRecord{
			{CourseName: "Lập trình web", SemesterText: "5", Semester: ptr(5), Credits: 3, Mandatory: true},
			{CourseName: "Học máy", SemesterText: "HK 7", CreditsText: "3 (2LT)", Mandatory: false},
		},
		Summaries: []portal.SemesterSummary{
			{Semester: "Học kỳ 1 - Năm học 2021-2022", Gpa4: ptr(3.2), CumulativeCredits: 6},
		},
	}
}

func TestSyncAll(t *testing.T) {
	s := newSqlStore(t)
	m := newManager(s)
	ctx := context.Background()

	report := m.SyncAll(ctx, testBundle(), "owner-1")
	require.True(t, report.StudentOK, report.Message)
	require.Equal(t, 2, report.GradesInserted)
	require.Zero(t, report.GradesFailed)
	require.Equal(t, 2, report.ProgressInserted)
	require.Zero(t, report.ProgressFailed)
	require.Equal(t, 1, report.SummariesInserted)

	student, err := s.GetStudent(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Equal(t, "owner-1", student.Owner)
	require.Equal(t, time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC), student.SyncedAt)

	progress, err := s.ListProgress(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	require.Equal(t, 7, progress[1].Semester)
	require.Equal(t, 3, progress[1].Credits)
}

func TestSyncAllIsIdempotent(t *testing.T) {
	s := newSqlStore(t)
	m := newManager(s)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		report := m.SyncAll(ctx, testBundle(), "owner-1")
		require.True(t, report.StudentOK, report.Message)
	}

	grades, err := s.ListGrades(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
	progress, err := s.ListProgress(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Len(t, progress, 2)
	summaries, err := s.ListSummaries(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	students, err := s.ListStudents(ctx, "owner-1")
	require.NoError(t, err)
	require.Len(t, students, 1)

	// another owner syncing the same student gets its own copy
	report := m.SyncAll(ctx, testBundle(), "owner-2")
	require.True(t, report.StudentOK)
	grades, err = s.ListGrades(ctx, "owner-1", "S1")
	require.NoError(t, err)
	require.Len(t, grades, 2)
}

func TestSyncAllStudentInsertIsHardGate(t *testing.T) {
	fs := &faultStore{Store: newSqlStore(t), insertErr: errors.New("disk full")}
	m := newManager(fs)

	report := m.SyncAll(context.Background(), testBundle(), "owner-1")
	require.False(t, report.StudentOK)
	require.Contains(t, report.Message, "disk full")
	require.Zero(t, report.GradesInserted)
	require.Zero(t, report.GradesFailed)
	require.Equal(t, []string{"insert-student"}, fs.calls)
}

func TestSyncAllDeleteFailureStillInserts(t *testing.T) {
	inner := newSqlStore(t)
	fs := &faultStore{Store: inner}
	m := newManager(fs)
	ctx := context.Background()

	require.True(t, m.SyncAll(ctx, testBundle(), "owner-1").StudentOK)

	fs.deleteErr = errors.New("locked")
	fs.calls = nil
	report := m.SyncAll(ctx, testBundle(), "owner-1")
	require.Equal(t, []string{"delete", "insert-student"}, fs.calls)
	require.False(t, report.StudentOK)
}

func TestSyncAllStepsAreIsolated(t *testing.T) {
	fs := &faultStore{Store: newSqlStore(t), panicOnGrades: true}
	tel := &telemetry.MemoryAPI{}
	m := newManager(fs, WithTelemetryAPI(tel))

	report := m.SyncAll(context.Background(), testBundle(), "owner-1")
	require.True(t, report.StudentOK)
	require.Zero(t, report.GradesInserted)
	require.Equal(t, 2, report.GradesFailed)
	require.Equal(t, 2, report.ProgressInserted)
	require.Equal(t, 1, report.SummariesInserted)
	require.Len(t, tel.Reports("broken"), 1)
}

func TestSyncAllProgressPartialFailure(t *testing.T) {
	fs := &faultStore{Store: newSqlStore(t), failProgressIdx: map[int]bool{1: true, 3: true}}
	m := newManager(fs)

	bundle := testBundle()
	bundle.Progress = nil
	for i := 1; i <= 5; i++ {
		bundle.Progress = append(bundle.Progress, portal.ProgressRecord{
			CourseName:   "Học phần",
			SemesterText: "Học kỳ " + string(rune('0'+i)),
			CreditsText:  "2",
		})
	}

	report := m.SyncAll(context.Background(), bundle, "owner-1")
	require.True(t, report.StudentOK)
	require.Equal(t, 3, report.ProgressInserted)
	require.Equal(t, 2, report.ProgressFailed)
}

func TestEndToEndScenario(t *testing.T) {
	s := newSqlStore(t)
	m := newManager(s)
	v := validate.New(&telemetry.MemoryAPI{})

	bundle := portal.Bundle{
		Profile: testProfile,
		Grades: []portal.GradeRecord{
			{CourseName: "a", Credits: 3, Score: ptr(8.0), Semester: "Học kỳ 1"},
			{CourseName: "b", Credits: 2, Score: ptr(6.0), Semester: "Học kỳ 1"},
			{CourseName: "", Credits: 2, Score: ptr(5.0), Semester: "Học kỳ 1"},
		},
	}
	require.False(t, v.Grades(bundle.Grades))
	ok, _ := v.Bundle(&bundle)
	require.True(t, ok)

	report := m.SyncAll(context.Background(), bundle, "")
	require.True(t, report.StudentOK)
	require.Equal(t, 2, report.GradesInserted)
	require.Zero(t, report.GradesFailed)
}

func TestInvalidProfileNeverSyncs(t *testing.T) {
	fs := &faultStore{Store: newSqlStore(t)}
	v := validate.New(&telemetry.MemoryAPI{})

	bundle := testBundle()
	bundle.Profile.FullName = ""
	ok, _ := v.Bundle(&bundle)
	require.False(t, ok)
	// callers only sync validated bundles
	if ok {
		newManager(fs).SyncAll(context.Background(), bundle, "owner-1")
	}
	require.Empty(t, fs.calls)
}

func TestNormalizeProgress(t *testing.T) {
	out, dropped := NormalizeProgress([]portal.ProgressRecord{
		{CourseName: "a", Semester: ptr(2), Credits: 3},
		{CourseName: "b", SemesterText: "Kỳ 4", CreditsText: "<b>2</b>"},
		{CourseName: "c", SemesterText: "", CreditsText: "3"},
		{CourseName: " ", Semester: ptr(1)},
		{CourseName: "d", SemesterText: "6", CreditsText: "không"},
	}, "o", "S1")

	require.Equal(t, 2, dropped)
	require.Equal(t, []store.Progress{
		{Owner: "o", StudentID: "S1", CourseName: "a", Semester: 2, Credits: 3},
		{Owner: "o", StudentID: "S1", CourseName: "b", Semester: 4, Credits: 2},
		{Owner: "o", StudentID: "S1", CourseName: "d", Semester: 6, Credits: 0},
	}, out)
}

func TestSyncCounters(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	tel := &telemetry.MemoryAPI{}
	m := newManager(newSqlStore(t), WithMeterProvider(provider), WithTelemetryAPI(tel))
	ctx := context.Background()

	m.SyncAll(ctx, testBundle(), "owner-1")

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(ctx, &rm))

	var insertedGrades int64
	found := false
	for _, scope := range rm.ScopeMetrics {
		for _, metric := range scope.Metrics {
			if metric.Name != "vkusync.sync.records" {
				continue
			}
			found = true
			sum, ok := metric.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, point := range sum.DataPoints {
				table, _ := point.Attributes.Value(attribute.Key("table"))
				outcome, _ := point.Attributes.Value(attribute.Key("outcome"))
				if table.AsString() == "grades" && outcome.AsString() == "inserted" {
					insertedGrades += point.Value
				}
			}
		}
	}
	require.True(t, found)
	require.Equal(t, int64(2), insertedGrades)

	counts := map[string]int64{}
	for _, r := range tel.Reports("count") {
		counts[r.ID] = r.Count
	}
	require.Equal(t, int64(2), counts["recordsync: grades.inserted"])
	require.Equal(t, int64(0), counts["recordsync: progress.failed"])
}

func TestLocker(t *testing.T) {
	locker := NewLocker()

	unlock := locker.Lock("o", "S1")
	acquired := make(chan struct{})
	go func() {
		release := locker.Lock("o", "S1")
		close(acquired)
		release()
	}()

	// a different student is not blocked
	other := locker.Lock("o", "S2")
	other()

	select {
	case <-acquired:
		t.Fatal("second lock acquired while the first is held")
	case <-time.After(50 * time.Millisecond):
	}

	unlock()
	unlock()
	<-acquired

	require.Eventually(t, func() bool { return locker.held() == 0 }, time.Second, 10*time.Millisecond)

	var wg sync.WaitGroup
	counter := 0
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			release := locker.Lock("o", "S1")
			counter++
			release()
		}()
	}
	wg.Wait()
	require.Equal(t, 20, counter)
}
