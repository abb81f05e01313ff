package mongostore

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strings"
	"testing"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/store"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

// newTestStore connects to VKUSYNC_TEST_MONGO_URI, or starts a throwaway mongodb container
// when it is unset. The tests are skipped when neither is available.
func newTestStore(t *testing.T) *Store {
	uri := os.Getenv("VKUSYNC_TEST_MONGO_URI")
	if uri == "" {
		uri = startMongo(t)
	}

	database := "vkusync_test_" + strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	s, err := Open(context.Background(), uri, database, &telemetry.MemoryAPI{})
	require.NoError(t, err)
	t.Cleanup(func() {
		s.Drop(context.Background())
		s.Close()
	})
	return s
}

func startMongo(t *testing.T) string {
	if testing.Short() {
		t.Skip("mongodb container skipped in short mode")
	}

	// suppress logging
	testcontainers.Logger = log.New(io.Discard, "", 0)

	ctx := context.Background()
	container, err := runContainer(
		ctx,
		testcontainers.GenericContainerRequest{
			Started: true,
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "mongo:7",
				ExposedPorts: []string{"27017/tcp"},
				WaitingFor:   wait.ForListeningPort("27017/tcp"),
			},
		},
	)
	if err != nil {
		t.Skipf("mongodb container unavailable: %s", err)
	}
	t.Cleanup(func() {
		container.Terminate(context.Background())
	})

	endpoint, err := container.PortEndpoint(ctx, "27017/tcp", "mongodb")
	require.NoError(t, err)
	return endpoint
}

// runContainer also turns the panic testcontainers raises without a docker host into an error.
func runContainer(ctx context.Context, req testcontainers.GenericContainerRequest) (container testcontainers.Container, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return testcontainers.GenericContainer(ctx, req)
}

func ptr[T any](v T) *T {
	return &v
}

var testStudent = store.Student{
	Owner:     "owner-1",
	StudentID: "22IT001",
	FullName:  "Nguyễn Văn A",
	ClassCode: "22GIT1",
	Faculty:   "Khoa Khoa học máy tính",
	Major:     "Công nghệ thông tin",
	SyncedAt:  time.Date(2024, 9, 1, 8, 0, 0, 0, time.UTC),
}

func TestStudentAndCascade(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.GetStudent(ctx, testStudent.Owner, testStudent.StudentID)
	require.ErrorIs(t, err, store.ErrNotFound)

	_, err = s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)
	_, err = s.InsertStudent(ctx, testStudent)
	require.Error(t, err)

	got, err := s.GetStudent(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Equal(t, testStudent, got)

	grades, err := s.InsertGrades(ctx, []store.Grade{
		{Owner: testStudent.Owner, StudentID: testStudent.StudentID, CourseName: "a", Credits: 3, Score: ptr(8.0), Semester: "Học kỳ 1"},
		{Owner: testStudent.Owner, StudentID: testStudent.StudentID, CourseName: "b", Credits: 2, Semester: "Học kỳ 1"},
	})
	require.NoError(t, err)
	require.Len(t, grades, 2)
	require.Equal(t, grades[0].ID+1, grades[1].ID)

	fetched, err := s.ListGrades(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Equal(t, grades, fetched)

	require.NoError(t, s.DeleteStudent(ctx, testStudent.Owner, testStudent.StudentID))
	fetched, err = s.ListGrades(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Empty(t, fetched)
	require.ErrorIs(t, s.DeleteStudent(ctx, testStudent.Owner, testStudent.StudentID), store.ErrNotFound)
}

func TestInsertProgressPartialFailure(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	progress := make([]store.Progress, 5)
	for i := range progress {
		progress[i] = store.Progress{
			Owner:      testStudent.Owner,
			StudentID:  testStudent.StudentID,
			CourseName: "course",
			Semester:   i + 1,
			Credits:    3,
		}
	}
	progress[1].Grade4 = ptr(7)
	progress[3].LetterGrade = "Z"

	inserted, err := s.InsertProgress(ctx, progress)
	require.NoError(t, err)
	require.Len(t, inserted, 3)

	fetched, err := s.ListProgress(ctx, testStudent.Owner, testStudent.StudentID)
	require.NoError(t, err)
	require.Equal(t, inserted, fetched)
}

func TestStatsAndTokens(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	_, err := s.InsertStudent(ctx, testStudent)
	require.NoError(t, err)

	stats, err := s.Stats(ctx, testStudent.Owner)
	require.NoError(t, err)
	require.Equal(t, int64(1), stats.Students)
	require.Equal(t, []string{testStudent.Faculty}, stats.Faculties)

	require.NoError(t, s.CreateToken(ctx, store.Token{Hash: "h", Owner: "owner-1", CreatedAt: time.Unix(1700000000, 0).UTC()}))
	token, err := s.GetToken(ctx, "h")
	require.NoError(t, err)
	require.Equal(t, "owner-1", token.Owner)

	owners, err := s.TokenOwners(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"owner-1"}, owners)

	deleted, err := s.DeleteToken(ctx, "h")
	require.NoError(t, err)
	require.True(t, deleted)
}
