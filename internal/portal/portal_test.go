package portal

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"vkusync-backend/internal/components/telemetry"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func loadFixture(t testing.TB, name string) *goquery.Document {
	t.Helper()
	f, err := os.Open(filepath.Join("testdata", name))
	require.NoError(t, err)
	defer f.Close()
	doc, err := goquery.NewDocumentFromReader(f)
	require.NoError(t, err)
	return doc
}

func parseDoc(t testing.TB, markup string) *goquery.Document {
	t.Helper()
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	require.NoError(t, err)
	return doc
}

func ptr[T any](v T) *T {
	return &v
}

func TestExtractProfile(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	extractor := NewExtractor(tel)

	profile, err := extractor.Profile(loadFixture(t, "profile.html"))
	require.NoError(t, err)
	require.Equal(t, Profile{
		StudentID: "21IT001",
		FullName:  "Nguyễn Văn An",
		ClassCode: "21GIT1",
		Cohort:    "2021",
		Major:     "Công nghệ thông tin",
		Faculty:   "Khoa Khoa học máy tính",
	}, profile)
	require.Empty(t, tel.Reports("warning"))
}

func TestExtractProfileMissingFields(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	extractor := NewExtractor(tel)

	profile, err := extractor.Profile(loadFixture(t, "profile_partial.html"))
	require.NoError(t, err)
	require.Equal(t, Profile{
		StudentID: "21IT002",
		ClassCode: "21GIT2",
	}, profile)
	require.Len(t, tel.Reports("warning"), 1)
}

func TestExtractProfileLayoutChanged(t *testing.T) {
	extractor := NewExtractor(&telemetry.MemoryAPI{})
	_, err := extractor.Profile(parseDoc(t, "<html><body><div class=\"card\">redesigned</div></body></html>"))
	require.ErrorIs(t, err, ErrLayoutChanged)
}

func TestExtractGrades(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	extractor := NewExtractor(tel)

	grades, err := extractor.Grades(loadFixture(t, "grades.html"))
	require.NoError(t, err)

	semester1 := "Học kỳ 1 - Năm học 2021-2022"
	converted := "Học kỳ riêng - Quy đổi"
	semester2 := "Học kỳ 2 - Năm học 2021-2022"
	expected := []GradeRecord{
		{CourseName: "Lập trình cơ bản", Credits: 3, Score: ptr(8.6), Semester: semester1},
		{CourseName: "Toán rời rạc", Credits: 3, Score: ptr(6.5), Semester: semester1},
		{CourseName: "Giáo dục thể chất 1", Credits: 0, Score: nil, Semester: semester1},
		{CourseName: "Tiếng Anh B1", Credits: 4, Score: ptr(10.0), Semester: converted},
		{CourseName: "Tin học văn phòng", Credits: 2, Score: ptr(7.0), Semester: converted},
		{CourseName: "Cấu trúc dữ liệu", Credits: 3, Score: nil, Semester: semester2},
	}
	if diff := cmp.Diff(expected, grades); diff != "" {
		t.Fatalf("unexpected grades (-want +got):\n%s", diff)
	}

	// the "N/A?" score row is skipped and reported
	warnings := tel.Reports("warning")
	require.Len(t, warnings, 1)
	var rowErr RowParseError
	require.True(t, errors.As(warnings[0].Params[0].(error), &rowErr))
	require.Equal(t, "grades", rowErr.Table)
}

func TestExtractGradesLayoutChanged(t *testing.T) {
	extractor := NewExtractor(&telemetry.MemoryAPI{})
	_, err := extractor.Grades(parseDoc(t, "<table><tr><td>nothing</td></tr></table>"))
	require.ErrorIs(t, err, ErrLayoutChanged)
}

func gradeRow(course, credits, score string) string {
	cells := []string{"", course, credits, "", "", "", "", "", score, ""}
	return "<tr class=\"even pointer\"><td>" + strings.Join(cells, "</td><td>") + "</td></tr>"
}

func TestGradesSemesterLabelFollowsLastHeader(t *testing.T) {
	table := []struct {
		name     string
		rows     []string
		expected []string
	}{
		{
			name:     "no header yet",
			rows:     []string{gradeRow("A", "1", "5")},
			expected: []string{""},
		},
		{
			name: "headers back to back",
			rows: []string{
				gradeRow("Học kỳ 1", "", ""),
				gradeRow("Học kỳ 2", "", ""),
				gradeRow("A", "1", "5"),
			},
			expected: []string{"Học kỳ 2"},
		},
		{
			name: "alternating",
			rows: []string{
				gradeRow("Học kỳ 1", "", ""),
				gradeRow("A", "1", "5"),
				gradeRow("B", "1", "5"),
				gradeRow("Học kỳ 2", "", ""),
				gradeRow("C", "1", "5"),
			},
			expected: []string{"Học kỳ 1", "Học kỳ 1", "Học kỳ 2"},
		},
	}

	for _, row := range table {
		t.Run(row.name, func(t *testing.T) {
			extractor := NewExtractor(&telemetry.MemoryAPI{})
			doc := parseDoc(t, "<table>"+strings.Join(row.rows, "")+"</table>")
			grades, err := extractor.Grades(doc)
			require.NoError(t, err)

			semesters := make([]string, len(grades))
			for i, g := range grades {
				semesters[i] = g.Semester
			}
			require.Equal(t, row.expected, semesters)
		})
	}
}

func TestConversionRule(t *testing.T) {
	table := []struct {
		header   string
		score    string
		expected *float64
	}{
		{header: "Học kỳ riêng - Quy đổi", score: "", expected: ptr(10.0)},
		{header: "Học kỳ riêng - Quy đổi", score: "chưa có", expected: ptr(10.0)},
		{header: "Học kỳ riêng - Quy đổi", score: "6", expected: ptr(6.0)},
		{header: "Học kỳ 3", score: "", expected: nil},
		{header: "Học kỳ 3", score: "chưa có", expected: nil},
	}

	for _, row := range table {
		extractor := NewExtractor(&telemetry.MemoryAPI{})
		doc := parseDoc(t, "<table>"+gradeRow(row.header, "", "")+gradeRow("Course", "3", row.score)+"</table>")
		grades, err := extractor.Grades(doc)
		require.NoError(t, err)
		require.Len(t, grades, 1)
		require.Equal(t, row.expected, grades[0].Score, "%s / %q", row.header, row.score)
	}
}

func TestSemesterTracker(t *testing.T) {
	tracker := &semesterTracker{}
	require.Equal(t, awaitingContext, tracker.state)

	_, emit := tracker.Feed("Học kỳ 1")
	require.False(t, emit)
	require.Equal(t, awaitingContext, tracker.state)

	semester, emit := tracker.Feed("Course")
	require.True(t, emit)
	require.Equal(t, "Học kỳ 1", semester)
	require.Equal(t, inRecord, tracker.state)

	tracker.Done()
	require.Equal(t, awaitingContext, tracker.state)
	require.False(t, tracker.Converted())

	tracker.Feed("Học kỳ riêng - Quy đổi")
	require.True(t, tracker.Converted())
}

func TestParseCredits(t *testing.T) {
	require.Equal(t, 3, parseCredits("3"))
	require.Equal(t, 0, parseCredits("(1)"))
	require.Equal(t, 0, parseCredits(""))
	require.Equal(t, 0, parseCredits("ba"))
}

func TestExtractProgress(t *testing.T) {
	tel := &telemetry.MemoryAPI{}
	extractor := NewExtractor(tel)

	progress, err := extractor.Progress(loadFixture(t, "progress.html"))
	require.NoError(t, err)

	expected := []ProgressRecord{
		{
			CourseName: "Lập trình cơ bản", SemesterText: "1", Semester: ptr(1), Mandatory: true,
			CreditsText: "3", Credits: 3, LetterGrade: "A", Grade4: ptr(4),
		},
		{
			CourseName: "Kỹ năng mềm", SemesterText: "2", Semester: ptr(2), Mandatory: false,
			CreditsText: "2", Credits: 2, LetterGrade: "B", Grade4: ptr(3),
		},
		{
			CourseName: "Trí tuệ nhân tạo", SemesterText: "Học kỳ 5", Semester: nil, Mandatory: false,
			CreditsText: "3 TC", Credits: 0,
		},
		{
			CourseName: "Đồ án chuyên ngành", SemesterText: "7", Semester: ptr(7), Mandatory: true,
			CreditsText: "4", Credits: 4,
		},
	}
	if diff := cmp.Diff(expected, progress); diff != "" {
		t.Fatalf("unexpected progress (-want +got):\n%s", diff)
	}
	require.Empty(t, tel.Reports("warning"))
}

func TestExtractProgressLayoutChanged(t *testing.T) {
	extractor := NewExtractor(&telemetry.MemoryAPI{})
	_, err := extractor.Progress(parseDoc(t, "<table><tr><td>1</td><td>2</td></tr></table>"))
	require.ErrorIs(t, err, ErrLayoutChanged)
}

func TestStatusRegexes(t *testing.T) {
	table := []struct {
		markup string
		grade4 string
		letter string
	}{
		{markup: "Điểm T4: 2 - Điểm chữ: C", grade4: "2", letter: "C"},
		{markup: "Điểm T4:&nbsp;<span>0</span> Điểm chữ:<b>F</b>", grade4: "0", letter: "F"},
		{markup: "Điểm T4: 3.5", grade4: "", letter: ""},
		{markup: "Điểm chữ: G", grade4: "", letter: ""},
		{markup: "Điểm T4: 5", grade4: "", letter: ""},
	}
	for _, row := range table {
		grade4 := ""
		if m := grade4Regex.FindStringSubmatch(row.markup); m != nil {
			grade4 = m[1]
		}
		letter := ""
		if m := letterGradeRegex.FindStringSubmatch(row.markup); m != nil {
			letter = m[1]
		}
		require.Equal(t, row.grade4, grade4, row.markup)
		require.Equal(t, row.letter, letter, row.markup)
	}
}

func TestExtractSummaries(t *testing.T) {
	extractor := NewExtractor(&telemetry.MemoryAPI{})
	summaries := extractor.Summaries(loadFixture(t, "grades.html"))

	expected := []SemesterSummary{
		{
			Semester: "Học kỳ 1 - Năm học 2021-2022", RegisteredCredits: 7, NewCredits: 7,
			Gpa4: ptr(3.2), Gpa10: ptr(7.85), ScholarshipGpa: ptr(7.85), SemesterCredits: 6,
			Classification: "Khá", CumulativeGpa4: ptr(3.2), CumulativeGpa10: ptr(7.85), CumulativeCredits: 6,
		},
		{
			Semester: "Học kỳ 2 - Năm học 2021-2022", RegisteredCredits: 6, NewCredits: 6,
			SemesterCredits: 0, CumulativeGpa4: ptr(3.2), CumulativeGpa10: ptr(7.85), CumulativeCredits: 6,
		},
	}
	if diff := cmp.Diff(expected, summaries); diff != "" {
		t.Fatalf("unexpected summaries (-want +got):\n%s", diff)
	}
}

func TestPages(t *testing.T) {
	pages, err := NewPages("")
	require.NoError(t, err)
	require.Equal(t, "https://daotao.vku.udn.vn/sv/hoso", pages.Profile())
	require.Equal(t, "https://daotao.vku.udn.vn/sv/diem", pages.Grades())
	require.Equal(t, "https://daotao.vku.udn.vn/sv/hoc-phan-con-lai", pages.Progress())
	require.Equal(t, "https://daotao.vku.udn.vn/sv", pages.Login())

	_, err = NewPages("daotao.vku.udn.vn")
	require.Error(t, err)
}

func TestLoginPredicates(t *testing.T) {
	pages, err := NewPages("")
	require.NoError(t, err)

	testCases := []struct {
		url       string
		loggedIn  bool
		loginPage bool
	}{
		{url: "https://daotao.vku.udn.vn/sv/hoso", loggedIn: true},
		{url: "https://daotao.vku.udn.vn/sv/diem?hk=2", loggedIn: true},
		{url: "https://daotao.vku.udn.vn/sv", loginPage: true},
		{url: "https://daotao.vku.udn.vn/sv/", loginPage: true},
		{url: "https://daotao.vku.udn.vn/login", loginPage: true},
		{url: "https://daotao.vku.udn.vn/sv/login", loginPage: true},
		{url: "https://daotao.vku.udn.vn/sv/login/", loginPage: true},
		{url: "https://daotao.vku.udn.vn/sv/login?next=%2Fsv%2Fdiem", loginPage: true},
		{url: "https://accounts.google.com/sv/x"},
		{url: "https://accounts.google.com/o/oauth2/auth"},
	}

	for _, test := range testCases {
		t.Run(test.url, func(t *testing.T) {
			require.Equal(t, test.loggedIn, pages.IsLoggedIn(test.url))
			require.Equal(t, test.loginPage, pages.IsLoginPage(test.url))
			require.False(t, pages.IsLoggedIn(test.url) && pages.IsLoginPage(test.url))
		})
	}
}
