package portal

import (
	"fmt"
	"strconv"
	"strings"
	"vkusync-backend/pkg/htmlutil"
	"vkusync-backend/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_grades    = "extractor.grades"
	report_extractor_grade_row = "extractor.grade-row"
)

const (
	gradeMinCells    = 10
	gradeCellCourse  = 1
	gradeCellCredits = 2
	gradeCellScore   = 8
)

type rowState int

const (
	awaitingContext rowState = iota
	inRecord
)

// semesterTracker is the parsing context shared by every row of the grades table. Header
// rows only update the context, any other row is emitted with the context seen last.
type semesterTracker struct {
	state    rowState
	semester string
}

// Feed classifies a row by its course cell. It returns emit=false for a semester header,
// after updating the context, and emit=true with the current semester for a course row.
func (t *semesterTracker) Feed(courseCell string) (semester string, emit bool) {
	if strings.Contains(courseCell, markerSemester) {
		t.semester = courseCell
		t.state = awaitingContext
		return "", false
	}
	t.state = inRecord
	return t.semester, true
}

// Done returns the tracker to AwaitingContext once a course row has been handled.
func (t *semesterTracker) Done() {
	t.state = awaitingContext
}

// Converted reports whether the current semester is a converted special semester, whose
// missing scores count as the maximum score.
func (t *semesterTracker) Converted() bool {
	return strings.Contains(t.semester, markerConvertedSemester)
}

// parseCredits returns the credit count of a cell, 0 when it is not a plain integer.
func parseCredits(cell string) int {
	if !textutil.IsDigits(cell) {
		return 0
	}
	n, err := strconv.Atoi(cell)
	if err != nil {
		return 0
	}
	return n
}

// parseScore returns nil for the "not yet available" placeholder and the empty cell.
func parseScore(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || strings.EqualFold(cell, markerScoreUnavailable) {
		return nil, nil
	}
	score, err := textutil.ParseDecimal(cell)
	if err != nil {
		return nil, fmt.Errorf("invalid score %q", cell)
	}
	if score < 0 || score > 10 {
		return nil, fmt.Errorf("score %v out of range", score)
	}
	return &score, nil
}

func cellTexts(row *goquery.Selection) []string {
	cells := row.ChildrenFiltered("td")
	out := make([]string, cells.Length())
	cells.Each(func(i int, cell *goquery.Selection) {
		out[i] = nfc(htmlutil.Text(cell))
	})
	return out
}

// Grades walks every alternating row of the grades table and returns one record per course
// row. A row that cannot be parsed is reported and skipped.
func (e Extractor) Grades(doc *goquery.Document) ([]GradeRecord, error) {
	rows := doc.Find(SelectorGrades)
	if rows.Length() == 0 {
		return nil, fmt.Errorf("grades: %w: no rows match %s", ErrLayoutChanged, SelectorGrades)
	}

	tracker := &semesterTracker{}
	var records []GradeRecord
	rows.Each(func(i int, row *goquery.Selection) {
		record, emit, err := e.gradeRow(tracker, row)
		if err != nil {
			e.tel.ReportWarning(report_extractor_grade_row, RowParseError{Table: "grades", Row: i, Err: err})
			return
		}
		if emit {
			records = append(records, record)
		}
	})

	e.tel.ReportDebug(report_extractor_grades, len(records), tracker.semester)
	return records, nil
}

func (e Extractor) gradeRow(tracker *semesterTracker, row *goquery.Selection) (record GradeRecord, emit bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			emit = false
		}
	}()

	cells := cellTexts(row)
	if len(cells) < gradeMinCells {
		return GradeRecord{}, false, nil
	}

	semester, emit := tracker.Feed(cells[gradeCellCourse])
	if !emit {
		return GradeRecord{}, false, nil
	}
	defer tracker.Done()

	score, err := parseScore(cells[gradeCellScore])
	if err != nil {
		return GradeRecord{}, false, err
	}
	if score == nil && tracker.Converted() {
		converted := ConvertedSemesterScore
		score = &converted
	}

	return GradeRecord{
		CourseName: cells[gradeCellCourse],
		Credits:    parseCredits(cells[gradeCellCredits]),
		Score:      score,
		Semester:   semester,
	}, true, nil
}
