package portal

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"vkusync-backend/pkg/htmlutil"

	"github.com/PuerkitoBio/goquery"
)

const (
	report_extractor_progress     = "extractor.progress"
	report_extractor_progress_row = "extractor.progress-row"
)

const (
	progressMinCells     = 6
	progressCellCourse   = 1
	progressCellSemester = 2
	progressCellKind     = 3
	progressCellCredits  = 4
	progressCellStatus   = 5
)

// separators that may sit between a label and its value in the status cell markup
const labelGap = `(?:[\s\p{Zs}:]|&nbsp;|<[^>]*>)*`

var (
	grade4Regex      = regexp.MustCompile(`Điểm T4` + labelGap + `([0-4])(?:[^0-9.,]|$)`)
	letterGradeRegex = regexp.MustCompile(`Điểm chữ` + labelGap + `([A-F])(?:[^A-Za-z]|$)`)
)

// Progress reads the remaining-courses table. Rows without a course name are skipped.
func (e Extractor) Progress(doc *goquery.Document) ([]ProgressRecord, error) {
	rows := doc.Find(SelectorProgress).FilterFunction(func(_ int, row *goquery.Selection) bool {
		return row.ChildrenFiltered("td").Length() >= progressMinCells
	})
	if rows.Length() == 0 {
		return nil, fmt.Errorf("progress: %w: no %d column rows", ErrLayoutChanged, progressMinCells)
	}

	var records []ProgressRecord
	rows.Each(func(i int, row *goquery.Selection) {
		record, ok, err := e.progressRow(row)
		if err != nil {
			e.tel.ReportWarning(report_extractor_progress_row, RowParseError{Table: "progress", Row: i, Err: err})
			return
		}
		if ok {
			records = append(records, record)
		}
	})

	e.tel.ReportDebug(report_extractor_progress, len(records))
	return records, nil
}

func (e Extractor) progressRow(row *goquery.Selection) (record ProgressRecord, ok bool, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("panic: %v", r)
			ok = false
		}
	}()

	cells := row.ChildrenFiltered("td")
	course := nfc(htmlutil.Text(cells.Eq(progressCellCourse)))
	if course == "" {
		return ProgressRecord{}, false, nil
	}

	record = ProgressRecord{
		CourseName:   course,
		SemesterText: nfc(htmlutil.Text(cells.Eq(progressCellSemester))),
		Mandatory:    isMandatory(cells.Eq(progressCellKind)),
		CreditsText:  htmlutil.StripTags(htmlutil.InnerHTML(cells.Eq(progressCellCredits))),
	}
	if n, err := strconv.Atoi(record.SemesterText); err == nil {
		record.Semester = &n
	}
	if n, err := strconv.Atoi(record.CreditsText); err == nil && n >= 0 {
		record.Credits = n
	}

	status := cells.Eq(progressCellStatus)
	markup := nfc(htmlutil.InnerHTML(status))
	text := nfc(htmlutil.Text(status))
	if !strings.Contains(text, markerNotYetTaken) && !strings.Contains(markup, markerNotYetTaken) {
		if m := grade4Regex.FindStringSubmatch(markup); m != nil {
			n, _ := strconv.Atoi(m[1])
			record.Grade4 = &n
		}
		if m := letterGradeRegex.FindStringSubmatch(markup); m != nil {
			record.LetterGrade = m[1]
		}
	}

	return record, true, nil
}

// isMandatory reads the course kind cell. The elective marker anywhere in the markup means
// elective, otherwise a checked checkbox means mandatory.
func isMandatory(cell *goquery.Selection) bool {
	markup := nfc(htmlutil.InnerHTML(cell))
	if strings.Contains(markup, markerElective) {
		return false
	}
	checked := cell.Find(`input[type="checkbox"]`).FilterFunction(func(_ int, input *goquery.Selection) bool {
		_, ok := input.Attr("checked")
		return ok
	})
	return checked.Length() > 0
}
