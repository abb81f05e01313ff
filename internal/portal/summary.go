package portal

import (
	"fmt"
	"strings"
	"vkusync-backend/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

const report_extractor_summary_row = "extractor.summary-row"

const summaryCells = 12

// Summaries reads the per-semester summary table that shares the grades page. Only rows of
// exactly twelve cells whose semester cell starts with the semester token are kept.
func (e Extractor) Summaries(doc *goquery.Document) []SemesterSummary {
	var out []SemesterSummary
	doc.Find(SelectorGrades).Each(func(i int, row *goquery.Selection) {
		cells := cellTexts(row)
		if len(cells) != summaryCells || !strings.HasPrefix(cells[1], markerSemester) {
			return
		}
		summary, err := summaryRow(cells)
		if err != nil {
			e.tel.ReportWarning(report_extractor_summary_row, RowParseError{Table: "summary", Row: i, Err: err})
			return
		}
		out = append(out, summary)
	})
	return out
}

func optionalDecimal(cell string) (*float64, error) {
	cell = strings.TrimSpace(cell)
	if cell == "" || cell == "-" || strings.EqualFold(cell, markerScoreUnavailable) {
		return nil, nil
	}
	n, err := textutil.ParseDecimal(cell)
	if err != nil {
		return nil, fmt.Errorf("invalid number %q", cell)
	}
	return &n, nil
}

func summaryRow(cells []string) (SemesterSummary, error) {
	out := SemesterSummary{
		Semester:          cells[1],
		RegisteredCredits: parseCredits(cells[2]),
		NewCredits:        parseCredits(cells[3]),
		SemesterCredits:   parseCredits(cells[7]),
		Classification:    cells[8],
		CumulativeCredits: parseCredits(cells[11]),
	}
	targets := []struct {
		cell int
		dst  **float64
	}{
		{4, &out.Gpa4},
		{5, &out.Gpa10},
		{6, &out.ScholarshipGpa},
		{9, &out.CumulativeGpa4},
		{10, &out.CumulativeGpa10},
	}
	for _, t := range targets {
		n, err := optionalDecimal(cells[t.cell])
		if err != nil {
			return SemesterSummary{}, err
		}
		*t.dst = n
	}
	return out, nil
}
