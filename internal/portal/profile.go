package portal

import (
	"fmt"
	"vkusync-backend/pkg/htmlutil"
	"vkusync-backend/pkg/textutil"

	"github.com/PuerkitoBio/goquery"
)

const report_extractor_profile = "extractor.profile"

var (
	labelsStudentID = []string{"MÃ SV:", "Mã SV:", "MÃ SINH VIÊN:"}
	labelsClass     = []string{"LỚP:", "Lớp:"}
	labelsCohort    = []string{"KHÓA:", "Khóa:", "KHOÁ:"}
)

// Profile reads the profile block. The name sits in its own container, the student id in
// the "job" container and every following field is the next div sibling of the previous
// one. A missing field does not stop the others from being read.
func (e Extractor) Profile(doc *goquery.Document) (Profile, error) {
	root := doc.Find(SelectorProfile).First()
	if root.Length() == 0 {
		return Profile{}, fmt.Errorf("profile: %w: %s not found", ErrLayoutChanged, SelectorProfile)
	}

	out := Profile{}
	missing := []string{}

	field := func(name string, sel *goquery.Selection, labels []string) string {
		if sel.Length() == 0 {
			missing = append(missing, name)
			return ""
		}
		value := textutil.TrimLabel(nfc(htmlutil.Text(sel)), labels...)
		if value == "" {
			missing = append(missing, name)
		}
		return value
	}

	out.FullName = field("full_name", root.Find("div.profile-usertitle-name").First(), nil)

	job := root.Find("div.profile-usertitle-job").First()
	out.StudentID = field("student_id", job, labelsStudentID)

	class := nextDiv(job)
	out.ClassCode = field("class_code", class, labelsClass)
	cohort := nextDiv(class)
	out.Cohort = field("cohort", cohort, labelsCohort)
	major := nextDiv(cohort)
	out.Major = field("major", major, nil)
	faculty := nextDiv(major)
	out.Faculty = field("faculty", faculty, nil)

	if len(missing) > 0 {
		e.tel.ReportWarning(report_extractor_profile, fmt.Errorf("missing fields: %v", missing))
	}
	return out, nil
}

// nextDiv returns the element directly after sel if it is a div, the equivalent of the
// `sel + div` css combinator.
func nextDiv(sel *goquery.Selection) *goquery.Selection {
	if sel.Length() == 0 {
		return sel
	}
	return sel.Next().Filter("div")
}
