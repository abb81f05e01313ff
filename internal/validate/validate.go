// Package validate holds the checks a scraped bundle has to pass before it may be synced.
// The checks never fail loudly, callers inspect the result.
package validate

import (
	"fmt"
	"strings"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/portal"
)

const (
	report_profile = "profile"
	report_grades  = "grades"
)

type Validator struct {
	tel telemetry.API
}

func New(tel telemetry.API) Validator {
	assert.NotNil(tel, "tel")
	return Validator{tel: telemetry.NewScopedAPI("validate", tel)}
}

// MissingProfileFields lists the required profile fields that are empty.
func MissingProfileFields(p portal.Profile) []string {
	var missing []string
	if strings.TrimSpace(p.StudentID) == "" {
		missing = append(missing, "student_id")
	}
	if strings.TrimSpace(p.FullName) == "" {
		missing = append(missing, "full_name")
	}
	if strings.TrimSpace(p.ClassCode) == "" {
		missing = append(missing, "class_code")
	}
	if strings.TrimSpace(p.Faculty) == "" {
		missing = append(missing, "faculty")
	}
	return missing
}

func (v Validator) Profile(p portal.Profile) bool {
	missing := MissingProfileFields(p)
	if len(missing) > 0 {
		v.tel.ReportWarning(report_profile, "missing fields", strings.Join(missing, ", "))
		return false
	}
	return true
}

func gradeValid(g portal.GradeRecord) bool {
	return strings.TrimSpace(g.CourseName) != "" && strings.TrimSpace(g.Semester) != ""
}

func (v Validator) Grades(grades []portal.GradeRecord) bool {
	if len(grades) == 0 {
		v.tel.ReportWarning(report_grades, "no grades")
		return false
	}
	for i, g := range grades {
		if !gradeValid(g) {
			v.tel.ReportWarning(report_grades, fmt.Sprintf("record %d has no course name or semester", i))
			return false
		}
	}
	return true
}

// FilterGrades splits grades into the records that pass the per-record check and the ones
// that do not.
func FilterGrades(grades []portal.GradeRecord) (valid, dropped []portal.GradeRecord) {
	valid = make([]portal.GradeRecord, 0, len(grades))
	for _, g := range grades {
		if gradeValid(g) {
			valid = append(valid, g)
			continue
		}
		dropped = append(dropped, g)
	}
	return valid, dropped
}

// Bundle drops invalid grade records from the bundle and then checks it. The reason is a
// message fit for the api caller when ok is false.
func (v Validator) Bundle(bundle *portal.Bundle) (ok bool, reason string) {
	missing := MissingProfileFields(bundle.Profile)
	if !v.Profile(bundle.Profile) {
		return false, fmt.Sprintf("invalid student profile, missing %s", strings.Join(missing, ", "))
	}

	valid, dropped := FilterGrades(bundle.Grades)
	if len(dropped) > 0 {
		v.tel.ReportDebug("dropped invalid grades", len(dropped))
	}
	bundle.Grades = valid

	if !v.Grades(bundle.Grades) {
		return false, "no valid grade records"
	}
	return true, ""
}
