package portal

// Profile is the student profile shown on the profile page. Fields that could not be found
// on the page are left empty.
type Profile struct {
	StudentID string `json:"student_id"`
	FullName  string `json:"full_name"`
	ClassCode string `json:"class_code"`
	Cohort    string `json:"cohort"`
	Major     string `json:"major"`
	Faculty   string `json:"faculty"`
}

// GradeRecord is one course row of the grades table.
type GradeRecord struct {
	StudentID  string `json:"student_id"`
	CourseName string `json:"course_name"`
	Credits    int    `json:"credits"`
	// Score is nil when the portal has no score for the course yet, it is never 0 for that case.
	Score    *float64 `json:"score"`
	Semester string   `json:"semester"`
}

// ProgressRecord is one row of the remaining-courses (academic progress) table.
type ProgressRecord struct {
	StudentID  string `json:"student_id"`
	CourseName string `json:"course_name"`
	// SemesterText is the raw semester cell, Semester is its parsed number when the cell is a
	// plain integer.
	SemesterText string `json:"semester_text"`
	Semester     *int   `json:"semester"`
	Mandatory    bool   `json:"mandatory"`
	// CreditsText is the credit cell with markup stripped, Credits is its parsed value when
	// the cell is a plain integer.
	CreditsText string `json:"credits_text"`
	Credits     int    `json:"credits"`
	LetterGrade string `json:"letter_grade,omitempty"`
	Grade4      *int   `json:"grade_4"`
}

// SemesterSummary is one row of the per-semester summary table on the grades page.
type SemesterSummary struct {
	StudentID         string   `json:"student_id"`
	Semester          string   `json:"semester"`
	RegisteredCredits int      `json:"registered_credits"`
	NewCredits        int      `json:"new_credits"`
	Gpa4              *float64 `json:"gpa_4"`
	Gpa10             *float64 `json:"gpa_10"`
	ScholarshipGpa    *float64 `json:"scholarship_gpa"`
	SemesterCredits   int      `json:"semester_credits"`
	Classification    string   `json:"classification"`
	CumulativeGpa4    *float64 `json:"cumulative_gpa_4"`
	CumulativeGpa10   *float64 `json:"cumulative_gpa_10"`
	CumulativeCredits int      `json:"cumulative_credits"`
}

// Bundle is everything one scrape run extracted for a student.
type Bundle struct {
	Profile   Profile           `json:"student_profile"`
	Grades    []GradeRecord     `json:"grades"`
	Progress  []ProgressRecord  `json:"progress"`
	Summaries []SemesterSummary `json:"semester_summaries"`
}
