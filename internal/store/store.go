// Package store defines the record store the sync writes scraped records into. Records are
// scoped by owner, the application user that triggered the scrape, '' when the deployment
// does not use owners.
package store

import (
	"context"
	"errors"
	"time"
)

var ErrNotFound = errors.New("record not found")

type Student struct {
	Owner     string    `json:"owner" bson:"owner"`
	StudentID string    `json:"student_id" bson:"student_id"`
	FullName  string    `json:"full_name" bson:"full_name"`
	ClassCode string    `json:"class_code" bson:"class_code"`
	Cohort    string    `json:"cohort" bson:"cohort"`
	Major     string    `json:"major" bson:"major"`
	Faculty   string    `json:"faculty" bson:"faculty"`
	SyncedAt  time.Time `json:"synced_at" bson:"synced_at"`
}

type Grade struct {
	ID         int64    `json:"id" bson:"id"`
	Owner      string   `json:"owner" bson:"owner"`
	StudentID  string   `json:"student_id" bson:"student_id"`
	CourseName string   `json:"course_name" bson:"course_name"`
	Credits    int      `json:"credits" bson:"credits"`
	Score      *float64 `json:"score" bson:"score"`
	Semester   string   `json:"semester" bson:"semester"`
}

type Progress struct {
	ID          int64  `json:"id" bson:"id"`
	Owner       string `json:"owner" bson:"owner"`
	StudentID   string `json:"student_id" bson:"student_id"`
	CourseName  string `json:"course_name" bson:"course_name"`
	Semester    int    `json:"semester" bson:"semester"`
	Mandatory   bool   `json:"mandatory" bson:"mandatory"`
	Credits     int    `json:"credits" bson:"credits"`
	LetterGrade string `json:"letter_grade,omitempty" bson:"letter_grade,omitempty"`
	Grade4      *int   `json:"grade_4" bson:"grade_4"`
}

type Summary struct {
	ID                int64    `json:"id" bson:"id"`
	Owner             string   `json:"owner" bson:"owner"`
	StudentID         string   `json:"student_id" bson:"student_id"`
	Semester          string   `json:"semester" bson:"semester"`
	RegisteredCredits int      `json:"registered_credits" bson:"registered_credits"`
	NewCredits        int      `json:"new_credits" bson:"new_credits"`
	Gpa4              *float64 `json:"gpa_4" bson:"gpa_4"`
	Gpa10             *float64 `json:"gpa_10" bson:"gpa_10"`
	ScholarshipGpa    *float64 `json:"scholarship_gpa" bson:"scholarship_gpa"`
	SemesterCredits   int      `json:"semester_credits" bson:"semester_credits"`
	Classification    string   `json:"classification" bson:"classification"`
	CumulativeGpa4    *float64 `json:"cumulative_gpa_4" bson:"cumulative_gpa_4"`
	CumulativeGpa10   *float64 `json:"cumulative_gpa_10" bson:"cumulative_gpa_10"`
	CumulativeCredits int      `json:"cumulative_credits" bson:"cumulative_credits"`
}

// Token is an api token, only the sha256 hash of the token is ever stored.
type Token struct {
	Hash      string     `json:"-" bson:"_id"`
	Owner     string     `json:"owner" bson:"owner"`
	Label     string     `json:"label" bson:"label"`
	CreatedAt time.Time  `json:"created_at" bson:"created_at"`
	ExpiresAt *time.Time `json:"expires_at" bson:"expires_at"`
}

func (t Token) Expired(now time.Time) bool {
	return t.ExpiresAt != nil && !now.Before(*t.ExpiresAt)
}

// Store is the record store. Batch inserts return only the records that were inserted, with
// their ids assigned, a shorter result than the input means the rest failed.
//
// Deleting a student also deletes its grades, progress and summaries.
type Store interface {
	GetStudent(ctx context.Context, owner, studentID string) (Student, error)
	ListStudents(ctx context.Context, owner string) ([]Student, error)
	InsertStudent(ctx context.Context, student Student) (Student, error)
	DeleteStudent(ctx context.Context, owner, studentID string) error

	InsertGrades(ctx context.Context, grades []Grade) ([]Grade, error)
	ListGrades(ctx context.Context, owner, studentID string) ([]Grade, error)

	InsertProgress(ctx context.Context, progress []Progress) ([]Progress, error)
	ListProgress(ctx context.Context, owner, studentID string) ([]Progress, error)

	InsertSummaries(ctx context.Context, summaries []Summary) ([]Summary, error)
	ListSummaries(ctx context.Context, owner, studentID string) ([]Summary, error)

	Stats(ctx context.Context, owner string) (Stats, error)

	Close() error
}

// TokenStore keeps the api tokens the http api authenticates with.
type TokenStore interface {
	CreateToken(ctx context.Context, token Token) error
	GetToken(ctx context.Context, hash string) (Token, error)
	DeleteToken(ctx context.Context, hash string) (bool, error)
	// TokenOwners lists every owner that holds at least one token.
	TokenOwners(ctx context.Context) ([]string, error)
}
