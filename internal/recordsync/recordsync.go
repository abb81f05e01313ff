// Package recordsync writes a scraped bundle into the record store by replacing everything
// stored for the student. Every step is attempted on its own, only a failed student insert
// stops the steps after it.
package recordsync

import (
	"context"
	"errors"
	"fmt"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/store"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const (
	report_delete    = "delete-student"
	report_student   = "insert-student"
	report_grades    = "insert-grades"
	report_progress  = "insert-progress"
	report_summaries = "insert-summaries"
	report_panic     = "panic"
)

// Report is the outcome of one sync. The overall sync succeeded when StudentOK is set, a
// partial batch failure only shows in the counters.
type Report struct {
	StudentOK         bool   `json:"student_ok"`
	GradesInserted    int    `json:"grades_inserted"`
	GradesFailed      int    `json:"grades_failed"`
	ProgressInserted  int    `json:"progress_inserted"`
	ProgressFailed    int    `json:"progress_failed"`
	ProgressDropped   int    `json:"progress_dropped"`
	SummariesInserted int    `json:"summaries_inserted"`
	SummariesFailed   int    `json:"summaries_failed"`
	Message           string `json:"message"`
}

type Manager struct {
	store   store.Store
	locker  *Locker
	time    chrono.TimeAPI
	records metric.Int64Counter
	tel     telemetry.API
}

type managerConfig struct {
	locker        *Locker
	time          chrono.TimeAPI
	meterProvider metric.MeterProvider
	tel           telemetry.API
}

type ManagerOption func(cfg *managerConfig)

func WithTelemetryAPI(tel telemetry.API) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.tel = tel
	}
}

// WithLocker shares a Locker between managers, by default each manager has its own.
func WithLocker(locker *Locker) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.locker = locker
	}
}

func WithTimeAPI(time chrono.TimeAPI) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.time = time
	}
}

func WithMeterProvider(provider metric.MeterProvider) ManagerOption {
	return func(cfg *managerConfig) {
		cfg.meterProvider = provider
	}
}

func NewManager(s store.Store, options ...ManagerOption) Manager {
	assert.NotNil(s, "store")

	cfg := managerConfig{
		locker:        NewLocker(),
		time:          chrono.NewStandardTime(),
		meterProvider: otel.GetMeterProvider(),
		tel:           telemetry.SlogAPI{},
	}
	for _, opt := range options {
		opt(&cfg)
	}

	tel := telemetry.NewScopedAPI("recordsync", cfg.tel)

	records, err := cfg.meterProvider.
		Meter("vkusync.internal.recordsync").
		Int64Counter(
			"vkusync.sync.records",
			metric.WithDescription("Records written by syncs, by table and outcome."),
			metric.WithUnit("{record}"),
		)
	if err != nil {
		tel.ReportBroken("create counter", err)
	}

	return Manager{
		store:   s,
		locker:  cfg.locker,
		time:    cfg.time,
		records: records,
		tel:     tel,
	}
}

// guard runs one step, turning a panic into an error so sibling steps still run.
func (m Manager) guard(reportId string, step func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			m.tel.ReportBroken(report_panic, reportId, r)
			err = fmt.Errorf("%s: panic: %v", reportId, r)
		}
	}()
	err = step()
	if err != nil {
		m.tel.ReportWarning(reportId, err)
	}
	return err
}

func (m Manager) count(ctx context.Context, table string, inserted, failed int) {
	m.tel.ReportCount(table+".inserted", int64(inserted))
	m.tel.ReportCount(table+".failed", int64(failed))
	if m.records == nil {
		return
	}
	m.records.Add(ctx, int64(inserted), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("outcome", "inserted"),
	))
	m.records.Add(ctx, int64(failed), metric.WithAttributes(
		attribute.String("table", table),
		attribute.String("outcome", "failed"),
	))
}

// SyncAll replaces what the store holds for the bundle's student with the bundle. The
// bundle is expected to have passed validation.
func (m Manager) SyncAll(ctx context.Context, bundle portal.Bundle, owner string) Report {
	studentID := bundle.Profile.StudentID
	report := Report{}
	if studentID == "" {
		report.Message = "bundle has no student id"
		return report
	}

	unlock := m.locker.Lock(owner, studentID)
	defer unlock()

	student := studentToStore(bundle.Profile, owner)
	student.SyncedAt = m.time.Now()

	// a failed delete does not stop the insert, the insert then reports the conflict
	m.guard(report_delete, func() error {
		_, err := m.store.GetStudent(ctx, owner, studentID)
		if errors.Is(err, store.ErrNotFound) {
			return nil
		}
		if err != nil {
			return err
		}
		return m.store.DeleteStudent(ctx, owner, studentID)
	})

	err := m.guard(report_student, func() error {
		_, err := m.store.InsertStudent(ctx, student)
		return err
	})
	if err != nil {
		report.Message = fmt.Sprintf("failed to save student %s: %s", studentID, err)
		return report
	}
	report.StudentOK = true

	grades := gradesToStore(bundle.Grades, owner, studentID)
	err = m.guard(report_grades, func() error {
		inserted, err := m.store.InsertGrades(ctx, grades)
		if err != nil {
			return err
		}
		report.GradesInserted = len(inserted)
		return nil
	})
	if err != nil {
		report.GradesInserted = 0
	}
	report.GradesFailed = len(grades) - report.GradesInserted
	m.count(ctx, "grades", report.GradesInserted, report.GradesFailed)

	progress, dropped := NormalizeProgress(bundle.Progress, owner, studentID)
	report.ProgressDropped = dropped
	if dropped > 0 {
		m.tel.ReportDebug("dropped progress records", dropped)
	}
	err = m.guard(report_progress, func() error {
		inserted, err := m.store.InsertProgress(ctx, progress)
		if err != nil {
			return err
		}
		report.ProgressInserted = len(inserted)
		return nil
	})
	if err != nil {
		report.ProgressInserted = 0
	}
	report.ProgressFailed = len(progress) - report.ProgressInserted
	m.count(ctx, "progress", report.ProgressInserted, report.ProgressFailed)

	summaries := summariesToStore(bundle.Summaries, owner, studentID)
	err = m.guard(report_summaries, func() error {
		inserted, err := m.store.InsertSummaries(ctx, summaries)
		if err != nil {
			return err
		}
		report.SummariesInserted = len(inserted)
		return nil
	})
	if err != nil {
		report.SummariesInserted = 0
	}
	report.SummariesFailed = len(summaries) - report.SummariesInserted
	m.count(ctx, "summaries", report.SummariesInserted, report.SummariesFailed)

	report.Message = fmt.Sprintf(
		"synced student %s: %d grades (%d failed), %d progress (%d failed)",
		studentID,
		report.GradesInserted, report.GradesFailed,
		report.ProgressInserted, report.ProgressFailed,
	)
	return report
}

