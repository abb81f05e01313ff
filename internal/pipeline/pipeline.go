// Package pipeline chains a scrape, its validation and the sync of the validated bundle into
// the record store.
package pipeline

import (
	"context"
	"fmt"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/recordsync"
	"vkusync-backend/internal/scraper"
	"vkusync-backend/internal/validate"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const (
	report_scrape   = "scrape"
	report_validate = "validate"
	report_sync     = "sync"
)

var tracer = otel.Tracer("vkusync.internal.pipeline")

type Scraper interface {
	Run(ctx context.Context, opts scraper.Options) scraper.Result
}

type Syncer interface {
	SyncAll(ctx context.Context, bundle portal.Bundle, owner string) recordsync.Report
}

type Data struct {
	StudentInfo *portal.Profile    `json:"student_info"`
	Sync        *recordsync.Report `json:"sync"`
	Warnings    []string           `json:"warnings"`
}

// Outcome is what a caller of ScrapeAndSync gets back, it is shaped for the http api.
type Outcome struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Data    Data   `json:"data"`
}

type Pipeline struct {
	scraper   Scraper
	validator validate.Validator
	syncer    Syncer
	tel       telemetry.API
}

func New(s Scraper, v validate.Validator, syncer Syncer, tel telemetry.API) Pipeline {
	assert.NotNil(s, "scraper")
	assert.NotNil(syncer, "syncer")
	assert.NotNil(tel, "tel")
	return Pipeline{
		scraper:   s,
		validator: v,
		syncer:    syncer,
		tel:       telemetry.NewScopedAPI("pipeline", tel),
	}
}

// ScrapeAndSync scrapes the portal with the owner's session and syncs what it got. Nothing
// is written unless the scrape succeeded and the bundle passed validation.
func (p Pipeline) ScrapeAndSync(ctx context.Context, owner string, opts scraper.Options) Outcome {
	ctx, span := tracer.Start(ctx, "ScrapeAndSync")
	span.SetAttributes(attribute.String("owner", owner))
	defer span.End()

	outcome := Outcome{Data: Data{Warnings: []string{}}}

	result := p.scraper.Run(ctx, opts)
	outcome.Data.Warnings = append(outcome.Data.Warnings, result.Warnings...)
	if !result.Success {
		p.tel.ReportWarning(report_scrape, owner, result.Error)
		span.SetStatus(codes.Error, result.Error)
		outcome.Message = fmt.Sprintf("scrape failed: %s", result.Error)
		return outcome
	}

	bundle := result.Bundle
	ok, reason := p.validator.Bundle(&bundle)
	if !ok {
		p.tel.ReportWarning(report_validate, owner, reason)
		span.SetStatus(codes.Error, reason)
		outcome.Message = reason
		return outcome
	}
	outcome.Data.StudentInfo = &bundle.Profile

	report := p.syncer.SyncAll(ctx, bundle, owner)
	outcome.Data.Sync = &report
	outcome.Message = report.Message
	if !report.StudentOK {
		p.tel.ReportWarning(report_sync, owner, report.Message)
		span.SetStatus(codes.Error, report.Message)
		return outcome
	}

	span.SetAttributes(
		attribute.String("student_id", bundle.Profile.StudentID),
		attribute.Int("grades_inserted", report.GradesInserted),
		attribute.Int("grades_failed", report.GradesFailed),
	)
	outcome.Success = true
	return outcome
}
