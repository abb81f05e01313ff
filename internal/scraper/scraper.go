// Package scraper runs one complete scrape of the portal: it opens a browser, makes sure it
// carries a logged in session and then reads the profile, grades and progress pages in order.
package scraper

import (
	"context"
	"errors"
	"fmt"
	"time"
	"vkusync-backend/internal/browser"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/session"

	"github.com/PuerkitoBio/goquery"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const (
	report_run      = "run"
	report_close    = "close"
	report_panic    = "panic"
	report_grades   = "grades"
	report_progress = "progress"
)

// DefaultWaitTimeout bounds how long a page may take to show the element it is waited on for.
const DefaultWaitTimeout = 20 * time.Second

var tracer = otel.Tracer("vkusync.internal.scraper")

// Result is the outcome of one run. Error is set exactly when Success is false.
type Result struct {
	Success bool `json:"success"`
	portal.Bundle
	// Warnings lists the steps that degraded to an empty result.
	Warnings []string `json:"warnings,omitempty"`
	Error    string   `json:"error,omitempty"`
}

type Options struct {
	Headless    bool
	SessionPath string
}

type Scraper struct {
	factory     browser.Factory
	sessions    session.Store
	pages       portal.Pages
	extractor   portal.Extractor
	driverOpts  browser.Options
	waitTimeout time.Duration
	tel         telemetry.API
}

type scraperConfig struct {
	driverOpts  browser.Options
	waitTimeout time.Duration
	tel         telemetry.API
}

type ScraperOption func(cfg *scraperConfig)

func WithTelemetryAPI(tel telemetry.API) ScraperOption {
	return func(cfg *scraperConfig) {
		cfg.tel = tel
	}
}

func WithWaitTimeout(timeout time.Duration) ScraperOption {
	return func(cfg *scraperConfig) {
		cfg.waitTimeout = timeout
	}
}

// WithDriverOptions sets the options every driver is opened with, Headless is overridden per run.
func WithDriverOptions(opts browser.Options) ScraperOption {
	return func(cfg *scraperConfig) {
		cfg.driverOpts = opts
	}
}

func NewScraper(factory browser.Factory, sessions session.Store, pages portal.Pages, options ...ScraperOption) Scraper {
	assert.NotNil(factory, "factory")
	assert.NotNil(pages.Base, "pages base url")

	cfg := scraperConfig{
		waitTimeout: DefaultWaitTimeout,
		tel:         telemetry.SlogAPI{},
	}
	for _, opt := range options {
		opt(&cfg)
	}

	tel := telemetry.NewScopedAPI("scraper", cfg.tel)
	return Scraper{
		factory:     factory,
		sessions:    sessions,
		pages:       pages,
		extractor:   portal.NewExtractor(cfg.tel),
		driverOpts:  cfg.driverOpts,
		waitTimeout: cfg.waitTimeout,
		tel:         tel,
	}
}

func failed(err error) Result {
	return Result{Success: false, Error: err.Error()}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// Run performs one scrape. It never returns a Go error, every failure ends up in Result.Error
// and the browser is closed on every path out, panics included.
func (s Scraper) Run(ctx context.Context, opts Options) (result Result) {
	ctx, span := tracer.Start(ctx, "Run")
	span.SetAttributes(
		attribute.Bool("headless", opts.Headless),
		attribute.String("session_path", opts.SessionPath),
	)
	defer func() {
		if !result.Success {
			span.SetStatus(codes.Error, result.Error)
		}
		span.End()
	}()

	driverOpts := s.driverOpts
	driverOpts.Headless = opts.Headless
	driver, err := s.factory(ctx, driverOpts)
	if err != nil {
		s.tel.ReportBroken(report_run, fmt.Errorf("open browser: %w", err))
		return failed(fmt.Errorf("open browser: %w", err))
	}

	defer func() {
		if r := recover(); r != nil {
			s.tel.ReportBroken(report_panic, r)
			result = failed(fmt.Errorf("scrape aborted: %v", r))
		}
		err := driver.Close()
		if err != nil {
			s.tel.ReportWarning(report_close, err)
		}
	}()

	result, err = s.run(ctx, driver, opts)
	if err != nil {
		s.tel.ReportWarning(report_run, err)
		return failed(err)
	}
	return result
}

func (s Scraper) rejectLogin(landed string) error {
	if s.pages.IsLoginPage(landed) {
		return browser.ErrSessionExpired
	}
	return nil
}

func (s Scraper) capture(ctx context.Context, driver browser.Driver, path string) error {
	ctx, span := tracer.Start(ctx, "CaptureSession")
	err := s.sessions.Capture(ctx, driver, s.pages.Login(), s.pages.IsLoggedIn, path)
	endSpan(span, err)
	if err != nil {
		return fmt.Errorf("interactive login: %w", err)
	}
	return nil
}

// login captures a new session inside a run. Nobody can log in to a headless browser, so a
// headless run fails instead of waiting out the login timeout.
func (s Scraper) login(ctx context.Context, driver browser.Driver, opts Options) error {
	if opts.Headless {
		return fmt.Errorf("interactive login: %w", browser.ErrInteractiveUnsupported)
	}
	return s.capture(ctx, driver, opts.SessionPath)
}

// Capture opens a visible browser on the login page and saves the session once a human has
// logged in.
func (s Scraper) Capture(ctx context.Context, sessionPath string) (err error) {
	if sessionPath == "" {
		sessionPath = s.sessions.PathFor("")
	}
	driverOpts := s.driverOpts
	driverOpts.Headless = false
	driver, err := s.factory(ctx, driverOpts)
	if err != nil {
		s.tel.ReportBroken(report_run, fmt.Errorf("open browser: %w", err))
		return fmt.Errorf("open browser: %w", err)
	}
	defer func() {
		if r := recover(); r != nil {
			s.tel.ReportBroken(report_panic, r)
			err = fmt.Errorf("capture aborted: %v", r)
		}
		closeErr := driver.Close()
		if closeErr != nil {
			s.tel.ReportWarning(report_close, closeErr)
		}
	}()
	return s.capture(ctx, driver, sessionPath)
}

func (s Scraper) load(ctx context.Context, driver browser.Driver, name, url, selector string) (doc *goquery.Document, err error) {
	ctx, span := tracer.Start(ctx, "Load "+name)
	span.SetAttributes(attribute.String("url", url))
	defer func() {
		endSpan(span, err)
	}()

	page, err := browser.Load(ctx, driver, url, selector, s.waitTimeout, s.rejectLogin)
	if err != nil {
		return nil, err
	}
	return page.Document()
}

func (s Scraper) run(ctx context.Context, driver browser.Driver, opts Options) (Result, error) {
	if opts.SessionPath == "" {
		opts.SessionPath = s.sessions.PathFor("")
	}
	restored := s.sessions.Restore(ctx, driver, opts.SessionPath)
	if !restored {
		err := s.login(ctx, driver, opts)
		if err != nil {
			return Result{}, err
		}
	}

	doc, err := s.load(ctx, driver, "profile", s.pages.Profile(), portal.SelectorProfile)
	if errors.Is(err, browser.ErrSessionExpired) && restored {
		// the saved session went stale, log in again once
		s.tel.ReportDebug("saved session expired, capturing a new one", opts.SessionPath)
		err = s.login(ctx, driver, opts)
		if err != nil {
			return Result{}, err
		}
		doc, err = s.load(ctx, driver, "profile", s.pages.Profile(), portal.SelectorProfile)
	}
	if err != nil {
		return Result{}, fmt.Errorf("profile page: %w", err)
	}
	profile, err := s.extractor.Profile(doc)
	if err != nil {
		return Result{}, err
	}
	if profile.StudentID == "" {
		return Result{}, fmt.Errorf("profile page has no student id")
	}

	result := Result{Success: true}
	result.Profile = profile

	doc, err = s.load(ctx, driver, "grades", s.pages.Grades(), portal.SelectorGrades)
	if err == nil {
		result.Grades, err = s.extractor.Grades(doc)
		result.Summaries = s.extractor.Summaries(doc)
	}
	if err != nil {
		s.tel.ReportWarning(report_grades, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("grades: %s", err))
		result.Grades = nil
	}

	doc, err = s.load(ctx, driver, "progress", s.pages.Progress(), portal.SelectorProgress)
	if err == nil {
		result.Progress, err = s.extractor.Progress(doc)
	}
	if err != nil {
		s.tel.ReportWarning(report_progress, err)
		result.Warnings = append(result.Warnings, fmt.Sprintf("progress: %s", err))
		result.Progress = nil
	}

	stampStudentID(&result.Bundle)
	if result.Grades == nil {
		result.Grades = []portal.GradeRecord{}
	}
	if result.Progress == nil {
		result.Progress = []portal.ProgressRecord{}
	}
	if result.Summaries == nil {
		result.Summaries = []portal.SemesterSummary{}
	}
	return result, nil
}

func stampStudentID(bundle *portal.Bundle) {
	id := bundle.Profile.StudentID
	for i := range bundle.Grades {
		bundle.Grades[i].StudentID = id
	}
	for i := range bundle.Progress {
		bundle.Progress[i].StudentID = id
	}
	for i := range bundle.Summaries {
		bundle.Summaries[i].StudentID = id
	}
}
