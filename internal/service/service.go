// Package service is the http api over the scraper, the sync pipeline and the record store.
// Every route below /api/ needs a bearer token, the token decides which owner's session and
// records a request sees.
package service

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"vkusync-backend/internal/browser"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/pipeline"
	"vkusync-backend/internal/plugins"
	"vkusync-backend/internal/scraper"
	"vkusync-backend/internal/session"
	"vkusync-backend/internal/store"
	"vkusync-backend/pkg/serviceutil"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.opentelemetry.io/otel"
)

const (
	report_capture = "capture-session"
	report_session = "session"
	report_records = "records"
	report_plugin  = "plugin"
)

var tracer = otel.Tracer("vkusync.internal.service")

type Capturer interface {
	Capture(ctx context.Context, sessionPath string) error
}

type ScrapeSyncer interface {
	ScrapeAndSync(ctx context.Context, owner string, opts scraper.Options) pipeline.Outcome
}

type Options struct {
	// RequestsPerSecond is the per token rate limit, 0 disables it.
	RequestsPerSecond float64
	Burst             int
	// Headless is the default for scrape-and-sync when the request does not say.
	Headless bool
}

type Service struct {
	sessions session.Store
	capturer Capturer
	syncer   ScrapeSyncer
	records  store.Store
	registry *plugins.Registry
	verifier TokenVerifier
	limiters limiters
	opts     Options
	tel      telemetry.API
}

func NewService(
	sessions session.Store,
	capturer Capturer,
	syncer ScrapeSyncer,
	records store.Store,
	registry *plugins.Registry,
	verifier TokenVerifier,
	opts Options,
	tel telemetry.API,
) Service {
	assert.NotNil(capturer, "capturer")
	assert.NotNil(syncer, "syncer")
	assert.NotNil(records, "records")
	assert.NotNil(registry, "registry")
	assert.NotNil(tel, "tel")

	burst := opts.Burst
	if burst <= 0 {
		burst = 5
	}
	return Service{
		sessions: sessions,
		capturer: capturer,
		syncer:   syncer,
		records:  records,
		registry: registry,
		verifier: verifier,
		limiters: newLimiters(opts.RequestsPerSecond, burst),
		opts:     opts,
		tel:      telemetry.NewScopedAPI("service", tel),
	}
}

// Handler returns the api with every route mounted and otel instrumentation around it.
func (s Service) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /{$}", s.handleRoot)

	protected := func(pattern string, handler http.HandlerFunc) {
		mux.Handle(pattern, s.authenticate(handler))
	}
	protected("POST /api/capture-session", s.handleCaptureSession)
	protected("GET /api/check-session", s.handleCheckSession)
	protected("GET /api/session-content", s.handleSessionContent)
	protected("DELETE /api/session", s.handleDeleteSession)
	protected("POST /api/scrape-and-sync", s.handleScrapeAndSync)

	protected("GET /api/students", s.handleListStudents)
	protected("GET /api/students/{id}", s.handleGetStudent)
	protected("GET /api/students/{id}/grades", s.handleListGrades)
	protected("GET /api/students/{id}/progress", s.handleListProgress)
	protected("GET /api/students/{id}/summaries", s.handleListSummaries)
	protected("GET /api/stats", s.handleStats)

	protected("GET /api/plugins", s.handleListPlugins)
	protected("POST /api/plugins/{id}/enable", s.handleTogglePlugin(true))
	protected("POST /api/plugins/{id}/disable", s.handleTogglePlugin(false))
	s.registry.Mount(mux, s.authenticate)

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		serviceutil.WriteError(w, http.StatusNotFound, fmt.Sprintf("no route for %s %s", r.Method, r.URL.Path))
	})

	return otelhttp.NewHandler(mux, "vkusync-api")
}

func (s Service) handleRoot(w http.ResponseWriter, r *http.Request) {
	serviceutil.WriteJson(w, http.StatusOK, map[string]string{
		"message": "VKUSync API",
		"status":  "running",
	})
}

type StatusResponse struct {
	Success     bool   `json:"success"`
	Message     string `json:"message"`
	SessionPath string `json:"session_path,omitempty"`
}

func (s Service) handleCaptureSession(w http.ResponseWriter, r *http.Request) {
	path := s.sessions.PathFor(OwnerFromContext(r.Context()))

	err := s.capturer.Capture(r.Context(), path)
	switch {
	case errors.Is(err, browser.ErrInteractiveUnsupported):
		serviceutil.WriteError(w, http.StatusNotImplemented, "the configured browser cannot host an interactive login")
		return
	case errors.Is(err, context.DeadlineExceeded):
		serviceutil.WriteError(w, http.StatusRequestTimeout, "session capture timed out")
		return
	case err != nil:
		s.tel.ReportWarning(report_capture, err)
		serviceutil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to capture session: %s", err))
		return
	}

	if !s.sessions.Stat(path).Exists {
		serviceutil.WriteError(w, http.StatusInternalServerError, "session file was not created")
		return
	}
	serviceutil.WriteJson(w, http.StatusOK, StatusResponse{
		Success:     true,
		Message:     "session captured successfully",
		SessionPath: path,
	})
}

func (s Service) handleCheckSession(w http.ResponseWriter, r *http.Request) {
	path := s.sessions.PathFor(OwnerFromContext(r.Context()))
	serviceutil.WriteJson(w, http.StatusOK, s.sessions.Stat(path))
}

func (s Service) handleSessionContent(w http.ResponseWriter, r *http.Request) {
	path := s.sessions.PathFor(OwnerFromContext(r.Context()))
	raw, err := s.sessions.Raw(path)
	if errors.Is(err, session.ErrSessionMissing) {
		serviceutil.WriteError(w, http.StatusNotFound, "session file not found")
		return
	}
	if err != nil {
		s.tel.ReportWarning(report_session, err, path)
		serviceutil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to read session: %s", err))
		return
	}
	serviceutil.WriteJson(w, http.StatusOK, raw)
}

func (s Service) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	path := s.sessions.PathFor(OwnerFromContext(r.Context()))
	deleted, err := s.sessions.Delete(path)
	if err != nil {
		s.tel.ReportWarning(report_session, err, path)
		serviceutil.WriteError(w, http.StatusInternalServerError, fmt.Sprintf("failed to delete session: %s", err))
		return
	}
	if !deleted {
		serviceutil.WriteJson(w, http.StatusOK, StatusResponse{Success: false, Message: "session file not found"})
		return
	}
	serviceutil.WriteJson(w, http.StatusOK, StatusResponse{Success: true, Message: "session deleted"})
}

type scrapeRequest struct {
	Headless *bool `json:"headless"`
}

func (s Service) handleScrapeAndSync(w http.ResponseWriter, r *http.Request) {
	body, err := serviceutil.ReadJson[scrapeRequest](r)
	if err != nil {
		serviceutil.WriteError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return
	}
	headless := s.opts.Headless
	if body.Headless != nil {
		headless = *body.Headless
	}

	owner := OwnerFromContext(r.Context())
	outcome := s.syncer.ScrapeAndSync(r.Context(), owner, scraper.Options{
		Headless:    headless,
		SessionPath: s.sessions.PathFor(owner),
	})
	serviceutil.WriteJson(w, http.StatusOK, outcome)
}
