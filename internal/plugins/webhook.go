package plugins

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/pkg/serviceutil"

	"github.com/go-resty/resty/v2"
	"github.com/google/uuid"
)

const (
	report_webhook_send = "webhook-send"

	DefaultWebhookTimeout = 120 * time.Second
	historyLimit          = 100
	historyMessageLimit   = 100
	defaultHistoryPage    = 20

	pingTimeout       = 10 * time.Second
	pingMessage       = "Test connection from VKUSync"
	pingUser          = "test_user"
	pingResponseLimit = 500
)

// WebhookConfig describes a plugin that forwards command messages to an external
// automation webhook.
type WebhookConfig struct {
	ID       string   `json:"id"`
	Url      string   `json:"url"`
	Metadata Metadata `json:"metadata"`
	// Source is sent along every message, it defaults to "VKUSync - <name>".
	Source         string `json:"source"`
	TimeoutSeconds int    `json:"timeout_seconds"`
	Disabled       bool   `json:"disabled"`
}

type HistoryEntry struct {
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	User       string    `json:"user"`
	Message    string    `json:"message"`
	StatusCode int       `json:"status_code"`
	Success    bool      `json:"success"`
}

type ExecuteRequest struct {
	Message    string `json:"message"`
	AuthUserId string `json:"auth_userid"`
}

type ExecuteResponse struct {
	Success         bool   `json:"success"`
	Message         string `json:"message"`
	WebhookResponse any    `json:"webhook_response"`
}

// PingResponse is what the webhook answered to a connection test.
type PingResponse struct {
	Success    bool   `json:"success"`
	StatusCode int    `json:"status_code,omitempty"`
	Response   string `json:"response,omitempty"`
	Error      string `json:"error,omitempty"`
}

type webhookPayload struct {
	Message    string `json:"message"`
	AuthUserId string `json:"auth_userid"`
	Timestamp  string `json:"timestamp"`
	Source     string `json:"source"`
}

type Webhook struct {
	cfg    WebhookConfig
	client *resty.Client
	time   chrono.TimeAPI
	tel    telemetry.API

	mutex   sync.Mutex
	enabled bool
	history []HistoryEntry
}

type WebhookOption func(cfg *webhookOptions)

type webhookOptions struct {
	time chrono.TimeAPI
	tel  telemetry.API
}

func WithWebhookTelemetryAPI(tel telemetry.API) WebhookOption {
	return func(cfg *webhookOptions) {
		cfg.tel = tel
	}
}

func WithWebhookTimeAPI(time chrono.TimeAPI) WebhookOption {
	return func(cfg *webhookOptions) {
		cfg.time = time
	}
}

func NewWebhook(cfg WebhookConfig, options ...WebhookOption) *Webhook {
	assert.NotEmptyStr(cfg.ID, "webhook id")
	assert.NotEmptyStr(cfg.Url, "webhook url")

	opts := webhookOptions{
		time: chrono.NewStandardTime(),
		tel:  telemetry.SlogAPI{},
	}
	for _, opt := range options {
		opt(&opts)
	}
	tel := telemetry.NewScopedAPI(fmt.Sprintf("plugin_%s", cfg.ID), opts.tel)

	if cfg.Source == "" {
		cfg.Source = fmt.Sprintf("VKUSync - %s", cfg.Metadata.Name)
	}
	timeout := DefaultWebhookTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}

	client := resty.New()
	client.SetTimeout(timeout)
	client.SetHeader("content-type", "application/json")
	telemetry.InstrumentResty(client, tel)

	return &Webhook{
		cfg:     cfg,
		client:  client,
		time:    opts.time,
		tel:     tel,
		enabled: !cfg.Disabled,
	}
}

func (w *Webhook) ID() string {
	return w.cfg.ID
}

func (w *Webhook) Metadata() Metadata {
	metadata := w.cfg.Metadata
	metadata.Enabled = w.Enabled()
	if metadata.Dependencies == nil {
		metadata.Dependencies = []string{}
	}
	if metadata.Commands == nil {
		metadata.Commands = []Command{}
	}
	return metadata
}

func (w *Webhook) Enabled() bool {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	return w.enabled
}

func (w *Webhook) SetEnabled(enabled bool) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.enabled = enabled
}

func (w *Webhook) Setup(router *Router) {
	router.HandleFunc("GET /{$}", w.handleInfo)
	router.HandleFunc("POST /execute", w.handleExecute)
	router.HandleFunc("GET /history", w.handleHistory)
	router.HandleFunc("POST /test", w.handleTest)
}

// History returns up to limit entries, most recent first.
func (w *Webhook) History(limit int) (entries []HistoryEntry, total int) {
	w.mutex.Lock()
	defer w.mutex.Unlock()

	total = len(w.history)
	if limit <= 0 || limit > total {
		limit = total
	}
	entries = make([]HistoryEntry, 0, limit)
	for i := total - 1; i >= total-limit; i-- {
		entries = append(entries, w.history[i])
	}
	return entries, total
}

func (w *Webhook) record(entry HistoryEntry) {
	w.mutex.Lock()
	defer w.mutex.Unlock()
	w.history = append(w.history, entry)
	if len(w.history) > historyLimit {
		w.history = w.history[len(w.history)-historyLimit:]
	}
}

// normalizeWebhookResponse turns what the webhook answered into an object: the first
// element of an array, an object as is and anything else as {"text": body}.
func normalizeWebhookResponse(body []byte) any {
	var value any
	err := json.Unmarshal(body, &value)
	if err != nil {
		return map[string]any{"text": string(body)}
	}
	switch v := value.(type) {
	case []any:
		if len(v) > 0 {
			return v[0]
		}
	case map[string]any:
		return v
	}
	return map[string]any{"text": string(body)}
}

func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit])
}

func (w *Webhook) handleInfo(rw http.ResponseWriter, req *http.Request) {
	_, total := w.History(0)
	metadata := w.Metadata()
	command := "/" + w.cfg.ID
	if len(metadata.Commands) > 0 {
		command = "/" + metadata.Commands[0].Command
	}
	serviceutil.WriteJson(rw, http.StatusOK, map[string]any{
		"name":        metadata.Name,
		"description": metadata.Description,
		"enabled":     metadata.Enabled,
		"webhook_url": w.cfg.Url,
		"commands":    metadata.Commands,
		"usage": map[string]any{
			"command": command,
			"example": ExecuteRequest{
				Message:    "What are my current scores?",
				AuthUserId: "student123",
			},
		},
		"total_commands": total,
	})
}

func (w *Webhook) handleExecute(rw http.ResponseWriter, req *http.Request) {
	if !w.Enabled() {
		serviceutil.WriteError(rw, http.StatusForbidden, fmt.Sprintf("%s plugin is currently disabled", w.cfg.Metadata.Name))
		return
	}

	body, err := serviceutil.ReadJson[ExecuteRequest](req)
	if err != nil {
		serviceutil.WriteError(rw, http.StatusBadRequest, fmt.Sprintf("invalid request body: %s", err))
		return
	}
	if body.Message == "" || body.AuthUserId == "" {
		serviceutil.WriteError(rw, http.StatusBadRequest, "message and auth_userid are required")
		return
	}

	now := w.time.Now()
	res, err := w.client.R().
		SetContext(req.Context()).
		SetBody(webhookPayload{
			Message:    body.Message,
			AuthUserId: body.AuthUserId,
			Timestamp:  now.Format(time.RFC3339),
			Source:     w.cfg.Source,
		}).
		Post(w.cfg.Url)
	if err != nil {
		w.tel.ReportWarning(report_webhook_send, err)
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			serviceutil.WriteError(rw, http.StatusGatewayTimeout, "webhook request timed out")
			return
		}
		serviceutil.WriteError(rw, http.StatusInternalServerError, fmt.Sprintf("failed to send webhook: %s", err))
		return
	}

	ok := res.StatusCode() == http.StatusOK
	w.record(HistoryEntry{
		ID:         uuid.NewString(),
		Timestamp:  now,
		User:       body.AuthUserId,
		Message:    truncate(body.Message, historyMessageLimit),
		StatusCode: res.StatusCode(),
		Success:    ok,
	})

	result := ExecuteResponse{
		Success:         ok,
		Message:         "query sent successfully",
		WebhookResponse: normalizeWebhookResponse(res.Body()),
	}
	if !ok {
		result.Message = fmt.Sprintf("failed to send query (status %d)", res.StatusCode())
	}
	serviceutil.WriteJson(rw, http.StatusOK, result)
}

// Ping sends a test message to the webhook, it is not recorded in the history.
func (w *Webhook) Ping(ctx context.Context) PingResponse {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()

	res, err := w.client.R().
		SetContext(ctx).
		SetBody(webhookPayload{
			Message:    pingMessage,
			AuthUserId: pingUser,
			Timestamp:  w.time.Now().Format(time.RFC3339),
			Source:     w.cfg.Source + " Test",
		}).
		Post(w.cfg.Url)
	if err != nil {
		w.tel.ReportWarning(report_webhook_send, err)
		return PingResponse{Error: err.Error()}
	}
	return PingResponse{
		Success:    res.StatusCode() == http.StatusOK,
		StatusCode: res.StatusCode(),
		Response:   truncate(string(res.Body()), pingResponseLimit),
	}
}

func (w *Webhook) handleTest(rw http.ResponseWriter, req *http.Request) {
	serviceutil.WriteJson(rw, http.StatusOK, w.Ping(req.Context()))
}

func (w *Webhook) handleHistory(rw http.ResponseWriter, req *http.Request) {
	limit := defaultHistoryPage
	if raw := req.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			serviceutil.WriteError(rw, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = min(parsed, historyLimit)
	}
	entries, total := w.History(limit)
	serviceutil.WriteJson(rw, http.StatusOK, map[string]any{
		"total":   total,
		"history": entries,
	})
}
