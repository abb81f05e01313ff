package plugins

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"

	"github.com/stretchr/testify/require"
)

var loadedAt = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

type hook struct {
	mutex    sync.Mutex
	status   int
	body     string
	delay    time.Duration
	payloads []webhookPayload
}

func (h *hook) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	var payload webhookPayload
	json.NewDecoder(r.Body).Decode(&payload)

	h.mutex.Lock()
	h.payloads = append(h.payloads, payload)
	status, body, delay := h.status, h.body, h.delay
	h.mutex.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}
	w.WriteHeader(status)
	io.WriteString(w, body)
}

func scoresConfig(url string) WebhookConfig {
	return WebhookConfig{
		ID:  "scores",
		Url: url,
		Metadata: Metadata{
			Name:        "Scores",
			Description: "Send score questions to the automation webhook",
			Version:     "1.0.0",
			Author:      "VKUSync",
			Icon:        "Award",
			Commands: []Command{{
				Command:     "scores",
				Description: "Query your scores and grades",
				Fields: []CommandField{
					{Name: "message", Label: "Your Query", Type: "textarea", Required: true},
				},
			}},
		},
	}
}

type fixture struct {
	hook     *hook
	webhook  *Webhook
	registry *Registry
	server   *httptest.Server
}

func setup(t *testing.T, timeout int) fixture {
	h := &hook{status: http.StatusOK, body: `[{"output":"GPA 3.2"}]`}
	hookServer := httptest.NewServer(h)
	t.Cleanup(hookServer.Close)

	cfg := scoresConfig(hookServer.URL)
	cfg.TimeoutSeconds = timeout
	tel := &telemetry.MemoryAPI{}
	clock := chrono.FixedTime{At: loadedAt}
	webhook := NewWebhook(cfg, WithWebhookTelemetryAPI(tel), WithWebhookTimeAPI(clock))

	registry := NewRegistry(WithTelemetryAPI(tel), WithTimeAPI(clock))
	require.NoError(t, registry.Register(webhook))

	mux := http.NewServeMux()
	registry.Mount(mux)
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)

	return fixture{hook: h, webhook: webhook, registry: registry, server: server}
}

func (f fixture) execute(t *testing.T, body string) (int, map[string]any) {
	res, err := http.Post(f.server.URL+"/api/plugins/scores/execute", "application/json", strings.NewReader(body))
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func getJson(t *testing.T, url string) (int, map[string]any) {
	res, err := http.Get(url)
	require.NoError(t, err)
	defer res.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(res.Body).Decode(&out))
	return res.StatusCode, out
}

func TestRegistry(t *testing.T) {
	f := setup(t, 0)

	err := f.registry.Register(NewWebhook(scoresConfig("http://localhost")))
	require.ErrorIs(t, err, ErrDuplicate)

	plugin, ok := f.registry.Get("scores")
	require.True(t, ok)
	require.Equal(t, "scores", plugin.ID())
	_, ok = f.registry.Get("missing")
	require.False(t, ok)

	infos := f.registry.List()
	require.Len(t, infos, 1)
	require.Equal(t, "scores", infos[0].ID)
	require.Equal(t, 3, infos[0].RoutesCount)
	require.True(t, infos[0].Enabled)
	require.True(t, infos[0].Metadata.Enabled)
	require.True(t, infos[0].LoadedAt.Equal(loadedAt))

	require.NoError(t, f.registry.Disable("scores"))
	require.False(t, f.registry.List()[0].Enabled)
	require.False(t, f.registry.List()[0].Metadata.Enabled)
	require.NoError(t, f.registry.Enable("scores"))
	require.True(t, f.webhook.Enabled())

	require.ErrorIs(t, f.registry.Enable("missing"), ErrNotFound)

	status, body := getJson(t, f.server.URL+"/api/plugins/missing/")
	require.Equal(t, http.StatusNotFound, status)
	require.Equal(t, false, body["success"])
}

func TestMountMiddlewareOrder(t *testing.T) {
	registry := NewRegistry(WithTelemetryAPI(&telemetry.MemoryAPI{}))
	require.NoError(t, registry.Register(NewWebhook(scoresConfig("http://localhost"))))

	var order []string
	tag := func(name string) func(http.Handler) http.Handler {
		return func(next http.Handler) http.Handler {
			return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				order = append(order, name)
				next.ServeHTTP(w, r)
			})
		}
	}
	mux := http.NewServeMux()
	registry.Mount(mux, tag("outer"), tag("inner"))

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/plugins/scores/", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.Equal(t, []string{"outer", "inner"}, order)
}

func TestWebhookInfo(t *testing.T) {
	f := setup(t, 0)

	status, body := getJson(t, f.server.URL+"/api/plugins/scores/")
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, "Scores", body["name"])
	require.Equal(t, true, body["enabled"])
	require.Equal(t, f.webhook.cfg.Url, body["webhook_url"])
	require.Equal(t, float64(0), body["total_commands"])
	usage := body["usage"].(map[string]any)
	require.Equal(t, "/scores", usage["command"])
}

func TestWebhookExecute(t *testing.T) {
	f := setup(t, 0)

	status, body := f.execute(t, `{"message":"What is my GPA?","auth_userid":"student123"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, true, body["success"])
	require.Equal(t, map[string]any{"output": "GPA 3.2"}, body["webhook_response"])

	require.Len(t, f.hook.payloads, 1)
	sent := f.hook.payloads[0]
	require.Equal(t, "What is my GPA?", sent.Message)
	require.Equal(t, "student123", sent.AuthUserId)
	require.Equal(t, "VKUSync - Scores", sent.Source)
	at, err := time.Parse(time.RFC3339, sent.Timestamp)
	require.NoError(t, err)
	require.True(t, at.Equal(loadedAt))

	entries, total := f.webhook.History(10)
	require.Equal(t, 1, total)
	require.Equal(t, "student123", entries[0].User)
	require.Equal(t, http.StatusOK, entries[0].StatusCode)
	require.True(t, entries[0].Success)
	require.NotEmpty(t, entries[0].ID)
}

func TestWebhookExecuteFailedStatus(t *testing.T) {
	f := setup(t, 0)
	f.hook.status = http.StatusBadGateway
	f.hook.body = "upstream down"

	status, body := f.execute(t, `{"message":"hi","auth_userid":"u1"}`)
	require.Equal(t, http.StatusOK, status)
	require.Equal(t, false, body["success"])
	require.Contains(t, body["message"], "502")
	require.Equal(t, map[string]any{"text": "upstream down"}, body["webhook_response"])

	entries, _ := f.webhook.History(1)
	require.False(t, entries[0].Success)
}

func TestWebhookExecuteRejects(t *testing.T) {
	f := setup(t, 0)

	status, body := f.execute(t, `{"message":""}`)
	require.Equal(t, http.StatusBadRequest, status)
	require.Equal(t, false, body["success"])

	status, _ = f.execute(t, `not json`)
	require.Equal(t, http.StatusBadRequest, status)

	f.webhook.SetEnabled(false)
	status, body = f.execute(t, `{"message":"hi","auth_userid":"u1"}`)
	require.Equal(t, http.StatusForbidden, status)
	require.Contains(t, body["message"], "disabled")

	require.Empty(t, f.hook.payloads)
}

func TestWebhookTimeout(t *testing.T) {
	f := setup(t, 1)
	f.hook.delay = 1500 * time.Millisecond

	status, body := f.execute(t, `{"message":"hi","auth_userid":"u1"}`)
	require.Equal(t, http.StatusGatewayTimeout, status)
	require.Equal(t, false, body["success"])

	_, total := f.webhook.History(0)
	require.Equal(t, 0, total)
}

func TestWebhookHistory(t *testing.T) {
	f := setup(t, 0)
	for i := 0; i < historyLimit+5; i++ {
		f.webhook.record(HistoryEntry{Message: fmt.Sprintf("m%d", i)})
	}

	entries, total := f.webhook.History(0)
	require.Equal(t, historyLimit, total)
	require.Equal(t, "m104", entries[0].Message)
	require.Equal(t, "m5", entries[len(entries)-1].Message)

	status, body := getJson(t, f.server.URL+"/api/plugins/scores/history")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["history"], defaultHistoryPage)

	status, body = getJson(t, f.server.URL+"/api/plugins/scores/history?limit=500")
	require.Equal(t, http.StatusOK, status)
	require.Len(t, body["history"], historyLimit)

	status, _ = getJson(t, f.server.URL+"/api/plugins/scores/history?limit=x")
	require.Equal(t, http.StatusBadRequest, status)
}

func TestWebhookPing(t *testing.T) {
	f := setup(t, 0)
	f.hook.body = strings.Repeat("x", pingResponseLimit+20)

	res, err := http.Post(f.server.URL+"/api/plugins/scores/test", "application/json", nil)
	require.NoError(t, err)
	defer res.Body.Close()
	require.Equal(t, http.StatusOK, res.StatusCode)

	var body PingResponse
	require.NoError(t, json.NewDecoder(res.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, http.StatusOK, body.StatusCode)
	require.Len(t, body.Response, pingResponseLimit)

	require.Len(t, f.hook.payloads, 1)
	sent := f.hook.payloads[0]
	require.Equal(t, pingMessage, sent.Message)
	require.Equal(t, pingUser, sent.AuthUserId)
	require.Equal(t, "VKUSync - Scores Test", sent.Source)

	_, total := f.webhook.History(0)
	require.Equal(t, 0, total)
}

func TestWebhookPingUnreachable(t *testing.T) {
	webhook := NewWebhook(scoresConfig("http://127.0.0.1:1"), WithWebhookTelemetryAPI(&telemetry.MemoryAPI{}))
	result := webhook.Ping(context.Background())
	require.False(t, result.Success)
	require.NotEmpty(t, result.Error)
	require.Zero(t, result.StatusCode)
}

func TestNormalizeWebhookResponse(t *testing.T) {
	table := []struct {
		body     string
		expected any
	}{
		{`[{"a":1},{"b":2}]`, map[string]any{"a": float64(1)}},
		{`{"a":1}`, map[string]any{"a": float64(1)}},
		{`[]`, map[string]any{"text": "[]"}},
		{`"plain"`, map[string]any{"text": `"plain"`}},
		{`not json`, map[string]any{"text": "not json"}},
	}
	for _, row := range table {
		require.Equal(t, row.expected, normalizeWebhookResponse([]byte(row.body)), row.body)
	}
}

func TestTruncate(t *testing.T) {
	require.Equal(t, "abc", truncate("abc", 5))
	require.Equal(t, "điể", truncate("điểm", 3))
}
