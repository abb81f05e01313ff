package browser

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/session"

	"github.com/stretchr/testify/require"
)

var errLoginPage = errors.New("landed on login page")

func newPortalServer(t *testing.T) *httptest.Server {
	profile, err := os.ReadFile(filepath.Join("..", "portal", "testdata", "profile.html"))
	require.NoError(t, err)

	mux := http.NewServeMux()
	mux.HandleFunc("/sv", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><form id="login"></form></body></html>`))
	})
	mux.HandleFunc("/sv/hoso", func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie("laravel_session")
		if err != nil || cookie.Value != "valid" {
			http.Redirect(w, r, "/sv", http.StatusFound)
			return
		}
		w.Write(profile)
	})
	mux.HandleFunc("/broken", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})

	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func newTestHttp(t *testing.T) *Http {
	driver, err := NewHttp(Options{RequestsPerSecond: 100}, &telemetry.MemoryAPI{})
	require.NoError(t, err)
	t.Cleanup(func() { driver.Close() })
	return driver
}

func rejectLogin(landed string) error {
	if strings.HasSuffix(landed, "/sv") {
		return errLoginPage
	}
	return nil
}

func TestHttpLoadWithSession(t *testing.T) {
	server := newPortalServer(t)
	driver := newTestHttp(t)
	ctx := context.Background()

	require.NoError(t, driver.SetCookies(ctx, []session.Cookie{
		{Name: "laravel_session", Value: "valid", Domain: "127.0.0.1", Path: "/"},
	}))

	page, err := Load(ctx, driver, server.URL+"/sv/hoso", "div.profile-usertitle", time.Second, rejectLogin)
	require.NoError(t, err)
	require.Equal(t, server.URL+"/sv/hoso", page.URL)

	doc, err := page.Document()
	require.NoError(t, err)
	require.Equal(t, 1, doc.Find("div.profile-usertitle").Length())

	cookies, err := driver.Cookies(ctx)
	require.NoError(t, err)
	require.Len(t, cookies, 1)
	require.Equal(t, "valid", cookies[0].Value)
	require.Equal(t, "127.0.0.1", cookies[0].Domain)
}

func TestHttpLoadExpiredSession(t *testing.T) {
	server := newPortalServer(t)
	driver := newTestHttp(t)

	_, err := Load(context.Background(), driver, server.URL+"/sv/hoso", "div.profile-usertitle", time.Second, rejectLogin)
	require.ErrorIs(t, err, errLoginPage)

	var navErr NavigationError
	require.ErrorAs(t, err, &navErr)
	require.Equal(t, server.URL+"/sv/hoso", navErr.URL)
}

func TestHttpLoadFailures(t *testing.T) {
	server := newPortalServer(t)
	driver := newTestHttp(t)
	ctx := context.Background()

	_, err := Load(ctx, driver, server.URL+"/sv", "div.profile-usertitle", time.Second, nil)
	require.ErrorIs(t, err, ErrSelectorMissing)

	_, err = Load(ctx, driver, server.URL+"/broken", "body", time.Second, nil)
	var navErr NavigationError
	require.ErrorAs(t, err, &navErr)

	require.ErrorIs(t, driver.WaitForURL(ctx, func(string) bool { return true }), ErrInteractiveUnsupported)

	require.NoError(t, driver.Close())
	require.ErrorIs(t, driver.Open(ctx, server.URL+"/sv"), ErrClosed)
}

func TestNewFactory(t *testing.T) {
	tel := &telemetry.MemoryAPI{}

	for _, kind := range []string{"", "chromedp", "http", "HTTP"} {
		factory, err := NewFactory(kind, tel)
		require.NoError(t, err, kind)
		require.NotNil(t, factory, kind)
	}

	_, err := NewFactory("playwright", tel)
	require.Error(t, err)

	factory, err := NewFactory("http", tel)
	require.NoError(t, err)
	driver, err := factory(context.Background(), Options{})
	require.NoError(t, err)
	require.IsType(t, &Http{}, driver)
}
