package browser

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"time"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/session"

	cloudflarebp "github.com/DaRealFreak/cloudflare-bp-go"
	"github.com/PuerkitoBio/goquery"
	"github.com/go-resty/resty/v2"
	"golang.org/x/time/rate"
)

// Http is a Driver that loads pages with plain GET requests. It works for the portal
// because every page it reads is rendered on the server, but it cannot host an
// interactive login.
type Http struct {
	client *resty.Client
	jar    *cookiejar.Jar
	tel    telemetry.API

	mutex   sync.Mutex
	hosts   map[string]struct{}
	current string
	body    string
	closed  bool
}

func NewHttp(opts Options, tel telemetry.API) (*Http, error) {
	assert.NotNil(tel, "tel")
	tel = telemetry.NewScopedAPI("browser_http", tel)

	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	client := resty.New()
	client.SetCookieJar(jar)
	if opts.CloudflareBypass {
		client.GetClient().Transport = cloudflarebp.AddCloudFlareByPass(client.GetClient().Transport)
	}
	client.SetHeader("user-agent", userAgent)
	if len(opts.AllowedHosts) > 0 {
		client.SetRedirectPolicy(resty.DomainCheckRedirectPolicy(opts.AllowedHosts...))
	}
	client.SetTimeout(timeout)

	limit := opts.RequestsPerSecond
	if limit <= 0 {
		limit = 2
	}
	rateLimiter := rate.NewLimiter(rate.Limit(limit), 2)
	client.OnBeforeRequest(func(_ *resty.Client, req *resty.Request) error {
		return rateLimiter.Wait(req.Context())
	})

	telemetry.InstrumentResty(client, tel)
	if opts.DumpDir != "" {
		dump, err := telemetry.NewRestyDump(opts.DumpDir, tel)
		if err != nil {
			return nil, err
		}
		telemetry.DumpResty(client, dump)
	}

	return &Http{
		client: client,
		jar:    jar,
		tel:    tel,
		hosts:  map[string]struct{}{},
	}, nil
}

func cookieUrl(domain, path string, secure bool) *url.URL {
	scheme := "http"
	if secure {
		scheme = "https"
	}
	if path == "" {
		path = "/"
	}
	return &url.URL{Scheme: scheme, Host: strings.TrimPrefix(domain, "."), Path: path}
}

func (h *Http) SetCookies(_ context.Context, cookies []session.Cookie) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return ErrClosed
	}

	for i, cookie := range session.ToHttpCookies(cookies) {
		if cookie.Domain == "" {
			return fmt.Errorf("cookie %q has no domain", cookie.Name)
		}
		h.jar.SetCookies(cookieUrl(cookie.Domain, cookie.Path, cookies[i].Secure), []*http.Cookie{cookie})
		h.hosts[cookie.Domain] = struct{}{}
	}
	return nil
}

// Cookies returns what the jar would send to each host this driver has seen. The jar does
// not keep cookie attributes, so the domain is the host and the path is "/".
func (h *Http) Cookies(_ context.Context) ([]session.Cookie, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return nil, ErrClosed
	}

	var out []session.Cookie
	seen := map[string]struct{}{}
	for host := range h.hosts {
		for _, cookie := range h.jar.Cookies(cookieUrl(host, "/", true)) {
			key := host + "\x00" + cookie.Name
			if _, ok := seen[key]; ok {
				continue
			}
			seen[key] = struct{}{}
			out = append(out, session.Cookie{
				Name:    cookie.Name,
				Value:   cookie.Value,
				Domain:  host,
				Path:    "/",
				Expires: -1,
			})
		}
	}
	return out, nil
}

func (h *Http) Open(ctx context.Context, rawUrl string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	if h.closed {
		return ErrClosed
	}

	res, err := h.client.R().
		SetContext(ctx).
		Get(rawUrl)
	if err != nil {
		return err
	}
	if res.IsError() {
		return fmt.Errorf("unexpected status %s", res.Status())
	}

	h.current = rawUrl
	if res.RawResponse != nil && res.RawResponse.Request != nil {
		h.current = res.RawResponse.Request.URL.String()
		h.hosts[res.RawResponse.Request.URL.Hostname()] = struct{}{}
	}
	h.body = string(res.Body())
	return nil
}

func (h *Http) URL(context.Context) (string, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.current, nil
}

// WaitFor checks the selector against the page that was already fetched, there is no
// script that could add it later.
func (h *Http) WaitFor(_ context.Context, selector string) error {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(h.body))
	if err != nil {
		return err
	}
	if doc.Find(selector).Length() == 0 {
		return fmt.Errorf("%w: %s", ErrSelectorMissing, selector)
	}
	return nil
}

func (h *Http) HTML(context.Context) (string, error) {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	return h.body, nil
}

func (h *Http) WaitForURL(context.Context, func(string) bool) error {
	return ErrInteractiveUnsupported
}

func (h *Http) Close() error {
	h.mutex.Lock()
	defer h.mutex.Unlock()
	h.closed = true
	h.body = ""
	return nil
}
