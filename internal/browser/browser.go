// Package browser drives the page loads of a scrape run, either through a real headless
// chrome (chromedp) or through plain http requests for server-rendered pages.
package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/session"

	"github.com/PuerkitoBio/goquery"
)

var (
	ErrInteractiveUnsupported = errors.New("driver does not support interactive login")
	ErrSelectorMissing        = errors.New("selector not found")
	ErrClosed                 = errors.New("driver is closed")
	// ErrSessionExpired means the portal redirected a page load back to its login page.
	ErrSessionExpired = errors.New("session expired")
)

// Driver is one browser context. Navigation is sequential, a Driver must not be shared
// between concurrent scrape runs.
//
// note: fault injection point
type Driver interface {
	session.LoginBrowser

	// URL returns the url of the current page, after redirects.
	URL(ctx context.Context) (string, error)
	// WaitFor blocks until an element matching the css selector is present on the current page.
	WaitFor(ctx context.Context, selector string) error
	// HTML returns the outer html of the current page.
	HTML(ctx context.Context) (string, error)
	Close() error
}

// Options configure a new Driver.
type Options struct {
	Headless bool
	// ExecPath overrides the chrome executable chromedp looks for.
	ExecPath  string
	UserAgent string
	// AllowedHosts restricts redirects of the http driver, empty allows any host.
	AllowedHosts     []string
	CloudflareBypass bool
	// RequestsPerSecond limits the http driver, 0 means 2.
	RequestsPerSecond float64
	Timeout           time.Duration
	// DumpDir makes the http driver write every exchange with the portal into the directory.
	DumpDir string
}

const DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/123.0.0.0 Safari/537.36"

// Factory opens a new Driver for one scrape run.
type Factory func(ctx context.Context, opts Options) (Driver, error)

// NewFactory returns the Factory for a driver kind, "chromedp" (default) or "http".
func NewFactory(kind string, tel telemetry.API) (Factory, error) {
	switch strings.ToLower(kind) {
	case "", "chromedp", "chrome":
		return func(ctx context.Context, opts Options) (Driver, error) {
			return NewChromedp(ctx, opts, tel)
		}, nil
	case "http":
		return func(ctx context.Context, opts Options) (Driver, error) {
			return NewHttp(opts, tel)
		}, nil
	}
	return nil, fmt.Errorf("unknown browser driver %q", kind)
}

// NavigationError is a page that failed to load or never showed the element the caller
// waited for.
type NavigationError struct {
	URL string
	Err error
}

func (e NavigationError) Error() string {
	return fmt.Sprintf("navigate %s: %s", e.URL, e.Err)
}

func (e NavigationError) Unwrap() error {
	return e.Err
}

// Page is a loaded page.
type Page struct {
	URL  string
	HTML string
}

func (p Page) Document() (*goquery.Document, error) {
	return goquery.NewDocumentFromReader(strings.NewReader(p.HTML))
}

// Load opens url, rejects the page if reject returns an error for the url it landed on,
// waits for the selector with the given timeout and returns the page. All failures are
// NavigationErrors.
func Load(ctx context.Context, d Driver, url, selector string, timeout time.Duration, reject func(landed string) error) (Page, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	fail := func(err error) (Page, error) {
		return Page{}, NavigationError{URL: url, Err: err}
	}

	err := d.Open(ctx, url)
	if err != nil {
		return fail(err)
	}
	landed, err := d.URL(ctx)
	if err != nil {
		return fail(err)
	}
	if reject != nil {
		err = reject(landed)
		if err != nil {
			return fail(err)
		}
	}
	err = d.WaitFor(ctx, selector)
	if err != nil {
		return fail(err)
	}
	html, err := d.HTML(ctx)
	if err != nil {
		return fail(err)
	}
	return Page{URL: landed, HTML: html}, nil
}
