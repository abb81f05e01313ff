package browser

import (
	"context"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/session"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/storage"
	"github.com/chromedp/chromedp"
)

const report_chromedp = "chromedp"

// Chromedp is a Driver backed by a chrome instance started through chromedp.
type Chromedp struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	tel         telemetry.API
}

// NewChromedp starts a chrome process, it is stopped by Close.
func NewChromedp(ctx context.Context, opts Options, tel telemetry.API) (*Chromedp, error) {
	tel = telemetry.NewScopedAPI("browser", tel)

	userAgent := opts.UserAgent
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}

	allocOpts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	allocOpts = append(allocOpts,
		chromedp.Flag("headless", opts.Headless),
		chromedp.DisableGPU,
		chromedp.NoSandbox,
		chromedp.WindowSize(1280, 900),
		chromedp.UserAgent(userAgent),
	)
	if opts.ExecPath != "" {
		allocOpts = append(allocOpts, chromedp.ExecPath(opts.ExecPath))
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancel := chromedp.NewContext(
		allocCtx,
		chromedp.WithLogf(func(format string, args ...any) {
			tel.ReportDebug(report_chromedp, format, args)
		}),
	)

	// the first Run starts the browser
	err := chromedp.Run(browserCtx)
	if err != nil {
		cancel()
		allocCancel()
		return nil, err
	}

	return &Chromedp{
		ctx:         browserCtx,
		cancel:      cancel,
		allocCancel: allocCancel,
		tel:         tel,
	}, nil
}

// run executes actions on the browser context while honoring the cancellation and
// deadline of the caller's ctx.
func (c *Chromedp) run(ctx context.Context, actions ...chromedp.Action) error {
	if c.ctx.Err() != nil {
		return ErrClosed
	}
	runCtx, cancel := context.WithCancel(c.ctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()

	err := chromedp.Run(runCtx, actions...)
	if ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (c *Chromedp) SetCookies(ctx context.Context, cookies []session.Cookie) error {
	params := session.ToCookieParams(cookies)
	return c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		return network.SetCookies(params).Do(ctx)
	}))
}

func (c *Chromedp) Cookies(ctx context.Context) ([]session.Cookie, error) {
	var cookies []*network.Cookie
	err := c.run(ctx, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		cookies, err = storage.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, err
	}
	return session.FromNetworkCookies(cookies), nil
}

func (c *Chromedp) Open(ctx context.Context, url string) error {
	return c.run(ctx, chromedp.Navigate(url))
}

func (c *Chromedp) URL(ctx context.Context) (string, error) {
	var location string
	err := c.run(ctx, chromedp.Location(&location))
	return location, err
}

func (c *Chromedp) WaitFor(ctx context.Context, selector string) error {
	return c.run(ctx, chromedp.WaitReady(selector, chromedp.ByQuery))
}

func (c *Chromedp) HTML(ctx context.Context) (string, error) {
	var html string
	err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

// WaitForURL polls the current location until match accepts it.
func (c *Chromedp) WaitForURL(ctx context.Context, match func(string) bool) error {
	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()

	for {
		location, err := c.URL(ctx)
		if err == nil && match(location) {
			return nil
		}
		if err != nil {
			c.tel.ReportDebug("wait for url", err)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (c *Chromedp) Close() error {
	if c.ctx.Err() != nil {
		return nil
	}
	// cancelling the browser context closes the tab and browser gracefully, the
	// allocator cancel then kills the process if it is still around.
	err := chromedp.Cancel(c.ctx)
	c.cancel()
	c.allocCancel()
	return err
}
