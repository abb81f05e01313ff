// Package app builds the object graph shared by the server and the cli from a Config.
package app

import (
	"context"
	"fmt"
	"vkusync-backend/internal/browser"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/notify"
	"vkusync-backend/internal/pipeline"
	"vkusync-backend/internal/plugins"
	"vkusync-backend/internal/portal"
	"vkusync-backend/internal/recordsync"
	"vkusync-backend/internal/scraper"
	"vkusync-backend/internal/service"
	"vkusync-backend/internal/session"
	"vkusync-backend/internal/store"
	"vkusync-backend/internal/store/mongostore"
	"vkusync-backend/internal/store/sqlstore"
	"vkusync-backend/internal/validate"
)

// Records is a record store that also keeps the api tokens, both store backends are one.
type Records interface {
	store.Store
	store.TokenStore
}

type App struct {
	Config   Config
	Time     chrono.TimeAPI
	Records  Records
	Sessions session.Store
	Scraper  scraper.Scraper
	Pipeline pipeline.Pipeline
	Verifier service.TokenVerifier
	Registry *plugins.Registry
	Tel      telemetry.API
}

// OpenRecords opens the record store the config points at.
func OpenRecords(ctx context.Context, cfg StoreConfig, tel telemetry.API) (Records, error) {
	switch cfg.Kind {
	case StoreSqlite:
		return sqlstore.Open(cfg.Database, tel)
	case StoreMongo:
		records, err := mongostore.Open(ctx, cfg.MongoUri, cfg.MongoDatabase, tel)
		if err != nil {
			return nil, err
		}
		return records, nil
	}
	return nil, fmt.Errorf("unknown store kind %q", cfg.Kind)
}

// NewRegistry registers a webhook plugin for every configured webhook.
func NewRegistry(hooks []plugins.WebhookConfig, time chrono.TimeAPI, tel telemetry.API) (*plugins.Registry, error) {
	registry := plugins.NewRegistry(
		plugins.WithTelemetryAPI(tel),
		plugins.WithTimeAPI(time),
	)
	for _, hook := range hooks {
		err := registry.Register(plugins.NewWebhook(
			hook,
			plugins.WithWebhookTelemetryAPI(tel),
			plugins.WithWebhookTimeAPI(time),
		))
		if err != nil {
			return nil, err
		}
	}
	return registry, nil
}

// New opens the record store and wires everything on top of it. Close releases the store.
func New(ctx context.Context, cfg Config, tel telemetry.API) (App, error) {
	assert.NotNil(tel, "tel")

	pages, err := portal.NewPages(cfg.Portal.BaseUrl)
	if err != nil {
		return App{}, fmt.Errorf("portal base url: %w", err)
	}
	factory, err := browser.NewFactory(cfg.Browser.Driver, tel)
	if err != nil {
		return App{}, err
	}

	time := chrono.NewStandardTime()
	sessions := session.NewStore(
		cfg.Session.Dir,
		session.WithLoginTimeout(cfg.Session.LoginTimeout.Or(session.DefaultLoginTimeout)),
		session.WithTelemetryAPI(tel),
	)
	scrape := scraper.NewScraper(
		factory,
		sessions,
		pages,
		scraper.WithTelemetryAPI(tel),
		scraper.WithWaitTimeout(cfg.Browser.WaitTimeout.Or(scraper.DefaultWaitTimeout)),
		scraper.WithDriverOptions(browser.Options{
			ExecPath:          cfg.Browser.ExecPath,
			UserAgent:         cfg.Browser.UserAgent,
			AllowedHosts:      []string{pages.Base.Hostname()},
			CloudflareBypass:  cfg.Browser.CloudflareBypass,
			RequestsPerSecond: cfg.Browser.RequestsPerSecond,
			Timeout:           cfg.Browser.Timeout.Std(),
			DumpDir:           cfg.Browser.DumpDir,
		}),
	)

	registry, err := NewRegistry(cfg.Plugins.Webhooks, time, tel)
	if err != nil {
		return App{}, err
	}

	records, err := OpenRecords(ctx, cfg.Store, tel)
	if err != nil {
		return App{}, fmt.Errorf("open record store: %w", err)
	}

	manager := recordsync.NewManager(
		records,
		recordsync.WithTelemetryAPI(tel),
		recordsync.WithTimeAPI(time),
	)

	return App{
		Config:   cfg,
		Time:     time,
		Records:  records,
		Sessions: sessions,
		Scraper:  scrape,
		Pipeline: pipeline.New(scrape, validate.New(tel), manager, tel),
		Verifier: service.NewTokenVerifier(
			records,
			time,
			tel,
			service.WithTokenCacheTTL(cfg.Server.TokenCacheTTL.Std()),
		),
		Registry: registry,
		Tel:      tel,
	}, nil
}

func (a App) Service() service.Service {
	return service.NewService(
		a.Sessions,
		a.Scraper,
		a.Pipeline,
		a.Records,
		a.Registry,
		a.Verifier,
		service.Options{
			RequestsPerSecond: a.Config.Server.RequestsPerSecond,
			Burst:             a.Config.Server.Burst,
			Headless:          a.Config.Browser.Headless,
		},
		a.Tel,
	)
}

func (a App) Resync() pipeline.Resync {
	return pipeline.NewResync(
		a.Pipeline,
		a.Records,
		a.Sessions,
		notify.NewMailer(a.Config.Smtp, a.Time, a.Tel),
		a.Tel,
	)
}

// ScheduleResync starts the scheduled re-sync when one is configured, the returned CronAPI
// is nil otherwise.
func (a App) ScheduleResync(ctx context.Context) (chrono.CronAPI, error) {
	if a.Config.Resync.Schedule == "" {
		return nil, nil
	}
	cron := chrono.NewStandardCron(a.Tel)
	err := a.Resync().Schedule(ctx, cron, a.Config.Resync.Schedule)
	if err != nil {
		cron.Stop()
		return nil, err
	}
	return cron, nil
}

func (a App) Close() error {
	if a.Records == nil {
		return nil
	}
	return a.Records.Close()
}
