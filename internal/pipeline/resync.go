package pipeline

import (
	"context"
	"fmt"
	"vkusync-backend/internal/components/assert"
	"vkusync-backend/internal/components/chrono"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/internal/scraper"
	"vkusync-backend/internal/session"
)

const (
	report_resync_owners = "resync-owners"
	report_resync_owner  = "resync-owner"
	report_resync_notify = "resync-notify"
)

type OwnerLister interface {
	TokenOwners(ctx context.Context) ([]string, error)
}

// Notifier is told about every owner whose scheduled sync failed.
type Notifier interface {
	SyncFailed(ctx context.Context, owner, message string) error
}

type ResyncSummary struct {
	Owners  int
	Synced  int
	Skipped int
	Failed  int
}

// Resync re-syncs every owner that has a saved session, headless. Owners without a session
// are skipped since nobody is around to log in.
type Resync struct {
	pipeline Pipeline
	owners   OwnerLister
	sessions session.Store
	notifier Notifier
	tel      telemetry.API
}

func NewResync(p Pipeline, owners OwnerLister, sessions session.Store, notifier Notifier, tel telemetry.API) Resync {
	assert.NotNil(owners, "owners")
	assert.NotNil(tel, "tel")
	return Resync{
		pipeline: p,
		owners:   owners,
		sessions: sessions,
		notifier: notifier,
		tel:      telemetry.NewScopedAPI("resync", tel),
	}
}

func (r Resync) RunOnce(ctx context.Context) (ResyncSummary, error) {
	owners, err := r.owners.TokenOwners(ctx)
	if err != nil {
		r.tel.ReportBroken(report_resync_owners, err)
		return ResyncSummary{}, fmt.Errorf("list owners: %w", err)
	}

	summary := ResyncSummary{Owners: len(owners)}
	for _, owner := range owners {
		if ctx.Err() != nil {
			return summary, ctx.Err()
		}

		path := r.sessions.PathFor(owner)
		if !r.sessions.Stat(path).Exists {
			summary.Skipped++
			continue
		}

		outcome := r.pipeline.ScrapeAndSync(ctx, owner, scraper.Options{
			Headless:    true,
			SessionPath: path,
		})
		if outcome.Success {
			summary.Synced++
			continue
		}

		summary.Failed++
		r.tel.ReportWarning(report_resync_owner, owner, outcome.Message)
		if r.notifier == nil {
			continue
		}
		err := r.notifier.SyncFailed(ctx, owner, outcome.Message)
		if err != nil {
			r.tel.ReportWarning(report_resync_notify, owner, err)
		}
	}

	r.tel.ReportCount("synced", int64(summary.Synced))
	r.tel.ReportCount("failed", int64(summary.Failed))
	return summary, nil
}

// Schedule runs RunOnce on the cron spec until ctx is done.
func (r Resync) Schedule(ctx context.Context, cron chrono.CronAPI, spec string) error {
	return cron.Cron(spec, func() {
		if ctx.Err() != nil {
			return
		}
		r.RunOnce(ctx)
	})
}
