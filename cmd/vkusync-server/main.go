package main

import (
	"flag"
	"log/slog"
	"vkusync-backend/internal/app"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/pkg/serviceutil"
)

func main() {
	verbose := flag.Bool("v", false, "Enable verbose logging/instrumentation.")
	configPath := flag.String("config", "config.json5", "Path to the configuration file.")
	initialSync := flag.Bool("sync", false, "Re-sync every owner with a saved session immediately on run.")
	flag.Parse()

	ctx := serviceutil.SignalContext()

	InitTelemetry(ctx, *verbose)

	cfg, err := app.ReadConfig(*configPath)
	if err != nil {
		serviceutil.Fatal("read config", err)
	}
	if *verbose && cfg.Browser.DumpDir == "" {
		cfg.Browser.DumpDir = ".dev/resty/portal"
	}

	vkusync, err := app.New(ctx, cfg, telemetry.SlogAPI{})
	if err != nil {
		serviceutil.Fatal("init app", err)
	}
	defer vkusync.Close()

	cron, err := vkusync.ScheduleResync(ctx)
	if err != nil {
		serviceutil.Fatal("schedule resync", err)
	}
	if cron != nil {
		defer cron.Stop()
		slog.InfoContext(ctx, "scheduled resync", "spec", cfg.Resync.Schedule)
	}

	if *initialSync {
		go func() {
			summary, err := vkusync.Resync().RunOnce(ctx)
			if err != nil {
				slog.ErrorContext(ctx, "initial resync", "err", err)
				return
			}
			slog.InfoContext(ctx, "initial resync done", "owners", summary.Owners, "synced", summary.Synced, "failed", summary.Failed)
		}()
	}

	go serviceutil.StartHttpServer(ctx, cfg.Server.Port, vkusync.Service().Handler())
	<-ctx.Done()
}
