package main

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"
	"vkusync-backend/internal/components/telemetry"
	"vkusync-backend/pkg/configutil"
	"vkusync-backend/pkg/serviceutil"

	"go.opentelemetry.io/otel"
)

func InitTelemetry(ctx context.Context, verbose bool) {
	telemetry.InitSlog(verbose)

	if verbose {
		slog.DebugContext(ctx, "verbose logging enabled")
	}

	cfg, err := configutil.ReadConfig[telemetry.Config]("telemetry.json5")
	if errors.Is(err, os.ErrNotExist) {
		slog.InfoContext(ctx, "no telemetry.json5, otlp export disabled")
	} else if err != nil {
		serviceutil.Fatal("read telemetry config", err)
	}

	providers, err := telemetry.SetupOtel(ctx, "vkusync-server", cfg)
	if err != nil {
		serviceutil.Fatal("setup telemetry", err)
	}
	go func() {
		<-ctx.Done()
		err := providers.Shutdown(context.Background())
		if err != nil {
			slog.Error("shutdown telemetry", "err", err)
		}
	}()

	err = telemetry.InstrumentPerfStats(ctx, otel.GetMeterProvider(), 15*time.Second, telemetry.SlogAPI{})
	if err != nil {
		slog.WarnContext(ctx, "instrument perf stats", "err", err)
	}
}
