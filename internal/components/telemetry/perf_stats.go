package telemetry

import (
	"context"
	"runtime"
	"time"

	"github.com/shirou/gopsutil/v4/cpu"
	"go.opentelemetry.io/otel/metric"
)

const report_perf_stats = "perf-stats"

type perfGauges struct {
	cpu        metric.Float64Gauge
	memory     metric.Int64Gauge
	goroutines metric.Int64Gauge
}

func newPerfGauges(provider metric.MeterProvider) (perfGauges, error) {
	meter := provider.Meter("vkusync.perf_stats")
	cpuGauge, err := meter.Float64Gauge("cpu_usage", metric.WithUnit("%"))
	if err != nil {
		return perfGauges{}, err
	}
	memoryGauge, err := meter.Int64Gauge("allocated_mb", metric.WithUnit("MB"))
	if err != nil {
		return perfGauges{}, err
	}
	goroutineGauge, err := meter.Int64Gauge("goroutine_count")
	if err != nil {
		return perfGauges{}, err
	}
	return perfGauges{cpu: cpuGauge, memory: memoryGauge, goroutines: goroutineGauge}, nil
}

func (g perfGauges) record(ctx context.Context, tel API, sample time.Duration) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	cpuUsage, err := cpu.PercentWithContext(ctx, sample, false)
	if err == nil && len(cpuUsage) > 0 {
		g.cpu.Record(ctx, cpuUsage[0])
	} else if err != nil {
		tel.ReportWarning(report_perf_stats, err)
	}

	g.memory.Record(ctx, int64(memStats.Alloc/1_000_000))
	g.goroutines.Record(ctx, int64(runtime.NumGoroutine()))
}

// InstrumentPerfStats records process cpu, memory and goroutine gauges every interval until
// ctx is done.
func InstrumentPerfStats(ctx context.Context, provider metric.MeterProvider, interval time.Duration, tel API) error {
	gauges, err := newPerfGauges(provider)
	if err != nil {
		return err
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				gauges.record(ctx, tel, time.Second)
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}
