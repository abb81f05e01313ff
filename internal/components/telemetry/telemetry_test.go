package telemetry

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestScopedAPI(t *testing.T) {
	mem := &MemoryAPI{}
	tel := NewScopedAPI("scraper", mem)
	tel.ReportBroken("navigate-grades", "timeout")
	tel.ReportWarning("extract-progress")
	tel.ReportCount("pages", 3)
	tel.ReportDebug("loaded page")

	require.Equal(t, "scraper: navigate-grades", mem.Reports("broken")[0].ID)
	require.Equal(t, []any{"timeout"}, mem.Reports("broken")[0].Params)
	require.Equal(t, "scraper: extract-progress", mem.Reports("warning")[0].ID)
	require.Equal(t, int64(3), mem.Reports("count")[0].Count)
	require.Len(t, mem.Reports(""), 4)
}

func TestInstrumentResty(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/missing" {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	mem := &MemoryAPI{}
	client := resty.New()
	InstrumentResty(client, mem)

	_, err := client.R().Get(server.URL + "/ok")
	require.NoError(t, err)
	require.Empty(t, mem.Reports("warning"))

	_, err = client.R().Get(server.URL + "/missing")
	require.NoError(t, err)
	warnings := mem.Reports("warning")
	require.Len(t, warnings, 1)
	require.Equal(t, report_resty_status, warnings[0].ID)
}

func TestPerfStats(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))

	gauges, err := newPerfGauges(provider)
	require.NoError(t, err)
	gauges.record(context.Background(), &MemoryAPI{}, 10*time.Millisecond)

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	names := map[string]bool{}
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			names[m.Name] = true
		}
	}
	require.True(t, names["allocated_mb"])
	require.True(t, names["goroutine_count"])
}

func TestSetupOtelUnconfigured(t *testing.T) {
	otel, err := SetupOtel(context.Background(), "vkusync-test", Config{})
	require.NoError(t, err)
	require.Nil(t, otel.TracerProvider)
	require.Nil(t, otel.MeterProvider)
	require.NoError(t, otel.Shutdown(context.Background()))
}
