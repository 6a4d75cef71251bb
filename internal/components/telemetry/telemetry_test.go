package telemetry

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

func TestScopedAPI(t *testing.T) {
	rec := &RecordingAPI{}
	scoped := NewScopedAPI("acquirer", rec)

	scoped.ReportBroken("open-dialog", "order-1")
	scoped.ReportWarning("extract-identifier")
	scoped.ReportCount("saved", 3)

	broken := rec.Reports(REPORT_BROKEN)
	require.Len(t, broken, 1)
	require.Equal(t, "acquirer.open-dialog", broken[0].ID)
	require.Equal(t, []any{"order-1"}, broken[0].Params)

	require.True(t, rec.Has(REPORT_WARNING, "extract-identifier"))
	require.False(t, rec.Has(REPORT_WARNING, "open-dialog"))

	counts := rec.Reports(REPORT_COUNT)
	require.Len(t, counts, 1)
	require.Equal(t, int64(3), counts[0].Count)
}

func TestSetupDisabled(t *testing.T) {
	tel, err := Setup(context.Background(), "test", OtlpConfig{})
	require.NoError(t, err)
	require.Nil(t, tel.TracerProvider)
	require.Nil(t, tel.MeterProvider)
	require.NoError(t, tel.Shutdown(context.Background()))
}

func TestMeteredAPI(t *testing.T) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	defer provider.Shutdown(context.Background())

	rec := &RecordingAPI{}
	metered, err := NewMeteredAPI(rec, provider.Meter("test"))
	require.NoError(t, err)

	metered.ReportBroken("acquirer.open-dialog", "order-1")
	metered.ReportBroken("acquirer.open-dialog", "order-2")
	metered.ReportCount("runner.saved", 7)
	NewScopedAPI("crawl", metered).ReportCount("runner.failed", 2)

	require.Len(t, rec.Reports(REPORT_BROKEN), 2)
	require.Len(t, rec.Reports(REPORT_COUNT), 2)

	var data metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &data))

	values := map[string]int64{}
	for _, scope := range data.ScopeMetrics {
		for _, m := range scope.Metrics {
			switch d := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, point := range d.DataPoints {
					values[m.Name] += point.Value
				}
			case metricdata.Gauge[int64]:
				for _, point := range d.DataPoints {
					values[m.Name] = point.Value
				}
			}
		}
	}
	require.Equal(t, int64(2), values["reports.broken"])
	require.Equal(t, int64(7), values["runner.saved"])
	require.Equal(t, int64(2), values["crawl.runner.failed"])
}
