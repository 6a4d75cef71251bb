package telemetry

import (
	"context"
	"sync"

	"go.opentelemetry.io/otel/attribute"
	otelmetric "go.opentelemetry.io/otel/metric"
)

// MeteredAPI forwards every report to inner and mirrors counts and breakages as otel metrics.
type MeteredAPI struct {
	inner  API
	meter  otelmetric.Meter
	broken otelmetric.Int64Counter
	warned otelmetric.Int64Counter

	mutex  sync.Mutex
	gauges map[string]otelmetric.Int64Gauge
}

func NewMeteredAPI(inner API, meter otelmetric.Meter) (*MeteredAPI, error) {
	broken, err := meter.Int64Counter("reports.broken")
	if err != nil {
		return nil, err
	}
	warned, err := meter.Int64Counter("reports.warning")
	if err != nil {
		return nil, err
	}
	return &MeteredAPI{
		inner:  inner,
		meter:  meter,
		broken: broken,
		warned: warned,
		gauges: map[string]otelmetric.Int64Gauge{},
	}, nil
}

func (m *MeteredAPI) ReportBroken(id string, params ...any) {
	m.broken.Add(context.Background(), 1, otelmetric.WithAttributes(attribute.String("id", id)))
	m.inner.ReportBroken(id, params...)
}

func (m *MeteredAPI) ReportWarning(id string, params ...any) {
	m.warned.Add(context.Background(), 1, otelmetric.WithAttributes(attribute.String("id", id)))
	m.inner.ReportWarning(id, params...)
}

func (m *MeteredAPI) ReportDebug(msg string, params ...any) {
	m.inner.ReportDebug(msg, params...)
}

func (m *MeteredAPI) ReportCount(id string, count int64) {
	gauge, err := m.gauge(id)
	if err == nil {
		gauge.Record(context.Background(), count)
	}
	m.inner.ReportCount(id, count)
}

func (m *MeteredAPI) gauge(id string) (otelmetric.Int64Gauge, error) {
	m.mutex.Lock()
	defer m.mutex.Unlock()

	gauge, ok := m.gauges[id]
	if ok {
		return gauge, nil
	}
	gauge, err := m.meter.Int64Gauge(id)
	if err != nil {
		return nil, err
	}
	m.gauges[id] = gauge
	return gauge, nil
}
