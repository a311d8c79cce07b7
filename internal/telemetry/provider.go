package telemetry

import (
	"context"
	"fmt"
	"sort"

	"mcpbridge/internal/supervisor"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
	"go.opentelemetry.io/otel/sdk/resource"
)

// InstrumentationName is the meter and tracer scope.
const InstrumentationName = "mcpbridge"

// Provider owns the in-process meter provider. Metrics are pulled on demand
// through a manual reader, and spans go to the global tracer provider, which
// is a no-op unless the embedding program installs one.
type Provider struct {
	reader        *sdkmetric.ManualReader
	meterProvider *sdkmetric.MeterProvider
	observer      *Observer
}

// NewProvider creates the meter provider and the supervisor observer.
func NewProvider(version string) (*Provider, error) {
	res := resource.NewSchemaless(
		attribute.String("service.name", "mcpbridge"),
		attribute.String("service.version", version),
	)
	reader := sdkmetric.NewManualReader()
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithReader(reader),
		sdkmetric.WithResource(res),
	)

	observer, err := NewObserver(mp.Meter(InstrumentationName), otel.Tracer(InstrumentationName))
	if err != nil {
		_ = mp.Shutdown(context.Background())
		return nil, fmt.Errorf("failed to create metric instruments: %w", err)
	}
	return &Provider{reader: reader, meterProvider: mp, observer: observer}, nil
}

// Observer returns the supervisor observer backed by this provider.
func (p *Provider) Observer() supervisor.Observer {
	return p.observer
}

// Shutdown flushes and releases the meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	return p.meterProvider.Shutdown(ctx)
}

// Point is one aggregated series of a metric.
type Point struct {
	Attributes map[string]string `json:"attributes"`
	// Value is the counter total. For histograms it is the sum of samples.
	Value float64 `json:"value"`
	// Count is the number of histogram samples; zero for counters.
	Count uint64 `json:"count,omitempty"`
}

// Metric is a JSON-friendly view of one collected instrument.
type Metric struct {
	Name        string  `json:"name"`
	Description string  `json:"description"`
	Unit        string  `json:"unit,omitempty"`
	Points      []Point `json:"points"`
}

// Snapshot collects the current value of every instrument, sorted by name.
func (p *Provider) Snapshot(ctx context.Context) ([]Metric, error) {
	var rm metricdata.ResourceMetrics
	if err := p.reader.Collect(ctx, &rm); err != nil {
		return nil, fmt.Errorf("failed to collect metrics: %w", err)
	}
	return flatten(&rm), nil
}

func flatten(rm *metricdata.ResourceMetrics) []Metric {
	var out []Metric
	for _, scope := range rm.ScopeMetrics {
		for _, m := range scope.Metrics {
			entry := Metric{Name: m.Name, Description: m.Description, Unit: m.Unit, Points: []Point{}}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				for _, dp := range data.DataPoints {
					entry.Points = append(entry.Points, Point{Attributes: attrMap(dp.Attributes), Value: float64(dp.Value)})
				}
			case metricdata.Sum[float64]:
				for _, dp := range data.DataPoints {
					entry.Points = append(entry.Points, Point{Attributes: attrMap(dp.Attributes), Value: dp.Value})
				}
			case metricdata.Histogram[float64]:
				for _, dp := range data.DataPoints {
					entry.Points = append(entry.Points, Point{Attributes: attrMap(dp.Attributes), Value: dp.Sum, Count: dp.Count})
				}
			default:
				continue
			}
			out = append(out, entry)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

func attrMap(set attribute.Set) map[string]string {
	m := make(map[string]string, set.Len())
	iter := set.Iter()
	for iter.Next() {
		kv := iter.Attribute()
		m[string(kv.Key)] = kv.Value.Emit()
	}
	return m
}
