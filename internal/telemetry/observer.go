package telemetry

import (
	"context"
	"time"

	"mcpbridge/internal/supervisor"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// Metric names.
const (
	MetricStarts        = "mcpbridge.server.starts"
	MetricStops         = "mcpbridge.server.stops"
	MetricStartDuration = "mcpbridge.server.start.duration"
	MetricCalls         = "mcpbridge.tool.calls"
	MetricCallDuration  = "mcpbridge.tool.call.duration"
	MetricHealthChecks  = "mcpbridge.server.health.checks"
	MetricTransitions   = "mcpbridge.server.state.transitions"
)

// Observer records supervisor events into OpenTelemetry.
type Observer struct {
	tracer trace.Tracer

	starts        metric.Int64Counter
	stops         metric.Int64Counter
	startDuration metric.Float64Histogram
	calls         metric.Int64Counter
	callDuration  metric.Float64Histogram
	health        metric.Int64Counter
	transitions   metric.Int64Counter
}

// NewObserver creates an observer bound to meter and tracer. tracer may be
// nil, in which case no spans are emitted.
func NewObserver(meter metric.Meter, tracer trace.Tracer) (*Observer, error) {
	starts, err := meter.Int64Counter(MetricStarts,
		metric.WithDescription("Number of MCP server start attempts"))
	if err != nil {
		return nil, err
	}
	stops, err := meter.Int64Counter(MetricStops,
		metric.WithDescription("Number of MCP server runtimes torn down"))
	if err != nil {
		return nil, err
	}
	startDuration, err := meter.Float64Histogram(MetricStartDuration,
		metric.WithDescription("Time to spawn and initialize an MCP server"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	calls, err := meter.Int64Counter(MetricCalls,
		metric.WithDescription("Number of tool invocations"))
	if err != nil {
		return nil, err
	}
	callDuration, err := meter.Float64Histogram(MetricCallDuration,
		metric.WithDescription("Tool invocation latency"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	health, err := meter.Int64Counter(MetricHealthChecks,
		metric.WithDescription("Number of MCP server pings"))
	if err != nil {
		return nil, err
	}
	transitions, err := meter.Int64Counter(MetricTransitions,
		metric.WithDescription("Number of MCP server state and health transitions"))
	if err != nil {
		return nil, err
	}

	return &Observer{
		tracer:        tracer,
		starts:        starts,
		stops:         stops,
		startDuration: startDuration,
		calls:         calls,
		callDuration:  callDuration,
		health:        health,
		transitions:   transitions,
	}, nil
}

// ObserveStart records one start attempt.
func (o *Observer) ObserveStart(obs supervisor.StartObservation) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("server", obs.Server),
		attribute.String("transport", string(obs.Transport)),
		attribute.Bool("success", obs.Success),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrorKind)))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.starts.Add(ctx, 1, options)
	o.startDuration.Record(ctx, seconds(obs.Duration), options)
	o.span(ctx, "mcp.server.start", obs.Duration, obs.Success, string(obs.ErrorKind), attrs)
}

// ObserveStop records one teardown.
func (o *Observer) ObserveStop(obs supervisor.StopObservation) {
	if o == nil {
		return
	}
	o.stops.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("server", obs.Server),
		attribute.String("transport", string(obs.Transport)),
		attribute.String("reason", obs.Reason),
	))
}

// ObserveCall records one tool invocation.
func (o *Observer) ObserveCall(obs supervisor.CallObservation) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("server", obs.Server),
		attribute.String("tool", obs.Tool),
		attribute.String("transport", string(obs.Transport)),
		attribute.Bool("success", obs.Success),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrorKind)))
	}

	ctx := context.Background()
	options := metric.WithAttributes(attrs...)
	o.calls.Add(ctx, 1, options)
	o.callDuration.Record(ctx, seconds(obs.Duration), options)
	o.span(ctx, "mcp.tool.call", obs.Duration, obs.Success, string(obs.ErrorKind), attrs)
}

// ObserveHealth records one ping.
func (o *Observer) ObserveHealth(obs supervisor.HealthObservation) {
	if o == nil {
		return
	}
	attrs := []attribute.KeyValue{
		attribute.String("server", obs.Server),
		attribute.Bool("healthy", obs.Healthy),
	}
	if obs.ErrorKind != "" {
		attrs = append(attrs, attribute.String("error_kind", string(obs.ErrorKind)))
	}
	o.health.Add(context.Background(), 1, metric.WithAttributes(attrs...))
}

// ObserveState records one runtime state or health transition.
func (o *Observer) ObserveState(obs supervisor.StateObservation) {
	if o == nil {
		return
	}
	o.transitions.Add(context.Background(), 1, metric.WithAttributes(
		attribute.String("server", obs.Server),
		attribute.String("transport", string(obs.Transport)),
		attribute.String("from", string(obs.From)),
		attribute.String("to", string(obs.To)),
		attribute.String("health", string(obs.Health)),
	))
}

// span emits a span covering an operation that already finished.
func (o *Observer) span(ctx context.Context, name string, d time.Duration, ok bool, errKind string, attrs []attribute.KeyValue) {
	if o.tracer == nil {
		return
	}
	end := time.Now()
	_, span := o.tracer.Start(ctx, name,
		trace.WithTimestamp(end.Add(-d)),
		trace.WithAttributes(attrs...))
	if ok {
		span.SetStatus(codes.Ok, "")
	} else {
		span.SetStatus(codes.Error, errKind)
	}
	span.End(trace.WithTimestamp(end))
}

func seconds(d time.Duration) float64 {
	return float64(d) / float64(time.Second)
}

var _ supervisor.Observer = (*Observer)(nil)
