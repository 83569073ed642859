package meshsandbox

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const (
	instrumentationName = "github.com/rbaliyan/meshsandbox"
)

// Instrumented operations.
const (
	opSend        = "send"
	opAccept      = "accept"
	opAcknowledge = "acknowledge"
	opChunk       = "chunk"
	opList        = "list"
)

// opMetrics holds the instruments of one operation.
type opMetrics struct {
	latency metric.Float64Histogram
	count   metric.Int64Counter
	errors  metric.Int64Counter
}

// otelInstrumentation holds OpenTelemetry instrumentation for the engine.
type otelInstrumentation struct {
	enabled bool

	// Tracing
	tracingEnabled bool
	tracer         trace.Tracer

	// Metrics
	metricsEnabled bool
	ops            map[string]*opMetrics
	hookFailures   metric.Int64Counter
}

// newOtelInstrumentation resolves providers and builds the instruments the
// options ask for.
func newOtelInstrumentation(opts *options) (*otelInstrumentation, error) {
	o := &otelInstrumentation{
		enabled:        opts.tracingEnabled || opts.metricsEnabled,
		tracingEnabled: opts.tracingEnabled,
		metricsEnabled: opts.metricsEnabled,
	}

	if !o.enabled {
		return o, nil
	}

	if opts.tracingEnabled {
		tp := opts.tracerProvider
		if tp == nil {
			tp = otel.GetTracerProvider()
		}
		o.tracer = tp.Tracer(instrumentationName)
	}

	if opts.metricsEnabled {
		mp := opts.meterProvider
		if mp == nil {
			mp = otel.GetMeterProvider()
		}
		if err := o.initMetrics(mp); err != nil {
			return nil, err
		}
	}

	return o, nil
}

// initMetrics registers the engine counters and the latency histogram.
func (o *otelInstrumentation) initMetrics(mp metric.MeterProvider) error {
	meter := mp.Meter(instrumentationName)

	o.ops = make(map[string]*opMetrics)
	for _, op := range []string{opSend, opAccept, opAcknowledge, opChunk, opList} {
		m, err := newOpMetrics(meter, op)
		if err != nil {
			return err
		}
		o.ops[op] = m
	}

	var err error
	o.hookFailures, err = meter.Int64Counter(
		"meshsandbox.hook.failures",
		metric.WithDescription("Number of failed plugin hooks"),
	)
	return err
}

func newOpMetrics(meter metric.Meter, op string) (*opMetrics, error) {
	m := &opMetrics{}
	var err error

	m.latency, err = meter.Float64Histogram(
		"meshsandbox."+op+".duration",
		metric.WithDescription("Duration of "+op+" operations"),
		metric.WithUnit("s"),
	)
	if err != nil {
		return nil, err
	}

	m.count, err = meter.Int64Counter(
		"meshsandbox."+op+".count",
		metric.WithDescription("Number of "+op+" operations"),
	)
	if err != nil {
		return nil, err
	}

	m.errors, err = meter.Int64Counter(
		"meshsandbox."+op+".errors",
		metric.WithDescription("Number of "+op+" errors"),
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// startSpan opens an internal span; the returned func records err and ends it.
// The returned func ends the span, recording err when non-nil.
func (o *otelInstrumentation) startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	if !o.tracingEnabled || o.tracer == nil {
		return ctx, func(error) {}
	}
	ctx, span := o.tracer.Start(ctx, name,
		trace.WithAttributes(attrs...),
		trace.WithSpanKind(trace.SpanKindInternal),
	)
	return ctx, func(err error) {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		} else {
			span.SetStatus(codes.Ok, "")
		}
		span.End()
	}
}

// record records one operation.
func (o *otelInstrumentation) record(ctx context.Context, op string, duration time.Duration, err error, attrs ...attribute.KeyValue) {
	if !o.metricsEnabled {
		return
	}
	m, ok := o.ops[op]
	if !ok {
		return
	}

	set := metric.WithAttributes(attrs...)
	m.latency.Record(ctx, duration.Seconds(), set)
	m.count.Add(ctx, 1, set)
	if err != nil {
		m.errors.Add(ctx, 1, set)
	}
}

// recordHookFailure counts a failed hook dispatch.
func (o *otelInstrumentation) recordHookFailure(ctx context.Context, trigger Trigger) {
	if !o.metricsEnabled {
		return
	}
	o.hookFailures.Add(ctx, 1, metric.WithAttributes(attribute.String("trigger", string(trigger))))
}

// observe wraps fn with a span and the operation metrics.
func (o *otelInstrumentation) observe(ctx context.Context, op string, attrs []attribute.KeyValue, fn func(context.Context) error) error {
	if !o.enabled {
		return fn(ctx)
	}
	start := time.Now()
	ctx, end := o.startSpan(ctx, "meshsandbox."+op, attrs...)
	err := fn(ctx)
	end(err)
	o.record(ctx, op, time.Since(start), err, attrs...)
	return err
}
