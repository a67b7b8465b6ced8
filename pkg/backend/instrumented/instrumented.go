// Package instrumented decorates a settings backend with Prometheus metrics
// and OpenTelemetry spans.
package instrumented

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	settings "github.com/goliatone/go-settings"
)

const tracerName = "github.com/goliatone/go-settings/backend"

// Metrics groups the collectors recorded per backend call.
type Metrics struct {
	Operations *prometheus.CounterVec
	Errors     *prometheus.CounterVec
	Duration   *prometheus.HistogramVec
}

// NewMetrics registers the collectors on reg. A nil reg uses the default
// registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &Metrics{
		Operations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settings",
			Subsystem: "backend",
			Name:      "operations_total",
			Help:      "Backend calls by operation.",
		}, []string{"backend", "operation"}),
		Errors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "settings",
			Subsystem: "backend",
			Name:      "errors_total",
			Help:      "Failed backend calls by operation.",
		}, []string{"backend", "operation"}),
		Duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "settings",
			Subsystem: "backend",
			Name:      "operation_duration_seconds",
			Help:      "Backend call latency.",
			Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 8),
		}, []string{"backend", "operation"}),
	}
}

// Backend forwards every call to the wrapped backend and reports its
// capabilities unchanged.
type Backend struct {
	inner   settings.Backend
	name    string
	metrics *Metrics
	tracer  trace.Tracer
}

// Option configures the decorator.
type Option func(*Backend)

// WithTracer overrides the tracer taken from the global provider.
func WithTracer(tracer trace.Tracer) Option {
	return func(b *Backend) {
		b.tracer = tracer
	}
}

var (
	_ settings.Backend            = (*Backend)(nil)
	_ settings.CapabilityReporter = (*Backend)(nil)
)

// Wrap decorates inner. name labels metrics and spans.
func Wrap(inner settings.Backend, name string, metrics *Metrics, opts ...Option) *Backend {
	b := &Backend{
		inner:   inner,
		name:    name,
		metrics: metrics,
		tracer:  otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(b)
		}
	}
	return b
}

// Unwrap returns the decorated backend.
func (b *Backend) Unwrap() settings.Backend {
	return b.inner
}

func (b *Backend) Capabilities() settings.Capabilities {
	return settings.CapabilitiesOf(b.inner)
}

func (b *Backend) Open(ctx context.Context) (h settings.Handle, err error) {
	ctx, done := b.observe(ctx, "open")
	defer func() { done(err) }()
	return b.inner.Open(ctx)
}

func (b *Backend) Close(ctx context.Context, h settings.Handle) (err error) {
	ctx, done := b.observe(ctx, "close")
	defer func() { done(err) }()
	return b.inner.Close(ctx, h)
}

func (b *Backend) GetValue(ctx context.Context, h settings.Handle, name string, version settings.Version) (value string, ok bool, err error) {
	ctx, done := b.observe(ctx, "get",
		attribute.String("settings.name", name),
		attribute.String("settings.version", version.String()),
	)
	defer func() { done(err) }()
	return b.inner.GetValue(ctx, h, name, version)
}

func (b *Backend) SetValue(ctx context.Context, h settings.Handle, name string, version settings.Version, value string) (err error) {
	ctx, done := b.observe(ctx, "set",
		attribute.String("settings.name", name),
		attribute.String("settings.version", version.String()),
	)
	defer func() { done(err) }()
	return b.inner.SetValue(ctx, h, name, version, value)
}

func (b *Backend) ListVersions(ctx context.Context, h settings.Handle) (versions []settings.Version, err error) {
	ctx, done := b.observe(ctx, "list")
	defer func() { done(err) }()
	return b.inner.ListVersions(ctx, h)
}

func (b *Backend) DeleteForVersion(ctx context.Context, h settings.Handle, version settings.Version) (err error) {
	ctx, done := b.observe(ctx, "delete",
		attribute.String("settings.version", version.String()),
	)
	defer func() { done(err) }()
	return b.inner.DeleteForVersion(ctx, h, version)
}

func (b *Backend) observe(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	attrs = append(attrs, attribute.String("settings.backend", b.name))
	ctx, span := b.tracer.Start(ctx, "settings.backend."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if b.metrics != nil {
			b.metrics.Operations.WithLabelValues(b.name, op).Inc()
			b.metrics.Duration.WithLabelValues(b.name, op).Observe(time.Since(start).Seconds())
			if err != nil {
				b.metrics.Errors.WithLabelValues(b.name, op).Inc()
			}
		}
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, op+" failed")
		}
		span.End()
	}
}
