// Package telemetry wires the engine's event bus into OpenTelemetry metrics
// and tracing, exported via a Prometheus reader, grounded on the teacher's
// pkg/telemetry/telemetry.go.
package telemetry

import (
	"context"
	"fmt"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	semconv "go.opentelemetry.io/otel/semconv/v1.26.0"
	"go.opentelemetry.io/otel/trace"
)

const serviceName = "vectorflow-engine"

const (
	metricEdgeExecutions     = "edge.executions.total"
	metricEdgeDuration       = "edge.execution.duration"
	metricConnectorFanouts   = "edge.connector.fanouts.total"
	metricArtifactLoads      = "loader.artifact.loads.total"
	metricArtifactLoadFailed = "loader.artifact.loads.failed.total"
	metricArtifactLoadTime   = "loader.artifact.load.duration"
	metricHandlerErrors      = "handler.errors.total"
	metricWarnings           = "engine.warnings.total"
)

// Provider manages OpenTelemetry setup and exposes the instruments the
// event-bus Observer records against.
type Provider struct {
	meterProvider  *sdkmetric.MeterProvider
	tracerProvider trace.TracerProvider
	meter          metric.Meter
	tracer         trace.Tracer

	edgeExecutions     metric.Int64Counter
	edgeDuration       metric.Float64Histogram
	connectorFanouts   metric.Int64Counter
	artifactLoads      metric.Int64Counter
	artifactLoadFailed metric.Int64Counter
	artifactLoadTime   metric.Float64Histogram
	handlerErrors      metric.Int64Counter
	warnings           metric.Int64Counter

	mu sync.RWMutex
}

// Config holds telemetry configuration.
type Config struct {
	ServiceName    string
	ServiceVersion string
	Environment    string
	EnableTracing  bool
	EnableMetrics  bool
}

// DefaultConfig returns default telemetry configuration.
func DefaultConfig() Config {
	return Config{
		ServiceName:    serviceName,
		ServiceVersion: "0.1.0",
		Environment:    "development",
		EnableTracing:  true,
		EnableMetrics:  true,
	}
}

// NewProvider creates a telemetry Provider backed by a Prometheus metrics
// exporter and the global OpenTelemetry tracer provider.
func NewProvider(ctx context.Context, cfg Config) (*Provider, error) {
	p := &Provider{}

	res, err := resource.New(ctx,
		resource.WithAttributes(
			semconv.ServiceName(cfg.ServiceName),
			semconv.ServiceVersion(cfg.ServiceVersion),
			attribute.String("environment", cfg.Environment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("vectorflow/telemetry: build resource: %w", err)
	}

	if cfg.EnableMetrics {
		if err := p.initMetrics(res); err != nil {
			return nil, fmt.Errorf("vectorflow/telemetry: init metrics: %w", err)
		}
	}

	if cfg.EnableTracing {
		p.tracerProvider = otel.GetTracerProvider()
		p.tracer = p.tracerProvider.Tracer(serviceName)
	}

	return p, nil
}

func (p *Provider) initMetrics(res *resource.Resource) error {
	exporter, err := prometheus.New()
	if err != nil {
		return fmt.Errorf("prometheus exporter: %w", err)
	}

	p.meterProvider = sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(exporter),
	)
	otel.SetMeterProvider(p.meterProvider)
	p.meter = p.meterProvider.Meter(serviceName)

	return p.createInstruments()
}

func (p *Provider) createInstruments() error {
	var err error

	if p.edgeExecutions, err = p.meter.Int64Counter(metricEdgeExecutions,
		metric.WithDescription("Total number of edge executor invocations")); err != nil {
		return err
	}
	if p.edgeDuration, err = p.meter.Float64Histogram(metricEdgeDuration,
		metric.WithDescription("Edge execution duration in milliseconds"), metric.WithUnit("ms")); err != nil {
		return err
	}
	if p.connectorFanouts, err = p.meter.Int64Counter(metricConnectorFanouts,
		metric.WithDescription("Total number of connector fan-out visits")); err != nil {
		return err
	}
	if p.artifactLoads, err = p.meter.Int64Counter(metricArtifactLoads,
		metric.WithDescription("Total number of artifact loader Load calls")); err != nil {
		return err
	}
	if p.artifactLoadFailed, err = p.meter.Int64Counter(metricArtifactLoadFailed,
		metric.WithDescription("Total number of artifact loader failures")); err != nil {
		return err
	}
	if p.artifactLoadTime, err = p.meter.Float64Histogram(metricArtifactLoadTime,
		metric.WithDescription("Artifact load duration in milliseconds"), metric.WithUnit("ms")); err != nil {
		return err
	}
	if p.handlerErrors, err = p.meter.Int64Counter(metricHandlerErrors,
		metric.WithDescription("Total number of error events emitted by the engine")); err != nil {
		return err
	}
	if p.warnings, err = p.meter.Int64Counter(metricWarnings,
		metric.WithDescription("Total number of warning events emitted by the engine")); err != nil {
		return err
	}
	return nil
}

// Tracer returns the provider's tracer, or nil if tracing is disabled.
func (p *Provider) Tracer() trace.Tracer {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.tracer
}

// Meter returns the provider's meter, or nil if metrics are disabled.
func (p *Provider) Meter() metric.Meter {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.meter
}

// RecordEdgeExecution records one beginedge/endedge pair.
func (p *Provider) RecordEdgeExecution(ctx context.Context, graphID, vectorID string, duration time.Duration) {
	if p.meter == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("graph.id", graphID),
		attribute.String("vector.id", vectorID),
	)
	p.edgeExecutions.Add(ctx, 1, attrs)
	p.edgeDuration.Record(ctx, float64(duration.Milliseconds()), attrs)
}

// RecordConnectorFanout records one beginconnector visit.
func (p *Provider) RecordConnectorFanout(ctx context.Context, graphID string) {
	if p.meter == nil {
		return
	}
	p.connectorFanouts.Add(ctx, 1, metric.WithAttributes(attribute.String("graph.id", graphID)))
}

// RecordArtifactLoad records one loader.Load call outcome.
func (p *Provider) RecordArtifactLoad(ctx context.Context, url string, duration time.Duration, success bool) {
	if p.meter == nil {
		return
	}
	attrs := metric.WithAttributes(attribute.String("artifact.url", url))
	p.artifactLoads.Add(ctx, 1, attrs)
	p.artifactLoadTime.Record(ctx, float64(duration.Milliseconds()), attrs)
	if !success {
		p.artifactLoadFailed.Add(ctx, 1, attrs)
	}
}

// RecordHandlerError records one emitted error event.
func (p *Provider) RecordHandlerError(ctx context.Context, graphID, vectorID string) {
	if p.meter == nil {
		return
	}
	p.handlerErrors.Add(ctx, 1, metric.WithAttributes(
		attribute.String("graph.id", graphID),
		attribute.String("vector.id", vectorID),
	))
}

// RecordWarning records one emitted warning event.
func (p *Provider) RecordWarning(ctx context.Context) {
	if p.meter == nil {
		return
	}
	p.warnings.Add(ctx, 1)
}

// Shutdown flushes and releases the underlying meter provider.
func (p *Provider) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.meterProvider != nil {
		if err := p.meterProvider.Shutdown(ctx); err != nil {
			return fmt.Errorf("vectorflow/telemetry: shutdown meter provider: %w", err)
		}
	}
	return nil
}
