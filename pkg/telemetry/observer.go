package telemetry

import (
	"context"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vectorflow/vectorflow/pkg/eventbus"
)

// Observer attaches a Provider to an eventbus.Bus: every beginedge/endedge,
// beginconnector, load, error, and warning event it dispatches is turned
// into a metric or span, replacing the teacher's observer.Observer
// interface (this engine notifies via eventbus.Bus, not a separate
// observer registry).
type Observer struct {
	provider *Provider

	mu         sync.Mutex
	edgeSpans  map[string]trace.Span
	edgeStarts map[string]time.Time
}

// NewObserver creates an Observer backed by provider.
func NewObserver(provider *Provider) *Observer {
	return &Observer{
		provider:   provider,
		edgeSpans:  make(map[string]trace.Span),
		edgeStarts: make(map[string]time.Time),
	}
}

// Attach registers the Observer's listeners on bus.
func (o *Observer) Attach(bus *eventbus.Bus) {
	bus.AddEventListener(eventbus.BeginEdge, o.onBeginEdge)
	bus.AddEventListener(eventbus.EndEdge, o.onEndEdge)
	bus.AddEventListener(eventbus.BeginConnector, o.onBeginConnector)
	bus.AddEventListener(eventbus.Load, o.onLoad)
	bus.AddEventListener(eventbus.Error, o.onError)
	bus.AddEventListener(eventbus.Warning, o.onWarning)
}

func edgeKey(ev eventbus.Event) string { return ev.GraphID + "/" + ev.VectorID + "/" + ev.Field }

func (o *Observer) onBeginEdge(ev eventbus.Event) {
	ctx := context.Background()
	key := edgeKey(ev)

	o.mu.Lock()
	o.edgeStarts[key] = time.Now()
	o.mu.Unlock()

	if tracer := o.provider.Tracer(); tracer != nil {
		_, span := tracer.Start(ctx, "edge.execute", trace.WithAttributes(
			attribute.String("graph.id", ev.GraphID),
			attribute.String("vector.id", ev.VectorID),
			attribute.String("field", ev.Field),
		))
		o.mu.Lock()
		o.edgeSpans[key] = span
		o.mu.Unlock()
	}
}

func (o *Observer) onEndEdge(ev eventbus.Event) {
	ctx := context.Background()
	key := edgeKey(ev)

	o.mu.Lock()
	start, hasStart := o.edgeStarts[key]
	delete(o.edgeStarts, key)
	span, hasSpan := o.edgeSpans[key]
	delete(o.edgeSpans, key)
	o.mu.Unlock()

	duration := time.Duration(0)
	if hasStart {
		duration = time.Since(start)
	}
	o.provider.RecordEdgeExecution(ctx, ev.GraphID, ev.VectorID, duration)

	if hasSpan {
		span.SetStatus(codes.Ok, "edge executed")
		span.End()
	}
}

func (o *Observer) onBeginConnector(ev eventbus.Event) {
	o.provider.RecordConnectorFanout(context.Background(), ev.GraphID)
}

// onLoad records one artifact-load attempt. The load event fires once per
// Loader.Load call with no paired "end" event, so no duration or outcome is
// available at the bus level: only the call count is meaningful here, the
// duration is recorded as 0 and every load is recorded as successful.
func (o *Observer) onLoad(ev eventbus.Event) {
	o.provider.RecordArtifactLoad(context.Background(), ev.URL, 0, true)
}

func (o *Observer) onError(ev eventbus.Event) {
	o.provider.RecordHandlerError(context.Background(), ev.GraphID, ev.VectorID)
}

func (o *Observer) onWarning(eventbus.Event) {
	o.provider.RecordWarning(context.Background())
}
