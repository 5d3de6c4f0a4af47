package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/vectorflow/vectorflow/pkg/eventbus"
	"github.com/vectorflow/vectorflow/pkg/graph"
	"github.com/vectorflow/vectorflow/pkg/handler"
	"github.com/vectorflow/vectorflow/pkg/types"
)

// edgeExecutor brackets a single node visit with beginedge/endedge events
// (§4.4). It never returns an error: every failure inside nodeExecutor is
// contained and surfaced only as an error event (§7).
func (s *Scheduler) edgeExecutor(ctx context.Context, traversalID string, g *types.Graph, node *types.Node, field string, value interface{}) {
	start := time.Now()
	s.bus.DispatchEvent(eventbus.BeginEdge, eventbus.Event{
		GraphID:  g.Key().ID,
		VectorID: node.ID,
		Field:    field,
		Value:    value,
	})

	s.nodeExecutor(ctx, traversalID, g, node, field, value)

	s.bus.DispatchEvent(eventbus.EndEdge, eventbus.Event{
		GraphID:  g.Key().ID,
		VectorID: node.ID,
		Field:    field,
		Value:    value,
		Duration: time.Since(start),
	})
}

// nodeExecutor runs a single node visit: linked-node resolution (Step A),
// linked-graph resolution and splicing (Step B), per-node cache lookup
// (Step D), the edges write proxy (Step C), and handler compile/dispatch
// (Step E). Every failure kind is emitted as an error event and absorbed —
// nodeExecutor itself never returns an error (§7).
func (s *Scheduler) nodeExecutor(ctx context.Context, traversalID string, g *types.Graph, node *types.Node, field string, value interface{}) {
	effectiveGraph := g
	effectiveNode := node
	effectiveField := field

	// Step A: linked node resolution.
	if node.LinkedNode != nil {
		ln := node.LinkedNode
		if ln.Loaded && ln.Node != nil {
			effectiveNode = ln.Node
		} else if !ln.Loaded {
			loaded, err := s.nodeLoader.Load(ctx, s.renderVectorPath(ln.ID, ln.Version))
			if err != nil || loaded == nil {
				s.emitError(g, node, field, ErrLinkedNodeResolution, err)
			} else {
				loaded.Data = node.Data
				loaded.Properties = node.Properties
				ln.Node = loaded
				ln.Loaded = true
				effectiveNode = loaded
			}
		}
	}

	// Step B: linked graph resolution and splicing.
	if effectiveNode.LinkedGraph != nil {
		lg := effectiveNode.LinkedGraph
		if !lg.Loaded {
			loaded, err := s.graphLoader.Load(ctx, s.renderGraphPath(lg.ID, lg.Version))
			if err != nil || loaded == nil {
				s.emitError(g, effectiveNode, effectiveField, ErrLinkedGraphResolution, err)
			} else {
				graph.Splice(effectiveNode, loaded, lg)
				lg.Graph = loaded
				lg.Loaded = true
			}
		}
		if lg.Graph != nil {
			if innerID, innerField, ok := graph.RemapInput(lg, effectiveField); ok {
				if inner := lg.Graph.FindNode(innerID); inner != nil {
					effectiveGraph = lg.Graph
					effectiveNode = inner
					effectiveField = innerField
				}
			}
		}
	}

	// Step D: per-node cache.
	cache := s.cache.For(effectiveNode.ID)

	// Step C: edges write proxy.
	edges := handler.NewEdges(func(writeField string, writeValue interface{}) (interface{}, error) {
		return s.writeEdge(ctx, traversalID, effectiveGraph, effectiveNode, writeField, writeValue)
	})

	// Step E: handler compile/dispatch.
	if effectiveNode.Template.Set == "" {
		if effectiveNode.LinkedGraph != nil {
			// A pass-through node with no handler of its own: valid, no-op.
			return
		}
		s.emitError(effectiveGraph, effectiveNode, effectiveField, ErrTemplateMissing, nil)
		return
	}

	boundContext := s.context
	s.bus.DispatchEvent(eventbus.Set, eventbus.Event{
		GraphID:         effectiveGraph.Key().ID,
		VectorID:        effectiveNode.ID,
		Field:           effectiveField,
		Value:           value,
		VectorInterface: effectiveNode,
		SetContext:      func(ctx interface{}) { boundContext = ctx },
	})

	env := &handler.Environment{
		Scheduler:  s,
		Graph:      effectiveGraph,
		Cache:      cache,
		Vector:     effectiveNode,
		Field:      effectiveField,
		State:      s.state,
		Value:      value,
		Edges:      edges,
		Data:       effectiveNode.Data,
		Properties: effectiveNode.Properties,
		Require:    s.require,
		This:       boundContext,
	}

	out, err := handler.Dispatch(s.compiler, effectiveNode.Template.Set, env)

	s.bus.DispatchEvent(eventbus.AfterSet, eventbus.Event{
		GraphID:         effectiveGraph.Key().ID,
		VectorID:        effectiveNode.ID,
		Field:           effectiveField,
		Value:           value,
		VectorInterface: effectiveNode,
		Return:          out,
		Err:             err,
	})

	if err != nil {
		s.emitError(effectiveGraph, effectiveNode, effectiveField, ErrHandlerThrew, err)
	}
}

// writeEdge is Step C's actual fan-out body: every connector on the named
// edge is visited sequentially, in declared order (§5). A connector with an
// empty GraphID targets the current graph; only a connector with a non-empty
// GraphID whose (GraphID, Version) differs from the current graph's key
// triggers a cross-graph reload (§9 decision). A connector
// whose target graph or node cannot be resolved is skipped after emitting an
// error event; propagation continues with the remaining connectors (§7
// case 3). A panic inside the recursive chain is contained here and never
// propagates back to the writing handler (§7 case 7). If config.Config sets
// MaxConnectorFanout or MaxGraphDepth above zero, the running per-traversal
// counts are checked here too: a connector that would exceed either ceiling
// is skipped with an error event instead of being followed.
func (s *Scheduler) writeEdge(ctx context.Context, traversalID string, g *types.Graph, node *types.Node, field string, value interface{}) (result interface{}, err error) {
	defer func() {
		if r := recover(); r != nil {
			s.emitError(g, node, field, ErrEdgeSetterError, fmt.Errorf("%v", r))
			result, err = value, nil
		}
	}()

	edge := node.FindEdge(field)
	if edge == nil {
		return value, nil
	}

	limits := s.traversalLimitsFor(traversalID)
	here := g.Key()
	for _, c := range edge.Connectors {
		if c == nil {
			continue
		}

		if s.cfg.MaxConnectorFanout > 0 {
			limits.fanout++
			if limits.fanout > s.cfg.MaxConnectorFanout {
				s.emitError(g, node, field, ErrMaxFanoutExceeded, nil)
				break
			}
		}

		connGraph := g
		if c.GraphID != "" && c.Key() != here {
			loaded, loadErr := s.graphLoader.Load(ctx, s.renderGraphPath(c.GraphID, c.Version))
			if loadErr != nil || loaded == nil {
				s.emitError(g, node, field, ErrDanglingConnector, loadErr)
				continue
			}
			connGraph = loaded
		}

		target := connGraph.FindNode(c.VectorID)
		if target == nil {
			s.emitError(connGraph, node, field, ErrDanglingConnector, nil)
			continue
		}

		if s.cfg.MaxGraphDepth > 0 {
			limits.depth++
			if limits.depth > s.cfg.MaxGraphDepth {
				s.emitError(connGraph, node, field, ErrMaxGraphDepthExceeded, nil)
				limits.depth--
				continue
			}
		}

		start := time.Now()
		s.bus.DispatchEvent(eventbus.BeginConnector, eventbus.Event{
			GraphID:   connGraph.Key().ID,
			VectorID:  target.ID,
			Field:     c.Field,
			Value:     value,
			Connector: c,
		})

		s.edgeExecutor(ctx, traversalID, connGraph, target, c.Field, value)

		s.bus.DispatchEvent(eventbus.EndConnector, eventbus.Event{
			GraphID:   connGraph.Key().ID,
			VectorID:  target.ID,
			Field:     c.Field,
			Value:     value,
			Connector: c,
			Duration:  time.Since(start),
		})

		if s.cfg.MaxGraphDepth > 0 {
			limits.depth--
		}
	}

	return value, nil
}

func (s *Scheduler) emitError(g *types.Graph, node *types.Node, field string, kind error, cause error) {
	err := kind
	if cause != nil {
		err = fmt.Errorf("%w: %v", kind, cause)
	}
	gid := ""
	if g != nil {
		gid = g.Key().ID
	}
	vid := ""
	if node != nil {
		vid = node.ID
	}
	s.bus.DispatchEvent(eventbus.Error, eventbus.Event{
		GraphID:  gid,
		VectorID: vid,
		Field:    field,
		Err:      err,
		Message:  err.Error(),
	})
}
