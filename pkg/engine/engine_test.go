package engine

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/vectorflow/vectorflow/pkg/config"
	"github.com/vectorflow/vectorflow/pkg/eventbus"
	"github.com/vectorflow/vectorflow/pkg/loader"
	"github.com/vectorflow/vectorflow/pkg/types"
)

func node(id, url, set string, edges ...*types.Edge) *types.Node {
	return &types.Node{ID: id, URL: url, Template: types.Template{Set: set}, Edges: edges}
}

func edge(field string, connectors ...*types.Connector) *types.Edge {
	return &types.Edge{Field: field, Connectors: connectors}
}

func TestNewRejectsNilGraph(t *testing.T) {
	if _, err := New(nil); !errors.Is(err, ErrNilGraph) {
		t.Fatalf("expected ErrNilGraph, got %v", err)
	}
}

func TestUrlWithNoMatchEmitsWarning(t *testing.T) {
	g := &types.Graph{ID: "g1", Version: 1}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var warnings []eventbus.Event
	s.AddEventListener(eventbus.Warning, func(ev eventbus.Event) { warnings = append(warnings, ev) })

	if err := s.Url(context.Background(), "^/missing$", nil, "in", nil); err != nil {
		t.Fatalf("Url should never return an error, got %v", err)
	}

	if len(warnings) != 1 {
		t.Fatalf("expected exactly one warning, got %d", len(warnings))
	}
	if warnings[0].Message != ErrURLMissMessage {
		t.Fatalf("unexpected warning message: %q", warnings[0].Message)
	}
}

func TestUrlRunsSingleLogNode(t *testing.T) {
	n := node("v1", "/log", `edges.Write("out", value)`, edge("out"))
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sets []eventbus.Event
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev) })
	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/log$", "hello", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected one set event, got %d", len(sets))
	}
	if len(errs) != 0 {
		t.Fatalf("expected no error events, got %v", errs)
	}
}

func TestUrlPropagatesThroughProxyChain(t *testing.T) {
	b := node("b", "/b", "value")
	a := node("a", "/a", `edges.Write("out", value)`, edge("out", &types.Connector{ID: "c1", VectorID: "b", Field: "in"}))
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{a, b}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var seen []string
	var mu sync.Mutex
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) {
		mu.Lock()
		defer mu.Unlock()
		seen = append(seen, ev.VectorID)
	})

	if err := s.Url(context.Background(), "^/a$", "ping", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(seen) != 2 || seen[0] != "a" || seen[1] != "b" {
		t.Fatalf("expected [a b] set order, got %v", seen)
	}
}

func TestNodeExecutorHandlerThrowIsContained(t *testing.T) {
	n := node("v1", "/bad", "value +")
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/bad$", nil, "in", nil); err != nil {
		t.Fatalf("Url must never return an error even on handler throw, got %v", err)
	}
	if len(errs) != 1 {
		t.Fatalf("expected one error event, got %d", len(errs))
	}
}

func TestNodeExecutorMissingTemplateEmitsError(t *testing.T) {
	n := node("v1", "/empty", "")
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/empty$", nil, "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 1 || !errors.Is(errs[0].Err, ErrTemplateMissing) {
		t.Fatalf("expected one ErrTemplateMissing event, got %v", errs)
	}
}

func TestNodeExecutorWithoutFetchEmitsFetchUnavailableOnLinkedNode(t *testing.T) {
	n := &types.Node{
		ID:         "v1",
		URL:        "/linked",
		LinkedNode: &types.LinkedNode{ID: "remote", Version: 1},
	}
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/linked$", nil, "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) == 0 {
		t.Fatal("expected a linked-node resolution error when fetch is unavailable")
	}
}

func TestDanglingConnectorIsSkippedAndErrored(t *testing.T) {
	n := node("v1", "/v1", `edges.Write("out", value)`,
		edge("out", &types.Connector{ID: "c1", VectorID: "ghost", Field: "in", GraphID: "g1", Version: 1}))
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/v1$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) != 1 || !errors.Is(errs[0].Err, ErrDanglingConnector) {
		t.Fatalf("expected one ErrDanglingConnector event, got %v", errs)
	}
}

func TestLoadEventOverrideSatisfiesLinkedGraph(t *testing.T) {
	inner := node("inner", "", `edges.Write("done", value)`, edge("done"))
	innerGraph := &types.Graph{ID: "inner-graph", Version: 1, Nodes: []*types.Node{inner}}

	host := &types.Node{
		ID:  "host",
		URL: "/host",
		LinkedGraph: &types.LinkedGraph{
			ID: "inner-graph", Version: 1,
			Fields: types.FieldMap{Inputs: map[string]types.FieldRef{"in": {ID: "inner", Field: "in"}}},
		},
	}
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{host}}

	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	fetches := 0
	s.AddEventListener(eventbus.Load, func(ev eventbus.Event) {
		fetches++
		ev.SetValue(innerGraph)
	})

	var sets []string
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev.VectorID) })

	if err := s.Url(context.Background(), "^/host$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("expected exactly one load event, got %d", fetches)
	}
	if len(sets) != 1 || sets[0] != "inner" {
		t.Fatalf("expected execution to land on the spliced inner node, got %v", sets)
	}

	if err := s.Url(context.Background(), "^/host$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if fetches != 1 {
		t.Fatalf("linkedGraph.loaded is monotonic: expected no further load events, got %d total", fetches)
	}
	if len(sets) != 2 || sets[1] != "inner" {
		t.Fatalf("expected the second call to still execute against the spliced inner node, got %v", sets)
	}
}

func TestUrlMatchesNodeURLCaseFolded(t *testing.T) {
	n := node("v1", "/Sports", "value")
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}
	s, err := New(g, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sets []string
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev.VectorID) })

	if err := s.Url(context.Background(), "^/sports$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 1 {
		t.Fatalf("expected a case-folded match to still run the node, got %v", sets)
	}
}

func TestUrlHonorsCurrentVectorLinkedGraphScope(t *testing.T) {
	inner := node("inner", "/inner", "value")
	innerGraph := &types.Graph{ID: "inner-graph", Version: 1, Nodes: []*types.Node{inner}}

	current := &types.Node{
		ID:          "host",
		LinkedGraph: &types.LinkedGraph{ID: "inner-graph", Version: 1, Loaded: true, Graph: innerGraph},
	}

	base := &types.Graph{ID: "g1", Version: 1}
	s, err := New(base, WithoutFetch())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sets []string
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev.VectorID) })

	if err := s.Url(context.Background(), "^/inner$", "x", "in", current); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 1 || sets[0] != "inner" {
		t.Fatalf("expected url() to search the current vector's linked graph, got %v", sets)
	}
}

func TestMaxGraphDepthStopsDeepRecursion(t *testing.T) {
	c := node("c", "", "value")
	b := node("b", "", `edges.Write("out", value)`, edge("out", &types.Connector{ID: "bc", VectorID: "c", Field: "in"}))
	a := node("a", "/a", `edges.Write("out", value)`, edge("out", &types.Connector{ID: "ab", VectorID: "b", Field: "in"}))
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{a, b, c}}

	cfg := config.Default()
	cfg.MaxGraphDepth = 1
	s, err := New(g, WithoutFetch(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sets []string
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev.VectorID) })
	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/a$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 2 || sets[0] != "a" || sets[1] != "b" {
		t.Fatalf("expected the chain to stop at depth 1 (a, b), got %v", sets)
	}
	if len(errs) != 1 || !errors.Is(errs[0].Err, ErrMaxGraphDepthExceeded) {
		t.Fatalf("expected one ErrMaxGraphDepthExceeded event, got %v", errs)
	}
}

func TestMaxConnectorFanoutStopsExcessConnectors(t *testing.T) {
	b := node("b", "", "value")
	c := node("c", "", "value")
	d := node("d", "", "value")
	a := node("a", "/a", `edges.Write("out", value)`, edge("out",
		&types.Connector{ID: "ab", VectorID: "b", Field: "in"},
		&types.Connector{ID: "ac", VectorID: "c", Field: "in"},
		&types.Connector{ID: "ad", VectorID: "d", Field: "in"},
	))
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{a, b, c, d}}

	cfg := config.Default()
	cfg.MaxConnectorFanout = 2
	s, err := New(g, WithoutFetch(), WithConfig(cfg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var sets []string
	s.AddEventListener(eventbus.Set, func(ev eventbus.Event) { sets = append(sets, ev.VectorID) })
	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/a$", "x", "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(sets) != 3 || sets[0] != "a" || sets[1] != "b" || sets[2] != "c" {
		t.Fatalf("expected fanout to stop after 2 connectors (a, b, c), got %v", sets)
	}
	if len(errs) != 1 || !errors.Is(errs[0].Err, ErrMaxFanoutExceeded) {
		t.Fatalf("expected one ErrMaxFanoutExceeded event, got %v", errs)
	}
}

func TestMaxExecutionTimeCancelsSlowFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(100 * time.Millisecond)
		w.Write([]byte(`{"id": "remote", "url": "^/remote$"}`))
	}))
	defer srv.Close()

	n := &types.Node{ID: "v1", URL: "/host", LinkedNode: &types.LinkedNode{ID: "remote", Version: 1}}
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{n}}

	cfg := config.Testing()
	cfg.MaxExecutionTime = 5 * time.Millisecond

	s, err := New(g, WithConfig(cfg))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.SetVectorPath(srv.URL + "/vectors/{id}.{version}")

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/host$", nil, "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(errs) < 2 || !errors.Is(errs[0].Err, loader.ErrFetchFailed) || !errors.Is(errs[1].Err, ErrLinkedNodeResolution) {
		t.Fatalf("expected MaxExecutionTime to cancel the fetch (loader fetch-failed error) and surface a linked-node resolution error, got %v", errs)
	}
}

func TestNewWiresGraphSchemaValidationWhenEnabled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"version": 1}`))
	}))
	defer srv.Close()

	host := &types.Node{ID: "host", URL: "/host", LinkedGraph: &types.LinkedGraph{ID: "inner", Version: 1}}
	g := &types.Graph{ID: "g1", Version: 1, Nodes: []*types.Node{host}}

	cfg := config.Testing()
	cfg.ValidateArtifactSchema = true

	s, err := New(g, WithConfig(cfg), WithGraphSchema(`{"type":"object","required":["id"]}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	s.SetGraphPath(srv.URL + "/graphs/{id}.{version}")

	var errs []eventbus.Event
	s.AddEventListener(eventbus.Error, func(ev eventbus.Event) { errs = append(errs, ev) })

	if err := s.Url(context.Background(), "^/host$", nil, "in", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	found := false
	for _, e := range errs {
		if strings.Contains(e.Message, "schema validation") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected the fetched graph missing \"id\" to fail schema validation, got %v", errs)
	}
}
