// Command demo runs a handful of hardcoded graphs through the Scheduler
// and prints the events each run emits, mirroring the teacher's
// cmd/demo-conditional-execution.
package main

import (
	"context"
	"fmt"

	"github.com/vectorflow/vectorflow/pkg/engine"
	"github.com/vectorflow/vectorflow/pkg/eventbus"
	"github.com/vectorflow/vectorflow/pkg/types"
)

func main() {
	fmt.Println("=================================================")
	fmt.Println("vectorflow engine demo")
	fmt.Println("=================================================")
	fmt.Println()

	demoProxyChain()
	demoLinkedGraphSplice()
	demoDanglingConnectorContainment()
}

func runAndPrint(title string, g *types.Graph, pattern, field string, value interface{}) {
	fmt.Println("DEMO:", title)
	fmt.Println("----------------------------------")

	sched, err := engine.New(g, engine.WithoutFetch())
	if err != nil {
		fmt.Printf("  error creating scheduler: %v\n", err)
		return
	}

	for _, name := range []eventbus.Name{
		eventbus.BeginEdge, eventbus.Set, eventbus.Error, eventbus.Warning,
	} {
		n := name
		sched.AddEventListener(n, func(ev eventbus.Event) {
			switch n {
			case eventbus.BeginEdge:
				fmt.Printf("  -> visiting %s.%s\n", ev.VectorID, ev.Field)
			case eventbus.Set:
				fmt.Printf("     set handler running on %s\n", ev.VectorID)
			case eventbus.Error:
				fmt.Printf("     error: %v\n", ev.Err)
			case eventbus.Warning:
				fmt.Printf("     warning: %s\n", ev.Message)
			}
		})
	}

	if err := sched.Url(context.Background(), pattern, value, field, nil); err != nil {
		fmt.Printf("  url() returned an error (should never happen): %v\n", err)
	}
	fmt.Println()
}

func demoProxyChain() {
	b := &types.Node{ID: "b", URL: "/b", Template: types.Template{Set: "value"}}
	a := &types.Node{
		ID: "a", URL: "/a",
		Template: types.Template{Set: `edges.Write("out", value)`},
		Edges:    []*types.Edge{{Field: "out", Connectors: []*types.Connector{{ID: "c1", VectorID: "b", Field: "in"}}}},
	}
	g := &types.Graph{ID: "demo-proxy", Version: 1, Nodes: []*types.Node{a, b}}
	runAndPrint("A proxies to B via an output connector", g, "^/a$", "in", "ping")
}

func demoLinkedGraphSplice() {
	inner := &types.Node{
		ID: "inner", Template: types.Template{Set: `edges.Write("done", value)`},
		Edges: []*types.Edge{{Field: "done"}},
	}
	innerGraph := &types.Graph{ID: "inner-graph", Version: 1, Nodes: []*types.Node{inner}}

	host := &types.Node{
		ID: "host", URL: "/host",
		LinkedGraph: &types.LinkedGraph{
			ID: "inner-graph", Version: 1,
			Fields: types.FieldMap{Inputs: map[string]types.FieldRef{"in": {ID: "inner", Field: "in"}}},
		},
	}
	g := &types.Graph{ID: "demo-linked", Version: 1, Nodes: []*types.Node{host}}

	fmt.Println("DEMO: host node embeds a linked sub-graph")
	fmt.Println("----------------------------------")
	sched, err := engine.New(g, engine.WithoutFetch())
	if err != nil {
		fmt.Printf("  error: %v\n", err)
		return
	}
	sched.AddEventListener(eventbus.Load, func(ev eventbus.Event) {
		fmt.Printf("  load event for %s -> serving from memory, no network fetch\n", ev.URL)
		ev.SetValue(innerGraph)
	})
	sched.AddEventListener(eventbus.Set, func(ev eventbus.Event) {
		fmt.Printf("  set handler running on spliced inner node %s\n", ev.VectorID)
	})
	if err := sched.Url(context.Background(), "^/host$", "hi", "in", nil); err != nil {
		fmt.Printf("  url() returned an error: %v\n", err)
	}
	fmt.Println()
}

func demoDanglingConnectorContainment() {
	a := &types.Node{
		ID: "a", URL: "/a",
		Template: types.Template{Set: `edges.Write("out", value)`},
		Edges: []*types.Edge{{Field: "out", Connectors: []*types.Connector{
			{ID: "c1", VectorID: "ghost", Field: "in", GraphID: "demo-dangling", Version: 1},
		}}},
	}
	g := &types.Graph{ID: "demo-dangling", Version: 1, Nodes: []*types.Node{a}}
	runAndPrint("a connector points at a vector that does not exist", g, "^/a$", "in", "x")
}
