// Package types provides the shared data model for the dataflow graph
// execution engine: Graph, Node, Edge, Connector, and the linked-artifact
// indirections (LinkedNode, LinkedGraph) described by the engine's wire
// format. All core data structures used across packages are defined here to
// avoid import cycles.
package types

import (
	"encoding/json"
	"fmt"
)

// Graph is a versioned bundle of Nodes. Identity = (ID, Version).
type Graph struct {
	ID         string                 `json:"id"`
	URL        string                 `json:"url"`
	Version    int                    `json:"version"`
	Properties map[string]interface{} `json:"properties,omitempty"`
	Nodes      []*Node                `json:"vectors"`
}

// Key returns the (id, version) identity tuple used to decide whether a
// connector targets the currently loaded graph or requires a reload.
func (g *Graph) Key() GraphKey {
	if g == nil {
		return GraphKey{}
	}
	return GraphKey{ID: g.ID, Version: g.Version}
}

// GraphKey is a Graph's identity, compared against a Connector's Key to
// decide whether a connector points outside the current graph.
type GraphKey struct {
	ID      string
	Version int
}

// FindNode returns the node with the given id, or nil.
func (g *Graph) FindNode(id string) *Node {
	if g == nil {
		return nil
	}
	for _, n := range g.Nodes {
		if n.ID == id {
			return n
		}
	}
	return nil
}

// Node is an executable unit: a set handler plus a list of output Edges.
type Node struct {
	ID      string `json:"id"`
	GraphID string `json:"graphId"`
	Version int     `json:"version"`
	URL     string `json:"url"`

	Edges []*Edge `json:"edges"`

	Template Template `json:"template"`

	Data       interface{} `json:"data,omitempty"`
	Properties interface{} `json:"properties,omitempty"`

	LinkedNode  *LinkedNode  `json:"linkedNode,omitempty"`
	LinkedGraph *LinkedGraph `json:"linkedGraph,omitempty"`
}

// Template carries the source text of a node's set handler.
type Template struct {
	Set string `json:"set"`
}

// Edge is a node's named output; writes to it fan out to every Connector.
type Edge struct {
	Field      string       `json:"field"`
	Connectors []*Connector `json:"connectors"`
}

// FindEdge returns the node's output edge with the given field, or nil.
func (n *Node) FindEdge(field string) *Edge {
	if n == nil {
		return nil
	}
	for _, e := range n.Edges {
		if e.Field == field {
			return e
		}
	}
	return nil
}

// Connector is a directed reference from one Edge to an input field on
// another node, possibly in another graph.
type Connector struct {
	ID       string `json:"id"`
	VectorID string `json:"vectorId"`
	Field    string `json:"field"`
	GraphID  string `json:"graphId"`
	Version  int    `json:"version"`
}

// Key returns the (graphId, version) identity a connector points into.
func (c *Connector) Key() GraphKey {
	return GraphKey{ID: c.GraphID, Version: c.Version}
}

// LinkedNode is an indirection to a reusable Node artifact, resolved once
// on first use (§3 invariant 2: loaded is monotonic false -> true).
type LinkedNode struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Loaded  bool   `json:"loaded"`
	Node    *Node  `json:"node,omitempty"`
}

// LinkedGraph is an indirection to an embedded sub-graph whose internal
// edges are spliced with the host node's connectors at first use (§3
// invariant 3: loaded is set true only after splicing has run).
type LinkedGraph struct {
	ID      string `json:"id"`
	Version int    `json:"version"`
	Loaded  bool   `json:"loaded"`
	Graph   *Graph `json:"graph,omitempty"`

	// Data/Properties override inner node payloads by inner node id.
	Data       map[string]interface{} `json:"data,omitempty"`
	Properties map[string]interface{} `json:"properties,omitempty"`

	Fields FieldMap `json:"fields"`
}

// FieldMap maps the outside world's input/output field names to
// (inner-node-id, inner-field-name) pairs.
type FieldMap struct {
	Inputs  map[string]FieldRef `json:"inputs,omitempty"`
	Outputs map[string]FieldRef `json:"outputs,omitempty"`
}

// FieldRef names an inner node + field pair a linked graph's field map
// points at.
type FieldRef struct {
	ID    string `json:"id"`
	Field string `json:"field"`
}

// ParseGraph decodes a JSON artifact into a Graph. The loader performs no
// semantic validation beyond what encoding/json itself enforces (§4.2).
func ParseGraph(data []byte) (*Graph, error) {
	var g Graph
	if err := json.Unmarshal(data, &g); err != nil {
		return nil, fmt.Errorf("vectorflow/types: parse graph: %w", err)
	}
	return &g, nil
}

// ParseNode decodes a JSON artifact into a Node.
func ParseNode(data []byte) (*Node, error) {
	var n Node
	if err := json.Unmarshal(data, &n); err != nil {
		return nil, fmt.Errorf("vectorflow/types: parse node: %w", err)
	}
	return &n, nil
}
