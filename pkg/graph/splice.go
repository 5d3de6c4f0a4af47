// Package graph implements linked-graph resolution support: the inner-edge
// splicing algorithm and input-field remapping from §4.3 Step B. This is
// what lets an embedded sub-graph present its internal nodes' edges as if
// they belonged to the host node.
package graph

import "github.com/vectorflow/vectorflow/pkg/types"

// Splice unions the host node's outbound connectors into the linked graph's
// matching inner output edges, and applies the linked graph's per-node data
// and properties overrides. It mutates linked in place and must run exactly
// once, before linkedGraph.loaded is set true (invariant 3).
func Splice(hostNode *types.Node, linked *types.Graph, lg *types.LinkedGraph) {
	if hostNode == nil || linked == nil || lg == nil {
		return
	}

	for _, v := range linked.Nodes {
		if data, ok := lg.Data[v.ID]; ok {
			v.Data = data
		}
		if props, ok := lg.Properties[v.ID]; ok {
			v.Properties = props
		}

		for _, e := range v.Edges {
			for hostField, ref := range lg.Fields.Outputs {
				if ref.ID != v.ID || ref.Field != e.Field {
					continue
				}
				hostEdge := hostNode.FindEdge(hostField)
				if hostEdge == nil {
					continue
				}
				e.Connectors = unionConnectors(e.Connectors, hostEdge.Connectors)
			}
		}
	}
}

// unionConnectors appends every connector from src not already present in
// dst (by connector id) and returns the extended slice.
func unionConnectors(dst, src []*types.Connector) []*types.Connector {
	seen := make(map[string]bool, len(dst))
	for _, c := range dst {
		seen[c.ID] = true
	}
	for _, c := range src {
		if c == nil || seen[c.ID] {
			continue
		}
		dst = append(dst, c)
		seen[c.ID] = true
	}
	return dst
}

// RemapInput resolves an outer-facing input field name to the inner node id
// and field name it maps to, per linkedGraph.fields.inputs (§4.3 Step B).
func RemapInput(lg *types.LinkedGraph, field string) (nodeID, innerField string, ok bool) {
	if lg == nil {
		return "", "", false
	}
	ref, found := lg.Fields.Inputs[field]
	if !found {
		return "", "", false
	}
	return ref.ID, ref.Field, true
}
