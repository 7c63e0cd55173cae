// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"iter"
	"maps"
	"slices"
	"strings"
)

// View is a read-only projection of a Graph restricted to a set of relation
// types and, optionally, to nodes with one CURIE prefix.
//
// A View references the graph's nodes and edges; it never copies them and
// never contains an edge absent from its graph. Views are cheap to create
// and safe for concurrent use once the graph is frozen.
type View struct {
	g *Graph

	// allowed is the permitted relation set. nil means all relations; an
	// empty non-nil set means none.
	allowed map[string]struct{}

	// prefix restricts nodes to ids of the form "prefix:...". Empty means
	// no restriction.
	prefix string
}

// Filter returns a view of g restricted to the given relation types.
//
// Description:
//
//	With no relations every edge is included. Otherwise exactly the edges
//	whose relation is listed are included. Relation types absent from the
//	graph are ignored: they contribute no edges and are not an error.
//
// Example:
//
//	isA := graph.Filter(g, graph.RelationIsA)
//	ancestors := graph.Traverse(isA, []string{"GO:0006915"}, true, false)
func Filter(g *Graph, relations ...string) *View {
	return &View{g: g, allowed: relationSet(relations)}
}

// Filter narrows the view further. The allowed set of the result is the
// intersection of this view's set with relations, so filtering twice by
// the same set yields an equal view. With no relations the view is
// returned unchanged.
func (v *View) Filter(relations ...string) *View {
	next := relationSet(relations)
	if next == nil {
		return v
	}
	if v.allowed != nil {
		for r := range next {
			if _, ok := v.allowed[r]; !ok {
				delete(next, r)
			}
		}
	}
	return &View{g: v.g, allowed: next, prefix: v.prefix}
}

// WithPrefix returns a view that only contains nodes whose id has the given
// CURIE prefix ("GO" or "GO:"). Edges with an endpoint outside the prefix
// are dropped. An empty prefix removes the restriction; a new prefix
// replaces any earlier one.
func (v *View) WithPrefix(prefix string) *View {
	return &View{g: v.g, allowed: v.allowed, prefix: strings.TrimSuffix(prefix, ":")}
}

// Graph returns the backing graph.
func (v *View) Graph() *Graph {
	return v.g
}

// Allowed returns the sorted allowed relation set, or nil when every
// relation is allowed.
func (v *View) Allowed() []string {
	if v.allowed == nil {
		return nil
	}
	allowed := slices.AppendSeq(make([]string, 0, len(v.allowed)), maps.Keys(v.allowed))
	slices.Sort(allowed)
	return allowed
}

// Prefix returns the CURIE prefix restriction, or "".
func (v *View) Prefix() string {
	return v.prefix
}

// Equal reports whether two views project the same graph through the same
// relation set and prefix.
func (v *View) Equal(other *View) bool {
	if v == nil || other == nil {
		return v == other
	}
	if v.g != other.g || v.prefix != other.prefix {
		return false
	}
	if (v.allowed == nil) != (other.allowed == nil) {
		return false
	}
	return maps.Equal(v.allowed, other.allowed)
}

// HasNode reports whether id is a node of the view.
func (v *View) HasNode(id string) bool {
	node, ok := v.g.nodes[id]
	return ok && v.includesNode(node)
}

// GetNode returns the node if it is part of the view.
func (v *View) GetNode(id string) (*Node, bool) {
	node, ok := v.g.nodes[id]
	if !ok || !v.includesNode(node) {
		return nil, false
	}
	return node, true
}

// Nodes iterates the view's nodes in graph insertion order.
func (v *View) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, node := range v.g.order {
			if !v.includesNode(node) {
				continue
			}
			if !yield(node) {
				return
			}
		}
	}
}

// NodeIDs returns the view's node ids in graph insertion order.
func (v *View) NodeIDs() []string {
	ids := make([]string, 0, len(v.g.order))
	for node := range v.Nodes() {
		ids = append(ids, node.ID)
	}
	return ids
}

// NodeCount returns the number of nodes in the view.
func (v *View) NodeCount() int {
	if v.prefix == "" {
		return len(v.g.order)
	}
	n := 0
	for range v.Nodes() {
		n++
	}
	return n
}

// Out returns the view's edges leaving id.
func (v *View) Out(id string) []*Edge {
	node, ok := v.g.nodes[id]
	if !ok || !v.includesNode(node) {
		return nil
	}
	return v.filterEdges(node.Outgoing)
}

// In returns the view's edges entering id.
func (v *View) In(id string) []*Edge {
	node, ok := v.g.nodes[id]
	if !ok || !v.includesNode(node) {
		return nil
	}
	return v.filterEdges(node.Incoming)
}

// Edges returns every edge of the view in graph insertion order.
func (v *View) Edges() []Edge {
	result := make([]Edge, 0)
	for _, edge := range v.g.edges {
		if v.IncludesEdge(edge) {
			result = append(result, *edge)
		}
	}
	return result
}

// EdgeCount returns the number of edges in the view.
func (v *View) EdgeCount() int {
	n := 0
	for _, edge := range v.g.edges {
		if v.IncludesEdge(edge) {
			n++
		}
	}
	return n
}

// IncludesEdge reports whether the edge passes the relation filter and both
// endpoints are in the view.
func (v *View) IncludesEdge(edge *Edge) bool {
	if v.allowed != nil {
		if _, ok := v.allowed[edge.Relation]; !ok {
			return false
		}
	}
	if v.prefix == "" {
		return true
	}
	return hasPrefix(edge.Source, v.prefix) && hasPrefix(edge.Target, v.prefix)
}

func (v *View) includesNode(node *Node) bool {
	return v.prefix == "" || hasPrefix(node.ID, v.prefix)
}

func (v *View) filterEdges(edges []*Edge) []*Edge {
	if v.allowed == nil && v.prefix == "" {
		return edges
	}
	result := make([]*Edge, 0, len(edges))
	for _, edge := range edges {
		if v.IncludesEdge(edge) {
			result = append(result, edge)
		}
	}
	return result
}

// CURIEPrefix returns the part of id before the first ':', or "" when id
// has no namespace separator.
func CURIEPrefix(id string) string {
	prefix, _, found := strings.Cut(id, ":")
	if !found {
		return ""
	}
	return prefix
}

func hasPrefix(id, prefix string) bool {
	return CURIEPrefix(id) == prefix
}
