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
	"fmt"
	"iter"
	"maps"
	"slices"
	"time"
)

// Default configuration values.
const (
	// DefaultMaxNodes is the default maximum number of nodes a graph can hold.
	DefaultMaxNodes = 2_000_000

	// DefaultMaxEdges is the default maximum number of edges a graph can hold.
	DefaultMaxEdges = 10_000_000
)

// Well-known relation types. Relations are open string tags; these are only
// the ones ontology loaders normalise to.
const (
	RelationIsA    = "is_a"
	RelationPartOf = "part_of"
)

// GraphState represents the lifecycle state of the graph.
type GraphState int

const (
	// GraphStateBuilding indicates the graph is accepting AddNode/AddEdge calls.
	GraphStateBuilding GraphState = iota

	// GraphStateReadOnly indicates the graph is frozen and read-only.
	GraphStateReadOnly
)

// String returns the string representation of the GraphState.
func (s GraphState) String() string {
	switch s {
	case GraphStateBuilding:
		return "building"
	case GraphStateReadOnly:
		return "readonly"
	default:
		return "unknown"
	}
}

// Edge is a typed, directed relation: Source is-related-to Target.
//
// Edge is a comparable value type; two edges are the same triple when
// their fields are equal.
type Edge struct {
	Source   string `json:"sub"`
	Target   string `json:"obj"`
	Relation string `json:"pred"`
}

// String renders the edge as "source -relation-> target".
func (e Edge) String() string {
	return fmt.Sprintf("%s -%s-> %s", e.Source, e.Relation, e.Target)
}

// Node is an ontology term.
//
// Nodes are owned by their Graph. Label and Meta may be replaced by a later
// AddNode with the same id while building; after Freeze() they are read-only.
type Node struct {
	// ID is the unique identifier, usually a CURIE such as "GO:0008150".
	ID string

	// Label is the display name. May be empty for stub nodes.
	Label string

	// Meta holds arbitrary term metadata (definition, synonyms, ...).
	// Never nil.
	Meta map[string]any

	// Outgoing contains edges where this node is the source.
	Outgoing []*Edge

	// Incoming contains edges where this node is the target.
	Incoming []*Edge

	// index is the insertion position; stable for the life of the graph.
	index int
}

// Index returns the node's insertion position in its graph.
func (n *Node) Index() int {
	return n.index
}

// GraphOptions configures Graph behavior and limits.
type GraphOptions struct {
	// MaxNodes is the maximum number of nodes the graph can hold.
	MaxNodes int

	// MaxEdges is the maximum number of distinct edges the graph can hold.
	MaxEdges int
}

// DefaultGraphOptions returns the default graph limits.
func DefaultGraphOptions() GraphOptions {
	return GraphOptions{
		MaxNodes: DefaultMaxNodes,
		MaxEdges: DefaultMaxEdges,
	}
}

// GraphOption is a functional option for configuring Graph.
type GraphOption func(*GraphOptions)

// WithMaxNodes sets the maximum number of nodes the graph can hold.
func WithMaxNodes(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxNodes = n
	}
}

// WithMaxEdges sets the maximum number of edges the graph can hold.
func WithMaxEdges(n int) GraphOption {
	return func(o *GraphOptions) {
		o.MaxEdges = n
	}
}

// Graph is an in-memory, directed, edge-labelled ontology graph.
//
// Thread Safety:
//
//	Graph is NOT safe for concurrent use during building. After Freeze() is
//	called it can be read from multiple goroutines.
//
// Ordering:
//
//	Nodes iterate in insertion order. Upserting an existing id keeps its
//	original position, so iteration order is stable across calls and across
//	re-definitions of a term.
type Graph struct {
	// Name identifies the ontology, e.g. "go" or a file path.
	Name string

	// nodes maps node ID to Node.
	nodes map[string]*Node

	// order holds nodes in insertion order.
	order []*Node

	// edges holds distinct edges in insertion order.
	edges []*Edge

	// edgeSet deduplicates (source, target, relation) triples.
	edgeSet map[Edge]struct{}

	// relationCounts counts edges per relation type.
	relationCounts map[string]int

	state   GraphState
	options GraphOptions

	// BuiltAtMilli is the Unix timestamp in milliseconds when Freeze() was called.
	// Zero if the graph has not been frozen.
	BuiltAtMilli int64
}

// NewGraph creates a new empty graph.
//
// Description:
//
//	Creates a graph in the Building state, ready to accept AddNode and
//	AddEdge calls. Freeze it before sharing it between goroutines.
//
// Example:
//
//	g := NewGraph("go", WithMaxNodes(100_000))
//	_, _ = g.AddNode("GO:0008150", "biological_process", nil)
//	_ = g.AddEdge("GO:0009987", "GO:0008150", RelationIsA)
//	g.Freeze()
func NewGraph(name string, opts ...GraphOption) *Graph {
	options := DefaultGraphOptions()
	for _, opt := range opts {
		opt(&options)
	}

	return &Graph{
		Name:           name,
		nodes:          make(map[string]*Node),
		order:          make([]*Node, 0),
		edges:          make([]*Edge, 0),
		edgeSet:        make(map[Edge]struct{}),
		relationCounts: make(map[string]int),
		state:          GraphStateBuilding,
		options:        options,
	}
}

// State returns the current lifecycle state of the graph.
func (g *Graph) State() GraphState {
	return g.state
}

// IsFrozen returns true if the graph is in read-only mode.
func (g *Graph) IsFrozen() bool {
	return g.state == GraphStateReadOnly
}

// Freeze transitions the graph to read-only mode. Irreversible.
func (g *Graph) Freeze() {
	if g.state == GraphStateReadOnly {
		return
	}
	g.state = GraphStateReadOnly
	g.BuiltAtMilli = time.Now().UnixMilli()
}

// Options returns the graph's configured limits.
func (g *Graph) Options() GraphOptions {
	return g.options
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.order)
}

// EdgeCount returns the number of distinct edges in the graph.
func (g *Graph) EdgeCount() int {
	return len(g.edges)
}

// AddNode adds or updates a term.
//
// Description:
//
//	If id is new, a node is appended in insertion order. If id already
//	exists, its label and metadata are replaced (last write wins) and it
//	keeps its original position. Terms are often referenced by an edge
//	before their own stanza is read, so re-adding is not an error.
//
// Inputs:
//
//	id - Node id. Must not be empty.
//	label - Display label. May be empty.
//	meta - Metadata. Copied; nil is stored as an empty map.
//
// Outputs:
//
//	*Node - The created or updated node.
//	error - ErrGraphFrozen, ErrInvalidNode or ErrMaxNodesExceeded.
func (g *Graph) AddNode(id, label string, meta map[string]any) (*Node, error) {
	if g.state == GraphStateReadOnly {
		return nil, ErrGraphFrozen
	}
	if id == "" {
		return nil, fmt.Errorf("%w: empty id", ErrInvalidNode)
	}

	if node, exists := g.nodes[id]; exists {
		node.Label = label
		node.Meta = cloneMeta(meta)
		return node, nil
	}

	if len(g.order) >= g.options.MaxNodes {
		return nil, ErrMaxNodesExceeded
	}

	return g.insertNode(id, label, cloneMeta(meta)), nil
}

// AddEdge adds a typed edge source -> target.
//
// Description:
//
//	Missing endpoints are created as stub nodes with empty label and
//	metadata. A (source, target, relation) triple that is already present
//	is ignored.
//
// Outputs:
//
//	error - ErrGraphFrozen, ErrInvalidNode (empty endpoint id),
//	        ErrMaxNodesExceeded or ErrMaxEdgesExceeded.
func (g *Graph) AddEdge(source, target, relation string) error {
	if g.state == GraphStateReadOnly {
		return ErrGraphFrozen
	}
	if source == "" || target == "" {
		return fmt.Errorf("%w: edge %q -> %q has an empty endpoint", ErrInvalidNode, source, target)
	}

	key := Edge{Source: source, Target: target, Relation: relation}
	if _, dup := g.edgeSet[key]; dup {
		return nil
	}
	if len(g.edges) >= g.options.MaxEdges {
		return ErrMaxEdgesExceeded
	}

	stubs := 0
	if _, ok := g.nodes[source]; !ok {
		stubs++
	}
	if _, ok := g.nodes[target]; !ok && target != source {
		stubs++
	}
	if len(g.order)+stubs > g.options.MaxNodes {
		return ErrMaxNodesExceeded
	}

	g.insertEdge(key)
	return nil
}

// insertNode appends a node without limit or state checks.
func (g *Graph) insertNode(id, label string, meta map[string]any) *Node {
	node := &Node{
		ID:       id,
		Label:    label,
		Meta:     meta,
		Outgoing: make([]*Edge, 0),
		Incoming: make([]*Edge, 0),
		index:    len(g.order),
	}
	g.nodes[id] = node
	g.order = append(g.order, node)
	return node
}

// insertEdge adds a new edge, creating stub endpoints, without checks.
func (g *Graph) insertEdge(key Edge) {
	src, ok := g.nodes[key.Source]
	if !ok {
		src = g.insertNode(key.Source, "", map[string]any{})
	}
	dst, ok := g.nodes[key.Target]
	if !ok {
		dst = g.insertNode(key.Target, "", map[string]any{})
	}

	edge := &key
	g.edgeSet[key] = struct{}{}
	g.edges = append(g.edges, edge)
	g.relationCounts[key.Relation]++
	src.Outgoing = append(src.Outgoing, edge)
	dst.Incoming = append(dst.Incoming, edge)
}

// GetNode retrieves a node by its ID.
func (g *Graph) GetNode(id string) (*Node, bool) {
	node, ok := g.nodes[id]
	return node, ok
}

// HasNode reports whether id is a node of the graph.
func (g *Graph) HasNode(id string) bool {
	_, ok := g.nodes[id]
	return ok
}

// Nodes returns an iterator over all nodes in insertion order.
//
// Example:
//
//	for node := range g.Nodes() {
//	    fmt.Println(node.ID, node.Label)
//	}
func (g *Graph) Nodes() iter.Seq[*Node] {
	return func(yield func(*Node) bool) {
		for _, node := range g.order {
			if !yield(node) {
				return
			}
		}
	}
}

// NodeIDs returns all node ids in insertion order.
func (g *Graph) NodeIDs() []string {
	ids := make([]string, len(g.order))
	for i, node := range g.order {
		ids[i] = node.ID
	}
	return ids
}

// Edges returns the edges whose relation is in relations, in insertion
// order. With no relations, all edges are returned.
func (g *Graph) Edges(relations ...string) []Edge {
	allowed := relationSet(relations)
	result := make([]Edge, 0, len(g.edges))
	for _, edge := range g.edges {
		if allowed != nil {
			if _, ok := allowed[edge.Relation]; !ok {
				continue
			}
		}
		result = append(result, *edge)
	}
	return result
}

// HasEdge reports whether the exact triple is present.
func (g *Graph) HasEdge(source, target, relation string) bool {
	_, ok := g.edgeSet[Edge{Source: source, Target: target, Relation: relation}]
	return ok
}

// Relations returns the distinct relation types present, sorted.
func (g *Graph) Relations() []string {
	return slices.Sorted(maps.Keys(g.relationCounts))
}

// GraphStats contains summary statistics about a graph.
type GraphStats struct {
	Name              string         `json:"name"`
	NodeCount         int            `json:"node_count"`
	EdgeCount         int            `json:"edge_count"`
	EdgesByRelation   map[string]int `json:"edges_by_relation"`
	MaxNodes          int            `json:"max_nodes"`
	MaxEdges          int            `json:"max_edges"`
	State             GraphState     `json:"state"`
	BuiltAtMilli      int64          `json:"built_at_milli"`
	StubNodeCount     int            `json:"stub_node_count"`
	LabelledNodeCount int            `json:"labelled_node_count"`
}

// Stats returns statistics about the graph.
//
// Complexity: O(V + R) where R is the number of relation types.
func (g *Graph) Stats() GraphStats {
	stats := GraphStats{
		Name:            g.Name,
		NodeCount:       len(g.order),
		EdgeCount:       len(g.edges),
		EdgesByRelation: maps.Clone(g.relationCounts),
		MaxNodes:        g.options.MaxNodes,
		MaxEdges:        g.options.MaxEdges,
		State:           g.state,
		BuiltAtMilli:    g.BuiltAtMilli,
	}
	for _, node := range g.order {
		if node.Label != "" {
			stats.LabelledNodeCount++
		} else if len(node.Meta) == 0 {
			stats.StubNodeCount++
		}
	}
	return stats
}

func cloneMeta(meta map[string]any) map[string]any {
	if meta == nil {
		return map[string]any{}
	}
	return maps.Clone(meta)
}

// relationSet converts a relation list into a set. An empty list returns
// nil, meaning "all relations".
func relationSet(relations []string) map[string]struct{} {
	if len(relations) == 0 {
		return nil
	}
	set := make(map[string]struct{}, len(relations))
	for _, r := range relations {
		set[r] = struct{}{}
	}
	return set
}
