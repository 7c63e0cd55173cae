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
	"cmp"
	"slices"
)

// Slim computes the minimal subgraph of the view that preserves
// reachability among the query nodes.
//
// Description:
//
//	The result satisfies two properties for every ordered pair (a, b) of
//	distinct query nodes:
//
//	  - b is reachable from a in the result iff it is in the view.
//	  - Removing any single edge of the result breaks at least one such
//	    reachability fact.
//
//	Query nodes with no relationship to another query node are kept as
//	isolated nodes. Every other node lies on a path between two distinct
//	query nodes.
//
// Algorithm:
//
//  1. Candidates: query nodes plus nodes reachable from one query node and
//     reaching a different one. Parallel edges between two candidates
//     collapse to one edge carrying the lexicographically lowest relation.
//  2. Transitive reduction: edges are visited in (source, target) view
//     order; (x, y) is dropped if y is still reachable from x without it.
//  3. Witness paths: for each reachable query pair a shortest path is kept,
//     expanding neighbours in ascending id order so ties go to the lowest
//     id at each step.
//  4. Minimisation: each remaining edge, in the same order, is dropped if
//     every query reachability fact still holds without it.
//  5. Nodes left with no edges are dropped unless they are query nodes.
//
// Inputs:
//
//	v - The filtered view.
//	query - Query node ids. Ids absent from the graph are ignored; ids in
//	        the graph but outside the view are kept as isolated nodes.
//
// Outputs:
//
//	*Graph - A new frozen graph. Nodes are in view order with their labels
//	         and metadata; edges are in (source, target) view order.
//
// Complexity:
//
//	O(V + E) for candidates and witnesses per query node, plus
//	O(E_c * (V_c + E_c)) for reduction and O(E_w * Q * (V_c + E_w)) for
//	minimisation, where _c is the candidate subgraph and _w the witness
//	union. Slims are small in practice.
func Slim(v *View, query []string) *Graph {
	g := v.Graph()
	result := NewGraph(g.Name+"-slim", WithMaxNodes(g.options.MaxNodes), WithMaxEdges(g.options.MaxEdges))

	queryIDs := make([]string, 0, len(query))
	isQuery := make(map[string]bool, len(query))
	for _, id := range query {
		if isQuery[id] || !g.HasNode(id) {
			continue
		}
		isQuery[id] = true
		queryIDs = append(queryIDs, id)
	}

	s := newSlimmer(v, queryIDs)
	s.reduce()
	s.keepWitnesses()
	s.minimise()

	keep := make(map[int]bool, len(queryIDs))
	for _, e := range s.edges {
		keep[e.from] = true
		keep[e.to] = true
	}

	for _, node := range g.order {
		if isQuery[node.ID] {
			result.insertNode(node.ID, node.Label, cloneMeta(node.Meta))
			continue
		}
		if i, ok := s.d.pos[node.ID]; ok && keep[i] {
			result.insertNode(node.ID, node.Label, cloneMeta(node.Meta))
		}
	}
	for _, e := range s.edges {
		result.insertEdge(Edge{Source: s.d.ids[e.from], Target: s.d.ids[e.to], Relation: e.relation})
	}

	result.Freeze()
	return result
}

// slimEdge is a candidate edge between dense indices.
type slimEdge struct {
	from, to int
	relation string
}

type slimmer struct {
	d *denseView

	// query holds dense indices of query nodes inside the view.
	query []int

	// facts[i] is the set of query indices reachable from query[i].
	facts []map[int]bool

	// edges is the current edge set, kept sorted by (from, to).
	edges []slimEdge
}

func newSlimmer(v *View, queryIDs []string) *slimmer {
	d := newDenseView(v)
	s := &slimmer{d: d}
	for _, id := range queryIDs {
		if i, ok := d.pos[id]; ok {
			s.query = append(s.query, i)
		}
	}

	n := len(d.ids)
	radj := make([][]int, n)
	for i, targets := range d.adj {
		for _, j := range targets {
			radj[j] = append(radj[j], i)
		}
	}

	// For each node, up to two distinct query nodes reaching it and up to
	// two it reaches are enough to decide whether it sits between two
	// distinct query nodes.
	from := make([][]int, n)
	to := make([][]int, n)
	s.facts = make([]map[int]bool, len(s.query))
	for qi, q := range s.query {
		fwd := bfsDense(d.adj, q)
		s.facts[qi] = make(map[int]bool)
		for x := range fwd {
			if len(from[x]) < 2 {
				from[x] = append(from[x], q)
			}
		}
		for x := range bfsDense(radj, q) {
			if len(to[x]) < 2 {
				to[x] = append(to[x], q)
			}
		}
		for _, other := range s.query {
			if other != q && fwd[other] {
				s.facts[qi][other] = true
			}
		}
	}

	candidate := make([]bool, n)
	for _, q := range s.query {
		candidate[q] = true
	}
	for x := 0; x < n; x++ {
		if candidate[x] {
			continue
		}
		candidate[x] = betweenDistinct(from[x], to[x])
	}

	for i, targets := range d.adj {
		if !candidate[i] {
			continue
		}
		for _, j := range targets {
			if !candidate[j] || i == j {
				continue
			}
			s.edges = append(s.edges, slimEdge{from: i, to: j, relation: lowestRelation(v, d.ids[i], d.ids[j])})
		}
	}
	slices.SortFunc(s.edges, compareSlimEdges)
	return s
}

// betweenDistinct reports whether some a in from and b in to differ.
func betweenDistinct(from, to []int) bool {
	if len(from) == 0 || len(to) == 0 {
		return false
	}
	for _, a := range from {
		for _, b := range to {
			if a != b {
				return true
			}
		}
	}
	return false
}

func lowestRelation(v *View, source, target string) string {
	best := ""
	first := true
	for _, edge := range v.Out(source) {
		if edge.Target != target {
			continue
		}
		if first || edge.Relation < best {
			best = edge.Relation
			first = false
		}
	}
	return best
}

func compareSlimEdges(a, b slimEdge) int {
	if c := cmp.Compare(a.from, b.from); c != 0 {
		return c
	}
	return cmp.Compare(a.to, b.to)
}

// reduce removes every edge whose target stays reachable without it.
// Each removal preserves full reachability, so query facts are unchanged.
func (s *slimmer) reduce() {
	for i := 0; i < len(s.edges); {
		e := s.edges[i]
		if s.reachableWithout(e.from, e.to, i) {
			s.edges = slices.Delete(s.edges, i, i+1)
			continue
		}
		i++
	}
}

// keepWitnesses replaces the edge set with the union of canonical shortest
// paths between reachable query pairs.
func (s *slimmer) keepWitnesses() {
	adj := s.adjacency(-1)
	// Neighbours ascending by id, not by view position.
	for i := range adj {
		slices.SortFunc(adj[i], func(a, b int) int { return cmp.Compare(s.d.ids[a], s.d.ids[b]) })
	}

	keep := make(map[[2]int]bool)
	for qi, a := range s.query {
		if len(s.facts[qi]) == 0 {
			continue
		}
		parent := map[int]int{a: a}
		queue := []int{a}
		for head := 0; head < len(queue); head++ {
			x := queue[head]
			for _, y := range adj[x] {
				if _, ok := parent[y]; ok {
					continue
				}
				parent[y] = x
				queue = append(queue, y)
			}
		}
		for b := range s.facts[qi] {
			for x := b; x != a; x = parent[x] {
				keep[[2]int{parent[x], x}] = true
			}
		}
	}

	s.edges = slices.DeleteFunc(s.edges, func(e slimEdge) bool {
		return !keep[[2]int{e.from, e.to}]
	})
}

// minimise drops edges that no query fact depends on.
func (s *slimmer) minimise() {
	for i := 0; i < len(s.edges); {
		if s.factsHoldWithout(i) {
			s.edges = slices.Delete(s.edges, i, i+1)
			continue
		}
		i++
	}
}

// adjacency builds forward adjacency from the current edge set, skipping
// the edge at index skip (-1 for none).
func (s *slimmer) adjacency(skip int) map[int][]int {
	adj := make(map[int][]int)
	for i, e := range s.edges {
		if i == skip {
			continue
		}
		adj[e.from] = append(adj[e.from], e.to)
	}
	return adj
}

func (s *slimmer) reachableWithout(from, to, skip int) bool {
	adj := s.adjacency(skip)
	return bfsMap(adj, from)[to]
}

func (s *slimmer) factsHoldWithout(skip int) bool {
	adj := s.adjacency(skip)
	for qi, a := range s.query {
		if len(s.facts[qi]) == 0 {
			continue
		}
		reached := bfsMap(adj, a)
		for b := range s.facts[qi] {
			if !reached[b] {
				return false
			}
		}
	}
	return true
}

// bfsDense returns the nodes reachable from start over a dense adjacency
// list, start included.
func bfsDense(adj [][]int, start int) map[int]bool {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for head := 0; head < len(queue); head++ {
		for _, y := range adj[queue[head]] {
			if !seen[y] {
				seen[y] = true
				queue = append(queue, y)
			}
		}
	}
	return seen
}

func bfsMap(adj map[int][]int, start int) map[int]bool {
	seen := map[int]bool{start: true}
	queue := []int{start}
	for head := 0; head < len(queue); head++ {
		for _, y := range adj[queue[head]] {
			if !seen[y] {
				seen[y] = true
				queue = append(queue, y)
			}
		}
	}
	return seen
}

// SlimEdges is a convenience returning the edges of Slim(v, query) sorted by
// (source, target, relation).
func SlimEdges(v *View, query []string) []Edge {
	edges := Slim(v, query).Edges()
	slices.SortFunc(edges, func(a, b Edge) int {
		return cmp.Or(cmp.Compare(a.Source, b.Source), cmp.Compare(a.Target, b.Target), cmp.Compare(a.Relation, b.Relation))
	})
	return edges
}
