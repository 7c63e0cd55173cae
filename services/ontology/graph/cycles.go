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
	"slices"
)

// denseView is a compact adjacency list over a view: node i is the i-th
// node in view order, adj[i] holds distinct forward neighbours ascending.
type denseView struct {
	ids []string
	pos map[string]int
	adj [][]int
}

func newDenseView(v *View) *denseView {
	d := &denseView{pos: make(map[string]int)}
	for node := range v.Nodes() {
		d.pos[node.ID] = len(d.ids)
		d.ids = append(d.ids, node.ID)
	}
	d.adj = make([][]int, len(d.ids))
	for i, id := range d.ids {
		var targets []int
		for _, edge := range v.Out(id) {
			if j, ok := d.pos[edge.Target]; ok {
				targets = append(targets, j)
			}
		}
		slices.Sort(targets)
		d.adj[i] = slices.Compact(targets)
	}
	return d
}

// stronglyConnected returns the strongly connected components reachable from
// roots, restricted to vertices accepted by include. Iterative Tarjan; a
// component is emitted only after every component it reaches.
func stronglyConnected(adj [][]int, roots []int, include func(int) bool) [][]int {
	n := len(adj)
	index := make([]int, n)
	low := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}

	type frame struct{ v, next int }
	var (
		stack []int
		sccs  [][]int
		count int
	)

	visit := func(v int) []frame {
		index[v], low[v] = count, count
		count++
		stack = append(stack, v)
		onStack[v] = true
		return []frame{{v: v}}
	}

	for _, root := range roots {
		if !include(root) || index[root] >= 0 {
			continue
		}
		calls := visit(root)
		for len(calls) > 0 {
			top := len(calls) - 1
			v := calls[top].v
			if calls[top].next < len(adj[v]) {
				w := adj[v][calls[top].next]
				calls[top].next++
				if !include(w) {
					continue
				}
				if index[w] < 0 {
					calls = append(calls, visit(w)...)
				} else if onStack[w] {
					low[v] = min(low[v], index[w])
				}
				continue
			}

			if low[v] == index[v] {
				var comp []int
				for {
					w := stack[len(stack)-1]
					stack = stack[:len(stack)-1]
					onStack[w] = false
					comp = append(comp, w)
					if w == v {
						break
					}
				}
				sccs = append(sccs, comp)
			}
			calls = calls[:top]
			if top > 0 {
				parent := calls[top-1].v
				low[parent] = min(low[parent], low[v])
			}
		}
	}
	return sccs
}

// HasCycle reports whether the view contains any directed cycle, including
// self loops.
func HasCycle(v *View) bool {
	d := newDenseView(v)
	for i, targets := range d.adj {
		if _, found := slices.BinarySearch(targets, i); found {
			return true
		}
	}
	all := make([]int, len(d.ids))
	for i := range all {
		all[i] = i
	}
	for _, comp := range stronglyConnected(d.adj, all, func(int) bool { return true }) {
		if len(comp) > 1 {
			return true
		}
	}
	return false
}

// Cycles enumerates every simple cycle in the view.
//
// Description:
//
//	Uses Johnson's algorithm. Vertices are taken in view order; for each
//	start vertex s the search runs inside the strongly connected component
//	of s in the subgraph of vertices at or after s, so every cycle is
//	reported once, beginning at its earliest node in view order. Self loops
//	are reported as one-node cycles. Parallel edges with different
//	relations do not produce duplicate cycles.
//
//	The sequence is lazy and restartable: nothing is computed until it is
//	ranged over, each range starts from scratch, and breaking out of the
//	loop stops the search. The number of cycles can be exponential, so
//	callers should cap consumption on dense graphs.
//
// Outputs:
//
//	iter.Seq[[]string] - Each element is a cycle as a node sequence without
//	                     repeating the first node at the end. An acyclic
//	                     view yields nothing.
//
// Example:
//
//	for cycle := range graph.Cycles(view) {
//	    fmt.Println(strings.Join(cycle, " -> "))
//	}
func Cycles(v *View) iter.Seq[[]string] {
	return func(yield func([]string) bool) {
		d := newDenseView(v)
		j := &johnson{d: d, yield: yield}
		for s := range d.ids {
			if !j.search(s) {
				return
			}
		}
	}
}

// johnson holds the state of one enumeration.
type johnson struct {
	d     *denseView
	yield func([]string) bool

	start   int
	inComp  map[int]bool
	blocked map[int]bool
	blockBy map[int]map[int]bool
	path    []int
	stopped bool
}

// search enumerates the cycles whose least vertex is s. Returns false once
// the consumer has stopped.
func (j *johnson) search(s int) bool {
	sccs := stronglyConnected(j.d.adj, []int{s}, func(w int) bool { return w >= s })
	if len(sccs) == 0 {
		return true
	}
	// The root's component is completed last.
	comp := sccs[len(sccs)-1]
	if len(comp) == 1 {
		if _, self := slices.BinarySearch(j.d.adj[s], s); !self {
			return true
		}
	}

	j.start = s
	j.inComp = make(map[int]bool, len(comp))
	for _, w := range comp {
		j.inComp[w] = true
	}
	j.blocked = make(map[int]bool, len(comp))
	j.blockBy = make(map[int]map[int]bool, len(comp))
	j.path = j.path[:0]

	j.circuit(s)
	return !j.stopped
}

func (j *johnson) circuit(v int) bool {
	found := false
	j.path = append(j.path, v)
	j.blocked[v] = true

	for _, w := range j.d.adj[v] {
		if j.stopped {
			break
		}
		if !j.inComp[w] {
			continue
		}
		if w == j.start {
			cycle := make([]string, len(j.path))
			for i, p := range j.path {
				cycle[i] = j.d.ids[p]
			}
			if !j.yield(cycle) {
				j.stopped = true
				break
			}
			found = true
		} else if !j.blocked[w] {
			if j.circuit(w) {
				found = true
			}
		}
	}

	if found {
		j.unblock(v)
	} else {
		for _, w := range j.d.adj[v] {
			if !j.inComp[w] {
				continue
			}
			if j.blockBy[w] == nil {
				j.blockBy[w] = make(map[int]bool)
			}
			j.blockBy[w][v] = true
		}
	}

	j.path = j.path[:len(j.path)-1]
	return found
}

func (j *johnson) unblock(u int) {
	stack := []int{u}
	for len(stack) > 0 {
		x := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !j.blocked[x] {
			continue
		}
		j.blocked[x] = false
		for w := range j.blockBy[x] {
			stack = append(stack, w)
		}
		delete(j.blockBy, x)
	}
}

// CollectCycles drains at most limit cycles from the view. limit <= 0 means
// no limit. The second result reports whether more cycles remained.
func CollectCycles(v *View, limit int) ([][]string, bool) {
	var result [][]string
	for cycle := range Cycles(v) {
		if limit > 0 && len(result) == limit {
			return result, true
		}
		result = append(result, cycle)
	}
	return result, false
}
