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
	"strings"
)

// LevelOptions configures a level query.
type LevelOptions struct {
	// Direction is the direction of descent from the roots. Down (the
	// default) starts at ontology roots, nodes with no outgoing edges, and
	// walks incoming edges towards children. Up starts at nodes with no
	// incoming edges and walks outgoing edges.
	Direction Direction

	// Roots overrides the computed root set. Ids outside the view are
	// ignored.
	Roots []string

	// Prefix restricts the computed root set to nodes with this CURIE
	// prefix, judged over the prefix-restricted view, and keeps only
	// result ids with the prefix. Distances are still measured over the
	// whole view.
	Prefix string
}

// Roots returns the root set of the view for descent in direction dir.
//
// Description:
//
//	For Down, a root has no outgoing edges but at least one incoming edge.
//	For Up, a root has no incoming edges but at least one outgoing edge.
//	Isolated nodes are never roots. Roots are returned in view order.
func Roots(v *View, dir Direction) []string {
	if dir != Up {
		dir = Down
	}
	var roots []string
	for node := range v.Nodes() {
		out := len(v.Out(node.ID))
		in := len(v.In(node.ID))
		switch dir {
		case Down:
			if out == 0 && in > 0 {
				roots = append(roots, node.ID)
			}
		case Up:
			if in == 0 && out > 0 {
				roots = append(roots, node.ID)
			}
		}
	}
	return roots
}

// Level returns every node whose shortest distance from the root set is
// exactly level.
//
// Description:
//
//	Distances come from one multi-source BFS over the view starting at all
//	roots at distance 0. Level 0 is the root set itself. Nodes unreachable
//	from every root are excluded.
//
// Outputs:
//
//	[]string - Matching ids in view order. Empty when the view has roots
//	           but none with opts.Prefix.
//	error - *InvalidQueryError when level is negative or the view has no
//	        roots.
//
// Example:
//
//	// For root -> a -> b -> c:
//	ids, _ := Level(Filter(g), 2, LevelOptions{Direction: Up}) // [b]
func Level(v *View, level int, opts LevelOptions) ([]string, error) {
	if level < 0 {
		return nil, NewInvalidQueryError(fmt.Sprintf("level=%d", level), "level must not be negative", nil)
	}

	dir := opts.Direction
	if dir != Up {
		dir = Down
	}

	prefix := strings.TrimSuffix(opts.Prefix, ":")

	var roots []string
	if len(opts.Roots) > 0 {
		for _, id := range opts.Roots {
			if v.HasNode(id) {
				roots = append(roots, id)
			}
		}
	} else {
		roots = Roots(v, dir)
		if prefix != "" && len(roots) > 0 {
			// A prefix root may still have parents outside the prefix.
			roots = Roots(v.WithPrefix(prefix), dir)
			if len(roots) == 0 {
				return []string{}, nil
			}
		}
	}
	if len(roots) == 0 {
		return nil, NewInvalidQueryError(fmt.Sprintf("level=%d", level), "no roots in view", nil)
	}

	dist := make(map[string]int, len(roots))
	frontier := make([]string, 0, len(roots))
	for _, id := range roots {
		if _, ok := dist[id]; ok {
			continue
		}
		dist[id] = 0
		frontier = append(frontier, id)
	}

	for depth := 0; depth < level && len(frontier) > 0; depth++ {
		var next []string
		for _, id := range frontier {
			for _, n := range Neighbors(v, id, dir) {
				if _, ok := dist[n]; ok {
					continue
				}
				dist[n] = depth + 1
				next = append(next, n)
			}
		}
		frontier = next
	}

	result := make([]string, 0)
	for node := range v.Nodes() {
		d, ok := dist[node.ID]
		if !ok || d != level {
			continue
		}
		if prefix != "" && !hasPrefix(node.ID, prefix) {
			continue
		}
		result = append(result, node.ID)
	}
	return result, nil
}
