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

// Direction selects which way edges are followed.
//
// Up follows edges forward (source to target). With is_a edges pointing
// from child to parent this walks towards ancestors. Down follows edges
// backward and walks towards descendants. Callers invert the convention
// per query, so no operation hard-codes it.
type Direction int

const (
	// Up follows outgoing edges.
	Up Direction = iota + 1

	// Down follows incoming edges.
	Down
)

// String returns "up", "down" or "unknown".
func (d Direction) String() string {
	switch d {
	case Up:
		return "up"
	case Down:
		return "down"
	default:
		return "unknown"
	}
}

// Reverse returns the opposite direction.
func (d Direction) Reverse() Direction {
	if d == Up {
		return Down
	}
	return Up
}

// ParseDirection parses "u"/"up" or "d"/"down".
func ParseDirection(s string) (Direction, error) {
	switch strings.ToLower(s) {
	case "u", "up":
		return Up, nil
	case "d", "down":
		return Down, nil
	default:
		return 0, NewInvalidQueryError(s, "direction must be up or down", nil)
	}
}

// Directions is a pair of traversal flags.
type Directions struct {
	Up   bool
	Down bool
}

// ParseDirections parses a direction flag made of the letters u and d,
// e.g. "u", "d", "ud". The empty string means neither direction.
func ParseDirections(s string) (Directions, error) {
	var dirs Directions
	for _, r := range strings.ToLower(s) {
		switch r {
		case 'u':
			dirs.Up = true
		case 'd':
			dirs.Down = true
		default:
			return Directions{}, NewInvalidQueryError(s, fmt.Sprintf("unknown direction %q", r), nil)
		}
	}
	return dirs, nil
}

// String renders the flags the way ParseDirections reads them.
func (d Directions) String() string {
	var b strings.Builder
	if d.Up {
		b.WriteByte('u')
	}
	if d.Down {
		b.WriteByte('d')
	}
	return b.String()
}

// Neighbors returns the ids adjacent to id in the given direction within
// the view, in edge insertion order. Duplicates from parallel edges with
// different relations are kept.
func Neighbors(v *View, id string, dir Direction) []string {
	var result []string
	if dir == Up {
		for _, edge := range v.Out(id) {
			result = append(result, edge.Target)
		}
		return result
	}
	for _, edge := range v.In(id) {
		result = append(result, edge.Source)
	}
	return result
}

// Traverse returns the seeds plus every node reachable from them.
//
// Description:
//
//	up includes everything reachable by following edges forward (Up);
//	down includes everything reachable following edges backward (Down).
//	Both gives the union; neither returns only the seeds. Each direction
//	is a single multi-source BFS sharing one visited set across all seeds,
//	so each node is expanded at most once per direction and cycles
//	terminate.
//
// Inputs:
//
//	v - The filtered view.
//	seeds - Seed ids. Duplicates are dropped. Ids absent from the graph are
//	        dropped; ids in the graph but outside a prefix-restricted view
//	        are kept but not expanded.
//
// Outputs:
//
//	[]string - Seeds first (in given order), then nodes in BFS discovery
//	           order, up before down. No duplicates.
//
// Complexity: O(V + E) over the view per direction.
func Traverse(v *View, seeds []string, up, down bool) []string {
	starts, seen := traversalSeeds(v, seeds)
	result := append([]string(nil), starts...)
	if up {
		result = bfsAppend(v, starts, result, seen, Up)
	}
	if down {
		result = bfsAppend(v, starts, result, seen, Down)
	}
	return result
}

// TraverseDirections is Traverse with a Directions value.
func TraverseDirections(v *View, seeds []string, dirs Directions) []string {
	return Traverse(v, seeds, dirs.Up, dirs.Down)
}

// traversalSeeds dedups seeds and drops ids unknown to the graph.
func traversalSeeds(v *View, seeds []string) ([]string, map[string]bool) {
	result := make([]string, 0, len(seeds))
	seen := make(map[string]bool, len(seeds))
	for _, id := range seeds {
		if seen[id] || !v.g.HasNode(id) {
			continue
		}
		seen[id] = true
		result = append(result, id)
	}
	return result, seen
}

// bfsAppend runs one multi-source BFS from starts in direction dir and
// appends nodes not yet in seen to result. The visited set is local to the
// direction: an ancestor found going up is not expanded going down.
func bfsAppend(v *View, starts, result []string, seen map[string]bool, dir Direction) []string {
	visited := make(map[string]bool, len(starts))
	queue := make([]string, 0, len(starts))
	for _, id := range starts {
		visited[id] = true
		queue = append(queue, id)
	}

	for head := 0; head < len(queue); head++ {
		for _, next := range Neighbors(v, queue[head], dir) {
			if visited[next] {
				continue
			}
			visited[next] = true
			queue = append(queue, next)
			if !seen[next] {
				seen[next] = true
				result = append(result, next)
			}
		}
	}
	return result
}

// Reachable reports whether to can be reached from from by following
// edges forward (Up) in the view. A node always reaches itself.
func Reachable(v *View, from, to string) bool {
	if from == to {
		return v.HasNode(from)
	}
	if !v.HasNode(from) || !v.HasNode(to) {
		return false
	}
	visited := map[string]bool{from: true}
	queue := []string{from}
	for head := 0; head < len(queue); head++ {
		for _, edge := range v.Out(queue[head]) {
			if edge.Target == to {
				return true
			}
			if !visited[edge.Target] {
				visited[edge.Target] = true
				queue = append(queue, edge.Target)
			}
		}
	}
	return false
}

// ReachableSet returns every node reachable from id in direction dir,
// excluding id itself unless it lies on a cycle.
func ReachableSet(v *View, id string, dir Direction) map[string]bool {
	reached := make(map[string]bool)
	queue := []string{id}
	for head := 0; head < len(queue); head++ {
		for _, next := range Neighbors(v, queue[head], dir) {
			if reached[next] {
				continue
			}
			reached[next] = true
			queue = append(queue, next)
		}
	}
	return reached
}
