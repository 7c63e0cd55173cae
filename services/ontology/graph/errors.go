// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package graph provides the in-memory ontology graph and its query engine.
//
// An ontology is modelled as a directed multigraph: nodes are terms (CURIE id,
// label, metadata) and edges are typed relations such as is_a or part_of. An
// edge reads "source is-related-to target", so for is_a the edge points from
// child to parent.
//
// # Components
//
//   - Graph: the store. Built once, then frozen.
//   - View: a relation-filtered lens over a Graph. Never copies node data.
//   - Traverse / TraverseParallel: ancestor and descendant closure.
//   - Level: nodes at a fixed shortest distance from the root set.
//   - Cycles: lazy enumeration of all simple cycles.
//   - Slim: minimal subgraph preserving reachability among query nodes.
//
// # Thread Safety
//
// Graph is NOT safe for concurrent use during building. After Freeze(), the
// graph and every View over it can be read from multiple goroutines. All
// query functions are pure over a frozen graph.
//
// # Lifecycle
//
//  1. Create with NewGraph(name)
//  2. Build with AddNode() and AddEdge() calls
//  3. Call Freeze() to finalize
//  4. Filter into a View and query it
package graph

import (
	"errors"
	"fmt"
)

// Sentinel errors for graph operations.
var (
	// ErrGraphFrozen is returned when attempting to modify a frozen graph.
	ErrGraphFrozen = errors.New("graph is frozen and cannot be modified")

	// ErrInvalidNode is returned when a node or edge endpoint has an empty id.
	ErrInvalidNode = errors.New("invalid node")

	// ErrMaxNodesExceeded is returned when the graph has reached its
	// configured maximum node capacity.
	ErrMaxNodesExceeded = errors.New("maximum node count exceeded")

	// ErrMaxEdgesExceeded is returned when the graph has reached its
	// configured maximum edge capacity.
	ErrMaxEdgesExceeded = errors.New("maximum edge count exceeded")

	// ErrInvalidQuery is returned for semantically malformed query
	// parameters: an unparseable regex, a negative level, or a level query
	// with no roots. Expected absence (no matches, unknown relation) is
	// never an error.
	ErrInvalidQuery = errors.New("invalid query")
)

// InvalidQueryError describes why a query was rejected.
//
// errors.Is(err, ErrInvalidQuery) holds for every InvalidQueryError, and
// errors.Is/As also reach the underlying cause when one is set.
type InvalidQueryError struct {
	// Query is the offending parameter, e.g. the regex source or "level=-1".
	Query string

	// Reason is a short human readable explanation.
	Reason string

	// Cause is the underlying error, if any (e.g. *syntax.Error).
	Cause error
}

// Error implements the error interface.
func (e *InvalidQueryError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("invalid query %q: %s: %v", e.Query, e.Reason, e.Cause)
	}
	return fmt.Sprintf("invalid query %q: %s", e.Query, e.Reason)
}

// Unwrap returns ErrInvalidQuery and the cause.
func (e *InvalidQueryError) Unwrap() []error {
	if e.Cause != nil {
		return []error{ErrInvalidQuery, e.Cause}
	}
	return []error{ErrInvalidQuery}
}

// NewInvalidQueryError builds an InvalidQueryError.
func NewInvalidQueryError(query, reason string, cause error) *InvalidQueryError {
	return &InvalidQueryError{Query: query, Reason: reason, Cause: cause}
}
