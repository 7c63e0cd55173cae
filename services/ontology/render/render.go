// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package render writes query results in the supported output formats.
//
// Every renderer draws a Subgraph: the filtered view restricted to the
// traversal result, with the query ids marked.
package render

import (
	"errors"
	"fmt"
	"io"
	"os"
	"slices"
	"strings"

	"github.com/mattn/go-isatty"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// Format names accepted by New.
const (
	FormatTree = "tree"
	FormatDot  = "dot"
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatIDs  = "ids"
	FormatText = "text"
)

// Formats lists every supported format, default first.
var Formats = []string{FormatTree, FormatDot, FormatJSON, FormatYAML, FormatIDs, FormatText}

// ErrUnknownFormat is returned by New for an unsupported format name.
var ErrUnknownFormat = errors.New("unknown output format")

// Subgraph is what a renderer draws.
type Subgraph struct {
	// View supplies nodes, labels and the edges that may be drawn.
	View *graph.View

	// Nodes restricts drawing to these ids, in this order. nil means every
	// node of the view.
	Nodes []string

	// QueryIDs are highlighted.
	QueryIDs []string

	// ContainerRelations are drawn as nesting (dot clusters) rather than
	// arrows. Other renderers draw them as ordinary edges.
	ContainerRelations []string
}

// NodeIDs returns the ids to draw: Nodes filtered to the view, or all view
// nodes.
func (s *Subgraph) NodeIDs() []string {
	if s.Nodes == nil {
		return s.View.NodeIDs()
	}
	ids := make([]string, 0, len(s.Nodes))
	seen := make(map[string]bool, len(s.Nodes))
	for _, id := range s.Nodes {
		if !seen[id] && s.View.HasNode(id) {
			seen[id] = true
			ids = append(ids, id)
		}
	}
	return ids
}

// Edges returns the view edges whose endpoints are both drawn, in view
// order.
func (s *Subgraph) Edges() []graph.Edge {
	in := s.nodeSet()
	var edges []graph.Edge
	for _, e := range s.View.Edges() {
		if in[e.Source] && in[e.Target] {
			edges = append(edges, e)
		}
	}
	return edges
}

// IsQuery reports whether id is a query id.
func (s *Subgraph) IsQuery(id string) bool {
	return slices.Contains(s.QueryIDs, id)
}

// Label returns the node label, or "" for stubs and unknown ids.
func (s *Subgraph) Label(id string) string {
	if n, ok := s.View.GetNode(id); ok {
		return n.Label
	}
	return ""
}

func (s *Subgraph) nodeSet() map[string]bool {
	ids := s.NodeIDs()
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// Renderer writes a subgraph.
type Renderer interface {
	Render(w io.Writer, sub *Subgraph) error
}

// Options tune renderers.
type Options struct {
	// Color enables ANSI styling in the tree renderer.
	Color bool
}

// New returns the renderer for a format name. An empty name selects tree.
func New(format string, opts Options) (Renderer, error) {
	switch strings.ToLower(format) {
	case "", FormatTree:
		return newTreeRenderer(opts), nil
	case FormatDot:
		return dotRenderer{}, nil
	case FormatJSON:
		return jsonRenderer{}, nil
	case FormatYAML:
		return yamlRenderer{}, nil
	case FormatIDs:
		return idsRenderer{}, nil
	case FormatText:
		return textRenderer{}, nil
	default:
		return nil, fmt.Errorf("%w: %q (supported: %s)", ErrUnknownFormat, format, strings.Join(Formats, ", "))
	}
}

// AutoColor reports whether f is a terminal that should get colour.
// NO_COLOR disables colour.
func AutoColor(f *os.File) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
