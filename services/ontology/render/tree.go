// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package render

import (
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/tree"
)

var (
	colorHighlight = lipgloss.Color("#2CD7C7")
	colorMuted     = lipgloss.Color("#2C4A54")
)

// treeRenderer draws each root with its descendants indented beneath it.
// A node with several parents appears under each of them.
type treeRenderer struct {
	color     bool
	query     lipgloss.Style
	relation  lipgloss.Style
	enumStyle lipgloss.Style
}

func newTreeRenderer(opts Options) *treeRenderer {
	return &treeRenderer{
		color:     opts.Color,
		query:     lipgloss.NewStyle().Bold(true).Foreground(colorHighlight),
		relation:  lipgloss.NewStyle().Foreground(colorMuted),
		enumStyle: lipgloss.NewStyle().Foreground(colorMuted),
	}
}

// Render implements Renderer.
//
// Description:
//
//	Roots are drawn nodes with no drawn parent, in node order. Nodes left
//	unreached (all parents lie on a cycle) become extra roots. Children are
//	the sources of incoming edges. A child already on the current path is
//	skipped, so cycles terminate.
func (r *treeRenderer) Render(w io.Writer, sub *Subgraph) error {
	ids := sub.NodeIDs()
	in := sub.nodeSet()
	visited := make(map[string]bool, len(ids))

	var roots []string
	for _, id := range ids {
		hasParent := false
		for _, e := range sub.View.Out(id) {
			if in[e.Target] && e.Target != id {
				hasParent = true
				break
			}
		}
		if !hasParent {
			roots = append(roots, id)
		}
	}

	draw := func(root string) error {
		t := r.build(sub, root, "", in, make(map[string]bool), visited)
		if r.color {
			t.EnumeratorStyle(r.enumStyle)
		}
		_, err := fmt.Fprintln(w, t.String())
		return err
	}
	for _, root := range roots {
		if err := draw(root); err != nil {
			return err
		}
	}
	for _, id := range ids {
		if !visited[id] {
			if err := draw(id); err != nil {
				return err
			}
		}
	}
	return nil
}

func (r *treeRenderer) build(sub *Subgraph, id, relation string, in, path, visited map[string]bool) *tree.Tree {
	visited[id] = true
	path[id] = true
	defer delete(path, id)

	t := tree.Root(r.label(sub, id, relation))
	for _, e := range sub.View.In(id) {
		if !in[e.Source] || path[e.Source] {
			continue
		}
		t.Child(r.build(sub, e.Source, e.Relation, in, path, visited))
	}
	return t
}

// label renders "[relation] ID ! label". Query nodes are highlighted, or
// prefixed with "* " without colour.
func (r *treeRenderer) label(sub *Subgraph, id, relation string) string {
	text := id
	if lbl := sub.Label(id); lbl != "" {
		text += " ! " + lbl
	}
	if sub.IsQuery(id) {
		if r.color {
			text = r.query.Render(text)
		} else {
			text = "* " + text
		}
	}
	if relation != "" {
		rel := "[" + relation + "]"
		if r.color {
			rel = r.relation.Render(rel)
		}
		text = rel + " " + text
	}
	return text
}
