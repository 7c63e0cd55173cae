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
	"bufio"
	"fmt"
	"io"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// idsRenderer writes one id per line.
type idsRenderer struct{}

// Render implements Renderer.
func (idsRenderer) Render(w io.Writer, sub *Subgraph) error {
	bw := bufio.NewWriter(w)
	for _, id := range sub.NodeIDs() {
		fmt.Fprintln(bw, id)
	}
	return bw.Flush()
}

// textRenderer writes OBO-style [Term] stanzas restricted to drawn edges.
type textRenderer struct{}

// Render implements Renderer.
func (textRenderer) Render(w io.Writer, sub *Subgraph) error {
	bw := bufio.NewWriter(w)
	in := sub.nodeSet()
	for i, id := range sub.NodeIDs() {
		if i > 0 {
			fmt.Fprintln(bw)
		}
		fmt.Fprintln(bw, "[Term]")
		fmt.Fprintf(bw, "id: %s\n", id)
		if lbl := sub.Label(id); lbl != "" {
			fmt.Fprintf(bw, "name: %s\n", lbl)
		}
		for _, e := range sub.View.Out(id) {
			if !in[e.Target] {
				continue
			}
			comment := ""
			if lbl := sub.Label(e.Target); lbl != "" {
				comment = " ! " + lbl
			}
			if e.Relation == graph.RelationIsA {
				fmt.Fprintf(bw, "is_a: %s%s\n", e.Target, comment)
			} else {
				fmt.Fprintf(bw, "relationship: %s %s%s\n", e.Relation, e.Target, comment)
			}
		}
	}
	return bw.Flush()
}
