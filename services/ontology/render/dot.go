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
	"slices"
	"strconv"
	"strings"
)

// dotRenderer writes Graphviz DOT.
type dotRenderer struct{}

// Render implements Renderer.
//
// Description:
//
//	Edges whose relation is a container relation place their source inside
//	a cluster for their target instead of being drawn. Each node has at
//	most one container (its first container edge); a container edge that
//	would close a nesting cycle is drawn as an ordinary edge.
func (dotRenderer) Render(w io.Writer, sub *Subgraph) error {
	bw := bufio.NewWriter(w)
	ids := sub.NodeIDs()
	edges := sub.Edges()

	container := make(map[string]string)
	members := make(map[string][]string)
	drawn := edges[:0:0]
	for _, e := range edges {
		if slices.Contains(sub.ContainerRelations, e.Relation) && e.Source != e.Target {
			if _, has := container[e.Source]; !has && !nests(container, e.Target, e.Source) {
				container[e.Source] = e.Target
				members[e.Target] = append(members[e.Target], e.Source)
				continue
			}
		}
		drawn = append(drawn, e)
	}

	fmt.Fprintf(bw, "digraph %s {\n", strconv.Quote(graphName(sub)))
	fmt.Fprintln(bw, "  rankdir=BT;")
	fmt.Fprintln(bw, "  node [shape=box, style=rounded];")

	var writeNode func(id, indent string)
	writeNode = func(id, indent string) {
		if kids, ok := members[id]; ok {
			fmt.Fprintf(bw, "%ssubgraph %s {\n", indent, strconv.Quote("cluster_"+id))
			fmt.Fprintf(bw, "%s  label=%s;\n", indent, strconv.Quote(nodeText(sub, id)))
			writeNodeStmt(bw, sub, id, indent+"  ")
			for _, kid := range kids {
				writeNode(kid, indent+"  ")
			}
			fmt.Fprintf(bw, "%s}\n", indent)
			return
		}
		writeNodeStmt(bw, sub, id, indent)
	}
	for _, id := range ids {
		if _, nested := container[id]; !nested {
			writeNode(id, "  ")
		}
	}

	for _, e := range drawn {
		fmt.Fprintf(bw, "  %s -> %s [label=%s];\n", strconv.Quote(e.Source), strconv.Quote(e.Target), strconv.Quote(e.Relation))
	}
	fmt.Fprintln(bw, "}")
	return bw.Flush()
}

func writeNodeStmt(w io.Writer, sub *Subgraph, id, indent string) {
	attrs := []string{"label=" + strconv.Quote(nodeText(sub, id))}
	if sub.IsQuery(id) {
		attrs = append(attrs, `style="rounded,filled"`, `fillcolor="#2CD7C7"`)
	}
	fmt.Fprintf(w, "%s%s [%s];\n", indent, strconv.Quote(id), strings.Join(attrs, ", "))
}

// nests reports whether from is (transitively) contained in to.
func nests(container map[string]string, from, to string) bool {
	for cur, ok := from, true; ok; cur, ok = container[cur] {
		if cur == to {
			return true
		}
	}
	return false
}

func nodeText(sub *Subgraph, id string) string {
	if lbl := sub.Label(id); lbl != "" {
		return id + " " + lbl
	}
	return id
}

func graphName(sub *Subgraph) string {
	if name := sub.View.Graph().Name; name != "" {
		return name
	}
	return "ontology"
}
