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
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFilter_AllRelationsByDefault(t *testing.T) {
	g := buildGraph(t, isA("A", "B"), partOf("A", "D"))
	v := Filter(g)

	assert.Nil(t, v.Allowed())
	assert.Equal(t, g.Edges(), v.Edges())
	assert.Equal(t, 2, v.EdgeCount())
}

func TestFilter_RestrictsToListedRelations(t *testing.T) {
	g := buildGraph(t, isA("A", "B"), partOf("A", "D"), isA("B", "C"))
	v := Filter(g, RelationIsA)

	assert.Equal(t, []string{RelationIsA}, v.Allowed())
	assert.Equal(t, g.Edges(RelationIsA), v.Edges())
	assert.Len(t, v.Out("A"), 1)
	assert.Equal(t, "B", v.Out("A")[0].Target)

	// Node data is shared, not copied.
	nodeA, _ := g.GetNode("A")
	viewA, ok := v.GetNode("A")
	assert.True(t, ok)
	assert.Same(t, nodeA, viewA)
	assert.True(t, v.HasNode("D"))
}

func TestFilter_UnknownRelationIsEmptyNotError(t *testing.T) {
	g := buildGraph(t, isA("A", "B"))
	v := Filter(g, "regulates")

	assert.Empty(t, v.Edges())
	assert.Empty(t, v.Out("A"))
	assert.Equal(t, []string{"A", "B"}, v.NodeIDs())
}

func TestFilter_Idempotent(t *testing.T) {
	g := buildGraph(t, isA("A", "B"), partOf("A", "D"), [3]string{"B", "regulates", "C"})

	sets := [][]string{
		nil,
		{RelationIsA},
		{RelationIsA, RelationPartOf},
		{"unknown"},
		{RelationPartOf, "unknown"},
	}
	for _, s := range sets {
		once := Filter(g, s...)
		twice := once.Filter(s...)
		assert.True(t, twice.Equal(once), "set %v", s)
		assert.Equal(t, once.Edges(), twice.Edges(), "set %v", s)
		assert.True(t, Filter(g, s...).Equal(once), "filter must be a pure function, set %v", s)
	}
}

func TestView_FilterIntersects(t *testing.T) {
	g := buildGraph(t, isA("A", "B"), partOf("A", "D"))

	v := Filter(g, RelationIsA, RelationPartOf).Filter(RelationPartOf, "regulates")
	assert.Equal(t, []string{RelationPartOf}, v.Allowed())
	assert.Equal(t, g.Edges(RelationPartOf), v.Edges())

	disjoint := Filter(g, RelationIsA).Filter(RelationPartOf)
	assert.Empty(t, disjoint.Edges())
	assert.NotNil(t, disjoint.Allowed())
}

func TestView_EdgesSubsetOfGraph(t *testing.T) {
	g := buildGraph(t, isA("A", "B"), partOf("A", "D"), isA("B", "C"), [3]string{"C", "regulates", "A"})
	for _, rels := range [][]string{nil, {RelationIsA}, {"regulates", "x"}} {
		for _, e := range Filter(g, rels...).Edges() {
			assert.True(t, g.HasEdge(e.Source, e.Target, e.Relation))
		}
	}
}

func TestView_WithPrefix(t *testing.T) {
	g := buildGraph(t,
		isA("GO:2", "GO:1"),
		isA("GO:3", "GO:2"),
		partOf("GO:3", "CL:1"),
		isA("CL:2", "CL:1"),
	)
	v := Filter(g).WithPrefix("GO:")

	assert.Equal(t, "GO", v.Prefix())
	assert.Equal(t, []string{"GO:2", "GO:1", "GO:3"}, v.NodeIDs())
	assert.Equal(t, 3, v.NodeCount())
	assert.False(t, v.HasNode("CL:1"))
	assert.Len(t, v.Out("GO:3"), 1)
	assert.Empty(t, v.Out("CL:2"))
	assert.Len(t, v.Edges(), 2)

	cleared := v.WithPrefix("")
	assert.True(t, cleared.Equal(Filter(g)))
}

func TestView_Equal(t *testing.T) {
	g := buildGraph(t, isA("A", "B"))
	other := buildGraph(t, isA("A", "B"))

	assert.True(t, Filter(g).Equal(Filter(g)))
	assert.False(t, Filter(g).Equal(Filter(other)))
	assert.False(t, Filter(g).Equal(Filter(g, RelationIsA)))
	assert.False(t, Filter(g, "a").Equal(Filter(g, "b")))
	assert.False(t, Filter(g).Equal(Filter(g).WithPrefix("GO")))
	assert.False(t, Filter(g).Equal(nil))
}

func TestCURIEPrefix(t *testing.T) {
	assert.Equal(t, "GO", CURIEPrefix("GO:0008150"))
	assert.Equal(t, "", CURIEPrefix("biological_process"))
	assert.Equal(t, "", CURIEPrefix(":x"))
}
