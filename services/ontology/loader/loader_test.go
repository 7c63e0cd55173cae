// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

const sampleOBO = `format-version: 1.2
ontology: go

[Term]
id: GO:0008150
name: biological_process
namespace: biological_process
def: "A biological process is the execution of a genetically-encoded \"program\"." [GOC:pdt]

[Term]
id: GO:0008219
name: cell death
namespace: biological_process
synonym: "necrosis" NARROW []
xref: Wikipedia:Cell_death
is_a: GO:0008150 ! biological_process

[Term]
id: GO:0005623
name: cell
is_obsolete: true

[Term]
id: GO:0044464
name: cell part
is_a: GO:0005575 {source="x"} ! cellular_component
relationship: part_of GO:0005623 ! cell

[Typedef]
id: part_of
name: part of
is_transitive: true
`

const sampleOBOGraphs = `{
  "graphs": [{
    "id": "http://purl.obolibrary.org/obo/go.owl",
    "nodes": [
      {"id": "http://purl.obolibrary.org/obo/GO_0008150", "lbl": "biological_process", "type": "CLASS",
       "meta": {"definition": {"val": "A biological process."},
                "basicPropertyValues": [{"pred": "http://www.geneontology.org/formats/oboInOwl#hasOBONamespace", "val": "biological_process"}]}},
      {"id": "http://purl.obolibrary.org/obo/GO_0008219", "lbl": "cell death", "type": "CLASS",
       "meta": {"synonyms": [{"pred": "hasNarrowSynonym", "val": "necrosis"}], "deprecated": false}},
      {"id": "http://purl.obolibrary.org/obo/GO_0000001", "lbl": "old term", "type": "CLASS", "meta": {"deprecated": true}},
      {"id": "http://purl.obolibrary.org/obo/BFO_0000050", "lbl": "part of", "type": "PROPERTY"}
    ],
    "edges": [
      {"sub": "http://purl.obolibrary.org/obo/GO_0008219", "pred": "is_a", "obj": "http://purl.obolibrary.org/obo/GO_0008150"},
      {"sub": "http://purl.obolibrary.org/obo/GO_0000001", "pred": "http://purl.obolibrary.org/obo/BFO_0000050", "obj": "http://purl.obolibrary.org/obo/GO_0008219"},
      {"sub": "http://purl.obolibrary.org/obo/GO_0000001", "pred": "http://purl.obolibrary.org/obo/RO_0002211", "obj": "http://purl.obolibrary.org/obo/GO_0008150"}
    ]
  }]
}`

func TestParseOBO(t *testing.T) {
	g, err := ParseOBO(strings.NewReader(sampleOBO), "go")
	require.NoError(t, err)

	assert.Equal(t, []string{"GO:0008150", "GO:0008219", "GO:0005623", "GO:0044464", "GO:0005575"}, g.NodeIDs())
	assert.True(t, g.HasEdge("GO:0008219", "GO:0008150", graph.RelationIsA))
	assert.True(t, g.HasEdge("GO:0044464", "GO:0005575", graph.RelationIsA))
	assert.True(t, g.HasEdge("GO:0044464", "GO:0005623", graph.RelationPartOf))
	assert.Equal(t, 3, g.EdgeCount())

	bp, ok := g.GetNode("GO:0008150")
	require.True(t, ok)
	assert.Equal(t, "biological_process", bp.Label)
	assert.Equal(t, `A biological process is the execution of a genetically-encoded "program".`, bp.Meta["definition"])
	assert.Equal(t, "biological_process", bp.Meta["namespace"])

	death, _ := g.GetNode("GO:0008219")
	assert.Equal(t, []string{"necrosis"}, death.Meta["synonyms"])
	assert.Equal(t, []string{"Wikipedia:Cell_death"}, death.Meta["xrefs"])

	cell, _ := g.GetNode("GO:0005623")
	assert.Equal(t, true, cell.Meta["deprecated"])

	// Referenced but never declared: stub.
	cc, _ := g.GetNode("GO:0005575")
	assert.Empty(t, cc.Label)
}

func TestParseOBO_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		line  int
	}{
		{"missing id", "[Term]\nname: x\n", 1},
		{"bare line", "[Term]\nid: A:1\nnonsense\n", 3},
		{"relationship without target", "[Term]\nid: A:1\nrelationship: part_of\n", 3},
		{"is_a without target", "[Term]\nid: A:1\nis_a: ! nothing\n", 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseOBO(strings.NewReader(tt.input), "bad")
			require.Error(t, err)
			var perr *ParseError
			require.True(t, errors.As(err, &perr))
			assert.Equal(t, tt.line, perr.Line)
			assert.Equal(t, "bad", perr.Source)
		})
	}
}

func TestParseOBOGraphs(t *testing.T) {
	g, err := ParseOBOGraphs(strings.NewReader(sampleOBOGraphs), "go")
	require.NoError(t, err)

	assert.Equal(t, []string{"GO:0008150", "GO:0008219", "GO:0000001"}, g.NodeIDs())
	assert.True(t, g.HasEdge("GO:0008219", "GO:0008150", graph.RelationIsA))
	assert.True(t, g.HasEdge("GO:0000001", "GO:0008219", graph.RelationPartOf))
	assert.True(t, g.HasEdge("GO:0000001", "GO:0008150", "RO:0002211"))
	assert.Equal(t, []string{"RO:0002211", graph.RelationIsA, graph.RelationPartOf}, g.Relations())

	bp, _ := g.GetNode("GO:0008150")
	assert.Equal(t, "A biological process.", bp.Meta["definition"])
	assert.Equal(t, "biological_process", bp.Meta["namespace"])
	assert.Equal(t, "CLASS", bp.Meta["type"])

	death, _ := g.GetNode("GO:0008219")
	assert.Equal(t, []string{"necrosis"}, death.Meta["synonyms"])
	assert.NotContains(t, death.Meta, "deprecated")

	old, _ := g.GetNode("GO:0000001")
	assert.Equal(t, true, old.Meta["deprecated"])
}

func TestParseOBOGraphs_Malformed(t *testing.T) {
	_, err := ParseOBOGraphs(strings.NewReader(`{"graphs": [`), "broken")
	var perr *ParseError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 0, perr.Line)
}

func TestContractIRI(t *testing.T) {
	tests := map[string]string{
		"http://purl.obolibrary.org/obo/GO_0008150":     "GO:0008150",
		"http://purl.obolibrary.org/obo/NCBITaxon_9606": "NCBITaxon:9606",
		"http://purl.obolibrary.org/obo/go#part_of":     "part_of",
		"http://purl.obolibrary.org/obo/go.owl":         "http://purl.obolibrary.org/obo/go.owl",
		"GO:0008150":                                    "GO:0008150",
		"http://example.org/thing":                      "http://example.org/thing",
	}
	for in, want := range tests {
		assert.Equal(t, want, ContractIRI(in), in)
	}

	assert.Equal(t, graph.RelationIsA, NormaliseRelation("http://www.w3.org/2000/01/rdf-schema#subClassOf"))
	assert.Equal(t, graph.RelationPartOf, NormaliseRelation("BFO:0000050"))
	assert.Equal(t, "regulates", NormaliseRelation("regulates"))
}

func TestDetectFormat(t *testing.T) {
	tests := []struct {
		name     string
		location string
		content  string
		want     Format
	}{
		{"json extension", "go.json", "", FormatOBOGraphs},
		{"obo extension", "/tmp/GO.OBO", "", FormatOBO},
		{"url with query", "https://x.org/go.obo?v=1", "", FormatOBO},
		{"sniff json", "go", "\n  {\"graphs\":[]}", FormatOBOGraphs},
		{"sniff header", "go", "format-version: 1.2\n", FormatOBO},
		{"sniff term", "go", "! comment\n[Term]\nid: A:1\n", FormatOBO},
		{"unknown", "go.txt", "hello", FormatUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DetectFormat(tt.location, []byte(tt.content)))
		})
	}
}

func TestParse_FreezesAndRejectsUnknown(t *testing.T) {
	g, err := Parse("go", "go.obo", []byte(sampleOBO))
	require.NoError(t, err)
	assert.True(t, g.IsFrozen())
	assert.Equal(t, "go", g.Name)

	_, err = Parse("x", "x.txt", []byte("plain"))
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestParse_RespectsGraphLimits(t *testing.T) {
	_, err := Parse("go", "go.obo", []byte(sampleOBO), graph.WithMaxNodes(2))
	assert.ErrorIs(t, err, graph.ErrMaxNodesExceeded)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestRegistry_Locate(t *testing.T) {
	dir := t.TempDir()
	goPath := filepath.Join(dir, "onto", "nested", "go.obo")
	writeFile(t, goPath, sampleOBO)
	writeFile(t, filepath.Join(dir, "onto", "pato.json"), sampleOBOGraphs)
	direct := filepath.Join(dir, "direct.obo")
	writeFile(t, direct, sampleOBO)

	r := NewRegistry(RegistryConfig{
		Resources:   map[string]string{"gene_ontology": goPath, "remote": "https://example.org/x.json"},
		SearchPaths: []string{filepath.Join(dir, "onto", "**", "*.{obo,json}")},
	})

	t.Run("configured name", func(t *testing.T) {
		loc, err := r.Locate("gene_ontology")
		require.NoError(t, err)
		assert.Equal(t, goPath, loc)
	})
	t.Run("configured url", func(t *testing.T) {
		loc, err := r.Locate("remote")
		require.NoError(t, err)
		assert.Equal(t, "https://example.org/x.json", loc)
	})
	t.Run("direct path", func(t *testing.T) {
		loc, err := r.Locate(direct)
		require.NoError(t, err)
		assert.Equal(t, direct, loc)
	})
	t.Run("search path", func(t *testing.T) {
		loc, err := r.Locate("pato")
		require.NoError(t, err)
		assert.Equal(t, filepath.Join(dir, "onto", "pato.json"), loc)

		loc, err = r.Locate("go")
		require.NoError(t, err)
		assert.Equal(t, goPath, loc)
	})
	t.Run("not found", func(t *testing.T) {
		_, err := r.Locate("envo")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrResourceNotFound)
		var nf *ResourceNotFoundError
		require.True(t, errors.As(err, &nf))
		assert.Equal(t, "envo", nf.Handle)
		assert.NotEmpty(t, nf.Searched)
	})
	t.Run("empty", func(t *testing.T) {
		_, err := r.Locate("")
		assert.ErrorIs(t, err, ErrEmptyHandle)
	})

	assert.Equal(t, []string{"gene_ontology", "remote"}, r.Names())
}

func TestRegistry_LoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.obo")
	writeFile(t, path, sampleOBO)

	r := NewRegistry(RegistryConfig{Resources: map[string]string{"go": path}})
	src, err := r.Read(context.Background(), "go")
	require.NoError(t, err)
	assert.False(t, src.IsRemote())
	assert.False(t, src.ModTime.IsZero())
	assert.Equal(t, sampleOBO, string(src.Content))

	g, err := r.Load(context.Background(), "go")
	require.NoError(t, err)
	assert.True(t, g.IsFrozen())
	assert.Equal(t, 5, g.NodeCount())
}

func TestRegistry_MaxBytes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "go.obo")
	writeFile(t, path, sampleOBO)

	r := NewRegistry(RegistryConfig{MaxBytes: 10})
	_, err := r.Read(context.Background(), path)
	assert.ErrorContains(t, err, "limit")
}

func TestRegistry_LoadURL(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		switch req.URL.Path {
		case "/go.json":
			_, _ = w.Write([]byte(sampleOBOGraphs))
		case "/broken.json":
			w.WriteHeader(http.StatusInternalServerError)
		default:
			http.NotFound(w, req)
		}
	}))
	defer server.Close()

	r := NewRegistry(RegistryConfig{})
	ctx := context.Background()

	g, err := r.Load(ctx, server.URL+"/go.json")
	require.NoError(t, err)
	assert.Equal(t, 3, g.NodeCount())
	assert.Equal(t, server.URL+"/go.json", g.Name)

	_, err = r.Load(ctx, server.URL+"/missing.json")
	assert.ErrorIs(t, err, ErrResourceNotFound)

	_, err = r.Load(ctx, server.URL+"/broken.json")
	assert.ErrorContains(t, err, "status 500")
}

func TestBaseName(t *testing.T) {
	assert.Equal(t, "go", baseName("/a/b/go.obo"))
	assert.Equal(t, "go", baseName("go.json.gz"))
	assert.Equal(t, ".hidden", baseName("/x/.hidden"))
}
