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
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// OBO PURL base; IRIs under it are contracted to CURIEs.
const oboPURL = "http://purl.obolibrary.org/obo/"

const bfoPartOf = "BFO:0000050"

// Predicates that mean subclass.
var subClassPredicates = map[string]bool{
	"is_a":            true,
	"subClassOf":      true,
	"rdfs:subClassOf": true,
	"http://www.w3.org/2000/01/rdf-schema#subClassOf": true,
}

type oboGraphDocument struct {
	Graphs []oboGraph `json:"graphs"`
}

type oboGraph struct {
	ID    string         `json:"id"`
	Nodes []oboGraphNode `json:"nodes"`
	Edges []oboGraphEdge `json:"edges"`
}

type oboGraphNode struct {
	ID    string        `json:"id"`
	Label string        `json:"lbl"`
	Type  string        `json:"type"`
	Meta  *oboGraphMeta `json:"meta"`
}

type oboGraphValue struct {
	Pred string `json:"pred"`
	Val  string `json:"val"`
}

type oboGraphMeta struct {
	Definition          *oboGraphValue  `json:"definition"`
	Comments            []string        `json:"comments"`
	Subsets             []string        `json:"subsets"`
	Synonyms            []oboGraphValue `json:"synonyms"`
	Xrefs               []oboGraphValue `json:"xrefs"`
	BasicPropertyValues []oboGraphValue `json:"basicPropertyValues"`
	Deprecated          bool            `json:"deprecated"`
}

type oboGraphEdge struct {
	Sub  string `json:"sub"`
	Pred string `json:"pred"`
	Obj  string `json:"obj"`
}

// ParseOBOGraphs decodes an OBO Graphs JSON document.
//
// Description:
//
//	Every graph in the document is merged into one. OBO PURL IRIs are
//	contracted to CURIEs (".../obo/GO_0008150" becomes "GO:0008150") for
//	nodes and predicates. Subclass predicates are normalised to "is_a".
//	Property nodes are skipped; they only name relations.
//
//	Node metadata keys: "type", "definition", "comments", "subsets",
//	"synonyms", "xrefs", "namespace", "deprecated". Absent fields are
//	omitted.
//
// Outputs:
//
//	*graph.Graph - The graph, not yet frozen.
//	error - *ParseError on malformed JSON or graph limit errors.
func ParseOBOGraphs(r io.Reader, name string, opts ...graph.GraphOption) (*graph.Graph, error) {
	var doc oboGraphDocument
	if err := json.NewDecoder(r).Decode(&doc); err != nil {
		return nil, &ParseError{Source: name, Err: err}
	}

	g := graph.NewGraph(name, opts...)
	for _, og := range doc.Graphs {
		for _, n := range og.Nodes {
			if n.ID == "" || n.Type == "PROPERTY" {
				continue
			}
			if _, err := g.AddNode(ContractIRI(n.ID), n.Label, nodeMeta(n)); err != nil {
				return nil, &ParseError{Source: name, Err: err}
			}
		}
		for _, e := range og.Edges {
			if e.Sub == "" || e.Obj == "" || e.Pred == "" {
				continue
			}
			if err := g.AddEdge(ContractIRI(e.Sub), ContractIRI(e.Obj), NormaliseRelation(e.Pred)); err != nil {
				return nil, &ParseError{Source: name, Err: fmt.Errorf("edge %s %s %s: %w", e.Sub, e.Pred, e.Obj, err)}
			}
		}
	}
	return g, nil
}

func nodeMeta(n oboGraphNode) map[string]any {
	meta := make(map[string]any)
	if n.Type != "" {
		meta["type"] = n.Type
	}
	if n.Meta == nil {
		return meta
	}
	m := n.Meta
	if m.Definition != nil && m.Definition.Val != "" {
		meta["definition"] = m.Definition.Val
	}
	if len(m.Comments) > 0 {
		meta["comments"] = m.Comments
	}
	if len(m.Subsets) > 0 {
		subsets := make([]string, len(m.Subsets))
		for i, s := range m.Subsets {
			subsets[i] = ContractIRI(s)
		}
		meta["subsets"] = subsets
	}
	if len(m.Synonyms) > 0 {
		synonyms := make([]string, 0, len(m.Synonyms))
		for _, s := range m.Synonyms {
			synonyms = append(synonyms, s.Val)
		}
		meta["synonyms"] = synonyms
	}
	if len(m.Xrefs) > 0 {
		xrefs := make([]string, 0, len(m.Xrefs))
		for _, x := range m.Xrefs {
			xrefs = append(xrefs, x.Val)
		}
		meta["xrefs"] = xrefs
	}
	for _, pv := range m.BasicPropertyValues {
		if strings.HasSuffix(pv.Pred, "hasOBONamespace") {
			meta["namespace"] = pv.Val
		}
	}
	if m.Deprecated {
		meta["deprecated"] = true
	}
	return meta
}

// ContractIRI turns an OBO PURL into a CURIE. Other strings are returned
// unchanged.
//
// "http://purl.obolibrary.org/obo/GO_0008150" becomes "GO:0008150".
// "http://purl.obolibrary.org/obo/go#part_of" becomes "part_of".
func ContractIRI(iri string) string {
	local, ok := strings.CutPrefix(iri, oboPURL)
	if !ok {
		return iri
	}
	if _, frag, found := strings.Cut(local, "#"); found && frag != "" {
		return frag
	}
	prefix, id, found := strings.Cut(local, "_")
	if !found || prefix == "" || id == "" {
		return iri
	}
	return prefix + ":" + id
}

// NormaliseRelation maps subclass predicates to graph.RelationIsA, the BFO
// part of property to graph.RelationPartOf, and contracts other OBO PURL
// predicates.
func NormaliseRelation(pred string) string {
	if subClassPredicates[pred] {
		return graph.RelationIsA
	}
	rel := ContractIRI(pred)
	if rel == bfoPartOf {
		return graph.RelationPartOf
	}
	return rel
}
