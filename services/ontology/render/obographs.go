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
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

// Document is the OBO Graphs shaped output of the json and yaml formats.
// Loading it back with the loader yields the drawn subgraph.
type Document struct {
	Graphs []DocumentGraph `json:"graphs" yaml:"graphs"`
}

// DocumentGraph is one graph of a Document.
type DocumentGraph struct {
	ID       string         `json:"id,omitempty" yaml:"id,omitempty"`
	Nodes    []DocumentNode `json:"nodes" yaml:"nodes"`
	Edges    []DocumentEdge `json:"edges" yaml:"edges"`
	QueryIDs []string       `json:"query_ids,omitempty" yaml:"query_ids,omitempty"`
}

// DocumentNode is a node entry.
type DocumentNode struct {
	ID    string         `json:"id" yaml:"id"`
	Label string         `json:"lbl,omitempty" yaml:"lbl,omitempty"`
	Meta  map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// DocumentEdge is an edge entry.
type DocumentEdge struct {
	Sub  string `json:"sub" yaml:"sub"`
	Pred string `json:"pred" yaml:"pred"`
	Obj  string `json:"obj" yaml:"obj"`
}

// NewDocument builds the OBO Graphs document for a subgraph.
func NewDocument(sub *Subgraph) *Document {
	g := DocumentGraph{
		ID:       sub.View.Graph().Name,
		Nodes:    make([]DocumentNode, 0),
		Edges:    make([]DocumentEdge, 0),
		QueryIDs: sub.QueryIDs,
	}
	for _, id := range sub.NodeIDs() {
		n := DocumentNode{ID: id}
		if node, ok := sub.View.GetNode(id); ok {
			n.Label = node.Label
			if len(node.Meta) > 0 {
				n.Meta = node.Meta
			}
		}
		g.Nodes = append(g.Nodes, n)
	}
	for _, e := range sub.Edges() {
		g.Edges = append(g.Edges, DocumentEdge{Sub: e.Source, Pred: e.Relation, Obj: e.Target})
	}
	return &Document{Graphs: []DocumentGraph{g}}
}

type jsonRenderer struct{}

// Render implements Renderer.
func (jsonRenderer) Render(w io.Writer, sub *Subgraph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(NewDocument(sub)); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}

type yamlRenderer struct{}

// Render implements Renderer.
func (yamlRenderer) Render(w io.Writer, sub *Subgraph) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(NewDocument(sub)); err != nil {
		return fmt.Errorf("encode yaml: %w", err)
	}
	return enc.Close()
}
