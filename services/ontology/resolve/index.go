// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"strings"

	"github.com/tidwall/btree"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// labelEntry is one (label, node) pair in the index. Entries with the same
// label are ordered by node insertion position.
type labelEntry struct {
	Label string
	Index int
	ID    string
}

func labelLess(a, b labelEntry) bool {
	if a.Label != b.Label {
		return a.Label < b.Label
	}
	return a.Index < b.Index
}

// LabelIndex is an ordered label index over a view.
//
// It answers exact label lookups and label prefix scans in O(log n + k).
// Unlabelled nodes are not indexed. The index is a snapshot: build it after
// the graph is frozen.
//
// Thread Safety: Safe for concurrent reads.
type LabelIndex struct {
	tree *btree.BTreeG[labelEntry]
}

// NewLabelIndex indexes every labelled node of the view.
func NewLabelIndex(v *graph.View) *LabelIndex {
	tree := btree.NewBTreeG[labelEntry](labelLess)
	for node := range v.Nodes() {
		if node.Label == "" {
			continue
		}
		tree.Set(labelEntry{Label: node.Label, Index: node.Index(), ID: node.ID})
	}
	return &LabelIndex{tree: tree}
}

// Len returns the number of indexed nodes.
func (x *LabelIndex) Len() int {
	return x.tree.Len()
}

// Exact returns the ids whose label equals label (case-sensitive), in view
// order.
func (x *LabelIndex) Exact(label string) []string {
	var ids []string
	x.tree.Ascend(labelEntry{Label: label, Index: -1}, func(e labelEntry) bool {
		if e.Label != label {
			return false
		}
		ids = append(ids, e.ID)
		return true
	})
	return ids
}

// Match is one label index hit.
type Match struct {
	ID    string `json:"id"`
	Label string `json:"label"`
}

// Prefix returns up to limit nodes whose label starts with prefix, ordered
// by label then view order. limit <= 0 means no limit.
func (x *LabelIndex) Prefix(prefix string, limit int) []Match {
	var matches []Match
	x.tree.Ascend(labelEntry{Label: prefix, Index: -1}, func(e labelEntry) bool {
		if !strings.HasPrefix(e.Label, prefix) {
			return false
		}
		matches = append(matches, Match{ID: e.ID, Label: e.Label})
		return limit <= 0 || len(matches) < limit
	})
	return matches
}
