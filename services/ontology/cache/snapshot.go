// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"encoding/hex"
	"encoding/json"
	"fmt"

	"github.com/klauspost/compress/zstd"
	"lukechampine.com/blake3"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// snapshotVersion is bumped when the snapshot layout changes. Snapshots of
// another version are treated as absent.
const snapshotVersion = 1

// snapshot is the serialised form of a graph.
//
// Nodes are listed in insertion order, stubs included, so a decoded graph
// iterates identically to the original.
type snapshot struct {
	Version int            `json:"version"`
	Name    string         `json:"name"`
	Nodes   []snapshotNode `json:"nodes"`
	Edges   []graph.Edge   `json:"edges"`
}

type snapshotNode struct {
	ID    string         `json:"id"`
	Label string         `json:"lbl,omitempty"`
	Meta  map[string]any `json:"meta,omitempty"`
}

// Shared codecs. EncodeAll and DecodeAll are safe for concurrent use.
var (
	encoder, _ = zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	decoder, _ = zstd.NewReader(nil)
)

// Digest returns the hex BLAKE3-256 digest of data.
func Digest(data []byte) string {
	sum := blake3.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// encodeGraph serialises g as zstd-compressed JSON.
//
// Outputs:
//
//	[]byte - Compressed snapshot.
//	string - Digest of the uncompressed JSON, checked on decode.
//	error - JSON encoding failure.
func encodeGraph(g *graph.Graph) ([]byte, string, error) {
	snap := snapshot{
		Version: snapshotVersion,
		Name:    g.Name,
		Nodes:   make([]snapshotNode, 0, g.NodeCount()),
		Edges:   g.Edges(),
	}
	for node := range g.Nodes() {
		snap.Nodes = append(snap.Nodes, snapshotNode{ID: node.ID, Label: node.Label, Meta: node.Meta})
	}

	payload, err := json.Marshal(snap)
	if err != nil {
		return nil, "", fmt.Errorf("encode snapshot: %w", err)
	}
	return encoder.EncodeAll(payload, nil), Digest(payload), nil
}

// decodeGraph rebuilds a frozen graph from a compressed snapshot.
//
// Description:
//
//	Metadata values come back as their JSON forms: string slices decode
//	as []any and numbers as float64.
//
// Outputs:
//
//	*graph.Graph - Frozen graph.
//	error - Decompression, digest mismatch, version or JSON errors.
func decodeGraph(data []byte, wantDigest string) (*graph.Graph, error) {
	payload, err := decoder.DecodeAll(data, nil)
	if err != nil {
		return nil, fmt.Errorf("decompress snapshot: %w", err)
	}
	if wantDigest != "" {
		if got := Digest(payload); got != wantDigest {
			return nil, fmt.Errorf("snapshot digest mismatch: got %s, want %s", got, wantDigest)
		}
	}

	var snap snapshot
	if err := json.Unmarshal(payload, &snap); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	if snap.Version != snapshotVersion {
		return nil, fmt.Errorf("snapshot version %d, want %d", snap.Version, snapshotVersion)
	}

	g := graph.NewGraph(snap.Name,
		graph.WithMaxNodes(max(len(snap.Nodes), graph.DefaultMaxNodes)),
		graph.WithMaxEdges(max(len(snap.Edges), graph.DefaultMaxEdges)),
	)
	for _, n := range snap.Nodes {
		if _, err := g.AddNode(n.ID, n.Label, n.Meta); err != nil {
			return nil, fmt.Errorf("rebuild node %s: %w", n.ID, err)
		}
	}
	for _, e := range snap.Edges {
		if err := g.AddEdge(e.Source, e.Target, e.Relation); err != nil {
			return nil, fmt.Errorf("rebuild edge %s: %w", e, err)
		}
	}
	g.Freeze()
	return g, nil
}
