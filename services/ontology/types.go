// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package ontology serves ontology graph queries over HTTP.
//
// The handlers expose the same core as the ogr CLI: identifier resolution,
// traversal, level queries, cycle detection and slimming, each against a
// named resource loaded through the ontology cache. An optional Watcher
// drops cached ontologies whose source file changes on disk.
package ontology

import (
	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// ServiceVersion is the ontology service version.
const ServiceVersion = "0.1.0"

// Error codes returned in ErrorResponse.Code.
const (
	CodeInvalidRequest        = "INVALID_REQUEST"
	CodeInvalidQuery          = "INVALID_QUERY"
	CodeInvalidFormat         = "INVALID_FORMAT"
	CodeNoRemote              = "NO_REMOTE"
	CodeResourceNotFound      = "RESOURCE_NOT_FOUND"
	CodeUnsupportedFormat     = "UNSUPPORTED_FORMAT"
	CodeResolutionUnavailable = "RESOLUTION_UNAVAILABLE"
	CodeInternal              = "INTERNAL"
)

// ErrorResponse is the standard error response format.
type ErrorResponse struct {
	// Error is the error message.
	Error string `json:"error"`

	// Code is the error code.
	Code string `json:"code,omitempty"`
}

// HealthResponse is returned by GET /v1/ontology/health.
type HealthResponse struct {
	Status  string       `json:"status"`
	Version string       `json:"version"`
	Cache   *cache.Stats `json:"cache,omitempty"`
}

// NodeInfo is a node id with its label.
type NodeInfo struct {
	ID    string `json:"id"`
	Label string `json:"label,omitempty"`
}

// ResolveResponse is returned by GET /v1/ontology/:resource/resolve.
type ResolveResponse struct {
	Resource   string     `json:"resource"`
	Mode       string     `json:"mode"`
	Nodes      []NodeInfo `json:"nodes"`
	Unresolved []string   `json:"unresolved,omitempty"`
}

// TraverseResponse is returned by GET /v1/ontology/:resource/traverse.
type TraverseResponse struct {
	Resource   string       `json:"resource"`
	Direction  string       `json:"direction"`
	QueryIDs   []string     `json:"query_ids"`
	Nodes      []NodeInfo   `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	Unresolved []string     `json:"unresolved,omitempty"`
}

// LevelResponse is returned by GET /v1/ontology/:resource/level.
type LevelResponse struct {
	Resource string     `json:"resource"`
	Level    int        `json:"level"`
	Nodes    []NodeInfo `json:"nodes"`
}

// CyclesResponse is returned by GET /v1/ontology/:resource/cycles.
type CyclesResponse struct {
	Resource  string     `json:"resource"`
	Cycles    [][]string `json:"cycles"`
	Truncated bool       `json:"truncated"`
}

// SlimRequest is the body of POST /v1/ontology/:resource/slim.
type SlimRequest struct {
	// IDs are the query tokens, resolved with Search.
	IDs []string `json:"ids" binding:"required,min=1,dive,required"`

	// Relations restricts the view; empty uses the service default.
	Relations []string `json:"relations"`

	// Search holds resolution flags (p, r, x); empty is exact.
	Search string `json:"search" binding:"omitempty,max=3"`
}

// SlimResponse is the JSON form of a slim result.
type SlimResponse struct {
	Resource   string       `json:"resource"`
	QueryIDs   []string     `json:"query_ids"`
	Nodes      []NodeInfo   `json:"nodes"`
	Edges      []graph.Edge `json:"edges"`
	Unresolved []string     `json:"unresolved,omitempty"`
}

func nodeInfos(v *graph.View, ids []string) []NodeInfo {
	out := make([]NodeInfo, 0, len(ids))
	for _, id := range ids {
		info := NodeInfo{ID: id}
		if node, ok := v.Graph().GetNode(id); ok {
			info.Label = node.Label
		}
		out = append(out, info)
	}
	return out
}
