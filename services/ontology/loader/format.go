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
	"bytes"
	"fmt"
	"path"
	"strings"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// Format identifies an ontology serialisation.
type Format int

const (
	// FormatUnknown means the format could not be determined.
	FormatUnknown Format = iota

	// FormatOBOGraphs is OBO Graphs JSON.
	FormatOBOGraphs

	// FormatOBO is the OBO 1.4 flat file format.
	FormatOBO
)

// String returns the format name.
func (f Format) String() string {
	switch f {
	case FormatOBOGraphs:
		return "obographs-json"
	case FormatOBO:
		return "obo"
	default:
		return "unknown"
	}
}

// DetectFormat picks a format from the location's extension, falling back
// to sniffing the first bytes of content.
func DetectFormat(location string, content []byte) Format {
	// URLs may carry a query string; only the path matters.
	loc, _, _ := strings.Cut(location, "?")
	switch strings.ToLower(path.Ext(loc)) {
	case ".json":
		return FormatOBOGraphs
	case ".obo":
		return FormatOBO
	}

	head := bytes.TrimLeft(content, " \t\r\n\ufeff")
	if len(head) > 4096 {
		head = head[:4096]
	}
	switch {
	case bytes.HasPrefix(head, []byte("{")):
		return FormatOBOGraphs
	case bytes.HasPrefix(head, []byte("format-version:")),
		bytes.HasPrefix(head, []byte("[Term]")),
		bytes.Contains(head, []byte("\n[Term]")):
		return FormatOBO
	}
	return FormatUnknown
}

// Parse decodes content into a frozen graph named name.
//
// Description:
//
//	The format is taken from the location when recognisable, otherwise
//	sniffed from content.
//
// Outputs:
//
//	*graph.Graph - Frozen graph.
//	error - ErrUnsupportedFormat, or a *ParseError.
func Parse(name, location string, content []byte, opts ...graph.GraphOption) (*graph.Graph, error) {
	var (
		g   *graph.Graph
		err error
	)
	switch DetectFormat(location, content) {
	case FormatOBOGraphs:
		g, err = ParseOBOGraphs(bytes.NewReader(content), name, opts...)
	case FormatOBO:
		g, err = ParseOBO(bytes.NewReader(content), name, opts...)
	default:
		return nil, fmt.Errorf("%s: %w", location, ErrUnsupportedFormat)
	}
	if err != nil {
		return nil, err
	}
	g.Freeze()
	return g, nil
}
