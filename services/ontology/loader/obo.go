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
	"bufio"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// maxOBOLine bounds a single OBO line. Definitions can be long.
const maxOBOLine = 1 << 20

// oboTerm accumulates one [Term] stanza.
type oboTerm struct {
	id         string
	name       string
	namespace  string
	definition string
	synonyms   []string
	xrefs      []string
	subsets    []string
	obsolete   bool
	edges      [][2]string // relation, target
	line       int
}

// ParseOBO decodes an OBO 1.4 flat file.
//
// Description:
//
//	Reads [Term] stanzas. Tags used: id, name, namespace, def, synonym,
//	xref, subset, is_obsolete, is_a, relationship. Other stanza types
//	([Typedef], [Instance]) and unknown tags are skipped. Trailing
//	"! comment" text and {qualifier} blocks are stripped from values.
//
//	Node metadata keys follow ParseOBOGraphs: "definition", "synonyms",
//	"xrefs", "subsets", "namespace", "deprecated".
//
// Outputs:
//
//	*graph.Graph - The graph, not yet frozen.
//	error - *ParseError with the offending line.
func ParseOBO(r io.Reader, name string, opts ...graph.GraphOption) (*graph.Graph, error) {
	g := graph.NewGraph(name, opts...)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxOBOLine)

	var (
		term    *oboTerm
		inTerm  bool
		lineNum int
	)

	flush := func() error {
		if term == nil {
			return nil
		}
		defer func() { term = nil }()
		if term.id == "" {
			return &ParseError{Source: name, Line: term.line, Err: errors.New("[Term] stanza without id")}
		}
		if _, err := g.AddNode(term.id, term.name, term.meta()); err != nil {
			return &ParseError{Source: name, Line: term.line, Err: err}
		}
		for _, e := range term.edges {
			if err := g.AddEdge(term.id, e[1], e[0]); err != nil {
				return &ParseError{Source: name, Line: term.line, Err: err}
			}
		}
		return nil
	}

	for scanner.Scan() {
		lineNum++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "!") {
			continue
		}

		if strings.HasPrefix(line, "[") && strings.HasSuffix(line, "]") {
			if err := flush(); err != nil {
				return nil, err
			}
			inTerm = line == "[Term]"
			if inTerm {
				term = &oboTerm{line: lineNum}
			}
			continue
		}
		if !inTerm {
			continue
		}

		tag, value, ok := strings.Cut(line, ":")
		if !ok {
			return nil, &ParseError{Source: name, Line: lineNum, Err: fmt.Errorf("expected tag: value, got %q", line)}
		}
		value = strings.TrimSpace(value)

		switch tag {
		case "id":
			term.id = stripComment(value)
		case "name":
			term.name = value
		case "namespace":
			term.namespace = value
		case "def":
			term.definition = quoted(value)
		case "synonym":
			term.synonyms = append(term.synonyms, quoted(value))
		case "xref":
			term.xrefs = append(term.xrefs, firstField(stripComment(value)))
		case "subset":
			term.subsets = append(term.subsets, stripComment(value))
		case "is_obsolete":
			term.obsolete = value == "true"
		case "is_a":
			target := firstField(stripComment(value))
			if target == "" {
				return nil, &ParseError{Source: name, Line: lineNum, Err: errors.New("is_a without target")}
			}
			term.edges = append(term.edges, [2]string{graph.RelationIsA, target})
		case "relationship":
			fields := strings.Fields(stripComment(value))
			if len(fields) < 2 {
				return nil, &ParseError{Source: name, Line: lineNum, Err: fmt.Errorf("relationship needs a relation and a target: %q", value)}
			}
			term.edges = append(term.edges, [2]string{NormaliseRelation(fields[0]), fields[1]})
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Source: name, Line: lineNum, Err: err}
	}
	if err := flush(); err != nil {
		return nil, err
	}
	return g, nil
}

func (t *oboTerm) meta() map[string]any {
	meta := make(map[string]any)
	if t.namespace != "" {
		meta["namespace"] = t.namespace
	}
	if t.definition != "" {
		meta["definition"] = t.definition
	}
	if len(t.synonyms) > 0 {
		meta["synonyms"] = t.synonyms
	}
	if len(t.xrefs) > 0 {
		meta["xrefs"] = t.xrefs
	}
	if len(t.subsets) > 0 {
		meta["subsets"] = t.subsets
	}
	if t.obsolete {
		meta["deprecated"] = true
	}
	return meta
}

// stripComment removes a trailing "! comment" and "{qualifiers}".
func stripComment(value string) string {
	if i := strings.Index(value, " !"); i >= 0 {
		value = value[:i]
	} else if strings.HasPrefix(value, "!") {
		return ""
	}
	if i := strings.Index(value, "{"); i >= 0 {
		value = value[:i]
	}
	return strings.TrimSpace(value)
}

// quoted returns the content of a leading "..." string, honouring \"
// escapes. Values without a leading quote are returned trimmed.
func quoted(value string) string {
	if !strings.HasPrefix(value, `"`) {
		return strings.TrimSpace(value)
	}
	var b strings.Builder
	escaped := false
	for _, r := range value[1:] {
		switch {
		case escaped:
			b.WriteRune(r)
			escaped = false
		case r == '\\':
			escaped = true
		case r == '"':
			return b.String()
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func firstField(value string) string {
	fields := strings.Fields(value)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}
