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
	"fmt"
	"strings"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// Mode is a set of resolution flags. The zero value is exact matching.
type Mode uint8

const (
	// ModeRemote consults the configured RemoteResolver.
	ModeRemote Mode = 1 << iota

	// ModePartial matches case-insensitive label substrings.
	ModePartial

	// ModeRegex matches labels against a regular expression.
	ModeRegex

	// ModeExact is the zero mode: id, then exact label.
	ModeExact Mode = 0
)

// Has reports whether every flag in flag is set.
func (m Mode) Has(flag Mode) bool {
	return m&flag == flag
}

// String renders the mode as its flag letters: x (remote), p (partial),
// r (regex). Exact mode renders as "exact".
func (m Mode) String() string {
	var b strings.Builder
	if m.Has(ModePartial) {
		b.WriteByte('p')
	}
	if m.Has(ModeRegex) {
		b.WriteByte('r')
	}
	if m.Has(ModeRemote) {
		b.WriteByte('x')
	}
	if b.Len() == 0 {
		return "exact"
	}
	return b.String()
}

// ParseMode parses a search flag string made of the letters p (partial),
// r (regex) and x (remote), in any order. The empty string is exact mode.
func ParseMode(flags string) (Mode, error) {
	var m Mode
	for _, r := range flags {
		switch r {
		case 'p':
			m |= ModePartial
		case 'r':
			m |= ModeRegex
		case 'x':
			m |= ModeRemote
		default:
			return 0, graph.NewInvalidQueryError(flags, fmt.Sprintf("unknown search flag %q", r), nil)
		}
	}
	return m, nil
}
