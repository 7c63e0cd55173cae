// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"io"
	"os"
	"strings"

	"github.com/mattn/go-isatty"
)

// EnvMode overrides output mode detection: "styled" or "plain".
const EnvMode = "OGR_OUTPUT"

// Mode controls how a Printer decorates its output.
type Mode string

const (
	// ModeStyled uses colours, icons and bordered tables.
	ModeStyled Mode = "styled"

	// ModePlain writes undecorated, tab-separated text suitable for
	// scripting and parsing.
	ModePlain Mode = "plain"
)

// ParseMode converts a string to a Mode. Unknown values are plain.
func ParseMode(s string) Mode {
	switch strings.ToLower(s) {
	case "styled", "style", "s", "full":
		return ModeStyled
	default:
		return ModePlain
	}
}

// DetectMode picks the mode for w.
//
// Description:
//
//	OGR_OUTPUT wins when set. Otherwise w gets styled output only when it
//	is a terminal and NO_COLOR is unset.
func DetectMode(w io.Writer) Mode {
	if env := os.Getenv(EnvMode); env != "" {
		return ParseMode(env)
	}
	if os.Getenv("NO_COLOR") != "" {
		return ModePlain
	}
	if isTerminal(w) {
		return ModeStyled
	}
	return ModePlain
}

// isTerminal reports whether w is a terminal file.
func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	return isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
}
