// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package loader turns ontology resources into frozen graphs.
//
// A resource handle is a configured resource name, a file path, a name
// matched against the configured search path globs, or an http(s) URL.
// Two formats are understood: OBO Graphs JSON and the OBO flat file format.
package loader

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for loading.
var (
	// ErrResourceNotFound indicates a handle did not name any resource.
	ErrResourceNotFound = errors.New("ontology resource not found")

	// ErrUnsupportedFormat indicates the content is neither OBO Graphs JSON
	// nor an OBO flat file.
	ErrUnsupportedFormat = errors.New("unsupported ontology format")

	// ErrEmptyHandle indicates an empty resource handle.
	ErrEmptyHandle = errors.New("resource handle must not be empty")
)

// ResourceNotFoundError reports a handle that could not be located.
type ResourceNotFoundError struct {
	// Handle is the handle as given.
	Handle string

	// Searched lists the locations and patterns that were tried.
	Searched []string
}

// Error implements the error interface.
func (e *ResourceNotFoundError) Error() string {
	if len(e.Searched) == 0 {
		return fmt.Sprintf("ontology resource not found: %q", e.Handle)
	}
	return fmt.Sprintf("ontology resource not found: %q (searched %s)", e.Handle, strings.Join(e.Searched, ", "))
}

// Unwrap returns ErrResourceNotFound for errors.Is() compatibility.
func (e *ResourceNotFoundError) Unwrap() error {
	return ErrResourceNotFound
}

// ParseError reports malformed content at a line (OBO) or in a document
// (JSON, Line is 0).
type ParseError struct {
	Source string
	Line   int
	Err    error
}

// Error implements the error interface.
func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("parse %s:%d: %v", e.Source, e.Line, e.Err)
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

// Unwrap returns the underlying error.
func (e *ParseError) Unwrap() error {
	return e.Err
}
