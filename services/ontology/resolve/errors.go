// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package resolve maps user supplied tokens to node ids of an ontology view.
//
// Tokens are matched by id, exact label, case-insensitive substring or
// regular expression, or through a remote terminology service. A token that
// matches nothing is not an error; it is reported back as unresolved so the
// caller can warn.
package resolve

import (
	"errors"
	"fmt"
)

// ErrResolutionUnavailable is returned when remote resolution fails for a
// network or service reason. Callers may fall back to local resolution.
var ErrResolutionUnavailable = errors.New("remote resolution unavailable")

// ErrNoRemote is returned when ModeRemote is requested but the Resolver has
// no RemoteResolver configured.
var ErrNoRemote = errors.New("no remote resolver configured")

// ResolutionUnavailableError wraps a remote failure for one token.
type ResolutionUnavailableError struct {
	// Token is the token being resolved when the failure happened.
	Token string

	// Cause is the transport or decoding error.
	Cause error
}

// Error implements the error interface.
func (e *ResolutionUnavailableError) Error() string {
	return fmt.Sprintf("resolving %q remotely: %v", e.Token, e.Cause)
}

// Unwrap returns ErrResolutionUnavailable and the cause.
func (e *ResolutionUnavailableError) Unwrap() []error {
	return []error{ErrResolutionUnavailable, e.Cause}
}
