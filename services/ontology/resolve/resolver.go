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
	"context"
	"log/slog"
	"regexp"
	"slices"
	"strings"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// Resolution is the detailed outcome of resolving a token list.
type Resolution struct {
	// IDs are the resolved node ids: tokens in order, each token's matches
	// in view order, duplicates removed.
	IDs []string `json:"ids"`

	// Unresolved lists tokens that matched nothing, in input order.
	Unresolved []string `json:"unresolved,omitempty"`
}

// Resolver maps tokens to node ids.
//
// Thread Safety: Safe for concurrent use if the RemoteResolver is.
type Resolver struct {
	remote         RemoteResolver
	searchDefaults SearchOptions
	logger         *slog.Logger
}

// Option configures a Resolver.
type Option func(*Resolver)

// WithRemote installs the remote terminology service used by ModeRemote.
func WithRemote(remote RemoteResolver) Option {
	return func(r *Resolver) {
		r.remote = remote
	}
}

// WithRemoteOntology restricts remote searches to one ontology.
func WithRemoteOntology(name string) Option {
	return func(r *Resolver) {
		r.searchDefaults.Ontology = name
	}
}

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(r *Resolver) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// New creates a Resolver.
func New(opts ...Option) *Resolver {
	r := &Resolver{logger: slog.Default()}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// HasRemote reports whether a remote resolver is configured.
func (r *Resolver) HasRemote() bool {
	return r.remote != nil
}

// Resolve returns the resolved ids. See ResolveDetailed.
func (r *Resolver) Resolve(ctx context.Context, v *graph.View, tokens []string, mode Mode) ([]string, error) {
	res, err := r.ResolveDetailed(ctx, v, tokens, mode)
	if err != nil {
		return nil, err
	}
	return res.IDs, nil
}

// ResolveDetailed resolves tokens against the view.
//
// Description:
//
//	Exact mode (neither partial nor regex): a CURIE-shaped token
//	("PREFIX:LOCAL", one colon, both parts non-empty) that is a node of
//	the view resolves to itself. Any other token is looked up as a
//	case-sensitive exact label.
//
//	Partial mode matches labels containing the token, ignoring case.
//	Regex mode matches labels against the token as an RE2 expression
//	(unanchored). With both set a node matching either is returned.
//
//	Remote mode asks the RemoteResolver instead of scanning labels and
//	keeps the returned ids that are nodes of the view. Partial or regex
//	set alongside remote request a non-exact remote search.
//
// Outputs:
//
//	*Resolution - Resolved ids and unresolved tokens.
//	error - *graph.InvalidQueryError for an invalid regex (checked for all
//	        tokens before any lookup), *ResolutionUnavailableError or
//	        ErrNoRemote for remote failures.
func (r *Resolver) ResolveDetailed(ctx context.Context, v *graph.View, tokens []string, mode Mode) (*Resolution, error) {
	ctx, span := tracer.Start(ctx, "Resolver.Resolve")
	defer span.End()
	span.SetAttributes(
		attribute.Int("tokens", len(tokens)),
		attribute.String("mode", mode.String()),
	)

	var patterns []*regexp.Regexp
	if mode.Has(ModeRegex) {
		patterns = make([]*regexp.Regexp, len(tokens))
		for i, token := range tokens {
			re, err := regexp.Compile(token)
			if err != nil {
				qerr := graph.NewInvalidQueryError(token, "invalid regular expression", err)
				span.RecordError(qerr)
				span.SetStatus(codes.Error, qerr.Error())
				return nil, qerr
			}
			patterns[i] = re
		}
	}

	if mode.Has(ModeRemote) && r.remote == nil {
		span.SetStatus(codes.Error, ErrNoRemote.Error())
		return nil, ErrNoRemote
	}

	res := &Resolution{IDs: make([]string, 0, len(tokens))}
	seen := make(map[string]bool)
	var index *LabelIndex

	for i, token := range tokens {
		var matches []string
		switch {
		case mode.Has(ModeRemote):
			ids, err := r.remoteMatches(ctx, v, token, mode)
			if err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, err.Error())
				return nil, err
			}
			matches = ids

		case mode.Has(ModePartial) || mode.Has(ModeRegex):
			var re *regexp.Regexp
			if patterns != nil {
				re = patterns[i]
			}
			matches = scanLabels(v, token, mode.Has(ModePartial), re)

		default:
			if isCURIE(token) && v.HasNode(token) {
				matches = []string{token}
				break
			}
			if index == nil {
				index = NewLabelIndex(v)
			}
			matches = index.Exact(token)
		}

		if len(matches) == 0 {
			res.Unresolved = append(res.Unresolved, token)
			r.logger.Debug("token unresolved", "token", token, "mode", mode.String())
			continue
		}
		for _, id := range matches {
			if !seen[id] {
				seen[id] = true
				res.IDs = append(res.IDs, id)
			}
		}
	}

	span.SetAttributes(
		attribute.Int("resolved", len(res.IDs)),
		attribute.Int("unresolved", len(res.Unresolved)),
	)
	span.SetStatus(codes.Ok, "")
	return res, nil
}

// remoteMatches queries the remote service and keeps view nodes, ordered
// by view position.
func (r *Resolver) remoteMatches(ctx context.Context, v *graph.View, token string, mode Mode) ([]string, error) {
	opts := r.searchDefaults
	opts.Exact = !mode.Has(ModePartial) && !mode.Has(ModeRegex)

	ids, err := r.remote.Search(ctx, token, opts)
	if err != nil {
		r.logger.Warn("remote resolution failed", "token", token, "error", err)
		return nil, &ResolutionUnavailableError{Token: token, Cause: err}
	}

	var nodes []*graph.Node
	for _, id := range ids {
		if node, ok := v.GetNode(id); ok {
			nodes = append(nodes, node)
		}
	}
	slices.SortFunc(nodes, func(a, b *graph.Node) int { return a.Index() - b.Index() })
	matches := make([]string, 0, len(nodes))
	for i, node := range nodes {
		if i > 0 && nodes[i-1] == node {
			continue
		}
		matches = append(matches, node.ID)
	}
	return matches, nil
}

// scanLabels returns view nodes whose label contains token (case
// insensitive, when partial) or matches re, in view order.
func scanLabels(v *graph.View, token string, partial bool, re *regexp.Regexp) []string {
	needle := strings.ToLower(token)
	var matches []string
	for node := range v.Nodes() {
		if node.Label == "" {
			continue
		}
		if partial && strings.Contains(strings.ToLower(node.Label), needle) {
			matches = append(matches, node.ID)
			continue
		}
		if re != nil && re.MatchString(node.Label) {
			matches = append(matches, node.ID)
		}
	}
	return matches
}

// isCURIE reports whether token has the shape PREFIX:LOCAL with exactly one
// colon and non-empty parts.
func isCURIE(token string) bool {
	prefix, local, found := strings.Cut(token, ":")
	return found && prefix != "" && local != "" && !strings.Contains(local, ":")
}
