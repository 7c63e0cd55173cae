// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package query runs the ogr query pipeline: level ids and resolved ids,
// traversal, and an optional slim.
package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/render"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

const tracerName = "ogr.query"

// Exit codes.
const (
	ExitOK    = 0
	ExitError = 1
	ExitUsage = 2
)

// ErrUsage marks a request the user has to fix: a missing resource or
// conflicting flags.
var ErrUsage = errors.New("usage error")

// =============================================================================
// Metrics
// =============================================================================

var (
	queriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ogr_queries_total",
		Help: "Queries run by the ogr pipeline, by result.",
	}, []string{"result"})

	unresolvedTokens = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ogr_unresolved_tokens_total",
		Help: "Query tokens that matched no node.",
	})

	remoteFallbacks = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ogr_remote_fallbacks_total",
		Help: "Queries that fell back to local resolution after a remote failure.",
	})
)

// GraphSource returns loaded ontologies by handle. *cache.Cache implements
// it.
type GraphSource interface {
	Get(ctx context.Context, handle string) (*cache.Entry, error)
}

// Request is one ogr invocation.
type Request struct {
	// Resource is the ontology handle (-r).
	Resource string

	// Tokens are the positional ids or labels.
	Tokens []string

	// Search holds the resolution flags (-s).
	Search resolve.Mode

	// Directions selects ancestors and/or descendants (-d).
	Directions graph.Directions

	// Relations filters edges (-p). Empty means all.
	Relations []string

	// Level, when non-nil, adds all nodes at that level (-L).
	Level *int

	// Prefix restricts level roots and results to one CURIE prefix (-P).
	Prefix string

	// Slim computes the minimal subgraph over the query ids (-S m).
	Slim bool

	// Parallel above 1 traverses with that many workers.
	Parallel int
}

// Result is the outcome of a query.
type Result struct {
	// QueryID identifies the run in logs.
	QueryID string

	// View is the filtered view the nodes belong to. After a slim it is a
	// view of the slim graph.
	View *graph.View

	// QueryIDs are the level ids followed by the resolved ids.
	QueryIDs []string

	// Nodes are the traversal result: query ids first, then discovered
	// nodes.
	Nodes []string

	// Slim is the slim graph when Request.Slim was set.
	Slim *graph.Graph

	// Unresolved lists tokens that matched nothing.
	Unresolved []string

	// Warnings are non-fatal problems worth showing the user.
	Warnings []string

	// Tier is where the ontology came from: memory, disk or source.
	Tier string
}

// Subgraph returns the drawable subgraph of the result.
func (r *Result) Subgraph(containerRelations []string) *render.Subgraph {
	return &render.Subgraph{
		View:               r.View,
		Nodes:              r.Nodes,
		QueryIDs:           r.QueryIDs,
		ContainerRelations: containerRelations,
	}
}

// Querier runs requests against a GraphSource.
//
// Thread Safety: Safe for concurrent use.
type Querier struct {
	graphs   GraphSource
	resolver *resolve.Resolver
	logger   *slog.Logger
}

// New creates a Querier. A nil resolver gets a local-only Resolver and a
// nil logger uses slog.Default.
func New(graphs GraphSource, resolver *resolve.Resolver, logger *slog.Logger) *Querier {
	if resolver == nil {
		resolver = resolve.New()
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Querier{graphs: graphs, resolver: resolver, logger: logger}
}

// Run executes req.
//
// Description:
//
//	1. Load the resource and filter it to req.Relations.
//	2. Query ids: the level query (if any), then the resolved tokens.
//	   A remote resolution failure falls back to local resolution with the
//	   same partial and regex flags, and adds a warning.
//	3. Traverse from the query ids in req.Directions.
//	4. Optionally replace the view with the slim graph of the query ids.
//
// Outputs:
//
//	*Result - Always non-nil on success, even when nothing matched.
//	error - ErrUsage, graph.ErrInvalidQuery, loader errors, or resolution
//	        errors other than a recoverable remote failure.
func (q *Querier) Run(ctx context.Context, req Request) (*Result, error) {
	res := &Result{QueryID: uuid.NewString()}
	logger := q.logger.With("query_id", res.QueryID, "resource", req.Resource)

	ctx, span := telemetry.StartSpan(ctx, tracerName, "Querier.Run",
		trace.WithAttributes(
			attribute.String("query.id", res.QueryID),
			attribute.String("ontology.resource", req.Resource),
			attribute.String("query.directions", req.Directions.String()),
		),
	)
	defer span.End()

	if err := q.run(ctx, logger, req, res); err != nil {
		queriesTotal.WithLabelValues("error").Inc()
		telemetry.RecordError(span, err)
		return nil, err
	}

	queriesTotal.WithLabelValues("ok").Inc()
	span.SetAttributes(
		attribute.Int("query.ids", len(res.QueryIDs)),
		attribute.Int("result.nodes", len(res.Nodes)),
	)
	telemetry.SetSpanOK(span)
	return res, nil
}

func (q *Querier) run(ctx context.Context, logger *slog.Logger, req Request, res *Result) error {
	if req.Resource == "" {
		return fmt.Errorf("%w: a resource (-r) is required", ErrUsage)
	}

	entry, err := q.graphs.Get(ctx, req.Resource)
	if err != nil {
		return fmt.Errorf("load %s: %w", req.Resource, err)
	}
	res.Tier = entry.Tier
	logger.Info("ontology ready", "tier", entry.Tier, "nodes", entry.Info.Nodes, "edges", entry.Info.Edges)

	v := graph.Filter(entry.Graph, req.Relations...)

	if req.Level != nil {
		start := time.Now()
		ids, err := graph.Level(v, *req.Level, graph.LevelOptions{Direction: graph.Down, Prefix: req.Prefix})
		if err != nil {
			return err
		}
		graph.RecordQuery(ctx, "level", time.Since(start), len(ids))
		logger.Info("level query", "level", *req.Level, "ids", len(ids))
		res.QueryIDs = append(res.QueryIDs, ids...)
	}

	resolution, err := q.resolve(ctx, logger, v, req, res)
	if err != nil {
		return err
	}
	for _, id := range resolution.IDs {
		if !slices.Contains(res.QueryIDs, id) {
			res.QueryIDs = append(res.QueryIDs, id)
		}
	}
	if len(resolution.Unresolved) > 0 {
		res.Unresolved = resolution.Unresolved
		unresolvedTokens.Add(float64(len(resolution.Unresolved)))
		for _, token := range resolution.Unresolved {
			res.Warnings = append(res.Warnings, fmt.Sprintf("no match for %q", token))
		}
	}
	logger.Info("query ids", "ids", res.QueryIDs)

	if req.Parallel > 1 {
		res.Nodes, err = graph.TraverseParallel(ctx, v, res.QueryIDs, req.Directions.Up, req.Directions.Down, req.Parallel)
		if err != nil {
			return err
		}
	} else {
		start := time.Now()
		res.Nodes = graph.TraverseDirections(v, res.QueryIDs, req.Directions)
		graph.RecordQuery(ctx, "traverse", time.Since(start), len(res.Nodes))
	}

	res.View = v
	if req.Slim {
		start := time.Now()
		res.Slim = graph.Slim(v, res.QueryIDs)
		graph.RecordQuery(ctx, "slim", time.Since(start), res.Slim.NodeCount())
		logger.Info("slimmed", "nodes", res.Slim.NodeCount(), "edges", res.Slim.EdgeCount())
		res.View = graph.Filter(res.Slim)
	}
	return nil
}

// resolve runs the resolver, retrying locally when remote resolution is
// unavailable.
func (q *Querier) resolve(ctx context.Context, logger *slog.Logger, v *graph.View, req Request, res *Result) (*resolve.Resolution, error) {
	if len(req.Tokens) == 0 {
		return &resolve.Resolution{}, nil
	}
	resolution, err := q.resolver.ResolveDetailed(ctx, v, req.Tokens, req.Search)
	if err == nil {
		return resolution, nil
	}
	if !req.Search.Has(resolve.ModeRemote) || !errors.Is(err, resolve.ErrResolutionUnavailable) {
		return nil, err
	}

	remoteFallbacks.Inc()
	logger.Warn("remote resolution failed, falling back to local search", "error", err)
	res.Warnings = append(res.Warnings, fmt.Sprintf("remote resolution unavailable, used local search: %v", err))
	return q.resolver.ResolveDetailed(ctx, v, req.Tokens, req.Search&^resolve.ModeRemote)
}

// ExitCode maps an error from Run (or flag parsing) to a process exit code.
func ExitCode(err error) int {
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, ErrUsage), errors.Is(err, graph.ErrInvalidQuery), errors.Is(err, resolve.ErrNoRemote):
		return ExitUsage
	default:
		return ExitError
	}
}
