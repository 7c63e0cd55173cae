// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"context"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

const tracerName = "ogr.service"

// GraphSource returns loaded ontologies by handle. *cache.Cache implements
// it.
type GraphSource interface {
	Get(ctx context.Context, handle string) (*cache.Entry, error)
}

// ServiceConfig configures query defaults.
type ServiceConfig struct {
	// DefaultDirections applies when a traverse request has no direction
	// parameter. Letters u and d, as ParseDirections reads them.
	DefaultDirections string

	// DefaultRelations applies when a request names no relation. Empty
	// means all relation types.
	DefaultRelations []string

	// Workers above 1 switches traversal to TraverseParallel.
	Workers int

	// MaxCycles caps the cycles returned when a request has no max.
	MaxCycles int
}

// DefaultServiceConfig returns the defaults: ancestors, all relations,
// sequential traversal and at most 100 cycles.
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		DefaultDirections: "u",
		MaxCycles:         100,
	}
}

// Service runs ontology queries against a GraphSource.
//
// Thread Safety: Safe for concurrent use. Graphs returned by the source are
// frozen.
type Service struct {
	graphs   GraphSource
	resolver *resolve.Resolver
	config   ServiceConfig
	watcher  *Watcher
	logger   *slog.Logger
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithWatcher registers the source file of every local ontology the service
// loads with w.
func WithWatcher(w *Watcher) ServiceOption {
	return func(s *Service) { s.watcher = w }
}

// WithServiceLogger sets the logger.
func WithServiceLogger(logger *slog.Logger) ServiceOption {
	return func(s *Service) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewService creates a service. A nil resolver gets a local-only Resolver.
func NewService(graphs GraphSource, resolver *resolve.Resolver, cfg ServiceConfig, opts ...ServiceOption) *Service {
	if resolver == nil {
		resolver = resolve.New()
	}
	if cfg.MaxCycles <= 0 {
		cfg.MaxCycles = DefaultServiceConfig().MaxCycles
	}
	s := &Service{
		graphs:   graphs,
		resolver: resolver,
		config:   cfg,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CacheStats returns the cache counters when the source is a *cache.Cache.
func (s *Service) CacheStats() (cache.Stats, bool) {
	if c, ok := s.graphs.(interface{ Stats() cache.Stats }); ok {
		return c.Stats(), true
	}
	return cache.Stats{}, false
}

// View loads resource and filters it to relations, or to the default
// relations when none are given.
func (s *Service) View(ctx context.Context, resource string, relations []string) (*graph.View, error) {
	if resource == "" {
		return nil, loader.ErrEmptyHandle
	}
	entry, err := s.graphs.Get(ctx, resource)
	if err != nil {
		return nil, err
	}
	if s.watcher != nil && entry.Info.Location != "" && !loader.IsURL(entry.Info.Location) {
		if err := s.watcher.Watch(entry.Info.Location); err != nil {
			s.logger.Warn("cannot watch ontology source", "location", entry.Info.Location, "error", err)
		}
	}
	if len(relations) == 0 {
		relations = s.config.DefaultRelations
	}
	return graph.Filter(entry.Graph, relations...), nil
}

// ResolveQuery is the input of Resolve.
type ResolveQuery struct {
	Resource  string
	Tokens    []string
	Mode      resolve.Mode
	Relations []string
}

// Resolve maps tokens to node ids of the resource.
func (s *Service) Resolve(ctx context.Context, q ResolveQuery) (*resolve.Resolution, *graph.View, error) {
	v, err := s.View(ctx, q.Resource, q.Relations)
	if err != nil {
		return nil, nil, err
	}
	res, err := s.resolver.ResolveDetailed(ctx, v, q.Tokens, q.Mode)
	if err != nil {
		return nil, nil, err
	}
	return res, v, nil
}

// TraverseQuery is the input of Traverse.
type TraverseQuery struct {
	Resource   string
	Tokens     []string
	Mode       resolve.Mode
	Directions string
	Relations  []string
}

// TraverseResult is the outcome of Traverse.
type TraverseResult struct {
	View       *graph.View
	Directions graph.Directions
	QueryIDs   []string
	Nodes      []string
	Unresolved []string
}

// Traverse resolves the query tokens and walks the view from them.
//
// Description:
//
//	An empty Directions uses the configured default. Traversal runs
//	level-parallel when the service has more than one worker.
//
// Outputs:
//
//	*TraverseResult - Query ids first, then discovered nodes.
//	error - Invalid direction or search flags, resource or resolution errors.
func (s *Service) Traverse(ctx context.Context, q TraverseQuery) (*TraverseResult, error) {
	ctx, span := telemetry.StartSpan(ctx, tracerName, "Service.Traverse",
		trace.WithAttributes(attribute.String("ontology.resource", q.Resource)),
	)
	defer span.End()

	letters := q.Directions
	if letters == "" {
		letters = s.config.DefaultDirections
	}
	dirs, err := graph.ParseDirections(letters)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	res, v, err := s.Resolve(ctx, ResolveQuery{Resource: q.Resource, Tokens: q.Tokens, Mode: q.Mode, Relations: q.Relations})
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	var nodes []string
	if s.config.Workers > 1 {
		nodes, err = graph.TraverseParallel(ctx, v, res.IDs, dirs.Up, dirs.Down, s.config.Workers)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, err
		}
	} else {
		start := time.Now()
		nodes = graph.TraverseDirections(v, res.IDs, dirs)
		graph.RecordQuery(ctx, "traverse", time.Since(start), len(nodes))
	}

	span.SetAttributes(attribute.Int("result.nodes", len(nodes)))
	telemetry.SetSpanOK(span)
	return &TraverseResult{
		View:       v,
		Directions: dirs,
		QueryIDs:   res.IDs,
		Nodes:      nodes,
		Unresolved: res.Unresolved,
	}, nil
}

// LevelQuery is the input of Level.
type LevelQuery struct {
	Resource  string
	Level     int
	Relations []string
	Prefix    string
}

// Level returns the nodes at exactly q.Level steps below the view roots.
func (s *Service) Level(ctx context.Context, q LevelQuery) ([]string, *graph.View, error) {
	v, err := s.View(ctx, q.Resource, q.Relations)
	if err != nil {
		return nil, nil, err
	}
	start := time.Now()
	ids, err := graph.Level(v, q.Level, graph.LevelOptions{Direction: graph.Down, Prefix: q.Prefix})
	if err != nil {
		return nil, nil, err
	}
	graph.RecordQuery(ctx, "level", time.Since(start), len(ids))
	return ids, v, nil
}

// Cycles returns up to limit simple cycles of the filtered resource.
// limit <= 0 uses the configured cap. The flag reports whether more cycles
// exist.
func (s *Service) Cycles(ctx context.Context, resource string, relations []string, limit int) ([][]string, bool, error) {
	v, err := s.View(ctx, resource, relations)
	if err != nil {
		return nil, false, err
	}
	if limit <= 0 {
		limit = s.config.MaxCycles
	}
	start := time.Now()
	cycles, truncated := graph.CollectCycles(v, limit)
	graph.RecordQuery(ctx, "cycles", time.Since(start), len(cycles))
	return cycles, truncated, nil
}

// SlimResult is the outcome of Slim.
type SlimResult struct {
	Graph      *graph.Graph
	QueryIDs   []string
	Unresolved []string
}

// Slim resolves req.IDs and computes the minimal reachability-preserving
// subgraph among them.
func (s *Service) Slim(ctx context.Context, resource string, req SlimRequest) (*SlimResult, error) {
	mode, err := resolve.ParseMode(req.Search)
	if err != nil {
		return nil, err
	}
	res, v, err := s.Resolve(ctx, ResolveQuery{Resource: resource, Tokens: req.IDs, Mode: mode, Relations: req.Relations})
	if err != nil {
		return nil, err
	}
	start := time.Now()
	g := graph.Slim(v, res.IDs)
	graph.RecordQuery(ctx, "slim", time.Since(start), g.NodeCount())
	return &SlimResult{Graph: g, QueryIDs: res.IDs, Unresolved: res.Unresolved}, nil
}
