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
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

var tracer = otel.Tracer("ogr.loader")

// DefaultMaxBytes bounds a single resource read (512 MiB).
const DefaultMaxBytes int64 = 512 << 20

// Source is the raw content of a located resource.
type Source struct {
	// Handle is the handle the caller asked for.
	Handle string

	// Location is the resolved file path or URL.
	Location string

	// Content is the raw resource bytes.
	Content []byte

	// ModTime is the file modification time; zero for URLs.
	ModTime time.Time
}

// IsRemote reports whether the source was fetched over HTTP.
func (s *Source) IsRemote() bool {
	return IsURL(s.Location)
}

// RegistryConfig configures a Registry.
type RegistryConfig struct {
	// Resources maps resource names to file paths or URLs.
	Resources map[string]string

	// SearchPaths are doublestar glob patterns of candidate files, e.g.
	// "~/ontologies/**/*.{obo,json}". A handle matches a file whose base
	// name without extension equals the handle.
	SearchPaths []string

	// HTTPClient fetches URL resources. Default: 60s timeout.
	HTTPClient *http.Client

	// MaxBytes bounds a single read. Default: DefaultMaxBytes.
	MaxBytes int64

	// GraphOptions are applied to every parsed graph.
	GraphOptions []graph.GraphOption

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// Registry locates, reads and parses ontology resources.
//
// Thread Safety: Safe for concurrent use; the configuration is immutable
// after NewRegistry.
type Registry struct {
	resources   map[string]string
	searchPaths []string
	httpClient  *http.Client
	maxBytes    int64
	graphOpts   []graph.GraphOption
	logger      *slog.Logger
}

// NewRegistry creates a registry.
func NewRegistry(cfg RegistryConfig) *Registry {
	r := &Registry{
		resources:   maps.Clone(cfg.Resources),
		searchPaths: slices.Clone(cfg.SearchPaths),
		httpClient:  cfg.HTTPClient,
		maxBytes:    cfg.MaxBytes,
		graphOpts:   cfg.GraphOptions,
		logger:      cfg.Logger,
	}
	if r.resources == nil {
		r.resources = make(map[string]string)
	}
	if r.httpClient == nil {
		r.httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	if r.maxBytes <= 0 {
		r.maxBytes = DefaultMaxBytes
	}
	if r.logger == nil {
		r.logger = slog.Default()
	}
	return r
}

// Names returns the configured resource names, sorted.
func (r *Registry) Names() []string {
	return slices.Sorted(maps.Keys(r.resources))
}

// Locate resolves a handle to a file path or URL.
//
// Description:
//
//	Lookup order: configured resource name, http(s) URL, existing file
//	path, then search path globs (first match in lexical order).
//
// Outputs:
//
//	string - Absolute file path or URL.
//	error - ErrEmptyHandle or *ResourceNotFoundError.
func (r *Registry) Locate(handle string) (string, error) {
	if handle == "" {
		return "", ErrEmptyHandle
	}
	searched := make([]string, 0, len(r.searchPaths)+2)

	target := handle
	if configured, ok := r.resources[handle]; ok {
		target = configured
		searched = append(searched, "resources."+handle)
	}
	if IsURL(target) {
		return target, nil
	}

	path := expandHome(target)
	searched = append(searched, path)
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		if abs, err := filepath.Abs(path); err == nil {
			return abs, nil
		}
		return path, nil
	}

	for _, pattern := range r.searchPaths {
		pattern = expandHome(pattern)
		searched = append(searched, pattern)
		matches, err := doublestar.FilepathGlob(pattern, doublestar.WithFilesOnly())
		if err != nil {
			r.logger.Warn("invalid search path pattern", "pattern", pattern, "error", err)
			continue
		}
		slices.Sort(matches)
		for _, m := range matches {
			if baseName(m) == handle {
				if abs, err := filepath.Abs(m); err == nil {
					return abs, nil
				}
				return m, nil
			}
		}
	}
	return "", &ResourceNotFoundError{Handle: handle, Searched: searched}
}

// Read locates a handle and reads its content.
func (r *Registry) Read(ctx context.Context, handle string) (*Source, error) {
	ctx, span := tracer.Start(ctx, "Registry.Read")
	defer span.End()
	span.SetAttributes(attribute.String("ontology.handle", handle))

	location, err := r.Locate(handle)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(attribute.String("ontology.location", location))

	src := &Source{Handle: handle, Location: location}
	if IsURL(location) {
		src.Content, err = r.fetch(ctx, location)
	} else {
		src.Content, src.ModTime, err = r.readFile(location)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	span.SetAttributes(attribute.Int("ontology.bytes", len(src.Content)))
	span.SetStatus(codes.Ok, "")
	r.logger.Debug("ontology resource read", "handle", handle, "location", location, "bytes", len(src.Content))
	return src, nil
}

// Parse decodes a source into a frozen graph named after its handle.
func (r *Registry) Parse(ctx context.Context, src *Source) (*graph.Graph, error) {
	_, span := tracer.Start(ctx, "Registry.Parse")
	defer span.End()

	start := time.Now()
	g, err := Parse(src.Handle, src.Location, src.Content, r.graphOpts...)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	span.SetAttributes(
		attribute.Int("ontology.nodes", g.NodeCount()),
		attribute.Int("ontology.edges", g.EdgeCount()),
	)
	span.SetStatus(codes.Ok, "")
	r.logger.Info("ontology loaded",
		"handle", src.Handle,
		"nodes", g.NodeCount(),
		"edges", g.EdgeCount(),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return g, nil
}

// Load reads and parses a handle.
func (r *Registry) Load(ctx context.Context, handle string) (*graph.Graph, error) {
	src, err := r.Read(ctx, handle)
	if err != nil {
		return nil, err
	}
	return r.Parse(ctx, src)
}

func (r *Registry) readFile(path string) ([]byte, time.Time, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("open ontology file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("stat ontology file: %w", err)
	}
	if info.Size() > r.maxBytes {
		return nil, time.Time{}, fmt.Errorf("ontology file %s is %d bytes, limit is %d", path, info.Size(), r.maxBytes)
	}
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, time.Time{}, fmt.Errorf("read ontology file: %w", err)
	}
	return data, info.ModTime(), nil
}

func (r *Registry) fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch ontology: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, &ResourceNotFoundError{Handle: url, Searched: []string{url}}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch ontology %s: status %d", url, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, r.maxBytes+1))
	if err != nil {
		return nil, fmt.Errorf("read ontology response: %w", err)
	}
	if int64(len(data)) > r.maxBytes {
		return nil, errors.New("ontology response exceeds size limit")
	}
	return data, nil
}

// IsURL reports whether s is an http or https URL.
func IsURL(s string) bool {
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// baseName strips directories and every extension: "/x/go.obo" -> "go".
func baseName(path string) string {
	base := filepath.Base(path)
	if i := strings.Index(base, "."); i > 0 {
		return base[:i]
	}
	return base
}

func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") || path == "~" {
		if home, err := os.UserHomeDir(); err == nil {
			return filepath.Join(home, path[1:])
		}
	}
	return path
}
