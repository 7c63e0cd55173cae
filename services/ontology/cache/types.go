// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package cache keeps parsed ontologies between queries.
//
// A Cache is an explicit object with an injected lifetime: the CLI opens
// one per invocation, the HTTP service one per process. Lookups go through
// process memory, then a BadgerDB snapshot, then the source.
package cache

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/storage/badger"
)

// Default configuration values.
const (
	// DefaultTTL is how long a cached ontology is served before it is
	// reloaded from its source.
	DefaultTTL = 24 * time.Hour
)

// Storage key prefixes.
const (
	payloadPrefix = "ont:"
	infoPrefix    = "ontmeta:"
)

// ErrClosed is returned after Close.
var ErrClosed = errors.New("cache closed")

// Tier names where an entry was found.
const (
	TierMemory = "memory"
	TierDisk   = "disk"
	TierSource = "source"
)

// Source reads and parses ontology resources. *loader.Registry implements
// it.
type Source interface {
	Read(ctx context.Context, handle string) (*loader.Source, error)
	Parse(ctx context.Context, src *loader.Source) (*graph.Graph, error)
}

// Info describes a cached ontology.
type Info struct {
	// Handle is the key the ontology was requested under.
	Handle string `json:"handle"`

	// Location is the resolved file path or URL.
	Location string `json:"location"`

	// SourceDigest is the BLAKE3 digest of the source bytes.
	SourceDigest string `json:"source_digest"`

	// SourceModTime is the source file modification time; zero for URLs.
	SourceModTime time.Time `json:"source_mod_time,omitzero"`

	// PayloadDigest is the BLAKE3 digest of the uncompressed snapshot.
	PayloadDigest string `json:"payload_digest,omitempty"`

	// StoredAt is when the source was last parsed or verified.
	StoredAt time.Time `json:"stored_at"`

	// Nodes and Edges are the graph sizes.
	Nodes int `json:"nodes"`
	Edges int `json:"edges"`

	// CompressedBytes is the on-disk snapshot size.
	CompressedBytes int `json:"compressed_bytes,omitempty"`

	// InMemory and OnDisk report where the entry currently lives.
	InMemory bool `json:"in_memory"`
	OnDisk   bool `json:"on_disk"`
}

// Entry is a cache lookup result.
type Entry struct {
	Graph *graph.Graph
	Info  Info

	// Tier is where the entry was found: TierMemory, TierDisk or TierSource.
	Tier string
}

// Stats are cumulative cache counters.
type Stats struct {
	Entries  int   `json:"entries"`
	Hits     int64 `json:"hits"`
	DiskHits int64 `json:"disk_hits"`
	Misses   int64 `json:"misses"`
	Loads    int64 `json:"loads"`
	Errors   int64 `json:"errors"`
}

// Options configures a Cache.
type Options struct {
	// TTL bounds entry age. 0 disables expiry.
	TTL time.Duration

	// Store is the on-disk tier. nil keeps the cache memory-only.
	Store *badger.Store

	// Logger defaults to slog.Default().
	Logger *slog.Logger

	// Now is the clock. Tests override it.
	Now func() time.Time
}

// DefaultOptions returns a memory-only cache with DefaultTTL.
func DefaultOptions() Options {
	return Options{
		TTL:    DefaultTTL,
		Logger: slog.Default(),
		Now:    time.Now,
	}
}

// Option configures a Cache.
type Option func(*Options)

// WithTTL sets the entry TTL. 0 disables expiry.
func WithTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.TTL = ttl
	}
}

// WithStore enables the on-disk tier.
func WithStore(store *badger.Store) Option {
	return func(o *Options) {
		o.Store = store
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		if logger != nil {
			o.Logger = logger
		}
	}
}

// WithClock overrides the clock.
func WithClock(now func() time.Time) Option {
	return func(o *Options) {
		if now != nil {
			o.Now = now
		}
	}
}
