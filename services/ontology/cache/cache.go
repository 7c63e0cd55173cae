// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"slices"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/singleflight"

	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/storage/badger"
)

type memEntry struct {
	graph *graph.Graph
	info  Info
}

// Cache is a two-tier ontology cache.
//
// Thread Safety:
//
//	Cache is safe for concurrent use. Cached graphs are frozen, so one
//	graph may be shared by any number of readers.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]*memEntry
	flight  singleflight.Group
	source  Source
	options Options
	closed  atomic.Bool

	hits     int64
	diskHits int64
	misses   int64
	loads    int64
	errors   int64
}

// New creates a cache reading misses from source.
func New(source Source, opts ...Option) *Cache {
	options := DefaultOptions()
	for _, opt := range opts {
		opt(&options)
	}
	return &Cache{
		entries: make(map[string]*memEntry),
		source:  source,
		options: options,
	}
}

// Get returns the ontology for handle, loading it on a miss.
//
// Description:
//
//	Lookup order:
//	  1. Process memory, if the entry is younger than the TTL.
//	  2. The on-disk snapshot. For a local file whose modification time
//	     changed, the file is re-read and its digest compared; an equal
//	     digest keeps the snapshot.
//	  3. The source. The parsed graph is written to both tiers.
//
//	Concurrent misses for one handle share a single load.
//
// Outputs:
//
//	*Entry - The graph and its cache info.
//	error - Source errors (loader.ErrResourceNotFound, parse errors) or
//	        ErrClosed. On-disk tier failures are logged, never returned.
func (c *Cache) Get(ctx context.Context, handle string) (*Entry, error) {
	if c.closed.Load() {
		return nil, ErrClosed
	}
	if e, ok := c.memory(handle); ok {
		atomic.AddInt64(&c.hits, 1)
		cacheHits.WithLabelValues(TierMemory).Inc()
		return e, nil
	}

	result, err, _ := c.flight.Do(handle, func() (interface{}, error) {
		if e, ok := c.memory(handle); ok {
			return e, nil
		}
		return c.fill(ctx, handle)
	})
	if err != nil {
		atomic.AddInt64(&c.errors, 1)
		return nil, err
	}
	return result.(*Entry), nil
}

// memory returns an unexpired in-memory entry.
func (c *Cache) memory(handle string) (*Entry, bool) {
	c.mu.RLock()
	m, ok := c.entries[handle]
	c.mu.RUnlock()
	if !ok || c.isExpired(m.info.StoredAt) {
		return nil, false
	}
	info := m.info
	info.InMemory = true
	return &Entry{Graph: m.graph, Info: info, Tier: TierMemory}, true
}

// fill resolves a memory miss from disk or source.
func (c *Cache) fill(ctx context.Context, handle string) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "Cache.fill")
	defer span.End()
	span.SetAttributes(attribute.String("ontology.handle", handle))

	var src *loader.Source
	if c.options.Store != nil {
		entry, read, err := c.fromDisk(ctx, handle)
		if err != nil {
			c.options.Logger.Warn("ontology snapshot unusable", "handle", handle, "error", err)
		}
		if entry != nil {
			atomic.AddInt64(&c.diskHits, 1)
			cacheHits.WithLabelValues(TierDisk).Inc()
			c.remember(entry)
			span.SetAttributes(attribute.String("cache.tier", TierDisk))
			span.SetStatus(codes.Ok, "")
			return entry, nil
		}
		src = read
	}

	atomic.AddInt64(&c.misses, 1)
	cacheMisses.Inc()

	entry, err := c.load(ctx, handle, src)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}
	c.remember(entry)
	span.SetAttributes(attribute.String("cache.tier", TierSource))
	span.SetStatus(codes.Ok, "")
	return entry, nil
}

// fromDisk returns the on-disk entry when it is still valid. When the
// source had to be read to decide, the read source is returned for reuse.
func (c *Cache) fromDisk(ctx context.Context, handle string) (*Entry, *loader.Source, error) {
	info, err := c.readInfo(ctx, handle)
	if errors.Is(err, badger.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, err
	}
	if c.isExpired(info.StoredAt) {
		return nil, nil, nil
	}

	var src *loader.Source
	if !info.SourceModTime.IsZero() && !loader.IsURL(info.Location) {
		stat, err := os.Stat(info.Location)
		if err != nil {
			return nil, nil, fmt.Errorf("stat source: %w", err)
		}
		if !stat.ModTime().Equal(info.SourceModTime) {
			src, err = c.source.Read(ctx, handle)
			if err != nil {
				return nil, nil, err
			}
			if Digest(src.Content) != info.SourceDigest {
				return nil, src, nil
			}
			info.SourceModTime = src.ModTime
			info.StoredAt = c.options.Now()
			if err := c.writeInfo(ctx, info); err != nil {
				c.options.Logger.Warn("failed to refresh snapshot info", "handle", handle, "error", err)
			}
		}
	}

	payload, err := c.options.Store.Get(ctx, payloadPrefix+handle)
	if err != nil {
		return nil, src, fmt.Errorf("read snapshot: %w", err)
	}
	g, err := decodeGraph(payload, info.PayloadDigest)
	if err != nil {
		return nil, src, err
	}
	info.OnDisk = true
	return &Entry{Graph: g, Info: *info, Tier: TierDisk}, nil, nil
}

// load reads (unless src is given) and parses the source, then writes the
// snapshot.
func (c *Cache) load(ctx context.Context, handle string, src *loader.Source) (*Entry, error) {
	start := time.Now()
	var err error
	if src == nil {
		src, err = c.source.Read(ctx, handle)
		if err != nil {
			loadDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
			return nil, err
		}
	}
	g, err := c.source.Parse(ctx, src)
	if err != nil {
		loadDuration.WithLabelValues("error").Observe(time.Since(start).Seconds())
		return nil, err
	}
	loadDuration.WithLabelValues("ok").Observe(time.Since(start).Seconds())
	atomic.AddInt64(&c.loads, 1)

	info := Info{
		Handle:        handle,
		Location:      src.Location,
		SourceDigest:  Digest(src.Content),
		SourceModTime: src.ModTime,
		StoredAt:      c.options.Now(),
		Nodes:         g.NodeCount(),
		Edges:         g.EdgeCount(),
	}
	if c.options.Store != nil {
		if err := c.writeSnapshot(ctx, g, &info); err != nil {
			c.options.Logger.Warn("failed to write ontology snapshot", "handle", handle, "error", err)
		} else {
			info.OnDisk = true
		}
	}
	return &Entry{Graph: g, Info: info, Tier: TierSource}, nil
}

func (c *Cache) writeSnapshot(ctx context.Context, g *graph.Graph, info *Info) error {
	payload, digest, err := encodeGraph(g)
	if err != nil {
		return err
	}
	info.PayloadDigest = digest
	info.CompressedBytes = len(payload)
	snapshotBytes.Observe(float64(len(payload)))

	if err := c.options.Store.Set(ctx, payloadPrefix+info.Handle, payload, c.options.TTL); err != nil {
		return err
	}
	return c.writeInfo(ctx, info)
}

func (c *Cache) readInfo(ctx context.Context, handle string) (*Info, error) {
	raw, err := c.options.Store.Get(ctx, infoPrefix+handle)
	if err != nil {
		return nil, err
	}
	var info Info
	if err := json.Unmarshal(raw, &info); err != nil {
		return nil, fmt.Errorf("decode snapshot info: %w", err)
	}
	return &info, nil
}

func (c *Cache) writeInfo(ctx context.Context, info *Info) error {
	stored := *info
	stored.InMemory, stored.OnDisk = false, false
	raw, err := json.Marshal(stored)
	if err != nil {
		return fmt.Errorf("encode snapshot info: %w", err)
	}
	return c.options.Store.Set(ctx, infoPrefix+info.Handle, raw, c.options.TTL)
}

func (c *Cache) remember(e *Entry) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[e.Info.Handle] = &memEntry{graph: e.Graph, info: e.Info}
}

func (c *Cache) isExpired(storedAt time.Time) bool {
	if c.options.TTL == 0 {
		return false
	}
	return c.options.Now().Sub(storedAt) > c.options.TTL
}

// Invalidate drops handle from both tiers.
func (c *Cache) Invalidate(ctx context.Context, handle string) error {
	c.mu.Lock()
	delete(c.entries, handle)
	c.mu.Unlock()

	if c.options.Store == nil {
		return nil
	}
	if err := c.options.Store.Delete(ctx, payloadPrefix+handle); err != nil {
		return err
	}
	return c.options.Store.Delete(ctx, infoPrefix+handle)
}

// InvalidateLocation drops every entry loaded from location and returns
// their handles, sorted. Used when a watched file changes.
func (c *Cache) InvalidateLocation(ctx context.Context, location string) ([]string, error) {
	infos, err := c.List(ctx)
	if err != nil {
		return nil, err
	}
	var handles []string
	for _, info := range infos {
		if info.Location != location {
			continue
		}
		if err := c.Invalidate(ctx, info.Handle); err != nil {
			return handles, err
		}
		handles = append(handles, info.Handle)
	}
	return handles, nil
}

// Purge drops every entry from both tiers and returns how many handles
// were removed.
func (c *Cache) Purge(ctx context.Context) (int, error) {
	infos, err := c.List(ctx)
	if err != nil {
		return 0, err
	}

	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()

	if c.options.Store != nil {
		if _, err := c.options.Store.DeletePrefix(ctx, payloadPrefix); err != nil {
			return 0, err
		}
		if _, err := c.options.Store.DeletePrefix(ctx, infoPrefix); err != nil {
			return 0, err
		}
	}
	return len(infos), nil
}

// List describes every cached ontology in either tier, sorted by handle.
func (c *Cache) List(ctx context.Context) ([]Info, error) {
	byHandle := make(map[string]Info)

	c.mu.RLock()
	for handle, m := range c.entries {
		info := m.info
		info.InMemory = true
		byHandle[handle] = info
	}
	c.mu.RUnlock()

	if c.options.Store != nil {
		keys, err := c.options.Store.Keys(ctx, infoPrefix)
		if err != nil {
			return nil, err
		}
		for _, key := range keys {
			handle := strings.TrimPrefix(key, infoPrefix)
			info, err := c.readInfo(ctx, handle)
			if err != nil {
				c.options.Logger.Warn("skipping unreadable snapshot info", "handle", handle, "error", err)
				continue
			}
			if mem, ok := byHandle[handle]; ok {
				mem.OnDisk = true
				byHandle[handle] = mem
				continue
			}
			info.OnDisk = true
			byHandle[handle] = *info
		}
	}

	infos := make([]Info, 0, len(byHandle))
	for _, handle := range slices.Sorted(maps.Keys(byHandle)) {
		infos = append(infos, byHandle[handle])
	}
	return infos, nil
}

// Stats returns cumulative counters.
func (c *Cache) Stats() Stats {
	c.mu.RLock()
	n := len(c.entries)
	c.mu.RUnlock()
	return Stats{
		Entries:  n,
		Hits:     atomic.LoadInt64(&c.hits),
		DiskHits: atomic.LoadInt64(&c.diskHits),
		Misses:   atomic.LoadInt64(&c.misses),
		Loads:    atomic.LoadInt64(&c.loads),
		Errors:   atomic.LoadInt64(&c.errors),
	}
}

// Close drops the memory tier and closes the store, if any. Safe to call
// multiple times.
func (c *Cache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.mu.Lock()
	clear(c.entries)
	c.mu.Unlock()
	if c.options.Store != nil {
		return c.options.Store.Close()
	}
	return nil
}
