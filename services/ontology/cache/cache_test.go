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
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/storage/badger"
)

const testOBO = `[Term]
id: GO:0008150
name: biological_process
namespace: biological_process

[Term]
id: GO:0008219
name: cell death
is_a: GO:0008150 ! biological_process
relationship: part_of GO:0099999

[Term]
id: GO:0012501
name: programmed cell death
is_a: GO:0008219
`

// countingSource wraps a registry and counts reads and parses.
type countingSource struct {
	inner  *loader.Registry
	reads  atomic.Int32
	parses atomic.Int32
	delay  time.Duration
}

func (s *countingSource) Read(ctx context.Context, handle string) (*loader.Source, error) {
	s.reads.Add(1)
	if s.delay > 0 {
		time.Sleep(s.delay)
	}
	return s.inner.Read(ctx, handle)
}

func (s *countingSource) Parse(ctx context.Context, src *loader.Source) (*graph.Graph, error) {
	s.parses.Add(1)
	return s.inner.Parse(ctx, src)
}

func setup(t *testing.T) (string, *countingSource) {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "go.obo")
	require.NoError(t, os.WriteFile(path, []byte(testOBO), 0o644))
	return path, &countingSource{inner: loader.NewRegistry(loader.RegistryConfig{
		Resources: map[string]string{"go": path},
	})}
}

func openStore(t *testing.T) *badger.Store {
	t.Helper()
	store, err := badger.OpenInMemory()
	require.NoError(t, err)
	return store
}

func TestCache_MemoryHit(t *testing.T) {
	_, src := setup(t)
	c := New(src)
	defer c.Close()
	ctx := context.Background()

	first, err := c.Get(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, TierSource, first.Tier)
	assert.Equal(t, 4, first.Graph.NodeCount())
	assert.True(t, first.Graph.IsFrozen())

	second, err := c.Get(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, TierMemory, second.Tier)
	assert.Same(t, first.Graph, second.Graph)
	assert.True(t, second.Info.InMemory)

	assert.Equal(t, int32(1), src.reads.Load())
	stats := c.Stats()
	assert.Equal(t, int64(1), stats.Hits)
	assert.Equal(t, int64(1), stats.Misses)
	assert.Equal(t, int64(1), stats.Loads)
	assert.Equal(t, 1, stats.Entries)
}

func TestCache_SingleflightDedupesConcurrentLoads(t *testing.T) {
	_, src := setup(t)
	src.delay = 50 * time.Millisecond
	c := New(src)
	defer c.Close()

	var wg sync.WaitGroup
	graphs := make([]*graph.Graph, 8)
	for i := range graphs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			e, err := c.Get(context.Background(), "go")
			if err == nil {
				graphs[i] = e.Graph
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, int32(1), src.parses.Load())
	for _, g := range graphs {
		assert.Same(t, graphs[0], g)
	}
}

func TestCache_DiskTierSurvivesNewCache(t *testing.T) {
	_, src := setup(t)
	store := openStore(t)
	ctx := context.Background()

	c1 := New(src, WithStore(store))
	original, err := c1.Get(ctx, "go")
	require.NoError(t, err)
	assert.True(t, original.Info.OnDisk)
	assert.NotEmpty(t, original.Info.PayloadDigest)
	assert.Equal(t, Digest([]byte(testOBO)), original.Info.SourceDigest)

	// A second cache sharing the store, as a new process would.
	c2 := New(src, WithStore(store))
	defer c2.Close()
	restored, err := c2.Get(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, TierDisk, restored.Tier)
	assert.Equal(t, int32(1), src.parses.Load())

	assert.Equal(t, original.Graph.NodeIDs(), restored.Graph.NodeIDs())
	assert.Equal(t, original.Graph.Edges(), restored.Graph.Edges())
	assert.True(t, restored.Graph.IsFrozen())
	bp, ok := restored.Graph.GetNode("GO:0008150")
	require.True(t, ok)
	assert.Equal(t, "biological_process", bp.Label)
	assert.Equal(t, "biological_process", bp.Meta["namespace"])
	assert.Equal(t, int64(1), c2.Stats().DiskHits)
}

func TestCache_ModifiedSourceReloads(t *testing.T) {
	path, src := setup(t)
	store := openStore(t)
	ctx := context.Background()

	c1 := New(src, WithStore(store))
	_, err := c1.Get(ctx, "go")
	require.NoError(t, err)

	t.Run("touched but identical keeps snapshot", func(t *testing.T) {
		later := time.Now().Add(time.Minute)
		require.NoError(t, os.Chtimes(path, later, later))

		c := New(src, WithStore(store))
		e, err := c.Get(ctx, "go")
		require.NoError(t, err)
		assert.Equal(t, TierDisk, e.Tier)
		assert.Equal(t, int32(1), src.parses.Load())
		assert.Equal(t, int32(2), src.reads.Load())
	})

	t.Run("changed content reparses once", func(t *testing.T) {
		changed := testOBO + "\n[Term]\nid: GO:0000001\nname: new\n"
		require.NoError(t, os.WriteFile(path, []byte(changed), 0o644))
		later := time.Now().Add(2 * time.Minute)
		require.NoError(t, os.Chtimes(path, later, later))

		c := New(src, WithStore(store))
		e, err := c.Get(ctx, "go")
		require.NoError(t, err)
		assert.Equal(t, TierSource, e.Tier)
		assert.True(t, e.Graph.HasNode("GO:0000001"))
		assert.Equal(t, int32(2), src.parses.Load())
		assert.Equal(t, int32(3), src.reads.Load())
	})
}

func TestCache_TTL(t *testing.T) {
	_, src := setup(t)
	now := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clock := func() time.Time { return now }
	c := New(src, WithTTL(time.Hour), WithClock(clock))
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "go")
	require.NoError(t, err)

	now = now.Add(30 * time.Minute)
	e, err := c.Get(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, TierMemory, e.Tier)

	now = now.Add(31 * time.Minute)
	e, err = c.Get(ctx, "go")
	require.NoError(t, err)
	assert.Equal(t, TierSource, e.Tier)
	assert.Equal(t, int32(2), src.parses.Load())
}

func TestCache_InvalidateListPurge(t *testing.T) {
	path, src := setup(t)
	store := openStore(t)
	c := New(src, WithStore(store))
	defer c.Close()
	ctx := context.Background()

	_, err := c.Get(ctx, "go")
	require.NoError(t, err)
	_, err = c.Get(ctx, path)
	require.NoError(t, err)

	infos, err := c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, "go", infos[1].Handle)
	assert.Equal(t, path, infos[0].Handle)
	for _, info := range infos {
		assert.True(t, info.InMemory)
		assert.True(t, info.OnDisk)
		assert.Equal(t, path, info.Location)
		assert.Equal(t, 4, info.Nodes)
		assert.Equal(t, 3, info.Edges)
	}

	require.NoError(t, c.Invalidate(ctx, "go"))
	infos, err = c.List(ctx)
	require.NoError(t, err)
	require.Len(t, infos, 1)

	handles, err := c.InvalidateLocation(ctx, path)
	require.NoError(t, err)
	assert.Equal(t, []string{path}, handles)

	_, err = c.Get(ctx, "go")
	require.NoError(t, err)
	n, err := c.Purge(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	infos, err = c.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, infos)
}

func TestCache_ErrorsNotCached(t *testing.T) {
	_, src := setup(t)
	c := New(src)
	defer c.Close()

	_, err := c.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, loader.ErrResourceNotFound)
	assert.Equal(t, int64(1), c.Stats().Errors)
	assert.Equal(t, 0, c.Stats().Entries)
}

func TestCache_Closed(t *testing.T) {
	_, src := setup(t)
	c := New(src, WithStore(openStore(t)))
	require.NoError(t, c.Close())
	require.NoError(t, c.Close())

	_, err := c.Get(context.Background(), "go")
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSnapshot_RoundTrip(t *testing.T) {
	g := graph.NewGraph("x")
	_, err := g.AddNode("A:1", "alpha", map[string]any{"namespace": "n", "deprecated": true})
	require.NoError(t, err)
	require.NoError(t, g.AddEdge("A:1", "A:2", "is_a"))
	require.NoError(t, g.AddEdge("A:3", "A:1", "part_of"))
	g.Freeze()

	data, digest, err := encodeGraph(g)
	require.NoError(t, err)

	back, err := decodeGraph(data, digest)
	require.NoError(t, err)
	assert.Equal(t, "x", back.Name)
	assert.Equal(t, []string{"A:1", "A:2", "A:3"}, back.NodeIDs())
	assert.Equal(t, g.Edges(), back.Edges())
	n, _ := back.GetNode("A:1")
	assert.Equal(t, map[string]any{"namespace": "n", "deprecated": true}, n.Meta)

	_, err = decodeGraph(data, Digest([]byte("other")))
	assert.ErrorContains(t, err, "digest mismatch")

	_, err = decodeGraph([]byte("not zstd"), "")
	assert.Error(t, err)
}
