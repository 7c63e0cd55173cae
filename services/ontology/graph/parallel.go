// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package graph

import (
	"context"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Parallel BFS configuration constants.
const (
	// parallelThreshold is the minimum frontier size that triggers parallel
	// expansion. Narrower frontiers are expanded sequentially.
	parallelThreshold = 32

	// maxParallelWorkers caps the number of goroutines regardless of CPU count.
	maxParallelWorkers = 8
)

// TraverseParallel computes the same node set as Traverse using a
// level-synchronous parallel BFS for wide frontiers.
//
// Description:
//
//	Each direction runs level by level. Frontiers wider than 32 nodes are
//	split across a worker pool; workers share one visited set guarded by
//	an RWMutex (read check, then write check-and-set), so every node is
//	claimed by exactly one worker. Narrow frontiers are expanded
//	sequentially.
//
// Inputs:
//
//	ctx - Context for cancellation. Must not be nil.
//	workers - Maximum workers; <= 0 uses min(NumCPU, 8).
//
// Outputs:
//
//	[]string - Seeds first, then discovered nodes. Order within a BFS level
//	           may vary between runs in parallel mode; membership matches
//	           Traverse exactly.
//	error - ctx.Err() if cancelled.
//
// Thread Safety: Safe for concurrent use on a frozen graph.
func TraverseParallel(ctx context.Context, v *View, seeds []string, up, down bool, workers int) ([]string, error) {
	ctx, span := tracer.Start(ctx, "graph.TraverseParallel",
		trace.WithAttributes(
			attribute.Int("seeds", len(seeds)),
			attribute.Bool("up", up),
			attribute.Bool("down", down),
		),
	)
	defer span.End()
	start := time.Now()

	if workers <= 0 {
		workers = min(runtime.NumCPU(), maxParallelWorkers)
	}

	starts, seen := traversalSeeds(v, seeds)
	result := append([]string(nil), starts...)

	parallelLevels := 0
	var dirs []Direction
	if up {
		dirs = append(dirs, Up)
	}
	if down {
		dirs = append(dirs, Down)
	}

	for _, dir := range dirs {
		visited := make(map[string]bool, len(starts))
		var mu sync.RWMutex
		frontier := make([]string, 0, len(starts))
		for _, id := range starts {
			visited[id] = true
			frontier = append(frontier, id)
		}

		for len(frontier) > 0 {
			if err := ctx.Err(); err != nil {
				span.RecordError(err)
				span.SetStatus(codes.Error, "cancelled")
				return nil, err
			}

			var next []string
			if len(frontier) > parallelThreshold && workers > 1 {
				next = expandLevelParallel(ctx, v, frontier, dir, visited, &mu, workers)
				parallelLevels++
			} else {
				next = expandLevelSequential(v, frontier, dir, visited)
			}

			for _, id := range next {
				if !seen[id] {
					seen[id] = true
					result = append(result, id)
				}
			}
			frontier = next
		}
	}

	span.SetAttributes(
		attribute.Int("total_nodes", len(result)),
		attribute.Int("parallel_levels", parallelLevels),
	)
	span.SetStatus(codes.Ok, "")
	recordQueryMetrics(ctx, "traverse_parallel", time.Since(start), len(result))

	slog.Debug("parallel traversal completed",
		slog.Int("seeds", len(starts)),
		slog.Int("total_nodes", len(result)),
		slog.Int("parallel_levels", parallelLevels),
	)
	return result, nil
}

// expandLevelSequential expands one BFS level.
//
// Thread Safety: NOT safe for concurrent use.
func expandLevelSequential(v *View, level []string, dir Direction, visited map[string]bool) []string {
	var next []string
	for _, id := range level {
		for _, n := range Neighbors(v, id, dir) {
			if visited[n] {
				continue
			}
			visited[n] = true
			next = append(next, n)
		}
	}
	return next
}

// expandLevelParallel expands one BFS level with a worker pool.
//
// Each worker collects discoveries into its own slice; slices are merged
// after all workers finish. The visited map uses double-checked locking.
func expandLevelParallel(ctx context.Context, v *View, level []string, dir Direction, visited map[string]bool, mu *sync.RWMutex, workers int) []string {
	workers = min(len(level), workers)
	local := make([][]string, workers)
	work := make(chan string, min(len(level), 256))

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			defer func() {
				if r := recover(); r != nil {
					buf := make([]byte, 4096)
					n := runtime.Stack(buf, false)
					slog.Error("panic in parallel traversal worker",
						slog.Int("worker_id", workerID),
						slog.Any("panic", r),
						slog.String("stack", string(buf[:n])),
					)
				}
			}()

			found := make([]string, 0, len(level)/workers+1)
			defer func() { local[workerID] = found }()

			for id := range work {
				if ctx.Err() != nil {
					continue
				}
				for _, n := range Neighbors(v, id, dir) {
					mu.RLock()
					done := visited[n]
					mu.RUnlock()
					if done {
						continue
					}

					mu.Lock()
					if visited[n] {
						mu.Unlock()
						continue
					}
					visited[n] = true
					mu.Unlock()

					found = append(found, n)
				}
			}
		}(i)
	}

	for _, id := range level {
		work <- id
	}
	close(work)
	wg.Wait()

	var next []string
	for _, found := range local {
		next = append(next, found...)
	}
	return next
}
