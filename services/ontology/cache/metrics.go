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
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("ogr.cache")

var (
	// cacheHits counts lookups served from a cache tier.
	cacheHits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "ogr_cache_hits_total",
		Help: "Ontology cache hits by tier",
	}, []string{"tier"}) // "memory" or "disk"

	// cacheMisses counts lookups that went to the source.
	cacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ogr_cache_misses_total",
		Help: "Ontology cache misses",
	})

	// loadDuration tracks source read + parse latency.
	loadDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "ogr_ontology_load_duration_seconds",
		Help:    "Ontology load duration in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 12), // 10ms to ~40s
	}, []string{"result"})

	// snapshotBytes tracks compressed snapshot sizes.
	snapshotBytes = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "ogr_cache_snapshot_bytes",
		Help:    "Compressed ontology snapshot size in bytes",
		Buckets: prometheus.ExponentialBuckets(1024, 4, 10), // 1KiB to ~256MiB
	})
)
