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
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Package-level tracer and meter for graph operations.
var (
	tracer = otel.Tracer("ogr.graph")
	meter  = otel.Meter("ogr.graph")
)

// Metrics for graph query operations.
var (
	queryLatency metric.Float64Histogram
	queryTotal   metric.Int64Counter
	resultSize   metric.Int64Histogram

	metricsOnce sync.Once
	metricsErr  error
)

// initMetrics initializes the metrics. Safe to call multiple times.
func initMetrics() error {
	metricsOnce.Do(func() {
		var err error

		queryLatency, err = meter.Float64Histogram(
			"ogr_query_duration_seconds",
			metric.WithDescription("Duration of ontology graph queries"),
			metric.WithUnit("s"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		queryTotal, err = meter.Int64Counter(
			"ogr_graph_queries_total",
			metric.WithDescription("Total number of ontology graph queries"),
		)
		if err != nil {
			metricsErr = err
			return
		}

		resultSize, err = meter.Int64Histogram(
			"ogr_query_result_nodes",
			metric.WithDescription("Number of nodes returned per query"),
		)
		if err != nil {
			metricsErr = err
			return
		}
	})
	return metricsErr
}

// recordQueryMetrics records metrics for a query operation.
func recordQueryMetrics(ctx context.Context, queryType string, duration time.Duration, resultCount int) {
	if err := initMetrics(); err != nil {
		return
	}

	attrs := metric.WithAttributes(attribute.String("query_type", queryType))
	queryLatency.Record(ctx, duration.Seconds(), attrs)
	queryTotal.Add(ctx, 1, attrs)
	resultSize.Record(ctx, int64(resultCount), attrs)
}

// RecordQuery records a query that ran outside this package's own
// instrumented entry points, e.g. a sequential Traverse or a Slim issued by
// the query pipeline. queryType should be a short stable name such as
// "traverse", "level", "slim" or "cycles".
func RecordQuery(ctx context.Context, queryType string, duration time.Duration, resultCount int) {
	recordQueryMetrics(ctx, queryType, duration, resultCount)
}
