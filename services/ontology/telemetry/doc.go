// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Package telemetry initialises OpenTelemetry tracing and metrics for ogr.
//
// Every package records spans through otel.Tracer and instruments through
// otel.Meter. Until Init installs real providers those calls are no-ops, so
// the library packages never depend on this one.
//
// # Exporters
//
// Traces: "otlp" (gRPC), "stdout" or "none".
// Metrics: "prometheus", "stdout" or "none".
//
// The CLI defaults both to "none". The HTTP service defaults metrics to
// "prometheus" so the otel instruments appear on /metrics next to the
// client_golang collectors.
//
// # Environment Variables
//
//   - OGR_ENV: deployment environment (default: development)
//   - OTEL_TRACES_EXPORTER: trace exporter
//   - OTEL_METRICS_EXPORTER: metric exporter
//   - OTEL_EXPORTER_OTLP_ENDPOINT: OTLP endpoint (default: localhost:4317)
//
// # Thread Safety
//
// All exported functions are safe for concurrent use after Init returns.
package telemetry
