// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package telemetry

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
)

func recordingProvider(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	rec := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(rec))
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return rec
}

func TestDefaultConfig(t *testing.T) {
	t.Setenv("OTEL_TRACES_EXPORTER", "")
	t.Setenv("OTEL_METRICS_EXPORTER", "")
	t.Setenv("OGR_ENV", "")

	cfg := DefaultConfig()
	assert.Equal(t, "ogr", cfg.ServiceName)
	assert.Equal(t, ExporterNone, cfg.TraceExporter)
	assert.Equal(t, ExporterNone, cfg.MetricExporter)
	assert.Equal(t, "development", cfg.Environment)
	assert.Equal(t, "localhost:4317", cfg.OTLPEndpoint)

	t.Setenv("OTEL_TRACES_EXPORTER", "stdout")
	assert.Equal(t, ExporterStdout, DefaultConfig().TraceExporter)
}

func TestInit_NilContext(t *testing.T) {
	var nilCtx context.Context
	_, err := Init(nilCtx, Config{})
	assert.ErrorIs(t, err, ErrNilContext)
}

func TestInit_NoneExporters(t *testing.T) {
	for _, cfg := range []Config{{}, {TraceExporter: ExporterNone, MetricExporter: ExporterNone}} {
		shutdown, err := Init(context.Background(), cfg)
		require.NoError(t, err)
		require.NotNil(t, shutdown)
		assert.NoError(t, shutdown(context.Background()))
	}
}

func TestInit_UnknownExporter(t *testing.T) {
	_, err := Init(context.Background(), Config{TraceExporter: "zipkin"})
	assert.ErrorIs(t, err, ErrUnknownExporter)

	_, err = Init(context.Background(), Config{MetricExporter: "statsd"})
	assert.ErrorIs(t, err, ErrUnknownExporter)
}

func TestInit_StdoutExporters(t *testing.T) {
	prevTP, prevMP := otel.GetTracerProvider(), otel.GetMeterProvider()
	t.Cleanup(func() {
		otel.SetTracerProvider(prevTP)
		otel.SetMeterProvider(prevMP)
	})

	shutdown, err := Init(context.Background(), Config{
		ServiceName:    "ogr-test",
		TraceExporter:  ExporterStdout,
		MetricExporter: ExporterStdout,
	})
	require.NoError(t, err)

	ctx, span := StartSpan(context.Background(), "ogr.test", "op")
	assert.NotEmpty(t, TraceID(ctx))
	span.End()

	assert.NoError(t, shutdown(context.Background()))
}

func TestRecordErrorAndSetSpanOK(t *testing.T) {
	rec := recordingProvider(t)

	_, failed := StartSpan(context.Background(), "ogr.test", "failed")
	RecordError(failed, errors.New("boom"))
	failed.End()

	_, ok := StartSpan(context.Background(), "ogr.test", "ok")
	SetSpanOK(ok)
	ok.End()

	// nil arguments are ignored
	RecordError(nil, errors.New("x"))
	RecordError(ok, nil)
	SetSpanOK(nil)

	spans := rec.Ended()
	require.Len(t, spans, 2)
	assert.Equal(t, codes.Error, spans[0].Status().Code)
	assert.Equal(t, "boom", spans[0].Status().Description)
	require.Len(t, spans[0].Events(), 1)
	assert.Equal(t, codes.Ok, spans[1].Status().Code)
}

func TestTraceID_NoSpan(t *testing.T) {
	assert.Empty(t, TraceID(context.Background()))
}

func TestLoggerWithTrace(t *testing.T) {
	recordingProvider(t)
	var buf bytes.Buffer
	base := slog.New(slog.NewJSONHandler(&buf, nil))

	assert.Same(t, base, LoggerWithTrace(context.Background(), base))

	ctx, span := StartSpan(context.Background(), "ogr.test", "op")
	defer span.End()
	LoggerWithTrace(ctx, base).Info("hello")
	assert.Contains(t, buf.String(), `"trace_id":"`+TraceID(ctx)+`"`)
	assert.Contains(t, buf.String(), `"span_id":"`)
}

func TestInjectContext(t *testing.T) {
	recordingProvider(t)
	prev := otel.GetTextMapPropagator()
	otel.SetTextMapPropagator(propagation.TraceContext{})
	t.Cleanup(func() { otel.SetTextMapPropagator(prev) })

	ctx, span := StartSpan(context.Background(), "ogr.test", "op")
	defer span.End()

	h := http.Header{}
	InjectContext(ctx, h)
	assert.Contains(t, h.Get("traceparent"), TraceID(ctx))
}

func TestMetricsHandler(t *testing.T) {
	rr := httptest.NewRecorder()
	MetricsHandler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "go_goroutines")
}
