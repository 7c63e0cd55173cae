// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package resolve

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const olsBody = `{
  "response": {
    "numFound": 3,
    "docs": [
      {"iri": "http://purl.obolibrary.org/obo/GO_0008219", "obo_id": "GO:0008219", "label": "cell death", "ontology_name": "go"},
      {"iri": "http://purl.obolibrary.org/obo/GO_0012501", "short_form": "GO_0012501", "label": "programmed cell death", "ontology_name": "go"},
      {"iri": "http://purl.obolibrary.org/obo/GO_0008219", "obo_id": "GO:0008219", "label": "cell death", "ontology_name": "go"}
    ]
  }
}`

func TestOLSClient_Search(t *testing.T) {
	var got *http.Request
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(olsBody))
	}))
	defer server.Close()

	client := NewOLSClient(OLSConfig{BaseURL: server.URL + "/", Rows: 5})
	ids, err := client.Search(context.Background(), "cell death", SearchOptions{Exact: true, Ontology: "go"})
	require.NoError(t, err)

	assert.Equal(t, []string{"GO:0008219", "GO:0012501"}, ids)
	require.NotNil(t, got)
	assert.Equal(t, "/api/search", got.URL.Path)
	q := got.URL.Query()
	assert.Equal(t, "cell death", q.Get("q"))
	assert.Equal(t, "5", q.Get("rows"))
	assert.Equal(t, "true", q.Get("exact"))
	assert.Equal(t, "go", q.Get("ontology"))
}

func TestOLSClient_ErrorStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "down", http.StatusServiceUnavailable)
	}))
	defer server.Close()

	_, err := NewOLSClient(OLSConfig{BaseURL: server.URL}).Search(context.Background(), "x", SearchOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestOLSClient_BadJSON(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("<html>"))
	}))
	defer server.Close()

	_, err := NewOLSClient(OLSConfig{BaseURL: server.URL}).Search(context.Background(), "x", SearchOptions{})
	assert.ErrorContains(t, err, "parse OLS response")
}

func TestOLSClient_RateLimiterHonoursContext(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"response":{"docs":[]}}`))
	}))
	defer server.Close()

	client := NewOLSClient(OLSConfig{BaseURL: server.URL, RatePerSecond: 0.001, Burst: 1})
	_, err := client.Search(context.Background(), "first", SearchOptions{})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = client.Search(ctx, "second", SearchOptions{})
	assert.ErrorContains(t, err, "rate limiter")
}

func TestOLSClient_ThroughResolverFallbackSignal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	r := New(WithRemote(NewOLSClient(OLSConfig{BaseURL: server.URL})))
	_, err := r.Resolve(context.Background(), fixture(t), []string{"cell death"}, ModeRemote)
	assert.ErrorIs(t, err, ErrResolutionUnavailable)
}

func TestNewOLSClient_Defaults(t *testing.T) {
	c := NewOLSClient(OLSConfig{})
	assert.Equal(t, DefaultOLSBaseURL, c.baseURL)
	assert.Equal(t, 20, c.rows)
	assert.Nil(t, c.limiter)
}
