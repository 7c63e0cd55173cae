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
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"golang.org/x/time/rate"

	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

var tracer = otel.Tracer("ogr.resolve")

// RemoteResolver looks a term up in an external terminology service.
//
// Implementations return candidate node ids (CURIEs). They may block on the
// network and must honour ctx cancellation.
type RemoteResolver interface {
	Search(ctx context.Context, term string, opts SearchOptions) ([]string, error)
}

// SearchOptions narrows a remote search.
type SearchOptions struct {
	// Exact requests exact label matches only.
	Exact bool

	// Ontology restricts the search to one ontology, e.g. "go".
	Ontology string
}

// OLSConfig configures an OLSClient.
type OLSConfig struct {
	// BaseURL is the OLS root, e.g. "https://www.ebi.ac.uk/ols4".
	BaseURL string

	// Rows is the maximum number of hits per query. Default 20.
	Rows int

	// Timeout is the per-request HTTP timeout. Default 10s.
	Timeout time.Duration

	// RatePerSecond limits request rate. <= 0 disables limiting.
	RatePerSecond float64

	// Burst is the limiter burst size. Default 1.
	Burst int

	// HTTPClient overrides the default client. Used by tests.
	HTTPClient *http.Client
}

// DefaultOLSBaseURL is the public EBI Ontology Lookup Service.
const DefaultOLSBaseURL = "https://www.ebi.ac.uk/ols4"

// OLSClient searches an Ontology Lookup Service compatible endpoint.
//
// Thread Safety: Safe for concurrent use.
type OLSClient struct {
	httpClient *http.Client
	baseURL    string
	rows       int
	limiter    *rate.Limiter
}

// NewOLSClient creates an OLS client.
//
// Description:
//
//	Applies defaults for empty fields. A rate limiter is installed when
//	RatePerSecond > 0; each Search waits for a token before sending.
func NewOLSClient(cfg OLSConfig) *OLSClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultOLSBaseURL
	}
	if cfg.Rows <= 0 {
		cfg.Rows = 20
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: cfg.Timeout}
	}

	c := &OLSClient{
		httpClient: client,
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		rows:       cfg.Rows,
	}
	if cfg.RatePerSecond > 0 {
		c.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSecond), cfg.Burst)
	}
	return c
}

type olsSearchResponse struct {
	Response struct {
		NumFound int `json:"numFound"`
		Docs     []struct {
			IRI          string `json:"iri"`
			OBOID        string `json:"obo_id"`
			ShortForm    string `json:"short_form"`
			Label        string `json:"label"`
			OntologyName string `json:"ontology_name"`
		} `json:"docs"`
	} `json:"response"`
}

// Search implements RemoteResolver against GET {base}/api/search.
//
// Outputs:
//
//	[]string - CURIEs in service ranking order, deduplicated. Hits without
//	           an obo_id fall back to short_form with "_" turned into ":".
//	error - Transport, status or decoding failure.
func (c *OLSClient) Search(ctx context.Context, term string, opts SearchOptions) ([]string, error) {
	ctx, span := tracer.Start(ctx, "OLSClient.Search")
	defer span.End()
	span.SetAttributes(
		attribute.String("ols.term", term),
		attribute.Bool("ols.exact", opts.Exact),
	)

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	query := url.Values{}
	query.Set("q", term)
	query.Set("rows", strconv.Itoa(c.rows))
	query.Set("exact", strconv.FormatBool(opts.Exact))
	query.Set("queryFields", "label,synonym,obo_id")
	if opts.Ontology != "" {
		query.Set("ontology", opts.Ontology)
	}
	searchURL := c.baseURL + "/api/search?" + query.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, searchURL, nil)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to create OLS request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	telemetry.InjectContext(ctx, req.Header)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("OLS request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to read OLS response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		err := fmt.Errorf("OLS returned status %d", resp.StatusCode)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		slog.Warn("OLS search failed", "status_code", resp.StatusCode, "term", term)
		return nil, err
	}

	var parsed olsSearchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("failed to parse OLS response: %w", err)
	}

	seen := make(map[string]bool, len(parsed.Response.Docs))
	ids := make([]string, 0, len(parsed.Response.Docs))
	for _, doc := range parsed.Response.Docs {
		id := doc.OBOID
		if id == "" && doc.ShortForm != "" {
			id = strings.Replace(doc.ShortForm, "_", ":", 1)
		}
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}

	span.SetAttributes(attribute.Int("ols.hits", len(ids)))
	span.SetStatus(codes.Ok, "")
	slog.Debug("OLS search completed", "term", term, "hits", len(ids), "num_found", parsed.Response.NumFound)
	return ids, nil
}

var _ RemoteResolver = (*OLSClient)(nil)
