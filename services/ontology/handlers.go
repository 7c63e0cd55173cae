// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ontology

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/render"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

// Handlers contains the HTTP handlers for the ontology service.
type Handlers struct {
	svc    *Service
	logger *slog.Logger
}

// NewHandlers creates handlers for the given service.
func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc, logger: svc.logger}
}

// HandleHealth handles GET /v1/ontology/health.
//
// Response:
//
//	200 OK: HealthResponse
func (h *Handlers) HandleHealth(c *gin.Context) {
	resp := HealthResponse{Status: "healthy", Version: ServiceVersion}
	if stats, ok := h.svc.CacheStats(); ok {
		resp.Cache = &stats
	}
	c.JSON(http.StatusOK, resp)
}

// HandleResolve handles GET /v1/ontology/:resource/resolve.
//
// Query Parameters:
//
//	q: token to resolve, repeatable (required)
//	search: resolution flags p, r, x (optional, default exact)
//	relation: relation filter, repeatable or comma separated (optional)
//
// Response:
//
//	200 OK: ResolveResponse
//	400 Bad Request: missing q, bad flags or invalid regex
//	404 Not Found: unknown resource
//	503 Service Unavailable: remote resolution failed
func (h *Handlers) HandleResolve(c *gin.Context) {
	logger := h.requestLogger(c, "HandleResolve")

	tokens := c.QueryArray("q")
	if len(tokens) == 0 {
		h.badRequest(c, "q is required")
		return
	}
	mode, err := resolve.ParseMode(c.Query("search"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	res, v, err := h.svc.Resolve(c.Request.Context(), ResolveQuery{
		Resource:  c.Param("resource"),
		Tokens:    tokens,
		Mode:      mode,
		Relations: queryList(c, "relation"),
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	c.JSON(http.StatusOK, ResolveResponse{
		Resource:   c.Param("resource"),
		Mode:       mode.String(),
		Nodes:      nodeInfos(v, res.IDs),
		Unresolved: res.Unresolved,
	})
}

// HandleTraverse handles GET /v1/ontology/:resource/traverse.
//
// Query Parameters:
//
//	id: query token, repeatable (required)
//	direction: u, d or ud (optional, service default)
//	relation: relation filter, repeatable or comma separated (optional)
//	search: resolution flags (optional)
//	format: json (default), tree, dot, yaml, ids or text
//
// Response:
//
//	200 OK: TraverseResponse, or the rendered subgraph for other formats
//	400 Bad Request: missing id, bad direction, flags or format
//	404 Not Found: unknown resource
func (h *Handlers) HandleTraverse(c *gin.Context) {
	logger := h.requestLogger(c, "HandleTraverse")

	tokens := c.QueryArray("id")
	if len(tokens) == 0 {
		h.badRequest(c, "id is required")
		return
	}
	mode, err := resolve.ParseMode(c.Query("search"))
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	resource := c.Param("resource")
	res, err := h.svc.Traverse(c.Request.Context(), TraverseQuery{
		Resource:   resource,
		Tokens:     tokens,
		Mode:       mode,
		Directions: c.Query("direction"),
		Relations:  queryList(c, "relation"),
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if len(res.Unresolved) > 0 {
		logger.Warn("unresolved tokens", "tokens", res.Unresolved)
	}

	sub := &render.Subgraph{View: res.View, Nodes: res.Nodes, QueryIDs: res.QueryIDs}
	if h.renderFormat(c, logger, sub) {
		return
	}
	c.JSON(http.StatusOK, TraverseResponse{
		Resource:   resource,
		Direction:  res.Directions.String(),
		QueryIDs:   res.QueryIDs,
		Nodes:      nodeInfos(res.View, sub.NodeIDs()),
		Edges:      sub.Edges(),
		Unresolved: res.Unresolved,
	})
}

// HandleLevel handles GET /v1/ontology/:resource/level.
//
// Query Parameters:
//
//	level: distance from the roots (required, >= 0)
//	relation: relation filter (optional)
//	prefix: CURIE prefix of returned ids (optional)
//
// Response:
//
//	200 OK: LevelResponse
//	400 Bad Request: missing or invalid level, or no roots
//	404 Not Found: unknown resource
func (h *Handlers) HandleLevel(c *gin.Context) {
	logger := h.requestLogger(c, "HandleLevel")

	raw, ok := c.GetQuery("level")
	if !ok {
		h.badRequest(c, "level is required")
		return
	}
	level, err := strconv.Atoi(raw)
	if err != nil {
		h.fail(c, logger, graph.NewInvalidQueryError("level="+raw, "level must be an integer", err))
		return
	}

	ids, v, err := h.svc.Level(c.Request.Context(), LevelQuery{
		Resource:  c.Param("resource"),
		Level:     level,
		Relations: queryList(c, "relation"),
		Prefix:    c.Query("prefix"),
	})
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	c.JSON(http.StatusOK, LevelResponse{
		Resource: c.Param("resource"),
		Level:    level,
		Nodes:    nodeInfos(v, ids),
	})
}

// HandleCycles handles GET /v1/ontology/:resource/cycles.
//
// Query Parameters:
//
//	max: maximum number of cycles (optional, service default)
//	relation: relation filter (optional)
//
// Response:
//
//	200 OK: CyclesResponse
//	400 Bad Request: max is not an integer
//	404 Not Found: unknown resource
func (h *Handlers) HandleCycles(c *gin.Context) {
	logger := h.requestLogger(c, "HandleCycles")

	limit := 0
	if raw := c.Query("max"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			h.fail(c, logger, graph.NewInvalidQueryError("max="+raw, "max must be an integer", err))
			return
		}
		limit = n
	}

	cycles, truncated, err := h.svc.Cycles(c.Request.Context(), c.Param("resource"), queryList(c, "relation"), limit)
	if err != nil {
		h.fail(c, logger, err)
		return
	}
	if cycles == nil {
		cycles = [][]string{}
	}
	c.JSON(http.StatusOK, CyclesResponse{
		Resource:  c.Param("resource"),
		Cycles:    cycles,
		Truncated: truncated,
	})
}

// HandleSlim handles POST /v1/ontology/:resource/slim.
//
// Request Body:
//
//	SlimRequest
//
// Query Parameters:
//
//	format: json (default), tree, dot, yaml, ids or text
//
// Response:
//
//	200 OK: SlimResponse, or the rendered slim for other formats
//	400 Bad Request: validation error
//	404 Not Found: unknown resource
func (h *Handlers) HandleSlim(c *gin.Context) {
	logger := h.requestLogger(c, "HandleSlim")

	var req SlimRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error: "Invalid request body: " + err.Error(),
			Code:  CodeInvalidRequest,
		})
		return
	}

	resource := c.Param("resource")
	res, err := h.svc.Slim(c.Request.Context(), resource, req)
	if err != nil {
		h.fail(c, logger, err)
		return
	}

	sub := &render.Subgraph{View: graph.Filter(res.Graph), QueryIDs: res.QueryIDs}
	if h.renderFormat(c, logger, sub) {
		return
	}
	c.JSON(http.StatusOK, SlimResponse{
		Resource:   resource,
		QueryIDs:   res.QueryIDs,
		Nodes:      nodeInfos(sub.View, res.Graph.NodeIDs()),
		Edges:      res.Graph.Edges(),
		Unresolved: res.Unresolved,
	})
}

// renderFormat writes sub in the requested non-JSON format. It returns
// false when the caller should write its JSON response instead.
func (h *Handlers) renderFormat(c *gin.Context, logger *slog.Logger, sub *render.Subgraph) bool {
	format := c.Query("format")
	if format == "" || format == render.FormatJSON {
		return false
	}
	r, err := render.New(format, render.Options{})
	if err != nil {
		h.fail(c, logger, err)
		return true
	}
	var buf bytes.Buffer
	if err := r.Render(&buf, sub); err != nil {
		h.fail(c, logger, err)
		return true
	}
	c.Data(http.StatusOK, contentType(format), buf.Bytes())
	return true
}

func contentType(format string) string {
	switch format {
	case render.FormatDot:
		return "text/vnd.graphviz; charset=utf-8"
	case render.FormatYAML:
		return "application/yaml; charset=utf-8"
	default:
		return "text/plain; charset=utf-8"
	}
}

func (h *Handlers) requestLogger(c *gin.Context, handler string) *slog.Logger {
	requestID := getOrCreateRequestID(c)
	logger := h.logger.With("request_id", requestID, "handler", handler)
	return telemetry.LoggerWithTrace(c.Request.Context(), logger)
}

func (h *Handlers) badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: msg, Code: CodeInvalidRequest})
}

// fail maps err to a status code and error code and writes it.
func (h *Handlers) fail(c *gin.Context, logger *slog.Logger, err error) {
	status, code := errorStatus(err)
	if status >= http.StatusInternalServerError {
		logger.Error("Request failed", "error", err)
	} else {
		logger.Info("Request rejected", "error", err, "code", code)
	}
	c.JSON(status, ErrorResponse{Error: err.Error(), Code: code})
}

func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, graph.ErrInvalidQuery):
		return http.StatusBadRequest, CodeInvalidQuery
	case errors.Is(err, render.ErrUnknownFormat):
		return http.StatusBadRequest, CodeInvalidFormat
	case errors.Is(err, resolve.ErrNoRemote):
		return http.StatusBadRequest, CodeNoRemote
	case errors.Is(err, loader.ErrEmptyHandle), errors.Is(err, loader.ErrResourceNotFound):
		return http.StatusNotFound, CodeResourceNotFound
	case errors.Is(err, loader.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, CodeUnsupportedFormat
	case errors.Is(err, resolve.ErrResolutionUnavailable):
		return http.StatusServiceUnavailable, CodeResolutionUnavailable
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

// queryList collects a repeatable, comma separated query parameter.
func queryList(c *gin.Context, key string) []string {
	var out []string
	for _, v := range c.QueryArray(key) {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// getOrCreateRequestID gets or creates a request ID.
func getOrCreateRequestID(c *gin.Context) string {
	requestID := c.GetHeader("X-Request-ID")
	if requestID == "" {
		requestID = uuid.NewString()
	}
	c.Header("X-Request-ID", requestID)
	return requestID
}
