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
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

// RegisterRoutes registers the /v1/ontology endpoints with the router group.
//
// Endpoints:
//
//	GET  /v1/ontology/health - Health check with cache counters
//	GET  /v1/ontology/:resource/resolve - Resolve tokens to ids
//	GET  /v1/ontology/:resource/traverse - Ancestors and/or descendants
//	GET  /v1/ontology/:resource/level - Nodes at a distance from the roots
//	GET  /v1/ontology/:resource/cycles - Simple cycles
//	POST /v1/ontology/:resource/slim - Minimal reachability-preserving subgraph
//
// Example:
//
//	handlers := ontology.NewHandlers(svc)
//	v1 := router.Group("/v1")
//	ontology.RegisterRoutes(v1, handlers)
func RegisterRoutes(rg *gin.RouterGroup, handlers *Handlers) {
	ont := rg.Group("/ontology")
	{
		ont.GET("/health", handlers.HandleHealth)

		ont.GET("/:resource/resolve", handlers.HandleResolve)
		ont.GET("/:resource/traverse", handlers.HandleTraverse)
		ont.GET("/:resource/level", handlers.HandleLevel)
		ont.GET("/:resource/cycles", handlers.HandleCycles)
		ont.POST("/:resource/slim", handlers.HandleSlim)
	}
}

// NewRouter builds the engine served by "ogr serve": recovery, otel
// tracing middleware, /metrics and the v1 routes.
func NewRouter(handlers *Handlers, serviceName string) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware(serviceName))

	router.GET("/metrics", gin.WrapH(telemetry.MetricsHandler()))

	v1 := router.Group("/v1")
	RegisterRoutes(v1, handlers)
	return router
}
