// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"

	"github.com/AleutianAI/ogr/services/ontology"
)

// shutdownTimeout bounds graceful shutdown of "ogr serve".
const shutdownTimeout = 10 * time.Second

// newServeCmd runs the HTTP API.
func newServeCmd(a *app) *cobra.Command {
	var (
		addr  string
		watch bool
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the ontology query API over HTTP",
		Long: `Serve the query API under /v1/ontology and Prometheus metrics under
/metrics. Ontologies load on first request and stay cached.

With --watch, local ontology files are watched and a changed file is
reloaded on the next request.

Example requests:
  curl localhost:8089/v1/ontology/health
  curl 'localhost:8089/v1/ontology/go/traverse?id=GO:0006915&direction=u&format=tree'
  curl -X POST localhost:8089/v1/ontology/go/slim -d '{"ids":["GO:0006915","GO:0008219"]}'`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("addr") {
				addr = a.cfg.Server.Addr
			}
			if !cmd.Flags().Changed("watch") {
				watch = a.cfg.Server.Watch
			}
			return a.serve(cmd.Context(), addr, watch)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default server.addr)")
	cmd.Flags().BoolVar(&watch, "watch", false, "reload ontologies when their files change")
	return cmd
}

// serve runs the API until ctx is cancelled or SIGINT/SIGTERM arrives.
func (a *app) serve(ctx context.Context, addr string, watch bool) error {
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if a.verbose >= 2 {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	graphs, err := a.graphs()
	if err != nil {
		return err
	}
	logger := a.logger.Slog()

	opts := []ontology.ServiceOption{ontology.WithServiceLogger(logger)}
	if watch {
		watcher, err := ontology.NewWatcher(graphs, ontology.WatcherConfig{
			Debounce: a.cfg.Server.Debounce,
			Logger:   logger,
		})
		if err != nil {
			return err
		}
		defer watcher.Close()
		opts = append(opts, ontology.WithWatcher(watcher))
	}

	svcCfg := ontology.DefaultServiceConfig()
	if a.cfg.Defaults.Direction != "" {
		svcCfg.DefaultDirections = a.cfg.Defaults.Direction
	}
	svcCfg.DefaultRelations = a.queryRelations()
	svcCfg.Workers = a.cfg.Defaults.Parallel

	svc := ontology.NewService(graphs, a.resolver(), svcCfg, opts...)
	router := ontology.NewRouter(ontology.NewHandlers(svc), a.cfg.Telemetry.ServiceName)

	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}
	server := &http.Server{
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Serve(listener)
	}()
	a.logger.Info("serving ontology API", "addr", listener.Addr().String(), "watch", watch)
	a.printer.Info("ogr listening on http://%s", listener.Addr().String())

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("serve: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down ontology API")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
