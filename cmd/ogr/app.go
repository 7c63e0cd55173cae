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
	"io"
	"os"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/AleutianAI/ogr/cmd/ogr/config"
	"github.com/AleutianAI/ogr/cmd/ogr/internal/query"
	"github.com/AleutianAI/ogr/pkg/logging"
	"github.com/AleutianAI/ogr/pkg/ux"
	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
	"github.com/AleutianAI/ogr/services/ontology/storage/badger"
	"github.com/AleutianAI/ogr/services/ontology/telemetry"
)

// app holds the state shared by every command of one invocation.
//
// Description:
//
//	setup runs before any command body: it loads the configuration,
//	builds the logger and starts telemetry. The cache (and its badger
//	store) opens lazily on first use, so commands that never touch an
//	ontology do not pay for it. close releases everything and writes the
//	metrics file when one was requested.
//
// Thread Safety: Not safe for concurrent use. Commands run one at a time.
type app struct {
	stdout  io.Writer
	stderr  io.Writer
	printer *ux.Printer

	// Persistent flags.
	configPath  string
	verbose     int
	metricsFile string
	resource    string
	relations   []string

	cfg      *config.Config
	logger   *logging.Logger
	registry *loader.Registry
	cache    *cache.Cache

	shutdownTelemetry func(context.Context) error
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{stdout: stdout, stderr: stderr, printer: ux.NewPrinter(stdout, stderr)}
}

// setup loads configuration, logging and telemetry.
func (a *app) setup(ctx context.Context) error {
	path, err := config.ResolvePath(a.configPath)
	if err != nil {
		return err
	}
	cfg, created, err := config.Load(path)
	if err != nil {
		return err
	}
	a.cfg = cfg

	level := logging.LevelFromVerbosity(a.verbose)
	if a.verbose == 0 {
		if parsed, ok := logging.ParseLevel(cfg.Logging.Level); ok {
			level = parsed
		}
	}
	a.logger = logging.New(logging.Config{
		Level:   level,
		LogDir:  cfg.Logging.Dir,
		Service: "ogr",
		JSON:    cfg.Logging.JSON,
		Output:  a.stderr,
	})
	if created {
		a.logger.Info("created default configuration", "path", path)
	}

	shutdown, err := telemetry.Init(ctx, cfg.Telemetry)
	if err != nil {
		return fmt.Errorf("initializing telemetry: %w", err)
	}
	a.shutdownTelemetry = shutdown
	a.registry = loader.NewRegistry(cfg.RegistryConfig())
	return nil
}

// graphs returns the ontology cache, opening it on first use.
func (a *app) graphs() (*cache.Cache, error) {
	if a.cache != nil {
		return a.cache, nil
	}
	opts := []cache.Option{
		cache.WithTTL(a.cfg.Cache.TTL),
		cache.WithLogger(a.logger.Slog()),
	}
	if !a.cfg.Cache.Disabled {
		storeCfg := badger.DefaultConfig(a.cfg.CacheDir())
		if a.cfg.Cache.InMemory {
			storeCfg = badger.InMemoryConfig()
		}
		storeCfg.Logger = a.logger.Slog()
		store, err := badger.Open(storeCfg)
		if err != nil {
			return nil, fmt.Errorf("opening cache: %w", err)
		}
		opts = append(opts, cache.WithStore(store))
	}
	a.cache = cache.New(a.registry, opts...)
	return a.cache, nil
}

// view loads the resource and filters it to the --properties relations,
// falling back to defaults.relations.
func (a *app) view(ctx context.Context) (*graph.View, error) {
	if a.resource == "" {
		return nil, fmt.Errorf("%w: a resource (-r) is required", query.ErrUsage)
	}
	c, err := a.graphs()
	if err != nil {
		return nil, err
	}
	entry, err := c.Get(ctx, a.resource)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", a.resource, err)
	}
	return graph.Filter(entry.Graph, a.queryRelations()...), nil
}

func (a *app) queryRelations() []string {
	if len(a.relations) > 0 {
		return a.relations
	}
	return a.cfg.Defaults.Relations
}

// resolver builds a Resolver with the remote terminology service scoped to
// the current resource. A URL or path resource is not a remote ontology
// name, so remote searches are left unscoped for it.
func (a *app) resolver() *resolve.Resolver {
	opts := []resolve.Option{resolve.WithLogger(a.logger.Slog())}
	if a.cfg.Remote.BaseURL != "" {
		opts = append(opts, resolve.WithRemote(resolve.NewOLSClient(a.cfg.OLSConfig())))
		if _, configured := a.cfg.Resources[a.resource]; configured || (!loader.IsURL(a.resource) && !fileExists(a.resource)) {
			opts = append(opts, resolve.WithRemoteOntology(a.resource))
		}
	}
	return resolve.New(opts...)
}

// close releases the cache and telemetry, then writes --metrics-file.
func (a *app) close(ctx context.Context) error {
	var errs []error
	if a.cache != nil {
		errs = append(errs, a.cache.Close())
		a.cache = nil
	}
	if a.shutdownTelemetry != nil {
		errs = append(errs, a.shutdownTelemetry(ctx))
		a.shutdownTelemetry = nil
	}
	if a.metricsFile != "" && a.cfg != nil {
		if err := prometheus.WriteToTextfile(a.metricsFile, prometheus.DefaultGatherer); err != nil {
			errs = append(errs, fmt.Errorf("writing metrics file: %w", err))
		}
	}
	if a.logger != nil {
		errs = append(errs, a.logger.Close())
		a.logger = nil
	}
	return errors.Join(errs...)
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
