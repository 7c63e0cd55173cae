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
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ogr/cmd/ogr/internal/query"
	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/render"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
)

// queryFlags are the root command's local flags.
type queryFlags struct {
	outfile    string
	to         string
	direction  string
	prefix     string
	search     string
	slim       string
	level      int
	containers []string
	parallel   int
}

// runQuery is the root command: build a query.Request from flags and
// config defaults, run it and render the result.
func runQuery(cmd *cobra.Command, a *app, qf *queryFlags, args []string) error {
	flags := cmd.Flags()
	if len(args) == 0 && !flags.Changed("level") {
		return cmd.Help()
	}

	req, err := a.buildRequest(cmd, qf, args)
	if err != nil {
		return err
	}

	format := qf.to
	if !flags.Changed("to") && a.cfg.Defaults.Format != "" {
		format = a.cfg.Defaults.Format
	}
	color := false
	if qf.outfile == "" {
		if f, ok := a.stdout.(*os.File); ok {
			color = render.AutoColor(f)
		}
	}
	renderer, err := render.New(format, render.Options{Color: color})
	if err != nil {
		return fmt.Errorf("%w: %v", query.ErrUsage, err)
	}

	containers := qf.containers
	if len(containers) == 0 {
		containers = a.cfg.Defaults.ContainerRelations
	}

	graphs, err := a.graphs()
	if err != nil {
		return err
	}
	q := query.New(graphs, a.resolver(), a.logger.Slog())
	res, err := q.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	for _, w := range res.Warnings {
		a.printer.Warning("%s", w)
	}

	return a.writeOutput(qf.outfile, func(w io.Writer) error {
		return renderer.Render(w, res.Subgraph(containers))
	})
}

// buildRequest merges flags over config defaults.
func (a *app) buildRequest(cmd *cobra.Command, qf *queryFlags, args []string) (query.Request, error) {
	flags := cmd.Flags()

	direction := qf.direction
	if !flags.Changed("direction") && a.cfg.Defaults.Direction != "" {
		direction = a.cfg.Defaults.Direction
	}
	dirs, err := graph.ParseDirections(direction)
	if err != nil {
		return query.Request{}, err
	}

	mode, err := resolve.ParseMode(qf.search)
	if err != nil {
		return query.Request{}, err
	}

	var slim bool
	switch qf.slim {
	case "":
	case "m":
		slim = true
	default:
		return query.Request{}, fmt.Errorf("%w: unknown slim mode %q (want m)", query.ErrUsage, qf.slim)
	}

	parallel := qf.parallel
	if !flags.Changed("parallel") {
		parallel = a.cfg.Defaults.Parallel
	}

	req := query.Request{
		Resource:   a.resource,
		Tokens:     args,
		Search:     mode,
		Directions: dirs,
		Relations:  a.queryRelations(),
		Prefix:     qf.prefix,
		Slim:       slim,
		Parallel:   parallel,
	}
	if flags.Changed("level") {
		level := qf.level
		req.Level = &level
	}
	return req, nil
}

// writeOutput runs fn against stdout, or against path when it is set. The
// file is only created once there is something to write.
func (a *app) writeOutput(path string, fn func(io.Writer) error) (err error) {
	if path == "" {
		return fn(a.stdout)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating output file: %w", err)
	}
	defer func() {
		err = errors.Join(err, f.Close())
	}()
	return fn(f)
}
