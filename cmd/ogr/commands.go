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
	"fmt"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ogr/cmd/ogr/internal/query"
)

// =============================================================================
// COMMAND TREE
// =============================================================================

// newRootCmd builds the command tree for one invocation. Flags bind to a
// and to command-local structs, so every call returns independent state.
func newRootCmd(a *app) *cobra.Command {
	var qf queryFlags

	root := &cobra.Command{
		Use:   "ogr [flags] [ID or LABEL...]",
		Short: "Query ontology graphs",
		Long: `ogr loads an ontology, resolves ids or labels to nodes, and prints the
ancestors and/or descendants of those nodes as a tree, DOT, OBO Graphs
JSON/YAML, plain ids or OBO text.

Query ids are the nodes at the -L level (if given) followed by the
resolved positional arguments.

Examples:
  ogr -r go "cell death"
  ogr -r go -d d -t ids GO:0008219
  ogr -r go -s p -p is_a -t dot apoptotic
  ogr -r go -L 1 -P GO:
  ogr -r go -S m GO:0006915 GO:0012501`,
		Args:          cobra.ArbitraryArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.setup(cmd.Context())
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(cmd, a, &qf, args)
		},
	}
	root.CompletionOptions.DisableDefaultCmd = true
	root.SetFlagErrorFunc(func(_ *cobra.Command, err error) error {
		return fmt.Errorf("%w: %v", query.ErrUsage, err)
	})

	pf := root.PersistentFlags()
	pf.StringVar(&a.configPath, "config", "", "config file (default ~/.ogr/ogr.yaml, or $OGR_CONFIG)")
	pf.CountVarP(&a.verbose, "verbose", "v", "increase logging verbosity (-v info, -vv debug)")
	pf.StringVar(&a.metricsFile, "metrics-file", "", "write Prometheus metrics to this file on exit")
	pf.StringVarP(&a.resource, "resource", "r", "", "ontology: configured name, file path or URL")
	pf.StringSliceVarP(&a.relations, "properties", "p", nil, "relations to follow (repeatable); default all")

	f := root.Flags()
	f.StringVarP(&qf.outfile, "outfile", "o", "", "write output to this file instead of stdout")
	f.StringVarP(&qf.to, "to", "t", "", "output format: tree, dot, json, yaml, ids, text")
	f.StringVarP(&qf.direction, "direction", "d", "u", "u (ancestors), d (descendants) or ud")
	f.StringVarP(&qf.prefix, "prefix", "P", "", "take level roots and nodes only from this id prefix")
	f.StringVarP(&qf.search, "search", "s", "", "label search flags: p partial, r regex, x remote")
	f.StringVarP(&qf.slim, "slim", "S", "", "slim mode: m for the minimal subgraph over the query ids")
	f.IntVarP(&qf.level, "level", "L", 0, "add every node at this distance below the roots")
	f.StringSliceVarP(&qf.containers, "container-properties", "c", nil, "relations drawn as nested clusters in dot output")
	f.IntVar(&qf.parallel, "parallel", 0, "traverse with this many workers (0 or 1 is sequential)")

	root.AddCommand(
		newCyclesCmd(a),
		newSearchCmd(a),
		newCacheCmd(a),
		newServeCmd(a),
	)
	return root
}
