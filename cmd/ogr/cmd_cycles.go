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
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/AleutianAI/ogr/services/ontology/graph"
)

// newCyclesCmd lists simple cycles of the filtered ontology.
func newCyclesCmd(a *app) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "cycles",
		Short: "List simple cycles in an ontology",
		Long: `List the simple cycles of the ontology, restricted to the -p relations.

Each cycle is printed on one line, starting from its smallest node in
load order. A well-formed is_a hierarchy has none.

Examples:
  ogr cycles -r go
  ogr cycles -r go -p part_of --max 10`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			v, err := a.view(ctx)
			if err != nil {
				return err
			}

			start := time.Now()
			cycles, truncated := graph.CollectCycles(v, limit)
			graph.RecordQuery(ctx, "cycles", time.Since(start), len(cycles))
			a.logger.Info("cycles", "resource", a.resource, "count", len(cycles), "truncated", truncated)

			for _, c := range cycles {
				fmt.Fprintln(a.stdout, strings.Join(c, " -> "))
			}
			if truncated {
				a.printer.Warning("stopped after %d cycles; raise --max to see more", limit)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "max", 100, "stop after this many cycles (0 lists every cycle)")
	return cmd
}
