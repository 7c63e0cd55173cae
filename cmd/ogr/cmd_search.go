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

	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
)

// newSearchCmd prints the nodes each term resolves to.
func newSearchCmd(a *app) *cobra.Command {
	var (
		flags  string
		prefix bool
		limit  int
	)

	cmd := &cobra.Command{
		Use:   "search TERM...",
		Short: "Find nodes by id or label",
		Long: `Print the nodes each term matches, one "ID ! label" per line.

By default terms match labels as substrings (-s p). With --prefix they
match the start of labels, in label order.

Examples:
  ogr search -r go "cell death"
  ogr search -r go -s r "^apopto"
  ogr search -r go --prefix "programmed"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			v, err := a.view(ctx)
			if err != nil {
				return err
			}

			if prefix {
				index := resolve.NewLabelIndex(v)
				for _, term := range args {
					matches := index.Prefix(term, limit)
					if len(matches) == 0 {
						a.printer.Warning("no label starts with %q", term)
					}
					for _, m := range matches {
						fmt.Fprintf(a.stdout, "%s ! %s\n", m.ID, m.Label)
					}
				}
				return nil
			}

			mode, err := resolve.ParseMode(flags)
			if err != nil {
				return err
			}
			resolver := a.resolver()
			for _, term := range args {
				res, err := resolver.ResolveDetailed(ctx, v, []string{term}, mode)
				if err != nil {
					return err
				}
				if len(res.Unresolved) > 0 {
					a.printer.Warning("no match for %q", term)
				}
				ids := res.IDs
				if limit > 0 && len(ids) > limit {
					ids = ids[:limit]
				}
				for _, id := range ids {
					printNode(a, v, id)
				}
			}
			return nil
		},
	}
	cmd.Flags().StringVarP(&flags, "search", "s", "p", "search flags: p partial, r regex, x remote; empty for exact")
	cmd.Flags().BoolVar(&prefix, "prefix", false, "match label prefixes instead")
	cmd.Flags().IntVar(&limit, "limit", 50, "maximum matches per term (0 for no limit)")
	return cmd
}

func printNode(a *app, v *graph.View, id string) {
	if n, ok := v.GetNode(id); ok && n.Label != "" {
		fmt.Fprintf(a.stdout, "%s ! %s\n", id, n.Label)
		return
	}
	fmt.Fprintln(a.stdout, id)
}
