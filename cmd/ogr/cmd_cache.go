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
	"strconv"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/AleutianAI/ogr/cmd/ogr/internal/query"
	"github.com/AleutianAI/ogr/services/ontology/cache"
)

// warmConcurrency bounds parallel loads in "cache warm".
const warmConcurrency = 4

// newCacheCmd groups the cache maintenance subcommands.
func newCacheCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the ontology cache",
		Long: `Parsed ontologies are kept in a BadgerDB store under cache.dir so later
runs skip parsing. Entries are refreshed when the source file changes or
cache.ttl passes.

Subcommands:
  list   - Show cached ontologies
  clear  - Remove cached ontologies
  warm   - Load ontologies into the cache ahead of time`,
	}
	cmd.AddCommand(newCacheListCmd(a), newCacheClearCmd(a), newCacheWarmCmd(a))
	return cmd
}

func newCacheListCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "Show cached ontologies",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := a.graphs()
			if err != nil {
				return err
			}
			infos, err := c.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(infos) == 0 {
				a.printer.Info("no cached ontologies")
				return nil
			}
			rows := make([][]string, 0, len(infos))
			for _, info := range infos {
				rows = append(rows, []string{
					info.Handle,
					strconv.Itoa(info.Nodes),
					strconv.Itoa(info.Edges),
					tiers(info),
					info.StoredAt.Format(time.RFC3339),
					info.Location,
				})
			}
			a.printer.Table([]string{"HANDLE", "NODES", "EDGES", "TIERS", "STORED", "LOCATION"}, rows)
			return nil
		},
	}
}

func newCacheClearCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "clear [HANDLE...]",
		Short: "Remove cached ontologies (all of them when no handle is given)",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := a.graphs()
			if err != nil {
				return err
			}
			if len(args) == 0 {
				n, err := c.Purge(ctx)
				if err != nil {
					return err
				}
				a.printer.Success("removed %d cached ontologies", n)
				return nil
			}
			for _, handle := range args {
				if err := c.Invalidate(ctx, handle); err != nil {
					return fmt.Errorf("clear %s: %w", handle, err)
				}
				a.printer.Success("removed %s", handle)
			}
			return nil
		},
	}
}

// warmResult is the outcome of loading one handle.
type warmResult struct {
	entry *cache.Entry
	err   error
}

func newCacheWarmCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "warm [HANDLE...]",
		Short: "Load ontologies into the cache (all configured resources when no handle is given)",
		Long: `Load ontologies into the cache. Handles load concurrently; a failure
does not stop the others, but the command exits non-zero if any failed.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			handles := args
			if len(handles) == 0 {
				handles = a.registry.Names()
			}
			if len(handles) == 0 {
				return fmt.Errorf("%w: no handles given and no resources configured", query.ErrUsage)
			}
			c, err := a.graphs()
			if err != nil {
				return err
			}

			results := make([]warmResult, len(handles))
			g, ctx := errgroup.WithContext(cmd.Context())
			g.SetLimit(warmConcurrency)
			for i, handle := range handles {
				g.Go(func() error {
					entry, err := c.Get(ctx, handle)
					results[i] = warmResult{entry: entry, err: err}
					return nil
				})
			}
			_ = g.Wait()

			failed := 0
			for i, handle := range handles {
				r := results[i]
				if r.err != nil {
					failed++
					a.printer.Error("%s: %v", handle, r.err)
					continue
				}
				a.printer.Success("%s: %d nodes, %d edges (%s)", handle, r.entry.Info.Nodes, r.entry.Info.Edges, r.entry.Tier)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d ontologies failed to load", failed, len(handles))
			}
			return nil
		},
	}
}

func tiers(info cache.Info) string {
	var t []string
	if info.InMemory {
		t = append(t, cache.TierMemory)
	}
	if info.OnDisk {
		t = append(t, cache.TierDisk)
	}
	return strings.Join(t, ",")
}
