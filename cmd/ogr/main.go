// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

// Command ogr queries ontology graphs from the command line.
//
// Usage:
//
//	ogr -r go "cell death"                  # ancestors of a term, as a tree
//	ogr -r go -d d -t ids GO:0008219        # descendant ids
//	ogr -r go -s p -p is_a -t dot apoptotic # partial label match, is_a only
//	ogr -r go -L 1 -P GO:                   # every node one level below the roots
//	ogr -r go -S m GO:0006915 GO:0012501    # slim graph over the query ids
//	ogr cycles -r cyc                       # simple cycles
//	ogr search -r go --prefix "cell"        # label prefix search
//	ogr cache list                          # cached ontologies
//	ogr serve --watch                       # HTTP API on server.addr
//
// Configuration lives in ~/.ogr/ogr.yaml (override with --config or
// OGR_CONFIG) and is created with defaults on first run.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/AleutianAI/ogr/cmd/ogr/internal/query"
)

func main() {
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}

// run executes the command tree and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	a := newApp(stdout, stderr)
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if closeErr := a.close(context.Background()); closeErr != nil && err == nil {
		err = closeErr
	}
	if err != nil {
		fmt.Fprintf(stderr, "ogr: %v\n", err)
	}
	return query.ExitCode(err)
}
