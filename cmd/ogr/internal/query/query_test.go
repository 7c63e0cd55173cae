// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package query

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/graph"
	"github.com/AleutianAI/ogr/services/ontology/loader"
	"github.com/AleutianAI/ogr/services/ontology/resolve"
)

const (
	bp  = "GO:0008150"
	cd  = "GO:0008219"
	pcd = "GO:0012501"
	ap  = "GO:0006915"
	nec = "GO:0070265"
)

type staticSource map[string]*graph.Graph

func (s staticSource) Get(_ context.Context, handle string) (*cache.Entry, error) {
	g, ok := s[handle]
	if !ok {
		return nil, &loader.ResourceNotFoundError{Handle: handle}
	}
	return &cache.Entry{
		Graph: g,
		Info:  cache.Info{Handle: handle, Nodes: g.NodeCount(), Edges: g.EdgeCount()},
		Tier:  cache.TierMemory,
	}, nil
}

type fakeRemote struct {
	ids []string
	err error
}

func (f fakeRemote) Search(context.Context, string, resolve.SearchOptions) ([]string, error) {
	return f.ids, f.err
}

// goGraph: ap -> pcd -> cd -> bp, nec -> cd, plus a redundant ap -> bp.
func goGraph(t *testing.T) *graph.Graph {
	t.Helper()
	g := graph.NewGraph("go")
	for _, n := range []struct{ id, label string }{
		{bp, "biological_process"},
		{cd, "cell death"},
		{pcd, "programmed cell death"},
		{ap, "apoptotic process"},
		{nec, "necrotic cell death"},
	} {
		_, err := g.AddNode(n.id, n.label, nil)
		require.NoError(t, err)
	}
	require.NoError(t, g.AddEdge(cd, bp, graph.RelationIsA))
	require.NoError(t, g.AddEdge(pcd, cd, graph.RelationIsA))
	require.NoError(t, g.AddEdge(ap, pcd, graph.RelationIsA))
	require.NoError(t, g.AddEdge(nec, cd, graph.RelationIsA))
	require.NoError(t, g.AddEdge(ap, bp, graph.RelationIsA))
	g.Freeze()
	return g
}

func newQuerier(t *testing.T, opts ...resolve.Option) *Querier {
	t.Helper()
	return New(staticSource{"go": goGraph(t)}, resolve.New(opts...), nil)
}

func TestRun_Ancestors(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{
		Resource:   "go",
		Tokens:     []string{"programmed cell death"},
		Directions: graph.Directions{Up: true},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{pcd}, res.QueryIDs)
	assert.Equal(t, []string{pcd, cd, bp}, res.Nodes)
	assert.Equal(t, cache.TierMemory, res.Tier)
	assert.Empty(t, res.Warnings)
	assert.Nil(t, res.Slim)
	_, err = uuid.Parse(res.QueryID)
	assert.NoError(t, err)
}

func TestRun_Descendants(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{
		Resource:   "go",
		Tokens:     []string{cd},
		Directions: graph.Directions{Down: true},
	})
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{cd, pcd, nec, ap}, res.Nodes)
	assert.Equal(t, cd, res.Nodes[0])
}

func TestRun_NoDirectionReturnsSeeds(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{Resource: "go", Tokens: []string{cd, ap}})
	require.NoError(t, err)
	assert.Equal(t, []string{cd, ap}, res.Nodes)
}

func TestRun_LevelThenTokens(t *testing.T) {
	q := newQuerier(t)
	level := 1

	res, err := q.Run(context.Background(), Request{
		Resource: "go",
		Tokens:   []string{nec, cd},
		Level:    &level,
	})
	require.NoError(t, err)
	// Level 1 below biological_process is cd and ap (via the shortcut).
	assert.Equal(t, []string{cd, ap, nec}, res.QueryIDs)
}

func TestRun_LevelPrefix(t *testing.T) {
	t.Run("no roots with prefix", func(t *testing.T) {
		q := newQuerier(t)
		level := 1

		res, err := q.Run(context.Background(), Request{Resource: "go", Level: &level, Prefix: "CL"})
		require.NoError(t, err)
		assert.Empty(t, res.QueryIDs)
		assert.Empty(t, res.Nodes)
	})

	t.Run("prefix root under a foreign parent", func(t *testing.T) {
		// bp is_a BFO:0000015, so bp is only a root once BFO is excluded.
		g := graph.NewGraph("merged")
		require.NoError(t, g.AddEdge(cd, bp, graph.RelationIsA))
		require.NoError(t, g.AddEdge(pcd, cd, graph.RelationIsA))
		require.NoError(t, g.AddEdge(bp, "BFO:0000015", graph.RelationIsA))
		g.Freeze()
		q := New(staticSource{"merged": g}, resolve.New(), nil)

		for level, want := range [][]string{{bp}, {cd}, {pcd}} {
			res, err := q.Run(context.Background(), Request{Resource: "merged", Level: &level, Prefix: "GO"})
			require.NoError(t, err)
			assert.Equal(t, want, res.QueryIDs, "level %d", level)
		}
	})
}

func TestRun_Unresolved(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{Resource: "go", Tokens: []string{"mitosis", bp}})
	require.NoError(t, err)
	assert.Equal(t, []string{bp}, res.QueryIDs)
	assert.Equal(t, []string{"mitosis"}, res.Unresolved)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], `"mitosis"`)
}

func TestRun_RelationFilter(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{
		Resource:   "go",
		Tokens:     []string{ap},
		Directions: graph.Directions{Up: true},
		Relations:  []string{graph.RelationPartOf},
	})
	require.NoError(t, err)
	assert.Equal(t, []string{ap}, res.Nodes)
}

func TestRun_Slim(t *testing.T) {
	q := newQuerier(t)

	res, err := q.Run(context.Background(), Request{
		Resource:   "go",
		Tokens:     []string{ap, bp},
		Directions: graph.Directions{Up: true},
		Slim:       true,
	})
	require.NoError(t, err)
	require.NotNil(t, res.Slim)
	assert.Equal(t, 3, res.Slim.EdgeCount())
	assert.False(t, res.Slim.HasEdge(ap, bp, graph.RelationIsA))
	assert.Same(t, res.Slim, res.View.Graph())

	sub := res.Subgraph([]string{graph.RelationPartOf})
	assert.ElementsMatch(t, []string{ap, pcd, cd, bp}, sub.NodeIDs())
	assert.Equal(t, []string{graph.RelationPartOf}, sub.ContainerRelations)
	assert.Equal(t, []string{ap, bp}, sub.QueryIDs)
}

func TestRun_Parallel(t *testing.T) {
	q := newQuerier(t)

	req := Request{Resource: "go", Tokens: []string{cd}, Directions: graph.Directions{Up: true, Down: true}}
	seq, err := q.Run(context.Background(), req)
	require.NoError(t, err)

	req.Parallel = 4
	par, err := q.Run(context.Background(), req)
	require.NoError(t, err)
	assert.ElementsMatch(t, seq.Nodes, par.Nodes)
}

func TestRun_RemoteFallsBackToLocal(t *testing.T) {
	q := newQuerier(t, resolve.WithRemote(fakeRemote{err: errors.New("dial tcp: connection refused")}))

	res, err := q.Run(context.Background(), Request{
		Resource: "go",
		Tokens:   []string{"DEATH"},
		Search:   resolve.ModeRemote | resolve.ModePartial,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{cd, pcd, nec}, res.QueryIDs)
	require.NotEmpty(t, res.Warnings)
	assert.Contains(t, res.Warnings[0], "remote resolution unavailable")
}

func TestRun_Remote(t *testing.T) {
	q := newQuerier(t, resolve.WithRemote(fakeRemote{ids: []string{"GO:9999999", ap}}))

	res, err := q.Run(context.Background(), Request{Resource: "go", Tokens: []string{"apoptosis"}, Search: resolve.ModeRemote})
	require.NoError(t, err)
	assert.Equal(t, []string{ap}, res.QueryIDs)
	assert.Empty(t, res.Warnings)
}

func TestRun_Errors(t *testing.T) {
	q := newQuerier(t)
	negative := -1

	for _, tc := range []struct {
		name string
		req  Request
		is   error
		code int
	}{
		{"no resource", Request{Tokens: []string{bp}}, ErrUsage, ExitUsage},
		{"unknown resource", Request{Resource: "nope"}, loader.ErrResourceNotFound, ExitError},
		{"bad regex", Request{Resource: "go", Tokens: []string{"("}, Search: resolve.ModeRegex}, graph.ErrInvalidQuery, ExitUsage},
		{"negative level", Request{Resource: "go", Level: &negative}, graph.ErrInvalidQuery, ExitUsage},
		{"no remote", Request{Resource: "go", Tokens: []string{"x"}, Search: resolve.ModeRemote}, resolve.ErrNoRemote, ExitUsage},
	} {
		t.Run(tc.name, func(t *testing.T) {
			res, err := q.Run(context.Background(), tc.req)
			assert.Nil(t, res)
			require.ErrorIs(t, err, tc.is)
			assert.Equal(t, tc.code, ExitCode(err))
		})
	}
}

func TestExitCode(t *testing.T) {
	assert.Equal(t, ExitOK, ExitCode(nil))
	assert.Equal(t, ExitError, ExitCode(errors.New("boom")))
	assert.Equal(t, ExitUsage, ExitCode(fmt.Errorf("wrapped: %w", ErrUsage)))
}
