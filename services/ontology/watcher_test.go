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
	"context"
	"net/http"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AleutianAI/ogr/services/ontology/cache"
	"github.com/AleutianAI/ogr/services/ontology/loader"
)

type recordingInvalidator struct {
	calls chan string
}

func (r *recordingInvalidator) InvalidateLocation(_ context.Context, location string) ([]string, error) {
	r.calls <- location
	return []string{filepath.Base(location)}, nil
}

func TestWatcher_InvalidatesOnChange(t *testing.T) {
	dir := t.TempDir()
	watched := writeResource(t, dir, "go.obo", goOBO)
	other := writeResource(t, dir, "other.obo", goOBO)

	target := &recordingInvalidator{calls: make(chan string, 16)}
	w, err := NewWatcher(target, WatcherConfig{Debounce: 50 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	require.NoError(t, w.Watch(watched))
	require.NoError(t, w.Watch(watched))
	assert.Equal(t, []string{watched}, w.Watched())

	require.NoError(t, os.WriteFile(other, []byte(goOBO+"\n"), 0o644))
	require.NoError(t, os.WriteFile(watched, []byte(goOBO+"\n"), 0o644))

	select {
	case got := <-target.calls:
		assert.Equal(t, watched, got)
	case <-time.After(5 * time.Second):
		t.Fatal("no invalidation after write")
	}
}

func TestWatcher_CloseIsIdempotent(t *testing.T) {
	w, err := NewWatcher(&recordingInvalidator{calls: make(chan string, 1)}, WatcherConfig{})
	require.NoError(t, err)
	assert.Equal(t, DefaultDebounce, w.debounce)

	require.NoError(t, w.Close())
	assert.NoError(t, w.Close())
	assert.Error(t, w.Watch(filepath.Join(t.TempDir(), "x.obo")))
}

func TestService_WatchedSourceReloads(t *testing.T) {
	dir := t.TempDir()
	path := writeResource(t, dir, "go.obo", goOBO)
	reg := loader.NewRegistry(loader.RegistryConfig{Resources: map[string]string{"go": path}})
	c := cache.New(reg)
	defer c.Close()

	w, err := NewWatcher(c, WatcherConfig{Debounce: 20 * time.Millisecond})
	require.NoError(t, err)
	defer w.Close()

	router := NewRouter(NewHandlers(NewService(c, nil, DefaultServiceConfig(), WithWatcher(w))), "ogr-test")

	resp := do(t, router, http.MethodGet, "/v1/ontology/go/resolve?q=necrosis", nil)
	require.Equal(t, http.StatusOK, resp.Code)
	assert.Equal(t, []string{"necrosis"}, decode[ResolveResponse](t, resp).Unresolved)
	require.Len(t, w.Watched(), 1)

	updated := goOBO + "\n[Term]\nid: GO:0070265\nname: necrosis\nis_a: GO:0008219\n"
	require.NoError(t, os.WriteFile(path, []byte(updated), 0o644))

	require.Eventually(t, func() bool {
		resp := do(t, router, http.MethodGet, "/v1/ontology/go/resolve?q=necrosis", nil)
		return resp.Code == http.StatusOK && len(decode[ResolveResponse](t, resp).Nodes) == 1
	}, 5*time.Second, 50*time.Millisecond)
}
