// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package badger

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestOpenInMemory verifies in-memory store creation and basic access.
func TestOpenInMemory(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	require.NoError(t, s.Set(ctx, "ont:go", []byte("snapshot"), 0))

	value, err := s.Get(ctx, "ont:go")
	require.NoError(t, err)
	assert.Equal(t, []byte("snapshot"), value)
	assert.True(t, s.InMemory())
	assert.Empty(t, s.Path())
}

// TestOpen_Persistent verifies data survives close and reopen.
func TestOpen_Persistent(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	require.NoError(t, s.Set(ctx, "ont:pato", []byte("v1"), 0))
	require.NoError(t, s.Close())

	s2, err := Open(DefaultConfig(dir))
	require.NoError(t, err)
	defer s2.Close()

	value, err := s2.Get(ctx, "ont:pato")
	require.NoError(t, err)
	assert.Equal(t, []byte("v1"), value)
	assert.Equal(t, dir, s2.Path())
}

func TestOpen_RequiresPath(t *testing.T) {
	_, err := Open(Config{})
	assert.Error(t, err)
}

func TestStore_GetMissing(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	_, err = s.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestStore_TTL(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	// Badger TTLs have one second resolution.
	require.NoError(t, s.Set(ctx, "short", []byte("x"), time.Second))
	require.NoError(t, s.Set(ctx, "long", []byte("y"), time.Hour))

	time.Sleep(2100 * time.Millisecond)

	_, err = s.Get(ctx, "short")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = s.Get(ctx, "long")
	assert.NoError(t, err)
}

func TestStore_KeysAndDeletePrefix(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx := context.Background()
	for _, key := range []string{"ont:go", "ont:cl", "meta:x", "ont:pato"} {
		require.NoError(t, s.Set(ctx, key, []byte(key), 0))
	}

	keys, err := s.Keys(ctx, "ont:")
	require.NoError(t, err)
	assert.Equal(t, []string{"ont:cl", "ont:go", "ont:pato"}, keys)

	require.NoError(t, s.Delete(ctx, "ont:cl"))
	require.NoError(t, s.Delete(ctx, "ont:missing"))

	n, err := s.DeletePrefix(ctx, "ont:")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	keys, err = s.Keys(ctx, "ont:")
	require.NoError(t, err)
	assert.Empty(t, keys)

	_, err = s.Get(ctx, "meta:x")
	assert.NoError(t, err)
}

func TestStore_CancelledContext(t *testing.T) {
	s, err := OpenInMemory()
	require.NoError(t, err)
	defer s.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = s.Get(ctx, "k")
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, s.Set(ctx, "k", nil, 0), context.Canceled)
	_, err = s.Keys(ctx, "")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_CloseTwice(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 10 * time.Millisecond
	s, err := Open(cfg)
	require.NoError(t, err)

	time.Sleep(30 * time.Millisecond)
	require.NoError(t, s.Close())
	assert.NoError(t, s.Close())
}
