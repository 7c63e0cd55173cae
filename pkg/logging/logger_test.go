// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package logging

import (
	"bytes"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLevel_String(t *testing.T) {
	tests := []struct {
		level Level
		want  string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{Level(99), "UNKNOWN"},
	}
	for _, tt := range tests {
		t.Run(tt.want, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.level.String())
		})
	}
}

func TestLevel_toSlogLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, LevelDebug.toSlogLevel())
	assert.Equal(t, slog.LevelWarn, LevelWarn.toSlogLevel())
	assert.Equal(t, slog.LevelInfo, Level(-3).toSlogLevel())
}

func TestLevelFromVerbosity(t *testing.T) {
	assert.Equal(t, LevelWarn, LevelFromVerbosity(-1))
	assert.Equal(t, LevelWarn, LevelFromVerbosity(0))
	assert.Equal(t, LevelInfo, LevelFromVerbosity(1))
	assert.Equal(t, LevelDebug, LevelFromVerbosity(2))
	assert.Equal(t, LevelDebug, LevelFromVerbosity(5))
}

func TestParseLevel(t *testing.T) {
	lvl, ok := ParseLevel("info")
	assert.True(t, ok)
	assert.Equal(t, LevelInfo, lvl)

	lvl, ok = ParseLevel("warning")
	assert.True(t, ok)
	assert.Equal(t, LevelWarn, lvl)

	_, ok = ParseLevel("loud")
	assert.False(t, ok)
}

func TestLogger_FiltersBelowLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelWarn, Output: &buf, Service: "ogr"})

	logger.Info("hidden")
	logger.Warn("shown", "token", "GO:1")

	out := buf.String()
	assert.NotContains(t, out, "hidden")
	assert.Contains(t, out, "shown")
	assert.Contains(t, out, "token=GO:1")
	assert.Contains(t, out, "service=ogr")
}

func TestLogger_JSONOutput(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelDebug, Output: &buf, JSON: true})

	logger.Debug("traversal done", "nodes", 3)

	line := strings.TrimSpace(buf.String())
	assert.True(t, strings.HasPrefix(line, "{"))
	assert.Contains(t, line, `"nodes":3`)
}

func TestLogger_WithCarriesAttrs(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: LevelInfo, Output: &buf, JSON: true, Service: "ogr"})

	child := logger.With("query_id", "q-1")
	child.Info("resolved", "count", 2)
	child.Debug("below level")
	logger.Info("parent")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 2)
	assert.Contains(t, lines[0], `"msg":"resolved"`)
	assert.Contains(t, lines[0], `"query_id":"q-1"`)
	assert.Contains(t, lines[0], `"count":2`)
	assert.Contains(t, lines[0], `"service":"ogr"`)
	assert.NotContains(t, lines[1], "query_id")

	require.NoError(t, logger.Close())
}

func TestLogger_FileLogging(t *testing.T) {
	dir := t.TempDir()
	logger := New(Config{Level: LevelInfo, LogDir: dir, Service: "test", Quiet: true})

	logger.Info("written to file")
	require.NoError(t, logger.Close())

	matches, err := filepath.Glob(filepath.Join(dir, "test_*.log"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	data, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(data), "written to file")
}

func TestLogger_CloseTwice(t *testing.T) {
	logger := New(Config{LogDir: t.TempDir(), Quiet: true})
	require.NoError(t, logger.Close())
	require.NoError(t, logger.Close())
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".ogr/logs"), expandPath("~/.ogr/logs"))
	assert.Equal(t, "/var/log", expandPath("/var/log"))
}

func TestNop(t *testing.T) {
	logger := Nop()
	logger.Error("nothing happens")
	assert.NotNil(t, logger.Slog())
}
