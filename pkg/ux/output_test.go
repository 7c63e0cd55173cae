// Copyright (C) 2025 Aleutian AI (jinterlante@aleutian.ai)
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.
//
// NOTE: This work is subject to additional terms under AGPL v3 Section 7.
// See the NOTICE.txt file for details regarding AI system attribution.

package ux

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
)

func newTestPrinter(mode Mode) (*Printer, *bytes.Buffer, *bytes.Buffer) {
	var out, errOut bytes.Buffer
	return NewPrinterMode(&out, &errOut, mode), &out, &errOut
}

// =============================================================================
// Mode Tests
// =============================================================================

func TestParseMode(t *testing.T) {
	tests := []struct {
		in   string
		want Mode
	}{
		{"styled", ModeStyled},
		{"STYLED", ModeStyled},
		{"s", ModeStyled},
		{"plain", ModePlain},
		{"", ModePlain},
		{"bogus", ModePlain},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseMode(tt.in))
		})
	}
}

func TestDetectMode(t *testing.T) {
	t.Run("buffer is plain", func(t *testing.T) {
		t.Setenv(EnvMode, "")
		assert.Equal(t, ModePlain, DetectMode(&bytes.Buffer{}))
	})
	t.Run("env override", func(t *testing.T) {
		t.Setenv(EnvMode, "styled")
		assert.Equal(t, ModeStyled, DetectMode(&bytes.Buffer{}))
	})
	t.Run("NO_COLOR", func(t *testing.T) {
		t.Setenv(EnvMode, "")
		t.Setenv("NO_COLOR", "1")
		assert.Equal(t, ModePlain, DetectMode(&bytes.Buffer{}))
	})
}

// =============================================================================
// Icon.Render Tests
// =============================================================================

func TestIcon_Render(t *testing.T) {
	for _, icon := range []Icon{IconSuccess, IconWarning, IconError} {
		assert.Contains(t, icon.Render(), string(icon))
	}
	assert.Equal(t, "→", IconArrow.Render())
}

// =============================================================================
// Printer Tests
// =============================================================================

func TestPrinter_Plain(t *testing.T) {
	p, out, errOut := newTestPrinter(ModePlain)

	p.Title("ignored")
	p.Success("warmed %d", 2)
	p.Info("go: %s", "disk")
	p.Warning("no match for %q", "x")
	p.Error("boom")

	assert.Equal(t, "OK: warmed 2\ngo: disk\n", out.String())
	assert.Equal(t, "warning: no match for \"x\"\nerror: boom\n", errOut.String())
}

func TestPrinter_Styled(t *testing.T) {
	p, out, errOut := newTestPrinter(ModeStyled)
	assert.Equal(t, ModeStyled, p.Mode())

	p.Title("Cache")
	p.Success("done")
	p.Warning("careful")

	assert.Contains(t, out.String(), "Cache")
	assert.Contains(t, out.String(), "✓")
	assert.Contains(t, out.String(), "done")
	assert.Contains(t, errOut.String(), "⚠")
	assert.Contains(t, errOut.String(), "careful")
}

func TestPrinter_TablePlain(t *testing.T) {
	p, out, _ := newTestPrinter(ModePlain)
	p.Table([]string{"HANDLE", "NODES"}, [][]string{{"go", "4"}, {"cyc", "2"}})
	assert.Equal(t, "HANDLE\tNODES\ngo\t4\ncyc\t2\n", out.String())
}

func TestPrinter_TableStyled(t *testing.T) {
	p, out, _ := newTestPrinter(ModeStyled)
	p.Table([]string{"HANDLE", "NODES"}, [][]string{{"go", "4"}})
	s := out.String()
	assert.Contains(t, s, "HANDLE")
	assert.Contains(t, s, "go")
	assert.Contains(t, s, "╭")
}
