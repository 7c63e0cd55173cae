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
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is how long a watched file must stay quiet before its
// cache entries are dropped.
const DefaultDebounce = 250 * time.Millisecond

// Invalidator drops cached ontologies loaded from a location.
// *cache.Cache implements it.
type Invalidator interface {
	InvalidateLocation(ctx context.Context, location string) ([]string, error)
}

// WatcherConfig configures a Watcher.
type WatcherConfig struct {
	// Debounce collapses bursts of events for one file. Zero uses
	// DefaultDebounce.
	Debounce time.Duration

	// Logger receives invalidation and watcher errors.
	Logger *slog.Logger
}

// Watcher invalidates cache entries when their source file changes.
//
// Description:
//
//	fsnotify watches the parent directory of each registered file, which
//	keeps working when editors replace a file by rename. Write, create,
//	remove and rename events for a registered file start (or restart) a
//	debounce timer; when it fires the target is asked to drop every entry
//	loaded from that file. The next request reloads it.
//
// Thread Safety: Safe for concurrent use.
type Watcher struct {
	fs       *fsnotify.Watcher
	target   Invalidator
	debounce time.Duration
	logger   *slog.Logger

	mu     sync.Mutex
	files  map[string]bool
	dirs   map[string]bool
	timers map[string]*time.Timer
	closed bool

	done      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
	closeErr  error
}

// NewWatcher starts a watcher that reports changes to target.
func NewWatcher(target Invalidator, cfg WatcherConfig) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating file watcher: %w", err)
	}
	if cfg.Debounce <= 0 {
		cfg.Debounce = DefaultDebounce
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	w := &Watcher{
		fs:       fsw,
		target:   target,
		debounce: cfg.Debounce,
		logger:   cfg.Logger,
		files:    make(map[string]bool),
		dirs:     make(map[string]bool),
		timers:   make(map[string]*time.Timer),
		done:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go w.watchLoop()
	return w, nil
}

// Watch registers path. Registering a path twice is a no-op.
func (w *Watcher) Watch(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolve path: %w", err)
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return fmt.Errorf("watcher closed")
	}
	if w.files[abs] {
		return nil
	}
	dir := filepath.Dir(abs)
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return fmt.Errorf("watch %s: %w", dir, err)
		}
		w.dirs[dir] = true
	}
	w.files[abs] = true
	w.logger.Debug("watching ontology source", "path", abs)
	return nil
}

// Watched returns the registered files, in no particular order.
func (w *Watcher) Watched() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]string, 0, len(w.files))
	for f := range w.files {
		out = append(out, f)
	}
	return out
}

// Close stops the watcher and any pending timers. Safe to call twice.
func (w *Watcher) Close() error {
	w.closeOnce.Do(func() {
		w.mu.Lock()
		w.closed = true
		for path, t := range w.timers {
			t.Stop()
			delete(w.timers, path)
		}
		w.mu.Unlock()

		close(w.done)
		w.closeErr = w.fs.Close()
		<-w.loopDone
	})
	return w.closeErr
}

func (w *Watcher) watchLoop() {
	defer close(w.loopDone)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			w.handleEvent(event)
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			w.logger.Warn("File watcher error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	path := filepath.Clean(event.Name)

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed || !w.files[path] {
		return
	}
	if t, ok := w.timers[path]; ok {
		t.Reset(w.debounce)
		return
	}
	w.timers[path] = time.AfterFunc(w.debounce, func() { w.fire(path) })
}

func (w *Watcher) fire(path string) {
	w.mu.Lock()
	delete(w.timers, path)
	closed := w.closed
	w.mu.Unlock()
	if closed {
		return
	}

	handles, err := w.target.InvalidateLocation(context.Background(), path)
	if err != nil {
		w.logger.Warn("Failed to invalidate changed ontology", "path", path, "error", err)
		return
	}
	if len(handles) > 0 {
		w.logger.Info("Ontology source changed, cache invalidated", "path", path, "handles", handles)
	}
}
