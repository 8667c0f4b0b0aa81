// Package watcher implements hot-reload (C7): watching the configured
// module directories for filesystem changes and rebuilding the
// registry, debounced so a burst of writes (a file copy, a git
// checkout) triggers one rebuild instead of many.
package watcher

import (
	"context"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"

	"github.com/trinitybot/trinity/internal/metrics"
	"github.com/trinitybot/trinity/internal/registry"
	"github.com/trinitybot/trinity/internal/telemetry"
)

// debounce is how long the watcher waits after the first relevant
// filesystem event of a burst before rebuilding; events arriving in
// that window are absorbed into the same rebuild.
const debounce = 1 * time.Second

// Builder rebuilds the registry from the current contents of the
// module directories. pkg/host supplies this as a closure over
// registry.Build and the host's configuration.
type Builder func(ctx context.Context) (*registry.Registry, error)

// Watcher watches the configured module directories and swaps the
// live registry pointer whenever a rebuild succeeds. A rebuild that
// fails leaves the previous, still-working registry in place.
type Watcher struct {
	build Builder
	fsw   *fsnotify.Watcher

	current atomic.Pointer[registry.Registry]

	mu             sync.Mutex
	needsRecompile bool
}

// New creates a Watcher over dirs, seeding it with initial. Call Run
// to start watching; Current always returns the latest successfully
// built registry.
func New(dirs []string, build Builder, initial *registry.Registry) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	for _, dir := range dirs {
		if err := fsw.Add(dir); err != nil {
			fsw.Close()
			return nil, err
		}
	}

	w := &Watcher{build: build, fsw: fsw}
	w.current.Store(initial)
	return w, nil
}

// Current returns the most recently built registry.
func (w *Watcher) Current() *registry.Registry {
	return w.current.Load()
}

// Run watches for filesystem events until ctx is cancelled. It should
// run in its own goroutine.
func (w *Watcher) Run(ctx context.Context) {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			log.Warn().Err(err).Msg("watcher: fsnotify error")

		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if !relevant(event) {
				continue
			}
			w.scheduleRebuild(ctx)
		}
	}
}

// relevant filters out events that can't possibly affect which
// modules are loaded (e.g. a bare chmod, or a stray .tmp/.swp file a
// module directory only incidentally holds).
func relevant(event fsnotify.Event) bool {
	if filepath.Ext(event.Name) != ".wasm" {
		return false
	}
	return event.Has(fsnotify.Create) || event.Has(fsnotify.Write) ||
		event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename)
}

// scheduleRebuild coalesces a burst of filesystem events into a single
// rebuild fired debounce after the first event in the burst, mirroring
// the original host's needs_recompile flag plus fixed delay.
func (w *Watcher) scheduleRebuild(ctx context.Context) {
	w.mu.Lock()
	if w.needsRecompile {
		w.mu.Unlock()
		return
	}
	w.needsRecompile = true
	w.mu.Unlock()

	time.AfterFunc(debounce, func() {
		defer func() {
			w.mu.Lock()
			w.needsRecompile = false
			w.mu.Unlock()
		}()

		spanCtx, span := telemetry.StartReloadSpan(ctx)
		defer span.End()

		next, err := w.build(spanCtx)
		if err != nil {
			log.Error().Err(err).Msg("hot reload failed")
			metrics.ReloadTotal.WithLabelValues("failure").Inc()
			return
		}

		old := w.current.Swap(next)
		log.Info().Msg("successful hot reload")
		metrics.ReloadTotal.WithLabelValues("success").Inc()
		if old != nil {
			// Wait for any dispatch still running against old before
			// closing its guests.
			old.Lock()
			old.Close()
			old.Unlock()
		}
	})
}
