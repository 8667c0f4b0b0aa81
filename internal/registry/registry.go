// Package registry discovers guest modules on disk, compiles and
// initializes them in parallel, and holds the resulting live set for
// the dispatcher to iterate (C5). A Registry is immutable once built;
// a hot-reload produces a brand new Registry and the watcher swaps the
// pointer atomically, so in-flight dispatches against the old registry
// always finish against a consistent view.
package registry

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/trinitybot/trinity/internal/metrics"
	"github.com/trinitybot/trinity/internal/runtime"
	"github.com/trinitybot/trinity/internal/telemetry"
	"github.com/trinitybot/trinity/pkg/models"
)

// maxParallelCompiles bounds how many modules are compiled at once
// during a (re)build, mirroring the control plane's use of a bounded
// errgroup rather than one goroutine per unit of work.
const maxParallelCompiles = 4

// Entry is one loaded module: its bookkeeping record plus the live
// guest instance the dispatcher calls into.
type Entry struct {
	Info  models.ModuleInfo
	Guest runtime.GuestModule
}

// Registry is the immutable, queryable set of currently loaded
// modules, in deterministic discovery order.
type Registry struct {
	mu      sync.Mutex // serializes dispatch the way the original host's single store did
	entries []Entry
}

// Compiler builds one guest instance from a .wasm file's bytes. The
// production implementation wraps runtime.Compile + capability
// wiring; tests supply one that returns a runtimetest.Fake instead.
type Compiler func(ctx context.Context, name, path string, initConfig map[string]string) (runtime.GuestModule, error)

// Discover walks dirs in the given order and returns the .wasm file
// paths to load, sorted lexicographically within each directory. A
// module's name is its file's base name without extension; if the
// same name is discovered twice (across or within directories) the
// first occurrence wins and the duplicate is logged and skipped —
// resolving what order the filesystem hands back entries in is the
// discovery step's job, not the registry's.
func Discover(dirs []string) ([]string, error) {
	seen := make(map[string]bool)
	var paths []string

	for _, dir := range dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			return nil, fmt.Errorf("read module dir %s: %w", dir, err)
		}

		var names []string
		for _, e := range entries {
			if e.IsDir() || filepath.Ext(e.Name()) != ".wasm" {
				continue
			}
			names = append(names, e.Name())
		}
		sort.Strings(names)

		for _, name := range names {
			moduleName := strings.TrimSuffix(name, filepath.Ext(name))
			if seen[moduleName] {
				log.Warn().Str("module", moduleName).Str("dir", dir).
					Msg("registry: duplicate module name, keeping first discovered")
				continue
			}
			seen[moduleName] = true
			paths = append(paths, filepath.Join(dir, name))
		}
	}

	return paths, nil
}

// Build discovers and compiles every module under dirs, running up to
// maxParallelCompiles compilations concurrently. A module that fails
// to compile, instantiate, or init is logged and kept only as a
// failure record (listed by All, skipped by Loaded and Find) rather
// than aborting the whole build — one broken plugin should never take
// down every other one.
func Build(ctx context.Context, dirs []string, initConfig map[string]map[string]string, compile Compiler) (*Registry, error) {
	paths, err := Discover(dirs)
	if err != nil {
		return nil, err
	}

	entries := make([]Entry, len(paths))
	ok := make([]bool, len(paths))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxParallelCompiles)

	for i, path := range paths {
		i, path := i, path
		name := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))

		g.Go(func() error {
			spanCtx, span := telemetry.StartModuleCompileSpan(gctx, name)
			guest, err := compile(spanCtx, name, path, initConfig[name])
			span.End()
			if err != nil {
				log.Error().Err(err).Str("module", name).Str("path", path).
					Msg("registry: failed to load module, skipping")
				metrics.ModuleLoadErrors.WithLabelValues(name).Inc()
				entries[i] = Entry{Info: models.ModuleInfo{
					Name: name, Path: path, InitError: err.Error(),
				}}
				return nil
			}
			entries[i] = Entry{
				Info:  models.ModuleInfo{Name: name, Path: path, LoadedAt: time.Now()},
				Guest: guest,
			}
			ok[i] = true
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}

	var loaded []Entry
	var loadedCount float64
	for i, e := range entries {
		loaded = append(loaded, e) // keep the failure record visible to the admin API too
		if ok[i] {
			loadedCount++
		}
	}

	metrics.ModulesLoaded.Set(loadedCount)

	return &Registry{entries: loaded}, nil
}

// NewFromModules builds a Registry directly from pre-built entries,
// bypassing discovery and compilation. Used by tests to exercise
// dispatch and hot-reload logic against runtimetest.Fake doubles.
func NewFromModules(entries []Entry) *Registry {
	return &Registry{entries: entries}
}

// Lock/Unlock expose the registry-wide dispatch mutex to the
// dispatcher: every !admin, !help, and ordinary-message dispatch holds
// it for the duration of the call, matching the original host's single
// shared wasmtime::Store serializing all module calls.
func (r *Registry) Lock()   { r.mu.Lock() }
func (r *Registry) Unlock() { r.mu.Unlock() }

// Loaded returns the modules that compiled and initialized
// successfully, in discovery order.
func (r *Registry) Loaded() []Entry {
	var out []Entry
	for _, e := range r.entries {
		if e.Guest != nil {
			out = append(out, e)
		}
	}
	return out
}

// All returns every discovered module, including ones that failed to
// load, for the admin API's introspection endpoint.
func (r *Registry) All() []models.ModuleInfo {
	out := make([]models.ModuleInfo, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e.Info)
	}
	return out
}

// Find returns the loaded module named name, if any.
func (r *Registry) Find(name string) (Entry, bool) {
	for _, e := range r.entries {
		if e.Info.Name == name && e.Guest != nil {
			return e, true
		}
	}
	return Entry{}, false
}

// Close releases every loaded module's guest instance. Called when a
// registry is replaced by a hot-reload or the host shuts down.
func (r *Registry) Close() {
	for _, e := range r.entries {
		if e.Guest != nil {
			if err := e.Guest.Close(); err != nil {
				log.Warn().Err(err).Str("module", e.Info.Name).Msg("registry: error closing module")
			}
		}
	}
}
