package watcher

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinitybot/trinity/internal/registry"
)

func TestRelevantIgnoresNonWasmPaths(t *testing.T) {
	assert.False(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm.tmp", Op: fsnotify.Write}))
	assert.False(t, relevant(fsnotify.Event{Name: "/modules/.linkify.wasm.swp", Op: fsnotify.Create}))
	assert.False(t, relevant(fsnotify.Event{Name: "/modules/notes.txt", Op: fsnotify.Write}))
}

func TestRelevantAcceptsWasmWritesAndIgnoresChmod(t *testing.T) {
	assert.True(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm", Op: fsnotify.Write}))
	assert.True(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm", Op: fsnotify.Create}))
	assert.True(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm", Op: fsnotify.Remove}))
	assert.True(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm", Op: fsnotify.Rename}))
	assert.False(t, relevant(fsnotify.Event{Name: "/modules/linkify.wasm", Op: fsnotify.Chmod}))
}

func TestScheduleRebuildCoalescesABurstIntoOneBuild(t *testing.T) {
	var buildCalls int32
	w := &Watcher{
		build: func(ctx context.Context) (*registry.Registry, error) {
			atomic.AddInt32(&buildCalls, 1)
			return registry.NewFromModules(nil), nil
		},
	}
	w.current.Store(registry.NewFromModules(nil))

	ctx := context.Background()
	for i := 0; i < 5; i++ {
		w.scheduleRebuild(ctx)
	}

	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&buildCalls) == 1
	}, 3*time.Second, 20*time.Millisecond)

	time.Sleep(1200 * time.Millisecond)
	assert.Equal(t, int32(1), atomic.LoadInt32(&buildCalls), "a burst of events scheduled within the debounce window must trigger exactly one rebuild")
}

func TestScheduleRebuildSwapsCurrentOnSuccess(t *testing.T) {
	next := registry.NewFromModules(nil)
	w := &Watcher{
		build: func(ctx context.Context) (*registry.Registry, error) {
			return next, nil
		},
	}
	w.current.Store(registry.NewFromModules(nil))

	w.scheduleRebuild(context.Background())

	require.Eventually(t, func() bool {
		return w.Current() == next
	}, 3*time.Second, 20*time.Millisecond)
}

func TestScheduleRebuildLeavesOldRegistryOnFailure(t *testing.T) {
	original := registry.NewFromModules(nil)
	w := &Watcher{
		build: func(ctx context.Context) (*registry.Registry, error) {
			return nil, errors.New("compile failed")
		},
	}
	w.current.Store(original)

	w.scheduleRebuild(context.Background())

	time.Sleep(1500 * time.Millisecond)
	assert.Same(t, original, w.Current())
}

func TestRunIgnoresNonWasmWritesEndToEnd(t *testing.T) {
	dir := t.TempDir()

	var buildCalls int32
	w, err := New([]string{dir}, func(ctx context.Context) (*registry.Registry, error) {
		atomic.AddInt32(&buildCalls, 1)
		return registry.NewFromModules(nil), nil
	}, registry.NewFromModules(nil))
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go w.Run(ctx)

	require.NoError(t, writeFile(t, dir, "scratch.tmp", "not a module"))
	time.Sleep(1500 * time.Millisecond)
	assert.Equal(t, int32(0), atomic.LoadInt32(&buildCalls), "writing a non-.wasm file must not trigger a rebuild")

	require.NoError(t, writeFile(t, dir, "linkify.wasm", "fake wasm bytes"))
	require.Eventually(t, func() bool {
		return atomic.LoadInt32(&buildCalls) == 1
	}, 3*time.Second, 20*time.Millisecond)
}

func writeFile(t *testing.T, dir, name, contents string) error {
	t.Helper()
	return os.WriteFile(filepath.Join(dir, name), []byte(contents), 0o644)
}
