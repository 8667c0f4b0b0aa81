package registry

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trinitybot/trinity/internal/runtime"
	"github.com/trinitybot/trinity/internal/runtime/runtimetest"
	"github.com/trinitybot/trinity/pkg/models"
)

func writeFiles(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, name := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("fake wasm"), 0o644))
	}
}

func TestDiscoverOrdersLexicographicallyWithinADirectory(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "zeta.wasm", "alpha.wasm", "mid.wasm", "notes.txt")

	paths, err := Discover([]string{dir})
	require.NoError(t, err)

	var names []string
	for _, p := range paths {
		names = append(names, filepath.Base(p))
	}
	assert.Equal(t, []string{"alpha.wasm", "mid.wasm", "zeta.wasm"}, names)
}

func TestDiscoverFirstNameWinsOnCollisionAcrossDirectories(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	writeFiles(t, dirA, "linkify.wasm")
	writeFiles(t, dirB, "linkify.wasm")

	paths, err := Discover([]string{dirA, dirB})
	require.NoError(t, err)

	require.Len(t, paths, 1)
	assert.Equal(t, filepath.Join(dirA, "linkify.wasm"), paths[0])
}

func TestBuildSkipsModulesThatFailToCompile(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "good.wasm", "bad.wasm")

	compile := func(ctx context.Context, name, path string, initConfig map[string]string) (runtime.GuestModule, error) {
		if name == "bad" {
			return nil, assertErr
		}
		return runtimetest.New(), nil
	}

	reg, err := Build(context.Background(), []string{dir}, nil, compile)
	require.NoError(t, err)

	loaded := reg.Loaded()
	require.Len(t, loaded, 1)
	assert.Equal(t, "good", loaded[0].Info.Name)

	all := reg.All()
	require.Len(t, all, 2)
}

func TestFindOnlyReturnsLoadedModules(t *testing.T) {
	dir := t.TempDir()
	writeFiles(t, dir, "good.wasm", "bad.wasm")

	compile := func(ctx context.Context, name, path string, initConfig map[string]string) (runtime.GuestModule, error) {
		if name == "bad" {
			return nil, assertErr
		}
		return runtimetest.New(), nil
	}

	reg, err := Build(context.Background(), []string{dir}, nil, compile)
	require.NoError(t, err)

	_, ok := reg.Find("bad")
	assert.False(t, ok)

	_, ok = reg.Find("good")
	assert.True(t, ok)
}

func TestCloseClosesEveryLoadedGuest(t *testing.T) {
	fakeA := runtimetest.New()
	fakeB := runtimetest.New()
	reg := NewFromModules([]Entry{
		{Info: models.ModuleInfo{Name: "a"}, Guest: fakeA},
		{Info: models.ModuleInfo{Name: "b"}, Guest: fakeB},
	})

	reg.Close()

	assert.Equal(t, 1, fakeA.ClosedCount)
	assert.Equal(t, 1, fakeB.ClosedCount)
}

var assertErr = simpleErr("compile failed")

type simpleErr string

func (e simpleErr) Error() string { return string(e) }
