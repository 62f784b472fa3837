package ingest

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o600))
}

func TestAllowedExt(t *testing.T) {
	assert.True(t, AllowedExt(".PDF"))
	assert.True(t, AllowedExt("csv"))
	assert.False(t, AllowedExt(".png"))
	assert.False(t, AllowedExt(""))
}

func TestCollectFiles(t *testing.T) {
	dir := t.TempDir()
	touch(t, filepath.Join(dir, "a.pdf"))
	touch(t, filepath.Join(dir, "sub", "b.CSV"))
	touch(t, filepath.Join(dir, "notes.txt"))
	touch(t, filepath.Join(dir, ".hidden", "c.pdf"))
	touch(t, filepath.Join(dir, ".d.pdf"))
	single := filepath.Join(t.TempDir(), "single.txt")
	touch(t, single)

	files, stats, err := CollectFiles([]string{dir, single, filepath.Join(dir, "a.pdf")}, true)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(dir, "a.pdf"),
		filepath.Join(dir, "sub", "b.CSV"),
		single,
	}, files)
	assert.Equal(t, 3, stats.Matched)
	assert.Equal(t, 2, stats.Skipped)

	files, _, err = CollectFiles([]string{dir}, false)
	require.NoError(t, err)
	assert.Len(t, files, 4)
}

func TestCollectFilesMissingPath(t *testing.T) {
	files, stats, err := CollectFiles([]string{filepath.Join(t.TempDir(), "nope.pdf")}, true)
	assert.Error(t, err)
	assert.Empty(t, files)
	assert.Equal(t, 1, stats.Failed)
}

func TestWatchEmitsExistingAndNewFiles(t *testing.T) {
	dir := t.TempDir()
	existing := filepath.Join(dir, "old.pdf")
	touch(t, existing)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{dir}, InitialScan: true, SkipHidden: true}, nil)
	require.NoError(t, err)

	next := func() string {
		select {
		case p := <-events:
			return p
		case <-time.After(5 * time.Second):
			t.Fatal("no watch event")
			return ""
		}
	}
	assert.Equal(t, existing, next())

	touch(t, filepath.Join(dir, "ignored.txt"))
	created := filepath.Join(dir, "new.csv")
	touch(t, created)
	assert.Equal(t, created, next())

	cancel()
	for range events {
	}
}

func TestWatchIfDirSkipsFiles(t *testing.T) {
	w, err := fsnotify.NewWatcher()
	require.NoError(t, err)
	defer w.Close()

	dir := t.TempDir()
	file := filepath.Join(dir, "a.pdf")
	touch(t, file)
	sub := filepath.Join(dir, "sub")
	require.NoError(t, os.Mkdir(sub, 0o755))

	require.NoError(t, watchIfDir(w, file))
	require.NoError(t, watchIfDir(w, filepath.Join(dir, "gone")))
	assert.Empty(t, w.WatchList())

	require.NoError(t, watchIfDir(w, sub))
	assert.Equal(t, []string{sub}, w.WatchList())
}

func TestWatchPicksUpNewSubdirectories(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	events, _, err := Watch(ctx, WatchConfig{Roots: []string{dir}}, nil)
	require.NoError(t, err)

	sub := filepath.Join(dir, "batch")
	require.NoError(t, os.Mkdir(sub, 0o755))
	target := filepath.Join(sub, "scan.pdf")
	// the subdirectory watch is installed asynchronously; rewrite until seen
	deadline := time.After(5 * time.Second)
	for {
		touch(t, target)
		select {
		case p := <-events:
			assert.Equal(t, target, p)
			cancel()
			for range events {
			}
			return
		case <-time.After(100 * time.Millisecond):
		case <-deadline:
			t.Fatal("no event from new subdirectory")
		}
	}
}

func TestWatchRequiresRoots(t *testing.T) {
	_, _, err := Watch(context.Background(), WatchConfig{}, nil)
	assert.Error(t, err)
}
