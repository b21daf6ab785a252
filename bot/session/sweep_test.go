package session

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSweepRemovesStaleFiles(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	stale := filepath.Join(sess.ScratchDir, "stale.txt")
	fresh := filepath.Join(sess.ScratchDir, "fresh.txt")
	require.NoError(t, os.WriteFile(stale, []byte("old"), 0o644))
	require.NoError(t, os.WriteFile(fresh, []byte("new"), 0o644))

	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	require.NoError(t, store.Append(sess, Record{Name: "stale.txt", Path: stale, Size: 3}))
	require.NoError(t, store.Append(sess, Record{Name: "fresh.txt", Path: fresh, Size: 3}))

	sweeper := NewSweeper(store, 24*time.Hour, "@every 1h")
	sweeper.Sweep()

	assert.NoFileExists(t, stale)
	assert.FileExists(t, fresh)

	require.Len(t, sess.Files, 1)
	assert.Equal(t, "fresh.txt", sess.Files[0].Name)
}

func TestSweepPrunesEmptyDirs(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	nested := filepath.Join(sess.ScratchDir, "extracted_old", "sub")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	stale := filepath.Join(nested, "gone.txt")
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0o644))
	old := time.Now().Add(-48 * time.Hour)
	require.NoError(t, os.Chtimes(stale, old, old))

	sweeper := NewSweeper(store, 24*time.Hour, "@every 1h")
	sweeper.Sweep()

	assert.NoDirExists(t, filepath.Join(sess.ScratchDir, "extracted_old"))
	assert.DirExists(t, store.Root())
}

func TestSweepKeepsRecentFiles(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	path := filepath.Join(sess.ScratchDir, "keep.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, store.Append(sess, Record{Name: "keep.txt", Path: path, Size: 1}))

	sweeper := NewSweeper(store, 24*time.Hour, "@every 1h")
	sweeper.Sweep()

	assert.FileExists(t, path)
	assert.Len(t, sess.Files, 1)
}
