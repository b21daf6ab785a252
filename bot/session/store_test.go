package session

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T, limits Limits) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir(), limits)
	require.NoError(t, err)
	return store
}

func TestEnsureCreatesScratchDir(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 5, MaxFileSize: 100})

	sess, err := store.Ensure(42)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(store.Root(), "user_42"), sess.ScratchDir)
	assert.DirExists(t, sess.ScratchDir)

	again, err := store.Ensure(42)
	require.NoError(t, err)
	assert.Same(t, sess, again)
}

func TestAppendEnforcesFileCap(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 2, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	require.NoError(t, store.Append(sess, Record{Name: "a", Size: 1}))
	require.NoError(t, store.Append(sess, Record{Name: "b", Size: 1}))
	err = store.Append(sess, Record{Name: "c", Size: 1})
	require.ErrorIs(t, err, ErrLimitExceeded)
	assert.Len(t, sess.Files, 2)
}

func TestAppendEnforcesSizeCapBoundary(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 5, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	require.NoError(t, store.Append(sess, Record{Name: "exact", Size: 100}))
	err = store.Append(sess, Record{Name: "over", Size: 101})
	require.ErrorIs(t, err, ErrSizeExceeded)
}

func TestUniquePathProbesSuffixes(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	name, path := sess.UniquePath("a.txt")
	assert.Equal(t, "a.txt", name)
	assert.Equal(t, filepath.Join(sess.ScratchDir, "a.txt"), path)
	require.NoError(t, store.Append(sess, Record{Name: name, Path: path, Size: 1}))

	name, _ = sess.UniquePath("a.txt")
	assert.Equal(t, "a_1.txt", name)
	require.NoError(t, store.Append(sess, Record{Name: name, Size: 1}))

	name, _ = sess.UniquePath("a.txt")
	assert.Equal(t, "a_2.txt", name)
}

func TestUniquePathChecksDisk(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	// A file on disk that the session does not know about still collides.
	require.NoError(t, os.WriteFile(filepath.Join(sess.ScratchDir, "b.txt"), []byte("x"), 0o644))

	name, _ := sess.UniquePath("b.txt")
	assert.Equal(t, "b_1.txt", name)
}

func TestUniquePathSanitizesName(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	name, path := sess.UniquePath("../../etc/passwd")
	assert.Equal(t, "passwd", name)
	assert.Equal(t, filepath.Join(sess.ScratchDir, "passwd"), path)

	name, _ = sess.UniquePath("")
	assert.Equal(t, "file", name)
}

func TestMergeExtractedStopsAtCap(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 3, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)
	require.NoError(t, store.Append(sess, Record{Name: "seed", Size: 1}))

	recs := []Record{{Name: "x"}, {Name: "y"}, {Name: "z"}}
	merged := store.MergeExtracted(sess, recs)
	assert.Equal(t, 2, merged)
	assert.Len(t, sess.Files, 3)
}

func TestClearWipesScratchAndState(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 5, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	path := filepath.Join(sess.ScratchDir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
	require.NoError(t, store.Append(sess, Record{Name: "a.txt", Path: path, Size: 1}))
	sess.SetPending(PendingOp{Kind: PendingCreate})

	require.NoError(t, store.Clear(1))

	fresh, ok := store.Get(1)
	require.True(t, ok)
	assert.Empty(t, fresh.Files)
	assert.Nil(t, fresh.Pending)
	assert.NoFileExists(t, path)
	assert.DirExists(t, fresh.ScratchDir)

	// Clearing an already empty session is fine.
	require.NoError(t, store.Clear(1))
	require.NoError(t, store.Clear(99))
}

func TestPendingLastRequestWins(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 5, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)

	sess.SetPending(PendingOp{Kind: PendingCreate})
	sess.SetPending(PendingOp{Kind: PendingExtractAll})
	require.NotNil(t, sess.Pending)
	assert.Equal(t, PendingExtractAll, sess.Pending.Kind)

	sess.ClearPending()
	assert.Nil(t, sess.Pending)
}

func TestSnapshotIsACopy(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 5, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)
	require.NoError(t, store.Append(sess, Record{Name: "a", Size: 2}))
	require.NoError(t, store.Append(sess, Record{Name: "b", Size: 3}))

	snap := sess.Snapshot()
	snap[0].Name = "mutated"
	assert.Equal(t, "a", sess.Files[0].Name)
	assert.Equal(t, int64(5), sess.TotalSize())
}

func TestExtractableFiltersByExtension(t *testing.T) {
	store := newTestStore(t, Limits{MaxFiles: 10, MaxFileSize: 100})
	sess, err := store.Ensure(1)
	require.NoError(t, err)
	for _, name := range []string{"a.txt", "b.zip", "c.rar", "d.tar.gz"} {
		require.NoError(t, store.Append(sess, Record{Name: name, Size: 1}))
	}

	extractable := sess.Extractable()
	require.Len(t, extractable, 2)
	assert.Equal(t, "b.zip", extractable[0].Name)
	assert.Equal(t, "d.tar.gz", extractable[1].Name)
}
