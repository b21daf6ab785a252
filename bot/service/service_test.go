package service

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"archivebot/bot/archive"
	"archivebot/bot/session"
)

type recordedOps struct {
	ops []Operation
}

func (r *recordedOps) RecordOperation(_ context.Context, op Operation) {
	r.ops = append(r.ops, op)
}

func newTestService(t *testing.T, limits session.Limits) (*Service, *recordedOps) {
	t.Helper()
	store, err := session.NewStore(t.TempDir(), limits)
	require.NoError(t, err)
	rec := &recordedOps{}
	return New(store, rec), rec
}

func receive(t *testing.T, svc *Service, userID int64, name, content string) AddOutcome {
	t.Helper()
	out, err := svc.ReceiveFile(context.Background(), userID, name, int64(len(content)), strings.NewReader(content))
	require.NoError(t, err)
	return out
}

func TestReceiveFileStoresUpload(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})

	out := receive(t, svc, 1, "notes.txt", "hello")
	assert.Equal(t, OK, out.Status)
	assert.Equal(t, "notes.txt", out.File.Name)
	assert.Equal(t, int64(5), out.File.Size)
	assert.Equal(t, 1, out.Count)
	assert.False(t, out.IsArchive)

	data, err := os.ReadFile(out.File.Path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestReceiveFileFlagsArchives(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})

	out := receive(t, svc, 1, "bundle.zip", "zipzip")
	assert.True(t, out.IsArchive)
	assert.True(t, out.Extractable)

	out = receive(t, svc, 1, "legacy.rar", "rar")
	assert.True(t, out.IsArchive)
	assert.False(t, out.Extractable)
}

func TestReceiveFileDeduplicatesNames(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})

	receive(t, svc, 1, "a.txt", "one")
	out := receive(t, svc, 1, "a.txt", "two")
	assert.Equal(t, "a_1.txt", out.File.Name)
}

func TestReceiveFileLimitAndSizeCaps(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 2, MaxFileSize: 10})

	receive(t, svc, 1, "a.txt", "x")
	receive(t, svc, 1, "b.txt", "y")

	out := receive(t, svc, 1, "c.txt", "z")
	assert.Equal(t, LimitExceeded, out.Status)

	// Declared size over the cap is rejected before the body is read.
	out2, err := svc.ReceiveFile(context.Background(), 2, "big.bin", 11, strings.NewReader("irrelevant"))
	require.NoError(t, err)
	assert.Equal(t, SizeExceeded, out2.Status)
}

func TestReceiveFileRejectsUnderdeclaredBody(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 5})

	// Declared size fits; actual body does not.
	out, err := svc.ReceiveFile(context.Background(), 1, "lie.bin", 3, strings.NewReader("0123456789"))
	require.NoError(t, err)
	assert.Equal(t, SizeExceeded, out.Status)
	assert.Empty(t, svc.View(1).Files)
}

func TestCreateFlow(t *testing.T) {
	svc, rec := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})

	receive(t, svc, 1, "a.txt", "alpha")
	receive(t, svc, 1, "b.txt", "bravo")
	receive(t, svc, 1, "c.txt", "charlie")

	count, status := svc.RequestCreate(1, archive.TarGz)
	require.Equal(t, OK, status)
	assert.Equal(t, 3, count)

	res, err := svc.ConfirmCreate(context.Background(), 1, archive.TarGz)
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	assert.Equal(t, "compiled_files_1_3files.tar.gz", res.ArchiveName)
	assert.Equal(t, 3, res.Files)
	assert.FileExists(t, res.ArchivePath)
	assert.Positive(t, res.Bytes)

	// Pending cleared, source files intact.
	view := svc.View(1)
	assert.Nil(t, view.Pending)
	assert.Len(t, view.Files, 3)

	svc.Delivered(1, res.ArchivePath)
	assert.NoFileExists(t, res.ArchivePath)

	require.Len(t, rec.ops, 1)
	assert.Equal(t, "create", rec.ops[0].Kind)
	assert.Equal(t, "tar.gz", rec.ops[0].Format)
	assert.True(t, rec.ops[0].Success)
}

func TestConfirmCreateRequiresMatchingPending(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})
	receive(t, svc, 1, "a.txt", "alpha")

	res, err := svc.ConfirmCreate(context.Background(), 1, archive.Zip)
	require.NoError(t, err)
	assert.Equal(t, NothingPending, res.Status)

	_, status := svc.RequestCreate(1, archive.Zip)
	require.Equal(t, OK, status)

	// Confirming a different format than staged is rejected.
	res, err = svc.ConfirmCreate(context.Background(), 1, archive.Tar)
	require.NoError(t, err)
	assert.Equal(t, NothingPending, res.Status)
}

func TestRequestCreateEmptySession(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})

	_, status := svc.RequestCreate(1, archive.Zip)
	assert.Equal(t, EmptySelection, status)
}

func TestExtractFlow(t *testing.T) {
	svc, rec := newTestService(t, session.Limits{MaxFiles: 10, MaxFileSize: 1 << 20})

	// Build an archive out of three files, then feed it back in.
	srcDir := t.TempDir()
	var members []archive.Member
	contents := map[string]string{"x.txt": "xx", "y.txt": "yy", "z.txt": "zz"}
	for name, body := range contents {
		path := filepath.Join(srcDir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		members = append(members, archive.Member{Name: name, Path: path})
	}
	arcPath := filepath.Join(srcDir, "bundle.tar.gz")
	require.NoError(t, archive.Compile(context.Background(), members, arcPath, archive.TarGz))
	arcBytes, err := os.ReadFile(arcPath)
	require.NoError(t, err)

	out, err := svc.ReceiveFile(context.Background(), 1, "bundle.tar.gz", int64(len(arcBytes)), strings.NewReader(string(arcBytes)))
	require.NoError(t, err)
	require.Equal(t, OK, out.Status)
	require.True(t, out.Extractable)

	count, status := svc.RequestExtract(1)
	require.Equal(t, OK, status)
	assert.Equal(t, 1, count)

	res, err := svc.ConfirmExtract(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	assert.Equal(t, 1, res.Archives)
	assert.Equal(t, 3, res.Merged)
	assert.Empty(t, res.Failed)
	assert.False(t, res.Capped)

	view := svc.View(1)
	assert.Len(t, view.Files, 4)
	assert.Nil(t, view.Pending)

	for _, rec := range view.Files {
		if rec.Name == "bundle.tar.gz" {
			continue
		}
		body, err := os.ReadFile(rec.Path)
		require.NoError(t, err)
		assert.Equal(t, contents[rec.Name], string(body))
	}

	require.Len(t, rec.ops, 1)
	assert.Equal(t, "extract", rec.ops[0].Kind)
	assert.True(t, rec.ops[0].Success)
}

func TestConfirmExtractSkipsCorruptArchives(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 10, MaxFileSize: 1 << 20})

	receive(t, svc, 1, "broken.zip", "not a zip at all")

	srcDir := t.TempDir()
	path := filepath.Join(srcDir, "ok.txt")
	require.NoError(t, os.WriteFile(path, []byte("fine"), 0o644))
	arcPath := filepath.Join(srcDir, "good.tar")
	require.NoError(t, archive.Compile(context.Background(),
		[]archive.Member{{Name: "ok.txt", Path: path}}, arcPath, archive.Tar))
	arcBytes, err := os.ReadFile(arcPath)
	require.NoError(t, err)
	_, err = svc.ReceiveFile(context.Background(), 1, "good.tar", int64(len(arcBytes)), strings.NewReader(string(arcBytes)))
	require.NoError(t, err)

	_, status := svc.RequestExtract(1)
	require.Equal(t, OK, status)

	res, err := svc.ConfirmExtract(context.Background(), 1)
	require.NoError(t, err)
	require.Equal(t, OK, res.Status)
	assert.Equal(t, 1, res.Merged)
	require.Len(t, res.Failed, 1)
	assert.Equal(t, "broken.zip", res.Failed[0])
}

func TestConfirmExtractStopsAtCap(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 3, MaxFileSize: 1 << 20})

	srcDir := t.TempDir()
	var members []archive.Member
	for _, name := range []string{"a.txt", "b.txt", "c.txt"} {
		path := filepath.Join(srcDir, name)
		require.NoError(t, os.WriteFile(path, []byte("data"), 0o644))
		members = append(members, archive.Member{Name: name, Path: path})
	}
	arcPath := filepath.Join(srcDir, "bundle.zip")
	require.NoError(t, archive.Compile(context.Background(), members, arcPath, archive.Zip))
	arcBytes, err := os.ReadFile(arcPath)
	require.NoError(t, err)

	_, err = svc.ReceiveFile(context.Background(), 1, "bundle.zip", int64(len(arcBytes)), strings.NewReader(string(arcBytes)))
	require.NoError(t, err)

	_, status := svc.RequestExtract(1)
	require.Equal(t, OK, status)

	res, err := svc.ConfirmExtract(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Merged)
	assert.True(t, res.Capped)
	assert.Len(t, svc.View(1).Files, 3)
}

func TestCancelDiscardsPending(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})
	receive(t, svc, 1, "a.txt", "alpha")

	assert.False(t, svc.Cancel(1))

	_, status := svc.RequestCreate(1, archive.Zip)
	require.Equal(t, OK, status)
	assert.True(t, svc.Cancel(1))
	assert.Nil(t, svc.View(1).Pending)

	res, err := svc.ConfirmCreate(context.Background(), 1, archive.Zip)
	require.NoError(t, err)
	assert.Equal(t, NothingPending, res.Status)
}

func TestClearFilesWipesSession(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})
	out := receive(t, svc, 1, "a.txt", "alpha")
	receive(t, svc, 1, "b.txt", "bravo")

	removed, err := svc.ClearFiles(1)
	require.NoError(t, err)
	assert.Equal(t, 2, removed)
	assert.NoFileExists(t, out.File.Path)
	assert.Empty(t, svc.View(1).Files)
}

func TestStartResetsSession(t *testing.T) {
	svc, _ := newTestService(t, session.Limits{MaxFiles: 5, MaxFileSize: 100})
	receive(t, svc, 1, "a.txt", "alpha")

	require.NoError(t, svc.Start(1))
	assert.Empty(t, svc.View(1).Files)
}
