package archive

import (
	"archive/tar"
	"context"
	"os"
	"path/filepath"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTestFiles(t *testing.T, dir string, contents map[string]string) []Member {
	t.Helper()
	var members []Member
	names := make([]string, 0, len(contents))
	for name := range contents {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(contents[name]), 0o644))
		members = append(members, Member{Name: name, Path: path})
	}
	return members
}

func TestCompileExtractRoundTrip(t *testing.T) {
	contents := map[string]string{
		"a.txt":    "alpha",
		"b.txt":    "bravo bravo",
		"data.bin": "\x00\x01\x02\x03",
	}

	for _, format := range []Format{Zip, Tar, TarGz} {
		t.Run(format.String(), func(t *testing.T) {
			src := t.TempDir()
			members := writeTestFiles(t, src, contents)

			out := filepath.Join(t.TempDir(), "bundle"+format.Ext())
			require.NoError(t, Compile(context.Background(), members, out, format))

			extracted, err := Extract(context.Background(), out, t.TempDir())
			require.NoError(t, err)
			require.Len(t, extracted, len(contents))

			for _, x := range extracted {
				want, ok := contents[x.Name]
				require.True(t, ok, "unexpected member %s", x.Name)
				got, err := os.ReadFile(x.Path)
				require.NoError(t, err)
				assert.Equal(t, want, string(got))
				assert.Equal(t, int64(len(want)), x.Size)
			}
		})
	}
}

func TestCompileSevenZipRoundTrip(t *testing.T) {
	if _, err := lookupSevenZip(); err != nil {
		t.Skip("no 7z binary in PATH")
	}

	contents := map[string]string{"a.txt": "alpha", "b.txt": "bravo"}
	src := t.TempDir()
	members := writeTestFiles(t, src, contents)

	out := filepath.Join(t.TempDir(), "bundle.7z")
	require.NoError(t, Compile(context.Background(), members, out, SevenZip))

	extracted, err := Extract(context.Background(), out, t.TempDir())
	require.NoError(t, err)
	require.Len(t, extracted, len(contents))
	for _, x := range extracted {
		got, err := os.ReadFile(x.Path)
		require.NoError(t, err)
		assert.Equal(t, contents[x.Name], string(got))
	}
}

func TestCompileFlattensMemberNames(t *testing.T) {
	src := t.TempDir()
	members := writeTestFiles(t, src, map[string]string{"report.txt": "x"})
	members[0].Name = "nested/dir/report.txt"

	out := filepath.Join(t.TempDir(), "flat.zip")
	require.NoError(t, Compile(context.Background(), members, out, Zip))

	extracted, err := Extract(context.Background(), out, t.TempDir())
	require.NoError(t, err)
	require.Len(t, extracted, 1)
	assert.Equal(t, "report.txt", extracted[0].Name)
}

func TestCompileRemovesPartialOutputOnError(t *testing.T) {
	out := filepath.Join(t.TempDir(), "broken.tar")
	err := Compile(context.Background(), []Member{{Name: "gone.txt", Path: "/nonexistent/gone.txt"}}, out, Tar)
	require.Error(t, err)

	_, statErr := os.Stat(out)
	assert.True(t, os.IsNotExist(statErr))
}

func TestExtractCorruptZip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "corrupt.zip")
	require.NoError(t, os.WriteFile(path, []byte("definitely not a zip"), 0o644))

	_, err := Extract(context.Background(), path, t.TempDir())
	require.Error(t, err)
}

func TestExtractUnsupportedExtension(t *testing.T) {
	path := filepath.Join(t.TempDir(), "file.rar")
	require.NoError(t, os.WriteFile(path, []byte("rar"), 0o644))

	_, err := Extract(context.Background(), path, t.TempDir())
	require.ErrorIs(t, err, ErrUnsupported)
}

func TestExtractRejectsEscapingMemberNames(t *testing.T) {
	path := filepath.Join(t.TempDir(), "evil.tar")
	f, err := os.Create(path)
	require.NoError(t, err)
	tw := tar.NewWriter(f)
	require.NoError(t, tw.WriteHeader(&tar.Header{
		Name: "../escape.txt",
		Mode: 0o644,
		Size: 4,
	}))
	_, err = tw.Write([]byte("evil"))
	require.NoError(t, err)
	require.NoError(t, tw.Close())
	require.NoError(t, f.Close())

	dest := t.TempDir()
	_, err = Extract(context.Background(), path, filepath.Join(dest, "out"))
	require.Error(t, err)

	_, statErr := os.Stat(filepath.Join(dest, "escape.txt"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestParseFormat(t *testing.T) {
	cases := []struct {
		in   string
		want Format
		ok   bool
	}{
		{"zip", Zip, true},
		{"ZIP", Zip, true},
		{"7z", SevenZip, true},
		{"tar", Tar, true},
		{"tar.gz", TarGz, true},
		{"tgz", TarGz, true},
		{" tar ", Tar, true},
		{"rar", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseFormat(tc.in)
		if !tc.ok {
			assert.Error(t, err, "input %q", tc.in)
			continue
		}
		require.NoError(t, err, "input %q", tc.in)
		assert.Equal(t, tc.want, got, "input %q", tc.in)
	}
}

func TestCanExtractAndIsArchive(t *testing.T) {
	cases := []struct {
		name       string
		extract    bool
		recognized bool
	}{
		{"bundle.zip", true, true},
		{"app.APK", true, true},
		{"dump.tar.gz", true, true},
		{"dump.tgz", true, true},
		{"notes.7z", true, true},
		{"backup.tar", true, true},
		{"old.rar", false, true},
		{"lib.jar", false, true},
		{"app.war", false, true},
		{"doc.txt", false, false},
		{"archive", false, false},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.extract, CanExtract(tc.name), "CanExtract(%q)", tc.name)
		assert.Equal(t, tc.recognized, IsArchive(tc.name), "IsArchive(%q)", tc.name)
	}
}
