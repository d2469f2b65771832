package core

import (
	"context"
	"errors"
	"io"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// memRemote is a flat map of remote paths used to drive the tree walkers.
type memRemote struct {
	folders map[string]bool
	files   map[string][]byte
}

func newMemRemote() *memRemote {
	return &memRemote{folders: map[string]bool{"/": true}, files: map[string][]byte{}}
}

func (m *memRemote) ensureFolder(ctx context.Context, p string) error {
	m.folders[p] = true
	return nil
}

func (m *memRemote) uploadFile(ctx context.Context, local, remote string) error {
	data, err := os.ReadFile(local)
	if err != nil {
		return err
	}
	m.files[remote] = data
	return nil
}

func (m *memRemote) list(ctx context.Context, folder RemoteEntry) ([]RemoteEntry, error) {
	var entries []RemoteEntry
	for p := range m.folders {
		if p != "/" && path.Dir(p) == folder.Path {
			entries = append(entries, RemoteEntry{Name: path.Base(p), Path: p, IsFolder: true})
		}
	}
	for p := range m.files {
		if path.Dir(p) == folder.Path {
			entries = append(entries, RemoteEntry{Name: path.Base(p), Path: p})
		}
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name < entries[j].Name })
	return entries, nil
}

func (m *memRemote) fetch(ctx context.Context, file RemoteEntry, local string) error {
	return WriteLocalFile(local, func(w io.Writer) error {
		_, err := w.Write(m.files[file.Path])
		return err
	})
}

func writeTree(t *testing.T, root string, files map[string]string) {
	t.Helper()
	for name, content := range files {
		p := filepath.Join(root, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o644))
	}
}

func TestUploadDownloadTreeRoundTrip(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{
		"b.txt":     "bee",
		"c/d.txt":   "dee",
		"c/e/f.txt": "eff",
	})
	require.NoError(t, os.MkdirAll(filepath.Join(src, "empty"), 0o755))

	remote := newMemRemote()
	ctx := context.Background()

	report, err := UploadTree(ctx, src, "/a", remote.ensureFolder, remote.uploadFile)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"/a/b.txt", "/a/c/d.txt", "/a/c/e/f.txt"}, report.Files)
	assert.ElementsMatch(t, []string{"/a", "/a/c", "/a/c/e", "/a/empty"}, report.Folders)
	assert.Equal(t, []byte("dee"), remote.files["/a/c/d.txt"])

	dst := filepath.Join(t.TempDir(), "out")
	report, err = DownloadTree(ctx, RemoteEntry{Name: "a", Path: "/a", IsFolder: true}, dst, remote.list, remote.fetch)
	require.NoError(t, err)
	assert.Len(t, report.Files, 3)

	for name, want := range map[string]string{"b.txt": "bee", "c/d.txt": "dee", "c/e/f.txt": "eff"} {
		got, err := os.ReadFile(filepath.Join(dst, filepath.FromSlash(name)))
		require.NoError(t, err)
		assert.Equal(t, want, string(got))
	}
	assert.DirExists(t, filepath.Join(dst, "empty"))
}

func TestUploadTreeStopsAtFirstFailure(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"1.txt": "one", "2.txt": "two", "3.txt": "three"})

	remote := newMemRemote()
	boom := errors.New("boom")
	upload := func(ctx context.Context, local, dst string) error {
		if strings.HasSuffix(local, "2.txt") {
			return boom
		}
		return remote.uploadFile(ctx, local, dst)
	}

	report, err := UploadTree(context.Background(), src, "/dst", remote.ensureFolder, upload)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"/dst/1.txt"}, report.Files)
	assert.NotContains(t, remote.files, "/dst/3.txt")
}

func TestUploadTreeRejectsFile(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})

	remote := newMemRemote()
	_, err := UploadTree(context.Background(), filepath.Join(src, "f.txt"), "/dst", remote.ensureFolder, remote.uploadFile)
	assert.Error(t, err)
	assert.Empty(t, remote.files)
}

func TestWriteLocalFileRemovesPartialFile(t *testing.T) {
	target := filepath.Join(t.TempDir(), "nested", "file.bin")

	err := WriteLocalFile(target, func(w io.Writer) error {
		w.Write([]byte("half"))
		return errors.New("connection reset")
	})
	assert.Error(t, err)
	assert.NoFileExists(t, target)
}

func TestLocalName(t *testing.T) {
	name, err := LocalName("a/b")
	require.NoError(t, err)
	assert.Equal(t, "a_b", name)

	_, err = LocalName("..")
	assert.Error(t, err)
}

func TestOpenLocalFile(t *testing.T) {
	dir := t.TempDir()
	writeTree(t, dir, map[string]string{"f.txt": "12345"})

	open, size, err := OpenLocalFile(filepath.Join(dir, "f.txt"))
	require.NoError(t, err)
	assert.Equal(t, int64(5), size)

	for i := 0; i < 2; i++ {
		body, err := open()
		require.NoError(t, err)
		data, _ := io.ReadAll(body)
		body.Close()
		assert.Equal(t, "12345", string(data))
	}

	_, _, err = OpenLocalFile(dir)
	assert.Error(t, err)
}

func TestUploadTreeReportsSkippedEntries(t *testing.T) {
	src := t.TempDir()
	writeTree(t, src, map[string]string{"f.txt": "x"})
	link := filepath.Join(src, "link")
	if err := os.Symlink(filepath.Join(src, "f.txt"), link); err != nil {
		t.Skipf("symlinks unavailable: %v", err)
	}

	remote := newMemRemote()
	report, err := UploadTree(context.Background(), src, "/dst", remote.ensureFolder, remote.uploadFile)
	require.NoError(t, err)
	assert.Equal(t, []string{"/dst/f.txt"}, report.Files)
	assert.Equal(t, []string{link}, report.Skipped)
	assert.NotContains(t, remote.files, "/dst/link")
}

func TestDownloadTreeRejectsNameCollision(t *testing.T) {
	dst := filepath.Join(t.TempDir(), "out")
	list := func(ctx context.Context, folder RemoteEntry) ([]RemoteEntry, error) {
		return []RemoteEntry{
			{Name: "report.txt", Path: "/a/report.txt", ID: "1"},
			{Name: "report.txt", Path: "/a/report.txt", ID: "2"},
		}, nil
	}
	fetch := func(ctx context.Context, file RemoteEntry, local string) error {
		return WriteLocalFile(local, func(w io.Writer) error {
			_, err := w.Write([]byte(file.ID))
			return err
		})
	}

	report, err := DownloadTree(context.Background(), RemoteEntry{Name: "a", Path: "/a", IsFolder: true}, dst, list, fetch)
	require.ErrorContains(t, err, "would both be stored as")
	assert.Equal(t, []string{filepath.Join(dst, "report.txt")}, report.Files)

	got, err := os.ReadFile(filepath.Join(dst, "report.txt"))
	require.NoError(t, err)
	assert.Equal(t, "1", string(got))
}

func TestDownloadTreeRejectsMappedNameCollision(t *testing.T) {
	list := func(ctx context.Context, folder RemoteEntry) ([]RemoteEntry, error) {
		return []RemoteEntry{
			{Name: "a_b", Path: "/r/a_b", IsFolder: true},
			{Name: "a/b", Path: "/r/a/b"},
		}, nil
	}
	fetch := func(ctx context.Context, file RemoteEntry, local string) error {
		t.Fatalf("fetch called for %s", file.Path)
		return nil
	}

	_, err := DownloadTree(context.Background(), RemoteEntry{Name: "r", Path: "/r", IsFolder: true}, t.TempDir(), list, fetch)
	assert.ErrorContains(t, err, "would both be stored as")
}
